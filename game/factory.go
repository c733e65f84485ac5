package game

import (
	"fmt"

	"github.com/mlange-42/ark/ecs"
	"github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/hfps/components"
	"github.com/pthm-cable/hfps/systems"
)

// maxSpawnAttempts bounds rejection sampling per agent. The last candidate is
// accepted if none clears the noise floor.
const maxSpawnAttempts = 16

// spawnPopulation places every configured species entry. Positions are
// rejection-sampled against a simplex field so agents clump into herds instead
// of covering the grid uniformly.
func (g *Game) spawnPopulation(ids []components.SpeciesID) error {
	pop := g.cfg.Population
	w, h := g.grid.Extent()

	for i, entry := range pop.Species {
		// Each entry gets its own field so species settle in different places.
		noise := opensimplex.NewNormalized(g.rngSeed + int64(i))
		for n := 0; n < entry.Count; n++ {
			x, y := g.samplePosition(noise, w, h, pop.NoiseScale, pop.NoiseFloor)
			if _, err := g.spawnAgent(x, y, ids[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// samplePosition draws a point in [0,w)x[0,h) whose noise value is at least floor.
func (g *Game) samplePosition(noise opensimplex.Noise, w, h float32, scale, floor float64) (float32, float32) {
	var x, y float32
	for attempt := 0; attempt < maxSpawnAttempts; attempt++ {
		x = g.rng.Float32() * w
		y = g.rng.Float32() * h
		if scale <= 0 || noise.Eval2(float64(x)*scale, float64(y)*scale) >= floor {
			break
		}
	}
	return x, y
}

// spawnAgent adds a row to the agent store and a matching host entity.
func (g *Game) spawnAgent(x, y float32, species components.SpeciesID) (ecs.Entity, error) {
	idx, err := g.agents.AddAgent(x, y, species)
	if err != nil {
		return ecs.Entity{}, fmt.Errorf("spawn agent: %w", err)
	}

	pos := components.Position{X: x, Y: y}
	agent := components.Agent{Index: int32(idx), Species: species}
	pressure := components.Pressure{Flags: g.agents.Flags[idx]}

	entity := g.agentMapper.NewEntity(&pos, &agent, &pressure)
	g.entities = append(g.entities, entity)
	return entity, nil
}

// SpawnAgent adds one agent of the named species at (x, y). It is placed in the
// grid from the next frame on.
func (g *Game) SpawnAgent(x, y float32, speciesName string) (ecs.Entity, error) {
	id, err := g.species.ByName(speciesName)
	if err != nil {
		return ecs.Entity{}, err
	}
	if g.agents.Count() >= g.grid.AgentSlots() {
		return ecs.Entity{}, fmt.Errorf("spawn %s: %d agent slots in use: %w",
			speciesName, g.grid.AgentSlots(), systems.ErrCapacityExceeded)
	}
	return g.spawnAgent(x, y, id)
}
