package game

import (
	"log/slog"

	"github.com/pthm-cable/hfps/components"
	"github.com/pthm-cable/hfps/telemetry"
)

// simulationStep runs one frame: rebuild the grid, emit the frame's events in
// order, tick, then publish the results.
func (g *Game) simulationStep() {
	g.perfCollector.StartTick()

	g.perfCollector.StartPhase(telemetry.PhaseSpatialGrid)
	g.updateSpatialGrid()

	g.perfCollector.StartPhase(telemetry.PhaseEvents)
	g.emitEvents()

	g.perfCollector.StartPhase(telemetry.PhaseTick)
	g.agents.Tick()

	g.perfCollector.StartPhase(telemetry.PhaseEmissions)
	g.collectEmissions()

	g.perfCollector.StartPhase(telemetry.PhaseReadout)
	g.syncReadout()
	g.exposure.Update(g.agents)

	g.tick++

	g.perfCollector.StartPhase(telemetry.PhaseTelemetry)
	g.flushTelemetry()

	g.perfCollector.EndTick()
}

// updateSpatialGrid copies host positions into the agent store and rebuilds
// the grid from them.
func (g *Game) updateSpatialGrid() {
	g.grid.Clear()

	query := g.agentFilter.Query()
	for query.Next() {
		pos, agent, _ := query.Get()
		i := int(agent.Index)

		g.agents.X[i], g.agents.Y[i] = pos.X, pos.Y
		if err := g.grid.Insert(i, pos.X, pos.Y); err != nil {
			slog.Error("grid insert failed", "agent", i, "error", err)
		}
	}
}

// emitEvents emits scheduled events, then host-queued events, then the
// previous frame's emissions. Each sees the pressure left by the ones before.
func (g *Game) emitEvents() {
	frame := int(g.tick)
	for _, ec := range g.cfg.Events {
		if !ec.FiresAt(frame) {
			continue
		}
		ev := components.WorldEvent{
			Name:          ec.Name,
			X:             float32(ec.X),
			Y:             float32(ec.Y),
			BaseIntensity: float32(ec.Intensity),
			Radius:        float32(ec.Radius),
		}
		g.emit(ev, telemetry.SourceSchedule)
	}

	for _, ev := range g.queued {
		g.emit(ev, telemetry.SourceQueued)
	}
	g.queued = g.queued[:0]

	for _, ev := range g.emissions {
		g.emit(ev, telemetry.SourceEmission)
	}
	g.emissions = g.emissions[:0]
}

func (g *Game) emit(ev components.WorldEvent, source telemetry.EventSource) {
	stats, err := g.broker.Emit(ev, g.agents, g.grid)
	if err != nil {
		slog.Error("emit failed", "event", ev.Name, "tick", g.tick, "error", err)
		return
	}

	if source == telemetry.SourceEmission {
		g.collector.RecordEmission(stats)
		// Agent chatter would swamp the event log.
		return
	}
	g.collector.RecordEvent(stats)
	g.eventLog = append(g.eventLog, telemetry.NewEventRecord(g.tick, source, ev, stats))
}

// collectEmissions gathers this frame's emissions for the next frame, up to
// the configured cap.
func (g *Game) collectEmissions() {
	if !g.cfg.Emissions.Enabled {
		return
	}

	g.emissionBuf = g.agents.PendingEmissions(g.emissionBuf[:0])
	pending := g.emissionBuf
	if limit := g.cfg.Emissions.MaxPerFrame; limit > 0 && len(pending) > limit {
		g.droppedEmissions += len(pending) - limit
		pending = pending[:limit]
	}
	g.emissions = append(g.emissions, pending...)
}

// syncReadout copies each agent's pressure state into its host component.
func (g *Game) syncReadout() {
	query := g.agentFilter.Query()
	for query.Next() {
		_, agent, p := query.Get()
		i := int(agent.Index)

		for c := range components.Channels {
			p.Channels[c] = g.agents.Channels[c][i]
			p.Habituation[c] = g.agents.Adaptation[c][i]
		}
		p.Flags = g.agents.Flags[i]
	}
}
