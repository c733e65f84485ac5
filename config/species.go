package config

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pthm-cable/hfps/components"
	"gopkg.in/yaml.v3"
)

//go:embed species/*.yaml
var speciesFS embed.FS

// rawSpecies is the on-disk species descriptor. Channels are named, not indexed.
type rawSpecies struct {
	Name            string             `yaml:"name"`
	Sensitivity     map[string]float32 `yaml:"sensitivity"`
	DecayRates      map[string]float32 `yaml:"decay_rates"`
	AdaptationRates map[string]float32 `yaml:"adaptation_rates"`
	Thresholds      []rawThreshold     `yaml:"thresholds"`
	Listeners       []rawListener      `yaml:"listeners"`
	Emissions       []rawEmission      `yaml:"emissions"`
}

type rawThreshold struct {
	Channel string  `yaml:"channel"`
	Value   float32 `yaml:"value"`
	Flag    uint32  `yaml:"flag"`
}

type rawListener struct {
	EventName string  `yaml:"event_name"`
	Channel   string  `yaml:"channel"`
	Power     float32 `yaml:"power"`
	Radius    float32 `yaml:"radius"`
}

type rawEmission struct {
	Flag      uint32  `yaml:"flag"`
	EventName string  `yaml:"event_name"`
	Power     float32 `yaml:"power"`
	Radius    float32 `yaml:"radius"`
}

// LoadSpecies reads a species descriptor file.
func LoadSpecies(path string) (components.BehaviorProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return components.BehaviorProfile{}, fmt.Errorf("reading species file: %w", err)
	}
	p, err := ParseSpecies(data)
	if err != nil {
		return p, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// EmbeddedSpecies returns one of the species descriptors shipped with the binary.
func EmbeddedSpecies(name string) (components.BehaviorProfile, error) {
	data, err := speciesFS.ReadFile("species/" + name + ".yaml")
	if err != nil {
		return components.BehaviorProfile{}, fmt.Errorf("%w: no embedded species %q", components.ErrUnknownSpecies, name)
	}
	return ParseSpecies(data)
}

// EmbeddedSpeciesNames lists the shipped species descriptors.
func EmbeddedSpeciesNames() []string {
	entries, _ := speciesFS.ReadDir("species")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// ParseSpecies converts a YAML species descriptor into a profile. Channel maps
// default to sensitivity 1.0, decay 0.1 and adaptation 0.0 for channels they
// omit, and every event name is hashed here so the core never hashes profile
// names at runtime.
func ParseSpecies(data []byte) (components.BehaviorProfile, error) {
	var raw rawSpecies
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return components.BehaviorProfile{}, fmt.Errorf("parsing species: %w", err)
	}
	if raw.Name == "" {
		return components.BehaviorProfile{}, fmt.Errorf("%w: missing name", components.ErrInvalidProfile)
	}

	p := components.DefaultProfile(raw.Name)
	if err := applyChannelMap(&p.Sensitivity, raw.Sensitivity); err != nil {
		return p, fmt.Errorf("%s sensitivity: %w", raw.Name, err)
	}
	if err := applyChannelMap(&p.DecayRates, raw.DecayRates); err != nil {
		return p, fmt.Errorf("%s decay_rates: %w", raw.Name, err)
	}
	if err := applyChannelMap(&p.AdaptationRates, raw.AdaptationRates); err != nil {
		return p, fmt.Errorf("%s adaptation_rates: %w", raw.Name, err)
	}

	for i, t := range raw.Thresholds {
		ch, err := components.ParseChannel(t.Channel)
		if err != nil {
			return p, fmt.Errorf("%s threshold %d: %w", raw.Name, i, err)
		}
		p.Thresholds = append(p.Thresholds, components.Threshold{
			Channel: ch,
			Value:   t.Value,
			Flag:    components.Flag(t.Flag),
		})
	}

	for i, l := range raw.Listeners {
		ch, err := components.ParseChannel(l.Channel)
		if err != nil {
			return p, fmt.Errorf("%s listener %d: %w", raw.Name, i, err)
		}
		if l.EventName == "" {
			return p, fmt.Errorf("%w: %s listener %d has no event_name", components.ErrInvalidProfile, raw.Name, i)
		}
		p.Listeners = append(p.Listeners, components.Stimulus{
			EventName: l.EventName,
			EventHash: components.EventHash(l.EventName),
			Channel:   ch,
			Power:     l.Power,
			Radius:    l.Radius,
		})
	}

	for i, e := range raw.Emissions {
		if e.EventName == "" {
			return p, fmt.Errorf("%w: %s emission %d has no event_name", components.ErrInvalidProfile, raw.Name, i)
		}
		if !(e.Radius > 0) {
			return p, fmt.Errorf("%w: %s emission %d (%s): radius must be positive", components.ErrInvalidProfile, raw.Name, i, e.EventName)
		}
		p.Emissions = append(p.Emissions, components.Emission{
			Flag:      components.Flag(e.Flag),
			EventName: e.EventName,
			EventHash: components.EventHash(e.EventName),
			Power:     e.Power,
			Radius:    e.Radius,
		})
	}

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

func applyChannelMap(dst *[components.NumChannels]float32, m map[string]float32) error {
	for name, v := range m {
		ch, err := components.ParseChannel(name)
		if err != nil {
			return err
		}
		dst[ch] = v
	}
	return nil
}

// LoadPopulation registers every species named in the population config and
// returns the table plus one ID per entry, in config order.
func LoadPopulation(pop PopulationConfig) (*components.SpeciesTable, []components.SpeciesID, error) {
	table := components.NewSpeciesTable()
	ids := make([]components.SpeciesID, len(pop.Species))

	for i, entry := range pop.Species {
		var (
			p   components.BehaviorProfile
			err error
		)
		if entry.File != "" {
			p, err = LoadSpecies(entry.File)
		} else {
			p, err = EmbeddedSpecies(entry.Name)
		}
		if err != nil {
			return nil, nil, err
		}
		if entry.Name != "" && entry.Name != p.Name {
			return nil, nil, fmt.Errorf("%w: population entry %q loaded species %q", components.ErrInvalidProfile, entry.Name, p.Name)
		}

		// Several entries may spawn the same species.
		if id, err := table.ByName(p.Name); err == nil {
			ids[i] = id
			continue
		}
		id, err := table.Register(p)
		if err != nil {
			return nil, nil, err
		}
		ids[i] = id
	}
	return table, ids, nil
}
