package components

import (
	"errors"
	"fmt"
)

// SpeciesID indexes a profile in a SpeciesTable.
type SpeciesID uint16

// ErrUnknownSpecies is returned for a SpeciesID or name that was never registered.
var ErrUnknownSpecies = errors.New("unknown species")

// SpeciesTable stores the shared profiles. Agents hold a SpeciesID instead of a
// pointer, so the dense store never chases per-agent references.
// Entries are append-only and immutable once registered.
type SpeciesTable struct {
	profiles []BehaviorProfile
	byName   map[string]SpeciesID
}

// NewSpeciesTable creates an empty table.
func NewSpeciesTable() *SpeciesTable {
	return &SpeciesTable{byName: make(map[string]SpeciesID)}
}

// Register validates the profile and appends it. Names must be unique.
func (t *SpeciesTable) Register(p BehaviorProfile) (SpeciesID, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	if _, dup := t.byName[p.Name]; dup {
		return 0, fmt.Errorf("%w: duplicate species %q", ErrInvalidProfile, p.Name)
	}
	if len(t.profiles) > int(^SpeciesID(0)) {
		return 0, fmt.Errorf("%w: species table full", ErrInvalidProfile)
	}

	// Copy the slices so later edits to the caller's profile can't leak in.
	p.Thresholds = append([]Threshold(nil), p.Thresholds...)
	p.Listeners = append([]Stimulus(nil), p.Listeners...)
	p.Emissions = append([]Emission(nil), p.Emissions...)

	id := SpeciesID(len(t.profiles))
	t.profiles = append(t.profiles, p)
	t.byName[p.Name] = id
	return id, nil
}

// Lookup returns the profile for id.
func (t *SpeciesTable) Lookup(id SpeciesID) (*BehaviorProfile, error) {
	if int(id) >= len(t.profiles) {
		return nil, fmt.Errorf("%w: id %d (have %d)", ErrUnknownSpecies, id, len(t.profiles))
	}
	return &t.profiles[id], nil
}

// ByName returns the id registered under name.
func (t *SpeciesTable) ByName(name string) (SpeciesID, error) {
	id, ok := t.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownSpecies, name)
	}
	return id, nil
}

// Len returns the number of registered species.
func (t *SpeciesTable) Len() int {
	return len(t.profiles)
}

// Profiles returns the backing slice indexed by SpeciesID. Read-only; this is the
// unchecked hot-path view used by the per-frame passes.
func (t *SpeciesTable) Profiles() []BehaviorProfile {
	return t.profiles
}

// MaxListenerRadius returns the largest listener radius of any registered species.
// Because falloff reaches zero at every stimulus radius, no listener can react to an
// event farther away than this.
func (t *SpeciesTable) MaxListenerRadius() float32 {
	var r float32
	for i := range t.profiles {
		if pr := t.profiles[i].MaxListenerRadius(); pr > r {
			r = pr
		}
	}
	return r
}
