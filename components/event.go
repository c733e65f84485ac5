package components

// WorldEvent is a pulse that propagates through the spatial grid and pressures
// agents with a matching listener. Consumed once per Emit; never stored.
type WorldEvent struct {
	Name          string // e.g. "explosion", "scent_of_blood"
	X, Y          float32
	BaseIntensity float32 // strength at the origin, attenuated per listener by distance

	// Radius bounds the broad-phase query. Zero uses the broker's configured radius.
	Radius float32
}
