package components

// Agent links a host entity to its row in the dense agent store.
type Agent struct {
	Index   int32
	Species SpeciesID
}

// Pressure is the per-frame readout of an agent's pressure state, copied from
// the dense store after each tick for decision or presentation code to poll.
type Pressure struct {
	Channels    [NumChannels]float32
	Habituation [NumChannels]float32
	Flags       Flag
}

// Has reports whether every bit of f is active.
func (p *Pressure) Has(f Flag) bool {
	return p.Flags&f == f
}

// Dominant returns the channel with the largest absolute pressure.
func (p *Pressure) Dominant() Channel {
	best := Vitality
	var bestAbs float32
	for _, c := range Channels {
		v := p.Channels[c]
		if v < 0 {
			v = -v
		}
		if v > bestAbs {
			best, bestAbs = c, v
		}
	}
	return best
}
