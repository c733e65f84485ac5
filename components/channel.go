package components

import (
	"errors"
	"fmt"
)

// Channel is one of the four pressure dimensions every agent tracks.
// It doubles as a dense index into every per-channel column.
type Channel uint8

const (
	Vitality   Channel = iota // Health, energy, hunger (inverse)
	Security                  // Safety vs fear; negative pressure = danger
	Dominance                 // Aggression, confidence, hierarchy
	Engagement                // Curiosity, social interest, boredom (inverse)
)

// NumChannels is the fixed channel count.
const NumChannels = 4

// ErrUnknownChannel is returned when a channel name or index is not one of the four channels.
var ErrUnknownChannel = errors.New("unknown channel")

var channelNames = [NumChannels]string{"Vitality", "Security", "Dominance", "Engagement"}

// Channels lists every channel in index order.
var Channels = [NumChannels]Channel{Vitality, Security, Dominance, Engagement}

// Valid reports whether c indexes one of the four channels.
func (c Channel) Valid() bool {
	return c < NumChannels
}

// String returns the configuration name of the channel.
func (c Channel) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Channel(%d)", uint8(c))
	}
	return channelNames[c]
}

// ParseChannel maps a configuration name (exact, case-sensitive) to a Channel.
func ParseChannel(name string) (Channel, error) {
	for i, n := range channelNames {
		if n == name {
			return Channel(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
}

// ChannelNames returns the configuration names in index order.
func ChannelNames() []string {
	return channelNames[:]
}
