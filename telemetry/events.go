// Package telemetry provides pressure statistics, frame timing, and run output.
package telemetry

import (
	"github.com/pthm-cable/hfps/components"
	"github.com/pthm-cable/hfps/systems"
)

// EventSource identifies where a world event came from.
type EventSource string

const (
	SourceSchedule EventSource = "schedule" // config events list
	SourceQueued   EventSource = "queued"   // host code via Game.QueueEvent
	SourceEmission EventSource = "emission" // agent emission feedback
)

// EventRecord is one emitted world event and the broker work it caused.
type EventRecord struct {
	Frame      int32       `csv:"frame" db:"frame"`
	Source     EventSource `csv:"source" db:"source"`
	Name       string      `csv:"name" db:"name"`
	X          float32     `csv:"x" db:"x"`
	Y          float32     `csv:"y" db:"y"`
	Intensity  float32     `csv:"intensity" db:"intensity"`
	Radius     float32     `csv:"radius" db:"radius"`
	Candidates int         `csv:"candidates" db:"candidates"`
	Matched    int         `csv:"matched" db:"matched"`
}

// NewEventRecord creates a record for ev emitted on frame.
func NewEventRecord(frame int32, source EventSource, ev components.WorldEvent, s systems.EmitStats) EventRecord {
	return EventRecord{
		Frame:      frame,
		Source:     source,
		Name:       ev.Name,
		X:          ev.X,
		Y:          ev.Y,
		Intensity:  ev.BaseIntensity,
		Radius:     s.Reach,
		Candidates: s.Candidates,
		Matched:    s.Matched,
	}
}
