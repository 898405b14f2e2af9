// Package session drives one card read from tag detection to a published
// snapshot.
//
// STATES:
//
//	Idle ──TagDetected──> Detecting ──connect──> Connected ──> Reading ──> Ready
//	                           │                     │            │
//	                           └──────────── failure ┴────────────┴──> Failed
//
// Removal of the tag while Detecting, Connected or Reading cancels the read,
// discards any partial data and returns to Idle. Ready and Failed are kept
// until the next detection.
package session

import (
	"context"
	"fmt"

	"github.com/gregLibert/travel-card/pkg/card"
	"github.com/gregLibert/travel-card/pkg/transport"
)

// State of the machine.
type State int

const (
	Idle State = iota
	Detecting
	Connected
	Reading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Detecting:
		return "Detecting"
	case Connected:
		return "Connected"
	case Reading:
		return "Reading"
	case Ready:
		return "Ready"
	case Failed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// busy reports whether a read is in flight.
func (s State) busy() bool {
	return s == Detecting || s == Connected || s == Reading
}

// Tag is a card presented to the reader.
type Tag interface {
	// Connect opens a command channel to the tag. Tags whose technology
	// cannot carry a travel card application fail with card.ErrUnsupportedTag.
	Connect(ctx context.Context) (transport.Link, error)
}

// Adapter reports the capability of the NFC hardware.
type Adapter interface {
	Supported() bool
	Enabled() bool
}

// Event is a notification from the NFC layer.
type Event interface {
	event()
}

// TagDetected reports a tag entering the field.
type TagDetected struct {
	Tag Tag
}

// TagRemoved reports the tag leaving the field.
type TagRemoved struct{}

func (TagDetected) event() {}
func (TagRemoved) event()  {}

// Update is published on every state change.
type Update struct {
	State    State
	Status   card.Status
	Snapshot *card.Snapshot
}
