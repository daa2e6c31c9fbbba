package audio

import (
	"context"
	"errors"
	"fmt"
)

// EventKind is the kind of status change a Sink reports.
type EventKind int

const (
	EventRendering EventKind = iota
	EventPaused
	EventIdle
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventRendering:
		return "rendering"
	case EventPaused:
		return "paused"
	case EventIdle:
		return "idle"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// SinkEvent is a status change or error reported by a Sink.
//
// Generation echoes the value passed to the Play call the event belongs to,
// so the session can discard events for tracks it already moved past.
// Fatal marks the sink itself as unusable (e.g. the voice connection is gone).
type SinkEvent struct {
	Kind       EventKind
	Generation uint64
	Err        error
	Fatal      bool
}

// Sink renders audio streams into one voice destination.
//
// Play starts rendering sourceRef and returns once rendering has begun (or
// failed to begin). The end of rendering is reported asynchronously through
// Events as EventIdle, or EventError when the stream broke; a Stop also ends
// in EventIdle. Pause and Unpause report whether the state changed.
type Sink interface {
	Play(generation uint64, sourceRef string) error
	Pause() bool
	Unpause() bool
	Stop(force bool) bool
	Events() <-chan SinkEvent
	Close() error
}

// SinkFactory opens a sink bound to a voice target. It is called at most once
// per session.
type SinkFactory func(ctx context.Context, target VoiceTarget) (Sink, error)

// ErrSinkUnavailable is returned (wrapped) by Sink.Play when the sink can no
// longer render anything; the owning session is torn down.
var ErrSinkUnavailable = errors.New("sink unavailable")
