package competition

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a monitor event.
type EventType string

const (
	EventStudentLoggedIn  EventType = "student_logged_in"
	EventSessionStarted   EventType = "session_started"
	EventStationStarted   EventType = "station_started"
	EventStationCompleted EventType = "station_completed"
	EventStudentFinished  EventType = "student_finished"
	EventSessionCompleted EventType = "session_completed"
	EventSessionPaused    EventType = "session_paused"
	EventSessionResumed   EventType = "session_resumed"
	EventSessionEnded     EventType = "session_ended"
	EventStudentReset     EventType = "student_reset"
)

// Event is a monitor notification emitted after a committed state transition.
type Event struct {
	Type         EventType `json:"type"`
	SessionID    uuid.UUID `json:"session_id"`
	StudentID    int       `json:"student_id,omitempty"`
	StationOrder int       `json:"station_order,omitempty"`
	Percentage   float64   `json:"percentage,omitempty"`
	At           time.Time `json:"at"`
}

// Publisher delivers monitor events to observers. Delivery is best-effort;
// the engine never fails a transition because an event could not be sent.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

func (e *Engine) publish(ctx context.Context, ev Event) {
	ev.At = time.Now()
	e.events.Publish(ctx, ev)
}
