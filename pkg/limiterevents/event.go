package limiterevents

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the terminal state of one acquisition attempt.
type Outcome string

const (
	OutcomeAcquired Outcome = "acquired"
	OutcomeReleased Outcome = "released"
	OutcomeRejected Outcome = "rejected"
	OutcomeStoreErr Outcome = "store_error"
)

// Kind distinguishes which limiter produced the event.
type Kind string

const (
	KindSemaphore   Kind = "semaphore"
	KindTokenBucket Kind = "tokenbucket"
)

// Event is one lifecycle record, published best-effort to every
// registered Sink.
type Event struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Name       string    `json:"name"`
	Outcome    Outcome   `json:"outcome"`
	WaitedMS   int64     `json:"waited_ms"`
	InstanceID string    `json:"instance_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent stamps a fresh event ID. occurredAt is taken from the caller
// so the resulting timestamp is deterministic and testable.
func NewEvent(kind Kind, name string, outcome Outcome, waited time.Duration, instanceID string, occurredAt time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Name:       name,
		Outcome:    outcome,
		WaitedMS:   waited.Milliseconds(),
		InstanceID: instanceID,
		OccurredAt: occurredAt,
	}
}
