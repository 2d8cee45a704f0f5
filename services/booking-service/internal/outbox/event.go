package outbox

import (
	"encoding/json"
	"time"

	"github.com/jkurui/tutorhive/services/booking-service/internal/model"
)

// Topic names, one per event type. A consumer subscribes to exactly the
// lifecycle transitions it cares about.
const (
	TopicSessionHeld      = "booking.session.held.v1"
	TopicSessionConfirmed = "booking.session.confirmed.v1"
	TopicSessionCancelled = "booking.session.cancelled.v1"
	TopicSessionExpired   = "booking.session.expired.v1"
)

// Event is the envelope written to the outbox table. The Kafka topic equals
// EventType and the aggregate id keys the partition, so events for one
// session stay ordered.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type sessionPayload struct {
	SessionID    string     `json:"session_id"`
	TutorID      string     `json:"tutor_id"`
	StudentID    string     `json:"student_id"`
	StartAt      time.Time  `json:"start_at"`
	EndAt        time.Time  `json:"end_at"`
	Status       string     `json:"status"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
	HoldExpires  *time.Time `json:"hold_expires_at,omitempty"`
}

// SessionEvent builds the outbox envelope for a lifecycle transition.
func SessionEvent(eventType string, s model.TutoringSession) (Event, error) {
	payload, err := json.Marshal(sessionPayload{
		SessionID:    s.ID,
		TutorID:      s.TutorID,
		StudentID:    s.StudentID,
		StartAt:      s.StartAt.UTC(),
		EndAt:        s.EndAt.UTC(),
		Status:       s.Status,
		CancelReason: s.CancelReason,
		OccurredAt:   time.Now().UTC(),
		HoldExpires:  s.HoldExpiresAt,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "tutoring_session",
		AggregateID:   s.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}
