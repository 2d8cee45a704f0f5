package model

import "time"

// Session statuses. Active statuses occupy the tutor's calendar and are the
// only ones the booking conflict guard considers.
const (
	StatusHold           = "hold"
	StatusPaymentPending = "payment_pending"
	StatusConfirmed      = "confirmed"
	StatusCancelled      = "cancelled"
	StatusCompleted      = "completed"
	StatusRefunded       = "refunded"
)

// ActiveStatuses must stay in sync with the partial unique index predicate on
// tutoring_sessions (scripts/sql/schema.sql).
var ActiveStatuses = []string{StatusHold, StatusPaymentPending, StatusConfirmed}

func IsActiveStatus(status string) bool {
	for _, s := range ActiveStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type TutoringSession struct {
	ID              string
	TutorID         string
	StudentID       string
	StartAt         time.Time
	EndAt           time.Time
	Status          string
	HoldExpiresAt   *time.Time
	StripeSessionID string
	CancelReason    string
	CreatedAt       time.Time
}
