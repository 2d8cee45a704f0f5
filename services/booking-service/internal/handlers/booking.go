package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jkurui/tutorhive/services/booking-service/internal/availability"
	"github.com/jkurui/tutorhive/services/booking-service/internal/booking"
	"github.com/jkurui/tutorhive/services/booking-service/internal/model"
	"github.com/jkurui/tutorhive/services/booking-service/internal/outbox"
	"github.com/jkurui/tutorhive/services/booking-service/internal/storage"
)

type BookingHandler struct {
	sessions   *storage.SessionRepository
	avail      *storage.AvailabilityRepository
	validator  *booking.Validator
	outboxRepo *outbox.Repository
	logger     *slog.Logger
	holdTTL    time.Duration
}

func NewBookingHandler(sessions *storage.SessionRepository, avail *storage.AvailabilityRepository, validator *booking.Validator, outboxRepo *outbox.Repository, logger *slog.Logger, holdTTL time.Duration) *BookingHandler {
	if holdTTL <= 0 {
		holdTTL = 15 * time.Minute
	}
	return &BookingHandler{
		sessions:   sessions,
		avail:      avail,
		validator:  validator,
		outboxRepo: outboxRepo,
		logger:     logger,
		holdTTL:    holdTTL,
	}
}

type slotItem struct {
	StartAt    string `json:"start_at"`
	EndAt      string `json:"end_at"`
	Timezone   string `json:"timezone"`
	LocalDate  string `json:"local_date"`
	LocalStart string `json:"local_start"`
	LocalEnd   string `json:"local_end"`
}

type bookRequest struct {
	TutorID string `json:"tutor_id"`
	StartAt string `json:"start_at"`
	EndAt   string `json:"end_at"`
}

type sessionItem struct {
	SessionID     string `json:"session_id"`
	TutorID       string `json:"tutor_id"`
	StudentID     string `json:"student_id"`
	StartAt       string `json:"start_at"`
	EndAt         string `json:"end_at"`
	Status        string `json:"status"`
	HoldExpiresAt string `json:"hold_expires_at,omitempty"`
	CancelReason  string `json:"cancel_reason,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func toSessionItem(s model.TutoringSession) sessionItem {
	item := sessionItem{
		SessionID:    s.ID,
		TutorID:      s.TutorID,
		StudentID:    s.StudentID,
		StartAt:      s.StartAt.UTC().Format(time.RFC3339),
		EndAt:        s.EndAt.UTC().Format(time.RFC3339),
		Status:       s.Status,
		CancelReason: s.CancelReason,
		CreatedAt:    s.CreatedAt.UTC().Format(time.RFC3339),
	}
	if s.HoldExpiresAt != nil {
		item.HoldExpiresAt = s.HoldExpiresAt.UTC().Format(time.RFC3339)
	}
	return item
}

// maxSlotRangeDays caps the public slot listing so one request cannot ask
// the generator to enumerate months of slots.
const maxSlotRangeDays = 31

// Slots lists bookable slots for a listed tutor over a local-date range.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tutorID := strings.TrimSpace(r.URL.Query().Get("tutor_id"))
	from := strings.TrimSpace(r.URL.Query().Get("from"))
	to := strings.TrimSpace(r.URL.Query().Get("to"))
	if tutorID == "" || from == "" || to == "" {
		http.Error(w, "tutor_id, from, and to are required", http.StatusBadRequest)
		return
	}

	av, ok, err := h.avail.Get(r.Context(), tutorID)
	if err != nil {
		h.logger.Error("availability load failed", "tutor_id", tutorID, "err", err)
		http.Error(w, "failed to load availability", http.StatusInternalServerError)
		return
	}
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("[]"))
		return
	}

	loc, err := time.LoadLocation(av.Timezone)
	if err != nil {
		http.Error(w, "tutor timezone is invalid", http.StatusInternalServerError)
		return
	}
	fromDay, errFrom := time.ParseInLocation("2006-01-02", from, loc)
	toDay, errTo := time.ParseInLocation("2006-01-02", to, loc)
	if errFrom != nil || errTo != nil || toDay.Before(fromDay) {
		http.Error(w, "from and to must be valid dates with from <= to", http.StatusBadRequest)
		return
	}
	if toDay.Sub(fromDay) > maxSlotRangeDays*24*time.Hour {
		http.Error(w, "date range too large", http.StatusBadRequest)
		return
	}

	duration := av.SlotSizeMinutes
	if raw := strings.TrimSpace(r.URL.Query().Get("duration_minutes")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > availability.MaxSlotSizeMinutes {
			http.Error(w, "invalid duration_minutes", http.StatusBadRequest)
			return
		}
		duration = n
	}

	pad := time.Duration(av.BufferMinutes) * time.Minute
	busy, err := h.sessions.ListActiveIntervals(r.Context(), tutorID,
		fromDay.Add(-pad), toDay.AddDate(0, 0, 1).Add(pad))
	if err != nil {
		h.logger.Error("busy interval load failed", "tutor_id", tutorID, "err", err)
		http.Error(w, "failed to load busy intervals", http.StatusInternalServerError)
		return
	}

	slots := availability.Generate(availability.GenerateParams{
		Timezone:        av.Timezone,
		Weekly:          av.Weekly,
		Exceptions:      av.Exceptions,
		From:            from,
		To:              to,
		SlotSizeMinutes: av.SlotSizeMinutes,
		DurationMinutes: duration,
		BufferMinutes:   av.BufferMinutes,
		Busy:            busy,
		Now:             time.Now().UTC(),
	})

	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			StartAt:    s.StartAt.Format(time.RFC3339),
			EndAt:      s.EndAt.Format(time.RFC3339),
			Timezone:   s.Timezone,
			LocalDate:  s.LocalDate,
			LocalStart: s.LocalStart,
			LocalEnd:   s.LocalEnd,
		})
	}

	body, err := json.Marshal(items)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Book validates the requested interval against the generator and creates a
// hold. Validation and insert are not atomic; the unique index on active
// sessions settles any race between two callers who both passed validation.
func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	studentID := strings.TrimSpace(r.Header.Get("X-Student-Id"))
	if studentID == "" {
		http.Error(w, "X-Student-Id header required", http.StatusBadRequest)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.TutorID = strings.TrimSpace(req.TutorID)
	if req.TutorID == "" {
		http.Error(w, "tutor_id required", http.StatusBadRequest)
		return
	}
	startAt, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		http.Error(w, "invalid start_at", http.StatusBadRequest)
		return
	}
	endAt, err := time.Parse(time.RFC3339, req.EndAt)
	if err != nil {
		http.Error(w, "invalid end_at", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if err := h.validator.Validate(ctx, req.TutorID, startAt, endAt); err != nil {
		switch {
		case errors.Is(err, booking.ErrTutorNotFound):
			http.Error(w, "tutor not found", http.StatusNotFound)
		case errors.Is(err, booking.ErrNoAvailability), errors.Is(err, booking.ErrInvalidRange):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, booking.ErrSlotUnavailable):
			http.Error(w, "requested slot is not available", http.StatusConflict)
		default:
			h.logger.Error("booking validation failed", "tutor_id", req.TutorID, "err", err)
			http.Error(w, "failed to validate booking", http.StatusInternalServerError)
		}
		return
	}

	tx, err := h.sessions.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	session, err := h.sessions.CreateHold(ctx, tx, req.TutorID, studentID, startAt, endAt, h.holdTTL)
	if err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		h.logger.Error("hold insert failed", "tutor_id", req.TutorID, "err", err)
		http.Error(w, "failed to create hold", http.StatusInternalServerError)
		return
	}

	if err := h.insertSessionEvent(ctx, tx, outbox.TopicSessionHeld, session); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	body, _ := json.Marshal(toSessionItem(session))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

type beginPaymentRequest struct {
	SessionID       string `json:"session_id"`
	StripeSessionID string `json:"stripe_session_id"`
}

// BeginPayment moves a live hold into payment_pending, pins the Stripe
// checkout session the webhook will later confirm against, and extends the
// hold window so the slot stays reserved while the student checks out.
func (h *BookingHandler) BeginPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	studentID := strings.TrimSpace(r.Header.Get("X-Student-Id"))
	if studentID == "" {
		http.Error(w, "X-Student-Id header required", http.StatusBadRequest)
		return
	}

	var req beginPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.StripeSessionID = strings.TrimSpace(req.StripeSessionID)
	if req.SessionID == "" || req.StripeSessionID == "" {
		http.Error(w, "session_id and stripe_session_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.sessions.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := h.sessions.GetForUpdate(ctx, tx, req.SessionID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}
	if current.StudentID != studentID {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	session, err := h.sessions.BeginPayment(ctx, tx, req.SessionID, req.StripeSessionID, time.Now().Add(h.holdTTL))
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "hold expired or already processed", http.StatusConflict)
			return
		}
		http.Error(w, "failed to start payment", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	body, _ := json.Marshal(toSessionItem(session))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type cancelSessionRequest struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

// Cancel flips an active session to cancelled. Cancelling a session that is
// already cancelled is a no-op success.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.SessionID == "" {
		http.Error(w, "session_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.sessions.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	session, changed, err := h.sessions.Cancel(ctx, tx, req.SessionID, req.Reason)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "session not found or not cancellable", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to cancel session", http.StatusInternalServerError)
		return
	}

	if changed {
		if err := h.insertSessionEvent(ctx, tx, outbox.TopicSessionCancelled, session); err != nil {
			http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	body, _ := json.Marshal(toSessionItem(session))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type completeSessionRequest struct {
	SessionID string `json:"session_id"`
}

// Complete marks a confirmed session as delivered once its end time has
// passed.
func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req completeSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" {
		http.Error(w, "session_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.sessions.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	session, err := h.sessions.Complete(ctx, tx, req.SessionID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "session not found, not confirmed, or not finished yet", http.StatusConflict)
			return
		}
		http.Error(w, "failed to complete session", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	body, _ := json.Marshal(toSessionItem(session))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// List returns the caller's sessions, tutor or student side depending on
// which identity header is present.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	var (
		sessions []model.TutoringSession
		err      error
	)
	if tutorID := strings.TrimSpace(r.Header.Get("X-Tutor-Id")); tutorID != "" {
		sessions, err = h.sessions.ListByTutor(r.Context(), tutorID, limit)
	} else if studentID := strings.TrimSpace(r.Header.Get("X-Student-Id")); studentID != "" {
		sessions, err = h.sessions.ListByStudent(r.Context(), studentID, limit)
	} else {
		http.Error(w, "X-Tutor-Id or X-Student-Id header required", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logger.Error("session list failed", "err", err)
		http.Error(w, "failed to list sessions", http.StatusInternalServerError)
		return
	}

	items := make([]sessionItem, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, toSessionItem(s))
	}
	body, err := json.Marshal(items)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *BookingHandler) insertSessionEvent(ctx context.Context, tx pgx.Tx, topic string, s model.TutoringSession) error {
	evt, err := outbox.SessionEvent(topic, s)
	if err != nil {
		h.logger.Error("event payload build failed", "session_id", s.ID, "err", err)
		return err
	}
	if err := h.outboxRepo.Insert(ctx, tx, evt); err != nil {
		h.logger.Error("outbox insert failed", "session_id", s.ID, "err", err)
		return err
	}
	return nil
}
