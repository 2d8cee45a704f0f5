package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/jkurui/tutorhive/services/booking-service/internal/model"
	"github.com/jkurui/tutorhive/services/booking-service/internal/outbox"
	"github.com/jkurui/tutorhive/services/booking-service/internal/storage"
)

// StripeWebhookHandler promotes holds on successful checkout and releases
// them when checkout expires. No JWT auth; the signature verification is
// the auth, so the gateway must expose this path publicly.
type StripeWebhookHandler struct {
	sessions      *storage.SessionRepository
	billingEvents *storage.BillingEventRepository
	outboxRepo    *outbox.Repository
	logger        *slog.Logger
	secret        string
	tolerance     time.Duration
}

func NewStripeWebhookHandler(sessions *storage.SessionRepository, billingEvents *storage.BillingEventRepository, outboxRepo *outbox.Repository, logger *slog.Logger, secret string, tolerance time.Duration) *StripeWebhookHandler {
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &StripeWebhookHandler{
		sessions:      sessions,
		billingEvents: billingEvents,
		outboxRepo:    outboxRepo,
		logger:        logger,
		secret:        secret,
		tolerance:     tolerance,
	}
}

func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if strings.TrimSpace(h.secret) == "" {
		http.Error(w, "stripe webhook not configured", http.StatusServiceUnavailable)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		http.Error(w, "missing Stripe-Signature header", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1 MiB hard cap
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	evt, err := webhook.ConstructEventWithTolerance(body, sigHeader, h.secret, h.tolerance)
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	evtType := string(evt.Type)
	h.logger.Info("stripe event received", "provider_event_id", evt.ID, "event_type", evtType)

	ctx := r.Context()
	tx, err := h.billingEvents.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Idempotency: ignore replayed Stripe events.
	if err := h.billingEvents.InsertProviderEvent(ctx, tx, storage.ProviderEvent{
		Provider:        "stripe",
		ProviderEventID: evt.ID,
		EventType:       evtType,
		Payload:         body,
	}); err != nil {
		if errors.Is(err, storage.ErrDuplicateProviderEvent) {
			h.logger.Info("stripe event duplicate ignored", "provider_event_id", evt.ID)
			_ = tx.Commit(ctx)
			h.writeStatus(w, "duplicate")
			return
		}
		http.Error(w, "failed to record provider event", http.StatusInternalServerError)
		return
	}

	switch evtType {
	case "checkout.session.completed":
		var checkout stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &checkout); err != nil {
			h.logger.Error("stripe: invalid checkout session payload", "err", err)
			break
		}
		session, err := h.sessions.ConfirmByStripeSession(ctx, tx, checkout.ID)
		if err != nil {
			if storage.IsNotFound(err) {
				// Unknown or already-settled checkout session. Ack so Stripe
				// stops retrying.
				h.logger.Warn("stripe: no pending session for checkout", "checkout_session_id", checkout.ID)
				break
			}
			http.Error(w, "failed to confirm session", http.StatusInternalServerError)
			return
		}
		if err := h.insertEvent(ctx, tx, outbox.TopicSessionConfirmed, session); err != nil {
			http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
			return
		}

	case "checkout.session.expired":
		var checkout stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &checkout); err != nil {
			h.logger.Error("stripe: invalid checkout session payload", "err", err)
			break
		}
		session, err := h.sessions.CancelByStripeSession(ctx, tx, checkout.ID, "checkout_expired")
		if err != nil {
			if storage.IsNotFound(err) {
				break
			}
			http.Error(w, "failed to release session", http.StatusInternalServerError)
			return
		}
		if err := h.insertEvent(ctx, tx, outbox.TopicSessionCancelled, session); err != nil {
			http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	h.writeStatus(w, "ok")
}

func (h *StripeWebhookHandler) insertEvent(ctx context.Context, tx pgx.Tx, topic string, s model.TutoringSession) error {
	evt, err := outbox.SessionEvent(topic, s)
	if err != nil {
		return err
	}
	return h.outboxRepo.Insert(ctx, tx, evt)
}

func (h *StripeWebhookHandler) writeStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": status})
}
