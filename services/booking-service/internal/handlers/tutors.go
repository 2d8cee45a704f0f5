package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/jkurui/tutorhive/services/booking-service/internal/storage"
)

type TutorHandler struct {
	repo   *storage.TutorRepository
	logger *slog.Logger
}

func NewTutorHandler(repo *storage.TutorRepository, logger *slog.Logger) *TutorHandler {
	return &TutorHandler{repo: repo, logger: logger}
}

type upsertTutorRequest struct {
	DisplayName string `json:"display_name"`
	IsListed    bool   `json:"is_listed"`
}

type tutorItem struct {
	TutorID     string `json:"tutor_id"`
	DisplayName string `json:"display_name"`
	IsListed    bool   `json:"is_listed,omitempty"`
}

// Upsert creates or updates the caller's directory entry. Delisting a tutor
// hides them from the public list and fails future bookings, but existing
// sessions are untouched.
func (h *TutorHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tutorID := strings.TrimSpace(r.Header.Get("X-Tutor-Id"))
	if tutorID == "" {
		http.Error(w, "X-Tutor-Id header required", http.StatusBadRequest)
		return
	}

	var req upsertTutorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.DisplayName == "" {
		http.Error(w, "display_name required", http.StatusBadRequest)
		return
	}

	if err := h.repo.Upsert(r.Context(), tutorID, req.DisplayName, req.IsListed); err != nil {
		h.logger.Error("tutor upsert failed", "tutor_id", tutorID, "err", err)
		http.Error(w, "failed to save tutor", http.StatusInternalServerError)
		return
	}

	body, _ := json.Marshal(tutorItem{TutorID: tutorID, DisplayName: req.DisplayName, IsListed: req.IsListed})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// PublicList returns listed tutors only.
func (h *TutorHandler) PublicList(w http.ResponseWriter, r *http.Request) {
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

	tutors, err := h.repo.ListListed(r.Context(), limit)
	if err != nil {
		h.logger.Error("tutor list failed", "err", err)
		http.Error(w, "failed to list tutors", http.StatusInternalServerError)
		return
	}

	items := make([]tutorItem, 0, len(tutors))
	for _, t := range tutors {
		items = append(items, tutorItem{TutorID: t.ID, DisplayName: t.DisplayName})
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
