package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jkurui/tutorhive/services/booking-service/internal/availability"
	"github.com/jkurui/tutorhive/services/booking-service/internal/storage"
)

type AvailabilityHandler struct {
	repo   *storage.AvailabilityRepository
	logger *slog.Logger
}

func NewAvailabilityHandler(repo *storage.AvailabilityRepository, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{repo: repo, logger: logger}
}

type availabilityResponse struct {
	TutorID         string             `json:"tutor_id"`
	Timezone        string             `json:"timezone"`
	SlotSizeMinutes int                `json:"slot_size_minutes"`
	BufferMinutes   int                `json:"buffer_minutes"`
	Weekly          []weeklyWindowItem `json:"weekly"`
	Exceptions      []exceptionDayItem `json:"exceptions"`
}

type weeklyWindowItem struct {
	Day         string `json:"day"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
}

type exceptionDayItem struct {
	Date    string             `json:"date"`
	Windows []minuteWindowItem `json:"windows"`
}

type minuteWindowItem struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

func toAvailabilityResponse(av availability.TutorAvailability) availabilityResponse {
	resp := availabilityResponse{
		TutorID:         av.TutorID,
		Timezone:        av.Timezone,
		SlotSizeMinutes: av.SlotSizeMinutes,
		BufferMinutes:   av.BufferMinutes,
		Weekly:          []weeklyWindowItem{},
		Exceptions:      []exceptionDayItem{},
	}
	for _, w := range av.Weekly {
		resp.Weekly = append(resp.Weekly, weeklyWindowItem{
			Day:         string(w.Day),
			StartMinute: w.StartMinute,
			EndMinute:   w.EndMinute,
		})
	}
	for _, d := range av.Exceptions {
		item := exceptionDayItem{Date: d.Date, Windows: []minuteWindowItem{}}
		for _, w := range d.Windows {
			item.Windows = append(item.Windows, minuteWindowItem{StartMinute: w.StartMinute, EndMinute: w.EndMinute})
		}
		resp.Exceptions = append(resp.Exceptions, item)
	}
	return resp
}

// Put replaces the caller's availability document. Input windows may arrive
// in any accepted shape; the stored and returned form is always canonical.
func (h *AvailabilityHandler) Put(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tutorID := strings.TrimSpace(r.Header.Get("X-Tutor-Id"))
	if tutorID == "" {
		http.Error(w, "X-Tutor-Id header required", http.StatusBadRequest)
		return
	}

	var in storage.AvailabilityInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	av, err := h.repo.Save(r.Context(), tutorID, in)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidSettings) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("availability save failed", "tutor_id", tutorID, "err", err)
		http.Error(w, "failed to save availability", http.StatusInternalServerError)
		return
	}

	body, err := json.Marshal(toAvailabilityResponse(av))
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *AvailabilityHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tutorID := strings.TrimSpace(r.Header.Get("X-Tutor-Id"))
	if tutorID == "" {
		tutorID = strings.TrimSpace(r.URL.Query().Get("tutor_id"))
	}
	if tutorID == "" {
		http.Error(w, "tutor_id required", http.StatusBadRequest)
		return
	}

	av, ok, err := h.repo.Get(r.Context(), tutorID)
	if err != nil {
		h.logger.Error("availability load failed", "tutor_id", tutorID, "err", err)
		http.Error(w, "failed to load availability", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "no availability configured", http.StatusNotFound)
		return
	}

	body, err := json.Marshal(toAvailabilityResponse(av))
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
