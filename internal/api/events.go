package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quantumlife/lifectx/internal/core"
	"github.com/quantumlife/lifectx/internal/query"
)

// handleListEvents returns the filtered, ordered social event view
// GET /api/v1/events?status=&type=&priority=&from=&to=&search=&sort_by=&sort_order=
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	rng, err := parseRange(q)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sort, err := parseSort(q)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	events := s.events.Query(query.EventOptions{
		Status:   core.EventStatus(q.Get("status")),
		Type:     core.EventType(q.Get("type")),
		Priority: core.Priority(q.Get("priority")),
		Range:    rng,
		Search:   q.Get("search"),
		Sort:     sort,
	})
	s.respondJSON(w, http.StatusOK, events)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var input core.NewSocialEvent
	if err := decode(r, &input); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	e, err := s.events.Add(r.Context(), input)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, e)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := s.events.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, e)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var input core.SocialEventUpdate
	if err := decode(r, &input); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	e, err := s.events.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.events.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSuggestGift returns the recommended amount for a stored event
// GET /api/v1/events/{id}/gift
func (s *Server) handleSuggestGift(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	amount, err := s.events.SuggestGift(id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"event_id": id,
		"amount":   amount,
	})
}

// handleMarkGiftSent records a sent gift
// POST /api/v1/events/{id}/gift {"amount": 100000, "sent_at": "..."}
func (s *Server) handleMarkGiftSent(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Amount *int       `json:"amount"`
		SentAt *time.Time `json:"sent_at"`
	}
	// An empty body keeps the stored amount and uses the current time
	if err := decode(r, &input); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	at := s.now()
	if input.SentAt != nil {
		at = *input.SentAt
	}

	e, err := s.events.MarkGiftSent(r.Context(), chi.URLParam(r, "id"), input.Amount, at)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, e)
}

// handleSetReminder stores a reminder intent
// PUT /api/v1/events/{id}/reminder {"at": "..."}
func (s *Server) handleSetReminder(w http.ResponseWriter, r *http.Request) {
	var input struct {
		At time.Time `json:"at"`
	}
	if err := decode(r, &input); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if input.At.IsZero() {
		s.respondError(w, http.StatusBadRequest, "at is required")
		return
	}

	e, err := s.events.SetReminder(r.Context(), chi.URLParam(r, "id"), &input.At)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, e)
}

func (s *Server) handleClearReminder(w http.ResponseWriter, r *http.Request) {
	e, err := s.events.SetReminder(r.Context(), chi.URLParam(r, "id"), nil)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, e)
}

// --- Calendar sync ---

func (s *Server) handleSyncEvent(w http.ResponseWriter, r *http.Request) {
	e, err := s.syncer.Sync(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, e)
}

func (s *Server) handleSyncAllEvents(w http.ResponseWriter, r *http.Request) {
	res, err := s.syncer.SyncAll(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleUnlinkEvent(w http.ResponseWriter, r *http.Request) {
	e, err := s.syncer.Unlink(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, e)
}
