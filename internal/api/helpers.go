package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quantumlife/lifectx/internal/core"
	"github.com/quantumlife/lifectx/internal/dateparse"
	"github.com/quantumlife/lifectx/internal/gift"
	"github.com/quantumlife/lifectx/internal/reminders"
)

const defaultReminderWindow = 7 * 24 * time.Hour

// handleRecommendGift evaluates the gift table without a stored event
// GET /api/v1/gift/recommend?type=wedding&relationship=family
func (s *Server) handleRecommendGift(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	eventType := core.EventType(q.Get("type"))
	relationship := q.Get("relationship")

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"type":         eventType,
		"relationship": relationship,
		"amount":       gift.Recommend(eventType, relationship),
	})
}

// handleParseDate runs the date extractor over text. No match is a normal
// result and answers 200 with "found": false.
// POST /api/v1/dates/parse {"text": "..."}
func (s *Server) handleParseDate(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Text string `json:"text"`
	}
	if err := decode(r, &input); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	res, ok := dateparse.Parse(input.Text, s.now())
	if !ok {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"found": false})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"found":  true,
		"result": res,
	})
}

// handleReminders lists the alerts due in the coming window
// GET /api/v1/reminders?window=72h
func (s *Server) handleReminders(w http.ResponseWriter, r *http.Request) {
	window := defaultReminderWindow
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			s.respondError(w, http.StatusBadRequest, "invalid window")
			return
		}
		window = d
	}

	intents := reminders.Due(s.tasks.List(), s.events.List(), s.now(), window)
	if intents == nil {
		intents = []reminders.Intent{}
	}
	s.respondJSON(w, http.StatusOK, intents)
}

// AnnounceReminders broadcasts a "reminder.due" message for each alert
// falling in the next window and returns how many were sent. The daemon's
// reminder sweep calls it once per window.
func (s *Server) AnnounceReminders(window time.Duration) int {
	intents := reminders.Due(s.tasks.List(), s.events.List(), s.now(), window)
	for _, in := range intents {
		s.Broadcast("reminder.due", in)
	}
	return len(intents)
}

// handleListJobs reports the periodic jobs and their last runs
// GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.jobs.Stats())
}

// handleRunJob runs one job immediately and waits for it
// POST /api/v1/jobs/{name}/run
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.hasJob(name) {
		s.respondError(w, http.StatusNotFound, "unknown job "+name)
		return
	}
	if err := s.jobs.RunNow(r.Context(), name); err != nil {
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.handleListJobs(w, r)
}

func (s *Server) hasJob(name string) bool {
	for _, st := range s.jobs.Stats() {
		if st.Name == name {
			return true
		}
	}
	return false
}
