package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quantumlife/lifectx/internal/core"
	"github.com/quantumlife/lifectx/internal/query"
)

// handleListContexts returns the filtered, ordered context view
// GET /api/v1/contexts?status=&source=&from=&to=&search=&sort_by=&sort_order=
func (s *Server) handleListContexts(w http.ResponseWriter, r *http.Request) {
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

	contexts := s.contexts.Query(query.ContextOptions{
		Status: core.ContextStatus(q.Get("status")),
		Source: core.ContextSource(q.Get("source")),
		Range:  rng,
		Search: q.Get("search"),
		Sort:   sort,
	})
	s.respondJSON(w, http.StatusOK, contexts)
}

// handleCreateContext stores a capture as-is, pending extraction
// POST /api/v1/contexts {"data": {"source": "...", "payload": {...}}}
func (s *Server) handleCreateContext(w http.ResponseWriter, r *http.Request) {
	var input core.NewContext
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	c, err := s.contexts.Add(r.Context(), input)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, c)
}

// handleCaptureContext stores a capture and runs date extraction over it
// POST /api/v1/contexts/capture {"source": "...", "payload": {...}}
func (s *Server) handleCaptureContext(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	data, err := core.UnmarshalContextData(raw)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := s.contexts.Capture(r.Context(), data)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	c, err := s.contexts.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateContext(w http.ResponseWriter, r *http.Request) {
	var input core.ContextUpdate
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	c, err := s.contexts.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteContext(w http.ResponseWriter, r *http.Request) {
	if err := s.contexts.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExtractContext runs the built-in extractor on a pending context
// POST /api/v1/contexts/{id}/extract
func (s *Server) handleExtractContext(w http.ResponseWriter, r *http.Request) {
	c, err := s.contexts.Extract(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, c)
}

// handleFailContext records that an external extractor gave up
// POST /api/v1/contexts/{id}/fail
func (s *Server) handleFailContext(w http.ResponseWriter, r *http.Request) {
	c, err := s.contexts.Fail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, c)
}
