package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quantumlife/lifectx/internal/core"
	"github.com/quantumlife/lifectx/internal/query"
)

// handleListTasks returns the filtered, ordered task view
// GET /api/v1/tasks?status=&category=&priority=&from=&to=&search=&sort_by=&sort_order=
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
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

	tasks := s.tasks.Query(query.TaskOptions{
		Status:   core.TaskStatus(q.Get("status")),
		Category: core.TaskCategory(q.Get("category")),
		Priority: core.Priority(q.Get("priority")),
		Range:    rng,
		Search:   q.Get("search"),
		Sort:     sort,
	})
	s.respondJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var input core.NewTask
	if err := decode(r, &input); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	task, err := s.tasks.Add(r.Context(), input)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var input core.TaskUpdate
	if err := decode(r, &input); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	task, err := s.tasks.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.tasks.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleToggleTask flips a task between active and completed
// POST /api/v1/tasks/{id}/toggle
func (s *Server) handleToggleTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.ToggleComplete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, task)
}
