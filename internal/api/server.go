// Package api provides the HTTP API server for lifectx.
//
// Handlers are thin adapters over the entity stores: they decode input,
// call one store operation and map its error kind to a status code.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/quantumlife/lifectx/internal/calendar"
	"github.com/quantumlife/lifectx/internal/core"
	"github.com/quantumlife/lifectx/internal/ledger"
	"github.com/quantumlife/lifectx/internal/logging"
	"github.com/quantumlife/lifectx/internal/scheduler"
	"github.com/quantumlife/lifectx/internal/store"
)

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	wsHub      *WebSocketHub

	// Stores
	tasks    *store.TaskStore
	contexts *store.ContextStore
	events   *store.EventStore

	// Optional collaborators
	ledgerStore *ledger.Store
	syncer      *calendar.Syncer
	jobs        *scheduler.Scheduler

	now    func() time.Time
	unsubs []func()
}

// Config for the server
type Config struct {
	Addr     string
	Tasks    *store.TaskStore
	Contexts *store.ContextStore
	Events   *store.EventStore

	// LedgerStore enables the read-only /ledger routes
	LedgerStore *ledger.Store
	// Syncer enables calendar sync routes for social events
	Syncer *calendar.Syncer
	// Jobs enables the /jobs routes
	Jobs *scheduler.Scheduler

	Now func() time.Time
}

// New creates a new API server and subscribes its change feed to the stores
func New(cfg Config) *Server {
	s := &Server{
		tasks:       cfg.Tasks,
		contexts:    cfg.Contexts,
		events:      cfg.Events,
		ledgerStore: cfg.LedgerStore,
		syncer:      cfg.Syncer,
		jobs:        cfg.Jobs,
		now:         cfg.Now,
		wsHub:       NewWebSocketHub(),
	}
	if s.now == nil {
		s.now = time.Now
	}

	feed := func(ch store.Change) { s.wsHub.Broadcast(MessageForChange(ch, s.now())) }
	s.unsubs = append(s.unsubs,
		s.tasks.Subscribe(feed),
		s.contexts.Subscribe(feed),
		s.events.Subscribe(feed),
	)

	s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures all routes
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/health", s.handleHealth)

		// Store state
		r.Get("/stores", s.handleGetStores)
		r.Post("/stores/reload", s.handleReload)
		r.Delete("/stores/{family}/error", s.handleClearError)

		// Tasks
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)
			r.Get("/{id}", s.handleGetTask)
			r.Patch("/{id}", s.handleUpdateTask)
			r.Delete("/{id}", s.handleDeleteTask)
			r.Post("/{id}/toggle", s.handleToggleTask)
		})

		// Contexts
		r.Route("/contexts", func(r chi.Router) {
			r.Get("/", s.handleListContexts)
			r.Post("/", s.handleCreateContext)
			r.Post("/capture", s.handleCaptureContext)
			r.Get("/{id}", s.handleGetContext)
			r.Patch("/{id}", s.handleUpdateContext)
			r.Delete("/{id}", s.handleDeleteContext)
			r.Post("/{id}/extract", s.handleExtractContext)
			r.Post("/{id}/fail", s.handleFailContext)
		})

		// Social events
		r.Route("/events", func(r chi.Router) {
			r.Get("/", s.handleListEvents)
			r.Post("/", s.handleCreateEvent)
			r.Get("/{id}", s.handleGetEvent)
			r.Patch("/{id}", s.handleUpdateEvent)
			r.Delete("/{id}", s.handleDeleteEvent)
			r.Get("/{id}/gift", s.handleSuggestGift)
			r.Post("/{id}/gift", s.handleMarkGiftSent)
			r.Put("/{id}/reminder", s.handleSetReminder)
			r.Delete("/{id}/reminder", s.handleClearReminder)
			if s.syncer != nil {
				r.Post("/sync", s.handleSyncAllEvents)
				r.Post("/{id}/sync", s.handleSyncEvent)
				r.Delete("/{id}/sync", s.handleUnlinkEvent)
			}
		})

		// Stateless helpers
		r.Get("/gift/recommend", s.handleRecommendGift)
		r.Post("/dates/parse", s.handleParseDate)
		r.Get("/reminders", s.handleReminders)

		// Periodic jobs
		if s.jobs != nil {
			r.Get("/jobs", s.handleListJobs)
			r.Post("/jobs/{name}/run", s.handleRunJob)
		}

		// Ledger API (read-only audit trail)
		if s.ledgerStore != nil {
			s.registerLedgerRoutes(r)
		}
	})

	// WebSocket change feed
	r.Handle("/ws", s.wsHub)

	s.router = r
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	go s.wsHub.Run()

	logging.WithField("addr", s.httpServer.Addr).Info("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the server and detaches it from the stores
func (s *Server) Stop(ctx context.Context) error {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.wsHub.Stop()
	return s.httpServer.Shutdown(ctx)
}

// Broadcast sends a message to all WebSocket clients
func (s *Server) Broadcast(msgType string, data interface{}) {
	s.wsHub.Broadcast(WebSocketMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: s.now(),
	})
}

// --- Response helpers ---

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondStoreError maps a store error kind to its status code
func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	s.respondError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v, rejecting unknown fields
func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// requestLogger logs one line per request through the package logger
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		logging.WithFields(map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

// --- Store state ---

type storeStatus struct {
	Family    string `json:"family"`
	Count     int    `json:"count"`
	LastError string `json:"last_error,omitempty"`
}

type storeView interface {
	Family() string
	Len() int
	Err() error
	ClearError()
}

func (s *Server) storeViews() []storeView {
	return []storeView{s.tasks, s.contexts, s.events}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"ws_clients": s.wsHub.ClientCount(),
	})
}

func (s *Server) handleGetStores(w http.ResponseWriter, r *http.Request) {
	var out []storeStatus
	for _, v := range s.storeViews() {
		st := storeStatus{Family: v.Family(), Count: v.Len()}
		if err := v.Err(); err != nil {
			st.LastError = err.Error()
		}
		out = append(out, st)
	}
	s.respondJSON(w, http.StatusOK, out)
}

// handleReload replaces every store's collection with the persisted copy.
// Stores are reloaded in order and the first failure is returned.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := s.tasks.LoadAll(ctx); err != nil {
		s.respondStoreError(w, err)
		return
	}
	if _, err := s.contexts.LoadAll(ctx); err != nil {
		s.respondStoreError(w, err)
		return
	}
	if _, err := s.events.LoadAll(ctx); err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.handleGetStores(w, r)
}

func (s *Server) handleClearError(w http.ResponseWriter, r *http.Request) {
	family := chi.URLParam(r, "family")
	for _, v := range s.storeViews() {
		if v.Family() == family {
			v.ClearError()
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	s.respondError(w, http.StatusNotFound, "unknown store "+family)
}
