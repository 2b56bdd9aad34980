// Package app wires configuration, persistence and the entity stores into
// one value shared by the CLI and the daemon.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/quantumlife/lifectx/internal/calendar"
	"github.com/quantumlife/lifectx/internal/config"
	"github.com/quantumlife/lifectx/internal/ledger"
	"github.com/quantumlife/lifectx/internal/logging"
	"github.com/quantumlife/lifectx/internal/storage"
	"github.com/quantumlife/lifectx/internal/store"
)

// App holds the opened stores and their backing resources
type App struct {
	Config *config.Config

	DB      *storage.DB // nil with the memory and files drivers
	Backend storage.Backend

	Tasks    *store.TaskStore
	Contexts *store.ContextStore
	Events   *store.EventStore

	Ledger *ledger.Store // nil without a database

	unsubs []func()
}

// Open connects the configured backend, builds the stores and loads their
// collections. Changes are recorded in the ledger under actor.
func Open(ctx context.Context, cfg *config.Config, actor string) (*App, error) {
	if level, err := logging.ParseLevel(cfg.Log.Level); err == nil {
		logging.SetLevel(level)
	} else {
		logging.Warn("%v, using info", err)
	}

	a := &App{Config: cfg}

	switch cfg.Storage.Driver {
	case config.DriverMemory:
		a.Backend = storage.NewMemory()
	case config.DriverFiles:
		files, err := storage.NewFiles(cfg.CollectionsDir())
		if err != nil {
			return nil, err
		}
		a.Backend = files
	default:
		db, err := storage.Open(storage.Config{Path: cfg.DBPath(), Driver: cfg.Storage.Driver})
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		a.DB = db
		a.Backend = storage.NewCollections(db)
		a.Ledger = ledger.NewStore(db.Conn())
	}

	opts := []store.Option{store.WithTransitionGuard(cfg.Lifecycle.Strict)}
	a.Tasks = store.NewTaskStore(a.Backend, opts...)
	a.Contexts = store.NewContextStore(a.Backend, opts...)
	a.Events = store.NewEventStore(a.Backend, opts...)

	if a.Ledger != nil {
		rec := ledger.NewRecorder(a.Ledger, actor)
		a.unsubs = append(a.unsubs,
			a.Tasks.Subscribe(rec.Observe),
			a.Contexts.Subscribe(rec.Observe),
			a.Events.Subscribe(rec.Observe),
		)
	}

	if err := a.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}

	logging.WithFields(map[string]interface{}{
		"driver":   cfg.Storage.Driver,
		"tasks":    a.Tasks.Len(),
		"contexts": a.Contexts.Len(),
		"events":   a.Events.Len(),
	}).Debug("stores loaded")

	return a, nil
}

// Load reloads every store from the backend
func (a *App) Load(ctx context.Context) error {
	if _, err := a.Tasks.LoadAll(ctx); err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	if _, err := a.Contexts.LoadAll(ctx); err != nil {
		return fmt.Errorf("load contexts: %w", err)
	}
	if _, err := a.Events.LoadAll(ctx); err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	return nil
}

// CalendarSyncer returns a syncer for the configured Google calendar, or
// nil when calendar sync is disabled. calendar.ErrNoToken means the user
// has not authorized yet.
func (a *App) CalendarSyncer(ctx context.Context) (*calendar.Syncer, error) {
	if !a.Config.Calendar.Enabled {
		return nil, nil
	}

	token, err := calendar.LoadToken(a.Config.TokenPath())
	if err != nil {
		return nil, err
	}

	oauth := calendar.NewOAuthClient(calendar.OAuthConfigFrom(a.Config.Calendar))
	client, err := calendar.NewTokenClient(ctx, oauth, token, a.Config.Calendar.CalendarID)
	if err != nil {
		return nil, err
	}
	return calendar.NewSyncer(a.Events, client), nil
}

// Close detaches the ledger and closes the database
func (a *App) Close() error {
	for _, unsub := range a.unsubs {
		unsub()
	}
	a.unsubs = nil

	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// IsUnauthorized reports whether err means calendar sync needs `calendar auth`
func IsUnauthorized(err error) bool {
	return errors.Is(err, calendar.ErrNoToken)
}
