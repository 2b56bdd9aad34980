package store

import (
	"context"
	"time"

	"github.com/quantumlife/lifectx/internal/core"
	"github.com/quantumlife/lifectx/internal/dateparse"
	"github.com/quantumlife/lifectx/internal/query"
	"github.com/quantumlife/lifectx/internal/storage"
)

// ContextFamily binds core.Context to its pure functions
var ContextFamily = Family[core.Context, core.NewContext, core.ContextUpdate]{
	Name:       "context",
	Key:        ContextsKey,
	ID:         func(c core.Context) string { return c.ID },
	UpdatedAt:  func(c core.Context) time.Time { return c.UpdatedAt },
	Clone:      core.Context.Clone,
	New:        core.ApplyContextDefaults,
	Validate:   core.ValidateContext,
	Merge:      core.MergeContext,
	Transition: core.CheckContextTransition,
}

// ContextStore is the store for captured contexts
type ContextStore struct {
	*Store[core.Context, core.NewContext, core.ContextUpdate]
}

// NewContextStore creates a context store over backend
func NewContextStore(backend storage.Backend, opts ...Option) *ContextStore {
	return &ContextStore{Store: New(ContextFamily, backend, opts...)}
}

// Query filters and orders the current contexts
func (s *ContextStore) Query(opts query.ContextOptions) []core.Context {
	return query.Contexts(s.List(), opts)
}

// Capture stores a payload from a capture collaborator and runs the built-in
// date extraction over it. The returned context is completed, with a date
// entity when one was found.
func (s *ContextStore) Capture(ctx context.Context, data core.ContextData) (core.Context, error) {
	c, err := s.Add(ctx, core.NewContext{Data: data})
	if err != nil {
		return core.Context{}, err
	}
	return s.Extract(ctx, c.ID)
}

// Extract moves a pending context through processing and completes it with
// the entities found in its text.
func (s *ContextStore) Extract(ctx context.Context, id string) (core.Context, error) {
	c, err := s.StartProcessing(ctx, id)
	if err != nil {
		return core.Context{}, err
	}
	return s.Complete(ctx, id, s.extractEntities(c.Data))
}

// StartProcessing marks a context as being worked on by an extractor
func (s *ContextStore) StartProcessing(ctx context.Context, id string) (core.Context, error) {
	st := core.ContextProcessing
	return s.Update(ctx, id, core.ContextUpdate{Status: &st})
}

// Complete stores the extraction result and finishes the context
func (s *ContextStore) Complete(ctx context.Context, id string, entities []core.Entity) (core.Context, error) {
	st := core.ContextCompleted
	if entities == nil {
		entities = []core.Entity{}
	}
	return s.Update(ctx, id, core.ContextUpdate{Status: &st, Entities: &entities})
}

// Fail marks extraction as failed
func (s *ContextStore) Fail(ctx context.Context, id string) (core.Context, error) {
	st := core.ContextFailed
	return s.Update(ctx, id, core.ContextUpdate{Status: &st})
}

func (s *ContextStore) extractEntities(data core.ContextData) []core.Entity {
	if data == nil {
		return nil
	}
	text := core.ContextText(data)
	r, ok := dateparse.Parse(text, s.opts.now())
	if !ok {
		return nil
	}
	return []core.Entity{{
		ID:         s.opts.newID(),
		Type:       core.EntityDate,
		Text:       r.RawText,
		Start:      r.Start,
		End:        r.End,
		Confidence: r.Confidence,
	}}
}
