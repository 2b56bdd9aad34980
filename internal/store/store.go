// Package store holds the in-process copy of each entity family and keeps it
// in step with the persistence backend.
//
// A Store owns one collection. Mutations are serialized, persist the whole
// next collection through the backend, and only then replace the in-memory
// copy, so a failed call never leaves a partial change behind. The most
// recent failure stays readable through Err until ClearError.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantumlife/lifectx/internal/core"
	"github.com/quantumlife/lifectx/internal/logging"
	"github.com/quantumlife/lifectx/internal/storage"
)

// Op names a collection change
type Op string

const (
	OpLoaded  Op = "loaded"
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpRemoved Op = "removed"
)

// Change describes one successful mutation. Record is a copy of the record
// after the change; it is nil for OpLoaded and OpRemoved.
type Change struct {
	Family string `json:"family"`
	Op     Op     `json:"op"`
	ID     string `json:"id,omitempty"`
	Record any    `json:"record,omitempty"`
}

// Family binds a record type E, its create-input C and update-input U to the
// pure per-family functions in core.
type Family[E, C, U any] struct {
	Name       string // singular, used in errors and change events
	Key        string // backend collection key
	ID         func(E) string
	UpdatedAt  func(E) time.Time
	Clone      func(E) E
	New        func(in C, id string, now time.Time) E
	Validate   func(E) error
	Merge      func(cur E, u U, now time.Time) (E, error)
	Transition func(cur, next E) error
}

// Option configures a Store
type Option func(*options)

type options struct {
	now    func() time.Time
	newID  func() string
	strict bool
}

// WithClock overrides the time source used for createdAt/updatedAt
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides record id generation
func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

// WithTransitionGuard makes Update reject status changes the lifecycle
// tables do not allow. Without it transitions are not checked.
func WithTransitionGuard(enabled bool) Option {
	return func(o *options) { o.strict = enabled }
}

func buildOptions(opts []Option) options {
	o := options{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Store is the authoritative in-process copy of one entity family
type Store[E, C, U any] struct {
	fam     Family[E, C, U]
	backend storage.Backend
	opts    options

	// op serializes mutations across the persistence call
	op sync.Mutex

	mu       sync.RWMutex
	items    []E
	selected *E
	lastErr  error
	subs     map[int]func(Change)
	nextSub  int
}

// New creates an empty store for fam over backend. Call LoadAll to fill it.
func New[E, C, U any](fam Family[E, C, U], backend storage.Backend, opts ...Option) *Store[E, C, U] {
	return &Store[E, C, U]{
		fam:     fam,
		backend: backend,
		opts:    buildOptions(opts),
		subs:    make(map[int]func(Change)),
	}
}

// Family returns the family name
func (s *Store[E, C, U]) Family() string {
	return s.fam.Name
}

// LoadAll replaces the in-memory collection with the backend's copy. A
// missing document loads as an empty collection.
func (s *Store[E, C, U]) LoadAll(ctx context.Context) ([]E, error) {
	s.op.Lock()
	defer s.op.Unlock()

	doc, err := s.backend.LoadCollection(ctx, s.fam.Key)
	if err != nil {
		return nil, s.fail("load", "", storageError(err))
	}

	var items []E
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &items); err != nil {
			return nil, s.fail("load", "", storageError(fmt.Errorf("decode %s: %w", s.fam.Key, err)))
		}
	}
	if items == nil {
		items = []E{}
	}

	s.mu.Lock()
	s.items = items
	if s.selected != nil {
		if i := s.indexLocked(s.fam.ID(*s.selected)); i >= 0 {
			sel := s.fam.Clone(items[i])
			s.selected = &sel
		} else {
			s.selected = nil
		}
	}
	out := s.cloneAllLocked()
	s.mu.Unlock()

	s.publish(Change{Family: s.fam.Name, Op: OpLoaded})
	return out, nil
}

// Add applies defaults to in, validates the draft, persists it and appends
// it to the collection.
func (s *Store[E, C, U]) Add(ctx context.Context, in C) (E, error) {
	s.op.Lock()
	defer s.op.Unlock()

	var zero E
	rec := s.fam.New(in, s.opts.newID(), s.opts.now())
	if err := s.fam.Validate(rec); err != nil {
		return zero, s.fail("add", "", err)
	}

	next := append(s.snapshot(), rec)
	if err := s.save(ctx, next); err != nil {
		return zero, s.fail("add", s.fam.ID(rec), err)
	}
	s.commit(next)

	s.publish(Change{Family: s.fam.Name, Op: OpCreated, ID: s.fam.ID(rec), Record: s.fam.Clone(rec)})
	return s.fam.Clone(rec), nil
}

// Update merges u onto the record with the given id, revalidates it and
// persists the result. updatedAt never moves backwards.
func (s *Store[E, C, U]) Update(ctx context.Context, id string, u U) (E, error) {
	s.op.Lock()
	defer s.op.Unlock()

	var zero E
	next := s.snapshot()
	i := slices.IndexFunc(next, func(e E) bool { return s.fam.ID(e) == id })
	if i < 0 {
		return zero, s.fail("update", id, core.NotFound(s.fam.Name, id))
	}
	cur := next[i]

	now := s.opts.now()
	if prev := s.fam.UpdatedAt(cur); now.Before(prev) {
		now = prev
	}

	rec, err := s.fam.Merge(cur, u, now)
	if err != nil {
		return zero, s.fail("update", id, err)
	}
	if err := s.fam.Validate(rec); err != nil {
		return zero, s.fail("update", id, err)
	}
	if s.opts.strict && s.fam.Transition != nil {
		if err := s.fam.Transition(cur, rec); err != nil {
			return zero, s.fail("update", id, err)
		}
	}

	next[i] = rec
	if err := s.save(ctx, next); err != nil {
		return zero, s.fail("update", id, err)
	}
	s.commit(next)

	s.publish(Change{Family: s.fam.Name, Op: OpUpdated, ID: id, Record: s.fam.Clone(rec)})
	return s.fam.Clone(rec), nil
}

// Remove deletes the record with the given id and persists the removal
func (s *Store[E, C, U]) Remove(ctx context.Context, id string) error {
	s.op.Lock()
	defer s.op.Unlock()

	cur := s.snapshot()
	next := slices.DeleteFunc(slices.Clone(cur), func(e E) bool { return s.fam.ID(e) == id })
	if len(next) == len(cur) {
		return s.fail("remove", id, core.NotFound(s.fam.Name, id))
	}
	if err := s.save(ctx, next); err != nil {
		return s.fail("remove", id, err)
	}
	s.commit(next)

	s.publish(Change{Family: s.fam.Name, Op: OpRemoved, ID: id})
	return nil
}

// Get returns a copy of the record with the given id
func (s *Store[E, C, U]) Get(id string) (E, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexLocked(id); i >= 0 {
		return s.fam.Clone(s.items[i]), nil
	}
	var zero E
	return zero, core.NotFound(s.fam.Name, id)
}

// List returns a copy of the collection in stored order
func (s *Store[E, C, U]) List() []E {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cloneAllLocked()
}

// Len returns the number of records held
func (s *Store[E, C, U]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// SetSelected sets the current-selection cursor; nil clears it. The cursor
// is not persisted.
func (s *Store[E, C, U]) SetSelected(e *E) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e == nil {
		s.selected = nil
		return
	}
	sel := s.fam.Clone(*e)
	s.selected = &sel
}

// Selected returns the current selection, or nil
func (s *Store[E, C, U]) Selected() *E {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return nil
	}
	sel := s.fam.Clone(*s.selected)
	return &sel
}

// Err returns the most recent failure, or nil
func (s *Store[E, C, U]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// ClearError acknowledges the recorded failure without touching data
func (s *Store[E, C, U]) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = nil
}

// Subscribe registers fn for every successful change. fn runs on the
// mutating goroutine before the mutation returns, so it may read the store
// but must not mutate it. The returned func removes the subscription.
func (s *Store[E, C, U]) Subscribe(fn func(Change)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// snapshot returns a shallow copy of the collection for building the next state
func (s *Store[E, C, U]) snapshot() []E {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

func (s *Store[E, C, U]) save(ctx context.Context, items []E) error {
	doc, err := json.Marshal(items)
	if err != nil {
		return storageError(fmt.Errorf("encode %s: %w", s.fam.Key, err))
	}
	if err := s.backend.SaveCollection(ctx, s.fam.Key, doc); err != nil {
		return storageError(err)
	}
	return nil
}

// commit installs next as the collection and keeps the cursor pointing at
// the current version of the selected record.
func (s *Store[E, C, U]) commit(next []E) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = next
	if s.selected == nil {
		return
	}
	if i := s.indexLocked(s.fam.ID(*s.selected)); i >= 0 {
		sel := s.fam.Clone(next[i])
		s.selected = &sel
	} else {
		s.selected = nil
	}
}

func (s *Store[E, C, U]) fail(op, id string, err error) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()

	log := logging.WithFields(map[string]interface{}{
		"family": s.fam.Name,
		"op":     op,
		"id":     id,
	})
	if errors.Is(err, core.ErrStorageUnavailable) {
		log.Warn("persistence failed: %v", err)
	} else {
		log.Debug("rejected: %v", err)
	}
	return err
}

func (s *Store[E, C, U]) publish(ch Change) {
	s.mu.RLock()
	subs := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(ch)
	}
}

func (s *Store[E, C, U]) indexLocked(id string) int {
	return slices.IndexFunc(s.items, func(e E) bool { return s.fam.ID(e) == id })
}

func (s *Store[E, C, U]) cloneAllLocked() []E {
	out := make([]E, len(s.items))
	for i, e := range s.items {
		out[i] = s.fam.Clone(e)
	}
	return out
}

func storageError(err error) error {
	if errors.Is(err, core.ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
}
