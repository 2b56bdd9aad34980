package calendar

import (
	"context"
	"errors"
	"fmt"

	"github.com/quantumlife/lifectx/internal/core"
	"github.com/quantumlife/lifectx/internal/logging"
	"github.com/quantumlife/lifectx/internal/store"
)

// Remote is the subset of the Events API the syncer needs
type Remote interface {
	Insert(ctx context.Context, e core.SocialEvent) (string, error)
	Update(ctx context.Context, remoteID string, e core.SocialEvent) error
	Delete(ctx context.Context, remoteID string) error
}

// Syncer mirrors social events into a remote calendar and records the
// remote id in the event's calendarEventId
type Syncer struct {
	events *store.EventStore
	remote Remote
}

// NewSyncer creates a syncer writing through events
func NewSyncer(events *store.EventStore, remote Remote) *Syncer {
	return &Syncer{events: events, remote: remote}
}

// SyncResult summarizes a SyncAll run
type SyncResult struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Unlinked int `json:"unlinked"`
	Failed   int `json:"failed"`
}

// Sync pushes one event. A linked event is updated in place; an unlinked
// one, or one whose remote copy has disappeared, is created and linked.
// Cancelled events are unlinked instead.
func (s *Syncer) Sync(ctx context.Context, id string) (core.SocialEvent, error) {
	e, _, err := s.sync(ctx, id)
	return e, err
}

func (s *Syncer) sync(ctx context.Context, id string) (core.SocialEvent, store.Op, error) {
	e, err := s.events.Get(id)
	if err != nil {
		return core.SocialEvent{}, "", err
	}

	if e.Status == core.EventCancelled {
		if e.CalendarEventID == nil {
			return e, "", nil
		}
		e, err = s.Unlink(ctx, id)
		return e, store.OpRemoved, err
	}

	if e.CalendarEventID != nil {
		err := s.remote.Update(ctx, *e.CalendarEventID, e)
		if err == nil {
			return e, store.OpUpdated, nil
		}
		if !IsGone(err) {
			return e, "", err
		}
		logging.WithField("event", id).Info("remote calendar event %s is gone, recreating", *e.CalendarEventID)
	}

	remoteID, err := s.remote.Insert(ctx, e)
	if err != nil {
		return e, "", err
	}
	e, err = s.events.Update(ctx, id, core.SocialEventUpdate{CalendarEventID: &remoteID})
	if err != nil {
		return e, "", fmt.Errorf("link calendar event %s: %w", remoteID, err)
	}
	return e, store.OpCreated, nil
}

// SyncAll pushes every event in the store. Failures are counted and
// joined into the returned error; the remaining events are still synced.
func (s *Syncer) SyncAll(ctx context.Context) (SyncResult, error) {
	var (
		res  SyncResult
		errs []error
	)
	for _, e := range s.events.List() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		_, op, err := s.sync(ctx, e.ID)
		if err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("event %s: %w", e.ID, err))
			continue
		}
		switch op {
		case store.OpCreated:
			res.Created++
		case store.OpUpdated:
			res.Updated++
		case store.OpRemoved:
			res.Unlinked++
		}
	}

	logging.WithFields(map[string]interface{}{
		"created":  res.Created,
		"updated":  res.Updated,
		"unlinked": res.Unlinked,
		"failed":   res.Failed,
	}).Info("calendar sync finished")

	return res, errors.Join(errs...)
}

// Unlink deletes the remote event and clears calendarEventId
func (s *Syncer) Unlink(ctx context.Context, id string) (core.SocialEvent, error) {
	e, err := s.events.Get(id)
	if err != nil {
		return core.SocialEvent{}, err
	}
	if e.CalendarEventID == nil {
		return e, nil
	}
	if err := s.remote.Delete(ctx, *e.CalendarEventID); err != nil {
		return e, err
	}
	return s.events.Update(ctx, id, core.SocialEventUpdate{ClearCalendarEventID: true})
}
