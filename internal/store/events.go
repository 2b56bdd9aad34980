package store

import (
	"context"
	"time"

	"github.com/quantumlife/lifectx/internal/core"
	"github.com/quantumlife/lifectx/internal/gift"
	"github.com/quantumlife/lifectx/internal/query"
	"github.com/quantumlife/lifectx/internal/storage"
)

// EventFamily binds core.SocialEvent to its pure functions
var EventFamily = Family[core.SocialEvent, core.NewSocialEvent, core.SocialEventUpdate]{
	Name:      "event",
	Key:       EventsKey,
	ID:        func(e core.SocialEvent) string { return e.ID },
	UpdatedAt: func(e core.SocialEvent) time.Time { return e.UpdatedAt },
	Clone:     core.SocialEvent.Clone,
	New:       core.ApplyEventDefaults,
	Validate:  core.ValidateEvent,
	Merge: func(cur core.SocialEvent, u core.SocialEventUpdate, now time.Time) (core.SocialEvent, error) {
		return core.MergeEvent(cur, u, now), nil
	},
	Transition: core.CheckEventTransition,
}

// EventStore is the store for social events
type EventStore struct {
	*Store[core.SocialEvent, core.NewSocialEvent, core.SocialEventUpdate]
}

// NewEventStore creates a social event store over backend
func NewEventStore(backend storage.Backend, opts ...Option) *EventStore {
	return &EventStore{Store: New(EventFamily, backend, opts...)}
}

// Query filters and orders the current events
func (s *EventStore) Query(opts query.EventOptions) []core.SocialEvent {
	return query.Events(s.List(), opts)
}

// SuggestGift returns the recommended amount for a stored event
func (s *EventStore) SuggestGift(id string) (int, error) {
	e, err := s.Get(id)
	if err != nil {
		return 0, err
	}
	return gift.ForEvent(e), nil
}

// MarkGiftSent records that a gift went out at the given time. A nil amount
// keeps the stored giftAmount, or fills in the recommendation when none is
// stored.
func (s *EventStore) MarkGiftSent(ctx context.Context, id string, amount *int, at time.Time) (core.SocialEvent, error) {
	cur, err := s.Get(id)
	if err != nil {
		s.fail("gift", id, err)
		return core.SocialEvent{}, err
	}
	if amount == nil && cur.GiftAmount == nil {
		v := gift.ForEvent(cur)
		amount = &v
	}
	sent := true
	return s.Update(ctx, id, core.SocialEventUpdate{
		GiftSent:     &sent,
		GiftSentDate: &at,
		GiftAmount:   amount,
	})
}

// SetReminder stores a reminder intent for the event; nil clears it
func (s *EventStore) SetReminder(ctx context.Context, id string, at *time.Time) (core.SocialEvent, error) {
	set := at != nil
	return s.Update(ctx, id, core.SocialEventUpdate{
		ReminderSet:  &set,
		ReminderDate: at,
	})
}
