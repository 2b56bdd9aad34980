package core

import (
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// SOCIAL EVENT - an obligation such as a wedding or a funeral
// -----------------------------------------------------------------------------

// EventType is the kind of social occasion
type EventType string

const (
	EventWedding          EventType = "wedding"
	EventFuneral          EventType = "funeral"
	EventFirstBirthday    EventType = "first_birthday"
	EventSixtiethBirthday EventType = "sixtieth_birthday"
	EventBirthday         EventType = "birthday"
	EventGraduation       EventType = "graduation"
	EventOther            EventType = "etc"
)

// EventStatus represents where a social event is in its lifecycle
type EventStatus string

const (
	EventPending   EventStatus = "pending"
	EventConfirmed EventStatus = "confirmed"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

// Valid reports whether s is a known event status
func (s EventStatus) Valid() bool {
	switch s {
	case EventPending, EventConfirmed, EventCompleted, EventCancelled:
		return true
	}
	return false
}

// Location is where an event takes place
type Location struct {
	Name      string   `json:"name"`
	Address   string   `json:"address,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Contact is the person an event is about
type Contact struct {
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	Relationship string `json:"relationship,omitempty"`
}

// SocialEvent is a tracked social obligation.
// GiftSentDate is only set when GiftSent is true, and ReminderDate only
// when ReminderSet is true.
type SocialEvent struct {
	ID              string      `json:"id"`
	Type            EventType   `json:"type"`
	Status          EventStatus `json:"status"`
	Priority        Priority    `json:"priority"`
	Title           string      `json:"title"`
	Description     *string     `json:"description"`
	EventDate       time.Time   `json:"event_date"`
	Location        *Location   `json:"location"`
	Contact         *Contact    `json:"contact"`
	GiftAmount      *int        `json:"gift_amount"` // Whole currency units
	GiftSent        bool        `json:"gift_sent"`
	GiftSentDate    *time.Time  `json:"gift_sent_date"`
	ReminderSet     bool        `json:"reminder_set"`
	ReminderDate    *time.Time  `json:"reminder_date"`
	CalendarEventID *string     `json:"calendar_event_id"`
	Notes           *string     `json:"notes"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Clone returns a copy that shares no memory with e
func (e SocialEvent) Clone() SocialEvent {
	e.Description = clonePtr(e.Description)
	if e.Location != nil {
		loc := *e.Location
		loc.Latitude = clonePtr(loc.Latitude)
		loc.Longitude = clonePtr(loc.Longitude)
		e.Location = &loc
	}
	if e.Contact != nil {
		c := *e.Contact
		e.Contact = &c
	}
	e.GiftAmount = clonePtr(e.GiftAmount)
	e.GiftSentDate = clonePtr(e.GiftSentDate)
	e.ReminderDate = clonePtr(e.ReminderDate)
	e.CalendarEventID = clonePtr(e.CalendarEventID)
	e.Notes = clonePtr(e.Notes)
	return e
}

// Relationship returns the contact's relationship, or "" without a contact
func (e SocialEvent) Relationship() string {
	if e.Contact == nil {
		return ""
	}
	return e.Contact.Relationship
}

// NewSocialEvent is the create-input. Type, Title and EventDate are required.
type NewSocialEvent struct {
	Type         EventType   `json:"type"`
	Title        string      `json:"title"`
	EventDate    time.Time   `json:"event_date"`
	Status       EventStatus `json:"status,omitempty"`
	Priority     Priority    `json:"priority,omitempty"`
	Description  *string     `json:"description,omitempty"`
	Location     *Location   `json:"location,omitempty"`
	Contact      *Contact    `json:"contact,omitempty"`
	GiftAmount   *int        `json:"gift_amount,omitempty"`
	GiftSent     bool        `json:"gift_sent,omitempty"`
	GiftSentDate *time.Time  `json:"gift_sent_date,omitempty"`
	ReminderSet  bool        `json:"reminder_set,omitempty"`
	ReminderDate *time.Time  `json:"reminder_date,omitempty"`
	Notes        *string     `json:"notes,omitempty"`
}

// SocialEventUpdate is the partial update-input. Nil fields are left
// untouched; the Clear flags reset nullable fields to null.
//
// Setting GiftSent or ReminderSet to false also clears the paired date.
type SocialEventUpdate struct {
	Type            *EventType   `json:"type,omitempty"`
	Status          *EventStatus `json:"status,omitempty"`
	Priority        *Priority    `json:"priority,omitempty"`
	Title           *string      `json:"title,omitempty"`
	Description     *string      `json:"description,omitempty"`
	EventDate       *time.Time   `json:"event_date,omitempty"`
	Location        *Location    `json:"location,omitempty"`
	Contact         *Contact     `json:"contact,omitempty"`
	GiftAmount      *int         `json:"gift_amount,omitempty"`
	GiftSent        *bool        `json:"gift_sent,omitempty"`
	GiftSentDate    *time.Time   `json:"gift_sent_date,omitempty"`
	ReminderSet     *bool        `json:"reminder_set,omitempty"`
	ReminderDate    *time.Time   `json:"reminder_date,omitempty"`
	CalendarEventID *string      `json:"calendar_event_id,omitempty"`
	Notes           *string      `json:"notes,omitempty"`

	ClearDescription     bool `json:"clear_description,omitempty"`
	ClearLocation        bool `json:"clear_location,omitempty"`
	ClearContact         bool `json:"clear_contact,omitempty"`
	ClearGiftAmount      bool `json:"clear_gift_amount,omitempty"`
	ClearCalendarEventID bool `json:"clear_calendar_event_id,omitempty"`
	ClearNotes           bool `json:"clear_notes,omitempty"`
}

// ApplyEventDefaults turns a create-input into a full record draft.
// Status defaults to pending and priority to medium.
func ApplyEventDefaults(in NewSocialEvent, id string, now time.Time) SocialEvent {
	e := SocialEvent{
		ID:           id,
		Type:         in.Type,
		Status:       in.Status,
		Priority:     in.Priority,
		Title:        in.Title,
		Description:  clonePtr(in.Description),
		EventDate:    in.EventDate,
		GiftAmount:   clonePtr(in.GiftAmount),
		GiftSent:     in.GiftSent,
		GiftSentDate: clonePtr(in.GiftSentDate),
		ReminderSet:  in.ReminderSet,
		ReminderDate: clonePtr(in.ReminderDate),
		Notes:        clonePtr(in.Notes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Location != nil {
		loc := *in.Location
		e.Location = &loc
	}
	if in.Contact != nil {
		c := *in.Contact
		e.Contact = &c
	}
	if e.Status == "" {
		e.Status = EventPending
	}
	if e.Priority == "" {
		e.Priority = PriorityMedium
	}
	return e.Clone()
}

// ValidateEvent checks required fields and the flag/date pairings
func ValidateEvent(e SocialEvent) error {
	if strings.TrimSpace(string(e.Type)) == "" {
		return invalid("type", "is required")
	}
	if strings.TrimSpace(e.Title) == "" {
		return invalid("title", "is required")
	}
	if e.EventDate.IsZero() {
		return invalid("event_date", "is required")
	}
	if !e.Status.Valid() {
		return invalid("status", "unknown value "+string(e.Status))
	}
	if !e.Priority.Valid() {
		return invalid("priority", "unknown value "+string(e.Priority))
	}
	if e.GiftAmount != nil && *e.GiftAmount < 0 {
		return invalid("gift_amount", "must not be negative")
	}
	if e.GiftSentDate != nil && !e.GiftSent {
		return invalid("gift_sent_date", "requires gift_sent")
	}
	if e.ReminderDate != nil && !e.ReminderSet {
		return invalid("reminder_date", "requires reminder_set")
	}
	if e.UpdatedAt.Before(e.CreatedAt) {
		return invalid("updated_at", "precedes created_at")
	}
	return nil
}

// MergeEvent applies the provided fields of u onto cur
func MergeEvent(cur SocialEvent, u SocialEventUpdate, now time.Time) SocialEvent {
	next := cur.Clone()
	if u.Type != nil {
		next.Type = *u.Type
	}
	if u.Status != nil {
		next.Status = *u.Status
	}
	if u.Priority != nil {
		next.Priority = *u.Priority
	}
	if u.Title != nil {
		next.Title = *u.Title
	}
	if u.EventDate != nil {
		next.EventDate = *u.EventDate
	}

	next.Description = mergeNullable(next.Description, u.Description, u.ClearDescription)
	next.GiftAmount = mergeNullable(next.GiftAmount, u.GiftAmount, u.ClearGiftAmount)
	next.CalendarEventID = mergeNullable(next.CalendarEventID, u.CalendarEventID, u.ClearCalendarEventID)
	next.Notes = mergeNullable(next.Notes, u.Notes, u.ClearNotes)
	next.Location = mergeNullable(next.Location, u.Location, u.ClearLocation)
	next.Contact = mergeNullable(next.Contact, u.Contact, u.ClearContact)

	if u.GiftSent != nil {
		next.GiftSent = *u.GiftSent
		if !next.GiftSent {
			next.GiftSentDate = nil
		}
	}
	if u.GiftSentDate != nil {
		next.GiftSentDate = clonePtr(u.GiftSentDate)
	}
	if u.ReminderSet != nil {
		next.ReminderSet = *u.ReminderSet
		if !next.ReminderSet {
			next.ReminderDate = nil
		}
	}
	if u.ReminderDate != nil {
		next.ReminderDate = clonePtr(u.ReminderDate)
	}

	next.UpdatedAt = now
	return next.Clone()
}

func mergeNullable[T any](cur, set *T, clear bool) *T {
	if clear {
		return nil
	}
	if set != nil {
		return clonePtr(set)
	}
	return cur
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
