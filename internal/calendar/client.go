package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/quantumlife/lifectx/internal/core"
)

const (
	dateLayout = "2006-01-02"

	// PrivateKeyEventID tags remote events with the local event id
	PrivateKeyEventID = "lifectx_event_id"

	// Google accepts reminder overrides of at most four weeks
	maxReminderMinutes = 4 * 7 * 24 * 60
)

// Client wraps the Events API for a single calendar
type Client struct {
	service    *calendar.Service
	calendarID string
}

// NewClient creates a client for calendarID; opts are passed to the API
// service, e.g. option.WithHTTPClient
func NewClient(ctx context.Context, calendarID string, opts ...option.ClientOption) (*Client, error) {
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Client{service: service, calendarID: calendarID}, nil
}

// NewTokenClient creates a client authenticated with a stored token
func NewTokenClient(ctx context.Context, oauth *OAuthClient, token *oauth2.Token, calendarID string) (*Client, error) {
	return NewClient(ctx, calendarID, option.WithHTTPClient(oauth.HTTPClient(ctx, token)))
}

// CalendarID returns the target calendar
func (c *Client) CalendarID() string {
	return c.calendarID
}

// Insert creates the remote event and returns its id
func (c *Client) Insert(ctx context.Context, e core.SocialEvent) (string, error) {
	created, err := c.service.Events.Insert(c.calendarID, toRemote(e)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return created.Id, nil
}

// Update replaces the remote event remoteID with the current state of e
func (c *Client) Update(ctx context.Context, remoteID string, e core.SocialEvent) error {
	_, err := c.service.Events.Update(c.calendarID, remoteID, toRemote(e)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update event %s: %w", remoteID, err)
	}
	return nil
}

// Delete removes the remote event. Already-deleted events are not an error.
func (c *Client) Delete(ctx context.Context, remoteID string) error {
	err := c.service.Events.Delete(c.calendarID, remoteID).Context(ctx).Do()
	if err != nil && !IsGone(err) {
		return fmt.Errorf("delete event %s: %w", remoteID, err)
	}
	return nil
}

// IsGone reports whether err means the remote event no longer exists
func IsGone(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
	}
	return false
}

// toRemote maps a social event onto an all-day Google Calendar event
func toRemote(e core.SocialEvent) *calendar.Event {
	day := time.Date(e.EventDate.Year(), e.EventDate.Month(), e.EventDate.Day(), 0, 0, 0, 0, e.EventDate.Location())

	ev := &calendar.Event{
		Summary:     e.Title,
		Description: describe(e),
		Status:      remoteStatus(e.Status),
		Start:       &calendar.EventDateTime{Date: day.Format(dateLayout)},
		// End is exclusive for all-day events
		End: &calendar.EventDateTime{Date: day.AddDate(0, 0, 1).Format(dateLayout)},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{PrivateKeyEventID: e.ID},
		},
	}

	if e.Location != nil {
		parts := []string{e.Location.Name}
		if e.Location.Address != "" {
			parts = append(parts, e.Location.Address)
		}
		ev.Location = strings.Join(parts, ", ")
	}

	if e.ReminderSet && e.ReminderDate != nil {
		minutes := int64(day.Sub(*e.ReminderDate) / time.Minute)
		if minutes >= 0 && minutes <= maxReminderMinutes {
			ev.Reminders = &calendar.EventReminders{
				Overrides:       []*calendar.EventReminder{{Method: "popup", Minutes: minutes}},
				ForceSendFields: []string{"UseDefault"},
			}
		}
	}
	return ev
}

func describe(e core.SocialEvent) string {
	var lines []string
	if e.Description != nil && *e.Description != "" {
		lines = append(lines, *e.Description)
	}
	if e.Contact != nil {
		who := e.Contact.Name
		if e.Contact.Relationship != "" {
			who += " (" + e.Contact.Relationship + ")"
		}
		lines = append(lines, "Contact: "+who)
	}
	if e.GiftAmount != nil {
		line := fmt.Sprintf("Gift: %d", *e.GiftAmount)
		if e.GiftSent {
			line += " (sent)"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func remoteStatus(s core.EventStatus) string {
	switch s {
	case core.EventPending:
		return "tentative"
	case core.EventCancelled:
		return "cancelled"
	default:
		return "confirmed"
	}
}
