// Package reminders lists the scheduling intents a notification
// collaborator should act on. Nothing here delivers alerts or runs timers.
package reminders

import (
	"cmp"
	"slices"
	"time"

	"github.com/quantumlife/lifectx/internal/core"
)

// Kind says where an intent came from
type Kind string

const (
	KindEventReminder Kind = "event_reminder"
	KindTaskDeadline  Kind = "task_deadline"
)

// Intent is one alert that should fire at At
type Intent struct {
	Kind     Kind      `json:"kind"`
	EntityID string    `json:"entity_id"`
	Title    string    `json:"title"`
	At       time.Time `json:"at"`
}

// Due returns the intents falling in [from, from+window), ordered by time and
// then by entity id. Back-to-back windows never report an intent twice. Events contribute their reminder date when one is set;
// tasks contribute their deadline while they are still open.
func Due(tasks []core.Task, events []core.SocialEvent, from time.Time, window time.Duration) []Intent {
	to := from.Add(window)
	in := func(t time.Time) bool { return !t.Before(from) && t.Before(to) }

	var out []Intent
	for _, e := range events {
		if !e.ReminderSet || e.ReminderDate == nil || e.Status.IsTerminal() {
			continue
		}
		if in(*e.ReminderDate) {
			out = append(out, Intent{Kind: KindEventReminder, EntityID: e.ID, Title: e.Title, At: *e.ReminderDate})
		}
	}
	for _, t := range tasks {
		if t.Deadline == nil || t.Status == core.TaskCompleted || t.Status == core.TaskCancelled {
			continue
		}
		if in(*t.Deadline) {
			out = append(out, Intent{Kind: KindTaskDeadline, EntityID: t.ID, Title: t.Title, At: *t.Deadline})
		}
	}

	slices.SortFunc(out, func(a, b Intent) int {
		if c := a.At.Compare(b.At); c != 0 {
			return c
		}
		return cmp.Compare(a.EntityID, b.EntityID)
	})
	return out
}
