package query

import (
	"strings"

	"github.com/quantumlife/lifectx/internal/core"
)

// TaskOptions filters and orders tasks. The date range applies to Deadline;
// tasks without a deadline fall outside any non-empty range.
type TaskOptions struct {
	Status   core.TaskStatus   `json:"status,omitempty"`
	Category core.TaskCategory `json:"category,omitempty"`
	Priority core.Priority     `json:"priority,omitempty"`
	Range    DateRange         `json:"date_range,omitempty"`
	Search   string            `json:"search,omitempty"`
	Sort
}

// Tasks returns the tasks matching opts in the requested order.
// Sorting by eventDate is not meaningful for tasks and keeps input order.
func Tasks(tasks []core.Task, opts TaskOptions) []core.Task {
	var filters []func(core.Task) bool
	if opts.Status != "" {
		filters = append(filters, func(t core.Task) bool { return t.Status == opts.Status })
	}
	if opts.Category != "" {
		filters = append(filters, func(t core.Task) bool { return t.Category == opts.Category })
	}
	if opts.Priority != "" {
		filters = append(filters, func(t core.Task) bool { return t.Priority == opts.Priority })
	}
	if !opts.Range.IsZero() {
		filters = append(filters, func(t core.Task) bool {
			return t.Deadline != nil && opts.Range.Contains(*t.Deadline)
		})
	}
	if search := strings.TrimSpace(opts.Search); search != "" {
		filters = append(filters, func(t core.Task) bool {
			return containsFold(search, append([]string{t.Title, t.Description}, t.Tags...)...)
		})
	}

	sign := opts.sign()
	var compare func(a, b core.Task) int
	switch opts.Field {
	case SortCreatedAt:
		compare = func(a, b core.Task) int { return sign * a.CreatedAt.Compare(b.CreatedAt) }
	case SortDeadline:
		compare = func(a, b core.Task) int { return compareTimes(a.Deadline, b.Deadline, sign) }
	case SortPriority:
		compare = func(a, b core.Task) int { return comparePriority(a.Priority, b.Priority, sign) }
	}

	return run(tasks, filters, compare)
}

// EventOptions filters and orders social events. The date range applies to
// EventDate.
type EventOptions struct {
	Status   core.EventStatus `json:"status,omitempty"`
	Type     core.EventType   `json:"type,omitempty"`
	Priority core.Priority    `json:"priority,omitempty"`
	Range    DateRange        `json:"date_range,omitempty"`
	Search   string           `json:"search,omitempty"`
	Sort
}

// Events returns the social events matching opts in the requested order.
// Sorting by deadline keeps input order.
func Events(events []core.SocialEvent, opts EventOptions) []core.SocialEvent {
	var filters []func(core.SocialEvent) bool
	if opts.Status != "" {
		filters = append(filters, func(e core.SocialEvent) bool { return e.Status == opts.Status })
	}
	if opts.Type != "" {
		filters = append(filters, func(e core.SocialEvent) bool { return e.Type == opts.Type })
	}
	if opts.Priority != "" {
		filters = append(filters, func(e core.SocialEvent) bool { return e.Priority == opts.Priority })
	}
	if !opts.Range.IsZero() {
		filters = append(filters, func(e core.SocialEvent) bool { return opts.Range.Contains(e.EventDate) })
	}
	if search := strings.TrimSpace(opts.Search); search != "" {
		filters = append(filters, func(e core.SocialEvent) bool {
			fields := []string{e.Title}
			if e.Description != nil {
				fields = append(fields, *e.Description)
			}
			if e.Notes != nil {
				fields = append(fields, *e.Notes)
			}
			return containsFold(search, fields...)
		})
	}

	sign := opts.sign()
	var compare func(a, b core.SocialEvent) int
	switch opts.Field {
	case SortCreatedAt:
		compare = func(a, b core.SocialEvent) int { return sign * a.CreatedAt.Compare(b.CreatedAt) }
	case SortEventDate:
		compare = func(a, b core.SocialEvent) int { return sign * a.EventDate.Compare(b.EventDate) }
	case SortPriority:
		compare = func(a, b core.SocialEvent) int { return comparePriority(a.Priority, b.Priority, sign) }
	}

	return run(events, filters, compare)
}

// ContextOptions filters and orders contexts. The date range applies to
// CreatedAt; search looks at the payload's text fields.
type ContextOptions struct {
	Status core.ContextStatus `json:"status,omitempty"`
	Source core.ContextSource `json:"source,omitempty"`
	Range  DateRange          `json:"date_range,omitempty"`
	Search string             `json:"search,omitempty"`
	Sort
}

// Contexts returns the contexts matching opts in the requested order.
// Only createdAt is a meaningful sort key for contexts.
func Contexts(contexts []core.Context, opts ContextOptions) []core.Context {
	var filters []func(core.Context) bool
	if opts.Status != "" {
		filters = append(filters, func(c core.Context) bool { return c.Status == opts.Status })
	}
	if opts.Source != "" {
		filters = append(filters, func(c core.Context) bool {
			return c.Data != nil && c.Data.Source() == opts.Source
		})
	}
	if !opts.Range.IsZero() {
		filters = append(filters, func(c core.Context) bool { return opts.Range.Contains(c.CreatedAt) })
	}
	if search := strings.TrimSpace(opts.Search); search != "" {
		filters = append(filters, func(c core.Context) bool {
			return c.Data != nil && containsFold(search, core.ContextText(c.Data))
		})
	}

	var compare func(a, b core.Context) int
	if opts.Field == SortCreatedAt {
		sign := opts.sign()
		compare = func(a, b core.Context) int { return sign * a.CreatedAt.Compare(b.CreatedAt) }
	}

	return run(contexts, filters, compare)
}
