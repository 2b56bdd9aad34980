// Package query projects an entity collection into a filtered, ordered view.
//
// Every function here is pure: the input slice is never modified and the
// result is a new slice. Zero-valued option fields place no constraint.
package query

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/quantumlife/lifectx/internal/core"
)

// SortField names the key a view is ordered by
type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortDeadline  SortField = "deadline"
	SortPriority  SortField = "priority"
	SortEventDate SortField = "eventDate"
)

// SortOrder is the direction of a sort
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// DateRange bounds a date field inclusively. A zero Start or End leaves that
// side open.
type DateRange struct {
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// IsZero reports whether both bounds are open
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains reports whether t falls within the range
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// Sort says how to order a view. An empty Field keeps the collection order;
// an empty Order means ascending.
type Sort struct {
	Field SortField `json:"sort_by,omitempty"`
	Order SortOrder `json:"sort_order,omitempty"`
}

func (s Sort) sign() int {
	if s.Order == Desc {
		return -1
	}
	return 1
}

// run keeps the items every filter accepts and stable-sorts them with compare
// when it is non-nil.
func run[T any](items []T, filters []func(T) bool, compare func(a, b T) int) []T {
	out := make([]T, 0, len(items))
next:
	for _, item := range items {
		for _, keep := range filters {
			if !keep(item) {
				continue next
			}
		}
		out = append(out, item)
	}
	if compare != nil {
		slices.SortStableFunc(out, compare)
	}
	return out
}

// containsFold reports whether any field contains needle, ignoring case
func containsFold(needle string, fields ...string) bool {
	needle = strings.ToLower(needle)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// compareTimes orders instants; missing values sort after present ones in
// either direction.
func compareTimes(a, b *time.Time, sign int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return sign * a.Compare(*b)
}

func comparePriority(a, b core.Priority, sign int) int {
	return sign * cmp.Compare(a.Rank(), b.Rank())
}
