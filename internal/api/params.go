package api

import (
	"fmt"
	"net/url"
	"time"

	"github.com/quantumlife/lifectx/internal/query"
)

// parseTime accepts RFC 3339 instants and bare YYYY-MM-DD dates
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q", s)
	}
	return t, nil
}

// parseRange reads ?from=&to= into an inclusive date range. A bare date in
// "to" covers that whole day.
func parseRange(q url.Values) (query.DateRange, error) {
	var r query.DateRange
	if v := q.Get("from"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			return r, err
		}
		r.Start = t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			return r, err
		}
		if len(v) == len("2006-01-02") {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		r.End = t
	}
	return r, nil
}

// parseSort reads ?sort_by=&sort_order=
func parseSort(q url.Values) (query.Sort, error) {
	s := query.Sort{
		Field: query.SortField(q.Get("sort_by")),
		Order: query.SortOrder(q.Get("sort_order")),
	}
	switch s.Field {
	case "", query.SortCreatedAt, query.SortDeadline, query.SortPriority, query.SortEventDate:
	default:
		return s, fmt.Errorf("invalid sort_by %q", s.Field)
	}
	switch s.Order {
	case "", query.Asc, query.Desc:
	default:
		return s, fmt.Errorf("invalid sort_order %q", s.Order)
	}
	return s, nil
}
