// Package gift computes the customary cash gift for a social event.
package gift

import (
	"math"

	"github.com/quantumlife/lifectx/internal/core"
)

// Unit is the rounding step for recommended amounts
const Unit = 10000

// DefaultBase applies to event types without an entry in the base table
const DefaultBase = 50000

// Base amounts per event type, in whole currency units
var baseAmounts = map[core.EventType]int{
	core.EventWedding:          100000,
	core.EventFuneral:          50000,
	core.EventFirstBirthday:    50000,
	core.EventSixtiethBirthday: 100000,
	core.EventBirthday:         30000,
	core.EventGraduation:       50000,
	core.EventOther:            50000,
}

// Relationship multipliers; unknown relationships count as 1.0
var multipliers = map[string]float64{
	"family":             1.5,
	"relative":           1.2,
	"friend":             1.0,
	"college_friend":     1.0,
	"high_school_friend": 1.0,
	"colleague":          1.2,
	"boss":               1.5,
	"neighbor":           0.8,
	"etc":                0.5,
}

// BaseAmount returns the table amount for an event type
func BaseAmount(t core.EventType) int {
	if v, ok := baseAmounts[t]; ok {
		return v
	}
	return DefaultBase
}

// Multiplier returns the factor for a relationship
func Multiplier(relationship string) float64 {
	if v, ok := multipliers[relationship]; ok {
		return v
	}
	return 1.0
}

// Recommend returns base(eventType) × multiplier(relationship), rounded to
// the nearest Unit. It is total and deterministic.
func Recommend(eventType core.EventType, relationship string) int {
	amount := float64(BaseAmount(eventType)) * Multiplier(relationship)
	return int(math.Round(amount/Unit)) * Unit
}

// ForEvent recommends an amount for e using its contact's relationship
func ForEvent(e core.SocialEvent) int {
	return Recommend(e.Type, e.Relationship())
}
