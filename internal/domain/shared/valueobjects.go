package shared

import (
	"math"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// WeekRange Value Object
// ═══════════════════════════════════════════════════════════════════════════

// WeekRange is an inclusive span of week starts. Both ends are Mondays.
type WeekRange struct {
	From time.Time
	To   time.Time
}

// IsValid checks if the range is non-empty and ordered.
func (w WeekRange) IsValid() bool {
	return !w.From.IsZero() && !w.To.IsZero() && !w.From.After(w.To)
}

// Contains checks if a week start falls inside the range.
func (w WeekRange) Contains(week time.Time) bool {
	return !week.Before(w.From) && !week.After(w.To)
}

// Weeks returns how many week starts the range covers.
func (w WeekRange) Weeks() int {
	if !w.IsValid() {
		return 0
	}
	return int(w.To.Sub(w.From).Hours()/(24*7)) + 1
}

// NewWeekRange creates a WeekRange with validation.
func NewWeekRange(from, to time.Time) (WeekRange, error) {
	wr := WeekRange{From: from, To: to}
	if !wr.IsValid() {
		return WeekRange{}, NewDomainError("shared", "NewWeekRange", ErrInvalidInput, "'from' must not be after 'to'")
	}
	return wr, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Percentage
// ═══════════════════════════════════════════════════════════════════════════

// Percentage returns part/total as a percentage rounded to one decimal.
// A zero total yields zero.
func Percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part)*1000/float64(total)) / 10
}

// ═══════════════════════════════════════════════════════════════════════════
// Limit Value Object
// ═══════════════════════════════════════════════════════════════════════════

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Limit bounds list queries.
type Limit int

// Int returns the effective limit, applying the default and the cap.
func (l Limit) Int() int {
	if l <= 0 {
		return DefaultLimit
	}
	if l > MaxLimit {
		return MaxLimit
	}
	return int(l)
}
