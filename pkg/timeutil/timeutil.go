// Package timeutil provides calendar-date helpers for weekly assessment data.
// Assessment dates are civil dates: they carry no time of day and are stored
// as midnight UTC, so a date read from a workbook never shifts across zones.
// No external dependencies - uses only standard library.
package timeutil

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical wire and storage format for dates.
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned when a value cannot be read as a calendar date.
var ErrInvalidDate = errors.New("invalid date")

// Date creates a civil date (midnight UTC).
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Today returns the current civil date in UTC.
func Today() time.Time {
	return StartOfDay(time.Now().UTC())
}

// StartOfDay drops the time of day, keeping the calendar date of t as seen
// in t's own location.
func StartOfDay(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// WeekStart returns the Monday that anchors the week containing t.
// Sunday belongs to the week that started six days earlier.
func WeekStart(t time.Time) time.Time {
	day := StartOfDay(t)
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return day.AddDate(0, 0, -(weekday - 1))
}

// IsWeekStart reports whether t is already a Monday at midnight UTC.
func IsWeekStart(t time.Time) bool {
	return t.Equal(WeekStart(t))
}

// AddWeeks moves a date by n whole weeks.
func AddWeeks(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, 7*n)
}

// WeeksBetween returns the number of whole weeks from a to b.
func WeeksBetween(a, b time.Time) int {
	return int(math.Round(WeekStart(b).Sub(WeekStart(a)).Hours() / (24 * 7)))
}

// FormatDate formats a date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ─── Parsing ────────────────────────────────────────────────────────────────

// dateLayouts are tried in order. US month-first forms are what teachers
// type into spreadsheets; ISO forms are what exports produce.
var dateLayouts = []string{
	DateLayout,
	"2006/01/02",
	"2006-1-2",
	"2006/1/2",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"01-02-2006",
	"1-2-2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Excel serial day bounds: 1900-01-01 up to 9999-12-31.
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

// excelEpoch is day zero of the 1900 date system. It sits two days before
// 1900-01-01 to absorb the phantom 1900-02-29.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseDate reads a calendar date from a string in any accepted layout or
// from an Excel serial number written as text.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return StartOfDay(t), nil
		}
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return FromExcelSerial(f)
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// FromExcelSerial converts a 1900-system serial day number to a date.
// Fractional parts (time of day) are discarded.
func FromExcelSerial(serial float64) (time.Time, error) {
	if math.IsNaN(serial) || serial < minExcelSerial || serial > maxExcelSerial {
		return time.Time{}, fmt.Errorf("%w: serial %v out of range", ErrInvalidDate, serial)
	}
	return excelEpoch.AddDate(0, 0, int(math.Floor(serial))), nil
}

// ToExcelSerial converts a date to its 1900-system serial day number.
func ToExcelSerial(t time.Time) float64 {
	return math.Floor(StartOfDay(t).Sub(excelEpoch).Hours() / 24)
}

// ParseWeek parses a date and floors it to its week start.
func ParseWeek(s string) (time.Time, error) {
	t, err := ParseDate(s)
	if err != nil {
		return time.Time{}, err
	}
	return WeekStart(t), nil
}
