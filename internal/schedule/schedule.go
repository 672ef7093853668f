// Package schedule turns a calendar date and a service slot into a visit time.
package schedule

import (
	"strings"
	"time"

	apperrors "github.com/spec-kit/service-portal/pkg/errorutil"
)

// DateLayout is the calendar date format accepted by Resolve.
const DateLayout = "2006-01-02"

// SlotWindow is the length of every service slot.
const SlotWindow = 3 * time.Hour

// Slot is the start of a service window, "HH:MM".
type Slot string

const (
	SlotMorning   Slot = "09:00"
	SlotMidday    Slot = "12:00"
	SlotAfternoon Slot = "15:00"
)

// Reasons carried by scheduling errors.
const (
	ReasonPast    = "past"
	ReasonInvalid = "invalid"
)

// Slots lists the bookable slots in order.
func Slots() []Slot {
	return []Slot{SlotMorning, SlotMidday, SlotAfternoon}
}

// Valid reports whether s is one of the fixed slots.
func (s Slot) Valid() bool {
	for _, known := range Slots() {
		if s == known {
			return true
		}
	}
	return false
}

// Label renders the window, e.g. "09:00 - 12:00".
func (s Slot) Label() string {
	start, err := time.Parse("15:04", string(s))
	if err != nil {
		return string(s)
	}
	return string(s) + " - " + start.Add(SlotWindow).Format("15:04")
}

// Resolve combines date and slot into a wall-clock timestamp in loc.
// A nil loc means time.Local.
func Resolve(date string, slot Slot, now time.Time, loc *time.Location) (time.Time, error) {
	date = strings.TrimSpace(date)
	if date == "" || slot == "" {
		return time.Time{}, apperrors.NewSchedulingError(ReasonPast, "visit date and slot required")
	}
	if !slot.Valid() {
		return time.Time{}, apperrors.NewSchedulingError(ReasonInvalid, "unknown slot "+string(slot))
	}
	if loc == nil {
		loc = time.Local
	}
	at, err := time.ParseInLocation(DateLayout+" 15:04", date+" "+string(slot), loc)
	if err != nil {
		return time.Time{}, apperrors.NewSchedulingError(ReasonInvalid, "invalid visit date")
	}
	if at.Before(now) {
		return time.Time{}, apperrors.NewSchedulingError(ReasonPast, "visit time is in the past")
	}
	return at, nil
}

// SlotOf returns the slot starting at t's wall-clock time, if any.
func SlotOf(t time.Time) (Slot, bool) {
	s := Slot(t.Format("15:04"))
	return s, s.Valid()
}

// ParseSlot accepts a slot start ("09:00", "9:00") or its window label
// ("09:00 - 12:00").
func ParseSlot(raw string) (Slot, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, "-"); i > 0 {
		raw = strings.TrimSpace(raw[:i])
	}
	start, err := time.Parse("15:04", raw)
	if err != nil {
		return "", apperrors.NewSchedulingError(ReasonInvalid, "unknown slot "+raw)
	}
	s := Slot(start.Format("15:04"))
	if !s.Valid() {
		return "", apperrors.NewSchedulingError(ReasonInvalid, "unknown slot "+raw)
	}
	return s, nil
}
