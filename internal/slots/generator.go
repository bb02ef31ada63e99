// Package slots derives bookable intervals from a business's working hours.
package slots

import (
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"
)

// ErrInvalidDuration is returned when the slot length is not positive.
var ErrInvalidDuration = errors.New("slot duration must be positive")

// ParseError reports a malformed working-hours or clock string.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse working hours %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TimeOfDay is a wall-clock time in minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay parses a strict 24-hour "HH:MM" value.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, &ParseError{Input: s, Err: fmt.Errorf("expected HH:MM")}
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, &ParseError{Input: s, Err: err}
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// On places the clock time on the calendar day of date.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, int(t)/60, int(t)%60, 0, 0, date.Location())
}

// WorkingHours is a daily open-close window.
type WorkingHours struct {
	Open  TimeOfDay
	Close TimeOfDay
}

// ParseWorkingHours parses "HH:MM-HH:MM". Whitespace around either side is ignored.
func ParseWorkingHours(s string) (WorkingHours, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return WorkingHours{}, &ParseError{Input: s, Err: fmt.Errorf("expected HH:MM-HH:MM")}
	}
	open, err := ParseTimeOfDay(strings.TrimSpace(parts[0]))
	if err != nil {
		return WorkingHours{}, reparent(s, err)
	}
	closing, err := ParseTimeOfDay(strings.TrimSpace(parts[1]))
	if err != nil {
		return WorkingHours{}, reparent(s, err)
	}
	return WorkingHours{Open: open, Close: closing}, nil
}

// reparent reports a clock error against the whole working-hours input.
func reparent(input string, err error) error {
	var perr *ParseError
	if errors.As(err, &perr) {
		err = perr.Err
	}
	return &ParseError{Input: input, Err: err}
}

func (w WorkingHours) String() string {
	return w.Open.String() + "-" + w.Close.String()
}

// Interval is a half-open [Start, End) slot.
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

func (i Interval) Minutes() int { return int(i.End - i.Start) }

func (i Interval) String() string {
	return i.Start.String() + "-" + i.End.String()
}

// Generate yields consecutive slots of slotMinutes from Open while they fit
// before Close. A trailing remainder shorter than slotMinutes is dropped.
// The sequence is empty when Open >= Close or slotMinutes <= 0, and can be
// ranged over any number of times.
func Generate(wh WorkingHours, slotMinutes int) iter.Seq[Interval] {
	step := TimeOfDay(slotMinutes)
	return func(yield func(Interval) bool) {
		if step <= 0 {
			return
		}
		for cursor := wh.Open; cursor+step <= wh.Close; cursor += step {
			if !yield(Interval{Start: cursor, End: cursor + step}) {
				return
			}
		}
	}
}

// Count returns how many slots Generate yields without iterating.
func Count(wh WorkingHours, slotMinutes int) int {
	if slotMinutes <= 0 || wh.Open >= wh.Close {
		return 0
	}
	return int(wh.Close-wh.Open) / slotMinutes
}

// Candidates parses workingHours and collects the generated slots.
func Candidates(workingHours string, slotMinutes int) ([]Interval, error) {
	if slotMinutes <= 0 {
		return nil, ErrInvalidDuration
	}
	wh, err := ParseWorkingHours(workingHours)
	if err != nil {
		return nil, err
	}
	out := make([]Interval, 0, Count(wh, slotMinutes))
	for iv := range Generate(wh, slotMinutes) {
		out = append(out, iv)
	}
	return out, nil
}

// FormatDuration renders minutes as "30 min", "1 h" or "1 h 30 min".
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours, mins := minutes/60, minutes%60
	if mins == 0 {
		return fmt.Sprintf("%d h", hours)
	}
	return fmt.Sprintf("%d h %d min", hours, mins)
}
