package shared

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidWindow indicates a malformed reporting window.
var ErrInvalidWindow = errors.New("invalid time window")

// Window is an inclusive [From, To] range of absolute instants.
type Window struct {
	From time.Time
	To   time.Time
}

// NewWindow validates bounds.
func NewWindow(from, to time.Time) (Window, error) {
	if from.IsZero() || to.IsZero() {
		return Window{}, fmt.Errorf("%w: from and to required", ErrInvalidWindow)
	}
	if to.Before(from) {
		return Window{}, fmt.Errorf("%w: to before from", ErrInvalidWindow)
	}
	return Window{From: from, To: to}, nil
}

// ParseWindow parses RFC3339 bounds. A bare date (2006-01-02) for to is
// extended to the last nanosecond of that day in UTC.
func ParseWindow(fromStr, toStr string) (Window, error) {
	from, err := parseInstant(fromStr, false)
	if err != nil {
		return Window{}, err
	}
	to, err := parseInstant(toStr, true)
	if err != nil {
		return Window{}, err
	}
	return NewWindow(from, to)
}

// Contains compares instants, so the same moment expressed in different
// zones is inside or outside the window exactly once.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

func parseInstant(value string, endOfDay bool) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: missing bound", ErrInvalidWindow)
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	day, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidWindow, value)
	}
	if endOfDay {
		return day.Add(24*time.Hour - time.Nanosecond), nil
	}
	return day, nil
}
