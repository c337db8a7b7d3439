// Package calendar fetches upcoming events and decides whether one is
// happening right now.
package calendar

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoTime is returned for an EventTime with neither DateTime nor Date.
var ErrNoTime = errors.New("event time has neither dateTime nor date")

// dateTimeLayouts are tried in order. The provider sends RFC 3339; the
// compact offset form shows up in exported or hand-written events.
var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
}

const dateLayout = "2006-01-02"

// Event represents a calendar event as far as courselink cares.
type Event struct {
	Summary string `json:"summary"`
	// Description carries the class identifier.
	Description string    `json:"description"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
}

// EventTime represents start/end time with optional date-only format.
type EventTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
	TimeZone string `json:"timeZone"`
}

// AllDay reports whether the time is date-only.
func (et EventTime) AllDay() bool {
	return et.DateTime == "" && et.Date != ""
}

// Instant returns the UTC instant of et. DateTime wins over Date; a
// date-only value is midnight in loc (UTC when loc is nil).
func (et EventTime) Instant(loc *time.Location) (time.Time, error) {
	if et.DateTime != "" {
		var firstErr error
		for _, layout := range dateTimeLayouts {
			t, err := time.Parse(layout, et.DateTime)
			if err == nil {
				return t.UTC(), nil
			}
			if firstErr == nil {
				firstErr = err
			}
		}
		return time.Time{}, fmt.Errorf("parse dateTime %q: %w", et.DateTime, firstErr)
	}

	if et.Date != "" {
		if loc == nil {
			loc = time.UTC
		}
		t, err := time.ParseInLocation(dateLayout, et.Date, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse date %q: %w", et.Date, err)
		}
		return t.UTC(), nil
	}

	return time.Time{}, ErrNoTime
}

// State is the position of an event relative to now.
type State int

const (
	// Neither means the event is already over.
	Neither State = iota
	Ongoing
	Upcoming
)

func (s State) String() string {
	switch s {
	case Ongoing:
		return "ongoing"
	case Upcoming:
		return "upcoming"
	default:
		return "neither"
	}
}

// Classify places e relative to now. The window is half-open: an event
// ending exactly at now is no longer ongoing.
func Classify(e Event, now time.Time, loc *time.Location) (State, error) {
	start, err := e.Start.Instant(loc)
	if err != nil {
		return Neither, fmt.Errorf("start: %w", err)
	}
	end, err := e.End.Instant(loc)
	if err != nil {
		return Neither, fmt.Errorf("end: %w", err)
	}

	now = now.UTC()
	switch {
	case !start.After(now) && end.After(now):
		return Ongoing, nil
	case start.After(now):
		return Upcoming, nil
	default:
		return Neither, nil
	}
}

// IsOngoing reports whether start <= now < end.
func IsOngoing(e Event, now time.Time, loc *time.Location) (bool, error) {
	state, err := Classify(e, now, loc)
	return state == Ongoing, err
}

// IsFuture reports whether the event starts strictly after now. Only the
// start time is consulted.
func IsFuture(e Event, now time.Time, loc *time.Location) (bool, error) {
	start, err := e.Start.Instant(loc)
	if err != nil {
		return false, err
	}
	return start.After(now.UTC()), nil
}
