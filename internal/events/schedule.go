package events

import (
	"fmt"
	"slices"
	"time"
)

// Sort orders
const (
	SortDateAsc  = "date_asc"
	SortDateDesc = "date_desc"
)

// dateLayouts are tried in order. Layouts without a zone are read in the
// caller's location.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses an event date, reading zone-less values as local time
func ParseDate(s string) (time.Time, error) {
	return ParseDateIn(s, time.Local)
}

// ParseDateIn parses an event date, reading zone-less values in loc
func ParseDateIn(s string, loc *time.Location) (time.Time, error) {
	for i, layout := range dateLayouts {
		var (
			t   time.Time
			err error
		)
		if i == 0 {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, loc)
		}
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid event date %q", s)
}

type timed struct {
	ev Event
	at time.Time
	ok bool
}

func withTimes(events []Event, loc *time.Location) []timed {
	out := make([]timed, len(events))
	for i, ev := range events {
		at, err := ParseDateIn(ev.Date, loc)
		out[i] = timed{ev: ev, at: at, ok: err == nil}
	}
	return out
}

// Sort returns a copy of events ordered by date. Unknown orders fall back
// to ascending; unparsable dates sort as the zero time. Equal dates keep
// their input order.
func Sort(events []Event, order string) []Event {
	ts := withTimes(events, time.Local)
	slices.SortStableFunc(ts, func(a, b timed) int {
		if order == SortDateDesc {
			return b.at.Compare(a.at)
		}
		return a.at.Compare(b.at)
	})
	return unwrap(ts)
}

// NextUpcoming returns the earliest event dated at or after now
func NextUpcoming(events []Event, now time.Time) (Event, bool) {
	upcoming := filter(events, now.Location(), func(at time.Time) bool { return !at.Before(now) })
	if len(upcoming) == 0 {
		return Event{}, false
	}
	return upcoming[0], true
}

// OngoingToday returns events dated inside now's calendar day, earliest first
func OngoingToday(events []Event, now time.Time) []Event {
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)
	return filter(events, now.Location(), func(at time.Time) bool {
		return !at.Before(start) && at.Before(end)
	})
}

func filter(events []Event, loc *time.Location, keep func(time.Time) bool) []Event {
	var ts []timed
	for _, t := range withTimes(events, loc) {
		if t.ok && keep(t.at) {
			ts = append(ts, t)
		}
	}
	slices.SortStableFunc(ts, func(a, b timed) int { return a.at.Compare(b.at) })
	return unwrap(ts)
}

func unwrap(ts []timed) []Event {
	out := make([]Event, len(ts))
	for i, t := range ts {
		out[i] = t.ev
	}
	return out
}

// FormatDate renders an event date for display, or the raw value when it
// does not parse.
func FormatDate(s string) string {
	t, err := ParseDate(s)
	if err != nil {
		return s
	}
	return t.Format("Jan 2, 2006 3:04 PM")
}
