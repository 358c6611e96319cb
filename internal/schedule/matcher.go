// Package schedule decides when routine reminders are due and guards each
// scan against double firing.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Tolerance is the window around a computed notify time inside which a scan
// treats the reminder as due. Scans run once a minute.
const Tolerance = 60 * time.Second

// Clock is a 24h wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// ParseClock parses "HH:MM" (24h).
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return Clock{}, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// ParseLeadMinutes parses a comma separated list such as "15, 10".
// Blank, non-numeric and negative entries are dropped.
func ParseLeadMinutes(s string) []int {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Entry is one routine as seen by the matcher.
type Entry struct {
	RoutineID   int64
	Start       Clock
	LeadMinutes []int
}

// Due is a (routine, lead) pair whose notify time falls inside the tolerance.
type Due struct {
	RoutineID   int64
	LeadMinutes int
	NotifyAt    time.Time
}

// NotifyAt returns the instant on now's calendar day, in now's location, that is
// lead minutes before start. Minutes below zero roll back into the previous hour
// (and, for early starts, into the previous day).
func NotifyAt(now time.Time, start Clock, lead int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, start.Hour, start.Minute-lead, 0, 0, now.Location())
}

// IsDue reports whether now is strictly within Tolerance of notifyAt.
func IsDue(now, notifyAt time.Time) bool {
	diff := now.Sub(notifyAt)
	if diff < 0 {
		diff = -diff
	}
	return diff < Tolerance
}

// Match returns every due (routine, lead) pair for now, in entry then lead order.
func Match(now time.Time, entries []Entry) []Due {
	var due []Due
	for _, e := range entries {
		for _, lead := range e.LeadMinutes {
			at := NotifyAt(now, e.Start, lead)
			if IsDue(now, at) {
				due = append(due, Due{RoutineID: e.RoutineID, LeadMinutes: lead, NotifyAt: at})
			}
		}
	}
	return due
}
