// Package schedule computes the next occurrence of a recurring weekly webinar
// schedule. Schedules are configured by the admin after extraction; no
// reliable way exists to detect them from scraped markup.
package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Entry is one weekly slot: a civil "HH:MM" time and the WebinarFuel session
// to book registrants into.
type Entry struct {
	Time      string `json:"time"`
	SessionID int64  `json:"session_id"`
}

// Schedule maps English weekday names (case-insensitive) to slots.
type Schedule map[string]Entry

// NextSession is a computed upcoming occurrence. It is recomputed per
// registration request, never persisted on its own.
type NextSession struct {
	SessionID int64     `json:"session_id"`
	Date      time.Time `json:"date"`
	DayOfWeek string    `json:"day_of_week"`
}

// ConfigError reports a structurally invalid schedule.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("schedule: %s", e.Reason)
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

type slot struct {
	day       string
	weekday   time.Weekday
	hour, min int
	sessionID int64
}

// Next returns the first slot strictly after now: later this week, or equal to
// today with a time still in the future, wrapping to next week when every slot
// has passed. A slot exactly equal to now counts as already past, so a request
// landing on the boundary never books the in-progress session.
//
// Next is a pure function of its arguments. It operates in the civil time of
// now's location and performs no timezone conversion; normalization, if
// needed, is the caller's job.
func Next(sched Schedule, now time.Time) (NextSession, error) {
	if len(sched) == 0 {
		return NextSession{}, &ConfigError{Reason: "empty schedule"}
	}

	slots := make([]slot, 0, len(sched))
	for day, entry := range sched {
		weekday, ok := weekdays[strings.ToLower(day)]
		if !ok {
			return NextSession{}, &ConfigError{Reason: fmt.Sprintf("unknown day name %q", day)}
		}
		var hour, min int
		if _, err := fmt.Sscanf(entry.Time, "%d:%d", &hour, &min); err != nil || hour < 0 || hour > 23 || min < 0 || min > 59 {
			return NextSession{}, &ConfigError{Reason: fmt.Sprintf("invalid time %q for %s", entry.Time, day)}
		}
		slots = append(slots, slot{
			day:       strings.ToLower(day),
			weekday:   weekday,
			hour:      hour,
			min:       min,
			sessionID: entry.SessionID,
		})
	}

	sort.Slice(slots, func(i, j int) bool {
		if slots[i].weekday != slots[j].weekday {
			return slots[i].weekday < slots[j].weekday
		}
		return slots[i].hour*60+slots[i].min < slots[j].hour*60+slots[j].min
	})

	today := now.Weekday()
	for _, s := range slots {
		if s.weekday < today {
			continue
		}
		candidate := at(now, int(s.weekday-today), s.hour, s.min)
		if candidate.After(now) {
			return NextSession{SessionID: s.sessionID, Date: candidate, DayOfWeek: s.day}, nil
		}
	}

	// Past every slot this week; wrap to the earliest slot next week.
	first := slots[0]
	days := (7 - int(today) + int(first.weekday)) % 7
	if days == 0 {
		days = 7
	}
	candidate := at(now, days, first.hour, first.min)
	return NextSession{SessionID: first.sessionID, Date: candidate, DayOfWeek: first.day}, nil
}

func at(now time.Time, addDays, hour, min int) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+addDays, hour, min, 0, 0, now.Location())
}
