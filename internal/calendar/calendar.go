// Package calendar formats add-to-calendar artifacts (Google Calendar URLs
// and ICS payloads) for confirmed registrations. Pure formatting, no
// extraction logic.
package calendar

import (
	"net/url"
	"strings"
	"time"
)

const stampLayout = "20060102T150405Z"

// Event is one webinar occurrence to put on the visitor's calendar.
type Event struct {
	Title       string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	Timezone    string
}

// EndAfter derives the event end from a start time and duration, defaulting
// to 60 minutes.
func EndAfter(start time.Time, duration time.Duration) time.Time {
	if duration <= 0 {
		duration = 60 * time.Minute
	}
	return start.Add(duration)
}

// GoogleURL builds a calendar.google.com render link pre-filled with the
// event details.
func GoogleURL(event Event) string {
	params := url.Values{}
	params.Set("action", "TEMPLATE")
	params.Set("text", event.Title)
	params.Set("details", event.Description)
	params.Set("location", event.Location)
	params.Set("dates", event.StartTime.UTC().Format(stampLayout)+"/"+event.EndTime.UTC().Format(stampLayout))
	if event.Timezone != "" {
		params.Set("ctz", event.Timezone)
	}
	return "https://calendar.google.com/calendar/render?" + params.Encode()
}

var icsEscaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\;`,
	",", `\,`,
	"\n", `\n`,
)

// ICS renders the event as an iCalendar file body (Apple/Outlook), including
// a 15-minute display reminder.
func ICS(event Event, now time.Time) string {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Webinar Funnel Builder//EN",
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"BEGIN:VEVENT",
		"DTSTART:" + event.StartTime.UTC().Format(stampLayout),
		"DTEND:" + event.EndTime.UTC().Format(stampLayout),
		"DTSTAMP:" + now.UTC().Format(stampLayout),
		"SUMMARY:" + icsEscaper.Replace(event.Title),
		"DESCRIPTION:" + icsEscaper.Replace(event.Description),
		"LOCATION:" + icsEscaper.Replace(event.Location),
		"STATUS:CONFIRMED",
		"SEQUENCE:0",
		"BEGIN:VALARM",
		"TRIGGER:-PT15M",
		"ACTION:DISPLAY",
		"DESCRIPTION:Reminder",
		"END:VALARM",
		"END:VEVENT",
		"END:VCALENDAR",
	}
	return strings.Join(lines, "\r\n")
}
