package meeting

import (
	"fmt"
	"strings"
	"time"
)

const icsTimeLayout = "20060102T150405Z"

var icsEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\r\n", `\n`, "\n", `\n`)

// ICalendar renders the meeting as a single-event iCalendar (RFC 5545) REQUEST.
func ICalendar(m Meeting, organizerName, organizerEmail, prodID string) string {
	var b strings.Builder
	line := func(format string, args ...interface{}) {
		b.WriteString(fmt.Sprintf(format, args...))
		b.WriteString("\r\n")
	}

	line("BEGIN:VCALENDAR")
	line("VERSION:2.0")
	line("PRODID:-//%s//EN", prodID)
	line("METHOD:REQUEST")
	line("BEGIN:VEVENT")
	line("UID:%s@%s", m.ID, strings.ToLower(prodID))
	line("DTSTAMP:%s", m.UpdatedAt.UTC().Format(icsTimeLayout))
	line("DTSTART:%s", m.StartTime.UTC().Format(icsTimeLayout))
	line("DTEND:%s", m.EndTime.UTC().Format(icsTimeLayout))
	line("SUMMARY:%s", icsEscaper.Replace(m.Title))
	if m.Description != "" {
		line("DESCRIPTION:%s", icsEscaper.Replace(m.Description))
	}
	if m.Location != "" {
		line("LOCATION:%s", icsEscaper.Replace(m.Location))
	}
	if organizerEmail != "" {
		line("ORGANIZER;CN=%s:mailto:%s", icsEscaper.Replace(organizerName), organizerEmail)
	}
	line("END:VEVENT")
	line("END:VCALENDAR")
	return b.String()
}

func formatWhen(t time.Time) string {
	return t.UTC().Format("Mon 02 Jan 2006 15:04 MST")
}
