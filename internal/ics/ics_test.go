package ics

import (
	"strings"
	"testing"
	"time"
)

func fixture(lines ...string) []byte {
	all := append([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//crmcal test//EN",
	}, lines...)
	all = append(all, "END:VCALENDAR", "")
	return []byte(strings.Join(all, "\r\n"))
}

var testSrc = Source{ID: "test", URL: "https://feeds.example.com/cal.ics"}

func TestParseSingleEvent(t *testing.T) {
	body := fixture(
		"BEGIN:VEVENT",
		"UID:one@test",
		"SUMMARY:Viewing",
		"DESCRIPTION:Bring keys",
		"LOCATION:12 Harbor Rd",
		"DTSTART:20260309T090000Z",
		"DTEND:20260309T100000Z",
		"END:VEVENT",
	)

	events, err := Parse(testSrc, body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	ev := events[0]
	if ev.UID != "one@test" || ev.Summary != "Viewing" || ev.Location != "12 Harbor Rd" {
		t.Fatalf("parsed %+v", ev)
	}
	want := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	if !ev.Start.Equal(want) {
		t.Fatalf("start %v, want %v", ev.Start, want)
	}
	if ev.AllDay {
		t.Fatal("timed event flagged all-day")
	}
	if ev.RawRRule != "" {
		t.Fatalf("unexpected rrule %q", ev.RawRRule)
	}
}

func TestParseSkipsEventWithoutUID(t *testing.T) {
	body := fixture(
		"BEGIN:VEVENT",
		"SUMMARY:No UID",
		"DTSTART:20260309T090000Z",
		"DTEND:20260309T100000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:ok@test",
		"SUMMARY:Fine",
		"DTSTART:20260309T110000Z",
		"DTEND:20260309T120000Z",
		"END:VEVENT",
	)

	events, err := Parse(testSrc, body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(events) != 1 || events[0].UID != "ok@test" {
		t.Fatalf("got %+v, want only ok@test", events)
	}
}

func TestParseAllDay(t *testing.T) {
	body := fixture(
		"BEGIN:VEVENT",
		"UID:allday@test",
		"SUMMARY:Open house",
		"DTSTART;VALUE=DATE:20260310",
		"DTEND;VALUE=DATE:20260311",
		"END:VEVENT",
	)

	events, err := Parse(testSrc, body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(events) != 1 || !events[0].AllDay {
		t.Fatalf("all-day not detected: %+v", events)
	}
}

func TestParseEmptyPayload(t *testing.T) {
	if _, err := Parse(testSrc, nil); err == nil {
		t.Fatal("empty payload should fail")
	}
}

func expandWindow() ExpandConfig {
	return ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
		RangeEnd:        time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC),
	}
}

func TestExpandWeeklyWithExdate(t *testing.T) {
	body := fixture(
		"BEGIN:VEVENT",
		"UID:weekly@test",
		"SUMMARY:Team sync",
		"DTSTART:20260309T120000Z",
		"DTEND:20260309T123000Z",
		"RRULE:FREQ=WEEKLY;COUNT=4",
		"EXDATE:20260316T120000Z",
		"END:VEVENT",
	)

	events, err := Parse(testSrc, body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	res, err := Expand(events, expandWindow())
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(res.Occurrences) != 3 {
		t.Fatalf("got %d occurrences, want 3 (4 weekly minus 1 EXDATE)", len(res.Occurrences))
	}
	for _, occ := range res.Occurrences {
		if occ.Start.Day() == 16 {
			t.Fatalf("EXDATE instance survived: %v", occ.Start)
		}
		if occ.End.Sub(occ.Start) != 30*time.Minute {
			t.Fatalf("duration %v, want 30m", occ.End.Sub(occ.Start))
		}
	}
}

func TestExpandSingleOutsideWindow(t *testing.T) {
	body := fixture(
		"BEGIN:VEVENT",
		"UID:old@test",
		"SUMMARY:Long gone",
		"DTSTART:20200101T090000Z",
		"DTEND:20200101T100000Z",
		"END:VEVENT",
	)

	events, err := Parse(testSrc, body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res, err := Expand(events, expandWindow())
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(res.Occurrences) != 0 {
		t.Fatalf("got %d occurrences, want 0", len(res.Occurrences))
	}
}

func TestExpandRecurrenceOverride(t *testing.T) {
	body := fixture(
		"BEGIN:VEVENT",
		"UID:series@test",
		"SUMMARY:Valuation",
		"DTSTART:20260309T090000Z",
		"DTEND:20260309T100000Z",
		"RRULE:FREQ=WEEKLY;COUNT=2",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:series@test",
		"SUMMARY:Valuation (moved)",
		"DTSTART:20260316T140000Z",
		"DTEND:20260316T150000Z",
		"RECURRENCE-ID:20260316T090000Z",
		"END:VEVENT",
	)

	events, err := Parse(testSrc, body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res, err := Expand(events, expandWindow())
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(res.Occurrences) != 2 {
		t.Fatalf("got %d occurrences, want 2", len(res.Occurrences))
	}

	var moved bool
	for _, occ := range res.Occurrences {
		if occ.Summary == "Valuation (moved)" {
			moved = true
			want := time.Date(2026, 3, 16, 14, 0, 0, 0, time.UTC)
			if !occ.Start.Equal(want) {
				t.Fatalf("override start %v, want %v", occ.Start, want)
			}
		}
	}
	if !moved {
		t.Fatal("override occurrence missing")
	}
}

func TestExpandRejectsInvertedWindow(t *testing.T) {
	cfg := expandWindow()
	cfg.RangeStart, cfg.RangeEnd = cfg.RangeEnd, cfg.RangeStart
	if _, err := Expand(nil, cfg); err == nil {
		t.Fatal("inverted window should fail")
	}
}

func TestRedactURL(t *testing.T) {
	got := RedactURL("https://example.com/private/cal.ics?token=abcd")
	if got != "https://example.com/...(redacted)" {
		t.Fatalf("got %q", got)
	}
	if strings.Contains(got, "token") {
		t.Fatal("token leaked")
	}
}
