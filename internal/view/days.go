package view

import (
	"strings"
	"time"
)

// Midnight truncates t to the start of its day, keeping the location.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// WeekDays returns the seven day-column anchors of the week containing
// anchor. weekStart is a lowercase weekday name ("monday", "sunday",
// ...); unknown values mean Monday.
func WeekDays(anchor time.Time, weekStart string) []time.Time {
	first := time.Monday
	switch strings.ToLower(weekStart) {
	case "sunday":
		first = time.Sunday
	case "saturday":
		first = time.Saturday
	}

	day := Midnight(anchor)
	offset := (int(day.Weekday()) - int(first) + 7) % 7
	start := day.AddDate(0, 0, -offset)

	days := make([]time.Time, 7)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}
