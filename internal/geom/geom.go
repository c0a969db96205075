// Package geom holds the pure time-to-pixel arithmetic behind the day
// and week grids: linear mapping between wall-clock times and vertical
// offsets, snapping, event block placement within a visible hour
// window, and side-by-side layout of overlapping events.
//
// Everything in this package is deterministic and free of I/O so the
// grid math can be tested without a window.
package geom

import "time"

const (
	// HourHeight is the rendered height of one hour row, in pixels.
	HourHeight = 60.0

	// MinBlockHeight keeps very short events tall enough to grab.
	MinBlockHeight = 30.0

	// DefaultSnapMinutes is the default drag snapping granularity.
	DefaultSnapMinutes = 15

	pxPerMinute = HourHeight / 60.0

	minutesPerDay = 24 * 60
)

// Clock is a wall-clock time of day. Hour may be 24 (with Minute 0) to
// express end-of-day.
type Clock struct {
	Hour   int
	Minute int
}

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

// ClockFromMinutes builds a Clock from minutes since midnight.
func ClockFromMinutes(m int) Clock {
	return Clock{Hour: m / 60, Minute: m % 60}
}

// TimeToPixels maps a wall-clock time to a vertical offset within a
// grid whose first row is startHour.
func TimeToPixels(hour, minute, startHour int) float64 {
	return float64((hour-startHour)*60+minute) * pxPerMinute
}

// PixelsToTime is the inverse of TimeToPixels. The result is clamped
// so the hour is never below startHour and the minute never negative.
func PixelsToTime(px float64, startHour int) Clock {
	minutes := int(px/pxPerMinute) + startHour*60
	if minutes < startHour*60 {
		minutes = startHour * 60
	}
	return ClockFromMinutes(minutes)
}

// SnapToInterval rounds a time to the nearest multiple of interval
// minutes since midnight. 23:59 with a 15-minute interval rounds up to
// 24:00, which callers should treat as end-of-day.
func SnapToInterval(hour, minute, interval int) Clock {
	if interval <= 0 {
		interval = DefaultSnapMinutes
	}
	total := hour*60 + minute
	snapped := (total + interval/2) / interval * interval
	if snapped > minutesPerDay {
		snapped = minutesPerDay
	}
	return ClockFromMinutes(snapped)
}

// SnapPixelsToTime converts a live pointer offset straight to a
// snapped wall-clock time. This is the function drag interactions
// drive on every pointer move.
func SnapPixelsToTime(px float64, startHour, interval int) Clock {
	c := PixelsToTime(px, startHour)
	return SnapToInterval(c.Hour, c.Minute, interval)
}

// Rect is the vertical placement of an event block.
type Rect struct {
	Top    float64
	Height float64
}

// EventPosition computes a block's placement within the visible hour
// window [startHour, endHour). The second return value is false when
// the span lies entirely outside the window, in which case the caller
// must skip rendering the block; that is a visibility rule, not an
// error.
//
// An end of exactly 00:00 after a non-midnight start is read as 24:00
// so events ending at midnight keep a positive height. Spans partially
// outside the window are clamped at both edges, and the returned
// height is never below MinBlockHeight.
func EventPosition(start, end time.Time, startHour, endHour int) (Rect, bool) {
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()
	if endMin == 0 && startMin > 0 {
		endMin = minutesPerDay
	}

	winStart := startHour * 60
	winEnd := endHour * 60

	// Half-open intersection test: [startMin, endMin) vs [winStart, winEnd).
	if endMin <= winStart || startMin >= winEnd {
		return Rect{}, false
	}

	visStart := startMin
	if visStart < winStart {
		visStart = winStart
	}
	visEnd := endMin
	if visEnd > winEnd {
		visEnd = winEnd
	}

	r := Rect{
		Top:    float64(visStart-winStart) * pxPerMinute,
		Height: float64(visEnd-visStart) * pxPerMinute,
	}
	if r.Height < MinBlockHeight {
		r.Height = MinBlockHeight
	}
	return r, true
}

// NowIndicator returns the vertical offset of the live current-time
// marker for the given instant, or false when the current hour falls
// outside the visible window.
func NowIndicator(now time.Time, startHour, endHour int) (float64, bool) {
	minutes := now.Hour()*60 + now.Minute()
	if minutes < startHour*60 || minutes >= endHour*60 {
		return 0, false
	}
	return float64(minutes-startHour*60) * pxPerMinute, true
}
