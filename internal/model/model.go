package model

import "time"

// Event is a CRM appointment stored locally. The calendar views treat
// an Event as an immutable value while rendering; a drag only ever
// proposes a new start/end pair for it through the store.
type Event struct {
	ID int64

	Title       string
	Description string
	Location    string

	// Status is a free-form CRM status such as "confirmed" or "tentative".
	Status string
	// Kind tags the appointment type, e.g. "viewing", "valuation", "meeting".
	Kind string

	// Start / End are wall-clock instants in the display timezone.
	// End is strictly after Start for any persisted event.
	Start time.Time
	End   time.Time
}

// Duration returns the event length.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Occurrence is a single concrete instance of a subscribed feed event
// (after recurrence expansion and timezone normalization). Feed
// occurrences are rendered alongside CRM events but are read-only:
// they cannot be moved or resized.
type Occurrence struct {
	SourceID string // feed source ID from config
	UID      string // iCalendar UID

	// InstanceKey identifies one occurrence of a recurring event,
	// derived from the local start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}
