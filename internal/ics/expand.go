package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "crmcal/internal/log"
	"crmcal/internal/model"
)

const defaultOccurrenceCap = 5000

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the timezone all occurrences are converted
	// into; time.Local when nil.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the expansion window.
	RangeStart time.Time
	RangeEnd   time.Time

	// OccurrenceCap limits occurrences per event as a safety net
	// against pathological rules. Zero means defaultOccurrenceCap.
	OccurrenceCap int
}

// ExpandResult carries expanded occurrences plus the UIDs of events
// whose expansion hit the cap.
type ExpandResult struct {
	Occurrences   []model.Occurrence
	TruncatedUIDs []string
}

// Expand turns ParsedEvents into concrete occurrences within the
// window, handling RRULE recurrence, EXDATE removals, RECURRENCE-ID
// overrides and all-day semantics. Occurrences come back in the
// configured display timezone.
func Expand(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("ics: expansion range end before start")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.OccurrenceCap <= 0 {
		cfg.OccurrenceCap = defaultOccurrenceCap
	}

	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		} else {
			baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
		}
	}

	for uid, bases := range baseByUID {
		overrides := overridesByUID[uid]
		truncated := false

		for _, ev := range bases {
			occ, hitCap := expandEvent(ev, overrides, cfg)
			if hitCap {
				truncated = true
			}
			result.Occurrences = append(result.Occurrences, occ...)
		}

		if truncated {
			result.TruncatedUIDs = append(result.TruncatedUIDs, uid)
			appLog.Warn("ics expansion truncated", "uid", uid, "cap", cfg.OccurrenceCap)
		}
	}

	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool) {
	if ev.RawRRule == "" {
		return expandSingle(ev, overrides, cfg), false
	}
	return expandRecurring(ev, overrides, cfg)
}

func expandSingle(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.Occurrence {
	if !rangesTouch(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}

	start, end := ev.Start, ev.End
	if o, ok := overrideFor(overrides, start); ok {
		start, end, ev = o.Start, o.End, o
	}
	return []model.Occurrence{makeOccurrence(ev, start, end, cfg.DisplayLocation)}
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics rrule parse failed", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Between operates in the event's own timezone.
	rangeStart := cfg.RangeStart.In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())
	starts := set.Between(rangeStart, rangeEnd, true)

	hitCap := false
	if len(starts) > cfg.OccurrenceCap {
		starts = starts[:cfg.OccurrenceCap]
		hitCap = true
	}

	out := make([]model.Occurrence, 0, len(starts))
	dur := ev.End.Sub(ev.Start)

	for _, occStart := range starts {
		var occEnd time.Time
		if ev.AllDay {
			date := time.Date(occStart.Year(), occStart.Month(), occStart.Day(),
				0, 0, 0, 0, occStart.Location())
			occStart = date
			occEnd = date.Add(24 * time.Hour)
		} else {
			occEnd = occStart.Add(dur)
		}

		occEv := ev
		if o, ok := overrideFor(overrides, occStart); ok {
			occStart, occEnd, occEv = o.Start, o.End, o
		}
		out = append(out, makeOccurrence(occEv, occStart, occEnd, cfg.DisplayLocation))
	}

	return out, hitCap
}

// overrideFor finds the override whose RECURRENCE-ID equals baseStart.
func overrideFor(overrides []ParsedEvent, baseStart time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if ov.Recurrence.In(baseStart.Location()).Equal(baseStart) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func makeOccurrence(ev ParsedEvent, start, end time.Time, loc *time.Location) model.Occurrence {
	startLocal := start.In(loc)
	return model.Occurrence{
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		InstanceKey: startLocal.Format(time.RFC3339Nano),
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       startLocal,
		End:         end.In(loc),
	}
}

func rangesTouch(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
