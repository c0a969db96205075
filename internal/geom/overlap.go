package geom

import (
	"sort"
	"time"
)

// Span is a half-open time range [Start, End) on a single day.
type Span struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open ranges intersect.
func (s Span) Overlaps(o Span) bool {
	return s.Start.Before(o.End) && o.Start.Before(s.End)
}

// Placement assigns one input span a horizontal slice of the day
// column, as percentages of the column width.
type Placement struct {
	// Index refers back to the input slice passed to OverlapLayout.
	Index int

	LeftPercent  float64
	WidthPercent float64
}

// OverlapLayout lays out the spans of one day column side by side.
// Spans are sorted by start time and grouped into connected runs of
// mutually overlapping ranges; each run's members share the column in
// equal-width slices ordered by start. Spans that overlap nothing keep
// the full width.
//
// This is run-based grouping, not full interval-graph coloring: once a
// run closes, a later span never reuses a column freed earlier. The
// simplification keeps the layout stable under drags and is cheap.
func OverlapLayout(spans []Span) []Placement {
	if len(spans) == 0 {
		return nil
	}

	order := make([]int, len(spans))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		sa, sb := spans[order[a]], spans[order[b]]
		if !sa.Start.Equal(sb.Start) {
			return sa.Start.Before(sb.Start)
		}
		return sa.End.Before(sb.End)
	})

	out := make([]Placement, 0, len(spans))

	// Walk spans in start order, extending the current run while the
	// next span overlaps any member of it.
	runStart := 0
	for runStart < len(order) {
		runEnd := runStart + 1
		maxEnd := spans[order[runStart]].End
		for runEnd < len(order) {
			next := spans[order[runEnd]]
			if !next.Start.Before(maxEnd) {
				break
			}
			if next.End.After(maxEnd) {
				maxEnd = next.End
			}
			runEnd++
		}

		size := runEnd - runStart
		width := 100.0 / float64(size)
		for i := runStart; i < runEnd; i++ {
			out = append(out, Placement{
				Index:        order[i],
				LeftPercent:  float64(i-runStart) * width,
				WidthPercent: width,
			})
		}
		runStart = runEnd
	}

	return out
}
