// Package view renders the day and week calendar grids and feeds
// pointer input to the drag controller. One Grid serves both views,
// parameterized by its list of day-column anchors (one for the day
// view, seven for the week view).
//
// Layout and hit testing are pure functions over content-space
// coordinates so they can be tested without a window; the Ebiten
// specifics live in grid.go and draw.go.
package view

import (
	"time"

	"crmcal/internal/drag"
	"crmcal/internal/geom"
	"crmcal/internal/model"
)

// HandleHeight is the grab zone at the top and bottom edge of a block
// that starts a resize instead of a move.
const HandleHeight = 6.0

// Block is one positioned rectangle in a day column.
type Block struct {
	// Rect is the vertical placement in content coordinates.
	Rect geom.Rect

	// LeftPercent / WidthPercent slice the column horizontally.
	LeftPercent  float64
	WidthPercent float64

	// EventID is zero for read-only feed occurrences.
	EventID int64
	Feed    bool

	Title    string
	Location string
	Status   string

	Start time.Time
	End   time.Time
}

// Overlay is the view's lookup for optimistic overrides, satisfied by
// the drag controller.
type Overlay interface {
	OverlayFor(id int64) (drag.Override, bool)
}

func sameDay(t, day time.Time) bool {
	return t.Year() == day.Year() && t.Month() == day.Month() && t.Day() == day.Day()
}

// DayBlocks lays out one day column: CRM events (with any optimistic
// override applied) plus timed feed occurrences, grouped side by side
// where they overlap. Blocks outside the visible hour window are
// omitted.
func DayBlocks(events []model.Event, occs []model.Occurrence, overlay Overlay,
	day time.Time, startHour, endHour int) []Block {

	type candidate struct {
		block Block
		span  geom.Span
	}
	var cands []candidate

	for _, ev := range events {
		start, end := ev.Start, ev.End
		if overlay != nil {
			if o, ok := overlay.OverlayFor(ev.ID); ok {
				start, end = o.Start, o.End
			}
		}
		if !sameDay(start, day) {
			continue
		}
		cands = append(cands, candidate{
			block: Block{
				EventID:  ev.ID,
				Title:    ev.Title,
				Location: ev.Location,
				Status:   ev.Status,
				Start:    start,
				End:      end,
			},
			span: geom.Span{Start: start, End: end},
		})
	}

	for _, occ := range occs {
		if occ.AllDay || !sameDay(occ.Start, day) {
			continue
		}
		cands = append(cands, candidate{
			block: Block{
				Feed:     true,
				Title:    occ.Summary,
				Location: occ.Location,
				Start:    occ.Start,
				End:      occ.End,
			},
			span: geom.Span{Start: occ.Start, End: occ.End},
		})
	}

	if len(cands) == 0 {
		return nil
	}

	spans := make([]geom.Span, len(cands))
	for i, c := range cands {
		spans[i] = c.span
	}

	var out []Block
	for _, p := range geom.OverlapLayout(spans) {
		c := cands[p.Index]
		rect, visible := geom.EventPosition(c.span.Start, c.span.End, startHour, endHour)
		if !visible {
			continue
		}
		b := c.block
		b.Rect = rect
		b.LeftPercent = p.LeftPercent
		b.WidthPercent = p.WidthPercent
		out = append(out, b)
	}
	return out
}

// HitKind classifies what lies under a pointer position.
type HitKind int

const (
	HitBackground HitKind = iota
	HitEventBody
	HitEventTop
	HitEventBottom
	HitFeedBlock
	HitDraftBody
	HitDraftTop
	HitDraftBottom
)

// Hit is the result of a pointer-position lookup within one column.
type Hit struct {
	Kind    HitKind
	EventID int64
}

// HitTest resolves a content-space position (x across the column,
// y down it) against the column's blocks and the draft rectangle.
// The draft sits on top of committed blocks; later blocks in layout
// order win over earlier ones at the same spot.
func HitTest(blocks []Block, draft *geom.Rect, colWidth, x, y float64) Hit {
	if draft != nil {
		if h, ok := zoneHit(*draft, 0, 100, colWidth, x, y,
			HitDraftTop, HitDraftBottom, HitDraftBody); ok {
			return h
		}
	}

	for i := len(blocks) - 1; i >= 0; i-- {
		b := blocks[i]
		if b.Feed {
			if inBlock(b.Rect, b.LeftPercent, b.WidthPercent, colWidth, x, y) {
				return Hit{Kind: HitFeedBlock}
			}
			continue
		}
		if h, ok := zoneHit(b.Rect, b.LeftPercent, b.WidthPercent, colWidth, x, y,
			HitEventTop, HitEventBottom, HitEventBody); ok {
			h.EventID = b.EventID
			return h
		}
	}

	return Hit{Kind: HitBackground}
}

func inBlock(r geom.Rect, leftPct, widthPct, colWidth, x, y float64) bool {
	bx := leftPct / 100 * colWidth
	bw := widthPct / 100 * colWidth
	return x >= bx && x < bx+bw && y >= r.Top && y < r.Top+r.Height
}

// zoneHit splits a block into top handle, bottom handle and body.
func zoneHit(r geom.Rect, leftPct, widthPct, colWidth, x, y float64,
	top, bottom, body HitKind) (Hit, bool) {

	if !inBlock(r, leftPct, widthPct, colWidth, x, y) {
		return Hit{}, false
	}
	switch {
	case y < r.Top+HandleHeight:
		return Hit{Kind: top}, true
	case y >= r.Top+r.Height-HandleHeight:
		return Hit{Kind: bottom}, true
	default:
		return Hit{Kind: body}, true
	}
}
