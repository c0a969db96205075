package view

import (
	"context"
	"image"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"crmcal/internal/drag"
	"crmcal/internal/geom"
	"crmcal/internal/model"
)

const (
	gutterWidth  = 56
	headerHeight = 28

	// scrollFallbackHour is where the view lands on first show when
	// the current time is outside the visible window.
	scrollFallbackHour = 8

	// mousePointer is the pointer id of the mouse; touches use 1+id.
	mousePointer = 0
)

// Grid is the interactive day/week calendar surface. The number of day
// columns decides the mode: one anchor renders the day view, seven the
// week view.
type Grid struct {
	startHour int
	endHour   int

	ctrl *drag.Controller

	days   []time.Time
	events []model.Event
	occs   []model.Occurrence

	now func() time.Time

	bounds       image.Rectangle
	scrollY      float64
	autoScrolled bool

	mouseInDrag bool
}

// NewGrid builds a grid over the visible window [startHour, endHour)
// driving the given controller. now is injectable for tests.
func NewGrid(ctrl *drag.Controller, startHour, endHour int, now func() time.Time) *Grid {
	if now == nil {
		now = time.Now
	}
	return &Grid{
		startHour: startHour,
		endHour:   endHour,
		ctrl:      ctrl,
		now:       now,
	}
}

// Controller exposes the drag controller, e.g. for draft confirmation.
func (g *Grid) Controller() *drag.Controller { return g.ctrl }

// SetBounds places the widget on screen.
func (g *Grid) SetBounds(r image.Rectangle) { g.bounds = r }

// SetDays replaces the day-column anchors (midnights, left to right).
func (g *Grid) SetDays(days []time.Time) { g.days = days }

// Days returns the current day-column anchors.
func (g *Grid) Days() []time.Time { return g.days }

// SetEvents replaces the CRM events shown on the grid.
func (g *Grid) SetEvents(events []model.Event) { g.events = events }

// SetOccurrences replaces the read-only feed occurrences.
func (g *Grid) SetOccurrences(occs []model.Occurrence) { g.occs = occs }

func (g *Grid) contentHeight() float64 {
	return float64(g.endHour-g.startHour) * geom.HourHeight
}

func (g *Grid) contentRect() image.Rectangle {
	return image.Rect(
		g.bounds.Min.X+gutterWidth,
		g.bounds.Min.Y+headerHeight,
		g.bounds.Max.X,
		g.bounds.Max.Y,
	)
}

func (g *Grid) colWidth() float64 {
	if len(g.days) == 0 {
		return 0
	}
	return float64(g.contentRect().Dx()) / float64(len(g.days))
}

// contentPos converts a screen position into a column index and
// content-space coordinates. ok is false outside the column area.
func (g *Grid) contentPos(sx, sy int) (col int, x, y float64, ok bool) {
	cr := g.contentRect()
	if len(g.days) == 0 || !image.Pt(sx, sy).In(cr) {
		return 0, 0, 0, false
	}
	cw := g.colWidth()
	fx := float64(sx - cr.Min.X)
	col = int(fx / cw)
	if col >= len(g.days) {
		col = len(g.days) - 1
	}
	x = fx - float64(col)*cw
	y = float64(sy-cr.Min.Y) + g.scrollY
	return col, x, y, true
}

// dragPos is contentPos without the bounds requirement: during a drag
// the pointer may leave the widget and the session must keep tracking
// it, clamped to the nearest column.
func (g *Grid) dragPos(sx, sy int) (col int, y float64) {
	cr := g.contentRect()
	cw := g.colWidth()
	fx := float64(sx - cr.Min.X)
	col = int(fx / cw)
	if col < 0 {
		col = 0
	}
	if col >= len(g.days) {
		col = len(g.days) - 1
	}
	y = float64(sy-cr.Min.Y) + g.scrollY
	return col, y
}

func (g *Grid) maxScroll() float64 {
	max := g.contentHeight() - float64(g.contentRect().Dy())
	if max < 0 {
		max = 0
	}
	return max
}

func (g *Grid) clampScroll() {
	if g.scrollY < 0 {
		g.scrollY = 0
	}
	if max := g.maxScroll(); g.scrollY > max {
		g.scrollY = max
	}
}

// autoScroll jumps to the current hour (or a fixed fallback) exactly
// once, on the first update after the widget has a size.
func (g *Grid) autoScroll() {
	if g.autoScrolled || g.bounds.Dx() == 0 {
		return
	}
	g.autoScrolled = true

	hour := g.now().Hour()
	if hour < g.startHour || hour >= g.endHour {
		hour = scrollFallbackHour
		if hour < g.startHour || hour >= g.endHour {
			hour = g.startHour
		}
	}
	g.scrollY = geom.TimeToPixels(hour, 0, g.startHour)
	g.clampScroll()
}

// columnBlocks lays out one column for the current frame.
func (g *Grid) columnBlocks(col int) []Block {
	return DayBlocks(g.events, g.occs, g.ctrl, g.days[col], g.startHour, g.endHour)
}

// draftRectIn returns the draft rectangle if the draft lies in the
// given column.
func (g *Grid) draftRectIn(col int) *geom.Rect {
	start, end, ok := g.ctrl.Draft()
	if !ok || !sameDay(start, g.days[col]) {
		return nil
	}
	r, visible := geom.EventPosition(start, end, g.startHour, g.endHour)
	if !visible {
		return nil
	}
	return &r
}

// Update processes one frame of input. ctx bounds the async mutations
// launched by drag commits.
func (g *Grid) Update(ctx context.Context) {
	g.ctrl.Drain()
	g.autoScroll()

	mx, my := ebiten.CursorPosition()

	// Wheel scrolling, disabled mid-drag so a drag never scrolls its
	// own reference frame.
	if _, wy := ebiten.Wheel(); wy != 0 && !g.ctrl.Active() {
		if image.Pt(mx, my).In(g.bounds) {
			g.scrollY -= wy * geom.HourHeight / 2
			g.clampScroll()
		}
	}

	g.updateMouse(ctx, mx, my)
	g.updateTouches(ctx)

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) && g.ctrl.Active() {
		g.ctrl.Cancel(mousePointer)
		g.mouseInDrag = false
	}

	ebiten.SetCursorShape(g.cursorShape(mx, my))
}

func (g *Grid) updateMouse(ctx context.Context, mx, my int) {
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		if col, x, y, ok := g.contentPos(mx, my); ok {
			g.beginDrag(mousePointer, col, x, y)
			g.mouseInDrag = g.ctrl.Active()
		}
	}

	if g.mouseInDrag && ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		col, y := g.dragPos(mx, my)
		g.ctrl.Update(mousePointer, g.days[col], y)
	}

	if inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) && g.mouseInDrag {
		g.ctrl.Release(ctx, mousePointer)
		g.mouseInDrag = false
	}
}

func (g *Grid) updateTouches(ctx context.Context) {
	for _, id := range inpututil.AppendJustPressedTouchIDs(nil) {
		tx, ty := ebiten.TouchPosition(id)
		if col, x, y, ok := g.contentPos(tx, ty); ok {
			g.beginDrag(1+int(id), col, x, y)
		}
	}

	for _, id := range ebiten.AppendTouchIDs(nil) {
		tx, ty := ebiten.TouchPosition(id)
		col, y := g.dragPos(tx, ty)
		g.ctrl.Update(1+int(id), g.days[col], y)
	}

	for _, id := range inpututil.AppendJustReleasedTouchIDs(nil) {
		// A vanished touch has no position anymore; the controller
		// commits the last candidate range.
		g.ctrl.Release(ctx, 1+int(id))
	}
}

// beginDrag starts a session matching whatever lies under the pointer.
func (g *Grid) beginDrag(pointer, col int, x, y float64) {
	if len(g.days) == 0 {
		return
	}
	day := g.days[col]
	blocks := g.columnBlocks(col)
	hit := HitTest(blocks, g.draftRectIn(col), g.colWidth(), x, y)

	switch hit.Kind {
	case HitBackground:
		g.ctrl.BeginCreate(pointer, day, y)
	case HitEventBody:
		if ev, ok := g.eventByID(hit.EventID); ok {
			g.ctrl.BeginMove(pointer, ev, day, y)
		}
	case HitEventTop:
		if ev, ok := g.eventByID(hit.EventID); ok {
			g.ctrl.BeginResize(pointer, ev, true)
		}
	case HitEventBottom:
		if ev, ok := g.eventByID(hit.EventID); ok {
			g.ctrl.BeginResize(pointer, ev, false)
		}
	case HitDraftBody:
		g.ctrl.BeginDraftMove(pointer, day, y)
	case HitDraftTop:
		g.ctrl.BeginDraftResize(pointer, true)
	case HitDraftBottom:
		g.ctrl.BeginDraftResize(pointer, false)
	case HitFeedBlock:
		// Feed occurrences are read-only; no session.
	}
}

func (g *Grid) eventByID(id int64) (model.Event, bool) {
	for _, ev := range g.events {
		if ev.ID == id {
			return ev, true
		}
	}
	return model.Event{}, false
}

// cursorShape picks the grabbing affordance for the active session, or
// a hover hint otherwise. It is recomputed every frame, so the shape
// is restored the moment a session ends, on every path.
func (g *Grid) cursorShape(mx, my int) ebiten.CursorShapeType {
	if s, ok := g.ctrl.Session(); ok {
		switch s.Kind {
		case drag.KindCreate:
			return ebiten.CursorShapeCrosshair
		case drag.KindResizeTop, drag.KindResizeBottom,
			drag.KindDraftResizeTop, drag.KindDraftResizeBottom:
			return ebiten.CursorShapeNSResize
		default:
			return ebiten.CursorShapeMove
		}
	}

	col, x, y, ok := g.contentPos(mx, my)
	if !ok {
		return ebiten.CursorShapeDefault
	}
	hit := HitTest(g.columnBlocks(col), g.draftRectIn(col), g.colWidth(), x, y)
	switch hit.Kind {
	case HitEventTop, HitEventBottom, HitDraftTop, HitDraftBottom:
		return ebiten.CursorShapeNSResize
	case HitEventBody, HitDraftBody:
		return ebiten.CursorShapeMove
	default:
		return ebiten.CursorShapeDefault
	}
}
