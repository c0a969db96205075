// Package drag implements the pointer-driven interaction engine behind
// the calendar grids: a single drag session at a time, interpreted as
// one of several intents (create, move, resize, and their draft
// variants), with an optimistic overlay for in-flight move/resize
// mutations and rollback on failure.
//
// The package is independent of the input binding: the view feeds it
// device-agnostic pointer events (down/move/up/cancel) with a day
// column anchor and a vertical grid offset.
package drag

import (
	"context"
	"time"

	"crmcal/internal/geom"
	appLog "crmcal/internal/log"
	"crmcal/internal/model"
)

// Kind names the intent of an active drag session.
type Kind int

const (
	KindNone Kind = iota
	KindCreate
	KindMove
	KindResizeTop
	KindResizeBottom
	KindDraftMove
	KindDraftResizeTop
	KindDraftResizeBottom
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindMove:
		return "move"
	case KindResizeTop:
		return "resize-top"
	case KindResizeBottom:
		return "resize-bottom"
	case KindDraftMove:
		return "draft-move"
	case KindDraftResizeTop:
		return "draft-resize-top"
	case KindDraftResizeBottom:
		return "draft-resize-bottom"
	default:
		return "none"
	}
}

// IsResize reports whether the kind resizes a committed event.
func (k Kind) IsResize() bool {
	return k == KindResizeTop || k == KindResizeBottom
}

// isDraft reports whether the kind manipulates the draft selection.
func (k Kind) isDraft() bool {
	return k == KindDraftMove || k == KindDraftResizeTop || k == KindDraftResizeBottom
}

// MutateFunc is the async mutation contract supplied by the store
// layer. It must return a non-nil error on rejection.
type MutateFunc func(ctx context.Context, id int64, start, end time.Time) error

// Notifier surfaces toast-style outcome messages to the user.
type Notifier interface {
	Success(msg string)
	Failure(msg string)
}

// Callbacks wires the controller to its collaborators.
type Callbacks struct {
	Move   MutateFunc
	Resize MutateFunc

	// Create is invoked when a create-kind drag commits, handing the
	// final range to whatever owns the creation flow. May be nil.
	Create func(start, end time.Time)

	Notify Notifier
}

// Config carries the grid parameters the controller snaps against.
type Config struct {
	StartHour   int
	EndHour     int
	SnapMinutes int
}

// Override is a locally modified copy of an event's range, rendered in
// place of the authoritative value until the server confirms.
type Override struct {
	Start time.Time
	End   time.Time
}

// Session is the single source of truth for an in-progress drag.
type Session struct {
	Kind    Kind
	Pointer int

	// EventID is set for move/resize of a committed event.
	EventID int64

	// Day is midnight of the day column currently under the pointer.
	Day time.Time

	// Anchor is the snapped time under the pointer at session start.
	Anchor geom.Clock

	// OrigStart / OrigEnd are the range at session start.
	OrigStart time.Time
	OrigEnd   time.Time

	// Start / End are the live candidate range.
	Start time.Time
	End   time.Time
}

type commitResult struct {
	id   int64
	kind Kind
	err  error
}

// Controller runs the drag state machine for one view instance. The
// overlay and draft live on the controller, so concurrently rendered
// calendar views never share state. All methods must be called from
// the UI loop; only commit goroutines run elsewhere, and they
// communicate back exclusively through the results channel drained by
// Drain.
type Controller struct {
	cfg Config
	cb  Callbacks

	session *Session

	overlay map[int64]Override
	pending map[int64]bool

	draftStart time.Time
	draftEnd   time.Time
	hasDraft   bool

	results chan commitResult
}

// New constructs a Controller for one view instance.
func New(cfg Config, cb Callbacks) *Controller {
	if cfg.SnapMinutes <= 0 {
		cfg.SnapMinutes = geom.DefaultSnapMinutes
	}
	if cfg.EndHour <= cfg.StartHour {
		cfg.StartHour, cfg.EndHour = 0, 24
	}
	return &Controller{
		cfg:     cfg,
		cb:      cb,
		overlay: make(map[int64]Override),
		pending: make(map[int64]bool),
		results: make(chan commitResult, 16),
	}
}

// Session returns a copy of the active session, if any.
func (c *Controller) Session() (Session, bool) {
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// Active reports whether a drag session is in progress.
func (c *Controller) Active() bool {
	return c.session != nil
}

// OverlayFor returns the optimistic override for an event, if present.
func (c *Controller) OverlayFor(id int64) (Override, bool) {
	o, ok := c.overlay[id]
	return o, ok
}

// Draft returns the uncommitted draft selection, if one exists.
func (c *Controller) Draft() (start, end time.Time, ok bool) {
	return c.draftStart, c.draftEnd, c.hasDraft
}

// SetDraft seeds the draft selection, e.g. from a creation form.
func (c *Controller) SetDraft(start, end time.Time) {
	if !end.After(start) {
		return
	}
	c.draftStart, c.draftEnd, c.hasDraft = start, end, true
}

// ClearDraft discards the draft selection.
func (c *Controller) ClearDraft() {
	c.draftStart, c.draftEnd, c.hasDraft = time.Time{}, time.Time{}, false
}

// snapAt converts a vertical grid offset to a snapped clock, clamped
// to the visible hour window.
func (c *Controller) snapAt(y float64) geom.Clock {
	clk := geom.SnapPixelsToTime(y, c.cfg.StartHour, c.cfg.SnapMinutes)
	if clk.Minutes() < c.cfg.StartHour*60 {
		clk = geom.ClockFromMinutes(c.cfg.StartHour * 60)
	}
	if clk.Minutes() > c.cfg.EndHour*60 {
		clk = geom.ClockFromMinutes(c.cfg.EndHour * 60)
	}
	return clk
}

func dayMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func clockOn(day time.Time, clk geom.Clock) time.Time {
	return dayMidnight(day).Add(time.Duration(clk.Minutes()) * time.Minute)
}

// BeginCreate starts a create session on empty grid background. The
// initial range is one snap interval anchored at the pointer.
func (c *Controller) BeginCreate(pointer int, day time.Time, y float64) {
	if c.session != nil {
		return
	}
	anchor := c.snapAt(y)
	start := clockOn(day, anchor)
	end := start.Add(time.Duration(c.cfg.SnapMinutes) * time.Minute)
	c.session = &Session{
		Kind:      KindCreate,
		Pointer:   pointer,
		Day:       dayMidnight(day),
		Anchor:    anchor,
		OrigStart: start,
		OrigEnd:   end,
		Start:     start,
		End:       end,
	}
}

// BeginMove starts a move session on a committed event's body. The
// request is refused while a commit for the same event is in flight.
func (c *Controller) BeginMove(pointer int, ev model.Event, day time.Time, y float64) {
	if c.session != nil || c.pending[ev.ID] {
		return
	}
	c.session = &Session{
		Kind:      KindMove,
		Pointer:   pointer,
		EventID:   ev.ID,
		Day:       dayMidnight(day),
		Anchor:    c.snapAt(y),
		OrigStart: ev.Start,
		OrigEnd:   ev.End,
		Start:     ev.Start,
		End:       ev.End,
	}
	c.overlay[ev.ID] = Override{Start: ev.Start, End: ev.End}
}

// BeginResize starts a resize session on a committed event's top or
// bottom handle.
func (c *Controller) BeginResize(pointer int, ev model.Event, top bool) {
	if c.session != nil || c.pending[ev.ID] {
		return
	}
	kind := KindResizeBottom
	if top {
		kind = KindResizeTop
	}
	c.session = &Session{
		Kind:      kind,
		Pointer:   pointer,
		EventID:   ev.ID,
		Day:       dayMidnight(ev.Start),
		OrigStart: ev.Start,
		OrigEnd:   ev.End,
		Start:     ev.Start,
		End:       ev.End,
	}
	c.overlay[ev.ID] = Override{Start: ev.Start, End: ev.End}
}

// BeginDraftMove starts moving the draft selection.
func (c *Controller) BeginDraftMove(pointer int, day time.Time, y float64) {
	if c.session != nil || !c.hasDraft {
		return
	}
	c.session = &Session{
		Kind:      KindDraftMove,
		Pointer:   pointer,
		Day:       dayMidnight(day),
		Anchor:    c.snapAt(y),
		OrigStart: c.draftStart,
		OrigEnd:   c.draftEnd,
		Start:     c.draftStart,
		End:       c.draftEnd,
	}
}

// BeginDraftResize starts resizing the draft selection.
func (c *Controller) BeginDraftResize(pointer int, top bool) {
	if c.session != nil || !c.hasDraft {
		return
	}
	kind := KindDraftResizeBottom
	if top {
		kind = KindDraftResizeTop
	}
	c.session = &Session{
		Kind:      kind,
		Pointer:   pointer,
		Day:       dayMidnight(c.draftStart),
		OrigStart: c.draftStart,
		OrigEnd:   c.draftEnd,
		Start:     c.draftStart,
		End:       c.draftEnd,
	}
}

// Update advances the session's candidate range for a pointer move.
// Events from pointers that do not own the session are ignored.
func (c *Controller) Update(pointer int, day time.Time, y float64) {
	s := c.session
	if s == nil || s.Pointer != pointer {
		return
	}
	cur := c.snapAt(y)

	switch s.Kind {
	case KindCreate:
		// Free-form rectangle between the anchor and the pointer, with
		// a floor of one snap interval.
		a := clockOn(s.Day, s.Anchor)
		b := clockOn(s.Day, cur)
		if b.Before(a) {
			a, b = b, a
		}
		if !b.After(a) {
			b = a.Add(time.Duration(c.cfg.SnapMinutes) * time.Minute)
		}
		s.Start, s.End = a, b

	case KindMove, KindDraftMove:
		c.updateMove(s, day, cur)

	case KindResizeTop, KindDraftResizeTop:
		newStart := clockOn(s.Day, cur)
		// Reject inversions: the start may never reach the end.
		if !newStart.Before(s.End) {
			return
		}
		s.Start = newStart

	case KindResizeBottom, KindDraftResizeBottom:
		newEnd := clockOn(s.Day, cur)
		if !newEnd.After(s.Start) {
			return
		}
		s.End = newEnd
	}

	if s.Kind == KindMove || s.Kind.IsResize() {
		c.overlay[s.EventID] = Override{Start: s.Start, End: s.End}
	}
}

// updateMove shifts the original range by the pointer delta, keeping
// the duration and staying within the target day.
func (c *Controller) updateMove(s *Session, day time.Time, cur geom.Clock) {
	targetDay := dayMidnight(day)
	dayDelta := int(targetDay.Sub(s.Day).Hours() / 24)
	minuteDelta := time.Duration(cur.Minutes()-s.Anchor.Minutes()) * time.Minute

	newStart := s.OrigStart.AddDate(0, 0, dayDelta).Add(minuteDelta)
	newEnd := s.OrigEnd.AddDate(0, 0, dayDelta).Add(minuteDelta)

	// Clamp the whole span inside its day so a move never crosses
	// midnight; multi-day events are out of scope.
	dur := newEnd.Sub(newStart)
	dayStart := dayMidnight(newStart)
	dayEnd := dayStart.Add(24 * time.Hour)
	if newStart.Before(dayStart) {
		newStart = dayStart
		newEnd = newStart.Add(dur)
	}
	if newEnd.After(dayEnd) {
		newEnd = dayEnd
		newStart = newEnd.Add(-dur)
	}

	s.Start, s.End = newStart, newEnd
}

// Release commits the session owned by pointer. Create and draft kinds
// resolve locally; move/resize of a committed event launches the async
// mutation, whose result is applied by Drain.
func (c *Controller) Release(ctx context.Context, pointer int) {
	s := c.session
	if s == nil || s.Pointer != pointer {
		return
	}
	c.session = nil

	switch {
	case s.Kind == KindCreate:
		if c.cb.Create != nil {
			c.cb.Create(s.Start, s.End)
		}

	case s.Kind.isDraft():
		c.draftStart, c.draftEnd, c.hasDraft = s.Start, s.End, true

	case s.Kind == KindMove || s.Kind.IsResize():
		// No-op drags skip the round trip and drop the overlay.
		if s.Start.Equal(s.OrigStart) && s.End.Equal(s.OrigEnd) {
			delete(c.overlay, s.EventID)
			return
		}
		c.commit(ctx, s)
	}
}

func (c *Controller) commit(ctx context.Context, s *Session) {
	fn := c.cb.Move
	if s.Kind.IsResize() {
		fn = c.cb.Resize
	}
	if fn == nil {
		delete(c.overlay, s.EventID)
		return
	}

	c.pending[s.EventID] = true
	id, kind := s.EventID, s.Kind
	start, end := s.Start, s.End

	go func() {
		err := fn(ctx, id, start, end)
		c.results <- commitResult{id: id, kind: kind, err: err}
	}()
}

// Cancel discards the session owned by pointer with no mutation call
// and no residual overlay, as if the drag never happened.
func (c *Controller) Cancel(pointer int) {
	s := c.session
	if s == nil || s.Pointer != pointer {
		return
	}
	c.session = nil
	if s.Kind == KindMove || s.Kind.IsResize() {
		delete(c.overlay, s.EventID)
	}
}

// Drain applies any finished commit results without blocking. The view
// calls this once per frame; an overlay entry is only ever cleared by
// the commit of the session that wrote it.
func (c *Controller) Drain() {
	for {
		select {
		case res := <-c.results:
			c.apply(res)
		default:
			return
		}
	}
}

// Flush blocks until every in-flight commit has been applied; used by
// tests and shutdown.
func (c *Controller) Flush() {
	for len(c.pending) > 0 {
		c.apply(<-c.results)
	}
}

func (c *Controller) apply(res commitResult) {
	delete(c.pending, res.id)
	// Success and failure both clear the overlay: on success the next
	// refresh shows the authoritative value, on failure the block
	// reverts to its pre-drag range.
	delete(c.overlay, res.id)

	verb := "move"
	if res.kind.IsResize() {
		verb = "resize"
	}

	if res.err != nil {
		appLog.Error("event "+verb+" rejected", res.err, "event_id", res.id)
		if c.cb.Notify != nil {
			c.cb.Notify.Failure("failed to " + verb + " event")
		}
		return
	}
	if c.cb.Notify != nil {
		c.cb.Notify.Success("event " + verb + "d")
	}
}
