package drag

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crmcal/internal/model"
)

var day = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

func at(hour, min int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

// recordingMutator counts mutation calls and returns a fixed error.
type recordingMutator struct {
	mu    sync.Mutex
	calls []mutation
	err   error
}

type mutation struct {
	id         int64
	start, end time.Time
}

func (m *recordingMutator) fn(_ context.Context, id int64, start, end time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mutation{id: id, start: start, end: end})
	return m.err
}

func (m *recordingMutator) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *recordingMutator) last() mutation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[len(m.calls)-1]
}

type recordingNotifier struct {
	successes []string
	failures  []string
}

func (n *recordingNotifier) Success(msg string) { n.successes = append(n.successes, msg) }
func (n *recordingNotifier) Failure(msg string) { n.failures = append(n.failures, msg) }

func newTestController(move, resize *recordingMutator, n Notifier) *Controller {
	cb := Callbacks{Notify: n}
	if move != nil {
		cb.Move = move.fn
	}
	if resize != nil {
		cb.Resize = resize.fn
	}
	return New(Config{StartHour: 0, EndHour: 24, SnapMinutes: 15}, cb)
}

// yFor maps a wall-clock time to a grid offset at 60px/hour with the
// window starting at midnight.
func yFor(hour, min int) float64 {
	return float64(hour*60 + min)
}

func TestCreateDragProducesSnappedRange(t *testing.T) {
	var created []mutation
	c := New(Config{StartHour: 0, EndHour: 24, SnapMinutes: 15}, Callbacks{
		Create: func(start, end time.Time) {
			created = append(created, mutation{start: start, end: end})
		},
	})

	c.BeginCreate(0, day, yFor(9, 2))
	c.Update(0, day, yFor(10, 28))
	c.Release(context.Background(), 0)

	if len(created) != 1 {
		t.Fatalf("create callback fired %d times, want 1", len(created))
	}
	if !created[0].start.Equal(at(9, 0)) || !created[0].end.Equal(at(10, 30)) {
		t.Fatalf("created range %v-%v, want 09:00-10:30", created[0].start, created[0].end)
	}
	if c.Active() {
		t.Fatal("session should be gone after release")
	}
}

func TestCreateDragUpwardSwapsAnchor(t *testing.T) {
	var got mutation
	c := New(Config{StartHour: 0, EndHour: 24, SnapMinutes: 15}, Callbacks{
		Create: func(start, end time.Time) { got = mutation{start: start, end: end} },
	})

	c.BeginCreate(0, day, yFor(11, 0))
	c.Update(0, day, yFor(9, 30))
	c.Release(context.Background(), 0)

	if !got.start.Equal(at(9, 30)) || !got.end.Equal(at(11, 0)) {
		t.Fatalf("range %v-%v, want 09:30-11:00", got.start, got.end)
	}
}

func TestCreateDragMinimumDuration(t *testing.T) {
	var got mutation
	c := New(Config{StartHour: 0, EndHour: 24, SnapMinutes: 15}, Callbacks{
		Create: func(start, end time.Time) { got = mutation{start: start, end: end} },
	})

	// Pointer never leaves the anchor slot.
	c.BeginCreate(0, day, yFor(9, 0))
	c.Update(0, day, yFor(9, 3))
	c.Release(context.Background(), 0)

	if !got.end.Equal(got.start.Add(15 * time.Minute)) {
		t.Fatalf("range %v-%v, want one snap interval", got.start, got.end)
	}
}

func TestMoveCommitCallsMutatorOnce(t *testing.T) {
	mut := &recordingMutator{}
	notes := &recordingNotifier{}
	c := newTestController(mut, nil, notes)

	ev := model.Event{ID: 7, Start: at(9, 0), End: at(10, 0)}

	c.BeginMove(0, ev, day, yFor(9, 0))
	c.Update(0, day, yFor(11, 0))
	c.Release(context.Background(), 0)
	c.Flush()

	if mut.count() != 1 {
		t.Fatalf("moveEvent called %d times, want 1", mut.count())
	}
	got := mut.last()
	if got.id != 7 || !got.start.Equal(at(11, 0)) || !got.end.Equal(at(12, 0)) {
		t.Fatalf("moveEvent(%d, %v, %v), want (7, 11:00, 12:00)", got.id, got.start, got.end)
	}
	if _, ok := c.OverlayFor(7); ok {
		t.Fatal("overlay should be cleared after successful commit")
	}
	if len(notes.successes) != 1 || notes.successes[0] != "event moved" {
		t.Fatalf("success notifications = %v", notes.successes)
	}
}

func TestMovePreservesDurationAndWritesOverlay(t *testing.T) {
	mut := &recordingMutator{}
	c := newTestController(mut, nil, nil)

	ev := model.Event{ID: 3, Start: at(9, 0), End: at(10, 30)}
	c.BeginMove(0, ev, day, yFor(9, 15))
	c.Update(0, day, yFor(13, 15))

	o, ok := c.OverlayFor(3)
	if !ok {
		t.Fatal("overlay entry missing during move")
	}
	if !o.Start.Equal(at(13, 0)) || !o.End.Equal(at(14, 30)) {
		t.Fatalf("overlay %v-%v, want 13:00-14:30", o.Start, o.End)
	}
	if o.End.Sub(o.Start) != 90*time.Minute {
		t.Fatalf("duration changed to %v", o.End.Sub(o.Start))
	}
}

func TestMoveAcrossDayColumns(t *testing.T) {
	mut := &recordingMutator{}
	c := newTestController(mut, nil, nil)

	nextDay := day.AddDate(0, 0, 1)
	ev := model.Event{ID: 4, Start: at(9, 0), End: at(10, 0)}
	c.BeginMove(0, ev, day, yFor(9, 0))
	c.Update(0, nextDay, yFor(9, 0))
	c.Release(context.Background(), 0)
	c.Flush()

	got := mut.last()
	if !got.start.Equal(at(9, 0).AddDate(0, 0, 1)) {
		t.Fatalf("start %v, want same time next day", got.start)
	}
}

func TestMoveClampedInsideDay(t *testing.T) {
	c := newTestController(&recordingMutator{}, nil, nil)

	ev := model.Event{ID: 5, Start: at(22, 0), End: at(23, 30)}
	c.BeginMove(0, ev, day, yFor(22, 0))
	c.Update(0, day, yFor(23, 45))

	o, _ := c.OverlayFor(5)
	if !o.End.Equal(day.AddDate(0, 0, 1)) {
		t.Fatalf("end %v, want clamped to midnight", o.End)
	}
	if o.End.Sub(o.Start) != 90*time.Minute {
		t.Fatalf("duration %v, want 90m preserved", o.End.Sub(o.Start))
	}
}

func TestMoveFailureRollsBackOverlayAndNotifies(t *testing.T) {
	mut := &recordingMutator{err: errors.New("boom")}
	notes := &recordingNotifier{}
	c := newTestController(mut, nil, notes)

	ev := model.Event{ID: 9, Start: at(9, 0), End: at(10, 0)}
	c.BeginMove(0, ev, day, yFor(9, 0))
	c.Update(0, day, yFor(11, 0))
	c.Release(context.Background(), 0)
	c.Flush()

	if _, ok := c.OverlayFor(9); ok {
		t.Fatal("overlay should revert after failed commit")
	}
	if mut.count() != 1 {
		t.Fatalf("moveEvent called %d times, want 1 (no retry)", mut.count())
	}
	if len(notes.failures) != 1 || notes.failures[0] != "failed to move event" {
		t.Fatalf("failure notifications = %v", notes.failures)
	}
	if len(notes.successes) != 0 {
		t.Fatalf("unexpected success notifications: %v", notes.successes)
	}
}

func TestResizeBottomInvariant(t *testing.T) {
	mut := &recordingMutator{}
	notes := &recordingNotifier{}
	c := newTestController(nil, mut, notes)

	ev := model.Event{ID: 2, Start: at(9, 0), End: at(10, 0)}
	c.BeginResize(0, ev, false)

	// Dragging the bottom edge to or above the start is rejected and
	// the last valid candidate survives.
	c.Update(0, day, yFor(9, 0))
	if s, _ := c.Session(); !s.End.Equal(at(10, 0)) {
		t.Fatalf("end moved to %v on rejected update", s.End)
	}
	c.Update(0, day, yFor(8, 0))
	if s, _ := c.Session(); !s.End.After(s.Start) {
		t.Fatal("candidate end must stay after start")
	}

	c.Update(0, day, yFor(11, 30))
	c.Release(context.Background(), 0)
	c.Flush()

	got := mut.last()
	if !got.end.Equal(at(11, 30)) || !got.start.Equal(at(9, 0)) {
		t.Fatalf("resizeEvent(%v, %v), want (09:00, 11:30)", got.start, got.end)
	}
	if len(notes.successes) != 1 || notes.successes[0] != "event resized" {
		t.Fatalf("success notifications = %v", notes.successes)
	}
}

func TestResizeTopInvariant(t *testing.T) {
	mut := &recordingMutator{}
	c := newTestController(nil, mut, nil)

	ev := model.Event{ID: 2, Start: at(9, 0), End: at(10, 0)}
	c.BeginResize(0, ev, true)

	c.Update(0, day, yFor(10, 0))
	if s, _ := c.Session(); !s.Start.Equal(at(9, 0)) {
		t.Fatalf("start moved to %v on rejected update", s.Start)
	}

	c.Update(0, day, yFor(8, 15))
	c.Release(context.Background(), 0)
	c.Flush()

	got := mut.last()
	if !got.start.Equal(at(8, 15)) || !got.end.Equal(at(10, 0)) {
		t.Fatalf("resizeEvent(%v, %v), want (08:15, 10:00)", got.start, got.end)
	}
}

func TestResizeFailureMessageDistinguished(t *testing.T) {
	mut := &recordingMutator{err: errors.New("conflict")}
	notes := &recordingNotifier{}
	c := newTestController(nil, mut, notes)

	ev := model.Event{ID: 8, Start: at(9, 0), End: at(10, 0)}
	c.BeginResize(0, ev, false)
	c.Update(0, day, yFor(11, 0))
	c.Release(context.Background(), 0)
	c.Flush()

	if len(notes.failures) != 1 || notes.failures[0] != "failed to resize event" {
		t.Fatalf("failure notifications = %v", notes.failures)
	}
}

func TestCancelDiscardsWithoutMutation(t *testing.T) {
	var created int
	mut := &recordingMutator{}
	c := New(Config{StartHour: 0, EndHour: 24, SnapMinutes: 15}, Callbacks{
		Move:   mut.fn,
		Create: func(start, end time.Time) { created++ },
	})

	c.BeginCreate(0, day, yFor(9, 0))
	c.Update(0, day, yFor(10, 0))
	c.Cancel(0)

	if created != 0 {
		t.Fatal("create callback must not fire on cancel")
	}
	if c.Active() {
		t.Fatal("session should be discarded")
	}

	ev := model.Event{ID: 6, Start: at(9, 0), End: at(10, 0)}
	c.BeginMove(0, ev, day, yFor(9, 0))
	c.Update(0, day, yFor(12, 0))
	c.Cancel(0)

	if _, ok := c.OverlayFor(6); ok {
		t.Fatal("cancel must clear overlay entries from the session")
	}
	if mut.count() != 0 {
		t.Fatal("cancel must not issue a mutation")
	}
}

func TestNonOwningPointerIgnored(t *testing.T) {
	c := newTestController(&recordingMutator{}, nil, nil)

	ev := model.Event{ID: 1, Start: at(9, 0), End: at(10, 0)}
	c.BeginMove(1, ev, day, yFor(9, 0))

	// A second pointer cannot steal or end the session.
	c.Update(2, day, yFor(13, 0))
	c.Release(context.Background(), 2)
	c.Cancel(2)

	s, ok := c.Session()
	if !ok {
		t.Fatal("session lost to a non-owning pointer")
	}
	if !s.Start.Equal(at(9, 0)) {
		t.Fatalf("candidate start %v moved by foreign pointer", s.Start)
	}
}

func TestSecondSessionRefusedWhileActive(t *testing.T) {
	c := newTestController(&recordingMutator{}, nil, nil)

	c.BeginCreate(0, day, yFor(9, 0))
	ev := model.Event{ID: 1, Start: at(14, 0), End: at(15, 0)}
	c.BeginMove(1, ev, day, yFor(14, 0))

	s, _ := c.Session()
	if s.Kind != KindCreate {
		t.Fatalf("second BeginMove replaced the active session: %v", s.Kind)
	}
}

func TestDragRefusedWhileCommitPending(t *testing.T) {
	block := make(chan struct{})
	var calls int
	c := New(Config{StartHour: 0, EndHour: 24, SnapMinutes: 15}, Callbacks{
		Move: func(_ context.Context, _ int64, _, _ time.Time) error {
			calls++
			<-block
			return nil
		},
	})

	ev := model.Event{ID: 11, Start: at(9, 0), End: at(10, 0)}
	c.BeginMove(0, ev, day, yFor(9, 0))
	c.Update(0, day, yFor(10, 0))
	c.Release(context.Background(), 0)

	// The commit has not resolved yet; a new drag on the same event is
	// refused.
	c.BeginMove(0, ev, day, yFor(10, 0))
	if c.Active() {
		t.Fatal("drag started while commit pending for the same event")
	}

	close(block)
	c.Flush()
	if calls != 1 {
		t.Fatalf("mutation ran %d times, want 1", calls)
	}

	// After the commit resolves, dragging the event works again.
	c.BeginMove(0, ev, day, yFor(10, 0))
	if !c.Active() {
		t.Fatal("drag refused after commit resolved")
	}
}

func TestNoOpDragSkipsMutation(t *testing.T) {
	mut := &recordingMutator{}
	c := newTestController(mut, nil, nil)

	ev := model.Event{ID: 12, Start: at(9, 0), End: at(10, 0)}
	c.BeginMove(0, ev, day, yFor(9, 0))
	c.Release(context.Background(), 0)
	c.Flush()

	if mut.count() != 0 {
		t.Fatal("unmoved drag should not hit the server")
	}
	if _, ok := c.OverlayFor(12); ok {
		t.Fatal("overlay should be dropped for a no-op drag")
	}
}

func TestDraftLifecycle(t *testing.T) {
	c := newTestController(nil, nil, nil)

	// No draft: draft drags are refused.
	c.BeginDraftMove(0, day, yFor(9, 0))
	if c.Active() {
		t.Fatal("draft move started without a draft")
	}

	c.SetDraft(at(9, 0), at(10, 0))

	c.BeginDraftMove(0, day, yFor(9, 0))
	c.Update(0, day, yFor(11, 30))
	c.Release(context.Background(), 0)

	start, end, ok := c.Draft()
	if !ok || !start.Equal(at(11, 30)) || !end.Equal(at(12, 30)) {
		t.Fatalf("draft after move = %v-%v (%v), want 11:30-12:30", start, end, ok)
	}

	c.BeginDraftResize(0, false)
	c.Update(0, day, yFor(13, 0))
	c.Release(context.Background(), 0)

	_, end, _ = c.Draft()
	if !end.Equal(at(13, 0)) {
		t.Fatalf("draft end after resize = %v, want 13:00", end)
	}

	c.ClearDraft()
	if _, _, ok := c.Draft(); ok {
		t.Fatal("draft should be cleared")
	}
}

func TestSetDraftRejectsInvertedRange(t *testing.T) {
	c := newTestController(nil, nil, nil)
	c.SetDraft(at(10, 0), at(9, 0))
	if _, _, ok := c.Draft(); ok {
		t.Fatal("inverted draft range accepted")
	}
}
