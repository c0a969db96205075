package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"crmcal/internal/model"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ts(hour, min int) time.Time {
	return time.Date(2026, 3, 9, hour, min, 0, 0, time.UTC)
}

func TestCreateAndGet(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	ev, err := s.Create(ctx, model.Event{
		Title:    "Viewing: 12 Harbor Rd",
		Location: "12 Harbor Rd",
		Kind:     "viewing",
		Start:    ts(9, 0),
		End:      ts(10, 0),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ev.ID == 0 {
		t.Fatal("id not assigned")
	}

	got, err := s.Get(ctx, ev.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != ev.Title || !got.Start.Equal(ts(9, 0)) || !got.End.Equal(ts(10, 0)) {
		t.Fatalf("got %+v", got)
	}
}

func TestCreateRejectsInvalidRange(t *testing.T) {
	s := openTest(t)

	_, err := s.Create(context.Background(), model.Event{
		Title: "bad", Start: ts(10, 0), End: ts(10, 0),
	})
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("err = %v, want ErrInvalidRange", err)
	}
}

func TestListRangeIntersection(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	mk := func(title string, start, end time.Time) {
		if _, err := s.Create(ctx, model.Event{Title: title, Start: start, End: end}); err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
	}
	mk("early", ts(7, 0), ts(8, 0))
	mk("inside", ts(9, 0), ts(10, 0))
	mk("straddles", ts(7, 30), ts(9, 30))
	mk("late", ts(18, 0), ts(19, 0))

	got, err := s.ListRange(ctx, ts(8, 0), ts(17, 0))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	// Ordered by start: straddles, inside.
	if got[0].Title != "straddles" || got[1].Title != "inside" {
		t.Fatalf("order = %q, %q", got[0].Title, got[1].Title)
	}
}

func TestMoveAndResize(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	ev, err := s.Create(ctx, model.Event{Title: "m", Start: ts(9, 0), End: ts(10, 0)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.Move(ctx, ev.ID, ts(11, 0), ts(12, 0)); err != nil {
		t.Fatalf("move: %v", err)
	}
	got, _ := s.Get(ctx, ev.ID)
	if !got.Start.Equal(ts(11, 0)) || !got.End.Equal(ts(12, 0)) {
		t.Fatalf("after move: %v-%v", got.Start, got.End)
	}

	if err := s.Resize(ctx, ev.ID, ts(11, 0), ts(13, 30)); err != nil {
		t.Fatalf("resize: %v", err)
	}
	got, _ = s.Get(ctx, ev.ID)
	if !got.End.Equal(ts(13, 30)) {
		t.Fatalf("after resize: end %v", got.End)
	}
}

func TestMoveMissingEvent(t *testing.T) {
	s := openTest(t)
	err := s.Move(context.Background(), 999, ts(9, 0), ts(10, 0))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMoveRejectsInvertedRange(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	ev, _ := s.Create(ctx, model.Event{Title: "m", Start: ts(9, 0), End: ts(10, 0)})
	err := s.Move(ctx, ev.ID, ts(10, 0), ts(9, 0))
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("err = %v, want ErrInvalidRange", err)
	}

	// Rejected move leaves the stored range untouched.
	got, _ := s.Get(ctx, ev.ID)
	if !got.Start.Equal(ts(9, 0)) || !got.End.Equal(ts(10, 0)) {
		t.Fatalf("range changed by rejected move: %v-%v", got.Start, got.End)
	}
}

func TestDelete(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	ev, _ := s.Create(ctx, model.Event{Title: "d", Start: ts(9, 0), End: ts(10, 0)})
	if err := s.Delete(ctx, ev.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, ev.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after delete: %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, ev.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: %v, want ErrNotFound", err)
	}
}
