package geom

import "testing"

func span(sh, sm, eh, em int) Span {
	return Span{Start: at(sh, sm), End: at(eh, em)}
}

func TestSpanOverlaps(t *testing.T) {
	a := span(9, 0, 10, 0)
	if !a.Overlaps(span(9, 30, 10, 30)) {
		t.Fatal("partial overlap not detected")
	}
	if a.Overlaps(span(10, 0, 11, 0)) {
		t.Fatal("touching ranges must not overlap (half-open)")
	}
	if a.Overlaps(span(11, 0, 12, 0)) {
		t.Fatal("disjoint ranges must not overlap")
	}
}

func TestOverlapLayoutTwoPlusOne(t *testing.T) {
	spans := []Span{
		span(9, 0, 10, 0),   // A
		span(9, 30, 10, 30), // B overlaps A
		span(11, 0, 12, 0),  // C alone
	}

	got := OverlapLayout(spans)
	if len(got) != 3 {
		t.Fatalf("placements = %d, want 3", len(got))
	}

	// Sorted by start: A, B, C.
	if got[0].Index != 0 || got[1].Index != 1 || got[2].Index != 2 {
		t.Fatalf("order = %d,%d,%d, want 0,1,2", got[0].Index, got[1].Index, got[2].Index)
	}
	if got[0].WidthPercent != 50 || got[1].WidthPercent != 50 {
		t.Fatalf("A/B widths = %v/%v, want 50/50", got[0].WidthPercent, got[1].WidthPercent)
	}
	if got[0].LeftPercent != 0 || got[1].LeftPercent != 50 {
		t.Fatalf("A/B lefts = %v/%v, want 0/50", got[0].LeftPercent, got[1].LeftPercent)
	}
	if got[2].WidthPercent != 100 || got[2].LeftPercent != 0 {
		t.Fatalf("C placement = %+v, want full width", got[2])
	}
}

func TestOverlapLayoutChainedRun(t *testing.T) {
	// B bridges A and C: all three share one run even though A and C
	// do not overlap each other directly.
	spans := []Span{
		span(9, 0, 10, 0),
		span(9, 45, 11, 0),
		span(10, 30, 11, 30),
	}

	got := OverlapLayout(spans)
	for _, p := range got {
		if p.WidthPercent != 100.0/3.0 {
			t.Fatalf("placement %+v: want width 33.3%%", p)
		}
	}
}

func TestOverlapLayoutRunsDoNotShareColumns(t *testing.T) {
	// Two separate runs; the second run starts after the first closes
	// and gets the full width again.
	spans := []Span{
		span(9, 0, 9, 30),
		span(9, 15, 9, 45),
		span(13, 0, 14, 0),
		span(13, 30, 14, 30),
	}

	got := OverlapLayout(spans)
	if got[0].WidthPercent != 50 || got[2].WidthPercent != 50 {
		t.Fatalf("both runs should split 50/50, got %+v", got)
	}
	if got[2].LeftPercent != 0 {
		t.Fatalf("second run should restart at the left edge, got %+v", got[2])
	}
}

func TestOverlapLayoutEmptyAndSingle(t *testing.T) {
	if got := OverlapLayout(nil); got != nil {
		t.Fatalf("nil input: got %+v", got)
	}

	got := OverlapLayout([]Span{span(9, 0, 10, 0)})
	if len(got) != 1 || got[0].WidthPercent != 100 || got[0].LeftPercent != 0 {
		t.Fatalf("single span: got %+v", got)
	}
}

func TestOverlapLayoutUnsortedInputKeepsIndexes(t *testing.T) {
	spans := []Span{
		span(11, 0, 12, 0), // C first in the input
		span(9, 0, 10, 0),
		span(9, 30, 10, 30),
	}

	got := OverlapLayout(spans)
	if got[0].Index != 1 {
		t.Fatalf("earliest span should come first, got index %d", got[0].Index)
	}
	if got[2].Index != 0 || got[2].WidthPercent != 100 {
		t.Fatalf("late lone span should be last at full width, got %+v", got[2])
	}
}
