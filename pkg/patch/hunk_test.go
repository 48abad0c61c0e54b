package patch

import (
	"slices"
	"testing"
)

func TestHunkContextCountsSharedEdges(t *testing.T) {
	t.Parallel()

	h := Hunk{
		Before: []string{"a", "b", "old", "c"},
		After:  []string{"a", "b", "new", "extra", "c"},
	}
	leading, trailing := h.context()
	if leading != 2 || trailing != 1 {
		t.Fatalf("context() = (%d, %d), want (2, 1)", leading, trailing)
	}
}

func TestHunkContextDoesNotOverlap(t *testing.T) {
	t.Parallel()

	h := Hunk{Before: []string{"x", "x"}, After: []string{"x", "x", "x"}}
	leading, trailing := h.context()
	if leading+trailing > len(h.Before) {
		t.Fatalf("context overlaps: leading=%d trailing=%d", leading, trailing)
	}
}

func TestHunkReverseSwapsSides(t *testing.T) {
	t.Parallel()

	h := Hunk{OldStart: 3, NewStart: 5, Before: []string{"a"}, After: []string{"b", "c"}}
	r := h.Reverse()
	if r.OldStart != 5 || r.NewStart != 3 {
		t.Fatalf("unexpected starts: %+v", r)
	}
	if !slices.Equal(r.Before, h.After) || !slices.Equal(r.After, h.Before) {
		t.Fatalf("windows not swapped: %+v", r)
	}
	if r.Delta() != -h.Delta() {
		t.Fatalf("delta not negated: %d vs %d", r.Delta(), h.Delta())
	}
}

func TestHunkStringRendersUnifiedFormat(t *testing.T) {
	t.Parallel()

	h := Hunk{
		OldStart: 4,
		NewStart: 4,
		Before:   []string{"keep", "drop", "tail"},
		After:    []string{"keep", "add1", "add2", "tail"},
	}
	want := "@@ -4,3 +4,4 @@\n keep\n-drop\n+add1\n+add2\n tail\n"
	if got := h.String(); got != want {
		t.Fatalf("String() =\n%s\nwant\n%s", got, want)
	}
}

func TestFileDiffReverseSwapsTypeAndPaths(t *testing.T) {
	t.Parallel()

	d := FileDiff{NewPath: "new.txt", Type: Addition, Hunks: []Hunk{{NewStart: 1, After: []string{"x"}}}}
	r := d.Reverse()
	if r.Type != Deletion {
		t.Fatalf("expected deletion, got %v", r.Type)
	}
	if r.TargetPath() != "new.txt" || r.OldPath != "new.txt" {
		t.Fatalf("unexpected paths: %+v", r)
	}
	if len(r.Hunks[0].Before) != 1 || len(r.Hunks[0].After) != 0 {
		t.Fatalf("hunk not reversed: %+v", r.Hunks[0])
	}
	if Change.reversed() != Change {
		t.Fatalf("change must stay a change")
	}
}
