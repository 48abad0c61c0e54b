package patch

import (
	"slices"
	"testing"
)

func TestWindowShrinksContextPerLevel(t *testing.T) {
	t.Parallel()

	h := Hunk{
		Before: []string{"c1", "c2", "old", "c3"},
		After:  []string{"c1", "c2", "new", "c3"},
	}
	w1, ok := h.window(1)
	if !ok || w1.top != 1 || w1.bottom != 1 {
		t.Fatalf("window(1) = %+v, %v", w1, ok)
	}
	if !slices.Equal(w1.before, []string{"c2", "old"}) || !slices.Equal(w1.after, []string{"c2", "new"}) {
		t.Fatalf("unexpected window(1): %+v", w1)
	}
	w2, ok := h.window(2)
	if !ok || w2.top != 2 || w2.bottom != 1 {
		t.Fatalf("window(2) = %+v, %v", w2, ok)
	}
	if _, ok := h.window(3); ok {
		t.Fatalf("window(3) should add nothing over window(2)")
	}
}

func TestWindowWithoutContextCannotShrink(t *testing.T) {
	t.Parallel()

	h := Hunk{Before: []string{"old"}, After: []string{"new"}}
	if _, ok := h.window(1); ok {
		t.Fatalf("expected no fuzz window for context-free hunk")
	}
}

func TestSearchPrefersEarlierPositionOnTies(t *testing.T) {
	t.Parallel()

	lines := []string{"x", "target", "x", "target", "x"}
	m, ok := matcher{}.search(lines, Hunk{Before: []string{"target"}}, 2, 0)
	if !ok {
		t.Fatalf("expected match")
	}
	if m.position != 1 || m.offset != -1 {
		t.Fatalf("unexpected match: %+v", m)
	}
}

func TestSearchRespectsMaxOffset(t *testing.T) {
	t.Parallel()

	lines := numbered(10)
	h := Hunk{Before: []string{"l9"}}
	if _, ok := (matcher{maxOffset: 3}).search(lines, h, 0, 0); ok {
		t.Fatalf("match beyond max offset should fail")
	}
	m, ok := (matcher{maxOffset: 8}).search(lines, h, 0, 0)
	if !ok || m.position != 8 || m.offset != 8 {
		t.Fatalf("unexpected match: %+v, %v", m, ok)
	}
}

func TestSearchIgnoresWhitespaceWhenConfigured(t *testing.T) {
	t.Parallel()

	lines := []string{"value    one\n", "next\n"}
	h := Hunk{Before: []string{"valueone"}}
	if _, ok := (matcher{}).search(lines, h, 0, 0); ok {
		t.Fatalf("strict matcher should not match")
	}
	if _, ok := (matcher{ignoreWhitespace: true}).search(lines, h, 0, 0); !ok {
		t.Fatalf("whitespace-insensitive matcher should match")
	}
}

func TestNormalizeLineDropsWhitespace(t *testing.T) {
	t.Parallel()

	if got := normalizeLine(" \t hello world \r"); got != "helloworld" {
		t.Fatalf("normalizeLine() = %q", got)
	}
}

func TestSplice(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		lines       []string
		index       int
		deleteCount int
		replacement []string
		want        []string
	}{
		{
			name:        "replace middle",
			lines:       []string{"a\n", "b\n", "c\n"},
			index:       1,
			deleteCount: 1,
			replacement: []string{"x", "y"},
			want:        []string{"a\n", "x\n", "y\n", "c\n"},
		},
		{
			name:        "replace unterminated tail",
			lines:       []string{"a\n", "b"},
			index:       1,
			deleteCount: 1,
			replacement: []string{"B"},
			want:        []string{"a\n", "B"},
		},
		{
			name:        "append after unterminated tail",
			lines:       []string{"a\n", "b"},
			index:       2,
			replacement: []string{"c"},
			want:        []string{"a\n", "b\n", "c"},
		},
		{
			name:        "remove unterminated tail",
			lines:       []string{"a\n", "b\n", "c"},
			index:       2,
			deleteCount: 1,
			want:        []string{"a\n", "b"},
		},
		{
			name:        "into empty",
			lines:       []string{},
			replacement: []string{"x"},
			want:        []string{"x\n"},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := splice(tc.lines, tc.index, tc.deleteCount, tc.replacement, "\n")
			if !slices.Equal(got, tc.want) {
				t.Fatalf("splice() = %q, want %q", got, tc.want)
			}
		})
	}
}
