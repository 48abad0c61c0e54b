package preview

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"

	"github.com/asynkron/goapply/pkg/patch"
)

func plainRenderer(buf *bytes.Buffer) *Renderer {
	r := lipgloss.NewRenderer(buf)
	r.SetColorProfile(termenv.Ascii)
	return NewRenderer(r)
}

func TestCompareMarksChangedLines(t *testing.T) {
	t.Parallel()

	got := Compare([]string{"a", "b", "c"}, []string{"a", "B", "c"})
	require.Equal(t, []Line{
		{Op: Equal, Text: "a"},
		{Op: Delete, Text: "b"},
		{Op: Insert, Text: "B"},
		{Op: Equal, Text: "c"},
	}, got)

	inserted, deleted := Stats(got)
	require.Equal(t, 1, inserted)
	require.Equal(t, 1, deleted)
}

func TestCompareIdentical(t *testing.T) {
	t.Parallel()

	got := Compare([]string{"x", "y"}, []string{"x", "y"})
	require.Len(t, got, 2)
	for _, line := range got {
		require.Equal(t, Equal, line.Op)
	}
}

func TestRenderCollapsesUnchangedRuns(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := plainRenderer(&buf)
	r.Context = 0

	lines := Compare([]string{"a", "b", "c"}, []string{"a", "B", "c"})
	require.NoError(t, r.Render(&buf, "f.txt", lines))
	require.Equal(t, "=== f.txt\n@@ 1 unchanged lines @@\n-b\n+B\n@@ 1 unchanged lines @@\n", buf.String())
}

func TestRenderFullContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := plainRenderer(&buf)
	r.Context = -1

	require.NoError(t, r.Render(&buf, "f.txt", Compare([]string{"a"}, []string{"a", "b"})))
	require.Equal(t, "=== f.txt\n a\n+b\n", buf.String())
}

func TestSessionPreview(t *testing.T) {
	t.Parallel()

	h := patch.Hunk{OldStart: 1, NewStart: 1, Before: []string{"one"}, After: []string{"uno"}}
	diff := patch.FileDiff{OldPath: "f", NewPath: "f", Type: patch.Change, Hunks: []patch.Hunk{h}}
	_, session, err := patch.ApplyToLines(diff, []string{"one", "two"}, patch.ApplyConfig{})
	require.NoError(t, err)

	lines := Session(session)
	inserted, deleted := Stats(lines)
	require.Equal(t, 1, inserted)
	require.Equal(t, 1, deleted)
}
