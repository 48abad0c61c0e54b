package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/asynkron/goapply/pkg/patch"
)

func writeFile(t *testing.T, dir, name, content string, mode os.FileMode) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
	require.NoError(t, os.Chmod(path, mode))
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(data)
}

func change(path string, hunks ...patch.Hunk) patch.FileDiff {
	return patch.FileDiff{OldPath: path, NewPath: path, Type: patch.Change, Hunks: hunks}
}

func TestRunUpdatesFilesAndPreservesMode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "run.sh", "#!/bin/sh\necho one\n", 0o755)

	diffs := []patch.FileDiff{change("a/run.sh", patch.Hunk{
		OldStart: 2, NewStart: 2, Before: []string{"echo one"}, After: []string{"echo two"},
	})}
	metrics := NewInMemoryMetrics()
	report, err := Run(context.Background(), diffs, Options{
		Dir:     dir,
		Config:  patch.ApplyConfig{StripCount: 1},
		Metrics: metrics,
	})
	require.NoError(t, err)
	require.True(t, report.OK())
	require.Len(t, report.Files, 1)

	fr := report.Files[0]
	require.Equal(t, StatusApplied, fr.Status)
	require.Equal(t, "run.sh", fr.Path)
	require.True(t, fr.Written)
	require.Equal(t, "#!/bin/sh\necho two\n", readFile(t, dir, "run.sh"))

	info, err := os.Stat(filepath.Join(dir, "run.sh"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	snap := metrics.GetSnapshot()
	require.Equal(t, int64(1), snap.Files[StatusApplied])
	require.Equal(t, int64(1), snap.Hunks.Matched)
}

func TestRunAddsDeletesAndRenames(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "old.txt", "bye\n", 0o644)
	writeFile(t, dir, "from.txt", "keep\nold\n", 0o600)

	diffs := []patch.FileDiff{
		{NewPath: "nested/new.txt", Type: patch.Addition, Hunks: []patch.Hunk{{NewStart: 1, After: []string{"hello"}}}},
		{OldPath: "old.txt", Type: patch.Deletion, Hunks: []patch.Hunk{{OldStart: 1, Before: []string{"bye"}}}},
		{OldPath: "from.txt", NewPath: "to.txt", Type: patch.Change, Hunks: []patch.Hunk{{
			OldStart: 1, NewStart: 1, Before: []string{"keep", "old"}, After: []string{"keep", "new"},
		}}},
	}
	report, err := Run(context.Background(), diffs, Options{Dir: dir, Jobs: 4})
	require.NoError(t, err)
	require.True(t, report.OK(), "%+v", report.Files)

	require.Equal(t, "hello\n", readFile(t, dir, "nested/new.txt"))
	require.NoFileExists(t, filepath.Join(dir, "old.txt"))
	require.NoFileExists(t, filepath.Join(dir, "from.txt"))
	require.Equal(t, "keep\nnew\n", readFile(t, dir, "to.txt"))
	require.Equal(t, "to.txt", report.Files[2].ResultPath)

	info, err := os.Stat(filepath.Join(dir, "to.txt"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRunWritesRejectsAndKeepsGoing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "one\ntwo\nthree\n", 0o644)
	writeFile(t, dir, "b.txt", "x\n", 0o644)

	diffs := []patch.FileDiff{
		change("a.txt",
			patch.Hunk{OldStart: 1, NewStart: 1, Before: []string{"one"}, After: []string{"ONE"}},
			patch.Hunk{OldStart: 3, NewStart: 3, Before: []string{"missing"}, After: []string{"gone"}},
		),
		change("b.txt", patch.Hunk{OldStart: 1, NewStart: 1, Before: []string{"x"}, After: []string{"y"}}),
		change("absent.txt", patch.Hunk{OldStart: 1, Before: []string{"q"}, After: []string{"r"}}),
	}
	report, err := Run(context.Background(), diffs, Options{Dir: dir, WriteRejects: true, Jobs: 2})
	require.NoError(t, err)
	require.False(t, report.OK())

	a := report.Files[0]
	require.Equal(t, StatusPartial, a.Status)
	require.Equal(t, "a.txt.rej", a.RejectFile)
	require.Equal(t, "ONE\ntwo\nthree\n", readFile(t, dir, "a.txt"))
	rej := readFile(t, dir, "a.txt.rej")
	require.True(t, strings.HasPrefix(rej, "--- a.txt\n+++ a.txt\n@@ -3 +3 @@\n"), rej)
	require.Contains(t, rej, "-missing\n+gone\n")

	var perr *patch.Error
	require.ErrorAs(t, a.Err, &perr)
	require.Equal(t, patch.CodeHunkNotFound, perr.Code)

	require.Equal(t, StatusApplied, report.Files[1].Status)
	require.Equal(t, "y\n", readFile(t, dir, "b.txt"))

	require.Equal(t, StatusProblem, report.Files[2].Status)
	require.ErrorAs(t, report.Files[2].Err, &perr)
	require.Equal(t, patch.CodeTargetMissing, perr.Code)
	require.NoFileExists(t, filepath.Join(dir, "absent.txt.rej"))

	require.Equal(t, 1, report.Count(StatusApplied))
	require.Equal(t, 1, report.Count(StatusPartial))
}

func TestRunDryRunLeavesTreeUntouched(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "f.txt", "a\n", 0o644)

	diffs := []patch.FileDiff{change("f.txt", patch.Hunk{OldStart: 1, NewStart: 1, Before: []string{"a"}, After: []string{"b"}})}
	report, err := Run(context.Background(), diffs, Options{Dir: dir, DryRun: true, WriteRejects: true})
	require.NoError(t, err)
	require.Equal(t, StatusApplied, report.Files[0].Status)
	require.False(t, report.Files[0].Written)
	require.Equal(t, "a\n", readFile(t, dir, "f.txt"))
	require.Equal(t, []string{"b"}, report.Files[0].Session.After())
}

func TestRunSameTargetAppliesInOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "f.txt", "a\n", 0o644)

	diffs := []patch.FileDiff{
		change("f.txt", patch.Hunk{OldStart: 1, NewStart: 1, Before: []string{"a"}, After: []string{"b"}}),
		change("f.txt", patch.Hunk{OldStart: 1, NewStart: 1, Before: []string{"b"}, After: []string{"c"}}),
	}
	report, err := Run(context.Background(), diffs, Options{Dir: dir, Jobs: 8})
	require.NoError(t, err)
	require.True(t, report.OK(), "%+v", report.Files)
	require.Equal(t, "c\n", readFile(t, dir, "f.txt"))
}

func TestRunReversed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "f.txt", "b\n", 0o644)

	diffs := []patch.FileDiff{change("f.txt", patch.Hunk{OldStart: 1, NewStart: 1, Before: []string{"a"}, After: []string{"b"}})}
	report, err := Run(context.Background(), diffs, Options{Dir: dir, Config: patch.ApplyConfig{Reversed: true}})
	require.NoError(t, err)
	require.True(t, report.OK())
	require.Equal(t, "a\n", readFile(t, dir, "f.txt"))
}

func TestRunCanceled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "f.txt", "a\n", 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	diffs := []patch.FileDiff{change("f.txt", patch.Hunk{OldStart: 1, NewStart: 1, Before: []string{"a"}, After: []string{"b"}})}
	report, err := Run(ctx, diffs, Options{Dir: dir})
	require.Error(t, err)
	require.True(t, patch.IsCanceled(err), "got %v", err)
	require.Equal(t, StatusCanceled, report.Files[0].Status)
	require.Equal(t, "a\n", readFile(t, dir, "f.txt"))
}

func TestRunRefusesEscapingPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	diffs := []patch.FileDiff{{NewPath: "../outside.txt", Type: patch.Addition, Hunks: []patch.Hunk{{After: []string{"x"}}}}}
	report, err := Run(context.Background(), diffs, Options{Dir: dir})
	require.NoError(t, err)
	require.Equal(t, StatusError, report.Files[0].Status)
	require.NoFileExists(t, filepath.Join(filepath.Dir(dir), "outside.txt"))
}

func TestRunValidatesOptions(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), nil, Options{Dir: t.TempDir(), Config: patch.ApplyConfig{Fuzz: -1}})
	require.Error(t, err)

	_, err = Run(context.Background(), nil, Options{Dir: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
}
