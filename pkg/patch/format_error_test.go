package patch

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestDescribeHunkStatuses(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		statuses []HunkStatus
		want     string
	}{
		{
			name: "empty",
			want: "",
		},
		{
			name:     "only applied",
			statuses: []HunkStatus{{Number: 1, Status: "applied"}, {Number: 2, Status: "applied"}},
			want:     "Hunks applied: 1, 2.",
		},
		{
			name:     "mixed",
			statuses: []HunkStatus{{Number: 1, Status: "applied"}, {Number: 3, Status: "no-match"}},
			want:     "Hunks applied: 1.\nNo match for hunk 3.",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := describeHunkStatuses(tc.statuses); got != tc.want {
				t.Fatalf("describeHunkStatuses() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFormatErrorForHunkNotFound(t *testing.T) {
	t.Parallel()

	err := &Error{
		Message:      "Hunk not found in file.",
		Code:         CodeHunkNotFound,
		Path:         "src/app.go",
		HunkStatuses: []HunkStatus{{Number: 2, Status: "applied"}, {Number: 5, Status: "no-match"}},
		FailedHunk: &FailedHunk{
			Number:        5,
			RawPatchLines: []string{"@@", "-before", "+after"},
		},
		OriginalContent: "line1\nline2",
	}

	got := FormatError(err)
	if !containsAll(got, []string{
		"Hunk not found in file.",
		"./src/app.go",
		"Hunks applied: 2.",
		"No match for hunk 5.",
		"Offending hunk:",
		"@@",
		"line1\nline2",
	}) {
		t.Fatalf("unexpected formatted output:\n%s", got)
	}
}

func TestFormatErrorForUnknown(t *testing.T) {
	t.Parallel()

	if got := FormatError(nil); got != "Unknown error occurred." {
		t.Fatalf("unexpected message for nil error: %q", got)
	}

	err := &Error{Message: "custom failure"}
	if got := FormatError(err); got != "custom failure" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}

func TestFormatErrorSummarizesFuzzyAndSeveralRejects(t *testing.T) {
	t.Parallel()

	err := &Error{
		Message: "2 of 3 hunks not found in /abs/file.go.",
		Code:    CodeHunkNotFound,
		Path:    "/abs/file.go",
		HunkStatuses: []HunkStatus{
			{Number: 1, Status: StatusFuzzy, Fuzz: 2},
			{Number: 2, Status: StatusNoMatch},
			{Number: 3, Status: StatusNoMatch},
		},
		OriginalContent: "body",
	}
	got := FormatError(err)
	if !containsAll(got, []string{
		"Hunks applied with fuzz: 1 (fuzz 2).",
		"No match for hunks 2, 3.",
		"Full content of file: /abs/file.go::::",
	}) {
		t.Fatalf("unexpected formatted output:\n%s", got)
	}
	if strings.Contains(got, ".//abs") {
		t.Fatalf("absolute path should not be prefixed:\n%s", got)
	}
}

func TestFormatErrorStructuralProblemIsMessageOnly(t *testing.T) {
	t.Parallel()

	err := &Error{Message: "a.txt does not exist", Code: CodeTargetMissing, OriginalContent: "ignored"}
	if got := FormatError(err); got != "a.txt does not exist" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	t.Parallel()

	err := canceledError("f.txt", 2)
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("canceled error should match ErrCanceled")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled error should unwrap to context.Canceled")
	}
	if errors.Is(&Error{Code: CodeHunkNotFound}, ErrCanceled) {
		t.Fatalf("different codes must not match")
	}
	if got := (&Error{Err: io.EOF}).Error(); got != io.EOF.Error() {
		t.Fatalf("Error() = %q", got)
	}
}
