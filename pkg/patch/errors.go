package patch

import (
	"context"
	"fmt"
	"strings"
)

// Error codes carried by *Error.
const (
	CodeHunkNotFound  = "HUNK_NOT_FOUND"
	CodeTargetMissing = "TARGET_MISSING"
	CodeTargetExists  = "TARGET_EXISTS"
	CodeCanceled      = "CANCELED"
)

// Hunk status values reported in HunkStatus.
const (
	StatusApplied = "applied"
	StatusFuzzy   = "fuzzy"
	StatusNoMatch = "no-match"
)

// ErrCanceled matches (via errors.Is) every cancellation error returned by
// the engine.
var ErrCanceled = &Error{Code: CodeCanceled, Message: "patch application canceled", Err: context.Canceled}

// HunkStatus tracks how a hunk fared when a session was refreshed.
type HunkStatus struct {
	Number int    `json:"number"`
	Status string `json:"status"`
	Fuzz   int    `json:"fuzz,omitempty"`
}

// FailedHunk stores the rendered lines of the first hunk that could not be
// applied.
type FailedHunk struct {
	Number        int      `json:"number"`
	RawPatchLines []string `json:"rawPatchLines"`
}

// Error represents a structured failure while applying a patch. Structural
// problems (TARGET_MISSING, TARGET_EXISTS) and rejects (HUNK_NOT_FOUND) are
// reported through it, as is cancellation.
type Error struct {
	Message         string
	Code            string
	Path            string
	OriginalContent string
	HunkStatuses    []HunkStatus
	FailedHunk      *FailedHunk
	Err             error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "patch error"
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

func canceledError(path string, hunk int) *Error {
	return &Error{
		Message: fmt.Sprintf("canceled before hunk %d of %s", hunk, path),
		Code:    CodeCanceled,
		Path:    path,
		Err:     context.Canceled,
	}
}

func describeHunkStatuses(statuses []HunkStatus) string {
	if len(statuses) == 0 {
		return ""
	}
	var applied, fuzzy, rejected []string
	for _, status := range statuses {
		switch status.Status {
		case StatusApplied:
			applied = append(applied, fmt.Sprintf("%d", status.Number))
		case StatusFuzzy:
			fuzzy = append(fuzzy, fmt.Sprintf("%d (fuzz %d)", status.Number, status.Fuzz))
		default:
			rejected = append(rejected, fmt.Sprintf("%d", status.Number))
		}
	}

	parts := make([]string, 0, 3)
	if len(applied) > 0 {
		parts = append(parts, fmt.Sprintf("Hunks applied: %s.", strings.Join(applied, ", ")))
	}
	if len(fuzzy) > 0 {
		parts = append(parts, fmt.Sprintf("Hunks applied with fuzz: %s.", strings.Join(fuzzy, ", ")))
	}
	if len(rejected) == 1 {
		parts = append(parts, fmt.Sprintf("No match for hunk %s.", rejected[0]))
	} else if len(rejected) > 1 {
		parts = append(parts, fmt.Sprintf("No match for hunks %s.", strings.Join(rejected, ", ")))
	}
	return strings.Join(parts, "\n")
}

// FormatError renders Error values into a human readable message suitable for
// surfacing to end users.
func FormatError(err *Error) string {
	if err == nil {
		return "Unknown error occurred."
	}
	message := err.Message
	if message == "" {
		message = "Unknown error occurred."
	}
	if err.Code != CodeHunkNotFound {
		return message
	}

	displayPath := err.Path
	if displayPath == "" {
		displayPath = "unknown file"
	}
	if !strings.HasPrefix(displayPath, "./") && !strings.HasPrefix(displayPath, "/") {
		displayPath = "./" + displayPath
	}
	parts := []string{message}
	if summary := describeHunkStatuses(err.HunkStatuses); summary != "" {
		parts = append(parts, "", summary)
	}
	if err.FailedHunk != nil && len(err.FailedHunk.RawPatchLines) > 0 {
		parts = append(parts, "", "Offending hunk:")
		parts = append(parts, strings.Join(err.FailedHunk.RawPatchLines, "\n"))
	}
	if err.OriginalContent != "" {
		parts = append(parts, "", fmt.Sprintf("Full content of file: %s::::", displayPath), err.OriginalContent)
	}
	return strings.Join(parts, "\n")
}
