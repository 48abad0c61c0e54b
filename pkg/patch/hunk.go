package patch

import (
	"fmt"
	"strings"
)

// DiffType identifies the file-level change described by a FileDiff.
type DiffType int

const (
	// Change modifies an existing file.
	Change DiffType = iota
	// Addition creates a file that must not exist yet (or is empty).
	Addition
	// Deletion removes an existing file.
	Deletion
)

func (t DiffType) String() string {
	switch t {
	case Addition:
		return "addition"
	case Deletion:
		return "deletion"
	default:
		return "change"
	}
}

func (t DiffType) reversed() DiffType {
	switch t {
	case Addition:
		return Deletion
	case Deletion:
		return Addition
	default:
		return Change
	}
}

// FileDiff groups the hunks that target a single file.
type FileDiff struct {
	OldPath string
	NewPath string
	Type    DiffType
	Hunks   []Hunk
}

// Reverse returns the diff that undoes d: paths, type, and every hunk are
// swapped.
func (d FileDiff) Reverse() FileDiff {
	out := FileDiff{
		OldPath: d.NewPath,
		NewPath: d.OldPath,
		Type:    d.Type.reversed(),
		Hunks:   make([]Hunk, len(d.Hunks)),
	}
	for i, h := range d.Hunks {
		out.Hunks[i] = h.Reverse()
	}
	return out
}

// TargetPath is the file read before the hunks are applied.
func (d FileDiff) TargetPath() string {
	if d.OldPath != "" {
		return d.OldPath
	}
	return d.NewPath
}

// ResultPath is the file written once the hunks are applied.
func (d FileDiff) ResultPath() string {
	if d.NewPath != "" {
		return d.NewPath
	}
	return d.OldPath
}

// Hunk captures one change region. Before holds the context and removed
// lines, After the context and added lines, both without line terminators.
// OldStart and NewStart are 1-based and follow unified-diff conventions: a
// window with no lines starts after the given line.
//
// A Hunk is never modified by the engine and may be matched against any
// number of targets.
type Hunk struct {
	OldStart int
	NewStart int
	Before   []string
	After    []string
	// Header is the optional section text after the second "@@".
	Header   string
}

// Delta is the line-count change applying the hunk introduces.
func (h Hunk) Delta() int {
	return len(h.After) - len(h.Before)
}

// Reverse swaps the before and after sides.
func (h Hunk) Reverse() Hunk {
	return Hunk{
		OldStart: h.NewStart,
		NewStart: h.OldStart,
		Before:   h.After,
		After:    h.Before,
		Header:   h.Header,
	}
}

// context reports how many leading and trailing lines are shared between
// the two windows.
func (h Hunk) context() (leading, trailing int) {
	limit := min(len(h.Before), len(h.After))
	for leading < limit && trimEOL(h.Before[leading]) == trimEOL(h.After[leading]) {
		leading++
	}
	for trailing < limit-leading {
		b := h.Before[len(h.Before)-1-trailing]
		a := h.After[len(h.After)-1-trailing]
		if trimEOL(b) != trimEOL(a) {
			break
		}
		trailing++
	}
	return leading, trailing
}

// String renders the hunk in unified format, the shape used for reject files.
func (h Hunk) String() string {
	leading, trailing := h.context()
	var b strings.Builder
	fmt.Fprintf(&b, "@@ -%s +%s @@", formatRange(h.OldStart, len(h.Before)), formatRange(h.NewStart, len(h.After)))
	if h.Header != "" {
		b.WriteByte(' ')
		b.WriteString(h.Header)
	}
	b.WriteByte('\n')
	for _, line := range h.Before[:leading] {
		writeHunkLine(&b, ' ', line)
	}
	for _, line := range h.Before[leading : len(h.Before)-trailing] {
		writeHunkLine(&b, '-', line)
	}
	for _, line := range h.After[leading : len(h.After)-trailing] {
		writeHunkLine(&b, '+', line)
	}
	for _, line := range h.Before[len(h.Before)-trailing:] {
		writeHunkLine(&b, ' ', line)
	}
	return b.String()
}

func formatRange(start, count int) string {
	if count == 1 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}

func writeHunkLine(b *strings.Builder, prefix byte, line string) {
	b.WriteByte(prefix)
	b.WriteString(trimEOL(line))
	b.WriteByte('\n')
}
