// Package preview renders a line-level comparison of a patch session's
// original and patched content.
package preview

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/asynkron/goapply/pkg/patch"
)

// Op classifies a preview line.
type Op int

const (
	Equal Op = iota
	Delete
	Insert
)

func (o Op) prefix() string {
	switch o {
	case Delete:
		return "-"
	case Insert:
		return "+"
	default:
		return " "
	}
}

// Line is one line of a comparison.
type Line struct {
	Op   Op
	Text string
}

// Compare diffs before and after line by line.
func Compare(before, after []string) []Line {
	oldText, newText := joinLines(before), joinLines(after)
	if oldText == newText {
		out := make([]Line, len(before))
		for i, text := range before {
			out[i] = Line{Op: Equal, Text: text}
		}
		return out
	}

	dmp := diffmatchpatch.New()
	chars1, chars2, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(chars1, chars2, false)
	lineDiffs := dmp.DiffCharsToLines(diffs, lineArray)

	var out []Line
	for _, d := range lineDiffs {
		op := Equal
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			op = Delete
		case diffmatchpatch.DiffInsert:
			op = Insert
		}
		for _, text := range patch.SplitLines(d.Text, false) {
			out = append(out, Line{Op: op, Text: text})
		}
	}
	return out
}

// Session compares the decoded content a session loaded with what it
// produced.
func Session(s *patch.Session) []Line {
	return Compare(s.Before(), s.After())
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// Renderer writes comparisons with colored prefixes.
type Renderer struct {
	header lipgloss.Style
	gap    lipgloss.Style
	styles map[Op]lipgloss.Style
	// Context is the number of unchanged lines kept around each change.
	// Negative keeps every line.
	Context int
}

// NewRenderer styles output for r. A nil r uses lipgloss' default renderer.
func NewRenderer(r *lipgloss.Renderer) *Renderer {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return &Renderer{
		header: r.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		gap:    r.NewStyle().Foreground(lipgloss.Color("240")),
		styles: map[Op]lipgloss.Style{
			Equal:  r.NewStyle().Foreground(lipgloss.Color("252")),
			Delete: r.NewStyle().Foreground(lipgloss.Color("9")),
			Insert: r.NewStyle().Foreground(lipgloss.Color("10")),
		},
		Context: 3,
	}
}

// Render writes lines under a header naming path. Runs of unchanged lines
// longer than the context window collapse into a single marker.
func (r *Renderer) Render(w io.Writer, path string, lines []Line) error {
	if _, err := fmt.Fprintln(w, r.header.Render("=== "+path)); err != nil {
		return err
	}
	keep := r.visible(lines)
	skipped := 0
	for i, line := range lines {
		if !keep[i] {
			skipped++
			continue
		}
		if skipped > 0 {
			if _, err := fmt.Fprintln(w, r.gap.Render(fmt.Sprintf("@@ %d unchanged lines @@", skipped))); err != nil {
				return err
			}
			skipped = 0
		}
		if _, err := fmt.Fprintln(w, r.styles[line.Op].Render(line.Op.prefix()+line.Text)); err != nil {
			return err
		}
	}
	if skipped > 0 {
		if _, err := fmt.Fprintln(w, r.gap.Render(fmt.Sprintf("@@ %d unchanged lines @@", skipped))); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) visible(lines []Line) []bool {
	keep := make([]bool, len(lines))
	if r.Context < 0 {
		for i := range keep {
			keep[i] = true
		}
		return keep
	}
	for i, line := range lines {
		if line.Op == Equal {
			continue
		}
		for j := max(0, i-r.Context); j <= min(len(lines)-1, i+r.Context); j++ {
			keep[j] = true
		}
	}
	return keep
}

// Stats counts inserted and deleted lines.
func Stats(lines []Line) (inserted, deleted int) {
	for _, line := range lines {
		switch line.Op {
		case Insert:
			inserted++
		case Delete:
			deleted++
		}
	}
	return inserted, deleted
}
