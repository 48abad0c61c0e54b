package patch

import (
	"strings"
	"unicode"
)

// window is the part of a hunk that must match at a given fuzz level.
type window struct {
	before []string
	after  []string
	// top and bottom count the context lines dropped from each edge.
	top    int
	bottom int
}

// window returns the hunk trimmed by fuzz context lines at each edge. It
// reports false when fuzz drops nothing beyond level fuzz-1, or when nothing
// would be left to match.
func (h Hunk) window(fuzz int) (window, bool) {
	if fuzz == 0 {
		return window{before: h.Before, after: h.After}, true
	}
	leading, trailing := h.context()
	top, bottom := min(fuzz, leading), min(fuzz, trailing)
	if top == min(fuzz-1, leading) && bottom == min(fuzz-1, trailing) {
		return window{}, false
	}
	if top+bottom >= len(h.Before) {
		return window{}, false
	}
	return window{
		before: h.Before[top : len(h.Before)-bottom],
		after:  h.After[top : len(h.After)-bottom],
		top:    top,
		bottom: bottom,
	}, true
}

type match struct {
	// position is where the untrimmed before-window starts.
	position int
	// splice is where the trimmed window starts.
	splice int
	offset int
	fuzz   int
	win    window
}

type matcher struct {
	ignoreWhitespace bool
	maxOffset        int
}

func newMatcher(cfg ApplyConfig) matcher {
	return matcher{ignoreWhitespace: cfg.IgnoreWhitespace, maxOffset: cfg.MaxOffset}
}

// search looks for h in lines, trying fuzz levels in increasing order and,
// within a level, positions in increasing distance from candidate (the
// earlier one first on ties).
func (m matcher) search(lines []string, h Hunk, candidate, maxFuzz int) (match, bool) {
	limit := m.maxOffset
	if limit <= 0 {
		limit = len(lines)
	}
	for fuzz := 0; fuzz <= maxFuzz; fuzz++ {
		win, ok := h.window(fuzz)
		if !ok {
			break
		}
		base := candidate + win.top
		last := len(lines) - len(win.before)
		for d := 0; d <= limit; d++ {
			if base-d < 0 && base+d > last {
				break
			}
			for _, pos := range []int{base - d, base + d} {
				if m.matchesAt(lines, win.before, pos) {
					return match{
						position: pos - win.top,
						splice:   pos,
						offset:   pos - base,
						fuzz:     fuzz,
						win:      win,
					}, true
				}
				if d == 0 {
					break
				}
			}
		}
	}
	return match{}, false
}

func (m matcher) matchesAt(lines, needle []string, pos int) bool {
	if pos < 0 || pos+len(needle) > len(lines) {
		return false
	}
	for j, want := range needle {
		if !m.equal(lines[pos+j], want) {
			return false
		}
	}
	return true
}

func (m matcher) equal(a, b string) bool {
	a, b = trimEOL(a), trimEOL(b)
	if a == b {
		return true
	}
	return m.ignoreWhitespace && normalizeLine(a) == normalizeLine(b)
}

func normalizeLine(line string) string {
	if line == "" {
		return ""
	}
	var builder strings.Builder
	builder.Grow(len(line))
	for _, r := range line {
		if unicode.IsSpace(r) {
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

// splice replaces deleteCount lines at index with replacement, terminating
// each inserted line with delim. A missing terminator on the final line of
// the file stays missing.
func splice(lines []string, index, deleteCount int, replacement []string, delim string) []string {
	if deleteCount == 0 && len(replacement) == 0 {
		return lines
	}
	atEOF := index+deleteCount == len(lines)
	openTail := atEOF && len(lines) > 0 && !hasEOL(lines[len(lines)-1])

	result := make([]string, 0, len(lines)-deleteCount+len(replacement))
	result = append(result, lines[:index]...)
	for _, line := range replacement {
		result = append(result, trimEOL(line)+delim)
	}
	result = append(result, lines[index+deleteCount:]...)

	if openTail {
		switch {
		case len(replacement) > 0:
			last := index + len(replacement) - 1
			result[last] = trimEOL(result[last])
			if deleteCount == 0 && index > 0 {
				result[index-1] = trimEOL(result[index-1]) + delim
			}
		case index > 0:
			result[index-1] = trimEOL(result[index-1])
		}
	}
	return result
}
