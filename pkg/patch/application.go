package patch

// HunkState is the outcome of matching a hunk.
type HunkState int

const (
	Untried HunkState = iota
	Matched
	Failed
)

func (s HunkState) String() string {
	switch s {
	case Matched:
		return "matched"
	case Failed:
		return "failed"
	default:
		return "untried"
	}
}

// NotApplicable is reported as the fuzz of a hunk that has nothing to match,
// such as one adding a new file.
const NotApplicable = -1

// HunkResult is a snapshot of one HunkApplication.
type HunkResult struct {
	Index    int
	State    HunkState
	Fuzz     int
	Position int
	Offset   int
	ShiftIn  int
}

// OK reports whether the hunk matched.
func (r HunkResult) OK() bool {
	return r.State == Matched
}

// HunkApplication matches one hunk of a session against target lines. It is
// created lazily by Session.Application and reset on every refresh.
type HunkApplication struct {
	session *Session
	index   int

	shiftIn  int
	state    HunkState
	fuzz     int
	position int
	offset   int
	fuzzHint int
}

func newHunkApplication(s *Session, index int) *HunkApplication {
	a := &HunkApplication{session: s, index: index}
	a.reset()
	return a
}

func (a *HunkApplication) reset() {
	a.shiftIn = 0
	a.state = Untried
	a.fuzz = -1
	a.position = -1
	a.offset = 0
	a.fuzzHint = -1
}

func (a *HunkApplication) markFailed() {
	a.reset()
	a.state = Failed
}

// Hunk returns the hunk as applied, reversed when the session is.
func (a *HunkApplication) Hunk() Hunk {
	return a.session.diff.Hunks[a.index]
}

// Index is the hunk's position within its FileDiff.
func (a *HunkApplication) Index() int { return a.index }

func (a *HunkApplication) State() HunkState { return a.state }

// IsOK reports whether a match was found.
func (a *HunkApplication) IsOK() bool { return a.state == Matched }

// Fuzz is the fuzz level the match needed, or -1 when unmatched.
func (a *HunkApplication) Fuzz() int { return a.fuzz }

// Fuzzy reports a match that ignored some context.
func (a *HunkApplication) Fuzzy() bool { return a.state == Matched && a.fuzz > 0 }

// Position is the 0-based line where the hunk's before-window matched.
func (a *HunkApplication) Position() int { return a.position }

// Offset is how far Position lies from where the hunk was expected.
func (a *HunkApplication) Offset() int { return a.offset }

// ShiftIn is the line-count shift inherited from earlier hunks.
func (a *HunkApplication) ShiftIn() int { return a.shiftIn }

// Result snapshots the application.
func (a *HunkApplication) Result() HunkResult {
	return HunkResult{
		Index:    a.index,
		State:    a.state,
		Fuzz:     a.fuzz,
		Position: a.position,
		Offset:   a.offset,
		ShiftIn:  a.shiftIn,
	}
}

// candidate is the 0-based line where the before-window should start once
// shift is accounted for.
func (a *HunkApplication) candidate(lines []string, shift int) int {
	h := a.Hunk()
	pos := h.OldStart + shift
	if len(h.Before) > 0 {
		pos--
	}
	return max(0, min(pos, len(lines)))
}

// Apply matches the hunk against lines and, on success, returns lines with
// the after-window spliced in together with the shift for the next hunk. On
// failure lines is returned untouched and the shift is passed through.
func (a *HunkApplication) Apply(lines []string, shiftIn int) ([]string, int) {
	s := a.session
	hint := a.fuzzHint
	a.reset()
	a.shiftIn = shiftIn

	maxFuzz := s.config.Fuzz
	if hint >= 0 && hint < maxFuzz {
		maxFuzz = hint
	}
	h := a.Hunk()
	m, ok := s.matcher.search(lines, h, a.candidate(lines, shiftIn), maxFuzz)
	if !ok {
		a.state = Failed
		s.logger.Debug("hunk rejected", Field("hunk", a.index+1), Field("shift", shiftIn))
		return lines, shiftIn
	}

	a.state = Matched
	a.fuzz = m.fuzz
	a.position = m.position
	a.offset = m.offset
	if m.fuzz > 0 || m.offset != 0 {
		s.logger.Debug("hunk matched with drift",
			Field("hunk", a.index+1), Field("fuzz", m.fuzz), Field("offset", m.offset))
	}
	out := splice(lines, m.splice, len(m.win.before), m.win.after, s.delimiter)
	return out, shiftIn + h.Delta()
}

// CalculateFuzz reports the smallest fuzz level, up to the larger of the
// configured fuzz and MaxFuzz, at which the hunk would match lines. It
// returns -1 when no level matches and NotApplicable for additions. lines is
// never modified.
func (a *HunkApplication) CalculateFuzz(lines []string, shiftIn int) int {
	return a.probe(lines, shiftIn, max(a.session.config.Fuzz, MaxFuzz))
}

func (a *HunkApplication) probe(lines []string, shiftIn, maxFuzz int) int {
	s := a.session
	if s.diffType == Addition {
		return NotApplicable
	}
	m, ok := s.matcher.search(lines, a.Hunk(), a.candidate(lines, shiftIn), maxFuzz)
	if !ok {
		return -1
	}
	return m.fuzz
}
