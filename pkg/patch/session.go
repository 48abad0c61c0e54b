package patch

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
)

// Session applies one FileDiff to one target. It is not safe for concurrent
// use; sessions for different files share nothing and may run in parallel.
type Session struct {
	diff     FileDiff
	diffType DiffType
	config   ApplyConfig
	logger   Logger
	matcher  matcher

	apps []*HunkApplication

	before    []string
	after     []string
	charset   string
	encoding  encoding.Encoding
	delimiter string
	matches   bool
	problem   *Error
	canceled  bool
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithLogger routes session logging to logger.
func WithLogger(logger Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSession prepares diff for application under cfg. When cfg.Reversed is
// set the diff is reversed up front, so every accessor reports the reversed
// view.
func NewSession(diff FileDiff, cfg ApplyConfig, opts ...SessionOption) *Session {
	if cfg.Reversed {
		diff = diff.Reverse()
	}
	s := &Session{
		diff:      diff,
		diffType:  diff.Type,
		config:    cfg,
		logger:    &NoOpLogger{},
		matcher:   newMatcher(cfg),
		apps:      make([]*HunkApplication, len(diff.Hunks)),
		delimiter: "\n",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Diff returns the diff being applied.
func (s *Session) Diff() FileDiff { return s.diff }

// DiffType is the effective diff type.
func (s *Session) DiffType() DiffType { return s.diffType }

// Config returns the session's configuration.
func (s *Session) Config() ApplyConfig { return s.config }

// Path is the target path with the configured components stripped.
func (s *Session) Path() string {
	return s.config.StripPath(s.diff.TargetPath())
}

// Application returns the application for the hunk at index, creating it on
// first use.
func (s *Session) Application(index int) *HunkApplication {
	if s.apps[index] == nil {
		s.apps[index] = newHunkApplication(s, index)
	}
	return s.apps[index]
}

// Applications returns every hunk application in hunk order.
func (s *Session) Applications() []*HunkApplication {
	out := make([]*HunkApplication, len(s.apps))
	for i := range s.apps {
		out[i] = s.Application(i)
	}
	return out
}

func (s *Session) reset() {
	s.before = nil
	s.after = nil
	s.charset = ""
	s.encoding = nil
	s.delimiter = "\n"
	s.matches = false
	s.problem = nil
	s.canceled = false
	for _, app := range s.apps {
		if app != nil {
			app.reset()
		}
	}
}

// Refresh re-evaluates the session against src. Structural problems (a
// missing target, or an addition whose target already has content) are
// reported through Problem rather than as an error; every hunk is then
// marked failed. Errors are returned for I/O failures and cancellation, in
// which case the session's results must be discarded.
func (s *Session) Refresh(src ContentSource, progress ProgressReporter) error {
	if progress == nil {
		progress = NoProgress{}
	}
	s.reset()

	loaded, err := s.loadTarget(src)
	if err != nil {
		return err
	}
	s.before = loaded.Lines
	s.charset = loaded.Charset
	s.encoding = loaded.encoding
	s.delimiter = loaded.Delimiter

	if s.problem != nil {
		s.after = s.before
		for i := range s.apps {
			s.Application(i).markFailed()
		}
		s.logger.Warn("cannot apply diff", Field("path", s.Path()), Field("code", s.problem.Code))
		return nil
	}

	s.matches = true
	s.after = append([]string(nil), s.before...)
	progress.BeginTask(s.Path(), len(s.apps))

	if s.config.Fuzz != 0 {
		if err := s.precomputeFuzz(progress); err != nil {
			return err
		}
	}

	shift := 0
	for i := range s.apps {
		if progress.IsCanceled() {
			return s.cancel(i)
		}
		progress.SubTask(fmt.Sprintf("hunk %d", i+1))
		s.after, shift = s.Application(i).Apply(s.after, shift)
		progress.Worked(1)
	}

	if s.matches && len(s.apps) > 0 && len(s.Rejects()) == len(s.apps) {
		s.matches = false
	}
	return nil
}

func (s *Session) loadTarget(src ContentSource) (Loaded, error) {
	opts := LoadOptions{KeepDelimiters: true, DefaultCharset: s.config.charset(), Logger: s.logger}
	exists := src != nil && src.Exists()
	switch {
	case s.diffType == Addition:
		loaded, err := LoadLines(src, true, opts)
		if err != nil {
			return Loaded{}, err
		}
		if len(loaded.Lines) > 0 {
			s.problem = &Error{
				Code:    CodeTargetExists,
				Message: fmt.Sprintf("%s already exists", s.Path()),
				Path:    s.Path(),
			}
		}
		return loaded, nil
	case !exists:
		s.problem = &Error{
			Code:    CodeTargetMissing,
			Message: fmt.Sprintf("%s does not exist", s.Path()),
			Path:    s.Path(),
		}
		return LoadLines(nil, true, opts)
	default:
		return LoadLines(src, false, opts)
	}
}

// precomputeFuzz records, per hunk, the fuzz level it needs against a
// scratch copy of the target. Apply then stops searching at that level.
func (s *Session) precomputeFuzz(progress ProgressReporter) error {
	scratch := append([]string(nil), s.before...)
	shift := 0
	for i := range s.apps {
		if progress.IsCanceled() {
			return s.cancel(i)
		}
		app := s.Application(i)
		m, ok := s.matcher.search(scratch, app.Hunk(), app.candidate(scratch, shift), s.config.Fuzz)
		if !ok {
			app.fuzzHint = -1
			continue
		}
		app.fuzzHint = m.fuzz
		scratch = splice(scratch, m.splice, len(m.win.before), m.win.after, s.delimiter)
		shift += app.Hunk().Delta()
	}
	return nil
}

func (s *Session) cancel(next int) error {
	s.canceled = true
	s.matches = false
	s.logger.Info("refresh canceled", Field("path", s.Path()), Field("hunk", next+1))
	return canceledError(s.Path(), next+1)
}

// CalculateFuzz reports the highest fuzz level any hunk needs to match src,
// trying levels up to the larger of the configured fuzz and MaxFuzz. It
// returns -1 when some hunk cannot match at any of those levels and
// NotApplicable for additions. The session's results are left untouched.
func (s *Session) CalculateFuzz(src ContentSource, progress ProgressReporter) (int, error) {
	if progress == nil {
		progress = NoProgress{}
	}
	if s.diffType == Addition {
		return NotApplicable, nil
	}
	if src == nil || !src.Exists() {
		return -1, nil
	}
	loaded, err := LoadLines(src, false, LoadOptions{KeepDelimiters: true, DefaultCharset: s.config.charset(), Logger: s.logger})
	if err != nil {
		return -1, err
	}

	limit := max(s.config.Fuzz, MaxFuzz)
	lines := loaded.Lines
	shift := 0
	worst := -1
	progress.BeginTask(s.Path(), len(s.apps))
	for i := range s.apps {
		if progress.IsCanceled() {
			return -1, canceledError(s.Path(), i+1)
		}
		app := s.Application(i)
		m, ok := s.matcher.search(lines, app.Hunk(), app.candidate(lines, shift), limit)
		progress.Worked(1)
		if !ok {
			return -1, nil
		}
		worst = max(worst, m.fuzz)
		lines = splice(lines, m.splice, len(m.win.before), m.win.after, loaded.Delimiter)
		shift += app.Hunk().Delta()
	}
	return worst, nil
}

// HasMatches reports whether the target is usable: no structural problem,
// no cancellation, and at least one hunk applied (or none to apply).
func (s *Session) HasMatches() bool { return s.matches }

// Problem returns the structural problem found by the last refresh.
func (s *Session) Problem() *Error { return s.problem }

// Canceled reports whether the last refresh was canceled.
func (s *Session) Canceled() bool { return s.canceled }

// Charset names the encoding the target was decoded with.
func (s *Session) Charset() string { return s.charset }

// Before returns the target's lines, without terminators.
func (s *Session) Before() []string { return stripLines(s.before) }

// After returns the patched lines, without terminators.
func (s *Session) After() []string { return stripLines(s.after) }

// BeforeBytes renders the original content in the target's charset.
func (s *Session) BeforeBytes() []byte { return encodeLines(s.before, s.encoding, s.logger) }

// AfterBytes renders the patched content in the target's charset.
func (s *Session) AfterBytes() []byte { return encodeLines(s.after, s.encoding, s.logger) }

// Results returns a snapshot of every hunk application in hunk order.
func (s *Session) Results() []HunkResult {
	out := make([]HunkResult, len(s.apps))
	for i := range s.apps {
		out[i] = s.Application(i).Result()
	}
	return out
}

// Rejects returns the hunks that failed, in hunk order.
func (s *Session) Rejects() []Hunk {
	var rejects []Hunk
	for i := range s.apps {
		if s.Application(i).State() == Failed {
			rejects = append(rejects, s.diff.Hunks[i])
		}
	}
	return rejects
}

// MaxFuzz is the highest fuzz level used by a matched hunk, or -1.
func (s *Session) MaxFuzz() int {
	worst := -1
	for i := range s.apps {
		if app := s.Application(i); app.IsOK() {
			worst = max(worst, app.Fuzz())
		}
	}
	return worst
}

// Err summarizes the last refresh: the structural problem if there was one,
// a HUNK_NOT_FOUND error listing every hunk's status if any hunk was
// rejected, and nil otherwise.
func (s *Session) Err() *Error {
	if s.problem != nil {
		return s.problem
	}
	rejects := s.Rejects()
	if len(rejects) == 0 {
		return nil
	}

	statuses := make([]HunkStatus, 0, len(s.apps))
	var failed *FailedHunk
	for i := range s.apps {
		app := s.Application(i)
		number := i + 1
		switch {
		case app.Fuzzy():
			statuses = append(statuses, HunkStatus{Number: number, Status: StatusFuzzy, Fuzz: app.Fuzz()})
		case app.IsOK():
			statuses = append(statuses, HunkStatus{Number: number, Status: StatusApplied})
		default:
			statuses = append(statuses, HunkStatus{Number: number, Status: StatusNoMatch})
			if failed == nil {
				raw := strings.Split(strings.TrimSuffix(app.Hunk().String(), "\n"), "\n")
				failed = &FailedHunk{Number: number, RawPatchLines: raw}
			}
		}
	}

	message := fmt.Sprintf("Hunk not found in %s.", s.Path())
	if len(rejects) > 1 {
		message = fmt.Sprintf("%d of %d hunks not found in %s.", len(rejects), len(s.apps), s.Path())
	}
	return &Error{
		Message:         message,
		Code:            CodeHunkNotFound,
		Path:            s.Path(),
		OriginalContent: strings.Join(s.before, ""),
		HunkStatuses:    statuses,
		FailedHunk:      failed,
	}
}

// RejectReport renders Err for people, or "" when nothing was rejected.
func (s *Session) RejectReport() string {
	e := s.Err()
	if e == nil {
		return ""
	}
	return FormatError(e)
}

// IsCanceled reports whether err came from a canceled refresh.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

func stripLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = trimEOL(line)
	}
	return out
}
