// Package runner applies a batch of file diffs to a directory tree, one
// patch session per file.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/asynkron/goapply/pkg/patch"
)

// Status summarizes what happened to one file.
type Status string

const (
	// StatusApplied means every hunk matched exactly.
	StatusApplied  Status = "applied"
	// StatusFuzzy means every hunk matched, some with fuzz.
	StatusFuzzy    Status = "fuzzy"
	// StatusPartial means some hunks were rejected.
	StatusPartial  Status = "partial"
	// StatusRejected means no hunk matched.
	StatusRejected Status = "rejected"
	// StatusProblem means the target is missing or unexpectedly present.
	StatusProblem  Status = "problem"
	StatusCanceled Status = "canceled"
	// StatusError means the file could not be read or written.
	StatusError    Status = "error"
)

// Options configure a batch run.
type Options struct {
	// Dir is the root the diff paths are resolved against. Empty means the
	// working directory.
	Dir    string
	Config patch.ApplyConfig
	// DryRun evaluates every session without touching the tree.
	DryRun bool
	// WriteRejects stores rejected hunks in a .rej file next to the target.
	WriteRejects bool
	// Jobs bounds how many files are processed at once. Zero or less means
	// one.
	Jobs    int
	Logger  patch.Logger
	Metrics Metrics
}

// FileReport describes the outcome for one file.
type FileReport struct {
	// Path is the target as shown to the user, after stripping.
	Path string
	// ResultPath is where the patched content went, when it differs from
	// Path.
	ResultPath string
	Type       patch.DiffType
	Status     Status
	Results    []patch.HunkResult
	MaxFuzz    int
	// Err holds the structured *patch.Error for problems and rejects, or
	// the I/O error that stopped the file.
	Err        error
	RejectFile string
	Written    bool
	// Session is kept for previews and reject reports.
	Session *patch.Session
}

// Report aggregates a batch run in diff order.
type Report struct {
	Files []FileReport
}

// OK reports whether every file applied completely.
func (r Report) OK() bool {
	for _, f := range r.Files {
		if f.Status != StatusApplied && f.Status != StatusFuzzy {
			return false
		}
	}
	return true
}

// Count returns how many files ended with status.
func (r Report) Count(status Status) int {
	n := 0
	for _, f := range r.Files {
		if f.Status == status {
			n++
		}
	}
	return n
}

// Run applies diffs under opts.Dir. Files are processed concurrently, except
// that diffs naming the same target run in their original order. A failure
// on one file never stops the others; only cancellation and invalid options
// return an error, and the partial report is still returned alongside.
func Run(ctx context.Context, diffs []patch.FileDiff, opts Options) (Report, error) {
	if err := opts.Config.Validate(); err != nil {
		return Report{}, fmt.Errorf("invalid apply config: %w", err)
	}
	ws, err := newWorkspace(opts.Dir)
	if err != nil {
		return Report{}, err
	}
	r := &runner{ws: ws, opts: opts, logger: opts.Logger, metrics: opts.Metrics}
	if r.logger == nil {
		r.logger = &patch.NoOpLogger{}
	}
	if r.metrics == nil {
		r.metrics = &NoOpMetrics{}
	}

	report := Report{Files: make([]FileReport, len(diffs))}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, opts.Jobs))
	for _, group := range groupByTarget(diffs, opts.Config) {
		g.Go(func() error {
			for _, i := range group {
				fr := r.applyFile(gctx, diffs[i])
				report.Files[i] = fr
				if fr.Status == StatusCanceled {
					return fr.Err
				}
			}
			return nil
		})
	}
	err = g.Wait()

	for i := range report.Files {
		if report.Files[i].Status == "" {
			report.Files[i] = FileReport{
				Path:    targetPath(diffs[i], opts.Config),
				Type:    diffs[i].Type,
				Status:  StatusCanceled,
				MaxFuzz: -1,
			}
		}
	}
	return report, err
}

// targetPath is the stripped path a diff reads, after any reversal.
func targetPath(diff patch.FileDiff, cfg patch.ApplyConfig) string {
	if cfg.Reversed {
		diff = diff.Reverse()
	}
	return cfg.StripPath(diff.TargetPath())
}

// groupByTarget returns diff indexes grouped by target, groups ordered by
// first appearance.
func groupByTarget(diffs []patch.FileDiff, cfg patch.ApplyConfig) [][]int {
	index := make(map[string]int)
	var groups [][]int
	for i, diff := range diffs {
		key := targetPath(diff, cfg)
		g, ok := index[key]
		if !ok {
			g = len(groups)
			index[key] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

type runner struct {
	ws      *workspace
	opts    Options
	logger  patch.Logger
	metrics Metrics
}

func (r *runner) applyFile(ctx context.Context, diff patch.FileDiff) (fr FileReport) {
	start := time.Now()
	path := targetPath(diff, r.opts.Config)
	logger := r.logger.WithFields(patch.Field("file", path))
	session := patch.NewSession(diff, r.opts.Config, patch.WithLogger(logger))

	fr = FileReport{Path: path, Type: session.DiffType(), MaxFuzz: -1}
	defer func() {
		r.metrics.RecordFile(fr.Status, time.Since(start))
	}()

	abs, display, err := r.ws.resolvePath(path)
	if err != nil {
		fr.Status = StatusError
		fr.Err = err
		logger.Error("cannot resolve target", err)
		return fr
	}
	fr.Path = display

	src := patch.NewFileSource(abs, "")
	mode := src.Mode()
	if err := session.Refresh(src, patch.WithContext(ctx, nil)); err != nil {
		fr.Err = err
		if patch.IsCanceled(err) {
			fr.Status = StatusCanceled
			return fr
		}
		fr.Status = StatusError
		logger.Error("cannot evaluate diff", err)
		return fr
	}

	fr.Session = session
	fr.Results = session.Results()
	fr.MaxFuzz = session.MaxFuzz()
	for _, res := range fr.Results {
		r.metrics.RecordHunk(res)
	}

	rejects := session.Rejects()
	switch {
	case session.Problem() != nil:
		fr.Status = StatusProblem
		fr.Err = session.Problem()
		logger.Warn("skipping file", patch.Field("reason", session.Problem().Message))
		return fr
	case !session.HasMatches():
		fr.Status = StatusRejected
	case len(rejects) > 0:
		fr.Status = StatusPartial
	case fr.MaxFuzz > 0:
		fr.Status = StatusFuzzy
	default:
		fr.Status = StatusApplied
	}
	if e := session.Err(); e != nil {
		fr.Err = e
	}

	if r.opts.DryRun {
		logger.Info("dry run", patch.Field("status", fr.Status))
		return fr
	}

	resultAbs, resultDisplay := abs, display
	if session.HasMatches() {
		resultAbs, resultDisplay, err = r.commit(session, abs, display, mode, &fr)
		if err != nil {
			fr.Status = StatusError
			fr.Err = err
			logger.Error("cannot write result", err)
			return fr
		}
	}

	if r.opts.WriteRejects && len(rejects) > 0 {
		rej, err := r.ws.writeRejects(resultAbs, resultDisplay, session.Diff(), rejects)
		if err != nil {
			fr.Status = StatusError
			fr.Err = errors.Join(fr.Err, err)
			logger.Error("cannot write rejects", err)
			return fr
		}
		fr.RejectFile = rej
	}
	logger.Info("file processed", patch.Field("status", fr.Status), patch.Field("rejects", len(rejects)))
	return fr
}

// commit writes the session's result and returns where it went.
func (r *runner) commit(session *patch.Session, abs, display string, mode fs.FileMode, fr *FileReport) (string, string, error) {
	if session.DiffType() == patch.Deletion && len(session.After()) == 0 {
		if err := r.ws.remove(abs, display); err != nil {
			return "", "", err
		}
		fr.Written = true
		return abs, display, nil
	}

	resultAbs, resultDisplay := abs, display
	if rp := r.opts.Config.StripPath(session.Diff().ResultPath()); rp != display {
		var err error
		resultAbs, resultDisplay, err = r.ws.resolvePath(rp)
		if err != nil {
			return "", "", err
		}
	}
	if err := r.ws.write(resultAbs, resultDisplay, session.AfterBytes(), mode); err != nil {
		return "", "", err
	}
	if resultAbs != abs {
		if err := r.ws.remove(abs, display); err != nil {
			return "", "", err
		}
		fr.ResultPath = resultDisplay
	}
	fr.Written = true
	return resultAbs, resultDisplay, nil
}
