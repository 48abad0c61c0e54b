package patch

import "context"

// ProgressReporter receives progress while a session is refreshed and is
// polled for cancellation at every hunk boundary.
type ProgressReporter interface {
	BeginTask(name string, total int)
	Worked(n int)
	SubTask(label string)
	IsCanceled() bool
}

// NoProgress discards progress and never cancels.
type NoProgress struct{}

func (NoProgress) BeginTask(string, int) {}
func (NoProgress) Worked(int)            {}
func (NoProgress) SubTask(string)        {}
func (NoProgress) IsCanceled() bool      { return false }

type contextProgress struct {
	ctx   context.Context
	inner ProgressReporter
}

// WithContext returns a reporter that forwards to inner (which may be nil)
// and reports cancellation once ctx is done.
func WithContext(ctx context.Context, inner ProgressReporter) ProgressReporter {
	if inner == nil {
		inner = NoProgress{}
	}
	return &contextProgress{ctx: ctx, inner: inner}
}

func (p *contextProgress) BeginTask(name string, total int) { p.inner.BeginTask(name, total) }
func (p *contextProgress) Worked(n int)                     { p.inner.Worked(n) }
func (p *contextProgress) SubTask(label string)             { p.inner.SubTask(label) }

func (p *contextProgress) IsCanceled() bool {
	if p.ctx != nil && p.ctx.Err() != nil {
		return true
	}
	return p.inner.IsCanceled()
}
