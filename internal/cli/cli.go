package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	glam "github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/asynkron/goapply/internal/config"
	"github.com/asynkron/goapply/internal/preview"
	"github.com/asynkron/goapply/internal/probe"
	"github.com/asynkron/goapply/internal/runner"
	"github.com/asynkron/goapply/internal/unidiff"
	"github.com/asynkron/goapply/pkg/patch"
)

// Exit codes, following patch(1).
const (
	ExitOK      = 0
	ExitRejects = 1
	ExitTrouble = 2
)

const defaultWidth = 80

type flags struct {
	configPath string
	preview    bool
	explain    bool
	stats      bool
	guessFuzz  bool
}

// Run applies the patch named by args (or read from stdin) and returns a
// POSIX-style exit code: 0 when every hunk applied, 1 when some were
// rejected or a target was unusable, 2 on usage errors and other trouble.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(stderr, err)
		return ExitTrouble
	}

	var f flags
	set := config.Options{}
	flagSet := flag.NewFlagSet("goapply", flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.Usage = func() {
		fmt.Fprintln(flagSet.Output(), "usage: goapply [flags] [patchfile]")
		flagSet.PrintDefaults()
	}
	flagSet.IntVar(&set.Strip, "p", 0, "strip this many leading components from diff paths")
	flagSet.BoolVar(&set.AutoStrip, "auto-strip", false, "guess -p from the files present (ignored when -p is given)")
	flagSet.IntVar(&set.Fuzz, "fuzz", patch.MaxFuzz, "context lines that may be ignored at each edge of a hunk")
	flagSet.BoolVar(&set.Reverse, "R", false, "apply the patch in reverse")
	flagSet.StringVar(&set.Dir, "d", "", "directory the diff paths are relative to (default: working directory)")
	flagSet.BoolVar(&set.DryRun, "dry-run", false, "report what would happen without writing any file")
	flagSet.BoolVar(&set.IgnoreWhitespace, "l", false, "ignore whitespace when matching lines")
	flagSet.IntVar(&set.MaxOffset, "max-offset", 0, "largest distance from the expected line a hunk may move (0: anywhere)")
	flagSet.StringVar(&set.Charset, "charset", patch.DefaultCharset, "character set of target files")
	flagSet.IntVar(&set.Jobs, "j", 0, "files processed concurrently (default: number of CPUs)")
	flagSet.BoolVar(&set.NoRejects, "no-rejects", false, "do not write .rej files for rejected hunks")
	flagSet.StringVar(&set.LogLevel, "log-level", string(patch.LogLevelWarn), "log level: debug, info, warn, error")
	flagSet.StringVar(&set.Color, "color", config.ColorAuto, "colorize output: auto, always, never")
	flagSet.StringVar(&f.configPath, "config", "", "JSON config file (default: $"+config.EnvConfig+")")
	flagSet.BoolVar(&f.preview, "preview", false, "print a line diff of every patched file")
	flagSet.BoolVar(&f.explain, "explain", false, "print a detailed report for every rejected file")
	flagSet.BoolVar(&f.stats, "stats", false, "print hunk statistics")
	flagSet.BoolVar(&f.guessFuzz, "guess-fuzz", false, "report the fuzz each file needs and exit without applying")

	if err := flagSet.Parse(args); err != nil {
		return ExitTrouble
	}
	if flagSet.NArg() > 1 {
		flagSet.Usage()
		return ExitTrouble
	}

	configPath := f.configPath
	if configPath == "" {
		configPath = os.Getenv(config.EnvConfig)
	}
	opts, err := config.Load(configPath, os.LookupEnv)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitTrouble
	}
	stripSet := false
	flagSet.Visit(func(fl *flag.Flag) {
		overlayFlag(&opts, set, fl.Name)
		stripSet = stripSet || fl.Name == "p"
	})
	if err := opts.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid options: %v\n", err)
		return ExitTrouble
	}

	diffs, err := readDiffs(flagSet.Arg(0), stdin)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitTrouble
	}

	logger := patch.NewStdLogger(opts.Level(), stderr)
	out := newOutput(stdout, opts.Color)

	if opts.AutoStrip && !stripSet {
		guess := probe.GuessStrip(probe.NewContext(opts.Dir), diffs, opts.Reverse)
		if guess.OK() {
			opts.Strip = guess.Strip
			logger.Info("guessed strip count",
				patch.Field("strip", guess.Strip),
				patch.Field("found", guess.Found),
				patch.Field("candidates", guess.Candidates),
			)
		} else {
			logger.Warn("could not guess strip count", patch.Field("strip", opts.Strip))
		}
	}

	if f.guessFuzz {
		return guessFuzz(ctx, diffs, opts, logger, out, stderr)
	}

	metrics := runner.NewInMemoryMetrics()
	report, err := runner.Run(ctx, diffs, runner.Options{
		Dir:          opts.Dir,
		Config:       opts.ApplyConfig(),
		DryRun:       opts.DryRun,
		WriteRejects: !opts.NoRejects,
		Jobs:         opts.Jobs,
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil && len(report.Files) == 0 {
		fmt.Fprintln(stderr, err)
		return ExitTrouble
	}

	out.report(report, opts.DryRun)
	if f.preview {
		out.previews(report)
	}
	if f.explain {
		if err := out.explain(report); err != nil {
			fmt.Fprintf(stderr, "failed to render report: %v\n", err)
		}
	}
	if f.stats {
		out.stats(metrics.GetSnapshot())
	}

	switch {
	case err != nil:
		fmt.Fprintln(stderr, err)
		return ExitTrouble
	case report.OK():
		return ExitOK
	default:
		return ExitRejects
	}
}

// overlayFlag copies an explicitly set flag onto opts so flags win over the
// config file and the environment.
func overlayFlag(opts *config.Options, set config.Options, name string) {
	switch name {
	case "p":
		opts.Strip = set.Strip
	case "auto-strip":
		opts.AutoStrip = set.AutoStrip
	case "fuzz":
		opts.Fuzz = set.Fuzz
	case "R":
		opts.Reverse = set.Reverse
	case "d":
		opts.Dir = set.Dir
	case "dry-run":
		opts.DryRun = set.DryRun
	case "l":
		opts.IgnoreWhitespace = set.IgnoreWhitespace
	case "max-offset":
		opts.MaxOffset = set.MaxOffset
	case "charset":
		opts.Charset = set.Charset
	case "j":
		opts.Jobs = set.Jobs
	case "no-rejects":
		opts.NoRejects = set.NoRejects
	case "log-level":
		opts.LogLevel = set.LogLevel
	case "color":
		opts.Color = set.Color
	}
}

func readDiffs(path string, stdin io.Reader) ([]patch.FileDiff, error) {
	if path == "" || path == "-" {
		if stdin == nil {
			return nil, errors.New("no patch given")
		}
		return unidiff.Parse(stdin)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open patch: %w", err)
	}
	defer file.Close()
	return unidiff.Parse(file)
}

func guessFuzz(ctx context.Context, diffs []patch.FileDiff, opts config.Options, logger patch.Logger, out *output, stderr io.Writer) int {
	guesses, err := runner.GuessFuzz(ctx, diffs, runner.Options{
		Dir:    opts.Dir,
		Config: opts.ApplyConfig(),
		Logger: logger,
	})
	code := ExitOK
	for _, g := range guesses {
		switch {
		case g.Err != nil:
			out.line(out.bad, "error", g.Path, g.Err.Error())
			code = ExitTrouble
		case g.Type == patch.Addition:
			out.line(out.muted, "n/a", g.Path, "new file")
		case g.Fuzz < 0:
			out.line(out.bad, "no match", g.Path, "")
			code = max(code, ExitRejects)
		default:
			out.line(out.good, fmt.Sprintf("fuzz %d", g.Fuzz), g.Path, "")
		}
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitTrouble
	}
	return code
}

type output struct {
	w        io.Writer
	renderer *lipgloss.Renderer
	good     lipgloss.Style
	warn     lipgloss.Style
	bad      lipgloss.Style
	muted    lipgloss.Style
}

func newOutput(w io.Writer, color string) *output {
	r := lipgloss.NewRenderer(w)
	switch color {
	case config.ColorNever:
		r.SetColorProfile(termenv.Ascii)
	case config.ColorAlways:
		if profile := termenv.EnvColorProfile(); profile != termenv.Ascii {
			r.SetColorProfile(profile)
		} else {
			r.SetColorProfile(termenv.ANSI256)
		}
	}
	return &output{
		w:        w,
		renderer: r,
		good:     r.NewStyle().Foreground(lipgloss.Color("10")),
		warn:     r.NewStyle().Foreground(lipgloss.Color("11")),
		bad:      r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		muted:    r.NewStyle().Foreground(lipgloss.Color("244")),
	}
}

func (o *output) line(style lipgloss.Style, label, path, detail string) {
	text := style.Render(fmt.Sprintf("%-9s", label)) + " " + path
	if detail != "" {
		text += " " + o.muted.Render("("+detail+")")
	}
	fmt.Fprintln(o.w, text)
}

func (o *output) report(report runner.Report, dryRun bool) {
	for _, fr := range report.Files {
		o.file(fr)
	}
	counts := make([]string, 0, 6)
	for _, status := range []runner.Status{
		runner.StatusApplied, runner.StatusFuzzy, runner.StatusPartial,
		runner.StatusRejected, runner.StatusProblem, runner.StatusError, runner.StatusCanceled,
	} {
		if n := report.Count(status); n > 0 {
			counts = append(counts, fmt.Sprintf("%d %s", n, status))
		}
	}
	summary := fmt.Sprintf("%d files", len(report.Files))
	if len(counts) > 0 {
		summary += ": " + strings.Join(counts, ", ")
	}
	if dryRun {
		summary += " (dry run)"
	}
	fmt.Fprintln(o.w, summary)
}

func (o *output) file(fr runner.FileReport) {
	path := fr.Path
	if fr.ResultPath != "" {
		path += " -> " + fr.ResultPath
	}
	rejected := 0
	for _, res := range fr.Results {
		if !res.OK() {
			rejected++
		}
	}
	switch fr.Status {
	case runner.StatusApplied:
		o.line(o.good, string(fr.Status), path, fr.Type.String())
	case runner.StatusFuzzy:
		o.line(o.warn, string(fr.Status), path, fmt.Sprintf("fuzz %d", fr.MaxFuzz))
	case runner.StatusPartial, runner.StatusRejected:
		detail := fmt.Sprintf("%d of %d hunks rejected", rejected, len(fr.Results))
		if fr.RejectFile != "" {
			detail += ", saved to " + fr.RejectFile
		}
		o.line(o.bad, string(fr.Status), path, detail)
	case runner.StatusCanceled:
		o.line(o.muted, string(fr.Status), path, "")
	default:
		detail := ""
		if fr.Err != nil {
			detail = fr.Err.Error()
		}
		o.line(o.bad, string(fr.Status), path, detail)
	}
}

func (o *output) previews(report runner.Report) {
	pr := preview.NewRenderer(o.renderer)
	for _, fr := range report.Files {
		if fr.Session == nil || !fr.Session.HasMatches() {
			continue
		}
		lines := preview.Session(fr.Session)
		if err := pr.Render(o.w, fr.Path, lines); err != nil {
			return
		}
		inserted, deleted := preview.Stats(lines)
		fmt.Fprintln(o.w, o.muted.Render(fmt.Sprintf("+%d -%d", inserted, deleted)))
	}
}

// explain renders a markdown report of every rejected file through glamour.
func (o *output) explain(report runner.Report) error {
	var md strings.Builder
	for _, fr := range report.Files {
		var perr *patch.Error
		if !errors.As(fr.Err, &perr) {
			continue
		}
		fmt.Fprintf(&md, "## %s\n\n```\n%s\n```\n\n", fr.Path, strings.TrimRight(patch.FormatError(perr), "\n"))
	}
	if md.Len() == 0 {
		return nil
	}

	style := "dark"
	if o.renderer.ColorProfile() == termenv.Ascii {
		style = "notty"
	}
	r, err := glam.NewTermRenderer(
		glam.WithStylePath(style),
		glam.WithWordWrap(defaultWidth),
	)
	if err != nil {
		return err
	}
	rendered, err := r.Render(md.String())
	if err != nil {
		return err
	}
	_, err = io.WriteString(o.w, rendered)
	return err
}

func (o *output) stats(snap runner.MetricsSnapshot) {
	h := snap.Hunks
	fmt.Fprintln(o.w, o.muted.Render(fmt.Sprintf(
		"hunks: %d matched (%d fuzzy), %d failed; max offset %d, max fuzz %d",
		h.Matched, h.Fuzzy, h.Failed, h.MaxOffset, h.MaxFuzz,
	)))
}
