package probe

import (
	"strings"

	"github.com/asynkron/goapply/pkg/patch"
)

// StripGuess is the outcome of GuessStrip.
type StripGuess struct {
	// Strip is the chosen component count.
	Strip int
	// Found is how many existing targets the chosen count resolves.
	Found int
	// Candidates is the number of diffs that need an existing target.
	Candidates int
}

// OK reports whether at least one target was found.
func (g StripGuess) OK() bool { return g.Found > 0 }

// GuessStrip picks the strip count that resolves the most diff targets to
// files below the context root, like patch(1) does when -p is omitted.
// Additions are ignored since their target does not exist yet. Ties go to
// the smaller count.
func GuessStrip(ctx *Context, diffs []patch.FileDiff, reversed bool) StripGuess {
	var paths []string
	depth := 0
	for _, diff := range diffs {
		if reversed {
			diff = diff.Reverse()
		}
		if diff.Type == patch.Addition {
			continue
		}
		p := diff.TargetPath()
		paths = append(paths, p)
		depth = max(depth, strings.Count(strings.Trim(p, "/"), "/"))
	}

	best := StripGuess{Candidates: len(paths)}
	for strip := 0; strip <= depth; strip++ {
		cfg := patch.ApplyConfig{StripCount: strip}
		found := 0
		for _, p := range paths {
			if ctx.HasFile(cfg.StripPath(p)) {
				found++
			}
		}
		if found > best.Found {
			best.Strip = strip
			best.Found = found
		}
	}
	return best
}
