package runner

import (
	"context"
	"fmt"

	"github.com/asynkron/goapply/pkg/patch"
)

// FuzzGuess is the fuzz level one file needs.
type FuzzGuess struct {
	Path string
	Type patch.DiffType
	// Fuzz is the highest level any hunk needs, -1 when some hunk cannot
	// match, or patch.NotApplicable for additions.
	Fuzz int
	// Err is set when the target could not be resolved or read.
	Err error
}

// GuessFuzz reports, per diff, the fuzz level needed to apply it under
// opts.Dir without writing anything. Targets are resolved the same way Run
// resolves them, so paths outside the root are refused. Only cancellation
// and invalid options stop the whole call.
func GuessFuzz(ctx context.Context, diffs []patch.FileDiff, opts Options) ([]FuzzGuess, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid apply config: %w", err)
	}
	ws, err := newWorkspace(opts.Dir)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = &patch.NoOpLogger{}
	}

	guesses := make([]FuzzGuess, 0, len(diffs))
	for _, diff := range diffs {
		path := targetPath(diff, opts.Config)
		session := patch.NewSession(diff, opts.Config, patch.WithLogger(logger.WithFields(patch.Field("file", path))))
		guess := FuzzGuess{Path: path, Type: session.DiffType(), Fuzz: -1}

		abs, display, err := ws.resolvePath(path)
		if err != nil {
			guess.Err = err
			guesses = append(guesses, guess)
			continue
		}
		guess.Path = display

		fuzz, err := session.CalculateFuzz(patch.NewFileSource(abs, ""), patch.WithContext(ctx, nil))
		if err != nil {
			if patch.IsCanceled(err) {
				return guesses, err
			}
			guess.Err = err
		}
		guess.Fuzz = fuzz
		guesses = append(guesses, guess)
	}
	return guesses, nil
}
