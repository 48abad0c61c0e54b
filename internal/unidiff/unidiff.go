// Package unidiff turns unified and git-style diff text into the structured
// file diffs consumed by the patch engine.
package unidiff

import (
	"errors"
	"fmt"
	"io"
	"strings"

	gitdiff "github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/asynkron/goapply/pkg/patch"
)

// ErrNoFiles is returned when the input contains no file diffs.
var ErrNoFiles = errors.New("no file diffs found in patch")

// ErrBinary is returned for binary diffs, which carry no text hunks.
var ErrBinary = errors.New("binary diffs are not supported")

// Parse reads every file diff from r. Leading commentary (commit messages,
// mail headers) is ignored.
func Parse(r io.Reader) ([]patch.FileDiff, error) {
	files, _, err := gitdiff.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	diffs := make([]patch.FileDiff, 0, len(files))
	for _, file := range files {
		diff, err := convertFile(file)
		if err != nil {
			return nil, err
		}
		diffs = append(diffs, diff)
	}
	return diffs, nil
}

// ParseString is Parse for in-memory diff text.
func ParseString(text string) ([]patch.FileDiff, error) {
	return Parse(strings.NewReader(text))
}

func convertFile(file *gitdiff.File) (patch.FileDiff, error) {
	name := file.NewName
	if name == "" {
		name = file.OldName
	}
	if file.IsBinary {
		return patch.FileDiff{}, fmt.Errorf("%s: %w", name, ErrBinary)
	}

	diff := patch.FileDiff{
		OldPath: file.OldName,
		NewPath: file.NewName,
		Type:    patch.Change,
	}
	switch {
	case file.IsNew:
		diff.Type = patch.Addition
		diff.OldPath = ""
	case file.IsDelete:
		diff.Type = patch.Deletion
		diff.NewPath = ""
	}

	diff.Hunks = make([]patch.Hunk, 0, len(file.TextFragments))
	for _, frag := range file.TextFragments {
		diff.Hunks = append(diff.Hunks, convertFragment(frag))
	}
	return diff, nil
}

func convertFragment(frag *gitdiff.TextFragment) patch.Hunk {
	h := patch.Hunk{
		OldStart: int(frag.OldPosition),
		NewStart: int(frag.NewPosition),
		Header:   strings.TrimSpace(frag.Comment),
	}
	for _, line := range frag.Lines {
		text := strings.TrimRight(line.Line, "\r\n")
		switch line.Op {
		case gitdiff.OpContext:
			h.Before = append(h.Before, text)
			h.After = append(h.After, text)
		case gitdiff.OpDelete:
			h.Before = append(h.Before, text)
		case gitdiff.OpAdd:
			h.After = append(h.After, text)
		}
	}
	return h
}
