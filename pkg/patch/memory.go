package patch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Result describes the outcome for a single file when applying diffs.
type Result struct {
	Status string
	Path   string
	// Fuzz is the highest fuzz level any hunk of the file needed.
	Fuzz int
}

// ApplyToMemory applies diffs to an in-memory document store represented by
// a map. The provided map is copied before mutation and the updated snapshot
// is returned. Unlike a batch run on disk, any structural problem or reject
// aborts the whole call with the file's *Error.
func ApplyToMemory(ctx context.Context, diffs []FileDiff, files map[string]string, cfg ApplyConfig, opts ...SessionOption) (map[string]string, []Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	snapshot := make(map[string]string, len(files))
	for k, v := range files {
		snapshot[k] = v
	}
	progress := WithContext(ctx, nil)

	results := make([]Result, 0, len(diffs))
	for _, diff := range diffs {
		if ctx.Err() != nil {
			return nil, nil, &Error{Message: ctx.Err().Error(), Code: CodeCanceled, Err: ctx.Err()}
		}
		session := NewSession(diff, cfg, opts...)
		effective := session.Diff()
		key, err := memoryKey(effective.TargetPath())
		if err != nil {
			return nil, nil, err
		}

		var src ContentSource = AbsentSource()
		if content, ok := snapshot[key]; ok {
			src = NewMemorySource([]byte(content), "")
		}
		if err := session.Refresh(src, progress); err != nil {
			return nil, nil, err
		}
		if e := session.Err(); e != nil {
			return nil, nil, e
		}

		switch session.DiffType() {
		case Deletion:
			delete(snapshot, key)
			results = append(results, Result{Status: "D", Path: key, Fuzz: session.MaxFuzz()})
			continue
		case Addition:
			results = append(results, Result{Status: "A", Path: key, Fuzz: session.MaxFuzz()})
		default:
			results = append(results, Result{Status: "M", Path: key, Fuzz: session.MaxFuzz()})
		}

		writeKey, err := memoryKey(effective.ResultPath())
		if err != nil {
			return nil, nil, err
		}
		snapshot[writeKey] = string(session.AfterBytes())
		if writeKey != key {
			delete(snapshot, key)
			results[len(results)-1].Path = writeKey
		}
	}
	return snapshot, results, nil
}

func memoryKey(path string) (string, error) {
	rel := filepath.Clean(strings.TrimSpace(path))
	if rel == "" || rel == "." {
		return "", errors.New("invalid patch path")
	}
	return rel, nil
}

// ApplyToLines applies a single diff to content held as lines (without
// terminators) and returns the patched lines together with the session for
// inspection. It never fails on rejects; check the session.
func ApplyToLines(diff FileDiff, lines []string, cfg ApplyConfig, opts ...SessionOption) ([]string, *Session, error) {
	session := NewSession(diff, cfg, opts...)
	var src ContentSource = AbsentSource()
	if lines != nil {
		content := strings.Join(lines, "\n")
		if len(lines) > 0 {
			content += "\n"
		}
		src = NewMemorySource([]byte(content), "")
	}
	if err := session.Refresh(src, NoProgress{}); err != nil {
		return nil, session, fmt.Errorf("apply %s: %w", session.Path(), err)
	}
	return session.After(), session, nil
}
