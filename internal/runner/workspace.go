package runner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/asynkron/goapply/pkg/patch"
)

// workspace resolves diff paths against a root directory and performs the
// write-back once a session has produced its result.
type workspace struct {
	root string
}

func newWorkspace(dir string) (*workspace, error) {
	root := strings.TrimSpace(dir)
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		root = wd
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	return &workspace{root: root}, nil
}

// resolvePath maps a diff path to an absolute path and its cleaned display
// form. Paths escaping the root are refused.
func (ws *workspace) resolvePath(relative string) (string, string, error) {
	rel := strings.TrimSpace(relative)
	if rel == "" || rel == "/dev/null" {
		return "", "", errors.New("invalid patch path")
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	var abs string
	if filepath.IsAbs(cleaned) {
		abs = cleaned
	} else {
		abs = filepath.Join(ws.root, cleaned)
	}
	inside, err := filepath.Rel(ws.root, abs)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("path %s escapes %s", rel, ws.root)
	}
	return abs, filepath.ToSlash(inside), nil
}

// write stores content at abs. mode is the original file's mode; zero means
// the file is new.
func (ws *workspace) write(abs, display string, content []byte, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", display, err)
	}

	perm := mode & fs.ModePerm
	if perm == 0 {
		perm = 0o644
	}
	if err := os.WriteFile(abs, content, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", display, err)
	}
	if mode == 0 {
		return nil
	}

	// WriteFile leaves the mode of existing files alone and applies the
	// umask to new ones; restore the original bits either way.
	desired := mode & (fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky)
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("failed to stat %s after write: %w", display, err)
	}
	current := info.Mode() & (fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky)
	if current != desired {
		if err := os.Chmod(abs, desired); err != nil {
			return fmt.Errorf("failed to restore permissions for %s: %w", display, err)
		}
	}
	return nil
}

func (ws *workspace) remove(abs, display string) error {
	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", display, err)
	}
	return nil
}

// writeRejects stores the hunks that failed next to the result file, in
// unified format.
func (ws *workspace) writeRejects(abs, display string, diff patch.FileDiff, rejects []patch.Hunk) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n+++ %s\n", pathOrNull(diff.OldPath), pathOrNull(diff.NewPath))
	for _, h := range rejects {
		b.WriteString(h.String())
	}
	rejAbs := abs + ".rej"
	if err := ws.write(rejAbs, display+".rej", []byte(b.String()), 0); err != nil {
		return "", err
	}
	return display + ".rej", nil
}

func pathOrNull(p string) string {
	if p == "" {
		return "/dev/null"
	}
	return p
}
