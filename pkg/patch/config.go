package patch

import (
	"errors"
	"path"
	"strings"
)

// MaxFuzz is the highest fuzz level tried when guessing how much fuzz a
// patch needs.
const MaxFuzz = 2

// DefaultCharset is used when neither the content source nor the
// configuration names one.
const DefaultCharset = "UTF-8"

// ApplyConfig controls how aggressively hunks are matched.
type ApplyConfig struct {
	// Fuzz is the number of context lines that may be ignored at each edge
	// of a hunk. Zero disables context shrinking; the offset search still
	// runs.
	Fuzz int
	// Reversed swaps the before and after side of every hunk.
	Reversed bool
	// StripCount removes leading path components for display, like patch -p.
	StripCount int

	// IgnoreWhitespace compares lines with all whitespace removed.
	IgnoreWhitespace bool
	// MaxOffset bounds how far from its expected position a hunk may be
	// found. Zero means anywhere in the file.
	MaxOffset int
	// DefaultCharset is used when a content source reports no charset.
	DefaultCharset string
}

// Validate rejects out-of-range values.
func (c ApplyConfig) Validate() error {
	var errs []error
	if c.Fuzz < 0 {
		errs = append(errs, errors.New("fuzz must not be negative"))
	}
	if c.StripCount < 0 {
		errs = append(errs, errors.New("strip count must not be negative"))
	}
	if c.MaxOffset < 0 {
		errs = append(errs, errors.New("max offset must not be negative"))
	}
	return errors.Join(errs...)
}

// StripPath drops the first StripCount components of p. When p has fewer
// components than that, only its final element is kept.
func (c ApplyConfig) StripPath(p string) string {
	cleaned := path.Clean(strings.ReplaceAll(strings.TrimSpace(p), "\\", "/"))
	if c.StripCount <= 0 || cleaned == "." {
		return cleaned
	}
	segments := strings.Split(strings.TrimPrefix(cleaned, "/"), "/")
	if c.StripCount >= len(segments) {
		return segments[len(segments)-1]
	}
	return strings.Join(segments[c.StripCount:], "/")
}

func (c ApplyConfig) charset() string {
	if cs := strings.TrimSpace(c.DefaultCharset); cs != "" {
		return cs
	}
	return DefaultCharset
}
