package patch

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// ContentSource abstracts where a session reads its target from.
type ContentSource interface {
	Exists() bool
	Open() (io.ReadCloser, error)
	// Charset reports the content's character set when the source knows it.
	Charset() (string, bool)
}

// MemorySource serves content held in memory.
type MemorySource struct {
	content []byte
	charset string
	exists  bool
}

// NewMemorySource returns a source holding content. An empty charset means
// the session default applies.
func NewMemorySource(content []byte, charset string) *MemorySource {
	return &MemorySource{content: content, charset: charset, exists: true}
}

// AbsentSource returns a source describing a target that does not exist.
func AbsentSource() *MemorySource {
	return &MemorySource{}
}

func (m *MemorySource) Exists() bool {
	return m != nil && m.exists
}

func (m *MemorySource) Open() (io.ReadCloser, error) {
	if !m.Exists() {
		return nil, fs.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(m.content)), nil
}

func (m *MemorySource) Charset() (string, bool) {
	if m == nil || strings.TrimSpace(m.charset) == "" {
		return "", false
	}
	return m.charset, true
}

// FileSource reads a target from the OS filesystem.
type FileSource struct {
	path    string
	charset string
}

// NewFileSource returns a source for path. charset may be empty.
func NewFileSource(path, charset string) *FileSource {
	return &FileSource{path: path, charset: charset}
}

// Path returns the file the source reads.
func (f *FileSource) Path() string {
	return f.path
}

// Exists reports whether the path names a regular file. Directories count as
// absent.
func (f *FileSource) Exists() bool {
	info, err := os.Stat(f.path)
	return err == nil && !info.IsDir()
}

func (f *FileSource) Open() (io.ReadCloser, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("cannot patch directory %s", f.path)
	}
	return os.Open(f.path)
}

func (f *FileSource) Charset() (string, bool) {
	if strings.TrimSpace(f.charset) == "" {
		return "", false
	}
	return f.charset, true
}

// Mode returns the file's mode, or zero when it cannot be determined.
func (f *FileSource) Mode() fs.FileMode {
	info, err := os.Stat(f.path)
	if err != nil {
		return 0
	}
	return info.Mode()
}
