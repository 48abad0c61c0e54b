// Package probe inspects the directory a patch is applied in.
package probe

import (
	"os"
	"path/filepath"
)

// Context answers questions about files below a root directory. Tests can
// supply their own stat function so probes run without touching the disk.
type Context struct {
	root string
	stat func(string) (os.FileInfo, error)
}

// NewContext constructs a Context rooted at root. An empty root means the
// working directory.
func NewContext(root string) *Context {
	if root == "" {
		root = "."
	}
	return &Context{root: root, stat: os.Stat}
}

// NewContextWithStat overrides the stat implementation.
func NewContextWithStat(root string, stat func(string) (os.FileInfo, error)) *Context {
	ctx := NewContext(root)
	if stat != nil {
		ctx.stat = stat
	}
	return ctx
}

// Root returns the directory probes inspect.
func (c *Context) Root() string {
	return c.root
}

// HasFile reports whether a regular file exists at the slash-separated
// relative path.
func (c *Context) HasFile(relPath string) bool {
	if relPath == "" || relPath == "." {
		return false
	}
	info, err := c.stat(filepath.Join(c.root, filepath.FromSlash(relPath)))
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// HasDir reports whether a directory exists at the relative path.
func (c *Context) HasDir(relPath string) bool {
	if relPath == "" {
		return false
	}
	info, err := c.stat(filepath.Join(c.root, filepath.FromSlash(relPath)))
	if err != nil {
		return false
	}
	return info.IsDir()
}
