// Package patch applies already-parsed diff hunks to line-based file content.
//
// A Session owns one file's worth of work: it loads the target through a
// ContentSource, applies every Hunk in order while tracking the line-count
// shift introduced by earlier hunks, and falls back to a bounded fuzzy search
// when a hunk's context has drifted. Results stay available after a refresh
// (matched positions, fuzz levels, rejects, and the encoded before/after
// content), which makes the package straightforward to embed in editors,
// preview tools, and batch appliers.
//
// Parsing diff text is left to callers; see FileDiff and Hunk for the shape
// the engine expects.
package patch
