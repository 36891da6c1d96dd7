// Package security guards the paths a run writes to.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrEscapesRoot is returned for a path that resolves outside its root.
var ErrEscapesRoot = errors.New("security: path escapes output root")

// canonical resolves symlinks in the longest existing prefix of p. The
// missing remainder is appended unchanged, so /tmp/link/new.png with
// link -> /etc resolves to /etc/new.png.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	for dir := abs; ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rel, _ := filepath.Rel(dir, abs)
			return filepath.Join(resolved, rel), nil
		}
		if filepath.Dir(dir) == dir {
			return abs, nil
		}
	}
}

// WithinRoot reports an error when path, after cleaning and symlink
// resolution, is not root or below it. Neither needs to exist yet.
func WithinRoot(path, root string) error {
	p, err := canonical(path)
	if err != nil {
		return err
	}
	r, err := canonical(root)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(r, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s is outside %s", ErrEscapesRoot, path, root)
	}
	return nil
}

// SanitizeFilename makes a safe file name component from s. Characters other
// than ASCII letters, digits, dot, underscore and dash become an underscore,
// runs of underscores collapse, and the result is capped at 128 bytes.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	last := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'), r == '.', r == '-':
			b.WriteRune(r)
			last = false
		case !last:
			b.WriteByte('_')
			last = true
		}
	}
	return b.String()
}

// ValidPrefix reports whether a file name prefix is usable as is: empty, or
// unchanged by SanitizeFilename and free of "..".
func ValidPrefix(prefix string) bool {
	return prefix == "" || (SanitizeFilename(prefix) == prefix && !strings.Contains(prefix, ".."))
}
