// Package fsnaming resolves a safe, non-colliding local file path for a
// downloaded transfer inside the receiver's configured storage
// directory, grounded on the teacher's netconf/testserver file-handling
// helpers (create-parent-then-write convention).
package fsnaming

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// EnsureDir creates dir (and any missing parents) if it does not already
// exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "fsnaming: create storage dir %q", dir)
	}
	return nil
}

// Resolve returns a path inside dir for fileName that does not currently
// exist, appending "_N" before the extension for the first available N
// when fileName is already taken. fileName is reduced to its base name
// first, so a malicious or buggy sender cannot use it to escape dir.
func Resolve(dir, fileName string) (string, error) {
	if err := EnsureDir(dir); err != nil {
		return "", err
	}

	base := filepath.Base(fileName)
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "download"
	}

	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]

	candidate := filepath.Join(dir, base)
	for n := 1; ; n++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		} else if err != nil {
			return "", errors.Wrap(err, "fsnaming: stat candidate path")
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
	}
}
