// Package filex contains small filesystem helpers for the transfer engine.
package filex

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// EnsureDir creates dir and its parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// Size returns the size of path, and false when it does not exist.
func Size(path string) (int64, bool, error) {
	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("stat %s: %w", path, err)
	}
	return fi.Size(), true, nil
}

// Exists reports whether path exists. Stat errors other than "not exist"
// count as existing.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

// RemoveIfExists deletes path, ignoring a missing file.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// ReplaceFile moves src over dst. Rename is atomic on POSIX; where the
// platform refuses to overwrite, dst is removed and the rename retried.
func ReplaceFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := RemoveIfExists(dst); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", src, dst, err)
	}
	return nil
}

// MoveIfAbsent moves src to dst when src exists and dst does not. It reports
// whether a move happened.
func MoveIfAbsent(src, dst string) (bool, error) {
	if src == dst || !Exists(src) || Exists(dst) {
		return false, nil
	}
	if err := EnsureDir(filepath.Dir(dst)); err != nil {
		return false, err
	}
	if err := os.Rename(src, dst); err != nil {
		return false, fmt.Errorf("rename %s -> %s: %w", src, dst, err)
	}
	return true, nil
}
