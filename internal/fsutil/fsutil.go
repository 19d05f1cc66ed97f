// Package fsutil provides small filesystem helpers for locating batch inputs
// and preparing output directories.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FindByExt lists the regular files directly inside dir whose extension
// matches ext, compared case-insensitively. The scan is not recursive; batch
// inputs are flat directories. Results come back sorted so runs are
// deterministic.
func FindByExt(dir, ext string) ([]string, error) {
	if strings.TrimSpace(ext) == "" {
		return nil, errors.New("file extension must not be empty")
	}
	ext = NormalizeExt(ext)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// NormalizeExt lowercases an extension and ensures the leading dot, so "BMP"
// and ".bmp" address the same files.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}

// Stem returns the file name without directory or extension, the part reused
// for output names.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
