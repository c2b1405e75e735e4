package project

import (
	"path/filepath"
	"time"
)

// TimeLayout is the UTC, second-precision layout used for every timestamp
// stored in a document.
const TimeLayout = "2006-01-02T15:04:05Z"

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// Now returns the current time formatted with TimeLayout.
func Now() string {
	return FormatTime(timeNow())
}

// FormatTime renders t in UTC with TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// NormalizePath resolves path against root when it is relative and cleans
// the result. Absolute paths are only cleaned.
func NormalizePath(root, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(root, path))
}

// NormalizePaths applies NormalizePath to each entry, dropping duplicates
// while keeping first-seen order.
func NormalizePaths(root string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = AppendUnique(out, NormalizePath(root, p))
	}
	return out
}

// AppendUnique appends each file not already present in dst, preserving
// order. It is the merge rule for touched-file sets at every level.
func AppendUnique(dst []string, files ...string) []string {
	if dst == nil {
		dst = []string{}
	}
	for _, f := range files {
		if !contains(dst, f) {
			dst = append(dst, f)
		}
	}
	return dst
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
