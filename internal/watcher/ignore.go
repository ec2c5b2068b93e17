package watcher

import (
	"path/filepath"
	"runtime"
	"strings"
)

// shouldIgnore reports whether path matches an OS-specific temp-file
// convention or one of the configured ignore patterns, mirroring
// file_watcher_service.FileChangeHandler._should_ignore_path: Windows
// tilde-suffixed temp files and macOS .DS_Store are always ignored in
// addition to the explicit pattern list.
func shouldIgnore(path string, patterns []string) bool {
	if runtime.GOOS == "windows" && strings.HasSuffix(path, "~") {
		return true
	}
	if runtime.GOOS == "darwin" && (strings.Contains(path, "/.DS_Store") || strings.HasSuffix(path, ".DS_Store")) {
		return true
	}
	for _, pattern := range patterns {
		if matchesIgnorePattern(path, pattern) {
			return true
		}
	}
	return false
}

// matchesIgnorePattern reproduces fnmatch.fnmatch(path, f"*{pattern}*"):
// the pattern may itself contain glob metacharacters, and it is implicitly
// wrapped with "*...*" so a bare directory name like "node_modules" matches
// anywhere in the path.
func matchesIgnorePattern(path, pattern string) bool {
	wrapped := "*" + pattern + "*"
	ok, err := filepath.Match(wrapped, path)
	if err == nil && ok {
		return true
	}
	// Also match the base name, so extension globs like "*.pyc" match a
	// file in any directory.
	if ok, err := filepath.Match(wrapped, filepath.Base(path)); err == nil && ok {
		return true
	}
	// filepath.Match's "*" does not cross path separators; fall back to a
	// plain substring check so directory-name patterns like "__pycache__"
	// still match regardless of how deep they appear.
	return strings.Contains(path, pattern)
}

// isSupportedExtension reports whether ext (including the leading dot,
// lower-cased) is a key in extensionMap.
func isSupportedExtension(ext string, extensionMap map[string]string) bool {
	_, ok := extensionMap[strings.ToLower(ext)]
	return ok
}
