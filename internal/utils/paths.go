package utils

import (
	"path/filepath"
)

// RelativePathOrSelf calculates the relative path from root to fullPath in
// forward-slash form. Returns the cleaned fullPath if relative calculation
// fails and "." if fullPath and root resolve to the same directory.
func RelativePathOrSelf(fullPath, root string) string {
	cleanPath := filepath.Clean(fullPath)
	absoluteRoot, err := filepath.Abs(root)
	if err != nil {
		return cleanPath
	}
	cleanAbsoluteRoot := filepath.Clean(absoluteRoot)

	if cleanPath == cleanAbsoluteRoot {
		return "."
	}

	relativePath, relErr := filepath.Rel(cleanAbsoluteRoot, cleanPath)
	if relErr != nil {
		return cleanPath
	}
	return filepath.ToSlash(relativePath)
}

// HasPathPrefix reports whether path equals prefix or lives beneath it.
func HasPathPrefix(path, prefix string) bool {
	cleanPath := filepath.Clean(path)
	cleanPrefix := filepath.Clean(prefix)
	if cleanPath == cleanPrefix {
		return true
	}
	relativePath, relErr := filepath.Rel(cleanPrefix, cleanPath)
	if relErr != nil {
		return false
	}
	return !startsWithParentSegment(relativePath)
}

// startsWithParentSegment reports whether the relative path escapes upward.
func startsWithParentSegment(relativePath string) bool {
	return relativePath == ".." || len(relativePath) >= 3 && relativePath[:3] == ".."+string(filepath.Separator)
}
