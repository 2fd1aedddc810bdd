package scanner

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/askrepo/askrepo/internal/types"
)

// ValidateRootPath checks a candidate root before any directory traversal.
// The path must be non-empty, free of parent-traversal segments and control
// characters, and resolve to an existing directory. Violations yield typed
// errors rather than partial results.
func ValidateRootPath(rootPath string) (types.ValidatedPath, error) {
	trimmedPath := strings.TrimSpace(rootPath)
	if trimmedPath == "" {
		return types.ValidatedPath{}, types.NewError(types.ErrorKindInvalidPath, rootPath, nil)
	}
	if containsControlCharacters(trimmedPath) {
		return types.ValidatedPath{}, types.NewError(types.ErrorKindInvalidPath, rootPath, nil)
	}
	for _, pathSegment := range strings.Split(filepath.ToSlash(trimmedPath), "/") {
		if pathSegment == ".." {
			return types.ValidatedPath{}, types.NewError(types.ErrorKindInvalidPath, rootPath, nil)
		}
	}

	absolutePath, absolutePathError := filepath.Abs(trimmedPath)
	if absolutePathError != nil {
		return types.ValidatedPath{}, types.NewError(types.ErrorKindInvalidPath, rootPath, absolutePathError)
	}

	pathInformation, statError := os.Stat(absolutePath)
	if statError != nil {
		if os.IsNotExist(statError) {
			return types.ValidatedPath{}, types.NewError(types.ErrorKindFileNotFound, rootPath, statError)
		}
		if os.IsPermission(statError) {
			return types.ValidatedPath{}, types.NewError(types.ErrorKindAccessDenied, rootPath, statError)
		}
		return types.ValidatedPath{}, types.NewError(types.ErrorKindUnknown, rootPath, statError)
	}
	if !pathInformation.IsDir() {
		return types.ValidatedPath{}, types.NewError(types.ErrorKindNotADirectory, rootPath, nil)
	}

	return types.ValidatedPath{AbsolutePath: filepath.Clean(absolutePath), IsDir: true}, nil
}

// containsControlCharacters reports embedded null or control characters.
func containsControlCharacters(path string) bool {
	for _, pathRune := range path {
		if pathRune < 0x20 || pathRune == 0x7f {
			return true
		}
	}
	return false
}
