package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// GitIgnoreFileName is the name of the per-directory ignore file.
const GitIgnoreFileName = ".gitignore"

// GitignorePolicy holds the compiled patterns of one .gitignore file in
// declaration order. Later patterns override earlier ones for the same path.
type GitignorePolicy struct {
	patterns []*Pattern
}

// LoadGitignorePolicy reads <directoryPath>/.gitignore and compiles its
// non-blank, non-comment lines in order. A missing or unreadable file is not
// an error; the caller proceeds without gitignore filtering for that subtree.
func LoadGitignorePolicy(directoryPath string) *GitignorePolicy {
	fileHandle, openError := os.Open(filepath.Join(directoryPath, GitIgnoreFileName))
	if openError != nil {
		return nil
	}
	defer fileHandle.Close()

	var compiledPatterns []*Pattern
	lineScanner := bufio.NewScanner(fileHandle)
	for lineScanner.Scan() {
		trimmedLine := strings.TrimSpace(lineScanner.Text())
		if trimmedLine == "" || strings.HasPrefix(trimmedLine, commentPrefix) {
			continue
		}
		compiledPattern, compileError := Compile(trimmedLine, DialectGitignore)
		if compileError != nil {
			continue
		}
		compiledPatterns = append(compiledPatterns, compiledPattern)
	}
	if lineScanner.Err() != nil || len(compiledPatterns) == 0 {
		return nil
	}
	return &GitignorePolicy{patterns: compiledPatterns}
}

// ParseGitignorePolicy compiles the provided lines as a gitignore rule set.
// It exists so policies can be built without touching the filesystem.
func ParseGitignorePolicy(patternLines []string) *GitignorePolicy {
	var compiledPatterns []*Pattern
	for _, patternLine := range patternLines {
		trimmedLine := strings.TrimSpace(patternLine)
		if trimmedLine == "" || strings.HasPrefix(trimmedLine, commentPrefix) {
			continue
		}
		compiledPattern, compileError := Compile(trimmedLine, DialectGitignore)
		if compileError != nil {
			continue
		}
		compiledPatterns = append(compiledPatterns, compiledPattern)
	}
	if len(compiledPatterns) == 0 {
		return nil
	}
	return &GitignorePolicy{patterns: compiledPatterns}
}

// IsIgnored evaluates every pattern in file order against the path relative
// to the ignore root. The last matching pattern wins, so a later negation
// un-ignores an earlier match. Directory-only patterns are skipped for files.
func (policy *GitignorePolicy) IsIgnored(relativePath string, isDirectory bool) bool {
	if policy == nil {
		return false
	}
	ignored := false
	for _, compiledPattern := range policy.patterns {
		if compiledPattern.IsDirectoryOnly && !isDirectory {
			continue
		}
		if compiledPattern.Matches(relativePath, isDirectory) {
			ignored = !compiledPattern.IsNegation
		}
	}
	return ignored
}
