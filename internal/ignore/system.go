package ignore

import "strings"

// DefaultSystemPatterns seeds the system ignore list for fresh installations.
var DefaultSystemPatterns = []string{
	".git/",
	"node_modules/",
	".DS_Store",
	"*.lock",
	"build/",
	"dist/",
	"target/",
	".idea/",
	".vscode/",
}

// SystemIgnorePolicy is the user-configured global ignore layer. Any single
// matching pattern excludes a path; there is no negation and no ordering
// dependence.
type SystemIgnorePolicy struct {
	patterns []*Pattern
}

// NewSystemIgnorePolicy compiles the provided glob lines into a policy.
// Blank lines, comments, and uncompilable patterns are skipped.
func NewSystemIgnorePolicy(patternLines []string) *SystemIgnorePolicy {
	policy := &SystemIgnorePolicy{}
	for _, patternLine := range patternLines {
		trimmedLine := strings.TrimSpace(patternLine)
		if trimmedLine == "" || strings.HasPrefix(trimmedLine, commentPrefix) {
			continue
		}
		compiledPattern, compileError := Compile(trimmedLine, DialectSystemGlob)
		if compileError != nil {
			continue
		}
		policy.patterns = append(policy.patterns, compiledPattern)
	}
	return policy
}

// IsIgnored reports whether any pattern matches the path. Matching entries
// are dropped from the scanned tree entirely.
func (policy *SystemIgnorePolicy) IsIgnored(relativePath string, isDirectory bool) bool {
	if policy == nil {
		return false
	}
	for _, compiledPattern := range policy.patterns {
		if compiledPattern.Matches(relativePath, isDirectory) {
			return true
		}
	}
	return false
}

// Patterns returns the raw pattern lines held by the policy, preserving order.
func (policy *SystemIgnorePolicy) Patterns() []string {
	if policy == nil {
		return nil
	}
	rawPatterns := make([]string, 0, len(policy.patterns))
	for _, compiledPattern := range policy.patterns {
		rawPatterns = append(rawPatterns, compiledPattern.Raw)
	}
	return rawPatterns
}
