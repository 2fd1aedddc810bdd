// Package ignore compiles ignore-rule lines into matchable predicates and
// evaluates the two ignore layers used during scanning: an ordered
// .gitignore policy with negation and a flat system-glob policy.
package ignore

import (
	"fmt"
	"regexp"
	"strings"
)

// Dialect selects the pattern syntax used during compilation.
type Dialect int

const (
	// DialectGitignore supports negation, "**", and anchoring semantics.
	DialectGitignore Dialect = iota
	// DialectSystemGlob supports only "*", "?", and trailing-slash directory
	// markers, matched case-insensitively against path segments.
	DialectSystemGlob
)

const (
	negationPrefix         = "!"
	commentPrefix          = "#"
	pathSeparator          = "/"
	errorEmptyPattern      = "ignore: empty pattern"
	errorCompileFormat     = "ignore: compiling pattern %q: %w"
	caseInsensitivePrelude = "(?i)"
)

// Pattern is the compiled form of one ignore rule line.
type Pattern struct {
	Raw             string
	IsNegation      bool
	IsDirectoryOnly bool

	dialect    Dialect
	anchored   bool
	hasSlash   bool
	expression *regexp.Regexp
}

// Compile translates a single trimmed, non-comment pattern line into a
// Pattern. Blank lines and comments must be filtered out by the caller.
func Compile(rawPattern string, dialect Dialect) (*Pattern, error) {
	trimmedPattern := strings.TrimSpace(rawPattern)
	if trimmedPattern == "" || strings.HasPrefix(trimmedPattern, commentPrefix) {
		return nil, fmt.Errorf(errorEmptyPattern)
	}

	compiledPattern := &Pattern{Raw: trimmedPattern, dialect: dialect}

	body := trimmedPattern
	if dialect == DialectGitignore && strings.HasPrefix(body, negationPrefix) {
		compiledPattern.IsNegation = true
		body = strings.TrimPrefix(body, negationPrefix)
	}
	if strings.HasSuffix(body, pathSeparator) {
		compiledPattern.IsDirectoryOnly = true
		body = strings.TrimSuffix(body, pathSeparator)
	}
	if dialect == DialectGitignore && strings.HasPrefix(body, pathSeparator) {
		compiledPattern.anchored = true
		body = strings.TrimPrefix(body, pathSeparator)
	}
	if body == "" {
		return nil, fmt.Errorf(errorEmptyPattern)
	}
	compiledPattern.hasSlash = strings.Contains(body, pathSeparator)

	var expressionSource string
	switch dialect {
	case DialectSystemGlob:
		expressionSource = caseInsensitivePrelude + "^" + translateSystemGlob(body) + "$"
	default:
		expressionSource = "^" + translateGitignoreGlob(body) + "$"
	}

	compiledExpression, compileError := regexp.Compile(expressionSource)
	if compileError != nil {
		return nil, fmt.Errorf(errorCompileFormat, trimmedPattern, compileError)
	}
	compiledPattern.expression = compiledExpression
	return compiledPattern, nil
}

// translateGitignoreGlob converts gitignore wildcards into regular-expression
// syntax: "**" crosses path separators, "*" stays within one segment, and "?"
// matches a single non-separator character. A "**/" sequence also matches
// zero directories, so "**/foo" covers a top-level "foo" and "a/**/b" covers
// "a/b".
func translateGitignoreGlob(globPattern string) string {
	var builder strings.Builder
	runes := []rune(globPattern)
	for runeIndex := 0; runeIndex < len(runes); runeIndex++ {
		currentRune := runes[runeIndex]
		switch currentRune {
		case '*':
			if runeIndex+1 < len(runes) && runes[runeIndex+1] == '*' {
				if runeIndex+2 < len(runes) && runes[runeIndex+2] == '/' {
					builder.WriteString("(?:.*/)?")
					runeIndex += 2
				} else {
					builder.WriteString(".*")
					runeIndex++
				}
			} else {
				builder.WriteString("[^/]*")
			}
		case '?':
			builder.WriteString("[^/]")
		default:
			builder.WriteString(regexp.QuoteMeta(string(currentRune)))
		}
	}
	return builder.String()
}

// translateSystemGlob converts system-glob wildcards into regular-expression
// syntax without any separator awareness.
func translateSystemGlob(globPattern string) string {
	var builder strings.Builder
	for _, currentRune := range globPattern {
		switch currentRune {
		case '*':
			builder.WriteString(".*")
		case '?':
			builder.WriteString(".")
		default:
			builder.WriteString(regexp.QuoteMeta(string(currentRune)))
		}
	}
	return builder.String()
}

// Matches evaluates the pattern against a slash-separated path relative to
// the ignore root.
func (pattern *Pattern) Matches(relativePath string, isDirectory bool) bool {
	normalizedPath := strings.Trim(strings.ReplaceAll(relativePath, "\\", pathSeparator), pathSeparator)
	if normalizedPath == "" || normalizedPath == "." {
		return false
	}
	pathSegments := strings.Split(normalizedPath, pathSeparator)

	if pattern.dialect == DialectSystemGlob {
		return pattern.matchesSystem(pathSegments, isDirectory)
	}
	return pattern.matchesGitignore(normalizedPath, pathSegments, isDirectory)
}

// matchesGitignore applies anchoring and basename-anywhere semantics. A
// directory-only pattern matches the directory itself and everything nested
// beneath it; the final-segment match requires a directory.
func (pattern *Pattern) matchesGitignore(normalizedPath string, pathSegments []string, isDirectory bool) bool {
	if pattern.IsDirectoryOnly {
		for prefixLength := 1; prefixLength <= len(pathSegments); prefixLength++ {
			var candidate string
			if pattern.anchored || pattern.hasSlash {
				candidate = strings.Join(pathSegments[:prefixLength], pathSeparator)
			} else {
				candidate = pathSegments[prefixLength-1]
			}
			if !pattern.expression.MatchString(candidate) {
				continue
			}
			if prefixLength < len(pathSegments) {
				return true
			}
			return isDirectory
		}
		return false
	}

	if pattern.anchored || pattern.hasSlash {
		return pattern.expression.MatchString(normalizedPath)
	}
	return pattern.expression.MatchString(pathSegments[len(pathSegments)-1])
}

// matchesSystem compares the pattern against the entry's own name or any
// path segment, case-insensitively.
func (pattern *Pattern) matchesSystem(pathSegments []string, isDirectory bool) bool {
	lastIndex := len(pathSegments) - 1
	for segmentIndex, segment := range pathSegments {
		if !pattern.expression.MatchString(segment) {
			continue
		}
		if pattern.IsDirectoryOnly && segmentIndex == lastIndex {
			return isDirectory
		}
		return true
	}
	return false
}
