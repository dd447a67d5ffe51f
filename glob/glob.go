// Package glob matches slash-separated paths against shell-style patterns.
// A pattern segment may be a literal, a single-segment wildcard expression
// (*, ?, [...]) or the special ** token matching zero or more whole
// segments.
package glob

import (
	"path"
	"strings"
)

const wildcardChars = "*?["

// HasWildcard reports whether the pattern contains any wildcard character.
func HasWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, wildcardChars)
}

// Split breaks a pattern or path into its non-empty segments.
func Split(p string) []string {
	parts := strings.Split(p, "/")
	rs := make([]string, 0, len(parts))
	for _, part := range parts {
		if len(part) == 0 {
			continue
		}
		rs = append(rs, part)
	}
	return rs
}

// LiteralPrefixDir returns the longest literal directory prefix before the
// first wildcard character, always ending with a slash.
func LiteralPrefixDir(pattern string) string {
	idx := strings.IndexAny(pattern, wildcardChars)
	if idx < 0 {
		idx = len(pattern)
	}
	slash := strings.LastIndex(pattern[:idx], "/")
	if slash < 0 {
		return "/"
	}
	return pattern[:slash+1]
}

// Match walks pattern and path segments in lock-step. ** consumes zero or
// more path segments with backtracking; every other segment matches with
// filename-glob semantics. Both sequences must be fully consumed.
func Match(pathSegs []string, patternSegs []string) bool {
	for len(pathSegs) > 0 && len(patternSegs) > 0 {
		if patternSegs[0] == "**" {
			if len(patternSegs) == 1 {
				return true
			}
			for i := 0; i <= len(pathSegs); i++ {
				if Match(pathSegs[i:], patternSegs[1:]) {
					return true
				}
			}
			return false
		}
		ok, err := path.Match(patternSegs[0], pathSegs[0])
		if err != nil || !ok {
			return false
		}
		pathSegs = pathSegs[1:]
		patternSegs = patternSegs[1:]
	}
	// a trailing ** matches the empty remainder too
	for len(patternSegs) > 0 && patternSegs[0] == "**" {
		patternSegs = patternSegs[1:]
	}
	return len(pathSegs) == 0 && len(patternSegs) == 0
}

// MatchPath is the string-level convenience form of Match.
func MatchPath(p string, pattern string) bool {
	return Match(Split(p), Split(pattern))
}
