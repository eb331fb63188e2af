package domain

import (
	"log/slog"
	"regexp"
)

// CompilePatterns compiles a list of case-insensitive regular expressions,
// logging and dropping any pattern that fails to compile rather than
// failing the whole policy load. This is the "regex compilation errors are
// swallowed" rule from spec.md §7 — an ambiguous rule is non-fatal, the
// rest of the policy still loads.
func CompilePatterns(patterns []string, logger *slog.Logger) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			if logger != nil {
				logger.Warn("skipping pattern with invalid regex", "pattern", p, "error", err)
			}
			continue
		}
		compiled = append(compiled, re)
	}
	return compiled
}

// MatchAny reports whether text matches any compiled pattern, returning the
// source pattern string of the first match.
func MatchAny(patterns []*regexp.Regexp, text string) (bool, string) {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true, re.String()
		}
	}
	return false, ""
}

// DedupStrings removes duplicate strings while preserving first-seen order,
// matching spec.md §4.1's "lists deduplicated (order preserved)" rule.
func DedupStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
