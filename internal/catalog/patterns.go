// Package catalog provides the shared pattern-matching helpers used to
// classify a field or key name against a configured glob/substring list:
// the Context Bridge's sensitive/forbidden key detection (spec.md §4.2)
// and the Intent Builder's context redaction (spec.md §4.4) both reduce to
// "does this name match one of these configured patterns". Grounded on the
// teacher's internal/capability.Engine — per-agent path/command pattern
// matching returning a CheckResult{Allowed,Reason} — trimmed from a
// filesystem/network/shell/messaging/financial/spawn capability boundary
// (no analog in a synchronous change-governance pipeline with no sandboxed
// agent to bound) down to the one primitive ICG's components actually
// share: matching a name against a pattern list.
package catalog

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CheckResult is the teacher's capability-check shape, generalized from
// "is this action allowed" to "does this name match a configured pattern".
type CheckResult struct {
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

// MatchPattern reports whether value matches pattern, case-insensitively.
// A pattern containing glob metacharacters (*, ?, [) is matched with
// filepath.Match; any other pattern is matched as a substring, matching
// the teacher's matchPath fallback for invalid/non-glob patterns.
func MatchPattern(value, pattern string) bool {
	value = strings.ToLower(value)
	pattern = strings.ToLower(pattern)
	if strings.ContainsAny(pattern, "*?[") {
		if matched, err := filepath.Match(pattern, value); err == nil && matched {
			return true
		}
	}
	return strings.Contains(value, pattern)
}

// MatchAny reports whether value matches any of patterns.
func MatchAny(value string, patterns []string) bool {
	for _, p := range patterns {
		if MatchPattern(value, p) {
			return true
		}
	}
	return false
}

// CheckKey classifies key against a sensitive-pattern list and a
// forbidden-pattern list, forbidden taking precedence since a forbidden
// key is a harder failure than a merely sensitive one.
func CheckKey(key string, sensitivePatterns, forbiddenPatterns []string) CheckResult {
	if MatchAny(key, forbiddenPatterns) {
		return CheckResult{Passed: false, Reason: fmt.Sprintf("key %q matches a forbidden pattern", key)}
	}
	if MatchAny(key, sensitivePatterns) {
		return CheckResult{Passed: true, Reason: fmt.Sprintf("key %q matches a sensitive pattern", key)}
	}
	return CheckResult{Passed: true}
}
