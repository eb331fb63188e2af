package intent

import "github.com/icg-systems/icg/internal/catalog"

// RedactSensitive walks a decoded JSON value and replaces any value whose
// key (or an ancestor key) matches one of patterns (case-insensitive
// substring) with the literal "[REDACTED]" (spec.md §4.4).
func RedactSensitive(v any, patterns []string) any {
	return redact(v, patterns, false)
}

func redact(v any, patterns []string, underSensitiveAncestor bool) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			sensitive := underSensitiveAncestor || matchesAny(k, patterns)
			if sensitive {
				out[k] = "[REDACTED]"
				continue
			}
			out[k] = redact(sub, patterns, sensitive)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, sub := range val {
			out[i] = redact(sub, patterns, underSensitiveAncestor)
		}
		return out
	default:
		if underSensitiveAncestor {
			return "[REDACTED]"
		}
		return v
	}
}

func matchesAny(key string, patterns []string) bool {
	return catalog.MatchAny(key, patterns)
}
