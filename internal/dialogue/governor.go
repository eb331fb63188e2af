// Package dialogue implements the Dialogue Governor (component C3): it
// screens a normalized business-goal string against deny/clarify regex
// rules and a length policy, deciding allow/clarify/deny. Grounded on the
// teacher's internal/sanitize.Scanner (compiled-pattern matching against
// configured rule lists, severity-ranked outcome) adapted from prompt-
// injection scanning to goal-text screening.
package dialogue

import (
	"log/slog"
	"strings"

	"github.com/icg-systems/icg/internal/config"
	"github.com/icg-systems/icg/internal/domain"
)

// Input is what the governor needs beyond the resolved policy.
type Input struct {
	GoalText      string
	ModuleMissing bool
	PageMissing   bool
}

// Evaluate runs the deny/clarify/length pipeline against goalText using
// policy (already resolved for the caller's profile via
// DialoguePolicy.ResolveProfile).
func Evaluate(in Input, policy config.DialoguePolicy, logger *slog.Logger) domain.DialogueResult {
	normalized := strings.Join(strings.Fields(in.GoalText), " ")
	tokens := strings.Fields(normalized)

	denyPatterns := domain.CompilePatterns(policy.DenyPatterns, logger)
	clarifyPatterns := domain.CompilePatterns(policy.ClarifyPatterns, logger)

	lengthFail, lengthReason := checkLength(normalized, len(tokens), policy.LengthPolicy)

	if hit, pattern := domain.MatchAny(denyPatterns, normalized); hit {
		return domain.DialogueResult{
			Decision:      domain.DialogueDeny,
			Reasons_:      domain.DedupStrings([]string{"goal matched a deny pattern"}),
			DenyHits:      []string{pattern},
			ResponseRules: append([]string{}, policy.ResponseRules...),
		}
	}

	clarifyHit, clarifyPattern := domain.MatchAny(clarifyPatterns, normalized)
	if clarifyHit || lengthFail {
		reasons := []string{}
		var clarifyHits []string
		if clarifyHit {
			reasons = append(reasons, "goal matched a clarify pattern")
			clarifyHits = []string{clarifyPattern}
		}
		if lengthFail {
			reasons = append(reasons, lengthReason)
		}

		return domain.DialogueResult{
			Decision:               domain.DialogueClarify,
			Reasons_:               domain.DedupStrings(reasons),
			ClarifyHits:            clarifyHits,
			ClarificationQuestions: selectClarificationQuestions(in, policy),
			ResponseRules:          append([]string{}, policy.ResponseRules...),
		}
	}

	return domain.DialogueResult{
		Decision:      domain.DialogueAllow,
		Reasons_:      []string{},
		ResponseRules: append([]string{}, policy.ResponseRules...),
	}
}

func checkLength(normalized string, tokenCount int, lp config.LengthPolicy) (bool, string) {
	if lp.MinChars > 0 && len(normalized) < lp.MinChars {
		return true, "goal text is shorter than the minimum allowed length"
	}
	if lp.MaxChars > 0 && len(normalized) > lp.MaxChars {
		return true, "goal text exceeds the maximum allowed length"
	}
	if lp.MinSignificantTokens > 0 && tokenCount < lp.MinSignificantTokens {
		return true, "goal text has too few significant words"
	}
	return false, ""
}

// selectClarificationQuestions returns at most 2 questions: context-driven
// ones (missing module/page) take priority, then the policy's
// clarification templates fill any remaining slots.
func selectClarificationQuestions(in Input, policy config.DialoguePolicy) []string {
	const maxQuestions = 2
	questions := make([]string, 0, maxQuestions)

	if in.ModuleMissing {
		questions = append(questions, "Which module does this change apply to?")
	}
	if len(questions) < maxQuestions && in.PageMissing {
		questions = append(questions, "Which page or screen does this change apply to?")
	}
	for _, tmpl := range policy.ClarificationTemplates {
		if len(questions) >= maxQuestions {
			break
		}
		questions = append(questions, tmpl)
	}
	return questions
}
