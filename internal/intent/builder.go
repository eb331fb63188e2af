// Package intent implements the Intent Builder (component C4): it
// sanitizes the raw page context, derives priority/risk_hint, extracts
// constraints from the goal text, and emits an immutable ChangeIntent plus
// a Markdown explain doc and a SHA-256-stamped audit line. The Context
// Bridge's contract-validation result is carried forward unchanged into
// Metadata.ContractValidation, so the intent alone records whether the
// context it was built from was contract-valid. Grounded on the
// teacher's internal/mdloader (template-driven Markdown rendering) and
// internal/trace's audit-hash pattern, adapted to a sanitized-context hash
// instead of a full-conversation hash chain.
package intent

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/icg-systems/icg/internal/domain"
)

// Params gathers everything the Intent Builder needs from upstream stages.
type Params struct {
	SessionID            string
	UserID               string
	Context              domain.PageContext
	ContextRef           domain.ContextRef
	BusinessGoal         string
	SensitiveKeyPatterns []string
	ForbiddenKeyHit      bool
	ContractValid        bool
	ContractIssues       []string
}

// Result bundles the three artifacts the Intent Builder emits.
type Result struct {
	Intent    domain.ChangeIntent
	ExplainMD string
	AuditLine string // one JSON line, ready to append to the audit JSONL
}

var highPriorityWords = []string{"urgent", "asap", "immediately", "critical"}
var lowPriorityWords = []string{"later", "eventually", "optional", "nice to have"}

var highRiskWords = []string{"delete", "drop", "permission", "privilege", "payment", "credential", "secret", "token"}
var mediumRiskWords = []string{"approval", "workflow", "inventory", "customer", "order", "pricing", "refund"}

var constraintClausePattern = regexp.MustCompile(`(?i)\b(must|cannot|without|need to|should)\b[^.;\n]*`)

// Build sanitizes context, derives the intent's metadata, extracts
// constraints, and returns the ChangeIntent plus its explain doc and audit
// line.
func Build(p Params, newID func(string) string, now time.Time) (Result, error) {
	sanitized := sanitizeContext(p.Context, p.SensitiveKeyPatterns)

	summary := summarize(p.Context, sanitized)
	priority := derivePriority(p.BusinessGoal)
	riskHint := deriveRiskHint(p.BusinessGoal, p.Context, p.ForbiddenKeyHit, summary)
	constraints := extractConstraints(p.BusinessGoal)

	intent := domain.ChangeIntent{
		IntentID:     newID("intent"),
		SessionID:    p.SessionID,
		UserID:       p.UserID,
		ContextRef:   p.ContextRef,
		BusinessGoal: p.BusinessGoal,
		Constraints:  constraints,
		Priority:     priority,
		CreatedAt:    now,
		Metadata: domain.IntentMetadata{
			Mode:           "read-only",
			RiskHint:       riskHint,
			ContextSummary: summary,
			ContractValidation: domain.ContractValidationSummary{
				Valid:  p.ContractValid,
				Issues: p.ContractIssues,
			},
		},
	}

	hash, err := sanitizedContextHash(sanitized)
	if err != nil {
		return Result{}, fmt.Errorf("hash sanitized context: %w", err)
	}

	auditLine, err := buildAuditLine(intent, hash, now)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Intent:    intent,
		ExplainMD: renderExplain(intent),
		AuditLine: auditLine,
	}, nil
}

// sanitizeContext returns a generic, redacted representation of ctx
// suitable for hashing and Markdown rendering — never raw sensitive values.
func sanitizeContext(ctx domain.PageContext, patterns []string) map[string]any {
	data, err := json.Marshal(ctx)
	if err != nil {
		return map[string]any{}
	}
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return map[string]any{}
	}
	redacted, _ := RedactSensitive(generic, patterns).(map[string]any)
	return redacted
}

func summarize(ctx domain.PageContext, sanitized map[string]any) domain.ContextSummary {
	s := domain.ContextSummary{
		FieldCount: len(ctx.Fields),
	}
	for _, f := range ctx.Fields {
		if f.Sensitive {
			s.SensitiveFieldCount++
		}
	}

	if workspace, ok := sanitized["scene_workspace"].(map[string]any); ok {
		if ontology, ok := workspace["ontology"].(map[string]any); ok {
			s.OntologyEntityCount = listLen(ontology["entities"])
			s.OntologyRelationCount = listLen(ontology["relations"])
			s.BusinessRuleCount = listLen(ontology["business_rules"])
			s.DecisionPolicyCount = listLen(ontology["decision_policies"])
		}
		s.ExplorerIdentifierCount = listLen(workspace["explorer_identifiers"])
	}
	if panel, ok := sanitized["assistant_panel"].(map[string]any); ok {
		s.AssistantIdentifierCount = listLen(panel["session_ids"])
	}
	return s
}

func listLen(v any) int {
	list, ok := v.([]any)
	if !ok {
		return 0
	}
	return len(list)
}

func derivePriority(goal string) domain.Priority {
	lower := strings.ToLower(goal)
	for _, w := range highPriorityWords {
		if strings.Contains(lower, w) {
			return domain.PriorityHigh
		}
	}
	for _, w := range lowPriorityWords {
		if strings.Contains(lower, w) {
			return domain.PriorityLow
		}
	}
	return domain.PriorityMedium
}

func deriveRiskHint(goal string, ctx domain.PageContext, forbiddenKeyHit bool, summary domain.ContextSummary) domain.RiskLevel {
	haystack := strings.ToLower(goal + " " + ctx.Module + " " + ctx.Entity)

	if forbiddenKeyHit {
		return domain.RiskHigh
	}
	for _, w := range highRiskWords {
		if strings.Contains(haystack, w) {
			return domain.RiskHigh
		}
	}
	if summary.DecisionPolicyCount > 0 || summary.BusinessRuleCount > 0 {
		return domain.RiskMedium
	}
	for _, w := range mediumRiskWords {
		if strings.Contains(haystack, w) {
			return domain.RiskMedium
		}
	}
	return domain.RiskLow
}

// extractConstraints finds clauses starting with must/cannot/without/need
// to/should, trims them, and returns at most 8 unique constraints in
// order of first appearance.
func extractConstraints(goal string) []string {
	matches := constraintClausePattern.FindAllString(goal, -1)
	trimmed := make([]string, 0, len(matches))
	for _, m := range matches {
		trimmed = append(trimmed, strings.TrimSpace(m))
	}
	deduped := domain.DedupStrings(trimmed)
	if len(deduped) > 8 {
		deduped = deduped[:8]
	}
	return deduped
}

func sanitizedContextHash(sanitized map[string]any) (string, error) {
	data, err := json.Marshal(sanitized)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

type auditEvent struct {
	IntentID           string    `json:"intent_id"`
	SessionID          string    `json:"session_id"`
	Timestamp          time.Time `json:"timestamp"`
	SanitizedContextSHA256 string `json:"sanitized_context_sha256"`
}

func buildAuditLine(intent domain.ChangeIntent, hash string, now time.Time) (string, error) {
	event := auditEvent{
		IntentID:               intent.IntentID,
		SessionID:              intent.SessionID,
		Timestamp:              now,
		SanitizedContextSHA256: hash,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal audit event: %w", err)
	}
	return string(data), nil
}

func renderExplain(intent domain.ChangeIntent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Change Intent %s\n\n", intent.IntentID)
	fmt.Fprintf(&b, "**Business goal:** %s\n\n", intent.BusinessGoal)
	fmt.Fprintf(&b, "**Priority:** %s  \n**Risk hint:** %s\n\n", intent.Priority, intent.Metadata.RiskHint)
	fmt.Fprintf(&b, "**Scope:** %s / %s / %s\n\n", intent.ContextRef.Product, intent.ContextRef.Module, intent.ContextRef.Page)
	if len(intent.Constraints) > 0 {
		b.WriteString("## Constraints\n\n")
		for _, c := range intent.Constraints {
			fmt.Fprintf(&b, "- %s\n", c)
		}
		b.WriteString("\n")
	}
	b.WriteString("## Context summary\n\n")
	fmt.Fprintf(&b, "- Fields: %d (sensitive: %d)\n", intent.Metadata.ContextSummary.FieldCount, intent.Metadata.ContextSummary.SensitiveFieldCount)
	return b.String()
}
