// Package pagecontext implements the Context Bridge (component C2): it
// maps a raw provider payload (moqui or generic dialect) into the
// canonical PageContext shape, then validates it against the configured
// ContextContract. Grounded on the teacher's internal/sanitize.Scanner
// (pattern-matching against a configured keyword/regex list) and
// internal/capability.Scope (contract-shaped validation with an issues
// list) — adapted here from prompt-injection/capability scanning into
// structural field mapping and contract validation.
package pagecontext

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/icg-systems/icg/internal/catalog"
	"github.com/icg-systems/icg/internal/config"
	"github.com/icg-systems/icg/internal/domain"
)

// Dialect is the closed set of supported provider payload shapes.
type Dialect string

const (
	DialectMoqui   Dialect = "moqui"
	DialectGeneric Dialect = "generic"
)

// RawPayload is the provider-supplied input before normalization.
type RawPayload struct {
	Dialect Dialect        `json:"dialect"`
	Payload map[string]any `json:"payload"`
}

// BridgeReport is written alongside the normalized PageContext and
// records what the bridge did and any contract issues found.
type BridgeReport struct {
	Dialect             Dialect  `json:"dialect"`
	FieldCount          int      `json:"field_count"`
	SensitiveFieldCount int      `json:"sensitive_field_count"`
	DroppedDuplicateFields []string `json:"dropped_duplicate_fields,omitempty"`
	ContractValid       bool     `json:"contract_valid"`
	Issues              []string `json:"issues,omitempty"`
}

// ContractViolationError is returned when a strict bridge finds contract
// issues (spec.md §4.2, §7 <ContractViolation>).
type ContractViolationError struct {
	Issues []string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("context contract violation: %s", strings.Join(e.Issues, "; "))
}

// moqui dialect key → canonical PageContext field name.
var moquiKeyMap = map[string]string{
	"productCode":    "product",
	"moduleCode":     "module",
	"screenPath":     "page",
	"entityName":     "entity",
	"sceneId":        "scene_id",
	"workflowNodeId": "workflow_node",
	"screenFields":   "fields",
	"screenState":    "current_state",
	"sceneWorkspace": "scene_workspace",
	"assistantPanel": "assistant_panel",
}

// Normalize maps a raw provider payload into a canonical PageContext,
// deduplicates fields by lowercased name, marks sensitivity, prunes empty
// leaves, and validates against contract. With strict=true, contract
// issues fail the call with *ContractViolationError; with strict=false
// they are only recorded in the report.
func Normalize(raw RawPayload, contract config.ContextContract, strict bool) (domain.PageContext, BridgeReport, error) {
	canonical := remapKeys(raw)

	ctx := domain.PageContext{
		Product:        asString(canonical["product"]),
		Module:         asString(canonical["module"]),
		Page:           asString(canonical["page"]),
		Entity:         asString(canonical["entity"]),
		SceneID:        asString(canonical["scene_id"]),
		WorkflowNode:   asString(canonical["workflow_node"]),
		CurrentState:   pruneEmpty(canonical["current_state"]),
		SceneWorkspace: pruneEmpty(canonical["scene_workspace"]),
		AssistantPanel: pruneEmpty(canonical["assistant_panel"]),
	}

	fields, dropped := dedupeFields(toFields(canonical["fields"]), contract.SensitiveKeyPatterns)
	ctx.Fields = fields

	report := BridgeReport{
		Dialect:                raw.Dialect,
		FieldCount:             len(fields),
		DroppedDuplicateFields: dropped,
	}
	for _, f := range fields {
		if f.Sensitive {
			report.SensitiveFieldCount++
		}
	}

	issues := validateContract(ctx, contract)
	report.Issues = issues
	report.ContractValid = len(issues) == 0

	if strict && len(issues) > 0 {
		return domain.PageContext{}, report, &ContractViolationError{Issues: issues}
	}
	return ctx, report, nil
}

// remapKeys translates dialect-specific keys into the canonical key set.
// Generic-dialect payloads are assumed to already use canonical keys.
func remapKeys(raw RawPayload) map[string]any {
	if raw.Dialect != DialectMoqui {
		return raw.Payload
	}
	out := make(map[string]any, len(raw.Payload))
	for k, v := range raw.Payload {
		canonicalKey, ok := moquiKeyMap[k]
		if !ok {
			canonicalKey = k
		}
		out[canonicalKey] = v
	}
	return out
}

// toFields coerces a decoded JSON value (typically []any of map[string]any)
// into the Field slice, tolerating both moqui-style and generic-style keys
// per entry.
func toFields(raw any) []domain.Field {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	fields := make([]domain.Field, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := firstString(m, "name", "fieldName")
		if name == "" {
			continue
		}
		fields = append(fields, domain.Field{
			Name:        name,
			Type:        firstString(m, "type", "fieldType"),
			Sensitive:   firstBool(m, "sensitive", "isSensitive"),
			Description: firstString(m, "description", "fieldDesc"),
		})
	}
	return fields
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstBool(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if b, ok := m[k].(bool); ok {
			return b
		}
	}
	return false
}

// dedupeFields keeps the first occurrence of each lowercased field name
// and marks sensitive=true when the name matches a sensitive key pattern
// (substring, case-insensitive) in addition to any provider explicit flag.
func dedupeFields(fields []domain.Field, sensitivePatterns []string) ([]domain.Field, []string) {
	seen := make(map[string]struct{}, len(fields))
	out := make([]domain.Field, 0, len(fields))
	var dropped []string

	for _, f := range fields {
		key := strings.ToLower(f.Name)
		if _, ok := seen[key]; ok {
			dropped = append(dropped, f.Name)
			continue
		}
		seen[key] = struct{}{}
		if matchesSensitive(f.Name, sensitivePatterns) {
			f.Sensitive = true
		}
		out = append(out, f)
	}
	sort.Strings(dropped)
	return out, dropped
}

func matchesSensitive(name string, patterns []string) bool {
	return catalog.MatchAny(name, patterns)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// pruneEmpty recursively removes nil, empty-string, empty-slice, and
// empty-map leaves from a decoded JSON value (spec.md §4.2 "prune empty
// leaves").
func pruneEmpty(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			pruned := pruneEmpty(sub)
			if isEmptyLeaf(pruned) {
				continue
			}
			out[k] = pruned
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []any:
		out := make([]any, 0, len(val))
		for _, sub := range val {
			pruned := pruneEmpty(sub)
			if isEmptyLeaf(pruned) {
				continue
			}
			out = append(out, pruned)
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return v
	}
}

func isEmptyLeaf(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case map[string]any:
		return len(val) == 0
	case []any:
		return len(val) == 0
	default:
		return false
	}
}

// validateContract checks ctx against contract and returns a list of
// human-readable issues (empty when valid).
func validateContract(ctx domain.PageContext, contract config.ContextContract) []string {
	var issues []string

	for _, req := range contract.RequiredFields {
		if topLevelValue(ctx, req) == "" {
			issues = append(issues, fmt.Sprintf("required field %q is empty", req))
		}
	}

	if contract.MaxFieldCount > 0 && len(ctx.Fields) > contract.MaxFieldCount {
		issues = append(issues, fmt.Sprintf("field count %d exceeds max_field_count %d", len(ctx.Fields), contract.MaxFieldCount))
	}

	if contract.MaxPayloadKB > 0 {
		if data, err := json.Marshal(ctx); err == nil {
			kb := float64(len(data)) / 1024.0
			if kb > float64(contract.MaxPayloadKB) {
				issues = append(issues, fmt.Sprintf("serialized size %.1fKB exceeds max_payload_kb %d", kb, contract.MaxPayloadKB))
			}
		}
	}

	if hit := findForbiddenKey(ctx, contract.ForbiddenKeys); hit != "" {
		issues = append(issues, fmt.Sprintf("forbidden key %q present in context", hit))
	}

	return issues
}

func topLevelValue(ctx domain.PageContext, name string) string {
	switch name {
	case "product":
		return ctx.Product
	case "module":
		return ctx.Module
	case "page":
		return ctx.Page
	case "entity":
		return ctx.Entity
	case "scene_id":
		return ctx.SceneID
	case "workflow_node":
		return ctx.WorkflowNode
	default:
		return ""
	}
}

func findForbiddenKey(ctx domain.PageContext, forbidden []string) string {
	if len(forbidden) == 0 {
		return ""
	}
	for _, f := range ctx.Fields {
		if catalog.MatchAny(f.Name, forbidden) {
			return f.Name
		}
	}
	data, err := json.Marshal(ctx)
	if err != nil {
		return ""
	}
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return ""
	}
	return scanForbiddenKeys(generic, forbidden)
}

func scanForbiddenKeys(v any, forbidden []string) string {
	switch val := v.(type) {
	case map[string]any:
		for k, sub := range val {
			if catalog.MatchAny(k, forbidden) {
				return k
			}
			if hit := scanForbiddenKeys(sub, forbidden); hit != "" {
				return hit
			}
		}
	case []any:
		for _, sub := range val {
			if hit := scanForbiddenKeys(sub, forbidden); hit != "" {
				return hit
			}
		}
	}
	return ""
}
