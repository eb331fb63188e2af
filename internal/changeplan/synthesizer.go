// Package changeplan implements the Plan Synthesizer (component C5): it
// infers action types from the goal and context via an ordered keyword
// table, derives risk level, and builds the verification/rollback/
// approval/authorization blocks. Grounded on the teacher's
// internal/proxy.Classifier — the "ordered rule list, first substring
// match wins" shape — adapted from URL-path/body classification to
// goal-text/context keyword classification, generalized to collect every
// matching rule rather than stopping at the first.
package changeplan

import (
	"fmt"
	"strings"
	"time"

	"github.com/icg-systems/icg/internal/domain"
)

// Input gathers what the synthesizer needs from the ChangeIntent and
// caller-supplied execution mode.
type Input struct {
	Intent        domain.ChangeIntent
	ExecutionMode domain.ExecutionMode

	// PasswordHashEnv/PasswordTTLSeconds are the configured defaults
	// (config.RolePolicy.DefaultPasswordHashEnv/DefaultPasswordTTLSeconds)
	// written into AuthorizationBlock whenever the inferred plan requires a
	// password. Left empty, a required password can never resolve a hash to
	// verify against (spec.md §4.9's "resolved at runtime" path).
	PasswordHashEnv    string
	PasswordTTLSeconds int
}

// actionRule maps a set of keywords to an action type; goal+module+entity
// text is checked against Keywords (case-insensitive substring).
type actionRule struct {
	Keywords []string
	Type     domain.ActionType
}

var actionRules = []actionRule{
	{Keywords: []string{"delete all", "bulk delete", "drop table", "drop permission", "drop all"}, Type: domain.ActionBulkDeleteWithoutFilter},
	{Keywords: []string{"super admin", "grant admin", "grant super"}, Type: domain.ActionPermissionGrantSuperAdmin},
	{Keywords: []string{"export credential", "export secret", "export password", "credential export"}, Type: domain.ActionCredentialExport},
	{Keywords: []string{"approval chain", "approval workflow", "approver"}, Type: domain.ActionWorkflowApprovalChain},
	{Keywords: []string{"payment rule", "payment terms", "pricing rule"}, Type: domain.ActionPaymentRuleChange},
	{Keywords: []string{"inventory adjust", "stock adjust", "bulk inventory"}, Type: domain.ActionInventoryAdjustmentBulk},
	{Keywords: []string{"threshold", "rule threshold", "trigger value"}, Type: domain.ActionUpdateRuleThreshold},
	{Keywords: []string{"field layout", "form field", "ui field", "screen layout"}, Type: domain.ActionUIFormFieldAdjust},
}

// actionDefaults gives the per-type defaults for an inferred Action's flags
// (spec.md §4.5).
var actionDefaults = map[domain.ActionType]domain.Action{
	domain.ActionBulkDeleteWithoutFilter:   {Irreversible: true},
	domain.ActionPermissionGrantSuperAdmin: {RequiresPrivilegeEscalation: true},
	domain.ActionCredentialExport:          {TouchesSensitiveData: true},
	domain.ActionPaymentRuleChange:         {TouchesSensitiveData: true},
	domain.ActionWorkflowApprovalChain:     {},
	domain.ActionInventoryAdjustmentBulk:   {},
	domain.ActionUpdateRuleThreshold:       {},
	domain.ActionUIFormFieldAdjust:         {},
	domain.ActionAnalysisOnly:              {},
}

var highRiskKeywords = []string{"delete", "drop", "permission", "privilege", "payment", "credential", "secret", "token"}
var mediumRiskKeywords = []string{"approval", "workflow", "inventory", "customer", "pricing", "refund"}

var highRiskActionTypes = map[domain.ActionType]bool{
	domain.ActionCredentialExport:          true,
	domain.ActionPermissionGrantSuperAdmin: true,
	domain.ActionBulkDeleteWithoutFilter:   true,
}

var mediumRiskActionTypes = map[domain.ActionType]bool{
	domain.ActionWorkflowApprovalChain:   true,
	domain.ActionPaymentRuleChange:       true,
	domain.ActionInventoryAdjustmentBulk: true,
}

// verificationTemplates gives the per-action-type verification check text.
var verificationTemplates = map[domain.ActionType]string{
	domain.ActionBulkDeleteWithoutFilter:   "Confirm deletion scope matches an explicit filter before execution",
	domain.ActionPermissionGrantSuperAdmin: "Confirm the grantee and duration of elevated access",
	domain.ActionCredentialExport:          "Confirm exported credentials are routed to an approved secrets store",
	domain.ActionWorkflowApprovalChain:     "Confirm the new approval chain preserves a non-empty approver set",
	domain.ActionPaymentRuleChange:         "Confirm payment rule change against a staging transaction",
	domain.ActionInventoryAdjustmentBulk:   "Confirm bulk inventory delta against a recent stock snapshot",
	domain.ActionUpdateRuleThreshold:       "Confirm the new threshold value against historical trigger rate",
	domain.ActionUIFormFieldAdjust:         "Confirm the field layout renders correctly for the target page",
	domain.ActionAnalysisOnly:              "Confirm the analysis output matches the requested scope",
}

// Synthesize infers actions, risk, and the plan's derived blocks from in.
func Synthesize(in Input, newID func(string) string, now time.Time) domain.ChangePlan {
	actions := inferActions(in.Intent.BusinessGoal, in.Intent.ContextRef, newID)
	risk := deriveRisk(in.Intent.BusinessGoal, in.Intent.ContextRef, actions)
	authorization := authorizationBlock(actions, in.ExecutionMode, risk, in.PasswordHashEnv, in.PasswordTTLSeconds)

	plan := domain.ChangePlan{
		PlanID:        newID("plan"),
		IntentID:      in.Intent.IntentID,
		RiskLevel:     risk,
		ExecutionMode: in.ExecutionMode,
		Scope:         in.Intent.ContextRef,
		Actions:       actions,
		ImpactAssessment: fmt.Sprintf("%d action(s) inferred for %s/%s at %s risk", len(actions), in.Intent.ContextRef.Module, in.Intent.ContextRef.Page, risk),
		VerificationChecks: verificationChecks(actions),
		RollbackPlan:       rollbackPlan(actions, newID),
		Approval:           approvalBlock(risk, in.ExecutionMode, actions, authorization.PasswordRequired),
		Authorization:      authorization,
		CreatedAt:          now,
	}
	return plan
}

func inferActions(goal string, ref domain.ContextRef, newID func(string) string) []domain.Action {
	haystack := strings.ToLower(goal + " " + ref.Module + " " + ref.Page + " " + ref.Entity)

	var types []domain.ActionType
	for _, rule := range actionRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(haystack, kw) {
				types = append(types, rule.Type)
				break
			}
		}
	}
	if len(types) == 0 {
		types = []domain.ActionType{domain.ActionAnalysisOnly}
	}

	actions := make([]domain.Action, 0, len(types))
	for _, t := range types {
		defaults := actionDefaults[t]
		actions = append(actions, domain.Action{
			ActionID:                    newID("action"),
			Type:                        t,
			TouchesSensitiveData:        defaults.TouchesSensitiveData,
			RequiresPrivilegeEscalation: defaults.RequiresPrivilegeEscalation,
			Irreversible:                defaults.Irreversible,
		})
	}
	return actions
}

func deriveRisk(goal string, ref domain.ContextRef, actions []domain.Action) domain.RiskLevel {
	haystack := strings.ToLower(goal + " " + ref.Module)

	for _, a := range actions {
		if highRiskActionTypes[a.Type] {
			return domain.RiskHigh
		}
	}
	for _, w := range highRiskKeywords {
		if strings.Contains(haystack, w) {
			return domain.RiskHigh
		}
	}
	for _, a := range actions {
		if mediumRiskActionTypes[a.Type] {
			return domain.RiskMedium
		}
	}
	for _, w := range mediumRiskKeywords {
		if strings.Contains(haystack, w) {
			return domain.RiskMedium
		}
	}
	return domain.RiskLow
}

func verificationChecks(actions []domain.Action) []string {
	checks := make([]string, 0, len(actions)+1)
	for _, a := range actions {
		if tmpl, ok := verificationTemplates[a.Type]; ok {
			checks = append(checks, tmpl)
		}
	}
	checks = append(checks, "intent-to-plan consistency review")
	return domain.DedupStrings(checks)
}

func rollbackPlan(actions []domain.Action, newID func(string) string) domain.RollbackPlan {
	for _, a := range actions {
		if a.Irreversible {
			return domain.RollbackPlan{
				Type:      "backup-restore",
				Reference: newID("backup"),
				Note:      "mandatory backup required before applying an irreversible action",
			}
		}
	}
	return domain.RollbackPlan{
		Type:      "config-revert",
		Reference: "previous-config-snapshot",
	}
}

// approvalBlock decides whether the plan needs to travel through the
// Approval Workflow FSM at all. A plan requiring a password at execute time
// (passwordRequired, mirroring Authorization.PasswordRequired) always needs
// the FSM even at low risk, since the password guard only exists as an
// Execute-transition check (internal/approval.Execute) — skipping the FSM
// would silently skip the password check too.
func approvalBlock(risk domain.RiskLevel, mode domain.ExecutionMode, actions []domain.Action, passwordRequired bool) domain.ApprovalBlock {
	anyPrivilegeEscalation := false
	for _, a := range actions {
		if a.RequiresPrivilegeEscalation {
			anyPrivilegeEscalation = true
			break
		}
	}

	pending := risk == domain.RiskHigh ||
		(risk == domain.RiskMedium && mode == domain.ExecutionApply) ||
		anyPrivilegeEscalation ||
		passwordRequired

	status := "not-required"
	if pending {
		status = "pending"
	}
	return domain.ApprovalBlock{Status: status}
}

func authorizationBlock(actions []domain.Action, mode domain.ExecutionMode, risk domain.RiskLevel, passwordHashEnv string, passwordTTLSeconds int) domain.AuthorizationBlock {
	anyMutating := false
	anyPrivilegeEscalation := false
	for _, a := range actions {
		if a.Type != domain.ActionAnalysisOnly {
			anyMutating = true
		}
		if a.RequiresPrivilegeEscalation {
			anyPrivilegeEscalation = true
		}
	}

	passwordRequired := anyMutating && mode == domain.ExecutionApply

	var reasonCodes []string
	if passwordRequired {
		reasonCodes = append(reasonCodes, "mutating-action-apply-mode")
	}
	if anyPrivilegeEscalation {
		reasonCodes = append(reasonCodes, "privilege-escalation-detected")
	}
	if risk == domain.RiskHigh {
		reasonCodes = append(reasonCodes, "high-risk-plan")
	}

	block := domain.AuthorizationBlock{
		PasswordRequired: passwordRequired,
		ReasonCodes:      domain.DedupStrings(reasonCodes),
	}
	if passwordRequired {
		block.PasswordScope = []string{"execute"}
		block.PasswordHashEnv = passwordHashEnv
		block.PasswordTTLSeconds = passwordTTLSeconds
	}
	return block
}
