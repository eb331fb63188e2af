// Package gate implements the Plan Gate (component C6): nine fixed
// deny/review checks against a ChangePlan's shape and guardrail flags,
// plus operator-supplied CEL extra conditions (see cel.go), reduced into
// a single GateDecision. Grounded on the teacher's internal/policy rule
// evaluation shape — an ordered list of named checks, each contributing
// reasons/violations, reduced via the shared Combine monotonic rule.
package gate

import (
	"fmt"
	"log/slog"

	"github.com/icg-systems/icg/internal/config"
	"github.com/icg-systems/icg/internal/domain"
)

// Evaluate runs every fixed check plus any configured CEL extra conditions
// against plan and reduces them into a GateDecision.
func Evaluate(plan domain.ChangePlan, catalog config.GateCatalog, logger *slog.Logger) domain.GateDecision {
	checks := []domain.GateCheck{
		checkPlanShape(plan),
		checkDenyActionTypes(plan, catalog),
		checkReviewActionTypes(plan, catalog),
		checkRiskApproval(plan, catalog),
		checkActionCountApproval(plan, catalog),
		checkPrivilegeEscalationDualApproval(plan, catalog),
		checkSensitiveDataMasking(plan, catalog),
		checkPlaintextSecrets(plan, catalog),
		checkIrreversibleBackup(plan, catalog),
	}

	compiled := compileExtraConditions(catalog.ExtraConditions, logger)
	checks = append(checks, evaluateExtraConditions(compiled, plan, logger)...)

	return reduce(checks, plan)
}

func reduce(checks []domain.GateCheck, plan domain.ChangePlan) domain.GateDecision {
	decision := domain.DecisionAllow
	var reasons []string
	var failedDeny, failedReview []string
	failedTotal, failedDenyTotal, failedReviewTotal := 0, 0, 0

	for _, c := range checks {
		if c.Passed {
			continue
		}
		failedTotal++
		decision = domain.Combine(decision, c.Severity)
		reasons = append(reasons, fmt.Sprintf("%s: %s", c.ID, c.Details))
		switch c.Severity {
		case domain.DecisionDeny:
			failedDenyTotal++
			failedDeny = append(failedDeny, c.ID)
		case domain.DecisionReview:
			failedReviewTotal++
			failedReview = append(failedReview, c.ID)
		}
	}

	return domain.GateDecision{
		Decision:           decision,
		Checks:             checks,
		FailedDenyChecks:   failedDeny,
		FailedReviewChecks: failedReview,
		Reasons_:           reasons,
		Summary: domain.GateSummary{
			CheckTotal:        len(checks),
			FailedTotal:       failedTotal,
			FailedDenyTotal:   failedDenyTotal,
			FailedReviewTotal: failedReviewTotal,
			ActionCount:       len(plan.Actions),
			RiskLevel:         plan.RiskLevel,
		},
	}
}

// checkPlanShape requires a non-empty plan_id, intent_id, a normalized
// risk_level, and at least one action.
func checkPlanShape(plan domain.ChangePlan) domain.GateCheck {
	check := domain.GateCheck{ID: "plan-shape", Severity: domain.DecisionDeny}
	switch {
	case plan.PlanID == "":
		check.Details = "plan_id is empty"
	case plan.IntentID == "":
		check.Details = "intent_id is empty"
	case plan.RiskLevel != domain.RiskLow && plan.RiskLevel != domain.RiskMedium && plan.RiskLevel != domain.RiskHigh:
		check.Details = fmt.Sprintf("risk_level %q is not a recognized normalized value", plan.RiskLevel)
	case len(plan.Actions) == 0:
		check.Details = "plan has no actions"
	default:
		check.Passed = true
	}
	return check
}

// checkDenyActionTypes fails when any plan action's type appears in the
// catalog's deny_action_types list.
func checkDenyActionTypes(plan domain.ChangePlan, catalog config.GateCatalog) domain.GateCheck {
	check := domain.GateCheck{ID: "deny-action-types", Severity: domain.DecisionDeny, Passed: true}
	deny := make(map[domain.ActionType]bool, len(catalog.DenyActionTypes))
	for _, t := range catalog.DenyActionTypes {
		deny[t] = true
	}
	for _, a := range plan.Actions {
		if deny[a.Type] {
			check.Passed = false
			check.Details = fmt.Sprintf("action type %q is denylisted", a.Type)
			return check
		}
	}
	return check
}

// checkReviewActionTypes requires approval.status=approved when any action
// type appears in the catalog's review_action_types list.
func checkReviewActionTypes(plan domain.ChangePlan, catalog config.GateCatalog) domain.GateCheck {
	check := domain.GateCheck{ID: "review-action-types", Severity: domain.DecisionReview, Passed: true}
	review := make(map[domain.ActionType]bool, len(catalog.ReviewActionTypes))
	for _, t := range catalog.ReviewActionTypes {
		review[t] = true
	}
	var hit domain.ActionType
	found := false
	for _, a := range plan.Actions {
		if review[a.Type] {
			hit = a.Type
			found = true
			break
		}
	}
	if found && plan.Approval.Status != "approved" {
		check.Passed = false
		check.Details = fmt.Sprintf("action type %q requires approval, approval.status is %q", hit, plan.Approval.Status)
	}
	return check
}

// checkRiskApproval requires approval when the plan's risk level is in the
// catalog's require_approval_for_risk_levels list.
func checkRiskApproval(plan domain.ChangePlan, catalog config.GateCatalog) domain.GateCheck {
	check := domain.GateCheck{ID: "risk-approval", Severity: domain.DecisionReview, Passed: true}
	for _, r := range catalog.RequireApprovalForRiskLevels {
		if plan.RiskLevel == r && plan.Approval.Status != "approved" {
			check.Passed = false
			check.Details = fmt.Sprintf("risk_level %q requires approval, approval.status is %q", plan.RiskLevel, plan.Approval.Status)
			return check
		}
	}
	return check
}

// checkActionCountApproval requires approval when the action count exceeds
// the catalog's max_actions_without_approval (a negative value disables the
// check).
func checkActionCountApproval(plan domain.ChangePlan, catalog config.GateCatalog) domain.GateCheck {
	check := domain.GateCheck{ID: "action-count-approval", Severity: domain.DecisionReview, Passed: true}
	if catalog.MaxActionsWithoutApproval < 0 {
		return check
	}
	if len(plan.Actions) > catalog.MaxActionsWithoutApproval && plan.Approval.Status != "approved" {
		check.Passed = false
		check.Details = fmt.Sprintf("%d actions exceed max_actions_without_approval=%d, approval.status is %q",
			len(plan.Actions), catalog.MaxActionsWithoutApproval, plan.Approval.Status)
	}
	return check
}

// checkPrivilegeEscalationDualApproval requires approval.dual_approved when
// any action requires privilege escalation and the catalog mandates dual
// approval for that case.
func checkPrivilegeEscalationDualApproval(plan domain.ChangePlan, catalog config.GateCatalog) domain.GateCheck {
	check := domain.GateCheck{ID: "privilege-escalation-dual-approval", Severity: domain.DecisionReview, Passed: true}
	if !catalog.RequireDualApprovalForPrivilegeEscalation {
		return check
	}
	if plan.AnyAction(func(a domain.Action) bool { return a.RequiresPrivilegeEscalation }) && !plan.Approval.DualApproved {
		check.Passed = false
		check.Details = "a privilege-escalating action requires dual approval, approval.dual_approved is false"
	}
	return check
}

// checkSensitiveDataMasking requires security.masking_applied when any
// action touches sensitive data and the catalog mandates masking.
func checkSensitiveDataMasking(plan domain.ChangePlan, catalog config.GateCatalog) domain.GateCheck {
	check := domain.GateCheck{ID: "sensitive-data-masking", Severity: domain.DecisionDeny, Passed: true}
	if !catalog.RequireMaskingWhenSensitiveData {
		return check
	}
	if plan.AnyAction(func(a domain.Action) bool { return a.TouchesSensitiveData }) && !plan.Security.MaskingApplied {
		check.Passed = false
		check.Details = "a sensitive-data action requires masking, security.masking_applied is false"
	}
	return check
}

// checkPlaintextSecrets fails when the catalog forbids plaintext secrets
// and the plan's security block reports one present.
func checkPlaintextSecrets(plan domain.ChangePlan, catalog config.GateCatalog) domain.GateCheck {
	check := domain.GateCheck{ID: "plaintext-secrets", Severity: domain.DecisionDeny, Passed: true}
	if !catalog.ForbidPlaintextSecrets {
		return check
	}
	if plan.Security.PlaintextSecretsInPayload {
		check.Passed = false
		check.Details = "security.plaintext_secrets_in_payload is true"
	}
	return check
}

// checkIrreversibleBackup requires a non-empty security.backup_reference
// when any action is irreversible and the catalog mandates a backup.
func checkIrreversibleBackup(plan domain.ChangePlan, catalog config.GateCatalog) domain.GateCheck {
	check := domain.GateCheck{ID: "irreversible-backup", Severity: domain.DecisionDeny, Passed: true}
	if !catalog.RequireBackupForIrreversibleActions {
		return check
	}
	if plan.AnyAction(func(a domain.Action) bool { return a.Irreversible }) && plan.Security.BackupReference == "" {
		check.Passed = false
		check.Details = "an irreversible action requires a backup reference, security.backup_reference is empty"
	}
	return check
}
