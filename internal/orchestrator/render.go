package orchestrator

import (
	"fmt"
	"strings"

	"github.com/icg-systems/icg/internal/domain"
)

// renderChangePlanMD renders the human-readable companion to
// interactive-change-plan.generated.json, grounded on the teacher's
// internal/mdloader template-driven rendering approach but hand-built
// here since the plan shape is small enough not to need a template
// engine.
func renderChangePlanMD(plan domain.ChangePlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Change Plan %s\n\n", plan.PlanID)
	fmt.Fprintf(&b, "- Risk level: %s\n", plan.RiskLevel)
	fmt.Fprintf(&b, "- Execution mode: %s\n", plan.ExecutionMode)
	fmt.Fprintf(&b, "- Scope: %s / %s / %s\n\n", plan.Scope.Product, plan.Scope.Module, plan.Scope.Page)
	b.WriteString("## Actions\n\n")
	for _, a := range plan.Actions {
		fmt.Fprintf(&b, "- `%s` (irreversible=%v, privilege_escalation=%v, sensitive_data=%v)\n",
			a.Type, a.Irreversible, a.RequiresPrivilegeEscalation, a.TouchesSensitiveData)
	}
	b.WriteString("\n## Verification Checks\n\n")
	for _, c := range plan.VerificationChecks {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	if plan.ImpactAssessment != "" {
		fmt.Fprintf(&b, "\n## Impact\n\n%s\n", plan.ImpactAssessment)
	}
	return b.String()
}

// renderGateMD renders the human-readable companion to
// interactive-change-plan-gate.json.
func renderGateMD(g domain.GateDecision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Plan Gate: %s\n\n", g.Decision)
	fmt.Fprintf(&b, "Checks: %d total, %d failed (%d deny, %d review)\n\n",
		g.Summary.CheckTotal, g.Summary.FailedTotal, g.Summary.FailedDenyTotal, g.Summary.FailedReviewTotal)
	for _, c := range g.Checks {
		status := "pass"
		if !c.Passed {
			status = string(c.Severity)
		}
		fmt.Fprintf(&b, "- [%s] %s: %s\n", status, c.ID, c.Details)
	}
	return b.String()
}

// renderWorkOrderMD renders the human-readable companion to
// interactive-work-order.json.
func renderWorkOrderMD(wo domain.WorkOrder) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Work Order %s\n\n", wo.WorkOrderID)
	fmt.Fprintf(&b, "- Session: %s\n", wo.SessionID)
	fmt.Fprintf(&b, "- Status: %s\n", wo.Status)
	fmt.Fprintf(&b, "- Priority: %s\n\n", wo.Priority)
	b.WriteString("## Decisions\n\n")
	for stage, decision := range wo.Decisions {
		fmt.Fprintf(&b, "- %s: %s\n", stage, decision)
	}
	b.WriteString("\n## Next Actions\n\n")
	for _, a := range wo.NextActions {
		fmt.Fprintf(&b, "1. %s\n", a)
	}
	return b.String()
}
