// Package workorder implements the Work-Order Builder (component C11): a
// deterministic aggregation of every upstream stage's decision into the
// single auditor-facing WorkOrder ticket for a session. Grounded on the
// teacher's internal/trace.Session summary rollup (one record per session
// aggregating every child event's outcome into a status + next steps),
// adapted from agent-session tracing to governance-stage aggregation.
package workorder

import (
	"time"

	"github.com/icg-systems/icg/internal/domain"
)

// Input gathers every stage's output the builder aggregates. Gate and
// Runtime are required; Execution and Approval are optional since not
// every session reaches execution or requires approval.
type Input struct {
	SessionID       string
	Scope           domain.ContextRef
	PlanID          string
	RiskLevel       domain.RiskLevel
	Dialogue        domain.DialogueResult
	Gate            domain.GateDecision
	Runtime         domain.RuntimeDecision
	AuthTier        domain.AuthorizationTierDecision
	ApprovalPending bool
	Execution       *domain.ExecutionRecord
}

// Build aggregates in into a WorkOrder per spec.md §4.11.
func Build(in Input, newID func(string) string, now time.Time) domain.WorkOrder {
	decisions := map[string]domain.Decision{
		"dialogue":           in.Dialogue.Decision,
		"gate":               in.Gate.Decision,
		"runtime":            in.Runtime.Decision,
		"authorization_tier": in.AuthTier.Decision,
	}

	anyDeny := anyDecision(decisions, domain.DecisionDeny) || in.Dialogue.Decision == domain.DialogueDeny
	anyReview := anyDecision(decisions, domain.DecisionReview)

	executionAttempted := in.Execution != nil
	executionBlocked := executionAttempted && in.Execution.Result != domain.ExecutionSuccess
	executionSucceeded := executionAttempted && in.Execution.Result == domain.ExecutionSuccess

	status := deriveStatus(anyDeny, anyReview, executionAttempted, executionBlocked, executionSucceeded, in.ApprovalPending, in.Gate.Decision, in.Runtime.Decision)
	priority := derivePriority(anyDeny, anyReview, in.RiskLevel)
	nextActions := deriveNextActions(in, anyDeny, anyReview, executionBlocked)

	return domain.WorkOrder{
		WorkOrderID: newID("wo"),
		SessionID:   in.SessionID,
		PlanID:      in.PlanID,
		Scope:       in.Scope,
		Status:      status,
		Priority:    priority,
		Decisions:   decisions,
		NextActions: nextActions,
		CreatedAt:   now,
	}
}

func anyDecision(decisions map[string]domain.Decision, want domain.Decision) bool {
	for _, d := range decisions {
		if d == want {
			return true
		}
	}
	return false
}

func deriveStatus(anyDeny, anyReview, executionAttempted, executionBlocked, executionSucceeded, approvalPending bool, gateDecision, runtimeDecision domain.Decision) domain.WorkOrderStatus {
	if anyDeny || (executionAttempted && executionBlocked) {
		return domain.StatusBlocked
	}
	if executionAttempted && executionSucceeded {
		return domain.StatusCompleted
	}
	if anyReview || approvalPending {
		return domain.StatusPendingReview
	}
	if gateDecision == domain.DecisionAllow && runtimeDecision == domain.DecisionAllow {
		return domain.StatusReadyForApply
	}
	return domain.StatusPendingReview
}

func derivePriority(anyDeny, anyReview bool, risk domain.RiskLevel) domain.Priority {
	if anyDeny || risk == domain.RiskHigh {
		return domain.PriorityHigh
	}
	if anyReview || risk == domain.RiskMedium {
		return domain.PriorityMedium
	}
	return domain.PriorityLow
}

// deriveNextActions walks a fixed blocker-first, housekeeping-last table
// keyed by which stage failed, appending one line per failing stage so a
// plan blocked at multiple stages surfaces every blocker at once.
func deriveNextActions(in Input, anyDeny, anyReview, executionBlocked bool) []string {
	var actions []string

	if in.Dialogue.Decision == domain.DialogueDeny {
		actions = append(actions, "Rephrase the business goal away from the matched deny pattern and resubmit.")
	}
	if in.Gate.Decision == domain.DecisionDeny {
		actions = append(actions, "Resolve the failing plan gate checks: "+joinOrNone(in.Gate.FailedDenyChecks))
	}
	if in.Runtime.Decision == domain.DecisionDeny {
		actions = append(actions, "Adjust runtime mode, environment, or UI mode so the plan is permitted to run.")
	}
	if in.AuthTier.Decision == domain.DecisionDeny {
		actions = append(actions, "Escalate to a dialogue profile authorized for this execution mode.")
	}
	if executionBlocked {
		actions = append(actions, "Investigate the blocked execution record before retrying apply.")
	}

	if in.Gate.Decision == domain.DecisionReview {
		actions = append(actions, "Obtain the reviews required by the plan gate: "+joinOrNone(in.Gate.FailedReviewChecks))
	}
	if in.Runtime.Decision == domain.DecisionReview {
		actions = append(actions, "Submit the plan for manual review before execution.")
	}
	if in.ApprovalPending {
		actions = append(actions, "Await approval workflow resolution before executing.")
	}

	if !anyDeny && !anyReview && !executionBlocked && in.Execution == nil {
		actions = append(actions, "Plan is ready for apply; no further action required.")
	}

	return actions
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	out := items[0]
	for _, s := range items[1:] {
		out += ", " + s
	}
	return out
}
