package workorder

import (
	"testing"
	"time"

	"github.com/icg-systems/icg/internal/domain"
)

func fixedID(prefix string) string { return prefix + "-fixed" }

func allowInput() Input {
	return Input{
		SessionID: "sess-1",
		PlanID:    "plan-1",
		RiskLevel: domain.RiskLow,
		Dialogue:  domain.DialogueResult{Decision: domain.DialogueAllow},
		Gate:      domain.GateDecision{Decision: domain.DecisionAllow},
		Runtime:   domain.RuntimeDecision{Decision: domain.DecisionAllow},
		AuthTier:  domain.AuthorizationTierDecision{Decision: domain.DecisionAllow},
	}
}

func TestBuild_ReadyForApplyWhenAllAllow(t *testing.T) {
	wo := Build(allowInput(), fixedID, time.Unix(0, 0).UTC())
	if wo.Status != domain.StatusReadyForApply {
		t.Errorf("Status = %q, want ready-for-apply", wo.Status)
	}
	if wo.Priority != domain.PriorityLow {
		t.Errorf("Priority = %q, want low", wo.Priority)
	}
}

func TestBuild_BlockedOnGateDeny(t *testing.T) {
	in := allowInput()
	in.Gate = domain.GateDecision{Decision: domain.DecisionDeny, FailedDenyChecks: []string{"deny-action-type"}}

	wo := Build(in, fixedID, time.Unix(0, 0).UTC())
	if wo.Status != domain.StatusBlocked {
		t.Errorf("Status = %q, want blocked", wo.Status)
	}
	if wo.Priority != domain.PriorityHigh {
		t.Errorf("Priority = %q, want high", wo.Priority)
	}
	if len(wo.NextActions) == 0 {
		t.Fatal("expected at least one next action")
	}
}

func TestBuild_PendingReviewOnGateReview(t *testing.T) {
	in := allowInput()
	in.Gate = domain.GateDecision{Decision: domain.DecisionReview, FailedReviewChecks: []string{"review-action-type"}}

	wo := Build(in, fixedID, time.Unix(0, 0).UTC())
	if wo.Status != domain.StatusPendingReview {
		t.Errorf("Status = %q, want pending-review", wo.Status)
	}
	if wo.Priority != domain.PriorityMedium {
		t.Errorf("Priority = %q, want medium", wo.Priority)
	}
}

func TestBuild_PendingReviewWhenApprovalPending(t *testing.T) {
	in := allowInput()
	in.ApprovalPending = true

	wo := Build(in, fixedID, time.Unix(0, 0).UTC())
	if wo.Status != domain.StatusPendingReview {
		t.Errorf("Status = %q, want pending-review", wo.Status)
	}
}

func TestBuild_CompletedWhenExecutionSucceeded(t *testing.T) {
	in := allowInput()
	in.Execution = &domain.ExecutionRecord{Result: domain.ExecutionSuccess}

	wo := Build(in, fixedID, time.Unix(0, 0).UTC())
	if wo.Status != domain.StatusCompleted {
		t.Errorf("Status = %q, want completed", wo.Status)
	}
}

func TestBuild_BlockedWhenExecutionFailed(t *testing.T) {
	in := allowInput()
	in.Execution = &domain.ExecutionRecord{Result: domain.ExecutionFailed}

	wo := Build(in, fixedID, time.Unix(0, 0).UTC())
	if wo.Status != domain.StatusBlocked {
		t.Errorf("Status = %q, want blocked", wo.Status)
	}
}

func TestBuild_DialogueDenyBlocksRegardlessOfOtherStages(t *testing.T) {
	in := allowInput()
	in.Dialogue = domain.DialogueResult{Decision: domain.DialogueDeny}

	wo := Build(in, fixedID, time.Unix(0, 0).UTC())
	if wo.Status != domain.StatusBlocked {
		t.Errorf("Status = %q, want blocked", wo.Status)
	}
	if wo.Decisions["dialogue"] != domain.DialogueDeny {
		t.Errorf("Decisions[dialogue] = %q, want deny", wo.Decisions["dialogue"])
	}
}

func TestBuild_HighRiskForcesHighPriorityEvenWhenAllowed(t *testing.T) {
	in := allowInput()
	in.RiskLevel = domain.RiskHigh

	wo := Build(in, fixedID, time.Unix(0, 0).UTC())
	if wo.Priority != domain.PriorityHigh {
		t.Errorf("Priority = %q, want high", wo.Priority)
	}
}
