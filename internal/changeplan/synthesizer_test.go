package changeplan

import (
	"testing"
	"time"

	"github.com/icg-systems/icg/internal/domain"
)

func fixedID(prefix string) string { return prefix + "-test-id" }

func TestSynthesize_UIFieldAdjustIsLowRisk(t *testing.T) {
	intent := domain.ChangeIntent{
		IntentID:     "intent-1",
		BusinessGoal: "Adjust order screen field layout for clearer input flow",
		ContextRef:   domain.ContextRef{Module: "orders", Page: "order-list"},
	}
	plan := Synthesize(Input{Intent: intent, ExecutionMode: domain.ExecutionApply}, fixedID, time.Unix(0, 0).UTC())

	if plan.RiskLevel != domain.RiskLow {
		t.Errorf("RiskLevel = %q, want low", plan.RiskLevel)
	}
	if !plan.HasAction(domain.ActionUIFormFieldAdjust) {
		t.Errorf("expected ui_form_field_adjust action, got %+v", plan.Actions)
	}
}

func TestSynthesize_BulkDeleteIsHighRiskAndDeniedShape(t *testing.T) {
	intent := domain.ChangeIntent{
		IntentID:     "intent-1",
		BusinessGoal: "drop permission table for cleanup",
		ContextRef:   domain.ContextRef{Module: "admin"},
	}
	plan := Synthesize(Input{Intent: intent, ExecutionMode: domain.ExecutionApply}, fixedID, time.Unix(0, 0).UTC())

	if plan.RiskLevel != domain.RiskHigh {
		t.Errorf("RiskLevel = %q, want high", plan.RiskLevel)
	}
	if plan.RollbackPlan.Type != "backup-restore" {
		t.Errorf("RollbackPlan.Type = %q, want backup-restore for irreversible action", plan.RollbackPlan.Type)
	}
	if plan.Approval.Status != "pending" {
		t.Errorf("Approval.Status = %q, want pending", plan.Approval.Status)
	}
}

func TestSynthesize_NoKeywordMatchDefaultsToAnalysisOnly(t *testing.T) {
	intent := domain.ChangeIntent{
		IntentID:     "intent-1",
		BusinessGoal: "please look into this thing",
		ContextRef:   domain.ContextRef{Module: "misc"},
	}
	plan := Synthesize(Input{Intent: intent, ExecutionMode: domain.ExecutionSuggestion}, fixedID, time.Unix(0, 0).UTC())

	if len(plan.Actions) != 1 || plan.Actions[0].Type != domain.ActionAnalysisOnly {
		t.Errorf("Actions = %+v, want single analysis_only", plan.Actions)
	}
	if plan.Authorization.PasswordRequired {
		t.Error("analysis_only in suggestion mode should not require a password")
	}
}

func TestSynthesize_MutatingApplyRequiresPassword(t *testing.T) {
	intent := domain.ChangeIntent{
		IntentID:     "intent-1",
		BusinessGoal: "adjust the approval workflow chain",
		ContextRef:   domain.ContextRef{Module: "orders"},
	}
	plan := Synthesize(Input{Intent: intent, ExecutionMode: domain.ExecutionApply}, fixedID, time.Unix(0, 0).UTC())

	if !plan.Authorization.PasswordRequired {
		t.Error("expected password_required=true for mutating action in apply mode")
	}
	found := false
	for _, rc := range plan.Authorization.ReasonCodes {
		if rc == "mutating-action-apply-mode" {
			found = true
		}
	}
	if !found {
		t.Errorf("ReasonCodes = %v, want mutating-action-apply-mode", plan.Authorization.ReasonCodes)
	}
}

func TestSynthesize_PasswordHashEnvAndTTLCarriedFromInput(t *testing.T) {
	intent := domain.ChangeIntent{
		IntentID:     "intent-1",
		BusinessGoal: "Adjust order screen field layout for clearer input flow",
		ContextRef:   domain.ContextRef{Module: "orders", Page: "order-list"},
	}
	plan := Synthesize(Input{
		Intent:             intent,
		ExecutionMode:      domain.ExecutionApply,
		PasswordHashEnv:    "ICG_APPLY_PASSWORD_HASH",
		PasswordTTLSeconds: 300,
	}, fixedID, time.Unix(0, 0).UTC())

	if !plan.Authorization.PasswordRequired {
		t.Fatal("expected password_required=true for a mutating low-risk apply action")
	}
	if plan.Authorization.PasswordHashEnv != "ICG_APPLY_PASSWORD_HASH" {
		t.Errorf("PasswordHashEnv = %q, want ICG_APPLY_PASSWORD_HASH", plan.Authorization.PasswordHashEnv)
	}
	if plan.Authorization.PasswordTTLSeconds != 300 {
		t.Errorf("PasswordTTLSeconds = %d, want 300", plan.Authorization.PasswordTTLSeconds)
	}
	// A password-gated plan must travel through the Approval Workflow FSM
	// even at low risk, since the password guard is an Execute-transition
	// check — skipping the FSM would silently skip the password check too.
	if plan.Approval.Status != "pending" {
		t.Errorf("Approval.Status = %q, want pending for a password-gated low-risk apply", plan.Approval.Status)
	}
}

func TestSynthesize_NoPasswordHashEnvLeavesAuthorizationFieldEmpty(t *testing.T) {
	intent := domain.ChangeIntent{
		IntentID:     "intent-1",
		BusinessGoal: "Adjust order screen field layout for clearer input flow",
		ContextRef:   domain.ContextRef{Module: "orders", Page: "order-list"},
	}
	plan := Synthesize(Input{Intent: intent, ExecutionMode: domain.ExecutionApply}, fixedID, time.Unix(0, 0).UTC())

	if plan.Authorization.PasswordHashEnv != "" {
		t.Errorf("PasswordHashEnv = %q, want empty when Input carries no override/default", plan.Authorization.PasswordHashEnv)
	}
}
