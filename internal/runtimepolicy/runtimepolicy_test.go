package runtimepolicy

import (
	"testing"

	"github.com/icg-systems/icg/internal/config"
	"github.com/icg-systems/icg/internal/domain"
)

func testPolicy() config.RuntimePolicy {
	return config.DefaultConfig().Runtime
}

func lowRiskApplyPlan() domain.ChangePlan {
	return domain.ChangePlan{
		PlanID:        "plan-1",
		RiskLevel:     domain.RiskLow,
		ExecutionMode: domain.ExecutionApply,
		Actions:       []domain.Action{{ActionID: "action-1", Type: domain.ActionUIFormFieldAdjust}},
	}
}

func TestEvaluate_AllowsOpsFixDevApply(t *testing.T) {
	in := Input{
		Plan:               lowRiskApplyPlan(),
		RuntimeMode:        domain.RuntimeOpsFix,
		RuntimeEnvironment: domain.EnvDev,
	}
	decision := Evaluate(in, testPolicy(), nil)

	if decision.Decision != domain.DecisionAllow {
		t.Fatalf("Decision = %q, want allow; reasons=%v", decision.Decision, decision.Reasons())
	}
	if !decision.Requirements.AutoExecuteAllowed {
		t.Error("expected auto_execute_allowed=true for low-risk dev apply")
	}
}

func TestEvaluate_DeniesUserAssistApplyMode(t *testing.T) {
	plan := lowRiskApplyPlan()
	in := Input{
		Plan:               plan,
		RuntimeMode:        domain.RuntimeUserAssist,
		RuntimeEnvironment: domain.EnvDev,
	}
	decision := Evaluate(in, testPolicy(), nil)

	if decision.Decision != domain.DecisionDeny {
		t.Fatalf("Decision = %q, want deny; reasons=%v", decision.Decision, decision.Reasons())
	}
}

func TestEvaluate_ProdRequiresApprovalForMediumRisk(t *testing.T) {
	plan := lowRiskApplyPlan()
	plan.RiskLevel = domain.RiskMedium
	in := Input{
		Plan:               plan,
		RuntimeMode:        domain.RuntimeOpsFix,
		RuntimeEnvironment: domain.EnvProd,
	}
	decision := Evaluate(in, testPolicy(), nil)
	if decision.Decision != domain.DecisionDeny {
		t.Fatalf("Decision = %q, want deny (prod max_risk_level_for_apply=low)", decision.Decision)
	}
}

func TestEvaluate_StagingReviewsWithoutApproval(t *testing.T) {
	plan := lowRiskApplyPlan()
	plan.RiskLevel = domain.RiskMedium
	in := Input{
		Plan:               plan,
		RuntimeMode:        domain.RuntimeOpsFix,
		RuntimeEnvironment: domain.EnvStaging,
		Approved:           false,
	}
	decision := Evaluate(in, testPolicy(), nil)
	if decision.Decision != domain.DecisionReview {
		t.Fatalf("Decision = %q, want review-required; reasons=%v", decision.Decision, decision.Reasons())
	}

	in.Approved = true
	plan.Authorization.PasswordRequired = true
	in.Plan = plan
	decision = Evaluate(in, testPolicy(), nil)
	if decision.Decision != domain.DecisionAllow {
		t.Fatalf("Decision after approval = %q, want allow; reasons=%v", decision.Decision, decision.Reasons())
	}
}

func TestEvaluate_UndefinedUIModeDenies(t *testing.T) {
	in := Input{
		Plan:               lowRiskApplyPlan(),
		RuntimeMode:        domain.RuntimeOpsFix,
		RuntimeEnvironment: domain.EnvDev,
		UIMode:             domain.UIMode("unknown-ui"),
		HasUIMode:          true,
	}
	decision := Evaluate(in, testPolicy(), nil)
	if decision.Decision != domain.DecisionDeny {
		t.Fatalf("Decision = %q, want deny for undefined ui_mode", decision.Decision)
	}
}

func TestEvaluate_UIModeRuntimeMismatchDenies(t *testing.T) {
	in := Input{
		Plan:               lowRiskApplyPlan(),
		RuntimeMode:        domain.RuntimeOpsFix,
		RuntimeEnvironment: domain.EnvDev,
		UIMode:             domain.UIUserApp,
		HasUIMode:          true,
	}
	decision := Evaluate(in, testPolicy(), nil)
	if decision.Decision != domain.DecisionDeny {
		t.Fatalf("Decision = %q, want deny: ui-user-app only allows user-assist runtime", decision.Decision)
	}
}

func TestEvaluate_ExtraConditionDenies(t *testing.T) {
	policy := testPolicy()
	policy.ExtraConditions = []config.ExtraCondition{
		{ID: "no-irreversible-in-dev", Condition: `runtime_environment == "dev" && any_irreversible`, Severity: "deny", Message: "irreversible actions are not allowed in dev"},
	}
	plan := lowRiskApplyPlan()
	plan.Actions[0].Irreversible = true
	in := Input{
		Plan:               plan,
		RuntimeMode:        domain.RuntimeOpsFix,
		RuntimeEnvironment: domain.EnvDev,
	}
	decision := Evaluate(in, policy, nil)
	if decision.Decision != domain.DecisionDeny {
		t.Fatalf("Decision = %q, want deny from extra condition; reasons=%v", decision.Decision, decision.Reasons())
	}
}

func TestEvaluate_ExtraConditionNotMatchedAllows(t *testing.T) {
	policy := testPolicy()
	policy.ExtraConditions = []config.ExtraCondition{
		{ID: "no-irreversible-in-dev", Condition: `runtime_environment == "dev" && any_irreversible`, Severity: "deny", Message: "irreversible actions are not allowed in dev"},
	}
	in := Input{
		Plan:               lowRiskApplyPlan(),
		RuntimeMode:        domain.RuntimeOpsFix,
		RuntimeEnvironment: domain.EnvDev,
	}
	decision := Evaluate(in, policy, nil)
	if decision.Decision != domain.DecisionAllow {
		t.Fatalf("Decision = %q, want allow; reasons=%v", decision.Decision, decision.Reasons())
	}
}
