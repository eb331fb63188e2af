package authtier

import (
	"testing"

	"github.com/icg-systems/icg/internal/config"
	"github.com/icg-systems/icg/internal/domain"
)

func testPolicy() config.AuthTierPolicy {
	return config.DefaultConfig().AuthTier
}

func TestEvaluate_BusinessUserAllowsSuggestion(t *testing.T) {
	in := Input{
		ExecutionMode:      domain.ExecutionSuggestion,
		DialogueProfile:    domain.ProfileBusinessUser,
		RuntimeEnvironment: domain.EnvDev,
	}
	decision := Evaluate(in, testPolicy())
	if decision.Decision != domain.DecisionAllow {
		t.Fatalf("Decision = %q, want allow; reasons=%v", decision.Decision, decision.Reasons())
	}
}

func TestEvaluate_BusinessUserDeniesApply(t *testing.T) {
	in := Input{
		ExecutionMode:      domain.ExecutionApply,
		DialogueProfile:    domain.ProfileBusinessUser,
		RuntimeEnvironment: domain.EnvDev,
	}
	decision := Evaluate(in, testPolicy())
	if decision.Decision != domain.DecisionDeny {
		t.Fatalf("Decision = %q, want deny", decision.Decision)
	}
	if decision.Requirements.ApplyAllowed {
		t.Error("ApplyAllowed should be false for business-user profile")
	}
}

func TestEvaluate_SystemMaintainerLiveApplyAllowedInDev(t *testing.T) {
	in := Input{
		ExecutionMode:      domain.ExecutionApply,
		DialogueProfile:    domain.ProfileSystemMaintainer,
		RuntimeEnvironment: domain.EnvDev,
		LiveApply:          true,
	}
	decision := Evaluate(in, testPolicy())
	if decision.Decision != domain.DecisionAllow {
		t.Fatalf("Decision = %q, want allow; reasons=%v", decision.Decision, decision.Reasons())
	}
	if !decision.Requirements.LiveApplyAllowed {
		t.Error("expected LiveApplyAllowed=true for system-maintainer")
	}
}

func TestEvaluate_ProdRequiresManualReview(t *testing.T) {
	in := Input{
		ExecutionMode:      domain.ExecutionApply,
		DialogueProfile:    domain.ProfileSystemMaintainer,
		RuntimeEnvironment: domain.EnvProd,
	}
	decision := Evaluate(in, testPolicy())
	if decision.Decision != domain.DecisionReview {
		t.Fatalf("Decision = %q, want review-required; reasons=%v", decision.Decision, decision.Reasons())
	}
	if !decision.Requirements.RequireSecondaryAuthorization {
		t.Error("expected RequireSecondaryAuthorization=true in prod")
	}
	if !decision.Requirements.RequireDistinctActorRoles {
		t.Error("expected RequireDistinctActorRoles=true in prod")
	}
}
