// Package authtier implements the Authorization Tier Evaluator
// (component C8): it checks the active dialogue profile and runtime
// environment against policy and emits the requirement set that gates
// apply/auto-execute/live-apply. Grounded on the teacher's
// internal/auth.Role/HasPermission lookup shape, generalized from a flat
// role check to a (profile × environment) requirement table.
package authtier

import (
	"fmt"

	"github.com/icg-systems/icg/internal/config"
	"github.com/icg-systems/icg/internal/domain"
)

// Input gathers what the evaluator needs beyond the policy tables.
type Input struct {
	ExecutionMode      domain.ExecutionMode
	DialogueProfile    domain.DialogueProfile
	RuntimeMode        domain.RuntimeMode
	RuntimeEnvironment domain.RuntimeEnvironment
	AutoExecuteLowRisk bool
	LiveApply          bool
}

// Evaluate checks in against policy's profile/environment tables and
// produces a domain.AuthorizationTierDecision.
func Evaluate(in Input, policy config.AuthTierPolicy) domain.AuthorizationTierDecision {
	profileCfg, profileOK := policy.Profiles[in.DialogueProfile]
	envCfg, envOK := policy.Environments[in.RuntimeEnvironment]

	var reasons []string
	var violations []domain.Violation
	decision := domain.DecisionAllow

	addDeny := func(id, msg string) {
		decision = domain.Combine(decision, domain.DecisionDeny)
		reasons = append(reasons, msg)
		violations = append(violations, domain.Violation{ID: id, Severity: domain.DecisionDeny, Message: msg})
	}
	addReview := func(id, msg string) {
		decision = domain.Combine(decision, domain.DecisionReview)
		reasons = append(reasons, msg)
		violations = append(violations, domain.Violation{ID: id, Severity: domain.DecisionReview, Message: msg})
	}

	if !profileOK {
		addDeny("profile-undefined", fmt.Sprintf("dialogue_profile %q has no authorization tier entry", in.DialogueProfile))
	}
	if !envOK {
		addDeny("environment-undefined", fmt.Sprintf("runtime_environment %q has no authorization tier entry", in.RuntimeEnvironment))
	}

	if profileOK {
		if !containsExecutionMode(profileCfg.AllowExecutionModes, in.ExecutionMode) {
			addDeny("execution-mode-not-allowed", fmt.Sprintf("execution_mode %q not allowed for profile %q", in.ExecutionMode, in.DialogueProfile))
		}
		if in.AutoExecuteLowRisk && !profileCfg.AllowAutoExecuteLowRisk {
			addDeny("auto-execute-not-allowed", fmt.Sprintf("profile %q does not allow auto_execute_low_risk", in.DialogueProfile))
		}
		if in.LiveApply && !profileCfg.AllowLiveApply {
			addDeny("live-apply-not-allowed", fmt.Sprintf("profile %q does not allow live_apply", in.DialogueProfile))
		}
	}

	if envOK && in.ExecutionMode == domain.ExecutionApply && envCfg.ManualReviewRequiredForApply {
		addReview("manual-review-required", fmt.Sprintf("runtime_environment %q requires manual review for apply", in.RuntimeEnvironment))
	}

	requirements := domain.AuthTierRequirements{
		ApplyAllowed:                  profileOK && containsExecutionMode(profileCfg.AllowExecutionModes, domain.ExecutionApply),
		AutoExecuteAllowed:            profileOK && profileCfg.AllowAutoExecuteLowRisk,
		LiveApplyAllowed:              profileOK && profileCfg.AllowLiveApply,
		RequireSecondaryAuthorization: envOK && envCfg.RequireSecondaryAuthorization,
		RequirePasswordForApply:       envOK && envCfg.RequirePasswordForApply,
		RequireRolePolicy:             envOK && envCfg.RequireRolePolicy,
		RequireDistinctActorRoles:     envOK && envCfg.RequireDistinctActorRoles,
		ManualReviewRequiredForApply:  envOK && envCfg.ManualReviewRequiredForApply,
	}

	return domain.AuthorizationTierDecision{
		Decision:    decision,
		Reasons_:    reasons,
		Violations_: violations,
		Context: domain.AuthTierContext{
			ExecutionMode:      in.ExecutionMode,
			DialogueProfile:    in.DialogueProfile,
			RuntimeMode:        in.RuntimeMode,
			RuntimeEnvironment: in.RuntimeEnvironment,
			AutoExecuteLowRisk: in.AutoExecuteLowRisk,
			LiveApply:          in.LiveApply,
		},
		Requirements: requirements,
	}
}

func containsExecutionMode(list []domain.ExecutionMode, m domain.ExecutionMode) bool {
	for _, v := range list {
		if v == m {
			return true
		}
	}
	return false
}
