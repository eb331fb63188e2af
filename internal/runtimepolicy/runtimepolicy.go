// Package runtimepolicy implements the Runtime Policy Evaluator
// (component C7): it resolves the plan's runtime_mode × runtime_environment
// × ui_mode configuration, classifies a deny/review/allow decision, and
// computes the downstream requirement set including auto_execute_allowed,
// plus any operator-supplied CEL extra conditions (see cel.go). Grounded on
// the teacher's internal/policy.Engine mode×environment table evaluation,
// generalized from a two-dimensional to a three-dimensional lookup (mode,
// environment, optional ui_mode).
package runtimepolicy

import (
	"fmt"
	"log/slog"

	"github.com/icg-systems/icg/internal/config"
	"github.com/icg-systems/icg/internal/domain"
)

// Input gathers what the evaluator needs beyond the policy tables.
type Input struct {
	Plan               domain.ChangePlan
	RuntimeMode        domain.RuntimeMode
	RuntimeEnvironment domain.RuntimeEnvironment
	UIMode             domain.UIMode
	HasUIMode          bool
	Approved           bool
}

// Evaluate resolves the mode/env/ui_mode configs against in.Plan, evaluates
// any configured CEL extra conditions, and produces a domain.RuntimeDecision.
func Evaluate(in Input, policy config.RuntimePolicy, logger *slog.Logger) domain.RuntimeDecision {
	mode, modeOK := policy.Modes[in.RuntimeMode]
	env, envOK := policy.Environments[in.RuntimeEnvironment]

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

	if !modeOK {
		addDeny("runtime-mode-undefined", fmt.Sprintf("runtime_mode %q has no policy entry", in.RuntimeMode))
	}
	if !envOK {
		addDeny("runtime-environment-undefined", fmt.Sprintf("runtime_environment %q has no policy entry", in.RuntimeEnvironment))
	}

	if modeOK {
		if !containsExecutionMode(mode.AllowExecutionModes, in.Plan.ExecutionMode) {
			addDeny("execution-mode-not-allowed", fmt.Sprintf("execution_mode %q not in mode.allow_execution_modes", in.Plan.ExecutionMode))
		}
		for _, a := range in.Plan.Actions {
			if containsActionType(mode.DenyActionTypes, a.Type) {
				addDeny("mode-deny-action-type", fmt.Sprintf("action type %q is denylisted for runtime_mode %q", a.Type, in.RuntimeMode))
			}
			if containsActionType(mode.ReviewRequiredActionTypes, a.Type) {
				addReview("mode-review-action-type", fmt.Sprintf("action type %q requires review for runtime_mode %q", a.Type, in.RuntimeMode))
			}
		}
		anyMutating := in.Plan.AnyAction(func(a domain.Action) bool { return a.Type != domain.ActionAnalysisOnly })
		if anyMutating && !mode.AllowMutatingApply && in.Plan.ExecutionMode == domain.ExecutionApply {
			addDeny("mutating-apply-forbidden", fmt.Sprintf("runtime_mode %q forbids mutating apply", in.RuntimeMode))
		}
	}

	if in.HasUIMode {
		uiConfig, uiOK := policy.UIModes[in.UIMode]
		if !uiOK {
			addDeny("ui-mode-undefined", fmt.Sprintf("ui_mode %q has no policy entry", in.UIMode))
		} else {
			if !containsRuntimeMode(uiConfig.RuntimeAllowed, in.RuntimeMode) {
				addDeny("ui-mode-runtime-not-allowed", fmt.Sprintf("ui_mode %q does not allow runtime_mode %q", in.UIMode, in.RuntimeMode))
			}
			if !containsExecutionMode(uiConfig.ExecutionModesAllowed, in.Plan.ExecutionMode) {
				addDeny("ui-mode-execution-not-allowed", fmt.Sprintf("ui_mode %q does not allow execution_mode %q", in.UIMode, in.Plan.ExecutionMode))
			}
		}
	}

	if envOK {
		if in.Plan.ExecutionMode == domain.ExecutionApply && env.MaxRiskLevelForApply.Less(in.Plan.RiskLevel) {
			addDeny("risk-exceeds-env-max", fmt.Sprintf("risk_level %q exceeds runtime_environment %q's max_risk_level_for_apply %q", in.Plan.RiskLevel, in.RuntimeEnvironment, env.MaxRiskLevelForApply))
		}
		if env.ManualReviewRequiredForApply && in.Plan.ExecutionMode == domain.ExecutionApply {
			addReview("manual-review-required", fmt.Sprintf("runtime_environment %q requires manual review for apply", in.RuntimeEnvironment))
		}
		for _, r := range env.RequireApprovalForRiskLevels {
			if in.Plan.RiskLevel == r && !in.Approved {
				addReview("risk-level-requires-approval", fmt.Sprintf("risk_level %q requires approval in runtime_environment %q", in.Plan.RiskLevel, in.RuntimeEnvironment))
			}
		}
		anyMutating := in.Plan.AnyAction(func(a domain.Action) bool { return a.Type != domain.ActionAnalysisOnly })
		if env.RequirePasswordForApplyMutations && in.Plan.ExecutionMode == domain.ExecutionApply && anyMutating && !in.Plan.Authorization.PasswordRequired {
			addReview("password-required-for-apply-mutations", fmt.Sprintf("runtime_environment %q requires plan.authorization.password_required for mutating apply", in.RuntimeEnvironment))
		}
	}

	requirements := domain.RuntimeRequirements{
		AllowLiveApply:                    envOK && env.AllowLiveApply,
		RequireDryRunBeforeLiveApply:      envOK && env.AllowLiveApply,
		ManualReviewRequiredForApply:      envOK && env.ManualReviewRequiredForApply,
		AllowMutatingApply:                modeOK && mode.AllowMutatingApply,
		RequirePasswordForApplyMutations:  envOK && env.RequirePasswordForApplyMutations,
		RequireApproval:                   envOK && len(env.RequireApprovalForRiskLevels) > 0,
		ApprovalSatisfied:                 in.Approved,
		MaxRiskLevelForApply:              env.MaxRiskLevelForApply,
		MaxAutoExecuteRiskLevel:           env.MaxAutoExecuteRiskLevel,
	}
	requirements.AutoExecuteAllowed = in.Plan.ExecutionMode == domain.ExecutionApply &&
		requirements.MaxAutoExecuteRiskLevel.AtLeast(in.Plan.RiskLevel) &&
		decision == domain.DecisionAllow

	compiled := compileExtraConditions(policy.ExtraConditions, logger)
	for _, v := range evaluateExtraConditions(compiled, in, logger) {
		decision = domain.Combine(decision, v.Severity)
		reasons = append(reasons, v.Message)
		violations = append(violations, v)
	}

	summary := fmt.Sprintf("runtime_mode=%s runtime_environment=%s decision=%s", in.RuntimeMode, in.RuntimeEnvironment, decision)

	return domain.RuntimeDecision{
		Decision:     decision,
		Reasons_:     reasons,
		Violations_:  violations,
		Summary:      summary,
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

func containsActionType(list []domain.ActionType, t domain.ActionType) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

func containsRuntimeMode(list []domain.RuntimeMode, m domain.RuntimeMode) bool {
	for _, v := range list {
		if v == m {
			return true
		}
	}
	return false
}
