package gate

import (
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"

	"github.com/icg-systems/icg/internal/config"
	"github.com/icg-systems/icg/internal/domain"
)

// celEnv declares the plan-shaped variables an ExtraCondition expression
// may reference. Grounded on the teacher's internal/policy.CELEvaluator —
// same compile-once-reuse-program approach, generalized from an
// action/session/agent context to a plan context.
func celEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("risk_level", cel.StringType),
		cel.Variable("execution_mode", cel.StringType),
		cel.Variable("action_count", cel.IntType),
		cel.Variable("action_types", cel.ListType(cel.StringType)),
		cel.Variable("any_touches_sensitive_data", cel.BoolType),
		cel.Variable("any_irreversible", cel.BoolType),
		cel.Variable("any_requires_privilege_escalation", cel.BoolType),
		cel.Variable("masking_applied", cel.BoolType),
		cel.Variable("plaintext_secrets_in_payload", cel.BoolType),
	)
}

// compiledExtraCondition wraps a config.ExtraCondition with its compiled
// program, or a compile error to log and skip at evaluation time.
type compiledExtraCondition struct {
	cfg     config.ExtraCondition
	program cel.Program
}

func compileExtraConditions(conditions []config.ExtraCondition, logger *slog.Logger) []compiledExtraCondition {
	if len(conditions) == 0 {
		return nil
	}
	env, err := celEnv()
	if err != nil {
		if logger != nil {
			logger.Error("failed to build CEL environment for plan gate extra conditions", "error", err)
		}
		return nil
	}

	compiled := make([]compiledExtraCondition, 0, len(conditions))
	for _, c := range conditions {
		ast, issues := env.Compile(c.Condition)
		if issues != nil && issues.Err() != nil {
			if logger != nil {
				logger.Warn("skipping extra condition with invalid CEL expression", "id", c.ID, "error", issues.Err())
			}
			continue
		}
		if ast.OutputType() != cel.BoolType {
			if logger != nil {
				logger.Warn("skipping extra condition: expression must evaluate to bool", "id", c.ID)
			}
			continue
		}
		prg, err := env.Program(ast)
		if err != nil {
			if logger != nil {
				logger.Warn("skipping extra condition: program creation failed", "id", c.ID, "error", err)
			}
			continue
		}
		compiled = append(compiled, compiledExtraCondition{cfg: c, program: prg})
	}
	return compiled
}

// ValidateExtraConditions compiles every condition and returns one error
// per expression that fails to compile or evaluate to bool, keyed by the
// condition's ID. Exported for `icg policy validate`, which needs to
// surface compile errors to an operator rather than silently skip them
// the way evaluation-time compileExtraConditions does.
func ValidateExtraConditions(conditions []config.ExtraCondition) map[string]error {
	errs := make(map[string]error)
	env, err := celEnv()
	if err != nil {
		for _, c := range conditions {
			errs[c.ID] = err
		}
		return errs
	}
	for _, c := range conditions {
		ast, issues := env.Compile(c.Condition)
		if issues != nil && issues.Err() != nil {
			errs[c.ID] = issues.Err()
			continue
		}
		if ast.OutputType() != cel.BoolType {
			errs[c.ID] = fmt.Errorf("expression must evaluate to bool, got %s", ast.OutputType())
			continue
		}
		if _, err := env.Program(ast); err != nil {
			errs[c.ID] = err
		}
	}
	return errs
}

func planCELVars(plan domain.ChangePlan) map[string]any {
	types := make([]string, 0, len(plan.Actions))
	anySensitive, anyIrreversible, anyPrivEsc := false, false, false
	for _, a := range plan.Actions {
		types = append(types, string(a.Type))
		anySensitive = anySensitive || a.TouchesSensitiveData
		anyIrreversible = anyIrreversible || a.Irreversible
		anyPrivEsc = anyPrivEsc || a.RequiresPrivilegeEscalation
	}
	return map[string]any{
		"risk_level":                        string(plan.RiskLevel),
		"execution_mode":                    string(plan.ExecutionMode),
		"action_count":                       int64(len(plan.Actions)),
		"action_types":                       types,
		"any_touches_sensitive_data":         anySensitive,
		"any_irreversible":                   anyIrreversible,
		"any_requires_privilege_escalation":  anyPrivEsc,
		"masking_applied":                    plan.Security.MaskingApplied,
		"plaintext_secrets_in_payload":       plan.Security.PlaintextSecretsInPayload,
	}
}

func evaluateExtraConditions(compiled []compiledExtraCondition, plan domain.ChangePlan, logger *slog.Logger) []domain.GateCheck {
	if len(compiled) == 0 {
		return nil
	}
	vars := planCELVars(plan)

	results := make([]domain.GateCheck, 0, len(compiled))
	for _, c := range compiled {
		out, _, err := c.program.Eval(vars)
		if err != nil {
			if logger != nil {
				logger.Warn("extra condition evaluation failed, skipping", "id", c.cfg.ID, "error", err)
			}
			continue
		}
		hit, ok := out.Value().(bool)
		if !ok || !hit {
			results = append(results, domain.GateCheck{ID: c.cfg.ID, Passed: true})
			continue
		}
		severity := domain.DecisionReview
		if c.cfg.Severity == "deny" {
			severity = domain.DecisionDeny
		}
		results = append(results, domain.GateCheck{
			ID: c.cfg.ID, Passed: false, Severity: severity,
			Details: fmt.Sprintf("extra condition %q matched: %s", c.cfg.ID, c.cfg.Message),
		})
	}
	return results
}
