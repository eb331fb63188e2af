package runtimepolicy

import (
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"

	"github.com/icg-systems/icg/internal/config"
	"github.com/icg-systems/icg/internal/domain"
)

// celEnv declares the runtime-shaped variables an ExtraCondition expression
// may reference: the plan's risk/execution-mode shape plus the three axes
// this evaluator resolves against (runtime_mode, runtime_environment,
// ui_mode). Mirrors internal/gate's celEnv, extended with those three axes
// since a runtime extra condition commonly needs to key off them.
func celEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("risk_level", cel.StringType),
		cel.Variable("execution_mode", cel.StringType),
		cel.Variable("runtime_mode", cel.StringType),
		cel.Variable("runtime_environment", cel.StringType),
		cel.Variable("ui_mode", cel.StringType),
		cel.Variable("has_ui_mode", cel.BoolType),
		cel.Variable("action_count", cel.IntType),
		cel.Variable("action_types", cel.ListType(cel.StringType)),
		cel.Variable("any_irreversible", cel.BoolType),
		cel.Variable("approved", cel.BoolType),
	)
}

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
			logger.Error("failed to build CEL environment for runtime policy extra conditions", "error", err)
		}
		return nil
	}

	compiled := make([]compiledExtraCondition, 0, len(conditions))
	for _, c := range conditions {
		ast, issues := env.Compile(c.Condition)
		if issues != nil && issues.Err() != nil {
			if logger != nil {
				logger.Warn("skipping runtime extra condition with invalid CEL expression", "id", c.ID, "error", issues.Err())
			}
			continue
		}
		if ast.OutputType() != cel.BoolType {
			if logger != nil {
				logger.Warn("skipping runtime extra condition: expression must evaluate to bool", "id", c.ID)
			}
			continue
		}
		prg, err := env.Program(ast)
		if err != nil {
			if logger != nil {
				logger.Warn("skipping runtime extra condition: program creation failed", "id", c.ID, "error", err)
			}
			continue
		}
		compiled = append(compiled, compiledExtraCondition{cfg: c, program: prg})
	}
	return compiled
}

// ValidateExtraConditions compiles every condition and returns one error per
// expression that fails to compile or evaluate to bool, keyed by its ID.
// Exported for `icg policy validate`, mirroring gate.ValidateExtraConditions.
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

func runtimeCELVars(in Input) map[string]any {
	types := make([]string, 0, len(in.Plan.Actions))
	anyIrreversible := false
	for _, a := range in.Plan.Actions {
		types = append(types, string(a.Type))
		anyIrreversible = anyIrreversible || a.Irreversible
	}
	return map[string]any{
		"risk_level":          string(in.Plan.RiskLevel),
		"execution_mode":      string(in.Plan.ExecutionMode),
		"runtime_mode":        string(in.RuntimeMode),
		"runtime_environment": string(in.RuntimeEnvironment),
		"ui_mode":             string(in.UIMode),
		"has_ui_mode":         in.HasUIMode,
		"action_count":        int64(len(in.Plan.Actions)),
		"action_types":        types,
		"any_irreversible":    anyIrreversible,
		"approved":            in.Approved,
	}
}

func evaluateExtraConditions(compiled []compiledExtraCondition, in Input, logger *slog.Logger) []domain.Violation {
	if len(compiled) == 0 {
		return nil
	}
	vars := runtimeCELVars(in)

	var violations []domain.Violation
	for _, c := range compiled {
		out, _, err := c.program.Eval(vars)
		if err != nil {
			if logger != nil {
				logger.Warn("runtime extra condition evaluation failed, skipping", "id", c.cfg.ID, "error", err)
			}
			continue
		}
		hit, ok := out.Value().(bool)
		if !ok || !hit {
			continue
		}
		severity := domain.DecisionReview
		if c.cfg.Severity == "deny" {
			severity = domain.DecisionDeny
		}
		violations = append(violations, domain.Violation{
			ID:       c.cfg.ID,
			Severity: severity,
			Message:  fmt.Sprintf("extra condition %q matched: %s", c.cfg.ID, c.cfg.Message),
		})
	}
	return violations
}
