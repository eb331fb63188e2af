package signals

import (
	"fmt"

	"github.com/icg-systems/icg/internal/alert"
	"github.com/icg-systems/icg/internal/config"
)

// metricValues names every metric a config.ThresholdRule can match by
// string key, grounded on the teacher's internal/detection.Engine dispatch
// table (metric name → current value, looked up once per rule rather than
// hard-coded per rule).
func metricValues(m Metrics) map[string]*float64 {
	return map[string]*float64{
		"adoption_rate":                     m.AdoptionRate,
		"execution_success_rate":            m.ExecutionSuccessRate,
		"rollback_rate":                     m.RollbackRate,
		"security_intercept_rate":           m.SecurityInterceptRate,
		"satisfaction_avg_score":            m.SatisfactionAvgScore,
		"dialogue_authorization_block_rate": m.DialogueAuthorization.BlockRate(),
		"runtime_block_rate":                m.Runtime.BlockRate(),
		"authorization_tier_block_rate":     m.AuthorizationTier.BlockRate(),
		"matrix_portfolio_pass_rate":        m.Matrix.PortfolioPassRate,
		"matrix_regression_positive_rate":   m.Matrix.RegressionPositiveRate,
		"matrix_stage_error_rate":           m.Matrix.StageErrorRate,
		"matrix_avg_score":                  m.Matrix.AvgScore,
		"matrix_avg_valid_rate":             m.Matrix.AvgValidRate,
	}
}

// matchThresholds evaluates every rule against metrics' current values,
// skipping a rule whose metric has no value in this window (nil numerator
// or denominator, per spec.md's "null when d=0" rule propagating here).
// Alerts are deduplicated by recommendation text within this call; cross-
// call deduplication is alert.Manager's job.
func matchThresholds(metrics Metrics, rules []config.ThresholdRule) ([]alert.Alert, []string) {
	values := metricValues(metrics)
	seen := make(map[string]bool)

	var alerts []alert.Alert
	var recommendations []string

	for _, rule := range rules {
		value, ok := values[rule.Metric]
		if !ok || value == nil {
			continue
		}
		if !breaches(*value, rule.Operator, rule.Value) {
			continue
		}
		if seen[rule.Recommendation] {
			continue
		}
		seen[rule.Recommendation] = true

		alerts = append(alerts, alert.Alert{
			Type:              rule.Metric,
			Severity:          rule.Severity,
			Title:             fmt.Sprintf("%s threshold breached", rule.Metric),
			Message:           fmt.Sprintf("%s is %.2f (threshold: %s %.2f)", rule.Metric, *value, rule.Operator, rule.Value),
			RecommendationKey: rule.Recommendation,
			Details: map[string]any{
				"metric":   rule.Metric,
				"value":    *value,
				"operator": rule.Operator,
				"target":   rule.Value,
			},
		})
		recommendations = append(recommendations, rule.Recommendation)
	}

	return alerts, recommendations
}

func breaches(value float64, operator string, target float64) bool {
	switch operator {
	case "lt":
		return value < target
	case "lte":
		return value <= target
	case "gt":
		return value > target
	case "gte":
		return value >= target
	case "eq":
		return value == target
	default:
		return false
	}
}
