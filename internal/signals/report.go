// Package signals implements the Signal & Governance Reporter (component
// C13): it ingests the governance signal, execution, and feedback streams
// over a time window, computes a fixed metrics set, matches them against
// configurable thresholds, and emits alerts and recommendations. Grounded
// on the teacher's internal/detection.Engine metric→threshold→Event shape,
// adapted from a streaming per-event anomaly detector into a windowed
// batch aggregator that runs on demand (spec.md §4.13) rather than inline
// on every tool call.
package signals

import (
	"fmt"
	"time"

	"github.com/icg-systems/icg/internal/alert"
	"github.com/icg-systems/icg/internal/config"
	"github.com/icg-systems/icg/internal/domain"
	"github.com/icg-systems/icg/internal/ledger"
)

// Window is the closed set of reporting windows (spec.md §4.13).
type Window string

const (
	WindowWeekly  Window = "weekly"
	WindowMonthly Window = "monthly"
	WindowAll     Window = "all"
	WindowCustom  Window = "custom"
)

// Bounds resolves w into a (from, to) pair: weekly and monthly end at now,
// WindowCustom returns customFrom/customTo as given, and WindowAll returns
// zero bounds, which Store's window-filtered readers treat as open-ended.
func (w Window) Bounds(now time.Time, customFrom, customTo time.Time) (time.Time, time.Time) {
	switch w {
	case WindowWeekly:
		return now.Add(-7 * 24 * time.Hour), now
	case WindowMonthly:
		return now.Add(-30 * 24 * time.Hour), now
	case WindowCustom:
		return customFrom, customTo
	default:
		return time.Time{}, time.Time{}
	}
}

// StageCounts tallies one governance signal stage's decisions over the
// window. BlockRate treats a "deny" decision as the stage's "block" outcome
// (domain.Decision has no separate block value; spec.md's "block" total
// for dialogue/runtime/authorization-tier stages is the stage's deny
// count).
type StageCounts struct {
	Allow  int `json:"allow"`
	Deny   int `json:"deny"`
	Review int `json:"review"`
	Total  int `json:"total"`
}

// BlockRate returns round(deny/total*100, 2), or nil when total is zero.
func (c StageCounts) BlockRate() *float64 {
	return ratio(c.Deny, c.Total)
}

// MatrixMetrics is populated from "matrix"-stage signals, which carry an
// opaque detail payload emitted by an external portfolio scorer (spec.md
// line 19 treats the matrix baseline as an opaque sub-tool). Every field
// is nil when the window has no matrix signals to aggregate.
type MatrixMetrics struct {
	PortfolioPassRate     *float64 `json:"portfolio_pass_rate,omitempty"`
	RegressionPositiveRate *float64 `json:"regression_positive_rate,omitempty"`
	StageErrorRate        *float64 `json:"stage_error_rate,omitempty"`
	AvgScore              *float64 `json:"avg_score,omitempty"`
	AvgValidRate          *float64 `json:"avg_valid_rate,omitempty"`
}

// Metrics is the exhaustive metrics set named in spec.md §4.13.
type Metrics struct {
	IntentTotal            int                              `json:"intent_total"`
	ApplyTotal             int                              `json:"apply_total"`
	ApplySuccessTotal      int                              `json:"apply_success_total"`
	ApplyFailedTotal       int                               `json:"apply_failed_total"`
	ApplySkippedTotal      int                              `json:"apply_skipped_total"`
	RollbackTotal          int                              `json:"rollback_total"`
	SecurityInterceptTotal int                              `json:"security_intercept_total"`
	AdoptionRate           *float64                         `json:"adoption_rate,omitempty"`
	ExecutionSuccessRate   *float64                         `json:"execution_success_rate,omitempty"`
	RollbackRate           *float64                         `json:"rollback_rate,omitempty"`
	SecurityInterceptRate  *float64                         `json:"security_intercept_rate,omitempty"`
	SatisfactionAvgScore   *float64                         `json:"satisfaction_avg_score,omitempty"`
	DialogueAuthorization  StageCounts                      `json:"dialogue_authorization"`
	Runtime                StageCounts                      `json:"runtime"`
	AuthorizationTier      StageCounts                      `json:"authorization_tier"`
	Matrix                 MatrixMetrics                    `json:"matrix"`
	BusinessMode           map[domain.BusinessMode]int       `json:"business_mode"`
	UnknownTotal           int                              `json:"unknown_total"`
}

// Summary rolls up the report's alert outcome (spec.md §4.13).
type Summary struct {
	Breaches int    `json:"breaches"`
	Warnings int    `json:"warnings"`
	Status   string `json:"status"` // ok | warning | breach
}

// Report is the Governance Reporter's output for one window.
type Report struct {
	Window          Window          `json:"window"`
	From            time.Time       `json:"from,omitempty"`
	To              time.Time       `json:"to,omitempty"`
	Metrics         Metrics         `json:"metrics"`
	Alerts          []alert.Alert   `json:"alerts"`
	Recommendations []string        `json:"recommendations"`
	Summary         Summary         `json:"summary"`
}

// Reader is what the reporter needs from the ledger to build a report.
// internal/ledger.Store satisfies this directly.
type Reader interface {
	Signals(from, to time.Time) ([]domain.Signal, error)
	Executions(from, to time.Time) ([]domain.ExecutionRecord, error)
	Feedback(from, to time.Time) ([]domain.Feedback, error)
}

var _ Reader = (*ledger.Store)(nil)

// Build ingests reader's streams over window and produces a Report,
// matching thresholds and raising alerts via manager when manager is
// non-nil. now anchors weekly/monthly bounds; customFrom/customTo are only
// consulted for WindowCustom.
func Build(reader Reader, window Window, now, customFrom, customTo time.Time, cfg config.SignalsConfig, manager *alert.Manager) (Report, error) {
	from, to := window.Bounds(now, customFrom, customTo)

	sigs, err := reader.Signals(from, to)
	if err != nil {
		return Report{}, fmt.Errorf("signals: read signals: %w", err)
	}
	executions, err := reader.Executions(from, to)
	if err != nil {
		return Report{}, fmt.Errorf("signals: read executions: %w", err)
	}
	feedback, err := reader.Feedback(from, to)
	if err != nil {
		return Report{}, fmt.Errorf("signals: read feedback: %w", err)
	}

	metrics := computeMetrics(sigs, executions, feedback)
	alerts, recs := matchThresholds(metrics, cfg.Thresholds)

	if manager != nil {
		for _, a := range alerts {
			manager.Send(a)
		}
	}

	breaches, warnings := 0, 0
	for _, a := range alerts {
		switch a.Severity {
		case "high":
			breaches++
		case "medium", "low":
			warnings++
		}
	}
	status := "ok"
	if breaches > 0 {
		status = "breach"
	} else if warnings > 0 {
		status = "warning"
	}

	return Report{
		Window:  window,
		From:    from,
		To:      to,
		Metrics: metrics,
		Alerts:  alerts,
		Recommendations: recs,
		Summary: Summary{Breaches: breaches, Warnings: warnings, Status: status},
	}, nil
}

func computeMetrics(sigs []domain.Signal, executions []domain.ExecutionRecord, feedback []domain.Feedback) Metrics {
	m := Metrics{
		BusinessMode: make(map[domain.BusinessMode]int),
	}

	for _, s := range sigs {
		switch s.BusinessMode {
		case domain.BusinessUnknown, "":
			m.UnknownTotal++
		default:
			m.BusinessMode[s.BusinessMode]++
		}

		switch s.Stage {
		case "dialogue_authorization":
			m.IntentTotal++
			tally(&m.DialogueAuthorization, s.Decision)
			if s.Decision == domain.DecisionDeny {
				m.SecurityInterceptTotal++
			}
		case "runtime":
			tally(&m.Runtime, s.Decision)
			if s.Decision == domain.DecisionDeny {
				m.SecurityInterceptTotal++
			}
		case "authorization_tier":
			tally(&m.AuthorizationTier, s.Decision)
			if s.Decision == domain.DecisionDeny {
				m.SecurityInterceptTotal++
			}
		case "matrix":
			accumulateMatrix(&m.Matrix, s.Detail)
		}
	}

	for _, e := range executions {
		m.ApplyTotal++
		switch e.Result {
		case domain.ExecutionSuccess:
			m.ApplySuccessTotal++
		case domain.ExecutionFailed:
			m.ApplyFailedTotal++
		case domain.ExecutionSkipped:
			m.ApplySkippedTotal++
		case domain.ExecutionRolledBack:
			m.RollbackTotal++
		}
	}

	m.AdoptionRate = ratio(m.ApplyTotal, m.IntentTotal)
	m.ExecutionSuccessRate = ratio(m.ApplySuccessTotal, m.ApplyTotal)
	m.RollbackRate = ratio(m.RollbackTotal, m.ApplyTotal)
	m.SecurityInterceptRate = ratio(m.SecurityInterceptTotal, m.IntentTotal)

	if len(feedback) > 0 {
		var sum float64
		var scored int
		for _, f := range feedback {
			if f.NoOpinion {
				continue
			}
			sum += f.Score
			scored++
		}
		if scored > 0 {
			avg := round2(sum / float64(scored))
			m.SatisfactionAvgScore = &avg
		}
	}

	return m
}

func tally(c *StageCounts, decision domain.Decision) {
	c.Total++
	switch decision {
	case domain.DecisionAllow:
		c.Allow++
	case domain.DecisionDeny:
		c.Deny++
	case domain.DecisionReview:
		c.Review++
	}
}

// accumulateMatrix folds one matrix-stage signal's opaque detail payload
// into running averages. The detail shape is whatever the external scorer
// emitted; fields this reporter doesn't recognize are ignored rather than
// treated as an error, since the scorer is out of this pipeline's control.
func accumulateMatrix(mm *MatrixMetrics, detail any) {
	fields, ok := detail.(map[string]any)
	if !ok {
		return
	}
	assignAvg(&mm.PortfolioPassRate, numberField(fields, "portfolio_pass_rate"))
	assignAvg(&mm.RegressionPositiveRate, numberField(fields, "regression_positive_rate"))
	assignAvg(&mm.StageErrorRate, numberField(fields, "stage_error_rate"))
	assignAvg(&mm.AvgScore, numberField(fields, "avg_score"))
	assignAvg(&mm.AvgValidRate, numberField(fields, "avg_valid_rate"))
}

func numberField(fields map[string]any, key string) (float64, bool) {
	v, ok := fields[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// assignAvg folds one more sample into *dst's running mean. A nil *dst
// starts the average at the new sample.
func assignAvg(dst **float64, sample float64, ok bool) {
	if !ok {
		return
	}
	if *dst == nil {
		v := sample
		*dst = &v
		return
	}
	avg := (**dst + sample) / 2
	*dst = &avg
}

func ratio(numerator, denominator int) *float64 {
	if denominator == 0 {
		return nil
	}
	v := round2(float64(numerator) / float64(denominator) * 100)
	return &v
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
