// Package adapter implements the Adapter (component C10): the single
// seam between the governance pipeline and the Moqui ERP runtime. It
// translates a validated ChangePlan into a dry-run simulation or a live
// ERP call and appends the outcome to the ledger as an ExecutionRecord.
//
// Grounded on the teacher's internal/adapter.Adapter interface, which
// kept the agent-framework protocol (start/stop/kill) behind a small
// interface so AgentWarden's core never imported a specific framework's
// SDK directly; here the same shape gates the Moqui ERP client instead,
// so the core never imports a Moqui wire client directly either.
package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/icg-systems/icg/internal/changeplan"
	"github.com/icg-systems/icg/internal/config"
	"github.com/icg-systems/icg/internal/domain"
	"github.com/icg-systems/icg/internal/gate"
)

// Capabilities describes the provider dialect this adapter speaks
// (spec.md §4.10).
type Capabilities struct {
	Provider        string   `json:"provider"`
	SupportedModes  []string `json:"supported_modes"`
	DryRunSupported bool     `json:"dry_run_supported"`
}

// MoquiClient is the opaque ERP call boundary. A real implementation
// issues Moqui service/REST calls; tests and dry-run paths use a stub.
type MoquiClient interface {
	// ApplyActions performs the given actions against the live runtime
	// and returns the IDs of the actions that actually applied.
	ApplyActions(ctx context.Context, plan domain.ChangePlan) ([]string, error)
}

// ExecutionStore is the subset of the ledger the adapter needs: append
// new records and look one up for rollback.
type ExecutionStore interface {
	Append(record domain.ExecutionRecord) error
	FindLastSuccess(planID string) (domain.ExecutionRecord, bool, error)
}

// Adapter wires the Plan Synthesizer and Plan Gate to a MoquiClient and
// ExecutionStore, the way the teacher's Adapter wired a policy evaluator
// to a specific agent framework's transport.
type Adapter struct {
	Client  MoquiClient
	Store   ExecutionStore
	Catalog config.GateCatalog
	Logger  *slog.Logger
	NewID   func(string) string
	Now     func() time.Time
}

// Capabilities describes this adapter's provider dialect.
func (a *Adapter) Capabilities() Capabilities {
	return Capabilities{
		Provider:        "moqui",
		SupportedModes:  []string{string(domain.ExecutionSuggestion), string(domain.ExecutionApply)},
		DryRunSupported: true,
	}
}

// Plan delegates to the Plan Synthesizer (spec.md §4.5).
func (a *Adapter) Plan(intent domain.ChangeIntent, executionMode domain.ExecutionMode) domain.ChangePlan {
	return changeplan.Synthesize(changeplan.Input{Intent: intent, ExecutionMode: executionMode}, a.NewID, a.Now())
}

// Validate delegates to the Plan Gate (spec.md §4.6).
func (a *Adapter) Validate(plan domain.ChangePlan) domain.GateDecision {
	return gate.Evaluate(plan, a.Catalog, a.Logger)
}

// ApplyOptions configures one apply() or applyLowRisk() call.
type ApplyOptions struct {
	LiveApply            bool
	DryRun               bool
	AllowSuggestionApply bool
}

func (a *Adapter) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger.With("component", "adapter.Adapter")
}

// Apply runs validate(), then executes or simulates plan per
// spec.md §4.10. A deny gate decision short-circuits with a blocked,
// skipped record; a suggestion-mode plan is refused unless
// opts.AllowSuggestionApply is set; otherwise the plan is simulated
// (dry-run) by default or applied live when opts.LiveApply is set.
func (a *Adapter) Apply(ctx context.Context, plan domain.ChangePlan, opts ApplyOptions) (domain.ExecutionRecord, error) {
	decision := a.Validate(plan)

	if decision.Decision == domain.DecisionDeny {
		record := a.record(plan, domain.ExecutionSkipped, decision.Decision, domain.AdapterDryRun, nil, "gate decision is deny")
		return record, a.appendRecord(record)
	}

	if plan.ExecutionMode == domain.ExecutionSuggestion && !opts.AllowSuggestionApply {
		record := a.record(plan, domain.ExecutionSkipped, decision.Decision, domain.AdapterDryRun, nil, "plan execution_mode is suggestion; apply not permitted")
		return record, a.appendRecord(record)
	}

	mode := domain.AdapterDryRun
	var applied []string
	var applyErr error

	if opts.LiveApply && !opts.DryRun {
		mode = domain.AdapterLiveApply
		if a.Client == nil {
			applyErr = fmt.Errorf("adapter: live apply requested but no MoquiClient configured")
		} else {
			applied, applyErr = a.Client.ApplyActions(ctx, plan)
		}
	} else {
		applied = simulateActionIDs(plan)
	}

	if applyErr != nil {
		record := a.record(plan, domain.ExecutionFailed, decision.Decision, mode, applied, applyErr.Error())
		return record, a.appendRecord(record)
	}

	record := a.record(plan, domain.ExecutionSuccess, decision.Decision, mode, applied, "")
	if plan.AnyAction(func(act domain.Action) bool { return act.Irreversible }) {
		record.RollbackReference = plan.RollbackPlan.Reference
	}
	return record, a.appendRecord(record)
}

// ApplyLowRisk behaves like Apply but additionally refuses unless the
// plan's risk_level is low and the gate decision is allow (spec.md
// §4.10, the narrower auto-execute entry point).
func (a *Adapter) ApplyLowRisk(ctx context.Context, plan domain.ChangePlan, opts ApplyOptions) (domain.ExecutionRecord, error) {
	decision := a.Validate(plan)
	if plan.RiskLevel != domain.RiskLow || decision.Decision != domain.DecisionAllow {
		record := a.record(plan, domain.ExecutionSkipped, decision.Decision, domain.AdapterDryRun, nil, "applyLowRisk requires risk_level=low and gate decision=allow")
		return record, a.appendRecord(record)
	}
	return a.Apply(ctx, plan, opts)
}

// Rollback locates the prior success record for planID and appends a
// new record with result=rolled-back, or result=failed if none exists
// (spec.md §4.10).
func (a *Adapter) Rollback(planID string) (domain.ExecutionRecord, error) {
	prior, found, err := a.Store.FindLastSuccess(planID)
	if err != nil {
		return domain.ExecutionRecord{}, err
	}
	if !found {
		record := domain.ExecutionRecord{
			ExecutionID:    a.NewID("exec"),
			PlanID:         planID,
			Result:         domain.ExecutionFailed,
			PolicyDecision: domain.DecisionDeny,
			Mode:           domain.AdapterLiveApply,
			ActionsApplied: nil,
			ExecutedAt:     a.Now(),
			Reason:         "no prior success execution record found for plan",
		}
		return record, a.appendRecord(record)
	}

	record := domain.ExecutionRecord{
		ExecutionID:       a.NewID("exec"),
		PlanID:            planID,
		Result:            domain.ExecutionRolledBack,
		PolicyDecision:    prior.PolicyDecision,
		Mode:              prior.Mode,
		ActionsApplied:    prior.ActionsApplied,
		RollbackReference: prior.RollbackReference,
		ExecutedAt:        a.Now(),
	}
	return record, a.appendRecord(record)
}

func (a *Adapter) record(plan domain.ChangePlan, result domain.ExecutionResult, policy domain.Decision, mode domain.AdapterMode, applied []string, reason string) domain.ExecutionRecord {
	return domain.ExecutionRecord{
		ExecutionID:    a.NewID("exec"),
		PlanID:         plan.PlanID,
		Result:         result,
		PolicyDecision: policy,
		Mode:           mode,
		ActionsApplied: applied,
		ExecutedAt:     a.Now(),
		Reason:         reason,
	}
}

func (a *Adapter) appendRecord(record domain.ExecutionRecord) error {
	if a.Store == nil {
		return nil
	}
	if err := a.Store.Append(record); err != nil {
		a.logger().Error("failed to append execution record", "plan_id", record.PlanID, "error", err)
		return err
	}
	return nil
}

// simulateActionIDs returns the action IDs a dry-run would have applied,
// i.e. all of them: a simulation never fails partway through.
func simulateActionIDs(plan domain.ChangePlan) []string {
	ids := make([]string, 0, len(plan.Actions))
	for _, act := range plan.Actions {
		ids = append(ids, act.ActionID)
	}
	return ids
}
