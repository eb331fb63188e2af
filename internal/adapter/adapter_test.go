package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/icg-systems/icg/internal/config"
	"github.com/icg-systems/icg/internal/domain"
)

type fakeClient struct {
	applied []string
	err     error
}

func (f *fakeClient) ApplyActions(ctx context.Context, plan domain.ChangePlan) ([]string, error) {
	return f.applied, f.err
}

type fakeStore struct {
	records []domain.ExecutionRecord
	lastOK  domain.ExecutionRecord
	hasOK   bool
}

func (f *fakeStore) Append(record domain.ExecutionRecord) error {
	f.records = append(f.records, record)
	return nil
}

func (f *fakeStore) FindLastSuccess(planID string) (domain.ExecutionRecord, bool, error) {
	if f.hasOK && f.lastOK.PlanID == planID {
		return f.lastOK, true, nil
	}
	return domain.ExecutionRecord{}, false, nil
}

func testAdapter(client MoquiClient, store ExecutionStore) *Adapter {
	return &Adapter{
		Client:  client,
		Store:   store,
		Catalog: config.GateCatalog{},
		NewID:   func(prefix string) string { return prefix + "-fixed" },
		Now:     func() time.Time { return time.Unix(0, 0).UTC() },
	}
}

func lowRiskAllowPlan() domain.ChangePlan {
	return domain.ChangePlan{
		PlanID:        "plan-1",
		RiskLevel:     domain.RiskLow,
		ExecutionMode: domain.ExecutionApply,
		Actions: []domain.Action{
			{ActionID: "act-1", Type: domain.ActionAnalysisOnly},
		},
	}
}

func TestApply_DryRunSimulatesAllActions(t *testing.T) {
	store := &fakeStore{}
	a := testAdapter(nil, store)
	record, err := a.Apply(context.Background(), lowRiskAllowPlan(), ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if record.Result != domain.ExecutionSuccess {
		t.Errorf("Result = %q, want success", record.Result)
	}
	if record.Mode != domain.AdapterDryRun {
		t.Errorf("Mode = %q, want dry-run", record.Mode)
	}
	if len(record.ActionsApplied) != 1 {
		t.Errorf("ActionsApplied = %v, want 1 entry", record.ActionsApplied)
	}
	if len(store.records) != 1 {
		t.Errorf("expected one appended record, got %d", len(store.records))
	}
}

func TestApply_SuggestionModeRefusedWithoutOverride(t *testing.T) {
	store := &fakeStore{}
	a := testAdapter(nil, store)
	plan := lowRiskAllowPlan()
	plan.ExecutionMode = domain.ExecutionSuggestion

	record, err := a.Apply(context.Background(), plan, ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if record.Result != domain.ExecutionSkipped {
		t.Errorf("Result = %q, want skipped", record.Result)
	}
}

func TestApply_SuggestionModeAllowedWithOverride(t *testing.T) {
	store := &fakeStore{}
	a := testAdapter(nil, store)
	plan := lowRiskAllowPlan()
	plan.ExecutionMode = domain.ExecutionSuggestion

	record, err := a.Apply(context.Background(), plan, ApplyOptions{AllowSuggestionApply: true})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if record.Result != domain.ExecutionSuccess {
		t.Errorf("Result = %q, want success", record.Result)
	}
}

func TestApply_DenyGateDecisionSkipsExecution(t *testing.T) {
	store := &fakeStore{}
	a := testAdapter(nil, store)
	a.Catalog.DenyActionTypes = []domain.ActionType{domain.ActionAnalysisOnly}

	record, err := a.Apply(context.Background(), lowRiskAllowPlan(), ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if record.Result != domain.ExecutionSkipped {
		t.Errorf("Result = %q, want skipped", record.Result)
	}
	if record.PolicyDecision != domain.DecisionDeny {
		t.Errorf("PolicyDecision = %q, want deny", record.PolicyDecision)
	}
}

func TestApply_LiveApplyCallsClient(t *testing.T) {
	store := &fakeStore{}
	client := &fakeClient{applied: []string{"act-1"}}
	a := testAdapter(client, store)

	record, err := a.Apply(context.Background(), lowRiskAllowPlan(), ApplyOptions{LiveApply: true})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if record.Mode != domain.AdapterLiveApply {
		t.Errorf("Mode = %q, want live-apply", record.Mode)
	}
	if record.Result != domain.ExecutionSuccess {
		t.Errorf("Result = %q, want success", record.Result)
	}
}

func TestApply_LiveApplyClientErrorFailsRecord(t *testing.T) {
	store := &fakeStore{}
	client := &fakeClient{err: errors.New("erp unreachable")}
	a := testAdapter(client, store)

	record, err := a.Apply(context.Background(), lowRiskAllowPlan(), ApplyOptions{LiveApply: true})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if record.Result != domain.ExecutionFailed {
		t.Errorf("Result = %q, want failed", record.Result)
	}
}

func TestApplyLowRisk_RefusesMediumRisk(t *testing.T) {
	store := &fakeStore{}
	a := testAdapter(nil, store)
	plan := lowRiskAllowPlan()
	plan.RiskLevel = domain.RiskMedium

	record, err := a.ApplyLowRisk(context.Background(), plan, ApplyOptions{})
	if err != nil {
		t.Fatalf("ApplyLowRisk() error: %v", err)
	}
	if record.Result != domain.ExecutionSkipped {
		t.Errorf("Result = %q, want skipped for medium risk", record.Result)
	}
}

func TestApplyLowRisk_AllowsLowRiskAllowDecision(t *testing.T) {
	store := &fakeStore{}
	a := testAdapter(nil, store)

	record, err := a.ApplyLowRisk(context.Background(), lowRiskAllowPlan(), ApplyOptions{})
	if err != nil {
		t.Fatalf("ApplyLowRisk() error: %v", err)
	}
	if record.Result != domain.ExecutionSuccess {
		t.Errorf("Result = %q, want success", record.Result)
	}
}

func TestRollback_NoPriorSuccessFails(t *testing.T) {
	store := &fakeStore{}
	a := testAdapter(nil, store)

	record, err := a.Rollback("plan-missing")
	if err != nil {
		t.Fatalf("Rollback() error: %v", err)
	}
	if record.Result != domain.ExecutionFailed {
		t.Errorf("Result = %q, want failed", record.Result)
	}
}

func TestRollback_PriorSuccessRollsBack(t *testing.T) {
	store := &fakeStore{
		hasOK: true,
		lastOK: domain.ExecutionRecord{
			ExecutionID:       "exec-old",
			PlanID:            "plan-1",
			Result:            domain.ExecutionSuccess,
			ActionsApplied:    []string{"act-1"},
			RollbackReference: "backup-123",
		},
	}
	a := testAdapter(nil, store)

	record, err := a.Rollback("plan-1")
	if err != nil {
		t.Fatalf("Rollback() error: %v", err)
	}
	if record.Result != domain.ExecutionRolledBack {
		t.Errorf("Result = %q, want rolled-back", record.Result)
	}
	if record.RollbackReference != "backup-123" {
		t.Errorf("RollbackReference = %q, want backup-123", record.RollbackReference)
	}
}
