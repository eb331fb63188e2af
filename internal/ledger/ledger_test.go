package ledger

import (
	"testing"
	"time"

	"github.com/icg-systems/icg/internal/domain"
)

func TestStore_AppendAndFindLastSuccess(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = store.Close() }()

	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	records := []domain.ExecutionRecord{
		{ExecutionID: "exec-1", PlanID: "plan-a", Result: domain.ExecutionFailed, PolicyDecision: domain.DecisionAllow, Mode: domain.AdapterLiveApply, ExecutedAt: now},
		{ExecutionID: "exec-2", PlanID: "plan-a", Result: domain.ExecutionSuccess, PolicyDecision: domain.DecisionAllow, Mode: domain.AdapterLiveApply, ExecutedAt: now.Add(time.Hour)},
		{ExecutionID: "exec-3", PlanID: "plan-b", Result: domain.ExecutionSuccess, PolicyDecision: domain.DecisionAllow, Mode: domain.AdapterLiveApply, ExecutedAt: now.Add(2 * time.Hour)},
	}
	for _, r := range records {
		if err := store.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, found, err := store.FindLastSuccess("plan-a")
	if err != nil || !found {
		t.Fatalf("FindLastSuccess: found=%v err=%v", found, err)
	}
	if got.ExecutionID != "exec-2" {
		t.Errorf("expected exec-2, got %s", got.ExecutionID)
	}

	_, found, err = store.FindLastSuccess("plan-missing")
	if err != nil {
		t.Fatalf("FindLastSuccess: %v", err)
	}
	if found {
		t.Errorf("expected no success for unknown plan")
	}
}

func TestStore_ExecutionsForPlanPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = store.Close() }()

	for i, id := range []string{"exec-1", "exec-2", "exec-3"} {
		r := domain.ExecutionRecord{ExecutionID: id, PlanID: "plan-a", Result: domain.ExecutionSuccess, ExecutedAt: time.Now().Add(time.Duration(i) * time.Minute)}
		if err := store.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	records, err := store.ExecutionsForPlan("plan-a")
	if err != nil {
		t.Fatalf("ExecutionsForPlan: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].ExecutionID != "exec-1" || records[2].ExecutionID != "exec-3" {
		t.Errorf("unexpected order: %+v", records)
	}
}

func TestStore_SignalsWindowFilter(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = store.Close() }()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		sig := domain.Signal{Timestamp: base.AddDate(0, i, 0), SessionID: "s", Stage: "runtime", Decision: domain.DecisionAllow}
		if err := store.AppendSignal(sig); err != nil {
			t.Fatalf("AppendSignal: %v", err)
		}
	}

	from := base.AddDate(0, 1, 0)
	to := base.AddDate(0, 3, 0)
	signals, err := store.Signals(from, to)
	if err != nil {
		t.Fatalf("Signals: %v", err)
	}
	if len(signals) != 3 {
		t.Fatalf("expected 3 signals in window, got %d", len(signals))
	}
}

func TestStore_FeedbackRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = store.Close() }()

	f := domain.Feedback{FeedbackID: "fb-1", Timestamp: time.Now(), Score: 4.5, Channel: domain.FeedbackChannel("in-app")}
	if err := store.AppendFeedback(f); err != nil {
		t.Fatalf("AppendFeedback: %v", err)
	}
	got, err := store.Feedback(time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Feedback: %v", err)
	}
	if len(got) != 1 || got[0].FeedbackID != "fb-1" {
		t.Errorf("expected round-tripped feedback, got %+v", got)
	}
}

func TestStore_ApprovalEventsFilterByWorkflow(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = store.Close() }()

	events := []domain.ApprovalEvent{
		{WorkflowID: "wf-1", Action: "submit", Timestamp: time.Now()},
		{WorkflowID: "wf-2", Action: "submit", Timestamp: time.Now()},
		{WorkflowID: "wf-1", Action: "approve", Timestamp: time.Now()},
	}
	for _, e := range events {
		if err := store.AppendApprovalEvent(e); err != nil {
			t.Fatalf("AppendApprovalEvent: %v", err)
		}
	}
	got, err := store.ApprovalEvents("wf-1")
	if err != nil {
		t.Fatalf("ApprovalEvents: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events for wf-1, got %d", len(got))
	}
}

func TestVerifyChain_DetectsTamperedHash(t *testing.T) {
	seed := ComputeChainSeed("plan-a")
	r1 := domain.ExecutionRecord{ExecutionID: "exec-1", PlanID: "plan-a", Result: domain.ExecutionSuccess, PrevHash: seed}
	r1.Hash = ComputeExecutionHash(r1)
	r2 := domain.ExecutionRecord{ExecutionID: "exec-2", PlanID: "plan-a", Result: domain.ExecutionSuccess, PrevHash: r1.Hash}
	r2.Hash = ComputeExecutionHash(r2)

	valid, brokenAt := VerifyChain([]domain.ExecutionRecord{r1, r2})
	if !valid || brokenAt != -1 {
		t.Fatalf("expected valid chain, got valid=%v brokenAt=%d", valid, brokenAt)
	}

	r2.Hash = "tampered"
	valid, brokenAt = VerifyChain([]domain.ExecutionRecord{r1, r2})
	if valid || brokenAt != 1 {
		t.Errorf("expected tamper detected at index 1, got valid=%v brokenAt=%d", valid, brokenAt)
	}
}
