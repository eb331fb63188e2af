package intent

import (
	"strings"
	"testing"
	"time"

	"github.com/icg-systems/icg/internal/domain"
)

func fixedID(prefix string) string { return prefix + "-test-id" }

func TestBuild_DerivesHighPriorityAndRiskHint(t *testing.T) {
	p := Params{
		SessionID:    "sess-1",
		UserID:       "user-1",
		BusinessGoal: "urgent: must delete the stale permission records without downtime",
		Context: domain.PageContext{
			Product: "moqui", Module: "orders", Page: "order-list",
		},
		SensitiveKeyPatterns: []string{"password"},
	}

	result, err := Build(p, fixedID, time.Unix(0, 0).UTC())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if result.Intent.Priority != domain.PriorityHigh {
		t.Errorf("Priority = %q, want high", result.Intent.Priority)
	}
	if result.Intent.Metadata.RiskHint != domain.RiskHigh {
		t.Errorf("RiskHint = %q, want high", result.Intent.Metadata.RiskHint)
	}
	if len(result.Intent.Constraints) == 0 {
		t.Error("expected at least one extracted constraint")
	}
	if !strings.Contains(result.AuditLine, "sanitized_context_sha256") {
		t.Error("audit line missing sanitized_context_sha256 field")
	}
}

func TestBuild_RedactsSensitiveContextFromHashInput(t *testing.T) {
	p := Params{
		SessionID:    "sess-1",
		UserID:       "user-1",
		BusinessGoal: "adjust layout",
		Context: domain.PageContext{
			Product: "moqui", Module: "orders", Page: "order-list",
			Fields: []domain.Field{{Name: "password", Sensitive: true}},
		},
		SensitiveKeyPatterns: []string{"password"},
	}

	result, err := Build(p, fixedID, time.Unix(0, 0).UTC())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if result.Intent.Metadata.ContextSummary.SensitiveFieldCount != 1 {
		t.Errorf("SensitiveFieldCount = %d, want 1", result.Intent.Metadata.ContextSummary.SensitiveFieldCount)
	}
}

func TestBuild_LowPriorityWhenGoalSaysOptional(t *testing.T) {
	p := Params{
		BusinessGoal: "optional: eventually rename this label",
		Context:      domain.PageContext{Product: "moqui", Module: "orders", Page: "order-list"},
	}
	result, err := Build(p, fixedID, time.Unix(0, 0).UTC())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if result.Intent.Priority != domain.PriorityLow {
		t.Errorf("Priority = %q, want low", result.Intent.Priority)
	}
}

func TestBuild_CarriesContractValidationFromBridgeReport(t *testing.T) {
	p := Params{
		BusinessGoal:   "Adjust order screen field layout",
		Context:        domain.PageContext{Product: "moqui", Module: "orders", Page: "order-list"},
		ContractValid:  false,
		ContractIssues: []string{"forbidden key: current_state.password"},
	}
	result, err := Build(p, fixedID, time.Unix(0, 0).UTC())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	cv := result.Intent.Metadata.ContractValidation
	if cv.Valid {
		t.Error("ContractValidation.Valid = true, want false")
	}
	if len(cv.Issues) != 1 || cv.Issues[0] != "forbidden key: current_state.password" {
		t.Errorf("ContractValidation.Issues = %v, want the bridge's reported issue", cv.Issues)
	}
}

func TestBuild_ContractValidTrueWhenNoIssues(t *testing.T) {
	p := Params{
		BusinessGoal:  "Adjust order screen field layout",
		Context:       domain.PageContext{Product: "moqui", Module: "orders", Page: "order-list"},
		ContractValid: true,
	}
	result, err := Build(p, fixedID, time.Unix(0, 0).UTC())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if !result.Intent.Metadata.ContractValidation.Valid {
		t.Error("ContractValidation.Valid = false, want true")
	}
}

func TestExtractConstraints_CapsAtEightUnique(t *testing.T) {
	goal := strings.Repeat("must do thing. ", 10)
	constraints := extractConstraints(goal)
	if len(constraints) > 8 {
		t.Errorf("constraints length = %d, want <= 8", len(constraints))
	}
}
