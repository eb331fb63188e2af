package pagecontext

import (
	"testing"

	"github.com/icg-systems/icg/internal/config"
)

func testContract() config.ContextContract {
	return config.ContextContract{
		RequiredFields:       []string{"product", "module", "page"},
		MaxFieldCount:        10,
		MaxPayloadKB:         256,
		SensitiveKeyPatterns: []string{"password", "ssn"},
		ForbiddenKeys:        []string{"raw_sql"},
	}
}

func TestNormalize_GenericDialect(t *testing.T) {
	raw := RawPayload{
		Dialect: DialectGeneric,
		Payload: map[string]any{
			"product": "moqui",
			"module":  "orders",
			"page":    "order-list",
			"fields": []any{
				map[string]any{"name": "customer_password", "type": "string"},
				map[string]any{"name": "quantity", "type": "number"},
			},
		},
	}

	ctx, report, err := Normalize(raw, testContract(), true)
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if !report.ContractValid {
		t.Fatalf("expected contract valid, issues: %v", report.Issues)
	}
	if len(ctx.Fields) != 2 {
		t.Fatalf("Fields length = %d, want 2", len(ctx.Fields))
	}
	if !ctx.Fields[0].Sensitive {
		t.Error("customer_password field should be marked sensitive")
	}
	if ctx.Fields[1].Sensitive {
		t.Error("quantity field should not be marked sensitive")
	}
}

func TestNormalize_MoquiDialect(t *testing.T) {
	raw := RawPayload{
		Dialect: DialectMoqui,
		Payload: map[string]any{
			"productCode": "moqui",
			"moduleCode":  "orders",
			"screenPath":  "order-list",
			"screenFields": []any{
				map[string]any{"fieldName": "notes", "fieldType": "string"},
			},
		},
	}

	ctx, report, err := Normalize(raw, testContract(), true)
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if ctx.Product != "moqui" || ctx.Module != "orders" || ctx.Page != "order-list" {
		t.Errorf("mapped context = %+v, want product/module/page populated", ctx)
	}
	if report.FieldCount != 1 {
		t.Errorf("FieldCount = %d, want 1", report.FieldCount)
	}
}

func TestNormalize_DedupesCaseInsensitiveFieldNames(t *testing.T) {
	raw := RawPayload{
		Dialect: DialectGeneric,
		Payload: map[string]any{
			"product": "moqui",
			"module":  "orders",
			"page":    "order-list",
			"fields": []any{
				map[string]any{"name": "Quantity", "type": "number"},
				map[string]any{"name": "quantity", "type": "number"},
			},
		},
	}

	ctx, report, err := Normalize(raw, testContract(), true)
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if len(ctx.Fields) != 1 {
		t.Fatalf("Fields length = %d, want 1 after dedup", len(ctx.Fields))
	}
	if len(report.DroppedDuplicateFields) != 1 {
		t.Errorf("DroppedDuplicateFields length = %d, want 1", len(report.DroppedDuplicateFields))
	}
}

func TestNormalize_StrictFailsOnMissingRequiredField(t *testing.T) {
	raw := RawPayload{
		Dialect: DialectGeneric,
		Payload: map[string]any{
			"product": "moqui",
			"module":  "orders",
			// page missing
		},
	}

	_, _, err := Normalize(raw, testContract(), true)
	if err == nil {
		t.Fatal("expected ContractViolationError for missing required field")
	}
	if _, ok := err.(*ContractViolationError); !ok {
		t.Fatalf("error type = %T, want *ContractViolationError", err)
	}
}

func TestNormalize_NonStrictRecordsIssuesWithoutFailing(t *testing.T) {
	raw := RawPayload{
		Dialect: DialectGeneric,
		Payload: map[string]any{
			"product": "moqui",
			"module":  "orders",
		},
	}

	_, report, err := Normalize(raw, testContract(), false)
	if err != nil {
		t.Fatalf("non-strict Normalize() should not error, got: %v", err)
	}
	if report.ContractValid {
		t.Error("expected ContractValid=false with issues recorded")
	}
	if len(report.Issues) == 0 {
		t.Error("expected at least one issue recorded")
	}
}

func TestNormalize_ForbiddenKeyDetected(t *testing.T) {
	raw := RawPayload{
		Dialect: DialectGeneric,
		Payload: map[string]any{
			"product": "moqui",
			"module":  "orders",
			"page":    "order-list",
			"fields": []any{
				map[string]any{"name": "raw_sql", "type": "string"},
			},
		},
	}

	_, report, err := Normalize(raw, testContract(), false)
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if report.ContractValid {
		t.Error("expected ContractValid=false due to forbidden key")
	}
}
