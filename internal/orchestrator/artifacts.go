package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/icg-systems/icg/internal/domain"
)

// Artifact file names under <out-dir>/<session_id>/ (spec.md §6).
const (
	fileContextNormalized = "interactive-page-context.normalized.json"
	fileContextBridge     = "interactive-context-bridge.json"
	fileDialogue          = "interactive-dialogue-governance.json"
	fileChangeIntent      = "interactive-change-intent.json"
	filePageExplain       = "interactive-page-explain.md"
	fileCopilotAudit      = "interactive-copilot-audit.jsonl"
	fileChangePlan        = "interactive-change-plan.generated.json"
	fileChangePlanMD      = "interactive-change-plan.generated.md"
	fileChangePlanGate    = "interactive-change-plan-gate.json"
	fileChangePlanGateMD  = "interactive-change-plan-gate.md"
	fileRuntimePolicy     = "interactive-runtime-policy.json"
	fileAuthTier          = "interactive-authorization-tier.json"
	fileApprovalState     = "interactive-approval-state.json"
	fileApprovalEvents    = "interactive-approval-events.jsonl"
	fileMoquiAdapter      = "interactive-moqui-adapter.json"
	fileExecutionLedger   = "interactive-execution-ledger.jsonl"
	fileWorkOrder         = "interactive-work-order.json"
	fileWorkOrderMD       = "interactive-work-order.md"
	fileLoopSummary       = "interactive-customization-loop.summary.json"
)

func sessionDir(outDir, sessionID string) string {
	return filepath.Join(outDir, sessionID)
}

// loadJSON decodes path into a T. The second return is false when the
// artifact does not yet exist (not an error: the orchestrator's resume
// logic treats a missing artifact as "this stage hasn't run yet").
func loadJSON[T any](path string) (T, bool, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return v, false, nil
		}
		return v, false, fmt.Errorf("orchestrator: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false, fmt.Errorf("orchestrator: decode %s: %w", path, err)
	}
	return v, true, nil
}

// saveJSON writes v to path as indented JSON, creating parent directories
// as needed. Every stage commits its artifact this way before the next
// stage is allowed to read it (spec.md §4.12).
func saveJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("orchestrator: mkdir %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("orchestrator: encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("orchestrator: write %s: %w", path, err)
	}
	return nil
}

func saveText(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("orchestrator: mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("orchestrator: write %s: %w", path, err)
	}
	return nil
}

func appendLine(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("orchestrator: mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("orchestrator: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("orchestrator: write %s: %w", path, err)
	}
	return nil
}

func appendJSONLine(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("orchestrator: encode %s: %w", path, err)
	}
	return appendLine(path, string(data))
}

// loadOrCompute returns the artifact at path if it already exists
// (resume path); otherwise it runs compute, persists the result, and
// returns it (first-run path). The returned bool is true when the
// artifact was loaded from a prior run rather than freshly computed.
func loadOrCompute[T any](path string, compute func() (T, error)) (T, bool, error) {
	if cached, ok, err := loadJSON[T](path); err != nil {
		var zero T
		return zero, false, err
	} else if ok {
		return cached, true, nil
	}
	v, err := compute()
	if err != nil {
		var zero T
		return zero, false, err
	}
	if err := saveJSON(path, v); err != nil {
		var zero T
		return zero, false, err
	}
	return v, false, nil
}

// SessionDir returns the artifact directory for sessionID under o's
// configured out-dir, exported so the CLI's standalone stage subcommands
// (icg approval, icg adapter) can read and write the same artifacts Run
// produces without duplicating the layout.
func (o *Orchestrator) SessionDir(sessionID string) string {
	return sessionDir(o.Config.OutDir, sessionID)
}

// LoadApprovalState reads the approval-workflow artifact for sessionID.
// The bool is false when no approval has been initialized yet.
func (o *Orchestrator) LoadApprovalState(sessionID string) (domain.ApprovalState, bool, error) {
	return loadJSON[domain.ApprovalState](o.SessionDir(sessionID) + "/" + fileApprovalState)
}

// LoadChangePlan reads the synthesized plan artifact for sessionID.
func (o *Orchestrator) LoadChangePlan(sessionID string) (domain.ChangePlan, bool, error) {
	return loadJSON[domain.ChangePlan](o.SessionDir(sessionID) + "/" + fileChangePlan)
}

// PersistApproval writes an approval transition's resulting state and
// audit event to the session's artifacts and the ledger, exported for
// the CLI's standalone `icg approval` subcommands.
func (o *Orchestrator) PersistApproval(sessionID string, state domain.ApprovalState, event domain.ApprovalEvent) error {
	return o.persistApproval(o.SessionDir(sessionID), state, event)
}

// ResolvePasswordHash resolves the execute-transition password hash for
// state, exported for the CLI's `icg approval execute` subcommand.
func ResolvePasswordHash(state domain.ApprovalState) string {
	return resolvePasswordHash(state)
}

// LoadExecutionRecord reads the adapter execution artifact for sessionID.
func (o *Orchestrator) LoadExecutionRecord(sessionID string) (domain.ExecutionRecord, bool, error) {
	return loadJSON[domain.ExecutionRecord](o.SessionDir(sessionID) + "/" + fileMoquiAdapter)
}

// SaveExecutionRecord persists an adapter execution artifact (plus ledger
// append) for sessionID, exported for the CLI's standalone `icg adapter
// apply`/`icg adapter rollback` subcommands, which drive the adapter
// outside of a full Run.
func (o *Orchestrator) SaveExecutionRecord(sessionID string, record domain.ExecutionRecord) error {
	dir := o.SessionDir(sessionID)
	if err := saveJSON(dir+"/"+fileMoquiAdapter, record); err != nil {
		return err
	}
	return appendJSONLine(dir+"/"+fileExecutionLedger, record)
}
