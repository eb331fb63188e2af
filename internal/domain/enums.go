// Package domain holds the closed enumerations, ID generation, and the
// shared decision shape used across every governance stage. Centralizing
// these here is what lets the stages be modeled as a common interface
// (see Decision below) rather than duck-typed on free-form JSON.
package domain

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ExecutionMode is the closed set a ChangePlan may run under.
type ExecutionMode string

const (
	ExecutionSuggestion ExecutionMode = "suggestion"
	ExecutionApply      ExecutionMode = "apply"
)

// RiskLevel is the closed set of plan risk classifications. "critical" is
// accepted as an input alias for "high" (see NormalizeRiskLevel).
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// riskRank gives the total order low < medium < high used by every stage
// that must never downgrade a derived minimum risk.
var riskRank = map[RiskLevel]int{
	RiskLow:    0,
	RiskMedium: 1,
	RiskHigh:   2,
}

// NormalizeRiskLevel lowercases and aliases "critical" to "high". Unknown
// values fall through (lowercased) so callers can still detect and reject them.
func NormalizeRiskLevel(s string) RiskLevel {
	s = strings.ToLower(s)
	switch RiskLevel(s) {
	case RiskLow, RiskMedium, RiskHigh:
		return RiskLevel(s)
	case "critical":
		return RiskHigh
	default:
		return RiskLevel(s)
	}
}

// Less reports whether r is strictly lower risk than other.
func (r RiskLevel) Less(other RiskLevel) bool {
	return riskRank[r] < riskRank[other]
}

// AtLeast reports whether r is at least as risky as other.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return riskRank[r] >= riskRank[other]
}

// MaxRisk returns the higher of two risk levels.
func MaxRisk(a, b RiskLevel) RiskLevel {
	if a.AtLeast(b) {
		return a
	}
	return b
}

// Decision is the closed outcome of every governance stage (dialogue gate,
// plan gate, runtime evaluator, authorization tier). Ordered deny >
// review-required > allow; combining stages never upgrades a deny to an
// allow (spec "monotonic decision" property).
type Decision string

const (
	DecisionAllow   Decision = "allow"
	DecisionReview  Decision = "review-required"
	DecisionDeny    Decision = "deny"
	DialogueAllow   Decision = "allow"
	DialogueClarify Decision = "clarify"
	DialogueDeny    Decision = "deny"
)

var decisionRank = map[Decision]int{
	DecisionAllow:  0,
	DecisionReview: 1,
	DecisionDeny:   2,
}

// Combine returns the more severe of two decisions, implementing the
// monotonic-decision property: deny > review-required > allow.
func Combine(a, b Decision) Decision {
	if decisionRank[a] >= decisionRank[b] {
		return a
	}
	return b
}

// RuntimeMode is the closed set of runtime operating modes.
type RuntimeMode string

const (
	RuntimeUserAssist RuntimeMode = "user-assist"
	RuntimeOpsFix     RuntimeMode = "ops-fix"
	RuntimeFeatureDev RuntimeMode = "feature-dev"
)

// RuntimeEnvironment is the closed set of deployment environments.
type RuntimeEnvironment string

const (
	EnvDev     RuntimeEnvironment = "dev"
	EnvStaging RuntimeEnvironment = "staging"
	EnvProd    RuntimeEnvironment = "prod"
)

// UIMode is the closed set of calling UI surfaces.
type UIMode string

const (
	UIUserApp      UIMode = "user-app"
	UIOpsConsole   UIMode = "ops-console"
	UIDevWorkbench UIMode = "dev-workbench"
)

// DialogueProfile is the closed set of dialogue safety personas.
type DialogueProfile string

const (
	ProfileBusinessUser     DialogueProfile = "business-user"
	ProfileSystemMaintainer DialogueProfile = "system-maintainer"
)

// FeedbackChannel is the closed set of feedback submission channels.
type FeedbackChannel string

const (
	ChannelUI    FeedbackChannel = "ui"
	ChannelCLI   FeedbackChannel = "cli"
	ChannelAPI   FeedbackChannel = "api"
	ChannelOther FeedbackChannel = "other"
)

// BusinessMode classifies which persona drove a session, used on every
// Signal row.
type BusinessMode string

const (
	BusinessUserMode BusinessMode = "user-mode"
	BusinessOpsMode  BusinessMode = "ops-mode"
	BusinessDevMode  BusinessMode = "dev-mode"
	BusinessUnknown  BusinessMode = "unknown"
)

// BusinessModeFor derives the business_mode dimension from runtime mode,
// falling back to unknown for anything not in the closed set.
func BusinessModeFor(rm RuntimeMode) BusinessMode {
	switch rm {
	case RuntimeUserAssist:
		return BusinessUserMode
	case RuntimeOpsFix:
		return BusinessOpsMode
	case RuntimeFeatureDev:
		return BusinessDevMode
	default:
		return BusinessUnknown
	}
}

// ActionType is the closed set of change-plan action types (spec.md §6).
type ActionType string

const (
	ActionAnalysisOnly              ActionType = "analysis_only"
	ActionWorkflowApprovalChain     ActionType = "workflow_approval_chain_change"
	ActionUpdateRuleThreshold       ActionType = "update_rule_threshold"
	ActionUIFormFieldAdjust         ActionType = "ui_form_field_adjust"
	ActionInventoryAdjustmentBulk   ActionType = "inventory_adjustment_bulk"
	ActionPaymentRuleChange         ActionType = "payment_rule_change"
	ActionBulkDeleteWithoutFilter   ActionType = "bulk_delete_without_filter"
	ActionPermissionGrantSuperAdmin ActionType = "permission_grant_super_admin"
	ActionCredentialExport          ActionType = "credential_export"
)

// AllActionTypes enumerates the closed action-type set in a fixed order,
// used for deterministic iteration in the Plan Synthesizer and tests.
var AllActionTypes = []ActionType{
	ActionAnalysisOnly,
	ActionWorkflowApprovalChain,
	ActionUpdateRuleThreshold,
	ActionUIFormFieldAdjust,
	ActionInventoryAdjustmentBulk,
	ActionPaymentRuleChange,
	ActionBulkDeleteWithoutFilter,
	ActionPermissionGrantSuperAdmin,
	ActionCredentialExport,
}

// ApprovalStatus is the closed set of approval-workflow FSM states
// (spec.md §4.9).
type ApprovalStatus string

const (
	ApprovalDraft     ApprovalStatus = "draft"
	ApprovalSubmitted ApprovalStatus = "submitted"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalRejected  ApprovalStatus = "rejected"
	ApprovalExecuted  ApprovalStatus = "executed"
	ApprovalVerified  ApprovalStatus = "verified"
	ApprovalArchived  ApprovalStatus = "archived"
)

// Priority is the closed set of priority levels shared by ChangeIntent and
// WorkOrder.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// WorkOrderStatus is the closed set of work-order rollup statuses.
type WorkOrderStatus string

const (
	StatusBlocked        WorkOrderStatus = "blocked"
	StatusPendingReview  WorkOrderStatus = "pending-review"
	StatusReadyForApply  WorkOrderStatus = "ready-for-apply"
	StatusCompleted      WorkOrderStatus = "completed"
)

// ExitCode mirrors spec.md §6's orchestrator exit codes.
type ExitCode int

const (
	ExitSuccess       ExitCode = 0
	ExitUnexpected    ExitCode = 1
	ExitPolicyGate    ExitCode = 2
)

// --- ID generation -------------------------------------------------------

// entropySource is package-level so ULID generation stays monotonic within
// a process without requiring every caller to thread one through.
var entropySource = ulid.Monotonic(rand.Reader, 0)

// NewID generates a typed-prefix, sortable, unique ID, e.g. "intent-01HF..."
// ULIDs give us the "UUID-like strings with typed prefixes" required by
// spec.md §3 while remaining lexically sortable by creation time, which the
// teacher's plain random hex IDs (internal/auth.generateSecret) did not
// provide.
func NewID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, ulid.MustNew(ulid.Timestamp(time.Now()), entropySource).String())
}
