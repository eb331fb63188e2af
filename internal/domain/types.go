package domain

import "time"

// Field is one entry in a PageContext's field set. Name is unique within
// the set (case-insensitive); order is not significant.
type Field struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Sensitive   bool   `json:"sensitive"`
	Description string `json:"description,omitempty"`
}

// PageContext is the canonical, dialect-independent shape the Context
// Bridge normalizes raw provider payloads into (spec.md §3).
type PageContext struct {
	Product         string   `json:"product"`
	Module          string   `json:"module"`
	Page            string   `json:"page"`
	Entity          string   `json:"entity,omitempty"`
	SceneID         string   `json:"scene_id,omitempty"`
	WorkflowNode    string   `json:"workflow_node,omitempty"`
	Fields          []Field  `json:"fields"`
	CurrentState    any      `json:"current_state"`
	SceneWorkspace  any      `json:"scene_workspace,omitempty"`
	AssistantPanel  any      `json:"assistant_panel,omitempty"`
}

// ContextRef is the subset of PageContext that a ChangeIntent references
// rather than embeds.
type ContextRef struct {
	Product      string `json:"product"`
	Module       string `json:"module"`
	Page         string `json:"page"`
	Entity       string `json:"entity,omitempty"`
	SceneID      string `json:"scene_id,omitempty"`
	WorkflowNode string `json:"workflow_node,omitempty"`
	Screen       string `json:"screen,omitempty"`
	Component    string `json:"component,omitempty"`
}

// IntentMetadata carries the Intent Builder's derived, read-only summary.
type IntentMetadata struct {
	Mode               string                     `json:"mode"` // always "read-only"
	RiskHint           RiskLevel                  `json:"risk_hint"`
	ContextSummary     ContextSummary             `json:"context_summary"`
	ContractValidation ContractValidationSummary  `json:"contract_validation"`
}

// ContractValidationSummary carries the Context Bridge's contract check
// result forward into the intent, so a reader of the intent alone can see
// whether the page context it was built from was contract-valid.
type ContractValidationSummary struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues,omitempty"`
}

// ContextSummary counts are emitted instead of raw (possibly sensitive)
// context content.
type ContextSummary struct {
	FieldCount            int `json:"field_count"`
	SensitiveFieldCount    int `json:"sensitive_field_count"`
	OntologyEntityCount    int `json:"ontology_entity_count"`
	OntologyRelationCount  int `json:"ontology_relation_count"`
	BusinessRuleCount      int `json:"business_rule_count"`
	DecisionPolicyCount    int `json:"decision_policy_count"`
	ExplorerIdentifierCount  int `json:"explorer_identifier_count"`
	AssistantIdentifierCount int `json:"assistant_identifier_count"`
}

// ChangeIntent is immutable once created (spec.md §3).
type ChangeIntent struct {
	IntentID    string         `json:"intent_id"`
	SessionID   string         `json:"session_id"`
	UserID      string         `json:"user_id"`
	ContextRef  ContextRef     `json:"context_ref"`
	BusinessGoal string        `json:"business_goal"`
	Constraints []string       `json:"constraints"`
	Priority    Priority       `json:"priority"`
	CreatedAt   time.Time      `json:"created_at"`
	Metadata    IntentMetadata `json:"metadata"`
}

// Action is one unit of a ChangePlan. Type is drawn from the closed
// ActionType set.
type Action struct {
	ActionID                 string     `json:"action_id"`
	Type                     ActionType `json:"type"`
	TouchesSensitiveData     bool       `json:"touches_sensitive_data"`
	RequiresPrivilegeEscalation bool    `json:"requires_privilege_escalation"`
	Irreversible             bool       `json:"irreversible"`
}

// RollbackPlan describes how a ChangePlan's effects can be undone.
type RollbackPlan struct {
	Type      string `json:"type"` // backup-restore | config-revert
	Reference string `json:"reference,omitempty"`
	Note      string `json:"note,omitempty"`
}

// ApprovalBlock is the ChangePlan's approval-requirement summary, distinct
// from the full ApprovalState FSM record.
type ApprovalBlock struct {
	Status       string   `json:"status"` // not-required | pending | approved | rejected
	DualApproved bool     `json:"dual_approved"`
	Approvers    []string `json:"approvers"`
}

// AuthorizationBlock is the ChangePlan's authorization requirement summary.
type AuthorizationBlock struct {
	PasswordRequired bool     `json:"password_required"`
	PasswordScope    []string `json:"password_scope,omitempty"`
	PasswordHashEnv  string   `json:"password_hash_env,omitempty"`
	PasswordTTLSeconds int    `json:"password_ttl_seconds,omitempty"`
	ReasonCodes      []string `json:"reason_codes"`
}

// SecurityBlock carries masking/secret/backup facts the Plan Gate checks.
type SecurityBlock struct {
	MaskingApplied          bool   `json:"masking_applied"`
	PlaintextSecretsInPayload bool `json:"plaintext_secrets_in_payload"`
	BackupReference         string `json:"backup_reference,omitempty"`
}

// ChangePlan is the central artifact synthesized by the Plan Synthesizer
// and consumed by every downstream stage (spec.md §3).
type ChangePlan struct {
	PlanID           string              `json:"plan_id"`
	IntentID         string              `json:"intent_id"`
	RiskLevel        RiskLevel           `json:"risk_level"`
	ExecutionMode    ExecutionMode       `json:"execution_mode"`
	Scope            ContextRef          `json:"scope"`
	Actions          []Action            `json:"actions"`
	ImpactAssessment string              `json:"impact_assessment"`
	VerificationChecks []string          `json:"verification_checks"`
	RollbackPlan     RollbackPlan        `json:"rollback_plan"`
	Approval         ApprovalBlock       `json:"approval"`
	Authorization    AuthorizationBlock  `json:"authorization"`
	Security         SecurityBlock       `json:"security"`
	CreatedAt        time.Time           `json:"created_at"`
}

// HasAction reports whether the plan contains an action of the given type.
func (p ChangePlan) HasAction(t ActionType) bool {
	for _, a := range p.Actions {
		if a.Type == t {
			return true
		}
	}
	return false
}

// AnyAction reports whether any action satisfies pred.
func (p ChangePlan) AnyAction(pred func(Action) bool) bool {
	for _, a := range p.Actions {
		if pred(a) {
			return true
		}
	}
	return false
}

// Violation is one failed check/rule surfaced by a governance stage.
type Violation struct {
	ID       string   `json:"id"`
	Severity Decision `json:"severity"` // deny | review-required
	Message  string   `json:"message"`
}

// StageResult is the common shape every governance stage's output
// satisfies (spec.md §9 design note: "Polymorphism over decisions").
type StageResult interface {
	Decide() Decision
	Reasons() []string
	Violations() []Violation
}

// ApprovalActors records who performed each lifecycle transition.
type ApprovalActors struct {
	Initiator string `json:"initiator,omitempty"`
	Approver  string `json:"approver,omitempty"`
	Executor  string `json:"executor,omitempty"`
}

// RoleRequirements names roles allowed to perform each transition.
type RoleRequirements struct {
	Submit  []string `json:"submit"`
	Approve []string `json:"approve"`
	Execute []string `json:"execute"`
	Verify  []string `json:"verify"`
}

// PasswordRequirement configures the execute-transition password guard.
type PasswordRequirement struct {
	Required   bool       `json:"required"`
	HashEnv    string     `json:"hash_env,omitempty"`
	TTLSeconds int        `json:"ttl_seconds,omitempty"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

// ApprovalState is the Approval Workflow FSM's persisted record
// (spec.md §3 / §4.9).
type ApprovalState struct {
	WorkflowID       string              `json:"workflow_id"`
	PlanID           string              `json:"plan_id"`
	Status           ApprovalStatus      `json:"status"`
	Approvals        ApprovalActors      `json:"approvals"`
	RoleRequirements RoleRequirements    `json:"role_requirements"`
	Password         PasswordRequirement `json:"password"`
	ApprovalRequired bool                `json:"approval_required"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// ApprovalEvent is one append-only audit line for an approval transition
// (successful or blocked).
type ApprovalEvent struct {
	WorkflowID string    `json:"workflow_id"`
	PlanID     string    `json:"plan_id"`
	Action     string    `json:"action"` // init | submit | approve | reject | execute | verify | resubmit
	Actor      string    `json:"actor"`
	ActorRole  string    `json:"actor_role,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Blocked    bool      `json:"blocked"`
	Reason     string    `json:"reason,omitempty"`
	FromStatus ApprovalStatus `json:"from_status,omitempty"`
	ToStatus   ApprovalStatus `json:"to_status,omitempty"`
}

// ExecutionResult is the closed set of adapter execution outcomes.
type ExecutionResult string

const (
	ExecutionSuccess    ExecutionResult = "success"
	ExecutionFailed     ExecutionResult = "failed"
	ExecutionSkipped    ExecutionResult = "skipped"
	ExecutionRolledBack ExecutionResult = "rolled-back"
)

// AdapterMode distinguishes a dry-run simulation from a live ERP call.
type AdapterMode string

const (
	AdapterDryRun     AdapterMode = "dry-run"
	AdapterLiveApply  AdapterMode = "live-apply"
)

// ExecutionRecord is one append-only ledger row (spec.md §3).
type ExecutionRecord struct {
	ExecutionID       string          `json:"execution_id"`
	PlanID            string          `json:"plan_id"`
	Result            ExecutionResult `json:"result"`
	PolicyDecision    Decision        `json:"policy_decision"`
	Mode              AdapterMode     `json:"mode"`
	ActionsApplied    []string        `json:"actions_applied"`
	RollbackReference string          `json:"rollback_reference,omitempty"`
	ExecutedAt        time.Time       `json:"executed_at"`
	Reason            string          `json:"reason,omitempty"`
	PrevHash          string          `json:"prev_hash,omitempty"`
	Hash              string          `json:"hash,omitempty"`
}

// WorkOrder aggregates every stage's outcome into the auditor-facing
// per-session ticket (spec.md §3 / §4.11).
type WorkOrder struct {
	WorkOrderID  string          `json:"work_order_id"`
	SessionID    string          `json:"session_id"`
	PlanID       string          `json:"plan_id,omitempty"`
	Scope        ContextRef      `json:"scope"`
	Status       WorkOrderStatus `json:"status"`
	Priority     Priority        `json:"priority"`
	Decisions    map[string]Decision `json:"decisions"`
	NextActions  []string        `json:"next_actions"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Signal is one append-only JSONL governance-stream row (spec.md §3).
type Signal struct {
	Timestamp    time.Time    `json:"timestamp"`
	SessionID    string       `json:"session_id"`
	Stage        string       `json:"stage"` // dialogue_authorization | runtime | authorization_tier | matrix
	BusinessMode BusinessMode `json:"business_mode"`
	Decision     Decision     `json:"decision"`
	Detail       any          `json:"detail,omitempty"`
}

// Feedback is one append-only user-feedback JSONL row (spec.md §6).
type Feedback struct {
	FeedbackID  string          `json:"feedback_id"`
	Timestamp   time.Time       `json:"timestamp"`
	UserID      string          `json:"user_id"`
	SessionID   string          `json:"session_id"`
	Score       float64         `json:"score"`
	NoOpinion   bool            `json:"no_opinion"`
	Comment     string          `json:"comment,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Channel     FeedbackChannel `json:"channel"`
	IntentID    string          `json:"intent_id,omitempty"`
	PlanID      string          `json:"plan_id,omitempty"`
	ExecutionID string          `json:"execution_id,omitempty"`
	Product     string          `json:"product,omitempty"`
	Module      string          `json:"module,omitempty"`
	Page        string          `json:"page,omitempty"`
	SceneID     string          `json:"scene_id,omitempty"`
}
