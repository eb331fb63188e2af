package config

import "github.com/icg-systems/icg/internal/domain"

// ContextContract describes a page-context contract (spec.md §3 / §4.2).
type ContextContract struct {
	Version             string   `yaml:"version" json:"version"`
	RequiredFields      []string `yaml:"required_fields" json:"required_fields"`
	OptionalFields       []string `yaml:"optional_fields" json:"optional_fields"`
	MaxFieldCount       int      `yaml:"max_field_count" json:"max_field_count"`
	MaxPayloadKB        int      `yaml:"max_payload_kb" json:"max_payload_kb"`
	SensitiveKeyPatterns []string `yaml:"sensitive_key_patterns" json:"sensitive_key_patterns"`
	ForbiddenKeys        []string `yaml:"forbidden_keys" json:"forbidden_keys"`
}

// LengthPolicy bounds a dialogue goal's raw text length (spec.md §4.3).
type LengthPolicy struct {
	MinChars            int `yaml:"min_chars" json:"min_chars"`
	MaxChars            int `yaml:"max_chars" json:"max_chars"`
	MinSignificantTokens int `yaml:"min_significant_tokens" json:"min_significant_tokens"`
}

// isZero reports whether no LengthPolicy field was configured (all
// zero), used by the profile-overlay "replace if finite" rule.
func (l LengthPolicy) isZero() bool {
	return l.MinChars == 0 && l.MaxChars == 0 && l.MinSignificantTokens == 0
}

// DialogueProfileOverlay is a named overlay that may replace scalar fields
// and appends to rule/template lists on top of the base DialoguePolicy
// (spec.md §4.1).
type DialogueProfileOverlay struct {
	LengthPolicy          LengthPolicy `yaml:"length_policy" json:"length_policy"`
	DenyPatterns          []string     `yaml:"deny_patterns" json:"deny_patterns"`
	ClarifyPatterns       []string     `yaml:"clarify_patterns" json:"clarify_patterns"`
	ResponseRules         []string     `yaml:"response_rules" json:"response_rules"`
	ClarificationTemplates []string    `yaml:"clarification_templates" json:"clarification_templates"`
}

// DialoguePolicy governs the Dialogue Governor (spec.md §3 / §4.3).
type DialoguePolicy struct {
	Version                string                            `yaml:"version" json:"version"`
	Mode                    string                            `yaml:"mode" json:"mode"`
	DefaultProfile          domain.DialogueProfile            `yaml:"default_profile" json:"default_profile"`
	LengthPolicy            LengthPolicy                      `yaml:"length_policy" json:"length_policy"`
	DenyPatterns            []string                          `yaml:"deny_patterns" json:"deny_patterns"`
	ClarifyPatterns         []string                          `yaml:"clarify_patterns" json:"clarify_patterns"`
	ResponseRules           []string                          `yaml:"response_rules" json:"response_rules"`
	ClarificationTemplates  []string                          `yaml:"clarification_templates" json:"clarification_templates"`
	Profiles                map[string]DialogueProfileOverlay `yaml:"profiles" json:"profiles"`
}

// ResolveProfile merges the named profile overlay on top of the base
// policy, per the §4.1 merge rules: length_policy fields replace
// individually when finite (non-zero); deny/clarify/response/clarification
// lists append (never replace), then dedupe.
func (p DialoguePolicy) ResolveProfile(name string) (DialoguePolicy, error) {
	resolved := p
	resolved.DenyPatterns = append([]string{}, p.DenyPatterns...)
	resolved.ClarifyPatterns = append([]string{}, p.ClarifyPatterns...)
	resolved.ResponseRules = append([]string{}, p.ResponseRules...)
	resolved.ClarificationTemplates = append([]string{}, p.ClarificationTemplates...)

	if name == "" {
		return resolved, nil
	}

	overlay, ok := p.Profiles[name]
	if !ok {
		return DialoguePolicy{}, &ProfileNotFoundError{Profile: name}
	}

	if !overlay.LengthPolicy.isZero() {
		lp := resolved.LengthPolicy
		if overlay.LengthPolicy.MinChars != 0 {
			lp.MinChars = overlay.LengthPolicy.MinChars
		}
		if overlay.LengthPolicy.MaxChars != 0 {
			lp.MaxChars = overlay.LengthPolicy.MaxChars
		}
		if overlay.LengthPolicy.MinSignificantTokens != 0 {
			lp.MinSignificantTokens = overlay.LengthPolicy.MinSignificantTokens
		}
		resolved.LengthPolicy = lp
	}

	resolved.DenyPatterns = domain.DedupStrings(append(resolved.DenyPatterns, overlay.DenyPatterns...))
	resolved.ClarifyPatterns = domain.DedupStrings(append(resolved.ClarifyPatterns, overlay.ClarifyPatterns...))
	resolved.ResponseRules = domain.DedupStrings(append(resolved.ResponseRules, overlay.ResponseRules...))
	resolved.ClarificationTemplates = domain.DedupStrings(append(resolved.ClarificationTemplates, overlay.ClarificationTemplates...))

	return resolved, nil
}

// ProfileNotFoundError is returned when a requested dialogue profile has no
// overlay defined (spec.md §4.1, <ProfileNotFound>).
type ProfileNotFoundError struct {
	Profile string
}

func (e *ProfileNotFoundError) Error() string {
	return "dialogue profile not found: " + e.Profile
}

// GateCatalog configures the Plan Gate's guardrail checks (spec.md §4.6).
type GateCatalog struct {
	DenyActionTypes                          []domain.ActionType `yaml:"deny_action_types" json:"deny_action_types"`
	ReviewActionTypes                        []domain.ActionType `yaml:"review_action_types" json:"review_action_types"`
	RequireApprovalForRiskLevels             []domain.RiskLevel  `yaml:"require_approval_for_risk_levels" json:"require_approval_for_risk_levels"`
	MaxActionsWithoutApproval                int                 `yaml:"max_actions_without_approval" json:"max_actions_without_approval"`
	RequireDualApprovalForPrivilegeEscalation bool               `yaml:"require_dual_approval_for_privilege_escalation" json:"require_dual_approval_for_privilege_escalation"`
	RequireMaskingWhenSensitiveData          bool                `yaml:"require_masking_when_sensitive_data" json:"require_masking_when_sensitive_data"`
	ForbidPlaintextSecrets                   bool                `yaml:"forbid_plaintext_secrets" json:"forbid_plaintext_secrets"`
	RequireBackupForIrreversibleActions      bool                `yaml:"require_backup_for_irreversible_actions" json:"require_backup_for_irreversible_actions"`
	// ExtraConditions lets an operator add CEL expressions evaluated against
	// the plan for checks the fixed rule set above does not cover (see
	// SPEC_FULL.md §3's CEL extension point).
	ExtraConditions []ExtraCondition `yaml:"extra_conditions" json:"extra_conditions"`
}

// ExtraCondition is an operator-supplied CEL rule producing a deny/review
// result when it matches, evaluated alongside the fixed gate/runtime checks.
type ExtraCondition struct {
	ID        string `yaml:"id" json:"id"`
	Condition string `yaml:"condition" json:"condition"`
	Severity  string `yaml:"severity" json:"severity"` // deny | review
	Message   string `yaml:"message" json:"message"`
}

// RuntimeModeConfig governs one runtime_mode value (spec.md §4.7).
type RuntimeModeConfig struct {
	AllowExecutionModes     []domain.ExecutionMode `yaml:"allow_execution_modes" json:"allow_execution_modes"`
	DenyActionTypes         []domain.ActionType    `yaml:"deny_action_types" json:"deny_action_types"`
	ReviewRequiredActionTypes []domain.ActionType  `yaml:"review_required_action_types" json:"review_required_action_types"`
	AllowMutatingApply      bool                   `yaml:"allow_mutating_apply" json:"allow_mutating_apply"`
}

// RuntimeEnvConfig governs one runtime_environment value (spec.md §4.7).
type RuntimeEnvConfig struct {
	MaxRiskLevelForApply              domain.RiskLevel   `yaml:"max_risk_level_for_apply" json:"max_risk_level_for_apply"`
	MaxAutoExecuteRiskLevel           domain.RiskLevel   `yaml:"max_auto_execute_risk_level" json:"max_auto_execute_risk_level"`
	ManualReviewRequiredForApply      bool               `yaml:"manual_review_required_for_apply" json:"manual_review_required_for_apply"`
	RequireApprovalForRiskLevels      []domain.RiskLevel `yaml:"require_approval_for_risk_levels" json:"require_approval_for_risk_levels"`
	RequirePasswordForApplyMutations  bool               `yaml:"require_password_for_apply_mutations" json:"require_password_for_apply_mutations"`
	RequireSecondaryAuthorization     bool               `yaml:"require_secondary_authorization" json:"require_secondary_authorization"`
	RequirePasswordForApply           bool               `yaml:"require_password_for_apply" json:"require_password_for_apply"`
	RequireRolePolicy                 bool               `yaml:"require_role_policy" json:"require_role_policy"`
	RequireDistinctActorRoles         bool               `yaml:"require_distinct_actor_roles" json:"require_distinct_actor_roles"`
	AllowLiveApply                    bool               `yaml:"allow_live_apply" json:"allow_live_apply"`
}

// UIModeConfig governs one ui_mode value (spec.md §4.7). A ui_mode is
// "undefined" for the purposes of §4.7's deny rules when it has no entry in
// RuntimePolicy.UIModes at all (vs. being present with an empty list).
type UIModeConfig struct {
	RuntimeAllowed        []domain.RuntimeMode    `yaml:"runtime_allowed" json:"runtime_allowed"`
	ExecutionModesAllowed []domain.ExecutionMode  `yaml:"execution_modes_allowed" json:"execution_modes_allowed"`
}

// RuntimePolicy is the full mode × environment × ui_mode table consumed by
// the Runtime Policy Evaluator (spec.md §4.7).
type RuntimePolicy struct {
	Modes       map[domain.RuntimeMode]RuntimeModeConfig             `yaml:"modes" json:"modes"`
	Environments map[domain.RuntimeEnvironment]RuntimeEnvConfig       `yaml:"environments" json:"environments"`
	UIModes     map[domain.UIMode]UIModeConfig                       `yaml:"ui_modes" json:"ui_modes"`
	// ExtraConditions mirrors GateCatalog.ExtraConditions: operator-supplied
	// CEL expressions evaluated against the plan for runtime checks the
	// mode×environment×ui_mode tables above do not cover (SPEC_FULL.md §3).
	ExtraConditions []ExtraCondition `yaml:"extra_conditions" json:"extra_conditions"`
}

// ProfileAuthConfig governs one dialogue profile's tier rules (spec.md §4.8).
type ProfileAuthConfig struct {
	AllowExecutionModes  []domain.ExecutionMode `yaml:"allow_execution_modes" json:"allow_execution_modes"`
	AllowAutoExecuteLowRisk bool                `yaml:"allow_auto_execute_low_risk" json:"allow_auto_execute_low_risk"`
	AllowLiveApply       bool                   `yaml:"allow_live_apply" json:"allow_live_apply"`
}

// EnvAuthConfig governs one runtime_environment's tier rules (spec.md §4.8).
type EnvAuthConfig struct {
	ManualReviewRequiredForApply  bool `yaml:"manual_review_required_for_apply" json:"manual_review_required_for_apply"`
	RequireSecondaryAuthorization bool `yaml:"require_secondary_authorization" json:"require_secondary_authorization"`
	RequirePasswordForApply       bool `yaml:"require_password_for_apply" json:"require_password_for_apply"`
	RequireRolePolicy             bool `yaml:"require_role_policy" json:"require_role_policy"`
	RequireDistinctActorRoles     bool `yaml:"require_distinct_actor_roles" json:"require_distinct_actor_roles"`
}

// AuthTierPolicy is the (profile × environment) table consumed by the
// Authorization Tier Evaluator (spec.md §4.8).
type AuthTierPolicy struct {
	Profiles     map[domain.DialogueProfile]ProfileAuthConfig   `yaml:"profiles" json:"profiles"`
	Environments map[domain.RuntimeEnvironment]EnvAuthConfig    `yaml:"environments" json:"environments"`
}

// RolePolicy names the roles allowed to perform each approval-workflow
// transition (spec.md §4.9 role_requirements).
type RolePolicy struct {
	Submit  []string `yaml:"submit" json:"submit"`
	Approve []string `yaml:"approve" json:"approve"`
	Execute []string `yaml:"execute" json:"execute"`
	Verify  []string `yaml:"verify" json:"verify"`

	// DefaultPasswordHashEnv/DefaultPasswordTTLSeconds are the
	// password_hash_env/password_ttl_seconds the Plan Synthesizer writes into
	// every plan's AuthorizationBlock when it requires a password
	// (spec.md §4.9's "resolved at runtime" path). A request-level override
	// takes precedence when set.
	DefaultPasswordHashEnv    string `yaml:"default_password_hash_env" json:"default_password_hash_env"`
	DefaultPasswordTTLSeconds int    `yaml:"default_password_ttl_seconds" json:"default_password_ttl_seconds"`
}

// ThresholdRule matches one governance-report metric against a comparison
// operator and value (spec.md §4.13).
type ThresholdRule struct {
	Metric      string  `yaml:"metric" json:"metric"`
	Operator    string  `yaml:"operator" json:"operator"` // lt, lte, gt, gte, eq
	Value       float64 `yaml:"value" json:"value"`
	Severity    string  `yaml:"severity" json:"severity"` // low, medium, high
	Recommendation string `yaml:"recommendation" json:"recommendation"`
}

// SignalsConfig configures the Governance Reporter's threshold checks.
type SignalsConfig struct {
	Thresholds []ThresholdRule `yaml:"thresholds" json:"thresholds"`
	Alerts     AlertsConfig    `yaml:"alerts" json:"alerts"`
}

// AlertsConfig configures the delivery channels the Governance Reporter
// dispatches breached-threshold alerts to (spec.md §4.13).
type AlertsConfig struct {
	Slack   SlackAlertConfig   `yaml:"slack" json:"slack"`
	Webhook WebhookAlertConfig `yaml:"webhook" json:"webhook"`
	// DedupWindowSeconds bounds how often the same metric+recommendation
	// alert re-fires; a breach reported again inside the window is
	// suppressed unless its severity has escalated. Zero uses the
	// manager's built-in default.
	DedupWindowSeconds int `yaml:"dedup_window_seconds" json:"dedup_window_seconds"`
}

// SlackAlertConfig configures Slack incoming-webhook delivery.
type SlackAlertConfig struct {
	WebhookURL string `yaml:"webhook_url" json:"webhook_url"`
	Channel    string `yaml:"channel" json:"channel"`
}

// WebhookAlertConfig configures generic HMAC-signed webhook delivery.
type WebhookAlertConfig struct {
	URL    string `yaml:"url" json:"url"`
	Secret string `yaml:"secret" json:"secret"`
}

// AdapterConfig configures the Moqui adapter.
type AdapterConfig struct {
	Mode               string `yaml:"mode" json:"mode"` // dry-run | live-apply
	AllowSuggestionApply bool `yaml:"allow_suggestion_apply" json:"allow_suggestion_apply"`
}
