// Package config implements the Policy Loader (spec.md §4.1): it loads a
// built-in default policy, merges a user-supplied YAML policy file on top,
// and resolves per-request profile overlays. The merge rules are pure
// (Policy = BuiltIn ⊕ File ⊕ ProfileOverlay) and the merged policy is
// exposed as an immutable value — callers get a snapshot via Get(), never a
// mutable package-level global, matching the teacher's
// internal/config.Config + internal/policy.Loader split.
package config

import (
	"time"

	"github.com/icg-systems/icg/internal/domain"
)

// Config is the top-level icg configuration: server/storage ambient
// settings plus every governance policy table the stages consume.
type Config struct {
	Server  ServerConfig  `yaml:"server" json:"server"`
	Storage StorageConfig `yaml:"storage" json:"storage"`

	ContextContract ContextContract `yaml:"context_contract" json:"context_contract"`
	Dialogue        DialoguePolicy  `yaml:"dialogue" json:"dialogue"`
	Gate            GateCatalog     `yaml:"gate" json:"gate"`
	Runtime         RuntimePolicy   `yaml:"runtime" json:"runtime"`
	AuthTier        AuthTierPolicy  `yaml:"authorization_tier" json:"authorization_tier"`
	Roles           RolePolicy      `yaml:"roles" json:"roles"`
	Signals         SignalsConfig   `yaml:"signals" json:"signals"`
	Adapter         AdapterConfig   `yaml:"adapter" json:"adapter"`

	OutDir string `yaml:"out_dir" json:"out_dir"`
}

// ServerConfig holds ambient process settings.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
	FailMode string `yaml:"fail_mode" json:"fail_mode"` // closed | open; loaded and defaulted, not read by any stage
	Port     int    `yaml:"port" json:"port"`           // icg serve's dashboard port
}

// StorageConfig configures the ledger/index persistence layer.
type StorageConfig struct {
	Driver    string        `yaml:"driver" json:"driver"` // sqlite
	Path      string        `yaml:"path" json:"path"`
	Retention time.Duration `yaml:"retention" json:"retention"`
}

// DefaultConfig returns the built-in policy defaults, used when no policy
// file path is supplied (spec.md §4.1: "path absent ⇒ built-in default,
// from_file=false").
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			LogLevel: "info",
			FailMode: "closed",
			Port:     8777,
		},
		Storage: StorageConfig{
			Driver:    "sqlite",
			Path:      "./icg.db",
			Retention: 90 * 24 * time.Hour,
		},
		OutDir: "./out",
		ContextContract: ContextContract{
			Version:        "1",
			RequiredFields: []string{"product", "module", "page"},
			MaxFieldCount:  200,
			MaxPayloadKB:   256,
			SensitiveKeyPatterns: []string{
				"password", "secret", "token", "credential", "ssn", "api_key", "apikey", "private_key",
			},
			ForbiddenKeys: []string{},
		},
		Dialogue: DialoguePolicy{
			Version:        "1",
			Mode:           "default",
			DefaultProfile: domain.ProfileBusinessUser,
			LengthPolicy: LengthPolicy{
				MinChars:             8,
				MaxChars:             4000,
				MinSignificantTokens: 3,
			},
			DenyPatterns: []string{
				`\b(dump|exfiltrate|leak)\s+all\s+(passwords?|secrets?|credentials?)\b`,
				`\bdisable\s+(all\s+)?(audit|logging|security)\b`,
				`\bdrop\s+(the\s+)?(permission|user|audit)\s+table\b`,
			},
			ClarifyPatterns: []string{
				`\bfix\s+(it|this|that)\b`,
				`\bmake\s+it\s+better\b`,
			},
			ResponseRules:          []string{},
			ClarificationTemplates: []string{},
			Profiles: map[string]DialogueProfileOverlay{
				"system-maintainer": {
					LengthPolicy: LengthPolicy{MinChars: 4, MinSignificantTokens: 2},
				},
			},
		},
		Gate: GateCatalog{
			DenyActionTypes: []domain.ActionType{
				domain.ActionBulkDeleteWithoutFilter,
				domain.ActionPermissionGrantSuperAdmin,
				domain.ActionCredentialExport,
			},
			ReviewActionTypes: []domain.ActionType{
				domain.ActionWorkflowApprovalChain,
				domain.ActionPaymentRuleChange,
			},
			RequireApprovalForRiskLevels:               []domain.RiskLevel{domain.RiskHigh},
			MaxActionsWithoutApproval:                   5,
			RequireDualApprovalForPrivilegeEscalation:   true,
			RequireMaskingWhenSensitiveData:              true,
			ForbidPlaintextSecrets:                       true,
			RequireBackupForIrreversibleActions:          true,
		},
		Runtime: RuntimePolicy{
			Modes: map[domain.RuntimeMode]RuntimeModeConfig{
				domain.RuntimeUserAssist: {
					AllowExecutionModes: []domain.ExecutionMode{domain.ExecutionSuggestion},
				},
				domain.RuntimeOpsFix: {
					AllowExecutionModes: []domain.ExecutionMode{domain.ExecutionSuggestion, domain.ExecutionApply},
					AllowMutatingApply:  true,
				},
				domain.RuntimeFeatureDev: {
					AllowExecutionModes: []domain.ExecutionMode{domain.ExecutionSuggestion, domain.ExecutionApply},
					AllowMutatingApply:  true,
				},
			},
			Environments: map[domain.RuntimeEnvironment]RuntimeEnvConfig{
				domain.EnvDev: {
					MaxRiskLevelForApply:    domain.RiskHigh,
					MaxAutoExecuteRiskLevel: domain.RiskMedium,
					AllowLiveApply:          true,
				},
				domain.EnvStaging: {
					MaxRiskLevelForApply:             domain.RiskMedium,
					MaxAutoExecuteRiskLevel:          domain.RiskLow,
					RequireApprovalForRiskLevels:     []domain.RiskLevel{domain.RiskMedium, domain.RiskHigh},
					RequirePasswordForApplyMutations: true,
					AllowLiveApply:                   true,
				},
				domain.EnvProd: {
					MaxRiskLevelForApply:             domain.RiskLow,
					MaxAutoExecuteRiskLevel:          domain.RiskLow,
					ManualReviewRequiredForApply:     true,
					RequireApprovalForRiskLevels:     []domain.RiskLevel{domain.RiskLow, domain.RiskMedium, domain.RiskHigh},
					RequirePasswordForApplyMutations: true,
					RequireSecondaryAuthorization:    true,
					AllowLiveApply:                   true,
				},
			},
			UIModes: map[domain.UIMode]UIModeConfig{
				domain.UIUserApp: {
					RuntimeAllowed:        []domain.RuntimeMode{domain.RuntimeUserAssist},
					ExecutionModesAllowed: []domain.ExecutionMode{domain.ExecutionSuggestion},
				},
				domain.UIOpsConsole: {
					RuntimeAllowed:        []domain.RuntimeMode{domain.RuntimeOpsFix},
					ExecutionModesAllowed: []domain.ExecutionMode{domain.ExecutionSuggestion, domain.ExecutionApply},
				},
				domain.UIDevWorkbench: {
					RuntimeAllowed:        []domain.RuntimeMode{domain.RuntimeFeatureDev},
					ExecutionModesAllowed: []domain.ExecutionMode{domain.ExecutionSuggestion, domain.ExecutionApply},
				},
			},
		},
		AuthTier: AuthTierPolicy{
			Profiles: map[domain.DialogueProfile]ProfileAuthConfig{
				domain.ProfileBusinessUser: {
					AllowExecutionModes:     []domain.ExecutionMode{domain.ExecutionSuggestion},
					AllowAutoExecuteLowRisk: false,
					AllowLiveApply:          false,
				},
				domain.ProfileSystemMaintainer: {
					AllowExecutionModes:     []domain.ExecutionMode{domain.ExecutionSuggestion, domain.ExecutionApply},
					AllowAutoExecuteLowRisk: true,
					AllowLiveApply:          true,
				},
			},
			Environments: map[domain.RuntimeEnvironment]EnvAuthConfig{
				domain.EnvDev:     {},
				domain.EnvStaging: {RequirePasswordForApply: true, RequireRolePolicy: true},
				domain.EnvProd: {
					ManualReviewRequiredForApply:  true,
					RequireSecondaryAuthorization: true,
					RequirePasswordForApply:       true,
					RequireRolePolicy:             true,
					RequireDistinctActorRoles:     true,
				},
			},
		},
		Roles: RolePolicy{
			Submit:                    []string{"business-user", "workflow-operator", "system-maintainer"},
			Approve:                   []string{"workflow-operator", "system-maintainer"},
			Execute:                   []string{"system-maintainer"},
			Verify:                    []string{"workflow-operator", "system-maintainer"},
			DefaultPasswordHashEnv:    "ICG_APPLY_PASSWORD_HASH",
			DefaultPasswordTTLSeconds: 300,
		},
		Signals: SignalsConfig{
			Thresholds: []ThresholdRule{
				{Metric: "execution_success_rate", Operator: "lt", Value: 80, Severity: "medium", Recommendation: "Investigate rising apply failures"},
				{Metric: "rollback_rate", Operator: "gt", Value: 20, Severity: "high", Recommendation: "Rollback rate exceeds threshold; review recent plans"},
				{Metric: "dialogue_authorization_block_rate", Operator: "gt", Value: 40, Severity: "medium", Recommendation: "High dialogue-deny rate; review goal phrasing guidance"},
			},
			Alerts: AlertsConfig{
				DedupWindowSeconds: 300,
			},
		},
		Adapter: AdapterConfig{
			Mode: "dry-run",
		},
	}
}
