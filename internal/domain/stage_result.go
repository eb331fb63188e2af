package domain

// DialogueResult is the Dialogue Governor's output (spec.md §4.3). Decision
// uses the DialogueAllow/DialogueClarify/DialogueDeny aliases but is the
// same underlying Decision type so it composes with Combine.
type DialogueResult struct {
	Decision               Decision `json:"decision"`
	Reasons_               []string `json:"reasons"`
	DenyHits               []string `json:"deny_hits"`
	ClarifyHits            []string `json:"clarify_hits"`
	ClarificationQuestions []string `json:"clarification_questions"`
	ResponseRules          []string `json:"response_rules"`
}

func (d DialogueResult) Decide() Decision      { return d.Decision }
func (d DialogueResult) Reasons() []string     { return d.Reasons_ }
func (d DialogueResult) Violations() []Violation {
	out := make([]Violation, 0, len(d.DenyHits))
	for _, h := range d.DenyHits {
		out = append(out, Violation{ID: "deny-pattern", Severity: DecisionDeny, Message: h})
	}
	return out
}

// GateSummary is the Plan Gate's {check_total,...} rollup.
type GateSummary struct {
	CheckTotal      int       `json:"check_total"`
	FailedTotal     int       `json:"failed_total"`
	FailedDenyTotal int       `json:"failed_deny_total"`
	FailedReviewTotal int     `json:"failed_review_total"`
	ActionCount     int       `json:"action_count"`
	RiskLevel       RiskLevel `json:"risk_level"`
}

// GateCheck is one named Plan Gate rule outcome.
type GateCheck struct {
	ID       string   `json:"id"`
	Passed   bool     `json:"passed"`
	Severity Decision `json:"severity"` // deny | review-required
	Details  string   `json:"details,omitempty"`
}

// GateDecision is the Plan Gate's output (spec.md §4.6).
type GateDecision struct {
	Decision           Decision    `json:"decision"`
	Checks             []GateCheck `json:"checks"`
	FailedDenyChecks   []string    `json:"failed_deny_checks"`
	FailedReviewChecks []string    `json:"failed_review_checks"`
	Reasons_           []string    `json:"reasons"`
	Summary            GateSummary `json:"summary"`
}

func (g GateDecision) Decide() Decision  { return g.Decision }
func (g GateDecision) Reasons() []string { return g.Reasons_ }
func (g GateDecision) Violations() []Violation {
	out := make([]Violation, 0, len(g.Checks))
	for _, c := range g.Checks {
		if !c.Passed {
			out = append(out, Violation{ID: c.ID, Severity: c.Severity, Message: c.Details})
		}
	}
	return out
}

// RuntimeRequirements is the Runtime Policy Evaluator's derived
// requirement set (spec.md §3).
type RuntimeRequirements struct {
	AllowLiveApply                  bool      `json:"allow_live_apply"`
	RequireDryRunBeforeLiveApply    bool      `json:"require_dry_run_before_live_apply"`
	ManualReviewRequiredForApply    bool      `json:"manual_review_required_for_apply"`
	AllowMutatingApply              bool      `json:"allow_mutating_apply"`
	RequirePasswordForApplyMutations bool     `json:"require_password_for_apply_mutations"`
	RequireApproval                 bool      `json:"require_approval"`
	ApprovalSatisfied               bool      `json:"approval_satisfied"`
	MaxRiskLevelForApply            RiskLevel `json:"max_risk_level_for_apply"`
	MaxAutoExecuteRiskLevel         RiskLevel `json:"max_auto_execute_risk_level"`
	AutoExecuteAllowed              bool      `json:"auto_execute_allowed"`
}

// RuntimeDecision is the Runtime Policy Evaluator's output (spec.md §4.7).
type RuntimeDecision struct {
	Decision     Decision            `json:"decision"`
	Reasons_     []string            `json:"reasons"`
	Violations_  []Violation         `json:"violations"`
	Summary      string              `json:"summary"`
	Requirements RuntimeRequirements `json:"requirements"`
}

func (r RuntimeDecision) Decide() Decision        { return r.Decision }
func (r RuntimeDecision) Reasons() []string       { return r.Reasons_ }
func (r RuntimeDecision) Violations() []Violation { return r.Violations_ }

// AuthTierContext echoes the inputs the Authorization Tier Evaluator used,
// for audit readability.
type AuthTierContext struct {
	ExecutionMode      ExecutionMode      `json:"execution_mode"`
	DialogueProfile    DialogueProfile    `json:"dialogue_profile"`
	RuntimeMode        RuntimeMode        `json:"runtime_mode"`
	RuntimeEnvironment RuntimeEnvironment `json:"runtime_environment"`
	AutoExecuteLowRisk bool               `json:"auto_execute_low_risk"`
	LiveApply          bool               `json:"live_apply"`
}

// AuthTierRequirements is the Authorization Tier Evaluator's derived
// requirement set (spec.md §3).
type AuthTierRequirements struct {
	ApplyAllowed                  bool `json:"apply_allowed"`
	AutoExecuteAllowed            bool `json:"auto_execute_allowed"`
	LiveApplyAllowed              bool `json:"live_apply_allowed"`
	RequireSecondaryAuthorization bool `json:"require_secondary_authorization"`
	RequirePasswordForApply       bool `json:"require_password_for_apply"`
	RequireRolePolicy             bool `json:"require_role_policy"`
	RequireDistinctActorRoles     bool `json:"require_distinct_actor_roles"`
	ManualReviewRequiredForApply  bool `json:"manual_review_required_for_apply"`
}

// AuthorizationTierDecision is the Authorization Tier Evaluator's output
// (spec.md §4.8).
type AuthorizationTierDecision struct {
	Decision     Decision             `json:"decision"`
	Reasons_     []string             `json:"reasons"`
	Violations_  []Violation          `json:"violations"`
	Context      AuthTierContext      `json:"context"`
	Requirements AuthTierRequirements `json:"requirements"`
}

func (a AuthorizationTierDecision) Decide() Decision        { return a.Decision }
func (a AuthorizationTierDecision) Reasons() []string       { return a.Reasons_ }
func (a AuthorizationTierDecision) Violations() []Violation { return a.Violations_ }

var (
	_ StageResult = DialogueResult{}
	_ StageResult = GateDecision{}
	_ StageResult = RuntimeDecision{}
	_ StageResult = AuthorizationTierDecision{}
)
