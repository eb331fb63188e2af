// Package orchestrator implements the Loop Orchestrator (component C12):
// it drives the Context Bridge through the Work-Order Builder
// sequentially for one session, persisting each stage's artifact before
// the next stage reads it so a re-run with the same session_id resumes
// from the earliest missing artifact (spec.md §4.12). Grounded on the
// teacher's internal/proxy.Proxy.handleRequest — a numbered, sequential
// "intercept, classify, evaluate policy, record, on deny stop early"
// request pipeline — generalized from one HTTP request's lifecycle to
// one governance session's lifecycle, and from an in-memory trace store
// to file-committed, resumable artifacts.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/icg-systems/icg/internal/adapter"
	"github.com/icg-systems/icg/internal/approval"
	"github.com/icg-systems/icg/internal/authtier"
	"github.com/icg-systems/icg/internal/changeplan"
	"github.com/icg-systems/icg/internal/config"
	"github.com/icg-systems/icg/internal/dialogue"
	"github.com/icg-systems/icg/internal/domain"
	"github.com/icg-systems/icg/internal/gate"
	"github.com/icg-systems/icg/internal/intent"
	"github.com/icg-systems/icg/internal/killswitch"
	"github.com/icg-systems/icg/internal/ledger"
	"github.com/icg-systems/icg/internal/pagecontext"
	"github.com/icg-systems/icg/internal/runtimepolicy"
	"github.com/icg-systems/icg/internal/workorder"
)

// Exit codes (spec.md §4.12/§4.13), aliasing domain.ExitCode's enum so the
// pipeline's int-typed Result.ExitCode stays source-compatible with every
// existing comparison/assignment while still deriving from one definition.
const (
	ExitOK       = int(domain.ExitSuccess)
	ExitFailFast = int(domain.ExitPolicyGate)
	autoApprover = "system:auto-approve-low-risk"
)

// autoRole picks the role the auto-approve path submits/approves as: the
// first role a policy actually permits for that transition, or "system"
// when the policy lists no roles (roleAllowed then accepts any role).
func autoRole(allowed []string) string {
	if len(allowed) == 0 {
		return "system"
	}
	return allowed[0]
}

// Orchestrator wires every stage package plus the ambient services
// (ledger, kill-switch, adapter) needed to run one session end to end.
type Orchestrator struct {
	Config     config.Config
	KillSwitch *killswitch.KillSwitch
	Adapter    *adapter.Adapter
	Store      *ledger.Store
	Logger     *slog.Logger
	NewID      func(prefix string) string
	Now        func() time.Time
}

// Request bundles everything a caller supplies for one orchestrator run
// beyond the resolved policy (spec.md §4.1's merged Config).
type Request struct {
	SessionID          string
	UserID             string
	RawPayload         pagecontext.RawPayload
	StrictContext      bool
	BusinessGoal       string
	ExecutionMode      domain.ExecutionMode
	RuntimeMode        domain.RuntimeMode
	RuntimeEnvironment domain.RuntimeEnvironment
	UIMode             domain.UIMode
	HasUIMode          bool
	DialogueProfile    domain.DialogueProfile
	LiveApply          bool
	DryRunCompleted    bool
	ApplyActor         string
	ApplyActorRole     string
	ApplyPassword      string
	ForceApprovalInit  bool

	// PasswordHashEnv/PasswordTTLSeconds override the configured
	// Roles.DefaultPasswordHashEnv/DefaultPasswordTTLSeconds for this plan's
	// AuthorizationBlock, when set.
	PasswordHashEnv    string
	PasswordTTLSeconds int
}

// Result is everything the run produced, whether it ran to completion or
// stopped early on a fail-fast stage.
type Result struct {
	SessionID    string
	ExitCode     int
	StoppedAt    string // empty if the pipeline ran through Work-Order Builder
	Context      domain.PageContext
	BridgeReport pagecontext.BridgeReport
	Dialogue     domain.DialogueResult
	Intent       domain.ChangeIntent
	Plan         domain.ChangePlan
	Gate         domain.GateDecision
	Runtime      domain.RuntimeDecision
	AuthTier     domain.AuthorizationTierDecision
	Approval     *domain.ApprovalState
	Execution    *domain.ExecutionRecord
	WorkOrder    domain.WorkOrder
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger.With("component", "orchestrator.Orchestrator")
	}
	return slog.Default().With("component", "orchestrator.Orchestrator")
}

func (o *Orchestrator) emitSignal(dir, stage string, sessionID string, mode domain.RuntimeMode, decision domain.Decision, detail any) {
	sig := domain.Signal{
		Timestamp:    o.now(),
		SessionID:    sessionID,
		Stage:        stage,
		BusinessMode: domain.BusinessModeFor(mode),
		Decision:     decision,
		Detail:       detail,
	}
	if o.Store != nil {
		if err := o.Store.AppendSignal(sig); err != nil {
			o.logger().Warn("failed to append governance signal", "stage", stage, "error", err)
		}
	}
	if err := appendJSONLine(sessionDir(o.Config.OutDir, sessionID)+"-signals.jsonl", sig); err != nil {
		o.logger().Warn("failed to append session signal copy", "stage", stage, "error", err)
	}
}

// Run executes §4.2–§4.11 sequentially for req.SessionID, resuming from
// the earliest artifact not already on disk.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	if o.KillSwitch != nil {
		if blocked, reason := o.KillSwitch.IsBlocked(req.SessionID); blocked {
			return Result{SessionID: req.SessionID, ExitCode: ExitFailFast, StoppedAt: "kill-switch"}, fmt.Errorf("orchestrator: session %s blocked by kill switch: %s", req.SessionID, reason)
		}
	}

	dir := sessionDir(o.Config.OutDir, req.SessionID)
	result := Result{SessionID: req.SessionID}

	// --- Stage 1: Context Bridge (spec.md §4.2) ---
	pageCtx, bridgeLoaded, err := loadOrCompute(dir+"/"+fileContextNormalized, func() (domain.PageContext, error) {
		normalized, _, nerr := pagecontext.Normalize(req.RawPayload, o.Config.ContextContract, req.StrictContext)
		return normalized, nerr
	})
	if err != nil {
		return result, fmt.Errorf("orchestrator: context bridge: %w", err)
	}
	result.Context = pageCtx
	if !bridgeLoaded {
		_, report, _ := pagecontext.Normalize(req.RawPayload, o.Config.ContextContract, false)
		if err := saveJSON(dir+"/"+fileContextBridge, report); err != nil {
			return result, fmt.Errorf("orchestrator: persist bridge report: %w", err)
		}
		result.BridgeReport = report
	} else {
		report, _, rerr := loadJSON[pagecontext.BridgeReport](dir + "/" + fileContextBridge)
		if rerr != nil {
			return result, fmt.Errorf("orchestrator: load bridge report: %w", rerr)
		}
		result.BridgeReport = report
	}
	forbiddenKeyHit := false
	for _, issue := range result.BridgeReport.Issues {
		if len(issue) >= 13 && issue[:13] == "forbidden key" {
			forbiddenKeyHit = true
			break
		}
	}

	// --- Stage 2: Dialogue Governor (spec.md §4.3) ---
	dialoguePolicy, perr := o.Config.Dialogue.ResolveProfile(string(req.DialogueProfile))
	if perr != nil {
		return result, fmt.Errorf("orchestrator: resolve dialogue profile: %w", perr)
	}
	dialogueResult, _, err := loadOrCompute(dir+"/"+fileDialogue, func() (domain.DialogueResult, error) {
		return dialogue.Evaluate(dialogue.Input{
			GoalText:      req.BusinessGoal,
			ModuleMissing: result.Context.Module == "",
			PageMissing:   result.Context.Page == "",
		}, dialoguePolicy, o.Logger), nil
	})
	if err != nil {
		return result, fmt.Errorf("orchestrator: dialogue governor: %w", err)
	}
	result.Dialogue = dialogueResult
	o.emitSignal(dir, "dialogue_authorization", req.SessionID, req.RuntimeMode, dialogueResult.Decision, dialogueResult.Reasons_)
	if dialogueResult.Decision == domain.DialogueDeny {
		result.ExitCode = ExitFailFast
		result.StoppedAt = "dialogue"
		return o.finalize(dir, req, result)
	}

	// --- Stage 3: Intent Builder (spec.md §4.4) ---
	contextRef := toContextRef(result.Context)
	intentResult, _, err := loadOrCompute(dir+"/"+fileChangeIntent, func() (domain.ChangeIntent, error) {
		built, berr := intent.Build(intent.Params{
			SessionID:            req.SessionID,
			UserID:               req.UserID,
			Context:              result.Context,
			ContextRef:           contextRef,
			BusinessGoal:         req.BusinessGoal,
			SensitiveKeyPatterns: o.Config.ContextContract.SensitiveKeyPatterns,
			ForbiddenKeyHit:      forbiddenKeyHit,
			ContractValid:        result.BridgeReport.ContractValid,
			ContractIssues:       result.BridgeReport.Issues,
		}, o.NewID, o.now())
		if berr != nil {
			return domain.ChangeIntent{}, berr
		}
		if serr := saveText(dir+"/"+filePageExplain, built.ExplainMD); serr != nil {
			return domain.ChangeIntent{}, serr
		}
		if serr := appendLine(dir+"/"+fileCopilotAudit, built.AuditLine); serr != nil {
			return domain.ChangeIntent{}, serr
		}
		return built.Intent, nil
	})
	if err != nil {
		return result, fmt.Errorf("orchestrator: intent builder: %w", err)
	}
	result.Intent = intentResult

	// --- Stage 4: Plan Synthesizer (spec.md §4.5) ---
	passwordHashEnv := req.PasswordHashEnv
	if passwordHashEnv == "" {
		passwordHashEnv = o.Config.Roles.DefaultPasswordHashEnv
	}
	passwordTTLSeconds := req.PasswordTTLSeconds
	if passwordTTLSeconds == 0 {
		passwordTTLSeconds = o.Config.Roles.DefaultPasswordTTLSeconds
	}
	plan, planLoaded, err := loadOrCompute(dir+"/"+fileChangePlan, func() (domain.ChangePlan, error) {
		return changeplan.Synthesize(changeplan.Input{
			Intent:             intentResult,
			ExecutionMode:      req.ExecutionMode,
			PasswordHashEnv:    passwordHashEnv,
			PasswordTTLSeconds: passwordTTLSeconds,
		}, o.NewID, o.now()), nil
	})
	if err != nil {
		return result, fmt.Errorf("orchestrator: plan synthesizer: %w", err)
	}
	result.Plan = plan
	if !planLoaded {
		if err := saveText(dir+"/"+fileChangePlanMD, renderChangePlanMD(plan)); err != nil {
			return result, err
		}
	}

	// --- Stage 5: Plan Gate (spec.md §4.6) ---
	gateDecision, gateLoaded, err := loadOrCompute(dir+"/"+fileChangePlanGate, func() (domain.GateDecision, error) {
		return gate.Evaluate(plan, o.Config.Gate, o.Logger), nil
	})
	if err != nil {
		return result, fmt.Errorf("orchestrator: plan gate: %w", err)
	}
	result.Gate = gateDecision
	if !gateLoaded {
		if err := saveText(dir+"/"+fileChangePlanGateMD, renderGateMD(gateDecision)); err != nil {
			return result, err
		}
	}
	if gateDecision.Decision == domain.DecisionDeny {
		result.ExitCode = ExitFailFast
		result.StoppedAt = "gate"
		return o.finalize(dir, req, result)
	}

	// --- Stage 6: Runtime Policy Evaluator (spec.md §4.7) ---
	runtimeDecision, _, err := loadOrCompute(dir+"/"+fileRuntimePolicy, func() (domain.RuntimeDecision, error) {
		return runtimepolicy.Evaluate(runtimepolicy.Input{
			Plan:               plan,
			RuntimeMode:        req.RuntimeMode,
			RuntimeEnvironment: req.RuntimeEnvironment,
			UIMode:             req.UIMode,
			HasUIMode:          req.HasUIMode,
			Approved:           false,
		}, o.Config.Runtime, o.Logger), nil
	})
	if err != nil {
		return result, fmt.Errorf("orchestrator: runtime policy evaluator: %w", err)
	}
	result.Runtime = runtimeDecision
	o.emitSignal(dir, "runtime", req.SessionID, req.RuntimeMode, runtimeDecision.Decision, runtimeDecision.Summary)
	if runtimeDecision.Decision != domain.DecisionAllow {
		result.ExitCode = ExitFailFast
		result.StoppedAt = "runtime"
		return o.finalize(dir, req, result)
	}

	// --- Stage 7: Authorization Tier Evaluator (spec.md §4.8) ---
	autoApproveLowRisk := dialogueResult.Decision != domain.DialogueDeny &&
		gateDecision.Decision == domain.DecisionAllow &&
		plan.RiskLevel == domain.RiskLow &&
		runtimeDecision.Decision == domain.DecisionAllow &&
		runtimeDecision.Requirements.AutoExecuteAllowed

	authTierDecision, _, err := loadOrCompute(dir+"/"+fileAuthTier, func() (domain.AuthorizationTierDecision, error) {
		return authtier.Evaluate(authtier.Input{
			ExecutionMode:      req.ExecutionMode,
			DialogueProfile:    req.DialogueProfile,
			RuntimeMode:        req.RuntimeMode,
			RuntimeEnvironment: req.RuntimeEnvironment,
			AutoExecuteLowRisk: autoApproveLowRisk,
			LiveApply:          req.LiveApply,
		}, o.Config.AuthTier), nil
	})
	if err != nil {
		return result, fmt.Errorf("orchestrator: authorization tier evaluator: %w", err)
	}
	result.AuthTier = authTierDecision
	o.emitSignal(dir, "authorization_tier", req.SessionID, req.RuntimeMode, authTierDecision.Decision, authTierDecision.Requirements)
	if authTierDecision.Decision == domain.DecisionDeny {
		result.ExitCode = ExitFailFast
		result.StoppedAt = "authorization_tier"
		return o.finalize(dir, req, result)
	}

	autoExecuteLowRisk := autoApproveLowRisk &&
		(!req.LiveApply || (runtimeDecision.Requirements.AllowLiveApply &&
			(!runtimeDecision.Requirements.RequireDryRunBeforeLiveApply || req.DryRunCompleted)))

	// --- Stage 8: Approval Workflow (spec.md §4.9) ---
	approvalPending := false
	var approvalState *domain.ApprovalState
	if plan.Approval.Status != "not-required" {
		state, loaded, aerr := loadJSON[domain.ApprovalState](dir + "/" + fileApprovalState)
		if aerr != nil {
			return result, fmt.Errorf("orchestrator: load approval state: %w", aerr)
		}
		var existing *domain.ApprovalState
		if loaded {
			existing = &state
		}
		if !loaded {
			var event domain.ApprovalEvent
			state, event, err = approval.Init(plan, o.Config.Roles, existing, req.ForceApprovalInit, o.NewID, o.now())
			if err != nil {
				return result, fmt.Errorf("orchestrator: init approval: %w", err)
			}
			if err := o.persistApproval(dir, state, event); err != nil {
				return result, err
			}
		}

		if autoApproveLowRisk && state.Status == domain.ApprovalDraft {
			var event domain.ApprovalEvent
			state, event = approval.Submit(state, autoApprover, autoRole(state.RoleRequirements.Submit), "auto-submitted: low risk, gate+runtime allow", o.now())
			if err := o.persistApproval(dir, state, event); err != nil {
				return result, err
			}
			state, event = approval.Approve(state, autoApprover, autoRole(state.RoleRequirements.Approve), "auto-approved: low risk, gate+runtime allow", o.now())
			if err := o.persistApproval(dir, state, event); err != nil {
				return result, err
			}
		}

		if autoExecuteLowRisk && state.Status == domain.ApprovalApproved {
			var event domain.ApprovalEvent
			state, event = approval.Execute(state, approval.ExecuteParams{
				Actor:                     req.ApplyActor,
				ActorRole:                 req.ApplyActorRole,
				Secret:                    req.ApplyPassword,
				ResolvedHash:              resolvePasswordHash(state),
				RequireDistinctActorRoles: authTierDecision.Requirements.RequireDistinctActorRoles,
			}, o.now())
			if err := o.persistApproval(dir, state, event); err != nil {
				return result, err
			}
		}

		approvalState = &state
		approvalPending = state.Status != domain.ApprovalApproved && state.Status != domain.ApprovalExecuted && state.Status != domain.ApprovalVerified && state.Status != domain.ApprovalArchived
	}
	result.Approval = approvalState

	// --- Stage 9: Adapter (spec.md §4.10) ---
	var execution *domain.ExecutionRecord
	canExecute := req.ExecutionMode == domain.ExecutionApply &&
		authTierDecision.Decision != domain.DecisionDeny &&
		(plan.Approval.Status == "not-required" || (approvalState != nil && (approvalState.Status == domain.ApprovalExecuted || approvalState.Status == domain.ApprovalVerified || approvalState.Status == domain.ApprovalArchived)))

	if canExecute {
		cached, loaded, aerr := loadJSON[domain.ExecutionRecord](dir + "/" + fileMoquiAdapter)
		if aerr != nil {
			return result, fmt.Errorf("orchestrator: load execution record: %w", aerr)
		}
		if loaded {
			execution = &cached
		} else if o.Adapter != nil {
			opts := adapter.ApplyOptions{
				LiveApply:            req.LiveApply,
				DryRun:               !req.LiveApply,
				AllowSuggestionApply: o.Config.Adapter.AllowSuggestionApply,
			}
			var record domain.ExecutionRecord
			var aerr2 error
			if plan.RiskLevel == domain.RiskLow {
				record, aerr2 = o.Adapter.ApplyLowRisk(ctx, plan, opts)
			} else {
				record, aerr2 = o.Adapter.Apply(ctx, plan, opts)
			}
			if aerr2 != nil {
				return result, fmt.Errorf("orchestrator: adapter apply: %w", aerr2)
			}
			if err := saveJSON(dir+"/"+fileMoquiAdapter, record); err != nil {
				return result, err
			}
			if err := appendJSONLine(dir+"/"+fileExecutionLedger, record); err != nil {
				return result, err
			}
			execution = &record
		}
	}
	result.Execution = execution
	if execution != nil && (execution.Result == domain.ExecutionFailed || execution.Result == domain.ExecutionSkipped) {
		result.ExitCode = ExitFailFast
		result.StoppedAt = "execute"
		return o.finalize(dir, req, result)
	}

	return o.finalize(dir, req, result)
}

// finalize builds and persists the Work-Order Builder's output (spec.md
// §4.11) from whatever stages ran, regardless of whether the pipeline
// stopped early.
func (o *Orchestrator) finalize(dir string, req Request, result Result) (Result, error) {
	wo := workorder.Build(workorder.Input{
		SessionID:       req.SessionID,
		Scope:           result.Plan.Scope,
		PlanID:          result.Plan.PlanID,
		RiskLevel:       result.Plan.RiskLevel,
		Dialogue:        result.Dialogue,
		Gate:            result.Gate,
		Runtime:         result.Runtime,
		AuthTier:        result.AuthTier,
		ApprovalPending: result.Approval != nil && result.Approval.Status != domain.ApprovalExecuted && result.Approval.Status != domain.ApprovalVerified && result.Approval.Status != domain.ApprovalArchived,
		Execution:       result.Execution,
	}, o.NewID, o.now())
	if prior, ok, err := loadJSON[domain.WorkOrder](dir + "/" + fileWorkOrder); err == nil && ok {
		wo.WorkOrderID = prior.WorkOrderID
	}

	if err := saveJSON(dir+"/"+fileWorkOrder, wo); err != nil {
		return result, err
	}
	if err := saveText(dir+"/"+fileWorkOrderMD, renderWorkOrderMD(wo)); err != nil {
		return result, err
	}
	result.WorkOrder = wo

	if result.ExitCode == 0 && wo.Status == domain.StatusBlocked {
		result.ExitCode = ExitFailFast
	}

	summary := map[string]any{
		"session_id": req.SessionID,
		"stopped_at": result.StoppedAt,
		"exit_code":  result.ExitCode,
		"work_order": wo.WorkOrderID,
		"status":     wo.Status,
	}
	if err := saveJSON(dir+"/"+fileLoopSummary, summary); err != nil {
		return result, err
	}
	return result, nil
}

func (o *Orchestrator) persistApproval(dir string, state domain.ApprovalState, event domain.ApprovalEvent) error {
	if err := saveJSON(dir+"/"+fileApprovalState, state); err != nil {
		return fmt.Errorf("orchestrator: persist approval state: %w", err)
	}
	if err := appendJSONLine(dir+"/"+fileApprovalEvents, event); err != nil {
		return fmt.Errorf("orchestrator: persist approval event: %w", err)
	}
	if o.Store != nil {
		if err := o.Store.AppendApprovalEvent(event); err != nil {
			return fmt.Errorf("orchestrator: append approval event to ledger: %w", err)
		}
	}
	return nil
}

func toContextRef(ctx domain.PageContext) domain.ContextRef {
	return domain.ContextRef{
		Product:      ctx.Product,
		Module:       ctx.Module,
		Page:         ctx.Page,
		Entity:       ctx.Entity,
		SceneID:      ctx.SceneID,
		WorkflowNode: ctx.WorkflowNode,
	}
}

// resolvePasswordHash resolves the execute-transition password hash. It
// is the configuration-level resolution point named in spec.md §7
// ("resolved at runtime"); callers providing an explicit override are
// expected to pass it in via req.ApplyPassword's paired hash elsewhere.
func resolvePasswordHash(state domain.ApprovalState) string {
	if state.Password.HashEnv == "" {
		return ""
	}
	return os.Getenv(state.Password.HashEnv)
}
