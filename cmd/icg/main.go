package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/icg-systems/icg/internal/adapter"
	"github.com/icg-systems/icg/internal/alert"
	"github.com/icg-systems/icg/internal/approval"
	"github.com/icg-systems/icg/internal/auth"
	"github.com/icg-systems/icg/internal/config"
	"github.com/icg-systems/icg/internal/dashboard"
	"github.com/icg-systems/icg/internal/domain"
	"github.com/icg-systems/icg/internal/gate"
	"github.com/icg-systems/icg/internal/killswitch"
	"github.com/icg-systems/icg/internal/ledger"
	"github.com/icg-systems/icg/internal/orchestrator"
	"github.com/icg-systems/icg/internal/pagecontext"
	"github.com/icg-systems/icg/internal/runtimepolicy"
	"github.com/icg-systems/icg/internal/signals"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// stubMoquiClient is the dry-run-only default adapter.MoquiClient: it
// simulates every action as applied without reaching a live Moqui
// runtime, matching spec.md §1's "adapter is an injected interface"
// framing and the Non-goal that rules out the live ERP wire protocol.
// A deployment wires a real MoquiClient in; the CLI has no such
// transport to speak, so this is the only implementation it ships.
type stubMoquiClient struct{}

func (stubMoquiClient) ApplyActions(ctx context.Context, plan domain.ChangePlan) ([]string, error) {
	ids := make([]string, 0, len(plan.Actions))
	for _, a := range plan.Actions {
		ids = append(ids, a.ActionID)
	}
	return ids, nil
}

func main() {
	var configFile string
	var outDirOverride string
	var operatorRole string

	rootCmd := &cobra.Command{
		Use:   "icg",
		Short: "Interactive Customization Governance Engine",
		Long:  "icg — governs, gates, and audits interactive customization requests against a back-office ERP/BPM runtime.\nContext Bridge → Dialogue Governor → Intent Builder → Plan Synthesizer → Plan Gate → Runtime Policy → Authorization Tier → Approval Workflow → Adapter → Work-Order Builder → Signals.",
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to policy config file (default: built-in policy)")
	rootCmd.PersistentFlags().StringVar(&outDirOverride, "out-dir", "", "Override the configured artifact out_dir")
	rootCmd.PersistentFlags().StringVar(&operatorRole, "operator-role", string(auth.RoleAdmin), "Operator CLI role gating this invocation: viewer, operator, or admin")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("icg %s\n", version)
			fmt.Printf("  Commit:  %s\n", commit)
			fmt.Printf("  Built:   %s\n", buildDate)
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a starter policy config and out-dir",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(configFile)
		},
	}
	initProfileCmd := &cobra.Command{
		Use:   "profile [name]",
		Short: "Scaffold a dialogue profile overlay in the policy config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInitProfile(configFile, args[0])
		},
	}
	initCmd.AddCommand(initProfileCmd)

	var runFlags runRequestFlags
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Drive one session through the full governance pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(configFile, outDirOverride, runFlags)
		},
	}
	bindRunFlags(runCmd, &runFlags)

	approvalCmd := &cobra.Command{
		Use:   "approval",
		Short: "Drive the Approval Workflow for a session standalone",
	}
	approvalCmd.AddCommand(
		newApprovalInitCmd(&configFile, &outDirOverride, &operatorRole),
		newApprovalTransitionCmd(&configFile, &outDirOverride, &operatorRole, "submit", "goal text looks ready for review"),
		newApprovalTransitionCmd(&configFile, &outDirOverride, &operatorRole, "approve", ""),
		newApprovalTransitionCmd(&configFile, &outDirOverride, &operatorRole, "reject", ""),
		newApprovalExecuteCmd(&configFile, &outDirOverride, &operatorRole),
		newApprovalTransitionCmd(&configFile, &outDirOverride, &operatorRole, "verify", ""),
		newApprovalTransitionCmd(&configFile, &outDirOverride, &operatorRole, "resubmit", ""),
	)

	adapterCmd := &cobra.Command{
		Use:   "adapter",
		Short: "Drive the Adapter (Moqui apply/rollback) standalone",
	}
	adapterCmd.AddCommand(
		newAdapterCapabilitiesCmd(),
		newAdapterApplyCmd(&configFile, &outDirOverride, &operatorRole),
		newAdapterRollbackCmd(&configFile, &outDirOverride, &operatorRole),
	)

	var reportWindow, reportFrom, reportTo string
	var failOnAlert bool
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Run the Governance Reporter over a window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(configFile, outDirOverride, operatorRole, reportWindow, reportFrom, reportTo, failOnAlert)
		},
	}
	reportCmd.Flags().StringVar(&reportWindow, "window", "weekly", "weekly, monthly, all, or custom")
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "RFC3339 lower bound, required when --window=custom")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "RFC3339 upper bound, required when --window=custom")
	reportCmd.Flags().BoolVar(&failOnAlert, "fail-on-alert", false, "Exit 2 if any medium/high severity alert fired")

	policyCmd := &cobra.Command{
		Use:   "policy",
		Short: "Policy config management",
	}
	policyValidateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the policy config, including CEL extra conditions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPolicyValidate(configFile)
		},
	}
	policyReloadCmd := &cobra.Command{
		Use:   "reload",
		Short: "Re-read the policy config from disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPolicyReload(configFile)
		},
	}
	policyCmd.AddCommand(policyValidateCmd, policyReloadCmd)

	var servePort int
	var serveAllowAllOrigins bool
	var servePollInterval time.Duration
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the optional local read-only dashboard and live signal feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configFile, outDirOverride, servePort, serveAllowAllOrigins, servePollInterval)
		},
	}
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Override the configured dashboard port")
	serveCmd.Flags().BoolVar(&serveAllowAllOrigins, "allow-all-origins", false, "Accept WebSocket upgrades from any Origin (dev only)")
	serveCmd.Flags().DurationVar(&servePollInterval, "poll-interval", 2*time.Second, "How often to poll the ledger for new signals")

	rootCmd.AddCommand(versionCmd, initCmd, runCmd, approvalCmd, adapterCmd, reportCmd, policyCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗", err)
		os.Exit(1)
	}
}

// ─── shared plumbing ───

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Server.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig(configFile, outDirOverride string) (config.Config, error) {
	loader := config.NewLoader()
	if configFile != "" {
		if err := loader.Load(configFile); err != nil {
			return config.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
	}
	cfg := loader.Get()
	if outDirOverride != "" {
		cfg.OutDir = outDirOverride
	}
	return cfg, nil
}

// requirePermission gates a CLI action behind the operator's role, the
// machine-auth layer named in SPEC_FULL.md §5 (distinct from the
// in-plan password gate the Approval Workflow itself enforces).
func requirePermission(operatorRole, action string) error {
	role := auth.Role(operatorRole)
	if !auth.HasPermission(role, action) {
		return fmt.Errorf("operator role %q is not permitted to perform %q", operatorRole, action)
	}
	return nil
}

func openLedger(cfg config.Config) (*ledger.Store, error) {
	store, err := ledger.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	return store, nil
}

func buildOrchestrator(cfg config.Config, store *ledger.Store, logger *slog.Logger) *orchestrator.Orchestrator {
	a := &adapter.Adapter{
		Client:  stubMoquiClient{},
		Store:   store,
		Catalog: cfg.Gate,
		Logger:  logger,
		NewID:   domain.NewID,
		Now:     time.Now,
	}
	return &orchestrator.Orchestrator{
		Config:     cfg,
		KillSwitch: killswitch.New(logger),
		Adapter:    a,
		Store:      store,
		Logger:     logger,
		NewID:      domain.NewID,
		Now:        time.Now,
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ─── init ───

func runInit(configFile string) error {
	path := configFile
	if path == "" {
		path = "icg.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  ⚠ %s already exists (skipping)\n", path)
	} else {
		if err := config.GenerateDefault(path); err != nil {
			return err
		}
		fmt.Printf("  ✓ Generated %s\n", path)
	}

	cfg, err := loadConfig(path, "")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s/: %w", cfg.OutDir, err)
	}
	fmt.Printf("  ✓ Created %s/\n", cfg.OutDir)

	fmt.Println()
	fmt.Println("  Next steps:")
	fmt.Println("    icg init profile <name>   # Add a dialogue profile overlay")
	fmt.Println("    icg run ...               # Drive one session through the pipeline")
	fmt.Println("    icg serve                 # Start the read-only dashboard")
	return nil
}

func runInitProfile(configFile, name string) error {
	path := configFile
	if path == "" {
		path = "icg.yaml"
	}
	loader := config.NewLoader()
	if _, err := os.Stat(path); err == nil {
		if err := loader.Load(path); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		if err := config.GenerateDefault(path); err != nil {
			return err
		}
		if err := loader.Load(path); err != nil {
			return fmt.Errorf("failed to load generated config: %w", err)
		}
	}

	cfg := loader.Get()
	if cfg.Dialogue.Profiles == nil {
		cfg.Dialogue.Profiles = map[string]config.DialogueProfileOverlay{}
	}
	if _, exists := cfg.Dialogue.Profiles[name]; exists {
		fmt.Printf("  ⚠ profile %q already exists in %s (skipping)\n", name, path)
		return nil
	}
	cfg.Dialogue.Profiles[name] = config.DialogueProfileOverlay{}

	if err := writeConfigYAML(path, cfg); err != nil {
		return err
	}
	fmt.Printf("  ✓ Added profile %q to %s\n", name, path)
	fmt.Println("  Edit its length_policy/deny_patterns/clarify_patterns to customize.")
	return nil
}

func writeConfigYAML(path string, cfg config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ─── run ───

type runRequestFlags struct {
	sessionID          string
	userID             string
	payloadPath        string
	dialect            string
	strictContext      bool
	goal               string
	executionMode      string
	runtimeMode        string
	runtimeEnv         string
	uiMode             string
	dialogueProfile    string
	liveApply          bool
	dryRunCompleted    bool
	applyActor         string
	applyActorRole     string
	applyPassword      string
	forceApprovalInit  bool
	passwordHashEnv    string
}

func bindRunFlags(cmd *cobra.Command, f *runRequestFlags) {
	cmd.Flags().StringVar(&f.sessionID, "session-id", "", "Session ID (required, reused to resume a prior run)")
	cmd.Flags().StringVar(&f.userID, "user-id", "", "Requesting user ID")
	cmd.Flags().StringVar(&f.payloadPath, "payload", "-", "Path to a JSON page-context payload file, or - for stdin")
	cmd.Flags().StringVar(&f.dialect, "dialect", "generic", "Payload dialect: moqui or generic")
	cmd.Flags().BoolVar(&f.strictContext, "strict-context", false, "Fail the run on any context contract violation")
	cmd.Flags().StringVar(&f.goal, "goal", "", "Business goal text (required)")
	cmd.Flags().StringVar(&f.executionMode, "execution-mode", "suggestion", "suggestion or apply")
	cmd.Flags().StringVar(&f.runtimeMode, "runtime-mode", "user-assist", "user-assist, ops-fix, or feature-dev")
	cmd.Flags().StringVar(&f.runtimeEnv, "runtime-env", "dev", "dev, staging, or prod")
	cmd.Flags().StringVar(&f.uiMode, "ui-mode", "", "user-app, ops-console, or dev-workbench (optional)")
	cmd.Flags().StringVar(&f.dialogueProfile, "dialogue-profile", "business-user", "business-user or system-maintainer")
	cmd.Flags().BoolVar(&f.liveApply, "live-apply", false, "Attempt a live ERP apply instead of dry-run")
	cmd.Flags().BoolVar(&f.dryRunCompleted, "dry-run-completed", false, "Mark a dry run as already completed for this plan")
	cmd.Flags().StringVar(&f.applyActor, "apply-actor", "", "Actor ID driving an auto-execute/execute transition")
	cmd.Flags().StringVar(&f.applyActorRole, "apply-actor-role", "", "Actor role driving an auto-execute/execute transition")
	cmd.Flags().StringVar(&f.applyPassword, "apply-password", "", "Password for a password-gated execute transition")
	cmd.Flags().BoolVar(&f.forceApprovalInit, "force-approval-init", false, "Re-initialize an existing approval workflow")
	cmd.Flags().StringVar(&f.passwordHashEnv, "password-hash-env", "", "Override the configured default password_hash_env for this plan")
	_ = cmd.MarkFlagRequired("session-id")
	_ = cmd.MarkFlagRequired("goal")
}

func readPayload(path string) (map[string]any, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}
	return payload, nil
}

func runSession(configFile, outDirOverride string, f runRequestFlags) error {
	cfg, err := loadConfig(configFile, outDirOverride)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	store, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	payload, err := readPayload(f.payloadPath)
	if err != nil {
		return err
	}

	dialect := pagecontext.DialectGeneric
	if f.dialect == string(pagecontext.DialectMoqui) {
		dialect = pagecontext.DialectMoqui
	}

	req := orchestrator.Request{
		SessionID:    f.sessionID,
		UserID:       f.userID,
		RawPayload: pagecontext.RawPayload{
			Dialect: dialect,
			Payload: payload,
		},
		StrictContext:      f.strictContext,
		BusinessGoal:       f.goal,
		ExecutionMode:      domain.ExecutionMode(f.executionMode),
		RuntimeMode:        domain.RuntimeMode(f.runtimeMode),
		RuntimeEnvironment: domain.RuntimeEnvironment(f.runtimeEnv),
		UIMode:             domain.UIMode(f.uiMode),
		HasUIMode:          f.uiMode != "",
		DialogueProfile:    domain.DialogueProfile(f.dialogueProfile),
		LiveApply:          f.liveApply,
		DryRunCompleted:    f.dryRunCompleted,
		ApplyActor:         f.applyActor,
		ApplyActorRole:     f.applyActorRole,
		ApplyPassword:      f.applyPassword,
		ForceApprovalInit:  f.forceApprovalInit,
		PasswordHashEnv:    f.passwordHashEnv,
	}

	orch := buildOrchestrator(cfg, store, logger)
	result, err := orch.Run(context.Background(), req)
	if err != nil {
		if printErr := printJSON(result); printErr != nil {
			logger.Error("failed to print partial result", "error", printErr)
		}
		return err
	}
	if err := printJSON(result); err != nil {
		return err
	}
	os.Exit(result.ExitCode)
	return nil
}

// ─── approval ───

func loadApprovalOrchestrator(configFile, outDirOverride string) (*orchestrator.Orchestrator, *ledger.Store, error) {
	cfg, err := loadConfig(configFile, outDirOverride)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cfg)
	store, err := openLedger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return buildOrchestrator(cfg, store, logger), store, nil
}

func newApprovalInitCmd(configFile, outDirOverride, operatorRole *string) *cobra.Command {
	var sessionID, force string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Approval Workflow for a session's synthesized plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePermission(*operatorRole, "approval.init"); err != nil {
				return err
			}
			orch, store, err := loadApprovalOrchestrator(*configFile, *outDirOverride)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			plan, loaded, err := orch.LoadChangePlan(sessionID)
			if err != nil {
				return err
			}
			if !loaded {
				return fmt.Errorf("no synthesized plan found for session %q; run 'icg run' through the Plan Synthesizer first", sessionID)
			}

			existing, hasExisting, err := orch.LoadApprovalState(sessionID)
			if err != nil {
				return err
			}
			var existingPtr *domain.ApprovalState
			if hasExisting {
				existingPtr = &existing
			}

			cfg, err := loadConfig(*configFile, *outDirOverride)
			if err != nil {
				return err
			}
			state, event, err := approval.Init(plan, cfg.Roles, existingPtr, force != "", domain.NewID, time.Now())
			if err != nil {
				return err
			}
			if err := orch.PersistApproval(sessionID, state, event); err != nil {
				return err
			}
			return printJSON(state)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session-id", "", "Session ID (required)")
	cmd.Flags().StringVar(&force, "force", "", "Non-empty to re-initialize an existing workflow")
	_ = cmd.MarkFlagRequired("session-id")
	return cmd
}

// newApprovalTransitionCmd builds submit/approve/reject/verify/resubmit,
// whose approval package functions share the (state, actor, actorRole,
// comment, now) → (state, event) shape, except Resubmit, which takes no
// actorRole.
func newApprovalTransitionCmd(configFile, outDirOverride, operatorRole *string, action, defaultComment string) *cobra.Command {
	var sessionID, actor, actorRole, comment string
	cmd := &cobra.Command{
		Use:   action,
		Short: fmt.Sprintf("%s the approval workflow", strings.ToUpper(action[:1])+action[1:]),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePermission(*operatorRole, "approval."+action); err != nil {
				return err
			}
			orch, store, err := loadApprovalOrchestrator(*configFile, *outDirOverride)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			state, loaded, err := orch.LoadApprovalState(sessionID)
			if err != nil {
				return err
			}
			if !loaded {
				return fmt.Errorf("no approval workflow initialized for session %q; run 'icg approval init' first", sessionID)
			}

			now := time.Now()
			var newState domain.ApprovalState
			var event domain.ApprovalEvent
			switch action {
			case "submit":
				newState, event = approval.Submit(state, actor, actorRole, comment, now)
			case "approve":
				newState, event = approval.Approve(state, actor, actorRole, comment, now)
			case "reject":
				newState, event = approval.Reject(state, actor, actorRole, comment, now)
			case "verify":
				newState, event = approval.Verify(state, actor, actorRole, comment, now)
			case "resubmit":
				newState, event = approval.Resubmit(state, actor, comment, now)
			default:
				return fmt.Errorf("unknown approval action %q", action)
			}

			if err := orch.PersistApproval(sessionID, newState, event); err != nil {
				return err
			}
			if event.Blocked {
				if err := printJSON(event); err != nil {
					return err
				}
				return fmt.Errorf("approval %s blocked: %s", action, event.Reason)
			}
			return printJSON(newState)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session-id", "", "Session ID (required)")
	cmd.Flags().StringVar(&actor, "actor", "", "Actor ID performing this transition")
	cmd.Flags().StringVar(&actorRole, "actor-role", "", "Actor role performing this transition")
	cmd.Flags().StringVar(&comment, "comment", defaultComment, "Audit comment")
	_ = cmd.MarkFlagRequired("session-id")
	return cmd
}

func newApprovalExecuteCmd(configFile, outDirOverride, operatorRole *string) *cobra.Command {
	var sessionID, actor, actorRole, secret string
	var requireDistinctActorRoles bool
	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Transition an approved workflow to executed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePermission(*operatorRole, "approval.execute"); err != nil {
				return err
			}
			orch, store, err := loadApprovalOrchestrator(*configFile, *outDirOverride)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			state, loaded, err := orch.LoadApprovalState(sessionID)
			if err != nil {
				return err
			}
			if !loaded {
				return fmt.Errorf("no approval workflow initialized for session %q", sessionID)
			}

			newState, event := approval.Execute(state, approval.ExecuteParams{
				Actor:                     actor,
				ActorRole:                 actorRole,
				Secret:                    secret,
				ResolvedHash:              orchestrator.ResolvePasswordHash(state),
				RequireDistinctActorRoles: requireDistinctActorRoles,
			}, time.Now())

			if err := orch.PersistApproval(sessionID, newState, event); err != nil {
				return err
			}
			if event.Blocked {
				if err := printJSON(event); err != nil {
					return err
				}
				return fmt.Errorf("approval execute blocked: %s", event.Reason)
			}
			return printJSON(newState)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session-id", "", "Session ID (required)")
	cmd.Flags().StringVar(&actor, "actor", "", "Actor ID executing the plan")
	cmd.Flags().StringVar(&actorRole, "actor-role", "", "Actor role executing the plan")
	cmd.Flags().StringVar(&secret, "password", "", "Password attempt when the workflow requires one")
	cmd.Flags().BoolVar(&requireDistinctActorRoles, "require-distinct-actor-roles", false, "Reject if executor actor matches the approver actor")
	_ = cmd.MarkFlagRequired("session-id")
	return cmd
}

// ─── adapter ───

func newAdapterCapabilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "Print the adapter's provider capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := &adapter.Adapter{Client: stubMoquiClient{}}
			return printJSON(a.Capabilities())
		},
	}
}

func newAdapterApplyCmd(configFile, outDirOverride, operatorRole *string) *cobra.Command {
	var sessionID string
	var liveApply, dryRun, allowSuggestionApply bool
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply (or dry-run simulate) a session's synthesized plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePermission(*operatorRole, "adapter.apply"); err != nil {
				return err
			}
			orch, store, err := loadApprovalOrchestrator(*configFile, *outDirOverride)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			plan, loaded, err := orch.LoadChangePlan(sessionID)
			if err != nil {
				return err
			}
			if !loaded {
				return fmt.Errorf("no synthesized plan found for session %q", sessionID)
			}

			opts := adapter.ApplyOptions{LiveApply: liveApply, DryRun: dryRun || !liveApply, AllowSuggestionApply: allowSuggestionApply}
			var record domain.ExecutionRecord
			if plan.RiskLevel == domain.RiskLow {
				record, err = orch.Adapter.ApplyLowRisk(cmd.Context(), plan, opts)
			} else {
				record, err = orch.Adapter.Apply(cmd.Context(), plan, opts)
			}
			if err != nil {
				return fmt.Errorf("adapter apply: %w", err)
			}
			if err := orch.SaveExecutionRecord(sessionID, record); err != nil {
				return err
			}
			return printJSON(record)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session-id", "", "Session ID (required)")
	cmd.Flags().BoolVar(&liveApply, "live-apply", false, "Apply live instead of dry-run simulating")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Force dry-run even if --live-apply is also set")
	cmd.Flags().BoolVar(&allowSuggestionApply, "allow-suggestion-apply", false, "Allow applying a suggestion-mode plan")
	_ = cmd.MarkFlagRequired("session-id")
	return cmd
}

func newAdapterRollbackCmd(configFile, outDirOverride, operatorRole *string) *cobra.Command {
	var sessionID, planID string
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Roll back the last successful execution of a plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePermission(*operatorRole, "adapter.rollback"); err != nil {
				return err
			}
			orch, store, err := loadApprovalOrchestrator(*configFile, *outDirOverride)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if planID == "" {
				plan, loaded, err := orch.LoadChangePlan(sessionID)
				if err != nil {
					return err
				}
				if !loaded {
					return fmt.Errorf("no synthesized plan found for session %q; pass --plan-id directly", sessionID)
				}
				planID = plan.PlanID
			}

			record, err := orch.Adapter.Rollback(planID)
			if err != nil {
				return fmt.Errorf("adapter rollback: %w", err)
			}
			if sessionID != "" {
				if err := orch.SaveExecutionRecord(sessionID, record); err != nil {
					return err
				}
			}
			return printJSON(record)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session-id", "", "Session ID whose plan to roll back (optional if --plan-id given)")
	cmd.Flags().StringVar(&planID, "plan-id", "", "Plan ID to roll back directly")
	return cmd
}

// ─── report ───

func runReport(configFile, outDirOverride, operatorRole, window, from, to string, failOnAlert bool) error {
	if err := requirePermission(operatorRole, "signals.read"); err != nil {
		return err
	}
	cfg, err := loadConfig(configFile, outDirOverride)
	if err != nil {
		return err
	}
	store, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var fromT, toT time.Time
	if from != "" {
		if fromT, err = time.Parse(time.RFC3339, from); err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
	}
	if to != "" {
		if toT, err = time.Parse(time.RFC3339, to); err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
	}

	logger := newLogger(cfg)
	mgr := alert.NewManager(cfg.Signals.Alerts, logger)
	report, err := signals.Build(store, signals.Window(window), time.Now(), fromT, toT, cfg.Signals, mgr)
	if err != nil {
		return fmt.Errorf("build governance report: %w", err)
	}
	if err := printJSON(report); err != nil {
		return err
	}
	if failOnAlert {
		for _, a := range report.Alerts {
			if a.Severity == "medium" || a.Severity == "high" {
				os.Exit(2)
			}
		}
	}
	return nil
}

// ─── policy ───

func runPolicyValidate(configFile string) error {
	path := configFile
	if path == "" {
		path = "icg.yaml"
	}
	loader := config.NewLoader()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("  ⚠ %s not found; validating built-in defaults\n", path)
	} else if err := loader.Load(path); err != nil {
		fmt.Printf("  ✗ invalid config: %s\n", err)
		return err
	} else {
		fmt.Printf("  ✓ config file valid: %s\n", path)
	}

	cfg := loader.Get()
	fmt.Printf("  Out dir:  %s\n", cfg.OutDir)
	fmt.Printf("  Storage:  %s (%s)\n", cfg.Storage.Driver, cfg.Storage.Path)
	fmt.Printf("  Dialogue profiles: %d\n", len(cfg.Dialogue.Profiles))
	fmt.Printf("  Gate extra conditions: %d\n", len(cfg.Gate.ExtraConditions))
	fmt.Printf("  Runtime extra conditions: %d\n", len(cfg.Runtime.ExtraConditions))

	anyFailed := false
	validateConditions := func(section string, conditions []config.ExtraCondition, errs map[string]error) {
		for _, c := range conditions {
			if err, failed := errs[c.ID]; failed {
				anyFailed = true
				fmt.Printf("  ✗ %s extra condition %q: invalid CEL expression: %s\n", section, c.ID, err)
			} else {
				fmt.Printf("  ✓ %s extra condition %q: CEL expression valid\n", section, c.ID)
			}
		}
	}
	validateConditions("gate", cfg.Gate.ExtraConditions, gate.ValidateExtraConditions(cfg.Gate.ExtraConditions))
	validateConditions("runtime", cfg.Runtime.ExtraConditions, runtimepolicy.ValidateExtraConditions(cfg.Runtime.ExtraConditions))

	if anyFailed {
		return fmt.Errorf("policy validation failed: one or more extra conditions have invalid CEL expressions")
	}
	fmt.Println("  ✓ policy config valid")
	return nil
}

func runPolicyReload(configFile string) error {
	path := configFile
	if path == "" {
		path = "icg.yaml"
	}
	loader := config.NewLoader()
	if err := loader.Load(path); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := loader.Reload(); err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}
	fmt.Printf("  ✓ reloaded policy config from %s\n", loader.FilePath())
	return nil
}

// ─── serve ───

func runServe(configFile, outDirOverride string, portOverride int, allowAllOrigins bool, pollInterval time.Duration) error {
	cfg, err := loadConfig(configFile, outDirOverride)
	if err != nil {
		return err
	}
	if portOverride > 0 {
		cfg.Server.Port = portOverride
	}
	logger := newLogger(cfg)

	store, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	orch := buildOrchestrator(cfg, store, logger)
	hub := dashboard.NewHub(logger, allowAllOrigins)
	dash := dashboard.NewServer(hub, cfg.OutDir, store, logger, func(sessionID string) string {
		return filepath.Join(orch.SessionDir(sessionID), "interactive-work-order.json")
	})

	ctx, cancel := context.WithCancel(context.Background())
	go dash.PollSignals(ctx, pollInterval)

	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: dash.Handler()}

	fmt.Println()
	fmt.Println("  icg dashboard")
	fmt.Printf("  → http://localhost:%d/work-order/{session_id}\n", cfg.Server.Port)
	fmt.Printf("  → ws://localhost:%d/signals/stream\n", cfg.Server.Port)
	fmt.Println()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down dashboard")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("starting dashboard server", "port", cfg.Server.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
