// Package approval implements the Approval Workflow (component C9) as a
// synchronous finite-state machine: draft → submitted → {approved |
// rejected} → executed → verified → archived, with rejected → draft
// (resubmit) also permitted. Every transition is a pure function of the
// current domain.ApprovalState plus caller-supplied actor/role/secret
// inputs; callers persist the returned state and append-only
// domain.ApprovalEvent themselves (same "stage returns an artifact, the
// orchestrator persists it" shape as internal/dialogue and
// internal/changeplan), unlike the teacher's internal/approval.Queue,
// which held an in-memory pending map and resolved requests
// asynchronously over channels. Grounded on the teacher's queue.go
// submit/resolve shape, adapted away from goroutines/channels into a
// synchronous guarded-transition FSM, and on internal/auth.token.go's
// password-hash verification pattern for the execute guard.
package approval

import (
	"fmt"
	"time"

	"github.com/icg-systems/icg/internal/auth"
	"github.com/icg-systems/icg/internal/config"
	"github.com/icg-systems/icg/internal/domain"
)

// AlreadyInitializedError is returned by Init when state already exists
// for the plan and force is false.
type AlreadyInitializedError struct {
	PlanID string
}

func (e *AlreadyInitializedError) Error() string {
	return fmt.Sprintf("approval state already initialized for plan %q (use --force to reinitialize)", e.PlanID)
}

// Init creates a new ApprovalState bound to plan, deriving role
// requirements from roles and the password requirement from
// plan.Authorization. If existing is non-nil and force is false, Init
// returns an *AlreadyInitializedError without mutating anything.
func Init(plan domain.ChangePlan, roles config.RolePolicy, existing *domain.ApprovalState, force bool, newID func(string) string, now time.Time) (domain.ApprovalState, domain.ApprovalEvent, error) {
	if existing != nil && !force {
		return domain.ApprovalState{}, domain.ApprovalEvent{}, &AlreadyInitializedError{PlanID: plan.PlanID}
	}

	state := domain.ApprovalState{
		WorkflowID: newID("appr"),
		PlanID:     plan.PlanID,
		Status:     domain.ApprovalDraft,
		RoleRequirements: domain.RoleRequirements{
			Submit:  roles.Submit,
			Approve: roles.Approve,
			Execute: roles.Execute,
			Verify:  roles.Verify,
		},
		Password: domain.PasswordRequirement{
			Required:   plan.Authorization.PasswordRequired,
			HashEnv:    plan.Authorization.PasswordHashEnv,
			TTLSeconds: plan.Authorization.PasswordTTLSeconds,
		},
		ApprovalRequired: plan.Approval.Status != "not-required",
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	event := domain.ApprovalEvent{
		WorkflowID: state.WorkflowID,
		PlanID:     plan.PlanID,
		Action:     "init",
		Timestamp:  now,
		ToStatus:   domain.ApprovalDraft,
	}
	return state, event, nil
}

func roleAllowed(allowed []string, role string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

func blockedEvent(state domain.ApprovalState, action, actor, actorRole, reason string, now time.Time) (domain.ApprovalState, domain.ApprovalEvent) {
	event := domain.ApprovalEvent{
		WorkflowID: state.WorkflowID,
		PlanID:     state.PlanID,
		Action:     action,
		Actor:      actor,
		ActorRole:  actorRole,
		Timestamp:  now,
		Blocked:    true,
		Reason:     reason,
		FromStatus: state.Status,
		ToStatus:   state.Status,
	}
	return state, event
}

// Submit transitions draft → submitted.
func Submit(state domain.ApprovalState, actor, actorRole, comment string, now time.Time) (domain.ApprovalState, domain.ApprovalEvent) {
	if state.Status != domain.ApprovalDraft {
		return blockedEvent(state, "submit", actor, actorRole, "current status is not draft", now)
	}
	if !roleAllowed(state.RoleRequirements.Submit, actorRole) {
		return blockedEvent(state, "submit", actor, actorRole, "actor_role not permitted to submit", now)
	}

	from := state.Status
	state.Status = domain.ApprovalSubmitted
	state.Approvals.Initiator = actor
	state.UpdatedAt = now

	event := domain.ApprovalEvent{
		WorkflowID: state.WorkflowID, PlanID: state.PlanID, Action: "submit",
		Actor: actor, ActorRole: actorRole, Comment: comment, Timestamp: now,
		FromStatus: from, ToStatus: state.Status,
	}
	return state, event
}

// Approve transitions submitted → approved.
func Approve(state domain.ApprovalState, actor, actorRole, comment string, now time.Time) (domain.ApprovalState, domain.ApprovalEvent) {
	if state.Status != domain.ApprovalSubmitted {
		return blockedEvent(state, "approve", actor, actorRole, "current status is not submitted", now)
	}
	if !roleAllowed(state.RoleRequirements.Approve, actorRole) {
		return blockedEvent(state, "approve", actor, actorRole, "actor_role not permitted to approve", now)
	}

	from := state.Status
	state.Status = domain.ApprovalApproved
	state.Approvals.Approver = actor
	state.UpdatedAt = now

	event := domain.ApprovalEvent{
		WorkflowID: state.WorkflowID, PlanID: state.PlanID, Action: "approve",
		Actor: actor, ActorRole: actorRole, Comment: comment, Timestamp: now,
		FromStatus: from, ToStatus: state.Status,
	}
	return state, event
}

// Reject transitions submitted → rejected.
func Reject(state domain.ApprovalState, actor, actorRole, comment string, now time.Time) (domain.ApprovalState, domain.ApprovalEvent) {
	if state.Status != domain.ApprovalSubmitted {
		return blockedEvent(state, "reject", actor, actorRole, "current status is not submitted", now)
	}
	if !roleAllowed(state.RoleRequirements.Approve, actorRole) {
		return blockedEvent(state, "reject", actor, actorRole, "actor_role not permitted to reject", now)
	}

	from := state.Status
	state.Status = domain.ApprovalRejected
	state.UpdatedAt = now

	event := domain.ApprovalEvent{
		WorkflowID: state.WorkflowID, PlanID: state.PlanID, Action: "reject",
		Actor: actor, ActorRole: actorRole, Comment: comment, Timestamp: now,
		FromStatus: from, ToStatus: state.Status,
	}
	return state, event
}

// Resubmit transitions rejected → draft, clearing prior approver/initiator
// so the reworked plan goes through submit/approve again.
func Resubmit(state domain.ApprovalState, actor, comment string, now time.Time) (domain.ApprovalState, domain.ApprovalEvent) {
	if state.Status != domain.ApprovalRejected {
		return blockedEvent(state, "resubmit", actor, "", "current status is not rejected", now)
	}

	from := state.Status
	state.Status = domain.ApprovalDraft
	state.Approvals = domain.ApprovalActors{}
	state.UpdatedAt = now

	event := domain.ApprovalEvent{
		WorkflowID: state.WorkflowID, PlanID: state.PlanID, Action: "resubmit",
		Actor: actor, Comment: comment, Timestamp: now,
		FromStatus: from, ToStatus: state.Status,
	}
	return state, event
}

// ExecuteParams gathers the execute-transition guard inputs.
type ExecuteParams struct {
	Actor                   string
	ActorRole               string
	Secret                  string // caller-supplied password attempt, empty if none
	ResolvedHash            string // plan's password hash, env-resolved or CLI-overridden by the caller
	RequireDistinctActorRoles bool
}

// Execute transitions approved → executed, guarded by four conditions:
// current state approved; password match when required; executor role
// permitted when a role policy is present; executor actor distinct from
// the approver actor when required. The executor's actor_role is not
// compared with the approver's, since the approver's role is not recorded
// in the state. Any guard failure
// emits a blocked=true event with a machine-readable reason and leaves
// state unchanged.
func Execute(state domain.ApprovalState, p ExecuteParams, now time.Time) (domain.ApprovalState, domain.ApprovalEvent) {
	if state.Status != domain.ApprovalApproved {
		return blockedEvent(state, "execute", p.Actor, p.ActorRole, "current status is not approved", now)
	}

	if state.Password.Required {
		ok, err := auth.VerifyPassword(p.Secret, p.ResolvedHash)
		if err != nil {
			return blockedEvent(state, "execute", p.Actor, p.ActorRole, "password hash configuration invalid: "+err.Error(), now)
		}
		if !ok {
			return blockedEvent(state, "execute", p.Actor, p.ActorRole, "password verification failed", now)
		}
	}

	if !roleAllowed(state.RoleRequirements.Execute, p.ActorRole) {
		return blockedEvent(state, "execute", p.Actor, p.ActorRole, "actor_role not permitted to execute", now)
	}

	if p.RequireDistinctActorRoles {
		if p.Actor != "" && p.Actor == state.Approvals.Approver {
			return blockedEvent(state, "execute", p.Actor, p.ActorRole, "executor actor must differ from approver actor", now)
		}
	}

	from := state.Status
	state.Status = domain.ApprovalExecuted
	state.Approvals.Executor = p.Actor
	now2 := now
	state.Password.VerifiedAt = &now2
	state.UpdatedAt = now

	event := domain.ApprovalEvent{
		WorkflowID: state.WorkflowID, PlanID: state.PlanID, Action: "execute",
		Actor: p.Actor, ActorRole: p.ActorRole, Timestamp: now,
		FromStatus: from, ToStatus: state.Status,
	}
	return state, event
}

// Verify transitions executed → verified.
func Verify(state domain.ApprovalState, actor, actorRole, comment string, now time.Time) (domain.ApprovalState, domain.ApprovalEvent) {
	if state.Status != domain.ApprovalExecuted {
		return blockedEvent(state, "verify", actor, actorRole, "current status is not executed", now)
	}
	if !roleAllowed(state.RoleRequirements.Verify, actorRole) {
		return blockedEvent(state, "verify", actor, actorRole, "actor_role not permitted to verify", now)
	}

	from := state.Status
	state.Status = domain.ApprovalVerified
	state.UpdatedAt = now

	event := domain.ApprovalEvent{
		WorkflowID: state.WorkflowID, PlanID: state.PlanID, Action: "verify",
		Actor: actor, ActorRole: actorRole, Comment: comment, Timestamp: now,
		FromStatus: from, ToStatus: state.Status,
	}
	return state, event
}

// Archive transitions verified → archived.
func Archive(state domain.ApprovalState, actor string, now time.Time) (domain.ApprovalState, domain.ApprovalEvent) {
	if state.Status != domain.ApprovalVerified {
		return blockedEvent(state, "archive", actor, "", "current status is not verified", now)
	}

	from := state.Status
	state.Status = domain.ApprovalArchived
	state.UpdatedAt = now

	event := domain.ApprovalEvent{
		WorkflowID: state.WorkflowID, PlanID: state.PlanID, Action: "archive",
		Actor: actor, Timestamp: now,
		FromStatus: from, ToStatus: state.Status,
	}
	return state, event
}
