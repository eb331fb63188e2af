// Package killswitch implements an emergency stop mechanism that operates
// outside the governance pipeline's normal control flow: when triggered,
// it blocks a session's run (or every run) regardless of what the
// Dialogue Governor, Plan Gate, or Runtime Policy Evaluator would
// otherwise decide. The Loop Orchestrator checks it once, when a run
// starts, before the first stage; it is not re-checked between stages
// (SPEC_FULL.md §5's supplemented kill-switch feature).
//
// Grounded on the teacher's internal/killswitch.KillSwitch, trimmed from
// its three-level (global/agent/session) scope to two levels: ICG has no
// per-agent concept, only sessions, so the agent scope and its
// TriggerAgent/ResetAgent methods were dropped rather than adapted to a
// meaningless "agent" dimension.
package killswitch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Scope determines what the kill switch affects.
type Scope string

const (
	ScopeGlobal  Scope = "global"  // every session
	ScopeSession Scope = "session" // one session_id
)

// TriggerRecord logs who/what triggered the kill switch and when.
type TriggerRecord struct {
	Scope     Scope     `json:"scope"`
	SessionID string    `json:"session_id,omitempty"`
	Reason    string    `json:"reason"`
	Source    string    `json:"source"` // cli, dashboard, file
	Timestamp time.Time `json:"timestamp"`
}

// KillSwitch is an emergency stop mechanism that blocks orchestrator runs
// when triggered. It is checked once at the start of each run, ahead of
// any governance decision; a run already past that check is not stopped.
type KillSwitch struct {
	mu sync.RWMutex

	globalTriggered bool
	sessionKills    map[string]TriggerRecord
	history         []TriggerRecord

	// fileWatchPath is checked for a KILL sentinel file.
	fileWatchPath string

	logger *slog.Logger
}

// New creates a new KillSwitch. The sentinel KILL file under
// ~/.icg/KILL, if present, triggers a global kill when CheckFileKill
// is called.
func New(logger *slog.Logger) *KillSwitch {
	if logger == nil {
		logger = slog.Default()
	}

	homeDir, _ := os.UserHomeDir()
	watchPath := filepath.Join(homeDir, ".icg", "KILL")

	return &KillSwitch{
		sessionKills:  make(map[string]TriggerRecord),
		fileWatchPath: watchPath,
		logger:        logger.With("component", "killswitch"),
	}
}

// IsBlocked reports whether sessionID should be blocked from running its
// next stage. Global takes precedence over session-level triggers.
func (ks *KillSwitch) IsBlocked(sessionID string) (bool, string) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	if ks.globalTriggered {
		return true, "global kill switch activated"
	}
	if record, ok := ks.sessionKills[sessionID]; ok {
		return true, fmt.Sprintf("session kill switch activated: %s", record.Reason)
	}
	return false, ""
}

// TriggerGlobal activates the global kill switch, blocking every session.
func (ks *KillSwitch) TriggerGlobal(reason, source string) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	ks.globalTriggered = true
	record := TriggerRecord{Scope: ScopeGlobal, Reason: reason, Source: source, Timestamp: time.Now()}
	ks.history = append(ks.history, record)

	ks.logger.Error("GLOBAL KILL SWITCH TRIGGERED", "reason", reason, "source", source)
}

// TriggerSession activates the kill switch for a specific session.
func (ks *KillSwitch) TriggerSession(sessionID, reason, source string) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	record := TriggerRecord{Scope: ScopeSession, SessionID: sessionID, Reason: reason, Source: source, Timestamp: time.Now()}
	ks.sessionKills[sessionID] = record
	ks.history = append(ks.history, record)

	ks.logger.Error("SESSION KILL SWITCH TRIGGERED", "session_id", sessionID, "reason", reason, "source", source)
}

// ResetGlobal disarms the global kill switch.
func (ks *KillSwitch) ResetGlobal() {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.globalTriggered = false
	ks.logger.Info("global kill switch reset")
}

// ResetSession disarms the kill switch for a specific session.
func (ks *KillSwitch) ResetSession(sessionID string) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	delete(ks.sessionKills, sessionID)
	ks.logger.Info("session kill switch reset", "session_id", sessionID)
}

// Status returns the current state of all kill switches.
func (ks *KillSwitch) Status() map[string]interface{} {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	sessionKills := make(map[string]TriggerRecord, len(ks.sessionKills))
	for k, v := range ks.sessionKills {
		sessionKills[k] = v
	}

	return map[string]interface{}{
		"global_triggered": ks.globalTriggered,
		"session_kills":    sessionKills,
		"history_count":    len(ks.history),
	}
}

// History returns the full trigger history for audit purposes.
func (ks *KillSwitch) History() []TriggerRecord {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	out := make([]TriggerRecord, len(ks.history))
	copy(out, ks.history)
	return out
}

// CheckFileKill checks for a sentinel KILL file and triggers the global
// kill switch if found. Call this periodically, or once per orchestrator
// stage transition.
func (ks *KillSwitch) CheckFileKill() {
	if ks.fileWatchPath == "" {
		return
	}
	if _, err := os.Stat(ks.fileWatchPath); err == nil {
		ks.mu.RLock()
		alreadyTriggered := ks.globalTriggered
		ks.mu.RUnlock()

		if !alreadyTriggered {
			ks.TriggerGlobal("KILL sentinel file detected", "file")
		}
	}
}
