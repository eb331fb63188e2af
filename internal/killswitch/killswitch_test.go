package killswitch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestKillSwitch_GlobalTrigger(t *testing.T) {
	ks := New(nil)

	blocked, _ := ks.IsBlocked("sess-1")
	if blocked {
		t.Fatal("expected not blocked initially")
	}

	ks.TriggerGlobal("runaway session", "api")

	blocked, msg := ks.IsBlocked("sess-1")
	if !blocked {
		t.Fatal("expected blocked after global trigger")
	}
	if msg != "global kill switch activated" {
		t.Errorf("message = %q, want %q", msg, "global kill switch activated")
	}

	blocked, _ = ks.IsBlocked("sess-99")
	if !blocked {
		t.Fatal("expected all sessions blocked after global trigger")
	}
}

func TestKillSwitch_GlobalReset(t *testing.T) {
	ks := New(nil)
	ks.TriggerGlobal("test", "cli")

	blocked, _ := ks.IsBlocked("sess-1")
	if !blocked {
		t.Fatal("expected blocked")
	}

	ks.ResetGlobal()

	blocked, _ = ks.IsBlocked("sess-1")
	if blocked {
		t.Fatal("expected not blocked after reset")
	}
}

func TestKillSwitch_SessionTrigger(t *testing.T) {
	ks := New(nil)

	ks.TriggerSession("sess-42", "loop detected", "detection")

	blocked, msg := ks.IsBlocked("sess-42")
	if !blocked {
		t.Fatal("expected session-42 blocked")
	}
	if msg == "" {
		t.Fatal("expected non-empty message")
	}

	blocked, _ = ks.IsBlocked("sess-99")
	if blocked {
		t.Fatal("expected sess-99 not blocked")
	}
}

func TestKillSwitch_SessionReset(t *testing.T) {
	ks := New(nil)
	ks.TriggerSession("sess-1", "test", "api")

	ks.ResetSession("sess-1")

	blocked, _ := ks.IsBlocked("sess-1")
	if blocked {
		t.Fatal("expected not blocked after session reset")
	}
}

func TestKillSwitch_GlobalTakesPrecedence(t *testing.T) {
	ks := New(nil)

	ks.TriggerSession("sess-1", "session reason", "api")

	blocked, msg := ks.IsBlocked("sess-1")
	if !blocked {
		t.Fatal("expected blocked")
	}
	if msg != "session kill switch activated: session reason" {
		t.Errorf("expected session-level message, got %q", msg)
	}

	ks.TriggerGlobal("global reason", "api")

	blocked, msg = ks.IsBlocked("sess-1")
	if !blocked {
		t.Fatal("expected blocked")
	}
	if msg != "global kill switch activated" {
		t.Errorf("expected global message, got %q", msg)
	}
}

func TestKillSwitch_History(t *testing.T) {
	ks := New(nil)

	ks.TriggerGlobal("reason1", "api")
	ks.TriggerSession("sess-1", "reason2", "dashboard")

	history := ks.History()
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}

	if history[0].Scope != ScopeGlobal {
		t.Errorf("history[0].Scope = %q, want %q", history[0].Scope, ScopeGlobal)
	}
	if history[1].Scope != ScopeSession {
		t.Errorf("history[1].Scope = %q, want %q", history[1].Scope, ScopeSession)
	}
}

func TestKillSwitch_Status(t *testing.T) {
	ks := New(nil)

	status := ks.Status()
	if status["global_triggered"].(bool) {
		t.Error("expected global_triggered=false")
	}
	if status["history_count"].(int) != 0 {
		t.Error("expected history_count=0")
	}

	ks.TriggerGlobal("test", "api")
	ks.TriggerSession("sess-1", "test", "api")

	status = ks.Status()
	if !status["global_triggered"].(bool) {
		t.Error("expected global_triggered=true")
	}
	if status["history_count"].(int) != 2 {
		t.Errorf("history_count = %d, want 2", status["history_count"].(int))
	}
	sessions := status["session_kills"].(map[string]TriggerRecord)
	if _, ok := sessions["sess-1"]; !ok {
		t.Error("expected sess-1 in session_kills")
	}
}

func TestKillSwitch_FileKill(t *testing.T) {
	tmpDir := t.TempDir()
	killFile := filepath.Join(tmpDir, "KILL")

	ks := New(nil)
	ks.fileWatchPath = killFile

	ks.CheckFileKill()
	blocked, _ := ks.IsBlocked("sess-1")
	if blocked {
		t.Fatal("expected not blocked without KILL file")
	}

	if err := os.WriteFile(killFile, []byte("STOP"), 0644); err != nil {
		t.Fatal(err)
	}

	ks.CheckFileKill()
	blocked, _ = ks.IsBlocked("sess-1")
	if !blocked {
		t.Fatal("expected blocked after KILL file created")
	}

	historyBefore := len(ks.History())
	ks.CheckFileKill()
	historyAfter := len(ks.History())
	if historyAfter != historyBefore {
		t.Errorf("duplicate history entry created: before=%d, after=%d", historyBefore, historyAfter)
	}
}
