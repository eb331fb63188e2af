package alert

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/icg-systems/icg/internal/config"
)

// mockSender records every alert it receives for assertions.
type mockSender struct {
	name       string
	sendFunc   func(Alert) error
	callCount  int
	lastAlert  *Alert
	mu         sync.Mutex
	sentAlerts []Alert
}

func newMockSender(name string) *mockSender {
	return &mockSender{
		name:       name,
		sentAlerts: make([]Alert, 0),
	}
}

func (m *mockSender) Name() string {
	return m.name
}

func (m *mockSender) Send(alert Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.lastAlert = &alert
	m.sentAlerts = append(m.sentAlerts, alert)
	if m.sendFunc != nil {
		return m.sendFunc(alert)
	}
	return nil
}

func (m *mockSender) getCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *mockSender) getLastAlert() *Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastAlert == nil {
		return nil
	}
	copy := *m.lastAlert
	return &copy
}

func newTestManager(ttl time.Duration) *Manager {
	return &Manager{
		config:   config.AlertsConfig{},
		senders:  make([]Sender, 0),
		dedup:    make(map[string]dedupEntry),
		dedupTTL: ttl,
		logger:   slog.Default(),
	}
}

func rollbackRateAlert(severity string) Alert {
	return Alert{
		Type:              "rollback_rate",
		Severity:          severity,
		Title:             "Rollback rate threshold breached",
		Message:           "rollback_rate is above the configured threshold",
		RecommendationKey: "Rollback rate exceeds threshold; review recent plans",
		SessionID:         "session-1",
	}
}

func TestNewManager(t *testing.T) {
	tests := []struct {
		name            string
		config          config.AlertsConfig
		expectedSenders int
		expectedTTL     time.Duration
	}{
		{
			name:            "no senders configured",
			config:          config.AlertsConfig{},
			expectedSenders: 0,
			expectedTTL:     defaultDedupTTL,
		},
		{
			name: "only slack configured",
			config: config.AlertsConfig{
				Slack: config.SlackAlertConfig{WebhookURL: "https://hooks.slack.com/test", Channel: "#governance-alerts"},
			},
			expectedSenders: 1,
			expectedTTL:     defaultDedupTTL,
		},
		{
			name: "only webhook configured",
			config: config.AlertsConfig{
				Webhook: config.WebhookAlertConfig{URL: "https://example.com/icg-webhook", Secret: "secret123"},
			},
			expectedSenders: 1,
			expectedTTL:     defaultDedupTTL,
		},
		{
			name: "both slack and webhook configured",
			config: config.AlertsConfig{
				Slack:   config.SlackAlertConfig{WebhookURL: "https://hooks.slack.com/test", Channel: "#governance-alerts"},
				Webhook: config.WebhookAlertConfig{URL: "https://example.com/icg-webhook", Secret: "secret123"},
			},
			expectedSenders: 2,
			expectedTTL:     defaultDedupTTL,
		},
		{
			name:            "configured dedup window overrides the default",
			config:          config.AlertsConfig{DedupWindowSeconds: 60},
			expectedSenders: 0,
			expectedTTL:     60 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(tt.config, slog.Default())

			if len(m.senders) != tt.expectedSenders {
				t.Errorf("expected %d senders, got %d", tt.expectedSenders, len(m.senders))
			}
			if m.dedup == nil {
				t.Error("dedup map should be initialized")
			}
			if m.dedupTTL != tt.expectedTTL {
				t.Errorf("dedupTTL = %v, want %v", m.dedupTTL, tt.expectedTTL)
			}
		})
	}
}

func TestManager_HasSenders(t *testing.T) {
	tests := []struct {
		name     string
		config   config.AlertsConfig
		expected bool
	}{
		{name: "no senders", config: config.AlertsConfig{}, expected: false},
		{
			name:     "has slack sender",
			config:   config.AlertsConfig{Slack: config.SlackAlertConfig{WebhookURL: "https://hooks.slack.com/test"}},
			expected: true,
		},
		{
			name:     "has webhook sender",
			config:   config.AlertsConfig{Webhook: config.WebhookAlertConfig{URL: "https://example.com/icg-webhook"}},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(tt.config, slog.Default())
			if got := m.HasSenders(); got != tt.expected {
				t.Errorf("HasSenders() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestManager_Send(t *testing.T) {
	t.Run("basic send to single sender", func(t *testing.T) {
		m := newTestManager(5 * time.Minute)
		mock := newMockSender("slack")
		m.senders = append(m.senders, mock)

		m.Send(rollbackRateAlert("medium"))
		time.Sleep(50 * time.Millisecond)

		if mock.getCallCount() != 1 {
			t.Errorf("expected 1 call to sender, got %d", mock.getCallCount())
		}
		lastAlert := mock.getLastAlert()
		if lastAlert == nil {
			t.Fatal("lastAlert should not be nil")
		}
		if lastAlert.Type != "rollback_rate" {
			t.Errorf("Type = %q, want rollback_rate", lastAlert.Type)
		}
		if lastAlert.Timestamp.IsZero() {
			t.Error("timestamp should be set")
		}
	})

	t.Run("send to multiple senders", func(t *testing.T) {
		m := newTestManager(5 * time.Minute)
		mock1 := newMockSender("slack")
		mock2 := newMockSender("webhook")
		m.senders = append(m.senders, mock1, mock2)

		m.Send(rollbackRateAlert("high"))
		time.Sleep(50 * time.Millisecond)

		if mock1.getCallCount() != 1 {
			t.Errorf("slack: expected 1 call, got %d", mock1.getCallCount())
		}
		if mock2.getCallCount() != 1 {
			t.Errorf("webhook: expected 1 call, got %d", mock2.getCallCount())
		}
	})

	t.Run("deduplication suppresses a repeat of the same severity", func(t *testing.T) {
		m := newTestManager(5 * time.Minute)
		mock := newMockSender("slack")
		m.senders = append(m.senders, mock)

		m.Send(rollbackRateAlert("medium"))
		time.Sleep(50 * time.Millisecond)
		m.Send(rollbackRateAlert("medium"))
		time.Sleep(50 * time.Millisecond)
		m.Send(rollbackRateAlert("medium"))
		time.Sleep(50 * time.Millisecond)

		if mock.getCallCount() != 1 {
			t.Errorf("expected 1 call due to deduplication, got %d", mock.getCallCount())
		}
	})

	t.Run("severity escalation bypasses dedup and carries the suppressed count", func(t *testing.T) {
		m := newTestManager(5 * time.Minute)
		mock := newMockSender("slack")
		m.senders = append(m.senders, mock)

		m.Send(rollbackRateAlert("medium"))
		time.Sleep(20 * time.Millisecond)
		m.Send(rollbackRateAlert("medium")) // suppressed, count=1
		time.Sleep(20 * time.Millisecond)
		m.Send(rollbackRateAlert("high")) // escalates, delivered
		time.Sleep(50 * time.Millisecond)

		if mock.getCallCount() != 2 {
			t.Fatalf("expected 2 deliveries (initial + escalation), got %d", mock.getCallCount())
		}
		last := mock.getLastAlert()
		if last.Severity != "high" {
			t.Errorf("Severity = %q, want high", last.Severity)
		}
		if count, ok := last.Details["suppressed_count"].(int); !ok || count != 1 {
			t.Errorf("Details[suppressed_count] = %v, want 1", last.Details["suppressed_count"])
		}
	})

	t.Run("a lower severity repeat stays suppressed", func(t *testing.T) {
		m := newTestManager(5 * time.Minute)
		mock := newMockSender("slack")
		m.senders = append(m.senders, mock)

		m.Send(rollbackRateAlert("high"))
		time.Sleep(20 * time.Millisecond)
		m.Send(rollbackRateAlert("medium")) // does not outrank high, stays suppressed
		time.Sleep(50 * time.Millisecond)

		if mock.getCallCount() != 1 {
			t.Errorf("expected 1 call, a lower-severity repeat must not escalate, got %d", mock.getCallCount())
		}
	})

	t.Run("deduplication allows after TTL expires", func(t *testing.T) {
		m := newTestManager(100 * time.Millisecond)
		mock := newMockSender("slack")
		m.senders = append(m.senders, mock)

		m.Send(rollbackRateAlert("medium"))
		time.Sleep(50 * time.Millisecond)
		time.Sleep(150 * time.Millisecond) // wait out the TTL
		m.Send(rollbackRateAlert("medium"))
		time.Sleep(50 * time.Millisecond)

		if mock.getCallCount() != 2 {
			t.Errorf("expected 2 calls after TTL expiry, got %d", mock.getCallCount())
		}
	})

	t.Run("different metric or recommendation are not deduplicated", func(t *testing.T) {
		m := newTestManager(5 * time.Minute)
		mock := newMockSender("slack")
		m.senders = append(m.senders, mock)

		alert1 := rollbackRateAlert("medium")
		alert2 := Alert{
			Type:              "execution_success_rate",
			Severity:          "medium",
			Title:             "Execution success rate dropped",
			RecommendationKey: "Investigate rising apply failures",
		}
		alert3 := Alert{
			Type:              "rollback_rate",
			Severity:          "medium",
			Title:             "Different rule, same metric",
			RecommendationKey: "Tighten gate thresholds for this module",
		}

		m.Send(alert1)
		time.Sleep(20 * time.Millisecond)
		m.Send(alert2)
		time.Sleep(20 * time.Millisecond)
		m.Send(alert3)
		time.Sleep(50 * time.Millisecond)

		if mock.getCallCount() != 3 {
			t.Errorf("expected 3 calls for distinct dedup keys, got %d", mock.getCallCount())
		}
	})

	t.Run("sender error does not crash manager", func(t *testing.T) {
		m := newTestManager(5 * time.Minute)
		mock := newMockSender("slack")
		mock.sendFunc = func(Alert) error {
			return &SenderError{SenderName: "slack", Err: "rate limited"}
		}
		m.senders = append(m.senders, mock)

		m.Send(rollbackRateAlert("medium"))
		time.Sleep(50 * time.Millisecond)

		if mock.getCallCount() != 1 {
			t.Errorf("expected 1 call attempt even with error, got %d", mock.getCallCount())
		}
	})
}

// SenderError is a test error type.
type SenderError struct {
	SenderName string
	Err        string
}

func (e *SenderError) Error() string {
	return e.SenderName + ": " + e.Err
}

func TestManager_PruneDedup(t *testing.T) {
	t.Run("prunes entries untouched for more than 2x the TTL", func(t *testing.T) {
		m := newTestManager(100 * time.Millisecond)

		now := time.Now()
		m.dedup["rollback_rate|old"] = dedupEntry{lastSent: now.Add(-300 * time.Millisecond)}
		m.dedup["rollback_rate|older"] = dedupEntry{lastSent: now.Add(-250 * time.Millisecond)}
		m.dedup["rollback_rate|medium-age"] = dedupEntry{lastSent: now.Add(-100 * time.Millisecond)}
		m.dedup["rollback_rate|recent"] = dedupEntry{lastSent: now.Add(-10 * time.Millisecond)}

		if len(m.dedup) != 4 {
			t.Fatalf("expected 4 entries before prune, got %d", len(m.dedup))
		}

		m.PruneDedup()

		if len(m.dedup) != 2 {
			t.Errorf("expected 2 entries after prune, got %d", len(m.dedup))
		}
		if _, exists := m.dedup["rollback_rate|old"]; exists {
			t.Error("old entry should have been pruned")
		}
		if _, exists := m.dedup["rollback_rate|older"]; exists {
			t.Error("older entry should have been pruned")
		}
		if _, exists := m.dedup["rollback_rate|medium-age"]; !exists {
			t.Error("medium-age entry should not have been pruned")
		}
		if _, exists := m.dedup["rollback_rate|recent"]; !exists {
			t.Error("recent entry should not have been pruned")
		}
	})

	t.Run("empty dedup map", func(t *testing.T) {
		m := newTestManager(5 * time.Minute)
		m.PruneDedup()
		if len(m.dedup) != 0 {
			t.Errorf("expected 0 entries, got %d", len(m.dedup))
		}
	})

	t.Run("no entries old enough to prune", func(t *testing.T) {
		m := newTestManager(5 * time.Minute)
		now := time.Now()
		m.dedup["a"] = dedupEntry{lastSent: now.Add(-1 * time.Minute)}
		m.dedup["b"] = dedupEntry{lastSent: now.Add(-2 * time.Minute)}
		m.dedup["c"] = dedupEntry{lastSent: now.Add(-3 * time.Minute)}

		m.PruneDedup()

		if len(m.dedup) != 3 {
			t.Errorf("expected 3 entries (none pruned), got %d", len(m.dedup))
		}
	})
}

func TestManager_ConcurrentSend(t *testing.T) {
	t.Run("concurrent sends of the same alert deduplicate to one delivery", func(t *testing.T) {
		m := newTestManager(5 * time.Minute)
		mock := newMockSender("slack")
		m.senders = append(m.senders, mock)

		alert := rollbackRateAlert("medium")
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				m.Send(alert)
			}()
		}
		wg.Wait()
		time.Sleep(100 * time.Millisecond)

		if count := mock.getCallCount(); count != 1 {
			t.Errorf("expected 1 call due to deduplication, got %d", count)
		}
	})

	t.Run("concurrent sends of distinct metrics all deliver", func(t *testing.T) {
		m := newTestManager(5 * time.Minute)
		mock := newMockSender("slack")
		m.senders = append(m.senders, mock)

		metrics := []string{
			"rollback_rate", "execution_success_rate", "security_intercept_rate",
			"adoption_rate", "satisfaction_avg_score", "dialogue_authorization_block_rate",
			"runtime_block_rate", "authorization_tier_block_rate", "matrix_portfolio_pass_rate",
			"matrix_avg_score",
		}
		var wg sync.WaitGroup
		for _, metric := range metrics {
			wg.Add(1)
			go func(metric string) {
				defer wg.Done()
				m.Send(Alert{
					Type:              metric,
					Severity:          "medium",
					Title:             metric + " threshold breached",
					RecommendationKey: "review " + metric,
				})
			}(metric)
		}
		wg.Wait()
		time.Sleep(100 * time.Millisecond)

		if count := mock.getCallCount(); count != len(metrics) {
			t.Errorf("expected %d calls for distinct metrics, got %d", len(metrics), count)
		}
	})
}

func TestManager_AlertFields(t *testing.T) {
	t.Run("alert with all fields", func(t *testing.T) {
		m := newTestManager(5 * time.Minute)
		mock := newMockSender("slack")
		m.senders = append(m.senders, mock)

		alert := Alert{
			Type:              "rollback_rate",
			Severity:          "high",
			Title:             "Rollback rate breach",
			Message:           "Rollback rate exceeded configured threshold",
			RecommendationKey: "Rollback rate exceeds threshold; review recent plans",
			SessionID:         "session-1",
			Details: map[string]interface{}{
				"rate":      12.5,
				"threshold": 10.0,
			},
		}

		m.Send(alert)
		time.Sleep(50 * time.Millisecond)

		lastAlert := mock.getLastAlert()
		if lastAlert == nil {
			t.Fatal("lastAlert should not be nil")
		}
		if lastAlert.Type != "rollback_rate" {
			t.Errorf("Type = %q, want rollback_rate", lastAlert.Type)
		}
		if lastAlert.Severity != "high" {
			t.Errorf("Severity = %q, want high", lastAlert.Severity)
		}
		if lastAlert.Details["rate"] != 12.5 {
			t.Errorf("Details[rate] = %v, want 12.5", lastAlert.Details["rate"])
		}
	})

	t.Run("alert with minimal fields", func(t *testing.T) {
		m := newTestManager(5 * time.Minute)
		mock := newMockSender("slack")
		m.senders = append(m.senders, mock)

		alert := Alert{
			Type:     "adoption_rate",
			Severity: "low",
			Title:    "Adoption rate dropped",
			Message:  "Adoption rate fell below threshold",
		}

		m.Send(alert)
		time.Sleep(50 * time.Millisecond)

		lastAlert := mock.getLastAlert()
		if lastAlert == nil {
			t.Fatal("lastAlert should not be nil")
		}
		if lastAlert.RecommendationKey != "" {
			t.Error("RecommendationKey should be empty")
		}
		if lastAlert.SessionID != "" {
			t.Error("SessionID should be empty")
		}
		if lastAlert.Details != nil {
			t.Error("Details should be nil")
		}
	})
}
