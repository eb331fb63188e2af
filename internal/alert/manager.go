package alert

import (
	"log/slog"
	"sync"
	"time"

	"github.com/icg-systems/icg/internal/config"
)

// Alert represents a governance-threshold breach to be delivered to an
// operator channel (spec.md §4.13's {alerts[], recommendations[]} output).
type Alert struct {
	Type              string                 `json:"type"`     // metric name the alert fired on, e.g. rollback_rate, security_intercept_rate
	Severity          string                 `json:"severity"` // low, medium, high
	Title             string                 `json:"title"`
	Message           string                 `json:"message"`
	RecommendationKey string                 `json:"recommendation_key"` // the recommendation text this alert was deduplicated by
	SessionID         string                 `json:"session_id,omitempty"`
	Details           map[string]interface{} `json:"details,omitempty"`
	Timestamp         time.Time              `json:"timestamp"`
}

var severityRank = map[string]int{"low": 0, "medium": 1, "high": 2}

func rank(severity string) int {
	if r, ok := severityRank[severity]; ok {
		return r
	}
	return 0
}

// dedupEntry tracks the last delivery of one metric+recommendation alert,
// plus how many subsequent breaches at an equal or lower severity were
// suppressed since then.
type dedupEntry struct {
	lastSent   time.Time
	severity   string
	suppressed int
}

// Manager orchestrates alert delivery with severity-aware deduplication: a
// breach that repeats within the dedup window is suppressed unless its
// severity has escalated past what was last delivered, since an operator
// who already saw a "medium" rollback-rate alert still needs to hear about
// the same metric going "high".
type Manager struct {
	mu       sync.Mutex
	config   config.AlertsConfig
	senders  []Sender
	dedup    map[string]dedupEntry
	dedupTTL time.Duration
	logger   *slog.Logger
}

// Sender is an interface for alert delivery channels.
type Sender interface {
	Send(alert Alert) error
	Name() string
}

const defaultDedupTTL = 5 * time.Minute

// NewManager creates a new alert manager.
func NewManager(cfg config.AlertsConfig, logger *slog.Logger) *Manager {
	ttl := defaultDedupTTL
	if cfg.DedupWindowSeconds > 0 {
		ttl = time.Duration(cfg.DedupWindowSeconds) * time.Second
	}
	m := &Manager{
		config:   cfg,
		senders:  make([]Sender, 0),
		dedup:    make(map[string]dedupEntry),
		dedupTTL: ttl,
		logger:   logger,
	}

	// Register configured senders
	if cfg.Slack.WebhookURL != "" {
		m.senders = append(m.senders, NewSlackSender(cfg.Slack))
	}
	if cfg.Webhook.URL != "" {
		m.senders = append(m.senders, NewWebhookSender(cfg.Webhook))
	}

	return m
}

// Send dispatches an alert to all configured channels, deduplicating
// repeats of the same metric+recommendation unless the new severity
// outranks the last one delivered. A delivery that follows suppressed
// repeats carries Details["suppressed_count"] so the operator sees how
// many breaches were folded into it rather than silently dropped.
func (m *Manager) Send(alert Alert) {
	alert.Timestamp = time.Now()

	dedupKey := alert.Type + "|" + alert.RecommendationKey
	m.mu.Lock()
	entry, seen := m.dedup[dedupKey]
	if seen && time.Since(entry.lastSent) < m.dedupTTL && rank(alert.Severity) <= rank(entry.severity) {
		entry.suppressed++
		m.dedup[dedupKey] = entry
		m.mu.Unlock()
		m.logger.Debug("alert deduplicated", "type", alert.Type, "key", dedupKey, "suppressed", entry.suppressed)
		return
	}
	suppressed := entry.suppressed
	m.dedup[dedupKey] = dedupEntry{lastSent: time.Now(), severity: alert.Severity}
	m.mu.Unlock()

	if suppressed > 0 {
		if alert.Details == nil {
			alert.Details = make(map[string]interface{})
		}
		alert.Details["suppressed_count"] = suppressed
	}

	// Dispatch to all senders (async)
	for _, sender := range m.senders {
		go func(s Sender) {
			if err := s.Send(alert); err != nil {
				m.logger.Error("failed to send alert",
					"sender", s.Name(),
					"type", alert.Type,
					"error", err,
				)
			}
		}(sender)
	}
}

// PruneDedup removes dedup entries untouched for more than 2*dedupTTL.
// Call periodically.
func (m *Manager) PruneDedup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for key, entry := range m.dedup {
		if now.Sub(entry.lastSent) > m.dedupTTL*2 {
			delete(m.dedup, key)
		}
	}
}

// HasSenders returns true if any alert channels are configured.
func (m *Manager) HasSenders() bool {
	return len(m.senders) > 0
}
