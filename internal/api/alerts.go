package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/AaronLay10/StoryEngine/internal/events"
)

// Alert severity levels
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Alert event types
const (
	AlertMQTTDisconnected = "mqtt_disconnected"
	AlertStoryError       = "story_error"
	AlertStoryDeadEnd     = "story_dead_end"
	AlertSystemError      = "system_error"
)

// AlertPayload is the JSON structure sent to the webhook.
type AlertPayload struct {
	Service    string         `json:"service"`
	Event      string         `json:"event"`
	Timestamp  string         `json:"timestamp"`
	Severity   string         `json:"severity"`
	InstanceID string         `json:"instance_id,omitempty"`
	Message    string         `json:"message,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// AlertConfig configures an Alerter.
type AlertConfig struct {
	// WebhookURL receives alerts. Without it alerts are only logged.
	WebhookURL string
	Service    string
	// MQTTDisconnectDelay is how long the broker must stay away before
	// alerting.
	MQTTDisconnectDelay time.Duration
	Client              *http.Client
	Logger              *slog.Logger
}

// Alerter watches the event bus and notifies a webhook about failing
// stories and lost transports.
type Alerter struct {
	cfg AlertConfig

	mu            sync.Mutex
	mqttDownSince time.Time
	mqttAlertSent bool
	mqttGen       int
	mqttTimer     *time.Timer

	wg sync.WaitGroup
}

// NewAlerter creates an Alerter.
func NewAlerter(cfg AlertConfig) *Alerter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.MQTTDisconnectDelay <= 0 {
		cfg.MQTTDisconnectDelay = 30 * time.Second
	}
	if cfg.Service == "" {
		cfg.Service = "storyengine"
	}
	if cfg.WebhookURL != "" {
		cfg.Logger.Info("alerts enabled", "mqtt_delay", cfg.MQTTDisconnectDelay)
	}
	return &Alerter{cfg: cfg}
}

// Watch subscribes the alerter to bus.
func (a *Alerter) Watch(bus *events.Bus) {
	bus.Observe(a.Observe)
}

// Observe handles one bus event. It never blocks.
func (a *Alerter) Observe(e events.Event) {
	switch e.Name {
	case "story.error":
		a.Send(AlertStoryError, SeverityCritical, e.InstanceID(), e.Message, e.Fields)
	case "story.dead_end":
		a.Send(AlertStoryDeadEnd, SeverityWarning, e.InstanceID(), "story reached a dead end", e.Fields)
	case "system.error":
		a.Send(AlertSystemError, SeverityCritical, "", e.Message, e.Fields)
	case "mqtt.disconnected":
		a.mqttDown()
	case "mqtt.connected":
		a.mqttUp()
	}
}

func (a *Alerter) mqttDown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.mqttDownSince.IsZero() {
		return
	}
	a.mqttDownSince = time.Now()
	gen := a.mqttGen
	a.mqttTimer = time.AfterFunc(a.cfg.MQTTDisconnectDelay, func() { a.mqttStillDown(gen) })
}

func (a *Alerter) mqttStillDown(gen int) {
	a.mu.Lock()
	if gen != a.mqttGen || a.mqttAlertSent {
		a.mu.Unlock()
		return
	}
	a.mqttAlertSent = true
	since := a.mqttDownSince
	a.mu.Unlock()

	a.Send(AlertMQTTDisconnected, SeverityWarning, "", "MQTT broker disconnected", map[string]any{
		"disconnected_since":   since.UTC().Format(time.RFC3339),
		"disconnected_seconds": int(time.Since(since).Seconds()),
	})
}

func (a *Alerter) mqttUp() {
	a.mu.Lock()
	a.mqttGen++
	if a.mqttTimer != nil {
		a.mqttTimer.Stop()
		a.mqttTimer = nil
	}
	recovered := a.mqttAlertSent
	a.mqttAlertSent = false
	a.mqttDownSince = time.Time{}
	a.mu.Unlock()

	if recovered {
		a.Send(AlertMQTTDisconnected, SeverityInfo, "", "MQTT connection restored", map[string]any{
			"recovered_at": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Send posts an alert to the webhook in the background. Without a webhook
// the alert is logged.
func (a *Alerter) Send(event, severity, instanceID, message string, details map[string]any) {
	if a.cfg.WebhookURL == "" {
		a.cfg.Logger.Warn("alert", "event", event, "severity", severity,
			"instance_id", instanceID, "msg", message, "details", details)
		return
	}

	body, err := json.Marshal(AlertPayload{
		Service:    a.cfg.Service,
		Event:      event,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Severity:   severity,
		InstanceID: instanceID,
		Message:    message,
		Details:    details,
	})
	if err != nil {
		a.cfg.Logger.Error("alert: failed to marshal payload", "err", err)
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.post(body)
	}()
}

func (a *Alerter) post(body []byte) {
	resp, err := a.cfg.Client.Post(a.cfg.WebhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		a.cfg.Logger.Warn("alert: webhook POST failed", "err", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		a.cfg.Logger.Warn("alert: webhook returned error status", "status", resp.StatusCode)
	}
}

// Close stops the pending disconnect timer and waits for in-flight
// webhook posts.
func (a *Alerter) Close() {
	a.mu.Lock()
	a.mqttGen++
	if a.mqttTimer != nil {
		a.mqttTimer.Stop()
		a.mqttTimer = nil
	}
	a.mu.Unlock()
	a.wg.Wait()
}
