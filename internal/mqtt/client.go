package mqtt

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/StoryEngine/internal/events"
)

const (
	// DefaultBrokerURL is used when no broker is configured.
	DefaultBrokerURL = "tcp://localhost:1883"

	operationTimeout = 10 * time.Second
	qos              = 1
)

// ErrNotConnected is returned when publishing without a broker connection.
var ErrNotConnected = errors.New("mqtt not connected")

// Config configures a Client.
type Config struct {
	URL      string
	ClientID string
	// Bus receives mqtt.connected and mqtt.disconnected events. Optional.
	Bus    *events.Bus
	Logger *slog.Logger
}

// Client wraps the Paho MQTT client. Subscriptions are remembered and
// restored after every reconnect.
type Client struct {
	client paho.Client
	url    string
	bus    *events.Bus
	logger *slog.Logger

	mu   sync.Mutex
	subs map[string]paho.MessageHandler
}

// NewClient creates a client but does not connect.
func NewClient(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultBrokerURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	c := &Client{
		url:    cfg.URL,
		bus:    cfg.Bus,
		logger: cfg.Logger,
		subs:   make(map[string]paho.MessageHandler),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.URL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetOnConnectHandler(func(paho.Client) { c.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { c.onConnectionLost(err) })

	c.client = paho.NewClient(opts)
	return c
}

// Connect connects to the broker, waiting at most ten seconds.
func (c *Client) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(operationTimeout) {
		return &ConnectTimeoutError{URL: c.url}
	}
	return token.Error()
}

// Subscribe subscribes topic with handler and remembers it for reconnects.
// While disconnected the subscription is only recorded; it is made on the
// next connect.
func (c *Client) Subscribe(topic string, handler paho.MessageHandler) error {
	c.mu.Lock()
	c.subs[topic] = handler
	c.mu.Unlock()

	if !c.client.IsConnected() {
		return nil
	}
	return c.subscribe(topic, handler)
}

func (c *Client) subscribe(topic string, handler paho.MessageHandler) error {
	token := c.client.Subscribe(topic, qos, handler)
	if !token.WaitTimeout(operationTimeout) {
		return &SubscribeTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Publish sends payload to topic.
func (c *Client) Publish(topic string, payload []byte) error {
	if !c.client.IsConnected() {
		return ErrNotConnected
	}
	token := c.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(operationTimeout) {
		return &PublishTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Disconnect cleanly disconnects from the broker.
func (c *Client) Disconnect() {
	c.client.Disconnect(1000)
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

func (c *Client) onConnect() {
	c.emit("info", "mqtt.connected", map[string]any{"url": c.url})

	c.mu.Lock()
	subs := make(map[string]paho.MessageHandler, len(c.subs))
	for t, h := range c.subs {
		subs[t] = h
	}
	c.mu.Unlock()

	for topic, handler := range subs {
		if err := c.subscribe(topic, handler); err != nil {
			c.logger.Error("mqtt resubscribe failed", "topic", topic, "err", err)
			c.emit("error", "mqtt.error", map[string]any{"topic": topic, "error": err.Error()})
		}
	}
}

func (c *Client) onConnectionLost(err error) {
	c.logger.Warn("mqtt connection lost", "url", c.url, "err", err)
	fields := map[string]any{"url": c.url}
	if err != nil {
		fields["error"] = err.Error()
	}
	c.emit("warn", "mqtt.disconnected", fields)
}

func (c *Client) emit(level, name string, fields map[string]any) {
	if c.bus == nil {
		return
	}
	_, _ = c.bus.Emit(level, name, "", fields)
}

// ConnectTimeoutError indicates connection timed out.
type ConnectTimeoutError struct {
	URL string
}

func (e *ConnectTimeoutError) Error() string {
	return "mqtt connect timeout: " + e.URL
}

// SubscribeTimeoutError indicates subscription timed out.
type SubscribeTimeoutError struct {
	Topic string
}

func (e *SubscribeTimeoutError) Error() string {
	return "mqtt subscribe timeout: " + e.Topic
}

// PublishTimeoutError indicates a publish was not acknowledged in time.
type PublishTimeoutError struct {
	Topic string
}

func (e *PublishTimeoutError) Error() string {
	return "mqtt publish timeout: " + e.Topic
}
