package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/StoryEngine/internal/events"
	"github.com/AaronLay10/StoryEngine/internal/orchestrator"
)

const commandTimeout = 5 * time.Second

// ErrBadInput is returned for input messages that cannot be turned into a
// command.
var ErrBadInput = errors.New("bad input message")

// Subscriber subscribes a handler to a topic filter. *Client implements it.
type Subscriber interface {
	Subscribe(topic string, handler paho.MessageHandler) error
}

// Controller runs named commands against story instances.
// *orchestrator.Manager implements it.
type Controller interface {
	Command(ctx context.Context, id, name string, extra map[string]any, fn func(*orchestrator.Runtime) error) error
}

// InputMessage is the JSON payload of <prefix>/<instance>/input.
type InputMessage = orchestrator.CommandRequest

// InputBridge turns messages on instance input topics into commands, so
// physical props and show controllers can drive a story.
type InputBridge struct {
	sub    Subscriber
	ctrl   Controller
	prefix string
	bus    *events.Bus
	logger *slog.Logger
}

// NewInputBridge creates a bridge. bus and logger may be nil.
func NewInputBridge(sub Subscriber, ctrl Controller, prefix string, bus *events.Bus, logger *slog.Logger) *InputBridge {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InputBridge{sub: sub, ctrl: ctrl, prefix: prefix, bus: bus, logger: logger}
}

// Start subscribes to the input topics.
func (b *InputBridge) Start() error {
	return b.sub.Subscribe(InputFilter(b.prefix), b.handle)
}

func (b *InputBridge) handle(_ paho.Client, msg paho.Message) {
	if err := b.Handle(msg.Topic(), msg.Payload()); err != nil {
		b.logger.Warn("mqtt input rejected", "topic", msg.Topic(), "err", err)
		b.emit("warn", "mqtt.error", map[string]any{"topic": msg.Topic(), "error": err.Error()})
	}
}

// Handle processes one input message.
func (b *InputBridge) Handle(topic string, payload []byte) error {
	instanceID, ok := ParseInputTopic(b.prefix, topic)
	if !ok {
		return fmt.Errorf("%w: unexpected topic %s", ErrBadInput, topic)
	}

	var msg InputMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	fn, err := msg.Func()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadInput, err)
	}

	fields := msg.Fields()
	fields["instance_id"] = instanceID
	fields["action"] = msg.Action
	fields["topic"] = topic
	b.emit("info", "mqtt.input", fields)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return b.ctrl.Command(ctx, instanceID, msg.Action, msg.Fields(), fn)
}

func (b *InputBridge) emit(level, name string, fields map[string]any) {
	if b.bus == nil {
		return
	}
	_, _ = b.bus.Emit(level, name, "", fields)
}
