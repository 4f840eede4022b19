package mqtt

import (
	"encoding/json"
	"fmt"

	"github.com/AaronLay10/StoryEngine/internal/story"
)

// Publisher sends a payload to a topic. *Client implements it.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// EffectPublisher forwards story effects to presentation devices over MQTT.
type EffectPublisher struct {
	pub    Publisher
	prefix string
}

// NewEffectPublisher publishes under prefix, or DefaultTopicPrefix.
func NewEffectPublisher(pub Publisher, prefix string) *EffectPublisher {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &EffectPublisher{pub: pub, prefix: prefix}
}

// EffectMessage is the JSON payload of an effect topic.
type EffectMessage struct {
	InstanceID string `json:"instance_id"`
	story.Effect
}

// Sink returns the effect sink for one instance. It matches
// orchestrator.SinkFactory.
func (p *EffectPublisher) Sink(instanceID string) story.EffectSink {
	return story.EffectSinkFunc(func(e story.Effect) error {
		payload, err := json.Marshal(EffectMessage{InstanceID: instanceID, Effect: e})
		if err != nil {
			return fmt.Errorf("failed to marshal effect: %w", err)
		}
		return p.pub.Publish(EffectTopic(p.prefix, instanceID, string(e.Kind)), payload)
	})
}
