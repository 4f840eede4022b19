package mqtt

import "strings"

// DefaultTopicPrefix roots every engine topic.
const DefaultTopicPrefix = "story"

// EffectTopic is where effects of kind for instance are published:
// <prefix>/<instance>/effects/<kind>.
func EffectTopic(prefix, instanceID, kind string) string {
	return prefix + "/" + instanceID + "/effects/" + kind
}

// InputFilter matches the input topic of every instance.
func InputFilter(prefix string) string {
	return prefix + "/+/input"
}

// ParseInputTopic extracts the instance ID from <prefix>/<instance>/input.
func ParseInputTopic(prefix, topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return "", false
	}
	instanceID, ok := strings.CutSuffix(rest, "/input")
	if !ok || instanceID == "" || strings.Contains(instanceID, "/") {
		return "", false
	}
	return instanceID, true
}
