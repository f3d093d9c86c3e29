package mqtt

import (
	"fmt"
	"strings"
)

// expected: {prefix}/agent/{agentId}/{kind}/...
func ParseAgentID(topic, prefix string) (string, error) {
	parts := strings.Split(topic, "/")
	prefixParts := strings.Split(prefix, "/")
	if len(parts) < len(prefixParts)+3 {
		return "", fmt.Errorf("invalid topic: %s", topic)
	}
	for i, p := range prefixParts {
		if parts[i] != p {
			return "", fmt.Errorf("topic prefix mismatch: %s", topic)
		}
	}
	if parts[len(prefixParts)] != "agent" {
		return "", fmt.Errorf("invalid topic pattern: %s", topic)
	}
	return parts[len(prefixParts)+1], nil
}

// ParseRequestID extracts the correlation ID from an invoke or result topic.
// Presence topics (online, heartbeat) carry none and yield "".
func ParseRequestID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return ""
	}
	switch parts[len(parts)-2] {
	case "invoke", "result":
		return parts[len(parts)-1]
	}
	return ""
}
