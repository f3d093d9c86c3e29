package mqtt

import "fmt"

func TopicAgentOnline(prefix string) string {
	return fmt.Sprintf("%s/agent/+/online", prefix)
}

func TopicAgentHeartbeat(prefix string) string {
	return fmt.Sprintf("%s/agent/+/heartbeat", prefix)
}

func TopicAgentResult(prefix string) string {
	return fmt.Sprintf("%s/agent/+/result/+", prefix)
}

func TopicInvoke(prefix, agentID, requestID string) string {
	return fmt.Sprintf("%s/agent/%s/invoke/%s", prefix, agentID, requestID)
}

func TopicResult(prefix, agentID, requestID string) string {
	return fmt.Sprintf("%s/agent/%s/result/%s", prefix, agentID, requestID)
}

func TopicInvokeWildcard(prefix, agentID string) string {
	return fmt.Sprintf("%s/agent/%s/invoke/+", prefix, agentID)
}

func TopicOnline(prefix, agentID string) string {
	return fmt.Sprintf("%s/agent/%s/online", prefix, agentID)
}

func TopicHeartbeat(prefix, agentID string) string {
	return fmt.Sprintf("%s/agent/%s/heartbeat", prefix, agentID)
}
