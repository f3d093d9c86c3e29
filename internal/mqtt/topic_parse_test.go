package mqtt

import "testing"

func TestParseAgentID(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		prefix  string
		want    string
		wantErr bool
	}{
		{name: "online", topic: "relay/agent/agent-demo-01/online", prefix: "relay", want: "agent-demo-01"},
		{name: "result with request id", topic: "relay/agent/a1/result/req-9", prefix: "relay", want: "a1"},
		{name: "nested prefix", topic: "org/relay/agent/a2/heartbeat", prefix: "org/relay", want: "a2"},
		{name: "wrong prefix", topic: "other/agent/a1/online", prefix: "relay", wantErr: true},
		{name: "wrong pattern", topic: "relay/terminal/a1/online", prefix: "relay", wantErr: true},
		{name: "too short", topic: "relay/agent", prefix: "relay", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAgentID(tt.topic, tt.prefix)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %s", tt.topic)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("agent id = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseRequestID(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		want  string
	}{
		{name: "result topic", topic: "relay/agent/a1/result/req-42", want: "req-42"},
		{name: "invoke topic", topic: "relay/agent/a1/invoke/req-7", want: "req-7"},
		{name: "online topic has no id", topic: "relay/agent/a1/online", want: ""},
		{name: "heartbeat topic has no id", topic: "relay/agent/a1/heartbeat", want: ""},
		{name: "bare topic", topic: "relay", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseRequestID(tt.topic); got != tt.want {
				t.Fatalf("request id = %q, want %q", got, tt.want)
			}
		})
	}
}
