package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Parameter describes one input accepted by a capability. Declaration order
// matters: the classifier binds trailing free text to the first required
// string parameter.
type Parameter struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Handler executes one capability invocation. The context snapshot is
// read-only; handlers must honor ctx cancellation.
type Handler interface {
	Invoke(ctx context.Context, params map[string]any, snapshot []ContextEntry) (string, error)
}

// HandlerFunc adapts a plain function to the Handler contract.
type HandlerFunc func(ctx context.Context, params map[string]any, snapshot []ContextEntry) (string, error)

func (f HandlerFunc) Invoke(ctx context.Context, params map[string]any, snapshot []ContextEntry) (string, error) {
	return f(ctx, params, snapshot)
}

// Capability is immutable once registered.
type Capability struct {
	Name        string      `json:"name"`
	Version     string      `json:"version"`
	Description string      `json:"description"`
	Triggers    []string    `json:"triggers"`
	Parameters  []Parameter `json:"parameters,omitempty"`
	Handler     Handler     `json:"-"`
}

// IntentCandidate is one classifier proposal. Transient, never persisted.
type IntentCandidate struct {
	Capability string         `json:"capability"`
	Confidence float64        `json:"confidence"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

// ContextEntry is one turn in a session's history.
type ContextEntry struct {
	Turn      int64           `json:"turn"`
	Role      Role            `json:"role"`
	Content   string          `json:"content"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"ts"`
}

// DispatchResult records the outcome of one handler invocation. Appended to
// context as a system entry and never mutated afterwards.
type DispatchResult struct {
	Capability string        `json:"capability"`
	Success    bool          `json:"success"`
	Output     string        `json:"output,omitempty"`
	ErrorKind  ErrorKind     `json:"error_kind,omitempty"`
	ErrorMsg   string        `json:"error_msg,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

type InputEvent struct {
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"ts,omitempty"`
}

// Status of one dispatch cycle as surfaced to the caller.
type Status string

const (
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusAmbiguous    Status = "ambiguous"
	StatusUnrecognized Status = "unrecognized"
)

type OutputEvent struct {
	SessionID  string    `json:"session_id"`
	Status     Status    `json:"status"`
	Capability string    `json:"capability,omitempty"`
	Reply      string    `json:"reply,omitempty"`
	Candidates []string  `json:"candidates,omitempty"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
	Timestamp  time.Time `json:"ts"`
}

// MQTT bridge payloads

type InvokeRequest struct {
	RequestID  string         `json:"request_id"`
	Capability string         `json:"capability"`
	Parameters map[string]any `json:"parameters"`
}

type InvokeResult struct {
	RequestID string `json:"request_id"`
	OK        bool   `json:"ok"`
	Output    string `json:"output"`
	Error     string `json:"error,omitempty"`
}
