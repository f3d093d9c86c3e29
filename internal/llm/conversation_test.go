package llm

import (
	"context"
	"testing"

	"relay/internal/domain"
)

type fakeProvider struct {
	lastReq Request
	reply   string
}

func (p *fakeProvider) Complete(_ context.Context, req Request) (Response, error) {
	p.lastReq = req
	return Response{Content: p.reply}, nil
}

func TestConversationHandlerReplaysHistory(t *testing.T) {
	provider := &fakeProvider{reply: "  It is sunny.  "}
	handler := ConversationHandler(provider, "test-model")

	snapshot := []domain.ContextEntry{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAgent, Content: "hello"},
		{Role: domain.RoleSystem, Content: "dispatch conversation ok=true"},
		{Role: domain.RoleUser, Content: "what is the weather"},
	}
	out, err := handler.Invoke(context.Background(), nil, snapshot)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out != "It is sunny." {
		t.Fatalf("output = %q, want trimmed provider reply", out)
	}

	msgs := provider.lastReq.Messages
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3 (system entries excluded)", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[1].Role != "assistant" || msgs[2].Role != "user" {
		t.Fatalf("message roles = %v, want user/assistant/user", msgs)
	}
	if provider.lastReq.Model != "test-model" {
		t.Fatalf("model = %q, want test-model", provider.lastReq.Model)
	}
}

func TestConversationHandlerEmptyInput(t *testing.T) {
	handler := ConversationHandler(&fakeProvider{}, "m")
	_, err := handler.Invoke(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("expected error with no conversational input")
	}
	kind, _ := domain.ClassifyError(err)
	if kind != domain.ErrInvalidParameters {
		t.Fatalf("error kind = %q, want %q", kind, domain.ErrInvalidParameters)
	}
}

func TestHistoryMessagesWindow(t *testing.T) {
	snapshot := make([]domain.ContextEntry, 30)
	for i := range snapshot {
		snapshot[i] = domain.ContextEntry{Role: domain.RoleUser, Content: "m"}
	}
	if got := len(historyMessages(snapshot, 20)); got != 20 {
		t.Fatalf("window = %d, want 20", got)
	}
}

func TestEchoHandler(t *testing.T) {
	handler := EchoHandler()
	snapshot := []domain.ContextEntry{
		{Role: domain.RoleUser, Content: "first"},
		{Role: domain.RoleSystem, Content: "noise"},
		{Role: domain.RoleUser, Content: "second"},
	}
	out, err := handler.Invoke(context.Background(), nil, snapshot)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out != "You said: second" {
		t.Fatalf("output = %q", out)
	}

	out, _ = handler.Invoke(context.Background(), nil, nil)
	if out != "Hello." {
		t.Fatalf("empty-snapshot output = %q, want greeting", out)
	}
}
