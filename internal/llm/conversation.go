package llm

import (
	"context"
	"fmt"
	"strings"

	"relay/internal/domain"
)

const conversationSystemPrompt = "You are a local desktop assistant. Answer briefly and concretely. " +
	"You cannot take actions; actions are handled by other capabilities."

// historyWindow bounds how many context turns are replayed to the model per
// conversation call.
const historyWindow = 20

// ConversationHandler turns the chat provider into an ordinary capability
// handler. The context snapshot becomes the model's message history.
func ConversationHandler(provider Provider, model string) domain.Handler {
	return domain.HandlerFunc(func(ctx context.Context, params map[string]any, snapshot []domain.ContextEntry) (string, error) {
		messages := historyMessages(snapshot, historyWindow)
		if len(messages) == 0 {
			if text, ok := params["text"].(string); ok && text != "" {
				messages = append(messages, Message{Role: "user", Content: text})
			}
		}
		if len(messages) == 0 {
			return "", domain.NewHandlerError(domain.ErrInvalidParameters, "no conversational input available")
		}

		resp, err := provider.Complete(ctx, Request{
			Model:    model,
			System:   conversationSystemPrompt,
			Messages: messages,
		})
		if err != nil {
			return "", fmt.Errorf("conversation: %w", err)
		}
		return strings.TrimSpace(resp.Content), nil
	})
}

// EchoHandler stands in for the conversation capability when no chat
// endpoint is configured, so routing still resolves end to end.
func EchoHandler() domain.Handler {
	return domain.HandlerFunc(func(_ context.Context, _ map[string]any, snapshot []domain.ContextEntry) (string, error) {
		for i := len(snapshot) - 1; i >= 0; i-- {
			if snapshot[i].Role == domain.RoleUser {
				return "You said: " + snapshot[i].Content, nil
			}
		}
		return "Hello.", nil
	})
}

func historyMessages(snapshot []domain.ContextEntry, limit int) []Message {
	start := 0
	if len(snapshot) > limit {
		start = len(snapshot) - limit
	}
	messages := make([]Message, 0, len(snapshot)-start)
	for _, entry := range snapshot[start:] {
		switch entry.Role {
		case domain.RoleUser:
			messages = append(messages, Message{Role: "user", Content: entry.Content})
		case domain.RoleAgent:
			messages = append(messages, Message{Role: "assistant", Content: entry.Content})
		}
	}
	return messages
}
