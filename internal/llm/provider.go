package llm

import (
	"context"
	"net/http"
	"time"
)

type Message struct {
	Role    string
	Content string
}

type Request struct {
	Model    string
	System   string
	Messages []Message
}

type Response struct {
	Content string
}

type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

func NewProvider(cfg Config) Provider {
	client := &http.Client{Timeout: 60 * time.Second}
	return NewOpenAIProvider(client, cfg.BaseURL, cfg.APIKey)
}
