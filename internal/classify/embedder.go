package classify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// HTTPEmbedder talks to an OpenAI-compatible /embeddings endpoint, typically
// a local inference runtime such as Ollama.
type HTTPEmbedder struct {
	client  *resty.Client
	baseURL string
	model   string
	apiKey  string
}

func NewHTTPEmbedder(baseURL, model, apiKey string, timeout time.Duration) *HTTPEmbedder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(500 * time.Millisecond)

	return &HTTPEmbedder{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
	}
}

func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	req := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"model": e.model,
			"input": text,
		})
	if e.apiKey != "" {
		req.SetHeader("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := req.Post(e.baseURL + "/embeddings")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("embeddings status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	vec, err := parseEmbedding(resp.Body())
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// parseEmbedding accepts both the OpenAI shape (data.0.embedding) and the
// bare Ollama shape (embedding / embeddings.0).
func parseEmbedding(body []byte) ([]float64, error) {
	for _, path := range []string{"data.0.embedding", "embeddings.0", "embedding"} {
		arr := gjson.GetBytes(body, path)
		if !arr.IsArray() {
			continue
		}
		values := arr.Array()
		if len(values) == 0 {
			continue
		}
		vec := make([]float64, len(values))
		for i, v := range values {
			vec[i] = v.Float()
		}
		return vec, nil
	}
	return nil, fmt.Errorf("no embedding vector in response")
}
