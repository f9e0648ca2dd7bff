package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const anthropicMessagesURL = "https://api.anthropic.com/v1/messages"

// AnthropicCompleter is a Completer backed by Anthropic's messages
// endpoint, grounded on the same request/response shape as
// summarization.provider: "anthropic" in the devnews teacher's
// internal/ai/ai.go claudeProvider, adapted to return a classified
// CompletionError the way OpenAICompleter does instead of a bare error.
type AnthropicCompleter struct {
	APIKey     string
	HTTPClient *http.Client
}

// NewAnthropicCompleter builds an AnthropicCompleter with a bounded-timeout
// client.
func NewAnthropicCompleter(apiKey string, timeout time.Duration) *AnthropicCompleter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AnthropicCompleter{
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *AnthropicCompleter) Complete(ctx context.Context, model string, temperature float64, prompt string) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:       model,
		MaxTokens:   1024,
		Temperature: temperature,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", &CompletionError{Kind: ErrorKindPermanent, Err: fmt.Errorf("marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicMessagesURL, bytes.NewReader(body))
	if err != nil {
		return "", &CompletionError{Kind: ErrorKindPermanent, Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", &CompletionError{Kind: ErrorKindTransient, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &CompletionError{Kind: ErrorKindQuota, Err: fmt.Errorf("rate limited")}
	case resp.StatusCode >= 500:
		return "", &CompletionError{Kind: ErrorKindTransient, Err: fmt.Errorf("server error %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return "", &CompletionError{Kind: ErrorKindPermanent, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var parsed struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &CompletionError{Kind: ErrorKindPermanent, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if len(parsed.Content) == 0 {
		return "", &CompletionError{Kind: ErrorKindPermanent, Err: fmt.Errorf("empty content")}
	}
	return parsed.Content[0].Text, nil
}
