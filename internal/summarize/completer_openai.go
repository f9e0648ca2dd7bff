package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const openAIChatURL = "https://api.openai.com/v1/chat/completions"

// OpenAICompleter is a Completer backed by OpenAI's chat completions
// endpoint, split out of the provider's original SummarizeNews/
// GeneralMessage methods into the smaller Completer capability.
type OpenAICompleter struct {
	APIKey     string
	HTTPClient *http.Client
}

// NewOpenAICompleter builds an OpenAICompleter with a bounded-timeout client.
func NewOpenAICompleter(apiKey string, timeout time.Duration) *OpenAICompleter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAICompleter{
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *OpenAICompleter) Complete(ctx context.Context, model string, temperature float64, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":       model,
		"temperature": temperature,
		"messages": []chatMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", &CompletionError{Kind: ErrorKindPermanent, Err: fmt.Errorf("marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIChatURL, bytes.NewReader(body))
	if err != nil {
		return "", &CompletionError{Kind: ErrorKindPermanent, Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

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
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &CompletionError{Kind: ErrorKindPermanent, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &CompletionError{Kind: ErrorKindPermanent, Err: fmt.Errorf("empty choices")}
	}
	return parsed.Choices[0].Message.Content, nil
}
