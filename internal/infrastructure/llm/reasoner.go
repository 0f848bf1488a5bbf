package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"courtwatch/internal/config"
	"courtwatch/internal/ports"
)

// Client talks to an OpenAI-compatible chat-completion endpoint. One
// request carries the system instructions and a single user message;
// the model identifier and output bound are fixed per deployment.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	maxTokens  int
	httpClient *http.Client
}

var _ ports.Reasoner = (*Client)(nil)

// NewClient builds a client from configuration.
func NewClient(cfg config.ReasonerConfig) *Client {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Client{
		endpoint:  cfg.Endpoint,
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		maxTokens: maxTokens,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one system+user exchange and returns the raw reply
// text. Callers parse out any JSON themselves via ExtractJSON.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if c == nil || c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("reasoner client misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model":      c.model,
		"max_tokens": c.maxTokens,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call reasoner: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("reasoner error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("reasoner returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

var fenceExpr = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSON pulls the JSON object out of a model reply that may wrap
// it in a fenced code block or surround it with prose. ok=false means
// no parseable object was found.
func ExtractJSON(reply string) ([]byte, bool) {
	if m := fenceExpr.FindStringSubmatch(reply); m != nil {
		candidate := []byte(m[1])
		if json.Valid(candidate) {
			return candidate, true
		}
	}

	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	candidate := []byte(reply[start : end+1])
	if !json.Valid(candidate) {
		return nil, false
	}
	return candidate, true
}
