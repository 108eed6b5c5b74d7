package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ShortsIntel/internal/config"
	"ShortsIntel/internal/ports"
)

const (
	maxAttempts = 3
	backoffBase = 500 * time.Millisecond
)

// Client implements ports.InsightClient against OpenAI-compatible
// chat-completions endpoints. Rate limits and upstream errors are retried a
// bounded number of times before the worker sees the failure.
type Client struct {
	endpoint string
	model    string
	apiKey   string
	http     *http.Client
	logger   *slog.Logger
	backoff  time.Duration
}

var _ ports.InsightClient = (*Client)(nil)

// NewClient builds a client from configuration.
func NewClient(cfg config.InsightConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger:  logger.With("component", "llm"),
		backoff: backoffBase,
	}
}

// GenerateInsights posts the system prompt and the JSON payload as a chat
// exchange and returns the model's raw content for the caller to parse.
func (c *Client) GenerateInsights(ctx context.Context, system string, payload []byte) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("insight client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return nil, fmt.Errorf("insight client misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": string(payload)},
		},
		"temperature":     0.2,
		"response_format": map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal insight request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		content, err := c.send(ctx, body)
		if err == nil {
			return content, nil
		}
		lastErr = err

		var transient *ports.TransientError
		if !errors.As(err, &transient) || attempt == maxAttempts {
			break
		}
		c.logger.Warn("insight request failed, retrying", "attempt", attempt, "err", err)
		if err := sleep(ctx, c.backoff<<(attempt-1)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) send(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ports.TransientError{Op: "chat completion", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return nil, &ports.TransientError{Op: "chat completion", Status: resp.StatusCode}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("insight api error %s: %s", resp.Status, strings.TrimSpace(string(excerpt)))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode insight response: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("insight response carries no content")
	}
	return []byte(parsed.Choices[0].Message.Content), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
