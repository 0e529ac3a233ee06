// AngelaMos | 2026
// client.go

package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"

	"github.com/auramanager/aura-api/internal/config"
	"github.com/auramanager/aura-api/internal/core"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CompletionRequest struct {
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int
	// JSON asks the model for a single JSON object.
	JSON bool
}

// Client calls an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxRetries uint64
	http       *http.Client
	logger     *slog.Logger
}

func NewClient(cfg config.AssistantConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxRetries: uint64(retries),
		http:       &http.Client{Timeout: timeout},
		logger:     logger.With("component", "assistant_client"),
	}
}

func (c *Client) Configured() bool {
	return c.apiKey != "" && c.baseURL != ""
}

// Complete returns the content of the first choice.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (reply string, err error) {
	if !c.Configured() {
		return "", core.UnavailableError("the assistant is not configured")
	}

	ctx, span := core.StartSpan(ctx, "assistant.complete",
		attribute.String("assistant.model", c.model),
		attribute.Int("assistant.messages", len(req.Messages)),
	)
	defer func() { core.EndSpan(span, err) }()

	payload := map[string]any{
		"model":    c.model,
		"messages": req.Messages,
	}
	if req.Temperature > 0 {
		payload["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	if req.JSON {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	var body []byte
	op := func() error {
		httpReq, err := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			c.baseURL+"/chat/completions",
			bytes.NewReader(data),
		)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")

		body, err = c.do(httpReq)
		return err
	}

	if err := c.retry(ctx, op); err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	content := gjson.GetBytes(body, "choices.0.message.content")
	if !content.Exists() {
		return "", fmt.Errorf("chat completion: response without content: %w", core.ErrUpstream)
	}

	return strings.TrimSpace(content.String()), nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("assistant request: %v: %w", err, core.ErrUpstream)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read assistant response: %w", err)
	}

	if resp.StatusCode < 300 {
		return body, nil
	}

	msg := gjson.GetBytes(body, "error.message").String()
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	err = fmt.Errorf("assistant status %d: %s: %w", resp.StatusCode, msg, core.ErrUpstream)

	if resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode >= http.StatusInternalServerError {
		return nil, err
	}
	return nil, backoff.Permanent(err)
}

func (c *Client) retry(ctx context.Context, op backoff.Operation) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 30 * time.Second

	return backoff.RetryNotify(
		op,
		backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx),
		func(err error, wait time.Duration) {
			c.logger.Warn("assistant request failed, retrying",
				"error", err,
				"wait", wait,
			)
		},
	)
}
