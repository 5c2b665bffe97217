package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/teilomillet/gollm/providers"
	"github.com/teilomillet/gollm/utils"
	"github.com/teilomillet/socialwiz/config"
	"github.com/teilomillet/socialwiz/server/processing"
	"go.uber.org/zap"
)

// maxResponseBytes bounds how much of a provider response is read.
const maxResponseBytes = 4 << 20

// ChatCompleter sends prompts to a chat completions API. The gollm provider
// supplies the endpoint, headers, request defaults and response parsing; the
// HTTP exchange is a single attempt made here so that a failed call keeps the
// provider's status and message.
type ChatCompleter struct {
	provider  providers.Provider
	endpoint  string
	client    *http.Client
	maxTokens int
}

// ChatOption configures a ChatCompleter.
type ChatOption func(*ChatCompleter)

// WithHTTPClient replaces the HTTP client used for provider calls.
func WithHTTPClient(c *http.Client) ChatOption {
	return func(cc *ChatCompleter) { cc.client = c }
}

// NewChatCompleter creates a completer for the configured provider. gollm's
// provider logging is routed to logger.
func NewChatCompleter(cfg config.LLMConfig, logger *zap.Logger, opts ...ChatOption) (*ChatCompleter, error) {
	p, err := providers.NewProviderRegistry().Get(cfg.Provider, cfg.APIKey, cfg.Model, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM provider: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p.SetLogger(&gollmLogger{logger: logger.Named("gollm").Sugar()})

	c := &ChatCompleter{
		provider:  p,
		endpoint:  p.Endpoint(),
		client:    &http.Client{},
		maxTokens: cfg.MaxTokens,
	}
	if cfg.Endpoint != "" {
		c.endpoint = cfg.Endpoint
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Complete implements Completer.
func (c *ChatCompleter) Complete(ctx context.Context, spec processing.PromptSpec) (string, error) {
	body, err := c.requestBody(spec)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.provider.Headers() {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	return c.provider.ParseResponse(data)
}

// requestBody lets the gollm provider build its request, then replaces the
// single flattened user turn with the prompt's role-tagged messages.
func (c *ChatCompleter) requestBody(spec processing.PromptSpec) ([]byte, error) {
	maxTokens := spec.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	options := map[string]interface{}{"temperature": spec.Temperature}
	if maxTokens > 0 {
		options["max_tokens"] = maxTokens
	}

	prepared, err := c.provider.PrepareRequest(spec.Text(), options)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare request: %w", err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(prepared, &payload); err != nil {
		return nil, fmt.Errorf("failed to prepare request: %w", err)
	}
	messages := make([]map[string]string, 0, len(spec.Messages))
	for _, m := range spec.Messages {
		messages = append(messages, map[string]string{"role": m.Role, "content": m.Content})
	}
	payload["messages"] = messages

	return json.Marshal(payload)
}

// errorMessage extracts the message of an OpenAI style error body, falling
// back to the raw body.
func errorMessage(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512] + "..."
	}
	if msg == "" {
		return "empty response body"
	}
	return msg
}

// gollmLogger adapts zap to gollm's logger. Debug output is dropped: gollm
// providers log request headers, API key included, at that level.
type gollmLogger struct {
	logger *zap.SugaredLogger
}

func (l *gollmLogger) Debug(string, ...interface{}) {}

func (l *gollmLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Infow(msg, keysAndValues...)
}

func (l *gollmLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warnw(msg, keysAndValues...)
}

func (l *gollmLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, keysAndValues...)
}

func (l *gollmLogger) SetLevel(utils.LogLevel) {}
