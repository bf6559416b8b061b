package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"deckforge/internal/domain"
)

// Format identifies the upstream wire protocol the client speaks.
type Format int

const (
	// FormatAnthropic is selected when the configured endpoint host is the
	// Anthropic API host: system prompt as a top-level field, x-api-key and
	// anthropic-version headers.
	FormatAnthropic Format = iota
	// FormatOpenAI is the default for every other host: full message list,
	// fixed temperature, bearer-token authorization.
	FormatOpenAI
)

func (f Format) String() string {
	if f == FormatAnthropic {
		return "anthropic"
	}
	return "openai"
}

const (
	anthropicHost    = "api.anthropic.com"
	anthropicVersion = "2023-06-01"

	requestTimeout     = 120 * time.Second
	defaultTemperature = 0.7

	maxErrorBody    = 4096
	maxResponseBody = 1 << 20
)

// KeySource resolves the upstream API key. An empty key with a nil error
// means no credential is configured.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// StaticKey is a KeySource backed by a fixed value, typically from the
// environment.
type StaticKey string

func (k StaticKey) APIKey(context.Context) (string, error) {
	return string(k), nil
}

// Health is the advisory result of the most recent upstream call. It is
// never consulted for call behavior.
type Health struct {
	Checked     bool
	Healthy     bool
	LastChecked time.Time
}

// Client sends chat completions to a single configured endpoint, speaking
// whichever wire format the endpoint's host selects.
type Client struct {
	endpoint string
	format   Format
	model    string
	keys     KeySource

	httpClient *http.Client

	healthMu sync.Mutex
	health   Health
}

type Option func(*Client)

// WithHTTPClient overrides the default 120-second-timeout HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client for the given endpoint URL. The wire format is
// fixed here from the endpoint's hostname and never re-inspected per call.
func NewClient(endpoint, model string, keys KeySource, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("llm: endpoint must not be empty")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("llm: parse endpoint: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("llm: endpoint %q has no host", endpoint)
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("llm: model must not be empty")
	}
	if keys == nil {
		return nil, errors.New("llm: key source must not be nil")
	}

	format := FormatOpenAI
	if u.Hostname() == anthropicHost {
		format = FormatAnthropic
	}

	c := &Client{
		endpoint:   endpoint,
		format:     format,
		model:      model,
		keys:       keys,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Format reports the wire format selected at construction.
func (c *Client) Format() Format {
	return c.format
}

// Model reports the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Health returns the advisory result of the most recent call.
func (c *Client) Health() Health {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()
	return c.health
}

func (c *Client) recordHealth(ok bool) {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()
	c.health = Health{Checked: true, Healthy: ok, LastChecked: time.Now().UTC()}
}

// Complete sends the messages to the configured endpoint and returns the
// text of the first completion. A call either succeeds or fails once; no
// retries are attempted.
func (c *Client) Complete(ctx context.Context, messages []domain.ChatMessage, maxTokens int) (string, error) {
	text, err := c.complete(ctx, messages, maxTokens)
	c.recordHealth(err == nil)
	return text, err
}

func (c *Client) complete(ctx context.Context, messages []domain.ChatMessage, maxTokens int) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("llm: messages must not be empty")
	}
	if maxTokens <= 0 {
		return "", errors.New("llm: max tokens must be positive")
	}

	key, err := c.keys.APIKey(ctx)
	if err != nil {
		return "", &UpstreamError{Kind: KindMissingKey, Err: err}
	}
	if strings.TrimSpace(key) == "" {
		return "", &UpstreamError{Kind: KindMissingKey}
	}

	req, err := c.newRequest(ctx, key, messages, maxTokens)
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", transportError(err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return "", statusError(res.StatusCode, string(buf))
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return "", &UpstreamError{Kind: KindUpstream, Err: fmt.Errorf("read response body: %w", err)}
	}

	switch c.format {
	case FormatAnthropic:
		return decodeAnthropic(raw)
	default:
		return decodeOpenAI(raw)
	}
}

// newRequest builds the format-specific HTTP request. The branch is fixed by
// the configured host, never by message content.
func (c *Client) newRequest(ctx context.Context, key string, messages []domain.ChatMessage, maxTokens int) (*http.Request, error) {
	var body []byte
	var err error
	switch c.format {
	case FormatAnthropic:
		body, err = json.Marshal(anthropicRequestBody(c.model, messages, maxTokens))
	default:
		body, err = json.Marshal(openAIRequestBody(c.model, messages, maxTokens))
	}
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	switch c.format {
	case FormatAnthropic:
		req.Header.Set("x-api-key", key)
		req.Header.Set("anthropic-version", anthropicVersion)
	default:
		req.Header.Set("Authorization", "Bearer "+key)
	}
	return req, nil
}

type anthropicRequest struct {
	Model     string               `json:"model"`
	MaxTokens int                  `json:"max_tokens"`
	System    string               `json:"system"`
	Messages  []domain.ChatMessage `json:"messages"`
}

// anthropicRequestBody extracts the first system message into the top-level
// system field and passes the remaining messages as the conversation.
func anthropicRequestBody(model string, messages []domain.ChatMessage, maxTokens int) anthropicRequest {
	system := ""
	systemFound := false
	rest := make([]domain.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == domain.RoleSystem {
			if !systemFound {
				system = m.Content
				systemFound = true
			}
			continue
		}
		rest = append(rest, m)
	}
	return anthropicRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  rest,
	}
}

type openAIRequest struct {
	Model       string               `json:"model"`
	Messages    []domain.ChatMessage `json:"messages"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature float64              `json:"temperature"`
}

// openAIRequestBody passes the full message sequence unmodified.
func openAIRequestBody(model string, messages []domain.ChatMessage, maxTokens int) openAIRequest {
	return openAIRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: defaultTemperature,
	}
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func decodeAnthropic(raw []byte) (string, error) {
	var payload anthropicResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", &UpstreamError{Kind: KindUpstream, Err: fmt.Errorf("decode anthropic response: %w", err)}
	}
	if len(payload.Content) == 0 {
		return "", &UpstreamError{Kind: KindUpstream, Err: errors.New("no content in response")}
	}
	return payload.Content[0].Text, nil
}

type openAIResponse struct {
	Choices []struct {
		Message domain.ChatMessage `json:"message"`
	} `json:"choices"`
}

func decodeOpenAI(raw []byte) (string, error) {
	var payload openAIResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", &UpstreamError{Kind: KindUpstream, Err: fmt.Errorf("decode openai response: %w", err)}
	}
	if len(payload.Choices) == 0 {
		return "", &UpstreamError{Kind: KindUpstream, Err: errors.New("no choices in response")}
	}
	return payload.Choices[0].Message.Content, nil
}

func transportError(err error) *UpstreamError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &UpstreamError{Kind: KindTimeout, Err: err}
	}
	return &UpstreamError{Kind: KindConnection, Err: err}
}

func statusError(status int, body string) *UpstreamError {
	e := &UpstreamError{Status: status, Err: fmt.Errorf("status %d: %s", status, body)}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindAuth
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
	case status >= 500:
		e.Kind = KindUnavailable
	default:
		e.Kind = KindUpstream
	}
	return e
}
