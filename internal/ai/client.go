package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/KaramelBytes/statloom/internal/config"
	"github.com/KaramelBytes/statloom/internal/logging"
)

const (
	defaultTimeout  = 60 * time.Second
	maxErrorBody    = 8 << 10
	maxResponseBody = 16 << 20
)

// Roles used in chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body posted to the completions endpoint.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type responseMessage struct {
	Role             string `json:"role"`
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message *responseMessage `json:"message"`
	} `json:"choices"`
}

// Completion is the first choice's message of a chat completion.
type Completion struct {
	Content          string
	ReasoningContent string
	RequestID        string
}

// Options configures a Client. URL is the full completions endpoint.
type Options struct {
	URL        string
	APIKey     string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client issues single, non-retried chat completion requests.
type Client struct {
	httpClient *http.Client
	url        string
	apiKey     string
	model      string
	logger     zerolog.Logger
}

// NewClient returns a client with a bounded HTTP timeout (60s unless overridden).
func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient: hc,
		url:        strings.TrimSpace(opts.URL),
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      strings.TrimSpace(opts.Model),
		logger:     opts.Logger,
	}
}

// NewClientFromConfig validates cfg before building the client.
func NewClientFromConfig(cfg *config.Config, logger zerolog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewClient(Options{
		URL:     cfg.APIURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.HTTPTimeout(),
		Logger:  logger,
	}), nil
}

func (c *Client) Model() string { return c.model }

// Complete posts {model, messages} once and returns choices[0].message.
func (c *Client) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	if c.url == "" || c.apiKey == "" || c.model == "" {
		return nil, fmt.Errorf("%w: endpoint, api key and model are required", config.ErrMissing)
	}
	payload, err := json.Marshal(ChatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Title", "statloom")

	c.logger.Debug().
		Str("url", c.url).
		Str("model", c.model).
		Int("messages", len(messages)).
		Str("authorization", logging.Redact("Bearer "+c.apiKey)).
		Msg("posting chat completion")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{URL: c.url, Err: err}
	}
	defer resp.Body.Close()
	requestID := extractRequestID(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, classifyAPIError(newHTTPError(resp.StatusCode, body, requestID), resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &NetworkError{URL: c.url, Err: fmt.Errorf("read response: %w", err)}
	}
	c.logger.Debug().
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Str("request_id", requestID).
		Msg("chat completion received")

	msg, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	return &Completion{
		Content:          msg.Content,
		ReasoningContent: msg.ReasoningContent,
		RequestID:        requestID,
	}, nil
}

// decodeEnvelope extracts choices[0].message from a chat completion body.
func decodeEnvelope(body []byte) (*responseMessage, error) {
	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &MalformedResponseError{Reason: fmt.Sprintf("decode response: %v", err), Body: string(body)}
	}
	if len(out.Choices) == 0 {
		return nil, &MalformedResponseError{Reason: "response has no choices", Body: string(body)}
	}
	if out.Choices[0].Message == nil {
		return nil, &MalformedResponseError{Reason: "choices[0] has no message", Body: string(body)}
	}
	return out.Choices[0].Message, nil
}

// extractRequestID pulls a best-effort request ID from common headers.
func extractRequestID(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	keys := []string{"X-Request-Id", "OpenAI-Request-ID", "Openrouter-Request-ID", "X-Amzn-Requestid"}
	for _, k := range keys {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}
