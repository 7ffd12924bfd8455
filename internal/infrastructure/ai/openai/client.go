// Package openai provides the chat-completions client behind plan, recipe and
// conversion generation, plus the vision call that reads recipe photos.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dailynoats/planner/internal/application/prompt"
	"github.com/dailynoats/planner/internal/domain/planner"
	"github.com/dailynoats/planner/internal/infrastructure/monitoring"
	"github.com/dailynoats/planner/internal/ports/outbound"
	apperrors "github.com/dailynoats/planner/pkg/errors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4.1-mini"

	maxErrorBody = 4 << 10
)

var (
	// ErrMissingAPIKey is the cause when no provider credential is configured
	ErrMissingAPIKey = errors.New("openai api key is not configured")
	// ErrEmptyReply is the cause when the provider returns no content
	ErrEmptyReply = errors.New("no content returned from model")
)

// Config holds the client settings
type Config struct {
	APIKey      string
	BaseURL     string
	TextModel   string
	VisionModel string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// MetricsRecorder receives one observation per provider call
type MetricsRecorder interface {
	GenerationRequest(kind, model, status string, duration time.Duration)
}

// Option configures the Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMetrics records call outcomes
func WithMetrics(m MetricsRecorder) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTracing wraps calls in spans and instruments the transport
func WithTracing(tp *monitoring.TracingProvider) Option {
	return func(c *Client) { c.tracer = tp }
}

// Client implements outbound.Generator and outbound.TextExtractor
type Client struct {
	cfg     Config
	http    *http.Client
	metrics MetricsRecorder
	tracer  *monitoring.TracingProvider
	logger  *zap.Logger
}

var (
	_ outbound.Generator     = (*Client)(nil)
	_ outbound.TextExtractor = (*Client)(nil)
)

// NewClient creates a new OpenAI client
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.TextModel == "" {
		cfg.TextModel = DefaultModel
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.TextModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: logger.Named("openai"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer != nil {
		c.http.Transport = c.tracer.Transport(c.http.Transport)
	}

	if cfg.APIKey == "" {
		c.logger.Warn("OpenAI API key not set; every generation route will fail until it is configured")
	}
	return c
}

// OpenAI API structures

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// message content is either a string or a list of contentPart
type message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate sends a system and user instruction and returns the raw reply
func (c *Client) Generate(ctx context.Context, system, user string, opts outbound.GenerateOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.cfg.TextModel
	}
	kind := opts.Kind
	if kind == "" {
		kind = "generic"
	}

	req := chatCompletionRequest{
		Model: model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens: c.cfg.MaxTokens,
	}
	if c.cfg.Temperature > 0 {
		t := c.cfg.Temperature
		req.Temperature = &t
	}
	if opts.JSONMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	return c.complete(ctx, kind, req)
}

// ExtractTextFromImages transcribes recipe text from photos. No images means
// no call and an empty result.
func (c *Client) ExtractTextFromImages(ctx context.Context, images []planner.ImageInput) (string, error) {
	if len(images) == 0 {
		return "", nil
	}

	parts := make([]contentPart, 0, len(images)+1)
	parts = append(parts, contentPart{Type: "text", Text: prompt.ImageExtractionInstruction})
	for _, img := range images {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: dataURL(img)}})
	}

	req := chatCompletionRequest{
		Model:     c.cfg.VisionModel,
		Messages:  []message{{Role: "user", Content: parts}},
		MaxTokens: c.cfg.MaxTokens,
	}

	text, err := c.complete(ctx, "extraction", req)
	if err != nil {
		if errors.Is(err, ErrEmptyReply) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// complete performs one chat-completions round trip under the configured timeout
func (c *Client) complete(ctx context.Context, kind string, reqBody chatCompletionRequest) (string, error) {
	if c.cfg.APIKey == "" {
		c.record(kind, reqBody.Model, "unconfigured", 0)
		return "", apperrors.NewUpstreamUnavailableError(ErrMissingAPIKey)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if c.tracer != nil {
		var span trace.Span
		ctx, span = c.tracer.StartAISpan(ctx, reqBody.Model, kind)
		defer span.End()
	}

	start := time.Now()
	content, usage, err := c.call(ctx, reqBody)
	elapsed := time.Since(start)

	if err != nil {
		if c.tracer != nil {
			c.tracer.RecordError(ctx, err)
		}
		status := "error"
		if errors.Is(err, ErrEmptyReply) {
			status = "empty"
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.record(kind, reqBody.Model, "timeout", elapsed)
			c.logger.Error("OpenAI API call timed out",
				zap.String("kind", kind),
				zap.Duration("timeout", c.cfg.Timeout),
			)
			return "", apperrors.NewUpstreamTimeoutError(err)
		}

		c.record(kind, reqBody.Model, status, elapsed)
		c.logger.Error("OpenAI API call failed",
			zap.String("kind", kind),
			zap.String("model", reqBody.Model),
			zap.Error(err),
		)
		return "", apperrors.NewUpstreamUnavailableError(err)
	}

	c.record(kind, reqBody.Model, "success", elapsed)
	c.logger.Info("OpenAI API call successful",
		zap.String("kind", kind),
		zap.String("model", reqBody.Model),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens),
		zap.Int("total_tokens", usage.TotalTokens),
		zap.Duration("duration", elapsed),
	)

	return content, nil
}

type usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func (c *Client) call(ctx context.Context, reqBody chatCompletionRequest) (string, usage, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", usage{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", usage{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", usage{}, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", usage{}, fmt.Errorf("API error %d (%s): %s", resp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
		}
		return "", usage{}, fmt.Errorf("API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var chatResp chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", usage{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	u := usage{
		PromptTokens:     chatResp.Usage.PromptTokens,
		CompletionTokens: chatResp.Usage.CompletionTokens,
		TotalTokens:      chatResp.Usage.TotalTokens,
	}
	if len(chatResp.Choices) == 0 || strings.TrimSpace(chatResp.Choices[0].Message.Content) == "" {
		return "", u, ErrEmptyReply
	}

	return chatResp.Choices[0].Message.Content, u, nil
}

func (c *Client) record(kind, model, status string, d time.Duration) {
	if c.metrics != nil {
		c.metrics.GenerationRequest(kind, model, status, d)
	}
}

func dataURL(img planner.ImageInput) string {
	if strings.HasPrefix(img.Data, "data:") {
		return img.Data
	}
	mime := img.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + img.Data
}
