// Package llm is the generation collaborator: it sends structured prompts to an
// OpenAI-compatible chat model in JSON mode and hands back the raw JSON text.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultModel       = "gpt-4o"
	defaultTimeout     = 90 * time.Second
	defaultBaseBackoff = 500 * time.Millisecond
)

var (
	// ErrEmptyResponse indicates the model answered without any content.
	ErrEmptyResponse = errors.New("empty response from model")
	// ErrInvalidConfig indicates missing client settings.
	ErrInvalidConfig = errors.New("invalid llm configuration")
)

// Prompt is one system+user exchange.
type Prompt struct {
	// Name labels the call in logs and metrics (e.g. "decompose", "enrich", "insights").
	Name        string
	System      string
	User        string
	Temperature float64
}

// Generator returns model output that should be a JSON document.
type Generator interface {
	GenerateJSON(ctx context.Context, p Prompt) (string, error)
}

// Config holds client settings.
type Config struct {
	APIKey            string
	Model             string
	BaseURL           string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerMinute int
}

// Client implements Generator on a langchaingo model.
type Client struct {
	model      llms.Model
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	log        *zap.Logger
	metrics    *Metrics
}

// New creates a client for an OpenAI-compatible endpoint.
func New(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key required", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}
	return NewWithModel(model, cfg, log), nil
}

// NewWithModel wraps an existing langchaingo model.
func NewWithModel(model llms.Model, cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
		burst = max(cfg.RequestsPerMinute/4, 1)
	}
	return &Client{
		model:      model,
		limiter:    rate.NewLimiter(limit, burst),
		timeout:    timeout,
		maxRetries: max(cfg.MaxRetries, 0),
		backoff:    defaultBaseBackoff,
		log:        log,
		metrics:    NewMetrics(),
	}
}

// GenerateJSON sends p in JSON mode, retrying failed calls with exponential backoff.
func (c *Client) GenerateJSON(ctx context.Context, p Prompt) (string, error) {
	name := p.Name
	if name == "" {
		name = "generate"
	}
	start := time.Now()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				c.metrics.observe(name, "canceled", start)
				return "", ctx.Err()
			}
		}

		out, err := c.once(ctx, p)
		if err == nil {
			c.metrics.observe(name, "ok", start)
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			c.metrics.observe(name, "canceled", start)
			return "", ctx.Err()
		}
		c.log.Warn("generation attempt failed",
			zap.String("prompt", name),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	c.metrics.observe(name, "error", start)
	return "", fmt.Errorf("%s: max retries exceeded: %w", name, lastErr)
}

func (c *Client) once(ctx context.Context, p Prompt) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, p.System),
		llms.TextParts(llms.ChatMessageTypeHuman, p.User),
	}
	resp, err := c.model.GenerateContent(callCtx, messages,
		llms.WithTemperature(p.Temperature),
		llms.WithJSONMode(),
	)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", ErrEmptyResponse
	}
	return ExtractJSON(resp.Choices[0].Content), nil
}

// ExtractJSON trims whitespace and a surrounding ```json fence if the model added one.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // drop the language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ErrNotConfigured is returned by Disabled.
var ErrNotConfigured = errors.New("llm: no api key configured")

// Disabled is a Generator that always fails. It keeps read-only endpoints usable without an API key.
type Disabled struct{}

// GenerateJSON always returns ErrNotConfigured.
func (Disabled) GenerateJSON(context.Context, Prompt) (string, error) {
	return "", ErrNotConfigured
}
