// Package llm provides a bounded, rate-limited client for the optional
// enrichment oracle, plus the enricher that decides when to call it.
package llm

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"
)

// Availability is the client's last-known reachability state.
type Availability int32

const (
	AvailabilityUnknown Availability = iota
	AvailabilityAvailable
	AvailabilityUnavailable
)

func (a Availability) String() string {
	switch a {
	case AvailabilityAvailable:
		return "available"
	case AvailabilityUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// noAnswer is returned whenever the client cannot produce an explanation;
// callers never receive a raw error from Generate.
const noAnswer = "no answer"

// Config configures the LLM client.
type Config struct {
	URL       string        // base URL of the ollama-compatible endpoint
	Model     string        // model name
	Timeout   time.Duration // per-request timeout
	RateLimit time.Duration // minimum spacing between consecutive Generate calls
}

// Client is a bounded HTTP caller around a chat-completion style backend.
// Consecutive Generate calls are spaced at least RateLimit apart; failures
// never surface to the caller as errors, only as "no answer" plus an
// availability flip.
type Client struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter

	availability atomic.Int32
}

// NewClient creates a client pointed at cfg.URL. The request shape follows
// a chat-completion wire format; the SDK's base URL override lets it speak
// to any Anthropic/OpenAI-compatible local backend (e.g. ollama).
func NewClient(cfg Config) *Client {
	opts := []option.RequestOption{option.WithAPIKey("local")}
	if cfg.URL != "" {
		opts = append(opts, option.WithBaseURL(cfg.URL))
	}

	rl := cfg.RateLimit
	if rl <= 0 {
		rl = time.Second
	}

	c := &Client{
		client:  anthropic.NewClient(opts...),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		limiter: rate.NewLimiter(rate.Every(rl), 1),
	}
	c.availability.Store(int32(AvailabilityUnknown))
	return c
}

// Availability returns the client's last-observed reachability.
func (c *Client) Availability() Availability {
	return Availability(c.availability.Load())
}

// Generate asks the backend to complete prompt. On any error it marks the
// client unavailable and returns ("no answer", false) without ever raising
// to the caller; every error except a deadline or cancellation is also
// logged. The rate limiter
// blocks on entry, so a burst of calls is spaced at RateLimit intervals.
func (c *Client) Generate(ctx context.Context, prompt string) (string, bool) {
	if err := c.limiter.Wait(ctx); err != nil {
		return noAnswer, false
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if c.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.Messages.New(reqCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			c.availability.Store(int32(AvailabilityUnavailable))
			return noAnswer, false
		}
		slog.Warn("llm client: generate failed", "err", err)
		c.availability.Store(int32(AvailabilityUnavailable))
		return noAnswer, false
	}

	c.availability.Store(int32(AvailabilityAvailable))

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return noAnswer, false
	}
	return text, true
}

// Probe performs a cheap reachability check and updates the availability
// flag accordingly, without consuming the rate-limit budget used by
// Generate's real enrichment calls.
func (c *Client) Probe(ctx context.Context) {
	reqCtx := ctx
	var cancel context.CancelFunc
	if c.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	_, err := c.client.Messages.New(reqCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		c.availability.Store(int32(AvailabilityUnavailable))
		return
	}
	c.availability.Store(int32(AvailabilityAvailable))
}
