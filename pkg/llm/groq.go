// Package llm wraps Groq's OpenAI-compatible chat-completions API behind a
// small Complete interface used by the QA agent.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/QAPilotAI/qapilot-mvp/pkg/resilience"
)

const (
	// DefaultBaseURL is Groq's OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	// DefaultModel matches the hosted model the agent was tuned against.
	DefaultModel = "llama-3.3-70b-versatile"
)

// ResolveKey returns the explicit key if set, then GROQ_API_KEY, then API_KEY.
func ResolveKey(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if k := os.Getenv("GROQ_API_KEY"); k != "" {
		return k
	}
	return os.Getenv("API_KEY")
}

// Config configures a Client.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	Breaker *resilience.Breaker
}

// Client is a chat-completion client with circuit-breaker protection.
type Client struct {
	api     *openai.Client
	model   string
	breaker *resilience.Breaker
}

// New creates a Client for Groq with default endpoint and timeout.
func New(apiKey, model string) *Client {
	return NewWithConfig(Config{APIKey: apiKey, Model: model})
}

// NewWithConfig creates a Client, filling zero fields from defaults.
func NewWithConfig(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Breaker == nil {
		cfg.Breaker = resilience.NewBreaker(resilience.DefaultBreakerOpts)
	}

	oc := openai.DefaultConfig(ResolveKey(cfg.APIKey))
	oc.BaseURL = cfg.BaseURL
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		api:     openai.NewClientWithConfig(oc),
		model:   cfg.Model,
		breaker: cfg.Breaker,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Complete sends a system+user prompt pair and returns the raw reply text.
func (c *Client) Complete(ctx context.Context, system, user string, temperature float32) (string, error) {
	var reply string
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			Temperature: temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("no choices in response")
		}
		reply = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	return reply, nil
}
