// Package qa holds the generation agent: it retrieves grounded context
// from the knowledge base and asks the chat model for test cases or
// browser-automation scripts.
package qa

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/QAPilotAI/qapilot-mvp/engine/domain"
	"github.com/QAPilotAI/qapilot-mvp/engine/semantic"
)

const (
	// DefaultTopK is how many chunks are retrieved as grounding context.
	DefaultTopK = 5
	// DefaultTemperature keeps generation close to the source material.
	DefaultTemperature = 0.2
)

// Embedder turns a query into a vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the knowledge-base read surface.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, topK int) ([]semantic.SearchResult, error)
}

// ChatModel is a single-shot chat completion.
type ChatModel interface {
	Complete(ctx context.Context, system, user string, temperature float32) (string, error)
}

// Options tune retrieval and generation. Zero values pick defaults.
type Options struct {
	TopK        int
	Temperature float32
}

// Agent generates test cases and scripts grounded in the knowledge base.
type Agent struct {
	embedder Embedder
	searcher Searcher
	model    ChatModel
	opts     Options
	log      *slog.Logger
}

// New creates an Agent.
func New(embedder Embedder, searcher Searcher, model ChatModel, opts Options, log *slog.Logger) *Agent {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Temperature <= 0 {
		opts.Temperature = DefaultTemperature
	}
	if log == nil {
		log = slog.Default()
	}
	return &Agent{embedder: embedder, searcher: searcher, model: model, opts: opts, log: log}
}

// GenerateTestCases retrieves the chunks nearest the requirement, builds
// the grounded prompt, and parses the model's reply as a JSON array of
// test cases. Retrieval, invocation, parse, and missing-key failures are
// returned as errors, never smuggled into the result list.
func (a *Agent) GenerateTestCases(ctx context.Context, requirement string) ([]domain.TestCase, error) {
	if err := domain.ValidateRequirement(requirement); err != nil {
		return nil, err
	}

	embedding, err := a.embedder.Embed(ctx, requirement)
	if err != nil {
		return nil, fmt.Errorf("qa: embed requirement: %w", err)
	}
	results, err := a.searcher.Search(ctx, embedding, a.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("qa: retrieve context: %w", err)
	}
	a.log.Debug("qa: context retrieved", "chunks", len(results))

	raw, err := a.model.Complete(ctx, testCaseSystemPrompt, testCaseUserPrompt(contextBlock(results), requirement), a.opts.Temperature)
	if err != nil {
		return nil, fmt.Errorf("qa: generate test cases: %w", err)
	}

	var cases []domain.TestCase
	if err := json.Unmarshal([]byte(stripFences(raw)), &cases); err != nil {
		return nil, fmt.Errorf("qa: parse test cases: %w", err)
	}
	for i, tc := range cases {
		if err := tc.Validate(); err != nil {
			return nil, fmt.Errorf("qa: test case %d: %w", i, err)
		}
	}
	return cases, nil
}

// GenerateScript asks the model for a Selenium script exercising the
// test case against the given page markup. Markdown fences are stripped
// from the reply; everything else is returned verbatim.
func (a *Agent) GenerateScript(ctx context.Context, tc domain.TestCase, htmlContent string) (string, error) {
	if htmlContent == "" {
		return "", domain.ErrEmptyMarkup
	}

	system, user, err := scriptPrompts(tc, htmlContent)
	if err != nil {
		return "", err
	}
	raw, err := a.model.Complete(ctx, system, user, a.opts.Temperature)
	if err != nil {
		return "", fmt.Errorf("qa: generate script: %w", err)
	}
	return stripFences(raw), nil
}
