// Package main implements the QAPilot API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/QAPilotAI/qapilot-mvp/engine/ingest"
	"github.com/QAPilotAI/qapilot-mvp/engine/qa"
	"github.com/QAPilotAI/qapilot-mvp/engine/semantic"
	"github.com/QAPilotAI/qapilot-mvp/pkg/llm"
	"github.com/QAPilotAI/qapilot-mvp/pkg/metrics"
	"github.com/QAPilotAI/qapilot-mvp/pkg/mid"
	"github.com/QAPilotAI/qapilot-mvp/pkg/ollama"
	"github.com/QAPilotAI/qapilot-mvp/pkg/resilience"
)

// Config holds all configuration, loaded from an optional config.yaml and
// overridden by environment variables.
type Config struct {
	Port        string  `yaml:"port"`
	QdrantURL   string  `yaml:"qdrant_url"`
	Collection  string  `yaml:"collection"`
	OllamaURL   string  `yaml:"ollama_url"`
	OllamaModel string  `yaml:"ollama_model"`
	GroqKey     string  `yaml:"groq_api_key"`
	GroqModel   string  `yaml:"groq_model"`
	CORSOrigin  string  `yaml:"cors_origin"`
	BatchSize   int     `yaml:"batch_size"`
	BatchRate   float64 `yaml:"batch_rate"`
}

func loadConfig(path string) Config {
	// Missing .env and config.yaml are both fine; env vars win either way.
	_ = godotenv.Load()

	cfg := Config{BatchSize: ingest.DefaultBatchSize, BatchRate: 1}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			slog.Warn("config file ignored", "path", path, "err", err)
		}
	}

	cfg.Port = envOr("PORT", valOr(cfg.Port, "8000"))
	cfg.QdrantURL = envOr("QDRANT_URL", valOr(cfg.QdrantURL, "localhost:6334"))
	cfg.Collection = envOr("QDRANT_COLLECTION", valOr(cfg.Collection, "qa_knowledge_base"))
	cfg.OllamaURL = envOr("OLLAMA_URL", valOr(cfg.OllamaURL, "http://localhost:11434"))
	cfg.OllamaModel = envOr("OLLAMA_MODEL", valOr(cfg.OllamaModel, ollama.DefaultModel))
	cfg.GroqKey = llm.ResolveKey(cfg.GroqKey)
	cfg.GroqModel = envOr("GROQ_MODEL", valOr(cfg.GroqModel, llm.DefaultModel))
	cfg.CORSOrigin = envOr("CORS_ORIGIN", valOr(cfg.CORSOrigin, "*"))
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func valOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig("config.yaml")

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()
	if err := vectorStore.EnsureCollection(ctx, ollama.DefaultDims); err != nil {
		return fmt.Errorf("qdrant ensure collection: %w", err)
	}

	// --- Ollama embedder ---
	embedder := ollama.NewEmbedClient(cfg.OllamaURL, cfg.OllamaModel)

	// --- Metrics ---
	reg := metrics.New()

	// --- Ingestion pipeline ---
	ingestSvc := ingest.NewService(ingest.Deps{
		Embedder:  embedder,
		Store:     vectorStore,
		Limiter:   resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.BatchRate, Burst: 1}),
		Metrics:   reg,
		Logger:    logger,
		BatchSize: cfg.BatchSize,
	})

	// --- QA agent factory ---
	// The UI may send a per-request key/model; fall back to server config.
	// The breaker is shared across requests so consecutive upstream
	// failures actually trip it.
	breaker := resilience.NewBreaker(resilience.DefaultBreakerOpts)
	agents := func(apiKey, model string) *qa.Agent {
		if apiKey == "" {
			apiKey = cfg.GroqKey
		}
		if model == "" {
			model = cfg.GroqModel
		}
		client := llm.NewWithConfig(llm.Config{APIKey: apiKey, Model: model, Breaker: breaker})
		return qa.New(embedder, vectorStore, client, qa.Options{}, logger)
	}

	// --- Build HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.Handle("GET /metrics", reg.Handler())
	mux.HandleFunc("POST /ingest", handleIngest(ingestSvc, logger))
	mux.HandleFunc("POST /generate-test-cases", handleGenerateTestCases(
		func(apiKey, model string) testCaseGenerator { return agents(apiKey, model) }, logger))
	mux.HandleFunc("POST /generate-script", handleGenerateScript(
		func(apiKey, model string) scriptGenerator { return agents(apiKey, model) }, logger))

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.Metrics(reg),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("qapilot-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
