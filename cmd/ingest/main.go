// Command ingest loads local documentation files into the knowledge base
// in one shot: walk the given files and directories, chunk and embed every
// supported file, and write the vectors to Qdrant.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/QAPilotAI/qapilot-mvp/engine/ingest"
	"github.com/QAPilotAI/qapilot-mvp/engine/loader"
	"github.com/QAPilotAI/qapilot-mvp/engine/semantic"
	"github.com/QAPilotAI/qapilot-mvp/pkg/metrics"
	"github.com/QAPilotAI/qapilot-mvp/pkg/ollama"
	"github.com/QAPilotAI/qapilot-mvp/pkg/resilience"
)

func main() {
	var (
		ollamaURL   = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		ollamaModel = flag.String("model", ollama.DefaultModel, "Ollama embedding model")
		dims        = flag.Int("dims", ollama.DefaultDims, "embedding vector size")
		qdrantAddr  = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection  = flag.String("collection", "qa_knowledge_base", "Qdrant collection name")
		batchSize   = flag.Int("batch", ingest.DefaultBatchSize, "chunks per embed/store batch")
		batchRate   = flag.Float64("rate", 1, "embed/store batches per second")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: ingest [flags] <file-or-dir>...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	paths, err := collectPaths(flag.Args())
	if err != nil {
		log.Error("scan failed", "err", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		log.Info("no supported files found")
		fmt.Println(0)
		return
	}

	vs, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		log.Error("qdrant connect failed", "err", err)
		os.Exit(1)
	}
	defer vs.Close()
	if err := vs.EnsureCollection(ctx, *dims); err != nil {
		log.Error("qdrant ensure collection failed", "err", err)
		os.Exit(1)
	}

	svc := ingest.NewService(ingest.Deps{
		Embedder:  ollama.NewEmbedClient(*ollamaURL, *ollamaModel),
		Store:     vs,
		Limiter:   resilience.NewLimiter(resilience.LimiterOpts{Rate: *batchRate, Burst: 1}),
		Metrics:   metrics.New(),
		Logger:    log,
		BatchSize: *batchSize,
	})

	count, err := svc.IngestFiles(ctx, paths)
	if err != nil {
		log.Error("ingestion failed", "err", err, "written", count)
		os.Exit(1)
	}
	if stored, err := vs.Count(ctx); err == nil {
		log.Info("collection ready", "collection", *collection, "points", stored)
	}
	fmt.Println(count)
}

// collectPaths expands the given files and directories into the supported
// files beneath them, in walk order.
func collectPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if loader.Supported(arg) {
				paths = append(paths, arg)
			}
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && loader.Supported(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}
