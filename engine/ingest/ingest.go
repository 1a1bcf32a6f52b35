// Package ingest runs the knowledge-base ingestion pipeline: load files,
// chunk their text, embed each batch, and store the vectors.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/QAPilotAI/qapilot-mvp/engine/domain"
	"github.com/QAPilotAI/qapilot-mvp/engine/loader"
	"github.com/QAPilotAI/qapilot-mvp/engine/semantic"
	"github.com/QAPilotAI/qapilot-mvp/pkg/fn"
	"github.com/QAPilotAI/qapilot-mvp/pkg/metrics"
	"github.com/QAPilotAI/qapilot-mvp/pkg/resilience"
)

// DefaultBatchSize is the number of chunks embedded and stored per batch.
const DefaultBatchSize = 5

// Embedder turns chunk texts into vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorWriter is the store surface the pipeline writes to.
type VectorWriter interface {
	Reset(ctx context.Context) error
	Upsert(ctx context.Context, records []semantic.VectorRecord) error
}

// Deps holds the pipeline's external dependencies.
type Deps struct {
	Loader   *loader.Loader
	Splitter *Splitter
	Embedder Embedder
	Store    VectorWriter
	// Limiter paces embed+store batches. Defaults to 1 batch/sec, matching
	// the embedding provider's modest local throughput.
	Limiter   *resilience.Limiter
	Metrics   *metrics.Registry
	Logger    *slog.Logger
	BatchSize int
}

// Service runs ingestion end to end.
type Service struct {
	loader    *loader.Loader
	splitter  *Splitter
	embedder  Embedder
	store     VectorWriter
	limiter   *resilience.Limiter
	metrics   *metrics.Registry
	log       *slog.Logger
	batchSize int
}

// NewService creates a Service, filling zero dependencies from defaults.
func NewService(deps Deps) *Service {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if deps.Loader == nil {
		deps.Loader = loader.New(log)
	}
	if deps.Splitter == nil {
		deps.Splitter = NewSplitter(DefaultChunkSize, DefaultOverlap)
	}
	if deps.Limiter == nil {
		deps.Limiter = resilience.NewLimiter(resilience.LimiterOpts{Rate: 1, Burst: 1})
	}
	if deps.BatchSize <= 0 {
		deps.BatchSize = DefaultBatchSize
	}
	return &Service{
		loader:    deps.Loader,
		splitter:  deps.Splitter,
		embedder:  deps.Embedder,
		store:     deps.Store,
		limiter:   deps.Limiter,
		metrics:   deps.Metrics,
		log:       log,
		batchSize: deps.BatchSize,
	}
}

// embeddedBatch pairs a chunk batch with its embeddings.
type embeddedBatch struct {
	chunks     []domain.Chunk
	embeddings [][]float32
}

func (s *Service) embedStage() fn.Stage[[]domain.Chunk, embeddedBatch] {
	return func(ctx context.Context, chunks []domain.Chunk) fn.Result[embeddedBatch] {
		texts := fn.Map(chunks, func(c domain.Chunk) string { return c.Text })
		embeddings, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fn.Err[embeddedBatch](fmt.Errorf("embed batch: %w", err))
		}
		if len(embeddings) != len(chunks) {
			return fn.Errf[embeddedBatch]("embed batch: got %d embeddings for %d chunks", len(embeddings), len(chunks))
		}
		return fn.Ok(embeddedBatch{chunks: chunks, embeddings: embeddings})
	}
}

func (s *Service) storeStage() fn.Stage[embeddedBatch, int] {
	return func(ctx context.Context, batch embeddedBatch) fn.Result[int] {
		records := make([]semantic.VectorRecord, len(batch.chunks))
		for i, chunk := range batch.chunks {
			records[i] = semantic.VectorRecord{
				ID:        PointID(chunk),
				Embedding: batch.embeddings[i],
				Payload: map[string]any{
					"content":     chunk.Text,
					"source":      chunk.Source,
					"chunk_id":    ChunkID(chunk),
					"chunk_index": chunk.Index,
				},
			}
		}
		if err := s.store.Upsert(ctx, records); err != nil {
			return fn.Err[int](fmt.Errorf("store batch: %w", err))
		}
		return fn.Ok(len(records))
	}
}

// PointID derives a deterministic UUID from the chunk's full source path
// and index, so re-ingesting the same corpus produces the same IDs and
// same-named files from different directories never collide.
func PointID(c domain.Chunk) string {
	name := fmt.Sprintf("%s#%d", c.Source, c.Index)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// ChunkID is the operator-facing identifier kept in the point payload.
func ChunkID(c domain.Chunk) string {
	return fmt.Sprintf("doc_%s_%d", filepath.Base(c.Source), c.Index)
}

// IngestFiles loads, chunks, embeds, and stores the given files, returning
// the total chunk count written. The store is reset first, so at most one
// ingestion's worth of chunks is queryable at a time. An empty corpus is
// not an error and returns zero.
func (s *Service) IngestFiles(ctx context.Context, paths []string) (int, error) {
	start := time.Now()

	docs := s.loader.LoadAll(paths)
	if len(docs) == 0 {
		s.log.Info("ingest: no documents loaded", "paths", len(paths))
		return 0, nil
	}

	chunks := ChunkDocuments(docs, s.splitter)
	if len(chunks) == 0 {
		return 0, nil
	}

	if err := s.store.Reset(ctx); err != nil {
		return 0, fmt.Errorf("ingest: reset store: %w", err)
	}

	stage := resilience.LimiterStageWait(s.limiter, fn.Then(
		fn.TracedStage("ingest.embed", s.embedStage()),
		fn.TracedStage("ingest.store", s.storeStage()),
	))

	total := 0
	for _, batch := range fn.Chunk(chunks, s.batchSize) {
		n, err := stage(ctx, batch).Unwrap()
		if err != nil {
			return total, fmt.Errorf("ingest: %w", err)
		}
		total += n
	}

	if s.metrics != nil {
		s.metrics.Counter("qapilot_ingest_chunks_total", "Chunks written to the vector store").Add(int64(total))
		s.metrics.Counter("qapilot_ingest_files_total", "Files loaded into the knowledge base").Add(int64(len(docs)))
		s.metrics.Histogram("qapilot_ingest_duration_seconds", "End-to-end ingestion time", nil).Since(start)
	}

	s.log.Info("ingest: done", "files", len(docs), "chunks", total, "duration", time.Since(start))
	return total, nil
}
