package ingest

import (
	"strings"

	"github.com/QAPilotAI/qapilot-mvp/engine/domain"
)

const (
	// DefaultChunkSize is the target chunk window in characters.
	DefaultChunkSize = 1000
	// DefaultOverlap is the number of trailing characters carried into the
	// next chunk to preserve cross-boundary context for retrieval.
	DefaultOverlap = 200
)

// defaultSeparators is the split priority: paragraph, line, word, character.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter splits text recursively on a priority list of separators,
// keeping chunks at or under ChunkSize where avoidable.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// NewSplitter creates a Splitter. Non-positive arguments fall back to the
// defaults; overlap is clamped below the chunk size.
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	return &Splitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: defaultSeparators,
	}
}

// Split splits text into chunks in source order.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if len(text) <= s.chunkSize {
		return []string{text}
	}
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, seps []string) []string {
	sep := ""
	rest := []string{}
	for i, cand := range seps {
		if cand == "" || strings.Contains(text, cand) {
			sep = cand
			rest = seps[i+1:]
			break
		}
	}

	if sep == "" {
		return s.window(text)
	}

	pieces := strings.Split(text, sep)
	var out []string
	var pending []string
	for _, p := range pieces {
		if len(p) <= s.chunkSize {
			pending = append(pending, p)
			continue
		}
		// Oversized piece: flush what we have, then recurse into it with
		// the finer separators.
		if len(pending) > 0 {
			out = append(out, s.merge(pending, sep)...)
			pending = nil
		}
		out = append(out, s.split(p, rest)...)
	}
	if len(pending) > 0 {
		out = append(out, s.merge(pending, sep)...)
	}
	return out
}

// window is the character-level fallback: fixed windows with exact overlap.
func (s *Splitter) window(text string) []string {
	step := s.chunkSize - s.overlap
	var out []string
	for start := 0; start < len(text); start += step {
		end := start + s.chunkSize
		if end >= len(text) {
			if chunk := text[start:]; strings.TrimSpace(chunk) != "" {
				out = append(out, chunk)
			}
			break
		}
		out = append(out, text[start:end])
	}
	return out
}

// merge greedily joins pieces with sep up to the chunk window, carrying at
// most overlap characters of trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []string, sep string) []string {
	sepLen := len(sep)
	var chunks []string
	var cur []string
	total := 0

	joined := func() int {
		if len(cur) == 0 {
			return 0
		}
		return total + sepLen*(len(cur)-1)
	}
	flush := func() {
		chunk := strings.Join(cur, sep)
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
	}

	for _, p := range pieces {
		if len(cur) > 0 && joined()+sepLen+len(p) > s.chunkSize {
			flush()
			// Keep a tail of pieces within the overlap budget.
			for len(cur) > 0 && (joined() > s.overlap || joined()+sepLen+len(p) > s.chunkSize) {
				total -= len(cur[0])
				cur = cur[1:]
			}
		}
		cur = append(cur, p)
		total += len(p)
	}
	if len(cur) > 0 {
		flush()
	}
	return chunks
}

// ChunkDocuments splits each document, preserving source order within a
// document and loader order across documents.
func ChunkDocuments(docs []domain.SourceDocument, splitter *Splitter) []domain.Chunk {
	if splitter == nil {
		splitter = NewSplitter(DefaultChunkSize, DefaultOverlap)
	}
	var chunks []domain.Chunk
	for _, doc := range docs {
		for i, text := range splitter.Split(doc.Content) {
			chunks = append(chunks, domain.Chunk{
				Text:   text,
				Source: doc.Source,
				Index:  i,
			})
		}
	}
	return chunks
}
