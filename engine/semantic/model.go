package semantic

// SearchResult is a single vector search hit.
type SearchResult struct {
	ID      string            `json:"id"`
	Score   float32           `json:"score"`
	Content string            `json:"content"`
	Source  string            `json:"source"`
	ChunkID string            `json:"chunk_id"`
	Meta    map[string]string `json:"meta"`
}

// VectorRecord is a single embedded chunk to store.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Payload   map[string]any // content, source, chunk_id, chunk_index
}
