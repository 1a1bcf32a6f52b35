// Package domain holds the core types shared across the ingestion and
// generation pipelines.
package domain

// SourceDocument is one loaded input file normalized to plain text.
type SourceDocument struct {
	// Content is the extracted text.
	Content string
	// Source is the originating file path.
	Source string
}

// Chunk is a fixed-window text segment of a SourceDocument, the unit of
// embedding and retrieval.
type Chunk struct {
	Text   string
	Source string
	// Index is the chunk's position within its source document.
	Index int
}

// TestCase is one generated test case. The JSON keys are the exact field
// names the generation prompt demands from the model.
type TestCase struct {
	TestID         string `json:"Test_ID"`
	Feature        string `json:"Feature"`
	TestScenario   string `json:"Test_Scenario"`
	ExpectedResult string `json:"Expected_Result"`
	GroundedIn     string `json:"Grounded_In"`
}
