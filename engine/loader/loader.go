// Package loader reads heterogeneous input files and normalizes each into
// a plain-text SourceDocument tagged with its source path.
package loader

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/QAPilotAI/qapilot-mvp/engine/domain"
)

// SupportedExtensions lists the file types the loader understands.
var SupportedExtensions = []string{".md", ".txt", ".json", ".html", ".htm", ".pdf"}

// Loader loads files into SourceDocuments.
type Loader struct {
	log *slog.Logger
}

// New creates a Loader.
func New(log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{log: log}
}

// Supported reports whether the loader handles the file's extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Load reads one file, dispatching on its extension.
func (l *Loader) Load(path string) ([]domain.SourceDocument, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".md", ".txt":
		return l.loadText(path)
	case ".json":
		return l.loadJSON(path)
	case ".html", ".htm":
		return l.loadHTML(path)
	case ".pdf":
		return l.loadPDF(path)
	default:
		return nil, domain.NewValidationError("extension", ext, domain.ErrUnsupportedFormat)
	}
}

// LoadAll loads every path it can; per-file failures are logged and the
// file is skipped. An empty result is not an error.
func (l *Loader) LoadAll(paths []string) []domain.SourceDocument {
	var docs []domain.SourceDocument
	for _, path := range paths {
		loaded, err := l.Load(path)
		if err != nil {
			l.log.Warn("loader: skipping file", "path", path, "error", err)
			continue
		}
		docs = append(docs, loaded...)
	}
	return docs
}

func (l *Loader) loadText(path string) ([]domain.SourceDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", path, err)
	}
	return []domain.SourceDocument{{Content: string(data), Source: path}}, nil
}

// loadJSON re-serializes the parsed value with indentation, keeping the
// structure readable rather than extracting individual fields.
func (l *Loader) loadJSON(path string) ([]domain.SourceDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", path, err)
	}
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("loader: parse json %s: %w", path, err)
	}
	pretty, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("loader: reserialize %s: %w", path, err)
	}
	return []domain.SourceDocument{{Content: string(pretty), Source: path}}, nil
}
