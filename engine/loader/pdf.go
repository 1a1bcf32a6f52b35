package loader

import (
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/QAPilotAI/qapilot-mvp/engine/domain"
)

// loadPDF extracts the document's plain text.
func (l *Loader) loadPDF(path string) ([]domain.SourceDocument, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open pdf %s: %w", path, err)
	}
	defer f.Close()

	r, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("loader: extract pdf %s: %w", path, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("loader: extract pdf %s: %w", path, err)
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return nil, fmt.Errorf("loader: pdf %s: no extractable text", path)
	}
	return []domain.SourceDocument{{Content: content, Source: path}}, nil
}
