package loader

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/net/html"

	"github.com/QAPilotAI/qapilot-mvp/engine/domain"
)

// loadHTML extracts the page's visible text, one text node per line. Tag
// structure is discarded; script and style bodies are skipped.
func (l *Loader) loadHTML(path string) ([]domain.SourceDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer f.Close()

	root, err := html.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("loader: parse html %s: %w", path, err)
	}

	var lines []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				lines = append(lines, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return []domain.SourceDocument{{Content: strings.Join(lines, "\n"), Source: path}}, nil
}
