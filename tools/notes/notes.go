// Package notes retrieves passages from a local text corpus with BM25.
package notes

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve"

	"github.com/viso-study/visocode/config"
)

type chunkDoc struct {
	File string `json:"file"`
	Text string `json:"text"`
}

// Retriever indexes .md and .txt files under a corpus directory into an
// in-memory BM25 index at construction time. The index is read-only after
// New returns.
type Retriever struct {
	index bleve.Index
	meta  map[string]chunkDoc
	topK  int
}

// New builds a Retriever over the configured corpus directory.
func New(cfg config.NotesConfig) (*Retriever, error) {
	cfg = cfg.Normalize()
	if cfg.CorpusDir == "" {
		return nil, fmt.Errorf("notes corpus dir not set")
	}

	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating notes index: %w", err)
	}
	r := &Retriever{
		index: index,
		meta:  make(map[string]chunkDoc),
		topK:  cfg.TopK,
	}

	err = filepath.WalkDir(cfg.CorpusDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(cfg.CorpusDir, path)
		if err != nil {
			rel = path
		}
		for i, chunk := range chunkTexts(splitBlocks(string(data)), cfg.ChunkChars, cfg.ChunkOverlap) {
			id := fmt.Sprintf("%s#%d", rel, i)
			doc := chunkDoc{File: rel, Text: chunk}
			r.meta[id] = doc
			if err := index.Index(id, doc); err != nil {
				return fmt.Errorf("indexing %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking notes corpus: %w", err)
	}
	return r, nil
}

// Retrieve returns the top-k matching passages formatted for synthesis
// context. An empty result set comes back as a "no matches" string.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) (string, error) {
	if topK <= 0 {
		topK = r.topK
	}
	q := bleve.NewQueryStringQuery(query)
	req := bleve.NewSearchRequestOptions(q, topK*3, 0, false)
	res, err := r.index.SearchInContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("searching notes: %w", err)
	}
	if len(res.Hits) == 0 {
		return "No matching passages found in the local notes corpus.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Local notes (top %d matches):\n", topK)
	count := 0
	for _, hit := range res.Hits {
		doc, ok := r.meta[hit.ID]
		if !ok {
			continue
		}
		count++
		fmt.Fprintf(&b, "\n%d. [%s] (score %.2f)\n%s\n", count, doc.File, hit.Score, snippet(doc.Text))
		if count >= topK {
			break
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// DocCount reports the number of indexed chunks.
func (r *Retriever) DocCount() int { return len(r.meta) }

// splitBlocks breaks a document into paragraph blocks.
func splitBlocks(text string) []string {
	var blocks []string
	for _, para := range strings.Split(text, "\n\n") {
		if p := strings.TrimSpace(para); p != "" {
			blocks = append(blocks, p)
		}
	}
	return blocks
}

// chunkTexts merges blocks into overlapping chunks of roughly targetChars
// characters. The tail of each chunk seeds the next so passages spanning a
// boundary stay searchable.
func chunkTexts(blocks []string, targetChars, overlap int) []string {
	var chunks []string
	var buf []string
	total := 0
	for _, b := range blocks {
		if total+len(b) > targetChars && len(buf) > 0 {
			text := strings.Join(buf, "\n")
			chunks = append(chunks, text)
			tail := ""
			if overlap > 0 && len(text) > overlap {
				tail = text[len(text)-overlap:]
			} else if overlap > 0 {
				tail = text
			}
			if tail != "" {
				buf = []string{tail}
				total = len(tail)
			} else {
				buf = nil
				total = 0
			}
		}
		buf = append(buf, b)
		total += len(b)
	}
	if len(buf) > 0 {
		chunks = append(chunks, strings.Join(buf, "\n"))
	}
	return chunks
}

func snippet(text string) string {
	const maxRunes = 400
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= maxRunes {
		return string(runes)
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + "…"
}
