package knowledge

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/todmy/beauty-analyzer/internal/logger"
)

// IngestConfig holds chunking settings, measured in characters
type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// DefaultIngestConfig returns default chunking settings
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		ChunkSize:    1000,
		ChunkOverlap: 200,
	}
}

// Ingester indexes markdown reference documents into a VectorStore
type Ingester struct {
	embedder Embedder
	store    VectorStore
	config   IngestConfig
	md       goldmark.Markdown
	log      *logger.Logger
}

func NewIngester(embedder Embedder, store VectorStore, config IngestConfig, log *logger.Logger) *Ingester {
	defaults := DefaultIngestConfig()
	if config.ChunkSize <= 0 {
		config.ChunkSize = defaults.ChunkSize
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 5
	}
	return &Ingester{
		embedder: embedder,
		store:    store,
		config:   config,
		md:       goldmark.New(),
		log:      logger.OrNop(log).With("component", "ingest"),
	}
}

// Ingest chunks a markdown document, embeds every chunk and stores the passages.
// It returns the number of passages stored.
func (in *Ingester) Ingest(ctx context.Context, source string, markdown []byte) (int, error) {
	blocks := in.PlainText(markdown)
	chunks := Chunk(blocks, in.config.ChunkSize, in.config.ChunkOverlap)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%s: %w", source, ErrNoPassages)
	}

	vectors, err := in.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", source, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embed %s: got %d vectors for %d chunks", source, len(vectors), len(chunks))
	}

	passages := make([]Passage, len(chunks))
	for i, c := range chunks {
		passages[i] = Passage{
			Source:    source,
			Position:  i,
			Text:      c,
			Embedding: vectors[i],
		}
	}
	if err := in.store.SavePassages(ctx, passages); err != nil {
		return 0, fmt.Errorf("save %s: %w", source, err)
	}

	in.log.Info("document indexed", "source", source, "passages", len(passages))
	return len(passages), nil
}

// PlainText renders markdown into text blocks, one per heading, paragraph,
// list item or code block
func (in *Ingester) PlainText(markdown []byte) []string {
	reader := text.NewReader(markdown)
	doc := in.md.Parser().Parse(reader)
	src := reader.Source()

	var blocks []string
	var buf bytes.Buffer
	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			blocks = append(blocks, strings.Join(strings.Fields(s), " "))
		}
		buf.Reset()
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
			if !entering {
				flush()
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := node.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					buf.Write(seg.Value(src))
				}
				flush()
			}
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if entering {
				buf.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				buf.Write(node.Value)
			}
		}
		return ast.WalkContinue, nil
	})
	flush()

	return blocks
}

// Chunk packs text blocks into chunks of at most size characters. Consecutive
// chunks share overlap characters; a block longer than size is split.
func Chunk(blocks []string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	joined := []rune(strings.Join(blocks, "\n"))
	if len(joined) == 0 {
		return nil
	}

	var chunks []string
	step := size - overlap
	for start := 0; start < len(joined); start += step {
		end := start + size
		if end > len(joined) {
			end = len(joined)
		}
		if c := strings.TrimSpace(string(joined[start:end])); c != "" {
			chunks = append(chunks, c)
		}
		if end == len(joined) {
			break
		}
	}
	return chunks
}
