package knowledge

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/todmy/beauty-analyzer/internal/logger"
)

// NoAnswerText is returned with zero confidence when nothing relevant is indexed
const NoAnswerText = "No relevant reference material was found for this question."

// RAGConfig holds retrieval settings
type RAGConfig struct {
	TopK          int
	MinSimilarity float64
}

// DefaultRAGConfig returns default retrieval settings
func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		TopK:          5,
		MinSimilarity: 0.7,
	}
}

// RAG answers questions by embedding them, fetching the closest passages and asking
// the completion model to answer from those passages only
type RAG struct {
	embedder  Embedder
	store     VectorStore
	completer Completer
	config    RAGConfig
	log       *logger.Logger
}

func NewRAG(embedder Embedder, store VectorStore, completer Completer, config RAGConfig, log *logger.Logger) *RAG {
	if config.TopK <= 0 {
		config.TopK = DefaultRAGConfig().TopK
	}
	if config.MinSimilarity <= 0 {
		config.MinSimilarity = DefaultRAGConfig().MinSimilarity
	}
	return &RAG{
		embedder:  embedder,
		store:     store,
		completer: completer,
		config:    config,
		log:       logger.OrNop(log).With("component", "rag"),
	}
}

func (r *RAG) Query(ctx context.Context, question string, qc *QueryContext) (*Answer, error) {
	vec, err := r.embedder.EmbedText(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	passages, err := r.store.Search(ctx, vec, r.config.TopK, r.config.MinSimilarity)
	if err != nil {
		return nil, fmt.Errorf("search passages: %w", err)
	}
	if len(passages) == 0 {
		r.log.Debug("no passages above threshold", "min_similarity", r.config.MinSimilarity)
		return &Answer{Text: NoAnswerText, Confidence: 0, Sources: []string{}}, nil
	}

	text, err := r.completer.Complete(ctx, buildPrompt(question, passages, qc))
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrMalformedAnswer
	}

	return &Answer{
		Text:       text,
		Confidence: confidence(passages, text, r.config.TopK),
		Sources:    sources(passages),
	}, nil
}

// confidence blends how many passages matched, how close they were, and how much
// the model had to say
func confidence(passages []Passage, text string, topK int) float64 {
	var sum float64
	for _, p := range passages {
		sum += p.Similarity
	}
	scoreFactor := clamp01(sum / float64(len(passages)))
	sourceFactor := math.Min(float64(len(passages))/float64(topK), 1)
	lengthFactor := math.Min(float64(len([]rune(text)))/1000, 1)

	c := sourceFactor*0.4 + scoreFactor*0.4 + lengthFactor*0.2
	return math.Round(c*100) / 100
}

func sources(passages []Passage) []string {
	seen := make(map[string]bool, len(passages))
	out := make([]string, 0, len(passages))
	for _, p := range passages {
		if p.Source == "" || seen[p.Source] {
			continue
		}
		seen[p.Source] = true
		out = append(out, p.Source)
	}
	return out
}

func clamp01(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func buildPrompt(question string, passages []Passage, qc *QueryContext) string {
	var b strings.Builder
	b.WriteString("You are a cosmetic chemistry assistant. Answer the question using only the reference passages below. ")
	b.WriteString("If the passages do not cover the question, say so.\n\n")

	for i, p := range passages {
		fmt.Fprintf(&b, "Passage %d (%s):\n%s\n\n", i+1, p.Source, p.Text)
	}

	if qc != nil {
		if qc.SkinType != "" {
			fmt.Fprintf(&b, "User skin type: %s\n", qc.SkinType)
		}
		if len(qc.Concerns) > 0 {
			fmt.Fprintf(&b, "User concerns: %s\n", strings.Join(qc.Concerns, ", "))
		}
		if len(qc.Allergies) > 0 {
			fmt.Fprintf(&b, "User allergies: %s\n", strings.Join(qc.Allergies, ", "))
		}
	}

	fmt.Fprintf(&b, "\nQuestion: %s\n", question)
	return b.String()
}
