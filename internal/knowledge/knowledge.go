// Package knowledge answers free-text questions about ingredients from an indexed
// corpus of reference documents.
package knowledge

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/todmy/beauty-analyzer/pkg/models"
)

var (
	// ErrNoPassages is returned when a document produces nothing to index
	ErrNoPassages = errors.New("no passages")
	// ErrMalformedAnswer is returned when the completion model sends an unusable reply
	ErrMalformedAnswer = errors.New("malformed answer")
)

// Answer is a retriever reply: free text, a confidence in [0,1] and the source
// identifiers of the passages it was grounded on
type Answer struct {
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
}

// QueryContext personalizes a question
type QueryContext struct {
	SkinType  models.SkinType `json:"skin_type,omitempty"`
	Concerns  []string        `json:"concerns,omitempty"`
	Allergies []string        `json:"allergies,omitempty"`
}

// Retriever answers a question. "No good answer" is a low-confidence Answer, not an error.
type Retriever interface {
	Query(ctx context.Context, question string, qc *QueryContext) (*Answer, error)
}

// Passage is one indexed chunk of a reference document
type Passage struct {
	ID         uuid.UUID
	Source     string
	Position   int
	Text       string
	Embedding  []float32
	Similarity float64
}

// VectorStore persists passages and ranks them against a query embedding
type VectorStore interface {
	Search(ctx context.Context, embedding []float32, topK int, minSimilarity float64) ([]Passage, error)
	SavePassages(ctx context.Context, passages []Passage) error
}

// Embedder turns text into embedding vectors
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer produces a completion for a prompt
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
