package knowledge

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/todmy/beauty-analyzer/internal/similarity"
)

// MemoryStore is an in-process VectorStore for the CLI and tests
type MemoryStore struct {
	mu       sync.RWMutex
	passages []Passage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SavePassages(_ context.Context, passages []Passage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range passages {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		s.passages = append(s.passages, p)
	}
	return nil
}

// Search ranks all passages by cosine similarity and returns the best topK at or
// above minSimilarity
func (s *MemoryStore) Search(_ context.Context, embedding []float32, topK int, minSimilarity float64) ([]Passage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := make([][]float32, len(s.passages))
	for i, p := range s.passages {
		candidates[i] = p.Embedding
	}

	matches := similarity.Rank(embedding, candidates, topK, minSimilarity)
	hits := make([]Passage, len(matches))
	for i, m := range matches {
		hits[i] = s.passages[m.Index]
		hits[i].Similarity = m.Score
	}
	return hits, nil
}

// Len returns the number of stored passages
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.passages)
}
