package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/todmy/beauty-analyzer/internal/knowledge"
)

// PostgresKnowledgeRepository is a knowledge.VectorStore backed by pgvector
type PostgresKnowledgeRepository struct {
	db *sql.DB
}

func NewPostgresKnowledgeRepository(db *sql.DB) *PostgresKnowledgeRepository {
	return &PostgresKnowledgeRepository{db: db}
}

// SavePassages inserts passages in a single transaction
func (r *PostgresKnowledgeRepository) SavePassages(ctx context.Context, passages []knowledge.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO knowledge_passages (id, source, position, text, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for i := range passages {
		p := &passages[i]
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		_, err := stmt.ExecContext(ctx,
			p.ID,
			p.Source,
			p.Position,
			p.Text,
			pgvector.NewVector(p.Embedding),
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert passage %d of %s: %w", p.Position, p.Source, err)
		}
	}

	return tx.Commit()
}

// Search ranks passages by cosine similarity using the pgvector <=> operator
func (r *PostgresKnowledgeRepository) Search(ctx context.Context, embedding []float32, topK int, minSimilarity float64) ([]knowledge.Passage, error) {
	if topK <= 0 {
		topK = 5
	}

	query := `
		SELECT id, source, position, text, 1 - (embedding <=> $1) AS similarity
		FROM knowledge_passages
		WHERE 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, pgvector.NewVector(embedding), minSimilarity, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search passages: %w", err)
	}
	defer rows.Close()

	var passages []knowledge.Passage
	for rows.Next() {
		var p knowledge.Passage
		if err := rows.Scan(&p.ID, &p.Source, &p.Position, &p.Text, &p.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan passage: %w", err)
		}
		passages = append(passages, p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return passages, nil
}
