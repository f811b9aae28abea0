package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/todmy/beauty-analyzer/internal/conflict"
	"github.com/todmy/beauty-analyzer/internal/routine"
)

// PredictionRepository persists conflict reports after analysis
type PredictionRepository interface {
	Save(ctx context.Context, userID string, report *conflict.Report) (uuid.UUID, error)
}

// RoutineRepository persists optimized routines
type RoutineRepository interface {
	Save(ctx context.Context, userID string, r *routine.OptimizedRoutine) (uuid.UUID, error)
}

// PostgresPredictionRepository implements PredictionRepository using PostgreSQL
type PostgresPredictionRepository struct {
	db *sql.DB
}

func NewPostgresPredictionRepository(db *sql.DB) *PostgresPredictionRepository {
	return &PostgresPredictionRepository{db: db}
}

func (r *PostgresPredictionRepository) Save(ctx context.Context, userID string, report *conflict.Report) (uuid.UUID, error) {
	body, err := json.Marshal(report)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to encode report: %w", err)
	}

	id := uuid.New()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO conflict_analyses (id, user_id, overall_risk_score, degraded, report, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, userID, report.OverallRiskScore, report.Degraded, body, time.Now())
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to save conflict analysis: %w", err)
	}
	return id, nil
}

// PostgresRoutineRepository implements RoutineRepository using PostgreSQL
type PostgresRoutineRepository struct {
	db *sql.DB
}

func NewPostgresRoutineRepository(db *sql.DB) *PostgresRoutineRepository {
	return &PostgresRoutineRepository{db: db}
}

func (r *PostgresRoutineRepository) Save(ctx context.Context, userID string, rt *routine.OptimizedRoutine) (uuid.UUID, error) {
	body, err := json.Marshal(rt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to encode routine: %w", err)
	}

	id := uuid.New()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO routines (id, user_id, degraded, routine, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, userID, rt.Degraded, body, time.Now())
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to save routine: %w", err)
	}
	return id, nil
}

// Latest returns the most recent routine saved for a user
func (r *PostgresRoutineRepository) Latest(ctx context.Context, userID string) (*routine.OptimizedRoutine, error) {
	var body []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT routine FROM routines
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, userID).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get routine: %w", err)
	}

	var rt routine.OptimizedRoutine
	if err := json.Unmarshal(body, &rt); err != nil {
		return nil, fmt.Errorf("failed to decode routine: %w", err)
	}
	return &rt, nil
}
