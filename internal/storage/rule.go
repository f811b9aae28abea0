package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/todmy/beauty-analyzer/internal/ingredient"
	"github.com/todmy/beauty-analyzer/pkg/models"
)

// PostgresConflictRuleRepository serves curated conflict rules from PostgreSQL
type PostgresConflictRuleRepository struct {
	db *sql.DB
}

func NewPostgresConflictRuleRepository(db *sql.DB) *PostgresConflictRuleRepository {
	return &PostgresConflictRuleRepository{db: db}
}

// Lookup returns the active rule for the unordered pair {a, b}, or nil. An exact
// name match wins over a containment match; the query is symmetric in a and b.
func (r *PostgresConflictRuleRepository) Lookup(ctx context.Context, a, b string, skinType models.SkinType) (*models.ConflictRule, error) {
	query := `
		SELECT id, ingredient1, ingredient2, severity, description, separation_hours, applicable_skin_types
		FROM conflict_rules
		WHERE is_active
		  AND (
		    ($1 LIKE '%' || lower(ingredient1) || '%' AND $2 LIKE '%' || lower(ingredient2) || '%')
		    OR ($2 LIKE '%' || lower(ingredient1) || '%' AND $1 LIKE '%' || lower(ingredient2) || '%')
		  )
		ORDER BY (lower(ingredient1) IN ($1, $2) AND lower(ingredient2) IN ($1, $2)) DESC, id ASC
		LIMIT 1
	`

	rule := &models.ConflictRule{}
	var skinTypes []string
	err := r.db.QueryRowContext(ctx, query, ingredient.Normalize(a), ingredient.Normalize(b)).Scan(
		&rule.ID,
		&rule.Ingredient1,
		&rule.Ingredient2,
		&rule.Severity,
		&rule.Description,
		&rule.SeparationHours,
		pq.Array(&skinTypes),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up conflict rule: %w", err)
	}

	for _, st := range skinTypes {
		rule.ApplicableSkinTypes = append(rule.ApplicableSkinTypes, models.SkinType(st))
	}
	if !rule.AppliesTo(skinType) {
		return nil, nil
	}
	return rule, nil
}

// Upsert stores a rule, replacing the active rule for the same unordered pair
func (r *PostgresConflictRuleRepository) Upsert(ctx context.Context, rule models.ConflictRule) error {
	skinTypes := make([]string, len(rule.ApplicableSkinTypes))
	for i, st := range rule.ApplicableSkinTypes {
		skinTypes[i] = string(st)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	a, b := ingredient.Normalize(rule.Ingredient1), ingredient.Normalize(rule.Ingredient2)
	_, err = tx.ExecContext(ctx, `
		UPDATE conflict_rules SET is_active = FALSE
		WHERE is_active
		  AND LEAST(lower(ingredient1), lower(ingredient2)) = LEAST($1::text, $2::text)
		  AND GREATEST(lower(ingredient1), lower(ingredient2)) = GREATEST($1::text, $2::text)
	`, a, b)
	if err != nil {
		return fmt.Errorf("failed to retire conflict rule: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conflict_rules (ingredient1, ingredient2, severity, description, separation_hours, applicable_skin_types)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a, b, rule.Severity, rule.Description, rule.SeparationHours, pq.Array(skinTypes))
	if err != nil {
		return fmt.Errorf("failed to insert conflict rule: %w", err)
	}

	return tx.Commit()
}
