package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/todmy/beauty-analyzer/internal/ingredient"
	"github.com/todmy/beauty-analyzer/pkg/models"
)

// IngredientRepository reads the ingredient catalogue
type IngredientRepository interface {
	GetByName(ctx context.Context, name string) (*models.Ingredient, error)
	Search(ctx context.Context, query string, limit int) ([]models.Ingredient, error)
}

// PostgresIngredientRepository implements IngredientRepository using PostgreSQL
type PostgresIngredientRepository struct {
	db *sql.DB
}

func NewPostgresIngredientRepository(db *sql.DB) *PostgresIngredientRepository {
	return &PostgresIngredientRepository{db: db}
}

const ingredientColumns = `id, name, COALESCE(inci_name, ''), COALESCE(cas_number, ''), ph_min, ph_max, is_photosensitive, created_at`

// GetByName looks an ingredient up case-insensitively
func (r *PostgresIngredientRepository) GetByName(ctx context.Context, name string) (*models.Ingredient, error) {
	query := `SELECT ` + ingredientColumns + `
		FROM ingredients
		WHERE lower(name) = $1
	`

	ing, err := scanIngredient(r.db.QueryRowContext(ctx, query, ingredient.Normalize(name)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ingredient: %w", err)
	}
	return ing, nil
}

// Search returns ingredients whose name or INCI name contains query
func (r *PostgresIngredientRepository) Search(ctx context.Context, query string, limit int) ([]models.Ingredient, error) {
	if limit <= 0 {
		limit = 20
	}

	q := `SELECT ` + ingredientColumns + `
		FROM ingredients
		WHERE name ILIKE $1 OR inci_name ILIKE $1
		ORDER BY name ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, q, "%"+escapeLike(strings.TrimSpace(query))+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search ingredients: %w", err)
	}
	defer rows.Close()

	ingredients := []models.Ingredient{}
	for rows.Next() {
		ing, err := scanIngredient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ingredient: %w", err)
		}
		ingredients = append(ingredients, *ing)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return ingredients, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIngredient(row scanner) (*models.Ingredient, error) {
	ing := &models.Ingredient{}
	var phMin, phMax sql.NullFloat64
	err := row.Scan(
		&ing.ID,
		&ing.Name,
		&ing.INCIName,
		&ing.CASNumber,
		&phMin,
		&phMax,
		&ing.IsPhotosensitive,
		&ing.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if phMin.Valid {
		ing.PHMin = &phMin.Float64
	}
	if phMax.Valid {
		ing.PHMax = &phMax.Float64
	}
	return ing, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
