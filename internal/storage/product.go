package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/todmy/beauty-analyzer/internal/ingredient"
	"github.com/todmy/beauty-analyzer/pkg/models"
)

// ProductRepository resolves products sent by name only
type ProductRepository interface {
	FindByName(ctx context.Context, name string) (*models.Product, error)
}

// PostgresProductRepository implements ProductRepository using PostgreSQL
type PostgresProductRepository struct {
	db *sql.DB
}

func NewPostgresProductRepository(db *sql.DB) *PostgresProductRepository {
	return &PostgresProductRepository{db: db}
}

// FindByName loads a product and its ingredient references in label order
func (r *PostgresProductRepository) FindByName(ctx context.Context, name string) (*models.Product, error) {
	query := `
		SELECT id, name, COALESCE(brand, ''), COALESCE(category, '')
		FROM products
		WHERE lower(name) = $1
		ORDER BY id ASC
		LIMIT 1
	`

	p := &models.Product{}
	err := r.db.QueryRowContext(ctx, query, ingredient.Normalize(name)).Scan(
		&p.ID,
		&p.Name,
		&p.Brand,
		&p.Category,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT i.id, i.name, pi.concentration, pi.is_active
		FROM product_ingredients pi
		JOIN ingredients i ON i.id = pi.ingredient_id
		WHERE pi.product_id = $1
		ORDER BY pi.position ASC
	`, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get product ingredients: %w", err)
	}
	defer rows.Close()

	p.Ingredients = []models.ProductIngredient{}
	for rows.Next() {
		var pi models.ProductIngredient
		var concentration sql.NullFloat64
		if err := rows.Scan(&pi.IngredientID, &pi.Name, &concentration, &pi.Active); err != nil {
			return nil, fmt.Errorf("failed to scan product ingredient: %w", err)
		}
		if concentration.Valid {
			pi.Concentration = &concentration.Float64
		}
		p.Ingredients = append(p.Ingredients, pi)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return p, nil
}
