package portfolio

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/aristath/assetflow/internal/database"
	"github.com/aristath/assetflow/internal/domain"
	"github.com/rs/zerolog"
)

// CategoryRepository handles category targets in portfolio.db
type CategoryRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(db *sql.DB, log zerolog.Logger) *CategoryRepository {
	return &CategoryRepository{
		db:  db,
		log: log.With().Str("repo", "category").Logger(),
	}
}

// Seed inserts the known categories with a zero target. Existing rows are kept.
func (r *CategoryRepository) Seed(ctx context.Context) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		for _, c := range domain.KnownCategories {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO categories (name, target_percent) VALUES (?, 0)", string(c)); err != nil {
				return fmt.Errorf("failed to seed category %s: %w", c, err)
			}
		}
		return nil
	})
}

// List returns all categories ordered by name
func (r *CategoryRepository) List(ctx context.Context) ([]domain.CategoryTarget, error) {
	return listCategories(ctx, r.db)
}

// ListTx is List inside a caller-owned transaction
func (r *CategoryRepository) ListTx(ctx context.Context, tx *sql.Tx) ([]domain.CategoryTarget, error) {
	return listCategories(ctx, tx)
}

func listCategories(ctx context.Context, q queryer) ([]domain.CategoryTarget, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, name, target_percent FROM categories ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var out []domain.CategoryTarget
	for rows.Next() {
		var c domain.CategoryTarget
		var name string
		if err := rows.Scan(&c.ID, &name, &c.TargetPercent); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.Name = domain.Category(name)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return out, nil
}

// SetTarget sets the portfolio-level target of a category, creating it when
// missing. The sum of targets across categories is not constrained.
func (r *CategoryRepository) SetTarget(ctx context.Context, name domain.Category, target float64) (domain.CategoryTarget, error) {
	name = domain.Category(strings.TrimSpace(string(name)))
	if name == "" {
		return domain.CategoryTarget{}, fmt.Errorf("%w: name is required", ErrInvalidCategory)
	}
	if !validPercent(target) {
		return domain.CategoryTarget{}, fmt.Errorf("%w: target %v outside 0-100", ErrInvalidCategory, target)
	}

	_, err := r.db.ExecContext(ctx, `INSERT INTO categories (name, target_percent) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET target_percent = excluded.target_percent`,
		string(name), target)
	if err != nil {
		return domain.CategoryTarget{}, fmt.Errorf("failed to set category target: %w", err)
	}

	var c domain.CategoryTarget
	err = r.db.QueryRowContext(ctx, "SELECT id, target_percent FROM categories WHERE name = ?", string(name)).
		Scan(&c.ID, &c.TargetPercent)
	if err != nil {
		return domain.CategoryTarget{}, fmt.Errorf("failed to read category: %w", err)
	}
	c.Name = name

	r.log.Info().Str("category", string(name)).Float64("target", target).Msg("Category target updated")
	return c, nil
}

// TargetMap turns a category list into name -> target percent
func TargetMap(categories []domain.CategoryTarget) map[domain.Category]float64 {
	out := make(map[domain.Category]float64, len(categories))
	for _, c := range categories {
		out[c.Name] = c.TargetPercent
	}
	return out
}
