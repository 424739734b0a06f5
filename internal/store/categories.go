package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CategoryRepository handles the small, mostly-static category taxonomy and
// its many-to-many join with listings.
type CategoryRepository struct {
	db *pgxpool.Pool
}

func NewCategoryRepository(db *DB) *CategoryRepository {
	return &CategoryRepository{db: db.pool}
}

func (r *CategoryRepository) List(ctx context.Context) ([]*Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, slug, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []*Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Slug, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// SetListingCategories replaces a listing's category associations with
// categorySlugs, ignoring slugs that don't exist.
func (r *CategoryRepository) SetListingCategories(ctx context.Context, listingID string, categorySlugs []string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin category tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM listing_categories WHERE listing_id = $1`, listingID); err != nil {
		return fmt.Errorf("clear listing categories: %w", err)
	}

	for _, slug := range categorySlugs {
		_, err := tx.Exec(ctx, `
			INSERT INTO listing_categories (listing_id, category_id)
			SELECT $1, id FROM categories WHERE slug = $2
			ON CONFLICT DO NOTHING`, listingID, slug)
		if err != nil {
			return fmt.Errorf("associate category %s: %w", slug, err)
		}
	}

	return tx.Commit(ctx)
}
