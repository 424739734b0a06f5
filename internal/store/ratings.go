package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrRatingListingNotFound = errors.New("rating target listing not found")

// RatingRepository inserts ratings and keeps each listing's denormalized
// avg_rating/rating_count in sync with the underlying rows.
type RatingRepository struct {
	db *pgxpool.Pool
}

func NewRatingRepository(db *DB) *RatingRepository {
	return &RatingRepository{db: db.pool}
}

// Create inserts a rating and recomputes the listing's avg_rating and
// rating_count in the same transaction, so readers never observe a
// count/avg pair drawn from different rating sets.
func (r *RatingRepository) Create(ctx context.Context, rating *Rating) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin rating tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Locking the listing row serializes concurrent ratings of one listing,
	// so the aggregate UPDATE below sees every rating committed before it.
	var lockedID string
	err = tx.QueryRow(ctx, `SELECT id FROM listings WHERE id = $1 AND status != $2 FOR UPDATE`, rating.ListingID, StatusPurged).Scan(&lockedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrRatingListingNotFound
	}
	if err != nil {
		return fmt.Errorf("check listing exists: %w", err)
	}

	_, err = tx.Exec(ctx, `INSERT INTO ratings (id, listing_id, reviewer_name, score, comment, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		rating.ID, rating.ListingID, rating.ReviewerName, rating.Score, rating.Comment, rating.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert rating: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE listings SET
			rating_count = (SELECT COUNT(*) FROM ratings WHERE listing_id = $1),
			avg_rating = (SELECT COALESCE(AVG(score), 0) FROM ratings WHERE listing_id = $1),
			updated_at = now()
		WHERE id = $1`, rating.ListingID)
	if err != nil {
		return fmt.Errorf("recompute rating aggregate: %w", err)
	}

	return tx.Commit(ctx)
}

// ListByListing returns all ratings for a listing, newest first.
func (r *RatingRepository) ListByListing(ctx context.Context, listingID string) ([]*Rating, error) {
	rows, err := r.db.Query(ctx, `SELECT id, listing_id, reviewer_name, score, comment, created_at
		FROM ratings WHERE listing_id = $1 ORDER BY created_at DESC`, listingID)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	var out []*Rating
	for rows.Next() {
		var rt Rating
		if err := rows.Scan(&rt.ID, &rt.ListingID, &rt.ReviewerName, &rt.Score, &rt.Comment, &rt.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		out = append(out, &rt)
	}
	return out, rows.Err()
}
