package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrListingNotFound is returned when a listing does not exist, or
	// exists only as a purged tombstone.
	ErrListingNotFound = errors.New("listing not found")
	// ErrSlugExists is returned when creating a listing whose slug
	// collides with an existing non-purged listing.
	ErrSlugExists = errors.New("listing slug already exists")
)

const listingColumns = `
	id, slug, name, url, effective_domain, description, owner_name, owner_contact,
	logo_url, pricing_model, protocol, status, edit_token_hash,
	domain_challenge, domain_challenge_expires_at, domain_verified,
	avg_rating, rating_count, last_probed_at, dead_since, created_at, updated_at`

// ListingRepository handles all persistence for directory listings.
type ListingRepository struct {
	db *pgxpool.Pool
}

func NewListingRepository(db *DB) *ListingRepository {
	return &ListingRepository{db: db.pool}
}

func scanListing(row pgx.Row) (*Listing, error) {
	var l Listing
	err := row.Scan(
		&l.ID, &l.Slug, &l.Name, &l.URL, &l.EffectiveDomain, &l.Description,
		&l.OwnerName, &l.OwnerContact, &l.LogoURL, &l.PricingModel, &l.Protocol,
		&l.Status, &l.EditTokenHash, &l.DomainChallenge, &l.DomainChallengeExpiresAt,
		&l.DomainVerified, &l.AvgRating, &l.RatingCount, &l.LastProbedAt, &l.DeadSince,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Create inserts a brand-new listing row. Returns ErrSlugExists if a
// non-purged listing already owns the slug.
func (r *ListingRepository) Create(ctx context.Context, l *Listing) error {
	query := `INSERT INTO listings (
		id, slug, name, url, effective_domain, description, owner_name, owner_contact,
		logo_url, pricing_model, protocol, status, edit_token_hash,
		domain_verified, avg_rating, rating_count, created_at, updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`

	_, err := r.db.Exec(ctx, query,
		l.ID, l.Slug, l.Name, l.URL, l.EffectiveDomain, l.Description, l.OwnerName, l.OwnerContact,
		l.LogoURL, l.PricingModel, l.Protocol, l.Status, l.EditTokenHash,
		l.DomainVerified, l.AvgRating, l.RatingCount, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "listings_slug_key") {
			return ErrSlugExists
		}
		return fmt.Errorf("create listing: %w", err)
	}
	return nil
}

// ReplacePurged overwrites an existing purged row in place with a fresh
// listing, preserving its id so rating foreign keys survive resubmission of
// the same URL.
func (r *ListingRepository) ReplacePurged(ctx context.Context, id string, l *Listing) error {
	query := `UPDATE listings SET
		slug = $2, name = $3, url = $4, effective_domain = $5, description = $6,
		owner_name = $7, owner_contact = $8, logo_url = $9, pricing_model = $10,
		protocol = $11, status = $12, edit_token_hash = $13, domain_verified = $14,
		domain_challenge = NULL, domain_challenge_expires_at = NULL,
		updated_at = $15
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		id, l.Slug, l.Name, l.URL, l.EffectiveDomain, l.Description,
		l.OwnerName, l.OwnerContact, l.LogoURL, l.PricingModel,
		l.Protocol, l.Status, l.EditTokenHash, l.DomainVerified, l.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "listings_slug_key") {
			return ErrSlugExists
		}
		return fmt.Errorf("replace purged listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrListingNotFound
	}
	return nil
}

// GetBySlug returns a non-purged listing by slug.
func (r *ListingRepository) GetBySlug(ctx context.Context, slug string) (*Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE slug = $1 AND status != $2`
	l, err := scanListing(r.db.QueryRow(ctx, query, slug, StatusPurged))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("get listing by slug: %w", err)
	}
	return l, nil
}

// GetByURLIncludingPurged finds any listing (purged or not) with an exact
// URL match, used by the creation-time reuse rule.
func (r *ListingRepository) GetByURLIncludingPurged(ctx context.Context, rawURL string) (*Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE url = $1`
	l, err := scanListing(r.db.QueryRow(ctx, query, rawURL))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("get listing by url: %w", err)
	}
	return l, nil
}

// FindByEffectiveDomain returns every non-purged listing sharing domain,
// used both for the creation-time existing_edit_token reuse rule and for
// recovery's bulk token rotation.
func (r *ListingRepository) FindByEffectiveDomain(ctx context.Context, domain string) ([]*Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE effective_domain = $1 AND status != $2`
	rows, err := r.db.Query(ctx, query, domain, StatusPurged)
	if err != nil {
		return nil, fmt.Errorf("find listings by domain: %w", err)
	}
	defer rows.Close()

	var out []*Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// List returns a page of non-purged listings, optionally filtered by
// category slug, newest first, along with the total matching count.
func (r *ListingRepository) List(ctx context.Context, categorySlug string, page, pageSize int) ([]*Listing, int, error) {
	offset := (page - 1) * pageSize

	var rows pgx.Rows
	var err error
	var total int

	if categorySlug == "" {
		if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM listings WHERE status != $1`, StatusPurged).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count listings: %w", err)
		}
		rows, err = r.db.Query(ctx, `SELECT `+listingColumns+` FROM listings WHERE status != $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, StatusPurged, pageSize, offset)
	} else {
		countQuery := `SELECT COUNT(*) FROM listings l
			JOIN listing_categories lc ON lc.listing_id = l.id
			JOIN categories c ON c.id = lc.category_id
			WHERE l.status != $1 AND c.slug = $2`
		if err := r.db.QueryRow(ctx, countQuery, StatusPurged, categorySlug).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count listings by category: %w", err)
		}
		listQuery := `SELECT ` + prefixColumns("l", listingColumns) + ` FROM listings l
			JOIN listing_categories lc ON lc.listing_id = l.id
			JOIN categories c ON c.id = lc.category_id
			WHERE l.status != $1 AND c.slug = $2
			ORDER BY l.created_at DESC LIMIT $3 OFFSET $4`
		rows, err = r.db.Query(ctx, listQuery, StatusPurged, categorySlug, pageSize, offset)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var out []*Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

// Search performs a case-insensitive substring match over name and
// description, newest first.
func (r *ListingRepository) Search(ctx context.Context, q string, page, pageSize int) ([]*Listing, int, error) {
	offset := (page - 1) * pageSize
	like := "%" + q + "%"

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM listings WHERE status != $1 AND (name ILIKE $2 OR description ILIKE $2)`, StatusPurged, like).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count search results: %w", err)
	}

	rows, err := r.db.Query(ctx, `SELECT `+listingColumns+` FROM listings WHERE status != $1 AND (name ILIKE $2 OR description ILIKE $2) ORDER BY created_at DESC LIMIT $3 OFFSET $4`, StatusPurged, like, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("search listings: %w", err)
	}
	defer rows.Close()

	var out []*Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

// IssueDomainChallenge persists a fresh recovery challenge on the listing.
func (r *ListingRepository) IssueDomainChallenge(ctx context.Context, id, challenge string, expiresAt time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE listings SET domain_challenge = $2, domain_challenge_expires_at = $3, updated_at = now() WHERE id = $1 AND status != $4`,
		id, challenge, expiresAt, StatusPurged)
	if err != nil {
		return fmt.Errorf("issue domain challenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrListingNotFound
	}
	return nil
}

// RotateDomainTokens is the DomainRecoveryProtocol's bulk commit: it clears
// the recovering listing's challenge and sets the new edit_token_hash plus
// domain_verified=true on every listing sharing domain, all in one
// transaction.
func (r *ListingRepository) RotateDomainTokens(ctx context.Context, recoveringID, domain, newHash string) ([]*Listing, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin recovery tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE listings SET edit_token_hash = $2, domain_verified = true, updated_at = now() WHERE effective_domain = $1 AND status != $3`,
		domain, newHash, StatusPurged); err != nil {
		return nil, fmt.Errorf("rotate domain tokens: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE listings SET domain_challenge = NULL, domain_challenge_expires_at = NULL, updated_at = now() WHERE id = $1`, recoveringID); err != nil {
		return nil, fmt.Errorf("clear domain challenge: %w", err)
	}

	rows, err := tx.Query(ctx, `SELECT `+listingColumns+` FROM listings WHERE effective_domain = $1 AND status != $2`, domain, StatusPurged)
	if err != nil {
		return nil, fmt.Errorf("reload rotated listings: %w", err)
	}
	var out []*Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan rotated listing: %w", err)
		}
		out = append(out, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit recovery tx: %w", err)
	}
	return out, nil
}

// Update applies an edit to name/description/owner/logo fields. Status,
// token, and domain-recovery fields are updated through their own methods.
func (r *ListingRepository) Update(ctx context.Context, id string, name, description, ownerName, ownerContact, logoURL string) error {
	tag, err := r.db.Exec(ctx, `UPDATE listings SET name = $2, description = $3, owner_name = $4, owner_contact = $5, logo_url = $6, updated_at = now() WHERE id = $1 AND status != $7`,
		id, name, description, ownerName, ownerContact, logoURL, StatusPurged)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrListingNotFound
	}
	return nil
}

// Purge tombstones a listing: status becomes purged and its edit token hash
// is cleared so it can never again authorize writes.
func (r *ListingRepository) Purge(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE listings SET status = $2, edit_token_hash = NULL, updated_at = now() WHERE id = $1 AND status != $2`, id, StatusPurged)
	if err != nil {
		return fmt.Errorf("purge listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrListingNotFound
	}
	return nil
}

// SetHealth records the outcome of a background probe (used by the prober
// worker, not by the core's request path).
func (r *ListingRepository) SetHealth(ctx context.Context, id string, status ListingStatus, probedAt time.Time, deadSince *time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE listings SET status = $2, last_probed_at = $3, dead_since = $4, updated_at = now() WHERE id = $1 AND status != $5`,
		id, status, probedAt, deadSince, StatusPurged)
	if err != nil {
		return fmt.Errorf("set listing health: %w", err)
	}
	return nil
}

// ListAllNonPurged is used by the prober worker's sweep.
func (r *ListingRepository) ListAllNonPurged(ctx context.Context) ([]*Listing, error) {
	rows, err := r.db.Query(ctx, `SELECT `+listingColumns+` FROM listings WHERE status != $1`, StatusPurged)
	if err != nil {
		return nil, fmt.Errorf("list non-purged listings: %w", err)
	}
	defer rows.Close()

	var out []*Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// prefixColumns qualifies a comma-separated column list with a table alias,
// needed when listingColumns is reused in a join query.
func prefixColumns(alias, cols string) string {
	fields := strings.Split(strings.ReplaceAll(cols, "\n", " "), ",")
	qualified := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		qualified = append(qualified, alias+"."+f)
	}
	return strings.Join(qualified, ", ")
}
