// Package listing implements the directory's read/write operations on top
// of the core's edit-token and domain-recovery primitives.
package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/satring/gateway/internal/domainutil"
	"github.com/satring/gateway/internal/edittoken"
	"github.com/satring/gateway/internal/queue"
	"github.com/satring/gateway/internal/recovery"
	"github.com/satring/gateway/internal/store"
	"github.com/satring/gateway/pkg/logger"

	pkgqueue "github.com/satring/gateway/pkg/queue"
	"go.uber.org/zap"
)

const probeStream = "listing-probes"

var (
	ErrListingNotFound  = errors.New("listing not found")
	ErrInvalidEditToken = errors.New("invalid edit token")
)

// CreateListingInput is the validated payload for a new listing submission.
type CreateListingInput struct {
	Name              string
	URL               string
	Description       string
	OwnerName         string
	OwnerContact      string
	LogoURL           string
	PricingModel      string
	Protocol          string
	Categories        []string
	ExistingEditToken string
}

// Service is the listing domain service: it orchestrates the store,
// edit-token lifecycle, domain recovery, and the probe queue.
type Service struct {
	listings   *store.ListingRepository
	categories *store.CategoryRepository
	ratings    *store.RatingRepository
	recovery   *recovery.Protocol
	queue      *pkgqueue.StreamQueue
}

func NewService(listings *store.ListingRepository, categories *store.CategoryRepository, ratings *store.RatingRepository, recoveryProtocol *recovery.Protocol, sq *pkgqueue.StreamQueue) *Service {
	return &Service{
		listings:   listings,
		categories: categories,
		ratings:    ratings,
		recovery:   recoveryProtocol,
		queue:      sq,
	}
}

const defaultPageSize = 20

func pageOrDefault(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = defaultPageSize
	}
	return page, pageSize
}

// List returns a page of listings, optionally filtered by category.
func (s *Service) List(ctx context.Context, categorySlug string, page, pageSize int) ([]*store.Listing, int, error) {
	page, pageSize = pageOrDefault(page, pageSize)
	return s.listings.List(ctx, categorySlug, page, pageSize)
}

// Search performs a substring search across listing name and description.
func (s *Service) Search(ctx context.Context, q string, page, pageSize int) ([]*store.Listing, int, error) {
	page, pageSize = pageOrDefault(page, pageSize)
	return s.listings.Search(ctx, q, page, pageSize)
}

// Get returns a single non-purged listing by slug.
func (s *Service) Get(ctx context.Context, slug string) (*store.Listing, error) {
	l, err := s.listings.GetBySlug(ctx, slug)
	if errors.Is(err, store.ErrListingNotFound) {
		return nil, ErrListingNotFound
	}
	return l, err
}

// ListRatings returns every rating for the listing identified by slug.
func (s *Service) ListRatings(ctx context.Context, slug string) ([]*store.Rating, error) {
	l, err := s.Get(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.ratings.ListByListing(ctx, l.ID)
}

// BulkExport returns every non-purged listing, for the bulk-export
// operation.
func (s *Service) BulkExport(ctx context.Context) ([]*store.Listing, error) {
	return s.listings.ListAllNonPurged(ctx)
}

// Create registers a new listing. If the submitter presents
// ExistingEditToken and it verifies against any same-domain listing's
// stored hash, the new listing reuses that hash instead of minting a fresh
// one, and no plaintext token is returned (the submitter already holds it).
// If a purged listing already occupies the exact URL, it is overwritten in
// place to preserve its id.
func (s *Service) Create(ctx context.Context, in CreateListingInput) (*store.Listing, string, error) {
	if err := validateCreateInput(in); err != nil {
		return nil, "", err
	}

	domain, err := domainutil.EffectiveDomain(in.URL)
	if err != nil {
		return nil, "", fmt.Errorf("%w: url has no hostname", ErrBadInput)
	}

	editTokenHash, tokenPlaintext, err := s.resolveEditToken(ctx, domain, in.ExistingEditToken)
	if err != nil {
		return nil, "", err
	}

	listing := &store.Listing{
		ID:              uuid.NewString(),
		Slug:            slugify(in.Name, in.URL),
		Name:            in.Name,
		URL:             in.URL,
		EffectiveDomain: domain,
		Description:     in.Description,
		OwnerName:       in.OwnerName,
		OwnerContact:    in.OwnerContact,
		LogoURL:         in.LogoURL,
		PricingModel:    in.PricingModel,
		Protocol:        in.Protocol,
		Status:          store.StatusUnverified,
		EditTokenHash:   &editTokenHash,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}

	existing, err := s.listings.GetByURLIncludingPurged(ctx, in.URL)
	switch {
	case err == nil && existing.Status == store.StatusPurged:
		listing.ID = existing.ID
		if err := s.listings.ReplacePurged(ctx, existing.ID, listing); err != nil {
			return nil, "", mapStoreErr(err)
		}
	case err == nil:
		return nil, "", fmt.Errorf("%w: a listing for this url already exists", ErrBadInput)
	case errors.Is(err, store.ErrListingNotFound):
		if err := s.listings.Create(ctx, listing); err != nil {
			return nil, "", mapStoreErr(err)
		}
	default:
		return nil, "", err
	}

	if len(in.Categories) > 0 {
		if err := s.categories.SetListingCategories(ctx, listing.ID, in.Categories); err != nil {
			logger.Warn("failed to associate categories", zap.Error(err), zap.String("listing_id", listing.ID))
		}
	}

	s.publishProbe(ctx, listing)

	return listing, tokenPlaintext, nil
}

// resolveEditToken mints a fresh token unless existingToken verifies
// against a same-domain listing's stored hash, in which case that hash is
// reused and no new plaintext is handed back.
func (s *Service) resolveEditToken(ctx context.Context, domain, existingToken string) (hash, plaintext string, err error) {
	if existingToken != "" {
		siblings, err := s.listings.FindByEffectiveDomain(ctx, domain)
		if err != nil {
			return "", "", fmt.Errorf("look up same-domain listings: %w", err)
		}
		for _, sibling := range siblings {
			if sibling.EditTokenHash != nil && edittoken.Verify(existingToken, *sibling.EditTokenHash) {
				return *sibling.EditTokenHash, "", nil
			}
		}
	}

	plaintext, err = edittoken.Mint()
	if err != nil {
		return "", "", fmt.Errorf("mint edit token: %w", err)
	}
	return edittoken.Hash(plaintext), plaintext, nil
}

// slugify lowercases name and joins its runs of ASCII letters and digits
// with single hyphens; when that leaves nothing, the URL's hostname is used.
func slugify(name, rawURL string) string {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	if len(words) == 0 && rawURL != "" {
		if host, err := domainutil.EffectiveDomain(rawURL); err == nil {
			return slugify(host, "")
		}
	}
	return strings.Join(words, "-")
}

func validateCreateInput(in CreateListingInput) error {
	if err := validateLength("name", in.Name, MaxName); err != nil {
		return err
	}
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrBadInput)
	}
	if err := validateLength("url", in.URL, MaxURL); err != nil {
		return err
	}
	if err := validateURLScheme("url", in.URL); err != nil {
		return err
	}
	if err := validateLength("description", in.Description, MaxDescription); err != nil {
		return err
	}
	if err := validateLength("owner_name", in.OwnerName, MaxOwnerName); err != nil {
		return err
	}
	if err := validateLength("owner_contact", in.OwnerContact, MaxOwnerContact); err != nil {
		return err
	}
	if err := validateLength("logo_url", in.LogoURL, MaxLogoURL); err != nil {
		return err
	}
	if err := validateURLScheme("logo_url", in.LogoURL); err != nil {
		return err
	}
	return nil
}

// EditInput is the validated payload for an edit-token-authorized update.
type EditInput struct {
	Name         string
	Description  string
	OwnerName    string
	OwnerContact string
	LogoURL      string
}

// Edit verifies editToken against the listing's stored hash and, if it
// matches, applies in.
func (s *Service) Edit(ctx context.Context, slug, editToken string, in EditInput) (*store.Listing, error) {
	l, err := s.authorizeEdit(ctx, slug, editToken)
	if err != nil {
		return nil, err
	}

	if err := validateLength("name", in.Name, MaxName); err != nil {
		return nil, err
	}
	if err := validateLength("description", in.Description, MaxDescription); err != nil {
		return nil, err
	}
	if err := validateLength("owner_name", in.OwnerName, MaxOwnerName); err != nil {
		return nil, err
	}
	if err := validateLength("owner_contact", in.OwnerContact, MaxOwnerContact); err != nil {
		return nil, err
	}
	if err := validateLength("logo_url", in.LogoURL, MaxLogoURL); err != nil {
		return nil, err
	}
	if err := validateURLScheme("logo_url", in.LogoURL); err != nil {
		return nil, err
	}

	if err := s.listings.Update(ctx, l.ID, in.Name, in.Description, in.OwnerName, in.OwnerContact, in.LogoURL); err != nil {
		return nil, mapStoreErr(err)
	}

	s.publishProbe(ctx, l)

	return s.listings.GetBySlug(ctx, slug)
}

// Delete verifies editToken and, if it matches, purges the listing.
func (s *Service) Delete(ctx context.Context, slug, editToken string) error {
	l, err := s.authorizeEdit(ctx, slug, editToken)
	if err != nil {
		return err
	}
	return mapStoreErr(s.listings.Purge(ctx, l.ID))
}

func (s *Service) authorizeEdit(ctx context.Context, slug, editToken string) (*store.Listing, error) {
	l, err := s.Get(ctx, slug)
	if err != nil {
		return nil, err
	}
	if l.EditTokenHash == nil || !edittoken.Verify(editToken, *l.EditTokenHash) {
		return nil, ErrInvalidEditToken
	}
	return l, nil
}

// IssueRecovery starts a domain-recovery challenge for slug.
func (s *Service) IssueRecovery(ctx context.Context, slug string) (recovery.IssueResult, error) {
	l, err := s.Get(ctx, slug)
	if err != nil {
		return recovery.IssueResult{}, err
	}
	return s.recovery.Issue(ctx, l)
}

// VerifyRecovery completes a domain-recovery challenge for slug.
func (s *Service) VerifyRecovery(ctx context.Context, slug string) (recovery.VerifyResult, error) {
	l, err := s.Get(ctx, slug)
	if err != nil {
		return recovery.VerifyResult{}, err
	}
	return s.recovery.Verify(ctx, l)
}

// CreateRatingInput is the validated payload for a new rating.
type CreateRatingInput struct {
	ReviewerName string
	Score        int
	Comment      string
}

// CreateRating adds a rating to the listing identified by slug.
func (s *Service) CreateRating(ctx context.Context, slug string, in CreateRatingInput) (*store.Rating, error) {
	if in.Score < 1 || in.Score > 5 {
		return nil, fmt.Errorf("%w: score must be between 1 and 5", ErrBadInput)
	}
	if err := validateLength("reviewer_name", in.ReviewerName, MaxReviewerName); err != nil {
		return nil, err
	}
	if err := validateLength("comment", in.Comment, MaxComment); err != nil {
		return nil, err
	}

	l, err := s.Get(ctx, slug)
	if err != nil {
		return nil, err
	}

	rating := &store.Rating{
		ID:           uuid.NewString(),
		ListingID:    l.ID,
		ReviewerName: in.ReviewerName,
		Score:        in.Score,
		Comment:      in.Comment,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.ratings.Create(ctx, rating); err != nil {
		if errors.Is(err, store.ErrRatingListingNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("create rating: %w", err)
	}

	return rating, nil
}

// AnalyticsResult summarizes the directory for the analytics operation.
type AnalyticsResult struct {
	TotalListings int
	LiveListings  int
	DeadListings  int
	AvgRating     float64
}

// Analytics aggregates basic directory-wide statistics.
func (s *Service) Analytics(ctx context.Context) (AnalyticsResult, error) {
	all, err := s.listings.ListAllNonPurged(ctx)
	if err != nil {
		return AnalyticsResult{}, err
	}

	var result AnalyticsResult
	var ratingSum float64
	var ratedCount int
	for _, l := range all {
		result.TotalListings++
		switch l.Status {
		case store.StatusLive:
			result.LiveListings++
		case store.StatusDead:
			result.DeadListings++
		}
		if l.RatingCount > 0 {
			ratingSum += l.AvgRating
			ratedCount++
		}
	}
	if ratedCount > 0 {
		result.AvgRating = ratingSum / float64(ratedCount)
	}

	return result, nil
}

// ReputationResult is a single listing's reputation summary.
type ReputationResult struct {
	Slug        string
	AvgRating   float64
	RatingCount int
	Verified    bool
}

// Reputation summarizes one listing's standing for the reputation
// operation.
func (s *Service) Reputation(ctx context.Context, slug string) (ReputationResult, error) {
	l, err := s.Get(ctx, slug)
	if err != nil {
		return ReputationResult{}, err
	}
	return ReputationResult{
		Slug:        l.Slug,
		AvgRating:   l.AvgRating,
		RatingCount: l.RatingCount,
		Verified:    l.DomainVerified,
	}, nil
}

func (s *Service) publishProbe(ctx context.Context, l *store.Listing) {
	if s.queue == nil {
		return
	}
	msg := queue.ProbeListingMessage{ListingID: l.ID, URL: l.URL}
	data, err := msg.ToJSON()
	if err != nil {
		logger.Warn("failed to encode probe message", zap.Error(err))
		return
	}
	if _, err := s.queue.Publish(ctx, probeStream, data); err != nil {
		logger.Warn("failed to publish probe message", zap.Error(err), zap.String("listing_id", l.ID))
	}
}

func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrListingNotFound) {
		return ErrListingNotFound
	}
	if errors.Is(err, store.ErrSlugExists) {
		return fmt.Errorf("%w: slug already exists", ErrBadInput)
	}
	return err
}
