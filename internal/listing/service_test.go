//go:build integration

package listing

import (
	"context"
	"testing"

	"github.com/satring/gateway/internal/recovery"
	"github.com/satring/gateway/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, db *store.DB) *Service {
	t.Helper()
	listings := store.NewListingRepository(db)
	categories := store.NewCategoryRepository(db)
	ratings := store.NewRatingRepository(db)
	recoveryProtocol := recovery.New(listings)
	return NewService(listings, categories, ratings, recoveryProtocol, nil)
}

func TestService_CreateMintsFreshEditToken(t *testing.T) {
	db := store.SetupTestDB(t)
	defer store.CleanupTestDB(t, db)
	svc := newTestService(t, db)

	l, token, err := svc.Create(context.Background(), CreateListingInput{
		Name: "Weather MCP", URL: "https://weather.example.com/mcp", PricingModel: "free", Protocol: "mcp",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, store.StatusUnverified, l.Status)
}

func TestService_CreateRejectsDuplicateURL(t *testing.T) {
	db := store.SetupTestDB(t)
	defer store.CleanupTestDB(t, db)
	svc := newTestService(t, db)

	in := CreateListingInput{Name: "Dup", URL: "https://dup.example.com/mcp", PricingModel: "free", Protocol: "mcp"}
	_, _, err := svc.Create(context.Background(), in)
	require.NoError(t, err)

	_, _, err = svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, ErrBadInput)
}

func TestService_CreateReusesTokenForSameDomainSibling(t *testing.T) {
	db := store.SetupTestDB(t)
	defer store.CleanupTestDB(t, db)
	svc := newTestService(t, db)

	first, token, err := svc.Create(context.Background(), CreateListingInput{
		Name: "Sibling One", URL: "https://shared.example.com/one", PricingModel: "free", Protocol: "mcp",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	second, secondToken, err := svc.Create(context.Background(), CreateListingInput{
		Name: "Sibling Two", URL: "https://shared.example.com/two", PricingModel: "free", Protocol: "mcp",
		ExistingEditToken: token,
	})
	require.NoError(t, err)
	assert.Empty(t, secondToken, "reused-token creation must not hand back a new plaintext")

	require.NoError(t, svc.listings.Purge(context.Background(), first.ID))
	edited, err := svc.Edit(context.Background(), second.Slug, token, EditInput{Name: "Sibling Two Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Sibling Two Renamed", edited.Name)
}

func TestService_CreateOverPurgedURLReusesID(t *testing.T) {
	db := store.SetupTestDB(t)
	defer store.CleanupTestDB(t, db)
	svc := newTestService(t, db)

	l, token, err := svc.Create(context.Background(), CreateListingInput{
		Name: "Will Purge", URL: "https://willpurge.example.com/mcp", PricingModel: "free", Protocol: "mcp",
	})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), l.Slug, token))

	recreated, _, err := svc.Create(context.Background(), CreateListingInput{
		Name: "Will Purge Again", URL: "https://willpurge.example.com/mcp", PricingModel: "free", Protocol: "mcp",
	})
	require.NoError(t, err)
	assert.Equal(t, l.ID, recreated.ID)
}

func TestService_EditRejectsWrongToken(t *testing.T) {
	db := store.SetupTestDB(t)
	defer store.CleanupTestDB(t, db)
	svc := newTestService(t, db)

	l, _, err := svc.Create(context.Background(), CreateListingInput{
		Name: "Protected", URL: "https://protected.example.com/mcp", PricingModel: "free", Protocol: "mcp",
	})
	require.NoError(t, err)

	_, err = svc.Edit(context.Background(), l.Slug, "wrong-token", EditInput{Name: "Hijacked"})
	assert.ErrorIs(t, err, ErrInvalidEditToken)
}

func TestService_DeletePurgesListing(t *testing.T) {
	db := store.SetupTestDB(t)
	defer store.CleanupTestDB(t, db)
	svc := newTestService(t, db)

	l, token, err := svc.Create(context.Background(), CreateListingInput{
		Name: "Deletable", URL: "https://deletable.example.com/mcp", PricingModel: "free", Protocol: "mcp",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), l.Slug, token))

	_, err = svc.Get(context.Background(), l.Slug)
	assert.ErrorIs(t, err, ErrListingNotFound)
}

func TestService_CreateRatingAndReputationReflectsIt(t *testing.T) {
	db := store.SetupTestDB(t)
	defer store.CleanupTestDB(t, db)
	svc := newTestService(t, db)

	l, _, err := svc.Create(context.Background(), CreateListingInput{
		Name: "Rateable", URL: "https://rateable.example.com/mcp", PricingModel: "free", Protocol: "mcp",
	})
	require.NoError(t, err)

	_, err = svc.CreateRating(context.Background(), l.Slug, CreateRatingInput{ReviewerName: "alice", Score: 5, Comment: "great"})
	require.NoError(t, err)

	rep, err := svc.Reputation(context.Background(), l.Slug)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.RatingCount)
	assert.InDelta(t, 5.0, rep.AvgRating, 0.001)
}

func TestService_AnalyticsCountsStatuses(t *testing.T) {
	db := store.SetupTestDB(t)
	defer store.CleanupTestDB(t, db)
	svc := newTestService(t, db)

	_, _, err := svc.Create(context.Background(), CreateListingInput{
		Name: "Analytics One", URL: "https://analyticsone.example.com/mcp", PricingModel: "free", Protocol: "mcp",
	})
	require.NoError(t, err)

	result, err := svc.Analytics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalListings)
}

func TestService_BulkExportListsAllNonPurged(t *testing.T) {
	db := store.SetupTestDB(t)
	defer store.CleanupTestDB(t, db)
	svc := newTestService(t, db)

	_, _, err := svc.Create(context.Background(), CreateListingInput{
		Name: "Exportable", URL: "https://exportable.example.com/mcp", PricingModel: "free", Protocol: "mcp",
	})
	require.NoError(t, err)

	all, err := svc.BulkExport(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
