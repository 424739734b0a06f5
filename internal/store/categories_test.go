//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCategory(t *testing.T, db *DB, slug, name string) {
	t.Helper()
	_, err := db.pool.Exec(context.Background(),
		`INSERT INTO categories (id, slug, name) VALUES ($1, $2, $3)`,
		uuid.NewString(), slug, name)
	require.NoError(t, err)
}

func TestCategoryRepository_ListReturnsAlphabetical(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	seedCategory(t, db, "search", "Search")
	seedCategory(t, db, "finance", "Finance")

	repo := NewCategoryRepository(db)
	cats, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Finance", cats[0].Name)
	assert.Equal(t, "Search", cats[1].Name)
}

func TestCategoryRepository_SetListingCategoriesReplacesAssociations(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	seedCategory(t, db, "search", "Search")
	seedCategory(t, db, "finance", "Finance")

	listingRepo := NewListingRepository(db)
	l := newTestListing("categorized", "https://cat.example.com/mcp", "cat.example.com")
	require.NoError(t, listingRepo.Create(context.Background(), l))

	catRepo := NewCategoryRepository(db)
	require.NoError(t, catRepo.SetListingCategories(context.Background(), l.ID, []string{"search", "finance"}))

	listed, _, err := listingRepo.List(context.Background(), "search", 1, 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, l.ID, listed[0].ID)

	require.NoError(t, catRepo.SetListingCategories(context.Background(), l.ID, []string{"finance"}))

	listed, _, err = listingRepo.List(context.Background(), "search", 1, 10)
	require.NoError(t, err)
	assert.Len(t, listed, 0)

	listed, _, err = listingRepo.List(context.Background(), "finance", 1, 10)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestCategoryRepository_SetListingCategoriesIgnoresUnknownSlugs(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	listingRepo := NewListingRepository(db)
	l := newTestListing("no-such-cat", "https://nocat.example.com/mcp", "nocat.example.com")
	require.NoError(t, listingRepo.Create(context.Background(), l))

	catRepo := NewCategoryRepository(db)
	err := catRepo.SetListingCategories(context.Background(), l.ID, []string{"does-not-exist"})
	assert.NoError(t, err)
}
