//go:build integration

package prober

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/satring/gateway/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProbeListing(t *testing.T, db *store.DB, url string) *store.Listing {
	t.Helper()
	hash := "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"
	now := time.Now().UTC()
	l := &store.Listing{
		ID:              uuid.NewString(),
		Slug:            uuid.NewString(),
		Name:            "Probe Target",
		URL:             url,
		EffectiveDomain: "probe.example.com",
		PricingModel:    "free",
		Protocol:        "mcp",
		Status:          store.StatusUnverified,
		EditTokenHash:   &hash,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, store.NewListingRepository(db).Create(context.Background(), l))
	return l
}

func TestProbeOne_MarksLiveOnSuccess(t *testing.T) {
	db := store.SetupTestDB(t)
	defer store.CleanupTestDB(t, db)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repo := store.NewListingRepository(db)
	l := newProbeListing(t, db, server.URL)

	p := New(repo)
	require.NoError(t, p.ProbeOne(context.Background(), l))

	got, err := repo.GetBySlug(context.Background(), l.Slug)
	require.NoError(t, err)
	assert.Equal(t, store.StatusLive, got.Status)
	assert.Nil(t, got.DeadSince)
}

func TestProbeOne_FallsBackToGetOn405(t *testing.T) {
	db := store.SetupTestDB(t)
	defer store.CleanupTestDB(t, db)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repo := store.NewListingRepository(db)
	l := newProbeListing(t, db, server.URL)

	p := New(repo)
	require.NoError(t, p.ProbeOne(context.Background(), l))

	got, err := repo.GetBySlug(context.Background(), l.Slug)
	require.NoError(t, err)
	assert.Equal(t, store.StatusLive, got.Status)
}

func TestProbeOne_MarksDeadAndStampsDeadSinceOnFailure(t *testing.T) {
	db := store.SetupTestDB(t)
	defer store.CleanupTestDB(t, db)

	repo := store.NewListingRepository(db)
	l := newProbeListing(t, db, "http://127.0.0.1:1/unreachable")

	p := New(repo)
	require.NoError(t, p.ProbeOne(context.Background(), l))

	got, err := repo.GetBySlug(context.Background(), l.Slug)
	require.NoError(t, err)
	assert.Equal(t, store.StatusDead, got.Status)
	require.NotNil(t, got.DeadSince)
}

func TestProbeOne_PreservesOriginalDeadSinceAcrossRepeatedFailures(t *testing.T) {
	db := store.SetupTestDB(t)
	defer store.CleanupTestDB(t, db)

	repo := store.NewListingRepository(db)
	l := newProbeListing(t, db, "http://127.0.0.1:1/unreachable")

	p := New(repo)
	require.NoError(t, p.ProbeOne(context.Background(), l))

	first, err := repo.GetBySlug(context.Background(), l.Slug)
	require.NoError(t, err)
	require.NotNil(t, first.DeadSince)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, p.ProbeOne(context.Background(), first))

	second, err := repo.GetBySlug(context.Background(), l.Slug)
	require.NoError(t, err)
	require.NotNil(t, second.DeadSince)
	assert.Equal(t, first.DeadSince.Unix(), second.DeadSince.Unix())
}

func TestSweep_ProbesEveryNonPurgedListing(t *testing.T) {
	db := store.SetupTestDB(t)
	defer store.CleanupTestDB(t, db)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repo := store.NewListingRepository(db)
	newProbeListing(t, db, server.URL)
	newProbeListing(t, db, server.URL)

	p := New(repo)
	require.NoError(t, p.Sweep(context.Background()))

	all, err := repo.ListAllNonPurged(context.Background())
	require.NoError(t, err)
	for _, l := range all {
		assert.Equal(t, store.StatusLive, l.Status)
	}
}
