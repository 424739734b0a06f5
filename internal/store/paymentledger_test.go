//go:build integration

package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentLedger_AdmitFirstTimeSucceeds(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	ledger := NewPaymentLedger(db)

	admitted, err := ledger.Admit(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.True(t, admitted)
}

func TestPaymentLedger_AdmitReplayFails(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	ledger := NewPaymentLedger(db)

	first, err := ledger.Admit(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := ledger.Admit(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.False(t, second)
}

// TestPaymentLedger_ConcurrentAdmitExactlyOneWinner is the concurrency
// invariant from the spec: for all sequences of admit(H) with the same H,
// exactly one returns true regardless of parallelism.
func TestPaymentLedger_ConcurrentAdmitExactlyOneWinner(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	ledger := NewPaymentLedger(db)

	const attempts = 25
	var wg sync.WaitGroup
	results := make([]bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			admitted, err := ledger.Admit(context.Background(), "racey-hash")
			require.NoError(t, err)
			results[idx] = admitted
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, r := range results {
		if r {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one concurrent admit should win")
}

func TestPaymentLedger_DistinctHashesAllAdmitted(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	ledger := NewPaymentLedger(db)

	for _, hash := range []string{"hash-a", "hash-b", "hash-c"} {
		admitted, err := ledger.Admit(context.Background(), hash)
		require.NoError(t, err)
		assert.True(t, admitted)
	}
}
