//go:build integration

package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/satring/gateway/pkg/cache"

	"github.com/stretchr/testify/require"
)

func setupRatelimitRedis(t *testing.T) {
	t.Helper()
	err := cache.Init(cache.Config{Host: "localhost", Port: "6379", DB: 1})
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
}

func TestLimiter_AllowEnforcesWindow(t *testing.T) {
	setupRatelimitRedis(t)
	l := NewLimiter()

	limit := Limit{Name: fmt.Sprintf("test-%d", time.Now().UnixNano()), Max: 2, Window: time.Minute}
	ip := "198.51.100.7"

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(context.Background(), limit, ip)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := l.Allow(context.Background(), limit, ip)
	require.NoError(t, err)
	require.False(t, ok)
}
