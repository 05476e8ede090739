package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindowLimiter(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	limiter := NewSlidingWindowLimiter(rdb, "cancel", 3, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		allowed, current, _, err := limiter.Allow(ctx, "ip:10.0.0.1")
		require.NoError(t, err)
		require.True(t, allowed, "hit %d should pass", i)
		require.Equal(t, int64(i), current)
	}

	allowed, _, retryAfter, err := limiter.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	require.False(t, allowed)
	require.Greater(t, retryAfter, time.Duration(0))

	// a different caller has its own window
	allowed, _, _, err = limiter.Allow(ctx, "ip:10.0.0.2")
	require.NoError(t, err)
	require.True(t, allowed)

	// limiter keys live under the application namespace
	require.True(t, mr.Exists("theaterbook:v1:rl:cancel:ip:10.0.0.1"))
}
