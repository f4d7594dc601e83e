package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	extratelimit "github.com/vnmchuo/ratelimiter"
)

// Limiter is a thin wrapper around github.com/vnmchuo/ratelimiter
type Limiter struct {
	store extratelimit.Limiter
}

// NewLimiter allows requestsPerMinute requests per client in a sliding minute.
func NewLimiter(rdb *redis.Client, requestsPerMinute int64) *Limiter {
	store := extratelimit.NewRedisStore(rdb,
		extratelimit.WithLimit(int(requestsPerMinute)),
		extratelimit.WithWindow(time.Minute),
	)
	return &Limiter{store: store}
}

func NewTestLimiter(store extratelimit.Limiter) *Limiter {
	return &Limiter{store: store}
}

func (l *Limiter) Allow(ctx context.Context, clientID string) (bool, error) {
	res, err := l.store.Allow(ctx, key(clientID))
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

func key(clientID string) string {
	return fmt.Sprintf("ratelimit:insights:%s", clientID)
}
