package signal

import (
	"sync"

	"github.com/dkeye/huddle/internal/domain"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// UserRateLimiter throttles high-frequency events per user. Only the most
// recently active users keep a bucket; an evicted user starts full again.
type UserRateLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache[domain.UserID, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

// NewUserRateLimiter returns nil (allow everything) when perSecond <= 0.
func NewUserRateLimiter(perSecond float64, burst, size int) (*UserRateLimiter, error) {
	if perSecond <= 0 {
		return nil, nil
	}
	if burst <= 0 {
		burst = 1
	}
	cache, err := lru.New[domain.UserID, *rate.Limiter](size)
	if err != nil {
		return nil, err
	}
	return &UserRateLimiter{
		limiters: cache,
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}, nil
}

func (rl *UserRateLimiter) Allow(uid domain.UserID) bool {
	if rl == nil {
		return true
	}
	rl.mu.Lock()
	lim, ok := rl.limiters.Get(uid)
	if !ok {
		lim = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters.Add(uid, lim)
	}
	rl.mu.Unlock()
	return lim.Allow()
}
