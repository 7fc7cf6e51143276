package common

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// The rate limiter keeps one token bucket per key (a discord user id),
// all of them configured with the same restriction
type RateLimiter struct {
	restriction Restriction
	mutex       sync.Mutex
	users       map[string]*userLimiter
}

func NewRateLimiter(restriction Restriction) *RateLimiter {
	return &RateLimiter{
		restriction: restriction,
		users:       map[string]*userLimiter{},
	}
}

// Decide if a request for this key is allowed right now.
// Requests that are not allowed are rejected, never delayed
func (rl *RateLimiter) Allowed(key string) bool {

	if !rl.restriction.Enabled() {
		return true
	}

	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	user, ok := rl.users[key]
	if !ok {
		user = &userLimiter{limiter: rate.NewLimiter(rl.restriction.Limit(), rl.restriction.Requests)}
		rl.users[key] = user
	}
	user.lastAccess = time.Now()

	if !user.limiter.Allow() {
		log.Warn().Str("key", key).Msg("Rejecting request because restrictions do not allow it")
		return false
	}
	return true
}

// Forget the keys that have not been seen for longer than the restriction
// duration, since their buckets are full again anyway
func (rl *RateLimiter) Prune() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	pruned := 0
	for key, user := range rl.users {
		if time.Since(user.lastAccess) > rl.restriction.Duration {
			delete(rl.users, key)
			pruned++
		}
	}
	return pruned
}

func (rl *RateLimiter) Len() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return len(rl.users)
}
