package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/forgo/rotativos/api/internal/model"
)

// RateLimiter bounds how often each member runs the rule pipeline through one
// endpoint. Every member has a bucket of Rate+Burst tokens that refills one
// token every Window/Rate. Submissions and dry runs use separate limiters, so
// a member previewing a request keeps the budget to submit it.
type RateLimiter struct {
	name     string
	rate     int
	window   time.Duration
	burst    int
	perToken time.Duration
	cleanup  time.Duration
	now      func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stop     chan struct{}
	stopOnce sync.Once
}

// bucket holds whole tokens; refilled is when the last token was credited.
type bucket struct {
	tokens   int
	refilled time.Time
}

// RateLimitConfig holds rate limiter configuration
type RateLimitConfig struct {
	Name    string        // endpoint label for logs (default "rules")
	Rate    int           // rule evaluations per window (default 30)
	Window  time.Duration // default 1 minute
	Burst   int           // tokens above Rate a quiet member may spend at once
	Cleanup time.Duration // sweep of full, idle buckets (default 5 minutes)
}

// NewRateLimiter creates a limiter and starts its bucket sweep
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Name == "" {
		cfg.Name = "rules"
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 30
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	cfg.Burst = max(cfg.Burst, 0)
	if cfg.Cleanup <= 0 {
		cfg.Cleanup = 5 * time.Minute
	}

	rl := &RateLimiter{
		name:     cfg.Name,
		rate:     cfg.Rate,
		window:   cfg.Window,
		burst:    cfg.Burst,
		perToken: max(cfg.Window/time.Duration(cfg.Rate), time.Nanosecond),
		cleanup:  cfg.Cleanup,
		now:      time.Now,
		buckets:  make(map[string]*bucket),
		stop:     make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Stop ends the bucket sweep. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.stop:
			return
		}
	}
}

// sweep drops buckets that have refilled completely; a new bucket starts full,
// so dropping them changes nothing for the member.
func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		rl.refill(b, now)
		if b.tokens == rl.capacity() {
			delete(rl.buckets, key)
		}
	}
}

func (rl *RateLimiter) capacity() int {
	return rl.rate + rl.burst
}

func (rl *RateLimiter) refill(b *bucket, now time.Time) {
	if b.tokens >= rl.capacity() {
		b.refilled = now
		return
	}
	if n := int(now.Sub(b.refilled) / rl.perToken); n > 0 {
		b.tokens = min(rl.capacity(), b.tokens+n)
		b.refilled = b.refilled.Add(time.Duration(n) * rl.perToken)
	}
}

// Allow takes a token for key. It returns whether the evaluation may run, the
// tokens left, and when the next token arrives.
func (rl *RateLimiter) Allow(key string) (allowed bool, remaining int, next time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.capacity(), refilled: now}
		rl.buckets[key] = b
	}
	rl.refill(b, now)

	if b.tokens == 0 {
		return false, 0, b.refilled.Add(rl.perToken)
	}
	b.tokens--
	return true, b.tokens, b.refilled.Add(rl.perToken)
}

// RateLimit limits the wrapped endpoint per actor. It must run after Actor;
// requests without an actor are keyed by remote address.
func RateLimit(limiter *RateLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := GetUserID(r.Context())
			if key == "" {
				key = r.RemoteAddr
			}

			allowed, remaining, nextToken := limiter.Allow(key)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.rate))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(nextToken.Unix(), 10))

			if !allowed {
				retryAfter := max(1, int(nextToken.Sub(limiter.now()).Round(time.Second)/time.Second))
				slog.Warn("rule evaluation rate limited",
					slog.String("limiter", limiter.name),
					slog.String("actor", key),
					slog.Int("retry_after", retryAfter),
				)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				model.NewRateLimitError(retryAfter).WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
