package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	apiContext "gatehouse/internal/api/context"
	"gatehouse/internal/platform/auth"
)

// RateLimiter is a fixed-window counter. Blunt abuse guard at the edge of
// the redemption, session and MFA endpoints; it is not part of the
// correctness model (the conditional writes are) and is best-effort
// per-instance.
type RateLimiter struct {
	store *sync.Map // map[string]*window
}

type window struct {
	count       int
	windowStart time.Time
	lastAccess  time.Time
	mu          sync.Mutex
}

var rateLimits = map[string]int{
	"redeem":  20,  // redemption attempts per minute per caller
	"session": 60,  // session exchanges per minute
	"mfa":     30,  // challenge attempts per minute per caller
}

func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{
		store: &sync.Map{},
	}

	// Start cleanup routine
	go rl.cleanupLoop()

	return rl
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		rl.store.Range(func(key, value interface{}) bool {
			win := value.(*window)
			win.mu.Lock()
			if now.Sub(win.lastAccess) > 10*time.Minute {
				rl.store.Delete(key)
			}
			win.mu.Unlock()
			return true
		})
	}
}

func (rl *RateLimiter) Allow(key string, limit int) bool {
	now := time.Now()

	val, _ := rl.store.LoadOrStore(key, &window{windowStart: now})
	win := val.(*window)
	win.mu.Lock()
	defer win.mu.Unlock()

	win.lastAccess = now

	// New minute, new window.
	if now.Sub(win.windowStart) >= time.Minute {
		win.windowStart = now
		win.count = 0
	}

	if win.count >= limit {
		return false
	}
	win.count++
	return true
}

// Global rate limiter instance
var GlobalRateLimiter = NewRateLimiter()

// RateLimit keys the window by caller identity when authenticated, by
// remote address otherwise.
func RateLimit(limitType string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var key string
			if claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims); ok {
				key = fmt.Sprintf("%s:%s", claims.UserID, limitType)
			} else {
				key = fmt.Sprintf("%s:%s", r.RemoteAddr, limitType)
			}

			limit, ok := rateLimits[limitType]
			if !ok {
				limit = 60
			}

			if !GlobalRateLimiter.Allow(key, limit) {
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next(w, r)
		}
	}
}
