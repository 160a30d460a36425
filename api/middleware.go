package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/warp/resale-ledger/ledger"
	"golang.org/x/time/rate"
)

// UserHeader carries the authenticated user id from the upstream auth layer.
const UserHeader = "X-User-ID"

type ctxKey int

const userKey ctxKey = iota

// RequireUser rejects requests without a user id and stores it in the context.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(UserHeader))
		if id == "" {
			writeError(w, http.StatusUnauthorized, "missing "+UserHeader+" header", nil)
			return
		}
		ctx := context.WithValue(r.Context(), userKey, ledger.UserID(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFrom returns the user id set by RequireUser.
func UserFrom(ctx context.Context) ledger.UserID {
	id, _ := ctx.Value(userKey).(ledger.UserID)
	return id
}

// =============================================================================
// RATE LIMITING
// =============================================================================

// limiterIdleTTL is how long a user's bucket survives without requests.
const limiterIdleTTL = 10 * time.Minute

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per user. Buckets idle for longer than
// limiterIdleTTL are swept on access.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[ledger.UserID]*userLimiter
	rate      rate.Limit
	burst     int
	log       logrus.FieldLogger
	now       func() time.Time
	lastSweep time.Time
}

func NewRateLimiter(r rate.Limit, burst int, log logrus.FieldLogger) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters:  make(map[ledger.UserID]*userLimiter),
		rate:      r,
		burst:     burst,
		log:       log,
		now:       time.Now,
		lastSweep: time.Now(),
	}
}

func (rl *RateLimiter) limiter(user ledger.UserID) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= limiterIdleTTL {
		rl.sweep(now)
	}

	ul, ok := rl.limiters[user]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[user] = ul
	}
	ul.lastSeen = now
	return ul.limiter
}

// sweep drops idle buckets. Caller holds rl.mu.
func (rl *RateLimiter) sweep(now time.Time) {
	for user, ul := range rl.limiters {
		if now.Sub(ul.lastSeen) >= limiterIdleTTL {
			delete(rl.limiters, user)
		}
	}
	rl.lastSweep = now
}

// Handler must run after RequireUser.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		if !rl.limiter(user).Allow() {
			rl.log.WithFields(logrus.Fields{
				"user_id": user,
				"path":    r.URL.Path,
				"method":  r.Method,
			}).Warn("rate limit exceeded")
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// REQUEST LOGGING
// =============================================================================

// RequestLogger logs one line per request with status and latency.
func RequestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			entry := log.WithFields(logrus.Fields{
				"request_id":  middleware.GetReqID(r.Context()),
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      status,
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
				"remote_addr": r.RemoteAddr,
			})
			switch {
			case status >= 500:
				entry.Error("request failed")
			case status >= 400:
				entry.Warn("request rejected")
			default:
				entry.Info("request handled")
			}
		})
	}
}
