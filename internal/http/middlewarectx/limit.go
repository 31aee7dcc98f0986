package middlewarectx

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/stack-checkout/internal/http/response"
	"github.com/magabrotheeeer/stack-checkout/internal/services/identity"
)

// RateLimiter ограничивает частоту запросов с одного адреса.
//
// Лимитер адреса, который не обращался дольше времени полного восстановления
// корзины, ничем не отличается от нового и удаляется при очередной очистке.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter создает ограничитель: every между запросами, burst подряд.
func NewRateLimiter(every time.Duration, burst int) *RateLimiter {
	idle := every * time.Duration(burst)
	if idle < time.Minute {
		idle = time.Minute
	}
	return &RateLimiter{
		limiters:  make(map[string]*limiterEntry),
		limit:     rate.Every(every),
		burst:     burst,
		idleTTL:   idle,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (l *RateLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idleTTL {
		l.sweep(now)
	}

	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// sweep удаляет лимитеры адресов, простаивающих дольше idleTTL. Вызывается под mu.
func (l *RateLimiter) sweep(now time.Time) {
	for key, e := range l.limiters {
		if now.Sub(e.lastSeen) >= l.idleTTL {
			delete(l.limiters, key)
		}
	}
	l.lastSweep = now
}

// RateLimitMiddleware отвечает 429 auth/too-many-requests при превышении лимита.
// Ключ: IP клиента, поэтому middleware.RealIP должен стоять раньше.
func RateLimitMiddleware(log *slog.Logger, limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			if !limiter.get(host).Allow() {
				log.Warn("too many requests", slog.String("remote_addr", r.RemoteAddr))
				response.Render(w, r, http.StatusTooManyRequests, response.ErrorWithCode(
					identity.Message(&identity.Error{Code: identity.CodeTooManyRequests}),
					identity.CodeTooManyRequests,
				))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
