package echoapi

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/trezcool/fieldpro/core"
)

// roleMiddleware only lets users with one of roles through.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if core.StringIn(claims.Role, roles...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// bodyLimit formats n for middleware.BodyLimit, which parses units back with gommon/bytes.
func bodyLimit(n int64) string {
	return strconv.FormatInt(n, 10) + "B"
}

const headerRetryAfter = "Retry-After"

const (
	maxLimitedClients = 10000
	clientIdleTTL     = 10 * time.Minute
)

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter throttles requests per client IP.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	rate    rate.Limit
	burst   int
	now     func() time.Time
}

func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	if burst < 1 {
		burst = int(math.Ceil(perSecond))
	}
	return &rateLimiter{
		clients: make(map[string]*client),
		rate:    rate.Limit(perSecond),
		burst:   burst,
		now:     time.Now,
	}
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c, ok := rl.clients[key]
	if !ok {
		if len(rl.clients) >= maxLimitedClients {
			rl.evict(now)
		}
		c = &client{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// evict drops the clients idle for longer than clientIdleTTL. mu must be held.
func (rl *rateLimiter) evict(now time.Time) {
	for key, c := range rl.clients {
		if now.Sub(c.lastSeen) > clientIdleTTL {
			delete(rl.clients, key)
		}
	}
}

func (rl *rateLimiter) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if rl.allow(ctx.RealIP()) {
				return next(ctx)
			}
			retry := time.Duration(float64(time.Second) / float64(rl.rate))
			ctx.Response().Header().Set(headerRetryAfter, strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			return errTooManyRequests
		}
	}
}
