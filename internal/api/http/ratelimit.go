package http

import (
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"github.com/spec-kit/task-service/internal/config"
	apperrors "github.com/spec-kit/task-service/pkg/util"
)

type clientLimiter struct {
	general  *rate.Limiter
	auth     *rate.Limiter
	lastSeen time.Time
}

// RateLimiter caps per-client request rates with separate, tighter
// buckets for the credential endpoints.
type RateLimiter struct {
	generalRPM int
	authRPM    int
	mu         sync.Mutex
	clients    map[string]*clientLimiter
}

// NewRateLimiter builds a limiter from configuration.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	generalRPM := cfg.GeneralRPM
	if generalRPM <= 0 {
		generalRPM = 100
	}
	authRPM := cfg.AuthRPM
	if authRPM <= 0 {
		authRPM = 10
	}
	return &RateLimiter{
		generalRPM: generalRPM,
		authRPM:    authRPM,
		clients:    map[string]*clientLimiter{},
	}
}

// Handle enforces the rate limit for one request.
func (m *RateLimiter) Handle(c *fiber.Ctx) error {
	limiter := m.getLimiter(c.IP())

	target := limiter.general
	if strings.HasPrefix(strings.ToLower(c.Path()), "/auth") {
		target = limiter.auth
	}

	if !target.Allow() {
		c.Set(fiber.HeaderRetryAfter, "60")
		return apperrors.NewDomainError("RATE_LIMITED", "too many requests", fiber.StatusTooManyRequests, nil)
	}
	return c.Next()
}

func (m *RateLimiter) getLimiter(clientIP string) *clientLimiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limiter, exists := m.clients[clientIP]; exists {
		limiter.lastSeen = time.Now()
		m.gcLocked()
		return limiter
	}

	general := rate.NewLimiter(rate.Every(time.Minute/time.Duration(m.generalRPM)), m.generalRPM)
	auth := rate.NewLimiter(rate.Every(time.Minute/time.Duration(m.authRPM)), m.authRPM)
	created := &clientLimiter{general: general, auth: auth, lastSeen: time.Now()}
	m.clients[clientIP] = created
	m.gcLocked()

	return created
}

func (m *RateLimiter) gcLocked() {
	if len(m.clients) < 1000 {
		return
	}

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, limiter := range m.clients {
		if limiter.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
		}
	}
}
