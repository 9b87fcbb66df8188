package middleware

import (
	"sync"

	"execoj/pkg/errors"
	"execoj/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig bounds request admission before it reaches handlers.
// A zero GlobalRPS or ClientRPS disables that tier.
type RateLimitConfig struct {
	GlobalRPS   float64 `yaml:"globalRPS"`
	GlobalBurst int     `yaml:"globalBurst"`
	ClientRPS   float64 `yaml:"clientRPS"`
	ClientBurst int     `yaml:"clientBurst"`

	// OnReject is invoked for every rejected request.
	OnReject func(c *gin.Context) `yaml:"-"`
}

// RateLimiter holds a global token bucket plus one bucket per client ip.
type RateLimiter struct {
	cfg     RateLimitConfig
	global  *rate.Limiter
	clients sync.Map
}

// NewRateLimiter creates a limiter from config.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	l := &RateLimiter{cfg: cfg}
	if cfg.GlobalRPS > 0 {
		burst := cfg.GlobalBurst
		if burst <= 0 {
			burst = int(cfg.GlobalRPS) * 2
		}
		if burst <= 0 {
			burst = 1
		}
		l.global = rate.NewLimiter(rate.Limit(cfg.GlobalRPS), burst)
	}
	return l
}

// Allow reports whether one more request from client may proceed.
func (l *RateLimiter) Allow(client string) bool {
	if l.global != nil && !l.global.Allow() {
		return false
	}
	if l.cfg.ClientRPS <= 0 {
		return true
	}
	return l.clientLimiter(client).Allow()
}

func (l *RateLimiter) clientLimiter(client string) *rate.Limiter {
	if v, ok := l.clients.Load(client); ok {
		return v.(*rate.Limiter)
	}
	burst := l.cfg.ClientBurst
	if burst <= 0 {
		burst = 1
	}
	v, _ := l.clients.LoadOrStore(client, rate.NewLimiter(rate.Limit(l.cfg.ClientRPS), burst))
	return v.(*rate.Limiter)
}

// Middleware rejects requests over the limit with TooManyRequests.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		if l.cfg.OnReject != nil {
			l.cfg.OnReject(c)
		}
		response.AbortWithError(c, errors.New(errors.TooManyRequests))
	}
}
