// Package ratelimit throttles API traffic per company with a redis token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/procura/internal/apperror"
	"github.com/smallbiznis/procura/internal/config"
	obscontext "github.com/smallbiznis/procura/internal/observability/context"
	obsmetrics "github.com/smallbiznis/procura/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyPrefix = "procura:ratelimit:%s"

var ErrRateLimited = apperror.RateLimited("rate_limited", "Too many requests, retry later")

type Params struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Redis   *redis.Client       `optional:"true"`
	Metrics *obsmetrics.Metrics `optional:"true"`
}

// Limiter is nil-safe: a nil Limiter admits everything.
type Limiter struct {
	bucket  *TokenBucket
	rate    float64
	burst   int
	log     *zap.Logger
	metrics *obsmetrics.Metrics
}

func NewLimiter(p Params) *Limiter {
	cfg := p.Config.RateLimit
	if !cfg.Enabled {
		return nil
	}
	if p.Redis == nil {
		p.Log.Warn("rate limiting enabled without redis, requests will not be throttled")
		return nil
	}
	return newLimiter(NewTokenBucket(p.Redis), cfg, p.Log, p.Metrics)
}

func newLimiter(bucket *TokenBucket, cfg config.RateLimitConfig, log *zap.Logger, m *obsmetrics.Metrics) *Limiter {
	if cfg.Rate <= 0 {
		cfg.Rate = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(math.Max(1, math.Ceil(cfg.Rate*2)))
	}
	return &Limiter{
		bucket:  bucket,
		rate:    cfg.Rate,
		burst:   cfg.Burst,
		log:     log.Named("ratelimit"),
		metrics: m,
	}
}

// Allow takes one token for scope. Redis failures admit the request.
func (l *Limiter) Allow(ctx context.Context, scope string) (Result, error) {
	if l == nil {
		return Result{Allowed: true}, nil
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyPrefix, scope), l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
		return Result{Allowed: true, Limit: l.burst}, nil
	}
	if !res.Allowed {
		l.metrics.RecordRateLimited(ctx, "company")
		return res, ErrRateLimited
	}
	return res, nil
}

// GinMiddleware must run after authentication so the company is known; anonymous traffic is keyed by client IP.
func GinMiddleware(l *Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		scope := "company:" + obscontext.CompanyIDFromContext(c.Request.Context())
		if scope == "company:" {
			scope = "ip:" + c.ClientIP()
		}

		res, err := l.Allow(c.Request.Context(), scope)
		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if err != nil {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Next()
	}
}
