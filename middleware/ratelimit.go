package middleware

import (
	"bytes"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-commerce/ratelimit"
	"github.com/saiset-co/sai-commerce/types"
	"github.com/saiset-co/sai-commerce/utils"
)

var (
	realIPHeader    = []byte("X-Real-IP")
	forwardedHeader = []byte("X-Forwarded-For")
	commaBytes      = []byte(",")
)

// RateLimit wraps request handlers with a fixed-window policy check keyed by
// client IP.
type RateLimit struct {
	limiter *ratelimit.Limiter
	logger  types.Logger
}

func NewRateLimit(limiter *ratelimit.Limiter, logger types.Logger) *RateLimit {
	return &RateLimit{
		limiter: limiter,
		logger:  logger,
	}
}

// Wrap guards next with the given policy. Denied requests get 429 with
// Retry-After and the policy's message; the handler never blocks on the
// shared store beyond the limiter's command timeout.
func (rl *RateLimit) Wrap(policy ratelimit.Policy, next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		clientIP := string(extractRealIP(ctx))

		decision := rl.limiter.Allow(ctx, policy, clientIP)
		if decision.Allowed {
			ctx.Response.Header.Set("X-RateLimit-Limit", strconv.FormatInt(policy.Max, 10))
			ctx.Response.Header.Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
			next(ctx)
			return
		}

		rl.logger.Warn("request rate limited",
			zap.String("policy", policy.Name),
			zap.String("client", clientIP),
			zap.Bool("fallback", decision.Fallback))

		rl.deny(ctx, policy, decision)
	}
}

func (rl *RateLimit) deny(ctx *fasthttp.RequestCtx, policy ratelimit.Policy, decision ratelimit.Decision) {
	retryAfter := int64(decision.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
	ctx.Response.Header.Set("Content-Type", "application/json")
	ctx.Response.Header.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
	ctx.Response.Header.Set("X-RateLimit-Limit", strconv.FormatInt(policy.Max, 10))
	ctx.Response.Header.Set("X-RateLimit-Remaining", "0")

	body, err := utils.Marshal(map[string]interface{}{
		"success": false,
		"message": policy.Message,
	})
	if err != nil {
		ctx.SetBodyString(`{"success":false,"message":"Too many requests"}`)
		return
	}

	ctx.SetBody(body)
}

func extractRealIP(ctx *fasthttp.RequestCtx) []byte {
	if realIP := ctx.Request.Header.PeekBytes(realIPHeader); len(realIP) > 0 {
		return realIP
	}

	if forwarded := ctx.Request.Header.PeekBytes(forwardedHeader); len(forwarded) > 0 {
		if comma := bytes.Index(forwarded, commaBytes); comma > 0 {
			return bytes.TrimSpace(forwarded[:comma])
		}
		return bytes.TrimSpace(forwarded)
	}

	return []byte(ctx.RemoteIP().String())
}
