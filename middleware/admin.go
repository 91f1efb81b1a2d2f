package middleware

import (
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-commerce/ratelimit"
	"github.com/saiset-co/sai-commerce/types"
	"github.com/saiset-co/sai-commerce/utils"
)

var ipArg = []byte("ip")

// Admin exposes rate-limit inspection and reset handlers. Quota is read-only
// and never consumes budget; Reset clears every counter across all policies
// and clients.
type Admin struct {
	limiter *ratelimit.Limiter
	logger  types.Logger
}

func NewAdmin(limiter *ratelimit.Limiter, logger types.Logger) *Admin {
	return &Admin{
		limiter: limiter,
		logger:  logger,
	}
}

// Quota reports the remaining budget per policy for the IP in the "ip" query
// argument, falling back to the caller's own address.
func (a *Admin) Quota(ctx *fasthttp.RequestCtx) {
	ip := string(ctx.QueryArgs().PeekBytes(ipArg))
	if ip == "" {
		ip = string(extractRealIP(ctx))
	}

	statuses := a.limiter.Status(ctx, ip)

	a.respond(ctx, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"ip":       ip,
			"policies": statuses,
		},
	})
}

func (a *Admin) Reset(ctx *fasthttp.RequestCtx) {
	cleared := a.limiter.ClearAll(ctx)

	a.logger.Info("rate limits reset by admin", zap.Int("cleared", cleared))

	a.respond(ctx, map[string]interface{}{
		"success": true,
		"cleared": cleared,
	})
}

func (a *Admin) respond(ctx *fasthttp.RequestCtx, payload map[string]interface{}) {
	body, err := utils.Marshal(payload)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(`{"success":false}`)
		return
	}

	ctx.Response.Header.Set("Content-Type", "application/json")
	ctx.SetBody(body)
}
