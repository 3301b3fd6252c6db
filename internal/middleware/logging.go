package middleware

import (
	"time"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/ocxers/internal/metrics"
)

// RequestLogger logs every request and records it in m, which may be nil.
// Routes are labelled by their pattern when the router saves it.
func RequestLogger(logger *zap.Logger, m *metrics.Metrics) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			started := time.Now()
			next(ctx)
			took := time.Since(started)

			route, _ := ctx.UserValue(router.MatchedRoutePathParam).(string)
			if route == "" {
				route = "unmatched"
			}
			status := ctx.Response.StatusCode()
			m.ObserveRequest(string(ctx.Method()), route, status, took)

			fields := []zap.Field{
				zap.ByteString("method", ctx.Method()),
				zap.ByteString("path", ctx.Path()),
				zap.Int("status", status),
				zap.Duration("latency", took),
			}
			if reqID := ctx.Response.Header.Peek("X-Request-ID"); len(reqID) > 0 {
				fields = append(fields, zap.ByteString("request_id", reqID))
			}
			if status >= fasthttp.StatusInternalServerError {
				logger.Warn("request served", fields...)
				return
			}
			logger.Info("request served", fields...)
		}
	}
}
