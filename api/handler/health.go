package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/ocxers/api/transport"
	"github.com/fastygo/ocxers/internal/infrastructure/monitor"
	"github.com/fastygo/ocxers/pkg/httpcontext"
)

// StatusReporter exposes the cached dependency status.
type StatusReporter interface {
	IsOnline() bool
	GetStatus() monitor.Status
}

type HealthHandler struct {
	baseHandler
	monitor StatusReporter
}

func NewHealthHandler(mon StatusReporter, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
	}
}

// @Summary Welcome banner
// @Tags health
// @Router / [get]
func (h *HealthHandler) Root(ctx *fasthttp.RequestCtx) {
	h.respondJSON(ctx, http.StatusOK, transport.NewMessage(http.StatusOK, "Welcome..."))
}

// @Summary Liveness probe
// @Tags health
// @Router /healthz [get]
func (h *HealthHandler) Live(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, "OK")
}

// @Summary Readiness probe
// @Tags health
// @Router /readyz [get]
func (h *HealthHandler) Ready(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	if h.monitor.IsOnline() {
		h.respondSuccess(ctx, status)
		return
	}
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.Envelope{
		Code:    http.StatusServiceUnavailable,
		Data:    status,
		Message: "dependencies unhealthy",
	})
}
