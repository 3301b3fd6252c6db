package handler

import (
	"context"
	"strings"

	"github.com/fasthttp/websocket"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/ocxers/internal/services/realtime"
	"github.com/fastygo/ocxers/pkg/httpcontext"
)

type RealtimeHandler struct {
	baseHandler
	appCtx   context.Context
	greeter  *realtime.Greeter
	upgrader websocket.FastHTTPUpgrader
}

// NewRealtimeHandler serves the realtime channel. Connections live until the
// peer leaves or appCtx ends. An empty origin list accepts any origin.
func NewRealtimeHandler(appCtx context.Context, greeter *realtime.Greeter, origins []string, adapter *httpcontext.Adapter, logger *zap.Logger) *RealtimeHandler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return &RealtimeHandler{
		baseHandler: newBaseHandler(adapter, logger),
		appCtx:      appCtx,
		greeter:     greeter,
		upgrader: websocket.FastHTTPUpgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(ctx *fasthttp.RequestCtx) bool {
				if len(allowed) == 0 {
					return true
				}
				origin := string(ctx.Request.Header.Peek(fasthttp.HeaderOrigin))
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// @Summary Realtime channel
// @Tags realtime
// @Router /__ocxers__/ [get]
func (h *RealtimeHandler) Serve(ctx *fasthttp.RequestCtx) {
	err := h.upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
		h.greeter.Serve(h.appCtx, conn)
	})
	if err != nil {
		h.logger.Debug("websocket upgrade rejected", zap.Error(err))
	}
}
