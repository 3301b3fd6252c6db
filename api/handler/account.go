package handler

import (
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/ocxers/internal/auth"
	"github.com/fastygo/ocxers/pkg/httpcontext"
)

type AccountHandler struct {
	baseHandler
}

func NewAccountHandler(adapter *httpcontext.Adapter, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{baseHandler: newBaseHandler(adapter, logger)}
}

// @Summary Signed-in account
// @Tags account
// @Success 200 {object} transport.Envelope
// @Router /api/whoami [get]
func (h *AccountHandler) WhoAmI(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	account, err := auth.Require(stdCtx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, account.Public())
}
