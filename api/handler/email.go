package handler

import (
	"context"
	"encoding/json"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/ocxers/domain"
	"github.com/fastygo/ocxers/pkg/httpcontext"
	"github.com/fastygo/ocxers/usecase/mail"
)

// Dispatcher renders and sends one email request.
type Dispatcher interface {
	Dispatch(ctx context.Context, req mail.Request) error
}

type EmailHandler struct {
	baseHandler
	mail Dispatcher
}

func NewEmailHandler(mail Dispatcher, adapter *httpcontext.Adapter, logger *zap.Logger) *EmailHandler {
	return &EmailHandler{
		baseHandler: newBaseHandler(adapter, logger),
		mail:        mail,
	}
}

// @Summary Send a templated email
// @Tags email
// @Accept json
// @Produce json
// @Router /api/email [post]
func (h *EmailHandler) Send(ctx *fasthttp.RequestCtx) {
	var req mail.Request
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondError(ctx, domain.WrapError(domain.ErrCodeInvalid, "invalid payload", err))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.mail.Dispatch(stdCtx, req); err != nil {
		h.log(stdCtx).Warn("email dispatch failed", zap.String("type", string(req.Type)), zap.Error(err))
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, "sent")
}
