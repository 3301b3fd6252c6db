package handler

import (
	"encoding/json"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/ocxers/api/transport"
	"github.com/fastygo/ocxers/domain"
	"github.com/fastygo/ocxers/internal/auth"
	"github.com/fastygo/ocxers/internal/services/realtime"
	"github.com/fastygo/ocxers/pkg/httpcontext"
)

// Notifier delivers realtime payloads.
type Notifier interface {
	Push(email string, p realtime.Payload) int
	Broadcast(p realtime.Payload) int
}

type NotifyHandler struct {
	baseHandler
	notifier Notifier
}

func NewNotifyHandler(notifier Notifier, adapter *httpcontext.Adapter, logger *zap.Logger) *NotifyHandler {
	return &NotifyHandler{
		baseHandler: newBaseHandler(adapter, logger),
		notifier:    notifier,
	}
}

// @Summary Push a notification to realtime connections
// @Tags realtime
// @Accept json
// @Router /api/notify [post]
func (h *NotifyHandler) Notify(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	actor, err := auth.Require(stdCtx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	var req transport.NotifyRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondError(ctx, domain.WrapError(domain.ErrCodeInvalid, "invalid payload", err))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		h.respondError(ctx, domain.NewError(domain.ErrCodeInvalid, "message is required"))
		return
	}

	note := realtime.Notification{
		Message:      req.Message,
		Email:        domain.NormalizeEmail(req.Email),
		Type:         req.Type,
		From:         party(req.From),
		To:           party(req.To),
		ExtraMessage: req.ExtraMessage,
	}
	if note.From == nil {
		note.From = &realtime.Party{ID: actor.ID, Email: actor.Email, DisplayName: actor.DisplayName()}
	}

	var delivered int
	if note.Email == "" {
		delivered = h.notifier.Broadcast(note)
	} else {
		delivered = h.notifier.Push(note.Email, note)
	}
	h.log(stdCtx).Debug("notification pushed", zap.String("email", note.Email), zap.Int("delivered", delivered))
	h.respondSuccess(ctx, map[string]int{"delivered": delivered})
}

func party(p *transport.Party) *realtime.Party {
	if p == nil {
		return nil
	}
	return &realtime.Party{ID: p.ID, Email: p.Email, DisplayName: p.DisplayName, Avatar: p.Avatar}
}
