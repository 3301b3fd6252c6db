package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/ocxers/api/transport"
	"github.com/fastygo/ocxers/domain"
	"github.com/fastygo/ocxers/internal/auth"
	"github.com/fastygo/ocxers/internal/middleware"
	"github.com/fastygo/ocxers/pkg/httpcontext"
	"github.com/fastygo/ocxers/pkg/logger"
)

type baseHandler struct {
	adapter *httpcontext.Adapter
	logger  *zap.Logger
}

func newBaseHandler(adapter *httpcontext.Adapter, log *zap.Logger) baseHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return baseHandler{adapter: adapter, logger: log}
}

// requestContext derives a deadline-bound context carrying the request id,
// the Authorization header and the account set by the auth middleware.
func (h baseHandler) requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	var (
		stdCtx context.Context
		cancel context.CancelFunc
	)
	if h.adapter != nil {
		stdCtx, cancel = h.adapter.Attach(ctx)
	} else {
		stdCtx, cancel = context.WithCancel(context.Background())
	}
	stdCtx = auth.WithCredential(stdCtx, string(ctx.Request.Header.Peek(fasthttp.HeaderAuthorization)))
	if account, ok := middleware.AccountFrom(ctx); ok {
		stdCtx = auth.WithAccount(stdCtx, account)
		stdCtx = logger.ContextWithAccount(stdCtx, account.Email)
	}
	return stdCtx, cancel
}

func (h baseHandler) log(ctx context.Context) *zap.Logger {
	return logger.WithRequestID(ctx, h.logger)
}

func (h baseHandler) respondJSON(ctx *fasthttp.RequestCtx, status int, payload interface{}) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	body, _ := json.Marshal(payload)
	ctx.SetBody(body)
}

func (h baseHandler) respondSuccess(ctx *fasthttp.RequestCtx, data interface{}) {
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(data))
}

// respondError writes {code, err} with the mapped status as both the HTTP
// status and the body code.
func (h baseHandler) respondError(ctx *fasthttp.RequestCtx, err error) {
	status := mapError(err)
	h.respondJSON(ctx, status, transport.NewError(status, domain.Message(err)))
}

func mapError(err error) int {
	switch domain.CodeOf(err) {
	case domain.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrCodeForbidden:
		return http.StatusForbidden
	case domain.ErrCodeInvalid:
		return http.StatusBadRequest
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
