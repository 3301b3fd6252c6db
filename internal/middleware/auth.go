package middleware

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/ocxers/api/transport"
	"github.com/fastygo/ocxers/domain"
	"github.com/fastygo/ocxers/internal/auth"
)

const accountKey = "ocxers.account"

// JWTAuth rejects requests without a valid session token and stores the
// signed-in account on the request for AccountFrom.
func JWTAuth(gate *auth.Gate, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			account, err := gate.Authenticate(string(ctx.Request.Header.Peek(fasthttp.HeaderAuthorization)))
			if err != nil {
				logger.Debug("request rejected", zap.ByteString("path", ctx.Path()), zap.Error(err))
				unauthorized(ctx, err)
				return
			}
			ctx.SetUserValue(accountKey, account)
			next(ctx)
		}
	}
}

// AccountFrom returns the account stored by JWTAuth.
func AccountFrom(ctx *fasthttp.RequestCtx) (*domain.Account, bool) {
	account, ok := ctx.UserValue(accountKey).(*domain.Account)
	return account, ok && account != nil
}

func unauthorized(ctx *fasthttp.RequestCtx, err error) {
	body, _ := json.Marshal(transport.NewMessage(fasthttp.StatusUnauthorized, domain.Message(err)))
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	ctx.SetBody(body)
}
