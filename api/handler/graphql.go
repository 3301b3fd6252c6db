package handler

import (
	"encoding/json"
	"net/http"

	gql "github.com/graphql-go/graphql"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apigraphql "github.com/fastygo/ocxers/api/graphql"
	"github.com/fastygo/ocxers/api/transport"
	"github.com/fastygo/ocxers/domain"
	"github.com/fastygo/ocxers/pkg/httpcontext"
)

type GraphQLHandler struct {
	baseHandler
	schema gql.Schema
}

func NewGraphQLHandler(schema gql.Schema, adapter *httpcontext.Adapter, logger *zap.Logger) *GraphQLHandler {
	return &GraphQLHandler{
		baseHandler: newBaseHandler(adapter, logger),
		schema:      schema,
	}
}

// @Summary Execute a GraphQL operation
// @Tags graphql
// @Router /graphql [post]
func (h *GraphQLHandler) Serve(ctx *fasthttp.RequestCtx) {
	var req transport.GraphQLRequest
	if ctx.IsGet() {
		args := ctx.QueryArgs()
		req.Query = string(args.Peek("query"))
		req.OperationName = string(args.Peek("operationName"))
		vars, err := transport.ParseVariables(args.Peek("variables"))
		if err != nil {
			h.respondError(ctx, domain.WrapError(domain.ErrCodeInvalid, "invalid variables", err))
			return
		}
		req.Variables = vars
	} else if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondError(ctx, domain.WrapError(domain.ErrCodeInvalid, "invalid payload", err))
		return
	}
	if req.Query == "" {
		h.respondError(ctx, domain.NewError(domain.ErrCodeInvalid, "query is required"))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result := apigraphql.Execute(stdCtx, h.schema, req.Query, req.OperationName, req.Variables)
	if result.HasErrors() {
		h.log(stdCtx).Debug("graphql errors", zap.Int("count", len(result.Errors)))
	}
	h.respondJSON(ctx, http.StatusOK, result)
}
