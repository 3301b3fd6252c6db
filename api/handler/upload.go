package handler

import (
	"context"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/ocxers/internal/auth"
	"github.com/fastygo/ocxers/pkg/httpcontext"
	"github.com/fastygo/ocxers/usecase/upload"
)

// Uploader stores a file for an account.
type Uploader interface {
	Upload(ctx context.Context, uid string, f upload.File) (string, error)
}

type UploadHandler struct {
	baseHandler
	uploads Uploader
}

func NewUploadHandler(uploads Uploader, adapter *httpcontext.Adapter, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uploads:     uploads,
	}
}

// @Summary Upload a document
// @Tags upload
// @Accept multipart/form-data
// @Param filetype query string false "content type"
// @Param filename query string false "object name"
// @Router /api/upload [post]
func (h *UploadHandler) Upload(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	account, err := auth.Require(stdCtx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	header, err := ctx.FormFile("file")
	if err != nil {
		h.respondError(ctx, upload.ErrNoFile)
		return
	}
	file, err := header.Open()
	if err != nil {
		h.log(stdCtx).Warn("open uploaded file", zap.Error(err))
		h.respondError(ctx, upload.ErrNoFile)
		return
	}
	defer file.Close()

	name := string(ctx.QueryArgs().Peek("filename"))
	if name == "" {
		name = header.Filename
	}
	contentType := string(ctx.QueryArgs().Peek("filetype"))
	if contentType == "" {
		contentType = header.Header.Get("Content-Type")
	}

	location, err := h.uploads.Upload(stdCtx, account.ID, upload.File{
		Name:        name,
		ContentType: contentType,
		Body:        file,
		Size:        header.Size,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, location)
}
