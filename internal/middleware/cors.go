package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// CORS evaluates requests with rs/cors and copies the resulting headers onto
// the fasthttp response. Preflight requests are answered without reaching
// next. An empty origin list allows any origin.
func CORS(origins []string) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	allowed := make([]string, 0, len(origins))
	for _, o := range origins {
		allowed = append(allowed, strings.TrimRight(o, "/"))
	}
	policy := cors.New(cors.Options{
		AllowedOrigins: allowed,
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost,
			http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
	})

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			var r http.Request
			if err := fasthttpadaptor.ConvertRequest(ctx, &r, true); err != nil {
				next(ctx)
				return
			}
			w := corsHeaders{header: http.Header{}}
			policy.HandlerFunc(&w, &r)
			for key, values := range w.header {
				for _, v := range values {
					ctx.Response.Header.Add(key, v)
				}
			}
			if w.status != 0 {
				ctx.SetStatusCode(w.status)
				return
			}
			next(ctx)
		}
	}
}

// corsHeaders records what rs/cors writes; the body is never used.
type corsHeaders struct {
	header http.Header
	status int
}

func (w *corsHeaders) Header() http.Header { return w.header }

func (w *corsHeaders) Write(b []byte) (int, error) { return len(b), nil }

func (w *corsHeaders) WriteHeader(status int) { w.status = status }
