package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/pprofhandler"

	apiHandler "github.com/fastygo/ocxers/api/handler"
)

type Handlers struct {
	Health   *apiHandler.HealthHandler
	GraphQL  *apiHandler.GraphQLHandler
	Realtime *apiHandler.RealtimeHandler
	Account  *apiHandler.AccountHandler
	Email    *apiHandler.EmailHandler
	Upload   *apiHandler.UploadHandler
	Notify   *apiHandler.NotifyHandler
}

// Options toggles the optional routes.
type Options struct {
	RealtimePath string
	Metrics      fasthttp.RequestHandler
	Pprof        bool
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler, opts Options) *router.Router {
	r := router.New()
	r.SaveMatchedRoutePath = true

	r.GET("/", handlers.Health.Root)
	r.GET("/healthz", handlers.Health.Live)
	r.GET("/readyz", handlers.Health.Ready)

	r.GET("/graphql", handlers.GraphQL.Serve)
	r.POST("/graphql", handlers.GraphQL.Serve)

	if opts.RealtimePath == "" {
		opts.RealtimePath = "/__ocxers__/"
	}
	r.GET(opts.RealtimePath, handlers.Realtime.Serve)

	// Protected routes
	api := r.Group("/api")
	api.GET("/whoami", authMiddleware(handlers.Account.WhoAmI))
	api.POST("/email", authMiddleware(handlers.Email.Send))
	api.POST("/upload", authMiddleware(handlers.Upload.Upload))
	api.POST("/notify", authMiddleware(handlers.Notify.Notify))

	if opts.Metrics != nil {
		r.GET("/metrics", opts.Metrics)
	}
	if opts.Pprof {
		r.ANY("/debug/pprof/{profile:*}", pprofhandler.PprofHandler)
	}
	return r
}
