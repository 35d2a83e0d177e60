package main

import (
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mmynk/settleup/internal/auth"
	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/middleware"
	"github.com/mmynk/settleup/internal/service"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/pkg/api"
)

// routerDeps is everything the HTTP surface needs.
type routerDeps struct {
	store         storage.Store
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	denylist      auth.TokenDenylist
	metrics       *metrics.Metrics
	corsOrigins   []string
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(loggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Connect-Protocol-Version", "Connect-Timeout-Ms"},
		ExposedHeaders:   []string{"Connect-Protocol-Version", "Connect-Timeout-Ms"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Auth runs outermost so the logging interceptor sees the caller
	logged := middleware.LoggingInterceptor(d.metrics)
	public := []connect.HandlerOption{connect.WithInterceptors(logged)}
	authed := []connect.HandlerOption{connect.WithInterceptors(middleware.RequireAuth(d.jwtManager, d.denylist), logged)}

	mount := func(path string, h http.Handler) {
		r.Handle(path+"*", h)
	}
	mount(api.NewAuthServiceHandler(
		service.NewAuthService(d.authenticator, d.jwtManager, d.denylist, d.store, slog.Default()),
		public, authed,
	))
	mount(api.NewGroupServiceHandler(service.NewGroupService(d.store, d.metrics), authed...))
	mount(api.NewExpenseServiceHandler(service.NewExpenseService(d.store), authed...))
	mount(api.NewRecurringServiceHandler(service.NewRecurringService(d.store), authed...))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", d.metrics.Handler())

	return r
}

// loggingMiddleware logs requests that do not reach a Connect handler; RPCs are
// logged by the interceptor.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
