package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/statusboard/internal/domain"
	apimw "github.com/hamed0406/statusboard/internal/httpapi/middleware"
	"github.com/hamed0406/statusboard/internal/probe"
	"github.com/hamed0406/statusboard/internal/repo"
)

// Checker is the check pipeline as the API drives it.
type Checker interface {
	CheckOne(ctx context.Context, m domain.Monitor) domain.BatchResult
	CheckAll(ctx context.Context, ms []domain.Monitor) domain.BatchSummary
}

type Server struct {
	Logger   *zap.Logger
	Monitors repo.MonitorStore
	Checks   repo.CheckStore
	Checker  Checker
	// Resolver backs the DNS diagnosis of DOWN checks; nil uses the system resolver.
	Resolver probe.Resolver
}

func NewServer(l *zap.Logger, ms repo.MonitorStore, cs repo.CheckStore, c Checker, res probe.Resolver) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{Logger: l, Monitors: ms, Checks: cs, Checker: c, Resolver: res}
}

func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, publicRPM, publicBurst, adminRPM, adminBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(corsHandler(allowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(apimw.Authenticate(keys))

		api.Group(func(pub chi.Router) {
			pub.Use(apimw.Require(apimw.RolePublic))
			pub.Use(apimw.RateLimit(publicRPM, publicBurst))
			pub.Get("/monitors", s.handleListMonitors)
			pub.Get("/monitors/{id}/status", s.handleMonitorStatus)
			pub.Get("/results/latest", s.handleLatest)
		})

		api.Group(func(adm chi.Router) {
			adm.Use(apimw.Require(apimw.RoleAdmin))
			adm.Use(apimw.RateLimit(adminRPM, adminBurst))
			adm.Post("/monitors", s.handleAddMonitor)
			adm.Post("/monitors/{id}/check", s.handleCheckMonitor)
			adm.Post("/checks", s.handleCheckAll)
		})
	})

	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return cors.AllowAll().Handler
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Debug("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
