// Package server provides the HTTP API surface (§6) over the wired
// component container: stock data reads, sync triggers, analysis task
// submission, and notifications, plus a websocket upgrade endpoint for
// C9's live transport.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/sermady/stockdata-core/internal/apperr"
	"github.com/sermady/stockdata-core/internal/config"
	"github.com/sermady/stockdata-core/internal/di"
)

// Config holds everything New needs to build a Server.
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container
	Port      int
	DevMode   bool
}

// Server wraps the chi router and every wired component the API
// surfaces.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	cfg       *config.Config
	container *di.Container
}

// New builds a Server with routes and middleware fully wired. Call Start
// to begin serving.
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg.Config,
		container: cfg.Container,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // generous: analysis/combined reads may touch several components
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins serving and blocks until the listener returns (normally
// on Shutdown triggering http.ErrServerClosed).
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server starting")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/analysis", func(r chi.Router) {
		r.Post("/single", s.handleAnalysisSingle)
		r.Post("/batch", s.handleAnalysisBatch)
		r.Get("/task/{id}", s.handleAnalysisTask)
		r.Post("/task/{id}/cancel", s.handleAnalysisCancel)
	})

	s.router.Route("/stock-data", func(r chi.Router) {
		r.Get("/basic-info/{symbol}", s.handleBasicInfo)
		r.Get("/quotes/{symbol}", s.handleQuote)
		r.Get("/list", s.handleListBasicInfo)
		r.Get("/search", s.handleSearchBasicInfo)
		r.Get("/combined/{symbol}", s.handleCombined)
		r.Get("/markets", s.handleMarkets)
		r.Get("/sync-status/quotes", s.handleQuoteSyncStatus)
	})

	s.router.Route("/stock-sync", func(r chi.Router) {
		r.Post("/single", s.handleStockSyncSingle)
		r.Post("/batch", s.handleStockSyncBatch)
		r.Get("/status/{symbol}", s.handleStockSyncStatus)
	})

	s.router.Route("/notifications", func(r chi.Router) {
		r.Get("/", s.handleListNotifications)
		r.Get("/stream", s.handleNotificationStream)
		r.Post("/{id}/read", s.handleMarkNotificationRead)
		r.Post("/read-all", s.handleMarkAllNotificationsRead)
	})

	s.router.Route("/config", func(r chi.Router) {
		r.Get("/summary", s.handleConfigSummary)
		r.Get("/validate", s.handleConfigValidate)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		if s.container != nil && s.container.Observability != nil {
			s.container.Observability.RecordOperation("http."+r.Method+"."+routePattern(r), elapsed)
		}
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", elapsed).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
		return rc.RoutePattern()
	}
	return r.URL.Path
}

// userID resolves the caller's identity. Authentication is an explicit
// external collaborator (spec.md §1) - this service trusts whatever
// identity the auth layer in front of it attaches to the request via
// this header.
func userID(r *http.Request) string {
	if v := r.Header.Get("X-User-ID"); v != "" {
		return v
	}
	return "anonymous"
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "stockdata-core",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError renders err as a stable {code, message[, details]} payload,
// masking any underlying cause from non-admin-audience endpoints per
// spec.md §7. Secrets never reach this path since apperr.Error.Cause is
// never a credential value in this codebase.
func writeError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	status := httpStatusFor(code)

	message := "internal error"
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	body := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	writeJSON(w, status, body)
}

func httpStatusFor(code apperr.Code) int {
	switch code {
	case apperr.BadRequest:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.QuotaExceededConcurrent, apperr.QuotaExceededDaily:
		return http.StatusTooManyRequests
	case apperr.ConsistencyLowConfidence, apperr.Cancelled, apperr.StoreConflict:
		return http.StatusOK
	case apperr.ConfigInvalid:
		return http.StatusInternalServerError
	case apperr.ProviderTransient, apperr.ProviderRateLimited, apperr.StoreUnavailable:
		return http.StatusServiceUnavailable
	case apperr.ProviderPermanent, apperr.ProviderUnsupported:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
