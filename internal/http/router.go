package httpapi

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"hotelpos-billing-services/internal/auth"
	"hotelpos-billing-services/internal/config"
	"hotelpos-billing-services/internal/http/handlers"
	"hotelpos-billing-services/internal/middleware"
	"hotelpos-billing-services/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func NewRouter(logger *zap.Logger, cfg config.Config, h *handlers.Handler, hub *ws.Hub) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(requestLogger(logger))
	r.Use(middleware.Telemetry(logger))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Request-Id",
				"X-Reset-Pin",
			},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/health/ready", h.Readiness)

	r.Route("/api/branches/{branchId}/counters", func(r chi.Router) {
		r.Use(middleware.StaffAuth(cfg.JWTSecret))
		r.Use(middleware.BranchAccess("branchId"))

		r.With(middleware.RequirePermission(auth.PermIssueBills)).Post("/bill", h.IssueBillNumber)
		r.With(middleware.RequirePermission(auth.PermIssueBills)).Post("/invoice", h.IssueInvoiceNumber)
		r.With(middleware.RequirePermission(auth.PermIssueKOT)).Post("/kot", h.IssueKOTNumber)
		r.With(middleware.RequirePermission(auth.PermReadCounters)).Get("/", h.CurrentCounters)
	})

	r.Route("/api/admin/counters", func(r chi.Router) {
		r.Use(middleware.StaffAuth(cfg.JWTSecret))

		r.With(
			middleware.RequirePermission(auth.PermResetCounters),
			middleware.ResetPin(cfg.ResetPinHash),
		).Post("/reset", h.AdminResetCounters)
		r.With(middleware.RequirePermission(auth.PermReports)).Get("/report", h.AdminCountersReport)
		r.With(middleware.RequirePermission(auth.PermReports)).Get("/archives", h.AdminResetArchives)
	})

	if hub != nil {
		r.Get("/ws/branches/{branchId}/kot", hub.KitchenKOTWS)
	}

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("requestId", middleware.RequestIDFromContext(r.Context())),
			)
		})
	}
}
