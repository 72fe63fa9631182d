package controller

import (
	"time"

	customerApp "github.com/retailops/refunds/internal/application/customer"
	refundApp "github.com/retailops/refunds/internal/application/refund"
	"github.com/retailops/refunds/internal/infrastructure/config"
	"github.com/retailops/refunds/internal/infrastructure/observability"
	customMW "github.com/retailops/refunds/internal/middleware"
	"github.com/retailops/refunds/internal/repository/postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type RouterDeps struct {
	Pool            *pgxpool.Pool
	RedisClient     *redis.Client
	ProcessUC       *refundApp.ProcessRefundUseCase
	ResumeUC        *refundApp.ResumeRefundUseCase
	GetUC           *refundApp.GetRefundUseCase
	ListUC          *refundApp.ListRefundsUseCase
	StatsUC         *refundApp.RefundStatsUseCase
	LedgerUC        *customerApp.GetLedgerUseCase
	IdempotencyRepo *postgres.IdempotencyRepository
	Metrics         *observability.Metrics
	ServerConfig    config.ServerConfig
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.ServerConfig.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link", "X-Idempotency-Replayed"},
		AllowCredentials: deps.ServerConfig.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	refundH := NewRefundController(deps.ProcessUC, deps.ResumeUC, deps.GetUC, deps.ListUC, deps.StatsUC)
	customerH := NewCustomerController(deps.LedgerUC)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if deps.ServerConfig.RateLimit > 0 {
			r.Use(customMW.RateLimit(deps.ServerConfig.RateLimit))
		}

		// Idempotency middleware for mutating endpoints.
		idempotencyMW := customMW.Idempotency(deps.IdempotencyRepo)

		r.With(idempotencyMW).Post("/refunds", refundH.CreateRefund)
		r.Get("/refunds", refundH.ListRefunds)
		r.Get("/refunds/stats", refundH.GetStats)
		r.Get("/refunds/{id}", refundH.GetRefund)
		r.Post("/refunds/{id}/resume", refundH.ResumeRefund)
		r.Get("/customers/{id}/ledger", customerH.GetLedger)
	})

	return r
}
