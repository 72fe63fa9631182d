package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	customerApp "github.com/retailops/refunds/internal/application/customer"
	refundApp "github.com/retailops/refunds/internal/application/refund"
	"github.com/retailops/refunds/internal/bootstrap"
	"github.com/retailops/refunds/internal/controller"
	domainErrors "github.com/retailops/refunds/internal/domain/errors"
	"github.com/retailops/refunds/internal/infrastructure/config"
	"github.com/retailops/refunds/internal/infrastructure/observability"
	infraRedis "github.com/retailops/refunds/internal/infrastructure/redis"
	"github.com/retailops/refunds/internal/repository/postgres"
	"github.com/sony/gobreaker/v2"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "refunds-api", "refunds")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	saleRepo := postgres.NewSaleItemRepository(app.Pool)
	refundRepo := postgres.NewRefundRepository(app.Pool)
	inventoryRepo := postgres.NewInventoryRepository(app.Pool)
	customerRepo := postgres.NewCustomerRepository(app.Pool)
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	idempotencyRepo := postgres.NewIdempotencyRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Atomic procedure behind a circuit breaker ---
	var atomicProc refundApp.AtomicProcedure
	var breaker *gobreaker.CircuitBreaker[struct{}]
	if app.Config.Refund.UseAtomicProcedure {
		atomicProc = postgres.NewRefundProcedure(app.Pool)
		breaker = newProcedureBreaker(app.Config.Refund, app.Metrics)
	}

	locker := infraRedis.NewItemLockManager(app.Redis)

	// --- Use cases ---
	processUC := refundApp.NewProcessRefundUseCase(
		saleRepo, refundRepo, inventoryRepo, customerRepo,
		outboxRepo, txManager, atomicProc, breaker, locker,
	)
	processUC.SetLockTTL(app.Config.Refund.LockTTL)
	processUC.SetMetrics(app.Metrics)
	resumeUC := refundApp.NewResumeRefundUseCase(
		saleRepo, refundRepo, inventoryRepo, customerRepo, outboxRepo, txManager,
	)
	resumeUC.SetMetrics(app.Metrics)

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:            app.Pool,
		RedisClient:     app.Redis,
		ProcessUC:       processUC,
		ResumeUC:        resumeUC,
		GetUC:           refundApp.NewGetRefundUseCase(refundRepo),
		ListUC:          refundApp.NewListRefundsUseCase(refundRepo),
		StatsUC:         refundApp.NewRefundStatsUseCase(refundRepo),
		LedgerUC:        customerApp.NewGetLedgerUseCase(customerRepo),
		IdempotencyRepo: idempotencyRepo,
		Metrics:         app.Metrics,
		ServerConfig:    app.Config.Server,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}

// newProcedureBreaker trips after consecutive procedure failures so a broken
// or missing database function stops being retried on every request. Domain
// rejections are successful calls from the breaker's point of view.
func newProcedureBreaker(cfg config.RefundConfig, metrics *observability.Metrics) *gobreaker.CircuitBreaker[struct{}] {
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "refund-procedure",
		Timeout: cfg.CircuitBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.CircuitBreakerThreshold)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return errors.Is(err, domainErrors.ErrAlreadyRefunded) ||
				errors.Is(err, domainErrors.ErrSaleItemNotFound) ||
				errors.Is(err, domainErrors.ErrAmountExceedsTotal)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
}
