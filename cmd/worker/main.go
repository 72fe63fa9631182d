package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	refundApp "github.com/retailops/refunds/internal/application/refund"
	"github.com/retailops/refunds/internal/bootstrap"
	domainErrors "github.com/retailops/refunds/internal/domain/errors"
	"github.com/retailops/refunds/internal/infrastructure/config"
	infraRedis "github.com/retailops/refunds/internal/infrastructure/redis"
	"github.com/retailops/refunds/internal/repository/postgres"
	"github.com/retailops/refunds/pkg/retry"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "refunds-worker", "refunds_worker")
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
	streamProducer := infraRedis.NewStreamProducer(app.Redis)

	resumeUC := refundApp.NewResumeRefundUseCase(
		saleRepo, refundRepo, inventoryRepo, customerRepo, outboxRepo, txManager,
	)
	resumeUC.SetMetrics(app.Metrics)

	workerCfg := app.Config.Worker

	app.Logger.Info().
		Dur("outbox_poll_interval", workerCfg.OutboxPollInterval).
		Dur("reconcile_interval", workerCfg.ReconcileInterval).
		Msg("Worker started")

	// Signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Outbox publisher (polls the outbox table, publishes to Redis Streams).
	g.Go(func() error {
		return runOutboxPublisher(gCtx, app, txManager, outboxRepo, streamProducer, workerCfg.OutboxPollInterval)
	})

	// 2. Reconciler (re-drives partially failed refunds).
	g.Go(func() error {
		return runReconciler(gCtx, app.Logger, app, refundRepo, resumeUC, workerCfg.ReconcileInterval, workerCfg.ReconcileBatchSize)
	})

	// 3. Expired idempotency key purge.
	g.Go(func() error {
		return runIdempotencyPurge(gCtx, app.Logger, idempotencyRepo)
	})

	// 4. DLQ monitor (surfaces dead-lettered events in logs and metrics).
	g.Go(func() error {
		return runDLQMonitor(gCtx, app, workerCfg)
	})

	// 5. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

func runOutboxPublisher(
	ctx context.Context,
	app *bootstrap.App,
	txManager *postgres.TxManager,
	outboxRepo *postgres.OutboxRepository,
	streamProducer *infraRedis.StreamProducer,
	pollInterval time.Duration,
) error {
	logger := app.Logger
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		err := txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			entries, err := outboxRepo.GetPending(txCtx, 10)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				publishErr := retry.Do(ctx, retry.DefaultConfig(), func() error {
					return streamProducer.PublishRefundEvent(
						ctx, entry.AggregateID.String(), entry.EventType, entry.Payload,
					)
				})
				if publishErr != nil {
					logger.Error().Err(publishErr).Str("outbox_id", entry.ID.String()).Msg("Failed to publish outbox event")
					outboxRepo.MarkFailed(txCtx, entry.ID)
					if entry.RetryCount+1 >= entry.MaxRetries {
						streamProducer.PublishToDLQ(ctx, entry.AggregateID.String(), publishErr.Error(), entry.Payload)
					}
					app.Metrics.WorkerMessagesProcessed.WithLabelValues(infraRedis.RefundStream, "error").Inc()
					continue
				}
				outboxRepo.MarkPublished(txCtx, entry.ID)
				app.Metrics.WorkerMessagesProcessed.WithLabelValues(infraRedis.RefundStream, "success").Inc()
			}
			return nil
		})
		if err != nil {
			logger.Error().Err(err).Msg("Outbox publisher error")
		}

		pending, err := outboxRepo.CountPending(ctx)
		if err == nil {
			app.Metrics.OutboxPendingEntries.Set(float64(pending))
		}
	}
}

// runDLQMonitor tails the dead-letter stream so exhausted events show up
// in logs and the alerting pipeline instead of rotting silently.
func runDLQMonitor(ctx context.Context, app *bootstrap.App, cfg config.WorkerConfig) error {
	consumer := infraRedis.NewStreamConsumer(
		app.Redis, infraRedis.DLQStream, cfg.ConsumerGroup, "dlq-monitor",
		cfg.BatchSize, cfg.BlockDuration,
	)
	if err := consumer.CreateGroup(ctx); err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		streams, err := consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			app.Logger.Error().Err(err).Msg("DLQ read error")
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				app.Logger.Warn().
					Str("message_id", msg.ID).
					Interface("values", msg.Values).
					Msg("Refund event dead-lettered")
				app.Metrics.WorkerMessagesProcessed.WithLabelValues(infraRedis.DLQStream, "dead_letter").Inc()
				if err := consumer.Ack(ctx, msg.ID); err != nil {
					app.Logger.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to ack DLQ message")
				}
			}
		}
	}
}

// Keys expire after 24h; an hourly sweep keeps the table small without
// mattering for correctness (Get filters on expires_at).
func runIdempotencyPurge(ctx context.Context, logger zerolog.Logger, repo *postgres.IdempotencyRepository) error {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		deleted, err := repo.Cleanup(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to purge expired idempotency keys")
			continue
		}
		if deleted > 0 {
			logger.Debug().Int64("deleted", deleted).Msg("Purged expired idempotency keys")
		}
	}
}

func runReconciler(
	ctx context.Context,
	logger zerolog.Logger,
	app *bootstrap.App,
	refundRepo *postgres.RefundRepository,
	resumeUC *refundApp.ResumeRefundUseCase,
	interval time.Duration,
	batchSize int,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		stuck, err := refundRepo.ListPartiallyFailed(ctx, batchSize)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to list partially failed refunds")
			continue
		}

		for _, rf := range stuck {
			start := time.Now()
			_, err := resumeUC.Execute(ctx, rf.ID)
			switch {
			case err == nil:
				logger.Info().
					Str("refund_id", rf.ID.String()).
					Str("refund_number", rf.Number).
					Msg("Resumed refund")
				app.Metrics.SagaResumes.WithLabelValues("completed").Inc()
			case errors.Is(err, domainErrors.ErrRefundNotResumable):
				// Another worker finished it between the list and the resume.
				app.Metrics.SagaResumes.WithLabelValues("skipped").Inc()
			default:
				logger.Error().Err(err).
					Str("refund_id", rf.ID.String()).
					Msg("Resume attempt failed")
				app.Metrics.SagaResumes.WithLabelValues("failed").Inc()
			}
			app.Metrics.WorkerProcessingDuration.WithLabelValues("reconciler").Observe(time.Since(start).Seconds())
		}
	}
}
