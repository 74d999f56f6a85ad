package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/config"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/db"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/provider"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/queue"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/ratelimit"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/repository"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/service"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/timing"
)

// The worker consumes tick jobs from RabbitMQ and runs scheduler passes.
// The reconciliation sweep runs on its own internal ticker so stuck items
// are repaired even if the external trigger engine goes quiet.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	conn, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer conn.Close()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	prospectRepo := &repository.ProspectRepository{DB: conn}
	accountRepo := &repository.AccountRepository{DB: conn}
	queueRepo := &repository.QueueRepository{DB: conn}
	patternRepo := &repository.PatternRepository{DB: conn}

	hours := ratelimit.BusinessHours{
		StartMinute: cfg.BusinessStartMinute,
		EndMinute:   cfg.BusinessEndMinute,
	}
	limiter := ratelimit.NewLimiter(accountRepo, hours)
	generator := timing.NewGenerator(patternRepo, hours)
	messenger := provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey, cfg.ProviderTimeout)
	clock := ratelimit.SystemClock()

	writer := &service.QueueWriter{
		Campaigns: campaignRepo,
		Prospects: prospectRepo,
		Accounts:  accountRepo,
		Queue:     queueRepo,
		Limiter:   limiter,
		Timing:    generator,
		Clock:     clock,
		Logger:    logger,
	}
	gate := &service.AcceptanceGate{
		Campaigns:       campaignRepo,
		Prospects:       prospectRepo,
		Queue:           queueRepo,
		Provider:        messenger,
		Writer:          writer,
		Clock:           clock,
		Logger:          logger,
		RecheckInterval: cfg.AcceptRecheck,
	}
	processor := &service.Processor{
		Campaigns:     campaignRepo,
		Prospects:     prospectRepo,
		Accounts:      accountRepo,
		Queue:         queueRepo,
		Writer:        writer,
		Gate:          gate,
		Limiter:       limiter,
		Provider:      messenger,
		Clock:         clock,
		Logger:        logger,
		BatchCap:      cfg.BatchCap,
		PoolSize:      cfg.WorkerPoolSize,
		MaxAttempts:   cfg.MaxAttempts,
		RetryBackoff:  cfg.RetryBackoff,
		PauseDefer:    cfg.PauseDefer,
		AcceptRecheck: cfg.AcceptRecheck,
	}
	reconciler := &service.Reconciler{
		Campaigns:       campaignRepo,
		Prospects:       prospectRepo,
		Queue:           queueRepo,
		Provider:        messenger,
		Writer:          writer,
		Clock:           clock,
		Logger:          logger,
		DispatchTimeout: cfg.DispatchTimeout,
		Grace:           cfg.ReclaimGrace,
		MaxAttempts:     cfg.MaxAttempts,
		BatchCap:        cfg.BatchCap,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runReconcileLoop(ctx, reconciler, cfg.DispatchTimeout/2, logger)

	amqpConn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		logger.Fatal("rabbitmq connection failed", zap.Error(err))
	}
	defer amqpConn.Close()

	logger.Info("worker running, waiting for tick jobs")
	err = queue.Consume(ctx, amqpConn, logger, func(ctx context.Context, job queue.TickJob) error {
		result, tickErr := processor.Tick(ctx, job.Scope)
		if tickErr != nil {
			return tickErr
		}
		logger.Info("tick pass complete",
			zap.Int64("workspace_id", job.Scope.WorkspaceID),
			zap.Int64("campaign_id", job.Scope.CampaignID),
			zap.Int("claimed", result.Claimed),
			zap.Int("confirmed", result.Confirmed),
			zap.Int("retried", result.Retried),
			zap.Int("failed", result.Failed),
			zap.Int("deferred", result.Deferred))
		return nil
	})
	if err != nil && ctx.Err() == nil {
		logger.Fatal("consumer stopped", zap.Error(err))
	}
}

func runReconcileLoop(ctx context.Context, reconciler *service.Reconciler, interval time.Duration, logger *zap.Logger) {
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := reconciler.Sweep(ctx)
			if err != nil {
				logger.Error("reconciliation sweep failed", zap.Error(err))
				continue
			}
			if result.StuckSeen > 0 || result.Rescheduled > 0 {
				logger.Info("reconciliation sweep complete",
					zap.Int("stuck_seen", result.StuckSeen),
					zap.Int("confirmed", result.Confirmed),
					zap.Int("requeued", result.Requeued),
					zap.Int("failed", result.Failed),
					zap.Int("rescheduled", result.Rescheduled))
			}
		}
	}
}
