package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/config"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/controller"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/db"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/provider"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/queue"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/ratelimit"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/repository"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/service"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/timing"
)

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
	campaignService := &service.CampaignService{
		Campaigns: campaignRepo,
		Queue:     queueRepo,
		Logger:    logger,
	}

	// The async trigger path is optional: without a broker the server
	// still serves synchronous ticks.
	var publisher *queue.Publisher
	if amqpConn, dialErr := amqp.Dial(cfg.AMQPURL); dialErr != nil {
		logger.Warn("rabbitmq unavailable, async tick trigger disabled", zap.Error(dialErr))
	} else {
		defer amqpConn.Close()
		publisher, err = queue.NewPublisher(amqpConn)
		if err != nil {
			logger.Fatal("tick queue declaration failed", zap.Error(err))
		}
		defer publisher.Close()
	}

	schedulerController := &controller.SchedulerController{
		Processor:  processor,
		Reconciler: reconciler,
		Logger:     logger,
	}
	if publisher != nil {
		schedulerController.Publisher = publisher
	}
	campaignController := &controller.CampaignController{
		CampaignService: campaignService,
		Logger:          logger,
	}
	opsController := &controller.OpsController{
		Queue:           queueRepo,
		Accounts:        accountRepo,
		Clock:           clock,
		DispatchTimeout: cfg.DispatchTimeout,
		Logger:          logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/scheduler/tick", schedulerController.Tick)
	r.Post("/scheduler/tick/async", schedulerController.EnqueueTick)
	r.Post("/scheduler/reconcile", schedulerController.Reconcile)
	r.Post("/campaigns/{id}/pause", campaignController.PauseCampaign)
	r.Post("/campaigns/{id}/resume", campaignController.ResumeCampaign)
	r.Put("/campaigns/{id}/messages/{slot}", campaignController.UpdateCampaignMessage)
	r.Get("/ops/queue", opsController.QueueDepth)
	r.Get("/ops/accounts", opsController.AccountQuotas)
	r.Get("/ops/stuck", opsController.StuckItems)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	logger.Info("server running", zap.String("addr", cfg.HTTPAddr))
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
