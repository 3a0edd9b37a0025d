/**
 * @description
 * This is the main entry point for the cycle engine. It is responsible for
 * initializing all components of the service, including configuration,
 * database connection, the message broker, the repository, the core
 * orchestration service, the cron scheduler, and the HTTP server. It wires
 * everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/shopspring/decimal: Exact money arithmetic.
 * - internal/api, internal/app, internal/config, internal/scheduler, internal/store: Internal packages for the service.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Olamability/SmartAjo-sub002/internal/api"
	"github.com/Olamability/SmartAjo-sub002/internal/app"
	"github.com/Olamability/SmartAjo-sub002/internal/config"
	"github.com/Olamability/SmartAjo-sub002/internal/domain"
	"github.com/Olamability/SmartAjo-sub002/internal/scheduler"
	"github.com/Olamability/SmartAjo-sub002/internal/store"
	rmrabbit "github.com/Olamability/SmartAjo-sub002/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}

	log.Printf("level=info component=bootstrap msg=\"starting cycle-engine\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish outbound cycle events.
	var producer rmrabbit.Publisher
	eventProducer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &rmrabbit.EventProducerFallback{}
	} else {
		defer eventProducer.Close()
		producer = eventProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	defaultPolicy := domain.PenaltyPolicy{
		DailyRatePercent: decimal.NewFromFloat(cfg.PenaltyDailyRatePercent),
		CapPercent:       decimal.NewFromFloat(cfg.PenaltyCapPercent),
	}

	// Initialize the core orchestration service with its dependencies.
	engineService := app.NewService(
		repository,
		producer,
		cfg.EventExchange,
		cfg.TxRetryAttempts,
		time.Duration(cfg.TxRetryBackoffMillis)*time.Millisecond,
		defaultPolicy,
		cfg.GroupSweepConcurrency,
	)

	// Wire up the payment and payout-status consumers.
	paymentConsumer := app.NewPaymentEventConsumer(engineService)
	payoutConsumer := app.NewPayoutStatusConsumer(engineService)

	rabbitConsumer, err := rmrabbit.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq consumer unavailable; queue processing disabled\" err=%v", err)
	} else {
		defer rabbitConsumer.Close()

		bindings := map[string]func([]byte) bool{
			"payment.confirmed":        paymentConsumer.HandleMessage,
			"payout.status.processing": payoutConsumer.HandleMessage,
			"payout.status.completed":  payoutConsumer.HandleMessage,
			"payout.status.failed":     payoutConsumer.HandleMessage,
		}
		if err := rabbitConsumer.ConsumeWithBindings(cfg.EventExchange, cfg.PaymentEventQueue, bindings); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"event consumer start failed\" err=%v", err)
		}
		log.Println("level=info component=bootstrap msg=\"event consumer started\"")
	}

	// Start the cron scheduler for the periodic cycle sweep.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	jobs := scheduler.NewJobs(engineService, logger, cfg)
	cronScheduler := scheduler.NewScheduler(jobs, logger, cfg)
	cronScheduler.Start()
	defer cronScheduler.Stop()

	// Set up the HTTP router and start the server.
	handlers := api.NewHandler(engineService)
	router := api.NewRouter(handlers, cfg.InternalAPIKey)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	<-cronScheduler.Stop().Done()
	log.Println("level=info component=http msg=\"shutdown complete\"")
}
