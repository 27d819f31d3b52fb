package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/salmanbareesh039/check-if-email-exists/internal/api"
	"github.com/salmanbareesh039/check-if-email-exists/internal/config"
	"github.com/salmanbareesh039/check-if-email-exists/internal/httpserver"
	"github.com/salmanbareesh039/check-if-email-exists/internal/repository"
	"github.com/salmanbareesh039/check-if-email-exists/internal/verifier"
	"github.com/salmanbareesh039/check-if-email-exists/internal/worker"
	"github.com/salmanbareesh039/check-if-email-exists/pkg/db"
	"github.com/salmanbareesh039/check-if-email-exists/pkg/logger"
	"github.com/salmanbareesh039/check-if-email-exists/pkg/mq"
	"github.com/salmanbareesh039/check-if-email-exists/pkg/otel"
	"github.com/salmanbareesh039/check-if-email-exists/pkg/outbox"
	redisclient "github.com/salmanbareesh039/check-if-email-exists/pkg/redis"
	"github.com/salmanbareesh039/check-if-email-exists/pkg/util"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "path to the backend config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	defer log.Sync()

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:     cfg.SentryDSN,
			Release: version,
		}); err != nil {
			log.Warn("Sentry initialization failed", zap.Error(err))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	if err := run(cfg, log); err != nil {
		log.Error("Backend terminated", zap.Error(err))
		os.Exit(2)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := otel.Init(otel.Config{
		ServiceName:    "check-if-email-exists",
		ServiceVersion: version,
		Endpoint:       cfg.Otel.Endpoint,
		Enabled:        cfg.Otel.Enabled,
	}, log)
	if err != nil {
		return fmt.Errorf("otel init: %w", err)
	}
	defer shutdownOtel()

	pipeline, err := verifier.New(cfg, log)
	if err != nil {
		return fmt.Errorf("verifier init: %w", err)
	}

	var pool *pgxpool.Pool
	if cfg.Worker.Postgres.DBURL != "" {
		pool, err = db.NewPool(ctx, cfg.Worker.Postgres.DBURL, log)
		if err != nil {
			return fmt.Errorf("postgres init: %w", err)
		}
		defer pool.Close()
	}

	var deduper *util.Deduper
	var retries *util.RetryCounter
	if cfg.Worker.Redis.URL != "" {
		rdb, err := redisclient.NewClient(ctx, cfg.Worker.Redis.URL)
		if err != nil {
			return fmt.Errorf("redis init: %w", err)
		}
		defer rdb.Close()
		deduper = util.NewDeduper(rdb, time.Hour, log)
		retries = util.NewRetryCounter(rdb, time.Hour)
	}

	var conn *amqp091.Connection
	var publisher *mq.Publisher
	var rpc *mq.RPC
	if cfg.Worker.RabbitMQ.URL != "" {
		conn, err = mq.NewConnection(cfg.Worker.RabbitMQ.URL)
		if err != nil {
			return fmt.Errorf("rabbitmq init: %w", err)
		}
		defer conn.Close()

		publisher, err = mq.NewPublisher(conn)
		if err != nil {
			return fmt.Errorf("publisher init: %w", err)
		}
		defer publisher.Close()

		rpc, err = mq.NewRPC(conn, log)
		if err != nil {
			return fmt.Errorf("rpc client init: %w", err)
		}
		defer rpc.Close()
	}

	var jobs *repository.JobRepository
	var results *repository.ResultRepository
	var events *outbox.Repository
	if pool != nil {
		jobs = repository.NewJobRepository(pool)
		results = repository.NewResultRepository(pool)
		events = outbox.NewRepository(pool)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Worker.Enable {
		if pool == nil {
			return fmt.Errorf("worker.enable requires worker.postgres.db_url")
		}
		if conn == nil {
			return fmt.Errorf("worker.enable requires worker.rabbitmq.url")
		}

		var completions worker.CompletionRecorder
		if cfg.Worker.Webhook.OnJobComplete.URL != "" {
			completions = events
			sink := outbox.NewWebhookSink(cfg.Worker.Webhook.OnJobComplete.URL, cfg.WebhookSecret)
			dispatcher := outbox.NewDispatcher(events, sink, log)
			g.Go(func() error {
				dispatcher.Start(gctx)
				return nil
			})
		}

		w := worker.New(cfg, pipeline, results, jobs, completions, publisher, deduper, retries, log)
		g.Go(func() error {
			return w.Run(gctx, conn)
		})
	}

	// Typed nils must not reach the handlers: their availability checks
	// compare against the nil interface.
	bulk := api.NewBulkHandler(nil, nil, nil, log)
	switch {
	case pool != nil && publisher != nil:
		bulk = api.NewBulkHandler(jobs, results, publisher, log)
	case pool != nil:
		bulk = api.NewBulkHandler(jobs, results, nil, log)
	}
	check := api.NewCheckHandler(pipeline, nil, log)
	if rpc != nil {
		check = api.NewCheckHandler(pipeline, rpc, log)
	}
	admin := api.NewAdminHandler(nil, log)
	if events != nil {
		admin = api.NewAdminHandler(outbox.NewReplayService(events, log), log)
	}

	engine := httpserver.NewRouter(check, bulk, admin, cfg.HeaderSecret, log)
	server := httpserver.NewServer(cfg.HTTPHost, cfg.HTTPPort, engine, log)
	g.Go(func() error {
		return server.Run(gctx)
	})

	log.Info("Backend started",
		zap.String("backend_name", cfg.BackendName),
		zap.String("version", version),
		zap.Bool("worker_enabled", cfg.Worker.Enable),
	)

	return g.Wait()
}
