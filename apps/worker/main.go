package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/trezcool/madrasa/apps/container"
	"github.com/trezcool/madrasa/core"
	appfs "github.com/trezcool/madrasa/fs"
	queuesvc "github.com/trezcool/madrasa/services/queue"
	"github.com/trezcool/madrasa/services/realtime"
	"github.com/trezcool/madrasa/services/tracing"
)

// The worker consumes the RabbitMQ queue the api publishes jobs on.
func main() {
	conf := core.NewConfig()

	logger := container.NewLogger(conf, "WORKER : ")
	defer logger.Close()
	dbLogger := container.NewLogger(conf, "DB : ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.InitTracer(ctx, conf, "madrasa-worker")
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up tracing: %v", err), err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error(fmt.Sprintf("stopping tracer: %v", err), err)
		}
	}()

	db, err := container.SetUpDB(conf)
	if err != nil {
		dbLogger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	redisClient := realtime.NewRedisClient(conf.Redis)
	defer func() { _ = redisClient.Close() }()

	rabbit, err := queuesvc.DialRabbit(conf.Queue, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up rabbitmq: %v", err), err)
	}
	defer func() { _ = rabbit.Close() }()

	app, err := container.New(container.Deps{
		Conf:        conf,
		Logger:      logger,
		Repos:       container.SQLRepositories(db),
		Queue:       rabbit,
		Mail:        container.NewEmailService(conf),
		Broadcaster: realtime.NewRedisBroadcaster(redisClient),
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("wiring services: %v", err), err)
	}

	if err = core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf.TestMode); err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}

	container.StartDebugService(conf, logger)

	hostname, _ := os.Hostname()
	logger.Info(fmt.Sprintf("Worker started : version %q, %d workers", conf.Build, conf.Queue.Workers))
	if err = rabbit.Consume(ctx, "madrasa-worker@"+hostname, app.Runner); err != nil {
		logger.Error(fmt.Sprintf("consuming jobs: %v", err), err)
	}
	logger.Info("Worker stopped")
}
