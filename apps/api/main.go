package main

import (
	"context"
	"fmt"

	echoapi "github.com/trezcool/madrasa/apps/api/echo"
	"github.com/trezcool/madrasa/apps/container"
	"github.com/trezcool/madrasa/core"
	appfs "github.com/trezcool/madrasa/fs"
	"github.com/trezcool/madrasa/services/gateway"
	queuesvc "github.com/trezcool/madrasa/services/queue"
	"github.com/trezcool/madrasa/services/realtime"
	"github.com/trezcool/madrasa/services/tracing"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := container.NewLogger(conf, "API : ")
	defer logger.Close()
	dbLogger := container.NewLogger(conf, "DB : ")
	queueLogger := container.NewLogger(conf, "QUEUE : ")

	ctx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	shutdownTracer, err := tracing.InitTracer(ctx, conf, "madrasa-api")
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up tracing: %v", err), err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error(fmt.Sprintf("stopping tracer: %v", err), err)
		}
	}()

	// set up DB
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

	// set up the queue: in-process workers, or publishing only when the worker binary consumes the broker
	var jobQueue core.JobQueue
	var localQueue *queuesvc.Local
	switch conf.Queue.Driver {
	case queuesvc.DriverRabbitMQ:
		rabbit, err := queuesvc.DialRabbit(conf.Queue, queueLogger)
		if err != nil {
			queueLogger.Fatal(fmt.Sprintf("setting up rabbitmq: %v", err), err)
		}
		defer func() { _ = rabbit.Close() }()
		jobQueue = rabbit
	default:
		localQueue = queuesvc.NewLocal(conf.Queue.Workers, conf.Queue.Buffer, queueLogger)
		jobQueue = localQueue
	}

	// set up services
	app, err := container.New(container.Deps{
		Conf:        conf,
		Logger:      logger,
		Repos:       container.SQLRepositories(db),
		Queue:       jobQueue,
		Mail:        container.NewEmailService(conf),
		Broadcaster: realtime.NewRedisBroadcaster(redisClient),
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("wiring services: %v", err), err)
	}

	var verifier echoapi.EventVerifier = gateway.DisabledVerifier{}
	if conf.OmiseSecretKey != "" {
		if verifier, err = gateway.NewOmiseVerifier(conf); err != nil {
			logger.Fatal(fmt.Sprintf("setting up omise: %v", err), err)
		}
	} else {
		logger.Warn("omise keys are not set: webhooks will be rejected")
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()

	if err = core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf.TestMode); err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}

	// =========================================================================
	// Start Debug & Queue Services

	container.StartDebugService(conf, logger)

	workersDone := make(chan struct{})
	if localQueue != nil {
		go func() {
			localQueue.Run(ctx, app.Runner)
			close(workersDone)
		}()
	} else {
		close(workersDone)
	}

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:            conf,
			Logger:          logger,
			Validate:        validate,
			Translator:      translator,
			PaymentSvc:      app.Payments,
			NotificationSvc: app.Notifications,
			ChatSvc:         app.Chats,
			Verifier:        verifier,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}

	// stop the workers and wait for them
	stopWorkers()
	<-workersDone
}
