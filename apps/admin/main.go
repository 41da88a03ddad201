package main

import (
	"context"
	"fmt"
	"os"

	"github.com/trezcool/madrasa/apps/container"
	"github.com/trezcool/madrasa/core"
	appfs "github.com/trezcool/madrasa/fs"
	queuesvc "github.com/trezcool/madrasa/services/queue"
	"github.com/trezcool/madrasa/services/realtime"
	"github.com/trezcool/madrasa/storage/database"
)

func main() {
	conf := core.NewConfig()
	logger := container.NewLogger(conf, "ADMIN : ")

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	redisClient := realtime.NewRedisClient(conf.Redis)

	// jobs go to the broker when a worker consumes it; otherwise the command runs them before exiting
	var jobQueue core.JobQueue
	var pending *queuesvc.Memory
	if conf.Queue.Driver == queuesvc.DriverRabbitMQ {
		rabbit, err := queuesvc.DialRabbit(conf.Queue, logger)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up rabbitmq: %v", err), err)
		}
		defer func() { _ = rabbit.Close() }()
		jobQueue = rabbit
	} else {
		pending = queuesvc.NewMemory()
		jobQueue = pending
	}

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
	if err = core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, false); err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		conf:       conf,
		db:         db,
		users:      app.Users,
		payments:   app.Payments,
		points:     app.Points,
		failedJobs: app.FailedJobs,
		out:        os.Stdout,
	}
	if pending != nil {
		cli.flush = func(ctx context.Context) int { return pending.Drain(ctx, app.Runner) }
	}

	err = cli.run(os.Args)
	_ = redisClient.Close()
	_ = db.Close()
	logger.Close()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
