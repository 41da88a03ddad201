// Package container wires the services of the three binaries around a storage backend and the transports.
package container

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/booking"
	"github.com/trezcool/madrasa/core/certificate"
	"github.com/trezcool/madrasa/core/chat"
	"github.com/trezcool/madrasa/core/events"
	"github.com/trezcool/madrasa/core/fanout"
	"github.com/trezcool/madrasa/core/notification"
	"github.com/trezcool/madrasa/core/payment"
	"github.com/trezcool/madrasa/core/points"
	"github.com/trezcool/madrasa/core/user"
	emailsvc "github.com/trezcool/madrasa/services/email"
	logsvc "github.com/trezcool/madrasa/services/logger"
	queuesvc "github.com/trezcool/madrasa/services/queue"
	"github.com/trezcool/madrasa/storage/database"
	sqlxrepos "github.com/trezcool/madrasa/storage/database/sqlx"
)

type (
	Repositories struct {
		Users         user.Repository
		Bookings      booking.Repository
		Payments      payment.Repository
		Chats         chat.Repository
		Notifications notification.Repository
		Certificates  certificate.Repository
		Stats         certificate.StatsProvider
		Points        points.Repository
		FailedJobs    core.FailedJobRepository
	}

	Deps struct {
		Conf        *core.Config
		Logger      core.Logger
		Repos       Repositories
		Queue       core.JobQueue
		Mail        core.EmailService
		Broadcaster notification.Broadcaster // optional
	}

	Container struct {
		Conf       *core.Config
		Logger     core.Logger
		Queue      core.JobQueue
		FailedJobs core.FailedJobRepository
		Dispatcher *events.Dispatcher
		Runner     *queuesvc.Runner

		Users         *user.Service
		Bookings      *booking.Service
		Chats         *chat.Service
		Payments      *payment.Service
		Notifications *notification.Service
		Certificates  *certificate.Service
		Points        *points.Service
	}
)

// SQLRepositories returns the Postgres repositories.
func SQLRepositories(db core.DB) Repositories {
	certs := sqlxrepos.NewCertificateRepository(db)
	return Repositories{
		Users:         sqlxrepos.NewUserRepository(db),
		Bookings:      sqlxrepos.NewBookingRepository(db),
		Payments:      sqlxrepos.NewPaymentRepository(db),
		Chats:         sqlxrepos.NewChatRepository(db),
		Notifications: sqlxrepos.NewNotificationRepository(db),
		Certificates:  certs,
		Stats:         certs,
		Points:        sqlxrepos.NewPointsRepository(db),
		FailedJobs:    sqlxrepos.NewFailedJobRepository(db),
	}
}

// New builds the services and the fan-out table, and the runner executing its queued listeners.
//
// The certificate service publishes through the queue rather than the dispatcher:
// the dispatcher's table already depends on it.
func New(deps Deps) (*Container, error) {
	conf, logger, repos := deps.Conf, deps.Logger, deps.Repos

	c := &Container{
		Conf:       conf,
		Logger:     logger,
		Queue:      deps.Queue,
		FailedJobs: repos.FailedJobs,
	}
	c.Users = user.NewService(repos.Users)
	c.Bookings = booking.NewService(repos.Bookings, logger)
	c.Chats = chat.NewService(repos.Chats, logger)
	c.Notifications = notification.NewService(repos.Notifications, deps.Broadcaster, logger)

	policy := certificate.Policy{
		MinPoints:        conf.Certificate.MinPoints,
		MinApprovedWorks: conf.Certificate.MinApprovedWorks,
		MinBadges:        conf.Certificate.MinBadges,
	}
	c.Certificates = certificate.NewService(repos.Certificates, repos.Stats, policy, events.NewQueuedPublisher(deps.Queue), logger)

	table := fanout.NewTable(fanout.Deps{
		Users:         c.Users,
		Notifications: c.Notifications,
		Certificates:  c.Certificates,
		Mail:          deps.Mail,
	})
	dispatcher, err := events.NewDispatcher(table, deps.Queue, logger)
	if err != nil {
		return nil, errors.Wrap(err, "building event dispatcher")
	}
	c.Dispatcher = dispatcher

	c.Payments = payment.NewService(repos.Payments, c.Bookings, c.Chats, dispatcher, logger)
	c.Points = points.NewService(repos.Points, dispatcher, logger)
	c.Runner = queuesvc.NewRunner(dispatcher.JobHandlers(), repos.FailedJobs, conf.Queue.RetryDelay, logger)
	return c, nil
}

// NewLogger returns a rollbar logger printing to stdout under prefix, e.g. "API : ".
func NewLogger(conf *core.Config, prefix string) *logsvc.RollbarLogger {
	return logsvc.NewRollbarLogger(
		log.New(os.Stdout, prefix, log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
}

// NewEmailService prints emails in debug mode and sends them through SendGrid otherwise.
func NewEmailService(conf *core.Config) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(log.New(os.Stdout, "MAIL : ", log.LstdFlags), conf)
	}
	return emailsvc.NewSendgridService(conf)
}

// SetUpDB creates the database and its role when missing, then opens it and applies the migrations.
func SetUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
