// Package testutil builds the services on top of the in-memory storage, and seeds it.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/madrasa/apps/container"
	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/booking"
	"github.com/trezcool/madrasa/core/user"
	appfs "github.com/trezcool/madrasa/fs"
	emailsvc "github.com/trezcool/madrasa/services/email"
	logsvc "github.com/trezcool/madrasa/services/logger"
	queuesvc "github.com/trezcool/madrasa/services/queue"
	"github.com/trezcool/madrasa/storage/database/inmem"
)

// App is the whole service stack over the in-memory storage. Queued jobs wait in Jobs until Drain.
type App struct {
	*container.Container
	Repos  container.Repositories
	DB     *inmemdb.DB
	Jobs   *queuesvc.Memory
	Mail   *emailsvc.ConsoleServiceMock
	Logger *logsvc.RecordingLogger
}

// InmemRepositories returns the repositories of the in-memory storage.
func InmemRepositories(db *inmemdb.DB) container.Repositories {
	certs := inmemdb.NewCertificateRepository(db)
	return container.Repositories{
		Users:         inmemdb.NewUserRepository(db),
		Bookings:      inmemdb.NewBookingRepository(db),
		Payments:      inmemdb.NewPaymentRepository(db),
		Chats:         inmemdb.NewChatRepository(db),
		Notifications: inmemdb.NewNotificationRepository(db),
		Certificates:  certs,
		Stats:         certs,
		Points:        inmemdb.NewPointsRepository(db),
		FailedJobs:    inmemdb.NewFailedJobRepository(db),
	}
}

func NewTestConfig() *core.Config {
	conf := core.NewTestConfig()
	conf.Debug = false
	conf.Queue.RetryDelay = time.Millisecond
	return conf
}

func NewApp(t *testing.T, conf ...*core.Config) *App {
	t.Helper()

	cfg := NewTestConfig()
	if len(conf) > 0 {
		cfg = conf[0]
	}
	if err := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, true /* strict */); err != nil {
		t.Fatalf("ParseEmailTemplates() failed: %v", err)
	}

	db := inmemdb.Open()
	app := &App{
		Repos:  InmemRepositories(db),
		DB:     db,
		Jobs:   queuesvc.NewMemory(),
		Mail:   emailsvc.NewConsoleServiceMock(cfg),
		Logger: logsvc.NewNopLogger(),
	}
	c, err := container.New(container.Deps{
		Conf:   cfg,
		Logger: app.Logger,
		Repos:  app.Repos,
		Queue:  app.Jobs,
		Mail:   app.Mail,
	})
	if err != nil {
		t.Fatalf("container.New() failed: %v", err)
	}
	app.Container = c
	return app
}

// Drain runs the queued jobs, and the ones they enqueue, to completion.
func (app *App) Drain(t *testing.T) int {
	t.Helper()
	return app.Jobs.Drain(context.Background(), app.Runner)
}

func CreateUser(t *testing.T, repo user.Repository, name, email string, roles ...string) user.User {
	t.Helper()

	now := time.Now().UTC()
	if roles == nil {
		roles = []string{}
	}
	usr, err := repo.CreateUser(context.Background(), user.User{
		ID:        NewID(),
		Name:      name,
		Email:     email,
		IsActive:  true,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateTeacher(t *testing.T, repo user.Repository, usr user.User) user.Teacher {
	t.Helper()

	teacher, err := repo.CreateTeacher(context.Background(), user.Teacher{
		ID:        NewID(),
		UserID:    usr.ID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateTeacher() failed: %v", err)
	}
	return teacher
}

func CreateBooking(t *testing.T, repo booking.Repository, teacherID, studentID string) booking.Booking {
	t.Helper()

	now := time.Now().UTC()
	b, err := repo.CreateBooking(context.Background(), booking.Booking{
		ID:        NewID(),
		TeacherID: teacherID,
		StudentID: studentID,
		Status:    booking.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateBooking() failed: %v", err)
	}
	return b
}

// Seed is a booking between a teacher and a student, all persisted.
type Seed struct {
	Student     user.User
	TeacherUser user.User
	Teacher     user.Teacher
	Booking     booking.Booking
}

// SeedBooking creates a student, a teacher and a pending booking between them.
func (app *App) SeedBooking(t *testing.T) Seed {
	t.Helper()
	repo, bookings := app.Repos.Users, app.Repos.Bookings

	var s Seed
	tag := NewID()[:8]
	s.Student = CreateUser(t, repo, "طالب", "student-"+tag+"@test.sa", user.RoleStudent)
	s.TeacherUser = CreateUser(t, repo, "أستاذ", "teacher-"+tag+"@test.sa", user.RoleTeacher)
	s.Teacher = CreateTeacher(t, repo, s.TeacherUser)
	s.Booking = CreateBooking(t, bookings, s.Teacher.ID, s.Student.ID)
	return s
}

func NewID() string {
	return uuid.NewString()
}
