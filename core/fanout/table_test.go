package fanout_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/events"
	"github.com/trezcool/madrasa/core/fanout"
	"github.com/trezcool/madrasa/core/notification"
	"github.com/trezcool/madrasa/core/user"
	"github.com/trezcool/madrasa/tests"
)

func listenerNames(d *events.Dispatcher, kind events.Kind) []string {
	var names []string
	for _, l := range d.Listeners(kind) {
		names = append(names, l.Name)
	}
	return names
}

func TestNewTable(t *testing.T) {
	app := testutil.NewApp(t)
	table := fanout.NewTable(fanout.Deps{})

	for _, kind := range events.Kinds {
		assert.NotEmpty(t, table[kind], "%s has listeners", kind)
	}
	assert.Equal(t, []string{
		"notify.booking_confirmed",
		"mail.booking_confirmed.student",
		"mail.booking_confirmed.teacher",
	}, listenerNames(app.Dispatcher, events.KindBookingConfirmed))
	assert.Equal(t, []string{
		"notify.points_awarded",
		"certificate.check",
	}, listenerNames(app.Dispatcher, events.KindPointsAwarded))

	for _, kind := range events.Kinds {
		for _, l := range app.Dispatcher.Listeners(kind) {
			switch l.Name {
			case "certificate.check":
				assert.True(t, l.Queued)
				assert.Equal(t, core.HeavyJobAttempts, l.Attempts)
				assert.Equal(t, core.HeavyJobTimeout, l.Timeout)
			default:
				if l.Queued {
					assert.Equal(t, core.NotificationJobAttempts, l.Attempts, l.Name)
					assert.Equal(t, core.NotificationJobTimeout, l.Timeout, l.Name)
				}
			}
		}
	}
}

func TestTable_bookingConfirmed(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	seed := app.SeedBooking(t)

	ev := events.BookingConfirmed{
		BookingID:     seed.Booking.ID,
		TeacherUserID: seed.TeacherUser.ID,
		StudentID:     seed.Student.ID,
		ConfirmedAt:   time.Now().UTC(),
	}
	require.NoError(t, app.Dispatcher.Dispatch(ctx, ev))

	for _, uid := range []string{seed.Student.ID, seed.TeacherUser.ID} {
		notifs, err := app.Notifications.List(ctx, uid, notification.QueryFilter{})
		require.NoError(t, err)
		if assert.Len(t, notifs, 1) {
			assert.Equal(t, notification.TypeBookingConfirmed, notifs[0].Type)
			data, err := json.Marshal(ev)
			require.NoError(t, err)
			assert.JSONEq(t, string(data), string(notifs[0].Data.JSON))
		}
	}

	// one queued job per mail
	assert.Equal(t, 2, app.Drain(t))
	sent := app.Mail.Sent()
	require.Len(t, sent, 2)
	bySubject := map[string]core.EmailMessage{}
	for _, m := range sent {
		bySubject[m.Subject] = m
	}
	student := bySubject[fanout.SubjectBookingConfirmed]
	if assert.Len(t, student.To, 1) {
		assert.Equal(t, seed.Student.Email, student.To[0].Address)
	}
	assert.Contains(t, student.TextContent, seed.Booking.ID)
	assert.NotEmpty(t, student.HTMLContent)
	teacher := bySubject[fanout.SubjectBookingConfirmedTeacher]
	if assert.Len(t, teacher.To, 1) {
		assert.Equal(t, seed.TeacherUser.Email, teacher.To[0].Address)
	}
}

func TestTable_mailFailureIsIsolated(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, app.Repos.Users, "Amina", "amina@test.sa", user.RoleStudent)

	require.NoError(t, app.Dispatcher.Dispatch(ctx, events.BadgeGranted{UserID: usr.ID, BadgeID: "b1", BadgeName: "حافظ"}))
	count, err := app.Notifications.UnreadCount(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "the in-app notification does not wait for the mail")

	// the mail job gets a second chance; the certificate check runs regardless
	app.Mail.FailNext(1)
	assert.Equal(t, 2, app.Drain(t))
	assert.Len(t, app.Mail.Sent(), 1)

	failed, err := app.FailedJobs.QueryFailedJobs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestTable_mailExhaustsAttempts(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, app.Repos.Users, "Amina", "amina@test.sa", user.RoleStudent)

	require.NoError(t, app.Dispatcher.Dispatch(ctx, events.ArticleApproved{UserID: usr.ID, ArticleID: "a1", ArticleTitle: "التجويد"}))
	app.Mail.FailNext(core.NotificationJobAttempts)
	app.Drain(t)

	assert.Empty(t, app.Mail.Sent())
	failed, err := app.FailedJobs.QueryFailedJobs(ctx, 10)
	require.NoError(t, err)
	if assert.Len(t, failed, 1) {
		assert.Equal(t, "mail.article_approved", failed[0].Handler)
		assert.Equal(t, core.NotificationJobAttempts, failed[0].Attempts)
	}
}

func TestTable_skipsUnreachableRecipients(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	inactive := testutil.CreateUser(t, app.Repos.Users, "Gone", "gone@test.sa", user.RoleStudent)
	inactive.IsActive = false
	inactive.ID = testutil.NewID()
	inactive.Email = "inactive@test.sa"
	_, err := app.Repos.Users.CreateUser(ctx, inactive)
	require.NoError(t, err)

	for _, uid := range []string{inactive.ID, "unknown"} {
		require.NoError(t, app.Dispatcher.Dispatch(ctx, events.ProjectEvaluated{UserID: uid, ProjectID: "p1", Score: 80, Passed: true}))
	}
	app.Drain(t)
	assert.Empty(t, app.Mail.Sent())

	failed, err := app.FailedJobs.QueryFailedJobs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, failed)
}

// failingNotifier fails for one user and records every attempt.
type failingNotifier struct {
	fanout.Notifier
	failFor   string
	attempted []string
}

func (n *failingNotifier) Notify(ctx context.Context, userID, typ string, data interface{}) (notification.Notification, error) {
	n.attempted = append(n.attempted, userID)
	if userID == n.failFor {
		return notification.Notification{}, errors.New("db hiccup")
	}
	return n.Notifier.Notify(ctx, userID, typ, data)
}

func TestTable_notifyReachesEveryRecipient(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	seed := app.SeedBooking(t)

	notifier := &failingNotifier{Notifier: app.Notifications, failFor: seed.Student.ID}
	table := fanout.NewTable(fanout.Deps{Notifications: notifier})
	listeners := table[events.KindBookingConfirmed]
	require.Equal(t, "notify.booking_confirmed", listeners[0].Name)

	ev := events.BookingConfirmed{
		BookingID:     seed.Booking.ID,
		TeacherUserID: seed.TeacherUser.ID,
		StudentID:     seed.Student.ID,
		ConfirmedAt:   time.Now().UTC(),
	}
	err := listeners[0].Handle(ctx, ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notified 1 of 2 recipients")
	assert.Contains(t, err.Error(), "notifying "+seed.Student.ID+": db hiccup")
	assert.ElementsMatch(t, []string{seed.Student.ID, seed.TeacherUser.ID}, notifier.attempted)

	count, err := app.Notifications.UnreadCount(ctx, seed.TeacherUser.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	count, err = app.Notifications.UnreadCount(ctx, seed.Student.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
