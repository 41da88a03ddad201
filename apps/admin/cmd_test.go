package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/booking"
	"github.com/trezcool/madrasa/core/payment"
	"github.com/trezcool/madrasa/core/user"
	"github.com/trezcool/madrasa/tests"
)

func setup(t *testing.T) (*commandLine, *testutil.App, *bytes.Buffer) {
	app := testutil.NewApp(t)
	out := new(bytes.Buffer)

	// start CLI
	cli := &commandLine{
		conf:       app.Conf,
		users:      app.Users,
		payments:   app.Payments,
		points:     app.Points,
		failedJobs: app.FailedJobs,
		flush:      func(ctx context.Context) int { return app.Jobs.Drain(ctx, app.Runner) },
		out:        out,
	}
	return cli, app, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    string
}

func runCLITests(t *testing.T, cli *commandLine, out *bytes.Buffer, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			case tt.wantErrStr != "":
				if assert.Error(t, err) {
					assert.Equal(t, tt.wantErrStr, err.Error())
				}
			default:
				assert.NoError(t, err)
			}
			if tt.wantOut != "" {
				assert.Contains(t, out.String(), tt.wantOut)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _, out := setup(t)

	runCLITests(t, cli, out, []cliTest{
		{name: "no command", wantErr: errHelp, wantOut: "Usage:"},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp, wantOut: "Usage:"},
	})
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, out := setup(t)

	gooseRunFunc = func(db *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	runCLITests(t, cli, out, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "badges", "sql"}},
	})
}

func Test_commandLine_addUser(t *testing.T) {
	cli, app, out := setup(t)

	runCLITests(t, cli, out, []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "email missing", args: []string{"adduser", "-name", "Amina"}, wantErr: errHelp},
		{name: "student", args: []string{"adduser", "-name", "Amina", "-email", "Amina@Test.sa"}, wantOut: "user "},
		{name: "teacher", args: []string{"adduser", "-name", "Yusuf", "-email", "yusuf@test.sa", "-teacher"}, wantOut: "teacher "},
		{name: "admin", args: []string{"adduser", "-name", "Root", "-email", "root@test.sa", "-admin"}, wantOut: "user "},
	})

	// duplicate email
	err := cli.run([]string{"admin", "adduser", "-name", "Other", "-email", "amina@test.sa"})
	var verr *core.ValidationError
	if assert.ErrorAs(t, err, &verr) {
		assert.Equal(t, user.ErrEmailExists, verr.Err)
	}
	assert.Equal(t, 3, app.DB.Writes("users"))
}

func Test_commandLine_completePayment(t *testing.T) {
	cli, app, out := setup(t)
	ctx := context.Background()

	seed := app.SeedBooking(t)
	p, err := app.Payments.Create(ctx, payment.NewPayment{BookingID: seed.Booking.ID, Amount: 15000, Currency: "SAR"})
	require.NoError(t, err)

	runCLITests(t, cli, out, []cliTest{
		{name: "no args", args: []string{"completepayment"}, wantErr: errHelp},
		{name: "payment not found", args: []string{"completepayment", "-id", "lol"}, wantErr: payment.ErrNotFound},
		{name: "complete", args: []string{"completepayment", "-id", p.ID}, wantOut: "payment " + p.ID + " is completed"},
		{name: "complete again", args: []string{"completepayment", "-id", p.ID}, wantOut: "is completed"},
	})

	b, err := app.Bookings.GetByID(ctx, seed.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, b.Status)
	assert.Equal(t, 1, app.DB.RoomCount())
	assert.Equal(t, 0, app.Jobs.Len(), "queued mails are run by the command")
	assert.Len(t, app.Mail.Sent(), 2)
}

func Test_commandLine_awardPoints(t *testing.T) {
	cli, app, out := setup(t)
	usr := testutil.CreateUser(t, app.Repos.Users, "Amina", "amina@test.sa", user.RoleStudent)

	runCLITests(t, cli, out, []cliTest{
		{name: "no args", args: []string{"awardpoints"}, wantErr: errHelp},
		{name: "points missing", args: []string{"awardpoints", "-user", usr.ID}, wantErr: errHelp},
		{name: "negative", args: []string{"awardpoints", "-user", usr.ID, "-points", "-5"}, wantErrStr: "points must be positive"},
		{name: "award", args: []string{"awardpoints", "-user", usr.ID, "-points", "40", "-reason", "quiz"}, wantOut: "now has 40 points"},
		{name: "award more", args: []string{"awardpoints", "-user", usr.ID, "-points", "2"}, wantOut: "now has 42 points"},
	})
}

func Test_commandLine_failedJobs(t *testing.T) {
	cli, app, out := setup(t)

	require.NoError(t, cli.run([]string{"admin", "failedjobs"}))
	assert.Equal(t, "no failed jobs\n", out.String())

	_, err := app.FailedJobs.CreateFailedJob(context.Background(), core.FailedJob{
		ID:       testutil.NewID(),
		JobID:    "job-1",
		Handler:  "mail.badge_granted",
		Attempts: 3,
		Error:    "smtp down",
	})
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, cli.run([]string{"admin", "failedjobs", "-limit", "5"}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "mail.badge_granted")
	assert.Contains(t, lines[1], "smtp down")
}

func Test_commandLine_token(t *testing.T) {
	cli, app, out := setup(t)
	usr := testutil.CreateUser(t, app.Repos.Users, "Amina", "amina@test.sa", user.RoleStudent)

	runCLITests(t, cli, out, []cliTest{
		{name: "no args", args: []string{"token"}, wantErr: errHelp},
		{name: "user not found", args: []string{"token", "-user", "lol"}, wantErr: user.ErrNotFound},
		{name: "token", args: []string{"token", "-user", usr.ID}, wantOut: "."},
	})
}
