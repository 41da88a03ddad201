package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/payment"
	"github.com/trezcool/madrasa/core/points"
	"github.com/trezcool/madrasa/core/user"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf       *core.Config
	db         *sqlx.DB
	users      *user.Service
	payments   *payment.Service
	points     *points.Service
	failedJobs core.FailedJobRepository
	// flush runs the jobs a command queued; nil when a worker consumes them.
	flush func(ctx context.Context) int
	out   io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  adduser -name NAME -email EMAIL [-admin] [-teacher] - create a user")
	fmt.Fprintln(cli.out, "  completepayment -id PAYMENT_ID - mark a payment completed and finalize its booking")
	fmt.Fprintln(cli.out, "  awardpoints -user USER_ID -points N [-reason REASON] - credit points to a user")
	fmt.Fprintln(cli.out, "  failedjobs [-limit N] - list the jobs that exhausted their attempts")
	fmt.Fprintln(cli.out, "  token -user USER_ID - print an API token for the user")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		cmd := cli.newFlagSet("adduser")
		name := cmd.String("name", "", "The user's full name.")
		email := cmd.String("email", "", "The user's email.")
		isAdmin := cmd.Bool("admin", false, "Grant every role.")
		isTeacher := cmd.Bool("teacher", false, "Create a teaching profile.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *name == "" || *email == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.addUser(ctx, *name, *email, *isAdmin, *isTeacher)

	case "completepayment":
		cmd := cli.newFlagSet("completepayment")
		id := cmd.String("id", "", "The payment ID.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *id == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.completePayment(ctx, *id)

	case "awardpoints":
		cmd := cli.newFlagSet("awardpoints")
		uid := cmd.String("user", "", "The user ID.")
		pts := cmd.Int("points", 0, "The number of points.")
		reason := cmd.String("reason", "", "Why the points are awarded.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *uid == "" || *pts == 0 {
			cmd.Usage()
			return errHelp
		}
		return cli.awardPoints(ctx, *uid, *pts, *reason)

	case "failedjobs":
		cmd := cli.newFlagSet("failedjobs")
		limit := cmd.Int("limit", 20, "The number of jobs to list, newest first.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.listFailedJobs(ctx, *limit)

	case "token":
		cmd := cli.newFlagSet("token")
		uid := cmd.String("user", "", "The user ID.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *uid == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.printToken(ctx, *uid)

	default:
		cli.printUsage()
		return errHelp
	}
}

// flushJobs runs what the command queued, when no worker is there to do it.
func (cli *commandLine) flushJobs(ctx context.Context) {
	if cli.flush == nil {
		return
	}
	if n := cli.flush(ctx); n > 0 {
		fmt.Fprintf(cli.out, "%d job(s) run\n", n)
	}
}
