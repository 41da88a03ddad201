package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"
)

func (cli *commandLine) listFailedJobs(ctx context.Context, limit int) error {
	jobs, err := cli.failedJobs.QueryFailedJobs(ctx, limit)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(cli.out, "no failed jobs")
		return nil
	}

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FAILED AT\tHANDLER\tATTEMPTS\tJOB\tERROR")
	for _, fj := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", fj.FailedAt.Format(time.RFC3339), fj.Handler, fj.Attempts, fj.JobID, fj.Error)
	}
	return w.Flush()
}
