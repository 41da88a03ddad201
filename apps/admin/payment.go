package main

import (
	"context"
	"fmt"

	"github.com/trezcool/madrasa/core/payment"
)

func (cli *commandLine) completePayment(ctx context.Context, id string) error {
	p, err := cli.payments.UpdateStatus(ctx, id, payment.StatusCompleted)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "payment %s is %s\n", p.ID, p.Status)
	cli.flushJobs(ctx)
	return nil
}

func (cli *commandLine) awardPoints(ctx context.Context, userID string, pts int, reason string) error {
	_, total, err := cli.points.Award(ctx, userID, pts, reason)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user %s now has %d points\n", userID, total)
	cli.flushJobs(ctx)
	return nil
}
