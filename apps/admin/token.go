package main

import (
	"context"
	"fmt"

	echoapi "github.com/trezcool/madrasa/apps/api/echo"
)

// printToken mints an API token for the user, for local development.
func (cli *commandLine) printToken(ctx context.Context, userID string) error {
	usr, err := cli.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	token, err := echoapi.GenerateToken(cli.conf, echoapi.GetUserClaims(cli.conf, usr))
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}
