package main

import (
	"context"
	"fmt"

	"github.com/trezcool/madrasa/core/user"
)

// addUser creates a user.User, and its teaching profile when asked to.
func (cli *commandLine) addUser(ctx context.Context, name, email string, isAdmin, isTeacher bool) error {
	nu := user.NewUser{Name: name, Email: email, Roles: []string{user.RoleStudent}}
	switch {
	case isAdmin:
		nu.Roles = user.AllRoles
	case isTeacher:
		nu.Roles = []string{user.RoleTeacher}
	}

	usr, err := cli.users.Create(ctx, nu)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user %s created\n", usr.ID)

	if isTeacher {
		teacher, err := cli.users.CreateTeacher(ctx, usr.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "teacher %s created\n", teacher.ID)
	}
	return nil
}
