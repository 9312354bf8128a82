package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/fieldpro/core"
	"github.com/trezcool/fieldpro/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var name, email, role, businessID string

	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update the one with the same email. The password is prompted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			usr, err := cli.addUser(cmd.Context(), name, email, pwd, role, businessID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s (%s) saved\n", usr.Email, usr.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "the user's name")
	cmd.Flags().StringVar(&email, "email", "", "the user's email")
	cmd.Flags().StringVar(&role, "role", user.RoleAdmin, "admin, business or employee")
	cmd.Flags().StringVar(&businessID, "business", "", "the business id, required for business and employee users")
	return cmd
}

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(ctx context.Context, name, email, pwd, role, businessID string) (user.User, error) {
	if !core.StringIn(role, user.AllRoles...) {
		return user.User{}, errors.Errorf("invalid role %q", role)
	}
	if role != user.RoleAdmin && businessID == "" {
		return user.User{}, errors.Errorf("a %s user needs a business", role)
	}
	if role == user.RoleAdmin {
		businessID = ""
	}

	repos, closeRepos, err := cli.repos(ctx)
	if err != nil {
		return user.User{}, err
	}
	defer closeRepos()

	if businessID != "" {
		if _, err = repos.Businesses.GetBusiness(ctx, businessID); err != nil {
			return user.User{}, err
		}
	}

	email = core.CleanString(email, true /* lower */)
	now := core.Now()
	usr, err := repos.Users.GetUserByEmail(ctx, email)
	exists := err == nil
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return user.User{}, err
		}
		usr = user.User{
			ID:          core.NewID(),
			Email:       email,
			Permissions: []string{},
			CreatedAt:   now,
		}
	}
	if name = core.CleanString(name); name != "" {
		usr.Name = name
	}
	if usr.Name == "" {
		usr.Name = email
	}
	usr.Role = role
	usr.BusinessID = businessID
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return user.User{}, err
	}

	if exists {
		return repos.Users.UpdateUser(ctx, usr)
	}
	return repos.Users.CreateUser(ctx, usr)
}
