package main

import (
	"errors"
	"fmt"

	"github.com/DoctorGattino/blog/types"

	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var creds types.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			user, err := a.cache.Login(cmd.Context(), creds)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", user.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&creds.Email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var reg types.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			user, err := a.cache.Register(cmd.Context(), reg)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s\n", user.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&reg.Username, "username", "", "public username (3-20 characters)")
	cmd.Flags().StringVar(&reg.Email, "email", "", "account email")
	cmd.Flags().StringVar(&reg.Password, "password", "", "password (6-40 characters)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			if err := a.cache.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			user, ok := a.session.User()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			if remote {
				current, err := a.api.CurrentUser(cmd.Context())
				if err != nil {
					return describe(err)
				}
				user = current
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", user.Username, user.Email)
			if user.Image != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "avatar: %s\n", user.Image)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "confirm the session against the server")
	return cmd
}

func newProfileCmd(a *app) *cobra.Command {
	var update types.ProfileUpdate
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update username, email, password or avatar",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			current, ok := a.session.User()
			if !ok {
				return describe(types.ErrUnauthenticated)
			}
			if update.Username == "" {
				update.Username = current.Username
			}
			if update.Email == "" {
				update.Email = current.Email
			}
			user, err := a.cache.UpdateUser(cmd.Context(), update)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile saved for %s\n", user.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&update.Username, "username", "", "new username")
	cmd.Flags().StringVar(&update.Email, "email", "", "new email")
	cmd.Flags().StringVar(&update.Password, "password", "", "new password")
	cmd.Flags().StringVar(&update.Image, "image", "", "avatar URL")
	return cmd
}

// describe rewrites error kinds into something actionable on the command line
func describe(err error) error {
	var ve *types.ValidationError
	switch {
	case errors.As(err, &ve):
		return ve
	case errors.Is(err, types.ErrUnauthenticated):
		return fmt.Errorf("%w: run 'blog login' first", err)
	case errors.Is(err, types.ErrNotFound):
		return fmt.Errorf("%w: the article no longer exists", err)
	case errors.Is(err, types.ErrTransportFailure):
		return fmt.Errorf("%w: is the API reachable?", err)
	default:
		return err
	}
}
