package main

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"shirly.shop/app/pkg/view"
)

// readSecret takes the flag value or the first line of stdin.
func (a *app) readSecret(flagValue, prompt string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(a.errOut, prompt)
	line, err := bufio.NewReader(a.in).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" && err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return line, nil
}

func loginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := a.readSecret(password, "Password: ")
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			return a.auth.Login(ctx, email, pw)
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (read from stdin when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func signupCmd(a *app) *cobra.Command {
	var in view.SignupRequest
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := a.readSecret(in.Password, "Password: ")
			if err != nil {
				return err
			}
			in.Password = pw
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			return a.auth.Signup(ctx, in)
		},
	}
	cmd.Flags().StringVarP(&in.Email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&in.Password, "password", "p", "", "password (read from stdin when omitted)")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "last name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			if err := a.auth.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(a.errOut, "Logged out.")
			return nil
		},
	}
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			if err := a.auth.Refresh(ctx); err != nil {
				return err
			}
			u, _ := a.auth.User()
			return a.emit(u, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "id\t%s\n", u.ID)
				fmt.Fprintf(w, "email\t%s\n", u.Email)
				fmt.Fprintf(w, "name\t%s\n", strings.TrimSpace(u.FirstName+" "+u.LastName))
				fmt.Fprintf(w, "role\t%s\n", u.Role)
			})
		},
	}
}
