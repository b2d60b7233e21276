package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/doffice/internal/session"
)

func (a *app) loginCmd() *cobra.Command {
	var email, password, googleToken string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password, or with a Google ID token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				s   *session.Session
				err error
			)
			if googleToken != "" {
				s, err = a.sessions.GoogleSignIn(cmd.Context(), googleToken)
			} else {
				if password == "" {
					if password, err = readSecret(cmd, "Password: "); err != nil {
						return err
					}
				}
				s, err = a.sessions.SignIn(cmd.Context(), email, password)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", s.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	cmd.Flags().StringVar(&googleToken, "google-token", "", "Google ID token")
	cmd.MarkFlagsMutuallyExclusive("email", "google-token")
	return cmd
}

func (a *app) signupCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if password == "" {
				if password, err = readSecret(cmd, "Choose a password: "); err != nil {
					return err
				}
			}
			s, err := a.sessions.SignUp(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account created, signed in as %s\n", s.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.sessions.SignOut(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.currentSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if s.Guest() {
				fmt.Fprintln(out, "guest (not signed in)")
				return nil
			}
			fmt.Fprintf(out, "%s (id %d)\n", s.User.Email, s.User.ID)
			if !s.ExpiresAt.IsZero() {
				fmt.Fprintf(out, "token expires %s\n", s.ExpiresAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func (a *app) guestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "guest",
		Short: "Continue without an account; jobs are not kept on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.sessions.EnterGuest(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Using guest mode")
			return nil
		},
	}
}

func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
