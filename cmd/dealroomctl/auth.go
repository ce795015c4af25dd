package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/matheus3301/dealroom/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func init() {
	loginCmd.Flags().StringP("email", "e", "", "account email")
	registerCmd.Flags().String("name", "", "display name")
	registerCmd.Flags().StringP("email", "e", "", "account email")
	registerCmd.Flags().String("role", "buyer", "buyer or seller")
	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the token for this session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, false, func(ctx context.Context, e *env) error {
			email, _ := cmd.Flags().GetString("email")
			email, password, err := readCredentials(email)
			if err != nil {
				return err
			}
			s, err := e.manager.SignIn(ctx, email, password)
			if err != nil {
				return err
			}
			return printSession(s)
		})
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign it in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, false, func(ctx context.Context, e *env) error {
			name, _ := cmd.Flags().GetString("name")
			role, _ := cmd.Flags().GetString("role")
			email, _ := cmd.Flags().GetString("email")
			email, password, err := readCredentials(email)
			if err != nil {
				return err
			}
			s, err := e.manager.Register(ctx, name, email, password, role)
			if err != nil {
				return err
			}
			return printSession(s)
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, false, func(ctx context.Context, e *env) error {
			s, err := e.manager.Restore(ctx)
			if err != nil && !errors.Is(err, session.ErrNotSignedIn) {
				return err
			}
			if err := e.manager.SignOut(ctx, s); err != nil {
				return err
			}
			fmt.Printf("Signed out of session %q.\n", e.name)
			return nil
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			return printSession(e.session)
		})
	},
}

func printSession(s *session.Session) error {
	if flagJSON {
		return printJSON(s.User)
	}
	fmt.Printf("Session: %s\n", s.Name)
	fmt.Printf("User:    %s <%s>\n", s.DisplayName(), s.Email())
	if s.User.Role != "" {
		fmt.Printf("Role:    %s\n", s.User.Role)
	}
	return nil
}

// readCredentials prompts for what is missing. The password is read
// without echo when stdin is a terminal.
func readCredentials(email string) (string, string, error) {
	in := bufio.NewReader(os.Stdin)
	if email == "" {
		fmt.Fprint(os.Stderr, "Email: ")
		line, err := in.ReadString('\n')
		if err != nil {
			return "", "", fmt.Errorf("read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}

	fmt.Fprint(os.Stderr, "Password: ")
	var password string
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", "", fmt.Errorf("read password: %w", err)
		}
		password = string(b)
	} else {
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return "", "", fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	return email, password, nil
}
