package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"myswing/internal/app"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var stdin = bufio.NewReader(os.Stdin)

// readLine reads one line from stdin without its line ending.
func readLine() (string, error) {
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readPassword prompts on stderr. Input is hidden on a terminal and read as
// one line otherwise.
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	line, err := readLine()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return line, nil
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Sign in and out",
}

var authSignupCmd = &cobra.Command{
	Use:   "signup EMAIL",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		remember, _ := cmd.Flags().GetBool("remember")
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		confirm, err := readPassword("Confirm password: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return fmt.Errorf("passwords do not match")
		}

		return withApp(cmd, "SignUp", func(ctx context.Context, a *app.App) error {
			s, err := a.SignUp(ctx, args[0], password, remember)
			if err != nil {
				return err
			}
			if s == nil {
				fmt.Println("Account created. Confirm your email address, then run: myswing auth login")
				return nil
			}
			fmt.Printf("Signed up as %s\n", s.User.Email)
			return nil
		})
	},
}

var authLoginCmd = &cobra.Command{
	Use:   "login EMAIL",
	Short: "Sign in with email and password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		remember, _ := cmd.Flags().GetBool("remember")
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}

		return withApp(cmd, "SignIn", func(ctx context.Context, a *app.App) error {
			s, err := a.SignIn(ctx, args[0], password, remember)
			if err != nil {
				return err
			}
			fmt.Printf("Signed in as %s\n", s.User.Email)
			if !remember {
				fmt.Println("Session not saved; pass --remember to stay signed in.")
			}
			return nil
		})
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "SignOut", func(ctx context.Context, a *app.App) error {
			if err := a.SignOut(ctx); err != nil {
				return err
			}
			fmt.Println("Signed out.")
			return nil
		})
	},
}

var authWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "WhoAmI", func(ctx context.Context, a *app.App) error {
			s := a.Session()
			if s == nil {
				fmt.Println("Not signed in.")
				return nil
			}
			fmt.Printf("Email:   %s\n", s.User.Email)
			fmt.Printf("User ID: %s\n", s.User.ID)
			if !s.ExpiresAt.IsZero() {
				fmt.Printf("Expires: %s\n", s.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		})
	},
}
