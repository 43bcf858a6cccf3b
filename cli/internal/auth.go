package cli

import (
	"fmt"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// formatDuration formats a duration in a human-friendly way (e.g., "2 days, 3 hours, 45 minutes")
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string
	if days > 0 {
		if days == 1 {
			parts = append(parts, "1 day")
		} else {
			parts = append(parts, fmt.Sprintf("%d days", days))
		}
	}
	if hours > 0 {
		if hours == 1 {
			parts = append(parts, "1 hour")
		} else {
			parts = append(parts, fmt.Sprintf("%d hours", hours))
		}
	}
	if minutes > 0 {
		if minutes == 1 {
			parts = append(parts, "1 minute")
		} else {
			parts = append(parts, fmt.Sprintf("%d minutes", minutes))
		}
	}
	if len(parts) == 0 && seconds > 0 {
		if seconds == 1 {
			parts = append(parts, "1 second")
		} else {
			parts = append(parts, fmt.Sprintf("%d seconds", seconds))
		}
	}
	if len(parts) == 0 {
		return "0 seconds"
	}

	// Join parts with commas and "and" for the last one
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	// For 3+ parts, join all but last with ", " and add "and" before last
	result := ""
	for i := 0; i < len(parts)-1; i++ {
		if i > 0 {
			result += ", "
		}
		result += parts[i]
	}
	result += " and " + parts[len(parts)-1]
	return result
}

func newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication commands",
		Long:  `Manage authentication for the gatekeeper CLI`,
	}

	cmd.AddCommand(newAuthLoginCommand())
	cmd.AddCommand(newAuthLogoutCommand())
	cmd.AddCommand(newAuthStatusCommand())
	cmd.AddCommand(newAuthTokenCommand())

	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	var (
		username string
		password string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to the gatekeeper server",
		Long: `Authenticate with the gatekeeper server using a local username and password.

Only local password accounts can log in here. Accounts created through a
social provider sign in with the browser and have no password; bootstrap a
local admin with 'server account create' on the host.

Examples:
  # Prompt for username and password
  gatekeeper auth login

  # Login with a known username, prompt for the password
  gatekeeper auth login --username admin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if username == "" || password == "" {
				username, password, err = promptCredentials()
				if err != nil {
					return err
				}
			}

			cliCtx := getCliContext(cmd)
			result, err := cliCtx.Client.Login(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}

			// Store credentials
			creds := &Credentials{
				AccessToken: result.Token,
				AccountID:   result.Account.ID,
				Username:    result.Account.Username,
				Role:        string(result.Account.Role),
				ExpiresAt:   result.ExpiresAt,
			}

			if err := SaveCredentials(creds); err != nil {
				return fmt.Errorf("failed to save credentials: %w", err)
			}

			fmt.Printf("✓ Successfully logged in as %s\n", result.Account.Username)
			fmt.Printf("  Token expires: %s\n", result.ExpiresAt.Local().Format("2006-01-02 15:04:05"))

			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username for local auth (if not provided, will prompt)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password for local auth (if not provided, will prompt)")

	return cmd
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Logout from the gatekeeper server",
		Long:  `Remove the stored credentials for the current context`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := LoadCredentials(); err != nil {
				return err
			}

			// Admin tokens are not tracked server-side, so removing the
			// file is all there is; the token ages out on its own
			if err := RemoveCredentials(); err != nil {
				return fmt.Errorf("failed to remove credentials: %w", err)
			}

			fmt.Println("✓ Successfully logged out")
			return nil
		},
	}
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := LoadCredentials()
			if err != nil {
				fmt.Println("Not logged in")
				return nil
			}

			fmt.Printf("Logged in as: %s\n", creds.Username)
			fmt.Printf("Account ID: %s\n", creds.AccountID)
			if creds.Role != "" {
				fmt.Printf("Role: %s\n", creds.Role)
			}

			// Show expiry in local timezone
			localExpiry := creds.ExpiresAt.Local()
			fmt.Printf("Token expires: %s\n", localExpiry.Format("2006-01-02 15:04:05 MST"))

			// Calculate and show time until expiration
			now := time.Now()
			if creds.IsExpired() {
				duration := now.Sub(creds.ExpiresAt)
				fmt.Printf("⚠  Token expired %s ago - run 'gatekeeper auth login' to get a new one\n", formatDuration(duration))
			} else {
				duration := creds.ExpiresAt.Sub(now)
				fmt.Printf("✓  Valid for %s\n", formatDuration(duration))
			}

			return nil
		},
	}
}

func newAuthTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Display the current access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := LoadCredentials()
			if err != nil {
				return err
			}

			fmt.Println(creds.AccessToken)
			return nil
		},
	}
}

// newWhoamiCommand asks the server to introspect the stored token, which
// also proves the token still validates
func newWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show who the server thinks you are",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			info, err := cliCtx.Client.CurrentToken(cmd.Context())
			if err != nil {
				return loginHint(err)
			}

			fmt.Printf("Username: %s\n", info.Username)
			if info.DisplayName != "" {
				fmt.Printf("Display name: %s\n", info.DisplayName)
			}
			fmt.Printf("Account ID: %s\n", info.AccountID)
			fmt.Printf("Role: %s\n", info.Role)
			fmt.Printf("Token ID: %s\n", info.TokenID)
			return nil
		},
	}
}

func promptCredentials() (username, password string, err error) {
	// Get username
	fmt.Print("Username: ")
	_, err = fmt.Scanln(&username)
	if err != nil {
		return "", "", fmt.Errorf("failed to read username: %w", err)
	}

	// Get password (hidden)
	fmt.Print("Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // newline after password input
	if err != nil {
		return "", "", fmt.Errorf("failed to read password: %w", err)
	}

	password = string(passwordBytes)
	return username, password, nil
}
