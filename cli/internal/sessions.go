package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/gatekeeper/internal/client"
	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
)

func newSessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Browser session management commands",
		Long:    `List and revoke browser sessions on the gatekeeper server.`,
	}

	cmd.AddCommand(newSessionsListCommand())
	cmd.AddCommand(newSessionsRevokeCommand())
	cmd.AddCommand(newSessionsRevokeAllCommand())

	return cmd
}

func newSessionsListCommand() *cobra.Command {
	var (
		accountID string
		active    bool
		limit     int
		offset    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			sessions, err := cliCtx.Client.ListSessions(cmd.Context(), client.ListSessionsOptions{
				Limit:      limit,
				Offset:     offset,
				AccountID:  accountID,
				ActiveOnly: active,
			})
			if err != nil {
				return loginHint(err)
			}

			if len(sessions) == 0 {
				fmt.Println("No sessions found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tACCOUNT\tIP\tCREATED\tEXPIRES\tSTATUS")
			for i := range sessions {
				session := &sessions[i]
				ip := "-"
				if session.IPAddress != nil {
					ip = *session.IPAddress
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					session.ID,
					session.AccountID,
					ip,
					session.CreatedAt.Local().Format("2006-01-02 15:04"),
					session.ExpiresAt.Local().Format("2006-01-02 15:04"),
					sessionStatus(session),
				)
			}
			w.Flush()

			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Only sessions belonging to this account ID")
	cmd.Flags().BoolVar(&active, "active", false, "Only sessions that can still authenticate")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of sessions to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of sessions to skip")

	return cmd
}

// sessionStatus summarizes a session's validity for display
func sessionStatus(session *entities.Session) string {
	switch {
	case session.IsRevoked():
		return "revoked"
	case session.IsExpired():
		return "expired"
	default:
		return "active"
	}
}

func newSessionsRevokeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke SESSION_ID",
		Short: "Revoke one session",
		Long:  `Revoke one browser session. The user is signed out on their next request.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			if err := cliCtx.Client.RevokeSession(cmd.Context(), args[0]); err != nil {
				return loginHint(err)
			}

			fmt.Println("✓ Session revoked")
			return nil
		},
	}
}

func newSessionsRevokeAllCommand() *cobra.Command {
	var accountID string

	cmd := &cobra.Command{
		Use:   "revoke-all",
		Short: "Revoke every session for one account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			revoked, err := cliCtx.Client.RevokeAccountSessions(cmd.Context(), accountID)
			if err != nil {
				return loginHint(err)
			}

			if revoked == 1 {
				fmt.Println("✓ Revoked 1 session")
			} else {
				fmt.Printf("✓ Revoked %d sessions\n", revoked)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account ID whose sessions to revoke")
	cmd.MarkFlagRequired("account")

	return cmd
}
