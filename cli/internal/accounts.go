package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/gatekeeper/internal/client"
)

func newAccountsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"account"},
		Short:   "Account management commands",
		Long:    `List, inspect and disable accounts on the gatekeeper server.`,
	}

	cmd.AddCommand(newAccountsListCommand())
	cmd.AddCommand(newAccountsShowCommand())
	cmd.AddCommand(newAccountsDisableCommand())

	return cmd
}

func newAccountsListCommand() *cobra.Command {
	var (
		role     string
		disabled string
		search   string
		limit    int
		offset   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := client.ListAccountsOptions{
				Limit:  limit,
				Offset: offset,
				Role:   role,
				Search: search,
			}
			switch disabled {
			case "":
			case "true", "false":
				value := disabled == "true"
				opts.Disabled = &value
			default:
				return fmt.Errorf("invalid --disabled value %q (must be true or false)", disabled)
			}

			cliCtx := getCliContext(cmd)
			accounts, total, err := cliCtx.Client.ListAccounts(cmd.Context(), opts)
			if err != nil {
				return loginHint(err)
			}

			if len(accounts) == 0 {
				fmt.Println("No accounts found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tNAME\tROLE\tDISABLED\tCREATED\tLAST LOGIN")
			for _, account := range accounts {
				disabledMark := ""
				if account.Disabled {
					disabledMark = "yes"
				}
				lastLogin := "-"
				if account.LastLoginAt != nil {
					lastLogin = account.LastLoginAt.Local().Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					account.ID,
					account.Username,
					account.DisplayName,
					account.Role,
					disabledMark,
					account.CreatedAt.Local().Format("2006-01-02"),
					lastLogin,
				)
			}
			w.Flush()

			if int64(len(accounts)) < total {
				fmt.Printf("\nShowing %d of %d accounts (use --limit and --offset to page)\n", len(accounts), total)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "Filter by role (user, admin)")
	cmd.Flags().StringVar(&disabled, "disabled", "", "Filter by disabled state (true, false)")
	cmd.Flags().StringVar(&search, "search", "", "Search usernames and display names")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of accounts to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of accounts to skip")

	return cmd
}

func newAccountsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show ACCOUNT_ID",
		Short: "Show one account with its linked identities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			account, err := cliCtx.Client.GetAccount(cmd.Context(), args[0])
			if err != nil {
				return loginHint(err)
			}

			var b strings.Builder
			fmt.Fprintf(&b, "## %s (@%s)\n\n", account.DisplayName, account.Username)
			fmt.Fprintf(&b, "- **ID**: %s\n", account.ID)
			fmt.Fprintf(&b, "- **Role**: %s\n", account.Role)
			if account.Email != nil && *account.Email != "" {
				fmt.Fprintf(&b, "- **Email**: %s\n", *account.Email)
			}
			if account.Disabled {
				b.WriteString("- **Status**: disabled\n")
			} else {
				b.WriteString("- **Status**: active\n")
			}
			fmt.Fprintf(&b, "- **Created**: %s\n", account.CreatedAt.Local().Format("2006-01-02 15:04"))
			if account.LastLoginAt != nil {
				fmt.Fprintf(&b, "- **Last login**: %s\n", account.LastLoginAt.Local().Format("2006-01-02 15:04"))
			}

			if len(account.Identities) > 0 {
				b.WriteString("\n### Linked identities\n\n")
				for _, identity := range account.Identities {
					name := identity.DisplayName
					if name == "" {
						name = identity.ProviderUserID
					}
					fmt.Fprintf(&b, "- **%s**: %s (id %s)", identity.Provider, name, identity.ProviderUserID)
					if identity.Email != "" {
						fmt.Fprintf(&b, ", %s", identity.Email)
					}
					if identity.LastLoginAt != nil {
						fmt.Fprintf(&b, ", last login %s", identity.LastLoginAt.Local().Format("2006-01-02"))
					}
					b.WriteString("\n")
				}
			}

			return printMarkdown(b.String())
		},
	}
}

func newAccountsDisableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disable ACCOUNT_ID",
		Short: "Disable an account",
		Long: `Disable an account. The account keeps its identities and history but can
no longer sign in, and its existing sessions stop validating immediately.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			if err := cliCtx.Client.DisableAccount(cmd.Context(), args[0]); err != nil {
				return loginHint(err)
			}

			fmt.Printf("✓ Account %s disabled\n", args[0])
			return nil
		},
	}
}
