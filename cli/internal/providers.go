package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// newProvidersCommand lists the login providers configured on the server
func newProvidersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the login providers configured on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			providers, err := cliCtx.Client.ListProviders(cmd.Context())
			if err != nil {
				return loginHint(err)
			}

			if len(providers) == 0 {
				fmt.Println("No providers configured")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "NAME\tKIND")
			for _, p := range providers {
				fmt.Fprintf(w, "%s\t%s\n", p.Name, p.Kind)
			}
			w.Flush()

			return nil
		},
	}
}
