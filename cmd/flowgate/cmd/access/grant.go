package access

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var grantCmd = &cobra.Command{
	Use:   "grant [role] [page...]",
	Short: "Let a role view pages",
	Long: `Adds page rules for a role. A trailing * matches everything below it, so
granting a whole section usually needs both "/settings" and "/settings/*".`,
	Example: `  flowgate access grant member /workflows /workflows/*`,
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := openPolicy(cmd.Context())
		if err != nil {
			return err
		}
		defer bundle.Close()

		role := args[0]
		for _, page := range args[1:] {
			if err := bundle.Policy.Grant(role, page); err != nil {
				return fmt.Errorf("failed to grant %s: %w", page, err)
			}
			pterm.Success.Printf("Granted %s on %s\n", role, page)
		}
		return nil
	},
}

var inheritCmd = &cobra.Command{
	Use:     "inherit [role] [parent]",
	Short:   "Let a role view every page its parent can",
	Example: `  flowgate access inherit auditor viewer`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := openPolicy(cmd.Context())
		if err != nil {
			return err
		}
		defer bundle.Close()

		if err := bundle.Policy.Inherit(args[0], args[1]); err != nil {
			return err
		}
		pterm.Success.Printf("%s now inherits %s\n", args[0], args[1])
		return nil
	},
}
