package access

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var revokeCmd = &cobra.Command{
	Use:   "revoke [role] [page...]",
	Short: "Remove page rules from a role",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := openPolicy(cmd.Context())
		if err != nil {
			return err
		}
		defer bundle.Close()

		role := args[0]
		for _, page := range args[1:] {
			removed, err := bundle.Policy.Revoke(role, page)
			if err != nil {
				return err
			}
			if removed {
				pterm.Success.Printf("Revoked %s on %s\n", role, page)
			} else {
				pterm.Warning.Printf("No rule for %s on %s\n", role, page)
			}
		}
		return nil
	},
}
