package access

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowtrack/flowgate/cmd/flowgate/cmd/cmdutil"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/config"
)

var roleFilter string

// AccessCmd is the parent command for page access rule administration
var AccessCmd = &cobra.Command{
	Use:   "access",
	Short: "Manage page access rules",
	Long: `Commands for managing which dashboard roles may view which pages.
Rules are stored in the database and read by running servers on SIGHUP.`,
}

// openPolicy loads config and the stored page policy, the way every subcommand needs them.
func openPolicy(ctx context.Context) (*cmdutil.AccessBundle, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cmdutil.OpenAccess(ctx, cfg)
}

func init() {
	AccessCmd.AddCommand(grantCmd)
	AccessCmd.AddCommand(revokeCmd)
	AccessCmd.AddCommand(inheritCmd)
	AccessCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&roleFilter, "role", "", "Only list rules granted directly to this role")
	AccessCmd.AddCommand(checkCmd)
}
