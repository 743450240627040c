package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/flowtrack/flowgate/pkg/guard"
	"github.com/flowtrack/flowgate/pkg/identity"
)

var (
	guardPage     string
	guardRoles    string
	guardFallback string
	guardWatch    time.Duration
)

var guardCmd = &cobra.Command{
	Use:   "guard",
	Short: "Run a page's role guard against the live /me endpoint",
	Long: `Mounts the client role guard for a page and prints each decision. Permitted
roles come from --roles or, when omitted, from the gate's page access rules.
With --watch the user is re-fetched on that interval until interrupted.`,
	Example: `  flowctl guard --page /settings --access-token abc
  flowctl guard --roles admin,owner --watch 30s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		permitted, err := resolvePermitted(ctx)
		if err != nil {
			return err
		}
		pterm.Info.Printf("Permitted roles: %s\n", permitted)

		c, err := newIdentityClient(cmd)
		if err != nil {
			return err
		}
		store := identity.NewStore(c, logger.Named("store"))

		nav := guard.NavigatorFunc(func(path string) {
			pterm.Warning.Printf("redirect -> %s\n", path)
		})
		g := guard.New(store, nav, permitted,
			guard.WithFallbackRoute(guardFallback),
			guard.WithLogger(logger.Named("guard")),
		)

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		render := func(d guard.Decision) {
			switch d.State {
			case guard.StateLoading:
				pterm.Info.Println("loading current user")
				return
			case guard.StateAuthorized:
				pterm.Success.Printf("authorized as %s (%s)\n", d.User.Email, d.User.Role)
			default:
				pterm.Error.Println(d.State)
			}
			if guardWatch <= 0 {
				cancel()
			}
		}

		if guardWatch > 0 {
			go poll(runCtx, store, guardWatch)
		}
		return g.Run(runCtx, render)
	},
}

// resolvePermitted prefers an explicit role list over the gate's rules.
func resolvePermitted(ctx context.Context) (guard.RoleSet, error) {
	if guardRoles != "" {
		return guard.ParseRoles(guardRoles), nil
	}
	if guardPage == "" {
		return nil, fmt.Errorf("either --page or --roles is required")
	}
	roles, err := provider.PermittedRoles(ctx, guardPage)
	if err != nil {
		return nil, fmt.Errorf("fetch permitted roles for %s: %w", guardPage, err)
	}
	return guard.Roles(roles...), nil
}

// poll invalidates the cached user on every tick; the mounted guard fetches
// it again and re-evaluates against the fresh /me response.
func poll(ctx context.Context, store *identity.Store, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.Invalidate()
		}
	}
}

func init() {
	guardCmd.Flags().StringVar(&guardPage, "page", "", "Page whose access rules to load from the gate")
	guardCmd.Flags().StringVar(&guardRoles, "roles", "", "Comma separated permitted roles; overrides --page")
	guardCmd.Flags().StringVar(&guardFallback, "fallback", guard.DefaultFallbackRoute, "Redirect for unauthenticated users")
	guardCmd.Flags().DurationVar(&guardWatch, "watch", 0, "Re-fetch the user on this interval instead of exiting")
}
