package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/flowtrack/flowgate/cmd/flowgate/cmd/cmdutil"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/gate"
)

var (
	explainPath          string
	explainAuthenticated bool
	explainOnboarded     bool
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Inspect the route table",
}

var routeExplainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Show the edge verdict for a path",
	Long: `Evaluates the configured edge policy for a path and credential state without
serving any traffic. Useful for checking route table changes before deploying.`,
	Example: `  flowgate route explain --path /leads
  flowgate route explain --path /login --authenticated --onboarded`,
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := cmdutil.NewRouteTable(cfg.Routes)
		if err != nil {
			return err
		}
		targets, err := cmdutil.NewTargets(cfg.Targets)
		if err != nil {
			return err
		}

		v := gate.NewPolicy(table).Evaluate(gate.Input{
			Path:               explainPath,
			Authenticated:      explainAuthenticated,
			OnboardingComplete: explainOnboarded,
		})

		location := "-"
		if !v.IsPass() {
			location = targets.Path(v.Target)
		}

		data := pterm.TableData{
			{"PATH", "CLASS", "AUTHENTICATED", "ONBOARDED", "VERDICT", "REASON", "LOCATION"},
			{
				explainPath,
				string(table.Classify(explainPath)),
				pterm.Sprint(explainAuthenticated),
				pterm.Sprint(explainOnboarded),
				v.Name(),
				string(v.Reason),
				location,
			},
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

func init() {
	routeExplainCmd.Flags().StringVar(&explainPath, "path", "", "Request path to evaluate")
	routeExplainCmd.Flags().BoolVar(&explainAuthenticated, "authenticated", false, "Treat the request as carrying a credential")
	routeExplainCmd.Flags().BoolVar(&explainOnboarded, "onboarded", false, "Treat the onboarding cookie as \"true\"")
	_ = routeExplainCmd.MarkFlagRequired("path")

	routeCmd.AddCommand(routeExplainCmd)
	rootCmd.AddCommand(routeCmd)
}
