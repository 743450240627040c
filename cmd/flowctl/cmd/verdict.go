package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var verdictCmd = &cobra.Command{
	Use:     "verdict [path...]",
	Short:   "Ask the gate how it routes paths",
	Example: `  flowctl verdict /leads /login --access-token abc --onboarded`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table := pterm.TableData{{"PATH", "CLASS", "AUTHENTICATED", "ONBOARDED", "VERDICT", "LOCATION"}}
		for _, path := range args {
			v, err := provider.Verdict(cmd.Context(), path)
			if err != nil {
				return err
			}
			location := v.Location
			if location == "" {
				location = "-"
			}
			table = append(table, []string{
				v.Path,
				v.Class,
				pterm.Sprint(v.Authenticated),
				pterm.Sprint(v.OnboardingComplete),
				v.Verdict,
				location,
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
	},
}
