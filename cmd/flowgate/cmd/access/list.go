package access

import (
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/flowtrack/flowgate/pkg/identity"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List page rules and role inheritance",
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := openPolicy(cmd.Context())
		if err != nil {
			return err
		}
		defer bundle.Close()

		grants, err := bundle.Policy.Grants(roleFilter)
		if err != nil {
			return err
		}
		if len(grants) == 0 {
			pterm.Info.Println("No page rules found.")
		} else {
			table := pterm.TableData{{"ROLE", "PAGE"}}
			for _, g := range grants {
				table = append(table, []string{g.Role, g.Page})
			}
			if err := pterm.DefaultTable.WithHasHeader().WithData(table).Render(); err != nil {
				return err
			}
		}

		edges, err := bundle.Policy.Inheritance()
		if err != nil {
			return err
		}
		if len(edges) > 0 {
			pterm.Println()
			table := pterm.TableData{{"ROLE", "INHERITS"}}
			for _, e := range edges {
				table = append(table, []string{e.Role, e.Parent})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
		}
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check [page]",
	Short: "Show which roles may view a page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := openPolicy(cmd.Context())
		if err != nil {
			return err
		}
		defer bundle.Close()

		roles, err := bundle.Policy.PermittedRoles(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(roles) == 0 {
			pterm.Warning.Printf("No role may view %s\n", args[0])
			return nil
		}
		pterm.Info.Printf("%s: %s\n", args[0], joinRoles(roles))
		return nil
	},
}

func joinRoles(roles []identity.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
