package cmd

import (
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/flowtrack/flowgate/pkg/identity"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current user",
	Long: `Fetches the current user from the dashboard API's /me endpoint, retrying
transient failures. A 401 or 403 means no session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newIdentityClient(cmd)
		if err != nil {
			return err
		}

		user, err := c.FetchCurrentUser(cmd.Context())
		switch {
		case errors.Is(err, identity.ErrUnauthenticated):
			pterm.Warning.Println("Not signed in.")
			return err
		case errors.Is(err, identity.ErrTransient):
			return fmt.Errorf("identity service unavailable after %d attempt(s): %w", retries, err)
		case err != nil:
			return err
		}

		pterm.DefaultSection.Println("Current User")
		pterm.Info.Printf("ID:    %s\n", user.ID)
		pterm.Info.Printf("Email: %s\n", user.Email)
		if user.Name != "" {
			pterm.Info.Printf("Name:  %s\n", user.Name)
		}
		pterm.Info.Printf("Role:  %s\n", user.Role)
		if !user.Role.Valid() {
			pterm.Warning.Printf("Role %q is not one of the built-in roles\n", user.Role)
		}

		if len(user.Workspaces) > 0 {
			pterm.DefaultSection.Println("Workspaces")
			table := pterm.TableData{{"ID", "NAME", "SLUG"}}
			for _, ws := range user.Workspaces {
				table = append(table, []string{ws.ID, ws.Name, ws.Slug})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
		}
		return nil
	},
}
