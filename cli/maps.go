// ABOUTME: Map CLI commands
// ABOUTME: List, create, rename, delete, and select stakeholder maps
package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/harperreed/stakemap/models"
	"github.com/spf13/cobra"
)

func newMapCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Manage stakeholder maps",
	}
	cmd.AddCommand(
		newMapListCommand(a),
		newMapCreateCommand(a),
		newMapUpdateCommand(a),
		newMapDeleteCommand(a),
		newMapUseCommand(a),
	)
	return cmd
}

func newMapListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List maps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			maps := a.engine.ListMaps()
			if len(maps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No maps found")
				return nil
			}

			current := a.engine.CurrentMapID()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tOWNER\tUPDATED\t")
			for _, m := range maps {
				name := m.Name
				if m.ID == current {
					name = "* " + name
				}
				owner := m.OwnerID
				if owner == "" {
					owner = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", m.ID, name, owner, m.Updated.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}

func newMapCreateCommand(a *app) *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a map",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.engine.CreateMap(models.MapInput{Name: name, Description: description})
			if err != nil {
				return fmt.Errorf("failed to create map: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created map: %s (ID: %s)\n", m.Name, m.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Map name (required)")
	cmd.Flags().StringVar(&description, "description", "", "What the map is for")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newMapUpdateCommand(a *app) *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "update <map-id>",
		Short: "Rename a map or change its description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nameSet := cmd.Flags().Changed("name")
			descSet := cmd.Flags().Changed("description")
			if !nameSet && !descSet {
				return fmt.Errorf("nothing to update: pass --name or --description")
			}

			m, err := a.engine.UpdateMap(args[0], func(m *models.Map) {
				if nameSet {
					m.Name = name
				}
				if descSet {
					m.Description = description
				}
			})
			if err != nil {
				return fmt.Errorf("failed to update map: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated map: %s\n", m.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	return cmd
}

func newMapDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <map-id>",
		Short: "Delete a map and all of its stakeholders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.engine.DeleteMap(args[0]); err != nil {
				return fmt.Errorf("failed to delete map: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted map %s\n", args[0])
			return nil
		},
	}
}

func newMapUseCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "use <map-id>",
		Short: "Select the current map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.engine.SetCurrentMap(args[0]); err != nil {
				return fmt.Errorf("failed to select map: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Current map: %s\n", args[0])
			return nil
		},
	}
}

// mapArg resolves --map, falling back to the current map.
func (a *app) mapArg(id string) (string, error) {
	if id != "" {
		return id, nil
	}
	if current := a.engine.CurrentMapID(); current != "" {
		return current, nil
	}
	return "", fmt.Errorf("no map selected: pass --map or run 'stakemap map use <map-id>'")
}
