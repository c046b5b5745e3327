// ABOUTME: Import and export CLI commands
// ABOUTME: Moves one map with its stakeholders in and out as JSON
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/harperreed/stakemap/sync"
	"github.com/spf13/cobra"
)

func newExportCommand(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export [map-id]",
		Short: "Export a map as JSON (default: current map)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			id, err := a.mapArg(id)
			if err != nil {
				return err
			}
			payload, err := a.engine.ExportData(id)
			if err != nil {
				return fmt.Errorf("failed to export map: %w", err)
			}

			data, err := json.MarshalIndent(payload, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode export: %w", err)
			}
			data = append(data, '\n')

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0600); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d stakeholders to %s\n", len(payload.Stakeholders), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}

func newImportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a map exported with 'stakemap export' (use - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read import: %w", err)
			}

			payload, err := sync.ParseExport(data)
			if err != nil {
				return err
			}
			m, err := a.engine.ImportData(payload)
			if err != nil {
				return fmt.Errorf("failed to import map: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported map: %s (ID: %s) with %d stakeholders\n",
				m.Name, m.ID, len(payload.Stakeholders))
			return nil
		},
	}
}
