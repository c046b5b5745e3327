// ABOUTME: Sync CLI command
// ABOUTME: Signs in as --user and reports what the reconciliation moved
package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/harperreed/stakemap/sync"
	"github.com/spf13/cobra"
)

func newSyncCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile local maps with the cloud for --user",
		Long: `Signs in as --user and reconciles.

If the user has maps in the cloud they replace the local copy. Otherwise
anonymous local maps are attached to the user and uploaded. Failed uploads
are listed and retried by running sync again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.HasCloud() {
				return errNoCloud
			}
			if a.userID == "" {
				return fmt.Errorf("--user is required")
			}
			// Every process starts signed out, so the root's sign-in ran a
			// full reconciliation.
			result := a.login
			printReconcile(cmd.OutOrStdout(), result)
			if result.Partial {
				return fmt.Errorf("sync incomplete: %d writes failed", len(result.Failed))
			}
			return nil
		},
	}
}

func printReconcile(w io.Writer, r *sync.ReconcileResult) {
	switch r.Mode {
	case sync.ModePromotion:
		fmt.Fprintf(w, "Uploaded %d maps and %d stakeholders for %s\n",
			len(r.PromotedMaps), len(r.PromotedStakeholders), r.UserID)
	case sync.ModePull:
		fmt.Fprintf(w, "Downloaded %d maps and %d stakeholders for %s\n",
			r.PulledMaps, r.PulledStakeholders, r.UserID)
	default:
		fmt.Fprintf(w, "Nothing to sync for %s\n", r.UserID)
	}

	for _, id := range r.Skipped {
		fmt.Fprintf(w, "  skipped %s (owned by another user)\n", id)
	}

	ids := make([]string, 0, len(r.Failed))
	for id := range r.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "  failed %s: %v\n", id, r.Failed[id])
	}
}
