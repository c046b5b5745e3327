// ABOUTME: Usage quota CLI commands
// ABOUTME: Check and record metered calls, set the weekly limit, and grant unlimited access
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/harperreed/stakemap/usage"
	"github.com/spf13/cobra"
)

func newUsageCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Weekly AI call quota",
	}
	cmd.AddCommand(
		newUsageCheckCommand(a),
		newUsageRecordCommand(a),
		newUsageSetLimitCommand(a),
		newUsageGrantCommand(a),
	)
	return cmd
}

// quotaUser picks the explicit user argument, then --user.
func (a *app) quotaUser(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if a.userID != "" {
		return a.userID, nil
	}
	return "", fmt.Errorf("a user id is required: pass it as an argument or use --user")
}

func newUsageCheckCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check [user-id]",
		Short: "Show this week's usage against the limit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limiter, err := a.requireLimiter()
			if err != nil {
				return err
			}
			uid, err := a.quotaUser(args)
			if err != nil {
				return err
			}

			status := limiter.CheckLimit(cmd.Context(), uid)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}

			resets := status.ResetDate.Format("Mon Jan 2 15:04 MST")
			switch {
			case status.Unlimited:
				fmt.Fprintf(out, "%s: %d calls this week (unlimited)\n", uid, status.CurrentUsage)
			case status.HasReachedLimit:
				fmt.Fprintf(out, "%s: %d/%d calls this week, limit reached (resets %s)\n",
					uid, status.CurrentUsage, status.Limit, resets)
			default:
				fmt.Fprintf(out, "%s: %d/%d calls this week (resets %s)\n",
					uid, status.CurrentUsage, status.Limit, resets)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the status as JSON")
	return cmd
}

func newUsageRecordCommand(a *app) *cobra.Command {
	var callType, model string
	var prompt, output int
	cmd := &cobra.Command{
		Use:   "record [user-id]",
		Short: "Record one metered call",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limiter, err := a.requireLimiter()
			if err != nil {
				return err
			}
			uid, err := a.quotaUser(args)
			if err != nil {
				return err
			}
			err = limiter.Run(cmd.Context(), uid, callType, model, func(context.Context) (usage.Tokens, error) {
				return usage.Tokens{Prompt: prompt, Output: output}, nil
			})
			if err != nil {
				return err
			}

			status := limiter.CheckLimit(cmd.Context(), uid)
			if status.Unlimited {
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s call for %s (unlimited)\n", callType, uid)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s call for %s (%d/%d)\n", callType, uid, status.CurrentUsage, status.Limit)
			return nil
		},
	}
	cmd.Flags().StringVar(&callType, "type", "recommendations", "Call type")
	cmd.Flags().StringVar(&model, "model", "", "Model that served the call")
	cmd.Flags().IntVar(&prompt, "prompt-tokens", 0, "Prompt tokens consumed")
	cmd.Flags().IntVar(&output, "output-tokens", 0, "Output tokens produced")
	return cmd
}

func newUsageSetLimitCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-limit <calls-per-week>",
		Short: "Set the weekly call limit for every user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.usageStore == nil {
				return errNoCloud
			}
			limit, err := strconv.Atoi(args[0])
			if err != nil || limit < 0 {
				return fmt.Errorf("invalid limit %q: must be a non-negative integer", args[0])
			}
			if err := a.usageStore.SetWeeklyCallLimit(cmd.Context(), limit); err != nil {
				return fmt.Errorf("failed to set limit: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Weekly limit set to %d\n", limit)
			return nil
		},
	}
}

func newUsageGrantCommand(a *app) *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "grant <user-id>",
		Short: "Give a user unlimited calls",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.usageStore == nil {
				return errNoCloud
			}
			if err := a.usageStore.SetUnlimitedAccess(cmd.Context(), args[0], !revoke); err != nil {
				return fmt.Errorf("failed to update access: %w", err)
			}
			if revoke {
				fmt.Fprintf(cmd.OutOrStdout(), "Revoked unlimited access for %s\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Granted unlimited access to %s\n", args[0])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "Remove unlimited access instead")
	return cmd
}
