// ABOUTME: Stakeholder and interaction CLI commands
// ABOUTME: Scores are only written when their flags are given so unset stays unset
package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/harperreed/stakemap/handlers"
	"github.com/harperreed/stakemap/models"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newStakeholderCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "stakeholder",
		Aliases: []string{"sh"},
		Short:   "Manage stakeholders in a map",
	}
	cmd.AddCommand(
		newStakeholderListCommand(a),
		newStakeholderAddCommand(a),
		newStakeholderUpdateCommand(a),
		newStakeholderDeleteCommand(a),
	)
	return cmd
}

// stakeholderFlags binds the editable stakeholder fields to a flag set.
type stakeholderFlags struct {
	name          string
	influence     int
	impact        int
	relationship  int
	category      string
	interests     string
	contribution  string
	risk          string
	communication string
	strategy      string
	measurement   string
}

func (f *stakeholderFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "Stakeholder name")
	fs.IntVar(&f.influence, "influence", 0, "Influence score 1-10")
	fs.IntVar(&f.impact, "impact", 0, "Impact score 1-10")
	fs.IntVar(&f.relationship, "relationship", 0, "Relationship score 1-10")
	fs.StringVar(&f.category, "category", "", "Category (default other)")
	fs.StringVar(&f.interests, "interests", "", "What the stakeholder cares about")
	fs.StringVar(&f.contribution, "contribution", "", "What they contribute")
	fs.StringVar(&f.risk, "risk", "", "Risk they pose")
	fs.StringVar(&f.communication, "communication", "", "Preferred communication")
	fs.StringVar(&f.strategy, "strategy", "", "Engagement strategy")
	fs.StringVar(&f.measurement, "measurement", "", "How success is measured")
}

// apply writes every changed flag onto s.
func (f *stakeholderFlags) apply(fs *pflag.FlagSet, s *models.Stakeholder) {
	fs.Visit(func(fl *pflag.Flag) {
		switch fl.Name {
		case "name":
			s.Name = f.name
		case models.FieldInfluence:
			s.Influence = models.Score(f.influence)
		case models.FieldImpact:
			s.Impact = models.Score(f.impact)
		case models.FieldRelationship:
			s.Relationship = models.Score(f.relationship)
		case models.FieldCategory:
			s.Category = f.category
		case models.FieldInterests:
			s.Interests = f.interests
		case models.FieldContribution:
			s.Contribution = f.contribution
		case models.FieldRisk:
			s.Risk = f.risk
		case models.FieldCommunication:
			s.Communication = f.communication
		case models.FieldStrategy:
			s.Strategy = f.strategy
		case models.FieldMeasurement:
			s.Measurement = f.measurement
		}
	})
}

func newStakeholderListCommand(a *app) *cobra.Command {
	var mapID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stakeholders with their engagement quadrant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := a.mapArg(mapID)
			if err != nil {
				return err
			}
			list, err := a.engine.GetStakeholders(id)
			if err != nil {
				return fmt.Errorf("failed to list stakeholders: %w", err)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No stakeholders found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tINFLUENCE\tIMPACT\tQUADRANT\tRELATIONSHIP\t")
			for _, st := range list {
				quadrant := "-"
				if q, ok := st.Quadrant(); ok {
					quadrant = models.QuadrantLabel(q)
				}
				quality := "-"
				if rq, ok := st.RelationshipQuality(); ok {
					quality = rq
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
					st.ID, st.Name, scoreText(st.Influence), scoreText(st.Impact), quadrant, quality)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&mapID, "map", "", "Map ID (default: current map)")
	return cmd
}

func scoreText(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func newStakeholderAddCommand(a *app) *cobra.Command {
	var mapID string
	var f stakeholderFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a stakeholder to a map",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := a.mapArg(mapID)
			if err != nil {
				return err
			}

			var draft models.Stakeholder
			f.apply(cmd.Flags(), &draft)
			st, err := a.engine.AddStakeholder(models.StakeholderInput{
				MapID:         id,
				Name:          draft.Name,
				Influence:     draft.Influence,
				Impact:        draft.Impact,
				Relationship:  draft.Relationship,
				Category:      draft.Category,
				Interests:     draft.Interests,
				Contribution:  draft.Contribution,
				Risk:          draft.Risk,
				Communication: draft.Communication,
				Strategy:      draft.Strategy,
				Measurement:   draft.Measurement,
			})
			if err != nil {
				return fmt.Errorf("failed to add stakeholder: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added stakeholder: %s (ID: %s)\n", st.Name, st.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&mapID, "map", "", "Map ID (default: current map)")
	f.register(cmd.Flags())
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newStakeholderUpdateCommand(a *app) *cobra.Command {
	var mapID string
	var clearScores []string
	var f stakeholderFlags
	cmd := &cobra.Command{
		Use:   "update <stakeholder-id>",
		Short: "Update a stakeholder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.mapArg(mapID)
			if err != nil {
				return err
			}
			for _, name := range clearScores {
				switch name {
				case models.FieldInfluence, models.FieldImpact, models.FieldRelationship:
				default:
					return fmt.Errorf("--clear accepts influence, impact, or relationship, got %q", name)
				}
			}

			st, err := a.engine.UpdateStakeholder(id, args[0], func(s *models.Stakeholder) {
				f.apply(cmd.Flags(), s)
				for _, name := range clearScores {
					switch name {
					case models.FieldInfluence:
						s.Influence = nil
					case models.FieldImpact:
						s.Impact = nil
					case models.FieldRelationship:
						s.Relationship = nil
					}
				}
			})
			if err != nil {
				return fmt.Errorf("failed to update stakeholder: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated stakeholder: %s\n", st.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&mapID, "map", "", "Map ID (default: current map)")
	cmd.Flags().StringSliceVar(&clearScores, "clear", nil, "Scores to unset (influence, impact, relationship)")
	f.register(cmd.Flags())
	return cmd
}

func newStakeholderDeleteCommand(a *app) *cobra.Command {
	var mapID string
	cmd := &cobra.Command{
		Use:   "delete <stakeholder-id>",
		Short: "Remove a stakeholder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.mapArg(mapID)
			if err != nil {
				return err
			}
			if err := a.engine.DeleteStakeholder(id, args[0]); err != nil {
				return fmt.Errorf("failed to delete stakeholder: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted stakeholder %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&mapID, "map", "", "Map ID (default: current map)")
	return cmd
}

func newInteractionCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interaction",
		Short: "Log interactions with stakeholders",
	}

	var mapID, text, date string
	add := &cobra.Command{
		Use:   "add <stakeholder-id>",
		Short: "Log an interaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.mapArg(mapID)
			if err != nil {
				return err
			}
			when, err := handlers.ParseDate(date)
			if err != nil {
				return err
			}
			in, err := a.engine.AddInteraction(id, args[0], text, when)
			if err != nil {
				return fmt.Errorf("failed to add interaction: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged interaction on %s\n", in.Date.Format("2006-01-02"))
			return nil
		},
	}
	add.Flags().StringVar(&mapID, "map", "", "Map ID (default: current map)")
	add.Flags().StringVar(&text, "text", "", "What happened (required)")
	add.Flags().StringVar(&date, "date", "", "When it happened, YYYY-MM-DD or RFC3339 (default: now)")
	_ = add.MarkFlagRequired("text")

	cmd.AddCommand(add)
	return cmd
}
