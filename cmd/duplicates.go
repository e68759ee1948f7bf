package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/grantqa/pkg/catalog"
	"github.com/otherjamesbrown/grantqa/pkg/review"
)

// NewDuplicatesCommand creates the duplicates command with its subcommands.
func NewDuplicatesCommand(deps *CommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "Review possible duplicate organizations and grants",
		Long: `Review pairs of records the upstream matcher flagged as possibly
describing the same organization or grant.

Each candidate is pending until it is confirmed or rejected, and can be
reviewed only once. A second review of the same candidate fails.`,
		Aliases: []string{"dup", "dups"},
	}

	cmd.AddCommand(newDuplicatesListCommand(deps))
	cmd.AddCommand(newDuplicatesDecideCommand(deps, "confirm", true))
	cmd.AddCommand(newDuplicatesDecideCommand(deps, "reject", false))

	return cmd
}

// duplicatesOutput is the machine-readable shape of duplicates list.
type duplicatesOutput struct {
	Pending []catalog.DuplicateCandidate `json:"pending"`
	Stats   catalog.ReviewStats          `json:"stats"`
}

func newDuplicatesListCommand(deps *CommandDeps) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending duplicate candidates",
		Long: `List candidates that have not been reviewed yet, most similar first,
with the pending, confirmed and rejected totals.`,
		Example: `  grantqa duplicates list
  grantqa duplicates list --limit 10 -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := deps.open(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			pending, err := b.Review.Pending(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			stats, err := b.Review.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := duplicatesOutput{Pending: pending, Stats: stats}
			return render(cmd.OutOrStdout(), deps.Config.OutputFormat, out, func(w io.Writer) error {
				fmt.Fprintf(w, "Pending: %d  Confirmed: %d  Rejected: %d\n\n", stats.Pending, stats.Confirmed, stats.Rejected)
				if len(pending) == 0 {
					fmt.Fprintln(w, "Nothing to review.")
					return nil
				}
				t := newTable(w, "ID", "TYPE", "SIMILARITY", "FIRST", "SECOND", "METHOD")
				for _, d := range pending {
					t.row(d.ID, d.EntityType, score(d.SimilarityScore),
						orDash(d.Entity1Name), orDash(d.Entity2Name), orDash(d.MatchMethod))
				}
				return t.flush()
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", review.DefaultLimit, "Maximum candidates to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Candidates to skip")

	return cmd
}

func newDuplicatesDecideCommand(deps *CommandDeps, use string, isDuplicate bool) *cobra.Command {
	var notes string

	short := "Confirm a candidate as a duplicate"
	if !isDuplicate {
		short = "Reject a candidate as not a duplicate"
	}

	cmd := &cobra.Command{
		Use:     use + " <id>",
		Short:   short,
		Example: fmt.Sprintf("  grantqa duplicates %s <id> --notes \"same org number\"", use),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := deps.open(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			decided, err := b.Review.Decide(cmd.Context(), args[0], isDuplicate, notes)
			if err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), deps.Config.OutputFormat, decided, func(w io.Writer) error {
				fmt.Fprintf(w, "Candidate %s %s.\n", decided.ID, decided.State())
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&notes, "notes", "n", "", "Reviewer notes")

	return cmd
}
