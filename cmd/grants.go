package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/grantqa/pkg/catalog"
	"github.com/otherjamesbrown/grantqa/pkg/dashboard"
)

// NewGrantsCommand creates the grants command with its subcommands.
func NewGrantsCommand(deps *CommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "grants",
		Short:   "List and inspect grants",
		Aliases: []string{"grant"},
	}

	cmd.AddCommand(newGrantsListCommand(deps))
	cmd.AddCommand(newGrantsShowCommand(deps))

	return cmd
}

func newGrantsListCommand(deps *CommandDeps) *cobra.Command {
	var flags listFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List grants",
		Long: `List grants with their organization, one page at a time.

Sort fields: grant_name, award_amount, application_deadline,
completeness_score, fields_count, enriched_at, created_at, updated_at.
award_amount sorts by the parsed amount with missing amounts last.
application_deadline sorts by the parsed month and day.
fields_count orders by completeness_score.

Grants whose organization no longer exists are not listed.`,
		Example: `  grantqa grants list
  grantqa grants list --sort award_amount --order desc
  grantqa grants list --search musikk --filter high_completeness
  grantqa grants list --organization 6f1c2d3e-0000-4000-8000-000000000001`,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := deps.open(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			q := flags.query(catalog.EntityGrant)
			res := b.Listing.Grants(cmd.Context(), q)
			if err := listError("grants", res); err != nil {
				return err
			}

			out := newListOutput(q, res)
			return render(cmd.OutOrStdout(), deps.Config.OutputFormat, out, func(w io.Writer) error {
				if err := writeGrantTable(w, out.Rows, true); err != nil {
					return err
				}
				pageFooter(w, out.Pagination)
				return nil
			})
		},
	}

	flags.register(cmd, catalog.EntityGrant)

	return cmd
}

func newGrantsShowCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a grant with its organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := deps.open(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			detail, err := b.Dashboard.GrantDetail(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), deps.Config.OutputFormat, detail, func(w io.Writer) error {
				return writeGrantDetail(w, detail)
			})
		},
	}
}

func writeGrantTable(w io.Writer, grants []catalog.Grant, withOrg bool) error {
	headers := []string{"ID", "NAME"}
	if withOrg {
		headers = append(headers, "ORGANIZATION")
	}
	headers = append(headers, "AMOUNT", "DEADLINE", "FIELDS", "SCORE")

	t := newTable(w, headers...)
	for _, g := range grants {
		cells := []string{g.ID, g.GrantName}
		if withOrg {
			org := "-"
			if g.Organization != nil {
				org = g.Organization.DisplayName()
			}
			cells = append(cells, org)
		}
		cells = append(cells,
			catalog.FormatAmount(g.AwardAmountParsed),
			catalog.FormatDeadline(g.ApplicationDeadlineParsed),
			strconv.Itoa(g.FieldsCount()),
			score(g.CompletenessScore))
		t.row(cells...)
	}
	return t.flush()
}

func writeGrantDetail(w io.Writer, d *dashboard.GrantDetail) error {
	g := d.Grant
	fmt.Fprintf(w, "%s\n", g.GrantName)
	fmt.Fprintf(w, "  ID:            %s\n", g.ID)
	fmt.Fprintf(w, "  Organization:  %s (%s)\n", d.Organization.DisplayName(), d.Organization.ID)
	fmt.Fprintf(w, "  Amount:        %s\n", catalog.FormatAmount(g.AwardAmountParsed))
	fmt.Fprintf(w, "  Amount text:   %s\n", orDash(g.AwardAmount))
	fmt.Fprintf(w, "  Deadline:      %s\n", catalog.FormatDeadline(g.ApplicationDeadlineParsed))
	fmt.Fprintf(w, "  Deadline text: %s\n", orDash(g.ApplicationDeadline))
	fmt.Fprintf(w, "  Eligibility:   %s\n", orDash(g.Eligibility))
	fmt.Fprintf(w, "  Geography:     %s\n", orDash(g.GeographicRestrictions))
	fmt.Fprintf(w, "  Contact:       %s\n", orDash(g.ContactEmail))
	fmt.Fprintf(w, "  Completeness:  %s (%s), %d fields\n", score(g.CompletenessScore), catalog.Band(g.CompletenessScore), g.FieldsCount())
	if len(g.FieldsMissing) > 0 {
		fmt.Fprintf(w, "  Missing:       %v\n", g.FieldsMissing)
	}
	fmt.Fprintf(w, "  Enriched:      %s\n", formatTime(g.EnrichedAt))
	if g.Description != "" {
		fmt.Fprintf(w, "\n%s\n", g.Description)
	}
	return nil
}
