package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/grantqa/pkg/catalog"
	"github.com/otherjamesbrown/grantqa/pkg/dashboard"
)

// NewOrgsCommand creates the orgs command with its subcommands.
func NewOrgsCommand(deps *CommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "orgs",
		Short:   "List and inspect organizations",
		Aliases: []string{"organizations", "org"},
	}

	cmd.AddCommand(newOrgsListCommand(deps))
	cmd.AddCommand(newOrgsShowCommand(deps))

	return cmd
}

func newOrgsListCommand(deps *CommandDeps) *cobra.Command {
	var flags listFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List organizations",
		Long: `List organizations one page at a time.

Sort fields: canonical_name, full_name, completeness_score,
active_grants_count, total_grants_count, last_updated, created_at,
updated_at. Unknown fields fall back to completeness_score.

Filters:
  low_completeness   score below 50
  high_completeness  score of 80 or more`,
		Example: `  grantqa orgs list
  grantqa orgs list --filter low_completeness --sort canonical_name --order asc
  grantqa orgs list --page 2 --page-size 50 -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := deps.open(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			q := flags.query(catalog.EntityOrganization)
			res := b.Listing.Organizations(cmd.Context(), q)
			if err := listError("organizations", res); err != nil {
				return err
			}

			out := newListOutput(q, res)
			return render(cmd.OutOrStdout(), deps.Config.OutputFormat, out, func(w io.Writer) error {
				t := newTable(w, "ID", "NAME", "SCORE", "BAND", "GRANTS", "UPDATED")
				for _, o := range out.Rows {
					t.row(o.ID, o.DisplayName(), score(o.CompletenessScore), string(catalog.Band(o.CompletenessScore)),
						fmt.Sprintf("%d/%d", o.ActiveGrantsCount, o.TotalGrantsCount), formatTime(o.LastUpdated))
				}
				if err := t.flush(); err != nil {
					return err
				}
				pageFooter(w, out.Pagination)
				return nil
			})
		},
	}

	flags.register(cmd, catalog.EntityOrganization)

	return cmd
}

func newOrgsShowCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:     "show <id>",
		Short:   "Show an organization with its grants and sources",
		Example: `  grantqa orgs show 6f1c2d3e-0000-4000-8000-000000000001`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := deps.open(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			detail, err := b.Dashboard.OrganizationDetail(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), deps.Config.OutputFormat, detail, func(w io.Writer) error {
				return writeOrganizationDetail(w, detail)
			})
		},
	}
}

func writeOrganizationDetail(w io.Writer, d *dashboard.OrganizationDetail) error {
	o := d.Organization
	fmt.Fprintf(w, "%s\n", o.DisplayName())
	fmt.Fprintf(w, "  ID:            %s\n", o.ID)
	fmt.Fprintf(w, "  Canonical:     %s\n", o.CanonicalName)
	fmt.Fprintf(w, "  Type:          %s\n", orDash(o.OrgType))
	fmt.Fprintf(w, "  Website:       %s\n", orDash(o.Website))
	fmt.Fprintf(w, "  Email:         %s\n", orDash(o.ContactEmail))
	fmt.Fprintf(w, "  Phone:         %s\n", orDash(o.Phone))
	fmt.Fprintf(w, "  Completeness:  %s (%s)\n", score(o.CompletenessScore), catalog.Band(o.CompletenessScore))
	if len(o.FieldsMissing) > 0 {
		fmt.Fprintf(w, "  Missing:       %v\n", o.FieldsMissing)
	}
	fmt.Fprintf(w, "  Updated:       %s\n", formatTime(o.LastUpdated))

	fmt.Fprintf(w, "\nGrants (%d):\n", len(d.Grants))
	if len(d.Grants) > 0 {
		if err := writeGrantTable(w, d.Grants, false); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "\nSources (%d):\n", len(d.Sources))
	if len(d.Sources) > 0 {
		t := newTable(w, "URL", "TYPE", "METHOD", "FETCHED")
		for _, s := range d.Sources {
			t.row(s.URL, orDash(s.SourceType), orDash(s.FetchMethod), formatTime(s.FetchedAt))
		}
		return t.flush()
	}
	return nil
}
