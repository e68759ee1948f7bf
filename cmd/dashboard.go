package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/grantqa/pkg/catalog"
	"github.com/otherjamesbrown/grantqa/pkg/dashboard"
	"github.com/otherjamesbrown/grantqa/pkg/listquery"
	"github.com/otherjamesbrown/grantqa/pkg/tablestate"
)

// NewDashboardCommand creates the dashboard command.
func NewDashboardCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the data quality summary",
		Long: `Show the headline data quality counts: organizations, grants,
unresolved validation issues, low completeness records and pending
duplicate candidates.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := deps.open(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			sum, err := b.Dashboard.Summary(cmd.Context())
			if err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), deps.Config.OutputFormat, sum, func(w io.Writer) error {
				return writeSummary(w, sum)
			})
		},
	}
}

func writeSummary(w io.Writer, s *dashboard.Summary) error {
	fmt.Fprintln(w, "Data Quality")
	fmt.Fprintf(w, "  Organizations:       %d (%d low completeness)\n", s.TotalOrganizations, s.LowCompletenessOrganizations)
	fmt.Fprintf(w, "  Grants:              %d (%d low completeness)\n", s.TotalGrants, s.LowCompletenessGrants)
	fmt.Fprintf(w, "  Unresolved issues:   %d\n", s.UnresolvedIssues)
	fmt.Fprintf(w, "  Pending duplicates:  %d\n", s.PendingDuplicates)
	return nil
}

// NewIssuesCommand creates the issues command with its subcommands.
func NewIssuesCommand(deps *CommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issues",
		Short: "Inspect validation issues",
	}
	cmd.AddCommand(newIssuesListCommand(deps))
	return cmd
}

// issuesOutput is the machine-readable shape of issues list.
type issuesOutput struct {
	Rows       []catalog.ValidationIssue `json:"rows"`
	Total      int                       `json:"total"`
	Page       int                       `json:"page"`
	PageSize   int                       `json:"page_size"`
	Pagination tablestate.Pagination     `json:"pagination"`
}

func newIssuesListCommand(deps *CommandDeps) *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List unresolved validation issues, newest first",
		Example: `  grantqa issues list
  grantqa issues list --page 2 --page-size 100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := deps.open(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			res, err := b.Dashboard.Issues(cmd.Context(), page, pageSize)
			if err != nil {
				return err
			}

			out := issuesOutput{
				Rows:       res.Rows,
				Total:      res.Total,
				Page:       res.Page,
				PageSize:   res.PageSize,
				Pagination: tablestate.Paginate(res.Page, res.PageSize, res.Total, nil),
			}
			return render(cmd.OutOrStdout(), deps.Config.OutputFormat, out, func(w io.Writer) error {
				t := newTable(w, "ID", "SEVERITY", "ENTITY", "ISSUE", "FIELD", "CREATED")
				for _, i := range res.Rows {
					t.row(i.ID, i.Severity, i.EntityType+" "+i.EntityID, i.IssueType, orDash(i.FieldName), formatTime(&i.CreatedAt))
				}
				if err := t.flush(); err != nil {
					return err
				}
				pageFooter(w, out.Pagination)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", listquery.DefaultPage, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", listquery.DefaultPageSize, "Rows per page (max 1000)")

	return cmd
}
