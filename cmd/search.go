package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/grantqa/pkg/search"
)

// NewSearchCommand creates the search command.
func NewSearchCommand(deps *CommandDeps) *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search organizations and grants",
		Long: `Search organizations and grants by name and description.

Matching is a case-insensitive substring match. Organizations match on
canonical name, full name and description; grants match on name,
description and eligibility. Up to 50 results come back per entity type, best completeness
first.

Types:
  all            Organizations and grants (default)
  organizations  Organizations only
  grants         Grants only`,
		Example: `  grantqa search kultur
  grantqa search "fritt ord" --type organizations
  grantqa search musikk --type grants -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := search.ParseScope(scope)
			if err != nil {
				return err
			}

			b, err := deps.open(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			results, err := b.Search.Search(cmd.Context(), strings.Join(args, " "), sc)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			return render(cmd.OutOrStdout(), deps.Config.OutputFormat, results, func(w io.Writer) error {
				return writeSearchResults(w, results)
			})
		},
	}

	cmd.Flags().StringVarP(&scope, "type", "t", string(search.ScopeAll), "Entity type: all, organizations, grants")

	return cmd
}

func writeSearchResults(w io.Writer, results []search.Result) error {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results.")
		return nil
	}
	t := newTable(w, "TYPE", "ID", "NAME", "ORGANIZATION", "SCORE")
	for _, r := range results {
		t.row(r.Type, r.ID, r.Name, orDash(r.OrganizationName), score(r.CompletenessScore))
	}
	return t.flush()
}
