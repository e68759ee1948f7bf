package listquery

import (
	"fmt"
	"strings"

	"github.com/otherjamesbrown/grantqa/pkg/catalog"
)

// Table aliases used by the generated SQL. Column lists passed to
// BuildSelect must use them.
const (
	OrgAlias   = "o"
	GrantAlias = "g"
)

// awardAmountDoc is the parsed amount sidecar. A sidecar stored as a JSON
// string holding the document is unwrapped one level; a string that is not
// valid JSON stays a string and yields no amount. Requires PostgreSQL 16
// for pg_input_is_valid.
const awardAmountDoc = `CASE WHEN jsonb_typeof(g.award_amount_parsed) = 'string' ` +
	`AND pg_input_is_valid(g.award_amount_parsed #>> '{}', 'jsonb') ` +
	`THEN (g.award_amount_parsed #>> '{}')::jsonb ELSE g.award_amount_parsed END`

// awardAmountExpr extracts the numeric amount from the parsed sidecar.
// Non-numeric and missing amounts yield NULL.
const awardAmountExpr = `CASE WHEN jsonb_typeof((` + awardAmountDoc + `)->'amount') = 'number' ` +
	`THEN ((` + awardAmountDoc + `)->>'amount')::numeric END`

// textSortKeys are the text columns. Empty text orders with NULL.
var textSortKeys = map[string]bool{
	"canonical_name":       true,
	"full_name":            true,
	"grant_name":           true,
	"application_deadline": true,
}

// EscapeLike escapes LIKE metacharacters so s matches literally.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Contains wraps s as a literal substring pattern for ILIKE.
func Contains(s string) string {
	return "%" + EscapeLike(s) + "%"
}

func (q Query) from() string {
	if q.Entity == catalog.EntityGrant {
		return "grants g JOIN organizations o ON o.id = g.organization_id"
	}
	return "organizations o"
}

func (q Query) alias() string {
	if q.Entity == catalog.EntityGrant {
		return GrantAlias
	}
	return OrgAlias
}

// where builds the WHERE clause and its positional arguments.
func (q Query) where() (string, []any) {
	var conditions []string
	var args []any
	argIdx := 1

	a := q.alias()
	switch q.Filter {
	case FilterLowCompleteness:
		conditions = append(conditions, fmt.Sprintf("%s.completeness_score < $%d", a, argIdx))
		args = append(args, catalog.LowCompletenessBelow)
		argIdx++
	case FilterHighCompleteness:
		conditions = append(conditions, fmt.Sprintf("%s.completeness_score >= $%d", a, argIdx))
		args = append(args, catalog.HighCompletenessFrom)
		argIdx++
	}

	if q.Entity == catalog.EntityGrant {
		if q.Search != "" {
			conditions = append(conditions, fmt.Sprintf(`g.grant_name ILIKE $%d ESCAPE '\'`, argIdx))
			args = append(args, Contains(q.Search))
			argIdx++
		}
		if q.OrganizationID != "" {
			conditions = append(conditions, fmt.Sprintf("g.organization_id::text = $%d", argIdx))
			args = append(args, q.OrganizationID)
		}
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// orderBy resolves the sort key to an expression. Nulls sort last in both
// directions and id breaks ties so pages are stable.
func (q Query) orderBy() string {
	a := q.alias()
	key := q.SortKey()
	expr := a + "." + key
	switch {
	case q.Entity == catalog.EntityGrant && key == "award_amount":
		expr = awardAmountExpr
	case textSortKeys[key]:
		expr = fmt.Sprintf("NULLIF(%s, '')", expr)
	}
	dir := "DESC"
	if q.Order == Asc {
		dir = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s NULLS LAST, %s.id ASC", expr, dir, a)
}

// BuildSelect renders the page query selecting columns.
func BuildSelect(q Query, columns string) (string, []any) {
	where, args := q.where()
	n := len(args)
	query := "SELECT " + columns + " FROM " + q.from() + where + q.orderBy() +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2)
	args = append(args, q.PageSize, q.Offset())
	return query, args
}

// BuildCount renders the total-count query for the same filters.
func BuildCount(q Query) (string, []any) {
	where, args := q.where()
	from := q.from()
	if q.Entity == catalog.EntityGrant && q.IncludeOrphans {
		from = "grants g"
	}
	return "SELECT COUNT(*) FROM " + from + where, args
}
