// Package listquery turns list-page URL parameters into a normalized,
// bounded query over organizations or grants and renders it as
// parameterized PostgreSQL.
package listquery

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/otherjamesbrown/grantqa/pkg/catalog"
)

// Pagination defaults and limits.
const (
	DefaultPage     = 1
	DefaultPageSize = 25
	MaxPageSize     = 1000
	DefaultSort     = "completeness_score"
)

// Order is a sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Filter is the closed set of completeness filters.
type Filter string

const (
	FilterNone             Filter = ""
	FilterLowCompleteness  Filter = "low_completeness"
	FilterHighCompleteness Filter = "high_completeness"
)

// Matches reports whether a completeness score passes the filter.
func (f Filter) Matches(score float64) bool {
	switch f {
	case FilterLowCompleteness:
		return score < catalog.LowCompletenessBelow
	case FilterHighCompleteness:
		return score >= catalog.HighCompletenessFrom
	default:
		return true
	}
}

// Sortable fields per entity. Anything else falls back to DefaultSort.
var sortable = map[catalog.EntityType]map[string]bool{
	catalog.EntityOrganization: {
		"canonical_name":      true,
		"full_name":           true,
		"completeness_score":  true,
		"active_grants_count": true,
		"total_grants_count":  true,
		"last_updated":        true,
		"created_at":          true,
		"updated_at":          true,
	},
	catalog.EntityGrant: {
		"grant_name":           true,
		"award_amount":         true,
		"application_deadline": true,
		"completeness_score":   true,
		"fields_count":         true,
		"enriched_at":          true,
		"created_at":           true,
		"updated_at":           true,
	},
}

// IsSortable reports whether field can be sorted on for the entity.
func IsSortable(entity catalog.EntityType, field string) bool {
	return sortable[entity][field]
}

// Query is a normalized list request. Every field holds a valid value.
type Query struct {
	Entity   catalog.EntityType
	Page     int
	PageSize int
	Filter   Filter

	// Search and OrganizationID apply to grants only.
	Search         string
	OrganizationID string

	Sort  string
	Order Order

	// IncludeOrphans counts grants whose organization is missing. Only
	// BuildCount honours it; listed grants always carry their organization.
	IncludeOrphans bool
}

// Parse normalizes list parameters for entity. Malformed values are
// replaced by their defaults; Parse never fails.
func Parse(entity catalog.EntityType, values url.Values) Query {
	page, pageSize := ParsePage(values)
	q := Query{
		Entity:   entity,
		Page:     page,
		PageSize: pageSize,
		Filter:   parseFilter(values.Get("filter")),
		Sort:     DefaultSort,
		Order:    Desc,
	}

	if sortField := strings.TrimSpace(values.Get("sort")); IsSortable(entity, sortField) {
		q.Sort = sortField
	}
	if strings.EqualFold(strings.TrimSpace(values.Get("order")), string(Asc)) {
		q.Order = Asc
	}

	if entity == catalog.EntityGrant {
		q.Search = strings.TrimSpace(values.Get("search"))
		q.OrganizationID = strings.TrimSpace(values.Get("organization"))
	}
	return q
}

// ParsePage reads page and pageSize, clamping invalid values to defaults
// and capping the page size at MaxPageSize.
func ParsePage(values url.Values) (page, pageSize int) {
	page = positiveInt(values.Get("page"), DefaultPage)
	pageSize = positiveInt(values.Get("pageSize"), DefaultPageSize)
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func positiveInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func parseFilter(s string) Filter {
	switch Filter(strings.TrimSpace(s)) {
	case FilterLowCompleteness:
		return FilterLowCompleteness
	case FilterHighCompleteness:
		return FilterHighCompleteness
	default:
		return FilterNone
	}
}

// Offset is the zero-based index of the first row of the page.
func (q Query) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// SortKey is the field the rows are actually ordered by. fields_count is
// ordered by completeness_score, not by the number of populated fields.
func (q Query) SortKey() string {
	if q.Sort == "fields_count" {
		return "completeness_score"
	}
	return q.Sort
}

// Values renders the query back into canonical URL parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("pageSize", strconv.Itoa(q.PageSize))
	v.Set("sort", q.Sort)
	v.Set("order", string(q.Order))
	if q.Filter != FilterNone {
		v.Set("filter", string(q.Filter))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.OrganizationID != "" {
		v.Set("organization", q.OrganizationID)
	}
	return v
}
