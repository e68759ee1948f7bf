// Package tablestate derives the next URL state of a list table: sort
// toggles on column headers and pagination links. Everything here is a
// pure function of the current query parameters.
package tablestate

import (
	"net/url"
	"strconv"

	"github.com/otherjamesbrown/grantqa/pkg/catalog"
	"github.com/otherjamesbrown/grantqa/pkg/listquery"
)

// Column describes one table column.
type Column struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Sortable bool   `json:"sortable"`
}

// OrganizationColumns are the columns of the organization list.
var OrganizationColumns = []Column{
	{Key: "canonical_name", Label: "Organization Name", Sortable: true},
	{Key: "completeness_score", Label: "Completeness", Sortable: true},
	{Key: "active_grants_count", Label: "Grants", Sortable: true},
	{Key: "contact", Label: "Contact"},
}

// GrantColumns are the columns of the grant list.
var GrantColumns = []Column{
	{Key: "grant_name", Label: "Grant Name", Sortable: true},
	{Key: "award_amount", Label: "Award Amount", Sortable: true},
	{Key: "application_deadline", Label: "Deadline", Sortable: true},
	{Key: "completeness_score", Label: "Completeness", Sortable: true},
	{Key: "fields_count", Label: "Fields", Sortable: true},
}

// Columns returns the columns of an entity's list.
func Columns(entity catalog.EntityType) []Column {
	if entity == catalog.EntityGrant {
		return GrantColumns
	}
	return OrganizationColumns
}

// Header is a rendered column header.
type Header struct {
	Key       string          `json:"key"`
	Label     string          `json:"label"`
	Sortable  bool            `json:"sortable"`
	Active    bool            `json:"active"`
	Direction listquery.Order `json:"direction,omitempty"`
	Href      string          `json:"href,omitempty"`
}

// ToggleSort returns the parameters after clicking column. Clicking the
// active column flips its direction; clicking another column sorts it
// ascending. All other parameters are kept.
func ToggleSort(params url.Values, column, currentSort string, currentOrder listquery.Order) url.Values {
	next := clone(params)
	if column == currentSort {
		if currentOrder == listquery.Asc {
			next.Set("order", string(listquery.Desc))
		} else {
			next.Set("order", string(listquery.Asc))
		}
		return next
	}
	next.Set("sort", column)
	next.Set("order", string(listquery.Asc))
	return next
}

// Headers renders the column headers for the current sort state.
func Headers(columns []Column, currentSort string, currentOrder listquery.Order, params url.Values) []Header {
	headers := make([]Header, 0, len(columns))
	for _, c := range columns {
		h := Header{Key: c.Key, Label: c.Label, Sortable: c.Sortable}
		if c.Sortable {
			h.Active = c.Key == currentSort
			if h.Active {
				h.Direction = currentOrder
			}
			h.Href = href(ToggleSort(params, c.Key, currentSort, currentOrder))
		}
		headers = append(headers, h)
	}
	return headers
}

// PageSizeOptions are the selectable page sizes.
var PageSizeOptions = []int{25, 50, 100, 250}

// maxPageLinks is the width of the numbered page window.
const maxPageLinks = 5

// Link is a navigation target.
type Link struct {
	Page int    `json:"page"`
	Href string `json:"href"`
}

// PageLink is one numbered page in the window.
type PageLink struct {
	Page    int    `json:"page"`
	Href    string `json:"href"`
	Current bool   `json:"current"`
}

// SizeOption is one page-size choice.
type SizeOption struct {
	Size     int    `json:"size"`
	Href     string `json:"href"`
	Selected bool   `json:"selected"`
}

// Pagination is the rendered pagination control.
type Pagination struct {
	Page        int          `json:"page"`
	PageSize    int          `json:"page_size"`
	Total       int          `json:"total"`
	TotalPages  int          `json:"total_pages"`
	From        int          `json:"from"`
	To          int          `json:"to"`
	Prev        *Link        `json:"prev"`
	Next        *Link        `json:"next"`
	Pages       []PageLink   `json:"pages"`
	SizeOptions []SizeOption `json:"size_options"`
}

// Paginate derives the pagination control for a page of a list with total
// rows. From and To are 1-based and are both 0 when the page shows no rows.
func Paginate(page, pageSize, total int, params url.Values) Pagination {
	if page < 1 {
		page = listquery.DefaultPage
	}
	if pageSize < 1 {
		pageSize = listquery.DefaultPageSize
	}
	if total < 0 {
		total = 0
	}

	p := Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: (total + pageSize - 1) / pageSize,
		Pages:      []PageLink{},
	}

	offset := (page - 1) * pageSize
	if offset < total {
		p.From = offset + 1
		p.To = min(page*pageSize, total)
	}

	if page > 1 {
		p.Prev = &Link{Page: page - 1, Href: pageHref(params, page-1, 0)}
	}
	if page < p.TotalPages {
		p.Next = &Link{Page: page + 1, Href: pageHref(params, page+1, 0)}
	}

	start := 1
	if page > 3 {
		start = page - 2
	}
	for i := 0; i < min(p.TotalPages, maxPageLinks); i++ {
		n := start + i
		if n > p.TotalPages {
			break
		}
		p.Pages = append(p.Pages, PageLink{Page: n, Href: pageHref(params, n, 0), Current: n == page})
	}

	for _, size := range PageSizeOptions {
		p.SizeOptions = append(p.SizeOptions, SizeOption{
			Size:     size,
			Href:     pageHref(params, 1, size),
			Selected: size == pageSize,
		})
	}
	return p
}

func pageHref(params url.Values, page, pageSize int) string {
	next := clone(params)
	next.Set("page", strconv.Itoa(page))
	if pageSize > 0 {
		next.Set("pageSize", strconv.Itoa(pageSize))
	}
	return href(next)
}

func href(params url.Values) string {
	return "?" + params.Encode()
}

func clone(params url.Values) url.Values {
	next := make(url.Values, len(params))
	for k, v := range params {
		next[k] = append([]string(nil), v...)
	}
	return next
}
