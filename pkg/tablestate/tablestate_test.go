package tablestate

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/grantqa/pkg/catalog"
	"github.com/otherjamesbrown/grantqa/pkg/listquery"
)

func TestToggleSort(t *testing.T) {
	params := url.Values{"filter": {"low_completeness"}, "sort": {"grant_name"}, "order": {"asc"}, "page": {"3"}}

	tests := []struct {
		name      string
		column    string
		sort      string
		order     listquery.Order
		wantSort  string
		wantOrder string
	}{
		{"same column asc flips", "grant_name", "grant_name", listquery.Asc, "grant_name", "desc"},
		{"same column desc flips", "grant_name", "grant_name", listquery.Desc, "grant_name", "asc"},
		{"new column starts asc", "award_amount", "grant_name", listquery.Desc, "award_amount", "asc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := ToggleSort(params, tt.column, tt.sort, tt.order)
			assert.Equal(t, tt.wantSort, next.Get("sort"))
			assert.Equal(t, tt.wantOrder, next.Get("order"))
			assert.Equal(t, "low_completeness", next.Get("filter"))
			assert.Equal(t, "3", next.Get("page"))
		})
	}

	assert.Equal(t, "asc", params.Get("order"), "input must not be mutated")
}

func TestToggleSort_TwiceRestores(t *testing.T) {
	params := url.Values{"sort": {"grant_name"}, "order": {"desc"}}
	once := ToggleSort(params, "grant_name", "grant_name", listquery.Desc)
	twice := ToggleSort(once, "grant_name", "grant_name", listquery.Order(once.Get("order")))
	assert.Equal(t, params, twice)
}

func TestHeaders(t *testing.T) {
	params := url.Values{"sort": {"completeness_score"}, "order": {"desc"}}
	headers := Headers(OrganizationColumns, "completeness_score", listquery.Desc, params)
	require.Len(t, headers, 4)

	assert.Equal(t, Header{
		Key: "canonical_name", Label: "Organization Name", Sortable: true,
		Href: "?order=asc&sort=canonical_name",
	}, headers[0])
	assert.Equal(t, Header{
		Key: "completeness_score", Label: "Completeness", Sortable: true,
		Active: true, Direction: listquery.Desc, Href: "?order=asc&sort=completeness_score",
	}, headers[1])
	assert.Equal(t, Header{Key: "contact", Label: "Contact"}, headers[3])
}

func TestColumns(t *testing.T) {
	assert.Equal(t, GrantColumns, Columns(catalog.EntityGrant))
	assert.Equal(t, OrganizationColumns, Columns(catalog.EntityOrganization))

	for _, c := range GrantColumns {
		assert.True(t, listquery.IsSortable(catalog.EntityGrant, c.Key), c.Key)
	}
	for _, c := range OrganizationColumns {
		assert.Equal(t, c.Sortable, listquery.IsSortable(catalog.EntityOrganization, c.Key), c.Key)
	}
}

func pageNumbers(p Pagination) []int {
	out := []int{}
	for _, l := range p.Pages {
		out = append(out, l.Page)
	}
	return out
}

func TestPaginate_Window(t *testing.T) {
	tests := []struct {
		page  int
		total int
		want  []int
	}{
		{1, 1000, []int{1, 2, 3, 4, 5}},
		{3, 1000, []int{1, 2, 3, 4, 5}},
		{4, 1000, []int{2, 3, 4, 5, 6}},
		{10, 250, []int{8, 9, 10}},
		{1, 60, []int{1, 2, 3}},
		{1, 0, []int{}},
	}
	for _, tt := range tests {
		p := Paginate(tt.page, 25, tt.total, url.Values{})
		assert.Equal(t, tt.want, pageNumbers(p), "page %d of total %d", tt.page, tt.total)
	}
}

func TestPaginate_Bounds(t *testing.T) {
	params := url.Values{"filter": {"high_completeness"}}

	p := Paginate(1, 25, 60, params)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 1, p.From)
	assert.Equal(t, 25, p.To)
	assert.Nil(t, p.Prev)
	require.NotNil(t, p.Next)
	assert.Equal(t, 2, p.Next.Page)
	assert.Equal(t, "?filter=high_completeness&page=2", p.Next.Href)
	assert.True(t, p.Pages[0].Current)

	last := Paginate(3, 25, 60, params)
	assert.Equal(t, 51, last.From)
	assert.Equal(t, 60, last.To)
	assert.Nil(t, last.Next)
	require.NotNil(t, last.Prev)
	assert.Equal(t, 2, last.Prev.Page)
}

func TestPaginate_Empty(t *testing.T) {
	p := Paginate(1, 25, 0, url.Values{})
	assert.Equal(t, 0, p.TotalPages)
	assert.Equal(t, 0, p.From)
	assert.Equal(t, 0, p.To)
	assert.Nil(t, p.Prev)
	assert.Nil(t, p.Next)
}

func TestPaginate_PastLastPage(t *testing.T) {
	p := Paginate(9, 25, 30, url.Values{})
	assert.Equal(t, 0, p.From)
	assert.Equal(t, 0, p.To)
	assert.Nil(t, p.Next)
	require.NotNil(t, p.Prev)
	assert.Equal(t, 8, p.Prev.Page)
}

func TestPaginate_SizeOptionsResetPage(t *testing.T) {
	p := Paginate(4, 50, 1000, url.Values{"page": {"4"}, "pageSize": {"50"}})
	require.Len(t, p.SizeOptions, 4)
	for _, opt := range p.SizeOptions {
		v, err := url.ParseQuery(opt.Href[1:])
		require.NoError(t, err)
		assert.Equal(t, "1", v.Get("page"))
		assert.Equal(t, opt.Size == 50, opt.Selected)
	}
	assert.Equal(t, "?page=1&pageSize=100", p.SizeOptions[2].Href)
}

func TestPaginate_ClampsInvalidInput(t *testing.T) {
	p := Paginate(0, 0, -5, nil)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, listquery.DefaultPageSize, p.PageSize)
	assert.Equal(t, 0, p.Total)
}
