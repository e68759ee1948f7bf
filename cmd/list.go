package cmd

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/grantqa/pkg/catalog"
	"github.com/otherjamesbrown/grantqa/pkg/listing"
	"github.com/otherjamesbrown/grantqa/pkg/listquery"
	"github.com/otherjamesbrown/grantqa/pkg/tablestate"
)

// listFlags are the list view parameters. They go through the same
// normalization as the HTTP query string, so bad values fall back to the
// defaults instead of failing.
type listFlags struct {
	filter       string
	sort         string
	order        string
	page         int
	pageSize     int
	search       string
	organization string
}

func (f *listFlags) register(cmd *cobra.Command, entity catalog.EntityType) {
	cmd.Flags().StringVar(&f.filter, "filter", "", "Completeness filter: low_completeness, high_completeness")
	cmd.Flags().StringVar(&f.sort, "sort", listquery.DefaultSort, "Sort field")
	cmd.Flags().StringVar(&f.order, "order", string(listquery.Desc), "Sort order: asc, desc")
	cmd.Flags().IntVar(&f.page, "page", listquery.DefaultPage, "Page number")
	cmd.Flags().IntVar(&f.pageSize, "page-size", listquery.DefaultPageSize, "Rows per page (max 1000)")
	if entity == catalog.EntityGrant {
		cmd.Flags().StringVarP(&f.search, "search", "s", "", "Case-insensitive substring match on grant name")
		cmd.Flags().StringVar(&f.organization, "organization", "", "Only grants of this organization ID")
	}
}

func (f *listFlags) values() url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("filter", f.filter)
	set("sort", f.sort)
	set("order", f.order)
	set("search", f.search)
	set("organization", f.organization)
	v.Set("page", strconv.Itoa(f.page))
	v.Set("pageSize", strconv.Itoa(f.pageSize))
	return v
}

func (f *listFlags) query(entity catalog.EntityType) listquery.Query {
	return listquery.Parse(entity, f.values())
}

// listError turns a degraded list result into a command error.
func listError[T any](entity string, res listing.Result[T]) error {
	if !res.Failed() {
		return nil
	}
	return fmt.Errorf("listing %s failed (%s): %s", entity, res.Err.Kind, res.Err.Message)
}

// listOutput is the machine-readable shape of a list command.
type listOutput[T any] struct {
	Rows       []T                   `json:"rows"`
	Total      int                   `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	Sort       string                `json:"sort"`
	Order      listquery.Order       `json:"order"`
	Pagination tablestate.Pagination `json:"pagination"`
}

func newListOutput[T any](q listquery.Query, res listing.Result[T]) listOutput[T] {
	return listOutput[T]{
		Rows:       res.Rows,
		Total:      res.Total,
		Page:       res.Page,
		PageSize:   res.PageSize,
		Sort:       q.Sort,
		Order:      q.Order,
		Pagination: tablestate.Paginate(res.Page, res.PageSize, res.Total, q.Values()),
	}
}
