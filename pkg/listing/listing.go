// Package listing serves paged, filtered and sorted lists of organizations
// and grants. A store failure never fails a list: it yields an empty page
// carrying an explicit Failure so callers can tell it from a true zero.
package listing

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/otherjamesbrown/grantqa/pkg/catalog"
	pferrors "github.com/otherjamesbrown/grantqa/pkg/errors"
	"github.com/otherjamesbrown/grantqa/pkg/listquery"
	"github.com/otherjamesbrown/grantqa/pkg/logging"
	"github.com/otherjamesbrown/grantqa/pkg/observability"
)

// Store is the read surface the list service needs.
type Store interface {
	ListOrganizations(ctx context.Context, q listquery.Query) ([]catalog.Organization, error)
	CountOrganizations(ctx context.Context, q listquery.Query) (int, error)
	ListGrants(ctx context.Context, q listquery.Query) ([]catalog.Grant, error)
	CountGrants(ctx context.Context, q listquery.Query) (int, error)
}

// Failure describes why a list came back empty.
type Failure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Result is one page of rows plus the exact total for the filters.
type Result[T any] struct {
	Rows     []T      `json:"rows"`
	Total    int      `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
	Err      *Failure `json:"error,omitempty"`
}

// Failed reports whether the rows are missing because the store failed.
func (r Result[T]) Failed() bool {
	return r.Err != nil
}

// Service runs list queries against a Store.
type Service struct {
	store   Store
	logger  logging.Logger
	metrics *observability.Metrics
}

// NewService creates a list service. metrics may be nil.
func NewService(store Store, logger logging.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		store:   store,
		logger:  logger.With(logging.F("component", "listing")),
		metrics: metrics,
	}
}

// Organizations returns one page of organizations for q.
func (s *Service) Organizations(ctx context.Context, q listquery.Query) Result[catalog.Organization] {
	q.Entity = catalog.EntityOrganization
	return run(ctx, s, q, s.store.ListOrganizations, s.store.CountOrganizations)
}

// Grants returns one page of grants for q, each joined to its organization.
func (s *Service) Grants(ctx context.Context, q listquery.Query) Result[catalog.Grant] {
	q.Entity = catalog.EntityGrant
	return run(ctx, s, q, s.store.ListGrants, s.store.CountGrants)
}

// run fetches the page and the total concurrently.
func run[T any](
	ctx context.Context,
	s *Service,
	q listquery.Query,
	list func(context.Context, listquery.Query) ([]T, error),
	count func(context.Context, listquery.Query) (int, error),
) Result[T] {
	result := Result[T]{Rows: []T{}, Page: q.Page, PageSize: q.PageSize}

	var rows []T
	var total int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = list(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = count(gctx, q)
		return err
	})

	if err := g.Wait(); err != nil {
		kind := pferrors.KindStore
		if pferrors.IsTimeout(err) {
			kind = pferrors.KindTimeout
		}
		result.Err = &Failure{Kind: kind, Message: failureMessage(kind)}
		s.metrics.RecordListFailure(string(q.Entity), kind)
		s.logger.WithContext(ctx).Error("List query failed",
			logging.F("entity", string(q.Entity)),
			logging.F("kind", kind),
			logging.Err(err))
		return result
	}

	if rows != nil {
		result.Rows = rows
	}
	result.Total = total
	return result
}

func failureMessage(kind string) string {
	if kind == pferrors.KindTimeout {
		return "the data store did not answer in time"
	}
	return "the data store could not be read"
}
