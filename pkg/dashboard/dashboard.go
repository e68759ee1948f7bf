// Package dashboard assembles the summary counts and the per-record detail
// views of the quality dashboard.
package dashboard

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/otherjamesbrown/grantqa/pkg/catalog"
	"github.com/otherjamesbrown/grantqa/pkg/listquery"
	"github.com/otherjamesbrown/grantqa/pkg/logging"
)

// Store is the read surface the dashboard needs.
type Store interface {
	CountOrganizations(ctx context.Context, q listquery.Query) (int, error)
	CountGrants(ctx context.Context, q listquery.Query) (int, error)
	CountUnresolvedIssues(ctx context.Context) (int, error)
	DuplicateStats(ctx context.Context) (catalog.ReviewStats, error)

	GetOrganization(ctx context.Context, id string) (*catalog.Organization, error)
	GrantsForOrganization(ctx context.Context, orgID string) ([]catalog.Grant, error)
	SourcesForOrganization(ctx context.Context, orgID string) ([]catalog.Source, error)
	GetGrant(ctx context.Context, id string) (*catalog.Grant, error)
	ListUnresolvedIssues(ctx context.Context, limit, offset int) ([]catalog.ValidationIssue, error)
}

// Summary holds the headline counts.
type Summary struct {
	TotalOrganizations           int `json:"total_organizations"`
	TotalGrants                  int `json:"total_grants"`
	UnresolvedIssues             int `json:"unresolved_issues"`
	LowCompletenessOrganizations int `json:"low_completeness_organizations"`
	LowCompletenessGrants        int `json:"low_completeness_grants"`
	PendingDuplicates            int `json:"pending_duplicates"`
}

// OrganizationDetail is an organization with its grants and sources.
type OrganizationDetail struct {
	Organization *catalog.Organization `json:"organization"`
	Grants       []catalog.Grant       `json:"grants"`
	Sources      []catalog.Source      `json:"sources"`
}

// GrantDetail is a grant with its parent organization.
type GrantDetail struct {
	Grant        *catalog.Grant        `json:"grant"`
	Organization *catalog.Organization `json:"organization"`
}

// IssuesPage is one page of unresolved validation issues.
type IssuesPage struct {
	Rows     []catalog.ValidationIssue `json:"rows"`
	Total    int                       `json:"total"`
	Page     int                       `json:"page"`
	PageSize int                       `json:"page_size"`
}

// Service builds dashboard views.
type Service struct {
	store  Store
	logger logging.Logger
}

// NewService creates a dashboard service.
func NewService(store Store, logger logging.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With(logging.F("component", "dashboard")),
	}
}

// Summary runs the headline counts concurrently. Any failed count fails
// the summary.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	var sum Summary
	lowOrgs := listquery.Query{Entity: catalog.EntityOrganization, Filter: listquery.FilterLowCompleteness}
	// Grant counts cover the whole table, orphans included.
	allGrants := listquery.Query{Entity: catalog.EntityGrant, IncludeOrphans: true}
	lowGrants := listquery.Query{Entity: catalog.EntityGrant, Filter: listquery.FilterLowCompleteness, IncludeOrphans: true}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sum.TotalOrganizations, err = s.store.CountOrganizations(gctx, listquery.Query{Entity: catalog.EntityOrganization})
		return err
	})
	g.Go(func() (err error) {
		sum.TotalGrants, err = s.store.CountGrants(gctx, allGrants)
		return err
	})
	g.Go(func() (err error) {
		sum.UnresolvedIssues, err = s.store.CountUnresolvedIssues(gctx)
		return err
	})
	g.Go(func() (err error) {
		sum.LowCompletenessOrganizations, err = s.store.CountOrganizations(gctx, lowOrgs)
		return err
	})
	g.Go(func() (err error) {
		sum.LowCompletenessGrants, err = s.store.CountGrants(gctx, lowGrants)
		return err
	})
	g.Go(func() error {
		stats, err := s.store.DuplicateStats(gctx)
		sum.PendingDuplicates = stats.Pending
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.WithContext(ctx).Error("Summary failed", logging.Err(err))
		return nil, fmt.Errorf("dashboard summary: %w", err)
	}
	return &sum, nil
}

// OrganizationDetail loads an organization, its grants and its sources
// concurrently.
func (s *Service) OrganizationDetail(ctx context.Context, id string) (*OrganizationDetail, error) {
	var detail OrganizationDetail

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		detail.Organization, err = s.store.GetOrganization(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		detail.Grants, err = s.store.GrantsForOrganization(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		detail.Sources, err = s.store.SourcesForOrganization(gctx, id)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("organization %s: %w", id, err)
	}
	if detail.Grants == nil {
		detail.Grants = []catalog.Grant{}
	}
	if detail.Sources == nil {
		detail.Sources = []catalog.Source{}
	}
	return &detail, nil
}

// GrantDetail loads a grant and then its organization.
func (s *Service) GrantDetail(ctx context.Context, id string) (*GrantDetail, error) {
	grant, err := s.store.GetGrant(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("grant %s: %w", id, err)
	}
	org, err := s.store.GetOrganization(ctx, grant.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("organization of grant %s: %w", id, err)
	}
	grant.Organization = org.Ref()
	return &GrantDetail{Grant: grant, Organization: org}, nil
}

// Issues returns one page of unresolved validation issues, newest first.
func (s *Service) Issues(ctx context.Context, page, pageSize int) (*IssuesPage, error) {
	if page < 1 {
		page = listquery.DefaultPage
	}
	if pageSize < 1 {
		pageSize = listquery.DefaultPageSize
	}
	if pageSize > listquery.MaxPageSize {
		pageSize = listquery.MaxPageSize
	}
	out := IssuesPage{Page: page, PageSize: pageSize}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Rows, err = s.store.ListUnresolvedIssues(gctx, pageSize, (page-1)*pageSize)
		return err
	})
	g.Go(func() (err error) {
		out.Total, err = s.store.CountUnresolvedIssues(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("validation issues: %w", err)
	}
	if out.Rows == nil {
		out.Rows = []catalog.ValidationIssue{}
	}
	return &out, nil
}
