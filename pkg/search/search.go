// Package search implements the federated substring search over
// organizations and grants.
package search

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/otherjamesbrown/grantqa/pkg/catalog"
	pferrors "github.com/otherjamesbrown/grantqa/pkg/errors"
	"github.com/otherjamesbrown/grantqa/pkg/logging"
	"github.com/otherjamesbrown/grantqa/pkg/observability"
)

// Limit caps the rows returned per entity type.
const Limit = 50

// Scope selects which entity types are searched.
type Scope string

const (
	ScopeAll           Scope = "all"
	ScopeOrganizations Scope = "organizations"
	ScopeGrants        Scope = "grants"
)

// ParseScope validates a scope. An empty scope means all.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.TrimSpace(s)) {
	case "", ScopeAll:
		return ScopeAll, nil
	case ScopeOrganizations:
		return ScopeOrganizations, nil
	case ScopeGrants:
		return ScopeGrants, nil
	default:
		return "", fmt.Errorf("unknown search type %q: %w", s, pferrors.ErrValidation)
	}
}

func (s Scope) includesOrganizations() bool {
	return s == ScopeAll || s == ScopeOrganizations
}

func (s Scope) includesGrants() bool {
	return s == ScopeAll || s == ScopeGrants
}

// Result is one search hit.
type Result struct {
	ID                string  `json:"id"`
	Type              string  `json:"type"`
	Name              string  `json:"name"`
	Description       string  `json:"description,omitempty"`
	OrganizationName  string  `json:"organization_name,omitempty"`
	CompletenessScore float64 `json:"completeness_score"`
}

// Store is the read surface the search service needs.
type Store interface {
	SearchOrganizations(ctx context.Context, term string, limit int) ([]catalog.Organization, error)
	SearchGrants(ctx context.Context, term string, limit int) ([]catalog.Grant, error)
}

// Service runs federated searches.
type Service struct {
	store   Store
	logger  logging.Logger
	metrics *observability.Metrics
}

// NewService creates a search service. metrics may be nil.
func NewService(store Store, logger logging.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		store:   store,
		logger:  logger.With(logging.F("component", "search")),
		metrics: metrics,
	}
}

// Search returns organization hits followed by grant hits. A blank query
// returns no results without touching the store. Any store failure fails
// the whole search; partial results are never returned.
func (s *Service) Search(ctx context.Context, q string, scope Scope) ([]Result, error) {
	term := strings.TrimSpace(q)
	if term == "" {
		return []Result{}, nil
	}

	var orgs []catalog.Organization
	var grants []catalog.Grant

	g, gctx := errgroup.WithContext(ctx)
	if scope.includesOrganizations() {
		g.Go(func() error {
			var err error
			orgs, err = s.store.SearchOrganizations(gctx, term, Limit)
			return err
		})
	}
	if scope.includesGrants() {
		g.Go(func() error {
			var err error
			grants, err = s.store.SearchGrants(gctx, term, Limit)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.WithContext(ctx).Error("Search failed",
			logging.F("scope", string(scope)),
			logging.Err(err))
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]Result, 0, len(orgs)+len(grants))
	for _, o := range orgs {
		results = append(results, Result{
			ID:                o.ID,
			Type:              string(catalog.EntityOrganization),
			Name:              o.DisplayName(),
			Description:       o.Description,
			CompletenessScore: o.CompletenessScore,
		})
	}
	for _, gr := range grants {
		r := Result{
			ID:                gr.ID,
			Type:              string(catalog.EntityGrant),
			Name:              gr.GrantName,
			Description:       gr.Description,
			CompletenessScore: gr.CompletenessScore,
		}
		if gr.Organization != nil {
			r.OrganizationName = gr.Organization.DisplayName()
		}
		results = append(results, r)
	}

	s.metrics.RecordSearch(string(scope), len(results))
	s.logger.WithContext(ctx).Debug("Search executed",
		logging.F("scope", string(scope)),
		logging.F("results", len(results)))
	return results, nil
}
