package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/otherjamesbrown/grantqa/pkg/catalog"
	"github.com/otherjamesbrown/grantqa/pkg/db"
	pferrors "github.com/otherjamesbrown/grantqa/pkg/errors"
	"github.com/otherjamesbrown/grantqa/pkg/listquery"
)

// Memory is an in-memory dataset with the same read semantics as Postgres.
// It backs tests and the demo server.
type Memory struct {
	mu         sync.RWMutex
	orgs       []catalog.Organization
	grants     []catalog.Grant
	sources    []catalog.Source
	issues     []catalog.ValidationIssue
	duplicates []catalog.DuplicateCandidate

	failure error
	queries atomic.Int64
	now     func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// AddOrganizations appends organizations to the dataset.
func (m *Memory) AddOrganizations(orgs ...catalog.Organization) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgs = append(m.orgs, orgs...)
}

// AddGrants appends grants to the dataset.
func (m *Memory) AddGrants(grants ...catalog.Grant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants = append(m.grants, grants...)
}

// AddSources appends sources to the dataset.
func (m *Memory) AddSources(sources ...catalog.Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = append(m.sources, sources...)
}

// AddIssues appends validation issues to the dataset.
func (m *Memory) AddIssues(issues ...catalog.ValidationIssue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issues = append(m.issues, issues...)
}

// AddDuplicates appends duplicate candidates to the dataset.
func (m *Memory) AddDuplicates(candidates ...catalog.DuplicateCandidate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duplicates = append(m.duplicates, candidates...)
}

// FailWith makes every subsequent query fail with err. A nil err restores
// normal operation.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = err
}

// Queries returns the number of queries issued against the store.
func (m *Memory) Queries() int64 {
	return m.queries.Load()
}

// Health reports the store as healthy unless a failure is injected.
func (m *Memory) Health(ctx context.Context) *db.HealthStatus {
	if err := m.begin(ctx, "health"); err != nil {
		return &db.HealthStatus{Error: err.Error()}
	}
	return &db.HealthStatus{Healthy: true}
}

// begin counts a query and reports injected or context failures. Callers
// must not hold the lock.
func (m *Memory) begin(ctx context.Context, op string) error {
	m.queries.Add(1)
	m.mu.RLock()
	failure := m.failure
	m.mu.RUnlock()
	if failure != nil {
		return classify(ctx, op, failure)
	}
	if err := ctx.Err(); err != nil {
		return classify(ctx, op, err)
	}
	return nil
}

// ==================== Ordering ====================

// sortValue is one sortable cell. Null cells order last in both directions.
type sortValue struct {
	null bool
	num  float64
	str  string
	text bool
}

func num(v float64) sortValue {
	return sortValue{num: v}
}

func str(s string) sortValue {
	return sortValue{str: s, text: true, null: s == ""}
}

func when(t *time.Time) sortValue {
	if t == nil {
		return sortValue{null: true}
	}
	return sortValue{num: float64(t.UnixNano())}
}

func at(t time.Time) sortValue {
	return when(&t)
}

func orgSortValue(o catalog.Organization, key string) sortValue {
	switch key {
	case "canonical_name":
		return str(o.CanonicalName)
	case "full_name":
		return str(o.FullName)
	case "active_grants_count":
		return num(float64(o.ActiveGrantsCount))
	case "total_grants_count":
		return num(float64(o.TotalGrantsCount))
	case "last_updated":
		return when(o.LastUpdated)
	case "created_at":
		return at(o.CreatedAt)
	case "updated_at":
		return at(o.UpdatedAt)
	default:
		return num(o.CompletenessScore)
	}
}

func grantSortValue(g catalog.Grant, key string) sortValue {
	switch key {
	case "grant_name":
		return str(g.GrantName)
	case "award_amount":
		amount, ok := g.AwardAmountParsed.SortAmount()
		if !ok {
			return sortValue{null: true}
		}
		return num(amount)
	case "application_deadline":
		return str(g.ApplicationDeadline)
	case "enriched_at":
		return when(g.EnrichedAt)
	case "created_at":
		return at(g.CreatedAt)
	case "updated_at":
		return at(g.UpdatedAt)
	default:
		return num(g.CompletenessScore)
	}
}

// compareValues orders a against b for the given direction, nulls last.
func compareValues(coll *collate.Collator, a, b sortValue, order listquery.Order) int {
	switch {
	case a.null && b.null:
		return 0
	case a.null:
		return 1
	case b.null:
		return -1
	}

	var c int
	if a.text {
		c = coll.CompareString(a.str, b.str)
	} else if a.num < b.num {
		c = -1
	} else if a.num > b.num {
		c = 1
	}
	if order == listquery.Desc {
		c = -c
	}
	return c
}

func newCollator() *collate.Collator {
	return collate.New(language.Norwegian)
}

// ==================== Lists ====================

func (m *Memory) filterOrganizations(q listquery.Query) []catalog.Organization {
	out := []catalog.Organization{}
	for _, o := range m.orgs {
		if q.Filter.Matches(o.CompletenessScore) {
			out = append(out, o)
		}
	}
	return out
}

// joinedGrants returns grants with a resolvable organization, with the
// organization reference attached.
func (m *Memory) joinedGrants() []catalog.Grant {
	byID := make(map[string]catalog.Organization, len(m.orgs))
	for _, o := range m.orgs {
		byID[o.ID] = o
	}
	out := []catalog.Grant{}
	for _, g := range m.grants {
		o, ok := byID[g.OrganizationID]
		if !ok {
			continue
		}
		g.Organization = o.Ref()
		out = append(out, g)
	}
	return out
}

func (m *Memory) filterGrants(q listquery.Query) []catalog.Grant {
	fold := cases.Fold()
	needle := fold.String(q.Search)
	out := []catalog.Grant{}
	grants := m.joinedGrants()
	if q.IncludeOrphans {
		grants = m.grants
	}
	for _, g := range grants {
		if !q.Filter.Matches(g.CompletenessScore) {
			continue
		}
		if q.OrganizationID != "" && g.OrganizationID != q.OrganizationID {
			continue
		}
		if needle != "" && !strings.Contains(fold.String(g.GrantName), needle) {
			continue
		}
		out = append(out, g)
	}
	return out
}

func page[T any](rows []T, q listquery.Query) []T {
	offset := q.Offset()
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + q.PageSize
	if end > len(rows) {
		end = len(rows)
	}
	return append([]T{}, rows[offset:end]...)
}

// ListOrganizations returns one page of organizations.
func (m *Memory) ListOrganizations(ctx context.Context, q listquery.Query) ([]catalog.Organization, error) {
	if err := m.begin(ctx, "list_organizations"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.filterOrganizations(q)
	coll := newCollator()
	key := q.SortKey()
	sort.SliceStable(rows, func(i, j int) bool {
		c := compareValues(coll, orgSortValue(rows[i], key), orgSortValue(rows[j], key), q.Order)
		if c != 0 {
			return c < 0
		}
		return rows[i].ID < rows[j].ID
	})
	return page(rows, q), nil
}

// CountOrganizations counts organizations matching the query filters.
func (m *Memory) CountOrganizations(ctx context.Context, q listquery.Query) (int, error) {
	if err := m.begin(ctx, "count_organizations"); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.filterOrganizations(q)), nil
}

// ListGrants returns one page of grants joined to their organization.
func (m *Memory) ListGrants(ctx context.Context, q listquery.Query) ([]catalog.Grant, error) {
	if err := m.begin(ctx, "list_grants"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.filterGrants(q)
	coll := newCollator()
	key := q.SortKey()
	sort.SliceStable(rows, func(i, j int) bool {
		c := compareValues(coll, grantSortValue(rows[i], key), grantSortValue(rows[j], key), q.Order)
		if c != 0 {
			return c < 0
		}
		return rows[i].ID < rows[j].ID
	})
	return page(rows, q), nil
}

// CountGrants counts grants matching the query filters. Grants without an
// organization count only when q.IncludeOrphans is set.
func (m *Memory) CountGrants(ctx context.Context, q listquery.Query) (int, error) {
	if err := m.begin(ctx, "count_grants"); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.filterGrants(q)), nil
}

// ==================== Search ====================

func containsAny(fold cases.Caser, needle string, fields ...string) bool {
	for _, f := range fields {
		if f != "" && strings.Contains(fold.String(f), needle) {
			return true
		}
	}
	return false
}

// SearchOrganizations matches term as a case-insensitive substring of the
// canonical name, full name or description.
func (m *Memory) SearchOrganizations(ctx context.Context, term string, limit int) ([]catalog.Organization, error) {
	if err := m.begin(ctx, "search_organizations"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit, _ = window(limit, 0, MaxRows)
	fold := cases.Fold()
	needle := fold.String(term)
	out := []catalog.Organization{}
	for _, o := range m.orgs {
		if containsAny(fold, needle, o.CanonicalName, o.FullName, o.Description) {
			out = append(out, o)
		}
	}
	coll := newCollator()
	sort.SliceStable(out, func(i, j int) bool {
		if c := coll.CompareString(out[i].CanonicalName, out[j].CanonicalName); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SearchGrants matches term as a case-insensitive substring of the grant
// name, description or eligibility, over grants with an organization.
func (m *Memory) SearchGrants(ctx context.Context, term string, limit int) ([]catalog.Grant, error) {
	if err := m.begin(ctx, "search_grants"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit, _ = window(limit, 0, MaxRows)
	fold := cases.Fold()
	needle := fold.String(term)
	out := []catalog.Grant{}
	for _, g := range m.joinedGrants() {
		if containsAny(fold, needle, g.GrantName, g.Description, g.Eligibility) {
			out = append(out, g)
		}
	}
	coll := newCollator()
	sort.SliceStable(out, func(i, j int) bool {
		if c := coll.CompareString(out[i].GrantName, out[j].GrantName); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ==================== Details ====================

// GetOrganization returns one organization by ID.
func (m *Memory) GetOrganization(ctx context.Context, id string) (*catalog.Organization, error) {
	if err := m.begin(ctx, "get_organization"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orgs {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, fmt.Errorf("organization %s: %w", id, pferrors.ErrNotFound)
}

// GrantsForOrganization returns an organization's grants by name.
func (m *Memory) GrantsForOrganization(ctx context.Context, orgID string) ([]catalog.Grant, error) {
	if err := m.begin(ctx, "grants_for_organization"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []catalog.Grant{}
	for _, g := range m.grants {
		if g.OrganizationID == orgID {
			out = append(out, g)
		}
	}
	coll := newCollator()
	sort.SliceStable(out, func(i, j int) bool {
		if c := coll.CompareString(out[i].GrantName, out[j].GrantName); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SourcesForOrganization returns the sources attributed to an organization.
func (m *Memory) SourcesForOrganization(ctx context.Context, orgID string) ([]catalog.Source, error) {
	if err := m.begin(ctx, "sources_for_organization"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []catalog.Source{}
	for _, s := range m.sources {
		if s.OrganizationID == orgID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].URL != out[j].URL {
			return out[i].URL < out[j].URL
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetGrant returns one grant by ID.
func (m *Memory) GetGrant(ctx context.Context, id string) (*catalog.Grant, error) {
	if err := m.begin(ctx, "get_grant"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, g := range m.grants {
		if g.ID == id {
			return &g, nil
		}
	}
	return nil, fmt.Errorf("grant %s: %w", id, pferrors.ErrNotFound)
}

// ==================== Validation issues ====================

func (m *Memory) unresolvedIssues() []catalog.ValidationIssue {
	out := []catalog.ValidationIssue{}
	for _, v := range m.issues {
		if !v.IsResolved {
			out = append(out, v)
		}
	}
	return out
}

// CountUnresolvedIssues counts validation issues not yet resolved.
func (m *Memory) CountUnresolvedIssues(ctx context.Context) (int, error) {
	if err := m.begin(ctx, "count_unresolved_issues"); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.unresolvedIssues()), nil
}

// ListUnresolvedIssues returns unresolved issues, newest first.
func (m *Memory) ListUnresolvedIssues(ctx context.Context, limit, offset int) ([]catalog.ValidationIssue, error) {
	if err := m.begin(ctx, "list_unresolved_issues"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit, offset = window(limit, offset, MaxRows)
	out := m.unresolvedIssues()
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return slice(out, limit, offset), nil
}

func slice[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

// ==================== Duplicate candidates ====================

func (m *Memory) entityName(entityType, id string) string {
	switch catalog.EntityType(entityType) {
	case catalog.EntityOrganization:
		for _, o := range m.orgs {
			if o.ID == id {
				return o.DisplayName()
			}
		}
	case catalog.EntityGrant:
		for _, g := range m.grants {
			if g.ID == id {
				return g.GrantName
			}
		}
	}
	return ""
}

// PendingDuplicates returns unreviewed candidates, highest similarity first,
// with the display names of both entities.
func (m *Memory) PendingDuplicates(ctx context.Context, limit, offset int) ([]catalog.DuplicateCandidate, error) {
	if err := m.begin(ctx, "pending_duplicates"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit, offset = window(limit, offset, MaxRows)
	out := []catalog.DuplicateCandidate{}
	for _, d := range m.duplicates {
		if d.State() != catalog.ReviewPending {
			continue
		}
		d.Entity1Name = m.entityName(d.EntityType, d.Entity1ID)
		d.Entity2Name = m.entityName(d.EntityType, d.Entity2ID)
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SimilarityScore != out[j].SimilarityScore {
			return out[i].SimilarityScore > out[j].SimilarityScore
		}
		return out[i].ID < out[j].ID
	})
	return slice(out, limit, offset), nil
}

// DuplicateStats counts candidates per review state.
func (m *Memory) DuplicateStats(ctx context.Context) (catalog.ReviewStats, error) {
	var stats catalog.ReviewStats
	if err := m.begin(ctx, "duplicate_stats"); err != nil {
		return stats, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, d := range m.duplicates {
		switch d.State() {
		case catalog.ReviewPending:
			stats.Pending++
		case catalog.ReviewConfirmed:
			stats.Confirmed++
		case catalog.ReviewRejected:
			stats.Rejected++
		}
	}
	return stats, nil
}

// DecideDuplicate records a review verdict on a pending candidate.
func (m *Memory) DecideDuplicate(ctx context.Context, id string, isDuplicate bool, notes string) (*catalog.DuplicateCandidate, error) {
	if err := m.begin(ctx, "decide_duplicate"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.duplicates {
		d := &m.duplicates[i]
		if d.ID != id {
			continue
		}
		if _, err := catalog.Transition(d.State(), isDuplicate); err != nil {
			return nil, fmt.Errorf("decide_duplicate: %w", err)
		}
		verdict := isDuplicate
		reviewedAt := m.now()
		d.IsDuplicate = &verdict
		d.ReviewedAt = &reviewedAt
		d.Notes = notes
		out := *d
		return &out, nil
	}
	return nil, fmt.Errorf("duplicate candidate %s: %w", id, pferrors.ErrNotFound)
}
