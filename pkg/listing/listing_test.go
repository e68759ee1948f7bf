package listing

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/grantqa/pkg/catalog"
	pferrors "github.com/otherjamesbrown/grantqa/pkg/errors"
	"github.com/otherjamesbrown/grantqa/pkg/listquery"
	"github.com/otherjamesbrown/grantqa/pkg/logging"
	"github.com/otherjamesbrown/grantqa/pkg/observability"
	"github.com/otherjamesbrown/grantqa/pkg/store"
)

func newService(s Store) *Service {
	return NewService(s, logging.NewNopLogger(), observability.NewNopMetrics())
}

func query(entity catalog.EntityType, pairs ...string) listquery.Query {
	v := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		v.Set(pairs[i], pairs[i+1])
	}
	return listquery.Parse(entity, v)
}

func TestOrganizations_Filters(t *testing.T) {
	m := store.NewMemory()
	m.AddOrganizations(
		catalog.Organization{ID: "o1", CanonicalName: "acme", CompletenessScore: 40},
		catalog.Organization{ID: "o2", CanonicalName: "beta", CompletenessScore: 90},
	)
	svc := newService(m)

	low := svc.Organizations(context.Background(), query(catalog.EntityOrganization, "filter", "low_completeness"))
	require.False(t, low.Failed())
	require.Len(t, low.Rows, 1)
	assert.Equal(t, "o1", low.Rows[0].ID)
	assert.Equal(t, 1, low.Total)

	high := svc.Organizations(context.Background(), query(catalog.EntityOrganization, "filter", "high_completeness"))
	require.Len(t, high.Rows, 1)
	assert.Equal(t, "o2", high.Rows[0].ID)
	assert.Equal(t, 1, high.Total)
}

func TestGrants_PageMetadata(t *testing.T) {
	svc := newService(store.NewDemo())

	res := svc.Grants(context.Background(), query(catalog.EntityGrant, "page", "2", "pageSize", "3"))
	assert.False(t, res.Failed())
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 2, res.Page)
	assert.Equal(t, 3, res.PageSize)
	assert.Len(t, res.Rows, 1)
}

func TestGrants_PastLastPage(t *testing.T) {
	svc := newService(store.NewDemo())

	res := svc.Grants(context.Background(), query(catalog.EntityGrant, "page", "50"))
	assert.False(t, res.Failed())
	assert.Equal(t, 4, res.Total)
	assert.NotNil(t, res.Rows)
	assert.Empty(t, res.Rows)
}

func TestList_StoreFailureIsFlagged(t *testing.T) {
	m := store.NewDemo()
	m.FailWith(errors.New("connection reset"))
	svc := newService(m)

	res := svc.Organizations(context.Background(), query(catalog.EntityOrganization))
	require.True(t, res.Failed())
	assert.Equal(t, pferrors.KindStore, res.Err.Kind)
	assert.NotEmpty(t, res.Err.Message)
	assert.Equal(t, 0, res.Total)
	assert.NotNil(t, res.Rows)
	assert.Empty(t, res.Rows)
}

func TestList_TimeoutIsDistinct(t *testing.T) {
	m := store.NewDemo()
	m.FailWith(context.DeadlineExceeded)
	svc := newService(m)

	res := svc.Grants(context.Background(), query(catalog.EntityGrant))
	require.True(t, res.Failed())
	assert.Equal(t, pferrors.KindTimeout, res.Err.Kind)
}

func TestList_ConfirmedZeroIsNotFailure(t *testing.T) {
	svc := newService(store.NewMemory())

	res := svc.Organizations(context.Background(), query(catalog.EntityOrganization))
	assert.False(t, res.Failed())
	assert.Equal(t, 0, res.Total)
	assert.Empty(t, res.Rows)
}

func TestList_Idempotent(t *testing.T) {
	svc := newService(store.NewDemo())
	q := query(catalog.EntityGrant, "sort", "award_amount", "order", "asc")

	assert.Equal(t, svc.Grants(context.Background(), q), svc.Grants(context.Background(), q))
}

// countingStore records the queries it was asked to run.
type countingStore struct {
	store.Memory
	seen []listquery.Query
}

func (c *countingStore) ListOrganizations(ctx context.Context, q listquery.Query) ([]catalog.Organization, error) {
	c.seen = append(c.seen, q)
	return []catalog.Organization{}, nil
}

func TestOrganizations_ForcesEntity(t *testing.T) {
	cs := &countingStore{}
	svc := newService(cs)

	svc.Organizations(context.Background(), query(catalog.EntityGrant, "search", "x"))
	require.Len(t, cs.seen, 1)
	assert.Equal(t, catalog.EntityOrganization, cs.seen[0].Entity)
}
