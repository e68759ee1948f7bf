//go:build integration

package store

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/grantqa/pkg/catalog"
	pferrors "github.com/otherjamesbrown/grantqa/pkg/errors"
	"github.com/otherjamesbrown/grantqa/pkg/logging"
	"github.com/otherjamesbrown/grantqa/pkg/observability"
)

// testSchema mirrors the columns the store reads. The production schema is
// owned upstream.
const testSchema = `
CREATE TABLE organizations (
	id uuid PRIMARY KEY,
	canonical_name text NOT NULL,
	full_name text, description text, website text, contact_email text, phone text,
	org_type text, enrichment_version text, last_updated timestamptz,
	total_grants_count int, active_grants_count int, completeness_score numeric,
	fields_with_content text[], fields_missing text[],
	created_at timestamptz NOT NULL DEFAULT now(), updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE grants (
	id uuid PRIMARY KEY,
	organization_id uuid NOT NULL,
	grant_slug text, grant_name text NOT NULL, grant_name_hash text,
	description text, description_hash text, eligibility text, eligibility_hash text,
	geographic_restrictions text, geographic_restrictions_hash text,
	application_deadline text, application_deadline_hash text,
	award_amount text, award_amount_hash text,
	application_process text, application_process_hash text,
	contact_email text, contact_email_hash text, contact_phone text, contact_phone_hash text,
	contact_address text, contact_address_hash text,
	enriched_at timestamptz, enrichment_version text, data_completeness text,
	completeness_score numeric, fields_with_content text[], fields_missing text[],
	award_amount_parsed jsonb, application_deadline_parsed jsonb,
	created_at timestamptz NOT NULL DEFAULT now(), updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE sources (
	id uuid PRIMARY KEY, organization_id uuid NOT NULL, url text NOT NULL,
	source_type text, content_hash text, fetched_at timestamptz, fetch_method text,
	automation_difficulty text, created_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE validation_issues (
	id uuid PRIMARY KEY, entity_type text NOT NULL, entity_id uuid NOT NULL, issue_type text NOT NULL,
	field_name text, severity text, description text, is_resolved boolean DEFAULT false,
	resolved_at timestamptz, created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE duplicate_candidates (
	id uuid PRIMARY KEY, entity_type text NOT NULL, entity_1_id uuid NOT NULL, entity_2_id uuid NOT NULL,
	similarity_score numeric, match_method text, is_duplicate boolean, reviewed_at timestamptz,
	notes text, created_at timestamptz NOT NULL DEFAULT now()
);`

type fixture struct {
	store *Postgres
	pool  *pgxpool.Pool
	ids   map[string]string
}

func setupPostgres(t *testing.T) *fixture {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set - skipping integration test")
	}
	ctx := context.Background()

	admin, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err, "failed to connect to test database")
	t.Cleanup(admin.Close)

	schema := "grantqa_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
	})

	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, testSchema)
	require.NoError(t, err)

	f := &fixture{
		store: NewPostgres(pool, logging.NewNopLogger(), 5*time.Second, observability.NewNopMetrics()),
		pool:  pool,
		ids:   map[string]string{},
	}
	for _, name := range []string{"o1", "o2", "g1", "g2", "g3", "d1", "d2"} {
		f.ids[name] = uuid.NewString()
	}
	f.seed(t)
	return f
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	exec := func(sql string, args ...any) {
		_, err := f.pool.Exec(ctx, sql, args...)
		require.NoError(t, err, sql)
	}

	exec(`INSERT INTO organizations (id, canonical_name, completeness_score) VALUES ($1, 'acme', 40), ($2, 'beta', 90)`,
		f.ids["o1"], f.ids["o2"])
	exec(`INSERT INTO grants (id, organization_id, grant_name, award_amount_parsed, completeness_score) VALUES
		($1, $4, 'Alpha 100%', NULL, 30),
		($2, $4, 'Beta grant', '{"amount": 5000, "currency": "NOK", "raw_text": "kr 5000"}', 85),
		($3, $5, 'Orphan grant', '{"amount": "many"}', 60)`,
		f.ids["g1"], f.ids["g2"], f.ids["g3"], f.ids["o1"], uuid.NewString())
	exec(`INSERT INTO duplicate_candidates (id, entity_type, entity_1_id, entity_2_id, similarity_score, is_duplicate) VALUES
		($1, 'organization', $3, $4, 92.5, NULL),
		($2, 'organization', $3, $4, 99, true)`,
		f.ids["d1"], f.ids["d2"], f.ids["o1"], f.ids["o2"])
}

func TestPostgres_CompletenessFilters(t *testing.T) {
	f := setupPostgres(t)
	ctx := context.Background()

	rows, err := f.store.ListOrganizations(ctx, orgQuery("filter", "low_completeness"))
	require.NoError(t, err)
	total, err := f.store.CountOrganizations(ctx, orgQuery("filter", "low_completeness"))
	require.NoError(t, err)
	assert.Equal(t, []string{f.ids["o1"]}, orgIDs(rows))
	assert.Equal(t, 1, total)

	rows, err = f.store.ListOrganizations(ctx, orgQuery("filter", "high_completeness"))
	require.NoError(t, err)
	assert.Equal(t, []string{f.ids["o2"]}, orgIDs(rows))
}

func TestPostgres_AwardAmountNullsLastAndJoin(t *testing.T) {
	f := setupPostgres(t)
	ctx := context.Background()

	for _, order := range []string{"asc", "desc"} {
		rows, err := f.store.ListGrants(ctx, grantQuery("sort", "award_amount", "order", order))
		require.NoError(t, err)
		assert.Equal(t, []string{f.ids["g2"], f.ids["g1"]}, grantIDs(rows), "order %s", order)
		assert.Equal(t, catalog.ParseOK, rows[0].AwardAmountParsed.Status)
		assert.Equal(t, catalog.ParseAbsent, rows[1].AwardAmountParsed.Status)
		require.NotNil(t, rows[0].Organization)
		assert.Equal(t, "acme", rows[0].Organization.CanonicalName)
	}

	total, err := f.store.CountGrants(ctx, grantQuery())
	require.NoError(t, err)
	assert.Equal(t, 2, total, "orphan grant excluded by the join")

	all := grantQuery()
	all.IncludeOrphans = true
	total, err = f.store.CountGrants(ctx, all)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestPostgres_AwardAmountStringSidecar(t *testing.T) {
	f := setupPostgres(t)
	ctx := context.Background()

	wrapped, broken := uuid.NewString(), uuid.NewString()
	_, err := f.pool.Exec(ctx, `INSERT INTO grants (id, organization_id, grant_name, award_amount_parsed, completeness_score) VALUES
		($1, $3, 'Wrapped', to_jsonb('{"amount": 100}'::text), 50),
		($2, $3, 'Broken', '"not json"', 50)`,
		wrapped, broken, f.ids["o1"])
	require.NoError(t, err)

	rows, err := f.store.ListGrants(ctx, grantQuery("sort", "award_amount", "order", "asc"))
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{wrapped, f.ids["g2"]}, grantIDs(rows[:2]))
	assert.Equal(t, catalog.ParseOK, rows[0].AwardAmountParsed.Status)
	for _, g := range rows[2:] {
		_, ok := g.AwardAmountParsed.SortAmount()
		assert.False(t, ok, g.GrantName)
	}
}

func TestPostgres_SearchEscapesLike(t *testing.T) {
	f := setupPostgres(t)
	ctx := context.Background()

	rows, err := f.store.ListGrants(ctx, grantQuery("search", "0%"))
	require.NoError(t, err)
	assert.Equal(t, []string{f.ids["g1"]}, grantIDs(rows))

	grants, err := f.store.SearchGrants(ctx, "GRANT", 50)
	require.NoError(t, err)
	assert.Equal(t, []string{f.ids["g2"]}, grantIDs(grants))

	orgs, err := f.store.SearchOrganizations(ctx, "ACM", 50)
	require.NoError(t, err)
	assert.Equal(t, []string{f.ids["o1"]}, orgIDs(orgs))
}

func TestPostgres_DetailsNotFound(t *testing.T) {
	f := setupPostgres(t)
	ctx := context.Background()

	_, err := f.store.GetOrganization(ctx, "not-a-uuid")
	assert.True(t, pferrors.IsNotFound(err))
	_, err = f.store.GetGrant(ctx, uuid.NewString())
	assert.True(t, pferrors.IsNotFound(err))

	org, err := f.store.GetOrganization(ctx, f.ids["o2"])
	require.NoError(t, err)
	assert.Equal(t, "beta", org.CanonicalName)
	assert.Equal(t, []string{}, org.FieldsWithContent)
}

func TestPostgres_DecideDuplicateOnce(t *testing.T) {
	f := setupPostgres(t)
	ctx := context.Background()

	pending, err := f.store.PendingDuplicates(ctx, 50, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, f.ids["d1"], pending[0].ID)
	assert.Equal(t, "acme", pending[0].Entity1Name)

	var wg sync.WaitGroup
	results := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.store.DecideDuplicate(ctx, f.ids["d1"], i%2 == 0, "")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, pferrors.IsInvalidState(err), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, wins)

	_, err = f.store.DecideDuplicate(ctx, uuid.NewString(), true, "")
	assert.True(t, pferrors.IsNotFound(err))

	stats, err := f.store.DuplicateStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Pending)
}

func TestPostgres_Timeout(t *testing.T) {
	f := setupPostgres(t)
	slow := NewPostgres(f.pool, logging.NewNopLogger(), time.Nanosecond, nil)

	_, err := slow.ListOrganizations(context.Background(), orgQuery())
	assert.True(t, pferrors.IsTimeout(err), "got %v", err)
}

func TestPostgres_Health(t *testing.T) {
	f := setupPostgres(t)
	assert.True(t, f.store.Health(context.Background()).Healthy)
}
