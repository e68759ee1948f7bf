package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/otherjamesbrown/grantqa/pkg/catalog"
	"github.com/otherjamesbrown/grantqa/pkg/db"
	pferrors "github.com/otherjamesbrown/grantqa/pkg/errors"
	"github.com/otherjamesbrown/grantqa/pkg/listquery"
	"github.com/otherjamesbrown/grantqa/pkg/logging"
	"github.com/otherjamesbrown/grantqa/pkg/observability"
)

// MaxRows bounds every unpaged read.
const MaxRows = listquery.MaxPageSize

const orgColumns = `o.id::text, o.canonical_name, COALESCE(o.full_name, ''), COALESCE(o.description, ''),
	COALESCE(o.website, ''), COALESCE(o.contact_email, ''), COALESCE(o.phone, ''), COALESCE(o.org_type, ''),
	COALESCE(o.enrichment_version, ''), o.last_updated,
	COALESCE(o.total_grants_count, 0)::int, COALESCE(o.active_grants_count, 0)::int,
	COALESCE(o.completeness_score, 0)::float8,
	COALESCE(o.fields_with_content, '{}'), COALESCE(o.fields_missing, '{}'),
	o.created_at, o.updated_at`

// grantTextColumns are the nullable text columns of grants, in scan order.
var grantTextColumns = []string{
	"grant_slug", "grant_name_hash",
	"description", "description_hash",
	"eligibility", "eligibility_hash",
	"geographic_restrictions", "geographic_restrictions_hash",
	"application_deadline", "application_deadline_hash",
	"award_amount", "award_amount_hash",
	"application_process", "application_process_hash",
	"contact_email", "contact_email_hash",
	"contact_phone", "contact_phone_hash",
	"contact_address", "contact_address_hash",
	"enrichment_version", "data_completeness",
}

var grantColumns = func() string {
	cols := []string{"g.id::text", "g.organization_id::text", "g.grant_name"}
	for _, c := range grantTextColumns {
		cols = append(cols, fmt.Sprintf("COALESCE(g.%s, '')", c))
	}
	cols = append(cols,
		"g.enriched_at",
		"COALESCE(g.completeness_score, 0)::float8",
		"COALESCE(g.fields_with_content, '{}')",
		"COALESCE(g.fields_missing, '{}')",
		"g.created_at", "g.updated_at",
		"g.award_amount_parsed::text", "g.application_deadline_parsed::text",
	)
	return strings.Join(cols, ", ")
}()

const orgRefColumns = `o.id::text, o.canonical_name, COALESCE(o.full_name, '')`

const sourceColumns = `s.id::text, s.organization_id::text, s.url, COALESCE(s.source_type, ''),
	COALESCE(s.content_hash, ''), s.fetched_at, COALESCE(s.fetch_method, ''),
	COALESCE(s.automation_difficulty, ''), s.created_at`

const issueColumns = `v.id::text, v.entity_type, v.entity_id::text, v.issue_type, COALESCE(v.field_name, ''),
	COALESCE(v.severity, ''), COALESCE(v.description, ''), COALESCE(v.is_resolved, false), v.resolved_at,
	v.created_at, v.updated_at`

const duplicateColumns = `d.id::text, d.entity_type, d.entity_1_id::text, d.entity_2_id::text,
	COALESCE(d.similarity_score, 0)::float8, COALESCE(d.match_method, ''), d.is_duplicate, d.reviewed_at,
	COALESCE(d.notes, ''), d.created_at`

// Postgres reads the dataset through a pgx connection pool. Every query runs
// under its own timeout and is traced and measured.
type Postgres struct {
	pool    *pgxpool.Pool
	logger  logging.Logger
	timeout time.Duration
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// NewPostgres creates a PostgreSQL-backed store. A non-positive timeout
// uses db.DefaultQueryTimeout.
func NewPostgres(pool *pgxpool.Pool, logger logging.Logger, timeout time.Duration, metrics *observability.Metrics) *Postgres {
	if timeout <= 0 {
		timeout = db.DefaultQueryTimeout
	}
	return &Postgres{
		pool:    pool,
		logger:  logger.With(logging.F("component", "postgres_store")),
		timeout: timeout,
		metrics: metrics,
		tracer:  observability.NewTracer(),
	}
}

// Pool returns the underlying database pool.
func (p *Postgres) Pool() *pgxpool.Pool {
	return p.pool
}

// Health pings the database and reports pool statistics.
func (p *Postgres) Health(ctx context.Context) *db.HealthStatus {
	return db.Check(ctx, p.pool, p.timeout)
}

// run executes fn under the per-query timeout inside a span, and maps its
// error onto the domain sentinels. fn returns the number of rows it read.
func (p *Postgres) run(ctx context.Context, op string, fn func(ctx context.Context) (int, error)) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ctx, span := p.tracer.StartQuerySpan(ctx, op)
	defer span.End()
	helper := observability.NewSpanHelper(span)

	start := time.Now()
	n, err := fn(ctx)
	err = classify(ctx, op, err)
	elapsed := time.Since(start)

	status := observability.StatusOK
	switch {
	case err == nil:
		helper.SetRows(n)
		helper.SetSuccess()
	case pferrors.IsTimeout(err):
		status = observability.StatusTimeout
		helper.SetError(err, pferrors.KindTimeout)
	case pferrors.IsUnavailable(err):
		status = observability.StatusError
		helper.SetError(err, pferrors.KindStore)
	}
	p.metrics.RecordQuery(op, status, elapsed.Seconds())

	if status != observability.StatusOK {
		p.logger.WithContext(ctx).Warn("Query failed",
			logging.F("operation", op),
			logging.F("duration", elapsed),
			logging.Err(err))
	}
	return err
}

// ==================== Scanning ====================

func scanOrganization(row pgx.Row) (catalog.Organization, error) {
	var o catalog.Organization
	err := row.Scan(
		&o.ID, &o.CanonicalName, &o.FullName, &o.Description,
		&o.Website, &o.ContactEmail, &o.Phone, &o.OrgType,
		&o.EnrichmentVersion, &o.LastUpdated,
		&o.TotalGrantsCount, &o.ActiveGrantsCount,
		&o.CompletenessScore,
		&o.FieldsWithContent, &o.FieldsMissing,
		&o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func scanOrganizations(rows pgx.Rows) ([]catalog.Organization, error) {
	defer rows.Close()
	out := []catalog.Organization{}
	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func grantTargets(g *catalog.Grant, amountRaw, deadlineRaw **string) []any {
	targets := []any{&g.ID, &g.OrganizationID, &g.GrantName}
	textFields := []*string{
		&g.GrantSlug, &g.GrantNameHash,
		&g.Description, &g.DescriptionHash,
		&g.Eligibility, &g.EligibilityHash,
		&g.GeographicRestrictions, &g.GeographicRestrictionsHash,
		&g.ApplicationDeadline, &g.ApplicationDeadlineHash,
		&g.AwardAmount, &g.AwardAmountHash,
		&g.ApplicationProcess, &g.ApplicationProcessHash,
		&g.ContactEmail, &g.ContactEmailHash,
		&g.ContactPhone, &g.ContactPhoneHash,
		&g.ContactAddress, &g.ContactAddressHash,
		&g.EnrichmentVersion, &g.DataCompleteness,
	}
	for _, f := range textFields {
		targets = append(targets, f)
	}
	return append(targets,
		&g.EnrichedAt,
		&g.CompletenessScore,
		&g.FieldsWithContent,
		&g.FieldsMissing,
		&g.CreatedAt, &g.UpdatedAt,
		amountRaw, deadlineRaw,
	)
}

// scanGrant scans a grant row, optionally followed by the joined
// organization reference columns. Parsed sidecars are decoded here.
func scanGrant(row pgx.Row, withOrg bool) (catalog.Grant, error) {
	var g catalog.Grant
	var amountRaw, deadlineRaw *string
	targets := grantTargets(&g, &amountRaw, &deadlineRaw)

	var ref catalog.OrganizationRef
	if withOrg {
		targets = append(targets, &ref.ID, &ref.CanonicalName, &ref.FullName)
	}
	if err := row.Scan(targets...); err != nil {
		return g, err
	}

	g.AwardAmountParsed = catalog.DecodeParsedAmount(rawBytes(amountRaw))
	g.ApplicationDeadlineParsed = catalog.DecodeParsedDeadline(rawBytes(deadlineRaw))
	if withOrg {
		g.Organization = &ref
	}
	return g, nil
}

func rawBytes(s *string) []byte {
	if s == nil {
		return nil
	}
	return []byte(*s)
}

func scanGrants(rows pgx.Rows, withOrg bool) ([]catalog.Grant, error) {
	defer rows.Close()
	out := []catalog.Grant{}
	for rows.Next() {
		g, err := scanGrant(rows, withOrg)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func scanDuplicate(row pgx.Row, extra ...any) (catalog.DuplicateCandidate, error) {
	var d catalog.DuplicateCandidate
	targets := append([]any{
		&d.ID, &d.EntityType, &d.Entity1ID, &d.Entity2ID,
		&d.SimilarityScore, &d.MatchMethod, &d.IsDuplicate, &d.ReviewedAt,
		&d.Notes, &d.CreatedAt,
	}, extra...)
	err := row.Scan(targets...)
	return d, err
}

// ==================== Lists ====================

// ListOrganizations returns one page of organizations.
func (p *Postgres) ListOrganizations(ctx context.Context, q listquery.Query) ([]catalog.Organization, error) {
	var out []catalog.Organization
	err := p.run(ctx, "list_organizations", func(ctx context.Context) (int, error) {
		query, args := listquery.BuildSelect(q, orgColumns)
		rows, err := p.pool.Query(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("failed to list organizations: %w", err)
		}
		out, err = scanOrganizations(rows)
		return len(out), err
	})
	return out, err
}

// CountOrganizations counts organizations matching the query filters.
func (p *Postgres) CountOrganizations(ctx context.Context, q listquery.Query) (int, error) {
	return p.count(ctx, "count_organizations", q)
}

// ListGrants returns one page of grants joined to their organization.
func (p *Postgres) ListGrants(ctx context.Context, q listquery.Query) ([]catalog.Grant, error) {
	var out []catalog.Grant
	err := p.run(ctx, "list_grants", func(ctx context.Context) (int, error) {
		query, args := listquery.BuildSelect(q, grantColumns+", "+orgRefColumns)
		rows, err := p.pool.Query(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("failed to list grants: %w", err)
		}
		out, err = scanGrants(rows, true)
		return len(out), err
	})
	return out, err
}

// CountGrants counts grants matching the query filters. Grants without an
// organization count only when q.IncludeOrphans is set.
func (p *Postgres) CountGrants(ctx context.Context, q listquery.Query) (int, error) {
	return p.count(ctx, "count_grants", q)
}

func (p *Postgres) count(ctx context.Context, op string, q listquery.Query) (int, error) {
	var total int
	err := p.run(ctx, op, func(ctx context.Context) (int, error) {
		query, args := listquery.BuildCount(q)
		return 1, p.pool.QueryRow(ctx, query, args...).Scan(&total)
	})
	return total, err
}

// ==================== Search ====================

// SearchOrganizations matches term as a case-insensitive substring of the
// canonical name, full name or description.
func (p *Postgres) SearchOrganizations(ctx context.Context, term string, limit int) ([]catalog.Organization, error) {
	limit, _ = window(limit, 0, MaxRows)
	var out []catalog.Organization
	err := p.run(ctx, "search_organizations", func(ctx context.Context) (int, error) {
		query := `SELECT ` + orgColumns + `
			FROM organizations o
			WHERE o.canonical_name ILIKE $1 ESCAPE '\'
				OR o.full_name ILIKE $1 ESCAPE '\'
				OR o.description ILIKE $1 ESCAPE '\'
			ORDER BY o.canonical_name ASC, o.id ASC
			LIMIT $2`
		rows, err := p.pool.Query(ctx, query, listquery.Contains(term), limit)
		if err != nil {
			return 0, fmt.Errorf("failed to search organizations: %w", err)
		}
		out, err = scanOrganizations(rows)
		return len(out), err
	})
	return out, err
}

// SearchGrants matches term as a case-insensitive substring of the grant
// name, description or eligibility. Grants without an organization are
// excluded by the join.
func (p *Postgres) SearchGrants(ctx context.Context, term string, limit int) ([]catalog.Grant, error) {
	limit, _ = window(limit, 0, MaxRows)
	var out []catalog.Grant
	err := p.run(ctx, "search_grants", func(ctx context.Context) (int, error) {
		query := `SELECT ` + grantColumns + `, ` + orgRefColumns + `
			FROM grants g JOIN organizations o ON o.id = g.organization_id
			WHERE g.grant_name ILIKE $1 ESCAPE '\'
				OR g.description ILIKE $1 ESCAPE '\'
				OR g.eligibility ILIKE $1 ESCAPE '\'
			ORDER BY g.grant_name ASC, g.id ASC
			LIMIT $2`
		rows, err := p.pool.Query(ctx, query, listquery.Contains(term), limit)
		if err != nil {
			return 0, fmt.Errorf("failed to search grants: %w", err)
		}
		out, err = scanGrants(rows, true)
		return len(out), err
	})
	return out, err
}

// ==================== Details ====================

// GetOrganization returns one organization by ID.
func (p *Postgres) GetOrganization(ctx context.Context, id string) (*catalog.Organization, error) {
	var o catalog.Organization
	err := p.run(ctx, "get_organization", func(ctx context.Context) (int, error) {
		var err error
		o, err = scanOrganization(p.pool.QueryRow(ctx,
			`SELECT `+orgColumns+` FROM organizations o WHERE o.id::text = $1`, id))
		return 1, err
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GrantsForOrganization returns an organization's grants by name.
func (p *Postgres) GrantsForOrganization(ctx context.Context, orgID string) ([]catalog.Grant, error) {
	var out []catalog.Grant
	err := p.run(ctx, "grants_for_organization", func(ctx context.Context) (int, error) {
		rows, err := p.pool.Query(ctx, `SELECT `+grantColumns+`
			FROM grants g
			WHERE g.organization_id::text = $1
			ORDER BY g.grant_name ASC, g.id ASC
			LIMIT $2`, orgID, MaxRows)
		if err != nil {
			return 0, fmt.Errorf("failed to list organization grants: %w", err)
		}
		out, err = scanGrants(rows, false)
		return len(out), err
	})
	return out, err
}

// SourcesForOrganization returns the sources attributed to an organization.
func (p *Postgres) SourcesForOrganization(ctx context.Context, orgID string) ([]catalog.Source, error) {
	out := []catalog.Source{}
	err := p.run(ctx, "sources_for_organization", func(ctx context.Context) (int, error) {
		rows, err := p.pool.Query(ctx, `SELECT `+sourceColumns+`
			FROM sources s
			WHERE s.organization_id::text = $1
			ORDER BY s.url ASC, s.id ASC
			LIMIT $2`, orgID, MaxRows)
		if err != nil {
			return 0, fmt.Errorf("failed to list sources: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var s catalog.Source
			if err := rows.Scan(&s.ID, &s.OrganizationID, &s.URL, &s.SourceType,
				&s.ContentHash, &s.FetchedAt, &s.FetchMethod,
				&s.AutomationDifficulty, &s.CreatedAt); err != nil {
				return 0, fmt.Errorf("failed to scan source: %w", err)
			}
			out = append(out, s)
		}
		return len(out), rows.Err()
	})
	return out, err
}

// GetGrant returns one grant by ID.
func (p *Postgres) GetGrant(ctx context.Context, id string) (*catalog.Grant, error) {
	var g catalog.Grant
	err := p.run(ctx, "get_grant", func(ctx context.Context) (int, error) {
		var err error
		g, err = scanGrant(p.pool.QueryRow(ctx,
			`SELECT `+grantColumns+` FROM grants g WHERE g.id::text = $1`, id), false)
		return 1, err
	})
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ==================== Validation issues ====================

// CountUnresolvedIssues counts validation issues not yet resolved.
func (p *Postgres) CountUnresolvedIssues(ctx context.Context) (int, error) {
	var total int
	err := p.run(ctx, "count_unresolved_issues", func(ctx context.Context) (int, error) {
		return 1, p.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM validation_issues v WHERE COALESCE(v.is_resolved, false) = false`).Scan(&total)
	})
	return total, err
}

// ListUnresolvedIssues returns unresolved issues, newest first.
func (p *Postgres) ListUnresolvedIssues(ctx context.Context, limit, offset int) ([]catalog.ValidationIssue, error) {
	limit, offset = window(limit, offset, MaxRows)
	out := []catalog.ValidationIssue{}
	err := p.run(ctx, "list_unresolved_issues", func(ctx context.Context) (int, error) {
		rows, err := p.pool.Query(ctx, `SELECT `+issueColumns+`
			FROM validation_issues v
			WHERE COALESCE(v.is_resolved, false) = false
			ORDER BY v.created_at DESC, v.id ASC
			LIMIT $1 OFFSET $2`, limit, offset)
		if err != nil {
			return 0, fmt.Errorf("failed to list issues: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var v catalog.ValidationIssue
			if err := rows.Scan(&v.ID, &v.EntityType, &v.EntityID, &v.IssueType, &v.FieldName,
				&v.Severity, &v.Description, &v.IsResolved, &v.ResolvedAt,
				&v.CreatedAt, &v.UpdatedAt); err != nil {
				return 0, fmt.Errorf("failed to scan issue: %w", err)
			}
			out = append(out, v)
		}
		return len(out), rows.Err()
	})
	return out, err
}

// ==================== Duplicate candidates ====================

// PendingDuplicates returns unreviewed candidates, highest similarity first,
// with the display names of both entities.
func (p *Postgres) PendingDuplicates(ctx context.Context, limit, offset int) ([]catalog.DuplicateCandidate, error) {
	limit, offset = window(limit, offset, MaxRows)
	out := []catalog.DuplicateCandidate{}
	err := p.run(ctx, "pending_duplicates", func(ctx context.Context) (int, error) {
		rows, err := p.pool.Query(ctx, `SELECT `+duplicateColumns+`,
				COALESCE(CASE WHEN d.entity_type = 'organization'
					THEN COALESCE(NULLIF(o1.full_name, ''), o1.canonical_name) ELSE g1.grant_name END, ''),
				COALESCE(CASE WHEN d.entity_type = 'organization'
					THEN COALESCE(NULLIF(o2.full_name, ''), o2.canonical_name) ELSE g2.grant_name END, '')
			FROM duplicate_candidates d
			LEFT JOIN organizations o1 ON d.entity_type = 'organization' AND o1.id::text = d.entity_1_id::text
			LEFT JOIN organizations o2 ON d.entity_type = 'organization' AND o2.id::text = d.entity_2_id::text
			LEFT JOIN grants g1 ON d.entity_type = 'grant' AND g1.id::text = d.entity_1_id::text
			LEFT JOIN grants g2 ON d.entity_type = 'grant' AND g2.id::text = d.entity_2_id::text
			WHERE d.is_duplicate IS NULL
			ORDER BY d.similarity_score DESC NULLS LAST, d.id ASC
			LIMIT $1 OFFSET $2`, limit, offset)
		if err != nil {
			return 0, fmt.Errorf("failed to list duplicate candidates: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var name1, name2 string
			d, err := scanDuplicate(rows, &name1, &name2)
			if err != nil {
				return 0, fmt.Errorf("failed to scan duplicate candidate: %w", err)
			}
			d.Entity1Name, d.Entity2Name = name1, name2
			out = append(out, d)
		}
		return len(out), rows.Err()
	})
	return out, err
}

// DuplicateStats counts candidates per review state.
func (p *Postgres) DuplicateStats(ctx context.Context) (catalog.ReviewStats, error) {
	var stats catalog.ReviewStats
	err := p.run(ctx, "duplicate_stats", func(ctx context.Context) (int, error) {
		return 1, p.pool.QueryRow(ctx, `SELECT
				COUNT(*) FILTER (WHERE is_duplicate IS NULL),
				COUNT(*) FILTER (WHERE is_duplicate),
				COUNT(*) FILTER (WHERE NOT is_duplicate)
			FROM duplicate_candidates`).Scan(&stats.Pending, &stats.Confirmed, &stats.Rejected)
	})
	return stats, err
}

// DecideDuplicate records a review verdict on a pending candidate. The
// update only applies while the candidate is pending, so of two concurrent
// reviewers exactly one succeeds.
func (p *Postgres) DecideDuplicate(ctx context.Context, id string, isDuplicate bool, notes string) (*catalog.DuplicateCandidate, error) {
	var d catalog.DuplicateCandidate
	err := p.run(ctx, "decide_duplicate", func(ctx context.Context) (int, error) {
		var err error
		d, err = scanDuplicate(p.pool.QueryRow(ctx, `UPDATE duplicate_candidates d
			SET is_duplicate = $2, notes = NULLIF($3, ''), reviewed_at = NOW()
			WHERE d.id::text = $1 AND d.is_duplicate IS NULL
			RETURNING `+duplicateColumns, id, isDuplicate, notes))
		if err == nil {
			return 1, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("failed to update duplicate candidate: %w", err)
		}

		var current *bool
		err = p.pool.QueryRow(ctx,
			`SELECT is_duplicate FROM duplicate_candidates WHERE id::text = $1`, id).Scan(&current)
		if err != nil {
			return 0, err
		}
		state := catalog.DuplicateCandidate{IsDuplicate: current}.State()
		if _, err = catalog.Transition(state, isDuplicate); err == nil {
			err = fmt.Errorf("candidate %s changed during review: %w", id, pferrors.ErrInvalidState)
		}
		return 0, err
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}
