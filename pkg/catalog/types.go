// Package catalog defines the grants dataset records read by grantqa:
// organizations, their grants and sources, validation issues and
// duplicate candidates. Records are owned by the upstream store; completeness
// scores, field sets, similarity scores and content hashes are precomputed
// by the enrichment pipeline and carried here unchanged.
package catalog

import (
	"time"
)

// EntityType names one of the two searchable record types.
type EntityType string

const (
	EntityOrganization EntityType = "organization"
	EntityGrant        EntityType = "grant"
)

// Organization is a grant-making organization.
type Organization struct {
	ID                string     `json:"id"`
	CanonicalName     string     `json:"canonical_name"`
	FullName          string     `json:"full_name,omitempty"`
	Description       string     `json:"description,omitempty"`
	Website           string     `json:"website,omitempty"`
	ContactEmail      string     `json:"contact_email,omitempty"`
	Phone             string     `json:"phone,omitempty"`
	OrgType           string     `json:"org_type,omitempty"`
	EnrichmentVersion string     `json:"enrichment_version,omitempty"`
	LastUpdated       *time.Time `json:"last_updated,omitempty"`
	TotalGrantsCount  int        `json:"total_grants_count"`
	ActiveGrantsCount int        `json:"active_grants_count"`
	CompletenessScore float64    `json:"completeness_score"`
	FieldsWithContent []string   `json:"fields_with_content"`
	FieldsMissing     []string   `json:"fields_missing"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// DisplayName prefers the full name and falls back to the canonical name.
func (o Organization) DisplayName() string {
	return displayName(o.FullName, o.CanonicalName)
}

// Ref returns the join projection of the organization.
func (o Organization) Ref() *OrganizationRef {
	return &OrganizationRef{ID: o.ID, CanonicalName: o.CanonicalName, FullName: o.FullName}
}

// OrganizationRef is the parent projection attached to a grant by the join.
type OrganizationRef struct {
	ID            string `json:"id"`
	CanonicalName string `json:"canonical_name"`
	FullName      string `json:"full_name,omitempty"`
}

// DisplayName prefers the full name and falls back to the canonical name.
func (r OrganizationRef) DisplayName() string {
	return displayName(r.FullName, r.CanonicalName)
}

func displayName(full, canonical string) string {
	if full != "" {
		return full
	}
	return canonical
}

// Grant is a funding programme offered by exactly one organization.
// Every raw text field is paired with the content hash used upstream for
// change detection.
type Grant struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	GrantSlug      string `json:"grant_slug,omitempty"`
	GrantName      string `json:"grant_name"`
	GrantNameHash  string `json:"grant_name_hash,omitempty"`

	Description                string `json:"description,omitempty"`
	DescriptionHash            string `json:"description_hash,omitempty"`
	Eligibility                string `json:"eligibility,omitempty"`
	EligibilityHash            string `json:"eligibility_hash,omitempty"`
	GeographicRestrictions     string `json:"geographic_restrictions,omitempty"`
	GeographicRestrictionsHash string `json:"geographic_restrictions_hash,omitempty"`
	ApplicationDeadline        string `json:"application_deadline,omitempty"`
	ApplicationDeadlineHash    string `json:"application_deadline_hash,omitempty"`
	AwardAmount                string `json:"award_amount,omitempty"`
	AwardAmountHash            string `json:"award_amount_hash,omitempty"`
	ApplicationProcess         string `json:"application_process,omitempty"`
	ApplicationProcessHash     string `json:"application_process_hash,omitempty"`
	ContactEmail               string `json:"contact_email,omitempty"`
	ContactEmailHash           string `json:"contact_email_hash,omitempty"`
	ContactPhone               string `json:"contact_phone,omitempty"`
	ContactPhoneHash           string `json:"contact_phone_hash,omitempty"`
	ContactAddress             string `json:"contact_address,omitempty"`
	ContactAddressHash         string `json:"contact_address_hash,omitempty"`

	EnrichedAt        *time.Time `json:"enriched_at,omitempty"`
	EnrichmentVersion string     `json:"enrichment_version,omitempty"`
	DataCompleteness  string     `json:"data_completeness,omitempty"`
	CompletenessScore float64    `json:"completeness_score"`
	FieldsWithContent []string   `json:"fields_with_content"`
	FieldsMissing     []string   `json:"fields_missing"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	AwardAmountParsed         ParsedAmount   `json:"award_amount_parsed"`
	ApplicationDeadlineParsed ParsedDeadline `json:"application_deadline_parsed"`

	// Organization is filled by list and search queries that join the parent.
	Organization *OrganizationRef `json:"organization,omitempty"`
}

// FieldsCount is the number of tracked fields that carry content.
func (g Grant) FieldsCount() int {
	return len(g.FieldsWithContent)
}

// Source is one fetched URL attributed to an organization.
type Source struct {
	ID                   string     `json:"id"`
	OrganizationID       string     `json:"organization_id"`
	URL                  string     `json:"url"`
	SourceType           string     `json:"source_type,omitempty"`
	ContentHash          string     `json:"content_hash,omitempty"`
	FetchedAt            *time.Time `json:"fetched_at,omitempty"`
	FetchMethod          string     `json:"fetch_method,omitempty"`
	AutomationDifficulty string     `json:"automation_difficulty,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// ValidationIssue is a flagged data-quality problem on one record.
type ValidationIssue struct {
	ID          string     `json:"id"`
	EntityType  string     `json:"entity_type"`
	EntityID    string     `json:"entity_id"`
	IssueType   string     `json:"issue_type"`
	FieldName   string     `json:"field_name,omitempty"`
	Severity    string     `json:"severity"`
	Description string     `json:"description,omitempty"`
	IsResolved  bool       `json:"is_resolved"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
