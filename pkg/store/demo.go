package store

import (
	"time"

	"github.com/otherjamesbrown/grantqa/pkg/catalog"
)

// NewDemo returns a Memory store seeded with a small sample dataset.
func NewDemo() *Memory {
	m := NewMemory()
	base := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	yes := true

	m.AddOrganizations(
		catalog.Organization{
			ID: "org-kulturradet", CanonicalName: "kulturradet", FullName: "Norsk kulturråd",
			Description: "Statlig forvaltningsorgan for kunst og kultur", Website: "https://www.kulturradet.no",
			ContactEmail: "post@kulturradet.no", OrgType: "government",
			TotalGrantsCount: 3, ActiveGrantsCount: 2, CompletenessScore: 92,
			FieldsWithContent: []string{"description", "website", "contact_email", "org_type"},
			FieldsMissing:     []string{"phone"},
			CreatedAt:         base, UpdatedAt: base,
		},
		catalog.Organization{
			ID: "org-sparebankstiftelsen", CanonicalName: "sparebankstiftelsen", FullName: "Sparebankstiftelsen DNB",
			Description: "Gir midler til allmennyttige formål", Website: "https://www.sparebankstiftelsen.no",
			TotalGrantsCount: 1, ActiveGrantsCount: 1, CompletenessScore: 64,
			FieldsWithContent: []string{"description", "website"},
			FieldsMissing:     []string{"contact_email", "phone", "org_type"},
			CreatedAt:         base.Add(time.Hour), UpdatedAt: base.Add(time.Hour),
		},
		catalog.Organization{
			ID: "org-fritt-ord", CanonicalName: "fritt ord", CompletenessScore: 31,
			FieldsWithContent: []string{},
			FieldsMissing:     []string{"description", "website", "contact_email", "phone", "org_type"},
			CreatedAt:         base.Add(2 * time.Hour), UpdatedAt: base.Add(2 * time.Hour),
		},
		catalog.Organization{
			ID: "org-fritt-ord-stiftelsen", CanonicalName: "stiftelsen fritt ord", CompletenessScore: 45,
			Description:       "Stiftelse for ytringsfrihet",
			FieldsWithContent: []string{"description"},
			FieldsMissing:     []string{"website", "contact_email", "phone", "org_type"},
			CreatedAt:         base.Add(3 * time.Hour), UpdatedAt: base.Add(3 * time.Hour),
		},
	)

	m.AddGrants(
		catalog.Grant{
			ID: "grant-musikk", OrganizationID: "org-kulturradet", GrantName: "Innkjøpsordning for musikk",
			Description: "Innkjøp av norsk musikk", Eligibility: "Plateselskap og artister",
			ApplicationDeadline: "1. mars", AwardAmount: "kr 250 000",
			CompletenessScore: 88, FieldsWithContent: []string{"description", "eligibility", "deadline", "amount"},
			FieldsMissing:             []string{"contact_phone"},
			AwardAmountParsed:         catalog.NewParsedAmount(250000, "NOK", "kr 250 000"),
			ApplicationDeadlineParsed: catalog.NewParsedDeadline(1, 3, "1. mars", true),
			CreatedAt:                 base, UpdatedAt: base,
		},
		catalog.Grant{
			ID: "grant-litteratur", OrganizationID: "org-kulturradet", GrantName: "Litteraturtiltak",
			Description: "Støtte til litteraturformidling", AwardAmount: "etter søknad",
			CompletenessScore: 55, FieldsWithContent: []string{"description"},
			FieldsMissing:             []string{"eligibility", "deadline", "amount"},
			AwardAmountParsed:         catalog.ParsedAmount{Status: catalog.ParseOK, RawText: "etter søknad"},
			ApplicationDeadlineParsed: catalog.ParsedDeadline{Status: catalog.ParseAbsent},
			CreatedAt:                 base.Add(time.Minute), UpdatedAt: base.Add(time.Minute),
		},
		catalog.Grant{
			ID: "grant-lokalsamfunn", OrganizationID: "org-sparebankstiftelsen", GrantName: "Lokale prosjekter",
			Description: "Prosjekter som styrker lokalsamfunn", Eligibility: "Lag og foreninger",
			ApplicationDeadline: "15. september", AwardAmount: "inntil kr 5000",
			CompletenessScore: 81, FieldsWithContent: []string{"description", "eligibility", "deadline", "amount"},
			FieldsMissing:             []string{},
			AwardAmountParsed:         catalog.NewParsedAmount(5000, "NOK", "inntil kr 5000"),
			ApplicationDeadlineParsed: catalog.NewParsedDeadline(15, 9, "15. september", true),
			CreatedAt:                 base.Add(2 * time.Minute), UpdatedAt: base.Add(2 * time.Minute),
		},
		catalog.Grant{
			ID: "grant-ytring", OrganizationID: "org-fritt-ord", GrantName: "Prosjektstøtte ytringsfrihet",
			AwardAmount: "se nettside", CompletenessScore: 20,
			FieldsWithContent:         []string{},
			FieldsMissing:             []string{"description", "eligibility", "deadline", "amount"},
			AwardAmountParsed:         catalog.ParsedAmount{Status: catalog.ParseUnparseable},
			ApplicationDeadlineParsed: catalog.ParsedDeadline{Status: catalog.ParseAbsent},
			CreatedAt:                 base.Add(3 * time.Minute), UpdatedAt: base.Add(3 * time.Minute),
		},
	)

	m.AddSources(
		catalog.Source{ID: "src-1", OrganizationID: "org-kulturradet", URL: "https://www.kulturradet.no/stotteordninger",
			SourceType: "html", FetchMethod: "http", AutomationDifficulty: "easy", CreatedAt: base},
		catalog.Source{ID: "src-2", OrganizationID: "org-sparebankstiftelsen", URL: "https://www.sparebankstiftelsen.no/soknad",
			SourceType: "html", FetchMethod: "browser", AutomationDifficulty: "medium", CreatedAt: base},
	)

	m.AddIssues(
		catalog.ValidationIssue{ID: "issue-1", EntityType: "organization", EntityID: "org-fritt-ord",
			IssueType: "missing_field", FieldName: "website", Severity: "warning",
			Description: "Organization has no website", CreatedAt: base, UpdatedAt: base},
		catalog.ValidationIssue{ID: "issue-2", EntityType: "grant", EntityID: "grant-ytring",
			IssueType: "unparseable_amount", FieldName: "award_amount", Severity: "error",
			Description: "Award amount could not be parsed", CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour)},
		catalog.ValidationIssue{ID: "issue-3", EntityType: "grant", EntityID: "grant-musikk",
			IssueType: "stale", Severity: "info", IsResolved: true, CreatedAt: base, UpdatedAt: base},
	)

	m.AddDuplicates(
		catalog.DuplicateCandidate{ID: "dup-1", EntityType: "organization",
			Entity1ID: "org-fritt-ord", Entity2ID: "org-fritt-ord-stiftelsen",
			SimilarityScore: 92.5, MatchMethod: "name_similarity", CreatedAt: base},
		catalog.DuplicateCandidate{ID: "dup-2", EntityType: "grant",
			Entity1ID: "grant-musikk", Entity2ID: "grant-litteratur",
			SimilarityScore: 61, MatchMethod: "description_similarity", CreatedAt: base},
		catalog.DuplicateCandidate{ID: "dup-3", EntityType: "organization",
			Entity1ID: "org-kulturradet", Entity2ID: "org-sparebankstiftelsen",
			SimilarityScore: 99, MatchMethod: "website_domain", IsDuplicate: &yes, CreatedAt: base},
	)

	return m
}
