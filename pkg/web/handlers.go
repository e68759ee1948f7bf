package web

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/otherjamesbrown/grantqa/pkg/catalog"
	pferrors "github.com/otherjamesbrown/grantqa/pkg/errors"
	"github.com/otherjamesbrown/grantqa/pkg/listing"
	"github.com/otherjamesbrown/grantqa/pkg/listquery"
	"github.com/otherjamesbrown/grantqa/pkg/logging"
	"github.com/otherjamesbrown/grantqa/pkg/search"
	"github.com/otherjamesbrown/grantqa/pkg/tablestate"
)

// statusFor maps a domain error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case pferrors.IsNotFound(err):
		return http.StatusNotFound
	case pferrors.IsValidation(err):
		return http.StatusBadRequest
	case pferrors.IsInvalidState(err):
		return http.StatusConflict
	case pferrors.IsTimeout(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail writes an error response. Server side failures are logged and get
// a generic message; client errors echo the error text.
func (s *Server) fail(c *gin.Context, err error, message string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.WithContext(c.Request.Context()).Error(message,
			logging.F("route", c.FullPath()),
			logging.Err(err))
		c.JSON(status, gin.H{"error": message, "kind": pferrors.Kind(err)})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": pferrors.Kind(err)})
}

// ==================== Search ====================

func (s *Server) search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusOK, gin.H{"results": []search.Result{}})
		return
	}

	scope, err := search.ParseScope(c.Query("type"))
	if err != nil {
		s.fail(c, err, "invalid search type")
		return
	}

	results, err := s.svc.Search.Search(c.Request.Context(), q, scope)
	if err != nil {
		s.logger.WithContext(c.Request.Context()).Error("Search request failed", logging.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// ==================== Lists ====================

// listResponse is the body of the list endpoints. Err is set when the
// rows are missing because the store failed.
type listResponse[T any] struct {
	Rows       []T                   `json:"rows"`
	Total      int                   `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	Sort       string                `json:"sort"`
	Order      listquery.Order       `json:"order"`
	Columns    []tablestate.Header   `json:"columns"`
	Pagination tablestate.Pagination `json:"pagination"`
	Err        *listing.Failure      `json:"error,omitempty"`
}

func newListResponse[T, R any](c *gin.Context, q listquery.Query, res listing.Result[T], rows []R) listResponse[R] {
	params := c.Request.URL.Query()
	return listResponse[R]{
		Rows:       rows,
		Total:      res.Total,
		Page:       res.Page,
		PageSize:   res.PageSize,
		Sort:       q.Sort,
		Order:      q.Order,
		Columns:    tablestate.Headers(tablestate.Columns(q.Entity), q.Sort, q.Order, params),
		Pagination: tablestate.Paginate(res.Page, res.PageSize, res.Total, params),
		Err:        res.Err,
	}
}

// organizationRow is an organization with its completeness band.
type organizationRow struct {
	catalog.Organization
	CompletenessBand catalog.CompletenessBand `json:"completeness_band"`
}

// grantRow is a grant with its display values.
type grantRow struct {
	catalog.Grant
	AwardAmountDisplay string                   `json:"award_amount_display"`
	DeadlineDisplay    string                   `json:"deadline_display"`
	FieldsCount        int                      `json:"fields_count"`
	CompletenessBand   catalog.CompletenessBand `json:"completeness_band"`
}

func newGrantRow(g catalog.Grant) grantRow {
	return grantRow{
		Grant:              g,
		AwardAmountDisplay: catalog.FormatAmount(g.AwardAmountParsed),
		DeadlineDisplay:    catalog.FormatDeadline(g.ApplicationDeadlineParsed),
		FieldsCount:        g.FieldsCount(),
		CompletenessBand:   catalog.Band(g.CompletenessScore),
	}
}

func (s *Server) listOrganizations(c *gin.Context) {
	q := listquery.Parse(catalog.EntityOrganization, c.Request.URL.Query())
	res := s.svc.Listing.Organizations(c.Request.Context(), q)

	rows := make([]organizationRow, 0, len(res.Rows))
	for _, o := range res.Rows {
		rows = append(rows, organizationRow{Organization: o, CompletenessBand: catalog.Band(o.CompletenessScore)})
	}
	c.JSON(http.StatusOK, newListResponse(c, q, res, rows))
}

func (s *Server) listGrants(c *gin.Context) {
	q := listquery.Parse(catalog.EntityGrant, c.Request.URL.Query())
	res := s.svc.Listing.Grants(c.Request.Context(), q)

	rows := make([]grantRow, 0, len(res.Rows))
	for _, g := range res.Rows {
		rows = append(rows, newGrantRow(g))
	}
	c.JSON(http.StatusOK, newListResponse(c, q, res, rows))
}

// ==================== Details ====================

func (s *Server) organizationDetail(c *gin.Context) {
	detail, err := s.svc.Dashboard.OrganizationDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err, "failed to load organization")
		return
	}
	grants := make([]grantRow, 0, len(detail.Grants))
	for _, g := range detail.Grants {
		grants = append(grants, newGrantRow(g))
	}
	c.JSON(http.StatusOK, gin.H{
		"organization":      detail.Organization,
		"completeness_band": catalog.Band(detail.Organization.CompletenessScore),
		"grants":            grants,
		"sources":           detail.Sources,
	})
}

func (s *Server) grantDetail(c *gin.Context) {
	detail, err := s.svc.Dashboard.GrantDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err, "failed to load grant")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"grant":        newGrantRow(*detail.Grant),
		"organization": detail.Organization,
	})
}

// ==================== Dashboard ====================

func (s *Server) dashboard(c *gin.Context) {
	sum, err := s.svc.Dashboard.Summary(c.Request.Context())
	if err != nil {
		s.fail(c, err, "failed to load dashboard")
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) issues(c *gin.Context) {
	page, pageSize := listquery.ParsePage(c.Request.URL.Query())
	res, err := s.svc.Dashboard.Issues(c.Request.Context(), page, pageSize)
	if err != nil {
		s.fail(c, err, "failed to load validation issues")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"rows":       res.Rows,
		"total":      res.Total,
		"page":       res.Page,
		"page_size":  res.PageSize,
		"pagination": tablestate.Paginate(res.Page, res.PageSize, res.Total, c.Request.URL.Query()),
	})
}

// ==================== Duplicates ====================

func (s *Server) duplicates(c *gin.Context) {
	page, pageSize := listquery.ParsePage(c.Request.URL.Query())
	pending, err := s.svc.Review.Pending(c.Request.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		s.fail(c, err, "failed to load duplicate candidates")
		return
	}
	stats, err := s.svc.Review.Stats(c.Request.Context())
	if err != nil {
		s.fail(c, err, "failed to load duplicate candidates")
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": pending, "stats": stats})
}

// reviewRequest is the body of a review decision.
type reviewRequest struct {
	IsDuplicate *bool  `json:"is_duplicate"`
	Notes       string `json:"notes"`
}

func (s *Server) reviewDuplicate(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "kind": pferrors.KindValidation})
		return
	}
	if req.IsDuplicate == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "is_duplicate is required", "kind": pferrors.KindValidation})
		return
	}

	decided, err := s.svc.Review.Decide(c.Request.Context(), c.Param("id"), *req.IsDuplicate, req.Notes)
	if err != nil {
		s.fail(c, err, "failed to record review")
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidate": decided, "state": decided.State()})
}

// ==================== Health ====================

func (s *Server) healthz(c *gin.Context) {
	if s.svc.Health == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"healthy": false, "error": "no store configured"})
		return
	}
	status := s.svc.Health.Health(c.Request.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
