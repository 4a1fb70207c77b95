// Report HTTP handlers.
//
// This file exposes REST endpoints for direct report submission, moderation,
// the anonymized public map feed, and aggregate statistics:
//   - POST   /report/submit              (direct submission, stricter rate limit)
//   - PUT    /admin/reports/{id}/status  (moderation, admin token required)
//   - GET    /api/incidents              (anonymized map points)
//   - GET    /admin/stats                (aggregate counters)
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/domain"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/services"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/utils"
)

// ReportService defines the submission gateway operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ReportService interface {
	// Submit runs the gateway pipeline on an assembled record.
	Submit(ctx context.Context, rec services.SubmitRecord, mappingConsent bool) (services.SubmitResult, error)
	// Moderate applies a status transition by truncated public id.
	Moderate(ctx context.Context, reportID string, status domain.ReportStatus) error
	// MapPoints returns anonymized points for the public map.
	MapPoints(ctx context.Context, limit int) ([]services.MapPoint, error)
	// ReportStats returns aggregate counters.
	ReportStats(ctx context.Context) (services.Stats, error)
}

//
// DTOs
//

// SubmitReportRequest is the JSON payload for direct (non-chat) submission.
type SubmitReportRequest struct {
	// SessionID ties the report to a session for deduplication; a synthetic
	// id is generated when empty.
	SessionID string `json:"session_id" example:"session_9f2c4a1b8d3e6f70"`
	// Description is the incident narrative (encrypted at rest).
	Description string `json:"description" binding:"required"`
	// County is the incident county.
	County string `json:"county" example:"Nairobi"`
	// Location is free-text location detail (encrypted at rest).
	Location string `json:"location" example:"near the market in Westlands"`
	// IncidentType is the categorical incident label.
	IncidentType string `json:"incident_type" example:"physical_violence"`
	// Timeframe is the categorical recency label.
	Timeframe string `json:"timeframe" example:"recent"`
	// Relationship is the survivor-perpetrator relationship label.
	Relationship string `json:"relationship" example:"intimate_partner"`
	// SupportNeeds lists requested support categories.
	SupportNeeds []string `json:"support_needs"`
	// Barriers lists reporting barriers the survivor named.
	Barriers []string `json:"barriers"`
	// MappingConsent opts the report into the anonymized public map.
	MappingConsent bool `json:"mapping_consent"`
	// Language tags the submission language.
	Language string `json:"language" example:"en"`
}

// ModerateReportRequest is the JSON payload for a moderation transition.
type ModerateReportRequest struct {
	// Status is the target status: verified, unverified, or rejected.
	Status string `json:"status" binding:"required" example:"verified"`
}

// SubmitReportResponse wraps the gateway decision for direct submissions.
type SubmitReportResponse struct {
	Accepted bool   `json:"accepted"`
	ReportID string `json:"report_id,omitempty"`
	Status   string `json:"status,omitempty"`
	Message  string `json:"message"`
}

// IncidentsResponse wraps the public map feed.
type IncidentsResponse struct {
	Incidents []services.MapPoint `json:"incidents"`
	Count     int                 `json:"count"`
}

//
// Helpers
//

// clampLimit parses and bounds the limit query param.
func clampLimit(c *gin.Context) int {
	const (
		defaultLimit = 200
		maxLimit     = 500
	)
	return utils.ClampInt(utils.AtoiDefault(c.Query("limit"), defaultLimit), 1, maxLimit)
}

//
// Handlers
//

// SubmitReport godoc
// @ID          submitReport
// @Summary     Submit an incident report directly
// @Description Runs the submission pipeline on a complete record without going through chat intake.
// @Tags        Reports
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.SubmitReportRequest  true  "Report payload"
//
// @Success     201  {object}  handlers.SubmitReportResponse
// @Success     200  {object}  handlers.SubmitReportResponse  "Rejected as too thin; fixable by the client"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /report/submit [post]
func (h *Handlers) SubmitReport(c *gin.Context) {
	var req SubmitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	county := strings.TrimSpace(req.County)
	if county != "" {
		if canonical, valid := domain.NormalizeCounty(county); valid {
			county = canonical
		} else {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown county")
			return
		}
	}

	rec := services.SubmitRecord{
		SessionID:    strings.TrimSpace(req.SessionID),
		Description:  req.Description,
		County:       county,
		LocationText: req.Location,
		IncidentType: req.IncidentType,
		Timeframe:    domain.Timeframe(req.Timeframe),
		Relationship: domain.Relationship(req.Relationship),
		SupportNeeds: domain.JSONStrings(req.SupportNeeds),
		Barriers:     domain.JSONStrings(req.Barriers),
		Language:     language(c, req.Language),
		Source:       "web",
	}

	res, err := h.reportSvc.Submit(c.Request.Context(), rec, req.MappingConsent && county != "")
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeSubmitFailed, "report could not be saved")
		return
	}

	resp := SubmitReportResponse{
		Accepted: res.Accepted,
		ReportID: res.ReportID,
		Status:   string(res.Status),
		Message:  res.Message,
	}
	if !res.Accepted {
		ok(c, http.StatusOK, resp)
		return
	}
	ok(c, http.StatusCreated, resp)
}

// ModerateReport godoc
// @ID          moderateReport
// @Summary     Moderate a report
// @Description Applies a status transition to the report matching the truncated public id. Requires the admin token.
// @Tags        Admin
// @Accept      json
// @Produce     json
//
// @Param       X-Admin-Token  header  string  true  "Admin token"
// @Param       id             path    string  true  "Truncated report id (8 hex chars)"  example(9f2c4a1b)
// @Param       body           body    handlers.ModerateReportRequest  true  "Target status"
//
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid status"
// @Failure     404  {object}  handlers.ErrorResponse  "Report not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/reports/{id}/status [put]
func (h *Handlers) ModerateReport(c *gin.Context) {
	var req ModerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status required")
		return
	}

	err := h.reportSvc.Moderate(c.Request.Context(), c.Param("id"), domain.ReportStatus(req.Status))
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrInvalidStatus):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status must be one of: verified, unverified, rejected")
	case errors.Is(err, services.ErrReportNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "report not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "moderation failed")
	}
}

// ListIncidents godoc
// @ID          listIncidents
// @Summary     List anonymized map points
// @Description Returns verified, mapping-consented reports as fuzzed coordinates with categorical fields only.
// @Tags        Reports
// @Produce     json
//
// @Param       limit  query  int  false  "Maximum points"  minimum(1) maximum(500) default(200)
//
// @Success     200  {object}  handlers.IncidentsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /api/incidents [get]
func (h *Handlers) ListIncidents(c *gin.Context) {
	points, err := h.reportSvc.MapPoints(c.Request.Context(), clampLimit(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not load incidents")
		return
	}
	ok(c, http.StatusOK, IncidentsResponse{Incidents: points, Count: len(points)})
}

// ReportStats godoc
// @ID          reportStats
// @Summary     Aggregate report counters
// @Description Returns total and verified counts plus per-county and per-type buckets. Requires the admin token.
// @Tags        Admin
// @Produce     json
//
// @Param       X-Admin-Token  header  string  true  "Admin token"
//
// @Success     200  {object}  services.Stats
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/stats [get]
func (h *Handlers) ReportStats(c *gin.Context) {
	stats, err := h.reportSvc.ReportStats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not load stats")
		return
	}
	ok(c, http.StatusOK, stats)
}
