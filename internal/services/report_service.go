// Package services – ReportService
//
// This file implements the report submission gateway: the single path by
// which an in-progress intake record becomes a persisted incident report.
// The gateway validates the narrative, resolves and fuzzes coordinates when
// the survivor consented to mapping, derives the content-free dedup hash,
// encrypts free-text fields, applies the auto-verification policy, and
// persists the row. It also exposes the moderation transition and the
// anonymized map/stat queries.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/crypto"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/domain"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/geo"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/repo"
)

// autoVerifyKeywords is the reviewable policy list for automatic
// verification: a normalized incident type containing any of these
// substrings marks the report verified without human moderation. Anything
// else waits for review.
var autoVerifyKeywords = []string{
	"physical_violence", "sexual_violence", "physical_assault",
	"physical_abuse", "sexual_assault", "rape", "femicide",
	"attempted_murder", "assault", "attack", "domestic_violence",
	"domestic_abuse", "abuse", "slap", "hit", "beat", "punch", "kick",
}

// ReportRepo defines the repository contract required by ReportService.
type ReportRepo interface {
	CreateReport(ctx context.Context, db *gorm.DB, r *domain.IncidentReport) error
	GetReportByHashPrefix(ctx context.Context, db *gorm.DB, prefix string) (*domain.IncidentReport, error)
	UpdateReportStatus(ctx context.Context, db *gorm.DB, prefix string, status domain.ReportStatus) error
	ListMappableReports(ctx context.Context, db *gorm.DB, limit int) ([]domain.IncidentReport, error)
	ReportCounts(ctx context.Context, db *gorm.DB) (total, verified int64, err error)
	CountsByCounty(ctx context.Context, db *gorm.DB) ([]repo.CountBucket, error)
	CountsByIncidentType(ctx context.Context, db *gorm.DB) ([]repo.CountBucket, error)
}

// SubmitRecord is the intake data handed to Submit, either assembled from a
// completed session or posted directly to the submission endpoint.
type SubmitRecord struct {
	SessionID    string
	Description  string
	County       string
	LocationText string
	IncidentType string
	Timeframe    domain.Timeframe
	Relationship domain.Relationship
	SupportNeeds domain.JSONStrings
	Barriers     domain.JSONStrings
	Language     string
	Source       string
	Timestamp    time.Time // zero value means "now"
}

// SubmitResult reports the gateway's decision. A too-short description is a
// rejection the survivor can fix, not an error; persistence failures are the
// only error branch.
type SubmitResult struct {
	Accepted bool
	ReportID string // truncated public id, 8 chars
	Status   domain.ReportStatus
	Message  string
}

// User-facing gateway messages.
const (
	needMoreDetailMessage = "Could you share a little more about what happened? A few more details help us route your report to the right support. Take your time."

	verifiedMappedMessage = "Thank you. Your report has been received and verified. Because you agreed to mapping, an anonymized point will appear on the public map. Your reference code is %s. Keep it if you ever want to follow up."

	verifiedPrivateMessage = "Thank you. Your report has been received and verified. It stays private, exactly as you asked. Your reference code is %s."

	pendingReviewMessage = "Thank you. Your report has been received and is waiting for review by our team. Your reference code is %s."
)

// ReportService is the submission gateway and moderation surface.
type ReportService struct {
	DB     *gorm.DB
	Repo   ReportRepo
	Cipher *crypto.Cipher

	// Resolver may be nil when no gazetteer is configured; mapping consent
	// is then forced off because coordinates cannot be produced.
	Resolver *geo.Resolver
	Fuzzer   *geo.Fuzzer

	// MinDescription is the minimum narrative length in runes.
	MinDescription int
}

// NewReportService constructs the gateway.
func NewReportService(db *gorm.DB, r ReportRepo, cipher *crypto.Cipher, resolver *geo.Resolver, fuzzer *geo.Fuzzer, minDescription int) *ReportService {
	if minDescription < 1 {
		minDescription = 10
	}
	return &ReportService{
		DB:             db,
		Repo:           r,
		Cipher:         cipher,
		Resolver:       resolver,
		Fuzzer:         fuzzer,
		MinDescription: minDescription,
	}
}

// Submit runs the full gateway pipeline. mappingConsent is honored only when
// a resolver is configured; resolution itself cannot fail.
func (s *ReportService) Submit(ctx context.Context, rec SubmitRecord, mappingConsent bool) (SubmitResult, error) {
	ctx, span := otel.Tracer("services").Start(ctx, "ReportService.Submit")
	defer span.End()

	desc := strings.TrimSpace(rec.Description)
	if utf8.RuneCountInString(desc) < s.MinDescription {
		return SubmitResult{Accepted: false, Message: needMoreDetailMessage}, nil
	}

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	if s.Resolver == nil {
		mappingConsent = false
	}

	var lat, lon *float64
	accuracy := 0.0
	if mappingConsent {
		resolved := s.Resolver.Resolve(ctx, rec.LocationText, rec.County)
		fl, fo := resolved.Latitude, resolved.Longitude
		if s.Fuzzer != nil {
			fl, fo = s.Fuzzer.Fuzz(fl, fo)
			accuracy = s.Fuzzer.RadiusKM()
		}
		lat, lon = &fl, &fo
		span.SetAttributes(attribute.String("geo.match", string(resolved.Match)))
	}

	descEnc, err := s.Cipher.EncryptString(desc)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	locEnc, err := s.Cipher.EncryptString(strings.TrimSpace(rec.LocationText))
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	incidentType := domain.NormalizeIncidentType(rec.IncidentType)
	if incidentType == "" {
		incidentType = domain.NotSpecified
	}
	autoVerified := AutoVerify(incidentType)
	status := domain.StatusUnverified
	if autoVerified {
		status = domain.StatusVerified
	}

	hash := crypto.DedupHash(rec.SessionID, rec.County, ts)
	report := &domain.IncidentReport{
		ReportIDHash:         hash,
		SessionID:            rec.SessionID,
		Status:               status,
		DescriptionEncrypted: descEnc,
		LocationEncrypted:    locEnc,
		County:               rec.County,
		IncidentType:         incidentType,
		Timeframe:            rec.Timeframe,
		Relationship:         rec.Relationship,
		SupportNeeds:         rec.SupportNeeds,
		Barriers:             rec.Barriers,
		Latitude:             lat,
		Longitude:            lon,
		AccuracyKM:           accuracy,
		MappingConsent:       mappingConsent,
		AutoVerified:         autoVerified,
		Language:             rec.Language,
		Source:               sourceOrDefault(rec.Source),
		Timestamp:            ts,
	}

	if err := s.Repo.CreateReport(ctx, s.DB, report); err != nil {
		if errors.Is(err, repo.ErrDuplicateReport) {
			// Same session, county, and second: the earlier row already
			// holds this report.
			shortID := hash[:8]
			return SubmitResult{Accepted: true, ReportID: shortID, Status: status, Message: resultMessage(status, mappingConsent, shortID)}, nil
		}
		log.Error().Err(err).Msg("report persistence failed")
		return SubmitResult{}, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	shortID := hash[:8]
	span.SetAttributes(
		attribute.String("report.status", string(status)),
		attribute.Bool("report.mapped", mappingConsent),
	)
	log.Info().Str("report_id", shortID).Str("status", string(status)).
		Bool("auto_verified", autoVerified).Bool("mapped", mappingConsent).
		Msg("incident report submitted")

	return SubmitResult{
		Accepted: true,
		ReportID: shortID,
		Status:   status,
		Message:  resultMessage(status, mappingConsent, shortID),
	}, nil
}

// AutoVerify applies the keyword policy to a normalized incident type.
func AutoVerify(normalizedType string) bool {
	for _, kw := range autoVerifyKeywords {
		if strings.Contains(normalizedType, kw) {
			return true
		}
	}
	return false
}

func resultMessage(status domain.ReportStatus, mapped bool, shortID string) string {
	switch {
	case status == domain.StatusVerified && mapped:
		return fmt.Sprintf(verifiedMappedMessage, shortID)
	case status == domain.StatusVerified:
		return fmt.Sprintf(verifiedPrivateMessage, shortID)
	default:
		return fmt.Sprintf(pendingReviewMessage, shortID)
	}
}

func sourceOrDefault(src string) string {
	if src == "" {
		return "chat"
	}
	return src
}

// Moderate applies a status transition to the report matching the truncated
// public id. Invalid statuses and unknown reports map to sentinel errors.
func (s *ReportService) Moderate(ctx context.Context, reportID string, status domain.ReportStatus) error {
	ctx, span := otel.Tracer("services").Start(ctx, "ReportService.Moderate")
	defer span.End()

	if !domain.ValidReportStatus(status) {
		return ErrInvalidStatus
	}
	reportID = strings.ToLower(strings.TrimSpace(reportID))
	if reportID == "" {
		return ErrReportNotFound
	}
	err := s.Repo.UpdateReportStatus(ctx, s.DB, reportID, status)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrReportNotFound
	}
	if err == nil {
		log.Info().Str("report_id", reportID).Str("status", string(status)).
			Msg("report moderated")
	}
	return err
}

// MapPoint is one anonymized public map entry: fuzzed coordinates plus
// categorical columns only.
type MapPoint struct {
	ReportID     string           `json:"report_id"`
	Latitude     float64          `json:"latitude"`
	Longitude    float64          `json:"longitude"`
	AccuracyKM   float64          `json:"accuracy_km"`
	County       string           `json:"county"`
	IncidentType string           `json:"incident_type"`
	Timeframe    domain.Timeframe `json:"timeframe"`
	Timestamp    time.Time        `json:"timestamp"`
}

// MapPoints returns the anonymized points eligible for the public map:
// verified reports with mapping consent and coordinates.
func (s *ReportService) MapPoints(ctx context.Context, limit int) ([]MapPoint, error) {
	rows, err := s.Repo.ListMappableReports(ctx, s.DB, limit)
	if err != nil {
		return nil, err
	}
	out := make([]MapPoint, 0, len(rows))
	for _, r := range rows {
		if r.Latitude == nil || r.Longitude == nil {
			continue
		}
		out = append(out, MapPoint{
			ReportID:     r.ReportIDHash[:8],
			Latitude:     *r.Latitude,
			Longitude:    *r.Longitude,
			AccuracyKM:   r.AccuracyKM,
			County:       r.County,
			IncidentType: r.IncidentType,
			Timeframe:    r.Timeframe,
			Timestamp:    r.Timestamp,
		})
	}
	return out, nil
}

// Stats aggregates simple report counts for the admin surface.
type Stats struct {
	Total    int64              `json:"total"`
	Verified int64              `json:"verified"`
	ByCounty []repo.CountBucket `json:"by_county"`
	ByType   []repo.CountBucket `json:"by_type"`
}

// ReportStats returns the aggregate counters.
func (s *ReportService) ReportStats(ctx context.Context) (Stats, error) {
	total, verified, err := s.Repo.ReportCounts(ctx, s.DB)
	if err != nil {
		return Stats{}, err
	}
	byCounty, err := s.Repo.CountsByCounty(ctx, s.DB)
	if err != nil {
		return Stats{}, err
	}
	byType, err := s.Repo.CountsByIncidentType(ctx, s.DB)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Total: total, Verified: verified, ByCounty: byCounty, ByType: byType}, nil
}
