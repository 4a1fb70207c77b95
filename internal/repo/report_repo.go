// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// IncidentReport model.
//
// Reports are append-only from the gateway's point of view: rows are
// created at submission and mutated only by the moderation status
// transition. Deletion is not offered.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/domain"
)

// ErrDuplicateReport is returned when the dedup hash already exists,
// meaning the same session submitted the same report in the same second.
var ErrDuplicateReport = errors.New("repo: duplicate report")

// CreateReport inserts a new incident report. A unique-constraint violation
// on the dedup hash surfaces as ErrDuplicateReport.
func CreateReport(ctx context.Context, db *gorm.DB, r *domain.IncidentReport) error {
	r.CreatedAt = time.Now().UTC()
	r.UpdatedAt = r.CreatedAt
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrDuplicateReport
		}
		return err
	}
	return nil
}

// GetReportByHashPrefix fetches a report by the truncated public id (a
// prefix of the dedup hash), or ErrNotFound.
func GetReportByHashPrefix(ctx context.Context, db *gorm.DB, prefix string) (*domain.IncidentReport, error) {
	var r domain.IncidentReport
	err := db.WithContext(ctx).
		Where("report_id_hash LIKE ?", prefix+"%").
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListMappableReports returns verified reports that carry coordinates and
// mapping consent, newest first. These are the only rows the public map may
// see.
func ListMappableReports(ctx context.Context, db *gorm.DB, limit int) ([]domain.IncidentReport, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	var out []domain.IncidentReport
	err := db.WithContext(ctx).
		Where("status = ? AND mapping_consent = ? AND latitude IS NOT NULL", domain.StatusVerified, true).
		Order("timestamp desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateReportStatus applies a moderation transition to the report matching
// the truncated public id. Returns ErrNotFound when no row matches.
func UpdateReportStatus(ctx context.Context, db *gorm.DB, prefix string, status domain.ReportStatus) error {
	res := db.WithContext(ctx).
		Model(&domain.IncidentReport{}).
		Where("report_id_hash LIKE ?", prefix+"%").
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
