// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries over
// incident reports: simple counts by county and by incident type. Each
// function is context-aware and safe to call from services or handlers.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/domain"
)

// CountBucket is one row of a grouped count.
type CountBucket struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// ReportCounts returns the total number of reports and the number verified.
func ReportCounts(ctx context.Context, db *gorm.DB) (total, verified int64, err error) {
	if err = db.WithContext(ctx).Model(&domain.IncidentReport{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	err = db.WithContext(ctx).Model(&domain.IncidentReport{}).
		Where("status = ?", domain.StatusVerified).
		Count(&verified).Error
	return total, verified, err
}

// CountsByCounty groups report counts by county, largest first.
func CountsByCounty(ctx context.Context, db *gorm.DB) ([]CountBucket, error) {
	var out []CountBucket
	err := db.WithContext(ctx).Model(&domain.IncidentReport{}).
		Select("county as key, count(*) as count").
		Group("county").
		Order("count desc").
		Scan(&out).Error
	return out, err
}

// CountsByIncidentType groups report counts by incident type, largest first.
func CountsByIncidentType(ctx context.Context, db *gorm.DB) ([]CountBucket, error) {
	var out []CountBucket
	err := db.WithContext(ctx).Model(&domain.IncidentReport{}).
		Select("incident_type as key, count(*) as count").
		Group("incident_type").
		Order("count desc").
		Scan(&out).Error
	return out, err
}
