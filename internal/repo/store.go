// Package repo – Store
//
// Store adapts the package-level repository functions to the method sets the
// service layer depends on, so services can be handed fakes in tests while
// production wiring stays a one-liner.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/domain"
)

// Store is the production repository implementation.
type Store struct{}

// NewStore returns the GORM-backed store.
func NewStore() Store { return Store{} }

func (Store) CreateSession(ctx context.Context, db *gorm.DB, s *domain.Session) error {
	return CreateSession(ctx, db, s)
}

func (Store) GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.Session, error) {
	return GetSession(ctx, db, id)
}

func (Store) SaveSession(ctx context.Context, db *gorm.DB, s *domain.Session) error {
	return SaveSession(ctx, db, s)
}

func (Store) CreateReport(ctx context.Context, db *gorm.DB, r *domain.IncidentReport) error {
	return CreateReport(ctx, db, r)
}

func (Store) GetReportByHashPrefix(ctx context.Context, db *gorm.DB, prefix string) (*domain.IncidentReport, error) {
	return GetReportByHashPrefix(ctx, db, prefix)
}

func (Store) UpdateReportStatus(ctx context.Context, db *gorm.DB, prefix string, status domain.ReportStatus) error {
	return UpdateReportStatus(ctx, db, prefix, status)
}

func (Store) ListMappableReports(ctx context.Context, db *gorm.DB, limit int) ([]domain.IncidentReport, error) {
	return ListMappableReports(ctx, db, limit)
}

func (Store) ReportCounts(ctx context.Context, db *gorm.DB) (int64, int64, error) {
	return ReportCounts(ctx, db)
}

func (Store) CountsByCounty(ctx context.Context, db *gorm.DB) ([]CountBucket, error) {
	return CountsByCounty(ctx, db)
}

func (Store) CountsByIncidentType(ctx context.Context, db *gorm.DB) ([]CountBucket, error) {
	return CountsByIncidentType(ctx, db)
}
