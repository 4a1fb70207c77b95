// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Session
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a session is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateSession inserts a new session row. The caller supplies the opaque
// id; timestamps are set to UTC.
func CreateSession(ctx context.Context, db *gorm.DB, s *domain.Session) error {
	if s.Stage == "" {
		s.Stage = domain.StageConsent
	}
	if s.Language == "" {
		s.Language = "en"
	}
	s.CreatedAt = time.Now().UTC()
	s.UpdatedAt = s.CreatedAt
	return db.WithContext(ctx).Create(s).Error
}

// GetSession fetches a session by its opaque id, or ErrNotFound.
func GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.Session, error) {
	var s domain.Session
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveSession persists the full session state. Used after every intake turn
// so the checkpoint survives a disconnect.
func SaveSession(ctx context.Context, db *gorm.DB, s *domain.Session) error {
	s.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Save(s).Error
}
