package repository

import (
	"context"
	"fmt"

	"github.com/otcheredev/dicom-ingest/internal/database"
	"github.com/otcheredev/dicom-ingest/internal/models"
)

// AuditRepository handles audit log database operations.
type AuditRepository struct{}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

// Create inserts a new audit log entry.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	if err := database.DB.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// GetByResourceUID retrieves audit logs for a specific resource (typically
// an accession number or study job id).
func (r *AuditRepository) GetByResourceUID(ctx context.Context, resourceUID string) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	if err := database.DB.WithContext(ctx).
		Where("resource_uid = ?", resourceUID).
		Order("created_at DESC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to get audit logs: %w", err)
	}
	return entries, nil
}

// List retrieves recent audit logs, most recent first.
func (r *AuditRepository) List(ctx context.Context, limit, offset int) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	query := database.DB.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to get audit logs: %w", err)
	}
	return entries, nil
}
