package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/dicom-ingest/internal/database"
	"github.com/otcheredev/dicom-ingest/internal/models"
)

// JobRepository persists StudyJob/SeriesRecord rows for the admin API
// (SPEC_FULL.md ambient stack), replacing the teacher's per-tenant
// PACSConfig CRUD now that there is a single configured PACS.
type JobRepository struct{}

func NewJobRepository() *JobRepository {
	return &JobRepository{}
}

// Create inserts a newly queued job.
func (r *JobRepository) Create(ctx context.Context, job *models.StudyJob) error {
	if err := database.DB.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create study job: %w", err)
	}
	return nil
}

// GetByID retrieves a job by id.
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StudyJob, error) {
	var job models.StudyJob
	if err := database.DB.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, fmt.Errorf("failed to get study job: %w", err)
	}
	return &job, nil
}

// List returns the most recently created jobs.
func (r *JobRepository) List(ctx context.Context, limit, offset int) ([]models.StudyJob, error) {
	var jobs []models.StudyJob
	query := database.DB.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list study jobs: %w", err)
	}
	return jobs, nil
}

// MarkRunning transitions a queued job to running.
func (r *JobRepository) MarkRunning(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return database.DB.WithContext(ctx).Model(&models.StudyJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": models.JobStatusRunning, "started_at": &now}).Error
}

// Complete records the terminal state of a job.
func (r *JobRepository) Complete(ctx context.Context, id uuid.UUID, status models.JobStatus, organizedDir, excelFile, archiveFile, errMsg string, seriesCount int) error {
	now := time.Now().UTC()
	return database.DB.WithContext(ctx).Model(&models.StudyJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        status,
			"organized_dir": organizedDir,
			"excel_file":    excelFile,
			"archive_file":  archiveFile,
			"error_message": errMsg,
			"series_count":  seriesCount,
			"completed_at":  &now,
		}).Error
}

// AddSeries records one series outcome for a job.
func (r *JobRepository) AddSeries(ctx context.Context, rec *models.SeriesRecord) error {
	if err := database.DB.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to record series: %w", err)
	}
	return nil
}

// SeriesForJob lists the series recorded for a job.
func (r *JobRepository) SeriesForJob(ctx context.Context, jobID uuid.UUID) ([]models.SeriesRecord, error) {
	var recs []models.SeriesRecord
	if err := database.DB.WithContext(ctx).Where("study_job_id = ?", jobID).Order("series_number").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list series records: %w", err)
	}
	return recs, nil
}
