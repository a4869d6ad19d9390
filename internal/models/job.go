package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus is the lifecycle state of a StudyJob.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// StudyJob persists the lifecycle of one process_study run (spec.md §4.2)
// so the admin API can report status after the in-process pipeline.Run
// goroutine has finished or crashed.
type StudyJob struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Accession    string    `gorm:"type:varchar(64);not null;index" json:"accession"`
	Status       JobStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	OrganizedDir string    `gorm:"type:text" json:"organized_dir,omitempty"`
	ExcelFile    string    `gorm:"type:text" json:"excel_file,omitempty"`
	ArchiveFile  string    `gorm:"type:text" json:"archive_file,omitempty"`
	SeriesCount  int       `json:"series_count"`
	ErrorMessage string    `gorm:"type:text" json:"error_message,omitempty"`

	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (StudyJob) TableName() string {
	return "study_jobs"
}

func (j *StudyJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// SeriesRecord mirrors one entry of pacs.SeriesInfo for a completed job,
// persisted so the admin API can list per-series outcomes without
// re-reading the organized directory.
type SeriesRecord struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	StudyJobID     uuid.UUID `gorm:"type:uuid;not null;index" json:"study_job_id"`
	SeriesUID      string    `gorm:"type:varchar(128);index" json:"series_uid"`
	SeriesNumber   int       `json:"series_number"`
	Description    string    `gorm:"type:varchar(255)" json:"description"`
	Modality       string    `gorm:"type:varchar(16)" json:"modality"`
	FileCount      int       `json:"file_count"`
	Converted      bool      `json:"converted"`
	ConvertError   string    `gorm:"type:text" json:"convert_error,omitempty"`
	QCLowQuality   bool      `json:"qc_low_quality"`
	CreatedAt      time.Time `json:"created_at"`
}

func (SeriesRecord) TableName() string {
	return "series_records"
}

func (s *SeriesRecord) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
