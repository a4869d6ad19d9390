// Package ingest wires the processing pipeline orchestrator (internal/pipeline)
// to the operational store (internal/repository) so the admin HTTP surface
// can submit study jobs and poll their status, mirroring the layering of
// the teacher's internal/services/pacs_service.go (handler -> service ->
// repository) with the adapter-factory/PACSConfig lookup replaced by a
// single statically configured PACS.
package ingest

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/dicom-ingest/internal/cache"
	"github.com/otcheredev/dicom-ingest/internal/config"
	"github.com/otcheredev/dicom-ingest/internal/metadata"
	"github.com/otcheredev/dicom-ingest/internal/models"
	"github.com/otcheredev/dicom-ingest/internal/mrclassifier"
	"github.com/otcheredev/dicom-ingest/internal/pacs"
	"github.com/otcheredev/dicom-ingest/internal/pipeline"
	"github.com/otcheredev/dicom-ingest/internal/repository"
)

// Service drives process_study jobs on background goroutines and persists
// their lifecycle through JobRepository.
type Service struct {
	cfg       *config.Config
	jobs      *repository.JobRepository
	audit     *repository.AuditRepository
	cache     cache.Cache
	mrConfig  *mrclassifier.Config
	tagCatalog *metadata.Catalog
}

func NewService(cfg *config.Config, jobs *repository.JobRepository, audit *repository.AuditRepository, c cache.Cache, mrConfig *mrclassifier.Config, tagCatalog *metadata.Catalog) *Service {
	return &Service{cfg: cfg, jobs: jobs, audit: audit, cache: c, mrConfig: mrConfig, tagCatalog: tagCatalog}
}

// inFlightKey namespaces the dedup cache entry for one accession's
// in-progress job, so a second submission while the first is still running
// is rejected rather than racing a second PACS retrieval for the same study.
func inFlightKey(accession string) string {
	return cache.CacheKey("ingest", accession, "", "", "inflight")
}

// Submit creates a queued StudyJob row and kicks off pipeline.Run on a
// background goroutine. It returns immediately with the queued record.
func (s *Service) Submit(ctx context.Context, accession, callerID string) (*models.StudyJob, error) {
	key := inFlightKey(accession)
	if exists, _ := s.cache.Exists(ctx, key); exists {
		return nil, fmt.Errorf("accession %s already has an ingestion job in flight", accession)
	}
	_ = s.cache.Set(ctx, key, []byte("1"), 6*time.Hour)

	job := &models.StudyJob{
		Accession: accession,
		Status:    models.JobStatusQueued,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		_ = s.cache.Delete(ctx, key)
		return nil, err
	}

	go s.run(job.ID, accession, callerID)

	return job, nil
}

func (s *Service) run(jobID uuid.UUID, accession, callerID string) {
	ctx := context.Background()
	key := inFlightKey(accession)
	defer func() { _ = s.cache.Delete(ctx, key) }()

	if err := s.jobs.MarkRunning(ctx, jobID); err != nil {
		log.Error().Err(err).Str("job_id", jobID.String()).Msg("failed to mark job running")
	}

	start := time.Now()

	result := pipeline.Run(ctx, pipeline.Options{
		Accession: accession,
		OutDir:    s.cfg.OutputDir,
		PACS: pacs.DownloadOptions{
			PACSIP:          s.cfg.PACSIP,
			PACSPort:        s.cfg.PACSPort,
			CallingAET:      s.cfg.CallingAET,
			CalledAET:       s.cfg.CalledAET,
			CallingPort:     s.cfg.CallingPort,
			OutputDir:       s.cfg.OutputDir,
			HighWatermarkGB: s.cfg.DownloadHighWatermarkGB,
			LowWatermarkGB:  s.cfg.DownloadLowWatermarkGB,
		},
		MaxPendingSeries: s.cfg.MaxPendingSeries,
		NumConverters:    s.cfg.NumConverters,
		Dcm2niixPath:     s.cfg.Dcm2niixPath,
		ProduceNPZ:       true,
		TagCatalogDir:    s.cfg.TagCatalogDir,
		TagCatalog:       s.tagCatalog,
		MRClassifierCfg:  s.mrConfig,
		BuildArchive:     true,
		OnStage: func(message, stage string) {
			log.Info().Str("job_id", jobID.String()).Str("stage", stage).Msg(message)
		},
		OnProgress: func(current, total int, seriesName string, pct float64) {
			log.Debug().Str("job_id", jobID.String()).Int("current", current).Int("total", total).
				Str("series", seriesName).Float64("pct", pct).Msg("series progress")
		},
	})

	status := models.JobStatusSucceeded
	errMsg := ""
	if !result.Success {
		status = models.JobStatusFailed
		if result.Err != nil {
			errMsg = result.Err.Error()
		}
	}

	if err := s.jobs.Complete(ctx, jobID, status, result.OrganizedDir, result.ExcelFile, result.ArchiveFile, errMsg, len(result.SeriesInfo)); err != nil {
		log.Error().Err(err).Str("job_id", jobID.String()).Msg("failed to record job completion")
	}

	for _, si := range result.SeriesInfo {
		rec := seriesRecordFromInfo(jobID, si)
		if err := s.jobs.AddSeries(ctx, rec); err != nil {
			log.Error().Err(err).Str("job_id", jobID.String()).Msg("failed to record series")
		}
	}

	auditStatus := "success"
	if !result.Success {
		auditStatus = "failure"
	}
	_ = s.audit.Create(ctx, &models.AuditLog{
		CallerID:     callerID,
		Action:       "process_study",
		ResourceType: "study",
		ResourceUID:  accession,
		Status:       auditStatus,
		ErrorMessage: errMsg,
		Duration:     time.Since(start).Milliseconds(),
	})
}

func seriesRecordFromInfo(jobID uuid.UUID, si pacs.SeriesInfo) *models.SeriesRecord {
	num, _ := strconv.Atoi(si.SeriesNumber)
	return &models.SeriesRecord{
		StudyJobID:   jobID,
		SeriesUID:    si.SeriesInstanceUID,
		SeriesNumber: num,
		Description:  si.SeriesDescription,
		Modality:     si.Modality,
	}
}

// Get retrieves a job by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.StudyJob, error) {
	return s.jobs.GetByID(ctx, id)
}

// List returns recent jobs.
func (s *Service) List(ctx context.Context, limit, offset int) ([]models.StudyJob, error) {
	return s.jobs.List(ctx, limit, offset)
}

// Series returns the series records recorded for a job.
func (s *Service) Series(ctx context.Context, id uuid.UUID) ([]models.SeriesRecord, error) {
	return s.jobs.SeriesForJob(ctx, id)
}
