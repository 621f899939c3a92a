// Package storage provides the GORM-backed persistence for analysis jobs and
// the pipeline-owned document fields.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/core"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/validate"
)

// GormStore implements core.Store using GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed job store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB exposes the underlying handle for sharing with the document store.
func (s *GormStore) DB() *gorm.DB { return s.db }

// Migrate creates the necessary tables.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&core.Job{}, &core.Document{})
}

// Enqueue persists a new queued job.
func (s *GormStore) Enqueue(ctx context.Context, job *core.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = core.StatusQueued
	}
	if job.CurrentStep == "" {
		job.CurrentStep = core.StepPreparing
	}
	return s.db.WithContext(ctx).Create(job).Error
}

// ClaimNext atomically claims the next eligible queued job. The claim is the
// single correctness-critical operation of the store: it runs inside one
// transaction and skips any document that already has a processing job, so at
// most one job per document is ever in flight even if two loops race.
func (s *GormStore) ClaimNext(ctx context.Context) (*core.Job, error) {
	var job core.Job
	now := time.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		processing := tx.Model(&core.Job{}).
			Select("document_id").
			Where("status = ?", core.StatusProcessing)

		result := tx.
			Where("status = ?", core.StatusQueued).
			Where("(run_at IS NULL OR run_at <= ?)", now).
			Where("document_id NOT IN (?)", processing).
			Order("priority DESC, created_at ASC").
			First(&job)

		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return nil
			}
			return result.Error
		}

		job.Status = core.StatusProcessing
		if job.StartedAt == nil {
			job.StartedAt = &now
		}

		return tx.Save(&job).Error
	})

	if err != nil {
		return nil, err
	}
	if job.ID == "" {
		return nil, nil
	}
	return &job, nil
}

// UpdateStep records step completion on a processing job. The conditional
// update enforces that progress never decreases and that only processing jobs
// advance.
func (s *GormStore) UpdateStep(ctx context.Context, jobID string, step core.Step, progress int, state []byte) error {
	result := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ? AND status = ? AND step_progress <= ?", jobID, core.StatusProcessing, progress).
		Updates(map[string]any{
			"current_step":  step,
			"step_progress": progress,
			"step_state":    state,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrJobNotProcessing
	}
	return nil
}

// Requeue returns a processing job to the queue for another attempt at its
// current step. The error message is cleared: a retrying job is not failed,
// and only failed jobs carry one.
func (s *GormStore) Requeue(ctx context.Context, jobID string, attempts int, runAt *time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ? AND status = ?", jobID, core.StatusProcessing).
		Updates(map[string]any{
			"status":        core.StatusQueued,
			"attempts":      attempts,
			"error_message": "",
			"run_at":        runAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrJobNotProcessing
	}
	return nil
}

// RequeueAbandoned flips all processing jobs back to queued, keeping their
// step checkpoint so they resume where they stopped. Attempts are not
// consumed; a crash is not a provider failure.
func (s *GormStore) RequeueAbandoned(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("status = ?", core.StatusProcessing).
		Updates(map[string]any{
			"status":        core.StatusQueued,
			"error_message": "",
		})
	return result.RowsAffected, result.Error
}

// Complete marks a processing job as successfully completed. The result
// payload is present if and only if the job completed.
func (s *GormStore) Complete(ctx context.Context, jobID string, resultPayload []byte, provenance core.Provenance) error {
	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ? AND status = ?", jobID, core.StatusProcessing).
		Updates(map[string]any{
			"status":        core.StatusCompleted,
			"step_progress": core.ProgressCompleted,
			"result":        resultPayload,
			"provenance":    provenance,
			"error_message": "",
			"completed_at":  now,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrJobNotProcessing
	}
	return nil
}

// Fail marks a processing job as failed. Error messages are sanitized before
// storage.
func (s *GormStore) Fail(ctx context.Context, jobID string, attempts int, errMsg string) error {
	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ? AND status = ?", jobID, core.StatusProcessing).
		Updates(map[string]any{
			"status":        core.StatusFailed,
			"attempts":      attempts,
			"error_message": validate.SanitizeErrorMessage(errMsg),
			"completed_at":  now,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrJobNotProcessing
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *GormStore) GetJob(ctx context.Context, jobID string) (*core.Job, error) {
	var job core.Job
	err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// LatestForDocument returns the most recently created job for a document.
func (s *GormStore) LatestForDocument(ctx context.Context, documentID string) (*core.Job, error) {
	var job core.Job
	err := s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at DESC, id DESC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// HasActiveJob reports whether the document has a queued or processing job.
func (s *GormStore) HasActiveJob(ctx context.Context, documentID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("document_id = ?", documentID).
		Where("status IN ?", []core.JobStatus{core.StatusQueued, core.StatusProcessing}).
		Count(&count).Error
	return count > 0, err
}

// CountByStatus returns the number of jobs per status.
func (s *GormStore) CountByStatus(ctx context.Context) (map[core.JobStatus]int64, error) {
	type row struct {
		Status core.JobStatus
		N      int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Select("status, count(*) as n").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[core.JobStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}
