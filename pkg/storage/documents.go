package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/core"
)

// GormDocumentStore implements core.DocumentStore using GORM. It writes only
// the pipeline-owned analysis fields; everything else on the document record
// belongs to the portal.
type GormDocumentStore struct {
	db *gorm.DB
}

// NewGormDocumentStore creates a new GORM-backed document store.
func NewGormDocumentStore(db *gorm.DB) *GormDocumentStore {
	return &GormDocumentStore{db: db}
}

// Get retrieves a document by ID.
func (s *GormDocumentStore) Get(ctx context.Context, id string) (*core.Document, error) {
	var doc core.Document
	err := s.db.WithContext(ctx).First(&doc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// SetAnalysisStatus updates only the analysis status field.
func (s *GormDocumentStore) SetAnalysisStatus(ctx context.Context, id string, status core.AnalysisStatus) error {
	result := s.db.WithContext(ctx).
		Model(&core.Document{}).
		Where("id = ?", id).
		Update("analysis_status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrDocumentNotFound
	}
	return nil
}

// ApplyResult writes the terminal success state onto the document.
func (s *GormDocumentStore) ApplyResult(ctx context.Context, id string, resultPayload []byte, analyzedAt time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&core.Document{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"analysis_status": core.AnalysisCompleted,
			"analysis_result": resultPayload,
			"analyzed_at":     analyzedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrDocumentNotFound
	}
	return nil
}

// MarkFailed writes the terminal failure state onto the document.
func (s *GormDocumentStore) MarkFailed(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).
		Model(&core.Document{}).
		Where("id = ?", id).
		Update("analysis_status", core.AnalysisFailed)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrDocumentNotFound
	}
	return nil
}

// ListUnconverged returns IDs of documents still pending or processing,
// oldest first. The reconciliation sweep uses this to find documents whose
// latest job finished but whose record was read before the writer landed.
func (s *GormDocumentStore) ListUnconverged(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&core.Document{}).
		Where("analysis_status IN ?", []core.AnalysisStatus{core.AnalysisPending, core.AnalysisProcessing}).
		Order("updated_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}
