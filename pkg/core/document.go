package core

import "time"

// AnalysisStatus is the analysis state mirrored onto the owning document.
type AnalysisStatus string

const (
	AnalysisPending    AnalysisStatus = "pending"
	AnalysisProcessing AnalysisStatus = "processing"
	AnalysisCompleted  AnalysisStatus = "completed"
	AnalysisFailed     AnalysisStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s AnalysisStatus) Terminal() bool {
	return s == AnalysisCompleted || s == AnalysisFailed
}

// Document is the pipeline's view of an uploaded document. The record itself
// is owned by the portal; the pipeline reads FileName and StoragePath and is
// the sole writer of AnalysisStatus, AnalysisResult and AnalyzedAt.
type Document struct {
	ID          string `gorm:"primaryKey;size:64"`
	FileName    string `gorm:"size:512"`
	StoragePath string `gorm:"size:1024"`

	AnalysisStatus AnalysisStatus `gorm:"index;size:20;default:'pending'"`
	AnalysisResult []byte         `gorm:"type:bytes"`
	AnalyzedAt     *time.Time

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// AnalysisStatusFor maps a job status to the document-level status.
func AnalysisStatusFor(s JobStatus) AnalysisStatus {
	switch s {
	case StatusCompleted:
		return AnalysisCompleted
	case StatusFailed:
		return AnalysisFailed
	case StatusProcessing:
		return AnalysisProcessing
	default:
		return AnalysisPending
	}
}
