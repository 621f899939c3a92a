// Package core provides the domain models and interfaces for the analysis pipeline.
package core

import (
	"time"
)

// JobStatus represents the current state of an analysis job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Priority orders queued jobs; higher runs first.
type Priority int

const (
	PriorityNormal Priority = 0
	PriorityHigh   Priority = 10
)

// ParsePriority converts the wire-level priority name to a Priority.
// An empty string means normal.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "", "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	default:
		return PriorityNormal, ErrInvalidPriority
	}
}

func (p Priority) String() string {
	if p >= PriorityHigh {
		return "high"
	}
	return "normal"
}

// Job is one durable attempt to run a document through the analysis pipeline.
// Terminal jobs are never deleted; they remain as an audit trail. A later
// sibling job for the same document supersedes older ones for reconciliation.
type Job struct {
	ID         string `gorm:"primaryKey;size:36"`
	DocumentID string `gorm:"index;size:64;not null"`

	// Owning business entity. Carried for status fan-out only; the
	// pipeline never interprets these.
	OwnerType string `gorm:"size:64"`
	OwnerID   string `gorm:"size:64"`

	Status       JobStatus `gorm:"index;size:20;default:'queued'"`
	CurrentStep  Step      `gorm:"size:32;default:'preparing'"`
	StepProgress int       `gorm:"default:0"`

	Attempts    int      `gorm:"default:0"`
	MaxAttempts int      `gorm:"default:3"`
	Priority    Priority `gorm:"index;default:0"`

	// RunAt delays eligibility for claiming, used for retry backoff.
	RunAt *time.Time `gorm:"index"`

	ErrorMessage string `gorm:"type:text"`

	// Result holds the serialized analysis payload; set only on completion.
	Result     []byte     `gorm:"type:bytes"`
	Provenance Provenance `gorm:"size:16"`

	// StepState checkpoints the in-flight pipeline artifacts so a retried
	// job resumes at the failed step instead of restarting.
	StepState []byte `gorm:"type:bytes"`

	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// TableName pins the table name so the pipeline schema stays distinct from
// the portal's own tables.
func (Job) TableName() string { return "analysis_jobs" }
