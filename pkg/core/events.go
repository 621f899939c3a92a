package core

import "time"

// Event is the interface for all pipeline events.
type Event interface {
	eventMarker()
}

// JobEnqueued is emitted when a job is accepted into the queue.
type JobEnqueued struct {
	Job       *Job
	Timestamp time.Time
}

func (*JobEnqueued) eventMarker() {}

// JobStarted is emitted when the worker claims a job.
type JobStarted struct {
	Job       *Job
	Timestamp time.Time
}

func (*JobStarted) eventMarker() {}

// StepCompleted is emitted after each analysis step succeeds.
type StepCompleted struct {
	Job       *Job
	Step      Step
	Served    Provenance
	Timestamp time.Time
}

func (*StepCompleted) eventMarker() {}

// JobCompleted is emitted when a job finishes successfully.
type JobCompleted struct {
	Job       *Job
	Duration  time.Duration
	Timestamp time.Time
}

func (*JobCompleted) eventMarker() {}

// JobFailed is emitted when a job fails permanently.
type JobFailed struct {
	Job       *Job
	Error     error
	Timestamp time.Time
}

func (*JobFailed) eventMarker() {}

// JobRetrying is emitted when a job is returned to the queue for another
// attempt at the same step.
type JobRetrying struct {
	Job       *Job
	Attempt   int
	Error     error
	NextRunAt time.Time
	Timestamp time.Time
}

func (*JobRetrying) eventMarker() {}

// DocumentReconciled is emitted when a document's analysis fields are synced
// with its latest job.
type DocumentReconciled struct {
	DocumentID string
	Status     AnalysisStatus
	Timestamp  time.Time
}

func (*DocumentReconciled) eventMarker() {}
