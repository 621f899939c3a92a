package core

import "errors"

// Validation and lifecycle errors. Validation errors are rejected
// synchronously at the operation surface and never become jobs.
var (
	ErrDocumentIDRequired = errors.New("analysis: document id required")
	ErrDocumentIDTooLong  = errors.New("analysis: document id too long")
	ErrInvalidDocumentID  = errors.New("analysis: invalid document id")
	ErrInvalidOwnerType   = errors.New("analysis: invalid owner type")
	ErrInvalidPriority    = errors.New("analysis: invalid priority")
	ErrDocumentNotFound   = errors.New("analysis: document not found")
	ErrNoJobForDocument   = errors.New("analysis: no analysis job for document")
	ErrAnalysisInProgress = errors.New("analysis: document already has an active job")
	ErrRetryNotAllowed    = errors.New("analysis: latest job has not failed")
	ErrJobNotProcessing   = errors.New("analysis: job is not in processing state")
)

// IsValidation reports whether err belongs to the validation class that an
// API surface should translate to a bad-request response.
func IsValidation(err error) bool {
	for _, v := range []error{
		ErrDocumentIDRequired,
		ErrDocumentIDTooLong,
		ErrInvalidDocumentID,
		ErrInvalidOwnerType,
		ErrInvalidPriority,
	} {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
