// Package validate provides input validation, sanitization, and limits for
// the analysis pipeline's operation surface.
package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/core"
)

const (
	// MaxDocumentIDLength is the maximum length for document identifiers.
	MaxDocumentIDLength = 64

	// MaxOwnerTypeLength is the maximum length for owner type names.
	MaxOwnerTypeLength = 64

	// MaxErrorMessageLength is the maximum length for stored error messages.
	MaxErrorMessageLength = 4096

	// MaxAttemptsLimit is the hard limit for per-job retry attempts.
	MaxAttemptsLimit = 10
)

// validDocumentID matches alphanumeric identifiers with hyphens, underscores
// and dots, the shapes produced by the portal's upload service.
var validDocumentID = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_\-\.]*$`)

// validOwnerType matches lower_snake entity names such as investment_request.
var validOwnerType = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// DocumentID validates a document identifier.
func DocumentID(id string) error {
	if id == "" {
		return core.ErrDocumentIDRequired
	}
	if len(id) > MaxDocumentIDLength {
		return core.ErrDocumentIDTooLong
	}
	if !validDocumentID.MatchString(id) {
		return core.ErrInvalidDocumentID
	}
	return nil
}

// OwnerType validates an owner entity name. Empty is allowed: a document may
// be analyzed before it is attached to a business entity.
func OwnerType(name string) error {
	if name == "" {
		return nil
	}
	if len(name) > MaxOwnerTypeLength || !validOwnerType.MatchString(name) {
		return core.ErrInvalidOwnerType
	}
	return nil
}

// SanitizeErrorMessage truncates and sanitizes provider error messages before
// they are persisted on a job record.
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}

// ClampAttempts ensures a max-attempts value is within limits. Zero or
// negative falls back to def.
func ClampAttempts(n, def int) int {
	if n <= 0 {
		return def
	}
	if n > MaxAttemptsLimit {
		return MaxAttemptsLimit
	}
	return n
}
