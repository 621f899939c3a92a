package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(Transient(errors.New("rate limited"))))
	assert.False(t, IsTransient(Permanent(errors.New("corrupt file"))))

	// Unclassified errors default to transient.
	assert.True(t, IsTransient(errors.New("who knows")))

	// Classification survives wrapping.
	wrapped := fmt.Errorf("step failed: %w", Permanent(errors.New("bad pdf")))
	assert.False(t, IsTransient(wrapped))
	assert.True(t, IsPermanent(wrapped))
}

func TestClassifyStatus(t *testing.T) {
	base := errors.New("http error")

	assert.True(t, IsTransient(ClassifyStatus(429, base)), "rate limit is transient")
	assert.True(t, IsTransient(ClassifyStatus(408, base)), "timeout is transient")
	assert.True(t, IsTransient(ClassifyStatus(500, base)), "server error is transient")
	assert.True(t, IsTransient(ClassifyStatus(503, base)))

	assert.True(t, IsPermanent(ClassifyStatus(400, base)), "bad request is permanent")
	assert.True(t, IsPermanent(ClassifyStatus(404, base)))
	assert.True(t, IsPermanent(ClassifyStatus(422, base)))
}

func TestClassifyCallError_DeadlineIsTransient(t *testing.T) {
	err := classifyCallError(context.DeadlineExceeded)
	assert.True(t, IsTransient(err))

	var transient *TransientError
	assert.True(t, errors.As(err, &transient))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	assert.ErrorIs(t, Transient(cause), cause)
	assert.ErrorIs(t, Permanent(cause), cause)
}
