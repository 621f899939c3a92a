package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSteps_Order(t *testing.T) {
	assert.Equal(t, []Step{
		StepPreparing,
		StepIndexing,
		StepSummarizing,
		StepExtractingInsights,
	}, Steps())
}

func TestStep_Next(t *testing.T) {
	next, ok := StepPreparing.Next()
	assert.True(t, ok)
	assert.Equal(t, StepIndexing, next)

	next, ok = StepSummarizing.Next()
	assert.True(t, ok)
	assert.Equal(t, StepExtractingInsights, next)

	_, ok = StepExtractingInsights.Next()
	assert.False(t, ok, "the last step has no successor")

	_, ok = Step("bogus").Next()
	assert.False(t, ok)
}

func TestStep_ProgressCheckpoints(t *testing.T) {
	assert.Equal(t, 25, StepPreparing.Progress())
	assert.Equal(t, 50, StepIndexing.Progress())
	assert.Equal(t, 75, StepSummarizing.Progress())
	assert.Equal(t, 90, StepExtractingInsights.Progress())
}

func TestStep_ProgressIsMonotonic(t *testing.T) {
	prev := 0
	for _, s := range Steps() {
		assert.Greater(t, s.Progress(), prev, "step %s", s)
		prev = s.Progress()
	}
	assert.Less(t, prev, ProgressCompleted)
}

func TestStep_Valid(t *testing.T) {
	for _, s := range Steps() {
		assert.True(t, s.Valid())
	}
	assert.False(t, Step("shipping").Valid())
	assert.False(t, Step("").Valid())
}
