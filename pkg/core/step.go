package core

// Step is one ordered phase of document analysis. Steps are monotonic within
// a job: a retry resumes at the failed step, never at an earlier one.
type Step string

const (
	StepPreparing          Step = "preparing"
	StepIndexing           Step = "indexing"
	StepSummarizing        Step = "summarizing"
	StepExtractingInsights Step = "extracting_insights"
)

// ProgressCompleted is the progress value of a completed job.
const ProgressCompleted = 100

var stepOrder = []Step{
	StepPreparing,
	StepIndexing,
	StepSummarizing,
	StepExtractingInsights,
}

// stepProgress maps each step to the progress checkpoint reached once that
// step has finished.
var stepProgress = map[Step]int{
	StepPreparing:          25,
	StepIndexing:           50,
	StepSummarizing:        75,
	StepExtractingInsights: 90,
}

// Steps returns the pipeline steps in execution order.
func Steps() []Step {
	out := make([]Step, len(stepOrder))
	copy(out, stepOrder)
	return out
}

// Valid reports whether s is a known step.
func (s Step) Valid() bool {
	_, ok := stepProgress[s]
	return ok
}

// Index returns the position of s in the pipeline, or -1 for unknown steps.
func (s Step) Index() int {
	for i, step := range stepOrder {
		if step == s {
			return i
		}
	}
	return -1
}

// Next returns the step after s. ok is false when s is the last step or
// unknown.
func (s Step) Next() (next Step, ok bool) {
	i := s.Index()
	if i < 0 || i+1 >= len(stepOrder) {
		return "", false
	}
	return stepOrder[i+1], true
}

// Progress returns the checkpoint value recorded once s has completed.
func (s Step) Progress() int {
	return stepProgress[s]
}
