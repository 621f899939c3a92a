// Package core contains the shared domain types of the document-analysis
// pipeline: the job and document models, the step state machine, the result
// payload, pipeline events, and the storage interfaces.
//
// It has no dependencies on the other pipeline packages so that storage,
// executor, worker and reconciler can all depend on it without cycles.
package core
