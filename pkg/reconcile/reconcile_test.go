package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/core"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/storage"
)

type reconcileEnv struct {
	store *storage.GormStore
	docs  *storage.GormDocumentStore
	db    *gorm.DB
	rec   *Reconciler
}

func newReconcileEnv(t *testing.T, opts ...Option) *reconcileEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	store := storage.NewGormStore(db)
	require.NoError(t, store.Migrate(context.Background()))
	docs := storage.NewGormDocumentStore(db)
	return &reconcileEnv{
		store: store,
		docs:  docs,
		db:    db,
		rec:   New(store, docs, opts...),
	}
}

func (env *reconcileEnv) seedDocument(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, env.db.Create(&core.Document{
		ID:          id,
		FileName:    id + ".pdf",
		StoragePath: "/uploads/" + id + ".pdf",
	}).Error)
}

// completeJob drives a fresh job for documentID to completion and returns it.
func (env *reconcileEnv) completeJob(t *testing.T, documentID string) *core.Job {
	t.Helper()
	ctx := context.Background()
	job := &core.Job{DocumentID: documentID, MaxAttempts: 3}
	require.NoError(t, env.store.Enqueue(ctx, job))
	claimed, err := env.store.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	payload, err := core.Result{
		Summary:    "summary of " + documentID,
		Provenance: core.ProvenancePrimary,
	}.Encode()
	require.NoError(t, err)
	require.NoError(t, env.store.Complete(ctx, claimed.ID, payload, core.ProvenancePrimary))

	done, err := env.store.GetJob(ctx, claimed.ID)
	require.NoError(t, err)
	return done
}

// failJob drives a fresh job for documentID to the failed state.
func (env *reconcileEnv) failJob(t *testing.T, documentID string) *core.Job {
	t.Helper()
	ctx := context.Background()
	job := &core.Job{DocumentID: documentID, MaxAttempts: 3}
	require.NoError(t, env.store.Enqueue(ctx, job))
	claimed, err := env.store.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.NoError(t, env.store.Fail(ctx, claimed.ID, 3, "provider unreachable"))

	done, err := env.store.GetJob(ctx, claimed.ID)
	require.NoError(t, err)
	return done
}

func (env *reconcileEnv) document(t *testing.T, id string) *core.Document {
	t.Helper()
	doc, err := env.docs.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, doc)
	return doc
}

// ──────────────────────────────────────────────────────────────────────────────
// Apply
// ──────────────────────────────────────────────────────────────────────────────

func TestApply_CompletedJobConvergesDocument(t *testing.T) {
	env := newReconcileEnv(t)
	env.seedDocument(t, "doc-1")
	job := env.completeJob(t, "doc-1")

	require.NoError(t, env.rec.Apply(context.Background(), job))

	doc := env.document(t, "doc-1")
	assert.Equal(t, core.AnalysisCompleted, doc.AnalysisStatus)
	assert.NotEmpty(t, doc.AnalysisResult)
	require.NotNil(t, doc.AnalyzedAt)
}

func TestApply_FailedJobMarksDocumentFailed(t *testing.T) {
	env := newReconcileEnv(t)
	env.seedDocument(t, "doc-1")
	job := env.failJob(t, "doc-1")

	require.NoError(t, env.rec.Apply(context.Background(), job))

	doc := env.document(t, "doc-1")
	assert.Equal(t, core.AnalysisFailed, doc.AnalysisStatus)
	assert.Empty(t, doc.AnalysisResult)
}

func TestApply_SupersededJobIsSkipped(t *testing.T) {
	env := newReconcileEnv(t)
	ctx := context.Background()
	env.seedDocument(t, "doc-1")
	old := env.failJob(t, "doc-1")

	// A newer job for the same document supersedes the old outcome.
	require.NoError(t, env.store.Enqueue(ctx, &core.Job{DocumentID: "doc-1", MaxAttempts: 3}))

	require.NoError(t, env.rec.Apply(ctx, old))

	doc := env.document(t, "doc-1")
	assert.Equal(t, core.AnalysisPending, doc.AnalysisStatus)
}

// ──────────────────────────────────────────────────────────────────────────────
// Reconcile
// ──────────────────────────────────────────────────────────────────────────────

func TestReconcile_RepairsStaleDocument(t *testing.T) {
	env := newReconcileEnv(t)
	env.seedDocument(t, "doc-1")

	// The job completed but the inline document update never happened.
	env.completeJob(t, "doc-1")
	doc := env.document(t, "doc-1")
	require.Equal(t, core.AnalysisPending, doc.AnalysisStatus)

	require.NoError(t, env.rec.Reconcile(context.Background(), "doc-1"))

	doc = env.document(t, "doc-1")
	assert.Equal(t, core.AnalysisCompleted, doc.AnalysisStatus)
	assert.NotEmpty(t, doc.AnalysisResult)
}

func TestReconcile_IsIdempotent(t *testing.T) {
	env := newReconcileEnv(t)
	env.seedDocument(t, "doc-1")
	env.completeJob(t, "doc-1")
	ctx := context.Background()

	require.NoError(t, env.rec.Reconcile(ctx, "doc-1"))
	first := env.document(t, "doc-1")

	require.NoError(t, env.rec.Reconcile(ctx, "doc-1"))
	second := env.document(t, "doc-1")

	assert.Equal(t, first.AnalysisStatus, second.AnalysisStatus)
	assert.Equal(t, first.AnalyzedAt, second.AnalyzedAt)
}

func TestReconcile_DocumentNotFound(t *testing.T) {
	env := newReconcileEnv(t)
	err := env.rec.Reconcile(context.Background(), "doc-missing")
	assert.ErrorIs(t, err, core.ErrDocumentNotFound)
}

func TestReconcile_NeverEnqueuedIsNoop(t *testing.T) {
	env := newReconcileEnv(t)
	env.seedDocument(t, "doc-1")

	require.NoError(t, env.rec.Reconcile(context.Background(), "doc-1"))

	doc := env.document(t, "doc-1")
	assert.Equal(t, core.AnalysisPending, doc.AnalysisStatus)
}

func TestReconcile_MirrorsProcessingStatus(t *testing.T) {
	env := newReconcileEnv(t)
	ctx := context.Background()
	env.seedDocument(t, "doc-1")
	require.NoError(t, env.store.Enqueue(ctx, &core.Job{DocumentID: "doc-1", MaxAttempts: 3}))
	claimed, err := env.store.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	require.NoError(t, env.rec.Reconcile(ctx, "doc-1"))

	doc := env.document(t, "doc-1")
	assert.Equal(t, core.AnalysisProcessing, doc.AnalysisStatus)
}

// ──────────────────────────────────────────────────────────────────────────────
// Sweep
// ──────────────────────────────────────────────────────────────────────────────

func TestSweep_ConvergesUnconvergedDocuments(t *testing.T) {
	var events []core.Event
	env := newReconcileEnv(t, WithEmitter(func(ev core.Event) { events = append(events, ev) }))
	ctx := context.Background()

	env.seedDocument(t, "doc-stale")
	env.completeJob(t, "doc-stale")

	env.seedDocument(t, "doc-converged")
	job := env.completeJob(t, "doc-converged")
	require.NoError(t, env.rec.Apply(ctx, job))
	events = events[:0]

	visited, err := env.rec.Sweep(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, visited, "only the stale document needs a visit")

	doc := env.document(t, "doc-stale")
	assert.Equal(t, core.AnalysisCompleted, doc.AnalysisStatus)

	require.Len(t, events, 1)
	reconciled, ok := events[0].(*core.DocumentReconciled)
	require.True(t, ok)
	assert.Equal(t, "doc-stale", reconciled.DocumentID)
}

func TestSweep_RespectsLimit(t *testing.T) {
	env := newReconcileEnv(t)
	for _, id := range []string{"doc-a", "doc-b", "doc-c"} {
		env.seedDocument(t, id)
		env.completeJob(t, id)
	}

	visited, err := env.rec.Sweep(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, visited)
}
