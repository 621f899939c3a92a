package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/core"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/executor"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/provider"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/provider/providertest"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/storage"
)

// recordingReconciler captures terminal jobs handed to Apply.
type recordingReconciler struct {
	mu   sync.Mutex
	jobs []string
}

func (r *recordingReconciler) Apply(_ context.Context, job *core.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job.ID)
	return nil
}

func (r *recordingReconciler) applied() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.jobs))
	copy(out, r.jobs)
	return out
}

type workerEnv struct {
	store *storage.GormStore
	docs  *storage.GormDocumentStore
	db    *gorm.DB
	rec   *recordingReconciler
}

// newWorkerEnv builds stores on one in-memory database pinned to a single
// connection so the worker goroutine and the test share the same data.
func newWorkerEnv(t *testing.T) *workerEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store := storage.NewGormStore(db)
	require.NoError(t, store.Migrate(context.Background()))
	return &workerEnv{
		store: store,
		docs:  storage.NewGormDocumentStore(db),
		db:    db,
		rec:   &recordingReconciler{},
	}
}

func (env *workerEnv) seedDocument(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, env.db.Create(&core.Document{
		ID:          id,
		FileName:    id + ".pdf",
		StoragePath: "/uploads/" + id + ".pdf",
	}).Error)
}

func (env *workerEnv) newWorker(t *testing.T, prov provider.Provider) *Worker {
	t.Helper()
	exec := executor.New(env.store, env.docs, provider.NewFailover(prov, nil))
	return New(env.store, exec,
		WithPollInterval(50*time.Millisecond),
		WithReconciler(env.rec),
	)
}

// startWorker runs w.Start in a goroutine and cancels it on test cleanup.
func startWorker(t *testing.T, w *Worker) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (env *workerEnv) waitForStatus(t *testing.T, jobID string, want core.JobStatus) *core.Job {
	t.Helper()
	var job *core.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = env.store.GetJob(context.Background(), jobID)
		return err == nil && job != nil && job.Status == want
	}, 5*time.Second, 20*time.Millisecond, "job %s never reached %s", jobID, want)
	return job
}

// ──────────────────────────────────────────────────────────────────────────────
// Processing
// ──────────────────────────────────────────────────────────────────────────────

func TestWorker_ProcessesEnqueuedJob(t *testing.T) {
	env := newWorkerEnv(t)
	env.seedDocument(t, "doc-1")
	w := env.newWorker(t, providertest.New("primary"))
	startWorker(t, w)

	job := &core.Job{DocumentID: "doc-1", MaxAttempts: 3}
	require.NoError(t, env.store.Enqueue(context.Background(), job))
	w.Notify()

	done := env.waitForStatus(t, job.ID, core.StatusCompleted)
	assert.Equal(t, core.ProvenancePrimary, done.Provenance)
	assert.NotNil(t, done.Result)
	require.Eventually(t, func() bool {
		applied := env.rec.applied()
		return len(applied) == 1 && applied[0] == job.ID
	}, 2*time.Second, 10*time.Millisecond, "terminal job never reconciled")
}

func TestWorker_DrainsQueueOnSingleWake(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()
	var ids []string
	for _, doc := range []string{"doc-a", "doc-b", "doc-c"} {
		env.seedDocument(t, doc)
		job := &core.Job{DocumentID: doc, MaxAttempts: 3}
		require.NoError(t, env.store.Enqueue(ctx, job))
		ids = append(ids, job.ID)
	}

	w := env.newWorker(t, providertest.New("primary"))
	startWorker(t, w)
	w.Notify()

	for _, id := range ids {
		env.waitForStatus(t, id, core.StatusCompleted)
	}
	require.Eventually(t, func() bool {
		return len(env.rec.applied()) == 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorker_PicksUpJobByPolling(t *testing.T) {
	env := newWorkerEnv(t)
	env.seedDocument(t, "doc-1")
	w := env.newWorker(t, providertest.New("primary"))
	startWorker(t, w)

	// No Notify: the poll ticker alone must find the job.
	job := &core.Job{DocumentID: "doc-1", MaxAttempts: 3}
	require.NoError(t, env.store.Enqueue(context.Background(), job))

	env.waitForStatus(t, job.ID, core.StatusCompleted)
}

func TestNotify_NeverBlocks(t *testing.T) {
	env := newWorkerEnv(t)
	w := env.newWorker(t, providertest.New("primary"))

	// No worker running; repeated signals coalesce instead of blocking.
	for i := 0; i < 10; i++ {
		w.Notify()
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Crash recovery
// ──────────────────────────────────────────────────────────────────────────────

func TestWorker_RecoversJobAbandonedByCrash(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()
	env.seedDocument(t, "doc-1")

	// Claim the job without a worker, as a previous run that died mid-job
	// would have left it.
	job := &core.Job{DocumentID: "doc-1", MaxAttempts: 3}
	require.NoError(t, env.store.Enqueue(ctx, job))
	claimed, err := env.store.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.Equal(t, job.ID, claimed.ID)
	checkpoint := []byte(`{"handle":{"document_id":"doc-1","file_id":"f-1","index_id":"idx-1"}}`)
	require.NoError(t, env.store.UpdateStep(ctx, job.ID, core.StepSummarizing, 50, checkpoint))

	w := env.newWorker(t, providertest.New("primary"))
	startWorker(t, w)

	done := env.waitForStatus(t, job.ID, core.StatusCompleted)
	assert.Zero(t, done.Attempts, "a crash does not consume an attempt")
	assert.NotNil(t, done.Result)
}

// ──────────────────────────────────────────────────────────────────────────────
// Panic containment
// ──────────────────────────────────────────────────────────────────────────────

// panicOnce panics on its first Prepare call and behaves normally afterwards.
type panicOnce struct {
	*providertest.Fake
	mu    sync.Mutex
	fired bool
}

func (p *panicOnce) Prepare(ctx context.Context, doc *core.Document) (provider.PreparedArtifact, error) {
	p.mu.Lock()
	first := !p.fired
	p.fired = true
	p.mu.Unlock()
	if first {
		panic("corrupt document")
	}
	return p.Fake.Prepare(ctx, doc)
}

func TestWorker_SurvivesProviderPanic(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()
	env.seedDocument(t, "doc-bad")
	env.seedDocument(t, "doc-good")

	bad := &core.Job{DocumentID: "doc-bad", MaxAttempts: 3}
	require.NoError(t, env.store.Enqueue(ctx, bad))
	good := &core.Job{DocumentID: "doc-good", MaxAttempts: 3}
	require.NoError(t, env.store.Enqueue(ctx, good))

	w := env.newWorker(t, &panicOnce{Fake: providertest.New("primary")})
	startWorker(t, w)
	w.Notify()

	failed := env.waitForStatus(t, bad.ID, core.StatusFailed)
	assert.Contains(t, failed.ErrorMessage, "panic")

	env.waitForStatus(t, good.ID, core.StatusCompleted)
}
