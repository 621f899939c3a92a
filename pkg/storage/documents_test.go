package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/core"
)

// newTestDocStore shares one database between the job and document stores,
// mirroring production wiring.
func newTestDocStore(t *testing.T) (*GormStore, *GormDocumentStore) {
	t.Helper()
	s := newTestStore(t)
	return s, NewGormDocumentStore(s.DB())
}

func seedDocument(t *testing.T, s *GormStore, id string) {
	t.Helper()
	doc := &core.Document{
		ID:          id,
		FileName:    id + ".pdf",
		StoragePath: "/tmp/" + id + ".pdf",
	}
	require.NoError(t, s.DB().Create(doc).Error)
}

func TestDocumentGet_NotFound(t *testing.T) {
	_, docs := newTestDocStore(t)

	doc, err := docs.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestSetAnalysisStatus(t *testing.T) {
	s, docs := newTestDocStore(t)
	ctx := context.Background()
	seedDocument(t, s, "doc-1")

	require.NoError(t, docs.SetAnalysisStatus(ctx, "doc-1", core.AnalysisProcessing))

	doc, err := docs.Get(ctx, "doc-1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, core.AnalysisProcessing, doc.AnalysisStatus)
}

func TestSetAnalysisStatus_MissingDocument(t *testing.T) {
	_, docs := newTestDocStore(t)

	err := docs.SetAnalysisStatus(context.Background(), "missing", core.AnalysisPending)
	assert.ErrorIs(t, err, core.ErrDocumentNotFound)
}

func TestApplyResult(t *testing.T) {
	s, docs := newTestDocStore(t)
	ctx := context.Background()
	seedDocument(t, s, "doc-1")

	payload := []byte(`{"summary":"fine"}`)
	analyzedAt := time.Now()
	require.NoError(t, docs.ApplyResult(ctx, "doc-1", payload, analyzedAt))

	doc, err := docs.Get(ctx, "doc-1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, core.AnalysisCompleted, doc.AnalysisStatus)
	assert.Equal(t, payload, doc.AnalysisResult)
	require.NotNil(t, doc.AnalyzedAt)
}

func TestMarkFailed(t *testing.T) {
	s, docs := newTestDocStore(t)
	ctx := context.Background()
	seedDocument(t, s, "doc-1")

	require.NoError(t, docs.MarkFailed(ctx, "doc-1"))

	doc, err := docs.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, core.AnalysisFailed, doc.AnalysisStatus)
	assert.Nil(t, doc.AnalysisResult, "failure never writes a result")
}

func TestListUnconverged(t *testing.T) {
	s, docs := newTestDocStore(t)
	ctx := context.Background()

	seedDocument(t, s, "doc-pending")
	seedDocument(t, s, "doc-processing")
	seedDocument(t, s, "doc-done")

	require.NoError(t, docs.SetAnalysisStatus(ctx, "doc-processing", core.AnalysisProcessing))
	require.NoError(t, docs.ApplyResult(ctx, "doc-done", nil, time.Now()))

	ids, err := docs.ListUnconverged(ctx, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"doc-pending", "doc-processing"}, ids)
}

func TestListUnconverged_RespectsLimit(t *testing.T) {
	s, docs := newTestDocStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		seedDocument(t, s, "doc-"+id)
	}

	ids, err := docs.ListUnconverged(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}
