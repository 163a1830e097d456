package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textlens/textlens/internal/annotate"
	"github.com/textlens/textlens/internal/classify"
	"github.com/textlens/textlens/internal/embedding"
	"github.com/textlens/textlens/internal/log"
	"github.com/textlens/textlens/internal/retrieval"
	"github.com/textlens/textlens/internal/store"
	"github.com/textlens/textlens/internal/testutil"
)

const embedDim = 768

const severityReply = `{
	"predicted_class": "high",
	"class_to_words": {"high": ["storm"], "medium": [], "low": []},
	"class_to_probabilities": {"high": 0.8, "medium": 0.1, "low": 0.1}
}`

type pipeline struct {
	store *store.Store
	model *testutil.MockModel
	queue *annotate.Queue
}

// newPipeline assembles the full pipeline against a disposable database,
// with the model and embedder replaced by deterministic mocks.
func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	g := genkit.Init(context.Background())
	model := testutil.NewMockModel(severityReply)
	model.Register(g)
	embedder := testutil.NewMockEmbedder(embedDim).Register(g)

	logger := log.NewNop()
	st := store.New(db.Pool, logger)
	enc := embedding.New(embedder, embedDim, logger)
	ret := retrieval.New(st, logger)
	gen := classify.NewGenerator(g, testutil.MockModelName, nil, logger)

	return &pipeline{
		store: st,
		model: model,
		queue: annotate.NewQueue(st, enc, ret, gen, logger),
	}
}

func seedFeedScope(t *testing.T, ctx context.Context, st *store.Store, titles ...string) uuid.UUID {
	t.Helper()
	feedID, err := st.CreateFeed(ctx, "storm watch", "https://example.com/feed.xml")
	require.NoError(t, err)
	for _, title := range titles {
		_, err := st.CreateContentItem(ctx, store.ContentItem{
			Kind:        store.KindArticle,
			Title:       title,
			Description: title + " description",
			FeedID:      feedID,
		})
		require.NoError(t, err)
	}
	reqID, err := st.CreateAnalysisRequest(ctx, "weather severity", "severity",
		nil, store.FeedSource{FeedID: feedID})
	require.NoError(t, err)
	return reqID
}

func TestPipelineAnnotatesAndIsIdempotent(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	reqID := seedFeedScope(t, ctx, p.store, "storm approaching the coast", "sunny weekend ahead")

	sum, err := p.queue.Run(ctx, reqID)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Processed)
	assert.Zero(t, sum.Failed)

	records, err := p.store.RecordsByRequest(ctx, reqID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, store.StateCompleted, rec.State())
		var parsed map[string]any
		require.NoError(t, json.Unmarshal(rec.Response, &parsed))
		assert.Equal(t, "high", parsed["predicted_class"])
	}

	// A second run finds nothing left to do and calls no model.
	before := len(p.model.Calls())
	sum, err = p.queue.Run(ctx, reqID)
	require.NoError(t, err)
	assert.Zero(t, sum.Processed)
	assert.Zero(t, sum.Failed)
	assert.Len(t, p.model.Calls(), before)
}

func TestPipelineRecordsFailureAndDoesNotRetry(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	reqID := seedFeedScope(t, ctx, p.store, "storm approaching")
	p.model.SetError(errors.New("backend offline"))

	sum, err := p.queue.Run(ctx, reqID)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)

	records, err := p.store.RecordsByRequest(ctx, reqID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, store.StateFailed, records[0].State())

	// Failed items stay failed across runs until an operator reset.
	p.model.SetError(nil)
	sum, err = p.queue.Run(ctx, reqID)
	require.NoError(t, err)
	assert.Zero(t, sum.Processed)

	n, err := p.store.ResetFailed(ctx, reqID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	sum, err = p.queue.Run(ctx, reqID)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
}

func TestPipelineInactiveRequestClaimsNothing(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	reqID := seedFeedScope(t, ctx, p.store, "storm approaching")
	require.NoError(t, p.store.SetRequestActive(ctx, reqID, false))

	_, err := p.queue.Run(ctx, reqID)
	assert.ErrorIs(t, err, annotate.ErrRequestInactive)

	records, err := p.store.RecordsByRequest(ctx, reqID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPipelineBackfillsEmbeddings(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	reqID := seedFeedScope(t, ctx, p.store, "storm approaching")
	sum, err := p.queue.Run(ctx, reqID)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Processed)

	// The run stored a query-compatible vector for the item.
	vec := make([]float32, embedDim)
	vec[0] = 1
	neighbors, err := p.store.Neighbors(ctx, vec, 5, false)
	require.NoError(t, err)
	assert.Len(t, neighbors, 1)
}
