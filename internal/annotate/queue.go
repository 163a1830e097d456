// Package annotate drives the classification pipeline for one analysis
// request: select unannotated items, claim each one, retrieve similar
// context, generate and validate a classification, and persist the outcome.
package annotate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/textlens/textlens/internal/classify"
	"github.com/textlens/textlens/internal/log"
	"github.com/textlens/textlens/internal/prompt"
	"github.com/textlens/textlens/internal/retrieval"
	"github.com/textlens/textlens/internal/store"
)

// ErrRequestInactive is returned when the request's active flag is off.
var ErrRequestInactive = errors.New("analysis request is inactive")

// ErrNoSource is returned when the request is scoped to neither a feed nor
// a document.
var ErrNoSource = errors.New("analysis request has no source")

// Storage is the store surface the queue depends on. *store.Store
// satisfies it.
type Storage interface {
	RequestByID(ctx context.Context, id uuid.UUID) (*store.AnalysisRequest, error)
	UnannotatedItems(ctx context.Context, src store.Source, requestID uuid.UUID) ([]store.ContentItem, error)
	Claim(ctx context.Context, itemID, requestID uuid.UUID) (uuid.UUID, error)
	Complete(ctx context.Context, recordID uuid.UUID, response json.RawMessage) error
	Fail(ctx context.Context, recordID uuid.UUID, message string) error
	BackfillEmbedding(ctx context.Context, itemID uuid.UUID, vec []float32) error
}

// Encoder turns item text into query vectors.
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
}

// ContextRetriever looks up similarity context for a query vector.
type ContextRetriever interface {
	Retrieve(ctx context.Context, queryVec []float32, opts ...retrieval.Option) ([]store.Neighbor, error)
}

// Generator produces a raw model reply for an assembled message sequence.
type Generator interface {
	Generate(ctx context.Context, messages []*ai.Message) (string, error)
}

// Validator checks a raw reply and returns the payload to persist.
type Validator func(raw string) (json.RawMessage, error)

// Summary reports the outcome of one queue run.
type Summary struct {
	Processed int // records completed with a valid classification
	Failed    int // records finalized with an error payload
	Skipped   int // items another runner claimed first
}

// Option configures a Queue.
type Option func(*Queue)

// WithTopK sets how many context tuples each classification retrieves.
func WithTopK(k int) Option {
	return func(q *Queue) {
		if k > 0 {
			q.topK = k
		}
	}
}

// WithLabeledOnly restricts retrieved responses to human-confirmed records.
func WithLabeledOnly() Option {
	return func(q *Queue) { q.labeledOnly = true }
}

// WithValidator replaces the reply validator. Tests use this to bypass or
// instrument schema checking.
func WithValidator(v Validator) Option {
	return func(q *Queue) { q.validate = v }
}

// Queue runs the annotation pipeline. Items are processed sequentially;
// concurrency across runners is safe because claiming is atomic and a
// claimed pair is never re-attempted.
type Queue struct {
	storage     Storage
	encoder     Encoder
	retriever   ContextRetriever
	generator   Generator
	validate    Validator
	topK        int
	labeledOnly bool
	logger      log.Logger
}

// NewQueue wires the pipeline stages together.
func NewQueue(storage Storage, encoder Encoder, retriever ContextRetriever, generator Generator, logger log.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = log.NewNop()
	}
	q := &Queue{
		storage:   storage,
		encoder:   encoder,
		retriever: retriever,
		generator: generator,
		validate:  classify.Validate,
		topK:      retrieval.DefaultTopK,
		logger:    logger.With("component", "annotate"),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Run annotates every unannotated item in the request's scope and returns a
// summary of outcomes. Model and schema failures are recorded per item and
// never abort the run; storage failures do, since continuing against a
// broken database only multiplies errors. A canceled context stops between
// items, leaving at most one record finalized after cancellation.
func (q *Queue) Run(ctx context.Context, requestID uuid.UUID) (Summary, error) {
	var sum Summary

	req, err := q.storage.RequestByID(ctx, requestID)
	if err != nil {
		return sum, fmt.Errorf("loading request %s: %w", requestID, err)
	}
	if !req.Active {
		return sum, fmt.Errorf("request %s: %w", requestID, ErrRequestInactive)
	}
	src := req.Source()
	if src == nil {
		return sum, fmt.Errorf("request %s: %w", requestID, ErrNoSource)
	}

	items, err := q.storage.UnannotatedItems(ctx, src, requestID)
	if err != nil {
		return sum, fmt.Errorf("selecting items: %w", err)
	}
	if len(items) == 0 {
		q.logger.Info("nothing to annotate", "request_id", requestID)
		return sum, nil
	}

	if err := q.backfillEmbeddings(ctx, items); err != nil {
		return sum, err
	}

	q.logger.Info("annotation run started",
		"request_id", requestID, "category", req.Category, "items", len(items))

	for i := range items {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if err := q.annotateItem(ctx, req, &items[i], &sum); err != nil {
			return sum, err
		}
	}

	q.logger.Info("annotation run finished",
		"request_id", requestID,
		"processed", sum.Processed, "failed", sum.Failed, "skipped", sum.Skipped)
	return sum, nil
}

// backfillEmbeddings encodes all items missing a vector in one embedder
// invocation and persists the results, so retrieval sees every item.
func (q *Queue) backfillEmbeddings(ctx context.Context, items []store.ContentItem) error {
	var missing []int
	for i := range items {
		if items[i].Embedding == nil {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	texts := make([]string, len(missing))
	for j, i := range missing {
		texts[j] = items[i].Text()
	}

	vecs, err := q.encoder.Encode(ctx, texts)
	if err != nil {
		return fmt.Errorf("encoding %d items: %w", len(missing), err)
	}

	for j, i := range missing {
		if err := q.storage.BackfillEmbedding(ctx, items[i].ID, vecs[j]); err != nil {
			return fmt.Errorf("storing embedding for %s: %w", items[i].ID, err)
		}
		items[i].Embedding = vecs[j]
	}

	q.logger.Debug("backfilled embeddings", "count", len(missing))
	return nil
}

func (q *Queue) annotateItem(ctx context.Context, req *store.AnalysisRequest, item *store.ContentItem, sum *Summary) error {
	recordID, err := q.storage.Claim(ctx, item.ID, req.ID)
	if errors.Is(err, store.ErrAlreadyClaimed) {
		sum.Skipped++
		q.logger.Debug("item already claimed", "item_id", item.ID)
		return nil
	}
	if err != nil {
		return err
	}

	payload, genErr := q.classify(ctx, req, item)
	if genErr != nil {
		// A canceled context is a run-level stop, not a verdict on the item.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err := q.storage.Fail(ctx, recordID, genErr.Error()); err != nil {
			return err
		}
		sum.Failed++
		q.logger.Warn("annotation failed",
			"item_id", item.ID, "record_id", recordID, "error", genErr)
		return nil
	}

	if err := q.storage.Complete(ctx, recordID, payload); err != nil {
		return err
	}
	sum.Processed++
	q.logger.Debug("annotation completed", "item_id", item.ID, "record_id", recordID)
	return nil
}

// classify runs the model-facing stages for one claimed item.
func (q *Queue) classify(ctx context.Context, req *store.AnalysisRequest, item *store.ContentItem) (json.RawMessage, error) {
	opts := []retrieval.Option{retrieval.WithTopK(q.topK)}
	if q.labeledOnly {
		opts = append(opts, retrieval.WithLabeledOnly())
	}
	neighbors, err := q.retriever.Retrieve(ctx, item.Embedding, opts...)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	messages := prompt.Assemble(req.Category, item.Text(), neighbors, req.Examples)
	raw, err := q.generator.Generate(ctx, messages)
	if err != nil {
		return nil, err
	}

	return q.validate(raw)
}
