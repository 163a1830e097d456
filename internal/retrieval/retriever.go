// Package retrieval selects the previously stored items most similar to a
// query vector, giving the classification prompt topical context and prior
// verdicts to imitate.
package retrieval

import (
	"context"
	"fmt"

	"github.com/textlens/textlens/internal/log"
	"github.com/textlens/textlens/internal/store"
)

// DefaultTopK is the number of tuples retrieved when WithTopK is not given.
const DefaultTopK = 5

// NeighborSource is the storage read the retriever depends on. *store.Store
// satisfies it.
type NeighborSource interface {
	Neighbors(ctx context.Context, vec []float32, k int, labeledOnly bool) ([]store.Neighbor, error)
}

// Option configures a retrieval using the functional options pattern.
type Option func(*config)

type config struct {
	topK        int
	labeledOnly bool
}

// WithTopK sets the maximum number of tuples to return. Default is 5.
func WithTopK(k int) Option {
	return func(c *config) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithLabeledOnly restricts response-bearing tuples to records a human has
// confirmed. Items with no eligible record still appear with a nil response.
func WithLabeledOnly() Option {
	return func(c *config) {
		c.labeledOnly = true
	}
}

// Retriever performs nearest-neighbor context lookups. It is read-only and
// side-effect free, so it is safe to call concurrently with other reads.
type Retriever struct {
	source NeighborSource
	logger log.Logger
}

// New creates a Retriever over the given source.
func New(source NeighborSource, logger log.Logger) *Retriever {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Retriever{source: source, logger: logger}
}

// Retrieve returns the stored items closest to queryVec by ascending cosine
// distance, truncated to the configured k. Ordering is deterministic for a
// fixed store state: ties on distance break by item id. Error-bearing
// annotation records never contribute a response slot.
func (r *Retriever) Retrieve(ctx context.Context, queryVec []float32, opts ...Option) ([]store.Neighbor, error) {
	if len(queryVec) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}

	cfg := config{topK: DefaultTopK}
	for _, opt := range opts {
		opt(&cfg)
	}

	neighbors, err := r.source.Neighbors(ctx, queryVec, cfg.topK, cfg.labeledOnly)
	if err != nil {
		return nil, fmt.Errorf("nearest-neighbor query: %w", err)
	}

	r.logger.Debug("retrieved context",
		"requested", cfg.topK,
		"returned", len(neighbors),
		"labeled_only", cfg.labeledOnly)
	return neighbors, nil
}
