// Package embedding turns text into fixed-dimension dense vectors using the
// configured Genkit embedder backend.
package embedding

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"google.golang.org/genai"

	"github.com/textlens/textlens/internal/log"
)

// EncodingError reports an embedding failure: an unavailable backend, an
// empty input batch, or a response that does not match the request.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding failed: %v", e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// Encoder batches texts into single embedder invocations and enforces the
// fixed output dimension shared by all stored and query vectors. Token
// truncation, padding, and mean pooling over the final hidden layer are the
// backend's contract; the encoder verifies the rectangular result.
//
// Embedding is deterministic: no sampling is involved.
type Encoder struct {
	embedder ai.Embedder
	dim      int
	logger   log.Logger
}

// New creates an Encoder producing dim-dimensional vectors.
func New(embedder ai.Embedder, dim int, logger log.Logger) *Encoder {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Encoder{embedder: embedder, dim: dim, logger: logger}
}

// Dimension returns the fixed vector dimension D.
func (e *Encoder) Dimension() int { return e.dim }

// Encode embeds all texts in one backend invocation and returns one vector
// per text, in input order. Callers must not call with zero texts.
func (e *Encoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, &EncodingError{Err: fmt.Errorf("empty input batch")}
	}

	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = ai.DocumentFromText(t, nil)
	}

	dim := int32(e.dim) // #nosec G115 -- dimension validated by config (1..4096)
	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   docs,
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return nil, &EncodingError{Err: fmt.Errorf("embedder backend: %w", err)}
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, &EncodingError{Err: fmt.Errorf(
			"embedder returned %d vectors for %d texts", len(resp.Embeddings), len(texts))}
	}

	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if len(emb.Embedding) != e.dim {
			return nil, &EncodingError{Err: fmt.Errorf(
				"vector %d has dimension %d, want %d", i, len(emb.Embedding), e.dim)}
		}
		out[i] = emb.Embedding
	}

	e.logger.Debug("encoded batch", "texts", len(texts), "dimension", e.dim)
	return out, nil
}

// EncodeOne embeds a single text.
func (e *Encoder) EncodeOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Encode(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
