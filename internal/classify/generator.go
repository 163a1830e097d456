// Package classify produces and validates classification responses. The
// generator sends an assembled message sequence to the configured model with
// deterministic decoding; the validator checks the raw reply against the
// response schema before it is persisted.
package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/textlens/textlens/internal/log"
)

// ErrGeneration wraps model call failures so callers can distinguish
// transport and model errors from schema violations.
var ErrGeneration = errors.New("classification generation failed")

// maxResponseTokens bounds the reply length. The schema output is compact;
// anything longer indicates the model has wandered off-format.
const maxResponseTokens = 200

// Generator drives a single model for classification calls.
type Generator struct {
	genkit    *genkit.Genkit
	modelName string
	limiter   *rate.Limiter
	logger    log.Logger
}

// NewGenerator creates a generator for the given model. The limiter paces
// outbound calls and may be nil to disable pacing.
func NewGenerator(g *genkit.Genkit, modelName string, limiter *rate.Limiter, logger log.Logger) *Generator {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Generator{
		genkit:    g,
		modelName: modelName,
		limiter:   limiter,
		logger:    logger.With("component", "classify"),
	}
}

// Generate sends the messages to the model and returns the raw reply text.
// Decoding is deterministic so repeated calls on identical input agree.
// The call is not retried; the caller decides how a failure is recorded.
func (g *Generator) Generate(ctx context.Context, messages []*ai.Message) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: %w", ErrGeneration, err)
		}
	}

	temperature := float32(0)
	resp, err := genkit.Generate(ctx, g.genkit,
		ai.WithModelName(g.modelName),
		ai.WithMessages(messages...),
		ai.WithConfig(&genai.GenerateContentConfig{
			Temperature:     &temperature,
			MaxOutputTokens: maxResponseTokens,
		}),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	text := resp.Text()
	g.logger.Debug("model reply received", "model", g.modelName, "reply_len", len(text))
	return text, nil
}
