package classify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/textlens/textlens/internal/classify"
	"github.com/textlens/textlens/internal/log"
	"github.com/textlens/textlens/internal/prompt"
	"github.com/textlens/textlens/internal/testutil"
)

func TestGenerateReturnsModelReply(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)

	mock := testutil.NewMockModel(`{"predicted_class":"low"}`)
	mock.AddReply("storm", `{"predicted_class":"high"}`)
	mock.Register(g)

	gen := classify.NewGenerator(g, testutil.MockModelName, nil, log.NewNop())

	messages := prompt.Assemble("severity", "a storm is coming", nil, nil)
	raw, err := gen.Generate(ctx, messages)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if raw != `{"predicted_class":"high"}` {
		t.Errorf("reply = %q, want pattern-matched reply", raw)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("model calls = %d, want 1", len(calls))
	}
}

func TestGenerateRepeatedCallsAgree(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)

	mock := testutil.NewMockModel(`{"predicted_class":"medium"}`)
	mock.Register(g)

	gen := classify.NewGenerator(g, testutil.MockModelName, rate.NewLimiter(rate.Inf, 1), log.NewNop())
	messages := prompt.Assemble("severity", "light rain", nil, nil)

	first, err := gen.Generate(ctx, messages)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	second, err := gen.Generate(ctx, messages)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if first != second {
		t.Errorf("replies differ: %q vs %q", first, second)
	}
}

func TestGenerateWrapsModelError(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)

	mock := testutil.NewMockModel("")
	mock.SetError(errors.New("backend offline"))
	mock.Register(g)

	gen := classify.NewGenerator(g, testutil.MockModelName, nil, log.NewNop())
	_, err := gen.Generate(ctx, prompt.Assemble("severity", "text", nil, nil))
	if !errors.Is(err, classify.ErrGeneration) {
		t.Fatalf("Generate() error = %v, want ErrGeneration", err)
	}
}

func TestGenerateCanceledLimiterWait(t *testing.T) {
	g := genkit.Init(context.Background())
	testutil.NewMockModel("{}").Register(g)

	// A zero limiter admits nothing; the wait error must surface wrapped.
	gen := classify.NewGenerator(g, testutil.MockModelName, rate.NewLimiter(0, 0), log.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := gen.Generate(ctx, prompt.Assemble("severity", "text", nil, nil))
	if !errors.Is(err, classify.ErrGeneration) {
		t.Fatalf("Generate() error = %v, want ErrGeneration", err)
	}
}
