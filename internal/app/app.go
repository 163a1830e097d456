// Package app wires the pipeline together: configuration, tracing, the
// database pool, the Genkit provider, and the annotation queue. Commands
// call Setup once and use the assembled components through App.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/textlens/textlens/internal/annotate"
	"github.com/textlens/textlens/internal/classify"
	"github.com/textlens/textlens/internal/config"
	"github.com/textlens/textlens/internal/embedding"
	"github.com/textlens/textlens/internal/log"
	"github.com/textlens/textlens/internal/retrieval"
	"github.com/textlens/textlens/internal/store"
)

// App is the assembled application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Store     *store.Store
	Encoder   *embedding.Encoder
	Retriever *retrieval.Retriever
	Generator *classify.Generator
	Queue     *annotate.Queue

	otelShutdown func()
}

// Close releases all resources. Safe to call on a partially built App.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down")
	}

	if a.DBPool != nil {
		a.DBPool.Close()
	}
	if a.otelShutdown != nil {
		a.otelShutdown()
	}
	return nil
}
