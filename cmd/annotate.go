package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/textlens/textlens/internal/annotate"
	"github.com/textlens/textlens/internal/app"
)

func newAnnotateCmd() *cobra.Command {
	var (
		resetFailed bool
		topK        int
		labeledOnly bool
	)

	cmd := &cobra.Command{
		Use:   "annotate <request-id>",
		Short: "Annotate every unclassified item of an analysis request",
		Long: `Annotate selects the content items in the request's scope that have no
annotation record, claims each one, and classifies it with retrieved
context. Failed items are recorded and not retried; use --reset-failed to
clear previous failures before the run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requestID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid request id %q: %w", args[0], err)
			}

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.Setup(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Warn("closing application", "error", err)
				}
			}()

			if resetFailed {
				n, err := a.Store.ResetFailed(ctx, requestID)
				if err != nil {
					return err
				}
				logger.Info("cleared failed records", "request_id", requestID, "count", n)
			}

			queue := a.Queue
			if cmd.Flags().Changed("top-k") || labeledOnly {
				opts := []annotate.Option{annotate.WithTopK(cfg.TopK)}
				if cmd.Flags().Changed("top-k") {
					opts = []annotate.Option{annotate.WithTopK(topK)}
				}
				if labeledOnly {
					opts = append(opts, annotate.WithLabeledOnly())
				}
				queue = annotate.NewQueue(a.Store, a.Encoder, a.Retriever, a.Generator, logger, opts...)
			}

			sum, err := queue.Run(ctx, requestID)
			if err != nil {
				return err
			}

			cmd.Printf("processed %d, failed %d, skipped %d\n",
				sum.Processed, sum.Failed, sum.Skipped)
			return nil
		},
	}

	cmd.Flags().BoolVar(&resetFailed, "reset-failed", false,
		"delete the request's failed records so those items are re-attempted")
	cmd.Flags().IntVar(&topK, "top-k", 0,
		"number of context tuples to retrieve per item (overrides config)")
	cmd.Flags().BoolVar(&labeledOnly, "labeled-only", false,
		"retrieve context only from human-confirmed annotations")

	return cmd
}
