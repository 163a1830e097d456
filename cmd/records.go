package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/textlens/textlens/internal/store"
)

func newRecordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "records <request-id>",
		Short: "List the annotation records of an analysis request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requestID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid request id %q: %w", args[0], err)
			}

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := store.OpenPool(ctx, cfg.PostgresConnectionString())
			if err != nil {
				return err
			}
			defer pool.Close()

			st := store.New(pool, logger)
			records, err := st.RecordsByRequest(ctx, requestID)
			if err != nil {
				return err
			}

			var counts = map[store.RecordState]int{}
			for _, rec := range records {
				state := rec.State()
				counts[state]++
				labeled := ""
				if rec.Labeled {
					labeled = " labeled"
				}
				cmd.Printf("%s  item=%s  %s%s\n", rec.ID, rec.ContentItemID, state, labeled)
			}
			cmd.Printf("total %d: %d completed, %d failed, %d claimed\n",
				len(records),
				counts[store.StateCompleted],
				counts[store.StateFailed],
				counts[store.StateClaimed])
			return nil
		},
	}
}
