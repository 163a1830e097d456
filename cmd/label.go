package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/textlens/textlens/internal/store"
)

func newLabelCmd() *cobra.Command {
	var clear bool

	cmd := &cobra.Command{
		Use:   "label <record-id>",
		Short: "Mark an annotation record as human-confirmed",
		Long: `Label marks a completed annotation record as confirmed by a human
reviewer, making it eligible for labeled-only retrieval. Use --clear to
withdraw a confirmation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid record id %q: %w", args[0], err)
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
			if err := st.SetLabeled(ctx, recordID, !clear); err != nil {
				return err
			}

			if clear {
				cmd.Printf("record %s confirmation cleared\n", recordID)
			} else {
				cmd.Printf("record %s marked as labeled\n", recordID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "withdraw the confirmation instead of setting it")
	return cmd
}
