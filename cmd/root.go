// Package cmd implements the textlens command line interface.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/textlens/textlens/internal/config"
	"github.com/textlens/textlens/internal/log"
)

// NewRootCmd creates the root command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "textlens",
		Short: "textlens - retrieval-augmented text classification",
		Long: `textlens classifies stored content items against user-defined analysis
requests. Each classification is grounded by retrieving the most similar
previously annotated items and presenting them as context to the model.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newAnnotateCmd(),
		newRecordsCmd(),
		newLabelCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)

	return root
}

// Execute runs the CLI. This is the only entry point main calls.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads configuration and builds the logger it specifies.
func loadConfig() (*config.Config, log.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := log.New(log.Config{Level: cfg.SlogLevel(), JSON: cfg.LogJSON})
	return cfg, logger, nil
}
