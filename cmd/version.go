package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/textlens/textlens/internal/config"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and configuration information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Printf("textlens %s\n", AppVersion)
			cmd.Printf("Build Time: %s\n", BuildTime)
			cmd.Printf("Git Commit: %s\n", GitCommit)

			// Configuration is informative here, not required.
			cfg, err := config.Load()
			if err != nil {
				cmd.Printf("\nConfiguration: unavailable (%v)\n", err)
				return nil
			}

			cmd.Println()
			cmd.Println("Configuration:")
			cmd.Printf("  Provider: %s\n", cfg.Provider)
			cmd.Printf("  Model: %s\n", cfg.FullModelName())
			cmd.Printf("  Embedder: %s (%d dimensions)\n", cfg.EmbedderModel, cfg.EmbedderDimension)
			cmd.Printf("  Retrieval top-k: %d\n", cfg.TopK)
			cmd.Printf("  Database: %s@%s:%d/%s\n",
				cfg.PostgresUser, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDBName)

			key := os.Getenv("GEMINI_API_KEY")
			if key != "" {
				cmd.Println("  GEMINI_API_KEY: configured")
			} else {
				cmd.Println("  GEMINI_API_KEY: not set")
			}
			return nil
		},
	}
}
