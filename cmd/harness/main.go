package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hallucination-lab/backend/internal/metrics"
	"github.com/hallucination-lab/backend/pkg/config"
	"github.com/hallucination-lab/backend/pkg/logger"
)

var (
	cfg        *config.Config
	configPath string
	jsonOutput bool
	verbose    bool

	rootCmd = &cobra.Command{
		Use:   "harness",
		Short: "Run hallucination experiments against an LLM and inspect the results",
		Long: `harness drives the hallucination test vectors through a mitigation
strategy, judges each response and records everything in the experiment store.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			// Keep stdout for command output.
			if loaded.Logging.OutputPath == "stdout" {
				loaded.Logging.OutputPath = "stderr"
			}
			if err := logger.Init(loaded.Logging.Level, loaded.Logging.Format, loaded.Logging.OutputPath); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			if verbose {
				_ = logger.SetLevel("debug")
			}
			metrics.Init()
			cfg = loaded
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("HALLUC_CONFIG"), "path to config.yaml")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print machine-readable JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(runCmd, queryCmd)
	rootCmd.AddCommand(experimentsCmd, resultsCmd, statsCmd, exportCmd, vectorsCmd)
	rootCmd.AddCommand(kbCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, styles.Error.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
