package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hallucination-lab/backend/internal/app"
	"github.com/hallucination-lab/backend/internal/catalog"
	"github.com/hallucination-lab/backend/internal/experiment"
	"github.com/hallucination-lab/backend/internal/knowledge"
	"github.com/hallucination-lab/backend/internal/mitigation"
	"github.com/hallucination-lab/backend/internal/storage/models"
	"github.com/hallucination-lab/backend/pkg/logger"
)

var (
	runStrategy    string
	runClass       string
	runLimit       int
	runName        string
	runDescription string

	queryStrategy string
	queryTopK     int
	queryContext  []string

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the test vectors through one mitigation strategy and record the results",
		Args:  cobra.NoArgs,
		RunE:  runExperiment,
	}

	queryCmd = &cobra.Command{
		Use:   "query [prompt]",
		Short: "Send a single prompt through a mitigation strategy without recording it",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runQuery,
	}
)

func init() {
	runCmd.Flags().StringVarP(&runStrategy, "strategy", "s", string(models.StrategyBaseline), "baseline, rag, constitutional_ai or chain_of_thought")
	runCmd.Flags().StringVar(&runClass, "class", "", "restrict to intentional, unintentional or control vectors")
	runCmd.Flags().IntVarP(&runLimit, "limit", "n", 0, "maximum number of vectors to run (0 = all)")
	runCmd.Flags().StringVar(&runName, "name", "", "experiment name (default <strategy>_<run id>)")
	runCmd.Flags().StringVar(&runDescription, "description", "", "experiment description")

	queryCmd.Flags().StringVarP(&queryStrategy, "strategy", "s", string(models.StrategyBaseline), "mitigation strategy")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "documents to retrieve for rag (0 = configured default)")
	queryCmd.Flags().StringArrayVar(&queryContext, "context", nil, "context document for rag, repeatable; skips retrieval")
}

func runExperiment(cmd *cobra.Command, args []string) error {
	strategy, err := models.ParseStrategy(runStrategy)
	if err != nil {
		return err
	}
	var class catalog.Class
	if runClass != "" {
		if class, err = catalog.ParseClass(runClass); err != nil {
			return err
		}
	}

	harness, err := app.Build(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer harness.Close()

	if strategy == models.StrategyRAG {
		if n, err := harness.Knowledge.Count(cmd.Context()); err == nil && n == 0 {
			logger.Warn("Knowledge base is empty, rag tests will fall back to baseline. Run `harness kb seed` first.")
		}
	}

	report, err := harness.Runner.Run(cmd.Context(), experiment.RunRequest{
		Name:        runName,
		Description: runDescription,
		Strategy:    strategy,
		Class:       class,
		Limit:       runLimit,
	})
	interrupted := report != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
	if err != nil && !interrupted {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if err := printJSON(out, report); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, styles.Title.Render(fmt.Sprintf("Experiment %d", report.ExperimentID)))
		fmt.Fprint(out, experiment.GenerateReport(report))
	}

	if interrupted {
		logger.Warn("Run interrupted, partial results were recorded", zap.Int("completed", report.Total))
		return err
	}
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	strategy, err := models.ParseStrategy(queryStrategy)
	if err != nil {
		return err
	}
	prompt := strings.Join(args, " ")

	harness, err := app.Build(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer harness.Close()

	opts := mitigation.Options{ContextDocuments: queryContext}
	var retrieval *knowledge.Retrieval
	if strategy == models.StrategyRAG && len(opts.ContextDocuments) == 0 {
		k := queryTopK
		if k == 0 {
			k = cfg.Runner.TopK
		}
		retrieval, err = harness.Knowledge.Query(cmd.Context(), prompt, k)
		if err != nil {
			logger.Warn("Knowledge base retrieval failed", zap.Error(err))
		} else {
			opts.ContextDocuments = retrieval.Documents
		}
	}

	result, err := harness.Agent.Query(cmd.Context(), prompt, strategy, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, map[string]any{
			"response":  result.Text,
			"strategy":  strategy,
			"metadata":  result.Metadata,
			"failed":    result.Failed(),
			"retrieval": retrieval,
		})
	}

	if retrieval != nil {
		fmt.Fprintln(out, styles.Title.Render("Retrieved context"))
		for i, doc := range retrieval.Documents {
			fmt.Fprintf(out, "  %d. [%.3f] %s\n", i+1, retrieval.Scores[i], clip(doc, 100))
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, styles.Title.Render("Response"))
	if result.Failed() {
		fmt.Fprintln(out, styles.Error.Render(result.Text))
	} else {
		fmt.Fprintln(out, result.Text)
	}
	fmt.Fprintln(out, styles.Muted.Render(fmt.Sprintf("%s | %.0f ms | %d tokens",
		strategy, result.Metadata.ResponseTimeMS, result.Metadata.TokensUsed)))

	if result.Failed() {
		return result.Failure
	}
	return nil
}
