package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hallucination-lab/backend/internal/app"
	"github.com/hallucination-lab/backend/internal/catalog"
	"github.com/hallucination-lab/backend/internal/storage/models"
)

var (
	exportOutput string
	vectorsClass string

	experimentsCmd = &cobra.Command{
		Use:   "experiments",
		Short: "List recorded experiments with their hallucination rates",
		Args:  cobra.NoArgs,
		RunE:  listExperiments,
	}

	resultsCmd = &cobra.Command{
		Use:   "results [experiment id]",
		Short: "Show joined test results for one experiment, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showResults,
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show hallucination statistics by strategy",
		Args:  cobra.NoArgs,
		RunE:  showStatistics,
	}

	exportCmd = &cobra.Command{
		Use:   "export [experiment id]",
		Short: "Export results to CSV; without an id every experiment is exported",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportResults,
	}

	vectorsCmd = &cobra.Command{
		Use:   "vectors",
		Short: "List the test vector catalog",
		Args:  cobra.NoArgs,
		RunE:  listVectors,
	}
)

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "CSV path (default under export.dir)")
	vectorsCmd.Flags().StringVar(&vectorsClass, "class", "", "intentional, unintentional or control")
}

func experimentIDArg(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, nil
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid experiment id %q", args[0])
	}
	return id, nil
}

func listExperiments(cmd *cobra.Command, args []string) error {
	store, err := app.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	summaries, err := store.GetAllExperiments()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, summaries)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(out, styles.Muted.Render("No experiments recorded yet."))
		return nil
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Name", "Strategy", "Tests", "Hallucinations", "Rate", "Created"},
		experimentRows(summaries),
	))
	return nil
}

func showResults(cmd *cobra.Command, args []string) error {
	id, err := experimentIDArg(args)
	if err != nil {
		return err
	}

	store, err := app.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var rows []models.ResultRow
	if id > 0 {
		if _, err := store.GetExperiment(id); err != nil {
			return err
		}
		rows, err = store.GetExperimentResults(id)
	} else {
		rows, err = store.GetAllResults()
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, styles.Muted.Render("No results."))
		return nil
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Exp", "Strategy", "Prompt", "Response", "Hallucination", "ms"},
		resultRows(rows, 48),
	))
	return nil
}

func showStatistics(cmd *cobra.Command, args []string) error {
	store, err := app.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.GetStatistics()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, stats)
	}
	fmt.Fprintln(out, styles.Title.Render(fmt.Sprintf("%d experiments, %d tests", stats.TotalExperiments, stats.TotalTests)))
	if len(stats.ByStrategy) > 0 {
		fmt.Fprintln(out, renderTable(
			[]string{"Strategy", "Tests", "Hallucinations", "Rate"},
			statisticsRows(stats),
		))
	}
	return nil
}

func exportResults(cmd *cobra.Command, args []string) error {
	id, err := experimentIDArg(args)
	if err != nil {
		return err
	}

	store, err := app.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if id > 0 {
		if _, err := store.GetExperiment(id); err != nil {
			return err
		}
	}

	path, err := store.ExportToCSV(id, exportOutput)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]string{"path": path})
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Exported to "+path)
	return nil
}

func listVectors(cmd *cobra.Command, args []string) error {
	cat, err := catalog.Load(cfg.Runner.VectorsFile)
	if err != nil {
		return err
	}

	vectors := cat.All()
	if vectorsClass != "" {
		class, err := catalog.ParseClass(vectorsClass)
		if err != nil {
			return err
		}
		vectors = cat.Vectors(class)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, map[string]any{"counts": cat.Counts(), "vectors": vectors})
	}

	counts := cat.Counts()
	fmt.Fprintln(out, styles.Title.Render(fmt.Sprintf("%d vectors: %d intentional, %d unintentional, %d control",
		counts.Total, counts.Intentional, counts.Unintentional, counts.Control)))
	fmt.Fprintln(out, renderTable(
		[]string{"Class", "Category", "Expected", "Prompt"},
		vectorRows(vectors, 80),
	))
	return nil
}
