package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hallucination-lab/backend/internal/app"
	"github.com/hallucination-lab/backend/internal/knowledge"
)

var (
	kbTopK     int
	kbCategory string
	kbConfirm  bool
	kbChunk    int

	kbCmd = &cobra.Command{
		Use:   "kb",
		Short: "Manage the knowledge base used by the rag strategy",
	}

	kbSeedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Load the built-in cybersecurity documents into an empty knowledge base",
		Args:  cobra.NoArgs,
		RunE:  withKnowledge(seedKnowledge),
	}

	kbSearchCmd = &cobra.Command{
		Use:   "search [query]",
		Short: "Show the closest documents for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE:  withKnowledge(searchKnowledge),
	}

	kbCountCmd = &cobra.Command{
		Use:   "count",
		Short: "Print the number of stored documents",
		Args:  cobra.NoArgs,
		RunE:  withKnowledge(countKnowledge),
	}

	kbClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete every document from the knowledge base",
		Args:  cobra.NoArgs,
		RunE:  withKnowledge(clearKnowledge),
	}

	kbAddCmd = &cobra.Command{
		Use:   "add [text...]",
		Short: "Add each argument as one document",
		Args:  cobra.MinimumNArgs(1),
		RunE:  withKnowledge(addKnowledge),
	}

	kbIngestCmd = &cobra.Command{
		Use:   "ingest [url or html file]",
		Short: "Extract, chunk and store the text of an HTML page",
		Args:  cobra.ExactArgs(1),
		RunE:  withKnowledge(ingestKnowledge),
	}
)

func init() {
	kbSearchCmd.Flags().IntVarP(&kbTopK, "top-k", "k", knowledge.DefaultTopK, "number of documents to return")
	kbAddCmd.Flags().StringVar(&kbCategory, "category", "", "category metadata for the added documents")
	kbClearCmd.Flags().BoolVar(&kbConfirm, "yes", false, "confirm deletion")
	kbIngestCmd.Flags().IntVar(&kbChunk, "chunk-size", 0, "maximum chunk size in bytes (0 = default)")

	kbCmd.AddCommand(kbSeedCmd, kbSearchCmd, kbCountCmd, kbClearCmd, kbAddCmd, kbIngestCmd)
}

type kbFunc func(cmd *cobra.Command, args []string, kb *knowledge.Oracle) error

// withKnowledge opens the knowledge base without the chat model, so kb
// commands work with only an embedding backend configured.
func withKnowledge(fn kbFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		kb, closeKB, err := app.OpenKnowledge(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeKB()
		return fn(cmd, args, kb)
	}
}

func seedKnowledge(cmd *cobra.Command, args []string, kb *knowledge.Oracle) error {
	added, err := kb.SeedDefaults(cmd.Context())
	if err != nil {
		return err
	}
	n, err := kb.Count(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]int{"added": added, "count": n})
	}
	if added == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Knowledge base already holds %d documents, nothing seeded.\n", n)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d documents.\n", added)
	return nil
}

func searchKnowledge(cmd *cobra.Command, args []string, kb *knowledge.Oracle) error {
	r, err := kb.Query(cmd.Context(), strings.Join(args, " "), kbTopK)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, r)
	}
	if len(r.Documents) == 0 {
		fmt.Fprintln(out, styles.Muted.Render("Knowledge base is empty."))
		return nil
	}
	for i, doc := range r.Documents {
		fmt.Fprintf(out, "%s %s\n", styles.Title.Render(fmt.Sprintf("%d. %.3f", i+1, r.Scores[i])), styles.Muted.Render(r.IDs[i]))
		fmt.Fprintln(out, doc)
		fmt.Fprintln(out)
	}
	return nil
}

func countKnowledge(cmd *cobra.Command, args []string, kb *knowledge.Oracle) error {
	n, err := kb.Count(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]int{"count": n})
	}
	fmt.Fprintln(cmd.OutOrStdout(), n)
	return nil
}

func clearKnowledge(cmd *cobra.Command, args []string, kb *knowledge.Oracle) error {
	if !kbConfirm {
		return errors.New("refusing to clear the knowledge base without --yes")
	}
	if err := kb.Clear(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Knowledge base cleared.")
	return nil
}

func addKnowledge(cmd *cobra.Command, args []string, kb *knowledge.Oracle) error {
	docs := make([]knowledge.Document, 0, len(args))
	for _, text := range args {
		doc := knowledge.Document{Text: text}
		if kbCategory != "" {
			doc.Metadata = map[string]string{"category": kbCategory}
		}
		docs = append(docs, doc)
	}

	added, err := kb.AddDocuments(cmd.Context(), docs)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]int{"submitted": len(docs), "added": added})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %d of %d documents.\n", added, len(docs))
	return nil
}

func ingestKnowledge(cmd *cobra.Command, args []string, kb *knowledge.Oracle) error {
	ingester := knowledge.NewIngester(kb, kbChunk)
	source := args[0]

	var (
		res *knowledge.IngestResult
		err error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		res, err = ingester.IngestURL(cmd.Context(), source)
	} else {
		var html []byte
		html, err = os.ReadFile(source)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", source, err)
		}
		res, err = ingester.IngestHTML(cmd.Context(), source, string(html))
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %q: %d chunks, %d new.\n", res.Title, res.Chunks, res.Added)
	return nil
}
