package sqlite

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hallucination-lab/backend/internal/storage/models"
	"github.com/hallucination-lab/backend/pkg/logger"
)

// createExportFile is swapped in tests.
var createExportFile = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

var exportHeader = []string{
	"experiment_id",
	"name",
	"mitigation_strategy",
	"prompt_text",
	"prompt_category",
	"vector_type",
	"response_text",
	"response_time_ms",
	"tokens_used",
	"is_hallucination",
	"hallucination_type",
	"severity",
	"description",
	"false_claim",
	"created_at",
}

// ExportToCSV writes joined result rows to outputPath and returns the path
// written. experimentID 0 exports every experiment; an empty outputPath
// resolves to a file under the configured export directory.
func (c *Client) ExportToCSV(experimentID int64, outputPath string) (string, error) {
	var rows []models.ResultRow
	var err error

	if experimentID > 0 {
		rows, err = c.GetExperimentResults(experimentID)
	} else {
		rows, err = c.GetAllResults()
	}
	if err != nil {
		return "", err
	}

	if outputPath == "" {
		name := "all_experiments.csv"
		if experimentID > 0 {
			name = fmt.Sprintf("experiment_%d.csv", experimentID)
		}
		outputPath = filepath.Join(c.opts.ExportDir, name)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	f, err := createExportFile(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}

	if err := writeRows(f, rows); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close export file: %w", err)
	}

	logger.Info("Results exported",
		zap.String("path", outputPath),
		zap.Int("rows", len(rows)),
	)

	return outputPath, nil
}

func writeRows(out io.Writer, rows []models.ResultRow) error {
	w := csv.NewWriter(out)
	if err := w.Write(exportHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range rows {
		record := []string{
			strconv.FormatInt(r.ExperimentID, 10),
			r.ExperimentName,
			string(r.Strategy),
			r.PromptText,
			r.PromptCategory,
			r.VectorType,
			r.ResponseText,
			strconv.FormatFloat(r.ResponseTimeMS, 'f', 2, 64),
			strconv.Itoa(r.TokensUsed),
			strconv.FormatBool(r.IsHallucination),
			string(r.HallucinationType),
			string(r.Severity),
			r.Description,
			r.FalseClaim,
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush export: %w", err)
	}
	return nil
}
