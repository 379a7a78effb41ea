package sqlite

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hallucination-lab/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	c, err := NewClient(":memory:", Options{
		ExportDir:          t.TempDir(),
		DefaultModel:       "gpt-3.5-turbo",
		DefaultTemperature: 0.7,
		DefaultMaxTokens:   500,
	})
	require.NoError(t, err)
	require.NoError(t, c.InitSchema())
	t.Cleanup(func() { c.Close() })

	return c
}

func boolPtr(b bool) *bool { return &b }

func TestCreateExperiment_AppliesDefaults(t *testing.T) {
	c := newTestClient(t)

	id, err := c.CreateExperiment("baseline run", models.StrategyBaseline, "first pass", models.ExperimentOptions{})
	require.NoError(t, err)
	assert.Positive(t, id)

	exp, err := c.GetExperiment(id)
	require.NoError(t, err)
	assert.Equal(t, "baseline run", exp.Name)
	assert.Equal(t, models.StrategyBaseline, exp.Strategy)
	assert.Equal(t, "gpt-3.5-turbo", exp.ModelName)
	assert.InDelta(t, 0.7, exp.Temperature, 0.0001)
	assert.Equal(t, 500, exp.MaxTokens)
	assert.False(t, exp.CreatedAt.IsZero())
}

func TestCreateExperiment_ExplicitOptions(t *testing.T) {
	c := newTestClient(t)

	temp := float32(0)
	id, err := c.CreateExperiment("cold", models.StrategyRAG, "", models.ExperimentOptions{
		ModelName:   "deepseek-chat",
		Temperature: &temp,
		MaxTokens:   64,
		Notes:       "zero temperature",
	})
	require.NoError(t, err)

	exp, err := c.GetExperiment(id)
	require.NoError(t, err)
	assert.Equal(t, "deepseek-chat", exp.ModelName)
	assert.Zero(t, exp.Temperature)
	assert.Equal(t, 64, exp.MaxTokens)
	assert.Equal(t, "zero temperature", exp.Notes)
}

func TestCreateExperiment_RejectsInvalidStrategy(t *testing.T) {
	c := newTestClient(t)

	_, err := c.CreateExperiment("bad", models.Strategy("prayer"), "", models.ExperimentOptions{})
	assert.ErrorIs(t, err, models.ErrInvalidStrategy)

	exps, err := c.GetAllExperiments()
	require.NoError(t, err)
	assert.Empty(t, exps)
}

func TestGetExperiment_NotFound(t *testing.T) {
	c := newTestClient(t)

	_, err := c.GetExperiment(42)
	assert.ErrorIs(t, err, ErrExperimentNotFound)
}

func TestLogTest_RoundTrip(t *testing.T) {
	c := newTestClient(t)

	expID, err := c.CreateExperiment("roundtrip", models.StrategyBaseline, "", models.ExperimentOptions{})
	require.NoError(t, err)

	ids, err := c.LogTest(expID, "What is CVE-2024-99999?", "It is a buffer overflow.", true, models.TestMetadata{
		PromptCategory:        "fabricated_cve",
		Intent:                "probe fabricated identifiers",
		ExpectedHallucination: boolPtr(true),
		VectorType:            "intentional",
		ResponseTimeMS:        812.5,
		TokensUsed:            120,
		HallucinationType:     models.HallucinationFabricatedCVE,
		Severity:              models.SeverityHigh,
		Description:           "described a CVE that does not exist",
		FalseClaim:            "buffer overflow",
	})
	require.NoError(t, err)
	assert.Positive(t, ids.PromptID)
	assert.Positive(t, ids.ResponseID)
	assert.Positive(t, ids.HallucinationID)
	assert.Zero(t, ids.RAGContextID)

	rows, err := c.GetExperimentResults(expID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, expID, row.ExperimentID)
	assert.Equal(t, "roundtrip", row.ExperimentName)
	assert.Equal(t, models.StrategyBaseline, row.Strategy)
	assert.Equal(t, "What is CVE-2024-99999?", row.PromptText)
	assert.Equal(t, "fabricated_cve", row.PromptCategory)
	assert.Equal(t, "intentional", row.VectorType)
	assert.Equal(t, "It is a buffer overflow.", row.ResponseText)
	assert.InDelta(t, 812.5, row.ResponseTimeMS, 0.001)
	assert.Equal(t, 120, row.TokensUsed)
	assert.True(t, row.IsHallucination)
	assert.Equal(t, models.HallucinationFabricatedCVE, row.HallucinationType)
	assert.Equal(t, models.SeverityHigh, row.Severity)
	assert.Equal(t, "buffer overflow", row.FalseClaim)
}

func TestLogTest_Defaults(t *testing.T) {
	c := newTestClient(t)

	expID, err := c.CreateExperiment("defaults", models.StrategyBaseline, "", models.ExperimentOptions{})
	require.NoError(t, err)

	_, err = c.LogTest(expID, "What is a firewall?", "A network filter.", false, models.TestMetadata{})
	require.NoError(t, err)

	rows, err := c.GetExperimentResults(expID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "general", rows[0].PromptCategory)
	assert.Equal(t, "unknown", rows[0].VectorType)
	assert.Equal(t, models.HallucinationUnknown, rows[0].HallucinationType)
	assert.Equal(t, models.SeverityLow, rows[0].Severity)
}

func TestLogTest_UnknownExperiment(t *testing.T) {
	c := newTestClient(t)

	_, err := c.LogTest(999, "prompt", "response", false, models.TestMetadata{})
	assert.ErrorIs(t, err, ErrExperimentNotFound)

	stats, err := c.GetStatistics()
	require.NoError(t, err)
	assert.Zero(t, stats.TotalTests)
}

func TestLogTest_RejectsInvalidEnums(t *testing.T) {
	c := newTestClient(t)

	expID, err := c.CreateExperiment("enums", models.StrategyBaseline, "", models.ExperimentOptions{})
	require.NoError(t, err)

	_, err = c.LogTest(expID, "p", "r", true, models.TestMetadata{HallucinationType: "made_up"})
	assert.ErrorIs(t, err, models.ErrInvalidHallucinationType)

	_, err = c.LogTest(expID, "p", "r", true, models.TestMetadata{Severity: "catastrophic"})
	assert.ErrorIs(t, err, models.ErrInvalidSeverity)

	rows, err := c.GetExperimentResults(expID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLogTest_RAGContext(t *testing.T) {
	c := newTestClient(t)

	expID, err := c.CreateExperiment("rag", models.StrategyRAG, "", models.ExperimentOptions{})
	require.NoError(t, err)

	docs := []string{"CVE-2021-44228 is Log4Shell.", "SQL injection targets query construction."}
	scores := []float64{0.82, 0.41}

	ids, err := c.LogTest(expID, "What is Log4Shell?", "A JNDI injection flaw.", false, models.TestMetadata{
		RAG: &models.RAGSnapshot{Documents: docs, Scores: scores},
	})
	require.NoError(t, err)
	assert.Positive(t, ids.RAGContextID)

	rc, err := c.GetRAGContext(ids.PromptID)
	require.NoError(t, err)
	assert.Equal(t, docs, rc.RetrievedDocuments)
	assert.Equal(t, scores, rc.RelevanceScores)
	assert.Equal(t, 2, rc.NumDocuments)

	plain, err := c.LogTest(expID, "No retrieval", "Answer.", false, models.TestMetadata{})
	require.NoError(t, err)
	assert.Zero(t, plain.RAGContextID)

	_, err = c.GetRAGContext(plain.PromptID)
	assert.ErrorIs(t, err, ErrRAGContextNotFound)
}

func TestGetExperimentResults_OrderedByInsertion(t *testing.T) {
	c := newTestClient(t)

	expID, err := c.CreateExperiment("order", models.StrategyBaseline, "", models.ExperimentOptions{})
	require.NoError(t, err)

	prompts := []string{"first", "second", "third"}
	for _, p := range prompts {
		_, err := c.LogTest(expID, p, "ok", false, models.TestMetadata{})
		require.NoError(t, err)
	}

	rows, err := c.GetExperimentResults(expID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, p := range prompts {
		assert.Equal(t, p, rows[i].PromptText)
	}
}

func TestGetAllExperiments_Rates(t *testing.T) {
	c := newTestClient(t)

	withTests, err := c.CreateExperiment("quarter", models.StrategyBaseline, "", models.ExperimentOptions{})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err := c.LogTest(withTests, "prompt", "response", i == 0, models.TestMetadata{})
		require.NoError(t, err)
	}

	empty, err := c.CreateExperiment("empty", models.StrategyChainOfThought, "", models.ExperimentOptions{})
	require.NoError(t, err)

	exps, err := c.GetAllExperiments()
	require.NoError(t, err)
	require.Len(t, exps, 2)

	byID := make(map[int64]models.ExperimentSummary)
	for _, e := range exps {
		byID[e.ExperimentID] = e
	}

	assert.Equal(t, 4, byID[withTests].TotalTests)
	assert.Equal(t, 1, byID[withTests].HallucinationsDetected)
	assert.Equal(t, "25.00%", byID[withTests].HallucinationRate)

	assert.Equal(t, 0, byID[empty].TotalTests)
	assert.Equal(t, 0, byID[empty].HallucinationsDetected)
	assert.Equal(t, "0.00%", byID[empty].HallucinationRate)
}

func TestGetStatistics(t *testing.T) {
	c := newTestClient(t)

	base, err := c.CreateExperiment("base", models.StrategyBaseline, "", models.ExperimentOptions{})
	require.NoError(t, err)
	rag, err := c.CreateExperiment("rag", models.StrategyRAG, "", models.ExperimentOptions{})
	require.NoError(t, err)

	for _, h := range []bool{true, true, false} {
		_, err := c.LogTest(base, "p", "r", h, models.TestMetadata{})
		require.NoError(t, err)
	}
	_, err = c.LogTest(rag, "p", "r", false, models.TestMetadata{})
	require.NoError(t, err)

	stats, err := c.GetStatistics()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalExperiments)
	assert.Equal(t, 4, stats.TotalTests)
	require.Len(t, stats.ByStrategy, 2)

	byStrategy := make(map[models.Strategy]models.StrategyStats)
	for _, s := range stats.ByStrategy {
		byStrategy[s.Strategy] = s
	}

	assert.Equal(t, 3, byStrategy[models.StrategyBaseline].TotalTests)
	assert.Equal(t, 2, byStrategy[models.StrategyBaseline].Hallucinations)
	assert.Equal(t, "66.67%", byStrategy[models.StrategyBaseline].HallucinationRate)
	assert.Equal(t, "0.00%", byStrategy[models.StrategyRAG].HallucinationRate)
}

func TestExportToCSV(t *testing.T) {
	c := newTestClient(t)

	expID, err := c.CreateExperiment("export", models.StrategyBaseline, "", models.ExperimentOptions{})
	require.NoError(t, err)
	_, err = c.LogTest(expID, "Who wrote \"Hacking, the Art\"?", "Jon Erickson", false, models.TestMetadata{})
	require.NoError(t, err)
	_, err = c.LogTest(expID, "second", "line one\nline two", true, models.TestMetadata{})
	require.NoError(t, err)

	path, err := c.ExportToCSV(expID, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(c.opts.ExportDir, "experiment_1.csv"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, exportHeader, records[0])
	assert.Equal(t, "Who wrote \"Hacking, the Art\"?", records[1][3])
	assert.Equal(t, "line one\nline two", records[2][6])
	assert.Equal(t, "true", records[2][9])
}

func TestExportToCSV_AllExperimentsCustomPath(t *testing.T) {
	c := newTestClient(t)

	for _, name := range []string{"a", "b"} {
		id, err := c.CreateExperiment(name, models.StrategyBaseline, "", models.ExperimentOptions{})
		require.NoError(t, err)
		_, err = c.LogTest(id, "p", "r", false, models.TestMetadata{})
		require.NoError(t, err)
	}

	target := filepath.Join(t.TempDir(), "nested", "dir", "out.csv")
	path, err := c.ExportToCSV(0, target)
	require.NoError(t, err)
	assert.Equal(t, target, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestExportToCSV_UnknownExperimentWritesHeaderOnly(t *testing.T) {
	c := newTestClient(t)

	path, err := c.ExportToCSV(7, "")
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, exportHeader, records[0])
}

type failingCloseFile struct {
	bytes.Buffer
}

func (f *failingCloseFile) Close() error { return errors.New("disk quota exceeded") }

func TestExportToCSV_ReportsCloseError(t *testing.T) {
	c := newTestClient(t)

	expID, err := c.CreateExperiment("export", models.StrategyBaseline, "", models.ExperimentOptions{})
	require.NoError(t, err)
	_, err = c.LogTest(expID, "p", "r", false, models.TestMetadata{})
	require.NoError(t, err)

	file := &failingCloseFile{}
	orig := createExportFile
	createExportFile = func(string) (io.WriteCloser, error) { return file, nil }
	t.Cleanup(func() { createExportFile = orig })

	path, err := c.ExportToCSV(expID, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk quota exceeded")
	assert.Empty(t, path)
	assert.Contains(t, file.String(), "experiment_id")
}
