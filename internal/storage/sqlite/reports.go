package sqlite

import (
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/hallucination-lab/backend/internal/storage/models"
)

var resultColumns = []string{
	"e.experiment_id",
	"e.name",
	"e.mitigation_strategy",
	"p.prompt_text",
	"p.prompt_category",
	"p.vector_type",
	"r.response_text",
	"r.response_time_ms",
	"r.tokens_used",
	"h.is_hallucination",
	"h.hallucination_type",
	"h.severity",
	"h.description",
	"h.false_claim",
	"p.created_at",
}

const hallucinationSum = "COALESCE(SUM(CASE WHEN h.is_hallucination = 1 THEN 1 ELSE 0 END), 0)"

func (c *Client) resultsQuery() sq.SelectBuilder {
	return sq.Select(resultColumns...).
		From("experiments e").
		Join("test_prompts p ON e.experiment_id = p.experiment_id").
		Join("responses r ON p.prompt_id = r.prompt_id").
		Join("hallucinations h ON r.response_id = h.response_id").
		RunWith(c.db)
}

// GetExperimentResults returns the joined rows of one experiment ordered by
// prompt creation time.
func (c *Client) GetExperimentResults(experimentID int64) ([]models.ResultRow, error) {
	q := c.resultsQuery().
		Where(sq.Eq{"e.experiment_id": experimentID}).
		OrderBy("p.created_at", "p.prompt_id", "h.hallucination_id")

	return c.queryResults(q)
}

// GetAllResults returns every joined row across all experiments.
func (c *Client) GetAllResults() ([]models.ResultRow, error) {
	q := c.resultsQuery().
		OrderBy("e.experiment_id", "p.created_at", "p.prompt_id", "h.hallucination_id")

	return c.queryResults(q)
}

func (c *Client) queryResults(q sq.SelectBuilder) ([]models.ResultRow, error) {
	rows, err := q.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	results := make([]models.ResultRow, 0)
	for rows.Next() {
		var r models.ResultRow
		var strategy, hType, severity string
		var createdAt int64

		err := rows.Scan(
			&r.ExperimentID,
			&r.ExperimentName,
			&strategy,
			&r.PromptText,
			&r.PromptCategory,
			&r.VectorType,
			&r.ResponseText,
			&r.ResponseTimeMS,
			&r.TokensUsed,
			&r.IsHallucination,
			&hType,
			&severity,
			&r.Description,
			&r.FalseClaim,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.Strategy = models.Strategy(strategy)
		r.HallucinationType = models.HallucinationType(hType)
		r.Severity = models.Severity(severity)
		r.CreatedAt = time.UnixMilli(createdAt)
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate results: %w", err)
	}

	return results, nil
}

// GetAllExperiments summarises every experiment, newest first. Experiments
// without prompts report a 0.00% rate.
func (c *Client) GetAllExperiments() ([]models.ExperimentSummary, error) {
	rows, err := sq.Select(
		"e.experiment_id",
		"e.name",
		"e.mitigation_strategy",
		"e.created_at",
		"COUNT(DISTINCT p.prompt_id)",
		hallucinationSum,
	).
		From("experiments e").
		LeftJoin("test_prompts p ON e.experiment_id = p.experiment_id").
		LeftJoin("responses r ON p.prompt_id = r.prompt_id").
		LeftJoin("hallucinations h ON r.response_id = h.response_id").
		GroupBy("e.experiment_id").
		OrderBy("e.created_at DESC", "e.experiment_id DESC").
		RunWith(c.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query experiments: %w", err)
	}
	defer rows.Close()

	summaries := make([]models.ExperimentSummary, 0)
	for rows.Next() {
		var s models.ExperimentSummary
		var strategy string
		var createdAt int64

		if err := rows.Scan(&s.ExperimentID, &s.Name, &strategy, &createdAt, &s.TotalTests, &s.HallucinationsDetected); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		s.Strategy = models.Strategy(strategy)
		s.CreatedAt = time.UnixMilli(createdAt)
		s.HallucinationRate = models.FormatRate(s.HallucinationsDetected, s.TotalTests)
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate experiments: %w", err)
	}

	return summaries, nil
}

func (c *Client) GetStatistics() (*models.Statistics, error) {
	stats := &models.Statistics{}

	if err := sq.Select("COUNT(*)").From("experiments").RunWith(c.db).QueryRow().Scan(&stats.TotalExperiments); err != nil {
		return nil, fmt.Errorf("failed to count experiments: %w", err)
	}

	if err := sq.Select("COUNT(*)").From("test_prompts").RunWith(c.db).QueryRow().Scan(&stats.TotalTests); err != nil {
		return nil, fmt.Errorf("failed to count tests: %w", err)
	}

	rows, err := sq.Select(
		"e.mitigation_strategy",
		"COUNT(DISTINCT p.prompt_id)",
		hallucinationSum,
	).
		From("experiments e").
		LeftJoin("test_prompts p ON e.experiment_id = p.experiment_id").
		LeftJoin("responses r ON p.prompt_id = r.prompt_id").
		LeftJoin("hallucinations h ON r.response_id = h.response_id").
		GroupBy("e.mitigation_strategy").
		OrderBy("e.mitigation_strategy").
		RunWith(c.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query strategy statistics: %w", err)
	}
	defer rows.Close()

	stats.ByStrategy = make([]models.StrategyStats, 0)
	for rows.Next() {
		var s models.StrategyStats
		var strategy string

		if err := rows.Scan(&strategy, &s.TotalTests, &s.Hallucinations); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		s.Strategy = models.Strategy(strategy)
		s.HallucinationRate = models.FormatRate(s.Hallucinations, s.TotalTests)
		stats.ByStrategy = append(stats.ByStrategy, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate strategy statistics: %w", err)
	}

	return stats, nil
}
