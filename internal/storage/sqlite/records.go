package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hallucination-lab/backend/internal/storage/models"
	"github.com/hallucination-lab/backend/pkg/logger"
)

// LogTest records prompt, response and annotation (plus the RAG snapshot when
// present) in a single transaction.
func (c *Client) LogTest(experimentID int64, promptText, responseText string, isHallucination bool, meta models.TestMetadata) (*models.TestIDs, error) {
	meta = withDefaults(meta)
	if !meta.HallucinationType.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidHallucinationType, meta.HallucinationType)
	}
	if !meta.Severity.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidSeverity, meta.Severity)
	}

	tx, err := c.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRow(`SELECT 1 FROM experiments WHERE experiment_id = ?`, experimentID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrExperimentNotFound, experimentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check experiment: %w", err)
	}

	now := time.Now().UnixMilli()
	ids := &models.TestIDs{}

	var expected sql.NullBool
	if meta.ExpectedHallucination != nil {
		expected = sql.NullBool{Bool: *meta.ExpectedHallucination, Valid: true}
	}

	res, err := tx.Exec(`
		INSERT INTO test_prompts (experiment_id, prompt_text, prompt_category, intent,
			expected_hallucination, vector_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		experimentID,
		promptText,
		meta.PromptCategory,
		meta.Intent,
		expected,
		meta.VectorType,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert prompt: %w", err)
	}
	if ids.PromptID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to read prompt id: %w", err)
	}

	res, err = tx.Exec(`
		INSERT INTO responses (prompt_id, response_text, response_time_ms, tokens_used, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		ids.PromptID,
		responseText,
		meta.ResponseTimeMS,
		meta.TokensUsed,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert response: %w", err)
	}
	if ids.ResponseID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to read response id: %w", err)
	}

	res, err = tx.Exec(`
		INSERT INTO hallucinations (response_id, is_hallucination, hallucination_type, severity,
			description, evidence, false_claim, annotated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ids.ResponseID,
		isHallucination,
		string(meta.HallucinationType),
		string(meta.Severity),
		meta.Description,
		meta.Evidence,
		meta.FalseClaim,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert hallucination annotation: %w", err)
	}
	if ids.HallucinationID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to read hallucination id: %w", err)
	}

	if meta.RAG != nil {
		docsJSON, err := json.Marshal(nonNil(meta.RAG.Documents))
		if err != nil {
			return nil, fmt.Errorf("failed to encode retrieved documents: %w", err)
		}
		scoresJSON, err := json.Marshal(nonNilScores(meta.RAG.Scores))
		if err != nil {
			return nil, fmt.Errorf("failed to encode relevance scores: %w", err)
		}

		res, err = tx.Exec(`
			INSERT INTO rag_context (prompt_id, retrieved_documents, relevance_scores, num_documents)
			VALUES (?, ?, ?, ?)`,
			ids.PromptID,
			string(docsJSON),
			string(scoresJSON),
			len(meta.RAG.Documents),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert rag context: %w", err)
		}
		if ids.RAGContextID, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("failed to read rag context id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit test: %w", err)
	}

	logger.Debug("Test logged",
		zap.Int64("experiment_id", experimentID),
		zap.Int64("prompt_id", ids.PromptID),
		zap.Int64("response_id", ids.ResponseID),
		zap.Bool("is_hallucination", isHallucination),
	)

	return ids, nil
}

func (c *Client) GetRAGContext(promptID int64) (*models.RAGContext, error) {
	var rc models.RAGContext
	var docsJSON, scoresJSON string

	err := c.db.QueryRow(`
		SELECT context_id, prompt_id, retrieved_documents, relevance_scores, num_documents
		FROM rag_context WHERE prompt_id = ?`, promptID,
	).Scan(&rc.ID, &rc.PromptID, &docsJSON, &scoresJSON, &rc.NumDocuments)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: prompt %d", ErrRAGContextNotFound, promptID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rag context: %w", err)
	}

	if err := json.Unmarshal([]byte(docsJSON), &rc.RetrievedDocuments); err != nil {
		return nil, fmt.Errorf("failed to decode retrieved documents: %w", err)
	}
	if err := json.Unmarshal([]byte(scoresJSON), &rc.RelevanceScores); err != nil {
		return nil, fmt.Errorf("failed to decode relevance scores: %w", err)
	}

	return &rc, nil
}

func withDefaults(meta models.TestMetadata) models.TestMetadata {
	if meta.PromptCategory == "" {
		meta.PromptCategory = "general"
	}
	if meta.VectorType == "" {
		meta.VectorType = "unknown"
	}
	if meta.HallucinationType == "" {
		meta.HallucinationType = models.HallucinationUnknown
	}
	if meta.Severity == "" {
		meta.Severity = models.SeverityLow
	}
	return meta
}

func nonNil(docs []string) []string {
	if docs == nil {
		return []string{}
	}
	return docs
}

func nonNilScores(scores []float64) []float64 {
	if scores == nil {
		return []float64{}
	}
	return scores
}
