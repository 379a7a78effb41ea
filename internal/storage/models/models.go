package models

import (
	"fmt"
	"time"
)

type Experiment struct {
	ID          int64
	Name        string
	Description string
	Strategy    Strategy
	CreatedAt   time.Time
	ModelName   string
	Temperature float32
	MaxTokens   int
	Notes       string
}

// ExperimentOptions snapshots the generation config for a new experiment.
// Zero values fall back to the store defaults.
type ExperimentOptions struct {
	ModelName   string
	Temperature *float32
	MaxTokens   int
	Notes       string
}

type TestPrompt struct {
	ID                    int64
	ExperimentID          int64
	Text                  string
	Category              string
	Intent                string
	ExpectedHallucination *bool
	VectorType            string
	CreatedAt             time.Time
}

type Response struct {
	ID             int64
	PromptID       int64
	Text           string
	ResponseTimeMS float64
	TokensUsed     int
	CreatedAt      time.Time
}

type Hallucination struct {
	ID              int64
	ResponseID      int64
	IsHallucination bool
	Type            HallucinationType
	Severity        Severity
	Description     string
	Evidence        string
	FalseClaim      string
	AnnotatedAt     time.Time
}

type RAGContext struct {
	ID                 int64
	PromptID           int64
	RetrievedDocuments []string
	RelevanceScores    []float64
	NumDocuments       int
}

// TestMetadata carries everything LogTest records next to the prompt,
// response and verdict. Empty fields take the documented defaults.
type TestMetadata struct {
	PromptCategory        string
	Intent                string
	ExpectedHallucination *bool
	VectorType            string

	ResponseTimeMS float64
	TokensUsed     int

	HallucinationType HallucinationType
	Severity          Severity
	Description       string
	Evidence          string
	FalseClaim        string

	// RAG is set only for retrieval-augmented tests.
	RAG *RAGSnapshot
}

type RAGSnapshot struct {
	Documents []string
	Scores    []float64
}

type TestIDs struct {
	PromptID        int64
	ResponseID      int64
	HallucinationID int64
	RAGContextID    int64
}

// ResultRow is one joined experiment/prompt/response/annotation tuple.
type ResultRow struct {
	ExperimentID      int64
	ExperimentName    string
	Strategy          Strategy
	PromptText        string
	PromptCategory    string
	VectorType        string
	ResponseText      string
	ResponseTimeMS    float64
	TokensUsed        int
	IsHallucination   bool
	HallucinationType HallucinationType
	Severity          Severity
	Description       string
	FalseClaim        string
	CreatedAt         time.Time
}

type ExperimentSummary struct {
	ExperimentID           int64
	Name                   string
	Strategy               Strategy
	CreatedAt              time.Time
	TotalTests             int
	HallucinationsDetected int
	HallucinationRate      string
}

type StrategyStats struct {
	Strategy          Strategy
	TotalTests        int
	Hallucinations    int
	HallucinationRate string
}

type Statistics struct {
	TotalExperiments int
	TotalTests       int
	ByStrategy       []StrategyStats
}

// FormatRate renders hallucinations/total as a percentage with two decimals.
// An empty denominator reports "0.00%".
func FormatRate(hallucinations, total int) string {
	if total <= 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(hallucinations)/float64(total)*100)
}
