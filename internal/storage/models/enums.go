package models

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidStrategy          = errors.New("invalid mitigation strategy")
	ErrInvalidHallucinationType = errors.New("invalid hallucination type")
	ErrInvalidSeverity          = errors.New("invalid severity")
)

// Strategy is the mitigation applied to a prompt before it reaches the model.
type Strategy string

const (
	StrategyBaseline         Strategy = "baseline"
	StrategyRAG              Strategy = "rag"
	StrategyConstitutionalAI Strategy = "constitutional_ai"
	StrategyChainOfThought   Strategy = "chain_of_thought"
)

var Strategies = []Strategy{
	StrategyBaseline,
	StrategyRAG,
	StrategyConstitutionalAI,
	StrategyChainOfThought,
}

func (s Strategy) String() string { return string(s) }

func (s Strategy) Valid() bool {
	for _, known := range Strategies {
		if s == known {
			return true
		}
	}
	return false
}

func ParseStrategy(value string) (Strategy, error) {
	s := Strategy(value)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStrategy, value)
	}
	return s, nil
}

type HallucinationType string

const (
	HallucinationFactualError           HallucinationType = "factual_error"
	HallucinationFabricatedCitation     HallucinationType = "fabricated_citation"
	HallucinationFakeEntity             HallucinationType = "fake_entity"
	HallucinationTemporalError          HallucinationType = "temporal_error"
	HallucinationSecurityMisinformation HallucinationType = "security_misinformation"
	HallucinationFabricatedCVE          HallucinationType = "fabricated_cve"
	HallucinationFakeTool               HallucinationType = "fake_tool"
	HallucinationConfabulation          HallucinationType = "confabulation"
	HallucinationUnknown                HallucinationType = "unknown"
)

var HallucinationTypes = []HallucinationType{
	HallucinationFactualError,
	HallucinationFabricatedCitation,
	HallucinationFakeEntity,
	HallucinationTemporalError,
	HallucinationSecurityMisinformation,
	HallucinationFabricatedCVE,
	HallucinationFakeTool,
	HallucinationConfabulation,
	HallucinationUnknown,
}

func (h HallucinationType) String() string { return string(h) }

func (h HallucinationType) Valid() bool {
	for _, known := range HallucinationTypes {
		if h == known {
			return true
		}
	}
	return false
}

// Severity is ordered: low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

func (s Severity) String() string { return string(s) }

// Rank returns the position of s in the severity order, or -1 if unknown.
func (s Severity) Rank() int {
	for i, known := range Severities {
		if s == known {
			return i
		}
	}
	return -1
}

func (s Severity) Valid() bool { return s.Rank() >= 0 }
