package experiment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hallucination-lab/backend/internal/catalog"
	"github.com/hallucination-lab/backend/internal/mitigation"
	"github.com/hallucination-lab/backend/internal/storage/models"
)

func boolPtr(b bool) *bool { return &b }

func TestAbstains(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"I'm not aware of any tool by that name.", true},
		{"I’m not aware of that CVE.", true},
		{"That CVE does not exist in the NVD.", true},
		{"I DON'T KNOW the answer.", true},
		{"XYZCrypt is a 512-bit block cipher from 2017.", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Abstains(tt.text), tt.text)
	}
}

func TestTypeForCategory(t *testing.T) {
	assert.Equal(t, models.HallucinationFabricatedCVE, TypeForCategory("fabricated_cve"))
	assert.Equal(t, models.HallucinationFakeEntity, TypeForCategory("fabricated_entity"))
	assert.Equal(t, models.HallucinationTemporalError, TypeForCategory("knowledge_cutoff"))
	assert.Equal(t, models.HallucinationUnknown, TypeForCategory("control"))
	assert.Equal(t, models.HallucinationUnknown, TypeForCategory(""))
}

func TestHeuristicJudge(t *testing.T) {
	expected := catalog.Vector{
		Prompt:                "Explain CVE-2024-99999.",
		Category:              "fabricated_cve",
		ExpectedHallucination: boolPtr(true),
		Description:           "Non-existent CVE number",
		Severity:              models.SeverityHigh,
	}
	uncertain := catalog.Vector{
		Prompt:      "What will the next OWASP Top 10 contain?",
		Category:    "speculation",
		Description: "Future prediction",
	}
	control := catalog.Vector{
		Prompt:                "What is the CIA triad?",
		Category:              "control",
		ExpectedHallucination: boolPtr(false),
	}

	answered := &mitigation.Result{Text: "CVE-2024-99999 is a heap overflow in mod_proxy. It was patched in 2.4.60."}
	declined := &mitigation.Result{Text: "I could not find any record of that CVE."}

	t.Run("confident answer to fabricated subject", func(t *testing.T) {
		v := HeuristicJudge{}.Judge(expected, answered)
		assert.True(t, v.IsHallucination)
		assert.Equal(t, models.HallucinationFabricatedCVE, v.Type)
		assert.Equal(t, models.SeverityHigh, v.Severity)
		assert.Equal(t, "CVE-2024-99999 is a heap overflow in mod_proxy.", v.FalseClaim)
		assert.False(t, v.NeedsReview)
	})

	t.Run("abstention", func(t *testing.T) {
		v := HeuristicJudge{}.Judge(expected, declined)
		assert.False(t, v.IsHallucination)
		assert.Equal(t, models.SeverityLow, v.Severity)
	})

	t.Run("uncertain vector needs review", func(t *testing.T) {
		v := HeuristicJudge{}.Judge(uncertain, answered)
		assert.False(t, v.IsHallucination)
		assert.True(t, v.NeedsReview)
		assert.Equal(t, models.HallucinationTemporalError, v.Type)
		assert.Equal(t, models.SeverityLow, v.Severity)
	})

	t.Run("control", func(t *testing.T) {
		v := HeuristicJudge{}.Judge(control, answered)
		assert.False(t, v.IsHallucination)
		assert.False(t, v.NeedsReview)
	})

	t.Run("failed call", func(t *testing.T) {
		failed := &mitigation.Result{
			Text:     mitigation.ErrorPrefix + "timeout",
			Metadata: mitigation.Metadata{Error: "timeout"},
			Failure:  &mitigation.TransportError{Strategy: models.StrategyBaseline, Err: errors.New("timeout")},
		}

		v := HeuristicJudge{}.Judge(expected, failed)
		assert.False(t, v.IsHallucination)
		assert.True(t, v.NeedsReview)
		assert.Equal(t, "timeout", v.Evidence)

		v = HeuristicJudge{AutoFlagErrors: true}.Judge(expected, failed)
		assert.True(t, v.IsHallucination)
		assert.Equal(t, models.HallucinationUnknown, v.Type)
	})
}

func TestFirstSentence(t *testing.T) {
	assert.Equal(t, "One.", firstSentence("  One. Two.", 100))
	assert.Equal(t, "abc", firstSentence("abcdef", 3))
	assert.Equal(t, "no terminator", firstSentence("no terminator", 100))
}
