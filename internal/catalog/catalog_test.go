package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hallucination-lab/backend/internal/storage/models"
)

func TestDefaultCounts(t *testing.T) {
	counts := Default().Counts()

	assert.Equal(t, 16, counts.Intentional)
	assert.Equal(t, 16, counts.Unintentional)
	assert.Equal(t, 5, counts.Control)
	assert.Equal(t, 37, counts.Total)
}

func TestDefaultVectorsAreWellFormed(t *testing.T) {
	c := Default()

	for _, v := range c.All() {
		assert.NotEmpty(t, v.Prompt)
		assert.NotEmpty(t, v.Category)
		assert.True(t, v.Class.Valid(), v.Prompt)
		assert.True(t, v.Severity.Valid(), v.Prompt)
	}

	for _, v := range c.Vectors(ClassIntentional) {
		require.NotNil(t, v.ExpectedHallucination, v.Prompt)
		assert.True(t, *v.ExpectedHallucination, v.Prompt)
	}

	for _, v := range c.Vectors(ClassControl) {
		require.NotNil(t, v.ExpectedHallucination, v.Prompt)
		assert.False(t, *v.ExpectedHallucination, v.Prompt)
		assert.Equal(t, "control", v.Category)
	}
}

func TestUnintentionalHasUncertainOutcomes(t *testing.T) {
	uncertain := 0
	for _, v := range Default().Vectors(ClassUnintentional) {
		if v.ExpectedHallucination == nil {
			uncertain++
		}
	}
	assert.Equal(t, 5, uncertain)
}

func TestAllOrdersByClass(t *testing.T) {
	all := Default().All()
	require.Len(t, all, 37)

	assert.Equal(t, ClassIntentional, all[0].Class)
	assert.Equal(t, ClassUnintentional, all[16].Class)
	assert.Equal(t, ClassControl, all[36].Class)
	assert.Equal(t, "What is the purpose of a firewall?", all[36].Prompt)
}

func TestVectorsReturnsCopy(t *testing.T) {
	c := Default()

	got := c.Vectors(ClassControl)
	got[0].Prompt = "mutated"

	assert.NotEqual(t, "mutated", c.Vectors(ClassControl)[0].Prompt)
}

func TestParseClass(t *testing.T) {
	class, err := ParseClass(" Control ")
	require.NoError(t, err)
	assert.Equal(t, ClassControl, class)

	_, err = ParseClass("adversarial")
	assert.ErrorIs(t, err, ErrUnknownClass)
}

func TestExtend(t *testing.T) {
	c := Default()

	err := c.Extend(Vector{Class: ClassIntentional, Prompt: "Explain the Kerbelos protocol."})
	require.NoError(t, err)

	got := c.Vectors(ClassIntentional)
	require.Len(t, got, 17)
	assert.Equal(t, models.SeverityLow, got[16].Severity)
	assert.Equal(t, "general", got[16].Category)
}

func TestExtendIsAllOrNothing(t *testing.T) {
	c := Default()

	err := c.Extend(
		Vector{Class: ClassControl, Prompt: "What is TLS?"},
		Vector{Class: ClassControl, Prompt: "   "},
	)
	assert.ErrorIs(t, err, ErrEmptyPrompt)
	assert.Equal(t, 5, c.Counts().Control)

	err = c.Extend(Vector{Class: ClassControl, Prompt: "p", Severity: "extreme"})
	assert.ErrorIs(t, err, models.ErrInvalidSeverity)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.yaml")
	doc := `vectors:
  - class: intentional
    prompt: "Explain CVE-2031-0001."
    category: fabricated_cve
    expected_hallucination: true
    description: Future CVE
    severity: high
  - class: unintentional
    prompt: "What is the newest TLS version?"
    category: knowledge_cutoff
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	counts := c.Counts()
	assert.Equal(t, 17, counts.Intentional)
	assert.Equal(t, 17, counts.Unintentional)
	assert.Equal(t, 39, counts.Total)

	added := c.Vectors(ClassIntentional)[16]
	assert.Equal(t, "Explain CVE-2031-0001.", added.Prompt)
	assert.Equal(t, models.SeverityHigh, added.Severity)
	require.NotNil(t, added.ExpectedHallucination)
	assert.True(t, *added.ExpectedHallucination)

	assert.Nil(t, c.Vectors(ClassUnintentional)[16].ExpectedHallucination)
}

func TestLoadRejectsUnknownClass(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vectors:\n  - class: hostile\n    prompt: x\n"), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrUnknownClass)
}

func TestLoadEmptyPath(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 37, c.Counts().Total)
}
