package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hallucination-lab/backend/internal/storage/models"
)

var (
	ErrUnknownClass = errors.New("unknown vector class")
	ErrEmptyPrompt  = errors.New("vector prompt is empty")
)

// Class groups vectors by what they are meant to provoke.
type Class string

const (
	ClassIntentional   Class = "intentional"
	ClassUnintentional Class = "unintentional"
	ClassControl       Class = "control"
)

var Classes = []Class{ClassIntentional, ClassUnintentional, ClassControl}

func (c Class) Valid() bool {
	for _, known := range Classes {
		if c == known {
			return true
		}
	}
	return false
}

func ParseClass(value string) (Class, error) {
	c := Class(strings.ToLower(strings.TrimSpace(value)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownClass, value)
	}
	return c, nil
}

// Vector is one categorized test prompt. ExpectedHallucination is nil when
// the outcome is genuinely uncertain.
type Vector struct {
	Class                 Class           `yaml:"class" json:"class"`
	Prompt                string          `yaml:"prompt" json:"prompt"`
	Category              string          `yaml:"category" json:"category"`
	ExpectedHallucination *bool           `yaml:"expected_hallucination" json:"expected_hallucination"`
	Description           string          `yaml:"description" json:"description"`
	Severity              models.Severity `yaml:"severity" json:"severity"`
}

type Counts struct {
	Intentional   int `json:"intentional"`
	Unintentional int `json:"unintentional"`
	Control       int `json:"control"`
	Total         int `json:"total"`
}

// Catalog holds the vectors by class in insertion order.
type Catalog struct {
	vectors map[Class][]Vector
}

// Default returns the built-in cybersecurity vector set.
func Default() *Catalog {
	c := &Catalog{vectors: make(map[Class][]Vector, len(Classes))}
	c.vectors[ClassIntentional] = withClass(ClassIntentional, intentionalVectors())
	c.vectors[ClassUnintentional] = withClass(ClassUnintentional, unintentionalVectors())
	c.vectors[ClassControl] = withClass(ClassControl, controlVectors())
	return c
}

// Extend validates and appends vectors. Nothing is added if any vector is
// rejected.
func (c *Catalog) Extend(vectors ...Vector) error {
	normalized := make([]Vector, 0, len(vectors))
	for i, v := range vectors {
		if !v.Class.Valid() {
			return fmt.Errorf("vector %d: %w: %q", i, ErrUnknownClass, v.Class)
		}
		if strings.TrimSpace(v.Prompt) == "" {
			return fmt.Errorf("vector %d: %w", i, ErrEmptyPrompt)
		}
		if v.Severity == "" {
			v.Severity = models.SeverityLow
		}
		if !v.Severity.Valid() {
			return fmt.Errorf("vector %d: %w: %q", i, models.ErrInvalidSeverity, v.Severity)
		}
		if v.Category == "" {
			v.Category = "general"
		}
		normalized = append(normalized, v)
	}

	for _, v := range normalized {
		c.vectors[v.Class] = append(c.vectors[v.Class], v)
	}
	return nil
}

// Vectors returns a copy of the vectors in one class.
func (c *Catalog) Vectors(class Class) []Vector {
	src := c.vectors[class]
	out := make([]Vector, len(src))
	copy(out, src)
	return out
}

// All returns every vector, intentional first, then unintentional, then control.
func (c *Catalog) All() []Vector {
	out := make([]Vector, 0, c.Counts().Total)
	for _, class := range Classes {
		out = append(out, c.vectors[class]...)
	}
	return out
}

func (c *Catalog) ByClass() map[Class][]Vector {
	out := make(map[Class][]Vector, len(Classes))
	for _, class := range Classes {
		out[class] = c.Vectors(class)
	}
	return out
}

func (c *Catalog) Counts() Counts {
	counts := Counts{
		Intentional:   len(c.vectors[ClassIntentional]),
		Unintentional: len(c.vectors[ClassUnintentional]),
		Control:       len(c.vectors[ClassControl]),
	}
	counts.Total = counts.Intentional + counts.Unintentional + counts.Control
	return counts
}

func withClass(class Class, vectors []Vector) []Vector {
	for i := range vectors {
		vectors[i].Class = class
	}
	return vectors
}
