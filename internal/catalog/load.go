package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type vectorFile struct {
	Vectors []Vector `yaml:"vectors"`
}

// LoadFile reads extra vectors from a YAML document of the form
//
//	vectors:
//	  - class: intentional
//	    prompt: "Explain CVE-2031-0001."
//	    category: fabricated_cve
//	    expected_hallucination: true
//	    severity: high
func LoadFile(path string) ([]Vector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vector file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) ([]Vector, error) {
	var f vectorFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse vector file: %w", err)
	}

	return f.Vectors, nil
}

// Load returns the default catalog extended with the vectors in path. An
// empty path yields the defaults alone.
func Load(path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	extra, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	if err := c.Extend(extra...); err != nil {
		return nil, fmt.Errorf("invalid vector file %s: %w", path, err)
	}

	return c, nil
}
