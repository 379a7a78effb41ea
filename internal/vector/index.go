package vector

import (
	"context"
	"errors"
	"regexp"
)

var (
	ErrLengthMismatch    = errors.New("documents and embeddings differ in length")
	ErrDimensionMismatch = errors.New("embedding dimension does not match collection")
	ErrInvalidName       = errors.New("collection name must match [A-Za-z_][A-Za-z0-9_]*")
)

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Collection describes one named nearest-neighbour collection.
type Collection struct {
	Name        string
	Description string
	Dimensions  int
}

func (c Collection) Validate() error {
	if !namePattern.MatchString(c.Name) {
		return ErrInvalidName
	}
	if c.Dimensions <= 0 {
		return ErrDimensionMismatch
	}
	return nil
}

type Document struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Match is a search hit. Distance is the backend's own metric, smaller is
// closer.
type Match struct {
	Document Document
	Distance float64
}

// Index is a nearest-neighbour store bound to a single collection.
type Index interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context) error
	// Insert stores documents with their embeddings. Documents whose ID is
	// already present are skipped; the number actually stored is returned.
	Insert(ctx context.Context, docs []Document, embeddings [][]float32) (int, error)
	// Search returns up to k matches ordered by ascending distance.
	Search(ctx context.Context, embedding []float32, k int) ([]Match, error)
	Count(ctx context.Context) (int, error)
	// Reset drops the collection and recreates it empty with the same
	// name and description.
	Reset(ctx context.Context) error
	Collection() Collection
	Close() error
}
