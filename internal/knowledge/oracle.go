package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hallucination-lab/backend/internal/embedding"
	"github.com/hallucination-lab/backend/internal/metrics"
	"github.com/hallucination-lab/backend/internal/vector"
	"github.com/hallucination-lab/backend/pkg/logger"
	"github.com/hallucination-lab/backend/pkg/utils"
)

const DefaultTopK = 3

var ErrEmptyText = errors.New("document text is empty")

// Document is the caller-facing input to AddDocuments.
type Document struct {
	Text     string            `json:"text" validate:"required"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Retrieval holds the passages for one query, best first. Scores[i] belongs
// to Documents[i] and lies in (0, 1].
type Retrieval struct {
	Documents []string            `json:"documents"`
	Scores    []float64           `json:"scores"`
	IDs       []string            `json:"ids"`
	Metadata  []map[string]string `json:"metadata"`
}

// Oracle answers similarity queries against one knowledge-base collection.
type Oracle struct {
	index    vector.Index
	embedder embedding.Embedder
}

func NewOracle(index vector.Index, embedder embedding.Embedder) (*Oracle, error) {
	if dims := index.Collection().Dimensions; dims != embedder.Dimensions() {
		return nil, fmt.Errorf("%w: index has %d, embedder %s produces %d",
			vector.ErrDimensionMismatch, dims, embedder.Model(), embedder.Dimensions())
	}
	return &Oracle{index: index, embedder: embedder}, nil
}

// Open ensures the collection exists and returns an oracle over it.
func Open(ctx context.Context, index vector.Index, embedder embedding.Embedder) (*Oracle, error) {
	o, err := NewOracle(index, embedder)
	if err != nil {
		return nil, err
	}
	if err := index.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}
	if _, err := o.Count(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Oracle) Collection() vector.Collection { return o.index.Collection() }

// AddDocuments embeds docs in one batch and stores them. Ids are derived from
// the text, so re-adding an identical passage is a no-op. It returns the
// number of documents newly stored.
func (o *Oracle) AddDocuments(ctx context.Context, docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	texts := make([]string, len(docs))
	entries := make([]vector.Document, len(docs))
	for i, d := range docs {
		if strings.TrimSpace(d.Text) == "" {
			return 0, fmt.Errorf("document %d: %w", i, ErrEmptyText)
		}
		texts[i] = d.Text
		entries[i] = vector.Document{
			ID:       utils.ContentID("doc", d.Text),
			Text:     d.Text,
			Metadata: d.Metadata,
		}
	}

	embeddings, err := o.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed documents: %w", err)
	}

	n, err := o.index.Insert(ctx, entries, embeddings)
	if err != nil {
		return 0, fmt.Errorf("failed to store documents: %w", err)
	}

	logger.Info("Added documents to knowledge base",
		zap.String("collection", o.index.Collection().Name),
		zap.Int("submitted", len(docs)),
		zap.Int("added", n),
	)

	if _, err := o.Count(ctx); err != nil {
		return n, err
	}
	return n, nil
}

// Query returns up to k passages most similar to text. Scores are
// 1/(1+distance).
func (o *Oracle) Query(ctx context.Context, text string, k int) (*Retrieval, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	embeddings, err := o.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(embeddings))
	}

	matches, err := o.index.Search(ctx, embeddings[0], k)
	if err != nil {
		return nil, fmt.Errorf("failed to search knowledge base: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	r := &Retrieval{
		Documents: make([]string, 0, len(matches)),
		Scores:    make([]float64, 0, len(matches)),
		IDs:       make([]string, 0, len(matches)),
		Metadata:  make([]map[string]string, 0, len(matches)),
	}
	for _, m := range matches {
		r.Documents = append(r.Documents, m.Document.Text)
		r.Scores = append(r.Scores, Similarity(m.Distance))
		r.IDs = append(r.IDs, m.Document.ID)
		r.Metadata = append(r.Metadata, m.Document.Metadata)
	}

	metrics.RetrievalResultsCount.Observe(float64(len(r.Documents)))

	logger.Debug("Knowledge base query",
		zap.Int("k", k),
		zap.Int("results", len(r.Documents)),
	)

	return r, nil
}

// Similarity maps a non-negative distance onto (0, 1].
func Similarity(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1 / (1 + distance)
}

// Clear drops every document, keeping the collection's name and description.
func (o *Oracle) Clear(ctx context.Context) error {
	if err := o.index.Reset(ctx); err != nil {
		return fmt.Errorf("failed to clear knowledge base: %w", err)
	}
	metrics.KnowledgeDocuments.Set(0)
	logger.Info("Knowledge base cleared", zap.String("collection", o.index.Collection().Name))
	return nil
}

func (o *Oracle) Count(ctx context.Context) (int, error) {
	n, err := o.index.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	metrics.KnowledgeDocuments.Set(float64(n))
	return n, nil
}

func (o *Oracle) Close() error {
	return o.index.Close()
}
