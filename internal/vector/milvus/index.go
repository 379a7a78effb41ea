package milvus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/hallucination-lab/backend/internal/vector"
	"github.com/hallucination-lab/backend/pkg/logger"
	"github.com/hallucination-lab/backend/pkg/utils"
)

const (
	fieldID        = "doc_id"
	fieldEmbedding = "embedding"
	fieldText      = "text"
	fieldMetadata  = "metadata"

	maxTextLength = 8192
)

// Index stores a collection in Milvus or Zilliz Cloud. Distances are
// squared L2.
type Index struct {
	client     client.Client
	collection vector.Collection
}

func Open(ctx context.Context, endpoint, apiKey string, collection vector.Collection) (*Index, error) {
	if err := collection.Validate(); err != nil {
		return nil, fmt.Errorf("invalid collection %q: %w", collection.Name, err)
	}

	c, err := client.NewClient(ctx, client.Config{
		Address: endpoint,
		APIKey:  apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collection.Name),
	)

	return &Index{client: c, collection: collection}, nil
}

func (m *Index) Collection() vector.Collection { return m.collection }

func (m *Index) Close() error {
	return m.client.Close()
}

func (m *Index) schema() *entity.Schema {
	return &entity.Schema{
		CollectionName: m.collection.Name,
		Description:    m.collection.Description,
		Fields: []*entity.Field{
			{
				Name:       fieldID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     fieldEmbedding,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(m.collection.Dimensions),
				},
			},
			{
				Name:     fieldText,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": strconv.Itoa(maxTextLength),
				},
			},
			{
				Name:     fieldMetadata,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "2048",
				},
			},
		},
	}
}

func (m *Index) EnsureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Debug("Collection already exists", zap.String("collection", m.collection.Name))
		return m.client.LoadCollection(ctx, m.collection.Name, false)
	}

	return m.create(ctx)
}

func (m *Index) create(ctx context.Context) error {
	if err := m.client.CreateCollection(ctx, m.schema(), entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexFlat(entity.L2)
	if err != nil {
		return fmt.Errorf("failed to build index spec: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.collection.Name, fieldEmbedding, idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := m.client.LoadCollection(ctx, m.collection.Name, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collection.Name))
	return nil
}

func (m *Index) Insert(ctx context.Context, docs []vector.Document, embeddings [][]float32) (int, error) {
	if len(docs) != len(embeddings) {
		return 0, vector.ErrLengthMismatch
	}
	if len(docs) == 0 {
		return 0, nil
	}

	existing, err := m.existing(ctx, docs)
	if err != nil {
		return 0, err
	}

	var (
		ids     []string
		vectors [][]float32
		texts   []string
		metas   []string
	)
	seen := make(map[string]bool, len(docs))

	for i, doc := range docs {
		if existing[doc.ID] || seen[doc.ID] {
			continue
		}
		if len(embeddings[i]) != m.collection.Dimensions {
			return 0, fmt.Errorf("%w: document %s has %d, collection has %d",
				vector.ErrDimensionMismatch, doc.ID, len(embeddings[i]), m.collection.Dimensions)
		}

		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return 0, fmt.Errorf("failed to encode metadata: %w", err)
		}

		seen[doc.ID] = true
		ids = append(ids, doc.ID)
		vectors = append(vectors, embeddings[i])
		texts = append(texts, utils.Clip(doc.Text, maxTextLength))
		metas = append(metas, string(meta))
	}

	if len(ids) == 0 {
		return 0, nil
	}

	_, err = m.client.Insert(
		ctx,
		m.collection.Name,
		"",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnFloatVector(fieldEmbedding, m.collection.Dimensions, vectors),
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnVarChar(fieldMetadata, metas),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert documents: %w", err)
	}

	if err := m.client.Flush(ctx, m.collection.Name, false); err != nil {
		return 0, fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Documents indexed",
		zap.String("collection", m.collection.Name),
		zap.Int("inserted", len(ids)),
		zap.Int("skipped", len(docs)-len(ids)),
	)

	return len(ids), nil
}

func (m *Index) existing(ctx context.Context, docs []vector.Document) (map[string]bool, error) {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}

	rs, err := m.client.Query(ctx, m.collection.Name, nil, idsExpr(ids), []string{fieldID})
	if err != nil {
		return nil, fmt.Errorf("failed to query existing documents: %w", err)
	}

	found := make(map[string]bool)
	col := rs.GetColumn(fieldID)
	if col == nil {
		return found, nil
	}
	for i := 0; i < col.Len(); i++ {
		found[columnString(col, i)] = true
	}
	return found, nil
}

func (m *Index) Search(ctx context.Context, embedding []float32, k int) ([]vector.Match, error) {
	if k <= 0 {
		return []vector.Match{}, nil
	}
	if len(embedding) != m.collection.Dimensions {
		return nil, fmt.Errorf("%w: query has %d, collection has %d",
			vector.ErrDimensionMismatch, len(embedding), m.collection.Dimensions)
	}

	sp, err := entity.NewIndexFlatSearchParam()
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	results, err := m.client.Search(
		ctx,
		m.collection.Name,
		[]string{},
		"",
		[]string{fieldID, fieldText, fieldMetadata},
		[]entity.Vector{entity.FloatVector(embedding)},
		fieldEmbedding,
		entity.L2,
		k,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	matches := make([]vector.Match, 0, k)
	for _, sr := range results {
		idCol := sr.Fields.GetColumn(fieldID)
		textCol := sr.Fields.GetColumn(fieldText)
		metaCol := sr.Fields.GetColumn(fieldMetadata)
		if idCol == nil || textCol == nil || metaCol == nil {
			return nil, fmt.Errorf("search result missing output fields")
		}

		for i := 0; i < sr.ResultCount; i++ {
			id := columnString(idCol, i)
			text := columnString(textCol, i)
			rawMeta := columnString(metaCol, i)

			var meta map[string]string
			if rawMeta != "" && rawMeta != "null" {
				if err := json.Unmarshal([]byte(rawMeta), &meta); err != nil {
					return nil, fmt.Errorf("failed to decode metadata: %w", err)
				}
			}

			matches = append(matches, vector.Match{
				Document: vector.Document{ID: id, Text: text, Metadata: meta},
				Distance: float64(sr.Scores[i]),
			})
		}
	}

	logger.Debug("Vector search completed",
		zap.Int("topK", k),
		zap.Int("results", len(matches)),
	)

	return matches, nil
}

func (m *Index) Count(ctx context.Context) (int, error) {
	stats, err := m.client.GetCollectionStatistics(ctx, m.collection.Name)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection statistics: %w", err)
	}

	n, err := strconv.Atoi(stats["row_count"])
	if err != nil {
		return 0, fmt.Errorf("failed to parse row count %q: %w", stats["row_count"], err)
	}
	return n, nil
}

func (m *Index) Reset(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		if err := m.client.DropCollection(ctx, m.collection.Name); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
		logger.Warn("Collection dropped", zap.String("collection", m.collection.Name))
	}

	return m.create(ctx)
}

func columnString(col entity.Column, i int) string {
	v, err := col.Get(i)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// idsExpr builds a boolean filter matching any of ids.
func idsExpr(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = strconv.Quote(id)
	}
	return fieldID + " in [" + strings.Join(quoted, ", ") + "]"
}
