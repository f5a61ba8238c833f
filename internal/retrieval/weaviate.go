package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// DefaultWeaviateClass is the class holding legal passages.
const DefaultWeaviateClass = "LegalPassage"

// WeaviateIndex searches passages stored in a Weaviate class with
// externally computed vectors.
type WeaviateIndex struct {
	client    *weaviate.Client
	embedder  Embedder
	className string
	topK      int
}

// NewWeaviateClient builds a client from a base URL such as
// "http://localhost:8080".
func NewWeaviateClient(rawURL string) (*weaviate.Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid weaviate url %q", rawURL)
	}
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return client, nil
}

func NewWeaviateIndex(client *weaviate.Client, embedder Embedder, className string, k int) (*WeaviateIndex, error) {
	if client == nil {
		return nil, fmt.Errorf("weaviate client is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if className == "" {
		className = DefaultWeaviateClass
	}
	return &WeaviateIndex{
		client:    client,
		embedder:  embedder,
		className: className,
		topK:      topK(k),
	}, nil
}

func (w *WeaviateIndex) schema() *models.Class {
	return &models.Class{
		Class:       w.className,
		Description: "Chunks of ingested legal and compliance documents.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: "content", DataType: []string{"text"}},
			{Name: "source", DataType: []string{"text"}},
			{Name: "chunk_index", DataType: []string{"int"}},
		},
	}
}

// EnsureSchema creates the passage class when it does not exist yet.
func (w *WeaviateIndex) EnsureSchema(ctx context.Context) error {
	if _, err := w.client.Schema().ClassGetter().WithClassName(w.className).Do(ctx); err == nil {
		return nil
	}
	if err := w.client.Schema().ClassCreator().WithClass(w.schema()).Do(ctx); err != nil {
		return fmt.Errorf("create class %s: %w", w.className, err)
	}
	return nil
}

func (w *WeaviateIndex) Search(ctx context.Context, query string) ([]Passage, error) {
	vector, err := embedQuery(ctx, w.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	nearVector := w.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "source"},
		{Name: "chunk_index"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	result, err := w.client.GraphQL().Get().
		WithClassName(w.className).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(w.topK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate search error: %s", result.Errors[0].Message)
	}

	return parseGetResponse(result, w.className)
}

type weaviatePassage struct {
	Content    string `json:"content"`
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunk_index"`
	Additional struct {
		Certainty float64 `json:"certainty"`
	} `json:"_additional"`
}

func parseGetResponse(result *models.GraphQLResponse, className string) ([]Passage, error) {
	get, ok := result.Data["Get"]
	if !ok {
		return []Passage{}, nil
	}
	raw, err := json.Marshal(get)
	if err != nil {
		return nil, fmt.Errorf("re-encode graphql data: %w", err)
	}
	var byClass map[string][]weaviatePassage
	if err := json.Unmarshal(raw, &byClass); err != nil {
		return nil, fmt.Errorf("parse graphql data: %w", err)
	}

	items := byClass[className]
	ret := make([]Passage, 0, len(items))
	for _, item := range items {
		ret = append(ret, Passage{
			Source:     item.Source,
			ChunkIndex: item.ChunkIndex,
			Content:    item.Content,
			Score:      item.Additional.Certainty,
		})
	}
	return ret, nil
}

func (w *WeaviateIndex) sourceFilter(source string) *filters.WhereBuilder {
	return filters.Where().
		WithPath([]string{"source"}).
		WithOperator(filters.Equal).
		WithValueString(source)
}

func (w *WeaviateIndex) Upsert(ctx context.Context, source string, passages []Passage) error {
	if err := w.DeleteSource(ctx, source); err != nil {
		return err
	}
	if len(passages) == 0 {
		return nil
	}

	objects := make([]*models.Object, 0, len(passages))
	for _, p := range passages {
		objects = append(objects, &models.Object{
			Class: w.className,
			Properties: map[string]interface{}{
				"content":     p.Content,
				"source":      source,
				"chunk_index": p.ChunkIndex,
			},
			Vector: p.Embedding,
		})
	}

	resp, err := w.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("batch import failed: %w", err)
	}
	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch import of %s: %s", source, obj.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

func (w *WeaviateIndex) DeleteSource(ctx context.Context, source string) error {
	_, err := w.client.Batch().ObjectsBatchDeleter().
		WithClassName(w.className).
		WithWhere(w.sourceFilter(source)).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("delete passages for %s: %w", source, err)
	}
	return nil
}

func (w *WeaviateIndex) Count(ctx context.Context) (int, error) {
	result, err := w.client.GraphQL().Aggregate().
		WithClassName(w.className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("count passages: %w", err)
	}
	if len(result.Errors) > 0 {
		return 0, fmt.Errorf("count passages: %s", result.Errors[0].Message)
	}

	raw, err := json.Marshal(result.Data["Aggregate"])
	if err != nil {
		return 0, fmt.Errorf("re-encode aggregate: %w", err)
	}
	var agg map[string][]struct {
		Meta struct {
			Count int `json:"count"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(raw, &agg); err != nil {
		return 0, fmt.Errorf("parse aggregate: %w", err)
	}
	if rows := agg[w.className]; len(rows) > 0 {
		return rows[0].Meta.Count, nil
	}
	return 0, nil
}

func (w *WeaviateIndex) Close() error {
	return nil
}
