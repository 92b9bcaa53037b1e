// Package search mirrors listings into an Elasticsearch index for full-text
// lookups. The relational store stays authoritative; the index only answers
// "which ids match".
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"business-directory/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const mapping = `{
  "mappings": {
    "properties": {
      "id":             {"type": "keyword"},
      "name":           {"type": "text"},
      "description":    {"type": "text"},
      "category":       {"type": "keyword"},
      "city":           {"type": "keyword"},
      "city_lc":        {"type": "keyword"},
      "is_admin":       {"type": "boolean"},
      "average_rating": {"type": "float"},
      "created_at":     {"type": "date"}
    }
  }
}`

type document struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	City          string  `json:"city"`
	CityLower     string  `json:"city_lc"`
	IsAdmin       bool    `json:"is_admin"`
	AverageRating float64 `json:"average_rating"`
	CreatedAt     string  `json:"created_at"`
}

func toDocument(l *models.Listing) document {
	return document{
		ID:            l.ID,
		Name:          l.Name,
		Description:   l.Description,
		Category:      string(l.Category),
		City:          l.City,
		CityLower:     strings.ToLower(l.City),
		IsAdmin:       l.IsAdminListing,
		AverageRating: l.AverageRating,
		CreatedAt:     l.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// Query is a free-text search narrowed by exact category and city.
type Query struct {
	Text     string
	Category string
	City     string
	From     int
	Size     int
}

// Result carries matching listing ids in relevance order.
type Result struct {
	IDs       []string
	TotalHits int64
}

// Index mirrors listings into an Elasticsearch index.
type Index struct {
	client *elasticsearch.Client
	name   string
}

func NewIndex(client *elasticsearch.Client, name string) *Index {
	return &Index{client: client, name: name}
}

func (ix *Index) Name() string { return ix.name }

// EnsureIndex creates the index with its mapping when it does not exist.
func (ix *Index) EnsureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{ix.name}}.Do(ctx, ix.client)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}
	return ix.create(ctx)
}

func (ix *Index) create(ctx context.Context) error {
	res, err := esapi.IndicesCreateRequest{
		Index: ix.name,
		Body:  strings.NewReader(mapping),
	}.Do(ctx, ix.client)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return checkResponse(res, "create index")
}

func (ix *Index) IndexListing(ctx context.Context, l *models.Listing) error {
	body, err := json.Marshal(toDocument(l))
	if err != nil {
		return err
	}

	res, err := esapi.IndexRequest{
		Index:      ix.name,
		DocumentID: l.ID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, ix.client)
	if err != nil {
		return fmt.Errorf("index listing %s: %w", l.ID, err)
	}
	return checkResponse(res, "index listing")
}

func (ix *Index) DeleteListing(ctx context.Context, id string) error {
	res, err := esapi.DeleteRequest{Index: ix.name, DocumentID: id}.Do(ctx, ix.client)
	if err != nil {
		return fmt.Errorf("delete listing %s: %w", id, err)
	}
	if res.StatusCode == 404 {
		res.Body.Close()
		return nil
	}
	return checkResponse(res, "delete listing")
}

func buildQuery(q Query) map[string]interface{} {
	must := []interface{}{}
	filter := []interface{}{}

	if q.Text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     q.Text,
				"fields":    []string{"name^3", "description"},
				"type":      "best_fields",
				"fuzziness": "AUTO",
			},
		})
	}
	if q.Category != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"category": q.Category},
		})
	}
	if q.City != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"city_lc": strings.ToLower(q.City)},
		})
	}
	if len(must) == 0 {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	return map[string]interface{}{
		"_source": []string{"id"},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   must,
				"filter": filter,
			},
		},
	}
}

// Search returns matching listing ids ordered by relevance.
func (ix *Index) Search(ctx context.Context, q Query) (*Result, error) {
	if q.Size <= 0 || q.Size > 100 {
		q.Size = 50
	}
	if q.From < 0 {
		q.From = 0
	}

	body, err := json.Marshal(buildQuery(q))
	if err != nil {
		return nil, err
	}

	res, err := esapi.SearchRequest{
		Index: []string{ix.name},
		Body:  bytes.NewReader(body),
		From:  &q.From,
		Size:  &q.Size,
	}.Do(ctx, ix.client)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search failed: %s", res.String())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := &Result{TotalHits: r.Hits.Total.Value, IDs: make([]string, 0, len(r.Hits.Hits))}
	for _, h := range r.Hits.Hits {
		out.IDs = append(out.IDs, h.ID)
	}
	return out, nil
}

// Reindex drops the index and rebuilds it from listings with one bulk call.
func (ix *Index) Reindex(ctx context.Context, listings []*models.Listing) (int, error) {
	res, err := esapi.IndicesDeleteRequest{
		Index:             []string{ix.name},
		IgnoreUnavailable: esapi.BoolPtr(true),
	}.Do(ctx, ix.client)
	if err != nil {
		return 0, fmt.Errorf("drop index: %w", err)
	}
	res.Body.Close()

	if err := ix.create(ctx); err != nil {
		return 0, err
	}
	if len(listings) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, l := range listings {
		meta := map[string]interface{}{"index": map[string]interface{}{"_id": l.ID}}
		if err := enc.Encode(meta); err != nil {
			return 0, err
		}
		if err := enc.Encode(toDocument(l)); err != nil {
			return 0, err
		}
	}

	res, err = esapi.BulkRequest{
		Index:   ix.name,
		Body:    &buf,
		Refresh: "true",
	}.Do(ctx, ix.client)
	if err != nil {
		return 0, fmt.Errorf("bulk index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("bulk index failed: %s", res.String())
	}

	var bulk struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulk); err != nil {
		return 0, fmt.Errorf("decode bulk response: %w", err)
	}

	indexed := 0
	for _, item := range bulk.Items {
		for _, result := range item {
			if result.Status < 300 {
				indexed++
			}
		}
	}
	if bulk.Errors {
		return indexed, fmt.Errorf("bulk index: %d of %d documents failed", len(listings)-indexed, len(listings))
	}
	return indexed, nil
}

func checkResponse(res *esapi.Response, op string) error {
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%s failed: %s %s", op, res.Status(), msg)
	}
	return nil
}
