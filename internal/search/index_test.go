package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"business-directory/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

// fakeTransport answers every request with the next queued response.
type fakeTransport struct {
	mu        sync.Mutex
	responses []*http.Response
	requests  []recordedRequest
}

func (f *fakeTransport) queue(status int, body string) {
	f.responses = append(f.responses, &http.Response{
		StatusCode: status,
		Header:     http.Header{"X-Elastic-Product": []string{"Elasticsearch"}, "Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	})
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	f.requests = append(f.requests, recordedRequest{Method: req.Method, Path: req.URL.Path, Body: string(body)})

	if len(f.responses) == 0 {
		return &http.Response{
			StatusCode: http.StatusInternalServerError,
			Header:     http.Header{"X-Elastic-Product": []string{"Elasticsearch"}},
			Body:       io.NopCloser(bytes.NewReader(nil)),
		}, nil
	}
	res := f.responses[0]
	f.responses = f.responses[1:]
	return res, nil
}

func newTestIndex(t *testing.T) (*Index, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://es.test:9200"},
		Transport: ft,
	})
	require.NoError(t, err)
	return NewIndex(client, "listings"), ft
}

func listing(id, name, city string) *models.Listing {
	return &models.Listing{
		ID:        id,
		Name:      name,
		Category:  models.CategoryRestaurant,
		City:      city,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestEnsureIndex(t *testing.T) {
	ix, ft := newTestIndex(t)
	ft.queue(http.StatusNotFound, ``)
	ft.queue(http.StatusOK, `{"acknowledged":true}`)

	require.NoError(t, ix.EnsureIndex(context.Background()))

	require.Len(t, ft.requests, 2)
	assert.Equal(t, http.MethodHead, ft.requests[0].Method)
	assert.Equal(t, http.MethodPut, ft.requests[1].Method)
	assert.Contains(t, ft.requests[1].Body, `"city_lc"`)
}

func TestIndexListing_LowercasesCity(t *testing.T) {
	ix, ft := newTestIndex(t)
	ft.queue(http.StatusCreated, `{"result":"created"}`)

	require.NoError(t, ix.IndexListing(context.Background(), listing("b-1", "Joe's Pizza", "Austin")))

	require.Len(t, ft.requests, 1)
	assert.Equal(t, "/listings/_doc/b-1", ft.requests[0].Path)

	var doc document
	require.NoError(t, json.Unmarshal([]byte(ft.requests[0].Body), &doc))
	assert.Equal(t, "Austin", doc.City)
	assert.Equal(t, "austin", doc.CityLower)
}

func TestDeleteListing_MissingIsNotAnError(t *testing.T) {
	ix, ft := newTestIndex(t)
	ft.queue(http.StatusNotFound, `{"result":"not_found"}`)

	assert.NoError(t, ix.DeleteListing(context.Background(), "gone"))
}

func TestSearch(t *testing.T) {
	ix, ft := newTestIndex(t)
	ft.queue(http.StatusOK, `{"hits":{"total":{"value":2},"hits":[{"_id":"b-2"},{"_id":"b-1"}]}}`)

	res, err := ix.Search(context.Background(), Query{Text: "pizza", City: "AUSTIN", Category: "Restaurant"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b-2", "b-1"}, res.IDs)
	assert.Equal(t, int64(2), res.TotalHits)

	body := ft.requests[0].Body
	assert.Contains(t, body, `"multi_match"`)
	assert.Contains(t, body, `"city_lc":"austin"`)
	assert.Contains(t, body, `"category":"Restaurant"`)
}

func TestSearch_MatchAllWithoutText(t *testing.T) {
	q := buildQuery(Query{})
	raw, err := json.Marshal(q)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "match_all")
}

func TestSearch_ErrorResponse(t *testing.T) {
	ix, ft := newTestIndex(t)
	ft.queue(http.StatusBadRequest, `{"error":"bad query"}`)

	_, err := ix.Search(context.Background(), Query{Text: "x"})
	assert.ErrorContains(t, err, "search failed")
}

func TestReindex(t *testing.T) {
	ix, ft := newTestIndex(t)
	ft.queue(http.StatusOK, `{"acknowledged":true}`)
	ft.queue(http.StatusOK, `{"acknowledged":true}`)
	ft.queue(http.StatusOK, `{"errors":false,"items":[{"index":{"status":201}},{"index":{"status":201}}]}`)

	n, err := ix.Reindex(context.Background(), []*models.Listing{
		listing("b-1", "Joe's Pizza", "Austin"),
		listing("b-2", "Ann's Books", "Lucknow"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, ft.requests, 3)
	assert.Equal(t, http.MethodDelete, ft.requests[0].Method)
	assert.Equal(t, "/listings/_bulk", ft.requests[2].Path)
	assert.Equal(t, 4, strings.Count(ft.requests[2].Body, "\n"))
}

func TestReindex_PartialFailure(t *testing.T) {
	ix, ft := newTestIndex(t)
	ft.queue(http.StatusOK, `{}`)
	ft.queue(http.StatusOK, `{}`)
	ft.queue(http.StatusOK, `{"errors":true,"items":[{"index":{"status":201}},{"index":{"status":400}}]}`)

	n, err := ix.Reindex(context.Background(), []*models.Listing{listing("a", "A", ""), listing("b", "B", "")})
	assert.Equal(t, 1, n)
	assert.ErrorContains(t, err, "1 of 2 documents failed")
}
