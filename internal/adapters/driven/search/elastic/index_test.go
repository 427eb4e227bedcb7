package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// mockTransport answers Elasticsearch requests in process and records them.
type mockTransport struct {
	mu       sync.Mutex
	requests []recordedRequest
	respond  func(req *http.Request) (int, string)
	err      error
}

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

func (t *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.err != nil {
		return nil, t.err
	}
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	t.mu.Lock()
	t.requests = append(t.requests, recordedRequest{
		Method: req.Method,
		Path:   req.URL.Path,
		Query:  req.URL.RawQuery,
		Body:   string(body),
	})
	t.mu.Unlock()

	status, payload := http.StatusOK, `{}`
	if t.respond != nil {
		status, payload = t.respond(req)
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(payload)),
		Header: http.Header{
			"X-Elastic-Product": []string{"Elasticsearch"},
			"Content-Type":      []string{"application/json"},
		},
	}, nil
}

func (t *mockTransport) last() recordedRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requests[len(t.requests)-1]
}

func newTestIndex(t *testing.T, transport *mockTransport) *Index {
	t.Helper()
	ix, err := New(Config{URL: "es.internal:9200", Index: "test-records", Transport: transport})
	require.NoError(t, err)
	return ix
}

func TestNew_Defaults(t *testing.T) {
	ix, err := New(Config{Transport: &mockTransport{}})
	require.NoError(t, err)
	assert.Equal(t, DefaultIndexName, ix.Name())

	assert.Equal(t, "http://localhost:9200", normalizeURL(""))
	assert.Equal(t, "http://es:9200", normalizeURL("es:9200"))
	assert.Equal(t, "https://es:9200", normalizeURL("https://es:9200"))
}

func TestEnsureIndex_Exists(t *testing.T) {
	transport := &mockTransport{}
	ix := newTestIndex(t, transport)

	require.NoError(t, ix.EnsureIndex(context.Background()))

	require.Len(t, transport.requests, 1)
	assert.Equal(t, http.MethodHead, transport.requests[0].Method)
	assert.Equal(t, "/test-records", transport.requests[0].Path)
}

func TestEnsureIndex_CreatesWithMapping(t *testing.T) {
	transport := &mockTransport{respond: func(req *http.Request) (int, string) {
		if req.Method == http.MethodHead {
			return http.StatusNotFound, ``
		}
		return http.StatusOK, `{"acknowledged":true}`
	}}
	ix := newTestIndex(t, transport)

	require.NoError(t, ix.EnsureIndex(context.Background()))

	create := transport.last()
	assert.Equal(t, http.MethodPut, create.Method)
	assert.Equal(t, "/test-records", create.Path)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(create.Body), &body))
	props := body["mappings"].(map[string]any)["properties"].(map[string]any)
	assert.Equal(t, "keyword", props["kind"].(map[string]any)["type"])
	assert.Equal(t, "text", props["title"].(map[string]any)["type"])
}

func TestEnsureIndex_LostCreateRace(t *testing.T) {
	transport := &mockTransport{respond: func(req *http.Request) (int, string) {
		if req.Method == http.MethodHead {
			return http.StatusNotFound, ``
		}
		return http.StatusBadRequest, `{"error":{"type":"resource_already_exists_exception"}}`
	}}

	assert.NoError(t, newTestIndex(t, transport).EnsureIndex(context.Background()))
}

func TestEnsureIndex_ClusterDown(t *testing.T) {
	transport := &mockTransport{err: errors.New("connection refused")}

	err := newTestIndex(t, transport).EnsureIndex(context.Background())

	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.False(t, domain.IsPermanent(err))
}

func TestUpsert(t *testing.T) {
	transport := &mockTransport{respond: func(*http.Request) (int, string) {
		return http.StatusCreated, `{"result":"created"}`
	}}
	ix := newTestIndex(t, transport)
	doc := domain.IndexDocument{
		ID:        "post-abc",
		Kind:      domain.KindPost,
		Revision:  2,
		Title:     "Morning show",
		FetchedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	require.NoError(t, ix.Upsert(context.Background(), doc))

	req := transport.last()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/test-records/_doc/post-abc", req.Path)
	var got domain.IndexDocument
	require.NoError(t, json.Unmarshal([]byte(req.Body), &got))
	assert.Equal(t, doc, got)
}

func TestUpsert_Refresh(t *testing.T) {
	transport := &mockTransport{}
	ix, err := New(Config{Index: "r", Refresh: "wait_for", Transport: transport})
	require.NoError(t, err)

	require.NoError(t, ix.Upsert(context.Background(), domain.IndexDocument{ID: "x"}))
	assert.Contains(t, transport.last().Query, "refresh=wait_for")
}

func TestUpsert_Errors(t *testing.T) {
	ctx := context.Background()

	err := newTestIndex(t, &mockTransport{}).Upsert(ctx, domain.IndexDocument{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	rejected := &mockTransport{respond: func(*http.Request) (int, string) {
		return http.StatusBadRequest, `{"error":{"type":"mapper_parsing_exception"}}`
	}}
	err = newTestIndex(t, rejected).Upsert(ctx, domain.IndexDocument{ID: "x"})
	assert.ErrorIs(t, err, domain.ErrMapping)
	assert.True(t, domain.IsPermanent(err))

	unavailable := &mockTransport{respond: func(*http.Request) (int, string) {
		return http.StatusServiceUnavailable, `{}`
	}}
	err = newTestIndex(t, unavailable).Upsert(ctx, domain.IndexDocument{ID: "x"})
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.False(t, domain.IsPermanent(err))
}

func TestDocument(t *testing.T) {
	ctx := context.Background()
	transport := &mockTransport{respond: func(*http.Request) (int, string) {
		return http.StatusOK, `{"_id":"feed-1","found":true,"_source":{"kind":"feed","revision":3,"title":"Free Radio","feedTitle":"Free Radio"}}`
	}}
	ix := newTestIndex(t, transport)

	doc, err := ix.Document(ctx, "feed-1")

	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "feed-1", doc.ID)
	assert.Equal(t, 3, doc.Revision)
	assert.Equal(t, "Free Radio", doc.FeedTitle)
	assert.Equal(t, http.MethodGet, transport.last().Method)
	assert.Equal(t, "/test-records/_doc/feed-1", transport.last().Path)
}

func TestDocument_Missing(t *testing.T) {
	ctx := context.Background()
	missing := &mockTransport{respond: func(*http.Request) (int, string) {
		return http.StatusNotFound, `{"_id":"x","found":false}`
	}}

	doc, err := newTestIndex(t, missing).Document(ctx, "x")
	require.NoError(t, err)
	assert.Nil(t, doc)

	unavailable := &mockTransport{respond: func(*http.Request) (int, string) {
		return http.StatusServiceUnavailable, `{}`
	}}
	_, err = newTestIndex(t, unavailable).Document(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	transport := &mockTransport{}
	ix := newTestIndex(t, transport)

	require.NoError(t, ix.Delete(ctx, "post-abc"))
	assert.Equal(t, http.MethodDelete, transport.last().Method)
	assert.Equal(t, "/test-records/_doc/post-abc", transport.last().Path)

	missing := &mockTransport{respond: func(*http.Request) (int, string) {
		return http.StatusNotFound, `{"result":"not_found"}`
	}}
	assert.NoError(t, newTestIndex(t, missing).Delete(ctx, "post-abc"))

	failing := &mockTransport{respond: func(*http.Request) (int, string) {
		return http.StatusInternalServerError, `{}`
	}}
	assert.ErrorIs(t, newTestIndex(t, failing).Delete(ctx, "post-abc"), domain.ErrTransport)
}

func TestSearch(t *testing.T) {
	transport := &mockTransport{respond: func(*http.Request) (int, string) {
		return http.StatusOK, `{"hits":{"hits":[
			{"_id":"post:1","_score":2.5,"_source":{"id":"post:1","kind":"post","title":"Morning show"}},
			{"_id":"post:2","_score":1.0,"_source":{"kind":"post","title":"Evening show"}}
		]}}`
	}}
	ix := newTestIndex(t, transport)

	results, err := ix.Search(context.Background(), "show", domain.SearchOptions{
		Limit:  5,
		Offset: 10,
		Kinds:  []domain.RecordKind{domain.KindPost},
	})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Morning show", results[0].Document.Title)
	assert.Equal(t, 2.5, results[0].Score)
	assert.Equal(t, "post:2", results[1].Document.ID, "missing source id falls back to _id")

	req := transport.last()
	assert.Equal(t, "/test-records/_search", req.Path)
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(req.Body), &body))
	assert.Equal(t, 5.0, body["size"])
	assert.Equal(t, 10.0, body["from"])
	filter := body["query"].(map[string]any)["bool"].(map[string]any)["filter"].(map[string]any)
	assert.Equal(t, []any{"post"}, filter["terms"].(map[string]any)["kind"])
}

func TestSearch_Errors(t *testing.T) {
	ctx := context.Background()

	failing := &mockTransport{respond: func(*http.Request) (int, string) {
		return http.StatusInternalServerError, `{"error":"boom"}`
	}}
	_, err := newTestIndex(t, failing).Search(ctx, "x", domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrTransport)

	garbled := &mockTransport{respond: func(*http.Request) (int, string) {
		return http.StatusOK, `not json`
	}}
	_, err = newTestIndex(t, garbled).Search(ctx, "x", domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestBuildQuery_NoPaging(t *testing.T) {
	q := buildQuery("radio", domain.SearchOptions{})
	_, hasSize := q["size"]
	_, hasFrom := q["from"]
	assert.False(t, hasSize)
	assert.False(t, hasFrom)
	_, hasFilter := q["query"].(map[string]any)["bool"].(map[string]any)["filter"]
	assert.False(t, hasFilter)
}
