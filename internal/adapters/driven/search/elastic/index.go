// Package elastic provides the Elasticsearch implementation of the search
// index port.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.SearchIndex = (*Index)(nil)

// DefaultIndexName is used when Config.Index is empty.
const DefaultIndexName = "sercha-records"

// Config holds Elasticsearch connection settings.
type Config struct {
	// URL is the cluster address. A missing scheme defaults to http.
	URL string

	// Index is the index holding record documents.
	Index string

	Username string
	Password string
	APIKey   string

	// Refresh is passed to write requests ("true", "wait_for" or empty).
	Refresh string

	// Timeout bounds the wait for a response header. Ignored when
	// Transport is set.
	Timeout time.Duration

	// Transport overrides the HTTP transport.
	Transport http.RoundTripper
}

// Index is a driven.SearchIndex backed by one Elasticsearch index.
type Index struct {
	client  *es.Client
	index   string
	refresh string
}

// New creates an Index from cfg. It does not contact the cluster;
// call EnsureIndex to verify the connection and create the index.
func New(cfg Config) (*Index, error) {
	clientCfg := es.Config{
		Addresses: []string{normalizeURL(cfg.URL)},
		Transport: cfg.Transport,
	}
	if cfg.Transport == nil && cfg.Timeout > 0 {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.ResponseHeaderTimeout = cfg.Timeout
		clientCfg.Transport = tr
	}
	switch {
	case cfg.APIKey != "":
		clientCfg.APIKey = cfg.APIKey
	case cfg.Username != "" && cfg.Password != "":
		clientCfg.Username = cfg.Username
		clientCfg.Password = cfg.Password
	}

	client, err := es.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	return NewWithClient(client, cfg.Index, cfg.Refresh), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *es.Client, index, refresh string) *Index {
	if index == "" {
		index = DefaultIndexName
	}
	return &Index{client: client, index: index, refresh: refresh}
}

// Name returns the index name.
func (ix *Index) Name() string {
	return ix.index
}

func normalizeURL(url string) string {
	if url == "" {
		return "http://localhost:9200"
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "http://" + url
	}
	return url
}

// indexMapping keeps identifiers exact and analyses free text.
var indexMapping = map[string]any{
	"mappings": map[string]any{
		"dynamic": "false",
		"properties": map[string]any{
			"id":             map[string]any{"type": "keyword"},
			"kind":           map[string]any{"type": "keyword"},
			"revision":       map[string]any{"type": "integer"},
			"title":          map[string]any{"type": "text"},
			"description":    map[string]any{"type": "text"},
			"transcript":     map[string]any{"type": "text"},
			"url":            map[string]any{"type": "keyword"},
			"creator":        map[string]any{"type": "text", "fields": map[string]any{"raw": map[string]any{"type": "keyword"}}},
			"genre":          map[string]any{"type": "keyword"},
			"language":       map[string]any{"type": "keyword"},
			"publisher":      map[string]any{"type": "keyword"},
			"licence":        map[string]any{"type": "keyword"},
			"published":      map[string]any{"type": "date"},
			"feedGuid":       map[string]any{"type": "keyword"},
			"feedTitle":      map[string]any{"type": "text"},
			"mediaUrls":      map[string]any{"type": "keyword"},
			"encodingFormat": map[string]any{"type": "keyword"},
			"duration":       map[string]any{"type": "keyword"},
			"fetchedAt":      map[string]any{"type": "date"},
		},
	},
}

// EnsureIndex creates the index with its mapping if it does not exist.
func (ix *Index) EnsureIndex(ctx context.Context) error {
	res, err := ix.client.Indices.Exists(
		[]string{ix.index},
		ix.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return domain.NewTransportError("search", "exists", err)
	}
	res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return responseError("exists", res.StatusCode, "")
	}

	body, err := json.Marshal(indexMapping)
	if err != nil {
		return fmt.Errorf("failed to marshal index mapping: %w", err)
	}
	res, err = ix.client.Indices.Create(
		ix.index,
		ix.client.Indices.Create.WithContext(ctx),
		ix.client.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return domain.NewTransportError("search", "create index", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg := readBody(res)
		// Another process created it first.
		if strings.Contains(msg, "resource_already_exists_exception") {
			return nil
		}
		return responseError("create index", res.StatusCode, msg)
	}
	logger.Info("Created search index %s", ix.index)
	return nil
}

// Upsert indexes doc under its ID, replacing any previous version.
func (ix *Index) Upsert(ctx context.Context, doc domain.IndexDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("%w: document has no id", domain.ErrInvalidInput)
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", doc.ID, err)
	}

	opts := []func(*esapi.IndexRequest){
		ix.client.Index.WithContext(ctx),
		ix.client.Index.WithDocumentID(doc.ID),
	}
	if ix.refresh != "" {
		opts = append(opts, ix.client.Index.WithRefresh(ix.refresh))
	}
	res, err := ix.client.Index(ix.index, bytes.NewReader(body), opts...)
	if err != nil {
		return domain.NewTransportError("search", "upsert", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg := readBody(res)
		// A rejected document will be rejected again.
		if res.StatusCode == http.StatusBadRequest {
			return &domain.MappingError{Source: doc.ID, Err: errors.New(msg)}
		}
		return responseError("upsert", res.StatusCode, msg)
	}
	return nil
}

// Document fetches the stored document with id. A missing document or
// index yields nil.
func (ix *Index) Document(ctx context.Context, id string) (*domain.IndexDocument, error) {
	res, err := ix.client.Get(ix.index, id, ix.client.Get.WithContext(ctx))
	if err != nil {
		return nil, domain.NewTransportError("search", "get", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, responseError("get", res.StatusCode, readBody(res))
	}

	var parsed struct {
		Found  bool                 `json:"found"`
		Source domain.IndexDocument `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, domain.NewTransportError("search", "decode", err)
	}
	if !parsed.Found {
		return nil, nil
	}
	if parsed.Source.ID == "" {
		parsed.Source.ID = id
	}
	return &parsed.Source, nil
}

// Delete removes the document with id. A missing document is not an error.
func (ix *Index) Delete(ctx context.Context, id string) error {
	opts := []func(*esapi.DeleteRequest){
		ix.client.Delete.WithContext(ctx),
	}
	if ix.refresh != "" {
		opts = append(opts, ix.client.Delete.WithRefresh(ix.refresh))
	}
	res, err := ix.client.Delete(ix.index, id, opts...)
	if err != nil {
		return domain.NewTransportError("search", "delete", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return responseError("delete", res.StatusCode, readBody(res))
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string               `json:"_id"`
			Score  float64              `json:"_score"`
			Source domain.IndexDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a multi-field keyword query.
func (ix *Index) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	body, err := json.Marshal(buildQuery(query, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := ix.client.Search(
		ix.client.Search.WithContext(ctx),
		ix.client.Search.WithIndex(ix.index),
		ix.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, domain.NewTransportError("search", "search", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError("search", res.StatusCode, readBody(res))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, domain.NewTransportError("search", "decode", err)
	}

	results := make([]domain.SearchResult, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		doc := hit.Source
		if doc.ID == "" {
			doc.ID = hit.ID
		}
		results = append(results, domain.SearchResult{Document: doc, Score: hit.Score})
	}
	return results, nil
}

func buildQuery(query string, opts domain.SearchOptions) map[string]any {
	boolQuery := map[string]any{
		"must": map[string]any{
			"multi_match": map[string]any{
				"query":  query,
				"fields": []string{"title^3", "description", "transcript", "creator", "feedTitle"},
			},
		},
	}
	if len(opts.Kinds) > 0 {
		kinds := make([]string, len(opts.Kinds))
		for i, k := range opts.Kinds {
			kinds[i] = string(k)
		}
		boolQuery["filter"] = map[string]any{"terms": map[string]any{"kind": kinds}}
	}

	q := map[string]any{
		"query": map[string]any{"bool": boolQuery},
	}
	if opts.Limit > 0 {
		q["size"] = opts.Limit
	}
	if opts.Offset > 0 {
		q["from"] = opts.Offset
	}
	return q
}

func readBody(res *esapi.Response) string {
	b, err := io.ReadAll(io.LimitReader(res.Body, 4096))
	if err != nil {
		return res.Status()
	}
	return strings.TrimSpace(string(b))
}

func responseError(op string, status int, msg string) error {
	err := fmt.Errorf("elasticsearch answered %d: %s", status, msg)
	return domain.NewTransportError("search", op, err)
}
