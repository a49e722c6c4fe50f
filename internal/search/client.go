package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"
	apperrors "github.com/zfogg/petfinder/internal/errors"
	"github.com/zfogg/petfinder/internal/metrics"
	"github.com/zfogg/petfinder/internal/telemetry"
)

// Index name suffixes, joined to the configured prefix
const (
	petsSuffix      = "pets"
	analyticsSuffix = "search-analytics"
)

// ClientConfig configures the backend connection
type ClientConfig struct {
	Addresses   []string
	Username    string
	Password    string
	MaxRetries  int
	IndexPrefix string

	// Transport overrides the HTTP transport; tests point it at httptest servers
	Transport http.RoundTripper
}

// Client wraps the Elasticsearch client with pet-finder index naming
type Client struct {
	es     *elasticsearch.Client
	prefix string
}

// NewClient creates a new Elasticsearch client. It does not contact the
// backend; call Ping to verify connectivity.
func NewClient(cfg ClientConfig) (*Client, error) {
	if len(cfg.Addresses) == 0 {
		cfg.Addresses = []string{"http://localhost:9200"}
	}
	if cfg.IndexPrefix == "" {
		cfg.IndexPrefix = "petfinder"
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:  cfg.Addresses,
		Username:   cfg.Username,
		Password:   cfg.Password,
		MaxRetries: cfg.MaxRetries,
		Transport:  cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	return &Client{es: es, prefix: cfg.IndexPrefix}, nil
}

// PetsIndex is the name of the pet document index
func (c *Client) PetsIndex() string {
	return c.prefix + "-" + petsSuffix
}

// AnalyticsIndex is the name of the search analytics index
func (c *Client) AnalyticsIndex() string {
	return c.prefix + "-" + analyticsSuffix
}

// Ping verifies the backend answers
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Info(c.es.Info.WithContext(ctx))
	if err != nil {
		return transportError("info", "", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return decodeError("info", "", res)
	}
	return nil
}

// Search runs a raw query body against index and decodes the typed response
func (c *Client) Search(ctx context.Context, index string, body interface{}) (*Response, error) {
	ctx, span := telemetry.TraceElasticsearchCall(ctx, "search", telemetry.SpanAttrs{"index": index})
	defer span.End()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	start := time.Now()
	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		err = transportError("search", index, err)
		observe(index, "search", start, err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		err = decodeError("search", index, res)
		observe(index, "search", start, err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	var out Response
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	observe(index, "search", start, nil)
	telemetry.RecordSuccess(span, len(out.Hits.Hits))
	return &out, nil
}

// Count returns the number of documents in index
func (c *Client) Count(ctx context.Context, index string) (int64, error) {
	res, err := c.es.Count(
		c.es.Count.WithContext(ctx),
		c.es.Count.WithIndex(index),
	)
	if err != nil {
		return 0, transportError("count", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, decodeError("count", index, res)
	}

	var out struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode count response: %w", err)
	}
	metrics.ElasticsearchDocumentCount.WithLabelValues(index).Set(float64(out.Count))
	return out.Count, nil
}

// IndexDocument writes doc under id, replacing any previous version
func (c *Client) IndexDocument(ctx context.Context, index, id string, doc interface{}, refresh bool) error {
	ctx, span := telemetry.TraceElasticsearchCall(ctx, "index", telemetry.SpanAttrs{"index": index, "doc_id": id})
	defer span.End()

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	opts := []func(*esapi.IndexRequest){
		c.es.Index.WithDocumentID(id),
		c.es.Index.WithContext(ctx),
	}
	if refresh {
		opts = append(opts, c.es.Index.WithRefresh("true"))
	}

	start := time.Now()
	res, err := c.es.Index(index, bytes.NewReader(body), opts...)
	if err != nil {
		err = transportError("index", index, err)
		observe(index, "index", start, err)
		telemetry.RecordError(span, err)
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		err = decodeError("index", index, res)
		observe(index, "index", start, err)
		telemetry.RecordError(span, err)
		return err
	}
	observe(index, "index", start, nil)
	return nil
}

// UpdateDocument applies a partial update body ({"doc": ...} or {"script": ...})
func (c *Client) UpdateDocument(ctx context.Context, index, id string, body interface{}) error {
	ctx, span := telemetry.TraceElasticsearchCall(ctx, "update", telemetry.SpanAttrs{"index": index, "doc_id": id})
	defer span.End()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal update: %w", err)
	}

	start := time.Now()
	res, err := c.es.Update(index, id, bytes.NewReader(payload),
		c.es.Update.WithContext(ctx),
		c.es.Update.WithRetryOnConflict(3),
	)
	if err != nil {
		err = transportError("update", index, err)
		observe(index, "update", start, err)
		telemetry.RecordError(span, err)
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		err = decodeError("update", index, res)
		observe(index, "update", start, err)
		telemetry.RecordError(span, err)
		return err
	}
	observe(index, "update", start, nil)
	return nil
}

// DeleteDocument removes id from index. A missing document is not an error.
func (c *Client) DeleteDocument(ctx context.Context, index, id string) error {
	res, err := c.es.Delete(index, id, c.es.Delete.WithContext(ctx))
	if err != nil {
		return transportError("delete", index, err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return decodeError("delete", index, res)
	}
	return nil
}

// DeleteByQuery removes every document matching query and returns the count
func (c *Client) DeleteByQuery(ctx context.Context, index string, query interface{}) (int64, error) {
	ctx, span := telemetry.TraceElasticsearchCall(ctx, "delete_by_query", telemetry.SpanAttrs{"index": index})
	defer span.End()

	payload, err := json.Marshal(map[string]interface{}{"query": query})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal delete query: %w", err)
	}

	start := time.Now()
	res, err := c.es.DeleteByQuery([]string{index}, bytes.NewReader(payload),
		c.es.DeleteByQuery.WithContext(ctx),
		c.es.DeleteByQuery.WithRefresh(true),
		c.es.DeleteByQuery.WithConflicts("proceed"),
	)
	if err != nil {
		err = transportError("delete_by_query", index, err)
		observe(index, "delete_by_query", start, err)
		telemetry.RecordError(span, err)
		return 0, err
	}
	defer res.Body.Close()

	if res.IsError() {
		err = decodeError("delete_by_query", index, res)
		observe(index, "delete_by_query", start, err)
		telemetry.RecordError(span, err)
		return 0, err
	}

	var out struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode delete_by_query response: %w", err)
	}
	observe(index, "delete_by_query", start, nil)
	telemetry.RecordSuccess(span, int(out.Deleted))
	return out.Deleted, nil
}

// BulkItem is one index action in a bulk request
type BulkItem struct {
	ID       string
	Document interface{}
}

// Bulk indexes items in one request. The result is coarse: any item-level
// failure fails the whole call with ErrBulkFailed.
func (c *Client) Bulk(ctx context.Context, index string, items []BulkItem) error {
	if len(items) == 0 {
		return nil
	}

	ctx, span := telemetry.TraceElasticsearchCall(ctx, "bulk", telemetry.SpanAttrs{"index": index, "bulk_size": len(items)})
	defer span.End()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, item := range items {
		meta := map[string]interface{}{"index": map[string]interface{}{"_index": index, "_id": item.ID}}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("failed to encode bulk action: %w", err)
		}
		if err := enc.Encode(item.Document); err != nil {
			return fmt.Errorf("failed to encode bulk document %s: %w", item.ID, err)
		}
	}

	start := time.Now()
	res, err := c.es.Bulk(&buf,
		c.es.Bulk.WithContext(ctx),
		c.es.Bulk.WithIndex(index),
	)
	if err != nil {
		err = transportError("bulk", index, err)
		observe(index, "bulk", start, err)
		telemetry.RecordError(span, err)
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		err = decodeError("bulk", index, res)
		observe(index, "bulk", start, err)
		telemetry.RecordError(span, err)
		return err
	}

	var out struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if out.Errors {
		err = fmt.Errorf("bulk index %s (%d items): %w", index, len(items), apperrors.ErrBulkFailed)
		observe(index, "bulk", start, err)
		telemetry.RecordError(span, err)
		return err
	}
	observe(index, "bulk", start, nil)
	return nil
}

// Refresh makes recent writes visible to search
func (c *Client) Refresh(ctx context.Context, index string) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(index),
	)
	if err != nil {
		return transportError("refresh", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return decodeError("refresh", index, res)
	}
	return nil
}

func transportError(op, index string, err error) error {
	return &apperrors.BackendError{Op: op, Index: index, Err: err}
}

// decodeError turns a non-2xx response into a BackendError carrying the
// backend's error type as Reason.
func decodeError(op, index string, res *esapi.Response) error {
	be := &apperrors.BackendError{Op: op, Index: index, Status: res.StatusCode}

	raw, _ := io.ReadAll(res.Body)
	var errResp struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &errResp); err != nil || len(errResp.Error) == 0 {
		be.Reason = strings.TrimSpace(string(raw))
		return be
	}

	var detail struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(errResp.Error, &detail); err == nil && detail.Type != "" {
		be.Reason = detail.Type
		if detail.Reason != "" {
			be.Err = fmt.Errorf("%s", detail.Reason)
		}
		return be
	}

	// Some endpoints (document GET/update 404) return error as a plain string
	var msg string
	if err := json.Unmarshal(errResp.Error, &msg); err == nil {
		be.Reason = msg
	}
	return be
}

func observe(index, op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		metrics.ElasticsearchErrorsTotal.WithLabelValues(index, op, errorType(err)).Inc()
	}
	metrics.ElasticsearchQueryDuration.WithLabelValues(index, op, status).Observe(time.Since(start).Seconds())
}

func errorType(err error) string {
	be, ok := err.(*apperrors.BackendError)
	if !ok {
		return "other"
	}
	switch {
	case be.Status == 0:
		return "transport"
	case be.Reason != "":
		return be.Reason
	default:
		return fmt.Sprintf("http_%d", be.Status)
	}
}
