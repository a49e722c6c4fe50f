package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/zfogg/petfinder/internal/errors"
	"github.com/zfogg/petfinder/internal/search"
)

// Click is one recorded result click
type Click struct {
	PetID     string    `json:"pet_id"`
	Position  int       `json:"position"`
	Timestamp time.Time `json:"timestamp"`
}

// Filters is the filter snapshot stored with an event
type Filters struct {
	Type     string `json:"type,omitempty"`
	Status   string `json:"status,omitempty"`
	Breed    string `json:"breed,omitempty"`
	Location string `json:"location,omitempty"`
	Size     string `json:"size,omitempty"`
	Gender   string `json:"gender,omitempty"`
	Color    string `json:"color,omitempty"`
	HasGeo   bool   `json:"has_geo,omitempty"`
}

// FiltersFromRequest snapshots the filters of a pet search
func FiltersFromRequest(req search.SearchRequest) Filters {
	return Filters{
		Type:     req.Filters.Type,
		Status:   req.Filters.Status,
		Breed:    req.Filters.Breed,
		Location: req.Filters.Location,
		Size:     req.Filters.Size,
		Gender:   req.Filters.Gender,
		Color:    req.Filters.Color,
		HasGeo:   req.Geo != nil,
	}
}

// Event is one executed search. Only RecordClick mutates it afterwards.
type Event struct {
	ID               string    `json:"id"`
	Query            string    `json:"query"`
	Filters          Filters   `json:"filters"`
	UserID           string    `json:"user_id,omitempty"`
	ResultCount      int       `json:"result_count"`
	Timestamp        time.Time `json:"timestamp"`
	SessionID        string    `json:"session_id,omitempty"`
	UserAgent        string    `json:"user_agent,omitempty"`
	IP               string    `json:"ip,omitempty"`
	Clicks           []Click   `json:"clicks"`
	ClickCount       int       `json:"click_count"`
	SearchDurationMs int64     `json:"search_duration_ms,omitempty"`
}

// TimeRange optionally bounds queries by event timestamp
type TimeRange struct {
	From *time.Time
	To   *time.Time
}

// Backend is the subset of the search client the analytics engine needs
type Backend interface {
	Search(ctx context.Context, index string, body interface{}) (*search.Response, error)
	IndexDocument(ctx context.Context, index, id string, doc interface{}, refresh bool) error
	UpdateDocument(ctx context.Context, index, id string, body interface{}) error
	Bulk(ctx context.Context, index string, items []search.BulkItem) error
	DeleteByQuery(ctx context.Context, index string, query interface{}) (int64, error)
}

// Engine records search events and computes statistics over them
type Engine struct {
	backend Backend
	index   string
	now     func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an analytics engine writing to index
func NewEngine(backend Backend, index string, opts ...Option) *Engine {
	e := &Engine{backend: backend, index: index, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Record stores one event, assigning an ID and timestamp when missing
func (e *Engine) Record(ctx context.Context, event *Event) error {
	e.prepare(event)
	if err := e.backend.IndexDocument(ctx, e.index, event.ID, event, false); err != nil {
		return fmt.Errorf("failed to record search event: %w", err)
	}
	return nil
}

// RecordBulk stores events in one bulk request
func (e *Engine) RecordBulk(ctx context.Context, events []Event) error {
	items := make([]search.BulkItem, 0, len(events))
	for i := range events {
		e.prepare(&events[i])
		items = append(items, search.BulkItem{ID: events[i].ID, Document: events[i]})
	}
	if err := e.backend.Bulk(ctx, e.index, items); err != nil {
		return fmt.Errorf("failed to record %d search events: %w", len(events), err)
	}
	return nil
}

func (e *Engine) prepare(event *Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now().UTC()
	}
	if event.Clicks == nil {
		event.Clicks = []Click{}
	}
	event.ClickCount = len(event.Clicks)
	event.Query = strings.TrimSpace(event.Query)
}

const appendClickScript = `if (ctx._source.clicks == null) { ctx._source.clicks = []; }
ctx._source.clicks.add(params.click);
ctx._source.click_count = ctx._source.clicks.size();`

// RecordClick appends a click to an event. Repeated calls append repeated
// clicks; nothing is de-duplicated.
func (e *Engine) RecordClick(ctx context.Context, eventID, petID string, position int) error {
	if eventID == "" {
		return apperrors.NewInvalidRequest("event_id", "is required")
	}
	if petID == "" {
		return apperrors.NewInvalidRequest("pet_id", "is required")
	}
	if position < 0 {
		return apperrors.NewInvalidRequest("position", "must not be negative")
	}

	body := map[string]interface{}{
		"script": map[string]interface{}{
			"lang":   "painless",
			"source": appendClickScript,
			"params": map[string]interface{}{
				"click": Click{PetID: petID, Position: position, Timestamp: e.now().UTC()},
			},
		},
	}
	if err := e.backend.UpdateDocument(ctx, e.index, eventID, body); err != nil {
		return fmt.Errorf("failed to record click on %s: %w", eventID, err)
	}
	return nil
}

// Cleanup deletes events older than daysToKeep days and returns the count
func (e *Engine) Cleanup(ctx context.Context, daysToKeep int) (int64, error) {
	if daysToKeep < 0 {
		return 0, apperrors.NewInvalidRequest("days_to_keep", "must not be negative")
	}

	cutoff := e.now().UTC().Add(-time.Duration(daysToKeep) * 24 * time.Hour)
	query := map[string]interface{}{
		"range": map[string]interface{}{
			"timestamp": map[string]interface{}{"lt": cutoff.Format(time.RFC3339Nano)},
		},
	}

	deleted, err := e.backend.DeleteByQuery(ctx, e.index, query)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up search events: %w", err)
	}
	return deleted, nil
}

// rangeQuery filters by the optional time window
func rangeQuery(tr TimeRange, extra ...interface{}) map[string]interface{} {
	filters := append([]interface{}{}, extra...)
	if tr.From != nil || tr.To != nil {
		bounds := map[string]interface{}{}
		if tr.From != nil {
			bounds["gte"] = tr.From.UTC().Format(time.RFC3339Nano)
		}
		if tr.To != nil {
			bounds["lte"] = tr.To.UTC().Format(time.RFC3339Nano)
		}
		filters = append(filters, map[string]interface{}{"range": map[string]interface{}{"timestamp": bounds}})
	}
	if len(filters) == 0 {
		return map[string]interface{}{"match_all": map[string]interface{}{}}
	}
	return map[string]interface{}{"bool": map[string]interface{}{"filter": filters}}
}

func termsAgg(field string, size int) map[string]interface{} {
	return map[string]interface{}{
		"terms": map[string]interface{}{
			"field":   field,
			"size":    size,
			"exclude": []string{""},
		},
	}
}
