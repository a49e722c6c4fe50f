package apiclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/zfogg/petfinder/internal/analytics"
	"github.com/zfogg/petfinder/internal/indexer"
	"github.com/zfogg/petfinder/internal/logger"
	"github.com/zfogg/petfinder/internal/petsearch"
	"github.com/zfogg/petfinder/internal/search"
	"github.com/zfogg/petfinder/internal/suggestions"
	"go.uber.org/zap"
)

const apiPrefix = "/api/v1/search"

// errorBody is the server's JSON error envelope
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

// APIError is a non-2xx response from the server
type APIError struct {
	Status int
	errorBody
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%d %s: %s (%s)", e.Status, e.Code, e.Message, e.Field)
	}
	if e.Message == "" {
		return fmt.Sprintf("%d %s", e.Status, e.Code)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Client talks to the pet search HTTP API
type Client struct {
	http *resty.Client
}

// New creates a client rooted at baseURL
func New(baseURL string, timeout time.Duration) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", "petfinder-cli/0.1.0").
		SetError(&errorBody{})

	rc.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		logger.Log.Debug("HTTP request", zap.String("method", req.Method), zap.String("url", req.URL))
		return nil
	})
	rc.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		logger.Log.Debug("HTTP response", logger.WithStatus(resp.StatusCode()), logger.WithDuration(resp.Time()))
		return nil
	})

	return &Client{http: rc}
}

// SetUserID sends X-User-ID on every request so searches are attributed
func (c *Client) SetUserID(id string) {
	if id != "" {
		c.http.SetHeader("X-User-ID", id)
	}
}

// SearchPage is one page of search results as returned by GET /pets
type SearchPage struct {
	Hits     []search.SearchHit `json:"hits"`
	Total    int64              `json:"total"`
	MaxScore float64            `json:"max_score"`
	Took     int64              `json:"took"`
	Page     int                `json:"page"`
	EventID  string             `json:"eventId,omitempty"`
}

// SearchPets runs a simple search; params are passed through as query parameters
func (c *Client) SearchPets(ctx context.Context, params map[string]string) (*SearchPage, error) {
	var out SearchPage
	req := c.http.R().SetContext(ctx).SetQueryParams(params).SetResult(&out)
	if err := do(req.Get(apiPrefix + "/pets")); err != nil {
		return nil, err
	}
	return &out, nil
}

// SimilarPets fetches pets similar to id
func (c *Client) SimilarPets(ctx context.Context, id string, limit int) (*search.SearchResponse, error) {
	var out search.SearchResponse
	req := c.http.R().SetContext(ctx).
		SetPathParam("id", id).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&out)
	if err := do(req.Get(apiPrefix + "/pets/{id}/similar")); err != nil {
		return nil, err
	}
	return &out, nil
}

// Suggestions returns prefix completions for q
func (c *Client) Suggestions(ctx context.Context, q string, limit int) ([]suggestions.Suggestion, error) {
	var out struct {
		Suggestions []suggestions.Suggestion `json:"suggestions"`
	}
	req := c.http.R().SetContext(ctx).
		SetQueryParam("q", q).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&out)
	if err := do(req.Get(apiPrefix + "/suggestions")); err != nil {
		return nil, err
	}
	return out.Suggestions, nil
}

// SmartSuggestions returns the blended completion groups for q
func (c *Client) SmartSuggestions(ctx context.Context, q string, limit int) (*suggestions.SmartSuggestions, error) {
	var out suggestions.SmartSuggestions
	req := c.http.R().SetContext(ctx).
		SetQueryParam("q", q).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&out)
	if err := do(req.Get(apiPrefix + "/suggestions/smart")); err != nil {
		return nil, err
	}
	return &out, nil
}

// CategorySuggestions returns the top values for one category
func (c *Client) CategorySuggestions(ctx context.Context, category, q string, limit int) ([]suggestions.Suggestion, error) {
	var out struct {
		Suggestions []suggestions.Suggestion `json:"suggestions"`
	}
	req := c.http.R().SetContext(ctx).
		SetPathParam("category", category).
		SetQueryParam("q", q).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&out)
	if err := do(req.Get(apiPrefix + "/suggestions/{category}")); err != nil {
		return nil, err
	}
	return out.Suggestions, nil
}

// RecordClick reports a click on a result of a recorded search
func (c *Client) RecordClick(ctx context.Context, eventID, petID string, position int) error {
	req := c.http.R().SetContext(ctx).
		SetPathParam("id", eventID).
		SetBody(map[string]interface{}{"petId": petID, "position": position})
	return do(req.Post(apiPrefix + "/events/{id}/clicks"))
}

// Stats fetches aggregate search statistics for the window
func (c *Client) Stats(ctx context.Context, from, to string) (*analytics.Stats, error) {
	var out analytics.Stats
	req := c.http.R().SetContext(ctx).SetQueryParams(rangeParams(from, to)).SetResult(&out)
	if err := do(req.Get(apiPrefix + "/analytics/stats")); err != nil {
		return nil, err
	}
	return &out, nil
}

// Trends fetches search counts bucketed by period
func (c *Client) Trends(ctx context.Context, period, from, to string) ([]analytics.TrendBucket, error) {
	var out struct {
		Trends []analytics.TrendBucket `json:"trends"`
	}
	params := rangeParams(from, to)
	if period != "" {
		params["period"] = period
	}
	req := c.http.R().SetContext(ctx).SetQueryParams(params).SetResult(&out)
	if err := do(req.Get(apiPrefix + "/analytics/trends")); err != nil {
		return nil, err
	}
	return out.Trends, nil
}

// Effectiveness fetches click-through metrics for the window
func (c *Client) Effectiveness(ctx context.Context, from, to string) (*analytics.Effectiveness, error) {
	var out analytics.Effectiveness
	req := c.http.R().SetContext(ctx).SetQueryParams(rangeParams(from, to)).SetResult(&out)
	if err := do(req.Get(apiPrefix + "/analytics/effectiveness")); err != nil {
		return nil, err
	}
	return &out, nil
}

// Rebuild drops and recreates the pets index, then repopulates it
func (c *Client) Rebuild(ctx context.Context) (*petsearch.RebuildResult, error) {
	var out petsearch.RebuildResult
	if err := do(c.http.R().SetContext(ctx).SetResult(&out).Post(apiPrefix + "/admin/rebuild")); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reindex copies every pet into the existing index
func (c *Client) Reindex(ctx context.Context) (*indexer.Result, error) {
	var out indexer.Result
	if err := do(c.http.R().SetContext(ctx).SetResult(&out).Post(apiPrefix + "/admin/reindex")); err != nil {
		return nil, err
	}
	return &out, nil
}

// Cleanup deletes analytics events older than days; zero uses the server default
func (c *Client) Cleanup(ctx context.Context, days int) (int64, error) {
	var out struct {
		Deleted int64 `json:"deleted"`
	}
	req := c.http.R().SetContext(ctx).SetResult(&out)
	if days > 0 {
		req.SetQueryParam("days", strconv.Itoa(days))
	}
	if err := do(req.Post(apiPrefix + "/admin/cleanup")); err != nil {
		return 0, err
	}
	return out.Deleted, nil
}

// Health fetches the search layer health. An unhealthy status is returned
// alongside the 503 error so callers can still print the detail.
func (c *Client) Health(ctx context.Context) (*petsearch.HealthStatus, error) {
	var out petsearch.HealthStatus
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).SetError(&out).Get(apiPrefix + "/health")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return &out, &APIError{Status: resp.StatusCode(), errorBody: errorBody{Code: out.Status}}
	}
	return &out, nil
}

func rangeParams(from, to string) map[string]string {
	params := map[string]string{}
	if from != "" {
		params["from"] = from
	}
	if to != "" {
		params["to"] = to
	}
	return params
}

func do(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsSuccess() {
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode()}
	if e, ok := resp.Error().(*errorBody); ok && e != nil {
		apiErr.errorBody = *e
	}
	if apiErr.Code == "" {
		apiErr.Code = resp.Status()
	}
	return apiErr
}
