package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, 5*time.Second)
}

func TestSearchPetsPassesParams(t *testing.T) {
	var gotQuery, gotUser string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/search/pets", r.URL.Path)
		gotQuery = r.URL.RawQuery
		gotUser = r.Header.Get("X-User-ID")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits":[{"id":"p1","score":1.5,"source":{"id":"p1","name":"Rex","type":"dog","status":"lost"}}],"total":1,"took":3,"page":1,"eventId":"ev-1"}`))
	})
	c.SetUserID("u-1")

	page, err := c.SearchPets(context.Background(), map[string]string{"q": "rex", "status": "lost"})
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "q=rex")
	assert.Contains(t, gotQuery, "status=lost")
	assert.Equal(t, "u-1", gotUser)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, "ev-1", page.EventID)
	require.Len(t, page.Hits, 1)
	assert.Equal(t, "Rex", page.Hits[0].Source.Name)
}

func TestErrorResponseBecomesAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":"VALIDATION_ERROR","message":"must be between -90 and 90","field":"lat"}`))
	})

	_, err := c.SearchPets(context.Background(), map[string]string{"lat": "91"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	assert.Equal(t, "lat", apiErr.Field)
	assert.Contains(t, err.Error(), "lat")
}

func TestRecordClickSendsBody(t *testing.T) {
	var body map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/search/events/ev-9/clicks", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"recorded":true}`))
	})

	require.NoError(t, c.RecordClick(context.Background(), "ev-9", "p-3", 2))
	assert.Equal(t, "p-3", body["petId"])
	assert.EqualValues(t, 2, body["position"])
}

func TestCleanupOmitsZeroDays(t *testing.T) {
	var rawQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"deleted":12,"daysToKeep":90}`))
	})

	deleted, err := c.Cleanup(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(12), deleted)
	assert.Empty(t, rawQuery)

	_, err = c.Cleanup(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, "days=30", rawQuery)
}

func TestHealthUnhealthyKeepsBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unhealthy","indices":[{"name":"pets","exists":false,"documentCount":0}]}`))
	})

	status, err := c.Health(context.Background())
	require.Error(t, err)
	require.NotNil(t, status)
	assert.Equal(t, "unhealthy", status.Status)
	require.Len(t, status.Indices, 1)
	assert.False(t, status.Indices[0].Exists)
}

func TestTrendsDecodesPoints(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "week", r.URL.Query().Get("period"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"period":"week","trends":[{"start":"2024-01-01T00:00:00Z","count":4,"uniqueUsers":2,"avgResults":3.5,"topQueries":[]}]}`))
	})

	points, err := c.Trends(context.Background(), "week", "", "")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, int64(4), points[0].Count)
	assert.Equal(t, int64(2), points[0].UniqueUsers)
}
