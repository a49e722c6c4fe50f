package search

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/petfinder/internal/search/searchtest"
)

func TestEnsureIndex_ExistingIndexUntouched(t *testing.T) {
	c, srv := newTestClient(t, searchtest.Reply(http.StatusOK, `{}`))

	created, err := c.EnsureIndex(context.Background(), c.PetsDescriptor())
	require.NoError(t, err)
	assert.False(t, created)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodHead, reqs[0].Method)
}

func TestEnsureIndex_CreatesWithAnalysisSettings(t *testing.T) {
	c, srv := newTestClient(t, func(r searchtest.Request) (int, string) {
		if r.Method == http.MethodHead {
			return http.StatusNotFound, ``
		}
		return http.StatusOK, `{"acknowledged":true}`
	})

	created, err := c.EnsureIndex(context.Background(), c.PetsDescriptor())
	require.NoError(t, err)
	assert.True(t, created)

	put := srv.Last(t)
	assert.Equal(t, http.MethodPut, put.Method)
	assert.Equal(t, "/test-pets", put.Path)

	body := put.JSON(t)
	analysis := body["settings"].(map[string]interface{})["analysis"].(map[string]interface{})
	synonyms := analysis["filter"].(map[string]interface{})["pet_synonyms"].(map[string]interface{})
	assert.Equal(t, "synonym_graph", synonyms["type"])
	assert.NotEmpty(t, synonyms["synonyms"])

	props := body["mappings"].(map[string]interface{})["properties"].(map[string]interface{})
	assert.Equal(t, "geo_point", props["location"].(map[string]interface{})["type"])
	assert.Equal(t, "boolean", props["is_urgent"].(map[string]interface{})["type"])
	nameFields := props["name"].(map[string]interface{})["fields"].(map[string]interface{})
	assert.Equal(t, "completion", nameFields["suggest"].(map[string]interface{})["type"])
}

func TestEnsureIndex_CreateFailureSurfaces(t *testing.T) {
	c, _ := newTestClient(t, func(r searchtest.Request) (int, string) {
		if r.Method == http.MethodHead {
			return http.StatusNotFound, ``
		}
		return http.StatusBadRequest, `{"error":{"type":"illegal_argument_exception","reason":"bad mapping"},"status":400}`
	})

	created, err := c.EnsureIndex(context.Background(), c.AnalyticsDescriptor())
	require.Error(t, err)
	assert.False(t, created)
}

func TestRebuildIndex_DeletesThenCreates(t *testing.T) {
	c, srv := newTestClient(t, searchtest.Reply(http.StatusOK, `{"acknowledged":true}`))

	require.NoError(t, c.RebuildIndex(context.Background(), c.AnalyticsDescriptor()))

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, http.MethodDelete, reqs[0].Method)
	assert.Equal(t, http.MethodPut, reqs[1].Method)
	assert.Equal(t, "/test-search-analytics", reqs[1].Path)

	clicks := reqs[1].JSON(t)["mappings"].(map[string]interface{})["properties"].(map[string]interface{})["clicks"]
	assert.Equal(t, "nested", clicks.(map[string]interface{})["type"])
}

func TestRebuildIndex_MissingIndexStillCreated(t *testing.T) {
	c, srv := newTestClient(t, func(r searchtest.Request) (int, string) {
		if r.Method == http.MethodDelete {
			return http.StatusNotFound, `{"error":{"type":"index_not_found_exception"},"status":404}`
		}
		return http.StatusOK, `{"acknowledged":true}`
	})

	require.NoError(t, c.RebuildIndex(context.Background(), c.PetsDescriptor()))
	assert.Len(t, srv.Requests(), 2)
}

func TestGetStats(t *testing.T) {
	c, _ := newTestClient(t, searchtest.Reply(http.StatusOK,
		`{"_all":{"primaries":{"docs":{"count":12,"deleted":1},"store":{"size_in_bytes":2048}}}}`))

	stats, err := c.GetStats(context.Background(), c.PetsIndex())
	require.NoError(t, err)
	assert.Equal(t, &IndexStats{Index: "test-pets", DocumentCount: 12, DeletedCount: 1, StoreSizeBytes: 2048}, stats)
}

func TestCheckIndexVersion(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"missing index", http.StatusNotFound, `{}`, true},
		{"current", http.StatusOK, `{"test-pets":{"mappings":{"_meta":{"version":1}}}}`, false},
		{"no meta", http.StatusOK, `{"test-pets":{"mappings":{}}}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, searchtest.Reply(tt.status, tt.body))
			stale, err := c.CheckIndexVersion(context.Background(), c.PetsIndex())
			require.NoError(t, err)
			assert.Equal(t, tt.want, stale)
		})
	}
}
