package search

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/petfinder/internal/search/searchtest"
)

func newTestClient(t *testing.T, h searchtest.Handler) (*Client, *searchtest.Server) {
	t.Helper()
	srv := searchtest.NewServer(t, h)
	c, err := NewClient(ClientConfig{Addresses: []string{srv.URL}, IndexPrefix: "test"})
	require.NoError(t, err)
	return c, srv
}

func boolClause(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	q, ok := body["query"].(map[string]interface{})
	require.True(t, ok)
	b, ok := q["bool"].(map[string]interface{})
	require.True(t, ok)
	return b
}

func TestBuildSearchQuery_ExactMode(t *testing.T) {
	body := BuildSearchQuery(SearchRequest{Query: "shiba", Page: 3, Limit: 10})

	b := boolClause(t, body)
	must := b["must"].([]interface{})
	require.Len(t, must, 1)
	mm := must[0].(map[string]interface{})["multi_match"].(map[string]interface{})
	assert.Equal(t, "shiba", mm["query"])
	assert.Equal(t, "and", mm["operator"])
	assert.Equal(t, []string{"name^3", "breed^2", "last_seen_location^1.5", "description"}, mm["fields"])
	assert.NotContains(t, b, "should")
	assert.NotContains(t, b, "filter")

	assert.Equal(t, 20, body["from"])
	assert.Equal(t, 10, body["size"])
	assert.Equal(t, true, body["track_total_hits"])
}

func TestBuildSearchQuery_FuzzyMode(t *testing.T) {
	b := boolClause(t, BuildSearchQuery(SearchRequest{Query: "gold*", Fuzzy: true}))

	assert.NotContains(t, b, "must")
	assert.Equal(t, 1, b["minimum_should_match"])

	should := b["should"].([]interface{})
	require.Len(t, should, 3)
	mm := should[0].(map[string]interface{})["multi_match"].(map[string]interface{})
	assert.Equal(t, "AUTO", mm["fuzziness"])
	assert.Equal(t, "or", mm["operator"])

	wc := should[1].(map[string]interface{})["wildcard"].(map[string]interface{})["name.keyword"].(map[string]interface{})
	assert.Equal(t, `*gold\**`, wc["value"])
	assert.Equal(t, true, wc["case_insensitive"])
	assert.Contains(t, should[2].(map[string]interface{})["wildcard"], "breed.keyword")
}

func TestBuildSearchQuery_EmptyQueryMatchesAll(t *testing.T) {
	for _, fuzzy := range []bool{false, true} {
		b := boolClause(t, BuildSearchQuery(SearchRequest{Query: "   ", Fuzzy: fuzzy}))
		must := b["must"].([]interface{})
		require.Len(t, must, 1)
		assert.Contains(t, must[0], "match_all")
		assert.NotContains(t, b, "should")
	}
}

func TestBuildSearchQuery_Filters(t *testing.T) {
	req := SearchRequest{
		Filters: PetFilters{
			Type: "dog", Status: "lost", Breed: "柴犬", Size: "small",
			Gender: "male", Color: "brown", Location: "Taipei",
		},
		Geo: &GeoFilter{Latitude: 25.03, Longitude: 121.56, RadiusKm: 5},
	}
	filters := boolClause(t, BuildSearchQuery(req))["filter"].([]interface{})
	require.Len(t, filters, 8)

	assert.Equal(t, map[string]interface{}{"term": map[string]interface{}{"type": "dog"}}, filters[0])
	assert.Equal(t, map[string]interface{}{"term": map[string]interface{}{"status": "lost"}}, filters[1])
	assert.Equal(t, map[string]interface{}{"term": map[string]interface{}{"breed.keyword": "柴犬"}}, filters[2])
	assert.Contains(t, filters[5].(map[string]interface{})["wildcard"], "color")
	assert.Contains(t, filters[6].(map[string]interface{})["wildcard"], "last_seen_location.keyword")

	geo := filters[7].(map[string]interface{})["geo_distance"].(map[string]interface{})
	assert.Equal(t, "5km", geo["distance"])
	assert.Equal(t, map[string]interface{}{"lat": 25.03, "lon": 121.56}, geo["location"])
}

func TestBuildSort(t *testing.T) {
	tests := []struct {
		name  string
		by    string
		order string
		want  []interface{}
	}{
		{
			name: "default puts urgent first",
			want: []interface{}{
				map[string]interface{}{"is_urgent": map[string]interface{}{"order": "desc"}},
				map[string]interface{}{"created_at": map[string]interface{}{"order": "desc"}},
			},
		},
		{
			name: "createdAt ascending keeps urgent descending", by: SortCreatedAt, order: SortAsc,
			want: []interface{}{
				map[string]interface{}{"is_urgent": map[string]interface{}{"order": "desc"}},
				map[string]interface{}{"created_at": map[string]interface{}{"order": "asc"}},
			},
		},
		{
			name: "relevance", by: SortRelevance, order: SortAsc,
			want: []interface{}{map[string]interface{}{"_score": map[string]interface{}{"order": "desc"}}},
		},
		{
			name: "single key", by: SortName, order: SortAsc,
			want: []interface{}{map[string]interface{}{"name.keyword": map[string]interface{}{"order": "asc"}}},
		},
		{
			name: "unknown key falls back to default", by: "bogus", order: "sideways",
			want: []interface{}{
				map[string]interface{}{"is_urgent": map[string]interface{}{"order": "desc"}},
				map[string]interface{}{"created_at": map[string]interface{}{"order": "desc"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildSort(tt.by, tt.order))
		})
	}
}

func TestSearchPets_DecodesHitsAndHighlights(t *testing.T) {
	resp := `{
		"took": 7,
		"hits": {
			"total": {"value": 1, "relation": "eq"},
			"max_score": 2.5,
			"hits": [{
				"_index": "test-pets", "_id": "p1", "_score": 2.5,
				"_source": {"id": "p1", "name": "Mochi", "type": "dog", "breed": "柴犬", "status": "lost", "is_urgent": true, "created_at": "2026-01-02T03:04:05Z", "updated_at": "2026-01-02T03:04:05Z"},
				"highlight": {"breed": ["<mark>柴</mark><mark>犬</mark>"], "name": []}
			}]
		}
	}`
	c, srv := newTestClient(t, searchtest.Reply(http.StatusOK, resp))

	out, err := c.SearchPets(context.Background(), SearchRequest{Query: "柴犬", Page: 1, Limit: 12})
	require.NoError(t, err)

	assert.Equal(t, int64(1), out.Total)
	assert.Equal(t, 2.5, out.MaxScore)
	assert.Equal(t, int64(7), out.Took)
	require.Len(t, out.Hits, 1)
	assert.Equal(t, "柴犬", out.Hits[0].Source.Breed)
	assert.True(t, out.Hits[0].Source.IsUrgent)
	assert.Equal(t, []string{"<mark>柴</mark><mark>犬</mark>"}, out.Hits[0].Highlight["breed"])
	assert.NotContains(t, out.Hits[0].Highlight, "name")

	last := srv.Last(t)
	assert.Equal(t, "/test-pets/_search", last.Path)
	hl := last.JSON(t)["highlight"].(map[string]interface{})
	assert.Equal(t, []interface{}{"<mark>"}, hl["pre_tags"])
}

func TestSearchPets_NullMaxScore(t *testing.T) {
	c, _ := newTestClient(t, searchtest.Reply(http.StatusOK, `{"took":1,"hits":{"total":{"value":0},"max_score":null,"hits":[]}}`))

	out, err := c.SearchPets(context.Background(), SearchRequest{Filters: PetFilters{Status: "lost"}})
	require.NoError(t, err)
	assert.Zero(t, out.MaxScore)
	assert.Empty(t, out.Hits)
}

func TestBuildAdvancedQuery(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	req := AdvancedSearchRequest{
		Filters: map[string]interface{}{
			"status": "found",
			"breed":  []interface{}{"corgi", "poodle"},
			"size":   nil,
		},
		DateRange:    &DateRange{Field: "last_seen_date", From: &from},
		Aggregations: map[string]interface{}{"by_type": map[string]interface{}{"terms": map[string]interface{}{"field": "type"}}},
	}
	body := BuildAdvancedQuery(req)

	filters := boolClause(t, body)["filter"].([]interface{})
	assert.Len(t, filters, 3)
	assert.Contains(t, filters, map[string]interface{}{"term": map[string]interface{}{"status": "found"}})
	assert.Contains(t, filters, map[string]interface{}{"terms": map[string]interface{}{"breed.keyword": []interface{}{"corgi", "poodle"}}})
	assert.Contains(t, filters, map[string]interface{}{"range": map[string]interface{}{
		"last_seen_date": map[string]interface{}{"gte": "2026-01-01T00:00:00Z"},
	}})
	assert.Equal(t, req.Aggregations, body["aggs"])
}

func TestAdvancedSearch_ReturnsAggregationsWhenRequested(t *testing.T) {
	resp := searchtest.SearchResponse(0, nil, `{"by_type":{"buckets":[{"key":"dog","doc_count":4}]}}`)
	c, _ := newTestClient(t, searchtest.Reply(http.StatusOK, resp))

	out, err := c.AdvancedSearch(context.Background(), AdvancedSearchRequest{
		Aggregations: map[string]interface{}{"by_type": map[string]interface{}{"terms": map[string]interface{}{"field": "type"}}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"by_type":{"buckets":[{"key":"dog","doc_count":4}]}}`, string(out.Aggregations))

	out, err = c.AdvancedSearch(context.Background(), AdvancedSearchRequest{})
	require.NoError(t, err)
	assert.Empty(t, out.Aggregations)
}

func TestSimilarPets(t *testing.T) {
	c, srv := newTestClient(t, searchtest.Reply(http.StatusOK, searchtest.SearchResponse(0, nil, "")))

	_, err := c.SimilarPets(context.Background(), "p1", 4)
	require.NoError(t, err)

	body := srv.Last(t).JSON(t)
	assert.Equal(t, float64(4), body["size"])
	b := boolClause(t, body)
	mlt := b["must"].([]interface{})[0].(map[string]interface{})["more_like_this"].(map[string]interface{})
	assert.Equal(t, []interface{}{"name", "breed", "description", "type", "color"}, mlt["fields"])
	assert.Equal(t, []interface{}{map[string]interface{}{"_index": "test-pets", "_id": "p1"}}, mlt["like"])
	assert.Equal(t, []interface{}{map[string]interface{}{"ids": map[string]interface{}{"values": []interface{}{"p1"}}}}, b["must_not"])
}

func TestSearchRequest_HasCriteria(t *testing.T) {
	assert.False(t, SearchRequest{Query: "  "}.HasCriteria())
	assert.True(t, SearchRequest{Query: "cat"}.HasCriteria())
	assert.True(t, SearchRequest{Filters: PetFilters{Color: "black"}}.HasCriteria())
	assert.True(t, SearchRequest{Geo: &GeoFilter{RadiusKm: 1}}.HasCriteria())
}
