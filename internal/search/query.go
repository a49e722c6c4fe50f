package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Sort keys accepted by SearchPets
const (
	SortRelevance    = "relevance"
	SortCreatedAt    = "createdAt"
	SortUpdatedAt    = "updatedAt"
	SortLastSeenDate = "lastSeenDate"
	SortName         = "name"

	SortAsc  = "asc"
	SortDesc = "desc"

	DefaultLimit = 12

	highlightPreTag  = "<mark>"
	highlightPostTag = "</mark>"
)

// singleKeySortFields maps the non-default sort keys onto index fields
var singleKeySortFields = map[string]string{
	SortUpdatedAt:    "updated_at",
	SortLastSeenDate: "last_seen_date",
	SortName:         "name.keyword",
}

// IsSortKey reports whether key is an accepted sort key
func IsSortKey(key string) bool {
	if key == SortRelevance || key == SortCreatedAt {
		return true
	}
	_, ok := singleKeySortFields[key]
	return ok
}

// PetFilters are the optional equality and substring filters of a search
type PetFilters struct {
	Type     string `json:"type,omitempty"`
	Status   string `json:"status,omitempty"`
	Breed    string `json:"breed,omitempty"`
	Location string `json:"location,omitempty"`
	Size     string `json:"size,omitempty"`
	Gender   string `json:"gender,omitempty"`
	Color    string `json:"color,omitempty"`
}

// IsEmpty reports whether no filter is set
func (f PetFilters) IsEmpty() bool {
	return f == PetFilters{}
}

// GeoFilter restricts results to RadiusKm around a point
type GeoFilter struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	RadiusKm  float64 `json:"radius_km"`
}

// SearchRequest is a structured pet search
type SearchRequest struct {
	Query     string     `json:"query"`
	Filters   PetFilters `json:"filters"`
	Page      int        `json:"page"`
	Limit     int        `json:"limit"`
	SortBy    string     `json:"sort_by"`
	SortOrder string     `json:"sort_order"`
	Fuzzy     bool       `json:"fuzzy"`
	Geo       *GeoFilter `json:"geo,omitempty"`
}

// HasCriteria reports whether the request carries query text or any filter
func (r SearchRequest) HasCriteria() bool {
	return strings.TrimSpace(r.Query) != "" || !r.Filters.IsEmpty() || r.Geo != nil
}

// SearchHit is one ranked pet
type SearchHit struct {
	ID        string              `json:"id"`
	Score     float64             `json:"score"`
	Source    PetDocument         `json:"source"`
	Highlight map[string][]string `json:"highlight,omitempty"`
}

// SearchResponse is an ordered page of hits
type SearchResponse struct {
	Hits         []SearchHit     `json:"hits"`
	Total        int64           `json:"total"`
	MaxScore     float64         `json:"max_score"`
	Took         int64           `json:"took"`
	Aggregations json.RawMessage `json:"aggregations,omitempty"`
}

// BuildSearchQuery translates a SearchRequest into query DSL
func BuildSearchQuery(req SearchRequest) map[string]interface{} {
	page, limit := normalizePage(req.Page, req.Limit)
	text := strings.TrimSpace(req.Query)

	boolQuery := map[string]interface{}{}
	must := []interface{}{}

	switch {
	case text == "":
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	case req.Fuzzy:
		boolQuery["should"] = []interface{}{
			map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":     text,
					"fields":    boostedFields(),
					"fuzziness": "AUTO",
					"operator":  "or",
				},
			},
			wildcard("name.keyword", text),
			wildcard("breed.keyword", text),
		}
		boolQuery["minimum_should_match"] = 1
	default:
		must = append(must, exactMatch(text))
	}

	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if filters := buildFilters(req.Filters, req.Geo); len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	return map[string]interface{}{
		"query":            map[string]interface{}{"bool": boolQuery},
		"sort":             buildSort(req.SortBy, req.SortOrder),
		"highlight":        buildHighlight(),
		"from":             (page - 1) * limit,
		"size":             limit,
		"track_total_hits": true,
	}
}

// SearchPets runs a structured pet search. Bounds on page, limit and radius
// are enforced by the caller.
func (c *Client) SearchPets(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	res, err := c.Search(ctx, c.PetsIndex(), BuildSearchQuery(req))
	if err != nil {
		return nil, fmt.Errorf("pet search failed: %w", err)
	}
	return toSearchResponse(res)
}

// DateRange bounds a date field; either end may be nil
type DateRange struct {
	Field string     `json:"field"`
	From  *time.Time `json:"from,omitempty"`
	To    *time.Time `json:"to,omitempty"`
}

// AdvancedSearchRequest accepts arbitrary field filters and aggregations.
// A scalar filter value matches exactly; a slice matches any of its values.
type AdvancedSearchRequest struct {
	Query        string                 `json:"query"`
	Filters      map[string]interface{} `json:"filters"`
	DateRange    *DateRange             `json:"date_range,omitempty"`
	Geo          *GeoFilter             `json:"geo,omitempty"`
	Aggregations map[string]interface{} `json:"aggregations,omitempty"`
	Page         int                    `json:"page"`
	Limit        int                    `json:"limit"`
	SortBy       string                 `json:"sort_by"`
	SortOrder    string                 `json:"sort_order"`
}

// keywordSubfields are text fields whose exact filters go to .keyword
var keywordSubfields = map[string]string{
	"name":               "name.keyword",
	"breed":              "breed.keyword",
	"location":           "last_seen_location.keyword",
	"last_seen_location": "last_seen_location.keyword",
}

// BuildAdvancedQuery translates an AdvancedSearchRequest into query DSL
func BuildAdvancedQuery(req AdvancedSearchRequest) map[string]interface{} {
	page, limit := normalizePage(req.Page, req.Limit)

	must := []interface{}{}
	if text := strings.TrimSpace(req.Query); text != "" {
		must = append(must, exactMatch(text))
	} else {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	filters := []interface{}{}
	for field, value := range req.Filters {
		if target, ok := keywordSubfields[field]; ok {
			field = target
		}
		switch v := value.(type) {
		case nil:
			continue
		case []interface{}:
			if len(v) > 0 {
				filters = append(filters, map[string]interface{}{"terms": map[string]interface{}{field: v}})
			}
		case []string:
			if len(v) > 0 {
				filters = append(filters, map[string]interface{}{"terms": map[string]interface{}{field: v}})
			}
		default:
			filters = append(filters, map[string]interface{}{"term": map[string]interface{}{field: v}})
		}
	}

	if dr := req.DateRange; dr != nil && (dr.From != nil || dr.To != nil) {
		field := dr.Field
		if field == "" {
			field = "created_at"
		}
		bounds := map[string]interface{}{}
		if dr.From != nil {
			bounds["gte"] = dr.From.UTC().Format(time.RFC3339)
		}
		if dr.To != nil {
			bounds["lte"] = dr.To.UTC().Format(time.RFC3339)
		}
		filters = append(filters, map[string]interface{}{"range": map[string]interface{}{field: bounds}})
	}

	if req.Geo != nil {
		filters = append(filters, geoDistance(*req.Geo))
	}

	boolQuery := map[string]interface{}{"must": must}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	body := map[string]interface{}{
		"query":            map[string]interface{}{"bool": boolQuery},
		"sort":             buildSort(req.SortBy, req.SortOrder),
		"highlight":        buildHighlight(),
		"from":             (page - 1) * limit,
		"size":             limit,
		"track_total_hits": true,
	}
	if len(req.Aggregations) > 0 {
		body["aggs"] = req.Aggregations
	}
	return body
}

// AdvancedSearch runs an advanced search and returns raw aggregations when
// any were requested
func (c *Client) AdvancedSearch(ctx context.Context, req AdvancedSearchRequest) (*SearchResponse, error) {
	res, err := c.Search(ctx, c.PetsIndex(), BuildAdvancedQuery(req))
	if err != nil {
		return nil, fmt.Errorf("advanced search failed: %w", err)
	}
	out, err := toSearchResponse(res)
	if err != nil {
		return nil, err
	}
	if len(req.Aggregations) > 0 {
		out.Aggregations = res.Aggregations
	}
	return out, nil
}

// BuildSimilarQuery builds a content-similarity query seeded by one pet
func BuildSimilarQuery(index, petID string, limit int) map[string]interface{} {
	_, limit = normalizePage(1, limit)
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"more_like_this": map[string]interface{}{
							"fields":          []string{"name", "breed", "description", "type", "color"},
							"like":            []interface{}{map[string]interface{}{"_index": index, "_id": petID}},
							"min_term_freq":   1,
							"min_doc_freq":    1,
							"max_query_terms": 25,
						},
					},
				},
				"must_not": []interface{}{
					map[string]interface{}{"ids": map[string]interface{}{"values": []string{petID}}},
				},
			},
		},
		"size": limit,
	}
}

// SimilarPets finds pets resembling petID. Standard filters do not apply.
func (c *Client) SimilarPets(ctx context.Context, petID string, limit int) (*SearchResponse, error) {
	res, err := c.Search(ctx, c.PetsIndex(), BuildSimilarQuery(c.PetsIndex(), petID, limit))
	if err != nil {
		return nil, fmt.Errorf("similar pets search failed: %w", err)
	}
	return toSearchResponse(res)
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	return page, limit
}

// boostedFields are the full-text fields in priority order
func boostedFields() []string {
	return []string{"name^3", "breed^2", "last_seen_location^1.5", "description"}
}

func exactMatch(text string) map[string]interface{} {
	return map[string]interface{}{
		"multi_match": map[string]interface{}{
			"query":    text,
			"fields":   boostedFields(),
			"operator": "and",
		},
	}
}

func wildcard(field, text string) map[string]interface{} {
	return map[string]interface{}{
		"wildcard": map[string]interface{}{
			field: map[string]interface{}{
				"value":            "*" + escapeWildcard(text) + "*",
				"case_insensitive": true,
			},
		},
	}
}

func escapeWildcard(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)
	return r.Replace(s)
}

func term(field, value string) map[string]interface{} {
	return map[string]interface{}{"term": map[string]interface{}{field: value}}
}

func geoDistance(g GeoFilter) map[string]interface{} {
	return map[string]interface{}{
		"geo_distance": map[string]interface{}{
			"distance": fmt.Sprintf("%gkm", g.RadiusKm),
			"location": map[string]interface{}{"lat": g.Latitude, "lon": g.Longitude},
		},
	}
}

func buildFilters(f PetFilters, geo *GeoFilter) []interface{} {
	filters := []interface{}{}
	if f.Type != "" {
		filters = append(filters, term("type", f.Type))
	}
	if f.Status != "" {
		filters = append(filters, term("status", f.Status))
	}
	if f.Breed != "" {
		filters = append(filters, term("breed.keyword", f.Breed))
	}
	if f.Size != "" {
		filters = append(filters, term("size", f.Size))
	}
	if f.Gender != "" {
		filters = append(filters, term("gender", f.Gender))
	}
	if f.Color != "" {
		filters = append(filters, wildcard("color", f.Color))
	}
	if f.Location != "" {
		filters = append(filters, wildcard("last_seen_location.keyword", f.Location))
	}
	if geo != nil {
		filters = append(filters, geoDistance(*geo))
	}
	return filters
}

// buildSort orders by score for relevance; the createdAt default keeps
// urgent pets ahead of all others before applying recency.
func buildSort(sortBy, order string) []interface{} {
	if order != SortAsc {
		order = SortDesc
	}

	switch sortBy {
	case SortRelevance:
		return []interface{}{map[string]interface{}{"_score": map[string]interface{}{"order": "desc"}}}
	case "", SortCreatedAt:
		return []interface{}{
			map[string]interface{}{"is_urgent": map[string]interface{}{"order": "desc"}},
			map[string]interface{}{"created_at": map[string]interface{}{"order": order}},
		}
	}

	if field, ok := singleKeySortFields[sortBy]; ok {
		return []interface{}{map[string]interface{}{field: map[string]interface{}{"order": order}}}
	}
	return buildSort(SortCreatedAt, order)
}

func buildHighlight() map[string]interface{} {
	return map[string]interface{}{
		"pre_tags":  []string{highlightPreTag},
		"post_tags": []string{highlightPostTag},
		"fields": map[string]interface{}{
			"name":               map[string]interface{}{},
			"description":        map[string]interface{}{},
			"breed":              map[string]interface{}{},
			"last_seen_location": map[string]interface{}{},
		},
	}
}

func toSearchResponse(res *Response) (*SearchResponse, error) {
	out := &SearchResponse{
		Hits:     make([]SearchHit, 0, len(res.Hits.Hits)),
		Total:    res.Hits.Total.Value,
		MaxScore: res.MaxScoreValue(),
		Took:     res.Took,
	}

	for _, hit := range res.Hits.Hits {
		var doc PetDocument
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode pet %s: %w", hit.ID, err)
		}

		sh := SearchHit{ID: hit.ID, Source: doc}
		if hit.Score != nil {
			sh.Score = *hit.Score
		}
		for field, fragments := range hit.Highlight {
			if len(fragments) == 0 {
				continue
			}
			if sh.Highlight == nil {
				sh.Highlight = make(map[string][]string)
			}
			sh.Highlight[field] = fragments
		}
		out.Hits = append(out.Hits, sh)
	}
	return out, nil
}
