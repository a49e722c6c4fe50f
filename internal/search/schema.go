package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/zfogg/petfinder/internal/logger"
	"github.com/zfogg/petfinder/internal/metrics"
	"go.uber.org/zap"
)

// IndexVersion is stored in each index's _meta. Bump it whenever a mapping
// or analysis setting changes so CheckIndexVersion reports the drift.
const IndexVersion = 1

// IndexDescriptor names an index and the mappings it is created with
type IndexDescriptor struct {
	Name     string
	Mappings map[string]interface{}
}

// IndexStats is the subset of index statistics surfaced for observability
type IndexStats struct {
	Index          string `json:"index"`
	DocumentCount  int64  `json:"document_count"`
	DeletedCount   int64  `json:"deleted_count"`
	StoreSizeBytes int64  `json:"store_size_bytes"`
}

// Synonym groups for domain vocabulary: species, breed aliases,
// color and size words, and regional place names.
var petSynonyms = []string{
	"dog, puppy, canine, 狗, 犬, 狗狗",
	"cat, kitten, feline, 貓, 猫, 貓咪",
	"bird, parrot, 鳥, 鸚鵡",
	"rabbit, bunny, 兔, 兔子",
	"shiba, shiba inu, 柴犬, 柴柴",
	"golden retriever, golden, 黃金獵犬",
	"labrador, lab, 拉布拉多",
	"corgi, 柯基",
	"poodle, 貴賓, 貴賓犬",
	"husky, siberian husky, 哈士奇",
	"mixed, mutt, 米克斯, 混種",
	"black, 黑, 黑色",
	"white, 白, 白色",
	"brown, 棕, 棕色, 咖啡色",
	"orange, ginger, 橘, 橘色",
	"small, 小, 小型",
	"medium, 中, 中型",
	"large, big, 大, 大型",
	"taipei, 台北, 臺北",
	"new taipei, 新北",
	"taichung, 台中, 臺中",
	"tainan, 台南, 臺南",
	"kaohsiung, 高雄",
}

// analysisSettings is shared by every index this package creates
func analysisSettings() map[string]interface{} {
	return map[string]interface{}{
		"analysis": map[string]interface{}{
			"filter": map[string]interface{}{
				"pet_synonyms": map[string]interface{}{
					"type":     "synonym_graph",
					"synonyms": petSynonyms,
				},
				"pet_stop": map[string]interface{}{
					"type":      "stop",
					"stopwords": "_english_",
				},
			},
			"analyzer": map[string]interface{}{
				"pet_text": map[string]interface{}{
					"type":      "custom",
					"tokenizer": "standard",
					"filter":    []string{"cjk_width", "lowercase", "pet_stop"},
				},
				"pet_search": map[string]interface{}{
					"type":      "custom",
					"tokenizer": "standard",
					"filter":    []string{"cjk_width", "lowercase", "pet_stop", "pet_synonyms"},
				},
			},
		},
	}
}

func textField(withSuggest bool) map[string]interface{} {
	fields := map[string]interface{}{
		"keyword": map[string]interface{}{"type": "keyword", "ignore_above": 256},
	}
	if withSuggest {
		fields["suggest"] = map[string]interface{}{"type": "completion", "analyzer": "simple"}
	}
	return map[string]interface{}{
		"type":            "text",
		"analyzer":        "pet_text",
		"search_analyzer": "pet_search",
		"fields":          fields,
	}
}

func keyword() map[string]interface{} {
	return map[string]interface{}{"type": "keyword"}
}

// PetsDescriptor describes the pet document index
func (c *Client) PetsDescriptor() IndexDescriptor {
	return IndexDescriptor{
		Name: c.PetsIndex(),
		Mappings: map[string]interface{}{
			"_meta": map[string]interface{}{"version": IndexVersion},
			"properties": map[string]interface{}{
				"id":      keyword(),
				"user_id": keyword(),
				"name":    textField(true),
				"type": map[string]interface{}{
					"type": "keyword",
					"fields": map[string]interface{}{
						"suggest": map[string]interface{}{"type": "completion", "analyzer": "simple"},
					},
				},
				"breed":              textField(true),
				"color":              keyword(),
				"size":               keyword(),
				"gender":             keyword(),
				"age":                keyword(),
				"status":             keyword(),
				"description":        map[string]interface{}{"type": "text", "analyzer": "pet_text", "search_analyzer": "pet_search"},
				"last_seen_location": textField(true),
				"last_seen_city":     keyword(),
				"last_seen_district": keyword(),
				"last_seen_date":     map[string]interface{}{"type": "date"},
				"location":           map[string]interface{}{"type": "geo_point"},
				"contact_name":       map[string]interface{}{"type": "keyword", "index": false},
				"contact_phone":      map[string]interface{}{"type": "keyword", "index": false},
				"contact_email":      map[string]interface{}{"type": "keyword", "index": false},
				"image_urls":         map[string]interface{}{"type": "keyword", "index": false},
				"reward":             map[string]interface{}{"type": "integer"},
				"is_urgent":          map[string]interface{}{"type": "boolean"},
				"created_at":         map[string]interface{}{"type": "date"},
				"updated_at":         map[string]interface{}{"type": "date"},
			},
		},
	}
}

// AnalyticsDescriptor describes the search analytics index
func (c *Client) AnalyticsDescriptor() IndexDescriptor {
	return IndexDescriptor{
		Name: c.AnalyticsIndex(),
		Mappings: map[string]interface{}{
			"_meta": map[string]interface{}{"version": IndexVersion},
			"properties": map[string]interface{}{
				"id": keyword(),
				"query": map[string]interface{}{
					"type":     "text",
					"analyzer": "pet_text",
					"fields": map[string]interface{}{
						"keyword": map[string]interface{}{"type": "keyword", "ignore_above": 256},
					},
				},
				"filters": map[string]interface{}{
					"properties": map[string]interface{}{
						"type":     keyword(),
						"status":   keyword(),
						"breed":    keyword(),
						"location": keyword(),
						"size":     keyword(),
						"gender":   keyword(),
						"color":    keyword(),
						"has_geo":  map[string]interface{}{"type": "boolean"},
					},
				},
				"user_id":      keyword(),
				"result_count": map[string]interface{}{"type": "integer"},
				"timestamp":    map[string]interface{}{"type": "date"},
				"session_id":   keyword(),
				"user_agent":   keyword(),
				"ip":           keyword(),
				"clicks": map[string]interface{}{
					"type": "nested",
					"properties": map[string]interface{}{
						"pet_id":    keyword(),
						"position":  map[string]interface{}{"type": "integer"},
						"timestamp": map[string]interface{}{"type": "date"},
					},
				},
				"click_count":        map[string]interface{}{"type": "integer"},
				"search_duration_ms": map[string]interface{}{"type": "long"},
			},
		},
	}
}

// IndexExists reports whether the named index exists
func (c *Client) IndexExists(ctx context.Context, name string) (bool, error) {
	res, err := c.es.Indices.Exists([]string{name}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, transportError("exists", name, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusOK:
		return true, nil
	case res.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, decodeError("exists", name, res)
	}
}

// EnsureIndex creates the index when absent. It reports whether a new
// index was created; an existing index is left untouched.
func (c *Client) EnsureIndex(ctx context.Context, d IndexDescriptor) (bool, error) {
	exists, err := c.IndexExists(ctx, d.Name)
	if err != nil {
		return false, fmt.Errorf("failed to check index %s: %w", d.Name, err)
	}
	if exists {
		return false, nil
	}

	if err := c.createIndex(ctx, d); err != nil {
		return false, err
	}
	logger.Log.Info("Created search index", zap.String("index", d.Name), zap.Int("version", IndexVersion))
	return true, nil
}

// EnsureIndices creates every index the service needs
func (c *Client) EnsureIndices(ctx context.Context) error {
	for _, d := range []IndexDescriptor{c.PetsDescriptor(), c.AnalyticsDescriptor()} {
		if _, err := c.EnsureIndex(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// RebuildIndex drops and recreates the index. The index is absent between
// the two calls; concurrent rebuilds of one index must be serialized by the
// caller.
func (c *Client) RebuildIndex(ctx context.Context, d IndexDescriptor) error {
	if err := c.DeleteIndex(ctx, d.Name); err != nil {
		metrics.ElasticsearchRebuildsTotal.WithLabelValues(d.Name, "error").Inc()
		return err
	}
	if err := c.createIndex(ctx, d); err != nil {
		metrics.ElasticsearchRebuildsTotal.WithLabelValues(d.Name, "error").Inc()
		return err
	}
	metrics.ElasticsearchRebuildsTotal.WithLabelValues(d.Name, "success").Inc()
	logger.Log.Info("Rebuilt search index", zap.String("index", d.Name))
	return nil
}

// DeleteIndex deletes an index. Deleting a missing index succeeds.
func (c *Client) DeleteIndex(ctx context.Context, name string) error {
	res, err := c.es.Indices.Delete([]string{name}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return transportError("delete_index", name, err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return decodeError("delete_index", name, res)
	}
	return nil
}

// GetStats returns document and store statistics for an index
func (c *Client) GetStats(ctx context.Context, name string) (*IndexStats, error) {
	res, err := c.es.Indices.Stats(
		c.es.Indices.Stats.WithContext(ctx),
		c.es.Indices.Stats.WithIndex(name),
	)
	if err != nil {
		return nil, transportError("stats", name, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, decodeError("stats", name, res)
	}

	var out struct {
		All struct {
			Primaries struct {
				Docs struct {
					Count   int64 `json:"count"`
					Deleted int64 `json:"deleted"`
				} `json:"docs"`
				Store struct {
					SizeInBytes int64 `json:"size_in_bytes"`
				} `json:"store"`
			} `json:"primaries"`
		} `json:"_all"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode index stats: %w", err)
	}

	stats := &IndexStats{
		Index:          name,
		DocumentCount:  out.All.Primaries.Docs.Count,
		DeletedCount:   out.All.Primaries.Docs.Deleted,
		StoreSizeBytes: out.All.Primaries.Store.SizeInBytes,
	}
	metrics.ElasticsearchDocumentCount.WithLabelValues(name).Set(float64(stats.DocumentCount))
	return stats, nil
}

// CheckIndexVersion reports whether the index is missing or was created
// with an older mapping version and therefore needs a rebuild.
func (c *Client) CheckIndexVersion(ctx context.Context, name string) (bool, error) {
	res, err := c.es.Indices.GetMapping(
		c.es.Indices.GetMapping.WithContext(ctx),
		c.es.Indices.GetMapping.WithIndex(name),
	)
	if err != nil {
		return false, transportError("get_mapping", name, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return true, nil
	}
	if res.IsError() {
		return false, decodeError("get_mapping", name, res)
	}

	var out map[string]struct {
		Mappings struct {
			Meta struct {
				Version int `json:"version"`
			} `json:"_meta"`
		} `json:"mappings"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return true, nil
	}

	for _, idx := range out {
		if idx.Mappings.Meta.Version < IndexVersion {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) createIndex(ctx context.Context, d IndexDescriptor) error {
	body, err := json.Marshal(map[string]interface{}{
		"settings": analysisSettings(),
		"mappings": d.Mappings,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal index definition: %w", err)
	}

	res, err := c.es.Indices.Create(d.Name,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return transportError("create_index", d.Name, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return decodeError("create_index", d.Name, res)
	}
	return nil
}
