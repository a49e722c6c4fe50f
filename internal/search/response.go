package search

import "encoding/json"

// Response is the decoded shape of a backend search response. Aggregations
// stay raw; each consumer decodes the aggregations it asked for.
type Response struct {
	Took     int64 `json:"took"`
	TimedOut bool  `json:"timed_out"`
	Hits     struct {
		Total struct {
			Value    int64  `json:"value"`
			Relation string `json:"relation"`
		} `json:"total"`
		MaxScore *float64 `json:"max_score"`
		Hits     []Hit    `json:"hits"`
	} `json:"hits"`
	Aggregations json.RawMessage           `json:"aggregations,omitempty"`
	Suggest      map[string][]SuggestEntry `json:"suggest,omitempty"`
}

// Hit is one ranked document
type Hit struct {
	Index     string              `json:"_index"`
	ID        string              `json:"_id"`
	Score     *float64            `json:"_score"`
	Source    json.RawMessage     `json:"_source"`
	Highlight map[string][]string `json:"highlight,omitempty"`
}

// SuggestEntry is the per-input result of a completion suggester
type SuggestEntry struct {
	Text    string          `json:"text"`
	Options []SuggestOption `json:"options"`
}

// SuggestOption is a single completion
type SuggestOption struct {
	Text  string  `json:"text"`
	Score float64 `json:"_score"`
	ID    string  `json:"_id"`
}

// MaxScoreValue returns max_score or 0 when the backend sent null (sorted queries)
func (r *Response) MaxScoreValue() float64 {
	if r.Hits.MaxScore == nil {
		return 0
	}
	return *r.Hits.MaxScore
}

// DecodeAggregations unmarshals the aggregations payload into out.
// A response without aggregations leaves out untouched.
func (r *Response) DecodeAggregations(out interface{}) error {
	if len(r.Aggregations) == 0 {
		return nil
	}
	return json.Unmarshal(r.Aggregations, out)
}

// SuggestOptions flattens every option returned for the named suggester
func (r *Response) SuggestOptions(name string) []SuggestOption {
	var out []SuggestOption
	for _, entry := range r.Suggest[name] {
		out = append(out, entry.Options...)
	}
	return out
}
