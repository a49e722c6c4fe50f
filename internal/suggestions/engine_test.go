package suggestions

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/zfogg/petfinder/internal/errors"
	"github.com/zfogg/petfinder/internal/search"
)

// stubSearcher answers by the completion field or the aggregation shape
type stubSearcher struct {
	mu     sync.Mutex
	bodies []map[string]interface{}

	completions map[string][]search.SuggestOption
	failFields  map[string]bool
	aggs        string
	aggErr      error
	delay       time.Duration
}

func (s *stubSearcher) Search(ctx context.Context, index string, body interface{}) (*search.Response, error) {
	b := body.(map[string]interface{})
	s.mu.Lock()
	s.bodies = append(s.bodies, b)
	s.mu.Unlock()

	if sug, ok := b["suggest"].(map[string]interface{}); ok {
		field := sug[suggesterName].(map[string]interface{})["completion"].(map[string]interface{})["field"].(string)
		if s.failFields[field] {
			return nil, &apperrors.BackendError{Op: "search", Index: index, Status: 503}
		}
		return &search.Response{Suggest: map[string][]search.SuggestEntry{
			suggesterName: {{Options: s.completions[field]}},
		}}, nil
	}

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.aggErr != nil {
		return nil, s.aggErr
	}
	return &search.Response{Aggregations: json.RawMessage(s.aggs)}, nil
}

func (s *stubSearcher) aggBodies() []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []map[string]interface{}
	for _, b := range s.bodies {
		if _, ok := b["aggs"]; ok {
			out = append(out, b)
		}
	}
	return out
}

func TestMergeSuggestions(t *testing.T) {
	names := []Suggestion{{Text: "Mochi", Score: 2, Source: SourceName}, {Text: "Max", Score: 1, Source: SourceName}}
	breeds := []Suggestion{{Text: "Maltese", Score: 5, Source: SourceBreed}, {Text: "Mochi", Score: 9, Source: SourceBreed}}

	got := MergeSuggestions(10, names, breeds)
	assert.Equal(t, []Suggestion{
		{Text: "Maltese", Score: 5, Source: SourceBreed},
		{Text: "Mochi", Score: 2, Source: SourceName},
		{Text: "Max", Score: 1, Source: SourceName},
	}, got)

	assert.Len(t, MergeSuggestions(2, names, breeds), 2)
	assert.Empty(t, MergeSuggestions(5))
}

func TestPrefix_MergesAndDegradesPerField(t *testing.T) {
	stub := &stubSearcher{
		completions: map[string][]search.SuggestOption{
			"name.suggest":               {{Text: "Mimi", Score: 3}, {Text: "Milo", Score: 1}},
			"last_seen_location.suggest": {{Text: "Minsheng Park", Score: 2}, {Text: "Mimi", Score: 8}},
		},
		failFields: map[string]bool{"breed.suggest": true},
	}
	e := NewEngine(stub, "pets", "analytics", time.Second)

	got := e.Prefix(context.Background(), "mi", 10)
	require.Len(t, got, 3)
	assert.Equal(t, Suggestion{Text: "Mimi", Score: 3, Source: SourceName}, got[0])
	assert.Equal(t, "Minsheng Park", got[1].Text)
	assert.Equal(t, SourceLocation, got[1].Source)
	assert.Equal(t, "Milo", got[2].Text)
}

func TestPrefix_EmptyText(t *testing.T) {
	stub := &stubSearcher{}
	e := NewEngine(stub, "pets", "analytics", 0)
	assert.Empty(t, e.Prefix(context.Background(), "  ", 5))
	assert.Empty(t, stub.bodies)
}

func TestCategory(t *testing.T) {
	stub := &stubSearcher{completions: map[string][]search.SuggestOption{
		"breed.suggest": {{Text: "柴犬", Score: 4}},
	}}
	e := NewEngine(stub, "pets", "analytics", 0)

	got, err := e.Category(context.Background(), SourceBreed, "柴", 5)
	require.NoError(t, err)
	assert.Equal(t, []Suggestion{{Text: "柴犬", Score: 4, Source: SourceBreed}}, got)

	_, err = e.Category(context.Background(), "color", "bl", 5)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidRequest))
}

func TestPopular_ScopesAndSkipsEmptyKeys(t *testing.T) {
	stub := &stubSearcher{aggs: `{"queries":{"buckets":[{"key":"shiba","doc_count":9},{"key":"","doc_count":4},{"key":"corgi","doc_count":2}]}}`}
	e := NewEngine(stub, "pets", "analytics", 0)

	got, err := e.Popular(context.Background(), "", "breed", 5)
	require.NoError(t, err)
	assert.Equal(t, []Suggestion{
		{Text: "shiba", Score: 9, Source: SourcePopular},
		{Text: "corgi", Score: 2, Source: SourcePopular},
	}, got)

	body := stub.aggBodies()[0]
	filters := body["query"].(map[string]interface{})["bool"].(map[string]interface{})["filter"].([]interface{})
	assert.Equal(t, []interface{}{map[string]interface{}{"exists": map[string]interface{}{"field": "filters.breed"}}}, filters)
}

func TestRelated_ExcludesInput(t *testing.T) {
	stub := &stubSearcher{aggs: `{"queries":{"buckets":[{"key":"black cat","doc_count":3}]}}`}
	e := NewEngine(stub, "pets", "analytics", 0)

	got, err := e.Related(context.Background(), "cat", 3)
	require.NoError(t, err)
	assert.Equal(t, []Suggestion{{Text: "black cat", Score: 3, Source: SourceRelated}}, got)

	b := stub.aggBodies()[0]["query"].(map[string]interface{})["bool"].(map[string]interface{})
	assert.Contains(t, b["must_not"], map[string]interface{}{"term": map[string]interface{}{"query.keyword": "cat"}})
}

func TestHistory_OrdersByRecency(t *testing.T) {
	stub := &stubSearcher{aggs: `{"queries":{"buckets":[
		{"key":"tabby","doc_count":1,"last_searched":{"value":2000}},
		{"key":"husky","doc_count":5,"last_searched":{"value":1000}}]}}`}
	e := NewEngine(stub, "pets", "analytics", 0)

	got, err := e.History(context.Background(), "u1", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "tabby", got[0].Text)
	assert.Equal(t, float64(2000), got[0].Score)

	terms := stub.aggBodies()[0]["aggs"].(map[string]interface{})["queries"].(map[string]interface{})["terms"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"last_searched": "desc"}, terms["order"])
}

func TestSmart_BudgetsAndIndependentLists(t *testing.T) {
	stub := &stubSearcher{
		completions: map[string][]search.SuggestOption{"name.suggest": {{Text: "Lucky", Score: 1}}},
		aggs:        `{"queries":{"buckets":[{"key":"lucky dog","doc_count":2}]}}`,
	}
	e := NewEngine(stub, "pets", "analytics", time.Second)

	got := e.Smart(context.Background(), "luck", "u1", 12)
	assert.Len(t, got.AutoComplete, 1)
	assert.Len(t, got.Popular, 1)
	assert.Len(t, got.Related, 1)
	assert.Len(t, got.History, 1)

	sizes := map[float64]int{}
	for _, b := range stub.aggBodies() {
		size := b["aggs"].(map[string]interface{})["queries"].(map[string]interface{})["terms"].(map[string]interface{})["size"]
		sizes[float64(size.(int))]++
	}
	// popular and related get a third each, history a quarter
	assert.Equal(t, map[float64]int{4: 2, 3: 1}, sizes)
}

func TestSmart_NoUserOmitsHistory(t *testing.T) {
	e := NewEngine(&stubSearcher{aggs: `{}`}, "pets", "analytics", time.Second)
	got := e.Smart(context.Background(), "x", "", 1)
	assert.Nil(t, got.History)
	assert.NotNil(t, got.Popular)
}

func TestSmart_FailingAndSlowBranchesDegrade(t *testing.T) {
	stub := &stubSearcher{
		completions: map[string][]search.SuggestOption{"breed.suggest": {{Text: "Beagle", Score: 1}}},
		delay:       time.Second,
	}
	e := NewEngine(stub, "pets", "analytics", 50*time.Millisecond)

	start := time.Now()
	got := e.Smart(context.Background(), "bea", "u1", 8)
	assert.Less(t, time.Since(start), 900*time.Millisecond)

	assert.Equal(t, []Suggestion{{Text: "Beagle", Score: 1, Source: SourceBreed}}, got.AutoComplete)
	assert.Empty(t, got.Popular)
	assert.Empty(t, got.Related)
	assert.NotNil(t, got.History)
	assert.Empty(t, got.History)
}

func TestBudget(t *testing.T) {
	assert.Equal(t, 1, budget(1, 2))
	assert.Equal(t, 6, budget(12, 2))
	assert.Equal(t, 1, budget(3, 4))
}
