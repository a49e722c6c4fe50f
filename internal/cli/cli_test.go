package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, h http.HandlerFunc, args ...string) (string, error) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--api", srv.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func jsonHandler(t *testing.T, status int, body string, check func(r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestSearchCommandForwardsFilters(t *testing.T) {
	out, err := runCLI(t, jsonHandler(t, http.StatusOK,
		`{"hits":[{"id":"p1","score":2,"source":{"id":"p1","name":"Biscuit","type":"dog","breed":"beagle","status":"lost","last_seen_city":"Austin"}}],"total":1,"took":4,"page":1,"eventId":"ev-1"}`,
		func(r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "beagle", q.Get("q"))
			assert.Equal(t, "lost", q.Get("status"))
			assert.Equal(t, "5", q.Get("limit"))
			assert.Empty(t, q.Get("breed"))
		}),
		"search", "beagle", "--status", "lost", "--limit", "5")

	require.NoError(t, err)
	assert.Contains(t, out, "1 pets found")
	assert.Contains(t, out, "Biscuit")
	assert.Contains(t, out, "Austin")
	assert.Contains(t, out, "ev-1")
}

func TestSearchCommandJSONOutput(t *testing.T) {
	out, err := runCLI(t, jsonHandler(t, http.StatusOK, `{"hits":[],"total":0,"took":1,"page":1}`, nil),
		"-o", "json", "search", "nothing")
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.EqualValues(t, 0, decoded["total"])
}

func TestInvalidOutputFormat(t *testing.T) {
	_, err := runCLI(t, jsonHandler(t, http.StatusOK, `{}`, nil), "-o", "yaml", "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}

func TestRebuildConflict(t *testing.T) {
	out, err := runCLI(t, jsonHandler(t, http.StatusConflict,
		`{"code":"CONFLICT","message":"rebuild already in progress"}`, nil), "rebuild")
	require.Error(t, err)
	assert.Contains(t, out, "already running")
	assert.Contains(t, err.Error(), "409")
}

func TestHealthUnhealthyPrintsIndices(t *testing.T) {
	out, err := runCLI(t, jsonHandler(t, http.StatusServiceUnavailable,
		`{"status":"unhealthy","indices":[{"name":"pets","exists":false,"documentCount":0,"error":"index missing"}]}`, nil),
		"health")
	require.Error(t, err)
	assert.Contains(t, out, "unhealthy")
	assert.Contains(t, out, "index missing")
}

func TestCleanupPassesDays(t *testing.T) {
	out, err := runCLI(t, jsonHandler(t, http.StatusOK, `{"deleted":7,"daysToKeep":30}`, func(r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "30", r.URL.Query().Get("days"))
	}), "cleanup", "--days", "30")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 7 analytics events")
}

func TestSuggestCategory(t *testing.T) {
	out, err := runCLI(t, jsonHandler(t, http.StatusOK,
		`{"category":"breed","suggestions":[{"text":"beagle","score":3,"source":"breed"}]}`,
		func(r *http.Request) {
			assert.Equal(t, "/api/v1/search/suggestions/breed", r.URL.Path)
			assert.Equal(t, "bea", r.URL.Query().Get("q"))
		}),
		"suggest", "bea", "--category", "breed")
	require.NoError(t, err)
	assert.Contains(t, out, "beagle")
}

func TestLoadSettingsFromEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PETFINDER_API_BASE_URL", "http://search.internal:9000/")
	t.Setenv("PETFINDER_USER_ID", "ops")

	s, err := LoadSettings(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "http://search.internal:9000", s.BaseURL)
	assert.Equal(t, "ops", s.UserID)
	assert.Equal(t, FormatText, s.Format)
}
