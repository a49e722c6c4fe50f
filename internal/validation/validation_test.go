package validation

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/petfinder/internal/config"
	"github.com/zfogg/petfinder/internal/search/searchtest"
)

func TestValidateServices_NoneRequired(t *testing.T) {
	sv := NewServiceValidator(&config.Config{})
	assert.NoError(t, sv.ValidateServices(context.Background()))
}

func TestValidateServices_Elasticsearch(t *testing.T) {
	srv := searchtest.NewServer(t, searchtest.Reply(http.StatusOK, `{"cluster_name":"pets","version":{"number":"8.19.1"}}`))

	sv := NewServiceValidator(&config.Config{
		RequiredServices: []string{" Elasticsearch "},
		Elasticsearch:    config.ElasticsearchConfig{Addresses: []string{srv.URL}},
	})
	require.NoError(t, sv.ValidateServices(context.Background()))
	assert.Equal(t, "/", srv.Last(t).Path)
}

func TestValidateServices_ElasticsearchError(t *testing.T) {
	srv := searchtest.NewServer(t, searchtest.Reply(http.StatusServiceUnavailable, `{"error":"down"}`))

	sv := NewServiceValidator(&config.Config{
		RequiredServices: []string{"elasticsearch"},
		Elasticsearch:    config.ElasticsearchConfig{Addresses: []string{srv.URL}},
	})
	assert.Error(t, sv.ValidateServices(context.Background()))
}

func TestValidateServices_StopsAtFirstFailure(t *testing.T) {
	var called []string
	boom := errors.New("boom")

	sv := NewServiceValidator(&config.Config{RequiredServices: []string{"first", "second", "unknown"}}).
		WithCheck("first", func(context.Context) error { called = append(called, "first"); return boom }).
		WithCheck("second", func(context.Context) error { called = append(called, "second"); return nil })

	err := sv.ValidateServices(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first"}, called)
}

func TestValidateServices_SkipsUnknown(t *testing.T) {
	sv := NewServiceValidator(&config.Config{RequiredServices: []string{"gorse"}})
	assert.NoError(t, sv.ValidateServices(context.Background()))
}
