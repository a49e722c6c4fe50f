//go:build integration

package search

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/petfinder/internal/models"
)

// newLiveClient connects to ELASTICSEARCH_URL under a throwaway index prefix
func newLiveClient(t *testing.T) *Client {
	url := os.Getenv("ELASTICSEARCH_URL")
	if url == "" {
		t.Skip("ELASTICSEARCH_URL not set, skipping integration test")
	}

	c, err := NewClient(ClientConfig{
		Addresses:   []string{url},
		IndexPrefix: fmt.Sprintf("it-%d", time.Now().UnixNano()),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, c.Ping(ctx), "Elasticsearch should be reachable")
	require.NoError(t, c.EnsureIndices(ctx))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = c.DeleteIndex(ctx, c.PetsIndex())
		_ = c.DeleteIndex(ctx, c.AnalyticsIndex())
	})
	return c
}

func livePet(name, petType, breed, status string, lat, lon float64) models.Pet {
	return models.Pet{
		ID:     "it-" + name,
		Name:   name,
		Type:   petType,
		Breed:  breed,
		Status: status,
		LastSeen: models.LastSeen{
			City:      "Austin",
			Location:  "Zilker Park, Austin",
			Latitude:  &lat,
			Longitude: &lon,
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestLiveSearchFlow(t *testing.T) {
	c := newLiveClient(t)
	ctx := context.Background()

	pets := []models.Pet{
		livePet("Biscuit", "dog", "beagle", models.PetStatusLost, 30.2669, -97.7729),
		livePet("Pepper", "dog", "golden retriever", models.PetStatusLost, 30.2672, -97.7431),
		livePet("Mittens", "cat", "siamese", models.PetStatusFound, 45.5152, -122.6784),
	}
	require.NoError(t, c.BulkIndexPets(ctx, pets))
	require.NoError(t, c.Refresh(ctx, c.PetsIndex()))

	count, err := c.Count(ctx, c.PetsIndex())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	t.Run("fuzzy query tolerates a typo", func(t *testing.T) {
		res, err := c.SearchPets(ctx, SearchRequest{Query: "beagel", Fuzzy: true, Page: 1, Limit: 10})
		require.NoError(t, err)
		require.NotEmpty(t, res.Hits)
		assert.Equal(t, "Biscuit", res.Hits[0].Source.Name)
	})

	t.Run("filters narrow results", func(t *testing.T) {
		res, err := c.SearchPets(ctx, SearchRequest{Filters: PetFilters{Type: "dog", Status: models.PetStatusLost}, Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(2), res.Total)
	})

	t.Run("geo radius excludes distant pets", func(t *testing.T) {
		res, err := c.SearchPets(ctx, SearchRequest{
			Geo:  &GeoFilter{Latitude: 30.2672, Longitude: -97.7431, RadiusKm: 10},
			Page: 1, Limit: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), res.Total)
		for _, h := range res.Hits {
			assert.NotEqual(t, "Mittens", h.Source.Name)
		}
	})

	t.Run("similar pets exclude the source pet", func(t *testing.T) {
		res, err := c.SimilarPets(ctx, "it-Biscuit", 5)
		require.NoError(t, err)
		for _, h := range res.Hits {
			assert.NotEqual(t, "it-Biscuit", h.ID)
		}
	})

	t.Run("index version is current", func(t *testing.T) {
		stale, err := c.CheckIndexVersion(ctx, c.PetsIndex())
		require.NoError(t, err)
		assert.False(t, stale)
	})
}
