package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/petfinder/internal/models"
)

type sliceSource struct {
	pets    []models.Pet
	failAt  int
	offsets []int
	mu      sync.Mutex
}

func (s *sliceSource) ListPets(_ context.Context, offset, limit int) ([]models.Pet, error) {
	s.mu.Lock()
	s.offsets = append(s.offsets, offset)
	s.mu.Unlock()
	if s.failAt > 0 && offset >= s.failAt {
		return nil, errors.New("db gone")
	}
	if offset >= len(s.pets) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.pets) {
		end = len(s.pets)
	}
	return s.pets[offset:end], nil
}

type fakeTarget struct {
	mu        sync.Mutex
	bulkFail  bool
	badPets   map[string]bool
	bulkCalls int
	indexed   map[string]bool
}

func (f *fakeTarget) BulkIndexPets(_ context.Context, pets []models.Pet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkCalls++
	if f.bulkFail {
		return errors.New("bulk rejected")
	}
	for _, p := range pets {
		f.indexed[p.ID] = true
	}
	return nil
}

func (f *fakeTarget) IndexPet(_ context.Context, pet models.Pet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.badPets[pet.ID] {
		return errors.New("mapping conflict")
	}
	f.indexed[pet.ID] = true
	return nil
}

func makePets(n int) []models.Pet {
	pets := make([]models.Pet, n)
	for i := range pets {
		pets[i] = models.Pet{ID: fmt.Sprintf("pet-%03d", i), Name: "Pet", Type: "dog", Status: "lost"}
	}
	return pets
}

func TestSync_BulkPath(t *testing.T) {
	src := &sliceSource{pets: makePets(25)}
	target := &fakeTarget{indexed: map[string]bool{}}

	res, err := New(src, target, 10, 3).Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 25, res.Total)
	assert.Equal(t, 25, res.Indexed)
	assert.Zero(t, res.Failed)
	assert.Equal(t, 3, res.Batches)
	assert.Zero(t, res.DegradedBatches)
	assert.Len(t, target.indexed, 25)
	assert.Equal(t, []int{0, 10, 20}, src.offsets)
}

func TestSync_ExactMultipleProbesOnce(t *testing.T) {
	src := &sliceSource{pets: makePets(20)}
	res, err := New(src, &fakeTarget{indexed: map[string]bool{}}, 10, 2).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Batches)
	assert.Equal(t, []int{0, 10, 20}, src.offsets)
}

func TestSync_DegradedRetryCountsFailures(t *testing.T) {
	src := &sliceSource{pets: makePets(12)}
	target := &fakeTarget{
		bulkFail: true,
		badPets:  map[string]bool{"pet-003": true, "pet-011": true},
		indexed:  map[string]bool{},
	}

	res, err := New(src, target, 5, 2).Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 12, res.Total)
	assert.Equal(t, 10, res.Indexed)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 3, res.DegradedBatches)
	assert.False(t, target.indexed["pet-003"])
	assert.True(t, target.indexed["pet-004"])
}

func TestSync_SourceErrorStopsPaging(t *testing.T) {
	src := &sliceSource{pets: makePets(30), failAt: 10}
	target := &fakeTarget{indexed: map[string]bool{}}

	res, err := New(src, target, 10, 2).Sync(context.Background())
	require.Error(t, err)
	assert.Equal(t, 10, res.Indexed)
	assert.Equal(t, 1, res.Batches)
}

func TestSync_EmptySource(t *testing.T) {
	res, err := New(&sliceSource{}, &fakeTarget{indexed: map[string]bool{}}, 0, 0).Sync(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.Zero(t, res.Batches)
}
