package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/petfinder/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Pet{}))
	return db
}

func seedPets(t *testing.T, repo PetRepository, n int) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		pet := &models.Pet{
			Name:      fmt.Sprintf("pet-%02d", i),
			Type:      "dog",
			Status:    models.PetStatusLost,
			ImageURLs: []string{"https://cdn.example.com/p.jpg"},
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, repo.CreatePet(context.Background(), pet))
	}
}

func TestPetRepository_CreateAssignsID(t *testing.T) {
	repo := NewPetRepository(setupTestDB(t))
	pet := &models.Pet{Name: "Mochi", Type: "cat", Status: models.PetStatusFound}

	require.NoError(t, repo.CreatePet(context.Background(), pet))
	assert.NotEmpty(t, pet.ID)

	got, err := repo.GetPet(context.Background(), pet.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mochi", got.Name)
}

func TestPetRepository_GetPetNotFound(t *testing.T) {
	repo := NewPetRepository(setupTestDB(t))
	_, err := repo.GetPet(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPetNotFound)
}

func TestPetRepository_ListPetsPagesInCreationOrder(t *testing.T) {
	repo := NewPetRepository(setupTestDB(t))
	seedPets(t, repo, 7)

	first, err := repo.ListPets(context.Background(), 0, 3)
	require.NoError(t, err)
	second, err := repo.ListPets(context.Background(), 3, 3)
	require.NoError(t, err)
	last, err := repo.ListPets(context.Background(), 6, 3)
	require.NoError(t, err)

	require.Len(t, first, 3)
	require.Len(t, second, 3)
	require.Len(t, last, 1)
	assert.Equal(t, "pet-00", first[0].Name)
	assert.Equal(t, "pet-03", second[0].Name)
	assert.Equal(t, "pet-06", last[0].Name)
	assert.Equal(t, []string{"https://cdn.example.com/p.jpg"}, last[0].ImageURLs)

	count, err := repo.CountPets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

func TestPetRepository_ListPetsRejectsBadWindow(t *testing.T) {
	repo := NewPetRepository(setupTestDB(t))
	_, err := repo.ListPets(context.Background(), -1, 10)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = repo.ListPets(context.Background(), 0, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
