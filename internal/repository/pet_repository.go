package repository

import (
	"context"
	"errors"

	"github.com/zfogg/petfinder/internal/models"
	"gorm.io/gorm"
)

var (
	ErrPetNotFound  = errors.New("pet not found")
	ErrInvalidInput = errors.New("invalid input")
)

// PetRepository provides read access to canonical pet records
type PetRepository interface {
	GetPet(ctx context.Context, petID string) (*models.Pet, error)
	ListPets(ctx context.Context, offset, limit int) ([]models.Pet, error)
	CountPets(ctx context.Context) (int64, error)
	CreatePet(ctx context.Context, pet *models.Pet) error
}

type petRepository struct {
	db *gorm.DB
}

// NewPetRepository creates a new pet repository
func NewPetRepository(db *gorm.DB) PetRepository {
	return &petRepository{db: db}
}

// GetPet gets a pet by ID
func (r *petRepository) GetPet(ctx context.Context, petID string) (*models.Pet, error) {
	var pet models.Pet
	err := r.db.WithContext(ctx).Where("id = ?", petID).First(&pet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPetNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pet, nil
}

// ListPets returns one page of pets in stable creation order
func (r *petRepository) ListPets(ctx context.Context, offset, limit int) ([]models.Pet, error) {
	if offset < 0 || limit <= 0 {
		return nil, ErrInvalidInput
	}

	var pets []models.Pet
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&pets).Error
	return pets, err
}

// CountPets returns the number of live pet records
func (r *petRepository) CountPets(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Pet{}).Count(&count).Error
	return count, err
}

// CreatePet inserts a pet record
func (r *petRepository) CreatePet(ctx context.Context, pet *models.Pet) error {
	if pet == nil {
		return ErrInvalidInput
	}
	return r.db.WithContext(ctx).Create(pet).Error
}
