package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/zfogg/petfinder/internal/logger"
	"github.com/zfogg/petfinder/internal/models"
	"github.com/zfogg/petfinder/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SeedUserPrefix marks user IDs created by the seeder so Clean only removes
// generated pets.
const SeedUserPrefix = "seed-"

type city struct {
	name      string
	districts []string
	lat, lon  float64
}

var cities = []city{
	{"Austin", []string{"Downtown", "Hyde Park", "Zilker", "Mueller"}, 30.2672, -97.7431},
	{"Portland", []string{"Pearl", "Alberta", "Sellwood", "Hawthorne"}, 45.5152, -122.6784},
	{"Denver", []string{"LoDo", "Highlands", "Capitol Hill", "Baker"}, 39.7392, -104.9903},
	{"Chicago", []string{"Wicker Park", "Lincoln Park", "Pilsen", "Hyde Park"}, 41.8781, -87.6298},
	{"Boston", []string{"Back Bay", "Jamaica Plain", "Somerville", "South End"}, 42.3601, -71.0589},
}

var (
	petSizes   = []string{"small", "medium", "large"}
	petGenders = []string{"male", "female", "unknown"}
	petColors  = []string{"black", "white", "brown", "golden", "grey", "orange", "tabby", "spotted", "cream"}
	petAges    = []string{"puppy", "kitten", "young", "adult", "senior"}
	petTraits  = []string{"friendly", "shy", "wearing a red collar", "microchipped", "limps slightly", "very vocal", "has a notched ear"}
)

// Seeder generates realistic pet records
type Seeder struct {
	db   *gorm.DB
	pets repository.PetRepository
	fake *gofakeit.Faker
}

// NewSeeder creates a seeder. A zero seed uses the current time.
func NewSeeder(db *gorm.DB, seed uint64) *Seeder {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Seeder{
		db:   db,
		pets: repository.NewPetRepository(db),
		fake: gofakeit.New(seed),
	}
}

// SeedDev creates a large mixed data set for local development
func (s *Seeder) SeedDev(ctx context.Context) error {
	logger.Log.Info("Creating pets...")
	n, err := s.SeedPets(ctx, 500)
	if err != nil {
		return fmt.Errorf("failed to seed pets: %w", err)
	}
	logger.Log.Info("Seeded pets", zap.Int("count", n))
	return nil
}

// SeedTest creates a small fixed set of pets that e2e tests can search for
func (s *Seeder) SeedTest(ctx context.Context) error {
	fixtures := []models.Pet{
		{Name: "Buddy", Type: "dog", Breed: "golden retriever", Color: "golden", Size: "large", Gender: "male", Status: models.PetStatusLost, IsUrgent: true},
		{Name: "Luna", Type: "cat", Breed: "siamese", Color: "cream", Size: "small", Gender: "female", Status: models.PetStatusLost},
		{Name: "Max", Type: "dog", Breed: "beagle", Color: "brown", Size: "medium", Gender: "male", Status: models.PetStatusFound},
		{Name: "Kiwi", Type: "bird", Breed: "parakeet", Color: "green", Size: "small", Gender: "unknown", Status: models.PetStatusLost},
		{Name: "Shadow", Type: "cat", Breed: "domestic shorthair", Color: "black", Size: "medium", Gender: "male", Status: models.PetStatusReunited},
	}

	for i := range fixtures {
		pet := &fixtures[i]
		c := cities[i%len(cities)]
		lat, lon := c.lat, c.lon
		seen := time.Now().UTC().AddDate(0, 0, -(i + 1))

		pet.ID = fmt.Sprintf("%stest-pet-%d", SeedUserPrefix, i+1)
		pet.UserID = SeedUserPrefix + "test"
		pet.Description = fmt.Sprintf("%s the %s, last seen in %s", pet.Name, pet.Breed, c.name)
		pet.LastSeen = models.LastSeen{
			Location:  fmt.Sprintf("%s, %s", c.districts[0], c.name),
			City:      c.name,
			District:  c.districts[0],
			Date:      &seen,
			Latitude:  &lat,
			Longitude: &lon,
		}
		pet.Contact = models.Contact{Name: "Test Owner", Email: "owner@example.com"}

		var existing models.Pet
		if err := s.db.WithContext(ctx).Where("id = ?", pet.ID).First(&existing).Error; err == nil {
			continue
		}
		if err := s.pets.CreatePet(ctx, pet); err != nil {
			return fmt.Errorf("failed to create test pet %s: %w", pet.Name, err)
		}
	}
	return nil
}

// SeedPets generates n random pets and stores them in batches
func (s *Seeder) SeedPets(ctx context.Context, n int) (int, error) {
	pets := make([]models.Pet, 0, n)
	owners := max(n/4, 1)
	for i := 0; i < n; i++ {
		pets = append(pets, s.fakePet(fmt.Sprintf("%suser-%d", SeedUserPrefix, i%owners)))
	}
	if err := s.db.WithContext(ctx).CreateInBatches(pets, 100).Error; err != nil {
		return 0, err
	}
	return len(pets), nil
}

func (s *Seeder) fakePet(userID string) models.Pet {
	f := s.fake

	petType := f.RandomString([]string{"dog", "dog", "dog", "cat", "cat", "bird", "rabbit"})
	var breed string
	switch petType {
	case "dog":
		breed = strings.ToLower(f.Dog())
	case "cat":
		breed = strings.ToLower(f.Cat())
	case "bird":
		breed = strings.ToLower(f.Bird())
	default:
		breed = f.RandomString([]string{"lop", "rex", "dutch", "lionhead"})
	}

	c := cities[f.IntRange(0, len(cities)-1)]
	district := f.RandomString(c.districts)
	// ~3km jitter around the city centre
	lat := c.lat + f.Float64Range(-0.03, 0.03)
	lon := c.lon + f.Float64Range(-0.03, 0.03)

	created := f.DateRange(time.Now().AddDate(0, -3, 0), time.Now()).UTC()
	seen := created.Add(-time.Duration(f.IntRange(1, 72)) * time.Hour)

	status := f.RandomString([]string{models.PetStatusLost, models.PetStatusLost, models.PetStatusFound, models.PetStatusReunited})
	color := f.RandomString(petColors)

	pet := models.Pet{
		UserID:      userID,
		Name:        f.PetName(),
		Type:        petType,
		Breed:       breed,
		Color:       color,
		Size:        f.RandomString(petSizes),
		Gender:      f.RandomString(petGenders),
		Age:         f.RandomString(petAges),
		Status:      status,
		Description: fmt.Sprintf("A %s %s %s, %s.", color, breed, petType, f.RandomString(petTraits)),
		LastSeen: models.LastSeen{
			Location:  fmt.Sprintf("%s, %s, %s", f.Street(), district, c.name),
			City:      c.name,
			District:  district,
			Date:      &seen,
			Latitude:  &lat,
			Longitude: &lon,
		},
		Contact: models.Contact{
			Name:  f.Name(),
			Phone: f.Phone(),
			Email: f.Email(),
		},
		ImageURLs: []string{fmt.Sprintf("https://images.example.com/pets/%s.jpg", f.UUID())},
		IsUrgent:  status == models.PetStatusLost && f.IntRange(0, 4) == 0,
		CreatedAt: created,
		UpdatedAt: created,
	}
	if status == models.PetStatusLost && f.Bool() {
		reward := f.IntRange(1, 10) * 50
		pet.Reward = &reward
	}
	return pet
}

// Clean hard-deletes every pet owned by a seed user
func (s *Seeder) Clean(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Unscoped().
		Where("user_id LIKE ?", SeedUserPrefix+"%").
		Delete(&models.Pet{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to clean pets: %w", res.Error)
	}
	return res.RowsAffected, nil
}
