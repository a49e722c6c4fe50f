package search

import (
	"context"
	"fmt"
	"time"

	"github.com/zfogg/petfinder/internal/models"
)

// GeoPoint is the backend's geo_point object form
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PetDocument is the flattened pet shape stored in the pets index
type PetDocument struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id,omitempty"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Breed       string `json:"breed,omitempty"`
	Color       string `json:"color,omitempty"`
	Size        string `json:"size,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Age         string `json:"age,omitempty"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`

	LastSeenLocation string     `json:"last_seen_location,omitempty"`
	LastSeenCity     string     `json:"last_seen_city,omitempty"`
	LastSeenDistrict string     `json:"last_seen_district,omitempty"`
	LastSeenDate     *time.Time `json:"last_seen_date,omitempty"`
	Location         *GeoPoint  `json:"location,omitempty"`

	ContactName  string `json:"contact_name,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`

	ImageURLs []string  `json:"image_urls,omitempty"`
	Reward    *int      `json:"reward,omitempty"`
	IsUrgent  bool      `json:"is_urgent"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PetToSearchDoc flattens the nested contact and last-seen structures
func PetToSearchDoc(pet models.Pet) PetDocument {
	doc := PetDocument{
		ID:               pet.ID,
		UserID:           pet.UserID,
		Name:             pet.Name,
		Type:             pet.Type,
		Breed:            pet.Breed,
		Color:            pet.Color,
		Size:             pet.Size,
		Gender:           pet.Gender,
		Age:              pet.Age,
		Status:           pet.Status,
		Description:      pet.Description,
		LastSeenLocation: pet.LastSeen.Location,
		LastSeenCity:     pet.LastSeen.City,
		LastSeenDistrict: pet.LastSeen.District,
		LastSeenDate:     pet.LastSeen.Date,
		ContactName:      pet.Contact.Name,
		ContactPhone:     pet.Contact.Phone,
		ContactEmail:     pet.Contact.Email,
		ImageURLs:        pet.ImageURLs,
		Reward:           pet.Reward,
		IsUrgent:         pet.IsUrgent,
		CreatedAt:        pet.CreatedAt,
		UpdatedAt:        pet.UpdatedAt,
	}
	if pet.LastSeen.HasCoordinates() {
		doc.Location = &GeoPoint{Lat: *pet.LastSeen.Latitude, Lon: *pet.LastSeen.Longitude}
	}
	return doc
}

// IndexPet indexes one pet document
func (c *Client) IndexPet(ctx context.Context, pet models.Pet) error {
	doc := PetToSearchDoc(pet)
	if doc.ID == "" {
		return fmt.Errorf("cannot index pet without id")
	}
	return c.IndexDocument(ctx, c.PetsIndex(), doc.ID, doc, false)
}

// BulkIndexPets indexes pets in one request and reports only overall
// success. Callers needing per-pet results must fall back to IndexPet.
func (c *Client) BulkIndexPets(ctx context.Context, pets []models.Pet) error {
	items := make([]BulkItem, 0, len(pets))
	for _, pet := range pets {
		doc := PetToSearchDoc(pet)
		items = append(items, BulkItem{ID: doc.ID, Document: doc})
	}
	return c.Bulk(ctx, c.PetsIndex(), items)
}

// UpdatePet applies a partial document update
func (c *Client) UpdatePet(ctx context.Context, petID string, fields map[string]interface{}) error {
	return c.UpdateDocument(ctx, c.PetsIndex(), petID, map[string]interface{}{"doc": fields})
}

// DeletePet removes a pet document
func (c *Client) DeletePet(ctx context.Context, petID string) error {
	return c.DeleteDocument(ctx, c.PetsIndex(), petID)
}
