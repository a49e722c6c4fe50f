package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Pet statuses
const (
	PetStatusLost     = "lost"
	PetStatusFound    = "found"
	PetStatusReunited = "reunited"
)

// Contact holds how to reach the person who posted the pet
type Contact struct {
	Name  string `gorm:"type:text" json:"name"`
	Phone string `gorm:"type:text" json:"phone"`
	Email string `gorm:"type:text" json:"email"`
}

// LastSeen describes where and when the pet was last seen
type LastSeen struct {
	Location  string     `gorm:"type:text" json:"location"` // free-text address
	City      string     `gorm:"type:text" json:"city"`
	District  string     `gorm:"type:text" json:"district"`
	Date      *time.Time `json:"date,omitempty"`
	Latitude  *float64   `json:"latitude,omitempty"`
	Longitude *float64   `json:"longitude,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are set
func (l LastSeen) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// Pet is the canonical lost/found pet record
type Pet struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	UserID string `gorm:"index;size:36" json:"user_id"`

	Name        string `gorm:"type:text" json:"name"`
	Type        string `gorm:"index;not null" json:"type"` // dog, cat, bird, ...
	Breed       string `gorm:"type:text" json:"breed"`
	Color       string `gorm:"type:text" json:"color"`
	Size        string `gorm:"type:text" json:"size"`   // small, medium, large
	Gender      string `gorm:"type:text" json:"gender"` // male, female, unknown
	Age         string `gorm:"type:text" json:"age"`
	Status      string `gorm:"index;not null;default:lost" json:"status"`
	Description string `gorm:"type:text" json:"description"`

	LastSeen LastSeen `gorm:"embedded;embeddedPrefix:last_seen_" json:"last_seen"`
	Contact  Contact  `gorm:"embedded;embeddedPrefix:contact_" json:"contact"`

	ImageURLs []string `gorm:"serializer:json" json:"image_urls"`
	Reward    *int     `json:"reward,omitempty"`
	IsUrgent  bool     `gorm:"index;default:false" json:"is_urgent"`

	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name
func (Pet) TableName() string {
	return "pets"
}

// BeforeCreate assigns a UUID when none was supplied
func (p *Pet) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}
