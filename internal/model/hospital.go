package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/lifeline/donation-api/pkg/geo"
)

const (
	MinUrgencyLevel = 1
	MaxUrgencyLevel = 5
)

type Hospital struct {
	ID     uuid.UUID `json:"id" db:"id"`
	UserID uuid.UUID `json:"user_id" db:"user_id"`
	Name   string    `json:"name" db:"name"`
	Address
	Phone             string    `json:"phone" db:"phone"`
	Email             string    `json:"email" db:"email"`
	Latitude          *float64  `json:"latitude" db:"latitude"`
	Longitude         *float64  `json:"longitude" db:"longitude"`
	BloodUrgencyLevel int       `json:"blood_urgency_level" db:"blood_urgency_level"`
	OperatingHours    string    `json:"operating_hours" db:"operating_hours"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

func (h *Hospital) Location() (geo.Point, bool) {
	return location(h.Latitude, h.Longitude)
}

func (h *Hospital) DisplayAddress() string {
	return h.Address.Display()
}

type HospitalProfileRequest struct {
	Name string `json:"name" binding:"required,max=200"`
	Address
	Phone          string   `json:"phone" binding:"max=30"`
	Email          string   `json:"email" binding:"omitempty,email"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	OperatingHours string   `json:"operating_hours" binding:"max=500"`
}

type UrgencyLevelRequest struct {
	Level int `json:"level"`
}

// HospitalMapEntry is a hospital shown on the shared map.
type HospitalMapEntry struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Address           string    `json:"address"`
	Phone             string    `json:"phone"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	BloodUrgencyLevel int       `json:"blood_urgency_level"`
	OperatingHours    string    `json:"operating_hours"`
}

// InventoryItem is the unit count for one (hospital, blood type) pair.
type InventoryItem struct {
	HospitalID     uuid.UUID `json:"hospital_id" db:"hospital_id"`
	BloodType      BloodType `json:"blood_type" db:"blood_type"`
	UnitsAvailable int       `json:"units_available" db:"units_available"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Inventory maps every blood type to its unit count.
type Inventory map[BloodType]int

// NewInventory returns an inventory with every type present and zero.
func NewInventory(items []*InventoryItem) Inventory {
	inv := make(Inventory, len(BloodTypes))
	for _, bt := range BloodTypes {
		inv[bt] = 0
	}
	for _, item := range items {
		inv[item.BloodType] = item.UnitsAvailable
	}
	return inv
}
