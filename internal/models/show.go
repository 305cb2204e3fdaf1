package models

import (
	"time"

	"github.com/google/uuid"
)

// ShowStatus is the booking state of a show.
type ShowStatus string

const (
	ShowConfirmed ShowStatus = "confirmed"
	ShowPending   ShowStatus = "pending"
	ShowCancelled ShowStatus = "cancelled"
	ShowOffer     ShowStatus = "offer"
)

// Valid reports whether s is a known status.
func (s ShowStatus) Valid() bool {
	switch s {
	case ShowConfirmed, ShowPending, ShowCancelled, ShowOffer:
		return true
	}
	return false
}

// Show is a single performance booked (or offered) for an organization.
type Show struct {
	ID               uuid.UUID  `json:"id"`
	OrganizationID   uuid.UUID  `json:"organization_id"`
	Name             string     `json:"name"`
	Date             time.Time  `json:"date"`
	Venue            string     `json:"venue"`
	City             string     `json:"city"`
	Country          string     `json:"country"`
	Fee              float64    `json:"fee"`
	Currency         string     `json:"currency"`
	Status           ShowStatus `json:"status"`
	BookingAgency    string     `json:"booking_agency,omitempty"`
	ManagementAgency string     `json:"management_agency,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	CreatedBy        uuid.UUID  `json:"created_by"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
