package models

import (
	"time"

	"github.com/google/uuid"
)

// AgencyType distinguishes booking agents from management.
type AgencyType string

const (
	AgencyBooking    AgencyType = "booking"
	AgencyManagement AgencyType = "management"
)

// TerritoryMode selects which shows an agency commissions.
type TerritoryMode string

const (
	TerritoryWorldwide  TerritoryMode = "worldwide"
	TerritoryContinents TerritoryMode = "continents"
	TerritoryCountries  TerritoryMode = "countries"
)

// AgencyConfig is an agency an organization works with and its commission terms.
type AgencyConfig struct {
	ID             uuid.UUID     `json:"id" yaml:"-"`
	OrganizationID uuid.UUID     `json:"organization_id" yaml:"-"`
	Name           string        `json:"name" yaml:"name"`
	Type           AgencyType    `json:"type" yaml:"type"`
	CommissionPct  float64       `json:"commission_pct" yaml:"commission_pct"`
	TerritoryMode  TerritoryMode `json:"territory_mode" yaml:"territory_mode"`
	Continents     []string      `json:"continents,omitempty" yaml:"continents,omitempty"`
	Countries      []string      `json:"countries,omitempty" yaml:"countries,omitempty"`
	// AmericasPct, when set, replaces CommissionPct on Americas shows. Such an agency never
	// leads the cascade.
	AmericasPct *float64  `json:"americas_pct,omitempty" yaml:"americas_pct,omitempty"`
	Notes       string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}
