package agencies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontour-app/backend/internal/models"
)

func pct(v float64) *float64 { return &v }

var (
	uta = models.AgencyConfig{
		Name: "UTA", Type: models.AgencyBooking, CommissionPct: 10,
		TerritoryMode: models.TerritoryWorldwide,
	}
	creativePrimates = models.AgencyConfig{
		Name: "CreativePrimates", Type: models.AgencyManagement, CommissionPct: 15,
		TerritoryMode: models.TerritoryWorldwide,
	}
	bothAgencies = []models.AgencyConfig{uta, creativePrimates}
)

func show(fee float64, country string) models.Show {
	return models.Show{
		Fee:              fee,
		Country:          country,
		Status:           models.ShowConfirmed,
		BookingAgency:    "UTA",
		ManagementAgency: "CreativePrimates",
	}
}

func TestComputeCommissionExampleScenario(t *testing.T) {
	assert.InDelta(t, 2350.0, ComputeCommission(show(10000, "US"), bothAgencies), 1e-9)
}

func TestComputeCommissionAmericasCascade(t *testing.T) {
	for _, fee := range []float64{1, 999.5, 10000, 123456.78} {
		for _, country := range []string{"US", "mx", "BR", "AR"} {
			want := fee*0.10 + (fee-fee*0.10)*0.15
			assert.InDelta(t, want, ComputeCommission(show(fee, country), bothAgencies), 1e-6, "%s %v", country, fee)
		}
	}
}

func TestComputeCommissionIndependentOutsideAmericas(t *testing.T) {
	for _, fee := range []float64{1, 5000, 10000} {
		for _, country := range []string{"GB", "DE", "JP", "ZA", "AU"} {
			want := fee*0.10 + fee*0.15
			assert.InDelta(t, want, ComputeCommission(show(fee, country), bothAgencies), 1e-6, "%s %v", country, fee)
		}
	}
}

func TestComputeCommissionZeroCases(t *testing.T) {
	noAgency := show(10000, "US")
	noAgency.BookingAgency, noAgency.ManagementAgency = "", ""
	for _, country := range []string{"US", "DE", "XX", ""} {
		noAgency.Country = country
		assert.Zero(t, ComputeCommission(noAgency, bothAgencies), country)
	}

	offer := show(10000, "US")
	offer.Status = models.ShowOffer
	assert.Zero(t, ComputeCommission(offer, bothAgencies))

	assert.Zero(t, ComputeCommission(show(0, "US"), bothAgencies))
	assert.Zero(t, ComputeCommission(show(-500, "DE"), bothAgencies))
	assert.Zero(t, ComputeCommission(show(10000, "XX"), bothAgencies))
	assert.Zero(t, ComputeCommission(show(10000, "US"), nil))
}

func TestComputeCommissionUnknownAgencyNameIgnored(t *testing.T) {
	s := show(10000, "DE")
	s.ManagementAgency = "Nobody"
	assert.InDelta(t, 1000.0, ComputeCommission(s, bothAgencies), 1e-9)
}

func TestComputeCommissionTerritoryFilter(t *testing.T) {
	americasOnly := uta
	americasOnly.TerritoryMode = models.TerritoryContinents
	americasOnly.Continents = []string{"NA", "SA"}
	list := []models.AgencyConfig{americasOnly, creativePrimates}

	// Outside its territory the booking agency earns nothing.
	assert.InDelta(t, 1500.0, ComputeCommission(show(10000, "FR"), list), 1e-9)
	assert.InDelta(t, 2350.0, ComputeCommission(show(10000, "CA"), list), 1e-9)

	byCountry := creativePrimates
	byCountry.TerritoryMode = models.TerritoryCountries
	byCountry.Countries = []string{"es"}
	list = []models.AgencyConfig{uta, byCountry}
	assert.InDelta(t, 2500.0, ComputeCommission(show(10000, "ES"), list), 1e-9)
	assert.InDelta(t, 1000.0, ComputeCommission(show(10000, "PT"), list), 1e-9)
}

func TestComputeCommissionAmericasOverride(t *testing.T) {
	shushi := models.AgencyConfig{
		Name: "Shushi 3000", Type: models.AgencyBooking, CommissionPct: 15,
		TerritoryMode: models.TerritoryWorldwide, AmericasPct: pct(10),
	}
	s := models.Show{Fee: 10000, Country: "US", Status: models.ShowPending,
		BookingAgency: "UTA", ManagementAgency: "Shushi 3000"}
	list := []models.AgencyConfig{uta, shushi}

	// 1000 to UTA, then 10% of the remaining 9000.
	assert.InDelta(t, 1900.0, ComputeCommission(s, list), 1e-9)

	s.Country = "IT"
	assert.InDelta(t, 2500.0, ComputeCommission(s, list), 1e-9)
}

func TestComputeCommissionAmericasRateForSoleBookingAgency(t *testing.T) {
	s := models.Show{Fee: 10000, Country: "US", Status: models.ShowConfirmed,
		BookingAgency: "Shushi 3000", ManagementAgency: "Creative Primates"}
	presets, err := Presets()
	require.NoError(t, err)

	b := ComputeBreakdown(s, presets)
	if assert.Len(t, b.Lines, 2) {
		assert.Equal(t, "Shushi 3000", b.Lines[0].Agency)
		assert.InDelta(t, 10000.0, b.Lines[0].Base, 1e-9)
		assert.InDelta(t, 10.0, b.Lines[0].Pct, 1e-9)
		assert.InDelta(t, 1000.0, b.Lines[0].Amount, 1e-9)
		assert.Equal(t, "Creative Primates", b.Lines[1].Agency)
		assert.InDelta(t, 10000.0, b.Lines[1].Base, 1e-9)
		assert.InDelta(t, 1500.0, b.Lines[1].Amount, 1e-9)
	}
	assert.InDelta(t, 2500.0, b.Total, 1e-9)

	// Outside the Americas the worldwide rate applies.
	s.Country = "FR"
	assert.InDelta(t, 3000.0, ComputeCommission(s, presets), 1e-9)
}

func TestComputeBreakdownLines(t *testing.T) {
	b := ComputeBreakdown(show(10000, "US"), bothAgencies)
	assert.True(t, b.Americas)
	assert.Equal(t, "NA", b.Continent)
	if assert.Len(t, b.Lines, 2) {
		assert.Equal(t, "UTA", b.Lines[0].Agency)
		assert.InDelta(t, 10000.0, b.Lines[0].Base, 1e-9)
		assert.InDelta(t, 1000.0, b.Lines[0].Amount, 1e-9)
		assert.Equal(t, "CreativePrimates", b.Lines[1].Agency)
		assert.InDelta(t, 9000.0, b.Lines[1].Base, 1e-9)
		assert.InDelta(t, 1350.0, b.Lines[1].Amount, 1e-9)
	}
	assert.InDelta(t, 7650.0, b.Net, 1e-9)
}

func TestAgenciesForShow(t *testing.T) {
	americasOnly := uta
	americasOnly.TerritoryMode = models.TerritoryContinents
	americasOnly.Continents = []string{"NA"}

	booking, management := AgenciesForShow(show(1, "US"), []models.AgencyConfig{americasOnly}, []models.AgencyConfig{creativePrimates})
	assert.Len(t, booking, 1)
	assert.Len(t, management, 1)

	booking, management = AgenciesForShow(show(1, "GB"), []models.AgencyConfig{americasOnly}, []models.AgencyConfig{creativePrimates})
	assert.Empty(t, booking)
	assert.Len(t, management, 1)

	offer := show(1, "US")
	offer.Status = models.ShowOffer
	booking, management = AgenciesForShow(offer, []models.AgencyConfig{americasOnly}, []models.AgencyConfig{creativePrimates})
	assert.Empty(t, booking)
	assert.Empty(t, management)
}

func TestContinentFor(t *testing.T) {
	c, ok := ContinentFor(" us ")
	assert.True(t, ok)
	assert.Equal(t, NorthAmerica, c)
	assert.True(t, IsAmericas(c))

	c, ok = ContinentFor("GF")
	assert.True(t, ok)
	assert.Equal(t, SouthAmerica, c)

	c, ok = ContinentFor("NZ")
	assert.True(t, ok)
	assert.False(t, IsAmericas(c))

	_, ok = ContinentFor("ZZ")
	assert.False(t, ok)
}
