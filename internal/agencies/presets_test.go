package agencies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontour-app/backend/internal/models"
)

func TestPresets(t *testing.T) {
	list, err := Presets()
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, "UTA", list[0].Name)
	assert.Equal(t, models.AgencyBooking, list[0].Type)
	assert.Equal(t, []string{"NA", "SA"}, list[0].Continents)

	require.NotNil(t, list[1].AmericasPct)
	assert.Equal(t, 10.0, *list[1].AmericasPct)

	assert.Equal(t, models.AgencyManagement, list[2].Type)
	assert.Equal(t, models.TerritoryWorldwide, list[2].TerritoryMode)
}

func TestParsePresetsRejectsInvalid(t *testing.T) {
	_, err := ParsePresets([]byte("agencies:\n  - name: X\n    type: booking\n    commission_pct: 140\n"))
	assert.Error(t, err)

	_, err = ParsePresets([]byte("agencies:\n  - name: X\n    type: booking\n    commission_pct: 10\n    territory_mode: continents\n    continents: [XX]\n"))
	assert.Error(t, err)

	_, err = ParsePresets([]byte("agencies: [[["))
	assert.Error(t, err)
}

func TestMergePresetsSkipsExistingNames(t *testing.T) {
	presets, err := Presets()
	require.NoError(t, err)

	missing := MergePresets([]models.AgencyConfig{{Name: "uta"}}, presets)
	require.Len(t, missing, 2)
	assert.Equal(t, "Shushi 3000", missing[0].Name)
	assert.Equal(t, "Creative Primates", missing[1].Name)
}

func TestValidateNormalizes(t *testing.T) {
	a := models.AgencyConfig{
		Name: "  Wasserman ", Type: models.AgencyBooking, CommissionPct: 12,
		TerritoryMode: models.TerritoryCountries, Countries: []string{" de", "at"},
	}
	require.NoError(t, Validate(&a))
	assert.Equal(t, "Wasserman", a.Name)
	assert.Equal(t, []string{"DE", "AT"}, a.Countries)

	b := models.AgencyConfig{Name: "X", Type: models.AgencyManagement, CommissionPct: 5}
	require.NoError(t, Validate(&b))
	assert.Equal(t, models.TerritoryWorldwide, b.TerritoryMode)

	assert.Error(t, Validate(&models.AgencyConfig{Name: "X", Type: "promoter"}))
	assert.Error(t, Validate(&models.AgencyConfig{Type: models.AgencyBooking}))
}
