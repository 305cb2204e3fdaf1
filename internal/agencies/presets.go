package agencies

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ontour-app/backend/internal/models"
)

//go:embed presets.yaml
var presetsYAML []byte

type presetFile struct {
	Agencies []models.AgencyConfig `yaml:"agencies"`
}

// Presets returns the built-in agency set.
func Presets() ([]models.AgencyConfig, error) {
	return ParsePresets(presetsYAML)
}

// ParsePresets decodes and validates a YAML agency list.
func ParsePresets(data []byte) ([]models.AgencyConfig, error) {
	var f presetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	for i := range f.Agencies {
		if err := Validate(&f.Agencies[i]); err != nil {
			return nil, fmt.Errorf("preset %d: %w", i, err)
		}
	}
	return f.Agencies, nil
}

// MergePresets returns the presets whose names are not already configured.
func MergePresets(existing, presets []models.AgencyConfig) []models.AgencyConfig {
	have := make(map[string]struct{}, len(existing))
	for _, a := range existing {
		have[strings.ToLower(a.Name)] = struct{}{}
	}
	var missing []models.AgencyConfig
	for _, p := range presets {
		if _, ok := have[strings.ToLower(p.Name)]; ok {
			continue
		}
		missing = append(missing, p)
	}
	return missing
}

// Validate normalizes an agency config in place and rejects impossible terms.
func Validate(a *models.AgencyConfig) error {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return fmt.Errorf("name is required")
	}
	if a.Type != models.AgencyBooking && a.Type != models.AgencyManagement {
		return fmt.Errorf("type must be booking or management")
	}
	if a.CommissionPct < 0 || a.CommissionPct > 100 {
		return fmt.Errorf("commission_pct must be between 0 and 100")
	}
	if a.AmericasPct != nil && (*a.AmericasPct < 0 || *a.AmericasPct > 100) {
		return fmt.Errorf("americas_pct must be between 0 and 100")
	}
	if a.TerritoryMode == "" {
		a.TerritoryMode = models.TerritoryWorldwide
	}
	switch a.TerritoryMode {
	case models.TerritoryWorldwide:
		a.Continents, a.Countries = nil, nil
	case models.TerritoryContinents:
		if len(a.Continents) == 0 {
			return fmt.Errorf("continents required for territory_mode continents")
		}
		for i, c := range a.Continents {
			if !ValidContinent(c) {
				return fmt.Errorf("unknown continent %q", c)
			}
			a.Continents[i] = strings.ToUpper(c)
		}
	case models.TerritoryCountries:
		if len(a.Countries) == 0 {
			return fmt.Errorf("countries required for territory_mode countries")
		}
		for i, c := range a.Countries {
			a.Countries[i] = strings.ToUpper(strings.TrimSpace(c))
		}
	default:
		return fmt.Errorf("unknown territory_mode %q", a.TerritoryMode)
	}
	return nil
}
