package agencies

import "strings"

// Continent is a two-letter continent code.
type Continent string

const (
	NorthAmerica Continent = "NA"
	SouthAmerica Continent = "SA"
	Europe       Continent = "EU"
	Asia         Continent = "AS"
	Africa       Continent = "AF"
	Oceania      Continent = "OC"
)

var countriesByContinent = map[Continent][]string{
	NorthAmerica: {"US", "CA", "MX"},
	SouthAmerica: {"BR", "AR", "CL", "CO", "PE", "VE", "EC", "BO", "PY", "UY", "GY", "SR", "GF"},
	Europe: {"GB", "DE", "FR", "ES", "IT", "NL", "BE", "CH", "AT", "SE", "NO", "DK", "FI",
		"PL", "PT", "CZ", "GR", "IE", "HU", "RO"},
	Asia:    {"CN", "JP", "KR", "IN", "TH", "SG", "MY", "ID", "PH", "VN", "TW", "HK"},
	Africa:  {"ZA", "EG", "NG", "KE", "MA", "GH", "TN", "UG", "ET", "DZ"},
	Oceania: {"AU", "NZ", "FJ", "PG"},
}

var continentOf = func() map[string]Continent {
	m := make(map[string]Continent)
	for cont, codes := range countriesByContinent {
		for _, code := range codes {
			m[code] = cont
		}
	}
	return m
}()

// ContinentFor returns the continent of an ISO-3166 alpha-2 country code.
func ContinentFor(country string) (Continent, bool) {
	c, ok := continentOf[strings.ToUpper(strings.TrimSpace(country))]
	return c, ok
}

// IsAmericas reports whether c is North or South America.
func IsAmericas(c Continent) bool {
	return c == NorthAmerica || c == SouthAmerica
}

// ValidContinent reports whether code names a known continent.
func ValidContinent(code string) bool {
	_, ok := countriesByContinent[Continent(strings.ToUpper(code))]
	return ok
}
