package agencies

import (
	"math"
	"strings"

	"github.com/ontour-app/backend/internal/models"
)

// Line is one agency's share of a show fee.
type Line struct {
	Agency string            `json:"agency"`
	Type   models.AgencyType `json:"type"`
	Base   float64           `json:"base"`
	Pct    float64           `json:"pct"`
	Amount float64           `json:"amount"`
}

// Breakdown is the commission split for one show.
type Breakdown struct {
	Fee       float64 `json:"fee"`
	Continent string  `json:"continent,omitempty"`
	Americas  bool    `json:"americas"`
	Lines     []Line  `json:"lines"`
	Total     float64 `json:"total"`
	Net       float64 `json:"net"`
}

// Applies reports whether agency a covers a show played in country.
func Applies(a models.AgencyConfig, country string) bool {
	cont, ok := ContinentFor(country)
	if !ok {
		return false
	}
	switch a.TerritoryMode {
	case models.TerritoryWorldwide, "":
		return true
	case models.TerritoryContinents:
		for _, c := range a.Continents {
			if Continent(strings.ToUpper(c)) == cont {
				return true
			}
		}
	case models.TerritoryCountries:
		code := strings.ToUpper(strings.TrimSpace(country))
		for _, c := range a.Countries {
			if strings.ToUpper(c) == code {
				return true
			}
		}
	}
	return false
}

// AgenciesForShow returns the booking and management agencies whose territory covers the show.
// Offers are never commissioned.
func AgenciesForShow(show models.Show, booking, management []models.AgencyConfig) (applicableBooking, applicableManagement []models.AgencyConfig) {
	if show.Status == models.ShowOffer {
		return nil, nil
	}
	for _, a := range booking {
		if Applies(a, show.Country) {
			applicableBooking = append(applicableBooking, a)
		}
	}
	for _, a := range management {
		if Applies(a, show.Country) {
			applicableManagement = append(applicableManagement, a)
		}
	}
	return applicableBooking, applicableManagement
}

// selected returns the agencies named on the show, booking first, that cover its territory.
func selected(show models.Show, agencies []models.AgencyConfig) []models.AgencyConfig {
	var booking, management []models.AgencyConfig
	for _, a := range agencies {
		switch {
		case show.BookingAgency != "" && strings.EqualFold(a.Name, show.BookingAgency):
			booking = append(booking, a)
		case show.ManagementAgency != "" && strings.EqualFold(a.Name, show.ManagementAgency):
			management = append(management, a)
		}
	}
	b, m := AgenciesForShow(show, booking, management)
	return append(b, m...)
}

// ComputeBreakdown splits the show fee between the agencies selected on it.
//
// In the Americas a booking agency without an Americas rate leads: it takes its share
// of the gross and every other agency takes its share of what remains after it. Agencies
// with an Americas rate use that rate there, whether or not a lead agency is selected.
// Elsewhere each agency takes its share of the gross at its normal rate.
func ComputeBreakdown(show models.Show, agencies []models.AgencyConfig) Breakdown {
	b := Breakdown{Fee: show.Fee, Lines: []Line{}}
	cont, known := ContinentFor(show.Country)
	if known {
		b.Continent = string(cont)
		b.Americas = IsAmericas(cont)
	}
	if len(agencies) == 0 || show.Status == models.ShowOffer || !(show.Fee > 0) || !known {
		b.Net = math.Max(show.Fee, 0)
		return b
	}
	if show.BookingAgency == "" && show.ManagementAgency == "" {
		b.Net = show.Fee
		return b
	}

	sel := selected(show, agencies)
	if b.Americas && len(sel) > 0 {
		base := show.Fee
		rest := sel
		if lead := sel[0]; lead.Type == models.AgencyBooking && lead.AmericasPct == nil {
			first := show.Fee * lead.CommissionPct / 100
			b.Lines = append(b.Lines, Line{Agency: lead.Name, Type: lead.Type, Base: show.Fee, Pct: lead.CommissionPct, Amount: first})
			base = show.Fee - first
			rest = sel[1:]
		}
		for _, a := range rest {
			pct := a.CommissionPct
			if a.AmericasPct != nil {
				pct = *a.AmericasPct
			}
			b.Lines = append(b.Lines, Line{Agency: a.Name, Type: a.Type, Base: base, Pct: pct, Amount: base * pct / 100})
		}
	} else {
		for _, a := range sel {
			b.Lines = append(b.Lines, Line{Agency: a.Name, Type: a.Type, Base: show.Fee, Pct: a.CommissionPct, Amount: show.Fee * a.CommissionPct / 100})
		}
	}

	for _, l := range b.Lines {
		if math.IsNaN(l.Amount) || math.IsInf(l.Amount, 0) {
			return Breakdown{Fee: show.Fee, Continent: b.Continent, Americas: b.Americas, Lines: []Line{}, Net: show.Fee}
		}
		b.Total += l.Amount
	}
	b.Net = show.Fee - b.Total
	return b
}

// ComputeCommission returns the total agency commission for a show. It never fails:
// offers, non-positive fees, unknown countries and shows without a selected agency yield 0.
func ComputeCommission(show models.Show, agencies []models.AgencyConfig) float64 {
	return ComputeBreakdown(show, agencies).Total
}
