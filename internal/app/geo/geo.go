// Package geo holds the static country reference table: ISO code to
// centroid coordinates, display name and flag. Pure lookups, no state.
package geo

import (
	"math/rand/v2"
	"strings"
)

// Country is one reference entry. Coordinates are rough centroids; geography
// in this system is advisory, not authoritative.
type Country struct {
	Code string
	Name string
	Flag string
	Lat  float64
	Lng  float64
}

// FallbackCode is substituted when a country code cannot be resolved.
const FallbackCode = "US"

var countries = []Country{
	{"US", "United States", "🇺🇸", 39.8, -98.6},
	{"CA", "Canada", "🇨🇦", 56.1, -106.3},
	{"MX", "Mexico", "🇲🇽", 23.6, -102.5},
	{"BR", "Brazil", "🇧🇷", -14.2, -51.9},
	{"AR", "Argentina", "🇦🇷", -38.4, -63.6},
	{"CL", "Chile", "🇨🇱", -35.7, -71.5},
	{"CO", "Colombia", "🇨🇴", 4.6, -74.3},
	{"PE", "Peru", "🇵🇪", -9.2, -75.0},
	{"GB", "United Kingdom", "🇬🇧", 55.4, -3.4},
	{"IE", "Ireland", "🇮🇪", 53.4, -8.2},
	{"FR", "France", "🇫🇷", 46.2, 2.2},
	{"DE", "Germany", "🇩🇪", 51.2, 10.5},
	{"ES", "Spain", "🇪🇸", 40.5, -3.7},
	{"PT", "Portugal", "🇵🇹", 39.4, -8.2},
	{"IT", "Italy", "🇮🇹", 41.9, 12.6},
	{"NL", "Netherlands", "🇳🇱", 52.1, 5.3},
	{"BE", "Belgium", "🇧🇪", 50.5, 4.5},
	{"CH", "Switzerland", "🇨🇭", 46.8, 8.2},
	{"AT", "Austria", "🇦🇹", 47.5, 14.6},
	{"SE", "Sweden", "🇸🇪", 60.1, 18.6},
	{"NO", "Norway", "🇳🇴", 60.5, 8.5},
	{"DK", "Denmark", "🇩🇰", 56.3, 9.5},
	{"FI", "Finland", "🇫🇮", 61.9, 25.7},
	{"PL", "Poland", "🇵🇱", 51.9, 19.1},
	{"CZ", "Czechia", "🇨🇿", 49.8, 15.5},
	{"UA", "Ukraine", "🇺🇦", 48.4, 31.2},
	{"GR", "Greece", "🇬🇷", 39.1, 21.8},
	{"TR", "Turkey", "🇹🇷", 38.96, 35.2},
	{"RU", "Russia", "🇷🇺", 61.5, 105.3},
	{"EG", "Egypt", "🇪🇬", 26.8, 30.8},
	{"NG", "Nigeria", "🇳🇬", 9.1, 8.7},
	{"KE", "Kenya", "🇰🇪", -0.02, 37.9},
	{"ZA", "South Africa", "🇿🇦", -30.6, 22.9},
	{"MA", "Morocco", "🇲🇦", 31.8, -7.1},
	{"IL", "Israel", "🇮🇱", 31.0, 34.9},
	{"SA", "Saudi Arabia", "🇸🇦", 23.9, 45.1},
	{"AE", "United Arab Emirates", "🇦🇪", 23.4, 53.8},
	{"IN", "India", "🇮🇳", 20.6, 79.0},
	{"PK", "Pakistan", "🇵🇰", 30.4, 69.3},
	{"BD", "Bangladesh", "🇧🇩", 23.7, 90.4},
	{"CN", "China", "🇨🇳", 35.9, 104.2},
	{"JP", "Japan", "🇯🇵", 36.2, 138.3},
	{"KR", "South Korea", "🇰🇷", 35.9, 127.8},
	{"TW", "Taiwan", "🇹🇼", 23.7, 121.0},
	{"TH", "Thailand", "🇹🇭", 15.9, 101.0},
	{"VN", "Vietnam", "🇻🇳", 14.1, 108.3},
	{"PH", "Philippines", "🇵🇭", 12.9, 121.8},
	{"ID", "Indonesia", "🇮🇩", -0.8, 113.9},
	{"MY", "Malaysia", "🇲🇾", 4.2, 102.0},
	{"SG", "Singapore", "🇸🇬", 1.35, 103.8},
	{"AU", "Australia", "🇦🇺", -25.3, 133.8},
	{"NZ", "New Zealand", "🇳🇿", -40.9, 174.9},
}

var byCode = func() map[string]Country {
	m := make(map[string]Country, len(countries))
	for _, c := range countries {
		m[c.Code] = c
	}
	return m
}()

// Lookup resolves a country code. The second return is false when the code
// is unknown, in which case the fallback entry is returned.
func Lookup(code string) (Country, bool) {
	c, ok := byCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return byCode[FallbackCode], false
	}
	return c, true
}

// Random returns a uniformly-random reference entry. Used when an event
// carries no country at all, to avoid null-coordinate artifacts downstream.
func Random() Country {
	return countries[rand.IntN(len(countries))]
}

// All returns a copy of the full reference table.
func All() []Country {
	out := make([]Country, len(countries))
	copy(out, countries)
	return out
}
