package vehicle

import (
	"sort"
	"strings"
)

// regionNames lists the administrative regions collected per country.
var regionNames = map[string][]string{
	"FR": {
		"Auvergne-Rhône-Alpes",
		"Bourgogne-Franche-Comté",
		"Bretagne",
		"Centre-Val de Loire",
		"Corse",
		"Grand Est",
		"Hauts-de-France",
		"Île-de-France",
		"Normandie",
		"Nouvelle-Aquitaine",
		"Occitanie",
		"Pays de la Loire",
		"Provence-Alpes-Côte d'Azur",
	},
	"BE": {
		"Bruxelles-Capitale",
		"Flandre",
		"Wallonie",
	},
	"CH": {
		"Appenzell Rhodes-Extérieures",
		"Appenzell Rhodes-Intérieures",
		"Argovie",
		"Bâle-Campagne",
		"Bâle-Ville",
		"Berne",
		"Fribourg",
		"Genève",
		"Glaris",
		"Grisons",
		"Jura",
		"Lucerne",
		"Neuchâtel",
		"Nidwald",
		"Obwald",
		"Saint-Gall",
		"Schaffhouse",
		"Schwytz",
		"Soleure",
		"Tessin",
		"Thurgovie",
		"Uri",
		"Valais",
		"Vaud",
		"Zoug",
		"Zurich",
	},
}

// foldedRegions is regionNames folded once at init, sorted for stable expansion
var foldedRegions = func() map[string][]string {
	out := make(map[string][]string, len(regionNames))
	for country, names := range regionNames {
		folded := make([]string, 0, len(names))
		for _, n := range names {
			folded = append(folded, Fold(n))
		}
		sort.Strings(folded)
		out[country] = folded
	}
	return out
}()

// NormalizeCountry uppercases and trims an ISO country code
func NormalizeCountry(country string) string {
	return strings.ToUpper(strings.TrimSpace(country))
}

// Regions returns the folded region keys for a supported country, or nil.
// The returned slice must not be modified.
func Regions(country string) []string {
	return foldedRegions[NormalizeCountry(country)]
}

// SupportedCountry reports whether regions are known for country
func SupportedCountry(country string) bool {
	_, ok := foldedRegions[NormalizeCountry(country)]
	return ok
}

// KnownRegion reports whether region (in any spelling variant) belongs to country
func KnownRegion(country, region string) bool {
	target := Fold(region)
	for _, r := range Regions(country) {
		if r == target {
			return true
		}
	}
	return false
}

// OtherRegions returns every region of country except region
func OtherRegions(country, region string) []string {
	current := Fold(region)
	all := Regions(country)
	out := make([]string, 0, len(all))
	for _, r := range all {
		if r != current {
			out = append(out, r)
		}
	}
	return out
}
