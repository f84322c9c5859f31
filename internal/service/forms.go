package service

import (
	"sort"
	"strings"
)

// Form is one supported country form. The template file name comes from the
// country's mapping spec.
type Form struct {
	Country    string `json:"country"`
	Name       string `json:"name"`
	MappingKey string `json:"mappingKey"`
	Template   string `json:"template"`
	// Available reports whether the template file is present.
	Available bool `json:"available"`
}

var registry = map[string]Form{
	"austria":  {Country: "austria", Name: "Austria", MappingKey: "austria"},
	"portugal": {Country: "portugal", Name: "Portugal", MappingKey: "portugal"},
	"malta":    {Country: "malta", Name: "Malta", MappingKey: "malta"},
}

// NormalizeCountry lowercases and trims a country name.
func NormalizeCountry(country string) string {
	return strings.ToLower(strings.TrimSpace(country))
}

func lookupForm(country string) (Form, bool) {
	f, ok := registry[NormalizeCountry(country)]
	return f, ok
}

// SupportedCountries lists the registered form countries in order.
func SupportedCountries() []string {
	out := make([]string, 0, len(registry))
	for country := range registry {
		out = append(out, country)
	}
	sort.Strings(out)
	return out
}
