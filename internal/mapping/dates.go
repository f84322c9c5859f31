package mapping

import (
	"strings"
	"time"
)

// DefaultDateFormat is used by date rules that do not name a format.
const DefaultDateFormat = "DD/MM/YYYY"

var isoLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

var layoutTokens = strings.NewReplacer(
	"YYYY", "2006",
	"YY", "06",
	"MM", "01",
	"DD", "02",
)

// formatDate renders an ISO date in a DD/MM/YYYY style format. It reports
// false for values that are not ISO dates.
func formatDate(value, format string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" || strings.HasPrefix(value, "0000-00-00") {
		return "", false
	}
	if format == "" {
		format = DefaultDateFormat
	}
	layout := layoutTokens.Replace(format)
	for _, iso := range isoLayouts {
		if t, err := time.Parse(iso, value); err == nil {
			return t.Format(layout), true
		}
	}
	return "", false
}
