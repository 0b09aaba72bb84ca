package normalize

import (
	"strings"
)

// FormatList renders items as a comma-separated list that ParseList reads back.
func FormatList(items []string) string {
	return strings.Join(items, ", ")
}

// FormatKeyCounts renders items as "key:count" pairs joined by ", ".
func FormatKeyCounts(items []KeyCount) string {
	parts := make([]string, 0, len(items))
	for _, kc := range items {
		parts = append(parts, kc.Key+Separator+kc.Count.String())
	}
	return strings.Join(parts, ", ")
}

// FormatQuantities renders one "item unit: value" line per quantity.
func FormatQuantities(items []Quantity) string {
	lines := make([]string, 0, len(items))
	for _, q := range items {
		left := q.Item
		if q.Unit != "" {
			left += " " + q.Unit
		}
		lines = append(lines, left+Separator+" "+q.Value.String())
	}
	return strings.Join(lines, "\n")
}

// FormatActivities renders activities separated by "; ". A location, when
// present, is prefixed as "location - description".
func FormatActivities(items []Activity) string {
	parts := make([]string, 0, len(items))
	for _, a := range items {
		if a.Location != "" {
			parts = append(parts, a.Location+" - "+a.Description)
			continue
		}
		parts = append(parts, a.Description)
	}
	return strings.Join(parts, "; ")
}
