// Package normalize turns loosely formatted field text into typed lists.
//
// Every parser is total: malformed fragments are dropped, and empty or
// whitespace-only input yields an empty, non-nil slice.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Separator splits a key from its value in key-count and quantity entries.
const Separator = ":"

// Mode selects the key field a KeyCount is reported under.
type Mode int

const (
	// Crew reports keys as "trade".
	Crew Mode = iota
	// Equipment reports keys as "type".
	Equipment
)

// KeyField returns the record field name for the mode.
func (m Mode) KeyField() string {
	if m == Crew {
		return "trade"
	}
	return "type"
}

// KeyCount is one parsed "key: count" item. Mode decides whether the key is
// serialized as "trade" or "type".
type KeyCount struct {
	Mode  Mode
	Key   string
	Count Value
}

// MarshalJSON writes {"trade"|"type": key, "count": count}.
func (kc KeyCount) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		kc.Mode.KeyField(): kc.Key,
		"count":            kc.Count,
	})
}

// UnmarshalJSON reads either key field and sets Mode from the one present.
func (kc *KeyCount) UnmarshalJSON(data []byte) error {
	var raw struct {
		Trade *string `json:"trade"`
		Type  *string `json:"type"`
		Count Value   `json:"count"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.Trade != nil:
		*kc = KeyCount{Mode: Crew, Key: *raw.Trade, Count: raw.Count}
	case raw.Type != nil:
		*kc = KeyCount{Mode: Equipment, Key: *raw.Type, Count: raw.Count}
	default:
		return fmt.Errorf("key count %s: missing trade or type", data)
	}
	return nil
}

// Quantity is one parsed "item unit: value" line.
type Quantity struct {
	Item  string `json:"item"`
	Unit  string `json:"unit"`
	Value Value  `json:"value"`
}

// Activity is one parsed work activity. Location is never set by
// ParseActivities; only extracted activities carry one.
type Activity struct {
	Location    string `json:"location"`
	Description string `json:"description"`
}

// ParseList splits on commas, semicolons and newlines, trims each piece and
// drops empties. Order and duplicates are preserved.
func ParseList(text string) []string {
	out := []string{}
	if strings.TrimSpace(text) == "" {
		return out
	}
	text = strings.NewReplacer("\n", ",", ";", ",").Replace(text)
	for _, piece := range strings.Split(text, ",") {
		if piece = strings.TrimSpace(piece); piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

// ParseKeyCounts parses comma- or newline-separated "key: count" items.
// Items without a separator are dropped. The value is split off at the
// first separator and coerced with ParseValue.
func ParseKeyCounts(text string, mode Mode) []KeyCount {
	out := []KeyCount{}
	if strings.TrimSpace(text) == "" {
		return out
	}
	text = strings.ReplaceAll(text, "\n", ",")
	for _, item := range strings.Split(text, ",") {
		key, value, ok := strings.Cut(item, Separator)
		if !ok {
			continue
		}
		out = append(out, KeyCount{
			Mode:  mode,
			Key:   strings.TrimSpace(key),
			Count: ParseValue(value),
		})
	}
	return out
}

// ParseQuantities parses one "item [unit]: value" entry per line. A trailing
// purely alphabetic token of the left side is taken as the unit when the
// left side has at least two tokens, so "LF curb: 120" yields item "LF" and
// unit "curb".
func ParseQuantities(text string) []Quantity {
	out := []Quantity{}
	if strings.TrimSpace(text) == "" {
		return out
	}
	for _, line := range strings.Split(text, "\n") {
		left, value, ok := strings.Cut(line, Separator)
		if !ok {
			continue
		}
		item, unit := splitUnit(left)
		out = append(out, Quantity{
			Item:  item,
			Unit:  unit,
			Value: parseQuantityValue(value),
		})
	}
	return out
}

func splitUnit(left string) (item, unit string) {
	tokens := strings.Fields(left)
	if len(tokens) >= 2 && isAlpha(tokens[len(tokens)-1]) {
		return strings.Join(tokens[:len(tokens)-1], " "), tokens[len(tokens)-1]
	}
	return strings.TrimSpace(left), ""
}

func parseQuantityValue(s string) Value {
	s = strings.TrimSpace(s)
	if f, ok := parseFloat(s); ok {
		return Number(f)
	}
	return Text(s)
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// ParseActivities splits on semicolons and newlines into activities with an
// empty location.
func ParseActivities(text string) []Activity {
	out := []Activity{}
	if strings.TrimSpace(text) == "" {
		return out
	}
	text = strings.ReplaceAll(text, "\n", ";")
	for _, piece := range strings.Split(text, ";") {
		if piece = strings.TrimSpace(piece); piece != "" {
			out = append(out, Activity{Description: piece})
		}
	}
	return out
}
