package normalize

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Value is a count or quantity that is either a number or the original text
// it was parsed from. Integers keep full int64 precision.
type Value struct {
	num  float64
	i    int64
	text string
	kind valueKind
}

type valueKind uint8

const (
	textValue valueKind = iota
	intValue
	floatValue
)

// maxExactInt is the largest magnitude below which every integer has an exact
// float64 representation.
const maxExactInt = 1 << 53

// Number returns a numeric Value. Whole numbers that a float64 holds exactly
// are stored as integers, so Number(6) equals Int(6).
func Number(f float64) Value {
	if f == math.Trunc(f) && math.Abs(f) < maxExactInt {
		return Int(int64(f))
	}
	return Value{num: f, kind: floatValue}
}

// Int returns an integer Value.
func Int(i int64) Value {
	return Value{i: i, kind: intValue}
}

// Text returns a textual Value.
func Text(s string) Value {
	return Value{text: s}
}

// ParseValue coerces s to a number, trying an integer first and a float
// second. On failure it returns the trimmed literal as text.
func ParseValue(s string) Value {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i)
	}
	if f, ok := parseFloat(s); ok {
		return Number(f)
	}
	return Text(s)
}

// parseFloat accepts finite decimal floats only. Infinities and NaN cannot be
// stored as JSON numbers, so they stay text.
func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// IsNumber reports whether v holds a number.
func (v Value) IsNumber() bool { return v.kind != textValue }

// Float returns the numeric value and whether v is a number.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case intValue:
		return float64(v.i), true
	case floatValue:
		return v.num, true
	}
	return 0, false
}

// Int returns the value as an integer when v holds one.
func (v Value) Int() (int64, bool) {
	return v.i, v.kind == intValue
}

// String renders v the way it would be typed: numbers in their shortest form
// ("6", "2.5"), text verbatim.
func (v Value) String() string {
	switch v.kind {
	case intValue:
		return strconv.FormatInt(v.i, 10)
	case floatValue:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	}
	return v.text
}

// IsZero reports whether v is the empty text value.
func (v Value) IsZero() bool {
	return v.kind == textValue && v.text == ""
}

// MarshalJSON writes numbers as JSON numbers and text as JSON strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsNumber() {
		return []byte(v.String()), nil
	}
	return json.Marshal(v.text)
}

// UnmarshalJSON accepts a JSON number, a JSON string or null. Strings go
// through ParseValue so "6" from a model response becomes a number, the same
// as typed input.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case json.Number:
		*v = ParseValue(x.String())
	case string:
		*v = ParseValue(x)
	case nil:
		*v = Text("")
	default:
		*v = Text(strings.TrimSpace(string(data)))
	}
	return nil
}
