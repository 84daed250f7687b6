package serra

import (
	"bytes"
	stdjson "encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// snapshotJSON keeps number literals as text so values beyond the float64
// range can become Infinity instead of failing the decode.
var snapshotJSON = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

var utf8BOM = []byte("\xef\xbb\xbf")

// Field names as they appear in the sensor payload served at /get_data.
const (
	FieldTemperature   = "temp"
	FieldAirHumidity   = "umid_aria"
	FieldSoilHumidity1 = "umid_terr1"
	FieldSoilHumidity2 = "umid_terr2"
	FieldSoilHumidity3 = "umid_terr3"
	FieldTankLevel     = "liv_acqua"
	FieldLightLevel    = "liv_lum"
)

// FieldNames lists every snapshot field in display order.
var FieldNames = []string{
	FieldTemperature,
	FieldAirHumidity,
	FieldSoilHumidity1,
	FieldSoilHumidity2,
	FieldSoilHumidity3,
	FieldTankLevel,
	FieldLightLevel,
}

// ErrNullSnapshot is returned by [DecodeSnapshot] when the payload is the
// JSON literal null. Fields cannot be read from it, so the cycle fails.
var ErrNullSnapshot = errors.New("snapshot is null")

// Value is a single optional scalar from a [Snapshot].
//
// Value distinguishes a field that was missing from the payload from one that
// was present with a null, zero, or empty value. The zero Value is absent.
type Value struct {
	raw     interface{}
	present bool
}

// NewValue wraps a decoded JSON value (nil, bool, float64, string,
// []interface{} or map[string]interface{}) as a present [Value].
func NewValue(raw interface{}) Value {
	return Value{raw: raw, present: true}
}

// Present reports whether the field appeared in the payload at all.
func (v Value) Present() bool {
	return v.present
}

// IsNull reports whether the field appeared with a JSON null.
func (v Value) IsNull() bool {
	return v.present && v.raw == nil
}

// Raw returns the decoded JSON value, or nil when absent.
func (v Value) Raw() interface{} {
	return v.raw
}

// Truthy reports whether the value survives a loose truthiness check.
//
// Absent, null, false, 0 and the empty string are falsy. Arrays and objects
// are truthy even when empty.
func (v Value) Truthy() bool {
	if !v.present {
		return false
	}
	switch x := v.raw.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	default:
		return true
	}
}

// String renders the value as display text.
//
// Numbers use the shortest round-trip form ("22.5", "22", "1e+21"), strings
// are returned verbatim, arrays are comma-joined and objects render as
// "[object Object]". An absent value renders as "undefined".
func (v Value) String() string {
	if !v.present {
		return "undefined"
	}
	return displayString(v.raw)
}

// MarshalJSON encodes the raw value; absent values and non-finite numbers
// encode as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if f, ok := v.raw.(float64); ok && (math.IsInf(f, 0) || math.IsNaN(f)) {
		return []byte("null"), nil
	}
	return json.Marshal(v.raw)
}

func displayString(raw interface{}) string {
	switch x := raw.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return formatNumber(x)
	case string:
		return x
	case []interface{}:
		parts := make([]string, len(x))
		for i, el := range x {
			if el == nil {
				continue
			}
			parts[i] = displayString(el)
		}
		return strings.Join(parts, ",")
	case map[string]interface{}:
		return "[object Object]"
	default:
		return fmt.Sprint(x)
	}
}

// formatNumber renders a float the way a browser converts a number to text:
// plain decimal between 1e-6 and 1e21, exponent form outside that range.
func formatNumber(f float64) string {
	switch {
	case f == 0:
		return "0"
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}

	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mantissa + "e" + sign + digits
}

// Snapshot is one sensor payload. Every field is optional and independent.
type Snapshot struct {
	Temperature   Value `json:"temp"`
	AirHumidity   Value `json:"umid_aria"`
	SoilHumidity1 Value `json:"umid_terr1"`
	SoilHumidity2 Value `json:"umid_terr2"`
	SoilHumidity3 Value `json:"umid_terr3"`
	TankLevel     Value `json:"liv_acqua"`
	LightLevel    Value `json:"liv_lum"`
}

// Field returns the value stored under a payload field name. Unknown names
// yield an absent [Value].
func (s Snapshot) Field(name string) Value {
	if p := s.fieldPtr(name); p != nil {
		return *p
	}
	return Value{}
}

func (s *Snapshot) fieldPtr(name string) *Value {
	switch name {
	case FieldTemperature:
		return &s.Temperature
	case FieldAirHumidity:
		return &s.AirHumidity
	case FieldSoilHumidity1:
		return &s.SoilHumidity1
	case FieldSoilHumidity2:
		return &s.SoilHumidity2
	case FieldSoilHumidity3:
		return &s.SoilHumidity3
	case FieldTankLevel:
		return &s.TankLevel
	case FieldLightLevel:
		return &s.LightLevel
	default:
		return nil
	}
}

// IsKnownField reports whether name is one of [FieldNames].
func IsKnownField(name string) bool {
	var s Snapshot
	return s.fieldPtr(name) != nil
}

// DecodeSnapshot parses a sensor payload.
//
// A leading UTF-8 byte order mark is ignored. Invalid JSON and a bare null
// are errors. Any other non-object document (array, number, string, bool)
// decodes to a Snapshot with every field absent. Keys other than the seven
// known fields are ignored. Numbers too large for a float64 decode as
// Infinity.
func DecodeSnapshot(body []byte) (Snapshot, error) {
	body = bytes.TrimPrefix(body, utf8BOM)

	var doc interface{}
	if err := snapshotJSON.Unmarshal(body, &doc); err != nil {
		return Snapshot{}, fmt.Errorf("invalid snapshot JSON: %w", err)
	}
	if doc == nil {
		return Snapshot{}, ErrNullSnapshot
	}

	var s Snapshot
	obj, ok := doc.(map[string]interface{})
	if !ok {
		return s, nil
	}
	for key, raw := range obj {
		p := s.fieldPtr(key)
		if p == nil {
			continue
		}
		v, err := toFloats(raw)
		if err != nil {
			return Snapshot{}, fmt.Errorf("invalid snapshot JSON: field %s: %w", key, err)
		}
		*p = NewValue(v)
	}
	return s, nil
}

// toFloats replaces number literals with float64 values, recursing into
// arrays and objects. Out-of-range literals become ±Inf.
func toFloats(raw interface{}) (interface{}, error) {
	switch x := raw.(type) {
	case stdjson.Number:
		f, err := x.Float64()
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil, err
		}
		return f, nil
	case []interface{}:
		for i, el := range x {
			v, err := toFloats(el)
			if err != nil {
				return nil, err
			}
			x[i] = v
		}
		return x, nil
	case map[string]interface{}:
		for k, el := range x {
			v, err := toFloats(el)
			if err != nil {
				return nil, err
			}
			x[k] = v
		}
		return x, nil
	default:
		return raw, nil
	}
}
