package serra

import "fmt"

// Fallback is the text shown for a field that has no usable value.
const Fallback = "N/A"

// Display target IDs of the greenhouse page.
const (
	TargetTemperature   = "internal-temperature"
	TargetAirHumidity   = "internal-humidity"
	TargetSoilHumidity1 = "soil-humidity1"
	TargetSoilHumidity2 = "soil-humidity2"
	TargetSoilHumidity3 = "soil-humidity3"
	TargetTankStatus    = "tank-status"
	TargetLighting      = "internal-lighting"
)

// Rule decides how a present value is turned into display text.
type Rule int

const (
	// RuleValue shows the value as-is.
	RuleValue Rule = iota

	// RulePercent appends a "%" sign to the value.
	RulePercent
)

// String returns the rule name.
func (r Rule) String() string {
	switch r {
	case RuleValue:
		return "value"
	case RulePercent:
		return "percent"
	default:
		return fmt.Sprintf("rule(%d)", int(r))
	}
}

// RenderMode selects which values count as missing.
type RenderMode int

const (
	// ModeTruthy treats every falsy value (absent, null, 0, "", false) as
	// missing. A genuine reading of 0 therefore renders as [Fallback].
	ModeTruthy RenderMode = iota

	// ModePresence treats only absent and null fields as missing, so a
	// reading of 0 renders as "0".
	ModePresence
)

// String returns the mode name as used in configuration files.
func (m RenderMode) String() string {
	switch m {
	case ModeTruthy:
		return "truthy"
	case ModePresence:
		return "presence"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseRenderMode parses "truthy" or "presence". The empty string selects
// [ModeTruthy].
func ParseRenderMode(s string) (RenderMode, error) {
	switch s {
	case "", "truthy":
		return ModeTruthy, nil
	case "presence":
		return ModePresence, nil
	default:
		return ModeTruthy, fmt.Errorf("unknown render mode %q (expected 'truthy' or 'presence')", s)
	}
}

func (m RenderMode) shows(v Value) bool {
	if m == ModePresence {
		return v.Present() && !v.IsNull()
	}
	return v.Truthy()
}

// Mapping binds a snapshot field to the display target that shows it.
type Mapping struct {
	Field  string
	Target string
	Rule   Rule
}

// DefaultMappings returns the field-to-target table of the greenhouse page.
// The returned slice is a fresh copy.
func DefaultMappings() []Mapping {
	return []Mapping{
		{Field: FieldTemperature, Target: TargetTemperature, Rule: RuleValue},
		{Field: FieldAirHumidity, Target: TargetAirHumidity, Rule: RuleValue},
		{Field: FieldSoilHumidity1, Target: TargetSoilHumidity1, Rule: RulePercent},
		{Field: FieldSoilHumidity2, Target: TargetSoilHumidity2, Rule: RulePercent},
		{Field: FieldSoilHumidity3, Target: TargetSoilHumidity3, Rule: RulePercent},
		{Field: FieldTankLevel, Target: TargetTankStatus, Rule: RuleValue},
		{Field: FieldLightLevel, Target: TargetLighting, Rule: RuleValue},
	}
}

// DefaultTargets returns the target IDs of [DefaultMappings] in order.
func DefaultTargets() []string {
	mappings := DefaultMappings()
	ids := make([]string, len(mappings))
	for i, m := range mappings {
		ids[i] = m.Target
	}
	return ids
}

// Render produces the display text for one mapping.
func Render(m Mapping, s Snapshot, mode RenderMode) string {
	v := s.Field(m.Field)
	if !mode.shows(v) {
		return Fallback
	}
	text := v.String()
	if m.Rule == RulePercent {
		text += "%"
	}
	return text
}

// ApplyResult lists the targets touched by [Apply].
type ApplyResult struct {
	// Updated holds the IDs whose text was set, in mapping order.
	Updated []string

	// Skipped holds the IDs the surface does not have.
	Skipped []string
}

// Apply renders every mapping onto the surface.
//
// Targets the surface does not have are skipped without error; the
// remaining mappings are still applied.
func Apply(surface Surface, s Snapshot, mappings []Mapping, mode RenderMode) ApplyResult {
	var res ApplyResult
	for _, m := range mappings {
		if !surface.HasTarget(m.Target) {
			res.Skipped = append(res.Skipped, m.Target)
			continue
		}
		surface.SetText(m.Target, Render(m, s, mode))
		res.Updated = append(res.Updated, m.Target)
	}
	return res
}

func validateMappings(mappings []Mapping) error {
	if len(mappings) == 0 {
		return fmt.Errorf("at least one mapping is required")
	}
	for i, m := range mappings {
		if !IsKnownField(m.Field) {
			return fmt.Errorf("mappings[%d]: unknown field %q", i, m.Field)
		}
		if m.Target == "" {
			return fmt.Errorf("mappings[%d] (%s): target is required", i, m.Field)
		}
		if m.Rule != RuleValue && m.Rule != RulePercent {
			return fmt.Errorf("mappings[%d] (%s): unknown rule %s", i, m.Field, m.Rule)
		}
	}
	return nil
}
