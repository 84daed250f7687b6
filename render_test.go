package serra

import (
	"reflect"
	"sync"
	"testing"
)

// fakeSurface records writes for a fixed set of targets.
type fakeSurface struct {
	mu     sync.Mutex
	ids    map[string]bool
	text   map[string]string
	writes []string
}

func newFakeSurface(ids ...string) *fakeSurface {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return &fakeSurface{ids: set, text: make(map[string]string)}
}

func (f *fakeSurface) HasTarget(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ids[id]
}

func (f *fakeSurface) SetText(id, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ids[id] {
		return
	}
	f.text[id] = text
	f.writes = append(f.writes, id+"="+text)
}

func (f *fakeSurface) Text(id string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.text[id]
	return t, ok
}

func (f *fakeSurface) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func TestApply_MixedSnapshot(t *testing.T) {
	s, err := DecodeSnapshot([]byte(`{"temp":22.5,"umid_terr1":0,"liv_acqua":"OK"}`))
	if err != nil {
		t.Fatalf("DecodeSnapshot() error = %v", err)
	}
	surface := newFakeSurface(DefaultTargets()...)

	res := Apply(surface, s, DefaultMappings(), ModeTruthy)

	want := map[string]string{
		TargetTemperature:   "22.5",
		TargetAirHumidity:   "N/A",
		TargetSoilHumidity1: "N/A",
		TargetSoilHumidity2: "N/A",
		TargetSoilHumidity3: "N/A",
		TargetTankStatus:    "OK",
		TargetLighting:      "N/A",
	}
	for id, text := range want {
		if got, _ := surface.Text(id); got != text {
			t.Errorf("%s = %q, want %q", id, got, text)
		}
	}
	if !reflect.DeepEqual(res.Updated, DefaultTargets()) {
		t.Errorf("Updated = %v, want all targets in order", res.Updated)
	}
	if len(res.Skipped) != 0 {
		t.Errorf("Skipped = %v, want none", res.Skipped)
	}
}

func TestApply_MissingTargetsSkipped(t *testing.T) {
	s, _ := DecodeSnapshot([]byte(`{"temp":18,"liv_lum":450,"umid_terr2":37}`))
	surface := newFakeSurface(TargetLighting, TargetSoilHumidity2)

	res := Apply(surface, s, DefaultMappings(), ModeTruthy)

	if got, _ := surface.Text(TargetLighting); got != "450" {
		t.Errorf("lighting = %q, want 450", got)
	}
	if got, _ := surface.Text(TargetSoilHumidity2); got != "37%" {
		t.Errorf("soil-humidity2 = %q, want 37%%", got)
	}
	if !reflect.DeepEqual(res.Updated, []string{TargetSoilHumidity2, TargetLighting}) {
		t.Errorf("Updated = %v", res.Updated)
	}
	if len(res.Skipped) != 5 {
		t.Errorf("Skipped = %v, want 5 targets", res.Skipped)
	}
}

func TestRender_FallbackCases(t *testing.T) {
	value := Mapping{Field: FieldTemperature, Target: TargetTemperature, Rule: RuleValue}
	percent := Mapping{Field: FieldSoilHumidity1, Target: TargetSoilHumidity1, Rule: RulePercent}

	tests := []struct {
		name         string
		raw          *Value
		wantTruthy   string
		wantPresence string
		m            Mapping
	}{
		{"absent value", nil, "N/A", "N/A", value},
		{"null value", valuePtr(NewValue(nil)), "N/A", "N/A", value},
		{"zero value", valuePtr(NewValue(float64(0))), "N/A", "0", value},
		{"empty string value", valuePtr(NewValue("")), "N/A", "", value},
		{"false value", valuePtr(NewValue(false)), "N/A", "false", value},
		{"number value", valuePtr(NewValue(22.5)), "22.5", "22.5", value},
		{"string value", valuePtr(NewValue("LOW")), "LOW", "LOW", value},
		{"absent percent", nil, "N/A", "N/A", percent},
		{"null percent", valuePtr(NewValue(nil)), "N/A", "N/A", percent},
		{"zero percent", valuePtr(NewValue(float64(0))), "N/A", "0%", percent},
		{"empty string percent", valuePtr(NewValue("")), "N/A", "%", percent},
		{"number percent", valuePtr(NewValue(float64(41))), "41%", "41%", percent},
		{"string percent", valuePtr(NewValue("41")), "41%", "41%", percent},
		{"array percent", valuePtr(NewValue([]interface{}{float64(1), float64(2)})), "1,2%", "1,2%", percent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Snapshot
			if tt.raw != nil {
				*s.fieldPtr(tt.m.Field) = *tt.raw
			}
			if got := Render(tt.m, s, ModeTruthy); got != tt.wantTruthy {
				t.Errorf("truthy: Render() = %q, want %q", got, tt.wantTruthy)
			}
			if got := Render(tt.m, s, ModePresence); got != tt.wantPresence {
				t.Errorf("presence: Render() = %q, want %q", got, tt.wantPresence)
			}
		})
	}
}

func valuePtr(v Value) *Value {
	return &v
}

func TestApply_EveryFieldIndependent(t *testing.T) {
	// each field alone must light up only its own target
	for _, m := range DefaultMappings() {
		t.Run(m.Field, func(t *testing.T) {
			var s Snapshot
			*s.fieldPtr(m.Field) = NewValue(float64(7))
			surface := newFakeSurface(DefaultTargets()...)

			Apply(surface, s, DefaultMappings(), ModeTruthy)

			for _, other := range DefaultMappings() {
				got, _ := surface.Text(other.Target)
				switch {
				case other.Target != m.Target:
					if got != Fallback {
						t.Errorf("%s = %q, want %q", other.Target, got, Fallback)
					}
				case m.Rule == RulePercent:
					if got != "7%" {
						t.Errorf("%s = %q, want 7%%", m.Target, got)
					}
				default:
					if got != "7" {
						t.Errorf("%s = %q, want 7", m.Target, got)
					}
				}
			}
		})
	}
}

func TestDefaultMappings(t *testing.T) {
	mappings := DefaultMappings()
	if len(mappings) != 7 {
		t.Fatalf("len(DefaultMappings()) = %d, want 7", len(mappings))
	}

	percent := map[string]bool{}
	for _, m := range mappings {
		if m.Rule == RulePercent {
			percent[m.Field] = true
		}
	}
	want := map[string]bool{FieldSoilHumidity1: true, FieldSoilHumidity2: true, FieldSoilHumidity3: true}
	if !reflect.DeepEqual(percent, want) {
		t.Errorf("percent fields = %v, want soil humidity only", percent)
	}

	// returned slice is a fresh copy
	mappings[0].Target = "changed"
	if DefaultMappings()[0].Target != TargetTemperature {
		t.Error("DefaultMappings() returned shared state")
	}
}

func TestParseRenderMode(t *testing.T) {
	tests := []struct {
		in      string
		want    RenderMode
		wantErr bool
	}{
		{"", ModeTruthy, false},
		{"truthy", ModeTruthy, false},
		{"presence", ModePresence, false},
		{"strict", ModeTruthy, true},
	}
	for _, tt := range tests {
		got, err := ParseRenderMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRenderMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseRenderMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRule_String(t *testing.T) {
	if RuleValue.String() != "value" || RulePercent.String() != "percent" {
		t.Errorf("unexpected rule names %q %q", RuleValue, RulePercent)
	}
	if Rule(9).String() != "rule(9)" {
		t.Errorf("Rule(9).String() = %q", Rule(9).String())
	}
}
