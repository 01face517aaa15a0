package label

import (
	"encoding/json"
	"testing"
)

func TestConfigValidateDefaults(t *testing.T) {
	var cfg Config
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(cfg.PointPositionPreference) != 1 || cfg.PointPositionPreference[0] != SlotTopRight {
		t.Errorf("PointPositionPreference = %v, want [top-right]", cfg.PointPositionPreference)
	}
	if *cfg.MinLineLabelScore != DefaultMinLineLabelScore {
		t.Errorf("MinLineLabelScore = %v, want %v", *cfg.MinLineLabelScore, DefaultMinLineLabelScore)
	}
	if cfg.PolygonFit != FitInside {
		t.Errorf("PolygonFit = %v, want inside", cfg.PolygonFit)
	}
	if cfg.Tuning.StepFactor != DefaultStepFactor {
		t.Errorf("StepFactor = %v, want %v", cfg.Tuning.StepFactor, DefaultStepFactor)
	}

	before := cfg
	if err := cfg.Validate(); err != nil {
		t.Fatalf("second Validate() error = %v", err)
	}
	if cfg.MinPolygonOverlap != before.MinPolygonOverlap || cfg.Tuning != before.Tuning {
		t.Error("Validate() should be idempotent")
	}
}

func TestConfigExplicitZero(t *testing.T) {
	var cfg Config
	if err := json.Unmarshal([]byte(`{"min_line_label_score": 0, "tuning": {"middle_third_bonus": 0}}`), &cfg); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if *cfg.MinLineLabelScore != 0 {
		t.Errorf("MinLineLabelScore = %v, want explicit 0", *cfg.MinLineLabelScore)
	}
	if *cfg.Tuning.MiddleThirdBonus != 0 {
		t.Errorf("MiddleThirdBonus = %v, want explicit 0", *cfg.Tuning.MiddleThirdBonus)
	}
	if *cfg.Tuning.CurvatureWeight != DefaultCurvatureWeight {
		t.Errorf("CurvatureWeight = %v, want default", *cfg.Tuning.CurvatureWeight)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"unknown slot", Config{PointPositionPreference: []Slot{"somewhere"}}},
		{"negative step", Config{LineLabelStep: Step{Value: -1}}},
		{"unknown fit", Config{PolygonFit: "around"}},
		{"overlap above one", Config{MinPolygonOverlap: 1.5}},
		{"negative padding", Config{Padding: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Error("Validate() error = nil, want error")
			}
		})
	}
}

func TestParseStep(t *testing.T) {
	tests := []struct {
		in      string
		want    Step
		wantErr bool
	}{
		{"", Step{}, false},
		{"12.5", Step{Value: 12.5}, false},
		{"20%", Step{Value: 20, Percent: true}, false},
		{" 5 % ", Step{Value: 5, Percent: true}, false},
		{"0", Step{}, true},
		{"-3", Step{}, true},
		{"abc", Step{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStep(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStep(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseStep(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
			if !tt.wantErr && got.String() != "" {
				back, err := ParseStep(got.String())
				if err != nil || back != got {
					t.Errorf("String() %q does not parse back", got.String())
				}
			}
		})
	}
}

func TestStepJSON(t *testing.T) {
	var cfg Config
	if err := json.Unmarshal([]byte(`{"line_label_step": 15}`), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.LineLabelStep != (Step{Value: 15}) {
		t.Errorf("number step = %+v", cfg.LineLabelStep)
	}
	if err := json.Unmarshal([]byte(`{"line_label_step": "25%"}`), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.LineLabelStep != (Step{Value: 25, Percent: true}) {
		t.Errorf("percent step = %+v", cfg.LineLabelStep)
	}
	if got := cfg.LineLabelStep.Resolve(200); got != 50 {
		t.Errorf("Resolve(200) = %v, want 50", got)
	}
}

func TestSlotAlign(t *testing.T) {
	tests := []struct {
		slot Slot
		want Align
	}{
		{SlotTopRight, AlignBottomLeft},
		{SlotBottomLeft, AlignTopRight},
		{SlotLeft, AlignMiddleRight},
		{SlotCenter, AlignMiddleCenter},
		{"bogus", AlignBottomLeft},
	}
	for _, tt := range tests {
		if got := tt.slot.Align(); got != tt.want {
			t.Errorf("%s.Align() = %v, want %v", tt.slot, got, tt.want)
		}
	}
}
