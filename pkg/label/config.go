package label

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Default values for Config. Validate fills these in.
const (
	DefaultMinLineLabelScore = 0.75
	DefaultMinPolygonOverlap = 0.5

	DefaultStepFactor         = 0.8
	DefaultMiddleThirdBonus   = 0.5
	DefaultCurvatureWeight    = 0.5
	DefaultSharpTurnDegrees   = 30.0
	DefaultMinSpaceAheadRatio = 0.25
)

// Slot is a placement position for point labels, relative to the point.
type Slot string

const (
	SlotTopRight    Slot = "top-right"
	SlotTopLeft     Slot = "top-left"
	SlotBottomRight Slot = "bottom-right"
	SlotBottomLeft  Slot = "bottom-left"
	SlotTop         Slot = "top"
	SlotBottom      Slot = "bottom"
	SlotLeft        Slot = "left"
	SlotRight       Slot = "right"
	SlotCenter      Slot = "center"
)

// DefaultSlot is used when no point preference is configured.
const DefaultSlot = SlotTopRight

var slotAlign = map[Slot]Align{
	SlotTopRight:    AlignBottomLeft,
	SlotTopLeft:     AlignBottomRight,
	SlotBottomRight: AlignTopLeft,
	SlotBottomLeft:  AlignTopRight,
	SlotTop:         AlignBottomCenter,
	SlotBottom:      AlignTopCenter,
	SlotLeft:        AlignMiddleRight,
	SlotRight:       AlignMiddleLeft,
	SlotCenter:      AlignMiddleCenter,
}

// Valid reports whether s is a known slot.
func (s Slot) Valid() bool {
	_, ok := slotAlign[s]
	return ok
}

// Align returns the text alignment that puts the label on the slot's side
// of its anchor.
func (s Slot) Align() Align {
	if a, ok := slotAlign[s]; ok {
		return a
	}
	return AlignBottomLeft
}

// PolygonFit is the containment policy for labels of polygon features.
type PolygonFit string

const (
	// FitInside requires the label box to lie entirely inside the polygon.
	FitInside PolygonFit = "inside"
	// FitOverlap requires at least MinPolygonOverlap of the box area to
	// overlap the polygon.
	FitOverlap PolygonFit = "overlap"
	// FitBoundary requires the box to touch the polygon boundary.
	FitBoundary PolygonFit = "boundary"
)

// Valid reports whether p is a known policy.
func (p PolygonFit) Valid() bool {
	return p == FitInside || p == FitOverlap || p == FitBoundary
}

// Step is the sampling distance along lines: either an absolute distance in
// drawing units or a percentage of the line length. The zero value means
// "derive from the text width".
type Step struct {
	Value   float64
	Percent bool
}

// ParseStep parses "12.5" (absolute) or "20%" (of line length).
// An empty string yields the zero Step.
func ParseStep(s string) (Step, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Step{}, nil
	}
	pct := strings.HasSuffix(s, "%")
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
	if err != nil {
		return Step{}, fmt.Errorf("invalid line label step %q", s)
	}
	if v <= 0 {
		return Step{}, fmt.Errorf("line label step must be positive, got %q", s)
	}
	return Step{Value: v, Percent: pct}, nil
}

// IsZero reports whether the step is unset.
func (s Step) IsZero() bool { return s.Value == 0 }

// Resolve returns the step distance for a line of the given length, or 0
// when unset.
func (s Step) Resolve(length float64) float64 {
	if s.Percent {
		return length * s.Value / 100
	}
	return s.Value
}

// String formats the step the way ParseStep reads it.
func (s Step) String() string {
	if s.IsZero() {
		return ""
	}
	v := strconv.FormatFloat(s.Value, 'f', -1, 64)
	if s.Percent {
		return v + "%"
	}
	return v
}

// MarshalText implements encoding.TextMarshaler.
func (s Step) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Step) UnmarshalText(b []byte) error {
	v, err := ParseStep(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Tuning holds the scoring constants. They are exposed so that maps with
// unusual density can be tuned without code changes. Unset fields take the
// defaults; the bonus weights are pointers so that zero turns them off.
type Tuning struct {
	// StepFactor multiplies the text width to get the default line step.
	StepFactor float64 `json:"step_factor,omitempty" toml:"step_factor" yaml:"step_factor"`
	// MiddleThirdBonus is added to line samples between 30% and 70% of the
	// line length.
	MiddleThirdBonus *float64 `json:"middle_third_bonus,omitempty" toml:"middle_third_bonus" yaml:"middle_third_bonus"`
	// CurvatureWeight scales the straightness bonus.
	CurvatureWeight *float64 `json:"curvature_weight,omitempty" toml:"curvature_weight" yaml:"curvature_weight"`
	// SharpTurnDegrees is the turn angle from which a vertex counts as a
	// corner.
	SharpTurnDegrees float64 `json:"sharp_turn_degrees,omitempty" toml:"sharp_turn_degrees" yaml:"sharp_turn_degrees"`
	// MinSpaceAhead is the line length that must remain after a sample, as
	// a fraction of the text width.
	MinSpaceAhead float64 `json:"min_space_ahead,omitempty" toml:"min_space_ahead" yaml:"min_space_ahead"`
}

// Config controls text resolution and placement for one run.
type Config struct {
	FixedText             string `json:"fixed_text,omitempty" toml:"fixed_text" yaml:"fixed_text"`
	TextAttribute         string `json:"text_attribute,omitempty" toml:"text_attribute" yaml:"text_attribute"`
	TextAttributeFallback string `json:"text_attribute_fallback,omitempty" toml:"text_attribute_fallback" yaml:"text_attribute_fallback"`

	OffsetX float64 `json:"offset_x,omitempty" toml:"offset_x" yaml:"offset_x"`
	OffsetY float64 `json:"offset_y,omitempty" toml:"offset_y" yaml:"offset_y"`

	// PointPositionPreference lists slots to try for point labels, best
	// first.
	PointPositionPreference []Slot `json:"point_position_preference,omitempty" toml:"point_position_preference" yaml:"point_position_preference"`

	LineLabelStep Step `json:"line_label_step,omitempty" toml:"line_label_step" yaml:"line_label_step"`
	// MinLineLabelScore drops line samples scoring below it. Nil takes
	// DefaultMinLineLabelScore; zero keeps every sample.
	MinLineLabelScore *float64 `json:"min_line_label_score,omitempty" toml:"min_line_label_score" yaml:"min_line_label_score"`

	PolygonFit        PolygonFit `json:"polygon_fit,omitempty" toml:"polygon_fit" yaml:"polygon_fit"`
	MinPolygonOverlap float64    `json:"min_polygon_overlap,omitempty" toml:"min_polygon_overlap" yaml:"min_polygon_overlap"`

	// Padding grows every label box on all sides before collision tests.
	Padding float64 `json:"padding,omitempty" toml:"padding" yaml:"padding"`

	Tuning Tuning `json:"tuning,omitempty" toml:"tuning" yaml:"tuning"`
}

// Validate checks the configuration and fills in defaults. It is
// idempotent.
func (c *Config) Validate() error {
	if len(c.PointPositionPreference) == 0 {
		c.PointPositionPreference = []Slot{DefaultSlot}
	}
	for _, s := range c.PointPositionPreference {
		if !s.Valid() {
			return fmt.Errorf("invalid point position %q", s)
		}
	}
	if c.LineLabelStep.Value < 0 {
		return fmt.Errorf("line label step must be positive")
	}
	if c.MinLineLabelScore == nil {
		c.MinLineLabelScore = lo.ToPtr(DefaultMinLineLabelScore)
	}
	if c.PolygonFit == "" {
		c.PolygonFit = FitInside
	}
	if !c.PolygonFit.Valid() {
		return fmt.Errorf("invalid polygon fit %q (must be inside, overlap or boundary)", c.PolygonFit)
	}
	if c.MinPolygonOverlap == 0 {
		c.MinPolygonOverlap = DefaultMinPolygonOverlap
	}
	if c.MinPolygonOverlap < 0 || c.MinPolygonOverlap > 1 {
		return fmt.Errorf("min polygon overlap must be within (0, 1], got %v", c.MinPolygonOverlap)
	}
	if c.Padding < 0 {
		return fmt.Errorf("padding must not be negative")
	}
	c.Tuning.setDefaults()
	return nil
}

func (t *Tuning) setDefaults() {
	if t.StepFactor <= 0 {
		t.StepFactor = DefaultStepFactor
	}
	if t.MiddleThirdBonus == nil {
		t.MiddleThirdBonus = lo.ToPtr(DefaultMiddleThirdBonus)
	}
	if t.CurvatureWeight == nil {
		t.CurvatureWeight = lo.ToPtr(DefaultCurvatureWeight)
	}
	if t.SharpTurnDegrees <= 0 {
		t.SharpTurnDegrees = DefaultSharpTurnDegrees
	}
	if t.MinSpaceAhead <= 0 {
		t.MinSpaceAhead = DefaultMinSpaceAheadRatio
	}
}

// UnmarshalJSON accepts either a number (absolute) or a string.
func (s *Step) UnmarshalJSON(b []byte) error {
	str := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if str == "null" {
		*s = Step{}
		return nil
	}
	return s.UnmarshalText([]byte(str))
}
