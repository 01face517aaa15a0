// Package metrics estimates the rendered size of label text.
//
// [FontMeasurer] lays the text out with a real font through
// github.com/tdewolff/canvas and scales the advance so that the font's cap
// height equals the style's CapHeight. Drawing units therefore stay those of
// the map: a CapHeight of 2.5 yields widths in the same unit.
//
// Whenever a precise measurement is impossible (no style, unknown family,
// a font without outlines for the text) the measurer falls back to
// [Estimate] and logs a warning. Measure never fails.
package metrics

import (
	"io"
	"unicode/utf8"

	"github.com/charmbracelet/log"
)

const (
	// DefaultCapHeight is used when no style is available.
	DefaultCapHeight = 2.5

	// CharWidthFactor is the average glyph advance as a fraction of the
	// cap height used by the heuristic.
	CharWidthFactor = 0.6

	// DefaultFamily is the built-in family used when a style names none.
	DefaultFamily = "go"
)

// Style is the resolved text style of a label. It is produced by the host's
// style resolution and treated as read-only.
type Style struct {
	FontFamily string  `json:"font_family,omitempty" toml:"font_family" yaml:"font_family"`
	CapHeight  float64 `json:"cap_height,omitempty" toml:"cap_height" yaml:"cap_height"`
	WidthScale float64 `json:"width_scale,omitempty" toml:"width_scale" yaml:"width_scale"`
	Bold       bool    `json:"bold,omitempty" toml:"bold" yaml:"bold"`
	Italic     bool    `json:"italic,omitempty" toml:"italic" yaml:"italic"`
}

// Height returns the cap height, or DefaultCapHeight if unset.
func (s Style) Height() float64 {
	if s.CapHeight > 0 {
		return s.CapHeight
	}
	return DefaultCapHeight
}

// Scale returns the width scale, or 1 if unset.
func (s Style) Scale() float64 {
	if s.WidthScale > 0 {
		return s.WidthScale
	}
	return 1
}

// Measurer reports the width and height of text rendered in a style.
// A nil style means "no style resolved".
type Measurer interface {
	Measure(text string, style *Style) (width, height float64)
}

// Estimate is the character-count heuristic:
// width = runes × height × 0.6 × widthScale.
func Estimate(text string, height, widthScale float64) float64 {
	return float64(utf8.RuneCountInString(text)) * height * CharWidthFactor * widthScale
}

// Heuristic is a Measurer that never touches a font. It is deterministic
// across platforms and used where font data is unwanted.
type Heuristic struct {
	Logger *log.Logger
}

// Measure implements Measurer.
func (h Heuristic) Measure(text string, style *Style) (float64, float64) {
	if text == "" {
		return 0, 0
	}
	if style == nil {
		logger(h.Logger).Warn("no text style, estimating label size", "text", text)
		return Estimate(text, DefaultCapHeight, 1), DefaultCapHeight
	}
	hgt := style.Height()
	return Estimate(text, hgt, style.Scale()), hgt
}

func logger(l *log.Logger) *log.Logger {
	if l == nil {
		return log.NewWithOptions(io.Discard, log.Options{})
	}
	return l
}
