package label

import (
	"github.com/matzehuels/cartolabel/pkg/feature"
	"github.com/matzehuels/cartolabel/pkg/label/metrics"
)

// TextStyle is the resolved font, size and emphasis of a label.
type TextStyle = metrics.Style

// StyleResolver picks the text style for a feature. Returning nil means no
// style could be resolved; sizes are then estimated.
type StyleResolver interface {
	Resolve(f feature.Feature) *TextStyle
}

// StaticStyle resolves every feature to the same style.
type StaticStyle struct {
	Style *TextStyle
}

// Resolve implements StyleResolver.
func (s StaticStyle) Resolve(feature.Feature) *TextStyle { return s.Style }

// StyleFunc adapts a function to StyleResolver.
type StyleFunc func(f feature.Feature) *TextStyle

// Resolve implements StyleResolver.
func (fn StyleFunc) Resolve(f feature.Feature) *TextStyle { return fn(f) }
