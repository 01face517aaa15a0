package label

import (
	"cmp"
	"slices"

	"github.com/paulmach/orb"
)

// Align is the point of the label box that sits on the anchor.
type Align string

const (
	AlignBottomLeft   Align = "bottom-left"
	AlignBottomCenter Align = "bottom-center"
	AlignBottomRight  Align = "bottom-right"
	AlignMiddleLeft   Align = "middle-left"
	AlignMiddleCenter Align = "middle-center"
	AlignMiddleRight  Align = "middle-right"
	AlignTopLeft      Align = "top-left"
	AlignTopCenter    Align = "top-center"
	AlignTopRight     Align = "top-right"
)

// fractions returns how far the anchor sits into the box along the text
// direction (0 left, 1 right) and across it (0 bottom, 1 top).
func (a Align) fractions() (fx, fy float64) {
	switch a {
	case AlignBottomLeft:
		return 0, 0
	case AlignBottomCenter:
		return 0.5, 0
	case AlignBottomRight:
		return 1, 0
	case AlignMiddleLeft:
		return 0, 0.5
	case AlignMiddleCenter:
		return 0.5, 0.5
	case AlignMiddleRight:
		return 1, 0.5
	case AlignTopLeft:
		return 0, 1
	case AlignTopCenter:
		return 0.5, 1
	case AlignTopRight:
		return 1, 1
	}
	return 0, 0
}

// Candidate is a provisional label position. Candidates live only while
// their feature is being placed.
type Candidate struct {
	Anchor   orb.Point
	Rotation float64 // degrees, counter-clockwise
	Score    float64
	Align    Align
}

// sortCandidates orders candidates by score, best first. Equal scores keep
// generation order so that configured preferences win ties.
func sortCandidates(cs []Candidate) {
	slices.SortStableFunc(cs, func(a, b Candidate) int {
		return cmp.Compare(b.Score, a.Score)
	})
}
