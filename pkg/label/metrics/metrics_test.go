package metrics

import (
	"io"
	"math"
	"testing"

	"github.com/charmbracelet/log"
)

func quiet() *log.Logger { return log.New(io.Discard) }

func TestEstimate(t *testing.T) {
	tests := []struct {
		text   string
		height float64
		scale  float64
		want   float64
	}{
		{"", 2.5, 1, 0},
		{"ABC", 2.5, 1, 4.5},
		{"ABC", 5, 1, 9},
		{"ABC", 2.5, 2, 9},
		{"Ölmühle", 1, 1, 4.2},
	}
	for _, tt := range tests {
		if got := Estimate(tt.text, tt.height, tt.scale); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Estimate(%q, %v, %v) = %v, want %v", tt.text, tt.height, tt.scale, got, tt.want)
		}
	}
}

func TestHeuristic(t *testing.T) {
	h := Heuristic{Logger: quiet()}

	if w, ht := h.Measure("", &Style{CapHeight: 3}); w != 0 || ht != 0 {
		t.Errorf("empty text = (%v, %v), want (0, 0)", w, ht)
	}
	if w, ht := h.Measure("AB", nil); math.Abs(w-3) > 1e-9 || ht != DefaultCapHeight {
		t.Errorf("nil style = (%v, %v), want (3, 2.5)", w, ht)
	}
	if w, ht := h.Measure("AB", &Style{CapHeight: 4, WidthScale: 0.5}); math.Abs(w-2.4) > 1e-9 || ht != 4 {
		t.Errorf("styled = (%v, %v), want (2.4, 4)", w, ht)
	}
}

func TestStyleDefaults(t *testing.T) {
	var s Style
	if s.Height() != DefaultCapHeight || s.Scale() != 1 {
		t.Errorf("zero Style: Height() = %v, Scale() = %v", s.Height(), s.Scale())
	}
}
