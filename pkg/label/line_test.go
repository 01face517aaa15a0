package label

import (
	"math"
	"slices"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/samber/lo"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return cfg
}

func TestLineCandidatesStraight(t *testing.T) {
	cfg := defaultConfig(t)
	line := orb.LineString{{0, 0}, {100, 0}}

	cands := LineCandidates(line, 20, cfg)
	if len(cands) != 6 {
		t.Fatalf("got %d candidates, want 6 (samples 0..80 every 16)", len(cands))
	}
	for _, c := range cands {
		if 100-c.Anchor[0] < 5 {
			t.Errorf("candidate at %v leaves less than a quarter width ahead", c.Anchor)
		}
		if c.Score < *cfg.MinLineLabelScore {
			t.Errorf("candidate at %v scored %v below threshold", c.Anchor, c.Score)
		}
		if c.Rotation != 0 {
			t.Errorf("Rotation = %v, want 0", c.Rotation)
		}
		if c.Align != AlignMiddleCenter {
			t.Errorf("Align = %v, want middle-center", c.Align)
		}
		want := 1.5
		if c.Anchor[0] >= 30 && c.Anchor[0] <= 70 {
			want = 2.0
		}
		if !near(c.Score, want) {
			t.Errorf("Score at %v = %v, want %v", c.Anchor, c.Score, want)
		}
	}
}

func TestLineCandidatesZeroSettings(t *testing.T) {
	cfg := &Config{
		MinLineLabelScore: lo.ToPtr(0.0),
		Tuning:            Tuning{MiddleThirdBonus: lo.ToPtr(0.0), CurvatureWeight: lo.ToPtr(0.0)},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if *cfg.MinLineLabelScore != 0 || *cfg.Tuning.MiddleThirdBonus != 0 || *cfg.Tuning.CurvatureWeight != 0 {
		t.Fatalf("Validate() replaced explicit zeros: %+v", cfg)
	}
	cands := LineCandidates(orb.LineString{{0, 0}, {100, 0}}, 20, cfg)
	if len(cands) != 6 {
		t.Fatalf("got %d candidates, want 6", len(cands))
	}
	for _, c := range cands {
		if !near(c.Score, 1) {
			t.Errorf("Score at %v = %v, want 1 with both bonuses off", c.Anchor, c.Score)
		}
	}
}

func TestLineCandidatesReadableRotation(t *testing.T) {
	cfg := defaultConfig(t)
	tests := []struct {
		name string
		line orb.LineString
		want float64
	}{
		{"east", orb.LineString{{0, 0}, {100, 0}}, 0},
		{"west", orb.LineString{{100, 0}, {0, 0}}, 0},
		{"north", orb.LineString{{0, 0}, {0, 100}}, 90},
		{"south", orb.LineString{{0, 100}, {0, 0}}, 270},
		{"south-west", orb.LineString{{100, 100}, {0, 0}}, 45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cands := LineCandidates(tt.line, 20, cfg)
			if len(cands) == 0 {
				t.Fatal("no candidates")
			}
			for _, c := range cands {
				if math.Abs(c.Rotation-tt.want) > 1e-6 {
					t.Errorf("Rotation = %v, want %v", c.Rotation, tt.want)
				}
			}
		})
	}
}

func TestReadable(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0}, {90, 90}, {91, 271}, {180, 0}, {269, 89},
		{270, 270}, {-45, 315}, {405, 45}, {-180, 0},
	}
	for _, tt := range tests {
		if got := readable(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("readable(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLineCandidatesDegenerate(t *testing.T) {
	cfg := defaultConfig(t)
	tests := []struct {
		name  string
		line  orb.LineString
		width float64
	}{
		{"empty", nil, 10},
		{"single point", orb.LineString{{1, 1}}, 10},
		{"repeated point", orb.LineString{{1, 1}, {1, 1}, {1, 1}}, 10},
		{"zero width", orb.LineString{{0, 0}, {10, 0}}, 0},
		{"nan width", orb.LineString{{0, 0}, {10, 0}}, math.NaN()},
		{"nan coordinate", orb.LineString{{0, 0}, {math.NaN(), 0}}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LineCandidates(tt.line, tt.width, cfg); len(got) != 0 {
				t.Errorf("got %d candidates, want none", len(got))
			}
		})
	}
}

func TestLineCandidatesStep(t *testing.T) {
	line := orb.LineString{{0, 0}, {100, 0}}
	tests := []struct {
		name string
		step Step
		want int
	}{
		{"percent", Step{Value: 10, Percent: true}, 10},
		{"absolute", Step{Value: 25}, 4},
		{"clamped to quarter width", Step{Value: 0.001}, 20},
		{"clamped to length", Step{Value: 500}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LineLabelStep: tt.step}
			if err := cfg.Validate(); err != nil {
				t.Fatal(err)
			}
			if got := LineCandidates(line, 20, cfg); len(got) != tt.want {
				t.Errorf("got %d candidates, want %d", len(got), tt.want)
			}
		})
	}
}

func TestCornerPenalty(t *testing.T) {
	vp := newVertexPath(orb.LineString{{0, 0}, {50, 0}, {50, 50}})
	if vp == nil {
		t.Fatal("newVertexPath() = nil")
	}
	if !near(vp.turn[1], 90) {
		t.Fatalf("turn at corner = %v, want 90", vp.turn[1])
	}
	tests := []struct {
		d    float64
		want float64
	}{
		{50, 0.5},
		{40, 0.25},
		{60, 0.25},
		{10, 0},
	}
	for _, tt := range tests {
		if got := vp.cornerPenalty(tt.d, 20, vp.sharpVertices(DefaultSharpTurnDegrees)); !near(got, tt.want) {
			t.Errorf("cornerPenalty(%v) = %v, want %v", tt.d, got, tt.want)
		}
	}
	// Gentle bends are not corners.
	if got := vp.cornerPenalty(50, 20, vp.sharpVertices(120)); got != 0 {
		t.Errorf("cornerPenalty() below threshold = %v, want 0", got)
	}
}

func TestCornerPenaltyClosedWraps(t *testing.T) {
	// Square ring of length 40: corner 0 sits at arc 0 and arc 40.
	vp := newVertexPath(orb.LineString{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}})
	sharp := vp.sharpVertices(DefaultSharpTurnDegrees)
	if len(sharp) != 4 {
		t.Fatalf("sharpVertices() = %v, want all four corners", sharp)
	}
	tests := []struct {
		d    float64
		want float64
	}{
		{38, 0.5 * (1 - 2.0/4)},
		{1, 0.5 * (1 - 1.0/4)},
		{5, 0},
	}
	for _, tt := range tests {
		if got := vp.cornerPenalty(tt.d, 4, sharp); !near(got, tt.want) {
			t.Errorf("cornerPenalty(%v) = %v, want %v", tt.d, got, tt.want)
		}
	}
}

func TestVertexPathNearest(t *testing.T) {
	// A hairpin: the second leg runs back one unit above the first, so
	// the closest vertex to a sample often lies on the other leg.
	line := orb.LineString{{0, 0}, {3, 0}, {7, 0}, {10, 0}, {10, 1}, {8, 1}, {5, 1}, {1, 1}}
	vp := newVertexPath(line)
	brute := func(p orb.Point) int {
		best, bestD := 0, math.Inf(1)
		for i := 0; i < vp.vertices(); i++ {
			if d := distance(vp.pts[i], p); d < bestD {
				best, bestD = i, d
			}
		}
		return best
	}
	for d := 0.0; d <= vp.Len(); d += 0.25 {
		if got, want := vp.nearest(d), brute(vp.at(d)); got != want {
			t.Errorf("nearest(%v) = %d, want %d", d, got, want)
		}
	}
}

func TestLineCandidatesLongLine(t *testing.T) {
	const n = 40000
	line := make(orb.LineString, n)
	for i := range line {
		line[i] = orb.Point{float64(i), float64(i%2) * 0.1}
	}
	cfg := defaultConfig(t)

	start := time.Now()
	cands := LineCandidates(line, 4, cfg)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("LineCandidates on %d vertices took %v", n, elapsed)
	}
	if len(cands) == 0 {
		t.Fatal("no candidates on a gentle zigzag")
	}
	for _, c := range cands[:10] {
		if c.Rotation > 5 && c.Rotation < 355 {
			t.Errorf("Rotation = %v, want close to 0", c.Rotation)
		}
	}
}

func TestLineCandidatesAvoidCorners(t *testing.T) {
	cfg := defaultConfig(t)
	straight := LineCandidates(orb.LineString{{0, 0}, {100, 0}}, 20, cfg)
	bent := LineCandidates(orb.LineString{{0, 0}, {50, 0}, {50, 50}}, 20, cfg)

	best := func(cs []Candidate) float64 {
		var m float64
		for _, c := range cs {
			m = math.Max(m, c.Score)
		}
		return m
	}
	if best(bent) >= best(straight) {
		t.Errorf("bent line best score %v should be below straight %v", best(bent), best(straight))
	}

	cfg.MinLineLabelScore = lo.ToPtr(10.0)
	if got := LineCandidates(orb.LineString{{0, 0}, {100, 0}}, 20, cfg); len(got) != 0 {
		t.Errorf("unreachable threshold should reject every sample, got %d", len(got))
	}
}

func TestVertexPathClosed(t *testing.T) {
	vp := newVertexPath(orb.LineString{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}})
	if !vp.closed {
		t.Fatal("ring should be closed")
	}
	if vp.vertices() != 4 {
		t.Fatalf("vertices() = %d, want 4", vp.vertices())
	}
	if !near(vp.turn[0], 90) {
		t.Errorf("turn at start of closed line = %v, want 90", vp.turn[0])
	}
	if got := vp.neighbourhood(0); !slices.Equal(got, []int{2, 3, 0, 1}) {
		t.Errorf("neighbourhood(0) = %v, want [2 3 0 1]", got)
	}
	if !near(vp.arcGap(1, 39), 2) {
		t.Errorf("arcGap should wrap around the ring, got %v", vp.arcGap(1, 39))
	}

	open := newVertexPath(orb.LineString{{0, 0}, {10, 0}, {20, 0}, {30, 0}, {40, 0}, {50, 0}})
	if got := open.neighbourhood(0); !slices.Equal(got, []int{0, 1, 2}) {
		t.Errorf("neighbourhood(0) = %v, want [0 1 2]", got)
	}
	if got := open.neighbourhood(3); !slices.Equal(got, []int{1, 2, 3, 4, 5}) {
		t.Errorf("neighbourhood(3) = %v, want [1 2 3 4 5]", got)
	}
}

func TestVertexPathAt(t *testing.T) {
	vp := newVertexPath(orb.LineString{{0, 0}, {10, 0}, {10, 10}})
	tests := []struct {
		d    float64
		want orb.Point
	}{
		{-1, orb.Point{0, 0}},
		{0, orb.Point{0, 0}},
		{5, orb.Point{5, 0}},
		{10, orb.Point{10, 0}},
		{15, orb.Point{10, 5}},
		{25, orb.Point{10, 10}},
	}
	for _, tt := range tests {
		got := vp.at(tt.d)
		if !near(got[0], tt.want[0]) || !near(got[1], tt.want[1]) {
			t.Errorf("at(%v) = %v, want %v", tt.d, got, tt.want)
		}
	}
}
