package label

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const epsilon = 1e-9

// orient returns the sign of the turn a→b→c: >0 counter-clockwise.
func orient(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func onSegment(a, b, p orb.Point) bool {
	return math.Min(a[0], b[0])-epsilon <= p[0] && p[0] <= math.Max(a[0], b[0])+epsilon &&
		math.Min(a[1], b[1])-epsilon <= p[1] && p[1] <= math.Max(a[1], b[1])+epsilon
}

// segmentsIntersect reports whether closed segments ab and cd share a point.
func segmentsIntersect(a, b, c, d orb.Point) bool {
	d1 := orient(c, d, a)
	d2 := orient(c, d, b)
	d3 := orient(a, b, c)
	d4 := orient(a, b, d)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	switch {
	case d1 == 0 && onSegment(c, d, a):
		return true
	case d2 == 0 && onSegment(c, d, b):
		return true
	case d3 == 0 && onSegment(a, b, c):
		return true
	case d4 == 0 && onSegment(a, b, d):
		return true
	}
	return false
}

// boxCrossesSegment reports whether segment ab touches any edge of b.
func boxCrossesSegment(b Box, a, c orb.Point) bool {
	for _, e := range b.edges() {
		if segmentsIntersect(e[0], e[1], a, c) {
			return true
		}
	}
	return false
}

// boxTouchesSegment reports whether segment ac shares any point with the
// box, interior included.
func boxTouchesSegment(b Box, a, c orb.Point) bool {
	if !b.bound.Intersects(orb.Bound{Min: a, Max: a}.Extend(c)) {
		return false
	}
	return b.ContainsPoint(a) || b.ContainsPoint(c) || boxCrossesSegment(b, a, c)
}

func boxTouchesPath(b Box, ps []orb.Point) bool {
	switch len(ps) {
	case 0:
		return false
	case 1:
		return b.ContainsPoint(ps[0])
	}
	for i := 0; i+1 < len(ps); i++ {
		if boxTouchesSegment(b, ps[i], ps[i+1]) {
			return true
		}
	}
	return false
}

func boxTouchesPolygon(b Box, p orb.Polygon) bool {
	if len(p) == 0 || !b.bound.Intersects(p.Bound()) {
		return false
	}
	for _, r := range p {
		if boxTouchesPath(b, r) {
			return true
		}
	}
	// No boundary contact: either the box is inside the polygon or disjoint.
	c := b.points()[0]
	return planar.PolygonContains(p, c)
}

// boxIntersectsGeometry reports whether the box shares any point with g.
// Every orb geometry type is handled; unknown types never intersect.
func boxIntersectsGeometry(b Box, g orb.Geometry) bool {
	switch v := g.(type) {
	case nil:
		return false
	case orb.Point:
		return b.ContainsPoint(v)
	case orb.MultiPoint:
		for _, p := range v {
			if b.ContainsPoint(p) {
				return true
			}
		}
		return false
	case orb.LineString:
		return boxTouchesPath(b, v)
	case orb.MultiLineString:
		for _, ls := range v {
			if boxTouchesPath(b, ls) {
				return true
			}
		}
		return false
	case orb.Ring:
		return boxTouchesPolygon(b, orb.Polygon{v})
	case orb.Polygon:
		return boxTouchesPolygon(b, v)
	case orb.MultiPolygon:
		for _, p := range v {
			if boxTouchesPolygon(b, p) {
				return true
			}
		}
		return false
	case orb.Bound:
		return boxTouchesPolygon(b, v.ToPolygon())
	case orb.Collection:
		for _, part := range v {
			if boxIntersectsGeometry(b, part) {
				return true
			}
		}
		return false
	}
	return false
}

// clipArea returns the area of ring r inside the convex box, using
// Sutherland–Hodgman clipping. The subject ring may be concave.
func clipArea(b Box, r orb.Ring) float64 {
	out := make([]orb.Point, 0, len(r)+4)
	for _, p := range r {
		out = append(out, p)
	}
	if len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	pts := b.points()
	for i := 0; i < 4 && len(out) > 0; i++ {
		a, c := pts[i], pts[(i+1)%4]
		in := out
		out = make([]orb.Point, 0, len(in)+2)
		for j := range in {
			cur, prev := in[j], in[(j+len(in)-1)%len(in)]
			curIn := orient(a, c, cur) >= 0
			prevIn := orient(a, c, prev) >= 0
			if curIn {
				if !prevIn {
					out = append(out, lineIntersection(prev, cur, a, c))
				}
				out = append(out, cur)
			} else if prevIn {
				out = append(out, lineIntersection(prev, cur, a, c))
			}
		}
	}
	if len(out) < 3 {
		return 0
	}
	var s float64
	for i := range out {
		j := (i + 1) % len(out)
		s += out[i][0]*out[j][1] - out[j][0]*out[i][1]
	}
	return math.Abs(s) / 2
}

// lineIntersection intersects segment pq with the infinite line through ab.
// Callers guarantee p and q lie on different sides.
func lineIntersection(p, q, a, b orb.Point) orb.Point {
	dp := orient(a, b, p)
	dq := orient(a, b, q)
	t := dp / (dp - dq)
	return orb.Point{p[0] + t*(q[0]-p[0]), p[1] + t*(q[1]-p[1])}
}

// overlapArea returns the area of the polygon inside the box, holes
// subtracted.
func overlapArea(b Box, p orb.Polygon) float64 {
	if len(p) == 0 || !b.bound.Intersects(p.Bound()) {
		return 0
	}
	a := clipArea(b, p[0])
	for _, hole := range p[1:] {
		a -= clipArea(b, hole)
	}
	return math.Max(0, a)
}
