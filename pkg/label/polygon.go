package label

import (
	"cmp"
	"math"

	"github.com/emirpasic/gods/v2/queues/priorityqueue"
	"github.com/paulmach/orb"
)

// maxProbes bounds the cell search for pathological rings.
const maxProbes = 1 << 16

// cell is a square of the pole search. d is the signed distance from the
// centre to the polygon outline (positive inside); max is the best
// distance any point of the cell could reach.
type cell struct {
	x, y float64
	h    float64
	d    float64
	max  float64
}

func newCell(x, y, h float64, p orb.Polygon) *cell {
	d := signedDistance(orb.Point{x, y}, p)
	return &cell{x: x, y: y, h: h, d: d, max: d + h*math.Sqrt2}
}

// PolygonAnchor returns the pole of inaccessibility of poly: the interior
// point farthest from the outline, holes included. Precision is a tenth of
// the text height; the text width does not affect the search. ok is false
// for polygons without area.
func PolygonAnchor(poly orb.Polygon, _, height float64) (anchor orb.Point, ok bool) {
	c, ok := pole(poly, math.Max(height/10, 1e-9))
	if !ok {
		return orb.Point{}, false
	}
	return orb.Point{c.x, c.y}, true
}

// PolygonCandidates returns one centred candidate per part of mp that has
// area. A part scores its pole distance, so roomier parts are tried first.
func PolygonCandidates(mp orb.MultiPolygon, width, height float64) []Candidate {
	var out []Candidate
	for _, poly := range mp {
		anchor, ok := PolygonAnchor(poly, width, height)
		if !ok {
			continue
		}
		out = append(out, Candidate{
			Anchor: anchor,
			Score:  signedDistance(anchor, poly),
			Align:  AlignMiddleCenter,
		})
	}
	return out
}

// pole runs the quad-cell search for the pole of inaccessibility. Cells are
// visited best potential first and split until no cell can beat the best
// found by more than precision.
func pole(poly orb.Polygon, precision float64) (*cell, bool) {
	if len(poly) == 0 || len(poly[0]) < 3 || ringArea(poly[0]) <= 0 {
		return nil, false
	}
	for _, p := range poly[0] {
		if !finitePoint(p) {
			return nil, false
		}
	}

	b := poly[0].Bound()
	w, h := b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
	size := math.Min(w, h)
	if size <= 0 {
		return nil, false
	}
	half := size / 2

	queue := priorityqueue.NewWith(func(a, b *cell) int {
		return cmp.Compare(b.max, a.max)
	})
	for x := b.Min[0]; x < b.Max[0]; x += size {
		for y := b.Min[1]; y < b.Max[1]; y += size {
			queue.Enqueue(newCell(x+half, y+half, half, poly))
		}
	}

	best := centroidCell(poly)
	if bc := newCell(b.Min[0]+w/2, b.Min[1]+h/2, 0, poly); bc.d > best.d {
		best = bc
	}

	probes := queue.Size()
	for !queue.Empty() && probes < maxProbes {
		c, _ := queue.Dequeue()
		if c.d > best.d {
			best = c
		}
		if c.max-best.d <= precision {
			continue
		}
		hh := c.h / 2
		queue.Enqueue(newCell(c.x-hh, c.y-hh, hh, poly))
		queue.Enqueue(newCell(c.x+hh, c.y-hh, hh, poly))
		queue.Enqueue(newCell(c.x-hh, c.y+hh, hh, poly))
		queue.Enqueue(newCell(c.x+hh, c.y+hh, hh, poly))
		probes += 4
	}
	if best.d <= 0 {
		return nil, false
	}
	return best, true
}

func centroidCell(poly orb.Polygon) *cell {
	r := poly[0]
	var area, x, y float64
	for i, j := 0, len(r)-1; i < len(r); j, i = i, i+1 {
		a, b := r[i], r[j]
		f := a[0]*b[1] - b[0]*a[1]
		x += (a[0] + b[0]) * f
		y += (a[1] + b[1]) * f
		area += f * 3
	}
	if area == 0 {
		return newCell(r[0][0], r[0][1], 0, poly)
	}
	return newCell(x/area, y/area, 0, poly)
}

// signedDistance is the distance from p to the nearest ring edge, positive
// when p is inside the polygon (even-odd over all rings).
func signedDistance(p orb.Point, poly orb.Polygon) float64 {
	inside := false
	minSq := math.Inf(1)
	for _, r := range poly {
		for i, j := 0, len(r)-1; i < len(r); j, i = i, i+1 {
			a, b := r[i], r[j]
			if (a[1] > p[1]) != (b[1] > p[1]) &&
				p[0] < (b[0]-a[0])*(p[1]-a[1])/(b[1]-a[1])+a[0] {
				inside = !inside
			}
			minSq = math.Min(minSq, segmentDistSq(p, a, b))
		}
	}
	d := math.Sqrt(minSq)
	if inside {
		return d
	}
	return -d
}

func segmentDistSq(p, a, b orb.Point) float64 {
	x, y := a[0], a[1]
	dx, dy := b[0]-x, b[1]-y
	if dx != 0 || dy != 0 {
		t := ((p[0]-x)*dx + (p[1]-y)*dy) / (dx*dx + dy*dy)
		if t > 1 {
			x, y = b[0], b[1]
		} else if t > 0 {
			x += dx * t
			y += dy * t
		}
	}
	dx, dy = p[0]-x, p[1]-y
	return dx*dx + dy*dy
}

// ringArea is the unsigned shoelace area of r.
func ringArea(r orb.Ring) float64 {
	var s float64
	for i, j := 0, len(r)-1; i < len(r); j, i = i, i+1 {
		s += r[j][0]*r[i][1] - r[i][0]*r[j][1]
	}
	return math.Abs(s) / 2
}
