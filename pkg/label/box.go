package label

import (
	"math"

	"github.com/paulmach/orb"
	"seehuhn.de/go/geom/vec"
)

// Box is the oriented rectangular footprint of a label in drawing space.
// Corners run counter-clockwise starting at the bottom-left of the text.
type Box struct {
	corners [4]vec.Vec2
	bound   orb.Bound
	area    float64
}

// NewBox builds the footprint of a w×h label whose align point sits on
// anchor, rotated by rotation degrees counter-clockwise and grown by pad on
// every side.
func NewBox(anchor orb.Point, w, h, rotation float64, align Align, pad float64) Box {
	fx, fy := align.fractions()
	x0, x1 := -fx*w-pad, (1-fx)*w+pad
	y0, y1 := -fy*h-pad, (1-fy)*h+pad

	rad := rotation * math.Pi / 180
	u := vec.Vec2{X: math.Cos(rad), Y: math.Sin(rad)}
	n := vec.Vec2{X: -u.Y, Y: u.X}
	a := vec.Vec2{X: anchor[0], Y: anchor[1]}
	at := func(x, y float64) vec.Vec2 { return a.Add(u.Mul(x)).Add(n.Mul(y)) }

	b := Box{
		corners: [4]vec.Vec2{at(x0, y0), at(x1, y0), at(x1, y1), at(x0, y1)},
		area:    (x1 - x0) * (y1 - y0),
	}
	b.bound = orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	for _, c := range b.corners {
		b.bound = b.bound.Extend(orb.Point{c.X, c.Y})
	}
	return b
}

// BoxFromRing rebuilds a Box from a closed four-corner ring as produced by
// Ring. It is used to feed placed footprints back in as obstacles.
func BoxFromRing(r orb.Ring) (Box, bool) {
	if len(r) < 4 {
		return Box{}, false
	}
	var b Box
	b.bound = orb.Bound{Min: r[0], Max: r[0]}
	for i := 0; i < 4; i++ {
		b.corners[i] = vec.Vec2{X: r[i][0], Y: r[i][1]}
		b.bound = b.bound.Extend(r[i])
	}
	b.area = math.Abs(shoelace(b.corners[:]))
	if shoelace(b.corners[:]) < 0 {
		b.corners[1], b.corners[3] = b.corners[3], b.corners[1]
	}
	return b, true
}

// Bound returns the axis-aligned bounds of the box.
func (b Box) Bound() orb.Bound { return b.bound }

// Area returns the box area.
func (b Box) Area() float64 { return b.area }

// Ring returns the closed footprint ring.
func (b Box) Ring() orb.Ring {
	r := make(orb.Ring, 0, 5)
	for _, c := range b.corners {
		r = append(r, orb.Point{c.X, c.Y})
	}
	return append(r, r[0])
}

// Finite reports whether every corner is a finite coordinate.
func (b Box) Finite() bool {
	for _, c := range b.corners {
		if math.IsNaN(c.X) || math.IsNaN(c.Y) || math.IsInf(c.X, 0) || math.IsInf(c.Y, 0) {
			return false
		}
	}
	return true
}

// Intersects reports whether two boxes share any point, boundaries
// included. It uses the separating axis theorem on the four edge normals.
func (b Box) Intersects(o Box) bool {
	if !b.bound.Intersects(o.bound) {
		return false
	}
	for _, axis := range [4]vec.Vec2{
		b.corners[1].Sub(b.corners[0]), b.corners[3].Sub(b.corners[0]),
		o.corners[1].Sub(o.corners[0]), o.corners[3].Sub(o.corners[0]),
	} {
		amin, amax := project(b.corners, axis)
		bmin, bmax := project(o.corners, axis)
		if amax < bmin || bmax < amin {
			return false
		}
	}
	return true
}

// ContainsPoint reports whether p lies inside or on the box.
func (b Box) ContainsPoint(p orb.Point) bool {
	v := vec.Vec2{X: p[0], Y: p[1]}
	for i := range b.corners {
		if cross(b.corners[(i+1)%4].Sub(b.corners[i]), v.Sub(b.corners[i])) < -epsilon*b.scale() {
			return false
		}
	}
	return true
}

// edges returns the four box edges as point pairs.
func (b Box) edges() [4][2]orb.Point {
	var out [4][2]orb.Point
	for i := range b.corners {
		c, d := b.corners[i], b.corners[(i+1)%4]
		out[i] = [2]orb.Point{{c.X, c.Y}, {d.X, d.Y}}
	}
	return out
}

func (b Box) points() [4]orb.Point {
	var out [4]orb.Point
	for i, c := range b.corners {
		out[i] = orb.Point{c.X, c.Y}
	}
	return out
}

// scale is a length used to make tolerances relative to the box size.
func (b Box) scale() float64 {
	return math.Max(1, b.corners[2].Sub(b.corners[0]).Length())
}

func project(cs [4]vec.Vec2, axis vec.Vec2) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, c := range cs {
		d := dot(c, axis)
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	return lo, hi
}

func dot(a, b vec.Vec2) float64   { return a.X*b.X + a.Y*b.Y }
func cross(a, b vec.Vec2) float64 { return a.X*b.Y - a.Y*b.X }

func shoelace(ps []vec.Vec2) float64 {
	var s float64
	for i := range ps {
		j := (i + 1) % len(ps)
		s += ps[i].X*ps[j].Y - ps[j].X*ps[i].Y
	}
	return s / 2
}
