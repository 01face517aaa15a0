package label

import (
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"
)

// indexed is one geometry part stored in a spatialIndex. The quadtree keys
// it by its bound centre.
type indexed struct {
	geom  orb.Geometry
	bound orb.Bound
}

func (i *indexed) Point() orb.Point { return i.bound.Center() }

// spatialIndex is a read-only index over geometry parts used to narrow
// collision checks. Parts are keyed by centre in a quadtree; a query pads
// its bound by the largest half-extent so no overlapping part is missed.
// Parts much larger than typical go to a short linear list instead, so one
// huge polygon does not inflate every query.
type spatialIndex struct {
	tree         *quadtree.Quadtree
	halfW, halfH float64
	large        []*indexed
	buf          []orb.Pointer
}

// newSpatialIndex indexes the parts of gs. Collections and multi-geometries
// are split so that each part is tested on its own.
func newSpatialIndex(gs []orb.Geometry) *spatialIndex {
	var parts []*indexed
	for _, g := range gs {
		parts = appendParts(parts, g)
	}
	idx := &spatialIndex{}
	if len(parts) == 0 {
		return idx
	}

	diag := make([]float64, len(parts))
	for i, p := range parts {
		diag[i] = p.bound.Max[0] - p.bound.Min[0] + p.bound.Max[1] - p.bound.Min[1]
	}
	sorted := slices.Clone(diag)
	slices.Sort(sorted)
	limit := math.Max(16*sorted[len(sorted)/2], epsilon)

	world := parts[0].bound
	var small []*indexed
	for i, p := range parts {
		if diag[i] > limit {
			idx.large = append(idx.large, p)
			continue
		}
		small = append(small, p)
		world = world.Union(p.bound)
		idx.halfW = math.Max(idx.halfW, (p.bound.Max[0]-p.bound.Min[0])/2)
		idx.halfH = math.Max(idx.halfH, (p.bound.Max[1]-p.bound.Min[1])/2)
	}
	if len(small) == 0 {
		return idx
	}
	idx.tree = quadtree.New(world.Pad(epsilon))
	for _, p := range small {
		if err := idx.tree.Add(p); err != nil {
			// Centre outside the world bound cannot happen, but stay
			// correct if it does.
			idx.large = append(idx.large, p)
		}
	}
	return idx
}

func appendParts(parts []*indexed, g orb.Geometry) []*indexed {
	switch v := g.(type) {
	case nil:
		return parts
	case orb.Collection:
		for _, c := range v {
			parts = appendParts(parts, c)
		}
		return parts
	case orb.MultiPolygon:
		for _, p := range v {
			parts = appendParts(parts, p)
		}
		return parts
	case orb.MultiLineString:
		for _, ls := range v {
			parts = appendParts(parts, ls)
		}
		return parts
	case orb.MultiPoint:
		for _, p := range v {
			parts = appendParts(parts, p)
		}
		return parts
	}
	return append(parts, &indexed{geom: g, bound: g.Bound()})
}

// query calls fn for every part whose bound intersects b, stopping when fn
// returns true. It reports whether fn did.
func (idx *spatialIndex) query(b orb.Bound, fn func(orb.Geometry) bool) bool {
	for _, p := range idx.large {
		if p.bound.Intersects(b) && fn(p.geom) {
			return true
		}
	}
	if idx.tree == nil {
		return false
	}
	search := orb.Bound{
		Min: orb.Point{b.Min[0] - idx.halfW, b.Min[1] - idx.halfH},
		Max: orb.Point{b.Max[0] + idx.halfW, b.Max[1] + idx.halfH},
	}
	idx.buf = idx.tree.InBound(idx.buf[:0], search)
	for _, ptr := range idx.buf {
		p := ptr.(*indexed)
		if p.bound.Intersects(b) && fn(p.geom) {
			return true
		}
	}
	return false
}

// ringSegments returns every edge of the polygon rings as two-point lines.
func ringSegments(polys ...orb.Polygon) []orb.Geometry {
	var out []orb.Geometry
	for _, p := range polys {
		for _, r := range p {
			for i := 0; i+1 < len(r); i++ {
				out = append(out, orb.LineString{r[i], r[i+1]})
			}
		}
	}
	return out
}
