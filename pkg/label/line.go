package label

import (
	"cmp"
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"
	"github.com/samber/lo"
)

// vertexPath is the topology of a polyline as an arena of vertices with
// index-based neighbour links. A line is a simple path (or a cycle when
// closed), so prev/next indices are all the structure needed.
type vertexPath struct {
	pts    []orb.Point // polyline, closing point repeated when closed
	dist   []float64   // arc length at each entry of pts
	prev   []int       // -1 at the start of an open line
	next   []int       // -1 at the end of an open line
	weight []float64   // length of the edge from i to next[i]
	turn   []float64   // turn angle at each vertex, degrees in [0,180]
	closed bool

	tree  *quadtree.Quadtree // vertices by position, for nearest lookups
	stray []int              // vertices the tree rejected
	buf   []orb.Pointer
}

// pathVertex is a vertex stored in the vertexPath quadtree.
type pathVertex struct {
	p orb.Point
	i int
}

func (v *pathVertex) Point() orb.Point { return v.p }

// newVertexPath builds the arena for ls, dropping repeated points. It
// returns nil for lines with fewer than two distinct points.
func newVertexPath(ls orb.LineString) *vertexPath {
	pts := make([]orb.Point, 0, len(ls))
	for _, p := range ls {
		if !finitePoint(p) {
			return nil
		}
		if len(pts) > 0 && pts[len(pts)-1] == p {
			continue
		}
		pts = append(pts, p)
	}
	if len(pts) < 2 {
		return nil
	}

	vp := &vertexPath{pts: pts, dist: make([]float64, len(pts))}
	for i := 1; i < len(pts); i++ {
		vp.dist[i] = vp.dist[i-1] + distance(pts[i-1], pts[i])
	}

	n := len(pts)
	if n >= 4 && pts[0] == pts[n-1] {
		vp.closed = true
		n--
	}
	vp.prev = make([]int, n)
	vp.next = make([]int, n)
	vp.weight = make([]float64, n)
	for i := 0; i < n; i++ {
		vp.prev[i], vp.next[i] = i-1, i+1
	}
	if vp.closed {
		vp.prev[0] = n - 1
		vp.next[n-1] = 0
	} else {
		vp.next[n-1] = -1
	}
	for i := 0; i < n; i++ {
		if j := vp.next[i]; j >= 0 {
			vp.weight[i] = distance(pts[i], pts[j])
		}
	}

	vp.turn = make([]float64, n)
	for i := 0; i < n; i++ {
		p, q := vp.prev[i], vp.next[i]
		if p < 0 || q < 0 {
			continue
		}
		vp.turn[i] = turnAngle(pts[p], pts[i], pts[q])
	}

	world := orb.MultiPoint(pts).Bound().Pad(epsilon)
	vp.tree = quadtree.New(world)
	for i := 0; i < n; i++ {
		if err := vp.tree.Add(&pathVertex{p: pts[i], i: i}); err != nil {
			vp.stray = append(vp.stray, i)
		}
	}
	return vp
}

// Len returns the total arc length.
func (vp *vertexPath) Len() float64 { return vp.dist[len(vp.dist)-1] }

func (vp *vertexPath) vertices() int { return len(vp.prev) }

// at interpolates the point at arc length d, clamped to the line.
func (vp *vertexPath) at(d float64) orb.Point {
	if d <= 0 {
		return vp.pts[0]
	}
	last := len(vp.pts) - 1
	if d >= vp.dist[last] {
		return vp.pts[last]
	}
	i, _ := slices.BinarySearch(vp.dist, d)
	if i == 0 {
		return vp.pts[0]
	}
	a, b := vp.pts[i-1], vp.pts[i]
	seg := vp.dist[i] - vp.dist[i-1]
	if seg <= 0 {
		return b
	}
	t := (d - vp.dist[i-1]) / seg
	return orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
}

// nearest returns the vertex closest to the point at arc length d. Ties go
// to the lower index. The ends of the segment holding d bound the search
// radius, so the quadtree query only visits nearby vertices.
func (vp *vertexPath) nearest(d float64) int {
	p := vp.at(d)
	best, bestD := -1, math.Inf(1)
	consider := func(i int) {
		dd := distance(vp.pts[i], p)
		if dd < bestD || (dd == bestD && i < best) {
			best, bestD = i, dd
		}
	}
	seg := vp.segment(d)
	consider(seg - 1)
	consider(seg % vp.vertices())

	r := bestD + epsilon
	vp.buf = vp.tree.InBound(vp.buf[:0], orb.Bound{
		Min: orb.Point{p[0] - r, p[1] - r},
		Max: orb.Point{p[0] + r, p[1] + r},
	})
	for _, ptr := range vp.buf {
		consider(ptr.(*pathVertex).i)
	}
	for _, i := range vp.stray {
		consider(i)
	}
	return best
}

// segment returns the index of the end of the segment holding arc length
// d, in [1, len(pts)-1].
func (vp *vertexPath) segment(d float64) int {
	i, _ := slices.BinarySearch(vp.dist, d)
	return max(1, min(i, len(vp.pts)-1))
}

// neighbourhood returns v and up to two hops on either side, in path
// order. Closed paths wrap, never repeating a vertex.
func (vp *vertexPath) neighbourhood(v int) []int {
	seen := map[int]bool{v: true}
	var back []int
	for i, k := vp.prev[v], 0; i >= 0 && k < 2 && !seen[i]; i, k = vp.prev[i], k+1 {
		seen[i] = true
		back = append(back, i)
	}
	out := make([]int, 0, 5)
	for i := len(back) - 1; i >= 0; i-- {
		out = append(out, back[i])
	}
	out = append(out, v)
	for i, k := vp.next[v], 0; i >= 0 && k < 2 && !seen[i]; i, k = vp.next[i], k+1 {
		seen[i] = true
		out = append(out, i)
	}
	return out
}

// chord returns the straight-line distance between the ends of the
// neighbourhood and the path length through it.
func (vp *vertexPath) chord(hood []int) (chord, path float64, dx, dy float64) {
	for _, i := range hood[:len(hood)-1] {
		path += vp.weight[i]
	}
	a, b := vp.pts[hood[0]], vp.pts[hood[len(hood)-1]]
	dx, dy = b[0]-a[0], b[1]-a[1]
	return math.Hypot(dx, dy), path, dx, dy
}

// segmentDirection is the direction of the segment containing arc length d.
func (vp *vertexPath) segmentDirection(d float64) (dx, dy float64) {
	i := vp.segment(d)
	a, b := vp.pts[i-1], vp.pts[i]
	return b[0] - a[0], b[1] - a[1]
}

// arcGap is the distance along the path between arc positions a and b.
func (vp *vertexPath) arcGap(a, b float64) float64 {
	g := math.Abs(a - b)
	if vp.closed {
		g = math.Min(g, vp.Len()-g)
	}
	return g
}

// LineCandidates samples positions along line for a label of the given
// width. Degenerate input (fewer than two distinct points, zero length,
// zero width) yields no candidates. The result is not sorted.
func LineCandidates(line orb.LineString, width float64, cfg *Config) []Candidate {
	if !(width > 0) || math.IsInf(width, 0) {
		return nil
	}
	vp := newVertexPath(line)
	if vp == nil {
		return nil
	}
	total := vp.Len()
	if !(total > 0) || math.IsInf(total, 0) {
		return nil
	}

	t := cfg.Tuning
	t.setDefaults()
	minScore := lo.FromPtrOr(cfg.MinLineLabelScore, DefaultMinLineLabelScore)

	step := t.StepFactor * width
	if !cfg.LineLabelStep.IsZero() {
		step = cfg.LineLabelStep.Resolve(total)
	}
	step = math.Min(math.Max(step, width/4), total)

	sharp := vp.sharpVertices(t.SharpTurnDegrees)
	limit := int(math.Ceil(total/step)) + 2
	var out []Candidate
	for k := 0; k < limit; k++ {
		d := float64(k) * step
		if d > total {
			break
		}
		if total-d < t.MinSpaceAhead*width {
			continue
		}
		hood := vp.neighbourhood(vp.nearest(d))
		score := 1 + vp.curvatureBonus(hood, *t.CurvatureWeight) - vp.cornerPenalty(d, width, sharp)
		if d >= 0.3*total && d <= 0.7*total {
			score += *t.MiddleThirdBonus
		}
		if score < minScore {
			continue
		}
		out = append(out, Candidate{
			Anchor:   vp.at(d),
			Rotation: vp.readableAngle(hood, d),
			Score:    score,
			Align:    AlignMiddleCenter,
		})
	}
	return out
}

// readableAngle is the local tangent of hood around arc length d in
// degrees, turned so that text never reads upside down.
func (vp *vertexPath) readableAngle(hood []int, d float64) float64 {
	chord, _, dx, dy := vp.chord(hood)
	if chord <= epsilon {
		dx, dy = vp.segmentDirection(d)
	}
	return readable(math.Atan2(dy, dx) * 180 / math.Pi)
}

// curvatureBonus rewards straight local context: weight × chord / path of
// the nearest vertex's neighbourhood.
func (vp *vertexPath) curvatureBonus(hood []int, weight float64) float64 {
	chord, path, _, _ := vp.chord(hood)
	if path <= 0 {
		return 0
	}
	return weight * math.Min(1, chord/path)
}

// sharpVertices lists the vertices turning by at least deg, in path order.
func (vp *vertexPath) sharpVertices(deg float64) []int {
	var out []int
	for i := 0; i < vp.vertices(); i++ {
		if vp.turn[i] >= deg {
			out = append(out, i)
		}
	}
	return out
}

// cornerPenalty is the strongest penalty of any sharp vertex within one
// text width of d along the line. A vertex turning by θ at arc distance g
// contributes θ/180 × (1 − g/width). Only the sharp vertices whose arc
// position falls in [d−width, d+width], wrapped on closed lines, are
// visited.
func (vp *vertexPath) cornerPenalty(d, width float64, sharp []int) float64 {
	var worst float64
	visit := func(lo, hi float64) {
		k, _ := slices.BinarySearchFunc(sharp, lo, func(v int, t float64) int {
			return cmp.Compare(vp.dist[v], t)
		})
		for ; k < len(sharp) && vp.dist[sharp[k]] <= hi; k++ {
			v := sharp[k]
			if g := vp.arcGap(vp.dist[v], d); g <= width {
				worst = math.Max(worst, vp.turn[v]/180*(1-g/width))
			}
		}
	}
	visit(d-width, d+width)
	if vp.closed {
		total := vp.Len()
		if d-width < 0 {
			visit(d-width+total, total)
		}
		if d+width > total {
			visit(0, d+width-total)
		}
	}
	return worst
}

// readable normalises deg into [0,360) and flips angles that would render
// text upside down.
func readable(deg float64) float64 {
	a := math.Mod(deg, 360)
	if a < 0 {
		a += 360
	}
	if a > 90 && a < 270 {
		a -= 180
		if a < 0 {
			a += 360
		}
	}
	return a
}

// turnAngle is the change of direction at b, in degrees: 0 for a straight
// continuation, 180 for a reversal.
func turnAngle(a, b, c orb.Point) float64 {
	ux, uy := b[0]-a[0], b[1]-a[1]
	vx, vy := c[0]-b[0], c[1]-b[1]
	nu, nv := math.Hypot(ux, uy), math.Hypot(vx, vy)
	if nu == 0 || nv == 0 {
		return 0
	}
	cos := (ux*vx + uy*vy) / (nu * nv)
	return math.Acos(math.Max(-1, math.Min(1, cos))) * 180 / math.Pi
}

func distance(a, b orb.Point) float64 {
	return math.Hypot(b[0]-a[0], b[1]-a[1])
}

func finitePoint(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}
