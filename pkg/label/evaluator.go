package label

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/matzehuels/cartolabel/pkg/feature"
	"github.com/matzehuels/cartolabel/pkg/label/metrics"
)

// Rejection reasons reported by the evaluator.
const (
	rejectNonFinite = "non-finite"
	rejectEmpty     = "empty-box"
	rejectObstacle  = "overlaps-label"
	rejectAvoidance = "overlaps-avoidance"
	rejectFit       = "polygon-fit"
	rejectPanic     = "internal-error"
)

// evaluator tests candidates against the run's collision state. It keeps
// the last measurement since every candidate of a feature shares text and
// style.
type evaluator struct {
	logger   *log.Logger
	measurer metrics.Measurer

	lastText  string
	lastStyle *TextStyle
	lastW     float64
	lastH     float64
	measured  bool
}

func (e *evaluator) measure(text string, style *TextStyle) (float64, float64) {
	if e.measured && e.lastText == text && e.lastStyle == style {
		return e.lastW, e.lastH
	}
	e.lastW, e.lastH = e.measurer.Measure(text, style)
	e.lastText, e.lastStyle, e.measured = text, style, true
	return e.lastW, e.lastH
}

// evaluate builds the label box for cand and accepts it if it collides with
// no obstacle or avoidance geometry and, for polygons, satisfies the fit
// policy. The returned score is the candidate's own score. The prepared
// indexes are optional; without them every geometry is tested directly and
// the outcome is the same. Internal failures reject the candidate.
func (e *evaluator) evaluate(
	text string,
	cand Candidate,
	style *TextStyle,
	geom feature.Geometry,
	cfg *Config,
	obstacles []Box,
	avoidance []orb.Geometry,
	preparedFeature *spatialIndex,
	preparedAvoidance *spatialIndex,
) (box Box, score float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("candidate evaluation failed", "text", text, "anchor", cand.Anchor, "error", fmt.Sprint(r))
			box, score, ok = Box{}, 0, false
		}
	}()

	reason := e.check(text, cand, style, geom, cfg, obstacles, avoidance, preparedFeature, preparedAvoidance, &box)
	if reason != "" {
		e.logger.Debug("candidate rejected", "text", text, "anchor", cand.Anchor, "rotation", cand.Rotation, "reason", reason)
		return Box{}, 0, false
	}
	return box, cand.Score, true
}

func (e *evaluator) check(
	text string,
	cand Candidate,
	style *TextStyle,
	geom feature.Geometry,
	cfg *Config,
	obstacles []Box,
	avoidance []orb.Geometry,
	preparedFeature *spatialIndex,
	preparedAvoidance *spatialIndex,
	out *Box,
) string {
	w, h := e.measure(text, style)
	if !(w > 0) || !(h > 0) {
		return rejectEmpty
	}
	box := NewBox(cand.Anchor, w, h, cand.Rotation, cand.Align, cfg.Padding)
	if !box.Finite() {
		return rejectNonFinite
	}

	for _, o := range obstacles {
		if box.Intersects(o) {
			return rejectObstacle
		}
	}

	hit := func(g orb.Geometry) bool { return boxIntersectsGeometry(box, g) }
	if preparedAvoidance != nil {
		if preparedAvoidance.query(box.Bound(), hit) {
			return rejectAvoidance
		}
	} else {
		for _, g := range avoidance {
			if hit(g) {
				return rejectAvoidance
			}
		}
	}

	if polys := polygonsOf(geom); polys != nil && !fits(box, polys, cfg, preparedFeature) {
		return rejectFit
	}
	*out = box
	return ""
}

// polygonsOf returns the polygon parts of an areal geometry, or nil.
func polygonsOf(g feature.Geometry) orb.MultiPolygon {
	switch v := g.(type) {
	case feature.Polygon:
		return orb.MultiPolygon{v.Polygon}
	case feature.MultiPolygon:
		return v.MultiPolygon
	}
	return nil
}

// fits applies the polygon fit policy.
func fits(box Box, polys orb.MultiPolygon, cfg *Config, prepared *spatialIndex) bool {
	switch cfg.PolygonFit {
	case FitOverlap:
		var area float64
		for _, p := range polys {
			area += overlapArea(box, p)
		}
		return area >= cfg.MinPolygonOverlap*box.Area()
	case FitBoundary:
		return crossesOutline(box, polys, prepared)
	default:
		if crossesOutline(box, polys, prepared) {
			return false
		}
		for _, c := range box.points() {
			if !planar.MultiPolygonContains(polys, c) {
				return false
			}
		}
		for _, p := range polys {
			for _, hole := range p[1:] {
				if len(hole) > 0 && box.ContainsPoint(hole[0]) {
					return false
				}
			}
		}
		return true
	}
}

// crossesOutline reports whether any box edge touches any ring edge.
func crossesOutline(box Box, polys orb.MultiPolygon, prepared *spatialIndex) bool {
	hit := func(g orb.Geometry) bool {
		ls, ok := g.(orb.LineString)
		return ok && len(ls) == 2 && boxCrossesSegment(box, ls[0], ls[1])
	}
	if prepared != nil {
		return prepared.query(box.Bound(), hit)
	}
	for _, p := range polys {
		for _, r := range p {
			for i := 0; i+1 < len(r); i++ {
				if boxCrossesSegment(box, r[i], r[i+1]) {
					return true
				}
			}
		}
	}
	return false
}
