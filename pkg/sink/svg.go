package sink

import (
	"bytes"
	"fmt"
	"html"
	"math"

	"github.com/paulmach/orb"

	"github.com/matzehuels/cartolabel/pkg/feature"
	"github.com/matzehuels/cartolabel/pkg/label"
)

const (
	// DefaultSVGSize is the width of the preview in pixels.
	DefaultSVGSize = 1000.0

	// capHeightEm is the cap height of the Go fonts as a fraction of the
	// em size.
	capHeightEm = 0.7
)

const svgCSS = `
    .feature { fill: none; stroke: #4a6fa5; stroke-width: 1.2; vector-effect: non-scaling-stroke; }
    .feature.area { fill: #dbe6f3; fill-rule: evenodd; }
    .feature.point { fill: #4a6fa5; stroke: none; }
    .avoid { fill: #e8e3da; stroke: #a89f8f; stroke-width: 1; vector-effect: non-scaling-stroke; }
    .footprint { fill: none; stroke: #d1495b; stroke-width: 0.8; stroke-dasharray: 3 2; vector-effect: non-scaling-stroke; }
    .label { font-family: 'Go', 'Helvetica', sans-serif; fill: #222; }`

// SVGOption configures [RenderSVG].
type SVGOption func(*svgRenderer)

type svgRenderer struct {
	features   []feature.Feature
	avoidance  []orb.Geometry
	size       float64
	footprints bool
}

// WithFeatures draws the labelled features underneath the labels.
func WithFeatures(fs []feature.Feature) SVGOption {
	return func(r *svgRenderer) { r.features = fs }
}

// WithAvoidanceLayer draws avoidance geometry underneath the features.
func WithAvoidanceLayer(gs []orb.Geometry) SVGOption {
	return func(r *svgRenderer) { r.avoidance = gs }
}

// WithSize sets the output width in pixels. The height follows the
// aspect ratio of the drawn extent.
func WithSize(px float64) SVGOption {
	return func(r *svgRenderer) {
		if px > 0 {
			r.size = px
		}
	}
}

// WithoutFootprints hides the dashed label boxes.
func WithoutFootprints() SVGOption { return func(r *svgRenderer) { r.footprints = false } }

// RenderSVG draws the document. The output is deterministic for equal
// inputs.
func RenderSVG(doc *Document, opts ...SVGOption) []byte {
	r := svgRenderer{size: DefaultSVGSize, footprints: true}
	for _, opt := range opts {
		opt(&r)
	}

	fr := r.frame(doc)
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.1f %.1f" width="%.0f" height="%.0f">`+"\n",
		fr.width, fr.height, fr.width, fr.height)
	fmt.Fprintf(&buf, "  <style>%s\n  </style>\n", svgCSS)
	fmt.Fprintf(&buf, `  <rect width="100%%" height="100%%" fill="#fbfaf7"/>`+"\n")

	buf.WriteString(`  <g id="avoidance">` + "\n")
	for _, g := range r.avoidance {
		fr.writeGeometry(&buf, g, "avoid")
	}
	buf.WriteString("  </g>\n")

	buf.WriteString(`  <g id="features">` + "\n")
	for _, f := range r.features {
		if f.Geometry == nil {
			continue
		}
		switch g := f.Geometry.(type) {
		case feature.Point:
			fr.writeGeometry(&buf, g.Point, "feature point")
		case feature.Line:
			fr.writeGeometry(&buf, g.LineString, "feature")
		case feature.Polygon:
			fr.writeGeometry(&buf, g.Polygon, "feature area")
		case feature.MultiPolygon:
			fr.writeGeometry(&buf, g.MultiPolygon, "feature area")
		}
	}
	buf.WriteString("  </g>\n")

	buf.WriteString(`  <g id="labels">` + "\n")
	for _, p := range doc.Labels {
		if r.footprints && len(p.Footprint) > 0 {
			fr.writeGeometry(&buf, orb.Polygon{p.Footprint}, "footprint")
		}
		fr.writeLabel(&buf, p)
	}
	buf.WriteString("  </g>\n")

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

// frame maps map coordinates to SVG pixels, flipping the y axis.
type frame struct {
	minX, maxY    float64
	scale         float64
	margin        float64
	width, height float64
}

func (r *svgRenderer) frame(doc *Document) frame {
	b, ok := orb.Bound{}, false
	extend := func(g orb.Geometry) {
		if g == nil {
			return
		}
		gb := g.Bound()
		if !finiteBound(gb) {
			return
		}
		if !ok {
			b, ok = gb, true
			return
		}
		b = b.Union(gb)
	}
	for _, g := range r.avoidance {
		extend(g)
	}
	for _, f := range r.features {
		if f.Geometry != nil {
			extend(f.Geometry.Orb())
		}
	}
	for _, p := range doc.Labels {
		if len(p.Footprint) > 0 {
			extend(p.Footprint)
		} else {
			extend(p.Position())
		}
	}
	if !ok {
		b = orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}
	}

	dx, dy := b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
	// Very tall extents are narrowed so the preview stays at most four
	// times as high as it is wide.
	span := math.Max(dx, dy/4)
	if span == 0 {
		span = 1
	}
	margin := r.size * 0.02
	scale := (r.size - 2*margin) / span
	return frame{
		minX:   b.Min[0],
		maxY:   b.Max[1],
		scale:  scale,
		margin: margin,
		width:  r.size,
		height: dy*scale + 2*margin,
	}
}

func finiteBound(b orb.Bound) bool {
	for _, v := range []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (f frame) xy(p orb.Point) (float64, float64) {
	return f.margin + (p[0]-f.minX)*f.scale, f.margin + (f.maxY-p[1])*f.scale
}

func (f frame) writeGeometry(buf *bytes.Buffer, g orb.Geometry, class string) {
	switch g := g.(type) {
	case orb.Point:
		x, y := f.xy(g)
		fmt.Fprintf(buf, `    <circle class="%s" cx="%.2f" cy="%.2f" r="2.5"/>`+"\n", class, x, y)
	case orb.MultiPoint:
		for _, p := range g {
			f.writeGeometry(buf, p, class)
		}
	case orb.LineString:
		fmt.Fprintf(buf, `    <polyline class="%s" points="%s"/>`+"\n", class, f.points(g))
	case orb.MultiLineString:
		for _, ls := range g {
			f.writeGeometry(buf, ls, class)
		}
	case orb.Ring:
		f.writeGeometry(buf, orb.Polygon{g}, class)
	case orb.Polygon:
		fmt.Fprintf(buf, `    <path class="%s" d="%s"/>`+"\n", class, f.path(g))
	case orb.MultiPolygon:
		for _, p := range g {
			f.writeGeometry(buf, p, class)
		}
	case orb.Collection:
		for _, c := range g {
			f.writeGeometry(buf, c, class)
		}
	case orb.Bound:
		f.writeGeometry(buf, g.ToPolygon(), class)
	}
}

func (f frame) points(ls orb.LineString) string {
	var b bytes.Buffer
	for i, p := range ls {
		if i > 0 {
			b.WriteByte(' ')
		}
		x, y := f.xy(p)
		fmt.Fprintf(&b, "%.2f,%.2f", x, y)
	}
	return b.String()
}

func (f frame) path(poly orb.Polygon) string {
	var b bytes.Buffer
	for _, ring := range poly {
		for i, p := range ring {
			x, y := f.xy(p)
			cmd := 'L'
			if i == 0 {
				cmd = 'M'
			}
			fmt.Fprintf(&b, "%c%.2f %.2f ", cmd, x, y)
		}
		b.WriteString("Z ")
	}
	return string(bytes.TrimSpace(b.Bytes()))
}

func (f frame) writeLabel(buf *bytes.Buffer, p label.Placed) {
	x, y := f.xy(p.Position())
	anchor, baseline := textAnchor(p.Align)
	size := p.Height * f.scale / capHeightEm
	fmt.Fprintf(buf, `    <text class="label" x="%.2f" y="%.2f" font-size="%.2f" text-anchor="%s" dominant-baseline="%s"`,
		x, y, size, anchor, baseline)
	if p.Rotation != 0 {
		// SVG rotates clockwise on a y-down canvas.
		fmt.Fprintf(buf, ` transform="rotate(%.2f %.2f %.2f)"`, -p.Rotation, x, y)
	}
	fmt.Fprintf(buf, ` data-feature="%s">%s</text>`+"\n", html.EscapeString(p.FeatureID), html.EscapeString(p.Text))
}

func textAnchor(a label.Align) (anchor, baseline string) {
	switch a {
	case label.AlignBottomLeft, label.AlignMiddleLeft, label.AlignTopLeft:
		anchor = "start"
	case label.AlignBottomRight, label.AlignMiddleRight, label.AlignTopRight:
		anchor = "end"
	default:
		anchor = "middle"
	}
	switch a {
	case label.AlignBottomLeft, label.AlignBottomCenter, label.AlignBottomRight:
		baseline = "alphabetic"
	case label.AlignTopLeft, label.AlignTopCenter, label.AlignTopRight:
		baseline = "hanging"
	default:
		baseline = "central"
	}
	return anchor, baseline
}
