package feature

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// ErrUnsupportedGeometry is returned by [FromOrb] for geometry kinds the
// placement engine has no candidate generator for.
var ErrUnsupportedGeometry = errors.New("unsupported geometry kind")

// RecordError reports one record a source could not decode. The source
// stays usable: the next call to Next moves on to the following record.
type RecordError struct {
	// ID is the record's feature id, positional when it has none.
	ID  string
	Err error
}

func (e *RecordError) Error() string { return e.Err.Error() }

func (e *RecordError) Unwrap() error { return e.Err }

// Kind enumerates the supported geometry kinds.
type Kind int

const (
	KindPoint Kind = iota
	KindLine
	KindPolygon
	KindMultiPolygon
)

// String returns the lower-case kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindLine:
		return "line"
	case KindPolygon:
		return "polygon"
	case KindMultiPolygon:
		return "multipolygon"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Geometry is the sealed set of geometry kinds a feature can carry.
// Only the types in this package implement it.
type Geometry interface {
	Kind() Kind
	Orb() orb.Geometry
	geometry()
}

// Point is a point feature geometry.
type Point struct{ orb.Point }

// Line is a polyline feature geometry. A line whose first and last vertex
// coincide is treated as closed.
type Line struct{ orb.LineString }

// Polygon is a polygon feature geometry; ring 0 is the outer ring.
type Polygon struct{ orb.Polygon }

// MultiPolygon is a multi-part polygon feature geometry.
type MultiPolygon struct{ orb.MultiPolygon }

func (Point) Kind() Kind        { return KindPoint }
func (Line) Kind() Kind         { return KindLine }
func (Polygon) Kind() Kind      { return KindPolygon }
func (MultiPolygon) Kind() Kind { return KindMultiPolygon }

func (g Point) Orb() orb.Geometry        { return g.Point }
func (g Line) Orb() orb.Geometry         { return g.LineString }
func (g Polygon) Orb() orb.Geometry      { return g.Polygon }
func (g MultiPolygon) Orb() orb.Geometry { return g.MultiPolygon }

func (Point) geometry()        {}
func (Line) geometry()         {}
func (Polygon) geometry()      {}
func (MultiPolygon) geometry() {}

// FromOrb wraps an orb geometry in the matching sealed kind.
func FromOrb(g orb.Geometry) (Geometry, error) {
	switch v := g.(type) {
	case orb.Point:
		return Point{v}, nil
	case orb.LineString:
		return Line{v}, nil
	case orb.Polygon:
		return Polygon{v}, nil
	case orb.MultiPolygon:
		return MultiPolygon{v}, nil
	case nil:
		return nil, fmt.Errorf("%w: nil geometry", ErrUnsupportedGeometry)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, g.GeoJSONType())
}

// Feature is one input record: a geometry plus its attributes.
// Features are read-only once produced by a Source.
type Feature struct {
	// ID identifies the feature in logs and outputs. Sources fall back to
	// the feature's position in the stream when the input has no id.
	ID string

	// Geometry is nil when the input geometry kind is unsupported;
	// SourceType then names what was found.
	Geometry Geometry

	// SourceType is the GeoJSON type name of the input geometry.
	SourceType string

	Properties map[string]any
}

// New builds a feature from an orb geometry. Unsupported kinds produce a
// feature with a nil Geometry rather than an error so that the stream keeps
// its order.
func New(id string, g orb.Geometry, props map[string]any) Feature {
	f := Feature{ID: id, Properties: props}
	if g != nil {
		f.SourceType = g.GeoJSONType()
	}
	if geom, err := FromOrb(g); err == nil {
		f.Geometry = geom
	}
	return f
}

// Attr returns the attribute value for key and whether it was present
// with a non-nil value.
func (f Feature) Attr(key string) (any, bool) {
	if f.Properties == nil || key == "" {
		return nil, false
	}
	v, ok := f.Properties[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
