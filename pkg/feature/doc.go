// Package feature defines the input side of label placement: features with a
// closed set of geometry kinds, and the sources that yield them.
//
// # Geometry
//
// A [Feature] carries exactly one of four geometry kinds:
//
//   - [Point]: a single coordinate
//   - [Line]: an open or closed polyline
//   - [Polygon]: an outer ring with optional holes
//   - [MultiPolygon]: several polygons labelled as one feature
//
// [Geometry] is sealed, so a type switch over these four is exhaustive. Any
// other orb geometry (MultiPoint, MultiLineString, Collection, ...) is rejected
// by [FromOrb] with [ErrUnsupportedGeometry]; sources keep such features in
// the stream with a nil Geometry so the placement engine can log and skip
// them in order.
//
// # Sources
//
// A [Source] is a forward-only, finite iterator. [Source.Next] is the only
// point where placement may block, and returns io.EOF once exhausted:
//
//	src, err := feature.OpenFile("roads.geojson")
//	if err != nil {
//	    return err
//	}
//	defer src.Close()
//	for {
//	    f, err := src.Next(ctx)
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    ...
//	}
//
// Implementations in this package read GeoJSON FeatureCollections and
// line-delimited GeoJSON; the mongo subpackage streams from a collection.
package feature
