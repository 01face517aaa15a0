// Package sink writes placement results.
//
// # Overview
//
// A "sink" turns a [Document], the labels and skips of one placement run,
// into an output format:
//
//   - JSON: the document itself, readable again with [ReadJSON]
//   - GeoJSON: one Point feature per label anchor and, optionally, one
//     Polygon feature per label footprint
//   - SVG: a preview drawing of features, avoidance geometry and labels
//
// # JSON Output
//
// [RenderJSON] is the interchange format of cartolabel. The pipeline caches
// it, the HTTP service returns it and the inspect command reads it back.
//
// # GeoJSON Output
//
// [RenderGeoJSON] produces a FeatureCollection that GIS tools and CAD
// writers can consume directly. Every feature carries the label text,
// rotation and alignment as properties:
//
//	data, err := sink.RenderGeoJSON(doc, sink.WithFootprints())
//
// # SVG Output
//
// [RenderSVG] draws a quick look at a run. Map coordinates are flipped so
// that north is up:
//
//	svg := sink.RenderSVG(doc,
//	    sink.WithFeatures(features),
//	    sink.WithAvoidanceLayer(avoid),
//	    sink.WithSize(1200),
//	)
package sink
