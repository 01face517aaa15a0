package sink

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// GeoJSONOption configures [RenderGeoJSON].
type GeoJSONOption func(*geojsonRenderer)

type geojsonRenderer struct {
	footprints bool
}

// WithFootprints adds the label boxes as Polygon features with
// "kind": "footprint".
func WithFootprints() GeoJSONOption { return func(r *geojsonRenderer) { r.footprints = true } }

// RenderGeoJSON writes the labels as a FeatureCollection of anchor points.
func RenderGeoJSON(doc *Document, opts ...GeoJSONOption) ([]byte, error) {
	var r geojsonRenderer
	for _, opt := range opts {
		opt(&r)
	}

	fc := geojson.NewFeatureCollection()
	for _, p := range doc.Labels {
		f := geojson.NewFeature(p.Position())
		f.ID = p.FeatureID
		f.Properties = geojson.Properties{
			"feature_id": p.FeatureID,
			"text":       p.Text,
			"rotation":   p.Rotation,
			"align":      string(p.Align),
			"width":      p.Width,
			"height":     p.Height,
			"kind":       "anchor",
		}
		fc.Append(f)

		if r.footprints && len(p.Footprint) > 0 {
			fp := geojson.NewFeature(orb.Polygon{p.Footprint})
			fp.Properties = geojson.Properties{
				"feature_id": p.FeatureID,
				"text":       p.Text,
				"kind":       "footprint",
			}
			fc.Append(fp)
		}
	}
	return fc.MarshalJSON()
}
