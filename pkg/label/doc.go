// Package label places text labels for map features.
//
// An [Engine] consumes a [feature.Source] and emits one [Placed] label per
// feature that can be labelled without overlapping earlier labels or the
// configured avoidance geometry. Placement is greedy and single-pass: the
// first feature to claim a space keeps it, and output order follows input
// order.
//
// # Candidates
//
// Each geometry kind has its own candidate generator:
//
//   - Points: one candidate per configured [Slot], offset from the point
//     ([PointCandidate]).
//   - Lines: samples along the line, rotated to the local tangent and
//     scored for straightness, distance from sharp corners and centrality
//     ([LineCandidates]).
//   - Polygons: the pole of inaccessibility of each part ([PolygonAnchor],
//     [PolygonCandidates]).
//
// Candidates are tried best score first. The first one whose [Box] clears
// every obstacle, every avoidance geometry and the polygon fit policy is
// committed.
//
// # Usage
//
//	eng, err := label.New(label.Config{TextAttribute: "name"},
//	    label.WithStyle(label.TextStyle{CapHeight: 2.5}),
//	    label.WithAvoidance(roads...),
//	    label.WithPreparedGeometry(true),
//	)
//	if err != nil {
//	    return err
//	}
//	for p, err := range eng.Labels(ctx, src) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(p.Text, p.X, p.Y, p.Rotation)
//	}
//
// Failures local to one feature (no text, degenerate geometry, measurement
// problems) are logged and the feature is skipped. The only errors a run
// returns come from the source, the emit callback or the context.
package label
