package label

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"

	"github.com/matzehuels/cartolabel/pkg/feature"
	"github.com/matzehuels/cartolabel/pkg/label/metrics"
	"github.com/matzehuels/cartolabel/pkg/observability"
)

// Placed is a committed label.
type Placed struct {
	FeatureID string  `json:"feature_id"`
	Text      string  `json:"text"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Rotation  float64 `json:"rotation"`
	Align     Align   `json:"align"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	// Footprint is the closed ring of the label box, padding included.
	Footprint orb.Ring `json:"footprint"`
}

// Position returns the label anchor.
func (p Placed) Position() orb.Point { return orb.Point{p.X, p.Y} }

// SkipReason explains why a feature produced no label.
type SkipReason string

const (
	SkipNoText       SkipReason = "no-text"
	SkipNoGeometry   SkipReason = "unsupported-geometry"
	SkipNoCandidates SkipReason = "no-candidates"
	SkipRejected     SkipReason = "all-rejected"
	SkipInvalid      SkipReason = "invalid-record"
)

// Skip records a feature that produced no label.
type Skip struct {
	FeatureID string     `json:"feature_id"`
	Text      string     `json:"text,omitempty"`
	Reason    SkipReason `json:"reason"`
}

// Stats summarises a run.
type Stats struct {
	Features   int                `json:"features"`
	Placed     int                `json:"placed"`
	Candidates int                `json:"candidates"`
	Skipped    map[SkipReason]int `json:"skipped,omitempty"`
}

// SkippedTotal returns the number of features without a label.
func (s Stats) SkippedTotal() int {
	var n int
	for _, v := range s.Skipped {
		n += v
	}
	return n
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Skips are logged at info, fallbacks at warn
// and candidate rejections at debug.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMeasurer replaces the default font measurer.
func WithMeasurer(m metrics.Measurer) Option {
	return func(e *Engine) {
		if m != nil {
			e.measurer = m
		}
	}
}

// WithStyle resolves every feature to s.
func WithStyle(s TextStyle) Option {
	return func(e *Engine) { e.styles = StaticStyle{Style: &s} }
}

// WithStyleResolver resolves styles per feature.
func WithStyleResolver(r StyleResolver) Option {
	return func(e *Engine) {
		if r != nil {
			e.styles = r
		}
	}
}

// WithAvoidance adds static geometry that labels must not touch. The
// geometry is shared read-only between runs.
func WithAvoidance(gs ...orb.Geometry) Option {
	return func(e *Engine) { e.avoidance = append(e.avoidance, gs...) }
}

// WithPreparedGeometry enables spatial indexes for collision checks: one for
// the avoidance geometry per run and one for each polygon outline. Results
// are identical with or without it.
func WithPreparedGeometry(enabled bool) Option {
	return func(e *Engine) { e.prepared = enabled }
}

// WithSkipHandler calls fn for every feature that gets no label, in input
// order.
func WithSkipHandler(fn func(Skip)) Option {
	return func(e *Engine) { e.onSkip = fn }
}

// Engine places one label per feature, greedily and in input order. An
// Engine holds no run state, so it may be reused; each Run starts with an
// empty set of obstacles.
type Engine struct {
	cfg       Config
	logger    *log.Logger
	measurer  metrics.Measurer
	styles    StyleResolver
	avoidance []orb.Geometry
	prepared  bool
	onSkip    func(Skip)
}

// New validates cfg and returns an engine. Without WithMeasurer, text is
// measured from the built-in Go fonts.
func New(cfg Config, opts ...Option) (*Engine, error) {
	cfg.PointPositionPreference = slices.Clone(cfg.PointPositionPreference)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:    cfg,
		logger: log.Default(),
		styles: StaticStyle{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.measurer == nil {
		e.measurer = metrics.NewFontMeasurer(e.logger)
	}
	return e, nil
}

// Config returns the validated configuration.
func (e *Engine) Config() Config { return e.cfg }

// errStopped ends a run when a Labels consumer stops iterating.
var errStopped = errors.New("label: iteration stopped")

// Run places labels for every feature of src and calls emit for each one,
// in input order. It returns when src reports io.EOF, when src or emit
// fail, or when ctx is cancelled. Cancellation is checked between
// features.
func (e *Engine) Run(ctx context.Context, src feature.Source, emit func(Placed) error) (Stats, error) {
	hooks := observability.Placement()
	hooks.OnRunStart(ctx)
	start := time.Now()

	r := e.newRun()
	err := r.loop(ctx, src, emit)
	if errors.Is(err, errStopped) {
		err = nil
	}

	hooks.OnRunComplete(ctx, r.stats.Features, r.stats.Placed, time.Since(start), err)
	e.logger.Debug("placement finished",
		"features", r.stats.Features,
		"placed", r.stats.Placed,
		"skipped", r.stats.SkippedTotal(),
		"duration", time.Since(start))
	return r.stats, err
}

// Labels is Run as an iterator. A source failure is yielded once as the
// last element.
func (e *Engine) Labels(ctx context.Context, src feature.Source) iter.Seq2[Placed, error] {
	return func(yield func(Placed, error) bool) {
		stopped := false
		_, err := e.Run(ctx, src, func(p Placed) error {
			if !yield(p, nil) {
				stopped = true
				return errStopped
			}
			return nil
		})
		if err != nil && !stopped {
			yield(Placed{}, err)
		}
	}
}

// run is the state of one pass over a feature stream.
type run struct {
	*Engine
	eval      evaluator
	obstacles []Box
	index     *spatialIndex
	stats     Stats
}

func (e *Engine) newRun() *run {
	r := &run{
		Engine: e,
		eval:   evaluator{logger: e.logger, measurer: e.measurer},
		stats:  Stats{Skipped: make(map[SkipReason]int)},
	}
	if e.prepared && len(e.avoidance) > 0 {
		r.index = newSpatialIndex(e.avoidance)
	}
	return r
}

func (r *run) loop(ctx context.Context, src feature.Source, emit func(Placed) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		var bad *feature.RecordError
		if errors.As(err, &bad) {
			r.stats.Features++
			r.logger.Warn("skipping feature", "feature", bad.ID, "reason", SkipInvalid, "error", bad.Err)
			r.record(ctx, feature.Feature{ID: bad.ID}, SkipInvalid, "")
			continue
		}
		if err != nil {
			return fmt.Errorf("next feature: %w", err)
		}
		r.stats.Features++
		p, ok := r.place(ctx, f)
		if !ok {
			continue
		}
		if err := emit(p); err != nil {
			return err
		}
	}
}

// place runs one feature through text resolution, candidate generation
// and evaluation. Only a commit changes the run state.
func (r *run) place(ctx context.Context, f feature.Feature) (Placed, bool) {
	text := ResolveText(f, &r.cfg)
	if text == "" {
		r.skip(ctx, f, SkipNoText, "", "no label text")
		return Placed{}, false
	}
	style := r.styles.Resolve(f)
	w, h := r.eval.measure(text, style)

	var cands []Candidate
	switch g := f.Geometry.(type) {
	case feature.Point:
		cands = pointCandidates(g.Point, &r.cfg)
	case feature.Line:
		cands = LineCandidates(g.LineString, w, &r.cfg)
	case feature.Polygon:
		cands = PolygonCandidates(orb.MultiPolygon{g.Polygon}, w, h)
	case feature.MultiPolygon:
		cands = PolygonCandidates(g.MultiPolygon, w, h)
	default:
		r.logger.Warn("skipping feature", "feature", f.ID, "reason", SkipNoGeometry, "type", f.SourceType)
		r.record(ctx, f, SkipNoGeometry, text)
		return Placed{}, false
	}
	if len(cands) == 0 {
		r.skip(ctx, f, SkipNoCandidates, text, "degenerate geometry")
		return Placed{}, false
	}
	sortCandidates(cands)

	var outline *spatialIndex
	if polys := polygonsOf(f.Geometry); r.prepared && polys != nil {
		outline = newSpatialIndex(ringSegments(polys...))
	}

	for i, c := range cands {
		r.stats.Candidates++
		box, _, ok := r.eval.evaluate(text, c, style, f.Geometry, &r.cfg, r.obstacles, r.avoidance, outline, r.index)
		if !ok {
			continue
		}
		r.obstacles = append(r.obstacles, box)
		r.stats.Placed++
		observability.Placement().OnFeaturePlaced(ctx, f.ID, f.Geometry.Kind().String(), i+1)
		return Placed{
			FeatureID: f.ID,
			Text:      text,
			X:         c.Anchor[0],
			Y:         c.Anchor[1],
			Rotation:  c.Rotation,
			Align:     c.Align,
			Width:     w,
			Height:    h,
			Footprint: box.Ring(),
		}, true
	}
	r.skip(ctx, f, SkipRejected, text, "every candidate rejected")
	return Placed{}, false
}

func (r *run) skip(ctx context.Context, f feature.Feature, reason SkipReason, text, msg string) {
	r.logger.Info("skipping feature", "feature", f.ID, "reason", reason, "text", text, "detail", msg)
	r.record(ctx, f, reason, text)
}

func (r *run) record(ctx context.Context, f feature.Feature, reason SkipReason, text string) {
	r.stats.Skipped[reason]++
	if r.onSkip != nil {
		r.onSkip(Skip{FeatureID: f.ID, Text: text, Reason: reason})
	}
	observability.Placement().OnFeatureSkipped(ctx, f.ID, string(reason))
}
