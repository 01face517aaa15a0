package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/cartolabel/pkg/cache"
	"github.com/matzehuels/cartolabel/pkg/errors"
	"github.com/matzehuels/cartolabel/pkg/feature"
	"github.com/matzehuels/cartolabel/pkg/label"
	"github.com/matzehuels/cartolabel/pkg/label/metrics"
	"github.com/matzehuels/cartolabel/pkg/observability"
	"github.com/matzehuels/cartolabel/pkg/sink"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and HTTP service use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// TTL overrides TTLLabels and TTLArtifact when positive.
	TTL time.Duration
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete load → place → write pipeline with caching.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	hooks := observability.Pipeline()
	result := &Result{Artifacts: make(map[string][]byte)}

	// Stage 1: Load
	source := opts.sourceName()
	loadStart := time.Now()
	hooks.OnLoadStart(ctx, source)
	in, err := r.Load(ctx, opts)
	result.Stats.LoadTime = time.Since(loadStart)
	hooks.OnLoadComplete(ctx, source, avoidanceCount(in), result.Stats.LoadTime, err)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	result.InputHash = in.InputHash
	result.Stats.Avoidance = len(in.Avoidance)

	r.Logger.Info("loaded inputs",
		"source", source,
		"avoidance", len(in.Avoidance),
		"duration", result.Stats.LoadTime)

	// Stage 2: Place
	placeStart := time.Now()
	hooks.OnPlaceStart(ctx)
	placed, hit, err := r.PlaceWithCacheInfo(ctx, in)
	result.Stats.PlaceTime = time.Since(placeStart)
	hooks.OnPlaceComplete(ctx, placedCount(placed), result.Stats.PlaceTime, err)
	if err != nil {
		return nil, fmt.Errorf("place: %w", err)
	}
	result.Document = placed.Document
	result.CacheInfo.LabelsHit = hit

	r.Logger.Info("placed labels",
		"features", placed.Document.Stats.Features,
		"placed", placed.Document.Stats.Placed,
		"skipped", placed.Document.Stats.SkippedTotal(),
		"cached", hit,
		"duration", result.Stats.PlaceTime)

	// Stage 3: Write
	writeStart := time.Now()
	hooks.OnWriteStart(ctx, opts.Formats)
	artifacts, hit, err := r.WriteWithCacheInfo(ctx, in, placed)
	result.Stats.WriteTime = time.Since(writeStart)
	hooks.OnWriteComplete(ctx, opts.Formats, result.Stats.WriteTime, err)
	if err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	result.Artifacts = artifacts
	result.CacheInfo.WriteHit = hit

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"duration", result.Stats.WriteTime)

	return result, nil
}

// Placement is the result of the place stage.
type Placement struct {
	Document *sink.Document

	// Data is the JSON encoding of Document; its hash keys the outputs.
	Data []byte

	// features holds the features seen during placement, when they were
	// recorded for drawing.
	features []feature.Feature
}

// PlaceWithCacheInfo places labels with caching and returns cache hit info.
func (r *Runner) PlaceWithCacheInfo(ctx context.Context, in *Input) (*Placement, bool, error) {
	opts := in.opts
	r.applyLogger(opts)

	var cacheKey string
	if opts.Cacheable() && in.InputHash != "" {
		keyOpts, err := opts.LabelsKeyOpts(in.AvoidanceHash)
		if err != nil {
			return nil, false, err
		}
		cacheKey = r.Keyer.LabelsKey(in.InputHash, keyOpts)
	}

	// Try cache first (unless refresh requested)
	if cacheKey != "" && !opts.Refresh {
		if p, ok := r.cachedPlacement(ctx, cacheKey); ok {
			return p, true, nil
		}
	}

	p, err := r.Place(ctx, in)
	if err != nil {
		return nil, false, err
	}

	if cacheKey != "" {
		r.store(ctx, "labels", cacheKey, p.Data, TTLLabels)
	}
	return p, false, nil
}

func (r *Runner) cachedPlacement(ctx context.Context, key string) (*Placement, bool) {
	hooks := observability.Cache()
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("cache read failed", "key", key, "error", err)
	}
	if err != nil || !hit {
		hooks.OnCacheMiss(ctx, "labels")
		return nil, false
	}
	doc, err := sink.ReadJSON(data)
	if err != nil {
		// If deserialization fails, fall through to recompute
		hooks.OnCacheMiss(ctx, "labels")
		return nil, false
	}
	hooks.OnCacheHit(ctx, "labels")
	return &Placement{Document: doc, Data: data}, true
}

// Place runs the engine over the input without consulting the cache.
func (r *Runner) Place(ctx context.Context, in *Input) (*Placement, error) {
	opts := in.opts
	r.applyLogger(opts)

	measurer := opts.Measurer
	if measurer == nil {
		fm := metrics.NewFontMeasurer(opts.Logger)
		for _, f := range opts.Fonts {
			if err := fm.RegisterFontFile(f.Family, f.Path, f.Bold, f.Italic); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidStyle, err, "font %s", f.Family)
			}
		}
		measurer = fm
	}

	doc := &sink.Document{Labels: []label.Placed{}}
	engine, err := label.New(opts.Label,
		label.WithLogger(opts.Logger),
		label.WithMeasurer(measurer),
		label.WithStyle(opts.Style),
		label.WithAvoidance(in.Avoidance...),
		label.WithPreparedGeometry(opts.Prepared),
		label.WithSkipHandler(func(s label.Skip) { doc.Skipped = append(doc.Skipped, s) }),
	)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "label config")
	}

	src, closeFn, err := in.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var rec *recorder
	if slices.Contains(opts.Formats, FormatSVG) {
		rec = &recorder{Source: src}
		src = rec
	}

	stats, err := engine.Run(ctx, src, func(p label.Placed) error {
		doc.Labels = append(doc.Labels, p)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(errors.ErrCodeTimeout, err, "placement interrupted")
		}
		return nil, errors.Wrap(errors.ErrCodeSource, err, "read %s", opts.sourceName())
	}
	doc.Stats = stats

	data, err := sink.RenderJSON(doc)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode labels")
	}
	p := &Placement{Document: doc, Data: data}
	if rec != nil {
		p.features = rec.features
	}
	return p, nil
}

// WriteWithCacheInfo renders every requested format with caching and
// returns whether all of them came from cache.
func (r *Runner) WriteWithCacheInfo(ctx context.Context, in *Input, p *Placement) (map[string][]byte, bool, error) {
	opts := in.opts
	labelsHash := cache.Hash(p.Data)
	artifacts := make(map[string][]byte, len(opts.Formats))
	allCached := true

	for _, format := range opts.Formats {
		key := r.Keyer.ArtifactKey(labelsHash, opts.ArtifactKeyOpts(format, in.InputHash, in.AvoidanceHash))
		cacheable := format != FormatSVG || in.InputHash != ""

		if cacheable && !opts.Refresh {
			if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
				observability.Cache().OnCacheHit(ctx, "artifact")
				artifacts[format] = data
				continue
			}
			observability.Cache().OnCacheMiss(ctx, "artifact")
		}
		allCached = false

		data, err := r.render(ctx, format, in, p)
		if err != nil {
			return nil, false, err
		}
		artifacts[format] = data
		if cacheable {
			r.store(ctx, "artifact", key, data, TTLArtifact)
		}
	}
	return artifacts, allCached, nil
}

func (r *Runner) render(ctx context.Context, format string, in *Input, p *Placement) ([]byte, error) {
	opts := in.opts
	switch format {
	case FormatJSON:
		return p.Data, nil
	case FormatGeoJSON:
		var gopts []sink.GeoJSONOption
		if opts.Footprints {
			gopts = append(gopts, sink.WithFootprints())
		}
		data, err := sink.RenderGeoJSON(p.Document, gopts...)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode geojson")
		}
		return data, nil
	case FormatSVG:
		fs := p.features
		if fs == nil {
			// Placement came from cache; read the features again.
			var err error
			if fs, err = in.Features(ctx); err != nil {
				return nil, err
			}
		}
		sopts := []sink.SVGOption{
			sink.WithFeatures(fs),
			sink.WithAvoidanceLayer(in.Avoidance),
			sink.WithSize(opts.SVGSize),
		}
		if !opts.Footprints {
			sopts = append(sopts, sink.WithoutFootprints())
		}
		return sink.RenderSVG(p.Document, sopts...), nil
	}
	return nil, errors.New(errors.ErrCodeInvalidFormat, "unknown output format %q", format)
}

func (r *Runner) store(ctx context.Context, keyType, key string, data []byte, ttl time.Duration) {
	if r.TTL > 0 {
		ttl = r.TTL
	}
	if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
		r.Logger.Warn("cache write failed", "key", key, "error", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, keyType, len(data))
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func avoidanceCount(in *Input) int {
	if in == nil {
		return 0
	}
	return len(in.Avoidance)
}

func placedCount(p *Placement) int {
	if p == nil {
		return 0
	}
	return p.Document.Stats.Placed
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
