// Package pipeline runs label placement end to end for the CLI and the
// HTTP service.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Load: open the feature source and read the avoidance layers
//  2. Place: run the [label.Engine] over the features
//  3. Write: render the result in each requested output format
//
// Placement results and rendered outputs are cached by content hash, so a
// repeated run over unchanged inputs does no placement work at all.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    Input:     "wells.geojson",
//	    Avoidance: []string{"roads.geojson"},
//	    Label:     label.Config{TextAttribute: "name"},
//	    Formats:   []string{"json", "svg"},
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifacts["svg"]
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"
	"github.com/samber/lo"

	"github.com/matzehuels/cartolabel/pkg/cache"
	"github.com/matzehuels/cartolabel/pkg/errors"
	"github.com/matzehuels/cartolabel/pkg/feature"
	"github.com/matzehuels/cartolabel/pkg/feature/mongo"
	"github.com/matzehuels/cartolabel/pkg/label"
	"github.com/matzehuels/cartolabel/pkg/label/metrics"
	"github.com/matzehuels/cartolabel/pkg/sink"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and HTTP service
// =============================================================================

// Format constants for output formats.
const (
	FormatJSON    = "json"
	FormatGeoJSON = "geojson"
	FormatSVG     = "svg"
)

const (
	// TTLLabels is how long placement results stay cached.
	TTLLabels = 7 * 24 * time.Hour

	// TTLArtifact is how long rendered outputs stay cached.
	TTLArtifact = 7 * 24 * time.Hour

	// DefaultSVGSize is the default preview width in pixels.
	DefaultSVGSize = sink.DefaultSVGSize
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Font registers a font file under a family name for text measurement.
type Font struct {
	Family string `json:"family" toml:"family" yaml:"family"`
	Path   string `json:"path" toml:"path" yaml:"path"`
	Bold   bool   `json:"bold,omitempty" toml:"bold" yaml:"bold"`
	Italic bool   `json:"italic,omitempty" toml:"italic" yaml:"italic"`
}

// Options contains all configuration for a pipeline run.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Source options. Exactly one of Input, Features and Mongo is used, in
	// that order of precedence.
	Input     string   `json:"input,omitempty"`
	Avoidance []string `json:"avoidance,omitempty"`

	// Placement options
	Label    label.Config    `json:"label"`
	Style    label.TextStyle `json:"style"`
	Fonts    []Font          `json:"fonts,omitempty"`
	Prepared bool            `json:"prepared,omitempty"`

	// Output options
	Formats    []string `json:"formats,omitempty"`
	Footprints bool     `json:"footprints,omitempty"`
	SVGSize    float64  `json:"svg_size,omitempty"`
	Refresh    bool     `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Features          []feature.Feature `json:"-"`
	InputHash         string            `json:"-"` // content hash of Features; empty disables caching
	Mongo             *mongo.Options    `json:"-"`
	AvoidanceGeometry []orb.Geometry    `json:"-"`
	Logger            *log.Logger       `json:"-"`
	Measurer          metrics.Measurer  `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Document holds the labels, skips and statistics.
	Document *sink.Document

	// InputHash is the content hash of the features, empty when the
	// source cannot be hashed.
	InputHash string

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Avoidance int
	LoadTime  time.Duration
	PlaceTime time.Duration
	WriteTime time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	LabelsHit bool // Whether the placement result came from cache
	WriteHit  bool // Whether all artifacts came from cache
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Input == "" && o.Features == nil && o.Mongo == nil {
		return errors.New(errors.ErrCodeInvalidInput, "an input file, features or a mongo source is required")
	}
	if o.Mongo != nil && o.Input == "" && o.Features == nil {
		if err := errors.ValidateURI(o.Mongo.URI, "mongodb", "mongodb+srv"); err != nil {
			return err
		}
	}
	for _, p := range o.Avoidance {
		if p == "" {
			return errors.New(errors.ErrCodeInvalidPath, "avoidance path cannot be empty")
		}
	}

	for _, s := range o.Label.PointPositionPreference {
		if err := errors.ValidateSlot(string(s)); err != nil {
			return err
		}
	}
	if err := errors.ValidatePolygonFit(string(o.Label.PolygonFit)); err != nil {
		return err
	}
	if err := errors.ValidateAttribute(o.Label.TextAttribute); err != nil {
		return err
	}
	if err := errors.ValidateAttribute(o.Label.TextAttributeFallback); err != nil {
		return err
	}
	if err := o.Label.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "label config")
	}
	for _, f := range o.Fonts {
		if f.Family == "" || f.Path == "" {
			return errors.New(errors.ErrCodeInvalidStyle, "fonts need a family and a path")
		}
	}

	o.SetOutputDefaults()
	if err := errors.ValidateFormats(o.Formats); err != nil {
		return err
	}

	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// SetOutputDefaults sets default values for output rendering.
func (o *Options) SetOutputDefaults() {
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatJSON}
	}
	o.Formats = lo.Uniq(o.Formats)
	if o.SVGSize <= 0 {
		o.SVGSize = DefaultSVGSize
	}
}

// Cacheable reports whether the input can be content-hashed.
func (o *Options) Cacheable() bool {
	return o.Input != "" || (o.Features != nil && o.InputHash != "")
}

// LabelsKeyOpts returns cache key options for the placement stage. Font
// files are keyed by content, so editing one invalidates its placements.
func (o *Options) LabelsKeyOpts(avoidanceHash string) (cache.LabelsKeyOpts, error) {
	configHash, err := cache.HashJSON(o.Label)
	if err != nil {
		return cache.LabelsKeyOpts{}, errors.Wrap(errors.ErrCodeInternal, err, "labels cache key")
	}
	fontHashes := make([]string, len(o.Fonts))
	for i, f := range o.Fonts {
		h, err := cache.HashFile(f.Path)
		if err != nil {
			return cache.LabelsKeyOpts{}, errors.Wrap(errors.ErrCodeInvalidStyle, err, "font %s", f.Family)
		}
		fontHashes[i] = h
	}
	styleHash, err := cache.HashJSON(struct {
		Style      label.TextStyle
		Fonts      []Font
		FontHashes []string
		Prepared   bool
	}{o.Style, o.Fonts, fontHashes, o.Prepared})
	if err != nil {
		return cache.LabelsKeyOpts{}, errors.Wrap(errors.ErrCodeInternal, err, "labels cache key")
	}
	return cache.LabelsKeyOpts{
		ConfigHash:    configHash,
		StyleHash:     styleHash,
		AvoidanceHash: avoidanceHash,
	}, nil
}

// ArtifactKeyOpts returns cache key options for one output format. SVG
// previews also draw the features and avoidance layers, so they depend on
// the input as well.
func (o *Options) ArtifactKeyOpts(format, inputHash, avoidanceHash string) cache.ArtifactKeyOpts {
	opts := cache.ArtifactKeyOpts{Format: format}
	switch format {
	case FormatSVG:
		opts.SourceHash = cache.Hash([]byte(inputHash + "|" + avoidanceHash + "|" + lo.Ternary(o.Footprints, "fp", "") + "|" + formatFloat(o.SVGSize)))
	case FormatGeoJSON:
		opts.SourceHash = lo.Ternary(o.Footprints, "footprints", "")
	}
	return opts
}
