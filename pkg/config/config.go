// Package config reads run configuration files.
//
// A configuration file holds everything a placement run needs apart from
// the features themselves. TOML and YAML are supported, chosen by file
// extension:
//
//	[source]
//	input = "wells.geojson"
//	avoidance = ["roads.geojson", "buildings.geojson"]
//
//	[label]
//	text_attribute = "name"
//	point_position_preference = ["top-right", "top-left"]
//	line_label_step = "10%"
//
//	[style]
//	font_family = "dejavu"
//	cap_height = 2.5
//
//	[[style.fonts]]
//	family = "dejavu"
//	path = "fonts/DejaVuSans.ttf"
//
//	[output]
//	dir = "out"
//	formats = ["json", "svg"]
//
//	[cache]
//	backend = "redis"
//	redis_url = "redis://localhost:6379/0"
//
// Relative paths are resolved against the directory of the file.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/cartolabel/pkg/errors"
	"github.com/matzehuels/cartolabel/pkg/feature/mongo"
	"github.com/matzehuels/cartolabel/pkg/label"
	"github.com/matzehuels/cartolabel/pkg/pipeline"
)

// Cache backends.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// File is the decoded configuration file.
type File struct {
	Source Source       `toml:"source" yaml:"source"`
	Label  label.Config `toml:"label" yaml:"label"`
	Style  Style        `toml:"style" yaml:"style"`
	Output Output       `toml:"output" yaml:"output"`
	Cache  Cache        `toml:"cache" yaml:"cache"`

	// dir is the directory relative paths are resolved against.
	dir string
}

// Source selects the features and avoidance layers.
type Source struct {
	Input     string   `toml:"input" yaml:"input"`
	Avoidance []string `toml:"avoidance" yaml:"avoidance"`
	Mongo     *Mongo   `toml:"mongo" yaml:"mongo"`
	Prepared  bool     `toml:"prepared" yaml:"prepared"`
}

// Mongo reads features from a MongoDB collection.
type Mongo struct {
	URI        string `toml:"uri" yaml:"uri"`
	Database   string `toml:"database" yaml:"database"`
	Collection string `toml:"collection" yaml:"collection"`
	SortField  string `toml:"sort_field" yaml:"sort_field"`
}

// Style is the text style of every label plus extra font files.
type Style struct {
	label.TextStyle `yaml:",inline"`
	Fonts           []pipeline.Font `toml:"fonts" yaml:"fonts"`
}

// Output controls the written files.
type Output struct {
	Dir        string   `toml:"dir" yaml:"dir"`
	Name       string   `toml:"name" yaml:"name"`
	Formats    []string `toml:"formats" yaml:"formats"`
	Footprints bool     `toml:"footprints" yaml:"footprints"`
	SVGSize    float64  `toml:"svg_size" yaml:"svg_size"`
}

// Cache selects the result cache.
type Cache struct {
	Backend  string        `toml:"backend" yaml:"backend"`
	Dir      string        `toml:"dir" yaml:"dir"`
	RedisURL string        `toml:"redis_url" yaml:"redis_url"`
	TTL      time.Duration `toml:"ttl" yaml:"ttl"`
}

// Load reads a configuration file. The format follows the extension:
// .toml, or .yaml and .yml.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "config file not found: %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	f, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	f.dir = filepath.Dir(path)
	f.resolvePaths()
	return f, nil
}

// Parse decodes configuration data in the format named by ext.
func Parse(data []byte, ext string) (*File, error) {
	var f File
	switch strings.ToLower(ext) {
	case ".toml":
		md, err := toml.Decode(string(data), &f)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode toml")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := lo.Map(undecoded, func(k toml.Key, _ int) string { return k.String() })
			return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown config keys: %s", strings.Join(keys, ", "))
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && err != io.EOF {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode yaml")
		}
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported config format %q (use .toml, .yaml or .yml)", ext)
	}
	f.normalize()
	return &f, nil
}

// normalize trims list entries and drops empty ones.
func (f *File) normalize() {
	clean := func(xs []string) []string {
		return lo.Uniq(lo.Compact(lo.Map(xs, func(s string, _ int) string { return strings.TrimSpace(s) })))
	}
	f.Source.Avoidance = clean(f.Source.Avoidance)
	f.Output.Formats = lo.Map(clean(f.Output.Formats), func(s string, _ int) string { return strings.ToLower(s) })
	f.Cache.Backend = strings.ToLower(strings.TrimSpace(f.Cache.Backend))
}

func (f *File) resolvePaths() {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(f.dir, p)
	}
	f.Source.Input = resolve(f.Source.Input)
	f.Source.Avoidance = lo.Map(f.Source.Avoidance, func(p string, _ int) string { return resolve(p) })
	f.Style.Fonts = lo.Map(f.Style.Fonts, func(font pipeline.Font, _ int) pipeline.Font {
		font.Path = resolve(font.Path)
		return font
	})
	f.Output.Dir = resolve(f.Output.Dir)
	f.Cache.Dir = resolve(f.Cache.Dir)
}

// Options converts the file into pipeline options. Callers apply flag
// overrides on the result.
func (f *File) Options() pipeline.Options {
	opts := pipeline.Options{
		Input:      f.Source.Input,
		Avoidance:  f.Source.Avoidance,
		Label:      f.Label,
		Style:      f.Style.TextStyle,
		Fonts:      f.Style.Fonts,
		Prepared:   f.Source.Prepared,
		Formats:    f.Output.Formats,
		Footprints: f.Output.Footprints,
		SVGSize:    f.Output.SVGSize,
	}
	if m := f.Source.Mongo; m != nil {
		opts.Mongo = &mongo.Options{
			URI:        m.URI,
			Database:   m.Database,
			Collection: m.Collection,
			SortField:  m.SortField,
		}
	}
	return opts
}

// Validate checks the parts of the file that the pipeline does not.
func (f *File) Validate() error {
	switch f.Cache.Backend {
	case "", CacheFile, CacheNone:
	case CacheRedis:
		if err := errors.ValidateURI(f.Cache.RedisURL, "redis", "rediss"); err != nil {
			return err
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q (must be file, redis or none)", f.Cache.Backend)
	}
	if f.Cache.TTL < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "cache ttl must not be negative")
	}
	return nil
}

// String summarises the file for debug logs.
func (f *File) String() string {
	return fmt.Sprintf("config{input=%q avoidance=%d formats=%v cache=%q}",
		f.Source.Input, len(f.Source.Avoidance), f.Output.Formats, f.Cache.Backend)
}
