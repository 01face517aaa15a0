package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/paulmach/orb"

	"github.com/matzehuels/cartolabel/pkg/cache"
	cerrors "github.com/matzehuels/cartolabel/pkg/errors"
	"github.com/matzehuels/cartolabel/pkg/feature"
	"github.com/matzehuels/cartolabel/pkg/feature/mongo"
)

// Input is the loaded, not yet consumed, input of a run.
type Input struct {
	// Avoidance is the static geometry labels must not touch.
	Avoidance []orb.Geometry

	// InputHash is the content hash of the features, empty when the
	// source cannot be hashed.
	InputHash string

	// AvoidanceHash is the content hash of the avoidance layers.
	AvoidanceHash string

	opts *Options
}

// sourceName describes the feature source for logs and hooks.
func (o *Options) sourceName() string {
	switch {
	case o.Input != "":
		return o.Input
	case o.Features != nil:
		return "request"
	case o.Mongo != nil:
		return "mongodb:" + o.Mongo.Database + "/" + o.Mongo.Collection
	}
	return ""
}

// Load reads the avoidance layers and hashes the inputs. The feature
// source itself is opened lazily by [Input.Open].
func (r *Runner) Load(ctx context.Context, opts Options) (*Input, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	in := &Input{opts: &opts}

	if opts.Input != "" {
		h, err := cache.HashFile(opts.Input)
		if err != nil {
			return nil, fileError(err, opts.Input)
		}
		in.InputHash = h
	} else if opts.Features != nil {
		in.InputHash = opts.InputHash
	}

	hashes := make([]string, 0, len(opts.Avoidance)+1)
	for _, path := range opts.Avoidance {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		gs, h, err := readAvoidance(path)
		if err != nil {
			return nil, err
		}
		in.Avoidance = append(in.Avoidance, gs...)
		hashes = append(hashes, h)
	}
	if len(opts.AvoidanceGeometry) > 0 {
		in.Avoidance = append(in.Avoidance, opts.AvoidanceGeometry...)
		h, err := cache.HashJSON(opts.AvoidanceGeometry)
		if err != nil {
			return nil, cerrors.Wrap(cerrors.ErrCodeInvalidInput, err, "hash avoidance geometry")
		}
		hashes = append(hashes, h)
	}
	if len(hashes) > 0 {
		in.AvoidanceHash = cache.Hash([]byte(strings.Join(hashes, ",")))
	}
	return in, nil
}

// Open opens the feature source. The returned function releases it.
func (in *Input) Open(ctx context.Context) (feature.Source, func(), error) {
	opts := in.opts
	switch {
	case opts.Input != "":
		src, err := feature.OpenFile(opts.Input)
		if err != nil {
			return nil, nil, fileError(err, opts.Input)
		}
		return src, func() { _ = src.Close() }, nil
	case opts.Features != nil:
		return feature.NewSliceSource(opts.Features...), func() {}, nil
	default:
		src, err := mongo.Open(ctx, *opts.Mongo)
		if err != nil {
			return nil, nil, cerrors.Wrap(cerrors.ErrCodeSource, err, "open %s", opts.sourceName())
		}
		return src, func() { _ = src.Close(context.WithoutCancel(ctx)) }, nil
	}
}

// Features reads every feature of the source into memory, leaving out
// records that do not decode.
func (in *Input) Features(ctx context.Context) ([]feature.Feature, error) {
	if in.opts.Features != nil {
		return in.opts.Features, nil
	}
	src, closeFn, err := in.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	var out []feature.Feature
	for {
		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		var bad *feature.RecordError
		if errors.As(err, &bad) {
			continue
		}
		if err != nil {
			return nil, cerrors.Wrap(cerrors.ErrCodeSource, err, "read %s", in.opts.sourceName())
		}
		out = append(out, f)
	}
}

func readAvoidance(path string) ([]orb.Geometry, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fileError(err, path)
	}
	gs, err := feature.Geometries(bytes.NewReader(data))
	if err != nil {
		return nil, "", cerrors.Wrap(cerrors.ErrCodeInvalidInput, err, "avoidance layer %s", path)
	}
	return gs, cache.Hash(data), nil
}

func fileError(err error, path string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return cerrors.Wrap(cerrors.ErrCodeFileNotFound, err, "file not found: %s", path)
	}
	return cerrors.Wrap(cerrors.ErrCodeInvalidInput, err, "read %s", path)
}

// recorder keeps the features it passes on, for outputs that draw them.
type recorder struct {
	feature.Source
	features []feature.Feature
}

func (r *recorder) Next(ctx context.Context) (feature.Feature, error) {
	f, err := r.Source.Next(ctx)
	if err == nil {
		r.features = append(r.features, f)
	}
	return f, err
}
