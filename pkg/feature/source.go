package feature

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Source yields features one at a time. Next returns io.EOF when the source
// is exhausted and never rewinds.
type Source interface {
	Next(ctx context.Context) (Feature, error)
}

// SliceSource serves features from memory, mostly for tests and the HTTP
// service where the request body is already decoded.
type SliceSource struct {
	features []Feature
	pos      int
}

// NewSliceSource returns a Source over fs. The slice is not copied.
func NewSliceSource(fs ...Feature) *SliceSource {
	return &SliceSource{features: fs}
}

// Next returns the next feature or io.EOF.
func (s *SliceSource) Next(ctx context.Context) (Feature, error) {
	if err := ctx.Err(); err != nil {
		return Feature{}, err
	}
	if s.pos >= len(s.features) {
		return Feature{}, io.EOF
	}
	f := s.features[s.pos]
	s.pos++
	return f, nil
}

// FromCollection converts a decoded FeatureCollection into features,
// assigning positional ids where the input has none.
func FromCollection(fc *geojson.FeatureCollection) []Feature {
	out := make([]Feature, 0, len(fc.Features))
	for i, gf := range fc.Features {
		out = append(out, fromGeoJSON(gf, i))
	}
	return out
}

// ReadCollection decodes a GeoJSON FeatureCollection.
func ReadCollection(r io.Reader) ([]Feature, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	return FromCollection(fc), nil
}

// Geometries decodes a FeatureCollection and returns only the geometries,
// regardless of kind. It is used for avoidance layers, which accept any
// orb geometry.
func Geometries(r io.Reader) ([]orb.Geometry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	out := make([]orb.Geometry, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Geometry != nil {
			out = append(out, f.Geometry)
		}
	}
	return out, nil
}

// SeqSource streams line-delimited GeoJSON (one Feature object per line),
// decoding each line only when Next is called.
type SeqSource struct {
	scanner *bufio.Scanner
	closer  io.Closer
	index   int
	line    int
}

// NewSeqSource reads newline-delimited GeoJSON features from r. If r is an
// io.Closer it is closed by Close.
func NewSeqSource(r io.Reader) *SeqSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	s := &SeqSource{scanner: sc}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Next decodes the next non-empty line. A line that is not a GeoJSON
// Feature yields a *RecordError; reading can continue past it.
func (s *SeqSource) Next(ctx context.Context) (Feature, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Feature{}, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return Feature{}, err
			}
			return Feature{}, io.EOF
		}
		s.line++
		// RFC 8142 record separators are tolerated.
		line := bytes.TrimSpace(bytes.TrimPrefix(s.scanner.Bytes(), []byte{0x1e}))
		if len(line) == 0 {
			continue
		}
		index := s.index
		s.index++
		gf, err := geojson.UnmarshalFeature(line)
		if err != nil {
			return Feature{}, &RecordError{
				ID:  strconv.Itoa(index),
				Err: fmt.Errorf("line %d: %w", s.line, err),
			}
		}
		return fromGeoJSON(gf, index), nil
	}
}

// Close releases the underlying reader.
func (s *SeqSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// FileSource is a Source backed by a file on disk.
type FileSource struct {
	Source
	closer io.Closer
}

// Close closes the file.
func (f *FileSource) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

// OpenFile opens a GeoJSON file. Files ending in .geojsonl, .geojsons,
// .ndjson or .jsonl are streamed line by line; anything else is decoded as
// a FeatureCollection.
func OpenFile(path string) (*FileSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojsonl", ".geojsons", ".ndjson", ".jsonl":
		return &FileSource{Source: NewSeqSource(file), closer: file}, nil
	}
	defer file.Close()
	fs, err := ReadCollection(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &FileSource{Source: NewSliceSource(fs...)}, nil
}

func fromGeoJSON(gf *geojson.Feature, index int) Feature {
	return New(featureID(gf.ID, index), gf.Geometry, map[string]any(gf.Properties))
}

func featureID(id any, index int) string {
	switch v := id.(type) {
	case nil:
		return strconv.Itoa(index)
	case string:
		if v == "" {
			return strconv.Itoa(index)
		}
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return fmt.Sprint(id)
}
