package feature

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const collection = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "w1", "geometry": {"type": "Point", "coordinates": [1, 2]}, "properties": {"name": "Well"}},
    {"type": "Feature", "id": 7, "geometry": {"type": "LineString", "coordinates": [[0, 0], [5, 0]]}, "properties": {}},
    {"type": "Feature", "geometry": {"type": "MultiLineString", "coordinates": [[[0, 0], [1, 1]]]}, "properties": null}
  ]
}`

func TestFromOrb(t *testing.T) {
	tests := []struct {
		name string
		g    orb.Geometry
		kind Kind
		ok   bool
	}{
		{"point", orb.Point{1, 2}, KindPoint, true},
		{"line", orb.LineString{{0, 0}, {1, 1}}, KindLine, true},
		{"polygon", orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, KindPolygon, true},
		{"multipolygon", orb.MultiPolygon{{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}}, KindMultiPolygon, true},
		{"multilinestring", orb.MultiLineString{{{0, 0}, {1, 1}}}, 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := FromOrb(tt.g)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrUnsupportedGeometry)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, g.Kind())
			assert.Equal(t, tt.g, g.Orb())
		})
	}
}

func TestNewUnsupported(t *testing.T) {
	f := New("x", orb.MultiPoint{{0, 0}}, nil)
	assert.Nil(t, f.Geometry)
	assert.Equal(t, "MultiPoint", f.SourceType)
}

func TestAttr(t *testing.T) {
	f := New("x", orb.Point{}, map[string]any{"name": "Well", "depth": 12.5, "empty": nil})

	v, ok := f.Attr("name")
	assert.True(t, ok)
	assert.Equal(t, "Well", v)

	_, ok = f.Attr("empty")
	assert.False(t, ok, "nil values count as absent")
	_, ok = f.Attr("missing")
	assert.False(t, ok)
	_, ok = f.Attr("")
	assert.False(t, ok)
	_, ok = Feature{}.Attr("name")
	assert.False(t, ok)
}

func TestReadCollection(t *testing.T) {
	fs, err := ReadCollection(strings.NewReader(collection))
	require.NoError(t, err)
	require.Len(t, fs, 3)

	assert.Equal(t, "w1", fs[0].ID)
	assert.Equal(t, KindPoint, fs[0].Geometry.Kind())
	assert.Equal(t, "7", fs[1].ID)
	assert.Equal(t, "2", fs[2].ID, "missing ids fall back to the position")
	assert.Nil(t, fs[2].Geometry)
	assert.Equal(t, "MultiLineString", fs[2].SourceType)

	_, err = ReadCollection(strings.NewReader(`{"type": "Feature"}`))
	assert.Error(t, err)
}

func TestGeometries(t *testing.T) {
	gs, err := Geometries(strings.NewReader(collection))
	require.NoError(t, err)
	require.Len(t, gs, 3)
	assert.IsType(t, orb.MultiLineString{}, gs[2], "avoidance layers keep every geometry kind")
}

func drain(t *testing.T, src Source) []Feature {
	t.Helper()
	var out []Feature
	for {
		f, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, f)
	}
}

func TestSliceSource(t *testing.T) {
	src := NewSliceSource(New("a", orb.Point{}, nil), New("b", orb.Point{}, nil))
	got := drain(t, src)
	assert.Len(t, got, 2)

	_, err := src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF, "sources never rewind")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewSliceSource(New("a", orb.Point{}, nil)).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSeqSource(t *testing.T) {
	input := "{\"type\":\"Feature\",\"id\":\"a\",\"geometry\":{\"type\":\"Point\",\"coordinates\":[1,2]},\"properties\":{}}\n" +
		"\n" +
		"\x1e{\"type\":\"Feature\",\"geometry\":{\"type\":\"Point\",\"coordinates\":[3,4]},\"properties\":{\"name\":\"b\"}}\n"
	src := NewSeqSource(strings.NewReader(input))
	got := drain(t, src)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "1", got[1].ID)
	assert.NoError(t, src.Close())
}

func TestSeqSourceBadLine(t *testing.T) {
	src := NewSeqSource(strings.NewReader("\n{not json}\n" +
		`{"type":"Feature","id":"w9","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}}` + "\n"))
	_, err := src.Next(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	var rec *RecordError
	require.ErrorAs(t, err, &rec)
	assert.Equal(t, "0", rec.ID)

	f, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "w9", f.ID)

	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	fc := filepath.Join(dir, "wells.geojson")
	seq := filepath.Join(dir, "wells.geojsonl")
	require.NoError(t, os.WriteFile(fc, []byte(collection), 0o644))
	require.NoError(t, os.WriteFile(seq, []byte(`{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}}`+"\n"), 0o644))

	src, err := OpenFile(fc)
	require.NoError(t, err)
	assert.Len(t, drain(t, src), 3)
	assert.NoError(t, src.Close())

	src, err = OpenFile(seq)
	require.NoError(t, err)
	assert.Len(t, drain(t, src), 1)
	assert.NoError(t, src.Close())

	_, err = OpenFile(filepath.Join(dir, "missing.geojson"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
