package mongo

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/paulmach/orb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/matzehuels/cartolabel/pkg/feature"
)

func raw(t *testing.T, doc bson.M) bson.Raw {
	t.Helper()
	data, err := bson.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	return bson.Raw(data)
}

func TestDecode(t *testing.T) {
	doc := raw(t, bson.M{
		"_id":        "w1",
		"geometry":   bson.M{"type": "Point", "coordinates": bson.A{10.5, 20.0}},
		"properties": bson.M{"name": "Well 1", "depth": 12},
	})
	f, err := decode(doc, 0)
	if err != nil {
		t.Fatal(err)
	}
	if f.ID != "w1" {
		t.Errorf("ID = %q, want w1", f.ID)
	}
	if f.Geometry == nil || f.Geometry.Kind() != feature.KindPoint {
		t.Fatalf("geometry = %v, want a point", f.Geometry)
	}
	if got := f.Geometry.Orb().(orb.Point); got != (orb.Point{10.5, 20}) {
		t.Errorf("point = %v", got)
	}
	if v, _ := f.Attr("name"); v != "Well 1" {
		t.Errorf("name = %v", v)
	}
}

func TestDecodeWithoutGeometry(t *testing.T) {
	f, err := decode(raw(t, bson.M{"_id": int64(4), "properties": bson.M{}}), 3)
	if err != nil {
		t.Fatal(err)
	}
	if f.Geometry != nil {
		t.Errorf("geometry = %v, want nil", f.Geometry)
	}
	if f.ID != "4" {
		t.Errorf("ID = %q, want 4", f.ID)
	}
}

func TestDecodeBadGeometry(t *testing.T) {
	_, err := decode(raw(t, bson.M{"geometry": bson.M{"type": "Circle"}}), 2)
	if err == nil {
		t.Error("unknown geometry type should fail")
	}
}

func TestDocumentID(t *testing.T) {
	oid := primitive.NewObjectID()
	tests := []struct {
		name string
		doc  bson.M
		want string
	}{
		{"object id", bson.M{"_id": oid}, oid.Hex()},
		{"string", bson.M{"_id": "abc"}, "abc"},
		{"int32", bson.M{"_id": int32(9)}, "9"},
		{"missing", bson.M{"name": "x"}, "5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := documentID(raw(t, tt.doc), 5); got != tt.want {
				t.Errorf("documentID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpenRequiresCollection(t *testing.T) {
	if _, err := Open(context.Background(), Options{URI: "mongodb://localhost:27017"}); err == nil {
		t.Error("Open without database and collection should fail")
	}
}

func TestSourceSkipsBadDocument(t *testing.T) {
	docs := []any{
		bson.M{"_id": "a", "geometry": bson.M{"type": "Point", "coordinates": bson.A{1.0, 2.0}}},
		bson.M{"_id": "bad", "geometry": bson.M{"type": "Circle"}},
		bson.M{"_id": "c", "geometry": bson.M{"type": "Point", "coordinates": bson.A{3.0, 4.0}}},
	}
	cursor, err := mongo.NewCursorFromDocuments(docs, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	src := &Source{cursor: cursor}
	ctx := context.Background()

	var ids []string
	for {
		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		var rec *feature.RecordError
		if errors.As(err, &rec) {
			ids = append(ids, "!"+rec.ID)
			continue
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		ids = append(ids, f.ID)
	}
	want := []string{"a", "!bad", "c"}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("record %d = %q, want %q", i, ids[i], want[i])
		}
	}
}
