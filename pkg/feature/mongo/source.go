// Package mongo streams features stored as GeoJSON documents in a MongoDB
// collection.
//
// Each document is expected to look like a GeoJSON Feature:
//
//	{"_id": ..., "geometry": {"type": "Point", "coordinates": [..]}, "properties": {...}}
//
// Documents are decoded lazily, one per call to [Source.Next], so the
// placement engine never holds the whole collection in memory.
package mongo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/cartolabel/pkg/feature"
)

// Options selects the collection and documents to read.
type Options struct {
	URI        string
	Database   string
	Collection string

	// Filter is a MongoDB query document; nil reads everything.
	Filter bson.M

	// SortField orders the stream. It defaults to "_id" so repeated runs
	// see features in the same order.
	SortField string

	BatchSize int32
}

// Source reads features from a MongoDB cursor.
type Source struct {
	client *mongo.Client
	cursor *mongo.Cursor
	index  int
}

// Open connects to MongoDB and opens a cursor over the collection.
func Open(ctx context.Context, opts Options) (*Source, error) {
	if opts.URI == "" || opts.Database == "" || opts.Collection == "" {
		return nil, fmt.Errorf("mongo source requires uri, database and collection")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	coll := client.Database(opts.Database).Collection(opts.Collection)
	src, err := FromCollection(ctx, coll, opts)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	src.client = client
	return src, nil
}

// FromCollection opens a cursor on an existing collection handle. The
// caller keeps ownership of the client.
func FromCollection(ctx context.Context, coll *mongo.Collection, opts Options) (*Source, error) {
	filter := opts.Filter
	if filter == nil {
		filter = bson.M{}
	}
	sortField := opts.SortField
	if sortField == "" {
		sortField = "_id"
	}
	find := options.Find().SetSort(bson.D{{Key: sortField, Value: 1}})
	if opts.BatchSize > 0 {
		find.SetBatchSize(opts.BatchSize)
	}
	cursor, err := coll.Find(ctx, filter, find)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	return &Source{cursor: cursor}, nil
}

// Next decodes the next document. A document that cannot be decoded
// yields a *feature.RecordError; the cursor stays usable.
func (s *Source) Next(ctx context.Context) (feature.Feature, error) {
	if !s.cursor.Next(ctx) {
		if err := s.cursor.Err(); err != nil {
			return feature.Feature{}, err
		}
		if err := ctx.Err(); err != nil {
			return feature.Feature{}, err
		}
		return feature.Feature{}, io.EOF
	}
	f, err := decode(s.cursor.Current, s.index)
	if err != nil {
		err = &feature.RecordError{ID: documentID(s.cursor.Current, s.index), Err: err}
	}
	s.index++
	return f, err
}

// Close closes the cursor and, when the source owns it, the client.
func (s *Source) Close(ctx context.Context) error {
	err := s.cursor.Close(ctx)
	if s.client != nil {
		if derr := s.client.Disconnect(ctx); err == nil {
			err = derr
		}
	}
	return err
}

// document is the GeoJSON-shaped part of a stored feature. The "type"
// member is optional in storage, so the geometry is decoded on its own.
type document struct {
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// decode converts a raw document into a feature by going through relaxed
// extended JSON, which orb's GeoJSON decoder understands.
func decode(raw bson.Raw, index int) (feature.Feature, error) {
	data, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return feature.Feature{}, fmt.Errorf("document %d: %w", index, err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return feature.Feature{}, fmt.Errorf("document %d: %w", index, err)
	}
	id := documentID(raw, index)
	if len(doc.Geometry) == 0 || string(doc.Geometry) == "null" {
		return feature.New(id, nil, doc.Properties), nil
	}
	g, err := geojson.UnmarshalGeometry(doc.Geometry)
	if err != nil {
		return feature.Feature{}, fmt.Errorf("document %d geometry: %w", index, err)
	}
	return feature.New(id, g.Geometry(), doc.Properties), nil
}

func documentID(raw bson.Raw, index int) string {
	v, err := raw.LookupErr("_id")
	if err != nil {
		return fmt.Sprint(index)
	}
	if oid, ok := v.ObjectIDOK(); ok {
		return oid.Hex()
	}
	if s, ok := v.StringValueOK(); ok {
		return s
	}
	if n, ok := v.AsInt64OK(); ok {
		return fmt.Sprint(n)
	}
	return fmt.Sprint(index)
}
