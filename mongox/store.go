// Package mongox is a MongoDB backed store.Store.
package mongox

import (
	"context"
	"errors"
	"fmt"

	"github.com/kcmvp/retail/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type document struct {
	Key      string `bson:"_id"`
	Category string `bson:"category"`
	ID       string `bson:"id"`
	Version  string `bson:"version"`
	Data     string `bson:"data"`
}

func key(category, id string) string {
	return category + "/" + id
}

func (d document) record() store.Record {
	return store.Record{Category: d.Category, ID: d.ID, Version: d.Version, Data: []byte(d.Data)}
}

type Store struct {
	Collection *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// Connect opens a client and makes sure the category index exists.
func Connect(ctx context.Context, uri, database, collection string) (*Store, *mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	s, err := NewStore(ctx, client.Database(database), collection)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, err
	}
	return s, client, nil
}

// NewStore uses the given collection, "entities" when empty.
func NewStore(ctx context.Context, db *mongo.Database, collection string) (*Store, error) {
	if collection == "" {
		collection = "entities"
	}
	col := db.Collection(collection)
	_, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "category", Value: 1}}})
	if err != nil {
		return nil, fmt.Errorf("index entities: %w", err)
	}
	return &Store{Collection: col}, nil
}

func (s *Store) GetAll(ctx context.Context, category string) ([]store.Record, error) {
	cursor, err := s.Collection.Find(ctx, bson.M{"category": category})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", category, err)
	}
	var docs []document
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list %s: %w", category, err)
	}
	recs := make([]store.Record, 0, len(docs))
	for _, d := range docs {
		recs = append(recs, d.record())
	}
	return recs, nil
}

func (s *Store) Get(ctx context.Context, category, id string) (store.Record, error) {
	var d document
	err := s.Collection.FindOne(ctx, bson.M{"_id": key(category, id)}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return store.Record{}, fmt.Errorf("%s %s: %w", category, id, store.ErrNotFound)
		}
		return store.Record{}, fmt.Errorf("get %s %s: %w", category, id, err)
	}
	return d.record(), nil
}

func (s *Store) Insert(ctx context.Context, rec store.Record) (store.Record, error) {
	rec.Version = store.NewVersion()
	d := document{Key: key(rec.Category, rec.ID), Category: rec.Category, ID: rec.ID, Version: rec.Version, Data: string(rec.Data)}
	if _, err := s.Collection.InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.Record{}, fmt.Errorf("%s %s: %w", rec.Category, rec.ID, store.ErrAlreadyExists)
		}
		return store.Record{}, fmt.Errorf("insert %s %s: %w", rec.Category, rec.ID, err)
	}
	return rec, nil
}

func (s *Store) Update(ctx context.Context, rec store.Record) (store.Record, error) {
	next := store.NewVersion()
	filter := bson.M{"_id": key(rec.Category, rec.ID), "version": rec.Version}
	update := bson.M{"$set": bson.M{"version": next, "data": string(rec.Data)}}
	res, err := s.Collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return store.Record{}, fmt.Errorf("update %s %s: %w", rec.Category, rec.ID, err)
	}
	if res.MatchedCount == 0 {
		if _, err := s.Get(ctx, rec.Category, rec.ID); err != nil {
			return store.Record{}, err
		}
		return store.Record{}, fmt.Errorf("%s %s: %w", rec.Category, rec.ID, store.ErrVersionConflict)
	}
	rec.Version = next
	return rec, nil
}

func (s *Store) Delete(ctx context.Context, category, id string) error {
	res, err := s.Collection.DeleteOne(ctx, bson.M{"_id": key(category, id)})
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", category, id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s %s: %w", category, id, store.ErrNotFound)
	}
	return nil
}
