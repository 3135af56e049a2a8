package docstore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps one MongoDB document per path:
//
//	{_id: "payments/REF", parent: "payments", data: {...}}
//
// Commit uses a multi-document transaction and Subscribe a change stream,
// both of which need a replica set. With transactions disabled batches are
// applied in order without atomicity.
type MongoStore struct {
	client       *mongo.Client
	collection   *mongo.Collection
	transactions bool
}

type mongoRecord struct {
	ID     string   `bson:"_id"`
	Parent string   `bson:"parent"`
	Data   bson.Raw `bson:"data"`
}

func NewMongoStore(client *mongo.Client, db, collection string, transactions bool) *MongoStore {
	return &MongoStore{
		client:       client,
		collection:   client.Database(db).Collection(collection),
		transactions: transactions,
	}
}

// EnsureIndexes creates the parent index used by List.
func (m *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "parent", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("mongo create index: %w", err)
	}
	return nil
}

func (m *MongoStore) Get(ctx context.Context, path string) (Document, error) {
	p, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	var rec mongoRecord
	err = m.collection.FindOne(ctx, bson.M{"_id": p}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo get %s: %w", p, err)
	}
	return rawToDocument(rec.Data)
}

func (m *MongoStore) Set(ctx context.Context, path string, doc Document) error {
	return m.Commit(ctx, NewBatch().Set(path, doc))
}

func (m *MongoStore) Update(ctx context.Context, path string, fields Document) error {
	return m.Commit(ctx, NewBatch().Update(path, fields))
}

func (m *MongoStore) Commit(ctx context.Context, batch *Batch) error {
	writes, err := batch.normalize()
	if err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	if !m.transactions {
		return m.applyWrites(ctx, writes)
	}

	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongo start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, m.applyWrites(sc, writes)
	})
	if err != nil {
		return fmt.Errorf("mongo commit: %w", err)
	}
	return nil
}

func (m *MongoStore) applyWrites(ctx context.Context, writes []Write) error {
	upsert := options.Update().SetUpsert(true)
	for _, w := range writes {
		parent, _ := Split(w.Path)
		filter := bson.M{"_id": w.Path}

		if w.Kind == OpSet {
			rec := bson.M{"_id": w.Path, "parent": parent, "data": stripNil(clone(w.Fields))}
			if _, err := m.collection.ReplaceOne(ctx, filter, rec, options.Replace().SetUpsert(true)); err != nil {
				return fmt.Errorf("mongo set %s: %w", w.Path, err)
			}
			continue
		}

		if _, err := m.collection.UpdateOne(ctx, filter, mergeUpdate(parent, w.Fields), upsert); err != nil {
			return fmt.Errorf("mongo update %s: %w", w.Path, err)
		}
	}
	return nil
}

// mergeUpdate translates a shallow merge into $set/$unset on data.* fields.
func mergeUpdate(parent string, fields Document) bson.M {
	set := bson.M{"parent": parent}
	unset := bson.M{}
	for k, v := range fields {
		if v == nil {
			unset["data."+k] = ""
			continue
		}
		set["data."+k] = v
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if len(set) == 1 && len(unset) == 0 {
		update["$setOnInsert"] = bson.M{"data": bson.M{}}
	}
	return update
}

func (m *MongoStore) List(ctx context.Context, parent string) (map[string]Document, error) {
	p, err := CleanPath(parent)
	if err != nil {
		return nil, err
	}
	cursor, err := m.collection.Find(ctx, bson.M{"parent": p})
	if err != nil {
		return nil, fmt.Errorf("mongo list %s: %w", p, err)
	}
	defer cursor.Close(ctx)

	out := map[string]Document{}
	for cursor.Next(ctx) {
		var rec mongoRecord
		if err := cursor.Decode(&rec); err != nil {
			return nil, fmt.Errorf("mongo decode: %w", err)
		}
		doc, err := rawToDocument(rec.Data)
		if err != nil {
			return nil, err
		}
		_, key := Split(rec.ID)
		out[key] = doc
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongo list %s: %w", p, err)
	}
	return out, nil
}

func (m *MongoStore) Subscribe(ctx context.Context, path string) (<-chan Event, func(), error) {
	p, err := CleanPath(path)
	if err != nil {
		return nil, nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.D{{Key: "documentKey._id", Value: p}}}}}
	stream, err := m.collection.Watch(streamCtx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("mongo watch %s: %w", p, err)
	}

	sub := newSubscription(p)
	doc, err := m.Get(ctx, p)
	switch {
	case errors.Is(err, ErrNotFound):
		sub.deliver(Event{Path: p})
	case err != nil:
		cancel()
		_ = stream.Close(context.Background())
		return nil, nil, err
	default:
		sub.deliver(Event{Path: p, Doc: doc, Exists: true})
	}

	unsubscribe := func() {
		cancel()
		sub.close()
	}

	go func() {
		defer func() {
			_ = stream.Close(context.Background())
			unsubscribe()
		}()
		for stream.Next(streamCtx) {
			var change struct {
				OperationType string       `bson:"operationType"`
				FullDocument  *mongoRecord `bson:"fullDocument"`
			}
			if err := stream.Decode(&change); err != nil {
				continue
			}
			if change.OperationType == "delete" || change.FullDocument == nil {
				sub.deliver(Event{Path: p})
				continue
			}
			doc, err := rawToDocument(change.FullDocument.Data)
			if err != nil {
				continue
			}
			sub.deliver(Event{Path: p, Doc: doc, Exists: true})
		}
	}()

	return sub.ch, unsubscribe, nil
}

// Close is a no-op; the client belongs to the caller.
func (m *MongoStore) Close() error {
	return nil
}

// rawToDocument converts the stored sub-document through relaxed extended
// JSON so numbers come back as float64 like every other backend.
func rawToDocument(raw bson.Raw) (Document, error) {
	if len(raw) == 0 {
		return Document{}, nil
	}
	b, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("mongo decode data: %w", err)
	}
	doc, err := unmarshalDoc(b)
	if err != nil {
		return nil, fmt.Errorf("mongo decode data: %w", err)
	}
	return doc, nil
}
