package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultMongoDatabase   = "forestplot"
	DefaultMongoCollection = "runs"
)

// MongoStore keeps runs in a MongoDB collection. Options and rows are
// stored as JSON text so NA statistics survive the round trip; the
// summary fields are denormalized for listing.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type mongoRun struct {
	ID         string    `bson:"_id"`
	CreatedAt  time.Time `bson:"created_at"`
	Title      string    `bson:"title,omitempty"`
	Biomarkers []string  `bson:"biomarkers"`
	NRows      int       `bson:"n_rows"`
	Degenerate int       `bson:"degenerate"`
	Options    string    `bson:"options,omitempty"`
	Rows       string    `bson:"rows,omitempty"`
	SVG        []byte    `bson:"svg,omitempty"`
}

// ConnectMongo connects to uri and uses the runs collection of the
// forestplot database.
func ConnectMongo(ctx context.Context, uri string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s := NewMongoStore(client, DefaultMongoDatabase, DefaultMongoCollection)
	_, err = s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create index: %w", err)
	}
	return s, nil
}

// NewMongoStore wraps an existing client.
func NewMongoStore(client *mongo.Client, database, collection string) *MongoStore {
	return &MongoStore{client: client, coll: client.Database(database).Collection(collection)}
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

func (s *MongoStore) Save(ctx context.Context, run *Run) error {
	if err := validateRun(run); err != nil {
		return err
	}
	doc, err := toMongo(run)
	if err != nil {
		return err
	}
	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Run, error) {
	var doc mongoRun
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, err
	}
	return fromMongo(doc)
}

func (s *MongoStore) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"options": 0, "rows": 0, "svg": 0})
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var docs []mongoRun
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]Summary, len(docs))
	for i, d := range docs {
		out[i] = Summary{
			ID:         d.ID,
			CreatedAt:  d.CreatedAt,
			Title:      d.Title,
			Biomarkers: d.Biomarkers,
			Rows:       d.NRows,
			Degenerate: d.Degenerate,
		}
	}
	return out, nil
}

func toMongo(run *Run) (mongoRun, error) {
	opts, err := json.Marshal(run.Options)
	if err != nil {
		return mongoRun{}, fmt.Errorf("encode options: %w", err)
	}
	rows, err := json.Marshal(run.Rows)
	if err != nil {
		return mongoRun{}, fmt.Errorf("encode rows: %w", err)
	}
	sum := Summarize(run)
	return mongoRun{
		ID:         run.ID,
		CreatedAt:  run.CreatedAt.UTC(),
		Title:      run.Title,
		Biomarkers: sum.Biomarkers,
		NRows:      sum.Rows,
		Degenerate: sum.Degenerate,
		Options:    string(opts),
		Rows:       string(rows),
		SVG:        run.SVG,
	}, nil
}

func fromMongo(doc mongoRun) (*Run, error) {
	run := &Run{
		ID:        doc.ID,
		CreatedAt: doc.CreatedAt.UTC(),
		Title:     doc.Title,
		SVG:       doc.SVG,
	}
	if doc.Options != "" {
		if err := json.Unmarshal([]byte(doc.Options), &run.Options); err != nil {
			return nil, fmt.Errorf("run %s: options: %w", doc.ID, err)
		}
	}
	if doc.Rows != "" {
		if err := json.Unmarshal([]byte(doc.Rows), &run.Rows); err != nil {
			return nil, fmt.Errorf("run %s: rows: %w", doc.ID, err)
		}
	}
	return run, nil
}

var _ Store = (*MongoStore)(nil)
