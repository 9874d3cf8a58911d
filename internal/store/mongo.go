package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"confess.share/internal/models"
)

var (
	_ Store           = (*MongoStore)(nil)
	_ ConfessionStore = (*mongoConfessions)(nil)
	_ SecretStore     = (*mongoSecrets)(nil)
)

const (
	confessionsCollection = "confessions"
	secretsCollection     = "secretmessages"
)

type MongoStore struct {
	client      *mongo.Client
	logger      *slog.Logger
	confessions *mongoConfessions
	secrets     *mongoSecrets
}

// NewMongoStore connects to uri, verifies the connection and ensures indexes
// on the secret message collection.
func NewMongoStore(ctx context.Context, uri, database string, logger *slog.Logger) (*MongoStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:      client,
		logger:      logger,
		confessions: &mongoConfessions{coll: db.Collection(confessionsCollection)},
		secrets:     &mongoSecrets{coll: db.Collection(secretsCollection)},
	}

	if err := s.secrets.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("connected to MongoDB", "database", database)
	return s, nil
}

func (s *MongoStore) Confessions() ConfessionStore { return s.confessions }

func (s *MongoStore) Secrets() SecretStore { return s.secrets }

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close() error {
	s.logger.Info("closing MongoDB connection")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// objectID converts a hex id. A malformed id cannot name a stored document,
// so it is reported as not found.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return oid, nil
}

type confessionDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Message   string             `bson:"message"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d *confessionDoc) model() models.Confession {
	return models.Confession{
		ID:        d.ID.Hex(),
		Message:   d.Message,
		CreatedAt: d.CreatedAt,
	}
}

type mongoConfessions struct {
	coll *mongo.Collection
}

func (m *mongoConfessions) Create(ctx context.Context, c *models.Confession) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	doc := confessionDoc{
		ID:        primitive.NewObjectID(),
		Message:   c.Message,
		CreatedAt: c.CreatedAt,
	}
	if _, err := m.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("inserting confession: %w", err)
	}

	c.ID = doc.ID.Hex()
	return nil
}

func (m *mongoConfessions) List(ctx context.Context) ([]models.Confession, error) {
	opts := options.Find().
		SetProjection(bson.D{{Key: "message", Value: 1}, {Key: "createdAt", Value: 1}}).
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := m.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("querying confessions: %w", err)
	}

	var docs []confessionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding confessions: %w", err)
	}

	out := make([]models.Confession, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].model())
	}
	return out, nil
}

func (m *mongoConfessions) UpdateMessage(ctx context.Context, id, message string) (*models.Confession, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var doc confessionDoc
	err = m.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"message": message}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating confession: %w", err)
	}

	c := doc.model()
	return &c, nil
}

func (m *mongoConfessions) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	res, err := m.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("deleting confession: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

type secretDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Message   string             `bson:"message"`
	Password  string             `bson:"password,omitempty"`
	Key       string             `bson:"key"`
	CreatedAt time.Time          `bson:"createdAt"`
	ExpiresAt time.Time          `bson:"expiresAt"`
}

type mongoSecrets struct {
	coll *mongo.Collection
}

func (m *mongoSecrets) ensureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "expiresAt", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("creating secret message indexes: %w", err)
	}
	return nil
}

func (m *mongoSecrets) Create(ctx context.Context, s *models.SecretMessage) error {
	doc := secretDoc{
		ID:        primitive.NewObjectID(),
		Message:   s.Message,
		Password:  s.PasswordHash,
		Key:       s.Key,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}
	if _, err := m.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("inserting secret message: %w", err)
	}

	s.ID = doc.ID.Hex()
	return nil
}

func (m *mongoSecrets) Get(ctx context.Context, id string) (*models.SecretMessage, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var doc secretDoc
	if err := m.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying secret message: %w", err)
	}

	return &models.SecretMessage{
		ID:           doc.ID.Hex(),
		Message:      doc.Message,
		PasswordHash: doc.Password,
		Key:          doc.Key,
		CreatedAt:    doc.CreatedAt,
		ExpiresAt:    doc.ExpiresAt,
	}, nil
}

func (m *mongoSecrets) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	res, err := m.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("deleting secret message: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func expiredFilter(now time.Time) bson.M {
	return bson.M{"expiresAt": bson.M{"$lt": now}}
}

func (m *mongoSecrets) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	cursor, err := m.coll.Find(ctx, expiredFilter(now),
		options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("querying expired secret messages: %w", err)
	}

	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding expired secret messages: %w", err)
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID.Hex())
	}
	return ids, nil
}

func (m *mongoSecrets) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := m.coll.DeleteMany(ctx, expiredFilter(now))
	if err != nil {
		return 0, fmt.Errorf("deleting expired secret messages: %w", err)
	}
	return res.DeletedCount, nil
}
