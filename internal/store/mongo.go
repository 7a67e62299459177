package store

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/secrets-app/backend/internal/models"
)

// CredentialsCollection is the collection holding user records.
const CredentialsCollection = "credentials"

// credentialDoc is the document layout in MongoDB.
type credentialDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Username  string             `bson:"username"`
	Password  string             `bson:"password,omitempty"`
	GoogleID  string             `bson:"google_id,omitempty"`
	Secret    string             `bson:"secret,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`
}

func (d *credentialDoc) user() *models.User {
	return &models.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		PasswordHash: d.Password,
		GoogleID:     d.GoogleID,
		Secret:       d.Secret,
		CreatedAt:    d.CreatedAt,
	}
}

// MongoStore handles credential CRUD in MongoDB.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection(CredentialsCollection)}
}

// EnsureIndexes creates the unique indexes that make username and
// google_id inserts atomic.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("username_unique"),
		},
		{
			Keys:    bson.D{{Key: "google_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("google_id_unique"),
		},
	})
	if err != nil {
		return oops.Code("STORE_MIGRATE_FAILED").With("collection", CredentialsCollection).Wrap(err)
	}
	return nil
}

func (s *MongoStore) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	if !u.Valid() {
		return nil, ErrIncompleteRecord
	}
	doc := credentialDoc{
		Username:  u.Username,
		Password:  u.PasswordHash,
		GoogleID:  u.GoogleID,
		CreatedAt: time.Now().UTC(),
	}
	res, err := s.col.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, oops.Code("STORE_DUPLICATE_USERNAME").
				With("username", u.Username).
				Wrap(ErrUsernameTaken)
		}
		return nil, oops.Code("STORE_INSERT_FAILED").With("operation", "mongo insert").Wrap(err)
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.user(), nil
}

func (s *MongoStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *MongoStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc credentialDoc
	if err := s.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, oops.Code("STORE_QUERY_FAILED").With("operation", "mongo find").Wrap(err)
	}
	return doc.user(), nil
}

// FindOrCreateFederated upserts by google_id. Two racing first logins for
// the same account collide on the unique index; the loser reads the winner.
func (s *MongoStore) FindOrCreateFederated(ctx context.Context, googleID, username string) (*models.User, error) {
	filter := bson.M{"google_id": googleID}
	update := bson.M{"$setOnInsert": bson.M{
		"username":   username,
		"google_id":  googleID,
		"created_at": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc credentialDoc
	err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.user(), nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, oops.Code("STORE_UPSERT_FAILED").With("operation", "mongo find-or-create").Wrap(err)
	}

	// Either a concurrent login inserted the same google_id, or a local
	// account already owns the generated username.
	err = s.col.FindOne(ctx, filter).Decode(&doc)
	switch {
	case err == nil:
		return doc.user(), nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, oops.Code("STORE_DUPLICATE_USERNAME").
			With("username", username).
			Wrap(ErrUsernameTaken)
	default:
		return nil, oops.Code("STORE_UPSERT_FAILED").With("operation", "mongo find-or-create").Wrap(err)
	}
}

func (s *MongoStore) SetSecret(ctx context.Context, id, secret string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"secret": secret}})
	if err != nil {
		return oops.Code("STORE_UPDATE_FAILED").With("operation", "mongo set secret").Wrap(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListSecrets(ctx context.Context) ([]models.SecretEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetProjection(bson.M{"username": 1, "secret": 1})
	cur, err := s.col.Find(ctx, bson.M{"secret": bson.M{"$exists": true, "$ne": ""}}, opts)
	if err != nil {
		return nil, oops.Code("STORE_QUERY_FAILED").With("operation", "mongo list secrets").Wrap(err)
	}
	defer cur.Close(ctx)

	var docs []credentialDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, oops.Code("STORE_QUERY_FAILED").With("operation", "mongo decode secrets").Wrap(err)
	}
	out := make([]models.SecretEntry, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.SecretEntry{Username: d.Username, Secret: d.Secret})
	}
	return out, nil
}
