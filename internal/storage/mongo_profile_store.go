package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rummage/profilesync/internal/models"
)

// bson names for the patchable document fields.
var mongoFieldNames = map[string]string{
	models.FieldFirstName:       "first_name",
	models.FieldLastName:        "last_name",
	models.FieldAddress:         "address",
	models.FieldPhone:           "phone",
	models.FieldBornOrAge:       "born_or_age",
	models.FieldProfilePhotoURI: "profile_photo_uri",
}

// MongoProfileStore keeps profile documents in a Mongo collection keyed by identity id (_id).
type MongoProfileStore struct {
	client      *mongo.Client
	profilesCol *mongo.Collection
}

func NewMongoProfileStore(ctx context.Context, mongoURI, dbName, collection string) (*MongoProfileStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	col := client.Database(dbName).Collection(collection)

	// Best-effort index for support lookups by email.
	_, _ = col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email_address", Value: 1}},
	})

	return &MongoProfileStore{client: client, profilesCol: col}, nil
}

func (s *MongoProfileStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoProfileStore) GetProfile(ctx context.Context, id string) (*models.ProfileDocument, error) {
	var doc models.ProfileDocument
	if err := s.profilesCol.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &doc, nil
}

func (s *MongoProfileStore) CreateProfile(ctx context.Context, doc *models.ProfileDocument) error {
	if _, err := s.profilesCol.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("profile %s: %w", doc.ID, ErrAlreadyExists)
		}
		return err
	}
	return nil
}

// PatchProfile sets the given fields without upserting; a missing document is ErrNotFound.
func (s *MongoProfileStore) PatchProfile(ctx context.Context, id string, patch models.ProfilePatch) error {
	set := bson.M{}
	for field, value := range patch.Fields() {
		set[mongoFieldNames[field]] = value
	}
	if len(set) == 0 {
		return nil
	}

	res, err := s.profilesCol.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	return nil
}
