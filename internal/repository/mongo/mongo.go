// Package mongo stores profile documents in MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/neoori/profile-api/internal/apperror"
	"github.com/neoori/profile-api/internal/config"
	"github.com/neoori/profile-api/internal/model"
	"github.com/neoori/profile-api/internal/repository"
)

// Store owns the MongoDB client.
type Store struct {
	client   *mongo.Client
	db       *mongo.Database
	profiles string
}

// Connect dials MongoDB, verifies the connection and makes sure the
// profile indexes exist. The whole sequence is bounded by
// cfg.ConnectTimeout.
func Connect(ctx context.Context, cfg config.MongoConfig) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	// Embedded documents of free-form fields (game answers, game data)
	// decode as maps so they serialize back to JSON objects.
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetBSONOptions(&options.BSONOptions{
			DefaultDocumentM: true,
			NilSliceAsEmpty:  true,
		})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}

	s := &Store{
		client:   client,
		db:       client.Database(cfg.Database),
		profiles: cfg.ProfilesCollection,
	}
	if s.profiles == "" {
		s.profiles = config.DefaultProfilesCollection
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(s.profiles).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("userId_unique"),
	})
	if err != nil {
		return fmt.Errorf("mongo: creating userId index: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Profiles() *ProfileStore {
	return &ProfileStore{coll: s.db.Collection(s.profiles)}
}

var _ repository.ProfileRepository = (*ProfileStore)(nil)

type ProfileStore struct {
	coll *mongo.Collection
}

func (p *ProfileStore) GetByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	var profile model.Profile
	err := p.coll.FindOne(ctx, bson.M{"userId": userID}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("profile", userID)
		}
		return nil, fmt.Errorf("mongo: finding profile for %s: %w", userID, err)
	}
	return &profile, nil
}

func (p *ProfileStore) Create(ctx context.Context, profile *model.Profile) error {
	if _, err := p.coll.InsertOne(ctx, profile); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("profile", profile.UserID)
		}
		return fmt.Errorf("mongo: inserting profile for %s: %w", profile.UserID, err)
	}
	return nil
}

func (p *ProfileStore) Replace(ctx context.Context, profile *model.Profile) error {
	result, err := p.coll.ReplaceOne(ctx, bson.M{"userId": profile.UserID}, profile)
	if err != nil {
		return fmt.Errorf("mongo: replacing profile for %s: %w", profile.UserID, err)
	}
	if result.MatchedCount == 0 {
		return apperror.NotFound("profile", profile.UserID)
	}
	return nil
}
