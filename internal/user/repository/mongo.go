package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"synq/backend/internal/user/domain"
)

// DefaultUsersCollection is the collection used by MongoRepository.
const DefaultUsersCollection = "users"

type userDocument struct {
	ID                 string     `bson:"_id"`
	Email              string     `bson:"email"`
	Name               string     `bson:"name"`
	ChallengeHash      string     `bson:"challengeHash,omitempty"`
	ChallengeExpiresAt *time.Time `bson:"challengeExpiresAt,omitempty"`
	ChallengeConsumed  bool       `bson:"challengeConsumed"`
	CreatedAt          time.Time  `bson:"createdAt"`
	UpdatedAt          time.Time  `bson:"updatedAt"`
	LastLoginAt        *time.Time `bson:"lastLoginAt,omitempty"`
	LastActiveAt       *time.Time `bson:"lastActiveAt,omitempty"`
}

// MongoRepository implements Repository on a MongoDB collection. Conditional updates are single-document
// operations, which MongoDB applies atomically.
type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository returns a user repository backed by the given collection.
func NewMongoRepository(coll *mongo.Collection) *MongoRepository {
	return &MongoRepository{coll: coll}
}

// EnsureIndexes creates the unique email index and the sparse challenge digest index.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "challengeHash", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("mongo: create user indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoRepository) FindByChallengeDigest(ctx context.Context, digest string, now time.Time) (*domain.User, error) {
	return r.findOne(ctx, bson.M{
		"challengeHash":      digest,
		"challengeConsumed":  false,
		"challengeExpiresAt": bson.M{"$gt": now.UTC()},
	})
}

func (r *MongoRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	doc := userDocument{
		ID:                u.ID,
		Email:             u.Email,
		Name:              u.Name,
		ChallengeHash:     u.Challenge.Hash,
		ChallengeConsumed: u.Challenge.Consumed,
		CreatedAt:         u.CreatedAt.UTC(),
		UpdatedAt:         u.UpdatedAt.UTC(),
		LastLoginAt:       u.LastLoginAt,
		LastActiveAt:      u.LastActiveAt,
	}
	if u.Challenge.Hash != "" {
		exp := u.Challenge.ExpiresAt.UTC()
		doc.ChallengeExpiresAt = &exp
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("mongo error: %w", err)
	}
	return nil
}

func (r *MongoRepository) SetChallenge(ctx context.Context, userID string, c domain.MagicLinkChallenge, now time.Time) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": bson.M{
		"challengeHash":      c.Hash,
		"challengeExpiresAt": c.ExpiresAt.UTC(),
		"challengeConsumed":  false,
		"updatedAt":          now.UTC(),
	}})
	if err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	return nil
}

func (r *MongoRepository) ClearChallenge(ctx context.Context, userID, digest string, now time.Time) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID, "challengeHash": digest},
		bson.M{
			"$unset": bson.M{"challengeHash": "", "challengeExpiresAt": ""},
			"$set":   bson.M{"updatedAt": now.UTC()},
		})
	if err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	return nil
}

func (r *MongoRepository) ConsumeChallenge(ctx context.Context, userID, digest string, now time.Time) (bool, error) {
	now = now.UTC()
	res, err := r.coll.UpdateOne(ctx,
		bson.M{
			"_id":                userID,
			"challengeHash":      digest,
			"challengeConsumed":  false,
			"challengeExpiresAt": bson.M{"$gt": now},
		},
		bson.M{
			"$set": bson.M{
				"challengeConsumed": true,
				"lastLoginAt":       now,
				"lastActiveAt":      now,
				"updatedAt":         now,
			},
			"$unset": bson.M{"challengeHash": ""},
		})
	if err != nil {
		return false, fmt.Errorf("mongo error: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (r *MongoRepository) TouchLastActive(ctx context.Context, userID string, at time.Time) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": bson.M{"lastActiveAt": at.UTC()}})
	if err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	return nil
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongo error: %w", err)
	}
	return doc.toDomain(), nil
}

func (d *userDocument) toDomain() *domain.User {
	u := &domain.User{
		ID:        d.ID,
		Email:     d.Email,
		Name:      d.Name,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
		Challenge: domain.MagicLinkChallenge{
			Hash:     d.ChallengeHash,
			Consumed: d.ChallengeConsumed,
		},
	}
	if d.ChallengeExpiresAt != nil {
		u.Challenge.ExpiresAt = d.ChallengeExpiresAt.UTC()
	}
	if d.LastLoginAt != nil {
		t := d.LastLoginAt.UTC()
		u.LastLoginAt = &t
	}
	if d.LastActiveAt != nil {
		t := d.LastActiveAt.UTC()
		u.LastActiveAt = &t
	}
	return u
}
