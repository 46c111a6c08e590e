package mongodb

import (
	"context"
	"time"

	"github.com/goliatone/go-tasks/auth"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const usersCollection = "users"

// UsersStore persists users in a mongo collection
type UsersStore struct {
	coll *mongo.Collection
}

var _ auth.Users = (*UsersStore)(nil)

func NewUsersStore(db *mongo.Database) *UsersStore {
	return &UsersStore{coll: db.Collection(usersCollection)}
}

func (s *UsersStore) findOne(ctx context.Context, filter bson.D, op string) (*auth.User, error) {
	var doc userDocument
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapError(err, op)
	}
	return doc.toUser()
}

func (s *UsersStore) GetByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: id.String()}}, "users.get_by_id")
}

func (s *UsersStore) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.findOne(ctx, bson.D{{Key: "email", Value: auth.NormalizeEmail(email)}}, "users.get_by_email")
}

func (s *UsersStore) Create(ctx context.Context, user *auth.User) (*auth.User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = auth.NormalizeEmail(user.Email)

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	if _, err := s.coll.InsertOne(ctx, toUserDocument(user)); err != nil {
		return nil, mapError(err, "users.create")
	}
	return user, nil
}

func (s *UsersStore) TrackLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.coll.UpdateByID(ctx, id.String(), bson.M{
		"$set": bson.M{"lastLogin": at.UTC(), "updatedAt": at.UTC()},
	})
	if err != nil {
		return mapError(err, "users.track_login")
	}
	return requireMatched(res.MatchedCount)
}

func (s *UsersStore) SetActive(ctx context.Context, id uuid.UUID, active bool) (*auth.User, error) {
	res, err := s.coll.UpdateByID(ctx, id.String(), bson.M{
		"$set": bson.M{"isActive": active, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return nil, mapError(err, "users.set_active")
	}
	if err := requireMatched(res.MatchedCount); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}
