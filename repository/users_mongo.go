package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/princinho/jobportal/apperror"
	"github.com/princinho/jobportal/database"
	"github.com/princinho/jobportal/models"
	"github.com/princinho/jobportal/utils"
)

type MongoUserStore struct {
	col *mongo.Collection
}

func NewMongoUserStore(db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{col: db.Collection(database.UsersCollection)}
}

func (s *MongoUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": utils.NormalizeEmail(email)})
}

func (s *MongoUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperror.NotFound("user")
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *MongoUserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := s.col.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("user")
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (s *MongoUserStore) Create(ctx context.Context, user *models.User) error {
	user.Email = utils.NormalizeEmail(user.Email)
	if user.ID.IsZero() {
		user.ID = bson.NewObjectID()
	}
	if _, err := s.col.InsertOne(ctx, user); err != nil {
		if utils.IsDuplicateKey(err) {
			return apperror.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *MongoUserStore) Save(ctx context.Context, user *models.User) error {
	user.Email = utils.NormalizeEmail(user.Email)
	opts := options.Replace().SetUpsert(true)
	if _, err := s.col.ReplaceOne(ctx, bson.M{"_id": user.ID}, user, opts); err != nil {
		if utils.IsDuplicateKey(err) {
			return apperror.ErrDuplicateEmail
		}
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *MongoUserStore) UpdateName(ctx context.Context, userID, name string, now time.Time) error {
	oid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return apperror.NotFound("user")
	}
	res, err := s.col.UpdateByID(ctx, oid, bson.M{
		"$set": bson.M{"name": name, "updatedAt": now.UTC()},
	})
	if err != nil {
		return fmt.Errorf("update name: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("user")
	}
	return nil
}

func (s *MongoUserStore) UpdatePassword(ctx context.Context, userID, currentHash, newHash string, now time.Time) error {
	oid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return apperror.NotFound("user")
	}
	filter := bson.M{"_id": oid, "passwordHash": currentHash}
	update := bson.M{
		"$set":   bson.M{"passwordHash": newHash, "updatedAt": now.UTC()},
		"$unset": bson.M{"resetTokenHash": "", "resetTokenExpiry": ""},
	}
	res, err := s.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("user")
	}
	return nil
}

func (s *MongoUserStore) SetResetToken(ctx context.Context, userID string, tokenHash string, expiry time.Time) error {
	oid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return apperror.NotFound("user")
	}
	res, err := s.col.UpdateByID(ctx, oid, bson.M{
		"$set": bson.M{
			"resetTokenHash":   tokenHash,
			"resetTokenExpiry": expiry.UTC(),
			"updatedAt":        time.Now().UTC(),
		},
	})
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("user")
	}
	return nil
}

func (s *MongoUserStore) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*models.User, error) {
	filter := bson.M{
		"resetTokenHash":   tokenHash,
		"resetTokenExpiry": bson.M{"$gt": now.UTC()},
	}
	update := bson.M{
		"$set":   bson.M{"passwordHash": passwordHash, "updatedAt": now.UTC()},
		"$unset": bson.M{"resetTokenHash": "", "resetTokenExpiry": ""},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user models.User
	if err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("reset token")
		}
		return nil, fmt.Errorf("consume reset token: %w", err)
	}
	return &user, nil
}

// UpsertAdmin matches on email and role together, so an ordinary account
// under the same email makes the insert collide with the unique email index
// instead of being promoted.
func (s *MongoUserStore) UpsertAdmin(ctx context.Context, email, name, passwordHash string, now time.Time) (bool, error) {
	email = utils.NormalizeEmail(email)
	now = now.UTC()

	filter := bson.M{"email": email, "role": models.RoleAdmin}
	update := bson.M{
		"$setOnInsert": bson.M{
			"name":         name,
			"passwordHash": passwordHash,
			"createdAt":    now,
			"updatedAt":    now,
		},
	}
	opts := options.UpdateOne().SetUpsert(true)

	res, err := s.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if utils.IsDuplicateKey(err) {
			return false, ErrAccountNotAdmin
		}
		return false, fmt.Errorf("seed admin upsert failed: %w", err)
	}
	return res.UpsertedCount == 1, nil
}

func (s *MongoUserStore) SetRole(ctx context.Context, userID string, role models.Role) error {
	oid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return apperror.NotFound("user")
	}
	res, err := s.col.UpdateByID(ctx, oid, bson.M{
		"$set": bson.M{"role": role, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("user")
	}
	return nil
}

func (s *MongoUserStore) List(ctx context.Context, page, limit int) ([]models.User, int64, error) {
	opts := options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	users := make([]models.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, 0, fmt.Errorf("decode users: %w", err)
	}

	total, err := s.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}

func (s *MongoUserStore) Count(ctx context.Context, since time.Time) (int64, error) {
	return countSince(ctx, s.col, since)
}

func (s *MongoUserStore) EachUser(ctx context.Context, fn func(models.User) error) error {
	opts := options.Find().SetProjection(bson.M{"name": 1, "email": 1, "role": 1})
	cursor, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return fmt.Errorf("find users: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var u models.User
		if err := cursor.Decode(&u); err != nil {
			return fmt.Errorf("decode user: %w", err)
		}
		if err := fn(u); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func countSince(ctx context.Context, col *mongo.Collection, since time.Time) (int64, error) {
	filter := bson.M{}
	if !since.IsZero() {
		filter["createdAt"] = bson.M{"$gte": since.UTC()}
	}
	n, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", col.Name(), err)
	}
	return n, nil
}
