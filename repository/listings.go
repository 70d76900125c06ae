package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/princinho/jobportal/apperror"
	"github.com/princinho/jobportal/models"
)

// ListingStore persists jobs or courses, newest first.
type ListingStore[T models.Listing] interface {
	Create(ctx context.Context, item T) error
	FindByID(ctx context.Context, id string) (T, error)
	List(ctx context.Context, page, limit int) ([]T, int64, error)
	Latest(ctx context.Context, limit int) ([]T, error)
	Replace(ctx context.Context, item T) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, since time.Time) (int64, error)
}

type MongoListingStore[T models.Listing] struct {
	col  *mongo.Collection
	noun string
}

// NewMongoListingStore wraps collection; noun names the record in not-found errors.
func NewMongoListingStore[T models.Listing](db *mongo.Database, collection, noun string) *MongoListingStore[T] {
	return &MongoListingStore[T]{col: db.Collection(collection), noun: noun}
}

func (s *MongoListingStore[T]) Create(ctx context.Context, item T) error {
	if _, err := s.col.InsertOne(ctx, item); err != nil {
		return fmt.Errorf("insert %s: %w", s.noun, err)
	}
	return nil
}

func (s *MongoListingStore[T]) FindByID(ctx context.Context, id string) (T, error) {
	var item T
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return item, apperror.NotFound(s.noun)
	}
	if err := s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&item); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return item, apperror.NotFound(s.noun)
		}
		return item, fmt.Errorf("find %s: %w", s.noun, err)
	}
	return item, nil
}

func (s *MongoListingStore[T]) List(ctx context.Context, page, limit int) ([]T, int64, error) {
	opts := options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "createdAt", Value: -1}})

	items, err := s.find(ctx, opts)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", s.noun, err)
	}
	return items, total, nil
}

func (s *MongoListingStore[T]) Latest(ctx context.Context, limit int) ([]T, error) {
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return s.find(ctx, opts)
}

func (s *MongoListingStore[T]) find(ctx context.Context, opts *options.FindOptionsBuilder) ([]T, error) {
	cursor, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", s.noun, err)
	}
	items := make([]T, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.noun, err)
	}
	return items, nil
}

func (s *MongoListingStore[T]) Replace(ctx context.Context, item T) error {
	res, err := s.col.ReplaceOne(ctx, bson.M{"_id": item.ListingID()}, item)
	if err != nil {
		return fmt.Errorf("replace %s: %w", s.noun, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound(s.noun)
	}
	return nil
}

func (s *MongoListingStore[T]) Delete(ctx context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return apperror.NotFound(s.noun)
	}
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete %s: %w", s.noun, err)
	}
	if res.DeletedCount == 0 {
		return apperror.NotFound(s.noun)
	}
	return nil
}

func (s *MongoListingStore[T]) Count(ctx context.Context, since time.Time) (int64, error) {
	return countSince(ctx, s.col, since)
}

type MemoryListingStore[T models.Listing] struct {
	mu    sync.RWMutex
	items map[bson.ObjectID]T
	noun  string
}

func NewMemoryListingStore[T models.Listing](noun string) *MemoryListingStore[T] {
	return &MemoryListingStore[T]{items: make(map[bson.ObjectID]T), noun: noun}
}

func (s *MemoryListingStore[T]) Create(_ context.Context, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ListingID()] = item
	return nil
}

func (s *MemoryListingStore[T]) FindByID(_ context.Context, id string) (T, error) {
	var zero T
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return zero, apperror.NotFound(s.noun)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[oid]
	if !ok {
		return zero, apperror.NotFound(s.noun)
	}
	return item, nil
}

func (s *MemoryListingStore[T]) List(_ context.Context, page, limit int) ([]T, int64, error) {
	all := s.sorted()
	return paginate(all, page, limit), int64(len(all)), nil
}

func (s *MemoryListingStore[T]) Latest(_ context.Context, limit int) ([]T, error) {
	return paginate(s.sorted(), 1, limit), nil
}

func (s *MemoryListingStore[T]) Replace(_ context.Context, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ListingID()]; !ok {
		return apperror.NotFound(s.noun)
	}
	s.items[item.ListingID()] = item
	return nil
}

func (s *MemoryListingStore[T]) Delete(_ context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return apperror.NotFound(s.noun)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[oid]; !ok {
		return apperror.NotFound(s.noun)
	}
	delete(s.items, oid)
	return nil
}

func (s *MemoryListingStore[T]) Count(_ context.Context, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, item := range s.items {
		if since.IsZero() || !item.Created().Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryListingStore[T]) sorted() []T {
	s.mu.RLock()
	all := make([]T, 0, len(s.items))
	for _, item := range s.items {
		all = append(all, item)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Created().After(all[j].Created()) })
	return all
}
