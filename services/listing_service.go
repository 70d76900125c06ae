package services

import (
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"

	"github.com/princinho/jobportal/apperror"
	"github.com/princinho/jobportal/models"
	"github.com/princinho/jobportal/repository"
	"github.com/princinho/jobportal/utils"
)

// Announcer is the part of Notifier the listing service needs.
type Announcer interface {
	NotifyNewListing(ctx context.Context, listing models.Listing)
}

// ListingService manages jobs or courses. Storage may be nil, in which case
// image uploads fail with apperror.ErrStorageUnavailable.
type ListingService[T models.Imaged[T]] struct {
	store    repository.ListingStore[T]
	notifier Announcer
	storage  utils.ObjectStorage
	maxImage int64
}

func NewListingService[T models.Imaged[T]](store repository.ListingStore[T], notifier Announcer, storage utils.ObjectStorage, maxImageBytes int64) *ListingService[T] {
	return &ListingService[T]{store: store, notifier: notifier, storage: storage, maxImage: maxImageBytes}
}

func (s *ListingService[T]) List(ctx context.Context, page, limit int) (models.Page[T], error) {
	items, total, err := s.store.List(ctx, page, limit)
	if err != nil {
		return models.Page[T]{}, apperror.Internal(err)
	}
	return models.NewPage(items, page, limit, total), nil
}

func (s *ListingService[T]) Latest(ctx context.Context, limit int) ([]T, error) {
	items, err := s.store.Latest(ctx, limit)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return items, nil
}

func (s *ListingService[T]) Get(ctx context.Context, id string) (T, error) {
	item, err := s.store.FindByID(ctx, id)
	if err != nil {
		return item, apperror.From(err)
	}
	return item, nil
}

// Create stores item and announces it. The announcement is queued, so the
// caller gets its response before any email is sent.
func (s *ListingService[T]) Create(ctx context.Context, item T) (T, error) {
	if err := item.Validate(); err != nil {
		return item, apperror.Validation(err.Error())
	}
	if err := s.store.Create(ctx, item); err != nil {
		return item, apperror.Internal(err)
	}
	slog.InfoContext(ctx, "listing created",
		"kind", item.ListingKind(),
		"listing_id", item.ListingID().Hex(),
	)
	if s.notifier != nil {
		s.notifier.NotifyNewListing(ctx, item)
	}
	return item, nil
}

// Update loads the listing, applies patch and writes the result back.
func (s *ListingService[T]) Update(ctx context.Context, id string, patch func(T) T) (T, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return current, err
	}
	updated := patch(current)
	if updated.ListingID() != current.ListingID() {
		return current, apperror.Validation("listing id cannot change")
	}
	if err := updated.Validate(); err != nil {
		return current, apperror.Validation(err.Error())
	}
	if err := s.store.Replace(ctx, updated); err != nil {
		return current, apperror.From(err)
	}
	return updated, nil
}

func (s *ListingService[T]) Delete(ctx context.Context, id string) error {
	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return apperror.From(err)
	}
	s.removeImage(ctx, item.Image())
	slog.InfoContext(ctx, "listing deleted", "kind", item.ListingKind(), "listing_id", id)
	return nil
}

// SetImage uploads fh and points the listing at it. The previous image, if it
// lives in our bucket, is removed afterwards.
func (s *ListingService[T]) SetImage(ctx context.Context, id string, fh *multipart.FileHeader) (T, error) {
	var zero T
	if s.storage == nil {
		return zero, apperror.ErrStorageUnavailable
	}

	item, err := s.Get(ctx, id)
	if err != nil {
		return zero, err
	}

	contentType, err := utils.ValidateImage(fh, s.maxImage)
	if err != nil {
		return zero, apperror.Validation(err.Error())
	}

	key := utils.ListingImageKey(string(item.ListingKind())+"s", id, fh.Filename)
	url, err := s.storage.Put(ctx, key, contentType, fh)
	if err != nil {
		return zero, apperror.Internal(fmt.Errorf("upload image: %w", err))
	}

	old := item.Image()
	updated := item.WithImage(url)
	if err := s.store.Replace(ctx, updated); err != nil {
		s.removeImage(ctx, url)
		return zero, apperror.From(err)
	}
	s.removeImage(ctx, old)
	return updated, nil
}

func (s *ListingService[T]) removeImage(ctx context.Context, url string) {
	if s.storage == nil || url == "" {
		return
	}
	key, ok := s.storage.KeyFromURL(url)
	if !ok {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "failed to delete listing image", "key", key, "error", err)
	}
}
