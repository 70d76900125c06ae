package services

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/princinho/jobportal/mailer"
	"github.com/princinho/jobportal/models"
	"github.com/princinho/jobportal/repository"
)

const defaultNotifyConcurrency = 8

// Notifier announces new listings to every account. Delivery runs after the
// triggering request has returned and a failed recipient never stops the rest.
type Notifier struct {
	users       repository.UserStore
	mail        mailer.Mailer
	appURL      string
	concurrency int

	inflight sync.WaitGroup
}

func NewNotifier(users repository.UserStore, mail mailer.Mailer, appURL string, concurrency int) *Notifier {
	if concurrency <= 0 {
		concurrency = defaultNotifyConcurrency
	}
	return &Notifier{
		users:       users,
		mail:        mail,
		appURL:      appURL,
		concurrency: concurrency,
	}
}

// NotifyNewListing queues the announcement and returns immediately. The
// request context only contributes its values; cancelling it does not stop
// delivery.
func (n *Notifier) NotifyNewListing(ctx context.Context, listing models.Listing) {
	bg := context.WithoutCancel(ctx)
	url := n.ListingURL(listing)

	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		n.deliver(bg, listing, url)
	}()
}

func (n *Notifier) deliver(ctx context.Context, listing models.Listing, url string) {
	var sent, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(n.concurrency)

	err := n.users.EachUser(ctx, func(u models.User) error {
		msg := mailer.NewListingMessage(u.Email, u.Name, listing, url)
		userID := u.ID.Hex()
		g.Go(func() error {
			if err := n.mail.Send(ctx, msg); err != nil {
				failed.Add(1)
				slog.ErrorContext(ctx, "listing notification failed",
					"user_id", userID,
					"listing_id", listing.ListingID().Hex(),
					"error", err,
				)
				return nil
			}
			sent.Add(1)
			return nil
		})
		return nil
	})
	_ = g.Wait()

	if err != nil {
		slog.ErrorContext(ctx, "listing notification recipients incomplete",
			"listing_id", listing.ListingID().Hex(),
			"error", err,
		)
	}
	slog.InfoContext(ctx, "listing notifications finished",
		"kind", listing.ListingKind(),
		"listing_id", listing.ListingID().Hex(),
		"sent", sent.Load(),
		"failed", failed.Load(),
	)
}

func (n *Notifier) ListingURL(listing models.Listing) string {
	path := "/jobs/"
	if listing.ListingKind() == models.KindCourse {
		path = "/courses/"
	}
	return n.appURL + path + listing.ListingID().Hex()
}

// Wait blocks until every queued announcement has finished. main calls it on
// shutdown.
func (n *Notifier) Wait() {
	n.inflight.Wait()
}
