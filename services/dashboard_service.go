package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/princinho/jobportal/apperror"
	"github.com/princinho/jobportal/models"
	"github.com/princinho/jobportal/repository"
)

// RecentWindow is how far back the dashboard's "recent" counters look.
const RecentWindow = 30 * 24 * time.Hour

type DashboardService struct {
	users   repository.UserStore
	jobs    repository.ListingStore[models.Job]
	courses repository.ListingStore[models.Course]
	now     func() time.Time
}

func NewDashboardService(users repository.UserStore, jobs repository.ListingStore[models.Job], courses repository.ListingStore[models.Course]) *DashboardService {
	return &DashboardService{users: users, jobs: jobs, courses: courses, now: time.Now}
}

// Stats runs the six counts concurrently.
func (s *DashboardService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	since := s.now().Add(-RecentWindow)
	var stats models.DashboardStats

	g, ctx := errgroup.WithContext(ctx)
	count := func(dst *int64, fn func(context.Context, time.Time) (int64, error), from time.Time) {
		g.Go(func() error {
			n, err := fn(ctx, from)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		})
	}

	count(&stats.JobsCount, s.jobs.Count, time.Time{})
	count(&stats.CoursesCount, s.courses.Count, time.Time{})
	count(&stats.UsersCount, s.users.Count, time.Time{})
	count(&stats.RecentJobsCount, s.jobs.Count, since)
	count(&stats.RecentCoursesCount, s.courses.Count, since)
	count(&stats.RecentUsersCount, s.users.Count, since)

	if err := g.Wait(); err != nil {
		return nil, apperror.Internal(err)
	}
	return &stats, nil
}
