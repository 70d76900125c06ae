package models

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type ListingKind string

const (
	KindJob    ListingKind = "job"
	KindCourse ListingKind = "course"
)

// Listing is the shared view of jobs and courses used by the generic stores
// and by new-content notifications.
type Listing interface {
	ListingID() bson.ObjectID
	ListingKind() ListingKind
	Headline() string
	Details() string
	Created() time.Time
}

// Imaged is a listing with one replaceable picture: a job's company logo or a
// course's cover image.
type Imaged[T any] interface {
	Listing
	Image() string
	WithImage(url string) T
	Validate() error
}

type Job struct {
	ID             bson.ObjectID `bson:"_id" json:"id"`
	Title          string        `bson:"title" json:"title"`
	Description    string        `bson:"description" json:"description"`
	Company        string        `bson:"company" json:"company"`
	Location       string        `bson:"location" json:"location"`
	Salary         string        `bson:"salary,omitempty" json:"salary,omitempty"`
	ApplicationURL string        `bson:"applicationUrl" json:"applicationUrl"`
	LogoURL        string        `bson:"logoUrl,omitempty" json:"logoUrl,omitempty"`
	CreatedAt      time.Time     `bson:"createdAt" json:"createdAt"`
}

func (j Job) ListingID() bson.ObjectID { return j.ID }
func (j Job) ListingKind() ListingKind { return KindJob }
func (j Job) Headline() string         { return j.Title }
func (j Job) Details() string          { return j.Description }
func (j Job) Created() time.Time       { return j.CreatedAt }
func (j Job) Image() string            { return j.LogoURL }

func (j Job) WithImage(url string) Job {
	j.LogoURL = url
	return j
}

// Validate reports the first required field left blank.
func (j Job) Validate() error {
	return requireFields(
		"title", j.Title,
		"description", j.Description,
		"company", j.Company,
		"location", j.Location,
		"applicationUrl", j.ApplicationURL,
	)
}

type Course struct {
	ID            bson.ObjectID `bson:"_id" json:"id"`
	Title         string        `bson:"title" json:"title"`
	Description   string        `bson:"description" json:"description"`
	Provider      string        `bson:"provider" json:"provider"`
	Duration      string        `bson:"duration" json:"duration"`
	Price         string        `bson:"price,omitempty" json:"price,omitempty"`
	EnrollmentURL string        `bson:"enrollmentUrl" json:"enrollmentUrl"`
	ImageURL      string        `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	CreatedAt     time.Time     `bson:"createdAt" json:"createdAt"`
}

func (c Course) ListingID() bson.ObjectID { return c.ID }
func (c Course) ListingKind() ListingKind { return KindCourse }
func (c Course) Headline() string         { return c.Title }
func (c Course) Details() string          { return c.Description }
func (c Course) Created() time.Time       { return c.CreatedAt }
func (c Course) Image() string            { return c.ImageURL }

func (c Course) WithImage(url string) Course {
	c.ImageURL = url
	return c
}

func (c Course) Validate() error {
	return requireFields(
		"title", c.Title,
		"description", c.Description,
		"provider", c.Provider,
		"duration", c.Duration,
		"enrollmentUrl", c.EnrollmentURL,
	)
}

// requireFields takes name, value pairs.
func requireFields(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return fmt.Errorf("%s is required", pairs[i])
		}
	}
	return nil
}

type DashboardStats struct {
	JobsCount          int64 `json:"jobsCount"`
	CoursesCount       int64 `json:"coursesCount"`
	UsersCount         int64 `json:"usersCount"`
	RecentJobsCount    int64 `json:"recentJobsCount"`
	RecentCoursesCount int64 `json:"recentCoursesCount"`
	RecentUsersCount   int64 `json:"recentUsersCount"`
}

// Page is one page of a newest-first listing query.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

func NewPage[T any](items []T, page, limit int, total int64) Page[T] {
	if items == nil {
		items = make([]T, 0)
	}
	pages := int64(0)
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return Page[T]{Items: items, Page: page, Limit: limit, Total: total, TotalPages: pages}
}
