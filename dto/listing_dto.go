package dto

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/princinho/jobportal/models"
)

type CreateJobDTO struct {
	Title          string `json:"title" binding:"required"`
	Description    string `json:"description" binding:"required"`
	Company        string `json:"company" binding:"required"`
	Location       string `json:"location" binding:"required"`
	Salary         string `json:"salary"`
	ApplicationURL string `json:"applicationUrl" binding:"required,url"`
}

func (d CreateJobDTO) ToModel(now time.Time) models.Job {
	return models.Job{
		ID:             bson.NewObjectID(),
		Title:          strings.TrimSpace(d.Title),
		Description:    d.Description,
		Company:        strings.TrimSpace(d.Company),
		Location:       strings.TrimSpace(d.Location),
		Salary:         strings.TrimSpace(d.Salary),
		ApplicationURL: strings.TrimSpace(d.ApplicationURL),
		CreatedAt:      now.UTC(),
	}
}

// UpdateJobDTO changes only the fields present in the request.
type UpdateJobDTO struct {
	Title          *string `json:"title,omitempty" binding:"omitempty,min=1"`
	Description    *string `json:"description,omitempty" binding:"omitempty,min=1"`
	Company        *string `json:"company,omitempty" binding:"omitempty,min=1"`
	Location       *string `json:"location,omitempty" binding:"omitempty,min=1"`
	Salary         *string `json:"salary,omitempty"`
	ApplicationURL *string `json:"applicationUrl,omitempty" binding:"omitempty,url"`
}

func (d UpdateJobDTO) Apply(j models.Job) models.Job {
	set(&j.Title, d.Title)
	set(&j.Description, d.Description)
	set(&j.Company, d.Company)
	set(&j.Location, d.Location)
	set(&j.Salary, d.Salary)
	set(&j.ApplicationURL, d.ApplicationURL)
	return j
}

type CreateCourseDTO struct {
	Title         string `json:"title" binding:"required"`
	Description   string `json:"description" binding:"required"`
	Provider      string `json:"provider" binding:"required"`
	Duration      string `json:"duration" binding:"required"`
	Price         string `json:"price"`
	EnrollmentURL string `json:"enrollmentUrl" binding:"required,url"`
}

func (d CreateCourseDTO) ToModel(now time.Time) models.Course {
	return models.Course{
		ID:            bson.NewObjectID(),
		Title:         strings.TrimSpace(d.Title),
		Description:   d.Description,
		Provider:      strings.TrimSpace(d.Provider),
		Duration:      strings.TrimSpace(d.Duration),
		Price:         strings.TrimSpace(d.Price),
		EnrollmentURL: strings.TrimSpace(d.EnrollmentURL),
		CreatedAt:     now.UTC(),
	}
}

type UpdateCourseDTO struct {
	Title         *string `json:"title,omitempty" binding:"omitempty,min=1"`
	Description   *string `json:"description,omitempty" binding:"omitempty,min=1"`
	Provider      *string `json:"provider,omitempty" binding:"omitempty,min=1"`
	Duration      *string `json:"duration,omitempty" binding:"omitempty,min=1"`
	Price         *string `json:"price,omitempty"`
	EnrollmentURL *string `json:"enrollmentUrl,omitempty" binding:"omitempty,url"`
}

func (d UpdateCourseDTO) Apply(c models.Course) models.Course {
	set(&c.Title, d.Title)
	set(&c.Description, d.Description)
	set(&c.Provider, d.Provider)
	set(&c.Duration, d.Duration)
	set(&c.Price, d.Price)
	set(&c.EnrollmentURL, d.EnrollmentURL)
	return c
}

func set(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}
