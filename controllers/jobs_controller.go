package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/princinho/jobportal/dto"
	"github.com/princinho/jobportal/models"
	"github.com/princinho/jobportal/services"
)

// POST /admin/jobs
func CreateJob(svc *services.ListingService[models.Job]) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.CreateJobDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			bindError(c, err)
			return
		}

		job, err := svc.Create(c.Request.Context(), body.ToModel(time.Now()))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, job)
	}
}

// PUT /admin/jobs/:id
func UpdateJob(svc *services.ListingService[models.Job]) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.UpdateJobDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			bindError(c, err)
			return
		}

		job, err := svc.Update(c.Request.Context(), c.Param("id"), body.Apply)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, job)
	}
}
