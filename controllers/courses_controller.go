package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/princinho/jobportal/dto"
	"github.com/princinho/jobportal/models"
	"github.com/princinho/jobportal/services"
)

// POST /admin/courses
func CreateCourse(svc *services.ListingService[models.Course]) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.CreateCourseDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			bindError(c, err)
			return
		}

		course, err := svc.Create(c.Request.Context(), body.ToModel(time.Now()))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, course)
	}
}

// PUT /admin/courses/:id
func UpdateCourse(svc *services.ListingService[models.Course]) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.UpdateCourseDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			bindError(c, err)
			return
		}

		course, err := svc.Update(c.Request.Context(), c.Param("id"), body.Apply)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, course)
	}
}
