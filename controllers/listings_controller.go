package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/princinho/jobportal/apperror"
	"github.com/princinho/jobportal/models"
	"github.com/princinho/jobportal/services"
	"github.com/princinho/jobportal/utils"
)

// Handlers shared by jobs and courses.

// GET /jobs, GET /courses
func ListListings[T models.Imaged[T]](svc *services.ListingService[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, limit := pageParams(c)
		result, err := svc.List(c.Request.Context(), page, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// GET /jobs/latest, GET /courses/latest
func LatestListings[T models.Imaged[T]](svc *services.ListingService[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := utils.ParseIntDefault(c.Query("limit"), 6)
		if limit < 1 || limit > 50 {
			limit = 6
		}
		items, err := svc.Latest(c.Request.Context(), limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

// GET /jobs/:id, GET /courses/:id
func GetListing[T models.Imaged[T]](svc *services.ListingService[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

// DELETE /admin/jobs/:id, DELETE /admin/courses/:id
func DeleteListing[T models.Imaged[T]](svc *services.ListingService[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Deleted successfully"})
	}
}

// POST /admin/jobs/:id/logo, POST /admin/courses/:id/image
//
// Expects a multipart form with the picture in the "file" field.
func UploadListingImage[T models.Imaged[T]](svc *services.ListingService[T], maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+1<<20)

		fh, err := c.FormFile("file")
		if err != nil {
			respondError(c, apperror.Validation("file is required"))
			return
		}

		item, err := svc.SetImage(c.Request.Context(), c.Param("id"), fh)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}
