package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/princinho/jobportal/services"
)

// GET /admin/dashboard
func GetDashboard(svc *services.DashboardService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := svc.Stats(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
