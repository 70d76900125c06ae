package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/princinho/jobportal/middleware"
	"github.com/princinho/jobportal/models"
	"github.com/princinho/jobportal/services"
)

// AdminPrefix is the path space reserved for admin sessions.
const AdminPrefix = "/admin"

// Deps is everything the HTTP handlers need. Limiter may be nil to disable
// rate limiting of the auth endpoints. Forwarded client addresses are only
// believed from TrustedProxies; empty trusts none.
type Deps struct {
	Auth      *services.AuthService
	Jobs      *services.ListingService[models.Job]
	Courses   *services.ListingService[models.Course]
	Dashboard *services.DashboardService
	Cookies   CookieConfig
	Limiter   middleware.Limiter
	MaxUpload int64

	TrustedProxies []string
}

// RegisterRoutes must run before any other route is added to r, since the
// admin guard is installed as engine middleware.
func RegisterRoutes(r *gin.Engine, d Deps) error {
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}
	// gin answers trailing-slash redirects before any middleware runs
	r.RedirectTrailingSlash = false
	r.Use(middleware.GuardPrefix(AdminPrefix, middleware.AdminGuard(d.Auth, LoginPath)))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	auth := r.Group("/auth")
	if d.Limiter != nil {
		auth.Use(middleware.RateLimit(d.Limiter, middleware.ByClientIP("auth")))
	}
	{
		auth.GET("/login", LoginEntry())
		auth.POST("/login", Login(d.Auth, d.Cookies))
		auth.POST("/register", Register(d.Auth))
		auth.POST("/logout", Logout(d.Cookies))
		auth.GET("/session", GetSession(d.Auth))
		auth.POST("/forgot-password", ForgotPassword(d.Auth))
		auth.POST("/reset-password", ResetPassword(d.Auth))
	}

	r.GET("/jobs", ListListings(d.Jobs))
	r.GET("/jobs/latest", LatestListings(d.Jobs))
	r.GET("/jobs/:id", GetListing(d.Jobs))
	r.GET("/courses", ListListings(d.Courses))
	r.GET("/courses/latest", LatestListings(d.Courses))
	r.GET("/courses/:id", GetListing(d.Courses))

	user := r.Group("/user", middleware.RequireSession(d.Auth))
	{
		user.GET("/profile", GetProfile(d.Auth))
		user.PUT("/profile", UpdateProfile(d.Auth))
		user.POST("/password", ChangeMyPassword(d.Auth))
	}

	admin := r.Group(AdminPrefix)
	{
		admin.GET("/dashboard", GetDashboard(d.Dashboard))

		admin.POST("/jobs", CreateJob(d.Jobs))
		admin.PUT("/jobs/:id", UpdateJob(d.Jobs))
		admin.DELETE("/jobs/:id", DeleteListing(d.Jobs))
		admin.POST("/jobs/:id/logo", UploadListingImage(d.Jobs, d.MaxUpload))

		admin.POST("/courses", CreateCourse(d.Courses))
		admin.PUT("/courses/:id", UpdateCourse(d.Courses))
		admin.DELETE("/courses/:id", DeleteListing(d.Courses))
		admin.POST("/courses/:id/image", UploadListingImage(d.Courses, d.MaxUpload))

		admin.GET("/users", ListUsers(d.Auth))
		admin.PATCH("/users/:id/role", UpdateUserRole(d.Auth))
	}
	return nil
}
