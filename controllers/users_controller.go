package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/princinho/jobportal/apperror"
	"github.com/princinho/jobportal/dto"
	"github.com/princinho/jobportal/services"
)

// GET /user/profile
func GetProfile(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			respondError(c, apperror.ErrUnauthorized)
			return
		}
		user, err := auth.Profile(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

// PUT /user/profile
func UpdateProfile(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.UpdateProfileDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			bindError(c, err)
			return
		}
		userID, ok := currentUserID(c)
		if !ok {
			respondError(c, apperror.ErrUnauthorized)
			return
		}

		user, err := auth.UpdateProfile(c.Request.Context(), userID, body.Name)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Profile updated successfully",
			"user":    user,
		})
	}
}

// POST /user/password
func ChangeMyPassword(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.ChangeMyPasswordDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			bindError(c, err)
			return
		}
		userID, ok := currentUserID(c)
		if !ok {
			respondError(c, apperror.ErrUnauthorized)
			return
		}

		if err := auth.ChangePassword(c.Request.Context(), userID, body.CurrentPassword, body.NewPassword); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// GET /admin/users
func ListUsers(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, limit := pageParams(c)
		users, err := auth.ListUsers(c.Request.Context(), page, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

// PATCH /admin/users/:id/role
func UpdateUserRole(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.UpdateRoleDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			bindError(c, err)
			return
		}

		id := c.Param("id")
		if err := auth.SetRole(c.Request.Context(), id, body.Role); err != nil {
			respondError(c, err)
			return
		}
		user, err := auth.Profile(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}
