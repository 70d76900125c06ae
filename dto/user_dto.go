package dto

import "github.com/princinho/jobportal/models"

type UpdateProfileDTO struct {
	Name string `json:"name" binding:"required"`
}

type UpdateRoleDTO struct {
	Role models.Role `json:"role" binding:"required,oneof=user admin"`
}
