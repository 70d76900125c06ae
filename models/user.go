package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is a portal account. ResetTokenHash and ResetTokenExpiry are set and
// cleared together; only the sha256 of a reset token is ever stored.
type User struct {
	ID               bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Name             string        `bson:"name" json:"name"`
	Email            string        `bson:"email" json:"email"`
	PasswordHash     string        `bson:"passwordHash" json:"-"` // never expose
	Role             Role          `bson:"role" json:"role"`
	ResetTokenHash   *string       `bson:"resetTokenHash,omitempty" json:"-"`
	ResetTokenExpiry *time.Time    `bson:"resetTokenExpiry,omitempty" json:"-"`
	CreatedAt        time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// UserSummary is the non-sensitive view returned to clients.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:    u.ID.Hex(),
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
}

func (u *User) HasPendingReset() bool {
	return u.ResetTokenHash != nil && u.ResetTokenExpiry != nil
}

// ClearReset drops any outstanding reset challenge.
func (u *User) ClearReset() {
	u.ResetTokenHash = nil
	u.ResetTokenExpiry = nil
}
