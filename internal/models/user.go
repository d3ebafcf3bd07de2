package models

import (
	"strings"

	"gorm.io/gorm"
)

// UserRole is the coarse role a platform account signs up with.
type UserRole string

const (
	UserRoleMentor UserRole = "MENTOR"
	UserRoleMentee UserRole = "MENTEE"
	UserRoleAdmin  UserRole = "ADMIN"
)

// User describes a platform account. Credentials live with the identity provider.
type User struct {
	BaseModel

	Email     string   `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	FirstName string   `gorm:"type:varchar(100)" json:"first_name"`
	LastName  string   `gorm:"type:varchar(100)" json:"last_name"`
	Role      UserRole `gorm:"type:varchar(16);index;not null" json:"role"`
	IsActive  bool     `json:"is_active"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// DisplayName joins the first and last name, falling back to the email address.
func (u User) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return u.Email
	}
	return name
}
