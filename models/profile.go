package models

import (
	"time"

	"gorm.io/gorm"
)

// User types
const (
	UserTypeCustomer = "customer"
	UserTypeAdmin    = "admin"
)

// Profile represents a user profile linked 1:1 to an identity-provider account.
// The primary key is the provider's subject claim, so a profile can always be
// looked up directly from a validated token.
type Profile struct {
	ID        string         `gorm:"primaryKey" json:"id"` // identity provider subject ('sub' claim)
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`
	Phone     string         `json:"phone"`
	Company   string         `json:"company"`
	UserType  string         `gorm:"not null;default:'customer'" json:"user_type"` // "customer" or "admin"
	IsActive  bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Profile model
func (Profile) TableName() string {
	return "user_profiles"
}

// DisplayName returns the name shown in notifications: first+last name when
// both are present, otherwise the email, otherwise "N/A".
func (p *Profile) DisplayName() string {
	if p.FirstName != "" && p.LastName != "" {
		return p.FirstName + " " + p.LastName
	}
	if p.Email != "" {
		return p.Email
	}
	return "N/A"
}

// IsAdmin returns true if the profile has the admin role
func (p *Profile) IsAdmin() bool {
	return p.UserType == UserTypeAdmin
}
