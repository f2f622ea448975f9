// Package domain contains persistence models for directory users.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Role separates administrative callers from regular members.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Status represents account lifecycle states.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// User is a directory account. Atlas owns the read path only; account
// management lives upstream.
type User struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Handle      string       `gorm:"type:text;not null;uniqueIndex:ux_users_handle" json:"handle"`
	DisplayName string       `gorm:"type:text;not null" json:"display_name"`
	Email       string       `gorm:"type:text;not null;uniqueIndex:ux_users_email" json:"email"`
	Role        Role         `gorm:"type:text;not null;default:member" json:"role"`
	Status      Status       `gorm:"type:text;not null;default:active" json:"status"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// IsActive reports whether the account may act or be acted upon.
func (u *User) IsActive() bool {
	return u != nil && u.Status == StatusActive
}
