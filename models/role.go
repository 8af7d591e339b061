package models

import (
	"time"
)

// RoleType classifies how a role is used for permission grants.
type RoleType string

const (
	RoleTypePrivate RoleType = "PRIVATE"
	RoleTypeShared  RoleType = "SHARED"
	RoleTypeAdmin   RoleType = "ADMIN"
	RoleTypeSystem  RoleType = "SYSTEM"
)

func (t RoleType) Valid() bool {
	switch t {
	case RoleTypePrivate, RoleTypeShared, RoleTypeAdmin, RoleTypeSystem:
		return true
	}
	return false
}

// Role is a named permission grouping. OwnerUserID is only set on PRIVATE
// roles and is unique, which keeps a user at one private role.
type Role struct {
	ID          string    `gorm:"column:id;primaryKey" json:"id"`
	Name        string    `gorm:"column:name" json:"name"`
	Description string    `gorm:"column:description" json:"description"`
	Type        RoleType  `gorm:"column:role_type" json:"type"`
	OwnerUserID *string   `gorm:"column:owner_user_id;uniqueIndex" json:"owner_user_id,omitempty"`
	Deleted     bool      `gorm:"column:deleted" json:"deleted"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Role) TableName() string { return "roles" }

// PrivateRoleFor builds the private role for a user. The caller persists it.
func PrivateRoleFor(u User) Role {
	owner := u.ID
	return Role{
		ID:          LegitID(),
		Name:        u.Email,
		Description: "Private Role for " + u.Email,
		Type:        RoleTypePrivate,
		OwnerUserID: &owner,
		CreatedAt:   time.Now().UTC(),
	}
}

// UserRole links a user to a role.
type UserRole struct {
	ID         string    `gorm:"column:id;primaryKey"`
	UserID     string    `gorm:"column:user_id;index"`
	RoleID     string    `gorm:"column:role_id;index"`
	AssignedAt time.Time `gorm:"column:assigned_at"`
}

func (UserRole) TableName() string { return "user_roles" }
