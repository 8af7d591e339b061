package dto

import (
	"time"

	"github.com/legit-games/dataset-iam/models"
)

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FromUser converts a models.User to UserResponse.
func FromUser(u *models.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Username: u.Username, CreatedAt: u.CreatedAt}
}

// FromUsers converts a slice of models.User to a slice of UserResponse.
func FromUsers(users []models.User) []UserResponse {
	responses := make([]UserResponse, len(users))
	for i := range users {
		responses[i] = FromUser(&users[i])
	}
	return responses
}

// RoleResponse represents a role in API responses.
type RoleResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Type        models.RoleType `json:"type"`
	OwnerUserID *string         `json:"owner_user_id,omitempty"`
}

func FromRole(r *models.Role) RoleResponse {
	return RoleResponse{ID: r.ID, Name: r.Name, Description: r.Description, Type: r.Type, OwnerUserID: r.OwnerUserID}
}
