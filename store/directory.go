package store

import (
	"context"

	"github.com/legit-games/dataset-iam/models"
	"gorm.io/gorm"
)

// Directory resolves users and roles for the HTTP layer on the relational schema.
type Directory struct {
	Users *UserStore
	Roles *RoleStore
}

func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{Users: NewUserStore(db), Roles: NewRoleStore(db)}
}

func (d *Directory) GetUser(ctx context.Context, id string) (*models.User, error) {
	return d.Users.GetUser(ctx, id)
}

func (d *Directory) GetUsers(ctx context.Context, ids []string) ([]models.User, error) {
	return d.Users.GetUsers(ctx, dedupeStrings(ids))
}

func (d *Directory) GetRoles(ctx context.Context, ids []string) ([]models.Role, error) {
	return d.Roles.GetRoles(ctx, ids)
}

func (d *Directory) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	return d.Users.Authenticate(ctx, email, password)
}
