package store

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/legit-games/dataset-iam/models"
	"github.com/legit-games/dataset-iam/security"
	"gorm.io/gorm"
)

// UserStore provides operations for users.
type UserStore struct {
	DB *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore { return &UserStore{DB: db} }

// CreateUser inserts a user with a bcrypt-hashed password.
func (s *UserStore) CreateUser(ctx context.Context, email, username, password string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, errors.Wrap(ErrInvalidInput, "email is required")
	}
	hash, err := models.HashPassword(password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := models.User{
		ID:           models.LegitID(),
		Email:        email,
		Username:     strings.TrimSpace(username),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errors.Wrapf(ErrConflict, "email %s", email)
		}
		return tx.Create(&u).Error
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return NewSecurityStore(s.DB).GetUser(ctx, id)
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.DB.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(security.ErrNotFound, "user %s", email)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUsers loads users by id, failing if any id is unknown.
func (s *UserStore) GetUsers(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	var users []models.User
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Order("email ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	found := make(map[string]struct{}, len(users))
	for _, u := range users {
		found[u.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, errors.Wrapf(security.ErrNotFound, "user %s", id)
		}
	}
	return users, nil
}

// Authenticate returns the user when email and password match; the error is
// ErrNotFound for unknown emails and wrong passwords alike.
func (s *UserStore) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u.Deleted || !u.CheckPassword(password) {
		return nil, errors.Wrapf(security.ErrNotFound, "user %s", email)
	}
	return u, nil
}

func (s *UserStore) ListUsers(ctx context.Context, offset, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var users []models.User
	err := s.DB.WithContext(ctx).Where("deleted = ?", false).Order("email ASC").Offset(offset).Limit(limit).Find(&users).Error
	return users, err
}

// MarkDeleted flags a user deleted. Roles and grants are kept.
func (s *UserStore) MarkDeleted(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"deleted": true, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(security.ErrNotFound, "user %s", id)
	}
	return nil
}
