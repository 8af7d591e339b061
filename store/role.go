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

// RoleStore manages shared, admin and system roles. Private roles are only
// created through SecurityStore.FindOrCreatePrivateRole.
type RoleStore struct{ DB *gorm.DB }

func NewRoleStore(db *gorm.DB) *RoleStore { return &RoleStore{DB: db} }

func (s *RoleStore) CreateRole(ctx context.Context, name, description string, roleType models.RoleType, userIDs ...string) (*models.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.Wrap(ErrInvalidInput, "role name is required")
	}
	if roleType == models.RoleTypePrivate || !roleType.Valid() {
		return nil, errors.Wrapf(ErrInvalidRoleType, "%q", roleType)
	}
	role := models.Role{ID: models.LegitID(), Name: name, Description: description, Type: roleType, CreatedAt: time.Now().UTC()}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&role).Error; err != nil {
			return err
		}
		for _, uid := range userIDs {
			ur := models.UserRole{ID: models.LegitID(), UserID: uid, RoleID: role.ID, AssignedAt: time.Now().UTC()}
			if err := tx.Create(&ur).Error; err != nil {
				return errors.Wrapf(err, "assign role %s to user %s", role.ID, uid)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (s *RoleStore) GetRole(ctx context.Context, id string) (*models.Role, error) {
	var r models.Role
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(security.ErrNotFound, "role %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRoles loads roles by id, failing if any id is unknown.
func (s *RoleStore) GetRoles(ctx context.Context, ids []string) ([]models.Role, error) {
	if len(ids) == 0 {
		return []models.Role{}, nil
	}
	var roles []models.Role
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&roles).Error; err != nil {
		return nil, err
	}
	if len(roles) != len(dedupeStrings(ids)) {
		return nil, errors.Wrapf(security.ErrNotFound, "roles %v", ids)
	}
	return roles, nil
}

// AssignRoleToUser adds the user to a role; assigning twice is a no-op.
func (s *RoleStore) AssignRoleToUser(ctx context.Context, userID, roleID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := tx.Where("id = ?", roleID).First(&role).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrapf(security.ErrNotFound, "role %s", roleID)
			}
			return err
		}
		if role.Type == models.RoleTypePrivate {
			return errors.Wrap(ErrInvalidRoleType, "private roles have exactly one member")
		}
		var count int64
		if err := tx.Model(&models.UserRole{}).Where("user_id = ? AND role_id = ?", userID, roleID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		ur := models.UserRole{ID: models.LegitID(), UserID: userID, RoleID: roleID, AssignedAt: time.Now().UTC()}
		return tx.Create(&ur).Error
	})
}

func (s *RoleStore) ListRolesForUser(ctx context.Context, userID string) ([]models.Role, error) {
	var roles []models.Role
	err := s.DB.WithContext(ctx).Table("roles r").Select("r.*").
		Joins("JOIN user_roles ur ON ur.role_id = r.id").
		Where("ur.user_id = ? AND r.deleted = ?", userID, false).
		Order("r.name ASC").Scan(&roles).Error
	return roles, err
}

func (s *RoleStore) ListUsersByRole(ctx context.Context, roleID string) ([]string, error) {
	var ids []string
	err := s.DB.WithContext(ctx).Table("user_roles").Select("user_id").Where("role_id = ?", roleID).Order("user_id ASC").Scan(&ids).Error
	return ids, err
}

// DeleteRole soft-deletes a role so existing grants stop matching it.
func (s *RoleStore) DeleteRole(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Model(&models.Role{}).Where("id = ? AND role_type <> ?", id, string(models.RoleTypePrivate)).Update("deleted", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(security.ErrNotFound, "role %s", id)
	}
	return nil
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
