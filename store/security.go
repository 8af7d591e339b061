package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/legit-games/dataset-iam/models"
	"github.com/legit-games/dataset-iam/permission"
	"github.com/legit-games/dataset-iam/security"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SecurityStore implements security.Store on the relational schema.
type SecurityStore struct{ DB *gorm.DB }

var _ security.Store = (*SecurityStore)(nil)

func NewSecurityStore(db *gorm.DB) *SecurityStore { return &SecurityStore{DB: db} }

func (s *SecurityStore) Atomically(ctx context.Context, fn func(tx security.Store) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&SecurityStore{DB: tx})
	})
}

func (s *SecurityStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(security.ErrNotFound, "user %s", userID)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SecurityStore) FindPrivateRole(ctx context.Context, userID string) (*models.Role, error) {
	var roles []models.Role
	err := s.DB.WithContext(ctx).
		Where("owner_user_id = ? AND role_type = ?", userID, string(models.RoleTypePrivate)).
		Limit(1).
		Find(&roles).Error
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, nil
	}
	return &roles[0], nil
}

// FindOrCreatePrivateRole relies on the unique owner_user_id index: a losing
// concurrent insert is skipped by ON CONFLICT and the winner's row is read back.
func (s *SecurityStore) FindOrCreatePrivateRole(ctx context.Context, user models.User) (*models.Role, error) {
	var out *models.Role
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := &SecurityStore{DB: tx}
		existing, err := inner.FindPrivateRole(ctx, user.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			out = existing
			return nil
		}
		stored, err := inner.GetUser(ctx, user.ID)
		if err != nil {
			return err
		}
		role := models.PrivateRoleFor(*stored)
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_user_id"}},
			DoNothing: true,
		}).Create(&role)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			existing, err = inner.FindPrivateRole(ctx, user.ID)
			if err != nil {
				return err
			}
			if existing == nil {
				return errors.Newf("private role for user %s conflicted but is not visible", user.ID)
			}
			out = existing
			return nil
		}
		ur := models.UserRole{ID: models.LegitID(), UserID: stored.ID, RoleID: role.ID, AssignedAt: time.Now().UTC()}
		if err := tx.Create(&ur).Error; err != nil {
			return err
		}
		out = &role
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SecurityStore) UserRoleIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.DB.WithContext(ctx).
		Table("user_roles ur").
		Select("ur.role_id").
		Joins("JOIN roles r ON r.id = ur.role_id").
		Where("ur.user_id = ? AND r.deleted = ?", userID, false).
		Order("ur.role_id ASC").
		Scan(&ids).Error
	return ids, err
}

func (s *SecurityStore) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).
		Table("user_roles ur").
		Joins("JOIN roles r ON r.id = ur.role_id").
		Where("ur.user_id = ? AND r.role_type = ? AND r.deleted = ?", userID, string(models.RoleTypeAdmin), false).
		Count(&count).Error
	return count > 0, err
}

func (s *SecurityStore) datasetExists(ctx context.Context, datasetID string) error {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.Dataset{}).Where("id = ?", datasetID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return errors.Wrapf(security.ErrNotFound, "dataset %s", datasetID)
	}
	return nil
}

func (s *SecurityStore) DatasetGrants(ctx context.Context, datasetID string) (permission.Grants, error) {
	if err := s.datasetExists(ctx, datasetID); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	var restrictions []models.DatasetRestriction
	if err := db.Where("dataset_id = ?", datasetID).Find(&restrictions).Error; err != nil {
		return nil, err
	}
	var perms []models.DatasetPermission
	if err := db.Where("dataset_id = ?", datasetID).Find(&perms).Error; err != nil {
		return nil, err
	}
	return grantsFromRows(restrictions, perms), nil
}

func grantsFromRows(restrictions []models.DatasetRestriction, perms []models.DatasetPermission) permission.Grants {
	g := permission.Grants{}
	for _, r := range restrictions {
		g[r.Action] = []string{}
	}
	for _, p := range perms {
		g[p.Action] = append(g[p.Action], p.RoleID)
	}
	return g.Clone()
}

func (s *SecurityStore) ReplaceDatasetGrants(ctx context.Context, datasetID string, actions []string, grants permission.Grants) error {
	if err := checkReplaceArgs(actions, grants); err != nil {
		return err
	}
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("dataset_id = ?", datasetID)
		if actions != nil {
			db = db.Where("action IN ?", actions)
		}
		return db
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := (&SecurityStore{DB: tx}).datasetExists(ctx, datasetID); err != nil {
			return err
		}
		if err := tx.Scopes(scope).Delete(&models.DatasetPermission{}).Error; err != nil {
			return err
		}
		if err := tx.Scopes(scope).Delete(&models.DatasetRestriction{}).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		var restrictions []models.DatasetRestriction
		var perms []models.DatasetPermission
		for _, name := range grants.Names() {
			restrictions = append(restrictions, models.DatasetRestriction{DatasetID: datasetID, Action: name, CreatedAt: now})
			for _, roleID := range grants[name] {
				perms = append(perms, models.DatasetPermission{
					ID: models.LegitID(), DatasetID: datasetID, Action: name, RoleID: roleID, CreatedAt: now,
				})
			}
		}
		if len(restrictions) > 0 {
			if err := tx.Create(&restrictions).Error; err != nil {
				return err
			}
		}
		if len(perms) > 0 {
			if err := tx.Create(&perms).Error; err != nil {
				return errors.Wrapf(err, "grant roles on dataset %s", datasetID)
			}
		}
		return nil
	})
}
