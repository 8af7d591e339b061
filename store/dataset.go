package store

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/legit-games/dataset-iam/models"
	"github.com/legit-games/dataset-iam/security"
	"gorm.io/gorm"
)

type DatasetStore struct{ DB *gorm.DB }

func NewDatasetStore(db *gorm.DB) *DatasetStore { return &DatasetStore{DB: db} }

// CreateDataset inserts a new dataset. It has no permission records, so it is
// public until restricted.
func (s *DatasetStore) CreateDataset(ctx context.Context) (*models.Dataset, error) {
	d := models.NewDataset()
	if err := s.DB.WithContext(ctx).Create(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DatasetStore) GetDataset(ctx context.Context, id string) (*models.Dataset, error) {
	var d models.Dataset
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(security.ErrNotFound, "dataset %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DatasetStore) SetState(ctx context.Context, id string, state models.DatasetState) error {
	return s.update(ctx, id, map[string]interface{}{"state": state})
}

// MarkDeleted flags the dataset deleted, and purged when purge is set.
func (s *DatasetStore) MarkDeleted(ctx context.Context, id string, purge bool) error {
	return s.update(ctx, id, map[string]interface{}{"deleted": true, "purged": purge})
}

func (s *DatasetStore) update(ctx context.Context, id string, fields map[string]interface{}) error {
	res := s.DB.WithContext(ctx).Model(&models.Dataset{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(security.ErrNotFound, "dataset %s", id)
	}
	return nil
}
