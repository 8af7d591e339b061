package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/legit-games/dataset-iam/models"
	"github.com/legit-games/dataset-iam/security"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ItemStore persists annotations, ratings and tags for any owner kind through
// one table per association shape, keyed by (owner_kind, owner_id).
type ItemStore struct{ DB *gorm.DB }

func NewItemStore(db *gorm.DB) *ItemStore { return &ItemStore{DB: db} }

// SetAnnotation creates or replaces the user's annotation on the item.
func (s *ItemStore) SetAnnotation(ctx context.Context, ref models.ItemRef, userID, text string) (*models.ItemAnnotation, error) {
	a := models.ItemAnnotation{
		ID: models.LegitID(), OwnerKind: ref.Kind, OwnerID: ref.ID, UserID: userID,
		Annotation: text, UpdateTime: time.Now().UTC(),
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_kind"}, {Name: "owner_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"annotation", "update_time"}),
	}).Create(&a).Error
	if err != nil {
		return nil, err
	}
	return s.GetAnnotation(ctx, ref, userID)
}

// GetAnnotation returns the user's annotation on the item, or nil.
func (s *ItemStore) GetAnnotation(ctx context.Context, ref models.ItemRef, userID string) (*models.ItemAnnotation, error) {
	var rows []models.ItemAnnotation
	err := s.DB.WithContext(ctx).
		Where("owner_kind = ? AND owner_id = ? AND user_id = ?", string(ref.Kind), ref.ID, userID).
		Limit(1).Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// Rate creates or replaces the user's rating of the item.
func (s *ItemStore) Rate(ctx context.Context, ref models.ItemRef, userID string, rating int) error {
	r := models.ItemRating{
		ID: models.LegitID(), OwnerKind: ref.Kind, OwnerID: ref.ID, UserID: userID,
		Rating: rating, UpdateTime: time.Now().UTC(),
	}
	if err := r.Validate(); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_kind"}, {Name: "owner_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rating", "update_time"}),
	}).Create(&r).Error
}

// RatingSummary is the average rating of an item and the number of ratings.
type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

func (s *ItemStore) RatingSummary(ctx context.Context, ref models.ItemRef) (RatingSummary, error) {
	var out RatingSummary
	err := s.DB.WithContext(ctx).Model(&models.ItemRating{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("owner_kind = ? AND owner_id = ?", string(ref.Kind), ref.ID).
		Scan(&out).Error
	return out, err
}

// AddTag parses raw ("name", "name:value" or "#value") and attaches it to
// the item. Adding an identical tag twice is a no-op.
func (s *ItemStore) AddTag(ctx context.Context, ref models.ItemRef, userID, raw string) (*models.ItemTag, error) {
	name, userValue, value, err := models.ParseTag(raw)
	if err != nil {
		return nil, err
	}
	t := models.ItemTag{
		ID: models.LegitID(), OwnerKind: ref.Kind, OwnerID: ref.ID, UserID: userID,
		UserTname: name, UserValue: userValue, Value: value, CreatedAt: time.Now().UTC(),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	var existing []models.ItemTag
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tag, err := findOrCreateTag(tx, name)
		if err != nil {
			return err
		}
		t.TagID = &tag.ID
		q := tx.Where("owner_kind = ? AND owner_id = ? AND user_id = ? AND user_tname = ?", string(ref.Kind), ref.ID, userID, name)
		if value == nil {
			q = q.Where("value IS NULL")
		} else {
			q = q.Where("value = ?", *value)
		}
		if err := q.Limit(1).Find(&existing).Error; err != nil {
			return err
		}
		if len(existing) > 0 {
			return nil
		}
		return tx.Create(&t).Error
	})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return &existing[0], nil
	}
	return &t, nil
}

// findOrCreateTag returns the shared tag for name. A concurrent insert of the
// same name is skipped by ON CONFLICT and the stored row is read back.
func findOrCreateTag(tx *gorm.DB, name string) (*models.Tag, error) {
	tag := models.Tag{ID: models.LegitID(), Name: name}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&tag).Error
	if err != nil {
		return nil, err
	}
	var stored models.Tag
	if err := tx.Where("name = ?", name).First(&stored).Error; err != nil {
		return nil, errors.Wrapf(err, "tag %q", name)
	}
	return &stored, nil
}

// GetTag returns the shared tag with the given name.
func (s *ItemStore) GetTag(ctx context.Context, name string) (*models.Tag, error) {
	var tag models.Tag
	err := s.DB.WithContext(ctx).Where("name = ?", models.NormalizeTagName(name)).First(&tag).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(security.ErrNotFound, "tag %q", name)
	}
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// TaggedItems lists the distinct items of one owner kind carrying the named
// tag, from any user. An empty kind lists items of every kind.
func (s *ItemStore) TaggedItems(ctx context.Context, name string, kind models.OwnerKind) ([]models.ItemRef, error) {
	if kind != "" && !kind.Valid() {
		return nil, errors.Wrapf(ErrInvalidInput, "owner kind %q", kind)
	}
	q := s.DB.WithContext(ctx).
		Table("item_tags it").
		Select("DISTINCT it.owner_kind AS kind, it.owner_id AS id").
		Joins("JOIN tags t ON t.id = it.tag_id").
		Where("t.name = ?", models.NormalizeTagName(name))
	if kind != "" {
		q = q.Where("it.owner_kind = ?", string(kind))
	}
	var rows []struct {
		Kind string
		ID   string
	}
	if err := q.Order("kind ASC").Order("id ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	refs := make([]models.ItemRef, 0, len(rows))
	for _, r := range rows {
		refs = append(refs, models.ItemRef{Kind: models.OwnerKind(r.Kind), ID: r.ID})
	}
	return refs, nil
}

// ListTags lists the item's tags from every user, oldest first.
func (s *ItemStore) ListTags(ctx context.Context, ref models.ItemRef) ([]models.ItemTag, error) {
	var tags []models.ItemTag
	err := s.DB.WithContext(ctx).
		Where("owner_kind = ? AND owner_id = ?", string(ref.Kind), ref.ID).
		Order("created_at ASC").Order("id ASC").
		Find(&tags).Error
	return tags, err
}

// RemoveTag deletes the user's tags with the given name (any value).
func (s *ItemStore) RemoveTag(ctx context.Context, ref models.ItemRef, userID, name string) (int64, error) {
	name, _, _, err := models.ParseTag(name)
	if err != nil {
		return 0, errors.Wrap(err, "remove tag")
	}
	res := s.DB.WithContext(ctx).
		Where("owner_kind = ? AND owner_id = ? AND user_id = ? AND user_tname = ?", string(ref.Kind), ref.ID, userID, name).
		Delete(&models.ItemTag{})
	return res.RowsAffected, res.Error
}
