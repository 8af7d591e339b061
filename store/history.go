package store

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/legit-games/dataset-iam/models"
	"github.com/legit-games/dataset-iam/security"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HistoryStore persists histories and their contents.
type HistoryStore struct{ DB *gorm.DB }

func NewHistoryStore(db *gorm.DB) *HistoryStore { return &HistoryStore{DB: db} }

// DefaultMaxInFilterLength caps the ids bound into one IN clause. Longer id
// filters are split into several queries whose rows are merged.
const DefaultMaxInFilterLength = 5000

// ContentsFilter narrows a history contents listing. Nil pointers and empty
// slices do not filter.
type ContentsFilter struct {
	Types             []models.ContentType
	IDs               []string
	Visible           *bool
	Deleted           *bool
	UpdatedSince      *time.Time
	Descending        bool
	Offset            int
	Limit             int
	MaxInFilterLength int
}

func (f ContentsFilter) wants(t models.ContentType) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, v := range f.Types {
		if v == t {
			return true
		}
	}
	return false
}

// query applies the filter to one content table. A nil ids slice leaves ids
// unfiltered.
func (f ContentsFilter) query(db *gorm.DB, historyID string, ids []string) *gorm.DB {
	db = db.Where("history_id = ?", historyID)
	if ids != nil {
		db = db.Where("id IN ?", ids)
	}
	if f.Visible != nil {
		db = db.Where("visible = ?", *f.Visible)
	}
	if f.Deleted != nil {
		db = db.Where("deleted = ?", *f.Deleted)
	}
	if f.UpdatedSince != nil {
		db = db.Where("update_time >= ?", *f.UpdatedSince)
	}
	return db
}

// idChunks splits the id filter into IN-sized batches. Without an id filter
// it yields a single nil batch.
func (f ContentsFilter) idChunks() [][]string {
	if len(f.IDs) == 0 {
		return [][]string{nil}
	}
	size := f.MaxInFilterLength
	if size <= 0 {
		size = DefaultMaxInFilterLength
	}
	ids := dedupeStrings(f.IDs)
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	return append(chunks, ids)
}

func (s *HistoryStore) CreateHistory(ctx context.Context, userID *string, name string) (*models.History, error) {
	h := models.History{ID: models.LegitID(), UserID: userID, Name: models.HistoryName(name), HidCounter: 1, UpdateTime: time.Now().UTC()}
	if err := s.DB.WithContext(ctx).Create(&h).Error; err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *HistoryStore) GetHistory(ctx context.Context, id string) (*models.History, error) {
	var h models.History
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(security.ErrNotFound, "history %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// RenameHistory stores a new name, bounded like CreateHistory's.
func (s *HistoryStore) RenameHistory(ctx context.Context, id, name string) error {
	res := s.DB.WithContext(ctx).Model(&models.History{}).Where("id = ?", id).
		Updates(map[string]interface{}{"name": models.HistoryName(name), "update_time": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(security.ErrNotFound, "history %s", id)
	}
	return nil
}

// nextHid locks the history row and reserves its next hid.
func nextHid(tx *gorm.DB, historyID string) (int, error) {
	var h models.History
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", historyID).First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, errors.Wrapf(security.ErrNotFound, "history %s", historyID)
	}
	if err != nil {
		return 0, err
	}
	hid := h.HidCounter
	err = tx.Model(&models.History{}).Where("id = ?", historyID).
		Updates(map[string]interface{}{"hid_counter": hid + 1, "update_time": time.Now().UTC()}).Error
	return hid, err
}

// AddDataset creates a dataset and places it in the history under the next hid.
func (s *HistoryStore) AddDataset(ctx context.Context, historyID, name, extension string) (*models.HistoryDatasetAssociation, error) {
	var hda models.HistoryDatasetAssociation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		hid, err := nextHid(tx, historyID)
		if err != nil {
			return err
		}
		d := models.NewDataset()
		if err := tx.Create(&d).Error; err != nil {
			return err
		}
		hda = models.HistoryDatasetAssociation{
			ID: models.LegitID(), HistoryID: historyID, DatasetID: d.ID, Hid: hid,
			Name: name, Extension: extension, Visible: true, UpdateTime: time.Now().UTC(),
		}
		return tx.Create(&hda).Error
	})
	if err != nil {
		return nil, err
	}
	return &hda, nil
}

// AddCollection creates a dataset collection from elements and places it in
// the history under the next hid. Element identifiers must be unique.
func (s *HistoryStore) AddCollection(ctx context.Context, historyID, name, collectionType string, elements ...models.ElementRef) (*models.HistoryDatasetCollectionAssociation, error) {
	if err := models.ValidateElements(elements); err != nil {
		return nil, errors.Mark(err, ErrInvalidInput)
	}
	var hdca models.HistoryDatasetCollectionAssociation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		hid, err := nextHid(tx, historyID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		c := models.DatasetCollection{
			ID: models.LegitID(), CollectionType: collectionType, Populated: true,
			ElementCount: len(elements), CreateTime: now,
		}
		if err := tx.Omit(clause.Associations).Create(&c).Error; err != nil {
			return err
		}
		if len(elements) > 0 {
			rows := make([]models.DatasetCollectionElement, 0, len(elements))
			for i, ref := range elements {
				rows = append(rows, models.NewElement(c.ID, i, ref))
			}
			if err := tx.Create(&rows).Error; err != nil {
				return errors.Wrapf(err, "elements of collection %s", c.ID)
			}
		}
		hdca = models.HistoryDatasetCollectionAssociation{
			ID: models.LegitID(), HistoryID: historyID, Hid: hid, Name: name, CollectionID: &c.ID,
			CollectionType: collectionType, Populated: true, Visible: true, UpdateTime: now,
		}
		return tx.Create(&hdca).Error
	})
	if err != nil {
		return nil, err
	}
	return &hdca, nil
}

// GetCollection loads the collection behind an HDCA with its elements in
// insertion order.
func (s *HistoryStore) GetCollection(ctx context.Context, hdcaID string) (*models.DatasetCollection, error) {
	db := s.DB.WithContext(ctx)
	var hdca models.HistoryDatasetCollectionAssociation
	err := db.Where("id = ?", hdcaID).First(&hdca).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(security.ErrNotFound, "collection association %s", hdcaID)
	}
	if err != nil {
		return nil, err
	}
	if hdca.CollectionID == nil {
		return nil, errors.Wrapf(security.ErrNotFound, "collection association %s has no collection", hdcaID)
	}
	var c models.DatasetCollection
	err = db.Preload("Elements", func(db *gorm.DB) *gorm.DB {
		return db.Order("element_index ASC")
	}).Where("id = ?", *hdca.CollectionID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(security.ErrNotFound, "collection %s", *hdca.CollectionID)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ContentFlags updates visibility and deletion of a content item.
type ContentFlags struct {
	Visible *bool
	Deleted *bool
}

func (s *HistoryStore) SetContentFlags(ctx context.Context, ct models.ContentType, id string, flags ContentFlags) error {
	fields := map[string]interface{}{"update_time": time.Now().UTC()}
	if flags.Visible != nil {
		fields["visible"] = *flags.Visible
	}
	if flags.Deleted != nil {
		fields["deleted"] = *flags.Deleted
	}
	var model interface{}
	switch ct {
	case models.ContentDataset:
		model = &models.HistoryDatasetAssociation{}
	case models.ContentDatasetCollection:
		model = &models.HistoryDatasetCollectionAssociation{}
	default:
		return errors.Wrapf(ErrInvalidInput, "content type %q", ct)
	}
	res := s.DB.WithContext(ctx).Model(model).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(security.ErrNotFound, "%s %s", ct, id)
	}
	return nil
}

// ListContents lists the datasets and collections of a history, filtered and
// ordered by hid.
func (s *HistoryStore) ListContents(ctx context.Context, historyID string, f ContentsFilter) ([]models.HistoryContentItem, error) {
	for _, t := range f.Types {
		if t != models.ContentDataset && t != models.ContentDatasetCollection {
			return nil, errors.Wrapf(ErrInvalidInput, "content type %q", t)
		}
	}
	if _, err := s.GetHistory(ctx, historyID); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	var hdas []models.HistoryDatasetAssociation
	var hdcas []models.HistoryDatasetCollectionAssociation
	for _, ids := range f.idChunks() {
		if f.wants(models.ContentDataset) {
			var part []models.HistoryDatasetAssociation
			if err := f.query(db, historyID, ids).Find(&part).Error; err != nil {
				return nil, err
			}
			hdas = append(hdas, part...)
		}
		if f.wants(models.ContentDatasetCollection) {
			var part []models.HistoryDatasetCollectionAssociation
			if err := f.query(db, historyID, ids).Find(&part).Error; err != nil {
				return nil, err
			}
			hdcas = append(hdcas, part...)
		}
	}
	return mergeContents(hdas, hdcas, f), nil
}

func mergeContents(hdas []models.HistoryDatasetAssociation, hdcas []models.HistoryDatasetCollectionAssociation, f ContentsFilter) []models.HistoryContentItem {
	items := make([]models.HistoryContentItem, 0, len(hdas)+len(hdcas))
	for _, h := range hdas {
		items = append(items, h.ContentItem())
	}
	for _, h := range hdcas {
		items = append(items, h.ContentItem())
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Hid != items[j].Hid {
			if f.Descending {
				return items[i].Hid > items[j].Hid
			}
			return items[i].Hid < items[j].Hid
		}
		return items[i].ContentType < items[j].ContentType
	})
	if f.Offset > 0 {
		if f.Offset >= len(items) {
			return []models.HistoryContentItem{}
		}
		items = items[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(items) {
		items = items[:f.Limit]
	}
	return items
}
