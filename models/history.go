package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// HistoryNameMaxLen bounds stored history names, in characters.
const HistoryNameMaxLen = 255

// DefaultHistoryName is used when a history is created without a name.
const DefaultHistoryName = "Unnamed history"

// HistoryName trims name, substitutes the default for blank names and cuts
// the result to HistoryNameMaxLen characters.
func HistoryName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultHistoryName
	}
	if utf8.RuneCountInString(name) <= HistoryNameMaxLen {
		return name
	}
	return string([]rune(name)[:HistoryNameMaxLen])
}

// History is an ordered container of datasets and dataset collections.
type History struct {
	ID         string    `gorm:"column:id;primaryKey" json:"id"`
	UserID     *string   `gorm:"column:user_id;index" json:"user_id,omitempty"`
	Name       string    `gorm:"column:name" json:"name"`
	HidCounter int       `gorm:"column:hid_counter" json:"hid_counter"`
	Deleted    bool      `gorm:"column:deleted" json:"deleted"`
	Purged     bool      `gorm:"column:purged" json:"purged"`
	Published  bool      `gorm:"column:published" json:"published"`
	Importable bool      `gorm:"column:importable" json:"importable"`
	Slug       *string   `gorm:"column:slug" json:"slug,omitempty"`
	UpdateTime time.Time `gorm:"column:update_time" json:"update_time"`
}

func (History) TableName() string { return "histories" }

// HistoryDatasetAssociation places a dataset in a history under a hid.
type HistoryDatasetAssociation struct {
	ID         string    `gorm:"column:id;primaryKey" json:"id"`
	HistoryID  string    `gorm:"column:history_id;index" json:"history_id"`
	DatasetID  string    `gorm:"column:dataset_id;index" json:"dataset_id"`
	Hid        int       `gorm:"column:hid" json:"hid"`
	Name       string    `gorm:"column:name" json:"name"`
	Extension  string    `gorm:"column:extension" json:"extension"`
	Visible    bool      `gorm:"column:visible" json:"visible"`
	Deleted    bool      `gorm:"column:deleted" json:"deleted"`
	Purged     bool      `gorm:"column:purged" json:"purged"`
	UpdateTime time.Time `gorm:"column:update_time" json:"update_time"`
}

func (HistoryDatasetAssociation) TableName() string { return "history_dataset_associations" }

// HistoryDatasetCollectionAssociation places a dataset collection in a history.
type HistoryDatasetCollectionAssociation struct {
	ID             string    `gorm:"column:id;primaryKey" json:"id"`
	HistoryID      string    `gorm:"column:history_id;index" json:"history_id"`
	Hid            int       `gorm:"column:hid" json:"hid"`
	Name           string    `gorm:"column:name" json:"name"`
	CollectionID   *string   `gorm:"column:collection_id" json:"collection_id,omitempty"`
	CollectionType string    `gorm:"column:collection_type" json:"collection_type"`
	Populated      bool      `gorm:"column:populated" json:"populated"`
	Visible        bool      `gorm:"column:visible" json:"visible"`
	Deleted        bool      `gorm:"column:deleted" json:"deleted"`
	UpdateTime     time.Time `gorm:"column:update_time" json:"update_time"`
}

func (HistoryDatasetCollectionAssociation) TableName() string {
	return "history_dataset_collection_associations"
}

// ContentType distinguishes the two kinds of history contents.
type ContentType string

const (
	ContentDataset           ContentType = "dataset"
	ContentDatasetCollection ContentType = "dataset_collection"
)

// HistoryContentItem is one row of a history contents listing.
type HistoryContentItem struct {
	ID          string      `json:"id"`
	HistoryID   string      `json:"history_id"`
	Hid         int         `json:"hid"`
	Name        string      `json:"name"`
	ContentType ContentType `json:"history_content_type"`
	Visible     bool        `json:"visible"`
	Deleted     bool        `json:"deleted"`
	UpdateTime  time.Time   `json:"update_time"`
}

// ContentItem converts an HDA into a listing row.
func (h HistoryDatasetAssociation) ContentItem() HistoryContentItem {
	return HistoryContentItem{
		ID: h.ID, HistoryID: h.HistoryID, Hid: h.Hid, Name: h.Name,
		ContentType: ContentDataset, Visible: h.Visible, Deleted: h.Deleted, UpdateTime: h.UpdateTime,
	}
}

// ContentItem converts an HDCA into a listing row.
func (h HistoryDatasetCollectionAssociation) ContentItem() HistoryContentItem {
	return HistoryContentItem{
		ID: h.ID, HistoryID: h.HistoryID, Hid: h.Hid, Name: h.Name,
		ContentType: ContentDatasetCollection, Visible: h.Visible, Deleted: h.Deleted, UpdateTime: h.UpdateTime,
	}
}
