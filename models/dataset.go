package models

import (
	"time"

	"github.com/google/uuid"
)

// DatasetState mirrors the lifecycle of a dataset's underlying file.
type DatasetState string

const (
	DatasetStateNew     DatasetState = "new"
	DatasetStateQueued  DatasetState = "queued"
	DatasetStateRunning DatasetState = "running"
	DatasetStateOK      DatasetState = "ok"
	DatasetStateError   DatasetState = "error"
)

// Dataset is the protected resource.
type Dataset struct {
	ID         string       `gorm:"column:id;primaryKey" json:"id"`
	UUID       string       `gorm:"column:uuid;uniqueIndex" json:"uuid"`
	State      DatasetState `gorm:"column:state" json:"state"`
	FileSize   int64        `gorm:"column:file_size" json:"file_size"`
	Deleted    bool         `gorm:"column:deleted" json:"deleted"`
	Purged     bool         `gorm:"column:purged" json:"purged"`
	CreateTime time.Time    `gorm:"column:create_time" json:"create_time"`
}

func (Dataset) TableName() string { return "datasets" }

// NewDataset returns an unsaved dataset in the "new" state.
func NewDataset() Dataset {
	return Dataset{
		ID:         LegitID(),
		UUID:       uuid.NewString(),
		State:      DatasetStateNew,
		CreateTime: time.Now().UTC(),
	}
}

// DatasetPermission grants one action on a dataset to one role.
type DatasetPermission struct {
	ID        string    `gorm:"column:id;primaryKey"`
	DatasetID string    `gorm:"column:dataset_id;index"`
	Action    string    `gorm:"column:action"`
	RoleID    string    `gorm:"column:role_id;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (DatasetPermission) TableName() string { return "dataset_permissions" }

// DatasetRestriction marks an action kind as restricted on a dataset. With no
// matching DatasetPermission rows the action is restricted to nobody.
type DatasetRestriction struct {
	DatasetID string    `gorm:"column:dataset_id;primaryKey"`
	Action    string    `gorm:"column:action;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (DatasetRestriction) TableName() string { return "dataset_restrictions" }
