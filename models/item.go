package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// OwnerKind tags the entity kind an annotation, rating or tag is attached to.
type OwnerKind string

const (
	OwnerHistory        OwnerKind = "history"
	OwnerHDA            OwnerKind = "hda"
	OwnerHDCA           OwnerKind = "hdca"
	OwnerPage           OwnerKind = "page"
	OwnerVisualization  OwnerKind = "visualization"
	OwnerStoredWorkflow OwnerKind = "stored_workflow"
	OwnerLibraryDataset OwnerKind = "library_dataset"
)

func (k OwnerKind) Valid() bool {
	switch k {
	case OwnerHistory, OwnerHDA, OwnerHDCA, OwnerPage, OwnerVisualization, OwnerStoredWorkflow, OwnerLibraryDataset:
		return true
	}
	return false
}

var (
	ErrInvalidOwner  = errors.New("item association requires a valid owner kind and owner id")
	ErrMissingUser   = errors.New("item association requires a user id")
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	ErrEmptyTag      = errors.New("tag name must not be empty")
)

// ItemRef identifies the owner of an item association.
type ItemRef struct {
	Kind OwnerKind
	ID   string
}

func (r ItemRef) String() string { return string(r.Kind) + ":" + r.ID }

func (r ItemRef) validate(userID string) error {
	if !r.Kind.Valid() || strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: %s", ErrInvalidOwner, r)
	}
	if strings.TrimSpace(userID) == "" {
		return ErrMissingUser
	}
	return nil
}

// ItemAnnotation is a free-text note a user attaches to an item.
type ItemAnnotation struct {
	ID         string    `gorm:"column:id;primaryKey" json:"id"`
	OwnerKind  OwnerKind `gorm:"column:owner_kind" json:"owner_kind"`
	OwnerID    string    `gorm:"column:owner_id" json:"owner_id"`
	UserID     string    `gorm:"column:user_id" json:"user_id"`
	Annotation string    `gorm:"column:annotation" json:"annotation"`
	UpdateTime time.Time `gorm:"column:update_time" json:"update_time"`
}

func (ItemAnnotation) TableName() string { return "item_annotations" }

func (a ItemAnnotation) Validate() error {
	return ItemRef{a.OwnerKind, a.OwnerID}.validate(a.UserID)
}

// ItemRating is a user's 1..5 score for an item.
type ItemRating struct {
	ID         string    `gorm:"column:id;primaryKey" json:"id"`
	OwnerKind  OwnerKind `gorm:"column:owner_kind" json:"owner_kind"`
	OwnerID    string    `gorm:"column:owner_id" json:"owner_id"`
	UserID     string    `gorm:"column:user_id" json:"user_id"`
	Rating     int       `gorm:"column:rating" json:"rating"`
	UpdateTime time.Time `gorm:"column:update_time" json:"update_time"`
}

func (ItemRating) TableName() string { return "item_ratings" }

func (r ItemRating) Validate() error {
	if err := (ItemRef{r.OwnerKind, r.OwnerID}).validate(r.UserID); err != nil {
		return err
	}
	if r.Rating < 1 || r.Rating > 5 {
		return ErrInvalidRating
	}
	return nil
}

// Tag is the shared vocabulary entry behind every ItemTag with the same name.
type Tag struct {
	ID   string `gorm:"column:id;primaryKey" json:"id"`
	Name string `gorm:"column:name;uniqueIndex" json:"name"`
}

func (Tag) TableName() string { return "tags" }

// NormalizeTagName lower-cases and trims a tag name.
func NormalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ItemTag is a name[:value] label a user attaches to an item.
type ItemTag struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	OwnerKind OwnerKind `gorm:"column:owner_kind" json:"owner_kind"`
	OwnerID   string    `gorm:"column:owner_id" json:"owner_id"`
	UserID    string    `gorm:"column:user_id" json:"user_id"`
	TagID     *string   `gorm:"column:tag_id" json:"tag_id,omitempty"`
	UserTname string    `gorm:"column:user_tname" json:"user_tname"`
	UserValue *string   `gorm:"column:user_value" json:"user_value,omitempty"`
	Value     *string   `gorm:"column:value" json:"value,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (ItemTag) TableName() string { return "item_tags" }

func (t ItemTag) Validate() error {
	if err := (ItemRef{t.OwnerKind, t.OwnerID}).validate(t.UserID); err != nil {
		return err
	}
	if t.UserTname == "" {
		return ErrEmptyTag
	}
	return nil
}

// String renders the tag as the user typed it.
func (t ItemTag) String() string {
	if t.UserValue == nil {
		return t.UserTname
	}
	return t.UserTname + ":" + *t.UserValue
}

// ParseTag splits "name:value" on the first colon. The name is lower-cased;
// the user's value is kept verbatim and a lower-cased copy goes into Value.
// A leading '#' is shorthand for the "name" tag.
func ParseTag(raw string) (name string, userValue, value *string, err error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "#") {
		raw = "name:" + strings.TrimPrefix(raw, "#")
	}
	n, v, hasValue := strings.Cut(raw, ":")
	name = NormalizeTagName(n)
	if name == "" {
		return "", nil, nil, ErrEmptyTag
	}
	if hasValue {
		uv := strings.TrimSpace(v)
		lv := strings.ToLower(uv)
		userValue, value = &uv, &lv
	}
	return name, userValue, value, nil
}
