package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidElement = errors.New("invalid collection element")

// DatasetCollection is an ordered group of elements, each addressed by a
// unique identifier ("left"/"right" for a pair, sample names for a list).
type DatasetCollection struct {
	ID             string                     `gorm:"column:id;primaryKey" json:"id"`
	CollectionType string                     `gorm:"column:collection_type" json:"collection_type"`
	Populated      bool                       `gorm:"column:populated" json:"populated"`
	ElementCount   int                        `gorm:"column:element_count" json:"element_count"`
	CreateTime     time.Time                  `gorm:"column:create_time" json:"create_time"`
	Elements       []DatasetCollectionElement `gorm:"foreignKey:CollectionID;references:ID" json:"elements,omitempty"`
}

func (DatasetCollection) TableName() string { return "dataset_collections" }

// Element returns the element stored under identifier.
func (c DatasetCollection) Element(identifier string) (DatasetCollectionElement, bool) {
	for _, e := range c.Elements {
		if e.ElementIdentifier == identifier {
			return e, true
		}
	}
	return DatasetCollectionElement{}, false
}

// DatasetCollectionElement points at either an HDA or a nested collection.
type DatasetCollectionElement struct {
	ID                string  `gorm:"column:id;primaryKey" json:"id"`
	CollectionID      string  `gorm:"column:collection_id;index" json:"collection_id"`
	ElementIndex      int     `gorm:"column:element_index" json:"element_index"`
	ElementIdentifier string  `gorm:"column:element_identifier" json:"element_identifier"`
	HDAID             *string `gorm:"column:hda_id" json:"hda_id,omitempty"`
	ChildCollectionID *string `gorm:"column:child_collection_id" json:"child_collection_id,omitempty"`
}

func (DatasetCollectionElement) TableName() string { return "dataset_collection_elements" }

// ElementRef names the target of a new collection element. Exactly one of
// HDAID and ChildCollectionID is set.
type ElementRef struct {
	Identifier        string
	HDAID             string
	ChildCollectionID string
}

// ValidateElements checks identifiers are present and unique and that every
// element has exactly one target.
func ValidateElements(refs []ElementRef) error {
	seen := make(map[string]struct{}, len(refs))
	for i, r := range refs {
		id := strings.TrimSpace(r.Identifier)
		if id == "" {
			return fmt.Errorf("%w: element %d has no identifier", ErrInvalidElement, i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate identifier %q", ErrInvalidElement, id)
		}
		seen[id] = struct{}{}
		if (r.HDAID == "") == (r.ChildCollectionID == "") {
			return fmt.Errorf("%w: element %q needs exactly one target", ErrInvalidElement, id)
		}
	}
	return nil
}

// NewElement builds the stored element for ref at position index.
func NewElement(collectionID string, index int, ref ElementRef) DatasetCollectionElement {
	e := DatasetCollectionElement{
		ID:                LegitID(),
		CollectionID:      collectionID,
		ElementIndex:      index,
		ElementIdentifier: strings.TrimSpace(ref.Identifier),
	}
	if ref.HDAID != "" {
		hda := ref.HDAID
		e.HDAID = &hda
	} else {
		child := ref.ChildCollectionID
		e.ChildCollectionID = &child
	}
	return e
}
