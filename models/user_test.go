package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	u := User{ID: LegitID(), Email: "a@example.org", PasswordHash: hash}
	assert.True(t, u.CheckPassword("s3cret"))
	assert.False(t, u.CheckPassword("wrong"))
	assert.False(t, User{}.CheckPassword("s3cret"))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.org", NormalizeEmail("  Alice@Example.ORG "))
}

func TestPrivateRoleFor(t *testing.T) {
	u := User{ID: "u-1", Email: "bob@example.org"}
	r := PrivateRoleFor(u)
	assert.Equal(t, RoleTypePrivate, r.Type)
	assert.Equal(t, "bob@example.org", r.Name)
	assert.Equal(t, "Private Role for bob@example.org", r.Description)
	require.NotNil(t, r.OwnerUserID)
	assert.Equal(t, "u-1", *r.OwnerUserID)
	assert.Len(t, r.ID, 32)
}

func TestRoleTypeValid(t *testing.T) {
	assert.True(t, RoleTypePrivate.Valid())
	assert.True(t, RoleTypeShared.Valid())
	assert.False(t, RoleType("GROUP").Valid())
}

func TestItemAssociationValidation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"annotation ok", ItemAnnotation{OwnerKind: OwnerHistory, OwnerID: "h1", UserID: "u1"}.Validate(), nil},
		{"annotation bad kind", ItemAnnotation{OwnerKind: "job", OwnerID: "h1", UserID: "u1"}.Validate(), ErrInvalidOwner},
		{"annotation no owner", ItemAnnotation{OwnerKind: OwnerPage, UserID: "u1"}.Validate(), ErrInvalidOwner},
		{"annotation no user", ItemAnnotation{OwnerKind: OwnerPage, OwnerID: "p1"}.Validate(), ErrMissingUser},
		{"rating ok", ItemRating{OwnerKind: OwnerStoredWorkflow, OwnerID: "w1", UserID: "u1", Rating: 5}.Validate(), nil},
		{"rating out of range", ItemRating{OwnerKind: OwnerStoredWorkflow, OwnerID: "w1", UserID: "u1", Rating: 6}.Validate(), ErrInvalidRating},
		{"tag ok", ItemTag{OwnerKind: OwnerHDA, OwnerID: "d1", UserID: "u1", UserTname: "group"}.Validate(), nil},
		{"tag empty", ItemTag{OwnerKind: OwnerHDA, OwnerID: "d1", UserID: "u1"}.Validate(), ErrEmptyTag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.want == nil {
				assert.NoError(t, tt.err)
				return
			}
			assert.True(t, errors.Is(tt.err, tt.want), "got %v, want %v", tt.err, tt.want)
		})
	}
}

func TestParseTag(t *testing.T) {
	name, uv, v, err := ParseTag(" Group:Treated ")
	require.NoError(t, err)
	assert.Equal(t, "group", name)
	require.NotNil(t, uv)
	assert.Equal(t, "Treated", *uv)
	assert.Equal(t, "treated", *v)

	name, uv, v, err = ParseTag("#Sample1")
	require.NoError(t, err)
	assert.Equal(t, "name", name)
	assert.Equal(t, "Sample1", *uv)
	assert.Equal(t, "sample1", *v)

	name, uv, v, err = ParseTag("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", name)
	assert.Nil(t, uv)
	assert.Nil(t, v)

	_, _, _, err = ParseTag(":value")
	assert.ErrorIs(t, err, ErrEmptyTag)

	tag := ItemTag{UserTname: "group", UserValue: func() *string { s := "Treated"; return &s }()}
	assert.Equal(t, "group:Treated", tag.String())
}

func TestContentItemConversion(t *testing.T) {
	hda := HistoryDatasetAssociation{ID: "a", HistoryID: "h", Hid: 3, Name: "reads.fq", Visible: true}
	item := hda.ContentItem()
	assert.Equal(t, ContentDataset, item.ContentType)
	assert.Equal(t, 3, item.Hid)

	hdca := HistoryDatasetCollectionAssociation{ID: "c", HistoryID: "h", Hid: 4, Deleted: true}
	citem := hdca.ContentItem()
	assert.Equal(t, ContentDatasetCollection, citem.ContentType)
	assert.True(t, citem.Deleted)
}
