package store

import (
	"testing"

	"github.com/legit-games/dataset-iam/models"
	"github.com/stretchr/testify/assert"
)

func TestMergeContents(t *testing.T) {
	hdas := []models.HistoryDatasetAssociation{
		{ID: "a3", Hid: 3, Name: "third"},
		{ID: "a1", Hid: 1, Name: "first"},
	}
	hdcas := []models.HistoryDatasetCollectionAssociation{
		{ID: "c2", Hid: 2, Name: "second"},
	}

	items := mergeContents(hdas, hdcas, ContentsFilter{})
	if assert.Len(t, items, 3) {
		assert.Equal(t, []int{1, 2, 3}, []int{items[0].Hid, items[1].Hid, items[2].Hid})
		assert.Equal(t, models.ContentDatasetCollection, items[1].ContentType)
	}

	desc := mergeContents(hdas, hdcas, ContentsFilter{Descending: true})
	assert.Equal(t, 3, desc[0].Hid)

	page := mergeContents(hdas, hdcas, ContentsFilter{Offset: 1, Limit: 1})
	if assert.Len(t, page, 1) {
		assert.Equal(t, "c2", page[0].ID)
	}

	assert.Empty(t, mergeContents(hdas, hdcas, ContentsFilter{Offset: 10}))
}

func TestContentsFilterWants(t *testing.T) {
	assert.True(t, ContentsFilter{}.wants(models.ContentDataset))
	f := ContentsFilter{Types: []models.ContentType{models.ContentDatasetCollection}}
	assert.False(t, f.wants(models.ContentDataset))
	assert.True(t, f.wants(models.ContentDatasetCollection))
}

func TestContentsFilterIDChunks(t *testing.T) {
	assert.Equal(t, [][]string{nil}, ContentsFilter{}.idChunks())

	f := ContentsFilter{IDs: []string{"a", "b", "a", "c"}, MaxInFilterLength: 2}
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, f.idChunks())

	f.MaxInFilterLength = 1
	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, f.idChunks())

	f.MaxInFilterLength = 0
	assert.Equal(t, [][]string{{"a", "b", "c"}}, f.idChunks())
}
