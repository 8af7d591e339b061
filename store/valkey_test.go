package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/legit-games/dataset-iam/models"
	"github.com/legit-games/dataset-iam/permission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValkeyGrantsCache(t *testing.T) {
	addr := os.Getenv("TEST_VALKEY_ADDR")
	if addr == "" {
		t.Skip("TEST_VALKEY_ADDR not set")
	}
	ctx := context.Background()
	c, err := NewValkeyGrantsCache(addr, "datasec-test:")
	require.NoError(t, err)
	defer c.Close()

	id := models.LegitID()
	_, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	g := permission.Grants{"access": {}, "manage permissions": {"r1"}}
	require.NoError(t, c.Set(ctx, id, g, time.Minute))
	got, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, g, got)

	require.NoError(t, c.Invalidate(ctx, id))
	_, ok, err = c.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}
