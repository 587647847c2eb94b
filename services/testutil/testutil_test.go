package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   string `gorm:"primaryKey"`
	Name string
}

func TestNewTestDBIsolatedPerTest(t *testing.T) {
	t.Run("first", func(t *testing.T) {
		conn := NewTestDB(t, &widget{})
		require.NoError(t, conn.Create(&widget{ID: "w-1", Name: "first"}).Error)
	})

	t.Run("second", func(t *testing.T) {
		conn := NewTestDB(t, &widget{})
		var count int64
		require.NoError(t, conn.Model(&widget{}).Count(&count).Error)
		require.Zero(t, count)
	})
}

func TestNewTestRedis(t *testing.T) {
	rdb, mr := NewTestRedis(t)

	require.NoError(t, rdb.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	require.Equal(t, "v", got)
}
