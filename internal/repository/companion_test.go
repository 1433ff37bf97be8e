package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/redvelvet/internal/models"
)

func TestCompanionRepository(t *testing.T) {
	db := TestDB(t)
	repo := NewCompanionRepository(db)
	ctx := context.Background()

	t.Run("按性别取前N个免费伴侣", func(t *testing.T) {
		female, err := repo.FreeIDsByGender(ctx, models.GenderFemale, 3)
		require.NoError(t, err)
		assert.Equal(t, []uint{1, 3, 4}, female)

		male, err := repo.FreeIDsByGender(ctx, models.GenderMale, 2)
		require.NoError(t, err)
		assert.Equal(t, []uint{2, 5}, male)

		none, err := repo.FreeIDsByGender(ctx, models.GenderMale, 0)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("下架后不再计入", func(t *testing.T) {
		require.NoError(t, db.Model(&models.Companion{}).Where("id = ?", 3).Update("available", false).Error)
		female, err := repo.FreeIDsByGender(ctx, models.GenderFemale, 3)
		require.NoError(t, err)
		assert.Equal(t, []uint{1, 4, 6}, female)
		require.NoError(t, db.Model(&models.Companion{}).Where("id = ?", 3).Update("available", true).Error)
	})

	t.Run("列表过滤", func(t *testing.T) {
		all, err := repo.List(ctx, CompanionFilter{IncludePremium: true})
		require.NoError(t, err)
		assert.Len(t, all, 8)

		free, err := repo.List(ctx, CompanionFilter{Gender: models.GenderBoth, AvailableOnly: true})
		require.NoError(t, err)
		assert.Len(t, free, 7)

		males, err := repo.List(ctx, CompanionFilter{Gender: models.GenderMale})
		require.NoError(t, err)
		assert.Len(t, males, 2)
	})

	t.Run("查找与热度", func(t *testing.T) {
		require.NoError(t, repo.IncrPopularity(ctx, 8))
		c, err := repo.FindByID(ctx, 8)
		require.NoError(t, err)
		assert.Equal(t, "Ria", c.Name)
		assert.True(t, c.IsPremium)
		assert.Equal(t, 1, c.Popularity)

		_, err = repo.FindByID(ctx, 99)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestChatMessageRepository(t *testing.T) {
	db := TestDB(t)
	fx := SeedTestData(t, db)
	repo := NewChatMessageRepository(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	for i, content := range []string{"hi", "hello", "how are you", "fine"} {
		sender := models.SenderUser
		if i%2 == 1 {
			sender = models.SenderCompanion
		}
		require.NoError(t, repo.Create(ctx, &models.ChatMessage{
			OwnerType:   models.OwnerDevice,
			OwnerID:     fx.Device.ID,
			CompanionID: 1,
			Content:     content,
			Sender:      sender,
			SentAt:      base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, repo.BatchCreate(ctx, []*models.ChatMessage{
		{OwnerType: models.OwnerDevice, OwnerID: fx.Device.ID, CompanionID: 2, Content: "yo", Sender: models.SenderUser},
		{OwnerType: models.OwnerUser, OwnerID: fx.User.ID, CompanionID: 1, Content: "mine", Sender: models.SenderUser},
	}))

	t.Run("最近N条按时间正序", func(t *testing.T) {
		msgs, err := repo.FindRecent(ctx, models.OwnerDevice, fx.Device.ID, 1, 2)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "how are you", msgs[0].Content)
		assert.Equal(t, "fine", msgs[1].Content)

		all, err := repo.FindRecent(ctx, models.OwnerDevice, fx.Device.ID, 1, 0)
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})

	t.Run("归属隔离", func(t *testing.T) {
		msgs, err := repo.FindRecent(ctx, models.OwnerUser, fx.User.ID, 1, 10)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "mine", msgs[0].Content)
	})

	t.Run("按伴侣清空", func(t *testing.T) {
		n, err := repo.DeleteByOwnerCompanion(ctx, models.OwnerDevice, fx.Device.ID, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("清空全部", func(t *testing.T) {
		n, err := repo.DeleteByOwner(ctx, models.OwnerDevice, fx.Device.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)

		count, err := repo.CountByOwner(ctx, models.OwnerUser, fx.User.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}
