package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/redvelvet/internal/models"
)

func TestTransactionManager_Begin(t *testing.T) {
	db := TestDB(t)
	manager := NewTransactionManager(db)
	ctx := context.Background()

	tx, err := manager.Begin(ctx)
	require.NoError(t, err)
	assert.NotNil(t, tx.GetDB())

	require.NoError(t, tx.Commit())
	assert.Error(t, tx.Commit())
	assert.Error(t, tx.Rollback())
}

func TestTransactionManager_BeginWithOptions(t *testing.T) {
	db := TestDB(t)
	manager := NewTransactionManager(db)

	tx, err := manager.BeginWithOptions(context.Background(), &TxOptions{
		ReadOnly: true,
		Timeout:  30 * time.Second,
	})
	require.NoError(t, err)
	_, hasDeadline := tx.Context().Deadline()
	assert.True(t, hasDeadline)

	require.NoError(t, tx.Rollback())
	assert.Error(t, tx.Rollback())
}

func TestManager_WithTransaction(t *testing.T) {
	db := TestDB(t)
	fx := SeedTestData(t, db)
	manager := NewManager(db)
	ctx := context.Background()

	_, err := manager.DeviceSession().Credit(ctx, fx.Device.ID, 20)
	require.NoError(t, err)

	t.Run("扣减与流水一起提交", func(t *testing.T) {
		err := manager.WithTransaction(ctx, func(tx *Transaction) error {
			after, err := tx.DeviceSession().Deduct(ctx, fx.Device.ID, 5)
			if err != nil {
				return err
			}
			return tx.Ledger().Create(ctx, &models.DiamondTransaction{
				OwnerType:     models.OwnerDevice,
				OwnerID:       fx.Device.ID,
				Type:          models.TxTypeMessage,
				Amount:        -5,
				BeforeBalance: after + 5,
				AfterBalance:  after,
			})
		})
		require.NoError(t, err)

		balance, err := manager.DeviceSession().Balance(ctx, fx.Device.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(15), balance)
	})

	t.Run("出错时整体回滚", func(t *testing.T) {
		boom := errors.New("boom")
		err := manager.WithTransaction(ctx, func(tx *Transaction) error {
			if _, err := tx.DeviceSession().Deduct(ctx, fx.Device.ID, 5); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		balance, err := manager.DeviceSession().Balance(ctx, fx.Device.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(15), balance)

		p := NewPagination(1, 10)
		entries, err := manager.Ledger().FindByOwner(ctx, models.OwnerDevice, fx.Device.ID, p)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("panic 时回滚", func(t *testing.T) {
		assert.Panics(t, func() {
			manager.WithTransaction(ctx, func(tx *Transaction) error {
				tx.DeviceSession().Deduct(ctx, fx.Device.ID, 5)
				panic("boom")
			})
		})

		balance, err := manager.DeviceSession().Balance(ctx, fx.Device.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(15), balance)
	})

	t.Run("事务内配置写入共享缓存", func(t *testing.T) {
		err := manager.WithTransaction(ctx, func(tx *Transaction) error {
			return tx.SystemConfig().Set(ctx, ConfigKeyImageCost, 11, "")
		})
		require.NoError(t, err)
		assert.Equal(t, int64(11), manager.SystemConfig().GetInt64(ctx, ConfigKeyImageCost, 9))
	})

	t.Run("只读事务", func(t *testing.T) {
		var balance int64
		err := manager.WithReadOnlyTransaction(ctx, func(tx *Transaction) error {
			var err error
			balance, err = tx.DeviceSession().Balance(ctx, fx.Device.ID)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, int64(15), balance)
	})
}
