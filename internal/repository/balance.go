package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// 设备会话与用户偏好共用 message_diamonds 列，余额变动都走这里的条件更新

func deductBalance(ctx context.Context, db *gorm.DB, model interface{}, keyColumn string, key uint, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	result := db.WithContext(ctx).
		Model(model).
		Where(keyColumn+" = ? AND message_diamonds >= ?", key, amount).
		Update("message_diamonds", gorm.Expr("message_diamonds - ?", amount))
	if result.Error != nil {
		return 0, result.Error
	}

	if result.RowsAffected == 0 {
		// 区分记录不存在与余额不足
		if _, err := readBalance(ctx, db, model, keyColumn, key); err != nil {
			return 0, err
		}
		return 0, ErrInsufficientBalance
	}

	return readBalance(ctx, db, model, keyColumn, key)
}

func creditBalance(ctx context.Context, db *gorm.DB, model interface{}, keyColumn string, key uint, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	result := db.WithContext(ctx).
		Model(model).
		Where(keyColumn+" = ?", key).
		Update("message_diamonds", gorm.Expr("message_diamonds + ?", amount))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, fmt.Errorf("余额记录不存在: %w", ErrNotFound)
	}

	return readBalance(ctx, db, model, keyColumn, key)
}

func readBalance(ctx context.Context, db *gorm.DB, model interface{}, keyColumn string, key uint) (int64, error) {
	var balances []int64
	err := db.WithContext(ctx).
		Model(model).
		Where(keyColumn+" = ?", key).
		Pluck("message_diamonds", &balances).Error
	if err != nil {
		return 0, err
	}
	if len(balances) == 0 {
		return 0, fmt.Errorf("余额记录不存在: %w", ErrNotFound)
	}
	return balances[0], nil
}
