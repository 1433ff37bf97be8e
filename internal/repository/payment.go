package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/wfunc/redvelvet/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentRepository 支付记录仓储接口
type PaymentRepository interface {
	BaseRepository
	CreateIfAbsent(ctx context.Context, payment *models.Payment) (bool, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Payment, error)
	FindByOwner(ctx context.Context, ownerType string, ownerID uint, pagination *Pagination) ([]*models.Payment, error)
}

// paymentRepo 支付记录仓储实现
type paymentRepo struct {
	*BaseRepo
}

// NewPaymentRepository 创建支付记录仓储
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// CreateIfAbsent 按 payment_id 插入，已存在时不写入并返回 false
func (r *paymentRepo) CreateIfAbsent(ctx context.Context, payment *models.Payment) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_id"}},
			DoNothing: true,
		}).
		Create(payment)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindByPaymentID 根据支付ID查找
func (r *paymentRepo) FindByPaymentID(ctx context.Context, paymentID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where(&models.Payment{PaymentID: paymentID}).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("支付记录不存在: %w", ErrNotFound)
		}
		return nil, err
	}
	return &payment, nil
}

// FindByOwner 分页查询支付记录
func (r *paymentRepo) FindByOwner(ctx context.Context, ownerType string, ownerID uint, pagination *Pagination) ([]*models.Payment, error) {
	var payments []*models.Payment
	query := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		Session(&gorm.Session{})

	if err := query.Count(&pagination.Total).Error; err != nil {
		return nil, err
	}

	err := query.Scopes(Paginate(pagination)).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

// WithTx 使用事务
func (r *paymentRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &paymentRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
