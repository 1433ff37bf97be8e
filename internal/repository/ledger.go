package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/redvelvet/internal/models"
	"gorm.io/gorm"
)

// NewOrderNo 生成流水号，如 MESSAGE-3f0c...
func NewOrderNo(txType string) string {
	return strings.ToUpper(txType) + "-" + uuid.NewString()
}

// LedgerStats 流水汇总
type LedgerStats struct {
	TotalIn    int64 `json:"total_in"`
	TotalOut   int64 `json:"total_out"`
	NetAmount  int64 `json:"net_amount"`
	EntryCount int64 `json:"entry_count"`
}

// LedgerRepository 钻石流水仓储接口
type LedgerRepository interface {
	BaseRepository
	Create(ctx context.Context, entry *models.DiamondTransaction) error
	FindByOrderNo(ctx context.Context, orderNo string) (*models.DiamondTransaction, error)
	FindByOwner(ctx context.Context, ownerType string, ownerID uint, pagination *Pagination) ([]*models.DiamondTransaction, error)
	FindByRef(ctx context.Context, refType, refID string) ([]*models.DiamondTransaction, error)
	SumByOwner(ctx context.Context, ownerType string, ownerID uint) (int64, error)
	Stats(ctx context.Context, ownerType string, ownerID uint, since time.Time) (*LedgerStats, error)
}

// ledgerRepo 钻石流水仓储实现
type ledgerRepo struct {
	*BaseRepo
}

// NewLedgerRepository 创建钻石流水仓储
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 写入流水，未指定流水号时自动生成
func (r *ledgerRepo) Create(ctx context.Context, entry *models.DiamondTransaction) error {
	if entry.OrderNo == "" {
		entry.OrderNo = NewOrderNo(entry.Type)
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindByOrderNo 根据流水号查找
func (r *ledgerRepo) FindByOrderNo(ctx context.Context, orderNo string) (*models.DiamondTransaction, error) {
	var entry models.DiamondTransaction
	err := r.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("流水不存在: %w", ErrNotFound)
		}
		return nil, err
	}
	return &entry, nil
}

// FindByOwner 分页查询归属下的流水，最新的在前
func (r *ledgerRepo) FindByOwner(ctx context.Context, ownerType string, ownerID uint, pagination *Pagination) ([]*models.DiamondTransaction, error) {
	var entries []*models.DiamondTransaction
	query := r.db.WithContext(ctx).
		Model(&models.DiamondTransaction{}).
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		Session(&gorm.Session{})

	if err := query.Count(&pagination.Total).Error; err != nil {
		return nil, err
	}

	err := query.Scopes(Paginate(pagination)).
		Order("created_at DESC").
		Order("id DESC").
		Find(&entries).Error

	return entries, err
}

// FindByRef 根据关联对象查找流水
func (r *ledgerRepo) FindByRef(ctx context.Context, refType, refID string) ([]*models.DiamondTransaction, error) {
	var entries []*models.DiamondTransaction
	err := r.db.WithContext(ctx).
		Where("ref_type = ? AND ref_id = ?", refType, refID).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

// SumByOwner 流水金额合计，用于对账
func (r *ledgerRepo) SumByOwner(ctx context.Context, ownerType string, ownerID uint) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&models.DiamondTransaction{}).
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}

// Stats 统计指定时间之后的收支
func (r *ledgerRepo) Stats(ctx context.Context, ownerType string, ownerID uint, since time.Time) (*LedgerStats, error) {
	stats := &LedgerStats{}
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).
			Model(&models.DiamondTransaction{}).
			Where("owner_type = ? AND owner_id = ? AND created_at >= ?", ownerType, ownerID, since)
	}

	if err := base().Where("amount > 0").Select("COALESCE(SUM(amount), 0)").Scan(&stats.TotalIn).Error; err != nil {
		return nil, err
	}
	if err := base().Where("amount < 0").Select("COALESCE(SUM(-amount), 0)").Scan(&stats.TotalOut).Error; err != nil {
		return nil, err
	}
	if err := base().Count(&stats.EntryCount).Error; err != nil {
		return nil, err
	}
	stats.NetAmount = stats.TotalIn - stats.TotalOut

	return stats, nil
}

// WithTx 使用事务
func (r *ledgerRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &ledgerRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
