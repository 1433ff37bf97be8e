package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/wfunc/redvelvet/internal/models"
	"gorm.io/gorm"
)

// CompanionFilter 伴侣列表过滤条件
type CompanionFilter struct {
	Gender         string // male、female，空或 both 表示不限
	IncludePremium bool
	AvailableOnly  bool
}

// CompanionRepository 伴侣目录仓储接口
type CompanionRepository interface {
	BaseRepository
	Create(ctx context.Context, companion *models.Companion) error
	FindByID(ctx context.Context, id uint) (*models.Companion, error)
	List(ctx context.Context, filter CompanionFilter) ([]*models.Companion, error)
	FreeIDsByGender(ctx context.Context, gender string, limit int) ([]uint, error)
	IncrPopularity(ctx context.Context, id uint) error
}

// companionRepo 伴侣目录仓储实现
type companionRepo struct {
	*BaseRepo
}

// NewCompanionRepository 创建伴侣目录仓储
func NewCompanionRepository(db *gorm.DB) CompanionRepository {
	return &companionRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 新增伴侣
func (r *companionRepo) Create(ctx context.Context, companion *models.Companion) error {
	return r.db.WithContext(ctx).Create(companion).Error
}

// FindByID 根据ID查找伴侣
func (r *companionRepo) FindByID(ctx context.Context, id uint) (*models.Companion, error) {
	var companion models.Companion
	err := r.db.WithContext(ctx).First(&companion, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("伴侣不存在: %w", ErrNotFound)
		}
		return nil, err
	}
	return &companion, nil
}

// List 按条件列出伴侣，按ID升序
func (r *companionRepo) List(ctx context.Context, filter CompanionFilter) ([]*models.Companion, error) {
	var companions []*models.Companion

	query := r.db.WithContext(ctx).Model(&models.Companion{})
	if filter.Gender == models.GenderMale || filter.Gender == models.GenderFemale {
		query = query.Where("gender = ?", filter.Gender)
	}
	if !filter.IncludePremium {
		query = query.Where("is_premium = ?", false)
	}
	if filter.AvailableOnly {
		query = query.Where("available = ?", true)
	}

	err := query.Order("id ASC").Find(&companions).Error
	return companions, err
}

// FreeIDsByGender 返回指定性别前 limit 个可用的免费伴侣ID
func (r *companionRepo) FreeIDsByGender(ctx context.Context, gender string, limit int) ([]uint, error) {
	var ids []uint
	if limit <= 0 {
		return ids, nil
	}

	err := r.db.WithContext(ctx).
		Model(&models.Companion{}).
		Where("gender = ? AND available = ? AND is_premium = ?", gender, true, false).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// IncrPopularity 热度加一
func (r *companionRepo) IncrPopularity(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Companion{}).
		Where("id = ?", id).
		UpdateColumn("popularity", gorm.Expr("popularity + ?", 1)).Error
}

// WithTx 使用事务
func (r *companionRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &companionRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
