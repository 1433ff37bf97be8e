package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/wfunc/redvelvet/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CompanionSettingsRepository 伴侣设置仓储接口
type CompanionSettingsRepository interface {
	BaseRepository
	Find(ctx context.Context, ownerType string, ownerID, companionID uint) (*models.CompanionSettings, error)
	Upsert(ctx context.Context, settings *models.CompanionSettings) error
}

// companionSettingsRepo 伴侣设置仓储实现
type companionSettingsRepo struct {
	*BaseRepo
}

// NewCompanionSettingsRepository 创建伴侣设置仓储
func NewCompanionSettingsRepository(db *gorm.DB) CompanionSettingsRepository {
	return &companionSettingsRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Find 查找归属对某个伴侣的设置
func (r *companionSettingsRepo) Find(ctx context.Context, ownerType string, ownerID, companionID uint) (*models.CompanionSettings, error) {
	var settings models.CompanionSettings
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ? AND companion_id = ?", ownerType, ownerID, companionID).
		First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("伴侣设置不存在: %w", ErrNotFound)
		}
		return nil, err
	}
	return &settings, nil
}

// Upsert 按 (owner_type, owner_id, companion_id) 整体写入
func (r *companionSettingsRepo) Upsert(ctx context.Context, settings *models.CompanionSettings) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "owner_type"}, {Name: "owner_id"}, {Name: "companion_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"personality_traits",
				"relationship_type",
				"scenario",
				"interest_topics",
				"appearance_preferences",
				"conversation_style",
				"emotional_response_level",
				"voice_settings",
				"memory_retention",
				"updated_at",
			}),
		}).
		Create(settings).Error
}

// WithTx 使用事务
func (r *companionSettingsRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &companionSettingsRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}

// HourlyCount 某天某小时的消息数
type HourlyCount struct {
	Date  string
	Hour  int
	Count int64
}

// InteractionRepository 互动记录仓储接口
type InteractionRepository interface {
	BaseRepository
	Create(ctx context.Context, interaction *models.Interaction) error
	HourlyCounts(ctx context.Context, companionID uint, startDate, endDate string) ([]HourlyCount, error)
}

// interactionRepo 互动记录仓储实现
type interactionRepo struct {
	*BaseRepo
}

// NewInteractionRepository 创建互动记录仓储
func NewInteractionRepository(db *gorm.DB) InteractionRepository {
	return &interactionRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 写入一条互动记录
func (r *interactionRepo) Create(ctx context.Context, interaction *models.Interaction) error {
	return r.db.WithContext(ctx).Create(interaction).Error
}

// HourlyCounts 按日期与小时汇总消息数，日期为闭区间
func (r *interactionRepo) HourlyCounts(ctx context.Context, companionID uint, startDate, endDate string) ([]HourlyCount, error) {
	var rows []HourlyCount
	err := r.db.WithContext(ctx).
		Model(&models.Interaction{}).
		Select("date, hour, COALESCE(SUM(message_count), 0) AS count").
		Where("companion_id = ? AND date >= ? AND date <= ?", companionID, startDate, endDate).
		Group("date, hour").
		Order("date, hour").
		Scan(&rows).Error
	return rows, err
}

// WithTx 使用事务
func (r *interactionRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &interactionRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
