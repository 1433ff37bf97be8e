package repository

import (
	"context"
	"time"

	"github.com/wfunc/redvelvet/internal/models"
	"gorm.io/gorm"
)

// ChatMessageRepository 聊天记录仓储接口
type ChatMessageRepository interface {
	BaseRepository
	Create(ctx context.Context, message *models.ChatMessage) error
	BatchCreate(ctx context.Context, messages []*models.ChatMessage) error
	FindRecent(ctx context.Context, ownerType string, ownerID, companionID uint, limit int) ([]*models.ChatMessage, error)
	CountByOwner(ctx context.Context, ownerType string, ownerID uint) (int64, error)
	DeleteByOwner(ctx context.Context, ownerType string, ownerID uint) (int64, error)
	DeleteByOwnerCompanion(ctx context.Context, ownerType string, ownerID, companionID uint) (int64, error)
}

// chatMessageRepo 聊天记录仓储实现
type chatMessageRepo struct {
	*BaseRepo
}

// NewChatMessageRepository 创建聊天记录仓储
func NewChatMessageRepository(db *gorm.DB) ChatMessageRepository {
	return &chatMessageRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 追加一条消息
func (r *chatMessageRepo) Create(ctx context.Context, message *models.ChatMessage) error {
	if message.SentAt.IsZero() {
		message.SentAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(message).Error
}

// BatchCreate 批量追加，用于一问一答同时落库
func (r *chatMessageRepo) BatchCreate(ctx context.Context, messages []*models.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	now := time.Now()
	for _, m := range messages {
		if m.SentAt.IsZero() {
			m.SentAt = now
		}
	}
	return r.db.WithContext(ctx).Create(&messages).Error
}

// FindRecent 返回最近 limit 条消息，按发送时间正序
func (r *chatMessageRepo) FindRecent(ctx context.Context, ownerType string, ownerID, companionID uint, limit int) ([]*models.ChatMessage, error) {
	var messages []*models.ChatMessage

	query := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ? AND companion_id = ?", ownerType, ownerID, companionID).
		Order("sent_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&messages).Error; err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// CountByOwner 统计归属下的消息数
func (r *chatMessageRepo) CountByOwner(ctx context.Context, ownerType string, ownerID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		Count(&count).Error
	return count, err
}

// DeleteByOwner 清空归属下全部会话
func (r *chatMessageRepo) DeleteByOwner(ctx context.Context, ownerType string, ownerID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		Delete(&models.ChatMessage{})
	return result.RowsAffected, result.Error
}

// DeleteByOwnerCompanion 清空与某个伴侣的会话
func (r *chatMessageRepo) DeleteByOwnerCompanion(ctx context.Context, ownerType string, ownerID, companionID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ? AND companion_id = ?", ownerType, ownerID, companionID).
		Delete(&models.ChatMessage{})
	return result.RowsAffected, result.Error
}

// WithTx 使用事务
func (r *chatMessageRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &chatMessageRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
