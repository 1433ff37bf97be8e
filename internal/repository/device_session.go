package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wfunc/redvelvet/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceSessionRepository 设备会话仓储接口
type DeviceSessionRepository interface {
	BaseRepository
	FindByID(ctx context.Context, id uint) (*models.DeviceSession, error)
	FindByFingerprint(ctx context.Context, fingerprint string) (*models.DeviceSession, error)
	CreateIfAbsent(ctx context.Context, device *models.DeviceSession) (*models.DeviceSession, bool, error)
	Touch(ctx context.Context, id uint, ip, userAgent, platform string) error
	GrantWelcomeBonus(ctx context.Context, id uint, amount int64) (bool, int64, error)
	Deduct(ctx context.Context, id uint, amount int64) (int64, error)
	Credit(ctx context.Context, id uint, amount int64) (int64, error)
	Balance(ctx context.Context, id uint) (int64, error)
	UpdatePreferences(ctx context.Context, id uint, gender string, companionIDs models.UintList) error
	CountActiveSince(ctx context.Context, since time.Time) (int64, error)
}

// deviceSessionRepo 设备会话仓储实现
type deviceSessionRepo struct {
	*BaseRepo
}

// NewDeviceSessionRepository 创建设备会话仓储
func NewDeviceSessionRepository(db *gorm.DB) DeviceSessionRepository {
	return &deviceSessionRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// FindByID 根据ID查找设备会话
func (r *deviceSessionRepo) FindByID(ctx context.Context, id uint) (*models.DeviceSession, error) {
	var device models.DeviceSession
	err := r.db.WithContext(ctx).First(&device, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("设备会话不存在: %w", ErrNotFound)
		}
		return nil, err
	}
	return &device, nil
}

// FindByFingerprint 根据设备指纹查找
func (r *deviceSessionRepo) FindByFingerprint(ctx context.Context, fingerprint string) (*models.DeviceSession, error) {
	var device models.DeviceSession
	err := r.db.WithContext(ctx).
		Where(&models.DeviceSession{DeviceFingerprint: fingerprint}).
		First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("设备会话不存在: %w", ErrNotFound)
		}
		return nil, err
	}
	return &device, nil
}

// CreateIfAbsent 指纹不存在时插入，并发插入同一指纹时只有一方成功，
// 返回库中的记录以及本次是否新建
func (r *deviceSessionRepo) CreateIfAbsent(ctx context.Context, device *models.DeviceSession) (*models.DeviceSession, bool, error) {
	if device.LastActivityAt.IsZero() {
		device.LastActivityAt = time.Now()
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_fingerprint"}},
			DoNothing: true,
		}).
		Create(device)
	if result.Error != nil {
		return nil, false, result.Error
	}

	stored, err := r.FindByFingerprint(ctx, device.DeviceFingerprint)
	if err != nil {
		return nil, false, err
	}
	return stored, result.RowsAffected > 0, nil
}

// Touch 刷新最近活动信息，空值字段保持不变
func (r *deviceSessionRepo) Touch(ctx context.Context, id uint, ip, userAgent, platform string) error {
	updates := map[string]interface{}{
		"last_activity_at": time.Now(),
	}
	if ip != "" {
		updates["ip_address"] = ip
	}
	if userAgent != "" {
		updates["user_agent"] = userAgent
	}
	if platform != "" {
		updates["platform"] = platform
	}

	return r.db.WithContext(ctx).
		Model(&models.DeviceSession{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// GrantWelcomeBonus 发放欢迎钻石，依赖标记位的条件更新保证每台设备只发一次
func (r *deviceSessionRepo) GrantWelcomeBonus(ctx context.Context, id uint, amount int64) (bool, int64, error) {
	if amount <= 0 {
		return false, 0, ErrInvalidAmount
	}

	result := r.db.WithContext(ctx).
		Model(&models.DeviceSession{}).
		Where("id = ? AND has_received_welcome_diamonds = ?", id, false).
		Updates(map[string]interface{}{
			"has_received_welcome_diamonds": true,
			"message_diamonds":              gorm.Expr("message_diamonds + ?", amount),
		})
	if result.Error != nil {
		return false, 0, result.Error
	}

	balance, err := r.Balance(ctx, id)
	if err != nil {
		return false, 0, err
	}
	return result.RowsAffected > 0, balance, nil
}

// Deduct 条件扣减，余额不足时返回 ErrInsufficientBalance
func (r *deviceSessionRepo) Deduct(ctx context.Context, id uint, amount int64) (int64, error) {
	return deductBalance(ctx, r.db, &models.DeviceSession{}, "id", id, amount)
}

// Credit 增加余额
func (r *deviceSessionRepo) Credit(ctx context.Context, id uint, amount int64) (int64, error) {
	return creditBalance(ctx, r.db, &models.DeviceSession{}, "id", id, amount)
}

// Balance 查询当前余额
func (r *deviceSessionRepo) Balance(ctx context.Context, id uint) (int64, error) {
	return readBalance(ctx, r.db, &models.DeviceSession{}, "id", id)
}

// UpdatePreferences 更新性别偏好与可访问伴侣列表
func (r *deviceSessionRepo) UpdatePreferences(ctx context.Context, id uint, gender string, companionIDs models.UintList) error {
	result := r.db.WithContext(ctx).
		Model(&models.DeviceSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"preferred_gender":         gender,
			"accessible_companion_ids": companionIDs,
			"last_activity_at":         time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("设备会话不存在: %w", ErrNotFound)
	}
	return nil
}

// CountActiveSince 统计指定时间之后活跃的设备数
func (r *deviceSessionRepo) CountActiveSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DeviceSession{}).
		Where("last_activity_at >= ?", since).
		Count(&count).Error
	return count, err
}

// WithTx 使用事务
func (r *deviceSessionRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &deviceSessionRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}

// GuestSessionRepository 访客会话仓储接口
type GuestSessionRepository interface {
	BaseRepository
	Claim(ctx context.Context, sessionID string, deviceSessionID uint) (*models.GuestSession, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.GuestSession, error)
	DeleteInactive(ctx context.Context, before time.Time) (int64, error)
}

// guestSessionRepo 访客会话仓储实现
type guestSessionRepo struct {
	*BaseRepo
}

// NewGuestSessionRepository 创建访客会话仓储
func NewGuestSessionRepository(db *gorm.DB) GuestSessionRepository {
	return &guestSessionRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Claim 会话不存在则为该设备创建，已属于该设备则刷新活动时间。
// 会话属于其他设备时原样返回，不改绑
func (r *guestSessionRepo) Claim(ctx context.Context, sessionID string, deviceSessionID uint) (*models.GuestSession, error) {
	now := time.Now()
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoNothing: true,
		}).
		Create(&models.GuestSession{
			SessionID:       sessionID,
			DeviceSessionID: deviceSessionID,
			LastActivityAt:  now,
		}).Error
	if err != nil {
		return nil, err
	}

	session, err := r.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.DeviceSessionID != deviceSessionID {
		return session, nil
	}

	err = r.db.WithContext(ctx).
		Model(&models.GuestSession{}).
		Where("id = ? AND device_session_id = ?", session.ID, deviceSessionID).
		Update("last_activity_at", now).Error
	if err != nil {
		return nil, err
	}
	session.LastActivityAt = now
	return session, nil
}

// FindBySessionID 根据会话ID查找
func (r *guestSessionRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.GuestSession, error) {
	var session models.GuestSession
	err := r.db.WithContext(ctx).
		Where(&models.GuestSession{SessionID: sessionID}).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("访客会话不存在: %w", ErrNotFound)
		}
		return nil, err
	}
	return &session, nil
}

// DeleteInactive 删除长期不活跃的访客会话，设备余额不受影响
func (r *guestSessionRepo) DeleteInactive(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("last_activity_at < ?", before).
		Delete(&models.GuestSession{})
	return result.RowsAffected, result.Error
}

// WithTx 使用事务
func (r *guestSessionRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &guestSessionRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
