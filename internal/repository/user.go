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

// UserRepository 用户仓储接口
type UserRepository interface {
	BaseRepository
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	UpdateLastLogin(ctx context.Context, userID uint, ip string) error
	MarkVerified(ctx context.Context, userID uint) error
	UpdateProfile(ctx context.Context, userID uint, fields map[string]interface{}) error
	FindByIDForUpdate(ctx context.Context, id uint) (*models.User, error)
	SetPremium(ctx context.Context, userID uint, plan string, start, expire time.Time) error
	ClearPremium(ctx context.Context, userID uint) error
	ClaimRegistrationBonus(ctx context.Context, userID uint) (bool, error)
}

// userRepo 用户仓储实现
type userRepo struct {
	*BaseRepo
}

// NewUserRepository 创建用户仓储
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建用户
func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByID 根据ID查找用户
func (r *userRepo) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("用户不存在: %w", ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// FindByUsername 根据用户名查找用户
func (r *userRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("用户不存在: %w", ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// FindByEmail 根据邮箱查找用户
func (r *userRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("用户不存在: %w", ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// ExistsByUsernameOrEmail 用户名或邮箱是否已被占用
func (r *userRepo) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count).Error
	return count > 0, err
}

// UpdateLastLogin 更新最后登录时间与IP
func (r *userRepo) UpdateLastLogin(ctx context.Context, userID uint, ip string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"last_login_at": time.Now(),
			"last_login_ip": ip,
		}).Error
}

// MarkVerified 标记邮箱已验证
func (r *userRepo) MarkVerified(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("is_verified", true).Error
}

// UpdateProfile 更新资料字段，只允许白名单内的列
func (r *userRepo) UpdateProfile(ctx context.Context, userID uint, fields map[string]interface{}) error {
	allowed := map[string]bool{"nickname": true, "avatar": true, "bio": true}
	updates := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if !allowed[k] {
			return fmt.Errorf("不允许的字段: %s", k)
		}
		updates[k] = v
	}
	if len(updates) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(updates).Error
}

// FindByIDForUpdate 查询并锁定用户行，SQLite 整库写锁下不加 FOR UPDATE
func (r *userRepo) FindByIDForUpdate(ctx context.Context, id uint) (*models.User, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var user models.User
	if err := query.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("用户不存在: %w", ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// SetPremium 写入会员状态
func (r *userRepo) SetPremium(ctx context.Context, userID uint, plan string, start, expire time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"is_premium":        true,
			"subscription_plan": plan,
			"premium_start_at":  start,
			"premium_expire_at": expire,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("用户不存在: %w", ErrNotFound)
	}
	return nil
}

// ClearPremium 会员到期后清除会员状态
func (r *userRepo) ClearPremium(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"is_premium":        false,
			"subscription_plan": "",
			"premium_start_at":  nil,
			"premium_expire_at": nil,
		}).Error
}

// ClaimRegistrationBonus 占用注册奖励标记，返回 false 表示已经领取过
func (r *userRepo) ClaimRegistrationBonus(ctx context.Context, userID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND has_received_registration_bonus = ?", userID, false).
		Update("has_received_registration_bonus", true)
	return result.RowsAffected > 0, result.Error
}

// WithTx 使用事务
func (r *userRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &userRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}

// UserAuthRepository 用户认证仓储接口
type UserAuthRepository interface {
	BaseRepository
	Create(ctx context.Context, auth *models.UserAuth) error
	FindByUserID(ctx context.Context, userID uint) (*models.UserAuth, error)
	UpdatePassword(ctx context.Context, userID uint, hashedPassword string) error
	UpdateLoginAttempts(ctx context.Context, userID uint, attempts int) error
	ResetLoginAttempts(ctx context.Context, userID uint) error
	LockAccount(ctx context.Context, userID uint, until time.Time) error
	SetVerificationToken(ctx context.Context, userID uint, token string, expiresAt time.Time) error
	FindByVerificationToken(ctx context.Context, token string) (*models.UserAuth, error)
	ClearVerificationToken(ctx context.Context, userID uint) error
}

// userAuthRepo 用户认证仓储实现
type userAuthRepo struct {
	*BaseRepo
}

// NewUserAuthRepository 创建用户认证仓储
func NewUserAuthRepository(db *gorm.DB) UserAuthRepository {
	return &userAuthRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建用户认证信息
func (r *userAuthRepo) Create(ctx context.Context, auth *models.UserAuth) error {
	return r.db.WithContext(ctx).Create(auth).Error
}

// FindByUserID 根据用户ID查找认证信息
func (r *userAuthRepo) FindByUserID(ctx context.Context, userID uint) (*models.UserAuth, error) {
	var auth models.UserAuth
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&auth).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("认证信息不存在: %w", ErrNotFound)
		}
		return nil, err
	}
	return &auth, nil
}

// UpdatePassword 更新密码
func (r *userAuthRepo) UpdatePassword(ctx context.Context, userID uint, hashedPassword string) error {
	return r.db.WithContext(ctx).
		Model(&models.UserAuth{}).
		Where("user_id = ?", userID).
		Update("password", hashedPassword).Error
}

// UpdateLoginAttempts 更新登录尝试次数
func (r *userAuthRepo) UpdateLoginAttempts(ctx context.Context, userID uint, attempts int) error {
	return r.db.WithContext(ctx).
		Model(&models.UserAuth{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"login_attempts":  attempts,
			"last_attempt_at": time.Now(),
		}).Error
}

// ResetLoginAttempts 重置登录尝试次数
func (r *userAuthRepo) ResetLoginAttempts(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.UserAuth{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"login_attempts": 0,
			"locked_until":   nil,
		}).Error
}

// LockAccount 锁定账户
func (r *userAuthRepo) LockAccount(ctx context.Context, userID uint, until time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.UserAuth{}).
		Where("user_id = ?", userID).
		Update("locked_until", until).Error
}

// SetVerificationToken 写入邮箱验证令牌，覆盖旧令牌
func (r *userAuthRepo) SetVerificationToken(ctx context.Context, userID uint, token string, expiresAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.UserAuth{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"verification_token":      token,
			"verification_expires_at": expiresAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("认证信息不存在: %w", ErrNotFound)
	}
	return nil
}

// FindByVerificationToken 根据验证令牌查找，过期判断交给调用方
func (r *userAuthRepo) FindByVerificationToken(ctx context.Context, token string) (*models.UserAuth, error) {
	if token == "" {
		return nil, fmt.Errorf("验证令牌不存在: %w", ErrNotFound)
	}
	var auth models.UserAuth
	err := r.db.WithContext(ctx).Where("verification_token = ?", token).First(&auth).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("验证令牌不存在: %w", ErrNotFound)
		}
		return nil, err
	}
	return &auth, nil
}

// ClearVerificationToken 验证成功后清除令牌
func (r *userAuthRepo) ClearVerificationToken(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.UserAuth{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"verification_token":      "",
			"verification_expires_at": nil,
		}).Error
}

// WithTx 使用事务
func (r *userAuthRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &userAuthRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}

// UserSessionRepository 用户会话仓储接口
type UserSessionRepository interface {
	BaseRepository
	Create(ctx context.Context, session *models.UserSession) error
	FindBySessionID(ctx context.Context, sessionID string) (*models.UserSession, error)
	FindByUserID(ctx context.Context, userID uint) ([]*models.UserSession, error)
	UpdateTokens(ctx context.Context, sessionID, token, refreshToken string, expireAt time.Time) error
	UpdateLastActive(ctx context.Context, sessionID string) error
	Delete(ctx context.Context, sessionID string) error
	DeleteByUserID(ctx context.Context, userID uint) error
	CleanupExpired(ctx context.Context) (int64, error)
}

// userSessionRepo 用户会话仓储实现
type userSessionRepo struct {
	*BaseRepo
}

// NewUserSessionRepository 创建用户会话仓储
func NewUserSessionRepository(db *gorm.DB) UserSessionRepository {
	return &userSessionRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建会话
func (r *userSessionRepo) Create(ctx context.Context, session *models.UserSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// FindBySessionID 查找未过期的会话
func (r *userSessionRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.UserSession, error) {
	var session models.UserSession
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND expire_at > ?", sessionID, time.Now()).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("会话不存在或已过期: %w", ErrNotFound)
		}
		return nil, err
	}
	return &session, nil
}

// FindByUserID 查找用户的所有有效会话
func (r *userSessionRepo) FindByUserID(ctx context.Context, userID uint) ([]*models.UserSession, error) {
	var sessions []*models.UserSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND expire_at > ?", userID, time.Now()).
		Find(&sessions).Error
	return sessions, err
}

// UpdateTokens 刷新令牌后更新会话
func (r *userSessionRepo) UpdateTokens(ctx context.Context, sessionID, token, refreshToken string, expireAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.UserSession{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"token":          token,
			"refresh_token":  refreshToken,
			"expire_at":      expireAt,
			"last_active_at": time.Now(),
		}).Error
}

// UpdateLastActive 更新最后活动时间
func (r *userSessionRepo) UpdateLastActive(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).
		Model(&models.UserSession{}).
		Where("session_id = ?", sessionID).
		Update("last_active_at", time.Now()).Error
}

// Delete 删除会话
func (r *userSessionRepo) Delete(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&models.UserSession{}).Error
}

// DeleteByUserID 删除用户的所有会话
func (r *userSessionRepo) DeleteByUserID(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.UserSession{}).Error
}

// CleanupExpired 清理过期会话
func (r *userSessionRepo) CleanupExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expire_at < ?", time.Now()).
		Delete(&models.UserSession{})
	return result.RowsAffected, result.Error
}

// WithTx 使用事务
func (r *userSessionRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &userSessionRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}

// UserPreferencesRepository 用户偏好仓储接口，注册用户的钻石余额也在这里
type UserPreferencesRepository interface {
	BaseRepository
	EnsureForUser(ctx context.Context, userID uint) (*models.UserPreferences, error)
	FindByUserID(ctx context.Context, userID uint) (*models.UserPreferences, error)
	Update(ctx context.Context, userID uint, fields map[string]interface{}) error
	Deduct(ctx context.Context, userID uint, amount int64) (int64, error)
	Credit(ctx context.Context, userID uint, amount int64) (int64, error)
	Balance(ctx context.Context, userID uint) (int64, error)
}

// userPreferencesRepo 用户偏好仓储实现
type userPreferencesRepo struct {
	*BaseRepo
}

// NewUserPreferencesRepository 创建用户偏好仓储
func NewUserPreferencesRepository(db *gorm.DB) UserPreferencesRepository {
	return &userPreferencesRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// EnsureForUser 不存在时创建零余额的偏好记录
func (r *userPreferencesRepo) EnsureForUser(ctx context.Context, userID uint) (*models.UserPreferences, error) {
	prefs := &models.UserPreferences{
		UserID:          userID,
		PreferredGender: models.GenderBoth,
		Theme:           "light",
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(prefs).Error
	if err != nil {
		return nil, err
	}

	return r.FindByUserID(ctx, userID)
}

// FindByUserID 根据用户ID查找偏好
func (r *userPreferencesRepo) FindByUserID(ctx context.Context, userID uint) (*models.UserPreferences, error) {
	var prefs models.UserPreferences
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&prefs).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("用户偏好不存在: %w", ErrNotFound)
		}
		return nil, err
	}
	return &prefs, nil
}

// Update 更新偏好字段，余额不能通过这里修改
func (r *userPreferencesRepo) Update(ctx context.Context, userID uint, fields map[string]interface{}) error {
	allowed := map[string]bool{"preferred_gender": true, "theme": true}
	updates := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if !allowed[k] {
			return fmt.Errorf("不允许的字段: %s", k)
		}
		updates[k] = v
	}
	if len(updates) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).
		Model(&models.UserPreferences{}).
		Where("user_id = ?", userID).
		Updates(updates).Error
}

// Deduct 条件扣减，余额不足时返回 ErrInsufficientBalance
func (r *userPreferencesRepo) Deduct(ctx context.Context, userID uint, amount int64) (int64, error) {
	return deductBalance(ctx, r.db, &models.UserPreferences{}, "user_id", userID, amount)
}

// Credit 增加余额
func (r *userPreferencesRepo) Credit(ctx context.Context, userID uint, amount int64) (int64, error) {
	return creditBalance(ctx, r.db, &models.UserPreferences{}, "user_id", userID, amount)
}

// Balance 查询当前余额
func (r *userPreferencesRepo) Balance(ctx context.Context, userID uint) (int64, error) {
	return readBalance(ctx, r.db, &models.UserPreferences{}, "user_id", userID)
}

// WithTx 使用事务
func (r *userPreferencesRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &userPreferencesRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
