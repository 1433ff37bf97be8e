package models

import (
	"time"

	"gorm.io/gorm"
)

// User 注册用户表
type User struct {
	BaseModel
	Username    string     `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Nickname    string     `gorm:"size:100" json:"nickname"`
	Email       string     `gorm:"uniqueIndex;size:100;not null" json:"email"`
	Avatar      string     `gorm:"size:255" json:"avatar"`
	Bio         string     `gorm:"size:500" json:"bio"`
	Status      string     `gorm:"size:20;default:'active'" json:"status"` // active, frozen, banned
	IsVerified  bool       `gorm:"default:false" json:"is_verified"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP string     `gorm:"size:50" json:"last_login_ip"`

	// 会员
	IsPremium        bool       `gorm:"default:false" json:"is_premium"`
	PremiumStartAt   *time.Time `json:"premium_start_at,omitempty"`
	PremiumExpireAt  *time.Time `json:"premium_expire_at,omitempty"`
	SubscriptionPlan string     `gorm:"size:20" json:"subscription_plan"`

	HasReceivedRegistrationBonus bool `gorm:"default:false" json:"has_received_registration_bonus"`

	Auth     UserAuth      `gorm:"foreignKey:UserID" json:"-"`
	Sessions []UserSession `gorm:"foreignKey:UserID" json:"-"`
}

// UserAuth 用户认证信息表
type UserAuth struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	Password      string     `gorm:"size:255;not null" json:"-"`
	LoginAttempts int        `gorm:"default:0" json:"login_attempts"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	LockedUntil   *time.Time `json:"locked_until,omitempty"`

	// 邮箱验证
	VerificationToken     string     `gorm:"size:64;index" json:"-"`
	VerificationExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserSession 用户会话表
type UserSession struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	SessionID    string    `gorm:"uniqueIndex;size:64;not null" json:"session_id"`
	Token        string    `gorm:"size:512;not null" json:"-"`
	RefreshToken string    `gorm:"size:512" json:"-"`
	IP           string    `gorm:"size:50" json:"ip"`
	UserAgent    string    `gorm:"size:255" json:"user_agent"`
	Platform     string    `gorm:"size:20" json:"platform"`
	IsOnline     bool      `gorm:"default:true" json:"is_online"`
	LastActiveAt time.Time `json:"last_active_at"`
	ExpireAt     time.Time `json:"expire_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserPreferences 用户偏好，注册用户的钻石余额也保存在这里
type UserPreferences struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	MessageDiamonds int64     `gorm:"not null;default:0" json:"message_diamonds"`
	PreferredGender string    `gorm:"size:10;default:'both'" json:"preferred_gender"`
	Theme           string    `gorm:"size:20;default:'light'" json:"theme"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName 指定User表名
func (User) TableName() string {
	return "users"
}

// TableName 指定表名
func (UserPreferences) TableName() string {
	return "user_preferences"
}

// BeforeCreate 创建前的钩子
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Nickname == "" {
		u.Nickname = u.Username
	}
	if u.Status == "" {
		u.Status = "active"
	}
	return nil
}

// IsActive 检查用户是否激活
func (u *User) IsActive() bool {
	return u.Status == "active"
}

// CanLogin 检查用户是否可以登录
func (u *User) CanLogin() bool {
	return u.Status == "active"
}

// PremiumActive 会员在指定时间是否有效
func (u *User) PremiumActive(now time.Time) bool {
	if !u.IsPremium || u.PremiumExpireAt == nil {
		return false
	}
	return u.PremiumExpireAt.After(now)
}

// UpdateLoginInfo 更新登录信息
func (u *User) UpdateLoginInfo(ip string) {
	now := time.Now()
	u.LastLoginAt = &now
	u.LastLoginIP = ip
}
