package models

import "time"

// 客户端平台
const (
	PlatformWeb     = "web"
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
)

// 性别偏好
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderBoth   = "both"
)

// DeviceSession 设备会话表，访客余额归属于设备而非会话令牌。
// 设备行只更新不删除。
type DeviceSession struct {
	ID                         uint      `gorm:"primaryKey" json:"id"`
	DeviceFingerprint          string    `gorm:"uniqueIndex;size:255;not null" json:"device_fingerprint"`
	IPAddress                  string    `gorm:"size:64" json:"ip_address"`
	UserAgent                  string    `gorm:"size:512" json:"user_agent"`
	Platform                   string    `gorm:"size:20;default:'web'" json:"platform"`
	HasReceivedWelcomeDiamonds bool      `gorm:"default:false" json:"has_received_welcome_diamonds"`
	MessageDiamonds            int64     `gorm:"not null;default:0" json:"message_diamonds"`
	PreferredGender            string    `gorm:"size:10;default:'both'" json:"preferred_gender"`
	AccessibleCompanionIDs     UintList  `gorm:"type:text" json:"accessible_companion_ids"`
	LastActivityAt             time.Time `gorm:"index" json:"last_activity_at"`
	CreatedAt                  time.Time `json:"created_at"`
	UpdatedAt                  time.Time `json:"updated_at"`
}

// TableName 指定表名
func (DeviceSession) TableName() string {
	return "device_sessions"
}

// GuestSession 访客会话，多个会话可指向同一设备
type GuestSession struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	SessionID       string    `gorm:"uniqueIndex;size:64;not null" json:"session_id"`
	DeviceSessionID uint      `gorm:"index;not null" json:"device_session_id"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName 指定表名
func (GuestSession) TableName() string {
	return "guest_sessions"
}
