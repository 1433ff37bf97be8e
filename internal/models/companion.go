package models

import "time"

// 伴侣等级
const (
	TierFree    = "free"
	TierPremium = "premium"
)

// Companion 伴侣目录
type Companion struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"size:100;not null" json:"name"`
	Tagline     string     `gorm:"size:200" json:"tagline"`
	Description string     `gorm:"type:text" json:"description"`
	ImageURL    string     `gorm:"size:1024" json:"image_url"`
	Traits      StringList `gorm:"type:text" json:"traits"`
	Features    StringList `gorm:"type:text" json:"features"`
	AlbumURLs   StringList `gorm:"type:text" json:"album_urls"`
	Personality string     `gorm:"size:100" json:"personality"`
	VoiceType   string     `gorm:"size:50" json:"voice_type"`
	Gender      string     `gorm:"size:10;index" json:"gender"`
	Tier        string     `gorm:"size:20;default:'free'" json:"tier"`
	IsPremium   bool       `json:"is_premium"`
	Available   bool       `gorm:"index" json:"available"`
	Popularity  int        `gorm:"default:0" json:"popularity"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (Companion) TableName() string {
	return "companions"
}

// GenderDescription 图片提示词中使用的外观描述
func (c *Companion) GenderDescription() string {
	if c.Gender == GenderMale {
		return "handsome man"
	}
	return "beautiful woman"
}
