package models

import "time"

// 伴侣设置默认值
const (
	DefaultRelationshipType       = "dating"
	DefaultConversationStyle      = "balanced"
	DefaultEmotionalResponseLevel = 50
	DefaultMemoryRetention        = 10
)

// CompanionSettings 每个归属对单个伴侣的个性化设置
type CompanionSettings struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	OwnerType              string     `gorm:"size:10;not null;uniqueIndex:idx_settings_owner,priority:1" json:"owner_type"`
	OwnerID                uint       `gorm:"not null;uniqueIndex:idx_settings_owner,priority:2" json:"owner_id"`
	CompanionID            uint       `gorm:"not null;uniqueIndex:idx_settings_owner,priority:3" json:"companion_id"`
	PersonalityTraits      JSONMap    `gorm:"type:text" json:"personality_traits"`
	RelationshipType       string     `gorm:"size:30;default:'dating'" json:"relationship_type"`
	Scenario               string     `gorm:"type:text" json:"scenario"`
	InterestTopics         StringList `gorm:"type:text" json:"interest_topics"`
	AppearancePreferences  JSONMap    `gorm:"type:text" json:"appearance_preferences"`
	ConversationStyle      string     `gorm:"size:30;default:'balanced'" json:"conversation_style"`
	EmotionalResponseLevel int        `gorm:"default:50" json:"emotional_response_level"`
	VoiceSettings          JSONMap    `gorm:"type:text" json:"voice_settings"`
	MemoryRetention        int        `gorm:"default:10" json:"memory_retention"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (CompanionSettings) TableName() string {
	return "companion_settings"
}

// DefaultCompanionSettings 未保存过设置时返回的默认值
func DefaultCompanionSettings(ownerType string, ownerID, companionID uint) *CompanionSettings {
	return &CompanionSettings{
		OwnerType:              ownerType,
		OwnerID:                ownerID,
		CompanionID:            companionID,
		PersonalityTraits:      JSONMap{},
		RelationshipType:       DefaultRelationshipType,
		InterestTopics:         StringList{},
		AppearancePreferences:  JSONMap{},
		ConversationStyle:      DefaultConversationStyle,
		EmotionalResponseLevel: DefaultEmotionalResponseLevel,
		VoiceSettings:          JSONMap{},
		MemoryRetention:        DefaultMemoryRetention,
	}
}

// Interaction 互动记录，按日期与小时聚合成热力图
type Interaction struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	OwnerType        string    `gorm:"size:10" json:"owner_type,omitempty"`
	OwnerID          uint      `json:"owner_id,omitempty"`
	CompanionID      uint      `gorm:"not null;index:idx_interaction_day,priority:1" json:"companion_id"`
	Date             string    `gorm:"size:10;not null;index:idx_interaction_day,priority:2" json:"date"` // YYYY-MM-DD
	Hour             int       `gorm:"not null" json:"hour"`
	MessageCount     int       `gorm:"not null;default:1" json:"message_count"`
	ResponseTimeMs   *int      `json:"response_time_ms,omitempty"`
	EmotionType      string    `gorm:"size:20" json:"emotion_type,omitempty"`
	EmotionIntensity string    `gorm:"size:20" json:"emotion_intensity,omitempty"`
	CreatedAt        time.Time `json:"timestamp"`
}

// TableName 指定表名
func (Interaction) TableName() string {
	return "interactions"
}
