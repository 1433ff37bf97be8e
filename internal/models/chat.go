package models

import "time"

// 消息发送方
const (
	SenderUser      = "user"
	SenderCompanion = "companion"
)

// ChatMessage 聊天记录，只追加，清空时按归属批量删除
type ChatMessage struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	OwnerType        string    `gorm:"size:10;not null;index:idx_chat_owner,priority:1" json:"owner_type"`
	OwnerID          uint      `gorm:"not null;index:idx_chat_owner,priority:2" json:"owner_id"`
	CompanionID      uint      `gorm:"not null;index:idx_chat_owner,priority:3" json:"companion_id"`
	Content          string    `gorm:"type:text;not null" json:"content"`
	Sender           string    `gorm:"size:20;not null" json:"sender"`
	EmotionType      string    `gorm:"size:20" json:"emotion_type,omitempty"`
	EmotionIntensity string    `gorm:"size:20" json:"emotion_intensity,omitempty"`
	ImageURL         string    `gorm:"size:1024" json:"image_url,omitempty"`
	SentAt           time.Time `gorm:"index" json:"sent_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// TableName 指定表名
func (ChatMessage) TableName() string {
	return "chat_messages"
}

// ValidSender 判断发送方是否合法
func ValidSender(sender string) bool {
	return sender == SenderUser || sender == SenderCompanion
}
