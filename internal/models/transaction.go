package models

import (
	"fmt"
	"time"
)

// 钻石流水类型
const (
	TxTypeBonus    = "bonus"
	TxTypePurchase = "purchase"
	TxTypeMessage  = "message"
	TxTypeImage    = "image"
	TxTypeRefund   = "refund"
)

// 支付类型与状态
const (
	PaymentKindDiamonds = "diamonds"
	PaymentKindPremium  = "premium"

	PaymentStatusCompleted = "completed"
)

// DiamondTransaction 钻石流水表，每次余额变动写一行
type DiamondTransaction struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	OrderNo       string    `gorm:"uniqueIndex;size:64;not null" json:"order_no"`
	OwnerType     string    `gorm:"size:10;not null;index:idx_tx_owner,priority:1" json:"owner_type"`
	OwnerID       uint      `gorm:"not null;index:idx_tx_owner,priority:2" json:"owner_id"`
	Type          string    `gorm:"size:20;not null;index" json:"type"`
	Amount        int64     `gorm:"not null" json:"amount"` // 正数为入账，负数为扣除
	BeforeBalance int64     `json:"before_balance"`
	AfterBalance  int64     `json:"after_balance"`
	RefType       string    `gorm:"size:50" json:"ref_type"`
	RefID         string    `gorm:"size:100;index" json:"ref_id"`
	Description   string    `gorm:"size:500" json:"description"`
	Metadata      JSONMap   `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName 指定表名
func (DiamondTransaction) TableName() string {
	return "diamond_transactions"
}

// OwnerKey 归属标识，如 device:12
func (t *DiamondTransaction) OwnerKey() string {
	return fmt.Sprintf("%s:%d", t.OwnerType, t.OwnerID)
}

// Payment 支付记录，payment_id 唯一保证同一笔支付只入账一次
type Payment struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	PaymentID   string     `gorm:"uniqueIndex;size:128;not null" json:"payment_id"`
	Kind        string     `gorm:"size:20;not null" json:"kind"`
	OwnerType   string     `gorm:"size:10;not null;index:idx_payment_owner,priority:1" json:"owner_type"`
	OwnerID     uint       `gorm:"not null;index:idx_payment_owner,priority:2" json:"owner_id"`
	PackageID   string     `gorm:"size:50" json:"package_id,omitempty"`
	Plan        string     `gorm:"size:20" json:"plan,omitempty"`
	AmountCents int64      `gorm:"not null" json:"amount_cents"`
	Diamonds    int64      `gorm:"default:0" json:"diamonds"`
	Months      int        `gorm:"default:0" json:"months"`
	Status      string     `gorm:"size:20;not null" json:"status"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}

// SystemConfig 系统配置表
type SystemConfig struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Key         string    `gorm:"uniqueIndex;size:100;not null" json:"key"`
	Value       string    `gorm:"type:text" json:"value"`
	Type        string    `gorm:"size:20" json:"type"` // string, int, float, bool, json
	Description string    `gorm:"size:500" json:"description"`
	Group       string    `gorm:"size:50" json:"group"`
	IsPublic    bool      `gorm:"default:false" json:"is_public"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AllModels 需要迁移的全部模型
func AllModels() []interface{} {
	return []interface{}{
		&DeviceSession{},
		&GuestSession{},
		&User{},
		&UserAuth{},
		&UserSession{},
		&UserPreferences{},
		&Companion{},
		&CompanionSettings{},
		&ChatMessage{},
		&Interaction{},
		&DiamondTransaction{},
		&Payment{},
		&SystemConfig{},
	}
}
