package repository

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// Manager 仓储管理器，提供所有仓储的统一访问接口
type Manager struct {
	db *gorm.DB

	txManager TransactionManager

	// 仓储实例（懒加载）
	deviceSessionOnce sync.Once
	deviceSession     DeviceSessionRepository

	guestSessionOnce sync.Once
	guestSession     GuestSessionRepository

	userOnce sync.Once
	user     UserRepository

	userAuthOnce sync.Once
	userAuth     UserAuthRepository

	userSessionOnce sync.Once
	userSession     UserSessionRepository

	userPreferencesOnce sync.Once
	userPreferences     UserPreferencesRepository

	companionOnce sync.Once
	companion     CompanionRepository

	companionSettingsOnce sync.Once
	companionSettings     CompanionSettingsRepository

	chatMessageOnce sync.Once
	chatMessage     ChatMessageRepository

	interactionOnce sync.Once
	interaction     InteractionRepository

	ledgerOnce sync.Once
	ledger     LedgerRepository

	paymentOnce sync.Once
	payment     PaymentRepository

	systemConfigOnce sync.Once
	systemConfig     SystemConfigRepository
}

// NewManager 创建仓储管理器
func NewManager(db *gorm.DB) *Manager {
	m := &Manager{db: db}
	m.txManager = &txManager{db: db, configs: m.SystemConfig()}
	return m
}

// GetDB 获取数据库实例
func (m *Manager) GetDB() *gorm.DB {
	return m.db
}

// Transaction 获取事务管理器
func (m *Manager) Transaction() TransactionManager {
	return m.txManager
}

// DeviceSession 获取设备会话仓储
func (m *Manager) DeviceSession() DeviceSessionRepository {
	m.deviceSessionOnce.Do(func() {
		m.deviceSession = NewDeviceSessionRepository(m.db)
	})
	return m.deviceSession
}

// GuestSession 获取访客会话仓储
func (m *Manager) GuestSession() GuestSessionRepository {
	m.guestSessionOnce.Do(func() {
		m.guestSession = NewGuestSessionRepository(m.db)
	})
	return m.guestSession
}

// User 获取用户仓储
func (m *Manager) User() UserRepository {
	m.userOnce.Do(func() {
		m.user = NewUserRepository(m.db)
	})
	return m.user
}

// UserAuth 获取用户认证仓储
func (m *Manager) UserAuth() UserAuthRepository {
	m.userAuthOnce.Do(func() {
		m.userAuth = NewUserAuthRepository(m.db)
	})
	return m.userAuth
}

// UserSession 获取用户会话仓储
func (m *Manager) UserSession() UserSessionRepository {
	m.userSessionOnce.Do(func() {
		m.userSession = NewUserSessionRepository(m.db)
	})
	return m.userSession
}

// UserPreferences 获取用户偏好仓储
func (m *Manager) UserPreferences() UserPreferencesRepository {
	m.userPreferencesOnce.Do(func() {
		m.userPreferences = NewUserPreferencesRepository(m.db)
	})
	return m.userPreferences
}

// Companion 获取伴侣目录仓储
func (m *Manager) Companion() CompanionRepository {
	m.companionOnce.Do(func() {
		m.companion = NewCompanionRepository(m.db)
	})
	return m.companion
}

// CompanionSettings 获取伴侣设置仓储
func (m *Manager) CompanionSettings() CompanionSettingsRepository {
	m.companionSettingsOnce.Do(func() {
		m.companionSettings = NewCompanionSettingsRepository(m.db)
	})
	return m.companionSettings
}

// Interaction 获取互动记录仓储
func (m *Manager) Interaction() InteractionRepository {
	m.interactionOnce.Do(func() {
		m.interaction = NewInteractionRepository(m.db)
	})
	return m.interaction
}

// ChatMessage 获取聊天记录仓储
func (m *Manager) ChatMessage() ChatMessageRepository {
	m.chatMessageOnce.Do(func() {
		m.chatMessage = NewChatMessageRepository(m.db)
	})
	return m.chatMessage
}

// Ledger 获取钻石流水仓储
func (m *Manager) Ledger() LedgerRepository {
	m.ledgerOnce.Do(func() {
		m.ledger = NewLedgerRepository(m.db)
	})
	return m.ledger
}

// Payment 获取支付记录仓储
func (m *Manager) Payment() PaymentRepository {
	m.paymentOnce.Do(func() {
		m.payment = NewPaymentRepository(m.db)
	})
	return m.payment
}

// SystemConfig 获取系统配置仓储
func (m *Manager) SystemConfig() SystemConfigRepository {
	m.systemConfigOnce.Do(func() {
		m.systemConfig = NewSystemConfigRepository(m.db)
	})
	return m.systemConfig
}

// WithTransaction 在事务中执行操作
func (m *Manager) WithTransaction(ctx context.Context, fn func(tx *Transaction) error) error {
	return m.txManager.WithTransaction(ctx, fn)
}

// WithReadOnlyTransaction 在只读事务中执行操作
func (m *Manager) WithReadOnlyTransaction(ctx context.Context, fn func(tx *Transaction) error) error {
	return m.txManager.WithTransactionOptions(ctx, &TxOptions{ReadOnly: true}, fn)
}
