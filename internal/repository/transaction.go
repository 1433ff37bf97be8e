package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wfunc/redvelvet/internal/models"
	"gorm.io/gorm"
)

// TransactionManager 事务管理器接口
type TransactionManager interface {
	// Begin 开始事务
	Begin(ctx context.Context) (*Transaction, error)
	// BeginWithOptions 使用选项开始事务
	BeginWithOptions(ctx context.Context, opts *TxOptions) (*Transaction, error)
	// WithTransaction 在事务中执行函数
	WithTransaction(ctx context.Context, fn func(tx *Transaction) error) error
	// WithTransactionOptions 使用选项在事务中执行函数
	WithTransactionOptions(ctx context.Context, opts *TxOptions, fn func(tx *Transaction) error) error
}

// TxOptions 事务选项
type TxOptions struct {
	// Isolation 事务隔离级别，SQLite 会忽略
	Isolation sql.IsolationLevel
	// ReadOnly 是否只读事务
	ReadOnly bool
	// Timeout 事务超时时间，零值不限制
	Timeout time.Duration
}

// Transaction 事务包装器，事务内的仓储共享同一个 *gorm.DB
type Transaction struct {
	tx         *gorm.DB
	ctx        context.Context
	cancel     context.CancelFunc
	committed  bool
	rolledback bool

	configs SystemConfigRepository

	deviceSession   DeviceSessionRepository
	guestSession    GuestSessionRepository
	user            UserRepository
	userAuth        UserAuthRepository
	userSession     UserSessionRepository
	userPreferences UserPreferencesRepository
	companion       CompanionRepository
	settings        CompanionSettingsRepository
	chatMessage     ChatMessageRepository
	interaction     InteractionRepository
	ledger          LedgerRepository
	payment         PaymentRepository
	systemConfig    SystemConfigRepository
}

// txManager 事务管理器实现
type txManager struct {
	db      *gorm.DB
	configs SystemConfigRepository
}

// NewTransactionManager 创建事务管理器
func NewTransactionManager(db *gorm.DB) TransactionManager {
	return &txManager{db: db}
}

// Begin 开始事务
func (m *txManager) Begin(ctx context.Context) (*Transaction, error) {
	return m.BeginWithOptions(ctx, nil)
}

// BeginWithOptions 使用选项开始事务
func (m *txManager) BeginWithOptions(ctx context.Context, opts *TxOptions) (*Transaction, error) {
	cancel := context.CancelFunc(func() {})
	var sqlOpts *sql.TxOptions
	if opts != nil {
		if opts.Timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		}
		sqlOpts = &sql.TxOptions{Isolation: opts.Isolation, ReadOnly: opts.ReadOnly}
	}

	var tx *gorm.DB
	if sqlOpts != nil {
		tx = m.db.WithContext(ctx).Begin(sqlOpts)
	} else {
		tx = m.db.WithContext(ctx).Begin()
	}
	if tx.Error != nil {
		cancel()
		return nil, tx.Error
	}

	return &Transaction{
		tx:      tx,
		ctx:     ctx,
		cancel:  cancel,
		configs: m.configs,
	}, nil
}

// WithTransaction 在事务中执行函数
func (m *txManager) WithTransaction(ctx context.Context, fn func(tx *Transaction) error) error {
	return m.WithTransactionOptions(ctx, nil, fn)
}

// WithTransactionOptions 使用选项在事务中执行函数，fn 返回错误或发生 panic 时回滚
func (m *txManager) WithTransactionOptions(ctx context.Context, opts *TxOptions, fn func(tx *Transaction) error) error {
	tx, err := m.BeginWithOptions(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if !tx.committed && !tx.rolledback {
			tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// Context 事务绑定的上下文
func (t *Transaction) Context() context.Context {
	return t.ctx
}

// Commit 提交事务
func (t *Transaction) Commit() error {
	if t.committed {
		return fmt.Errorf("事务已提交")
	}
	if t.rolledback {
		return fmt.Errorf("事务已回滚")
	}
	defer t.cancel()

	if err := t.tx.Commit().Error; err != nil {
		return err
	}

	t.committed = true
	return nil
}

// Rollback 回滚事务
func (t *Transaction) Rollback() error {
	if t.committed {
		return fmt.Errorf("事务已提交，无法回滚")
	}
	if t.rolledback {
		return fmt.Errorf("事务已回滚")
	}
	defer t.cancel()

	if err := t.tx.Rollback().Error; err != nil {
		return err
	}

	t.rolledback = true
	return nil
}

// GetDB 获取事务中的数据库实例
func (t *Transaction) GetDB() *gorm.DB {
	return t.tx
}

// DeviceSession 获取事务中的设备会话仓储
func (t *Transaction) DeviceSession() DeviceSessionRepository {
	if t.deviceSession == nil {
		t.deviceSession = &deviceSessionRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.deviceSession
}

// GuestSession 获取事务中的访客会话仓储
func (t *Transaction) GuestSession() GuestSessionRepository {
	if t.guestSession == nil {
		t.guestSession = &guestSessionRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.guestSession
}

// User 获取事务中的用户仓储
func (t *Transaction) User() UserRepository {
	if t.user == nil {
		t.user = &userRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.user
}

// UserAuth 获取事务中的用户认证仓储
func (t *Transaction) UserAuth() UserAuthRepository {
	if t.userAuth == nil {
		t.userAuth = &userAuthRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.userAuth
}

// UserSession 获取事务中的用户会话仓储
func (t *Transaction) UserSession() UserSessionRepository {
	if t.userSession == nil {
		t.userSession = &userSessionRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.userSession
}

// UserPreferences 获取事务中的用户偏好仓储
func (t *Transaction) UserPreferences() UserPreferencesRepository {
	if t.userPreferences == nil {
		t.userPreferences = &userPreferencesRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.userPreferences
}

// Companion 获取事务中的伴侣仓储
func (t *Transaction) Companion() CompanionRepository {
	if t.companion == nil {
		t.companion = &companionRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.companion
}

// CompanionSettings 获取事务中的伴侣设置仓储
func (t *Transaction) CompanionSettings() CompanionSettingsRepository {
	if t.settings == nil {
		t.settings = &companionSettingsRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.settings
}

// Interaction 获取事务中的互动记录仓储
func (t *Transaction) Interaction() InteractionRepository {
	if t.interaction == nil {
		t.interaction = &interactionRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.interaction
}

// ChatMessage 获取事务中的聊天记录仓储
func (t *Transaction) ChatMessage() ChatMessageRepository {
	if t.chatMessage == nil {
		t.chatMessage = &chatMessageRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.chatMessage
}

// Ledger 获取事务中的钻石流水仓储
func (t *Transaction) Ledger() LedgerRepository {
	if t.ledger == nil {
		t.ledger = &ledgerRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.ledger
}

// Payment 获取事务中的支付记录仓储
func (t *Transaction) Payment() PaymentRepository {
	if t.payment == nil {
		t.payment = &paymentRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.payment
}

// SystemConfig 获取事务中的系统配置仓储，与管理器共享缓存
func (t *Transaction) SystemConfig() SystemConfigRepository {
	if t.systemConfig == nil {
		if t.configs != nil {
			t.systemConfig = t.configs.WithTx(t.tx).(SystemConfigRepository)
		} else {
			t.systemConfig = &systemConfigRepo{
				BaseRepo: &BaseRepo{db: t.tx},
				cache:    &configCache{items: make(map[string]models.SystemConfig)},
			}
		}
	}
	return t.systemConfig
}
