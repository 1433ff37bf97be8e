package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/wfunc/redvelvet/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 运行时可调的经济参数键
const (
	ConfigKeyMessageCost       = "diamond.message_cost"
	ConfigKeyImageCost         = "diamond.image_cost"
	ConfigKeyWelcomeBonus      = "diamond.welcome_bonus"
	ConfigKeyRegistrationBonus = "diamond.registration_bonus"
	ConfigKeyChatHistoryLimit  = "chat.history_limit"
)

// SystemConfigRepository 系统配置仓储接口
type SystemConfigRepository interface {
	BaseRepository
	Get(ctx context.Context, key string) (*models.SystemConfig, error)
	GetInt(ctx context.Context, key string, defaultValue int) int
	GetInt64(ctx context.Context, key string, defaultValue int64) int64
	Set(ctx context.Context, key string, value interface{}, description string) error
	Delete(ctx context.Context, key string) error
	GetAll(ctx context.Context) ([]*models.SystemConfig, error)
	GetPublic(ctx context.Context) ([]*models.SystemConfig, error)
	RefreshCache(ctx context.Context) error
}

// configCache 配置缓存，事务仓储与普通仓储共享同一份
type configCache struct {
	mu    sync.RWMutex
	items map[string]models.SystemConfig
}

func (c *configCache) get(key string) (models.SystemConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[key]
	return item, ok
}

func (c *configCache) put(item models.SystemConfig) {
	c.mu.Lock()
	c.items[item.Key] = item
	c.mu.Unlock()
}

func (c *configCache) remove(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func (c *configCache) reset(items []*models.SystemConfig) {
	fresh := make(map[string]models.SystemConfig, len(items))
	for _, item := range items {
		fresh[item.Key] = *item
	}
	c.mu.Lock()
	c.items = fresh
	c.mu.Unlock()
}

// systemConfigRepo 系统配置仓储实现
type systemConfigRepo struct {
	*BaseRepo
	cache *configCache
}

// NewSystemConfigRepository 创建系统配置仓储
func NewSystemConfigRepository(db *gorm.DB) SystemConfigRepository {
	repo := &systemConfigRepo{
		BaseRepo: NewBaseRepo(db),
		cache:    &configCache{items: make(map[string]models.SystemConfig)},
	}
	repo.RefreshCache(context.Background())
	return repo
}

// Get 获取配置，优先读缓存
func (r *systemConfigRepo) Get(ctx context.Context, key string) (*models.SystemConfig, error) {
	if item, ok := r.cache.get(key); ok {
		return &item, nil
	}

	var item models.SystemConfig
	err := r.db.WithContext(ctx).
		Where(&models.SystemConfig{Key: key}).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("配置项不存在 %s: %w", key, ErrNotFound)
		}
		return nil, err
	}

	r.cache.put(item)
	return &item, nil
}

// GetInt 获取整数配置
func (r *systemConfigRepo) GetInt(ctx context.Context, key string, defaultValue int) int {
	item, err := r.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	val, err := strconv.Atoi(item.Value)
	if err != nil {
		return defaultValue
	}
	return val
}

// GetInt64 获取64位整数配置
func (r *systemConfigRepo) GetInt64(ctx context.Context, key string, defaultValue int64) int64 {
	item, err := r.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	val, err := strconv.ParseInt(item.Value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return val
}

// ParseConfigValue 把命令行给出的文本还原成整数、布尔或字符串
func ParseConfigValue(raw string) interface{} {
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseBool(raw); err == nil {
		return v
	}
	return raw
}

// decodeConfigValue 按类型列解析存储的文本，解析失败时返回原文
func decodeConfigValue(item *models.SystemConfig) interface{} {
	switch item.Type {
	case "int":
		if v, err := strconv.ParseInt(item.Value, 10, 64); err == nil {
			return v
		}
	case "float":
		if v, err := strconv.ParseFloat(item.Value, 64); err == nil {
			return v
		}
	case "bool":
		if v, err := strconv.ParseBool(item.Value); err == nil {
			return v
		}
	case "json":
		var v interface{}
		if err := json.Unmarshal([]byte(item.Value), &v); err == nil {
			return v
		}
	}
	return item.Value
}

func encodeConfigValue(value interface{}) (string, string, error) {
	switch v := value.(type) {
	case string:
		return v, "string", nil
	case int, int32, int64:
		return fmt.Sprintf("%d", v), "int", nil
	case float32, float64:
		return fmt.Sprintf("%f", v), "float", nil
	case bool:
		return strconv.FormatBool(v), "bool", nil
	default:
		bytes, err := json.Marshal(value)
		if err != nil {
			return "", "", err
		}
		return string(bytes), "json", nil
	}
}

// Set 设置配置（创建或更新）
func (r *systemConfigRepo) Set(ctx context.Context, key string, value interface{}, description string) error {
	if key == "" {
		return fmt.Errorf("配置键不能为空")
	}

	strValue, configType, err := encodeConfigValue(value)
	if err != nil {
		return err
	}

	item := &models.SystemConfig{
		Key:         key,
		Value:       strValue,
		Type:        configType,
		Description: description,
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "type", "description", "updated_at"}),
		}).
		Create(item).Error
	if err != nil {
		return err
	}

	// 重新读取以拿到分组等未覆盖的列
	r.cache.remove(key)
	_, err = r.Get(ctx, key)
	return err
}

// Delete 删除配置
func (r *systemConfigRepo) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("配置键不能为空")
	}

	err := r.db.WithContext(ctx).
		Where(&models.SystemConfig{Key: key}).
		Delete(&models.SystemConfig{}).Error
	if err != nil {
		return err
	}

	r.cache.remove(key)
	return nil
}

func orderByGroupKey(db *gorm.DB) *gorm.DB {
	return db.
		Order(clause.OrderByColumn{Column: clause.Column{Name: "group"}}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}})
}

// GetAll 获取所有配置
func (r *systemConfigRepo) GetAll(ctx context.Context) ([]*models.SystemConfig, error) {
	var configs []*models.SystemConfig
	err := r.db.WithContext(ctx).
		Scopes(orderByGroupKey).
		Find(&configs).Error
	return configs, err
}

// GetPublic 获取可对外暴露的配置
func (r *systemConfigRepo) GetPublic(ctx context.Context) ([]*models.SystemConfig, error) {
	var configs []*models.SystemConfig
	err := r.db.WithContext(ctx).
		Where("is_public = ?", true).
		Scopes(orderByGroupKey).
		Find(&configs).Error
	return configs, err
}

// RefreshCache 从数据库重建缓存
func (r *systemConfigRepo) RefreshCache(ctx context.Context) error {
	configs, err := r.GetAll(ctx)
	if err != nil {
		return err
	}
	r.cache.reset(configs)
	return nil
}

// WithTx 使用事务
func (r *systemConfigRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &systemConfigRepo{
		BaseRepo: &BaseRepo{db: tx},
		cache:    r.cache,
	}
}

// EconomyOverrides 系统配置表中对钻石经济的覆盖值，零值表示未配置
type EconomyOverrides struct {
	MessageCost       int64
	ImageCost         int64
	WelcomeBonus      int64
	RegistrationBonus int64
	ChatHistoryLimit  int
}

// ConfigHelper 配置辅助函数
type ConfigHelper struct {
	repo SystemConfigRepository
}

// NewConfigHelper 创建配置辅助器
func NewConfigHelper(repo SystemConfigRepository) *ConfigHelper {
	return &ConfigHelper{repo: repo}
}

// GetEconomyOverrides 读取经济参数覆盖值，非正数视为未配置
func (h *ConfigHelper) GetEconomyOverrides(ctx context.Context) EconomyOverrides {
	positive := func(v int64) int64 {
		if v < 0 {
			return 0
		}
		return v
	}

	overrides := EconomyOverrides{
		MessageCost:       positive(h.repo.GetInt64(ctx, ConfigKeyMessageCost, 0)),
		ImageCost:         positive(h.repo.GetInt64(ctx, ConfigKeyImageCost, 0)),
		WelcomeBonus:      positive(h.repo.GetInt64(ctx, ConfigKeyWelcomeBonus, 0)),
		RegistrationBonus: positive(h.repo.GetInt64(ctx, ConfigKeyRegistrationBonus, 0)),
		ChatHistoryLimit:  h.repo.GetInt(ctx, ConfigKeyChatHistoryLimit, 0),
	}
	if overrides.ChatHistoryLimit < 0 {
		overrides.ChatHistoryLimit = 0
	}
	return overrides
}

// PublicValues 可对外暴露的配置，值按类型解码
func (h *ConfigHelper) PublicValues(ctx context.Context) (map[string]interface{}, error) {
	items, err := h.repo.GetPublic(ctx)
	if err != nil {
		return nil, err
	}
	values := make(map[string]interface{}, len(items))
	for _, item := range items {
		values[item.Key] = decodeConfigValue(item)
	}
	return values, nil
}
