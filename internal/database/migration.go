package database

import (
	"fmt"
	"path/filepath"

	"github.com/wfunc/redvelvet/internal/logger"
	"github.com/wfunc/redvelvet/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AutoMigrate 迁移全局数据库
func AutoMigrate() error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}
	return Migrate(DB)
}

// Migrate 迁移表结构、补充索引并写入初始数据
func Migrate(db *gorm.DB) error {
	if dbPath := sqliteFilePath(db); dbPath != "" {
		CleanupStaleLocks(filepath.Dir(dbPath))

		lock, err := AcquireMigrationLock(dbPath)
		if err != nil {
			logger.Error("无法获取迁移锁", zap.Error(err))
			return fmt.Errorf("获取迁移锁失败: %w", err)
		}
		defer lock.Release()
	}

	logger.Info("开始数据库迁移...")

	for _, model := range models.AllModels() {
		if err := db.AutoMigrate(model); err != nil {
			logger.Error("迁移失败",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err),
			)
			return err
		}
		logger.Debug("迁移成功", zap.String("model", fmt.Sprintf("%T", model)))
	}

	createIndexes(db)

	if err := initDefaultData(db); err != nil {
		return err
	}

	logger.Info("数据库迁移完成")
	return nil
}

// createIndexes 创建模型标签之外的辅助索引，失败只告警
func createIndexes(db *gorm.DB) {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_diamond_transactions_created_at ON diamond_transactions(created_at)",
		"CREATE INDEX IF NOT EXISTS idx_guest_sessions_last_activity ON guest_sessions(last_activity_at)",
		"CREATE INDEX IF NOT EXISTS idx_chat_messages_sent_at ON chat_messages(sent_at)",
		"CREATE INDEX IF NOT EXISTS idx_users_premium_expire ON users(premium_expire_at)",
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			logger.Warn("创建索引失败", zap.String("index", idx), zap.Error(err))
		}
	}
}

// initDefaultData 初始化默认系统配置与伴侣目录
func initDefaultData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.SystemConfig{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		defaultConfigs := []models.SystemConfig{
			{Key: "system.version", Value: "1.0.0", Type: "string", Group: "system", Description: "系统版本", IsPublic: true},
			{Key: "chat.history_limit", Value: "200", Type: "int", Group: "chat", Description: "单次返回的聊天记录上限"},
		}
		for i := range defaultConfigs {
			if err := db.Create(&defaultConfigs[i]).Error; err != nil {
				logger.Error("创建默认配置失败",
					zap.String("key", defaultConfigs[i].Key),
					zap.Error(err),
				)
			}
		}
	}

	return SeedCompanions(db)
}
