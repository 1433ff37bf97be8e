package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/redvelvet/internal/database"
	"github.com/wfunc/redvelvet/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB 创建迁移完成并写入默认伴侣目录的内存数据库
func SetupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(err)
	}

	// 内存库每个连接都是独立的库，限制为单连接让所有协程看到同一份数据
	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		panic(err)
	}

	return db
}

// CleanupTestDB 清理测试数据库
func CleanupTestDB(db *gorm.DB) {
	sqlDB, _ := db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// TestDB 创建测试数据库，测试结束时自动关闭
func TestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := SetupTestDB()
	t.Cleanup(func() { CleanupTestDB(db) })
	return db
}

// TestFixtures 常用测试数据
type TestFixtures struct {
	Device *models.DeviceSession
	User   *models.User
	Prefs  *models.UserPreferences
}

// SeedTestData 创建一台零余额设备和一个零余额注册用户
func SeedTestData(t *testing.T, db *gorm.DB) *TestFixtures {
	t.Helper()
	ctx := context.Background()

	device, created, err := NewDeviceSessionRepository(db).CreateIfAbsent(ctx, CreateTestDevice("fp-seed-device"))
	require.NoError(t, err)
	require.True(t, created)

	user := &models.User{
		Username: "testuser1",
		Email:    "test1@example.com",
		Nickname: "测试用户1",
		Status:   "active",
	}
	require.NoError(t, NewUserRepository(db).Create(ctx, user))

	prefs, err := NewUserPreferencesRepository(db).EnsureForUser(ctx, user.ID)
	require.NoError(t, err)

	return &TestFixtures{Device: device, User: user, Prefs: prefs}
}

// CreateTestDevice 构造测试设备会话
func CreateTestDevice(fingerprint string) *models.DeviceSession {
	return &models.DeviceSession{
		DeviceFingerprint: fingerprint,
		IPAddress:         "192.168.1.100",
		UserAgent:         "Mozilla/5.0 (test)",
		Platform:          models.PlatformWeb,
		PreferredGender:   models.GenderBoth,
	}
}

// CreateTestSystemConfig 构造测试系统配置
func CreateTestSystemConfig(key, value, configType, group string) *models.SystemConfig {
	return &models.SystemConfig{
		Key:         key,
		Value:       value,
		Type:        configType,
		Group:       group,
		Description: "测试配置: " + key,
	}
}

// AssertLedgerBalanced 校验流水合计与当前余额一致
func AssertLedgerBalanced(t *testing.T, db *gorm.DB, ownerType string, ownerID uint) {
	t.Helper()
	ctx := context.Background()

	sum, err := NewLedgerRepository(db).SumByOwner(ctx, ownerType, ownerID)
	require.NoError(t, err)

	var balance int64
	if ownerType == models.OwnerDevice {
		balance, err = NewDeviceSessionRepository(db).Balance(ctx, ownerID)
	} else {
		balance, err = NewUserPreferencesRepository(db).Balance(ctx, ownerID)
	}
	require.NoError(t, err)
	assert.Equal(t, balance, sum, "流水合计应等于当前余额")
}
