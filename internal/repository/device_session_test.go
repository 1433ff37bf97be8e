package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/redvelvet/internal/config"
	"github.com/wfunc/redvelvet/internal/database"
	"github.com/wfunc/redvelvet/internal/models"
	"gorm.io/gorm"
)

// DeviceSessionRepositoryTestSuite 设备会话仓储测试套件
type DeviceSessionRepositoryTestSuite struct {
	suite.Suite
	db        *gorm.DB
	repo      DeviceSessionRepository
	guestRepo GuestSessionRepository
}

func (suite *DeviceSessionRepositoryTestSuite) SetupTest() {
	suite.db = SetupTestDB()
	suite.repo = NewDeviceSessionRepository(suite.db)
	suite.guestRepo = NewGuestSessionRepository(suite.db)
}

func (suite *DeviceSessionRepositoryTestSuite) TearDownTest() {
	CleanupTestDB(suite.db)
}

func (suite *DeviceSessionRepositoryTestSuite) createDevice(fp string) *models.DeviceSession {
	device, created, err := suite.repo.CreateIfAbsent(context.Background(), CreateTestDevice(fp))
	suite.Require().NoError(err)
	suite.Require().True(created)
	return device
}

// TestCreateIfAbsent 同一指纹只会创建一行
func (suite *DeviceSessionRepositoryTestSuite) TestCreateIfAbsent() {
	ctx := context.Background()

	first, created, err := suite.repo.CreateIfAbsent(ctx, CreateTestDevice("fp-abc"))
	suite.Require().NoError(err)
	assert.True(suite.T(), created)
	assert.NotZero(suite.T(), first.ID)
	assert.Equal(suite.T(), int64(0), first.MessageDiamonds)
	assert.False(suite.T(), first.HasReceivedWelcomeDiamonds)

	second, created, err := suite.repo.CreateIfAbsent(ctx, CreateTestDevice("fp-abc"))
	suite.Require().NoError(err)
	assert.False(suite.T(), created)
	assert.Equal(suite.T(), first.ID, second.ID)

	var count int64
	suite.db.Model(&models.DeviceSession{}).Count(&count)
	assert.Equal(suite.T(), int64(1), count)
}

// TestFindByFingerprint 测试根据指纹查找
func (suite *DeviceSessionRepositoryTestSuite) TestFindByFingerprint() {
	ctx := context.Background()
	device := suite.createDevice("fp-find")

	found, err := suite.repo.FindByFingerprint(ctx, "fp-find")
	suite.Require().NoError(err)
	assert.Equal(suite.T(), device.ID, found.ID)

	_, err = suite.repo.FindByFingerprint(ctx, "fp-missing")
	assert.True(suite.T(), errors.Is(err, ErrNotFound))
	assert.Contains(suite.T(), err.Error(), "设备会话不存在")
}

// TestGrantWelcomeBonus 欢迎钻石每台设备只发一次
func (suite *DeviceSessionRepositoryTestSuite) TestGrantWelcomeBonus() {
	ctx := context.Background()
	device := suite.createDevice("fp-bonus")

	granted, balance, err := suite.repo.GrantWelcomeBonus(ctx, device.ID, 25)
	suite.Require().NoError(err)
	assert.True(suite.T(), granted)
	assert.Equal(suite.T(), int64(25), balance)

	granted, balance, err = suite.repo.GrantWelcomeBonus(ctx, device.ID, 25)
	suite.Require().NoError(err)
	assert.False(suite.T(), granted)
	assert.Equal(suite.T(), int64(25), balance)

	found, err := suite.repo.FindByID(ctx, device.ID)
	suite.Require().NoError(err)
	assert.True(suite.T(), found.HasReceivedWelcomeDiamonds)
}

// TestDeductAndCredit 测试扣减与入账
func (suite *DeviceSessionRepositoryTestSuite) TestDeductAndCredit() {
	ctx := context.Background()
	device := suite.createDevice("fp-deduct")
	_, _, err := suite.repo.GrantWelcomeBonus(ctx, device.ID, 25)
	suite.Require().NoError(err)

	suite.Run("扣减成功返回新余额", func() {
		balance, err := suite.repo.Deduct(ctx, device.ID, 10)
		suite.Require().NoError(err)
		assert.Equal(suite.T(), int64(15), balance)
	})

	suite.Run("余额不足时不修改余额", func() {
		_, err := suite.repo.Deduct(ctx, device.ID, 20)
		assert.True(suite.T(), errors.Is(err, ErrInsufficientBalance))

		balance, err := suite.repo.Balance(ctx, device.ID)
		suite.Require().NoError(err)
		assert.Equal(suite.T(), int64(15), balance)
	})

	suite.Run("恰好扣完", func() {
		balance, err := suite.repo.Deduct(ctx, device.ID, 15)
		suite.Require().NoError(err)
		assert.Equal(suite.T(), int64(0), balance)
	})

	suite.Run("入账", func() {
		balance, err := suite.repo.Credit(ctx, device.ID, 1000)
		suite.Require().NoError(err)
		assert.Equal(suite.T(), int64(1000), balance)
	})

	suite.Run("非正数金额被拒绝", func() {
		_, err := suite.repo.Deduct(ctx, device.ID, 0)
		assert.True(suite.T(), errors.Is(err, ErrInvalidAmount))
		_, err = suite.repo.Credit(ctx, device.ID, -5)
		assert.True(suite.T(), errors.Is(err, ErrInvalidAmount))
	})

	suite.Run("设备不存在", func() {
		_, err := suite.repo.Deduct(ctx, 9999, 1)
		assert.True(suite.T(), errors.Is(err, ErrNotFound))
	})
}

// TestConcurrentDeduct 并发扣减不会让余额变为负数
func (suite *DeviceSessionRepositoryTestSuite) TestConcurrentDeduct() {
	ctx := context.Background()
	device := suite.createDevice("fp-concurrent")
	_, err := suite.repo.Credit(ctx, device.ID, 10)
	suite.Require().NoError(err)

	var (
		wg      sync.WaitGroup
		success int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := suite.repo.Deduct(ctx, device.ID, 1); err == nil {
				atomic.AddInt32(&success, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(suite.T(), int32(10), success)
	balance, err := suite.repo.Balance(ctx, device.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(0), balance)
}

// TestTouchAndPreferences 测试刷新活动信息与偏好
func (suite *DeviceSessionRepositoryTestSuite) TestTouchAndPreferences() {
	ctx := context.Background()
	device := suite.createDevice("fp-touch")

	suite.Require().NoError(suite.repo.Touch(ctx, device.ID, "10.0.0.1", "", models.PlatformAndroid))
	suite.Require().NoError(suite.repo.UpdatePreferences(ctx, device.ID, models.GenderMale, models.UintList{2, 5}))

	found, err := suite.repo.FindByID(ctx, device.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), "10.0.0.1", found.IPAddress)
	assert.Equal(suite.T(), "Mozilla/5.0 (test)", found.UserAgent)
	assert.Equal(suite.T(), models.PlatformAndroid, found.Platform)
	assert.Equal(suite.T(), models.GenderMale, found.PreferredGender)
	assert.Equal(suite.T(), models.UintList{2, 5}, found.AccessibleCompanionIDs)

	count, err := suite.repo.CountActiveSince(ctx, time.Now().Add(-time.Minute))
	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(1), count)

	err = suite.repo.UpdatePreferences(ctx, 9999, models.GenderMale, nil)
	assert.True(suite.T(), errors.Is(err, ErrNotFound))
}

// TestGuestSessionClaim 会话ID只归属创建它的设备
func (suite *DeviceSessionRepositoryTestSuite) TestGuestSessionClaim() {
	ctx := context.Background()
	a := suite.createDevice("fp-a")
	b := suite.createDevice("fp-b")

	session, err := suite.guestRepo.Claim(ctx, "guest-1", a.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), a.ID, session.DeviceSessionID)

	again, err := suite.guestRepo.Claim(ctx, "guest-1", a.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), session.ID, again.ID)
	assert.False(suite.T(), again.LastActivityAt.Before(session.LastActivityAt))

	// 其他设备带着同一会话ID时不改绑
	other, err := suite.guestRepo.Claim(ctx, "guest-1", b.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), a.ID, other.DeviceSessionID)

	stored, err := suite.guestRepo.FindBySessionID(ctx, "guest-1")
	suite.Require().NoError(err)
	assert.Equal(suite.T(), a.ID, stored.DeviceSessionID)

	var count int64
	suite.db.Model(&models.GuestSession{}).Count(&count)
	assert.Equal(suite.T(), int64(1), count)

	_, err = suite.guestRepo.FindBySessionID(ctx, "guest-missing")
	assert.True(suite.T(), errors.Is(err, ErrNotFound))

	deleted, err := suite.guestRepo.DeleteInactive(ctx, time.Now().Add(time.Minute))
	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(1), deleted)

	// 会话删除后设备余额行仍在
	_, err = suite.repo.FindByID(ctx, a.ID)
	assert.NoError(suite.T(), err)
}

func TestDeviceSessionRepositorySuite(t *testing.T) {
	suite.Run(t, new(DeviceSessionRepositoryTestSuite))
}

// fileTestDB 多连接的文件库，并发写入真实竞争同一行
func fileTestDB(t *testing.T, conns int) *gorm.DB {
	t.Helper()
	db, err := database.Open(&config.DatabaseConfig{
		Driver:          "sqlite",
		DSN:             filepath.Join(t.TempDir(), "race.db"),
		MaxIdleConns:    conns,
		MaxOpenConns:    conns,
		ConnMaxLifetime: time.Hour,
		LogLevel:        "silent",
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func TestConcurrentDeductOnFileDB(t *testing.T) {
	db := fileTestDB(t, 8)
	ctx := context.Background()
	repo := NewDeviceSessionRepository(db)
	prefs := NewUserPreferencesRepository(db)

	device, _, err := repo.CreateIfAbsent(ctx, CreateTestDevice("fp-file-race"))
	require.NoError(t, err)
	_, err = repo.Credit(ctx, device.ID, 25)
	require.NoError(t, err)

	user := &models.User{Username: "racer", Email: "racer@example.com"}
	require.NoError(t, db.Create(user).Error)
	require.NoError(t, db.Create(&models.UserPreferences{UserID: user.ID, MessageDiamonds: 25}).Error)

	cases := []struct {
		name    string
		deduct  func() (int64, error)
		balance func() (int64, error)
	}{
		{"设备余额",
			func() (int64, error) { return repo.Deduct(ctx, device.ID, 1) },
			func() (int64, error) { return repo.Balance(ctx, device.ID) }},
		{"用户余额",
			func() (int64, error) { return prefs.Deduct(ctx, user.ID, 1) },
			func() (int64, error) { return prefs.Balance(ctx, user.ID) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var (
				wg           sync.WaitGroup
				success      int32
				insufficient int32
				start        = make(chan struct{})
			)
			for i := 0; i < 60; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					_, err := tc.deduct()
					switch {
					case err == nil:
						atomic.AddInt32(&success, 1)
					case errors.Is(err, ErrInsufficientBalance):
						atomic.AddInt32(&insufficient, 1)
					default:
						t.Errorf("扣减失败: %v", err)
					}
				}()
			}
			close(start)
			wg.Wait()

			assert.Equal(t, int32(25), success)
			assert.Equal(t, int32(35), insufficient)
			balance, err := tc.balance()
			require.NoError(t, err)
			assert.Equal(t, int64(0), balance)
		})
	}
}
