package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
	apperrors "github.com/wfunc/redvelvet/internal/errors"
	"github.com/wfunc/redvelvet/internal/models"
	"github.com/wfunc/redvelvet/internal/repository"
)

// GuestServiceTestSuite 访客会话服务测试套件
type GuestServiceTestSuite struct {
	suite.Suite
	env *testEnv
	ctx context.Context
}

func (suite *GuestServiceTestSuite) SetupTest() {
	suite.env = newTestEnv(suite.T())
	suite.ctx = context.Background()
}

func (suite *GuestServiceTestSuite) identity(fp string) DeviceIdentity {
	return DeviceIdentity{Fingerprint: fp, Platform: "web", IP: "10.0.0.2", UserAgent: "ua"}
}

func (suite *GuestServiceTestSuite) bonusEntries(deviceID uint) int {
	entries, err := suite.env.repos.Ledger().FindByRef(suite.ctx, "welcome", "fp-guest")
	suite.Require().NoError(err)
	count := 0
	for _, e := range entries {
		if e.OwnerID == deviceID && e.Type == models.TxTypeBonus {
			count++
		}
	}
	return count
}

func (suite *GuestServiceTestSuite) TestNewDeviceGetsWelcomeBonusOnce() {
	first, err := suite.env.services.Guest.ResolveSession(suite.ctx, suite.identity("fp-guest"))
	suite.Require().NoError(err)
	suite.True(first.IsNewDevice)
	suite.True(first.WelcomeGranted)
	suite.Equal(int64(25), first.MessageDiamonds)
	suite.NotEmpty(first.SessionID)

	for i := 0; i < 5; i++ {
		again, err := suite.env.services.Guest.ResolveSession(suite.ctx, suite.identity("fp-guest"))
		suite.Require().NoError(err)
		suite.False(again.IsNewDevice)
		suite.False(again.WelcomeGranted)
		suite.Equal(first.DeviceSessionID, again.DeviceSessionID)
		suite.Equal(int64(25), again.MessageDiamonds)
	}

	suite.Equal(1, suite.bonusEntries(first.DeviceSessionID))
	repository.AssertLedgerBalanced(suite.T(), suite.env.db, models.OwnerDevice, first.DeviceSessionID)

	event, ok := suite.env.notifier.last()
	suite.True(ok)
	suite.Equal(int64(25), event.Balance)
	suite.Equal(models.TxTypeBonus, event.Reason)
}

func (suite *GuestServiceTestSuite) TestConcurrentResolveGrantsOnce() {
	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := suite.env.services.Guest.ResolveSession(suite.ctx, suite.identity("fp-guest"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		suite.NoError(err)
	}

	device, err := suite.env.repos.DeviceSession().FindByFingerprint(suite.ctx, "fp-guest")
	suite.Require().NoError(err)
	suite.Equal(int64(25), device.MessageDiamonds)
	suite.Equal(1, suite.bonusEntries(device.ID))
}

func (suite *GuestServiceTestSuite) TestSessionsShareDeviceBalance() {
	a := suite.identity("fp-shared")
	a.GuestSessionID = "session-a"
	b := suite.identity("fp-shared")
	b.GuestSessionID = "session-b"

	viewA, err := suite.env.services.Guest.ResolveSession(suite.ctx, a)
	suite.Require().NoError(err)
	suite.Equal("session-a", viewA.SessionID)

	_, err = suite.env.services.Diamond.Deduct(suite.ctx, viewA.Owner(), Action{Type: models.TxTypeMessage})
	suite.Require().NoError(err)

	viewB, err := suite.env.services.Guest.ResolveSession(suite.ctx, b)
	suite.Require().NoError(err)
	suite.Equal("session-b", viewB.SessionID)
	suite.Equal(viewA.DeviceSessionID, viewB.DeviceSessionID)
	suite.Equal(int64(24), viewB.MessageDiamonds, "清除浏览器存储后余额仍归属设备")
}

func (suite *GuestServiceTestSuite) TestInvalidIdentity() {
	suite.Run("空指纹", func() {
		_, err := suite.env.services.Guest.ResolveSession(suite.ctx, suite.identity("  "))
		suite.True(apperrors.Is(err, apperrors.ErrFingerprintInvalid))
	})

	suite.Run("未知平台按UA推断", func() {
		id := suite.identity("fp-x")
		id.Platform = "symbian"
		view, err := suite.env.services.Guest.ResolveSession(suite.ctx, id)
		suite.Require().NoError(err)
		suite.Equal(models.PlatformWeb, view.Platform)

		id = suite.identity("fp-x-android")
		id.Platform = "Windows"
		id.UserAgent = "Mozilla/5.0 (Linux; Android 14; Pixel 8)"
		view, err = suite.env.services.Guest.ResolveSession(suite.ctx, id)
		suite.Require().NoError(err)
		suite.Equal(models.PlatformAndroid, view.Platform)
	})

	suite.Run("过长会话ID重新签发", func() {
		id := suite.identity("fp-long")
		id.GuestSessionID = strings.Repeat("s", maxGuestSessionIDLength+1)
		view, err := suite.env.services.Guest.ResolveSession(suite.ctx, id)
		suite.Require().NoError(err)
		suite.NotEqual(id.GuestSessionID, view.SessionID)
		suite.LessOrEqual(len(view.SessionID), maxGuestSessionIDLength)
	})
}

func (suite *GuestServiceTestSuite) TestSessionIDOfOtherDeviceIsReissued() {
	a := suite.identity("fp-owner")
	a.GuestSessionID = "session-owned"
	viewA, err := suite.env.services.Guest.ResolveSession(suite.ctx, a)
	suite.Require().NoError(err)
	suite.Equal("session-owned", viewA.SessionID)

	b := suite.identity("fp-intruder")
	b.GuestSessionID = "session-owned"
	viewB, err := suite.env.services.Guest.ResolveSession(suite.ctx, b)
	suite.Require().NoError(err)
	suite.NotEqual("session-owned", viewB.SessionID, "其他设备的会话ID不可沿用")
	suite.NotEqual(viewA.DeviceSessionID, viewB.DeviceSessionID)

	stored, err := suite.env.repos.GuestSession().FindBySessionID(suite.ctx, "session-owned")
	suite.Require().NoError(err)
	suite.Equal(viewA.DeviceSessionID, stored.DeviceSessionID)

	again, err := suite.env.services.Guest.ResolveSession(suite.ctx, a)
	suite.Require().NoError(err)
	suite.Equal("session-owned", again.SessionID)
}

func (suite *GuestServiceTestSuite) TestPreferencesAndAccess() {
	view, err := suite.env.services.Guest.ResolveSession(suite.ctx, suite.identity("fp-prefs"))
	suite.Require().NoError(err)
	suite.Equal(models.GenderBoth, view.PreferredGender)
	suite.Equal(models.UintList{1, 3, 4, 2, 5}, view.AccessibleCompanionIDs)

	cases := []struct {
		gender string
		ids    models.UintList
	}{
		{models.GenderFemale, models.UintList{1, 3, 4}},
		{models.GenderMale, models.UintList{2, 5}},
		{models.GenderBoth, models.UintList{1, 3, 4, 2, 5}},
	}
	for _, tc := range cases {
		suite.Run(fmt.Sprintf("偏好_%s", tc.gender), func() {
			updated, err := suite.env.services.Guest.UpdatePreferences(suite.ctx, suite.identity("fp-prefs"), tc.gender)
			suite.Require().NoError(err)
			suite.Equal(tc.gender, updated.PreferredGender)
			suite.Equal(tc.ids, updated.AccessibleCompanionIDs)

			stored, err := suite.env.repos.DeviceSession().FindByID(suite.ctx, updated.DeviceSessionID)
			suite.Require().NoError(err)
			suite.Equal(tc.ids, stored.AccessibleCompanionIDs)
		})
	}

	suite.Run("无效性别", func() {
		_, err := suite.env.services.Guest.UpdatePreferences(suite.ctx, suite.identity("fp-prefs"), "other")
		suite.True(apperrors.Is(err, apperrors.ErrInvalidGender))
	})

	suite.Run("可访问判断", func() {
		ok, err := suite.env.services.Guest.CanAccessCompanion(suite.ctx, suite.identity("fp-prefs"), 1)
		suite.NoError(err)
		suite.True(ok)

		ok, err = suite.env.services.Guest.CanAccessCompanion(suite.ctx, suite.identity("fp-prefs"), 8)
		suite.NoError(err)
		suite.False(ok, "会员伴侣不对访客开放")

		_, err = suite.env.services.Guest.CanAccessCompanion(suite.ctx, suite.identity("fp-prefs"), 999)
		suite.True(apperrors.Is(err, apperrors.ErrCompanionNotFound))
	})
}

func (suite *GuestServiceTestSuite) TestRefreshKeepsDiamonds() {
	view, err := suite.env.services.Guest.ResolveSession(suite.ctx, suite.identity("fp-refresh"))
	suite.Require().NoError(err)

	_, err = suite.env.services.Chat.SendMessage(suite.ctx, view.Owner(), SendMessageRequest{CompanionID: 1, Content: "hi"})
	suite.Require().NoError(err)

	refreshed, err := suite.env.services.Guest.Refresh(suite.ctx, suite.identity("fp-refresh"))
	suite.Require().NoError(err)
	suite.Equal(int64(24), refreshed.MessageDiamonds)

	count, err := suite.env.repos.ChatMessage().CountByOwner(suite.ctx, models.OwnerDevice, view.DeviceSessionID)
	suite.NoError(err)
	suite.Zero(count)
}

func (suite *GuestServiceTestSuite) TestWelcomeBonusOverride() {
	suite.Require().NoError(suite.env.repos.SystemConfig().Set(suite.ctx, repository.ConfigKeyWelcomeBonus, 40, "欢迎钻石"))

	view, err := suite.env.services.Guest.ResolveSession(suite.ctx, suite.identity("fp-override"))
	suite.Require().NoError(err)
	suite.Equal(int64(40), view.MessageDiamonds)
}

func TestGuestServiceSuite(t *testing.T) {
	suite.Run(t, new(GuestServiceTestSuite))
}
