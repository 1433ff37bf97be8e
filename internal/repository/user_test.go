package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/redvelvet/internal/models"
	"gorm.io/gorm"
)

// UserRepositoryTestSuite 用户仓储测试套件
type UserRepositoryTestSuite struct {
	suite.Suite
	db        *gorm.DB
	repo      UserRepository
	authRepo  UserAuthRepository
	sessRepo  UserSessionRepository
	prefsRepo UserPreferencesRepository
}

func (suite *UserRepositoryTestSuite) SetupTest() {
	suite.db = SetupTestDB()
	suite.repo = NewUserRepository(suite.db)
	suite.authRepo = NewUserAuthRepository(suite.db)
	suite.sessRepo = NewUserSessionRepository(suite.db)
	suite.prefsRepo = NewUserPreferencesRepository(suite.db)
}

func (suite *UserRepositoryTestSuite) TearDownTest() {
	CleanupTestDB(suite.db)
}

func (suite *UserRepositoryTestSuite) createUser(username string) *models.User {
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
	}
	suite.Require().NoError(suite.repo.Create(context.Background(), user))
	return user
}

// TestUserRepository_Create 测试创建用户
func (suite *UserRepositoryTestSuite) TestUserRepository_Create() {
	ctx := context.Background()
	user := suite.createUser("testuser")

	assert.NotZero(suite.T(), user.ID)
	assert.Equal(suite.T(), "testuser", user.Nickname)
	assert.Equal(suite.T(), "active", user.Status)

	found, err := suite.repo.FindByID(ctx, user.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), user.Email, found.Email)
	assert.False(suite.T(), found.IsPremium)
}

// TestUserRepository_Find 测试按用户名与邮箱查找
func (suite *UserRepositoryTestSuite) TestUserRepository_Find() {
	ctx := context.Background()
	user := suite.createUser("finduser")

	found, err := suite.repo.FindByUsername(ctx, "finduser")
	suite.Require().NoError(err)
	assert.Equal(suite.T(), user.ID, found.ID)

	found, err = suite.repo.FindByEmail(ctx, "finduser@example.com")
	suite.Require().NoError(err)
	assert.Equal(suite.T(), user.ID, found.ID)

	_, err = suite.repo.FindByUsername(ctx, "notexist")
	assert.True(suite.T(), errors.Is(err, ErrNotFound))
	assert.Contains(suite.T(), err.Error(), "用户不存在")

	exists, err := suite.repo.ExistsByUsernameOrEmail(ctx, "other", "finduser@example.com")
	suite.Require().NoError(err)
	assert.True(suite.T(), exists)

	exists, err = suite.repo.ExistsByUsernameOrEmail(ctx, "other", "other@example.com")
	suite.Require().NoError(err)
	assert.False(suite.T(), exists)
}

// TestUserRepository_Profile 测试资料白名单
func (suite *UserRepositoryTestSuite) TestUserRepository_Profile() {
	ctx := context.Background()
	user := suite.createUser("profile")

	err := suite.repo.UpdateProfile(ctx, user.ID, map[string]interface{}{"nickname": "新昵称", "bio": "hi"})
	suite.Require().NoError(err)

	err = suite.repo.UpdateProfile(ctx, user.ID, map[string]interface{}{"is_premium": true})
	assert.Error(suite.T(), err)

	found, _ := suite.repo.FindByID(ctx, user.ID)
	assert.Equal(suite.T(), "新昵称", found.Nickname)
	assert.False(suite.T(), found.IsPremium)
}

// TestUserRepository_Premium 测试写入会员状态
func (suite *UserRepositoryTestSuite) TestUserRepository_Premium() {
	ctx := context.Background()
	user := suite.createUser("premium")

	start := time.Now()
	expire := start.AddDate(0, 1, 0)
	suite.Require().NoError(suite.repo.SetPremium(ctx, user.ID, "monthly", start, expire))

	found, err := suite.repo.FindByID(ctx, user.ID)
	suite.Require().NoError(err)
	assert.True(suite.T(), found.IsPremium)
	assert.Equal(suite.T(), "monthly", found.SubscriptionPlan)
	assert.True(suite.T(), found.PremiumActive(time.Now()))
	assert.False(suite.T(), found.PremiumActive(expire.Add(time.Second)))

	err = suite.repo.SetPremium(ctx, 9999, "monthly", start, expire)
	assert.True(suite.T(), errors.Is(err, ErrNotFound))
}

// TestUserRepository_RegistrationBonus 注册奖励标记只能占用一次
func (suite *UserRepositoryTestSuite) TestUserRepository_RegistrationBonus() {
	ctx := context.Background()
	user := suite.createUser("bonus")

	claimed, err := suite.repo.ClaimRegistrationBonus(ctx, user.ID)
	suite.Require().NoError(err)
	assert.True(suite.T(), claimed)

	claimed, err = suite.repo.ClaimRegistrationBonus(ctx, user.ID)
	suite.Require().NoError(err)
	assert.False(suite.T(), claimed)
}

// TestUserAuthRepository 测试认证信息
func (suite *UserRepositoryTestSuite) TestUserAuthRepository() {
	ctx := context.Background()
	user := suite.createUser("authuser")

	suite.Require().NoError(suite.authRepo.Create(ctx, &models.UserAuth{UserID: user.ID, Password: "hashed"}))

	suite.Require().NoError(suite.authRepo.UpdateLoginAttempts(ctx, user.ID, 3))
	suite.Require().NoError(suite.authRepo.LockAccount(ctx, user.ID, time.Now().Add(time.Hour)))

	auth, err := suite.authRepo.FindByUserID(ctx, user.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), 3, auth.LoginAttempts)
	assert.NotNil(suite.T(), auth.LockedUntil)

	suite.Require().NoError(suite.authRepo.ResetLoginAttempts(ctx, user.ID))
	suite.Require().NoError(suite.authRepo.UpdatePassword(ctx, user.ID, "new-hash"))

	auth, err = suite.authRepo.FindByUserID(ctx, user.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), 0, auth.LoginAttempts)
	assert.Nil(suite.T(), auth.LockedUntil)
	assert.Equal(suite.T(), "new-hash", auth.Password)
}

// TestUserAuthVerificationToken 测试邮箱验证令牌
func (suite *UserRepositoryTestSuite) TestUserAuthVerificationToken() {
	ctx := context.Background()
	user := suite.createUser("verifyuser")
	suite.Require().NoError(suite.authRepo.Create(ctx, &models.UserAuth{UserID: user.ID, Password: "hashed"}))

	_, err := suite.authRepo.FindByVerificationToken(ctx, "")
	assert.True(suite.T(), errors.Is(err, ErrNotFound))

	expires := time.Now().Add(time.Hour)
	suite.Require().NoError(suite.authRepo.SetVerificationToken(ctx, user.ID, "tok-1", expires))

	auth, err := suite.authRepo.FindByVerificationToken(ctx, "tok-1")
	suite.Require().NoError(err)
	assert.Equal(suite.T(), user.ID, auth.UserID)
	suite.Require().NotNil(auth.VerificationExpiresAt)

	suite.Require().NoError(suite.repo.MarkVerified(ctx, user.ID))
	suite.Require().NoError(suite.authRepo.ClearVerificationToken(ctx, user.ID))

	_, err = suite.authRepo.FindByVerificationToken(ctx, "tok-1")
	assert.True(suite.T(), errors.Is(err, ErrNotFound))

	found, err := suite.repo.FindByID(ctx, user.ID)
	suite.Require().NoError(err)
	assert.True(suite.T(), found.IsVerified)

	err = suite.authRepo.SetVerificationToken(ctx, 9999, "tok-2", expires)
	assert.True(suite.T(), errors.Is(err, ErrNotFound))
}

// TestUserSessionRepository 测试用户会话
func (suite *UserRepositoryTestSuite) TestUserSessionRepository() {
	ctx := context.Background()
	user := suite.createUser("sessuser")

	active := &models.UserSession{
		UserID:       user.ID,
		SessionID:    "sess-active",
		Token:        "token-1",
		LastActiveAt: time.Now(),
		ExpireAt:     time.Now().Add(time.Hour),
	}
	expired := &models.UserSession{
		UserID:       user.ID,
		SessionID:    "sess-expired",
		Token:        "token-2",
		LastActiveAt: time.Now(),
		ExpireAt:     time.Now().Add(-time.Hour),
	}
	suite.Require().NoError(suite.sessRepo.Create(ctx, active))
	suite.Require().NoError(suite.sessRepo.Create(ctx, expired))

	found, err := suite.sessRepo.FindBySessionID(ctx, "sess-active")
	suite.Require().NoError(err)
	assert.Equal(suite.T(), "token-1", found.Token)

	_, err = suite.sessRepo.FindBySessionID(ctx, "sess-expired")
	assert.True(suite.T(), errors.Is(err, ErrNotFound))

	suite.Require().NoError(suite.sessRepo.UpdateTokens(ctx, "sess-active", "token-3", "refresh-3", time.Now().Add(2*time.Hour)))
	found, err = suite.sessRepo.FindBySessionID(ctx, "sess-active")
	suite.Require().NoError(err)
	assert.Equal(suite.T(), "token-3", found.Token)

	removed, err := suite.sessRepo.CleanupExpired(ctx)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(1), removed)

	suite.Require().NoError(suite.sessRepo.Delete(ctx, "sess-active"))
	sessions, err := suite.sessRepo.FindByUserID(ctx, user.ID)
	suite.Require().NoError(err)
	assert.Empty(suite.T(), sessions)

	for _, id := range []string{"sess-a", "sess-b"} {
		suite.Require().NoError(suite.sessRepo.Create(ctx, &models.UserSession{
			UserID: user.ID, SessionID: id, Token: id, LastActiveAt: time.Now(), ExpireAt: time.Now().Add(time.Hour),
		}))
	}
	suite.Require().NoError(suite.sessRepo.DeleteByUserID(ctx, user.ID))
	sessions, err = suite.sessRepo.FindByUserID(ctx, user.ID)
	suite.Require().NoError(err)
	assert.Empty(suite.T(), sessions)
}

// TestUserPreferencesRepository 测试用户偏好与余额
func (suite *UserRepositoryTestSuite) TestUserPreferencesRepository() {
	ctx := context.Background()
	user := suite.createUser("prefsuser")

	prefs, err := suite.prefsRepo.EnsureForUser(ctx, user.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(0), prefs.MessageDiamonds)
	assert.Equal(suite.T(), models.GenderBoth, prefs.PreferredGender)

	again, err := suite.prefsRepo.EnsureForUser(ctx, user.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), prefs.ID, again.ID)

	balance, err := suite.prefsRepo.Credit(ctx, user.ID, 30)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(30), balance)

	_, err = suite.prefsRepo.Deduct(ctx, user.ID, 31)
	assert.True(suite.T(), errors.Is(err, ErrInsufficientBalance))

	balance, err = suite.prefsRepo.Deduct(ctx, user.ID, 10)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(20), balance)

	suite.Require().NoError(suite.prefsRepo.Update(ctx, user.ID, map[string]interface{}{"theme": "dark"}))
	err = suite.prefsRepo.Update(ctx, user.ID, map[string]interface{}{"message_diamonds": 999})
	assert.Error(suite.T(), err)

	found, err := suite.prefsRepo.FindByUserID(ctx, user.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), "dark", found.Theme)
	assert.Equal(suite.T(), int64(20), found.MessageDiamonds)
}

func TestUserRepositorySuite(t *testing.T) {
	suite.Run(t, new(UserRepositoryTestSuite))
}
