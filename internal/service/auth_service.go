package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/wfunc/redvelvet/internal/errors"
	"github.com/wfunc/redvelvet/internal/models"
	"github.com/wfunc/redvelvet/internal/repository"
	"github.com/wfunc/redvelvet/internal/utils"
	"go.uber.org/zap"
)

const (
	maxLoginAttempts      = 5
	lockDuration          = 15 * time.Minute
	defaultRole           = "user"
	verificationTokenSize = 64
	minPasswordLength     = 6
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// authService 认证服务实现
type authService struct {
	repos        *repository.Manager
	settings     *settings
	overrides    *repository.ConfigHelper
	jwtManager   *utils.JWTManager
	mailer       Mailer
	verification VerificationConfig
	log          *zap.Logger
}

// NewAuthService 创建认证服务
func NewAuthService(
	repos *repository.Manager,
	st *settings,
	overrides *repository.ConfigHelper,
	jwtManager *utils.JWTManager,
	mailer Mailer,
	verification VerificationConfig,
	log *zap.Logger,
) AuthService {
	if verification.TTL <= 0 {
		verification.TTL = 24 * time.Hour
	}
	return &authService{
		repos:        repos,
		settings:     st,
		overrides:    overrides,
		jwtManager:   jwtManager,
		mailer:       mailer,
		verification: verification,
		log:          log,
	}
}

func (s *authService) registrationBonus(ctx context.Context) int64 {
	if o := s.overrides.GetEconomyOverrides(ctx); o.RegistrationBonus > 0 {
		return o.RegistrationBonus
	}
	return s.settings.get().RegistrationBonus
}

// Register 用户注册，赠送注册钻石。访客设备的余额不会并入新账户
func (s *authService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateRegisterRequest(req); err != nil {
		return nil, err
	}

	exists, err := s.repos.User().ExistsByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		return nil, storageErr(err)
	}
	if exists {
		return nil, apperrors.New(apperrors.ErrAlreadyExists, "用户名或邮箱已被使用")
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnknown, "密码加密失败")
	}

	token, err := utils.GenerateRandomString(verificationTokenSize)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnknown, "生成验证令牌失败")
	}
	tokenExpiresAt := time.Now().Add(s.verification.TTL)

	bonus := s.registrationBonus(ctx)
	var (
		user    *models.User
		balance int64
		resp    *AuthResponse
	)
	err = s.repos.WithTransaction(ctx, func(tx *repository.Transaction) error {
		c := tx.Context()

		user = &models.User{
			Username: req.Username,
			Email:    req.Email,
			Nickname: req.Nickname,
			Status:   "active",
		}
		if err := tx.User().Create(c, user); err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "创建用户失败")
		}

		auth := &models.UserAuth{
			UserID:                user.ID,
			Password:              hashedPassword,
			VerificationToken:     token,
			VerificationExpiresAt: &tokenExpiresAt,
		}
		if err := tx.UserAuth().Create(c, auth); err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "创建认证信息失败")
		}

		if _, err := tx.UserPreferences().EnsureForUser(c, user.ID); err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "创建用户偏好失败")
		}

		if bonus > 0 {
			claimed, err := tx.User().ClaimRegistrationBonus(c, user.ID)
			if err != nil {
				return storageErr(err)
			}
			if claimed {
				balance, err = creditInTx(c, tx, UserOwner(user.ID), bonus, ledgerEntry{
					Type:        models.TxTypeBonus,
					RefType:     "registration",
					RefID:       user.Username,
					Description: "注册赠送钻石",
				})
				if err != nil {
					return err
				}
				user.HasReceivedRegistrationBonus = true
			}
		}

		resp, err = s.issueSession(c, tx.UserSession(), user, req.IP, req.UserAgent)
		return err
	})
	if err != nil {
		s.log.Error("用户注册失败", zap.String("username", req.Username), zap.Error(err))
		return nil, txErr(err)
	}

	resp.MessageDiamonds = balance
	s.log.Info("用户注册成功",
		zap.Uint("user_id", user.ID),
		zap.String("username", user.Username),
		zap.Int64("bonus", balance),
	)

	// 发信失败不影响注册，用户可以重新发送
	if err := s.mailer.SendVerification(ctx, user.Email, user.Username, s.verificationLink(token)); err != nil {
		s.log.Warn("发送验证邮件失败", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	return resp, nil
}

func (s *authService) verificationLink(token string) string {
	return fmt.Sprintf("%s/api/v1/auth/verify-email?token=%s",
		strings.TrimRight(s.verification.AppURL, "/"), url.QueryEscape(token))
}

func validateRegisterRequest(req *RegisterRequest) error {
	if !usernamePattern.MatchString(req.Username) {
		return apperrors.New(apperrors.ErrInvalidParam, "用户名只能包含字母、数字和下划线，长度3-20")
	}
	if !emailPattern.MatchString(req.Email) {
		return apperrors.New(apperrors.ErrInvalidParam, "邮箱格式不正确")
	}
	return validatePassword(req.Password)
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.Newf(apperrors.ErrInvalidParam, "密码长度至少%d个字符", minPasswordLength)
	}
	return nil
}

// issueSession 签发令牌并写入会话
func (s *authService) issueSession(
	ctx context.Context,
	sessions repository.UserSessionRepository,
	user *models.User,
	ip, userAgent string,
) (*AuthResponse, error) {
	sessionID := utils.GenerateSessionID()

	accessToken, err := s.jwtManager.GenerateAccessToken(user.ID, user.Username, user.Email, defaultRole, sessionID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnknown, "生成访问令牌失败")
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, sessionID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnknown, "生成刷新令牌失败")
	}

	now := time.Now()
	session := &models.UserSession{
		UserID:       user.ID,
		SessionID:    sessionID,
		Token:        accessToken,
		RefreshToken: refreshToken,
		IP:           ip,
		UserAgent:    userAgent,
		IsOnline:     true,
		LastActiveAt: now,
		ExpireAt:     now.Add(s.jwtManager.GetTokenExpiry(utils.TokenTypeRefresh)),
	}
	if err := sessions.Create(ctx, session); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "创建会话失败")
	}

	return &AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtManager.GetTokenExpiry(utils.TokenTypeAccess).Seconds()),
		TokenType:    "Bearer",
	}, nil
}

// Login 用户名或邮箱登录，连续失败后锁定账户
func (s *authService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	account := strings.TrimSpace(req.Account)

	var (
		user *models.User
		err  error
	)
	if strings.Contains(account, "@") {
		user, err = s.repos.User().FindByEmail(ctx, strings.ToLower(account))
	} else {
		user, err = s.repos.User().FindByUsername(ctx, account)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("登录失败: 用户不存在", zap.String("account", account))
			return nil, apperrors.New(apperrors.ErrAuthentication, "用户名或密码错误")
		}
		return nil, storageErr(err)
	}

	if !user.CanLogin() {
		return nil, apperrors.New(apperrors.ErrPermissionDenied, "账户已被冻结")
	}

	auth, err := s.repos.UserAuth().FindByUserID(ctx, user.ID)
	if err != nil {
		s.log.Error("获取认证信息失败", zap.Uint("user_id", user.ID), zap.Error(err))
		return nil, apperrors.New(apperrors.ErrAuthentication, "用户名或密码错误")
	}
	if auth.LockedUntil != nil && auth.LockedUntil.After(time.Now()) {
		return nil, apperrors.New(apperrors.ErrRateLimitExceeded, "登录失败次数过多，请稍后再试")
	}

	valid, err := utils.VerifyPassword(req.Password, auth.Password)
	if err != nil || !valid {
		attempts := auth.LoginAttempts + 1
		if err := s.repos.UserAuth().UpdateLoginAttempts(ctx, user.ID, attempts); err != nil {
			s.log.Warn("记录登录失败次数失败", zap.Uint("user_id", user.ID), zap.Error(err))
		}
		if attempts >= maxLoginAttempts {
			if err := s.repos.UserAuth().LockAccount(ctx, user.ID, time.Now().Add(lockDuration)); err != nil {
				s.log.Warn("锁定账户失败", zap.Uint("user_id", user.ID), zap.Error(err))
			}
			s.log.Warn("账户已锁定", zap.Uint("user_id", user.ID), zap.Int("attempts", attempts))
		}
		return nil, apperrors.New(apperrors.ErrAuthentication, "用户名或密码错误")
	}

	resp, err := s.issueSession(ctx, s.repos.UserSession(), user, req.IP, req.UserAgent)
	if err != nil {
		return nil, err
	}

	if err := s.repos.UserAuth().ResetLoginAttempts(ctx, user.ID); err != nil {
		s.log.Warn("重置登录失败次数失败", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	if err := s.repos.User().UpdateLastLogin(ctx, user.ID, req.IP); err != nil {
		s.log.Warn("更新最后登录信息失败", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	user.UpdateLoginInfo(req.IP)

	if balance, err := balanceOf(ctx, s.repos, UserOwner(user.ID)); err == nil {
		resp.MessageDiamonds = balance
	}

	s.log.Info("用户登录成功", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return resp, nil
}

// Logout 删除令牌对应的会话
func (s *authService) Logout(ctx context.Context, token string) error {
	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		return tokenErr(err)
	}
	if err := s.repos.UserSession().Delete(ctx, claims.SessionID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseDelete, "删除会话失败")
	}
	s.log.Info("用户登出", zap.Uint("user_id", claims.UserID))
	return nil
}

// RefreshToken 用刷新令牌换取新的访问令牌
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, tokenErr(err)
	}

	session, err := s.repos.UserSession().FindBySessionID(ctx, claims.SessionID)
	if err != nil {
		return nil, notFoundOr(err, apperrors.ErrTokenExpired)
	}
	if session.RefreshToken != refreshToken {
		return nil, apperrors.New(apperrors.ErrTokenInvalid, "刷新令牌已失效")
	}

	user, err := s.repos.User().FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, notFoundOr(err, apperrors.ErrNotFound)
	}

	accessToken, err := s.jwtManager.GenerateAccessToken(user.ID, user.Username, user.Email, defaultRole, claims.SessionID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnknown, "生成访问令牌失败")
	}
	if err := s.repos.UserSession().UpdateTokens(ctx, claims.SessionID, accessToken, refreshToken, session.ExpireAt); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate)
	}

	return &AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtManager.GetTokenExpiry(utils.TokenTypeAccess).Seconds()),
		TokenType:    "Bearer",
	}, nil
}

// ValidateToken 校验访问令牌及其会话
func (s *authService) ValidateToken(ctx context.Context, token string) (*TokenClaims, error) {
	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, tokenErr(err)
	}
	if claims.TokenType != utils.TokenTypeAccess {
		return nil, apperrors.New(apperrors.ErrTokenInvalid, "不是访问令牌")
	}

	if _, err := s.repos.UserSession().FindBySessionID(ctx, claims.SessionID); err != nil {
		return nil, notFoundOr(err, apperrors.ErrTokenExpired)
	}
	if err := s.repos.UserSession().UpdateLastActive(ctx, claims.SessionID); err != nil {
		s.log.Warn("更新会话活跃时间失败", zap.String("session_id", claims.SessionID), zap.Error(err))
	}

	return &TokenClaims{
		UserID:    claims.UserID,
		Username:  claims.Username,
		Email:     claims.Email,
		Role:      claims.Role,
		SessionID: claims.SessionID,
		IssuedAt:  claims.IssuedAt.Unix(),
		ExpiresAt: claims.ExpiresAt.Unix(),
	}, nil
}

// VerifyEmail 校验邮箱验证令牌，成功后令牌作废
func (s *authService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	auth, err := s.repos.UserAuth().FindByVerificationToken(ctx, token)
	if err != nil {
		return nil, notFoundOr(err, apperrors.ErrVerificationToken)
	}
	if auth.VerificationExpiresAt == nil || auth.VerificationExpiresAt.Before(time.Now()) {
		return nil, apperrors.New(apperrors.ErrVerificationToken, "验证链接已过期，请重新发送")
	}

	user, err := s.repos.User().FindByID(ctx, auth.UserID)
	if err != nil {
		return nil, notFoundOr(err, apperrors.ErrNotFound)
	}

	err = s.repos.WithTransaction(ctx, func(tx *repository.Transaction) error {
		c := tx.Context()
		if !user.IsVerified {
			if err := tx.User().MarkVerified(c, user.ID); err != nil {
				return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate)
			}
		}
		if err := tx.UserAuth().ClearVerificationToken(c, user.ID); err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate)
		}
		return nil
	})
	if err != nil {
		return nil, txErr(err)
	}

	user.IsVerified = true
	s.log.Info("邮箱验证成功", zap.Uint("user_id", user.ID))
	return user, nil
}

// ResendVerification 重新签发验证令牌并发信，旧令牌失效
func (s *authService) ResendVerification(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(email) {
		return apperrors.New(apperrors.ErrInvalidParam, "邮箱格式不正确")
	}

	user, err := s.repos.User().FindByEmail(ctx, email)
	if err != nil {
		return notFoundOr(err, apperrors.ErrNotFound)
	}
	if user.IsVerified {
		return apperrors.New(apperrors.ErrAlreadyVerified)
	}

	token, err := utils.GenerateRandomString(verificationTokenSize)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrUnknown, "生成验证令牌失败")
	}
	if err := s.repos.UserAuth().SetVerificationToken(ctx, user.ID, token, time.Now().Add(s.verification.TTL)); err != nil {
		return notFoundOr(err, apperrors.ErrNotFound)
	}

	if err := s.mailer.SendVerification(ctx, user.Email, user.Username, s.verificationLink(token)); err != nil {
		s.log.Warn("重新发送验证邮件失败", zap.Uint("user_id", user.ID), zap.Error(err))
		return apperrors.Wrap(err, apperrors.ErrMailUnavailable)
	}
	s.log.Info("已重新发送验证邮件", zap.Uint("user_id", user.ID))
	return nil
}

// ChangePassword 校验当前密码后修改，吊销全部旧会话并签发新会话
func (s *authService) ChangePassword(ctx context.Context, userID uint, req *ChangePasswordRequest) (*AuthResponse, error) {
	if err := validatePassword(req.NewPassword); err != nil {
		return nil, err
	}

	user, err := s.repos.User().FindByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, apperrors.ErrNotFound)
	}
	auth, err := s.repos.UserAuth().FindByUserID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, apperrors.ErrNotFound)
	}
	valid, err := utils.VerifyPassword(req.CurrentPassword, auth.Password)
	if err != nil || !valid {
		return nil, apperrors.New(apperrors.ErrPasswordMismatch)
	}

	hashedPassword, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnknown, "密码加密失败")
	}

	var resp *AuthResponse
	err = s.repos.WithTransaction(ctx, func(tx *repository.Transaction) error {
		c := tx.Context()
		if err := tx.UserAuth().UpdatePassword(c, userID, hashedPassword); err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "更新密码失败")
		}
		if err := tx.UserSession().DeleteByUserID(c, userID); err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseDelete, "吊销会话失败")
		}
		resp, err = s.issueSession(c, tx.UserSession(), user, req.IP, req.UserAgent)
		return err
	})
	if err != nil {
		return nil, txErr(err)
	}

	if balance, err := balanceOf(ctx, s.repos, UserOwner(userID)); err == nil {
		resp.MessageDiamonds = balance
	}
	s.log.Info("密码已修改，旧会话已吊销", zap.Uint("user_id", userID))
	return resp, nil
}

func tokenErr(err error) error {
	if errors.Is(err, utils.ErrExpiredToken) {
		return apperrors.Wrap(err, apperrors.ErrTokenExpired)
	}
	return apperrors.Wrap(err, apperrors.ErrTokenInvalid)
}
