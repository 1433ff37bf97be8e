package service

import (
	"context"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/wfunc/redvelvet/internal/errors"
	"github.com/wfunc/redvelvet/internal/models"
	"github.com/wfunc/redvelvet/internal/repository"
	"go.uber.org/zap"
)

var validThemes = map[string]bool{"light": true, "dark": true, "system": true}

// userService 用户服务实现
type userService struct {
	repos *repository.Manager
	log   *zap.Logger
}

// NewUserService 创建用户服务
func NewUserService(repos *repository.Manager, log *zap.Logger) UserService {
	return &userService{repos: repos, log: log}
}

// GetUserByID 根据ID获取用户
func (s *userService) GetUserByID(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.repos.User().FindByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, apperrors.ErrNotFound)
	}
	return user, nil
}

// GetProfile 用户资料、钻石余额与会员状态
func (s *userService) GetProfile(ctx context.Context, userID uint) (*UserProfile, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	balance, err := balanceOf(ctx, s.repos, UserOwner(userID))
	if err != nil {
		return nil, storageErr(err)
	}
	messages, err := s.repos.ChatMessage().CountByOwner(ctx, models.OwnerUser, userID)
	if err != nil {
		return nil, storageErr(err)
	}

	return &UserProfile{
		User:            user,
		MessageDiamonds: balance,
		MessageCount:    messages,
		Premium:         premiumStatusOf(user, time.Now()),
	}, nil
}

// UpdateProfile 修改昵称、头像与简介
func (s *userService) UpdateProfile(ctx context.Context, userID uint, update ProfileUpdate) (*UserProfile, error) {
	fields := make(map[string]interface{})
	if update.Nickname != nil {
		nickname := strings.TrimSpace(*update.Nickname)
		if nickname == "" || utf8.RuneCountInString(nickname) > 100 {
			return nil, apperrors.New(apperrors.ErrInvalidParam, "昵称长度需在1-100之间")
		}
		fields["nickname"] = nickname
	}
	if update.Avatar != nil {
		avatar := strings.TrimSpace(*update.Avatar)
		if avatar != "" {
			u, err := url.Parse(avatar)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || len(avatar) > 255 {
				return nil, apperrors.New(apperrors.ErrInvalidParam, "头像需为不超过255字符的http(s)地址")
			}
		}
		fields["avatar"] = avatar
	}
	if update.Bio != nil {
		if utf8.RuneCountInString(*update.Bio) > 500 {
			return nil, apperrors.New(apperrors.ErrInvalidParam, "简介不能超过500个字符")
		}
		fields["bio"] = *update.Bio
	}

	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := s.repos.User().UpdateProfile(ctx, userID, fields); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate)
		}
		s.log.Debug("用户资料已更新", zap.Uint("user_id", userID), zap.Any("fields", fields))
	}
	return s.GetProfile(ctx, userID)
}

// GetPreferences 获取偏好，不存在时创建默认值
func (s *userService) GetPreferences(ctx context.Context, userID uint) (*models.UserPreferences, error) {
	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	prefs, err := s.repos.UserPreferences().EnsureForUser(ctx, userID)
	if err != nil {
		return nil, storageErr(err)
	}
	return prefs, nil
}

// UpdatePreferences 更新性别偏好与主题，余额不可通过此接口修改
func (s *userService) UpdatePreferences(ctx context.Context, userID uint, update PreferencesUpdate) (*models.UserPreferences, error) {
	fields := make(map[string]interface{})
	if update.PreferredGender != nil {
		if !ValidGender(*update.PreferredGender) {
			return nil, apperrors.New(apperrors.ErrInvalidGender, *update.PreferredGender)
		}
		fields["preferred_gender"] = *update.PreferredGender
	}
	if update.Theme != nil {
		if !validThemes[*update.Theme] {
			return nil, apperrors.New(apperrors.ErrInvalidParam, "无效的主题: "+*update.Theme)
		}
		fields["theme"] = *update.Theme
	}

	if _, err := s.GetPreferences(ctx, userID); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := s.repos.UserPreferences().Update(ctx, userID, fields); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate)
		}
		s.log.Debug("用户偏好已更新", zap.Uint("user_id", userID), zap.Any("fields", fields))
	}

	prefs, err := s.repos.UserPreferences().FindByUserID(ctx, userID)
	if err != nil {
		return nil, storageErr(err)
	}
	return prefs, nil
}
