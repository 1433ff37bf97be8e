package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	apperrors "github.com/wfunc/redvelvet/internal/errors"
	"github.com/wfunc/redvelvet/internal/fingerprint"
	"github.com/wfunc/redvelvet/internal/models"
	"github.com/wfunc/redvelvet/internal/repository"
	"go.uber.org/zap"
)

const maxGuestSessionIDLength = 64

// guestService 访客会话服务实现
type guestService struct {
	repos      *repository.Manager
	settings   *settings
	overrides  *repository.ConfigHelper
	companions CompanionService
	notifier   BalanceNotifier
	log        *zap.Logger
}

// NewGuestService 创建访客会话服务
func NewGuestService(
	repos *repository.Manager,
	st *settings,
	overrides *repository.ConfigHelper,
	companions CompanionService,
	notifier BalanceNotifier,
	log *zap.Logger,
) GuestService {
	return &guestService{
		repos:      repos,
		settings:   st,
		overrides:  overrides,
		companions: companions,
		notifier:   notifier,
		log:        log,
	}
}

func (s *guestService) welcomeBonus(ctx context.Context) int64 {
	if o := s.overrides.GetEconomyOverrides(ctx); o.WelcomeBonus > 0 {
		return o.WelcomeBonus
	}
	return s.settings.get().WelcomeBonus
}

// ResolveSession 按指纹取得或创建设备会话，新设备只发放一次欢迎钻石
func (s *guestService) ResolveSession(ctx context.Context, identity DeviceIdentity) (*GuestSessionView, error) {
	fp, err := fingerprint.Normalize(identity.Fingerprint)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrFingerprintInvalid)
	}
	platform, err := fingerprint.ParsePlatform(identity.Platform)
	if err != nil {
		platform = fingerprint.DetectPlatform(identity.UserAgent)
		s.log.Debug("未知平台，按User-Agent推断",
			zap.String("platform", identity.Platform),
			zap.String("detected", platform))
	}

	bonus := s.welcomeBonus(ctx)
	economy := s.settings.get()

	sessionID := strings.TrimSpace(identity.GuestSessionID)
	if len(sessionID) > maxGuestSessionIDLength {
		s.log.Debug("访客会话ID过长，重新签发", zap.Int("length", len(sessionID)))
		sessionID = ""
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var (
		view    *GuestSessionView
		granted bool
	)
	err = s.repos.WithTransaction(ctx, func(tx *repository.Transaction) error {
		c := tx.Context()

		device, created, err := s.findOrCreateDevice(c, tx, fp, platform, identity, economy)
		if err != nil {
			return err
		}

		if bonus > 0 && !device.HasReceivedWelcomeDiamonds {
			ok, balance, err := tx.DeviceSession().GrantWelcomeBonus(c, device.ID, bonus)
			if err != nil {
				return storageErr(err)
			}
			if ok {
				if err := writeLedger(c, tx, DeviceOwner(device.ID), bonus, balance, ledgerEntry{
					Type:        models.TxTypeBonus,
					RefType:     "welcome",
					RefID:       device.DeviceFingerprint,
					Description: "新设备欢迎钻石",
				}); err != nil {
					return err
				}
				granted = true
			}
			device.MessageDiamonds = balance
			device.HasReceivedWelcomeDiamonds = true
		}

		session, err := tx.GuestSession().Claim(c, sessionID, device.ID)
		if err != nil {
			return storageErr(err)
		}
		if session.DeviceSessionID != device.ID {
			s.log.Warn("访客会话属于其他设备，重新签发",
				zap.String("session_id", sessionID),
				zap.Uint("owner_device_id", session.DeviceSessionID),
				zap.Uint("device_id", device.ID))
			if session, err = tx.GuestSession().Claim(c, uuid.NewString(), device.ID); err != nil {
				return storageErr(err)
			}
		}

		view = newGuestSessionView(device, session.SessionID)
		view.IsNewDevice = created
		view.WelcomeGranted = granted
		return nil
	})
	if err != nil {
		s.log.Error("解析访客会话失败", zap.String("platform", platform), zap.Error(err))
		return nil, txErr(err)
	}

	if granted {
		s.log.Info("发放欢迎钻石",
			zap.Uint("device_id", view.DeviceSessionID),
			zap.Int64("amount", bonus),
		)
		s.notifier.NotifyBalance(view.Owner(), view.MessageDiamonds, models.TxTypeBonus)
	}
	return view, nil
}

// findOrCreateDevice 新设备按默认性别计算可访问伴侣，已有设备刷新活动信息
func (s *guestService) findOrCreateDevice(
	ctx context.Context,
	tx *repository.Transaction,
	fp, platform string,
	identity DeviceIdentity,
	economy EconomyConfig,
) (*models.DeviceSession, bool, error) {
	device, err := tx.DeviceSession().FindByFingerprint(ctx, fp)
	if err == nil {
		if err := tx.DeviceSession().Touch(ctx, device.ID, identity.IP, identity.UserAgent, ""); err != nil {
			return nil, false, storageErr(err)
		}
		if len(device.AccessibleCompanionIDs) == 0 {
			ids, err := accessibleIDs(ctx, tx.Companion(), economy, device.PreferredGender)
			if err != nil {
				return nil, false, err
			}
			if err := tx.DeviceSession().UpdatePreferences(ctx, device.ID, device.PreferredGender, ids); err != nil {
				return nil, false, storageErr(err)
			}
			device.AccessibleCompanionIDs = ids
		}
		return device, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, storageErr(err)
	}

	gender := economy.DefaultGender
	if !ValidGender(gender) {
		gender = models.GenderBoth
	}
	ids, err := accessibleIDs(ctx, tx.Companion(), economy, gender)
	if err != nil {
		return nil, false, err
	}

	stored, created, err := tx.DeviceSession().CreateIfAbsent(ctx, &models.DeviceSession{
		DeviceFingerprint:      fp,
		IPAddress:              identity.IP,
		UserAgent:              identity.UserAgent,
		Platform:               platform,
		PreferredGender:        gender,
		AccessibleCompanionIDs: ids,
	})
	if err != nil {
		return nil, false, storageErr(err)
	}
	if created {
		s.log.Info("新设备会话",
			zap.Uint("device_id", stored.ID),
			zap.String("platform", platform),
			zap.Bool("fallback_fingerprint", identity.Fallback),
		)
	}
	return stored, created, nil
}

func newGuestSessionView(device *models.DeviceSession, sessionID string) *GuestSessionView {
	ids := device.AccessibleCompanionIDs
	if ids == nil {
		ids = models.UintList{}
	}
	return &GuestSessionView{
		SessionID:              sessionID,
		DeviceSessionID:        device.ID,
		DeviceFingerprint:      device.DeviceFingerprint,
		Platform:               device.Platform,
		MessageDiamonds:        device.MessageDiamonds,
		HasReceivedWelcome:     device.HasReceivedWelcomeDiamonds,
		PreferredGender:        device.PreferredGender,
		AccessibleCompanionIDs: ids,
		LastActivityAt:         device.LastActivityAt,
	}
}

// UpdatePreferences 更新性别偏好并重新计算可访问伴侣
func (s *guestService) UpdatePreferences(ctx context.Context, identity DeviceIdentity, gender string) (*GuestSessionView, error) {
	if !ValidGender(gender) {
		return nil, apperrors.New(apperrors.ErrInvalidGender, gender)
	}

	view, err := s.ResolveSession(ctx, identity)
	if err != nil {
		return nil, err
	}

	ids, err := s.companions.AccessibleIDs(ctx, gender)
	if err != nil {
		return nil, err
	}
	if err := s.repos.DeviceSession().UpdatePreferences(ctx, view.DeviceSessionID, gender, ids); err != nil {
		return nil, ownerErr(view.Owner(), err)
	}

	view.PreferredGender = gender
	view.AccessibleCompanionIDs = ids
	return view, nil
}

// CanAccessCompanion 访客是否可访问指定伴侣
func (s *guestService) CanAccessCompanion(ctx context.Context, identity DeviceIdentity, companionID uint) (bool, error) {
	if _, err := s.companions.Get(ctx, companionID); err != nil {
		return false, err
	}

	view, err := s.ResolveSession(ctx, identity)
	if err != nil {
		return false, err
	}
	return view.AccessibleCompanionIDs.Contains(companionID), nil
}

// Refresh 清空设备的聊天记录，钻石保持不变
func (s *guestService) Refresh(ctx context.Context, identity DeviceIdentity) (*GuestSessionView, error) {
	view, err := s.ResolveSession(ctx, identity)
	if err != nil {
		return nil, err
	}

	deleted, err := s.repos.ChatMessage().DeleteByOwner(ctx, models.OwnerDevice, view.DeviceSessionID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseDelete)
	}
	s.log.Info("访客会话已刷新",
		zap.Uint("device_id", view.DeviceSessionID),
		zap.Int64("deleted_messages", deleted),
	)
	return view, nil
}
