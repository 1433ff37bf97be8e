package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	apperrors "github.com/wfunc/redvelvet/internal/errors"
	"github.com/wfunc/redvelvet/internal/models"
	"github.com/wfunc/redvelvet/internal/repository"
	"go.uber.org/zap"
)

const (
	maxSettingsLabelLength = 30
	maxScenarioLength      = 2000
	maxInterestTopics      = 20
	maxMemoryRetention     = 100
)

// companionSettingsService 伴侣设置服务实现
type companionSettingsService struct {
	repos *repository.Manager
	log   *zap.Logger
}

// NewCompanionSettingsService 创建伴侣设置服务
func NewCompanionSettingsService(repos *repository.Manager, log *zap.Logger) CompanionSettingsService {
	return &companionSettingsService{repos: repos, log: log}
}

func (s *companionSettingsService) ensureCompanion(ctx context.Context, companionID uint) error {
	if _, err := s.repos.Companion().FindByID(ctx, companionID); err != nil {
		return notFoundOr(err, apperrors.ErrCompanionNotFound)
	}
	return nil
}

// find 读取已保存的设置，未保存时返回默认值
func (s *companionSettingsService) find(ctx context.Context, owner Owner, companionID uint) (*models.CompanionSettings, bool, error) {
	settings, err := s.repos.CompanionSettings().Find(ctx, owner.Kind, owner.ID, companionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.DefaultCompanionSettings(owner.Kind, owner.ID, companionID), false, nil
		}
		return nil, false, storageErr(err)
	}
	normalizeSettings(settings)
	return settings, true, nil
}

// Get 获取设置，未保存过时返回默认值
func (s *companionSettingsService) Get(ctx context.Context, owner Owner, companionID uint) (*models.CompanionSettings, error) {
	if err := s.ensureCompanion(ctx, companionID); err != nil {
		return nil, err
	}
	settings, _, err := s.find(ctx, owner, companionID)
	return settings, err
}

// Save 整体保存，请求中缺省的字段恢复默认值
func (s *companionSettingsService) Save(ctx context.Context, owner Owner, companionID uint, input CompanionSettingsInput) (*models.CompanionSettings, error) {
	if err := s.ensureCompanion(ctx, companionID); err != nil {
		return nil, err
	}

	settings := models.DefaultCompanionSettings(owner.Kind, owner.ID, companionID)
	if input.PersonalityTraits != nil {
		settings.PersonalityTraits = input.PersonalityTraits
	}
	if input.RelationshipType != "" {
		settings.RelationshipType = input.RelationshipType
	}
	settings.Scenario = input.Scenario
	if input.InterestTopics != nil {
		settings.InterestTopics = input.InterestTopics
	}
	if input.AppearancePreferences != nil {
		settings.AppearancePreferences = input.AppearancePreferences
	}
	if input.ConversationStyle != "" {
		settings.ConversationStyle = input.ConversationStyle
	}
	if input.EmotionalResponseLevel != nil {
		settings.EmotionalResponseLevel = *input.EmotionalResponseLevel
	}
	if input.VoiceSettings != nil {
		settings.VoiceSettings = input.VoiceSettings
	}
	if input.MemoryRetention != nil {
		settings.MemoryRetention = *input.MemoryRetention
	}

	return s.store(ctx, owner, settings)
}

// Patch 部分更新，未保存过时在默认值基础上创建
func (s *companionSettingsService) Patch(ctx context.Context, owner Owner, companionID uint, patch CompanionSettingsPatch) (*models.CompanionSettings, error) {
	if err := s.ensureCompanion(ctx, companionID); err != nil {
		return nil, err
	}

	settings, _, err := s.find(ctx, owner, companionID)
	if err != nil {
		return nil, err
	}
	if patch.PersonalityTraits != nil {
		settings.PersonalityTraits = patch.PersonalityTraits
	}
	if patch.RelationshipType != nil {
		settings.RelationshipType = *patch.RelationshipType
	}
	if patch.Scenario != nil {
		settings.Scenario = *patch.Scenario
	}
	if patch.InterestTopics != nil {
		settings.InterestTopics = *patch.InterestTopics
	}
	if patch.AppearancePreferences != nil {
		settings.AppearancePreferences = patch.AppearancePreferences
	}
	if patch.ConversationStyle != nil {
		settings.ConversationStyle = *patch.ConversationStyle
	}
	if patch.EmotionalResponseLevel != nil {
		settings.EmotionalResponseLevel = *patch.EmotionalResponseLevel
	}
	if patch.VoiceSettings != nil {
		settings.VoiceSettings = patch.VoiceSettings
	}
	if patch.MemoryRetention != nil {
		settings.MemoryRetention = *patch.MemoryRetention
	}

	return s.store(ctx, owner, settings)
}

func (s *companionSettingsService) store(ctx context.Context, owner Owner, settings *models.CompanionSettings) (*models.CompanionSettings, error) {
	settings.RelationshipType = strings.TrimSpace(settings.RelationshipType)
	settings.ConversationStyle = strings.TrimSpace(settings.ConversationStyle)
	if err := validateSettings(settings); err != nil {
		return nil, err
	}
	normalizeSettings(settings)

	if err := s.repos.CompanionSettings().Upsert(ctx, settings); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "保存伴侣设置失败")
	}
	saved, err := s.repos.CompanionSettings().Find(ctx, owner.Kind, owner.ID, settings.CompanionID)
	if err != nil {
		return nil, storageErr(err)
	}
	normalizeSettings(saved)

	s.log.Debug("伴侣设置已保存", zap.String("owner", owner.Key()), zap.Uint("companion_id", settings.CompanionID))
	return saved, nil
}

func validateSettings(settings *models.CompanionSettings) error {
	if settings.RelationshipType == "" || utf8.RuneCountInString(settings.RelationshipType) > maxSettingsLabelLength {
		return apperrors.Newf(apperrors.ErrInvalidParam, "relationship_type 长度需在1-%d之间", maxSettingsLabelLength)
	}
	if settings.ConversationStyle == "" || utf8.RuneCountInString(settings.ConversationStyle) > maxSettingsLabelLength {
		return apperrors.Newf(apperrors.ErrInvalidParam, "conversation_style 长度需在1-%d之间", maxSettingsLabelLength)
	}
	if utf8.RuneCountInString(settings.Scenario) > maxScenarioLength {
		return apperrors.Newf(apperrors.ErrInvalidParam, "scenario 不能超过%d个字符", maxScenarioLength)
	}
	if len(settings.InterestTopics) > maxInterestTopics {
		return apperrors.Newf(apperrors.ErrInvalidParam, "interest_topics 最多%d项", maxInterestTopics)
	}
	if settings.EmotionalResponseLevel < 0 || settings.EmotionalResponseLevel > 100 {
		return apperrors.New(apperrors.ErrInvalidParam, "emotional_response_level 需在0-100之间")
	}
	if settings.MemoryRetention < 1 || settings.MemoryRetention > maxMemoryRetention {
		return apperrors.Newf(apperrors.ErrInvalidParam, "memory_retention 需在1-%d之间", maxMemoryRetention)
	}
	return nil
}

// normalizeSettings 空 JSON 列读回为 nil，统一成空对象
func normalizeSettings(settings *models.CompanionSettings) {
	if settings.PersonalityTraits == nil {
		settings.PersonalityTraits = models.JSONMap{}
	}
	if settings.InterestTopics == nil {
		settings.InterestTopics = models.StringList{}
	}
	if settings.AppearancePreferences == nil {
		settings.AppearancePreferences = models.JSONMap{}
	}
	if settings.VoiceSettings == nil {
		settings.VoiceSettings = models.JSONMap{}
	}
}
