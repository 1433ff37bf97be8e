package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/wfunc/redvelvet/internal/errors"
	"github.com/wfunc/redvelvet/internal/models"
	"github.com/wfunc/redvelvet/internal/repository"
	"go.uber.org/zap"
)

const maxMessageLength = 2000

// chatService 聊天服务实现
type chatService struct {
	repos        *repository.Manager
	diamonds     DiamondService
	images       *ImageService
	responder    Responder
	overrides    *repository.ConfigHelper
	historyLimit int
	log          *zap.Logger
}

// NewChatService 创建聊天服务
func NewChatService(
	repos *repository.Manager,
	diamonds DiamondService,
	images *ImageService,
	responder Responder,
	overrides *repository.ConfigHelper,
	historyLimit int,
	log *zap.Logger,
) ChatService {
	return &chatService{
		repos:        repos,
		diamonds:     diamonds,
		images:       images,
		responder:    responder,
		overrides:    overrides,
		historyLimit: historyLimit,
		log:          log,
	}
}

// companionFor 取得伴侣，访客需在可访问列表内，注册用户访问会员伴侣需开通会员
func (s *chatService) companionFor(ctx context.Context, owner Owner, companionID uint, enforceAccess bool) (*models.Companion, error) {
	companion, err := s.repos.Companion().FindByID(ctx, companionID)
	if err != nil {
		return nil, notFoundOr(err, apperrors.ErrCompanionNotFound)
	}
	if !companion.Available {
		return nil, apperrors.New(apperrors.ErrCompanionNotFound, "伴侣已下架")
	}

	if owner.IsUser() {
		if companion.IsPremium {
			if err := s.requirePremium(ctx, owner.ID); err != nil {
				return nil, err
			}
		}
		return companion, nil
	}

	if enforceAccess {
		device, err := s.repos.DeviceSession().FindByID(ctx, owner.ID)
		if err != nil {
			return nil, ownerErr(owner, err)
		}
		if !device.AccessibleCompanionIDs.Contains(companionID) {
			return nil, apperrors.Newf(apperrors.ErrCompanionLocked, "伴侣 %d 不在可访问列表中", companionID)
		}
	}
	return companion, nil
}

func (s *chatService) requirePremium(ctx context.Context, userID uint) error {
	user, err := s.repos.User().FindByID(ctx, userID)
	if err != nil {
		return notFoundOr(err, apperrors.ErrNotFound)
	}
	if !user.PremiumActive(time.Now()) {
		return apperrors.New(apperrors.ErrPremiumRequired)
	}
	return nil
}

// refund 扣费之后的步骤失败时退还
func (s *chatService) refund(ctx context.Context, owner Owner, amount int64, ref string) {
	if _, err := s.diamonds.Refund(context.WithoutCancel(ctx), owner, amount, ref); err != nil {
		s.log.Error("退还钻石失败", zap.String("owner", owner.Key()), zap.Int64("amount", amount), zap.Error(err))
	}
}

// SendMessage 扣除消息费用后生成回复，回复失败时退还
func (s *chatService) SendMessage(ctx context.Context, owner Owner, req SendMessageRequest) (*SendMessageResult, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "消息内容不能为空")
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, apperrors.Newf(apperrors.ErrInvalidParam, "消息长度不能超过%d", maxMessageLength)
	}

	companion, err := s.companionFor(ctx, owner, req.CompanionID, req.EnforceAccess)
	if err != nil {
		return nil, err
	}

	cost := s.diamonds.Costs(ctx).MessageCost
	ref := strconv.FormatUint(uint64(companion.ID), 10)
	remaining, err := s.diamonds.Deduct(ctx, owner, Action{
		Type:    models.TxTypeMessage,
		Cost:    cost,
		RefType: "companion",
		RefID:   ref,
	})
	if err != nil {
		return nil, err
	}

	history, err := s.repos.ChatMessage().FindRecent(ctx, owner.Kind, owner.ID, companion.ID, s.memoryRetention(ctx, owner, companion.ID))
	if err != nil {
		s.log.Warn("读取聊天上下文失败", zap.String("owner", owner.Key()), zap.Error(err))
	}

	text, err := s.responder.Reply(ctx, companion, history, content)
	if err != nil {
		s.refund(ctx, owner, cost, ref)
		s.log.Warn("生成回复失败，已退还钻石",
			zap.String("owner", owner.Key()),
			zap.Uint("companion_id", companion.ID),
			zap.Error(err),
		)
		return nil, apperrors.Wrap(err, apperrors.ErrResponderUnavailable)
	}

	now := time.Now()
	userMessage := &models.ChatMessage{
		OwnerType:   owner.Kind,
		OwnerID:     owner.ID,
		CompanionID: companion.ID,
		Content:     content,
		Sender:      models.SenderUser,
		SentAt:      now,
	}
	reply := &models.ChatMessage{
		OwnerType:   owner.Kind,
		OwnerID:     owner.ID,
		CompanionID: companion.ID,
		Content:     text,
		Sender:      models.SenderCompanion,
		SentAt:      now.Add(time.Millisecond),
	}
	if err := s.repos.ChatMessage().BatchCreate(ctx, []*models.ChatMessage{userMessage, reply}); err != nil {
		s.refund(ctx, owner, cost, ref)
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "保存聊天记录失败")
	}

	if err := s.repos.Companion().IncrPopularity(ctx, companion.ID); err != nil {
		s.log.Warn("更新伴侣热度失败", zap.Uint("companion_id", companion.ID), zap.Error(err))
	}
	s.recordInteraction(ctx, owner, companion.ID, now)

	return &SendMessageResult{
		UserMessage:       userMessage,
		Reply:             reply,
		DiamondsUsed:      cost,
		RemainingDiamonds: remaining,
	}, nil
}

// memoryRetention 回复时参考的历史条数，取伴侣设置，未设置时为默认值
func (s *chatService) memoryRetention(ctx context.Context, owner Owner, companionID uint) int {
	settings, err := s.repos.CompanionSettings().Find(ctx, owner.Kind, owner.ID, companionID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("读取伴侣设置失败", zap.String("owner", owner.Key()), zap.Error(err))
		}
		return models.DefaultMemoryRetention
	}
	if settings.MemoryRetention <= 0 {
		return models.DefaultMemoryRetention
	}
	return settings.MemoryRetention
}

// recordInteraction 为热力图累计一次对话，失败不影响发送
func (s *chatService) recordInteraction(ctx context.Context, owner Owner, companionID uint, at time.Time) {
	err := s.repos.Interaction().Create(ctx, &models.Interaction{
		OwnerType:    owner.Kind,
		OwnerID:      owner.ID,
		CompanionID:  companionID,
		Date:         at.Format(dateLayout),
		Hour:         at.Hour(),
		MessageCount: 1,
	})
	if err != nil {
		s.log.Warn("记录互动失败", zap.String("owner", owner.Key()), zap.Uint("companion_id", companionID), zap.Error(err))
	}
}

// GenerateImage 扣除图片费用并生成图片地址，注册用户需为会员
func (s *chatService) GenerateImage(ctx context.Context, owner Owner, req GenerateImageRequest) (*GenerateImageResult, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "图片描述不能为空")
	}

	if owner.IsUser() {
		if err := s.requirePremium(ctx, owner.ID); err != nil {
			return nil, err
		}
	}

	companion, err := s.companionFor(ctx, owner, req.CompanionID, req.EnforceAccess)
	if err != nil {
		return nil, err
	}

	cost := s.diamonds.Costs(ctx).ImageCost
	ref := strconv.FormatUint(uint64(companion.ID), 10)
	remaining, err := s.diamonds.Deduct(ctx, owner, Action{
		Type:    models.TxTypeImage,
		Cost:    cost,
		RefType: "companion",
		RefID:   ref,
	})
	if err != nil {
		return nil, err
	}

	url := s.images.BuildURL(prompt, companion)
	message := &models.ChatMessage{
		OwnerType:   owner.Kind,
		OwnerID:     owner.ID,
		CompanionID: companion.ID,
		Content:     prompt,
		Sender:      models.SenderCompanion,
		ImageURL:    url,
		SentAt:      time.Now(),
	}
	if err := s.repos.ChatMessage().Create(ctx, message); err != nil {
		s.refund(ctx, owner, cost, ref)
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "保存图片消息失败")
	}

	s.log.Info("生成图片",
		zap.String("owner", owner.Key()),
		zap.Uint("companion_id", companion.ID),
		zap.Int64("cost", cost),
	)
	return &GenerateImageResult{
		ImageURL:          url,
		Message:           message,
		DiamondsUsed:      cost,
		RemainingDiamonds: remaining,
	}, nil
}

// SaveMessage 直接保存一条消息，不扣费
func (s *chatService) SaveMessage(ctx context.Context, owner Owner, req SaveMessageRequest) (*models.ChatMessage, error) {
	if !models.ValidSender(req.Sender) {
		return nil, apperrors.New(apperrors.ErrInvalidSender, req.Sender)
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "消息内容不能为空")
	}
	if _, err := s.repos.Companion().FindByID(ctx, req.CompanionID); err != nil {
		return nil, notFoundOr(err, apperrors.ErrCompanionNotFound)
	}

	message := &models.ChatMessage{
		OwnerType:        owner.Kind,
		OwnerID:          owner.ID,
		CompanionID:      req.CompanionID,
		Content:          content,
		Sender:           req.Sender,
		EmotionType:      req.EmotionType,
		EmotionIntensity: req.EmotionIntensity,
		ImageURL:         req.ImageURL,
		SentAt:           time.Now(),
	}
	if err := s.repos.ChatMessage().Create(ctx, message); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert)
	}
	return message, nil
}

// History 按发送时间升序返回最近的聊天记录
func (s *chatService) History(ctx context.Context, owner Owner, companionID uint) ([]*models.ChatMessage, error) {
	limit := s.historyLimit
	if o := s.overrides.GetEconomyOverrides(ctx); o.ChatHistoryLimit > 0 {
		limit = o.ChatHistoryLimit
	}

	messages, err := s.repos.ChatMessage().FindRecent(ctx, owner.Kind, owner.ID, companionID, limit)
	if err != nil {
		return nil, storageErr(err)
	}
	if messages == nil {
		messages = []*models.ChatMessage{}
	}
	return messages, nil
}

// Clear 清空归属下的全部聊天记录
func (s *chatService) Clear(ctx context.Context, owner Owner) (int64, error) {
	deleted, err := s.repos.ChatMessage().DeleteByOwner(ctx, owner.Kind, owner.ID)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrDatabaseDelete)
	}
	s.log.Info("清空聊天记录", zap.String("owner", owner.Key()), zap.Int64("deleted", deleted))
	return deleted, nil
}

// ClearCompanion 清空与指定伴侣的聊天记录
func (s *chatService) ClearCompanion(ctx context.Context, owner Owner, companionID uint) (int64, error) {
	deleted, err := s.repos.ChatMessage().DeleteByOwnerCompanion(ctx, owner.Kind, owner.ID, companionID)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrDatabaseDelete)
	}
	return deleted, nil
}

// Memories 最近的对话记忆，条数由伴侣设置的 memory_retention 决定
func (s *chatService) Memories(ctx context.Context, owner Owner, companionID uint) (*MemoryList, error) {
	if _, err := s.repos.Companion().FindByID(ctx, companionID); err != nil {
		return nil, notFoundOr(err, apperrors.ErrCompanionNotFound)
	}

	retention := s.memoryRetention(ctx, owner, companionID)
	messages, err := s.repos.ChatMessage().FindRecent(ctx, owner.Kind, owner.ID, companionID, retention)
	if err != nil {
		return nil, storageErr(err)
	}

	items := make([]MemoryEntry, 0, len(messages))
	for _, m := range messages {
		text := m.Content
		if text == "" {
			text = m.ImageURL
		}
		items = append(items, MemoryEntry{
			ID:   m.ID,
			Text: text,
			Metadata: MemoryMetadata{
				Timestamp:   m.SentAt,
				Speaker:     m.Sender,
				CompanionID: m.CompanionID,
				OwnerType:   m.OwnerType,
				OwnerID:     m.OwnerID,
			},
		})
	}
	return &MemoryList{CompanionID: companionID, Retention: retention, Items: items}, nil
}
