package service

import (
	"context"
	"time"

	apperrors "github.com/wfunc/redvelvet/internal/errors"
	"github.com/wfunc/redvelvet/internal/models"
	"github.com/wfunc/redvelvet/internal/repository"
	"go.uber.org/zap"
)

const (
	dateLayout          = "2006-01-02"
	defaultHeatmapDays  = 7
	maxHeatmapDays      = 366
	maxInteractionBatch = 1000
)

// interactionService 互动记录服务实现
type interactionService struct {
	repos *repository.Manager
	now   func() time.Time
	log   *zap.Logger
}

// NewInteractionService 创建互动记录服务
func NewInteractionService(repos *repository.Manager, log *zap.Logger) InteractionService {
	return &interactionService{repos: repos, now: time.Now, log: log}
}

// Record 写入一条互动记录，owner 为空表示匿名
func (s *interactionService) Record(ctx context.Context, owner *Owner, req InteractionRequest) (*models.Interaction, error) {
	if req.CompanionID == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "缺少 companion_id")
	}
	if _, err := s.repos.Companion().FindByID(ctx, req.CompanionID); err != nil {
		return nil, notFoundOr(err, apperrors.ErrCompanionNotFound)
	}

	now := s.now()
	date := req.Date
	if date == "" {
		date = now.Format(dateLayout)
	} else if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "date 格式应为 YYYY-MM-DD")
	}

	hour := now.Hour()
	if req.Hour != nil {
		hour = *req.Hour
	}
	if hour < 0 || hour > 23 {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "hour 需在0-23之间")
	}

	count := req.MessageCount
	if count == 0 {
		count = 1
	}
	if count < 0 || count > maxInteractionBatch {
		return nil, apperrors.Newf(apperrors.ErrInvalidParam, "message_count 需在1-%d之间", maxInteractionBatch)
	}
	if req.ResponseTimeMs != nil && *req.ResponseTimeMs < 0 {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "response_time_ms 不能为负数")
	}

	interaction := &models.Interaction{
		CompanionID:      req.CompanionID,
		Date:             date,
		Hour:             hour,
		MessageCount:     count,
		ResponseTimeMs:   req.ResponseTimeMs,
		EmotionType:      req.EmotionType,
		EmotionIntensity: req.EmotionIntensity,
	}
	if owner != nil {
		interaction.OwnerType = owner.Kind
		interaction.OwnerID = owner.ID
	}
	if err := s.repos.Interaction().Create(ctx, interaction); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "保存互动记录失败")
	}
	return interaction, nil
}

// Heatmap 按日期与小时汇总消息数，区间内每天都有24个槽位，默认最近7天
func (s *interactionService) Heatmap(ctx context.Context, companionID uint, startDate, endDate string) (Heatmap, error) {
	if companionID == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "无效的伴侣ID")
	}

	end := s.now()
	if endDate != "" {
		parsed, err := time.ParseInLocation(dateLayout, endDate, time.Local)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrInvalidParam, "end_date 格式应为 YYYY-MM-DD")
		}
		end = parsed
	}
	start := end.AddDate(0, 0, -(defaultHeatmapDays - 1))
	if startDate != "" {
		parsed, err := time.ParseInLocation(dateLayout, startDate, time.Local)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrInvalidParam, "start_date 格式应为 YYYY-MM-DD")
		}
		start = parsed
	}

	first := start.Format(dateLayout)
	last := end.Format(dateLayout)
	if first > last {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "start_date 不能晚于 end_date")
	}

	heatmap := make(Heatmap)
	day := start
	for d := first; d <= last; d = day.Format(dateLayout) {
		if len(heatmap) >= maxHeatmapDays {
			return nil, apperrors.Newf(apperrors.ErrInvalidParam, "时间范围不能超过%d天", maxHeatmapDays)
		}
		heatmap[d] = make([]int64, 24)
		day = day.AddDate(0, 0, 1)
	}

	rows, err := s.repos.Interaction().HourlyCounts(ctx, companionID, first, last)
	if err != nil {
		return nil, storageErr(err)
	}
	for _, row := range rows {
		if hours, ok := heatmap[row.Date]; ok && row.Hour >= 0 && row.Hour < 24 {
			hours[row.Hour] += row.Count
		}
	}
	return heatmap, nil
}
