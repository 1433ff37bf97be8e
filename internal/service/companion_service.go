package service

import (
	"context"
	"sort"
	"strings"

	apperrors "github.com/wfunc/redvelvet/internal/errors"
	"github.com/wfunc/redvelvet/internal/models"
	"github.com/wfunc/redvelvet/internal/repository"
	"go.uber.org/zap"
)

// companionService 伴侣目录服务实现
type companionService struct {
	repos    *repository.Manager
	settings *settings
	log      *zap.Logger
}

// NewCompanionService 创建伴侣目录服务
func NewCompanionService(repos *repository.Manager, st *settings, log *zap.Logger) CompanionService {
	return &companionService{repos: repos, settings: st, log: log}
}

// ValidGender 性别偏好是否合法
func ValidGender(gender string) bool {
	switch gender {
	case models.GenderMale, models.GenderFemale, models.GenderBoth:
		return true
	}
	return false
}

// List 列出上架的伴侣
func (s *companionService) List(ctx context.Context, query CompanionQuery) ([]*models.Companion, error) {
	if query.Gender != "" && !ValidGender(query.Gender) {
		return nil, apperrors.New(apperrors.ErrInvalidGender, query.Gender)
	}

	companions, err := s.repos.Companion().List(ctx, repository.CompanionFilter{
		Gender:         query.Gender,
		IncludePremium: true,
		AvailableOnly:  true,
	})
	if err != nil {
		return nil, storageErr(err)
	}

	search := strings.ToLower(strings.TrimSpace(query.Search))
	result := make([]*models.Companion, 0, len(companions))
	for _, c := range companions {
		if query.Premium != nil && c.IsPremium != *query.Premium {
			continue
		}
		if query.Tier != "" && c.Tier != query.Tier {
			continue
		}
		if search != "" && !matchCompanion(c, search) {
			continue
		}
		result = append(result, c)
	}

	switch query.Sort {
	case "name":
		sort.SliceStable(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	case "newest":
		sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	case "popular":
		sort.SliceStable(result, func(i, j int) bool { return result[i].Popularity > result[j].Popularity })
	}

	return result, nil
}

func matchCompanion(c *models.Companion, search string) bool {
	if strings.Contains(strings.ToLower(c.Name), search) ||
		strings.Contains(strings.ToLower(c.Tagline), search) ||
		strings.Contains(strings.ToLower(c.Description), search) {
		return true
	}
	for _, trait := range c.Traits {
		if strings.Contains(strings.ToLower(trait), search) {
			return true
		}
	}
	return false
}

// Get 获取伴侣
func (s *companionService) Get(ctx context.Context, id uint) (*models.Companion, error) {
	companion, err := s.repos.Companion().FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, apperrors.ErrCompanionNotFound)
	}
	return companion, nil
}

// Create 新增伴侣
func (s *companionService) Create(ctx context.Context, companion *models.Companion) error {
	if strings.TrimSpace(companion.Name) == "" {
		return apperrors.New(apperrors.ErrInvalidParam, "伴侣名称不能为空")
	}
	if companion.Gender == "" {
		companion.Gender = models.GenderFemale
	}
	if companion.Gender != models.GenderMale && companion.Gender != models.GenderFemale {
		return apperrors.New(apperrors.ErrInvalidGender, companion.Gender)
	}
	if companion.Tier == "" {
		companion.Tier = models.TierFree
	}
	companion.IsPremium = companion.Tier == models.TierPremium

	if err := s.repos.Companion().Create(ctx, companion); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseInsert)
	}
	s.log.Info("新增伴侣", zap.Uint("id", companion.ID), zap.String("name", companion.Name))
	return nil
}

// AccessibleIDs 访客按性别偏好可访问的免费伴侣，
// female 取前3个，male 取前2个，both 两者拼接
func (s *companionService) AccessibleIDs(ctx context.Context, gender string) (models.UintList, error) {
	return accessibleIDs(ctx, s.repos.Companion(), s.settings.get(), gender)
}

func accessibleIDs(ctx context.Context, repo repository.CompanionRepository, economy EconomyConfig, gender string) (models.UintList, error) {
	if !ValidGender(gender) {
		return nil, apperrors.New(apperrors.ErrInvalidGender, gender)
	}

	ids := models.UintList{}
	if gender == models.GenderFemale || gender == models.GenderBoth {
		female, err := repo.FreeIDsByGender(ctx, models.GenderFemale, economy.FemaleSlots)
		if err != nil {
			return nil, storageErr(err)
		}
		ids = append(ids, female...)
	}
	if gender == models.GenderMale || gender == models.GenderBoth {
		male, err := repo.FreeIDsByGender(ctx, models.GenderMale, economy.MaleSlots)
		if err != nil {
			return nil, storageErr(err)
		}
		ids = append(ids, male...)
	}
	return ids, nil
}
