package service

import (
	"context"
	"sort"
	"strings"
	"time"

	apperrors "github.com/wfunc/redvelvet/internal/errors"
	"github.com/wfunc/redvelvet/internal/models"
	"github.com/wfunc/redvelvet/internal/repository"
	"go.uber.org/zap"
)

const defaultPlan = "monthly"

// premiumService 会员服务实现
type premiumService struct {
	repos    *repository.Manager
	settings *settings
	log      *zap.Logger
	now      func() time.Time
}

// NewPremiumService 创建会员服务
func NewPremiumService(repos *repository.Manager, st *settings, log *zap.Logger) PremiumService {
	return &premiumService{repos: repos, settings: st, log: log, now: time.Now}
}

// Plans 按月数升序返回会员套餐
func (s *premiumService) Plans() []Plan {
	plans := s.settings.get().Plans
	list := make([]Plan, 0, len(plans))
	for _, p := range plans {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Months < list[j].Months })
	return list
}

func (s *premiumService) validate(req PremiumRequest) (Plan, string, error) {
	paymentID := strings.TrimSpace(req.PaymentID)
	if paymentID == "" {
		return Plan{}, "", apperrors.New(apperrors.ErrPaymentMissing)
	}
	plan, ok := s.settings.get().Plans[req.Plan]
	if !ok {
		return Plan{}, "", apperrors.New(apperrors.ErrInvalidPlan, req.Plan)
	}
	if cents := toCents(req.Amount); cents != plan.PriceCents {
		return Plan{}, "", apperrors.Newf(apperrors.ErrPaymentAmountMismatch,
			"会员套餐 %s 价格为 %d 分，实付 %d 分", plan.ID, plan.PriceCents, cents)
	}
	return plan, paymentID, nil
}

// Upgrade 开通会员，有效期从现在起算
func (s *premiumService) Upgrade(ctx context.Context, userID uint, req PremiumRequest) (*PremiumStatus, error) {
	return s.apply(ctx, userID, req, false)
}

// Renew 续费会员，仍在有效期内时从原到期时间顺延并保留开通时间
func (s *premiumService) Renew(ctx context.Context, userID uint, req PremiumRequest) (*PremiumStatus, error) {
	if req.Plan == "" {
		user, err := s.repos.User().FindByID(ctx, userID)
		if err != nil {
			return nil, notFoundOr(err, apperrors.ErrNotFound)
		}
		req.Plan = user.SubscriptionPlan
		if _, ok := s.settings.get().Plans[req.Plan]; !ok {
			req.Plan = defaultPlan
		}
	}
	return s.apply(ctx, userID, req, true)
}

func (s *premiumService) apply(ctx context.Context, userID uint, req PremiumRequest, extend bool) (*PremiumStatus, error) {
	plan, paymentID, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	var status *PremiumStatus
	err = s.repos.WithTransaction(ctx, func(tx *repository.Transaction) error {
		c := tx.Context()

		user, err := tx.User().FindByIDForUpdate(c, userID)
		if err != nil {
			return notFoundOr(err, apperrors.ErrNotFound)
		}

		already, err := claimPayment(c, tx, UserOwner(userID), &models.Payment{
			PaymentID:   paymentID,
			Kind:        models.PaymentKindPremium,
			Plan:        plan.ID,
			AmountCents: plan.PriceCents,
			Months:      plan.Months,
		})
		if err != nil {
			return err
		}
		if already {
			status = premiumStatusOf(user, s.now())
			status.AlreadyProcessed = true
			return nil
		}

		now := s.now()
		start, base := now, now
		if extend && user.PremiumActive(now) {
			base = *user.PremiumExpireAt
			if user.PremiumStartAt != nil {
				start = *user.PremiumStartAt
			}
		}
		expire := base.AddDate(0, plan.Months, 0)

		if err := tx.User().SetPremium(c, userID, plan.ID, start, expire); err != nil {
			return notFoundOr(err, apperrors.ErrNotFound)
		}
		status = &PremiumStatus{
			IsActive: true,
			Plan:     plan.ID,
			StartAt:  &start,
			ExpireAt: &expire,
		}
		return nil
	})
	if err != nil {
		return nil, txErr(err)
	}

	if !status.AlreadyProcessed {
		s.log.Info("会员已生效",
			zap.Uint("user_id", userID),
			zap.String("plan", plan.ID),
			zap.Bool("renew", extend),
			zap.Timep("expire_at", status.ExpireAt),
		)
	}
	return status, nil
}

// Status 查询会员状态，已过期的会员在这里被清除
func (s *premiumService) Status(ctx context.Context, userID uint) (*PremiumStatus, error) {
	user, err := s.repos.User().FindByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, apperrors.ErrNotFound)
	}

	now := s.now()
	if user.IsPremium && !user.PremiumActive(now) {
		if err := s.repos.User().ClearPremium(ctx, userID); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate)
		}
		s.log.Info("会员已过期", zap.Uint("user_id", userID))
		return &PremiumStatus{IsActive: false}, nil
	}
	return premiumStatusOf(user, now), nil
}

func premiumStatusOf(user *models.User, now time.Time) *PremiumStatus {
	if !user.PremiumActive(now) {
		return &PremiumStatus{IsActive: false}
	}
	return &PremiumStatus{
		IsActive: true,
		Plan:     user.SubscriptionPlan,
		StartAt:  user.PremiumStartAt,
		ExpireAt: user.PremiumExpireAt,
	}
}
