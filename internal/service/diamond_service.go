package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/wfunc/redvelvet/internal/errors"
	"github.com/wfunc/redvelvet/internal/logger"
	"github.com/wfunc/redvelvet/internal/models"
	"github.com/wfunc/redvelvet/internal/repository"
	"go.uber.org/zap"
)

// balanceStore 管理器与事务都提供的余额仓储
type balanceStore interface {
	DeviceSession() repository.DeviceSessionRepository
	UserPreferences() repository.UserPreferencesRepository
}

// ledgerEntry 待写入的流水描述
type ledgerEntry struct {
	Type        string
	RefType     string
	RefID       string
	Description string
	Metadata    models.JSONMap
}

func balanceOf(ctx context.Context, store balanceStore, owner Owner) (int64, error) {
	switch owner.Kind {
	case models.OwnerDevice:
		return store.DeviceSession().Balance(ctx, owner.ID)
	case models.OwnerUser:
		balance, err := store.UserPreferences().Balance(ctx, owner.ID)
		if errors.Is(err, repository.ErrNotFound) {
			prefs, ensureErr := store.UserPreferences().EnsureForUser(ctx, owner.ID)
			if ensureErr != nil {
				return 0, ensureErr
			}
			return prefs.MessageDiamonds, nil
		}
		return balance, err
	default:
		return 0, apperrors.Newf(apperrors.ErrInvalidParam, "未知的余额归属: %s", owner.Kind)
	}
}

// debitInTx 条件扣减并写流水，余额不足时不产生任何变动
func debitInTx(ctx context.Context, tx *repository.Transaction, owner Owner, amount int64, entry ledgerEntry) (int64, error) {
	if amount <= 0 {
		return 0, apperrors.New(apperrors.ErrInvalidAmount)
	}

	var (
		after int64
		err   error
	)
	switch owner.Kind {
	case models.OwnerDevice:
		after, err = tx.DeviceSession().Deduct(ctx, owner.ID, amount)
	case models.OwnerUser:
		after, err = tx.UserPreferences().Deduct(ctx, owner.ID, amount)
	default:
		return 0, apperrors.Newf(apperrors.ErrInvalidParam, "未知的余额归属: %s", owner.Kind)
	}
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			balance, balanceErr := balanceOf(ctx, tx, owner)
			if balanceErr != nil {
				return 0, ownerErr(owner, balanceErr)
			}
			return 0, insufficientDiamonds(balance, amount)
		}
		return 0, ownerErr(owner, err)
	}

	if err := writeLedger(ctx, tx, owner, -amount, after, entry); err != nil {
		return 0, err
	}
	return after, nil
}

// creditInTx 增加余额并写流水
func creditInTx(ctx context.Context, tx *repository.Transaction, owner Owner, amount int64, entry ledgerEntry) (int64, error) {
	if amount <= 0 {
		return 0, apperrors.New(apperrors.ErrInvalidAmount)
	}

	var (
		after int64
		err   error
	)
	switch owner.Kind {
	case models.OwnerDevice:
		after, err = tx.DeviceSession().Credit(ctx, owner.ID, amount)
	case models.OwnerUser:
		if _, err = tx.UserPreferences().EnsureForUser(ctx, owner.ID); err != nil {
			return 0, storageErr(err)
		}
		after, err = tx.UserPreferences().Credit(ctx, owner.ID, amount)
	default:
		return 0, apperrors.Newf(apperrors.ErrInvalidParam, "未知的余额归属: %s", owner.Kind)
	}
	if err != nil {
		return 0, ownerErr(owner, err)
	}

	if err := writeLedger(ctx, tx, owner, amount, after, entry); err != nil {
		return 0, err
	}
	return after, nil
}

func writeLedger(ctx context.Context, tx *repository.Transaction, owner Owner, amount, after int64, entry ledgerEntry) error {
	row := &models.DiamondTransaction{
		OwnerType:     owner.Kind,
		OwnerID:       owner.ID,
		Type:          entry.Type,
		Amount:        amount,
		BeforeBalance: after - amount,
		AfterBalance:  after,
		RefType:       entry.RefType,
		RefID:         entry.RefID,
		Description:   entry.Description,
		Metadata:      entry.Metadata,
	}
	if err := tx.Ledger().Create(ctx, row); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "写入钻石流水失败")
	}
	logger.LogLedgerEvent(owner.Key(), entry.Type, amount, after, entry.RefID)
	return nil
}

// diamondService 钻石账本服务实现
type diamondService struct {
	repos     *repository.Manager
	settings  *settings
	overrides *repository.ConfigHelper
	notifier  BalanceNotifier
	log       *zap.Logger
}

// NewDiamondService 创建钻石账本服务
func NewDiamondService(
	repos *repository.Manager,
	st *settings,
	overrides *repository.ConfigHelper,
	notifier BalanceNotifier,
	log *zap.Logger,
) DiamondService {
	return &diamondService{
		repos:     repos,
		settings:  st,
		overrides: overrides,
		notifier:  notifier,
		log:       log,
	}
}

// Balance 查询余额
func (s *diamondService) Balance(ctx context.Context, owner Owner) (int64, error) {
	balance, err := balanceOf(ctx, s.repos, owner)
	if err != nil {
		return 0, ownerErr(owner, err)
	}
	return balance, nil
}

// Costs 当前单价，系统配置表中的值优先于配置文件
func (s *diamondService) Costs(ctx context.Context) Costs {
	economy := s.settings.get()
	costs := Costs{MessageCost: economy.MessageCost, ImageCost: economy.ImageCost}

	o := s.overrides.GetEconomyOverrides(ctx)
	if o.MessageCost > 0 {
		costs.MessageCost = o.MessageCost
	}
	if o.ImageCost > 0 {
		costs.ImageCost = o.ImageCost
	}
	return costs
}

// Deduct 按动作扣费，余额不足时返回 ErrInsufficientDiamonds 且余额不变
func (s *diamondService) Deduct(ctx context.Context, owner Owner, action Action) (int64, error) {
	cost := action.Cost
	if cost == 0 {
		switch action.Type {
		case models.TxTypeMessage:
			cost = s.Costs(ctx).MessageCost
		case models.TxTypeImage:
			cost = s.Costs(ctx).ImageCost
		default:
			return 0, apperrors.Newf(apperrors.ErrInvalidParam, "未知的扣费类型: %s", action.Type)
		}
	}
	if cost <= 0 {
		return 0, apperrors.New(apperrors.ErrInvalidAmount)
	}

	description := action.Description
	if description == "" {
		description = fmt.Sprintf("%s 消耗 %d 钻石", action.Type, cost)
	}

	var after int64
	err := s.repos.WithTransaction(ctx, func(tx *repository.Transaction) error {
		var err error
		after, err = debitInTx(tx.Context(), tx, owner, cost, ledgerEntry{
			Type:        action.Type,
			RefType:     action.RefType,
			RefID:       action.RefID,
			Description: description,
		})
		return err
	})
	if err != nil {
		if apperrors.Is(err, apperrors.ErrInsufficientDiamonds) {
			s.log.Info("余额不足，拒绝扣费",
				zap.String("owner", owner.Key()),
				zap.String("type", action.Type),
				zap.Int64("cost", cost),
			)
		}
		return 0, txErr(err)
	}

	s.notifier.NotifyBalance(owner, after, action.Type)
	return after, nil
}

// Credit 入账
func (s *diamondService) Credit(ctx context.Context, owner Owner, req CreditRequest) (int64, error) {
	if req.Type == "" {
		req.Type = models.TxTypeBonus
	}

	var after int64
	err := s.repos.WithTransaction(ctx, func(tx *repository.Transaction) error {
		var err error
		after, err = creditInTx(tx.Context(), tx, owner, req.Amount, ledgerEntry{
			Type:        req.Type,
			RefType:     req.RefType,
			RefID:       req.RefID,
			Description: req.Description,
			Metadata:    req.Metadata,
		})
		return err
	})
	if err != nil {
		return 0, txErr(err)
	}

	s.notifier.NotifyBalance(owner, after, req.Type)
	return after, nil
}

// Refund 退还已扣除的钻石
func (s *diamondService) Refund(ctx context.Context, owner Owner, amount int64, refID string) (int64, error) {
	after, err := s.Credit(ctx, owner, CreditRequest{
		Amount:      amount,
		Type:        models.TxTypeRefund,
		RefType:     "ledger",
		RefID:       refID,
		Description: fmt.Sprintf("退还 %d 钻石", amount),
	})
	if err != nil {
		s.log.Error("退款失败",
			zap.String("owner", owner.Key()),
			zap.Int64("amount", amount),
			zap.String("ref", refID),
			zap.Error(err),
		)
		return 0, err
	}
	return after, nil
}

// History 分页查询流水，新记录在前
func (s *diamondService) History(ctx context.Context, owner Owner, page, pageSize int) (*HistoryPage, error) {
	pagination := repository.NewPagination(page, pageSize)
	items, err := s.repos.Ledger().FindByOwner(ctx, owner.Kind, owner.ID, pagination)
	if err != nil {
		return nil, storageErr(err)
	}
	return &HistoryPage{
		Items:    items,
		Total:    pagination.Total,
		Page:     pagination.Page,
		PageSize: pagination.PageSize,
	}, nil
}

// Transaction 按流水号查询，只能查看自己的流水
func (s *diamondService) Transaction(ctx context.Context, owner Owner, orderNo string) (*models.DiamondTransaction, error) {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "缺少流水号")
	}
	entry, err := s.repos.Ledger().FindByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, notFoundOr(err, apperrors.ErrNotFound)
	}
	if entry.OwnerType != owner.Kind || entry.OwnerID != owner.ID {
		return nil, apperrors.New(apperrors.ErrNotFound, "流水不存在")
	}
	return entry, nil
}

// Stats 最近 days 天的收支汇总，days 取值1-365，默认30
func (s *diamondService) Stats(ctx context.Context, owner Owner, days int) (*LedgerStats, error) {
	if days == 0 {
		days = 30
	}
	if days < 1 || days > 365 {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "days 需在1-365之间")
	}

	balance, err := balanceOf(ctx, s.repos, owner)
	if err != nil {
		return nil, ownerErr(owner, err)
	}

	since := time.Now().AddDate(0, 0, -days)
	stats, err := s.repos.Ledger().Stats(ctx, owner.Kind, owner.ID, since)
	if err != nil {
		return nil, storageErr(err)
	}
	return &LedgerStats{
		Days:       days,
		Since:      since,
		TotalIn:    stats.TotalIn,
		TotalOut:   stats.TotalOut,
		NetAmount:  stats.NetAmount,
		EntryCount: stats.EntryCount,
		Balance:    balance,
	}, nil
}
