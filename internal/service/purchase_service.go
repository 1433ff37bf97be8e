package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "github.com/wfunc/redvelvet/internal/errors"
	"github.com/wfunc/redvelvet/internal/models"
	"github.com/wfunc/redvelvet/internal/repository"
	"go.uber.org/zap"
)

// toCents 元转分，四舍五入
func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// claimPayment 登记支付凭证，返回 true 表示同一归属已处理过该凭证，
// 凭证属于其他归属或其他用途时返回 ErrPaymentConflict
func claimPayment(ctx context.Context, tx *repository.Transaction, owner Owner, payment *models.Payment) (bool, error) {
	now := time.Now()
	payment.OwnerType = owner.Kind
	payment.OwnerID = owner.ID
	payment.Status = models.PaymentStatusCompleted
	payment.ProcessedAt = &now

	created, err := tx.Payment().CreateIfAbsent(ctx, payment)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "登记支付凭证失败")
	}
	if created {
		return false, nil
	}

	existing, err := tx.Payment().FindByPaymentID(ctx, payment.PaymentID)
	if err != nil {
		return false, storageErr(err)
	}
	if existing.OwnerType != owner.Kind || existing.OwnerID != owner.ID || existing.Kind != payment.Kind {
		return false, apperrors.New(apperrors.ErrPaymentConflict, payment.PaymentID)
	}
	return true, nil
}

// purchaseOrderNo 支付凭证对应的入账流水号，重复提交时返回首次入账的流水号
func purchaseOrderNo(ctx context.Context, tx *repository.Transaction, owner Owner, paymentID string) (string, error) {
	entries, err := tx.Ledger().FindByRef(ctx, "payment", paymentID)
	if err != nil {
		return "", storageErr(err)
	}
	for _, e := range entries {
		if e.Type == models.TxTypePurchase && e.OwnerType == owner.Kind && e.OwnerID == owner.ID {
			return e.OrderNo, nil
		}
	}
	return "", nil
}

// purchaseService 钻石购买服务实现
type purchaseService struct {
	repos    *repository.Manager
	settings *settings
	notifier BalanceNotifier
	log      *zap.Logger
}

// NewPurchaseService 创建钻石购买服务
func NewPurchaseService(repos *repository.Manager, st *settings, notifier BalanceNotifier, log *zap.Logger) PurchaseService {
	return &purchaseService{repos: repos, settings: st, notifier: notifier, log: log}
}

// Packages 按价格升序返回套餐
func (s *purchaseService) Packages() []Package {
	return s.settings.get().sortedPackages()
}

// PurchaseDiamonds 支付成功后入账，同一支付凭证只入账一次
func (s *purchaseService) PurchaseDiamonds(ctx context.Context, owner Owner, req PurchaseRequest) (*PurchaseResult, error) {
	paymentID := strings.TrimSpace(req.PaymentID)
	if paymentID == "" {
		return nil, apperrors.New(apperrors.ErrPaymentMissing)
	}
	pkg, ok := s.settings.get().Packages[req.PackageType]
	if !ok {
		return nil, apperrors.New(apperrors.ErrInvalidPackage, req.PackageType)
	}
	if cents := toCents(req.Amount); cents != pkg.PriceCents {
		return nil, apperrors.Newf(apperrors.ErrPaymentAmountMismatch,
			"套餐 %s 价格为 %d 分，实付 %d 分", pkg.ID, pkg.PriceCents, cents)
	}

	result := &PurchaseResult{PaymentID: paymentID, PackageType: pkg.ID}
	err := s.repos.WithTransaction(ctx, func(tx *repository.Transaction) error {
		c := tx.Context()

		already, err := claimPayment(c, tx, owner, &models.Payment{
			PaymentID:   paymentID,
			Kind:        models.PaymentKindDiamonds,
			PackageID:   pkg.ID,
			AmountCents: pkg.PriceCents,
			Diamonds:    pkg.Diamonds,
		})
		if err != nil {
			return err
		}
		if already {
			result.AlreadyProcessed = true
			balance, err := balanceOf(c, tx, owner)
			if err != nil {
				return ownerErr(owner, err)
			}
			result.NewBalance = balance
			result.OrderNo, err = purchaseOrderNo(c, tx, owner, paymentID)
			return err
		}

		after, err := creditInTx(c, tx, owner, pkg.Diamonds, ledgerEntry{
			Type:        models.TxTypePurchase,
			RefType:     "payment",
			RefID:       paymentID,
			Description: fmt.Sprintf("购买钻石套餐 %s", pkg.ID),
			Metadata: models.JSONMap{
				"package":      pkg.ID,
				"amount_cents": pkg.PriceCents,
			},
		})
		if err != nil {
			return err
		}
		result.DiamondsAdded = pkg.Diamonds
		result.NewBalance = after
		result.OrderNo, err = purchaseOrderNo(c, tx, owner, paymentID)
		return err
	})
	if err != nil {
		s.log.Warn("购买钻石失败",
			zap.String("owner", owner.Key()),
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
		return nil, txErr(err)
	}

	if result.AlreadyProcessed {
		s.log.Info("重复的支付凭证，跳过入账",
			zap.String("owner", owner.Key()),
			zap.String("payment_id", paymentID),
		)
		return result, nil
	}

	s.log.Info("钻石购买成功",
		zap.String("owner", owner.Key()),
		zap.String("package", pkg.ID),
		zap.Int64("diamonds", pkg.Diamonds),
		zap.Int64("balance", result.NewBalance),
	)
	s.notifier.NotifyBalance(owner, result.NewBalance, models.TxTypePurchase)
	return result, nil
}

// Payments 分页查询归属下的支付记录，新记录在前
func (s *purchaseService) Payments(ctx context.Context, owner Owner, page, pageSize int) (*PaymentPage, error) {
	pagination := repository.NewPagination(page, pageSize)
	items, err := s.repos.Payment().FindByOwner(ctx, owner.Kind, owner.ID, pagination)
	if err != nil {
		return nil, storageErr(err)
	}
	if items == nil {
		items = []*models.Payment{}
	}
	return &PaymentPage{
		Items:    items,
		Total:    pagination.Total,
		Page:     pagination.Page,
		PageSize: pagination.PageSize,
	}, nil
}
