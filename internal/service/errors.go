package service

import (
	"errors"
	"fmt"

	apperrors "github.com/wfunc/redvelvet/internal/errors"
	"github.com/wfunc/redvelvet/internal/repository"
)

// storageErr 存储层故障统一视为可重试的数据库错误
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
}

// notFoundOr 记录不存在时返回指定错误码，其余视为存储故障
func notFoundOr(err error, code apperrors.ErrorCode) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.Wrap(err, code)
	}
	return storageErr(err)
}

// ownerErr 按归属类型翻译记录不存在
func ownerErr(owner Owner, err error) error {
	if owner.IsUser() {
		return notFoundOr(err, apperrors.ErrNotFound)
	}
	return notFoundOr(err, apperrors.ErrGuestSessionNotFound)
}

// txErr 事务内返回的应用错误原样透出，其余归为事务失败
func txErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.Wrap(err, apperrors.ErrTransaction)
}

// insufficientDiamonds 余额不足，携带当前余额供客户端引导购买
func insufficientDiamonds(balance, required int64) *apperrors.AppError {
	return apperrors.New(apperrors.ErrInsufficientDiamonds,
		fmt.Sprintf("当前余额 %d，需要 %d", balance, required)).
		WithMeta("requires_purchase", true).
		WithMeta("remaining_diamonds", balance).
		WithMeta("required_diamonds", required)
}
