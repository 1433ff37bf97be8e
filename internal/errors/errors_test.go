package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ErrorsTestSuite 错误包测试套件
type ErrorsTestSuite struct {
	suite.Suite
}

func (suite *ErrorsTestSuite) TestNew() {
	err := New(ErrInvalidParam)
	suite.NotNil(err)
	suite.Equal(ErrInvalidParam, err.Code)
	suite.Equal("无效的参数", err.Message)
	suite.Empty(err.Details)

	err = New(ErrCompanionNotFound, "伴侣ID: 42")
	suite.Equal("伴侣不存在", err.Message)
	suite.Equal("伴侣ID: 42", err.Details)

	// 多个详情
	err = New(ErrDatabaseConnect, "连接失败", "主机: localhost", "端口: 3306")
	suite.Equal("连接失败; 主机: localhost; 端口: 3306", err.Details)
}

func (suite *ErrorsTestSuite) TestNewf() {
	err := Newf(ErrInsufficientDiamonds, "需要 %d 颗, 剩余 %d 颗", 5, 3)
	suite.Equal(ErrInsufficientDiamonds, err.Code)
	suite.Equal("需要 5 颗, 剩余 3 颗", err.Details)
}

func (suite *ErrorsTestSuite) TestWrap() {
	originalErr := errors.New("原始错误")
	wrappedErr := Wrap(originalErr, ErrDatabaseQuery)
	suite.Equal(ErrDatabaseQuery, wrappedErr.Code)
	suite.Equal("原始错误", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)

	suite.Nil(Wrap(nil, ErrUnknown))

	// 包装已有的AppError时保留原始错误码
	appErr := New(ErrNotFound, "资源不存在")
	wrappedAppErr := Wrap(appErr, ErrInvalidParam, "额外信息")
	suite.Equal(ErrNotFound, wrappedAppErr.Code)
	suite.Contains(wrappedAppErr.Details, "额外信息")

	// fmt.Errorf 包裹的AppError同样保留
	chained := fmt.Errorf("外层: %w", New(ErrPremiumRequired))
	suite.Equal(ErrPremiumRequired, Wrap(chained, ErrUnknown).Code)
}

func (suite *ErrorsTestSuite) TestWrapf() {
	originalErr := errors.New("连接超时")
	wrappedErr := Wrapf(originalErr, ErrDatabaseConnect, "数据库 %s 连接失败", "sqlite")
	suite.Equal(ErrDatabaseConnect, wrappedErr.Code)
	suite.Equal("数据库 sqlite 连接失败", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)
}

func (suite *ErrorsTestSuite) TestIsAndGetCode() {
	err := New(ErrCompanionLocked)
	suite.True(Is(err, ErrCompanionLocked))
	suite.False(Is(err, ErrNotFound))
	suite.False(Is(nil, ErrCompanionLocked))
	suite.True(Is(fmt.Errorf("wrap: %w", err), ErrCompanionLocked))

	suite.Equal(ErrCompanionLocked, GetCode(err))
	suite.Equal(ErrUnknown, GetCode(errors.New("标准错误")))
	suite.Equal(ErrorCode(0), GetCode(nil))
}

func (suite *ErrorsTestSuite) TestError() {
	err := &AppError{Code: ErrNotFound, Message: "资源未找到"}
	suite.Equal("[1002] 资源未找到", err.Error())

	err.Details = "用户ID: 123"
	suite.Equal("[1002] 资源未找到: 用户ID: 123", err.Error())
}

func (suite *ErrorsTestSuite) TestWithCauseAndMeta() {
	cause := errors.New("SQL语法错误")
	err := New(ErrDatabaseQuery).WithCause(cause)
	suite.Equal(cause, err.Unwrap())
	suite.Equal("SQL语法错误", err.Details)

	err2 := New(ErrDatabaseQuery, "查询失败").WithCause(cause)
	suite.Equal("查询失败", err2.Details)

	err3 := New(ErrInsufficientDiamonds).WithMeta("remaining_diamonds", int64(3))
	suite.Equal(int64(3), err3.Meta["remaining_diamonds"])
}

func (suite *ErrorsTestSuite) TestHTTPStatus() {
	testCases := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrInvalidParam, 400},
		{ErrInvalidPackage, 400},
		{ErrPaymentAmountMismatch, 400},
		{ErrInvalidGender, 400},
		{ErrInsufficientDiamonds, 402},
		{ErrPremiumRequired, 403},
		{ErrCompanionLocked, 403},
		{ErrNotFound, 404},
		{ErrCompanionNotFound, 404},
		{ErrTimeout, 408},
		{ErrAlreadyExists, 409},
		{ErrPaymentConflict, 409},
		{ErrAuthentication, 401},
		{ErrTokenExpired, 401},
		{ErrRateLimitExceeded, 429},
		{ErrAlreadyVerified, 400},
		{ErrVerificationToken, 400},
		{ErrPasswordMismatch, 401},
		{ErrResponderUnavailable, 503},
		{ErrMailUnavailable, 503},
		{ErrDatabaseConnect, 503},
		{ErrTransaction, 503},
		{ErrUnknown, 500},
	}

	for _, tc := range testCases {
		suite.Equal(tc.expected, New(tc.code).HTTPStatus(), "错误码 %d 应该返回HTTP状态码 %d", tc.code, tc.expected)
	}
}

func (suite *ErrorsTestSuite) TestIsRetryable() {
	for _, code := range []ErrorCode{ErrTimeout, ErrResponderUnavailable, ErrDatabaseConnect, ErrTransaction} {
		suite.True(IsRetryable(New(code)), "错误码 %d 应该是可重试的", code)
	}
	for _, code := range []ErrorCode{ErrInvalidParam, ErrInsufficientDiamonds, ErrPaymentConflict} {
		suite.False(IsRetryable(New(code)), "错误码 %d 不应该是可重试的", code)
	}
	suite.False(IsRetryable(nil))
}

func (suite *ErrorsTestSuite) TestIsCritical() {
	for _, code := range []ErrorCode{ErrDatabaseConnect, ErrConfigLoad, ErrConfigMissing, ErrDataIntegrity} {
		suite.True(IsCritical(New(code)))
	}
	// 余额不足是正常业务结果
	suite.False(IsCritical(New(ErrInsufficientDiamonds)))
	suite.False(IsCritical(nil))
}

func (suite *ErrorsTestSuite) TestStackCapture() {
	err := New(ErrUnknown)
	suite.NotEmpty(err.Stack)
	suite.NotEmpty(err.GetStack())
	for _, frame := range err.Stack {
		suite.NotContains(frame.Function, "internal/errors.New")
	}
}

func (suite *ErrorsTestSuite) TestErrorResponse() {
	err := New(ErrGuestSessionNotFound)
	response := NewErrorResponse(err, "req-123")

	suite.False(response.Success)
	suite.Equal(err, response.Error)
	suite.Equal("req-123", response.RequestID)
	suite.Greater(response.Timestamp, int64(0))
}

func (suite *ErrorsTestSuite) TestUnknownErrorCode() {
	err := New(ErrorCode(99999))
	suite.Equal(ErrorCode(99999), err.Code)
	suite.Equal("未知错误", err.Message)
}

func (suite *ErrorsTestSuite) TestEconomyMessages() {
	messages := map[ErrorCode]string{
		ErrInsufficientDiamonds:  "钻石不足",
		ErrInvalidPackage:        "无效的钻石套餐",
		ErrPaymentMissing:        "缺少支付凭证",
		ErrPaymentAmountMismatch: "支付金额不匹配",
		ErrPremiumRequired:       "需要开通会员",
		ErrInvalidPlan:           "无效的会员套餐",
	}

	for code, expected := range messages {
		suite.Equal(expected, New(code).Message)
	}
}

func TestErrorsSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}
