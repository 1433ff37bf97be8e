package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode 错误码类型
type ErrorCode int

// 错误码定义（按模块分组）
const (
	// 通用错误 (1000-1999)
	ErrUnknown          ErrorCode = 1000
	ErrInvalidParam     ErrorCode = 1001
	ErrNotFound         ErrorCode = 1002
	ErrAlreadyExists    ErrorCode = 1003
	ErrPermissionDenied ErrorCode = 1004
	ErrTimeout          ErrorCode = 1005
	ErrCanceled         ErrorCode = 1006
	ErrNotImplemented   ErrorCode = 1007

	// 钻石经济错误 (2000-2999)
	ErrInsufficientDiamonds  ErrorCode = 2000
	ErrInvalidPackage        ErrorCode = 2001
	ErrPaymentMissing        ErrorCode = 2002
	ErrPaymentAmountMismatch ErrorCode = 2003
	ErrPaymentConflict       ErrorCode = 2004
	ErrPremiumRequired       ErrorCode = 2005
	ErrInvalidPlan           ErrorCode = 2006
	ErrInvalidAmount         ErrorCode = 2007

	// 设备与访客错误 (3000-3999)
	ErrFingerprintInvalid   ErrorCode = 3000
	ErrInvalidPlatform      ErrorCode = 3001
	ErrGuestSessionNotFound ErrorCode = 3002
	ErrCompanionLocked      ErrorCode = 3003
	ErrInvalidGender        ErrorCode = 3004
	ErrCompanionNotFound    ErrorCode = 3005
	ErrInvalidSender        ErrorCode = 3006

	// 通信错误 (4000-4999)
	ErrWebSocketConnect     ErrorCode = 4000
	ErrWebSocketSend        ErrorCode = 4001
	ErrWebSocketReceive     ErrorCode = 4002
	ErrWebSocketClosed      ErrorCode = 4003
	ErrMessageFormat        ErrorCode = 4004
	ErrResponderUnavailable ErrorCode = 4005
	ErrMailUnavailable      ErrorCode = 4006

	// 数据库错误 (5000-5999)
	ErrDatabaseConnect ErrorCode = 5000
	ErrDatabaseQuery   ErrorCode = 5001
	ErrDatabaseInsert  ErrorCode = 5002
	ErrDatabaseUpdate  ErrorCode = 5003
	ErrDatabaseDelete  ErrorCode = 5004
	ErrTransaction     ErrorCode = 5005
	ErrDataIntegrity   ErrorCode = 5006

	// 配置错误 (6000-6999)
	ErrConfigLoad     ErrorCode = 6000
	ErrConfigParse    ErrorCode = 6001
	ErrConfigValidate ErrorCode = 6002
	ErrConfigMissing  ErrorCode = 6003

	// 安全错误 (7000-7999)
	ErrAuthentication    ErrorCode = 7000
	ErrAuthorization     ErrorCode = 7001
	ErrTokenExpired      ErrorCode = 7002
	ErrTokenInvalid      ErrorCode = 7003
	ErrRateLimitExceeded ErrorCode = 7004
	ErrAlreadyVerified   ErrorCode = 7005
	ErrVerificationToken ErrorCode = 7006
	ErrPasswordMismatch  ErrorCode = 7007
)

// 错误码消息映射
var errorMessages = map[ErrorCode]string{
	ErrUnknown:          "未知错误",
	ErrInvalidParam:     "无效的参数",
	ErrNotFound:         "资源未找到",
	ErrAlreadyExists:    "资源已存在",
	ErrPermissionDenied: "权限不足",
	ErrTimeout:          "操作超时",
	ErrCanceled:         "操作已取消",
	ErrNotImplemented:   "功能未实现",

	ErrInsufficientDiamonds:  "钻石不足",
	ErrInvalidPackage:        "无效的钻石套餐",
	ErrPaymentMissing:        "缺少支付凭证",
	ErrPaymentAmountMismatch: "支付金额不匹配",
	ErrPaymentConflict:       "支付凭证已被其他账户使用",
	ErrPremiumRequired:       "需要开通会员",
	ErrInvalidPlan:           "无效的会员套餐",
	ErrInvalidAmount:         "无效的数量",

	ErrFingerprintInvalid:   "无效的设备指纹",
	ErrInvalidPlatform:      "不支持的平台",
	ErrGuestSessionNotFound: "访客会话不存在",
	ErrCompanionLocked:      "该伴侣尚未解锁",
	ErrInvalidGender:        "无效的性别偏好",
	ErrCompanionNotFound:    "伴侣不存在",
	ErrInvalidSender:        "无效的消息发送者",

	ErrWebSocketConnect:     "WebSocket连接失败",
	ErrWebSocketSend:        "WebSocket发送失败",
	ErrWebSocketReceive:     "WebSocket接收失败",
	ErrWebSocketClosed:      "WebSocket连接已关闭",
	ErrMessageFormat:        "消息格式错误",
	ErrResponderUnavailable: "AI服务暂时不可用",
	ErrMailUnavailable:      "邮件服务暂时不可用",

	ErrDatabaseConnect: "数据库连接失败",
	ErrDatabaseQuery:   "数据库查询失败",
	ErrDatabaseInsert:  "数据库插入失败",
	ErrDatabaseUpdate:  "数据库更新失败",
	ErrDatabaseDelete:  "数据库删除失败",
	ErrTransaction:     "事务处理失败",
	ErrDataIntegrity:   "数据完整性错误",

	ErrConfigLoad:     "配置加载失败",
	ErrConfigParse:    "配置解析失败",
	ErrConfigValidate: "配置验证失败",
	ErrConfigMissing:  "配置项缺失",

	ErrAuthentication:    "认证失败",
	ErrAuthorization:     "授权失败",
	ErrTokenExpired:      "令牌已过期",
	ErrTokenInvalid:      "无效的令牌",
	ErrRateLimitExceeded: "请求频率超限",
	ErrAlreadyVerified:   "邮箱已验证",
	ErrVerificationToken: "验证链接无效或已过期",
	ErrPasswordMismatch:  "当前密码错误",
}

// AppError 应用错误结构
type AppError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details string                 `json:"details"`
	Meta    map[string]interface{} `json:"meta,omitempty"` // 附加给客户端的结构化数据
	Cause   error                  `json:"-"`
	Stack   []StackFrame           `json:"stack,omitempty"`
}

// StackFrame 调用栈帧
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause 添加原因错误
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	if cause != nil && e.Details == "" {
		e.Details = cause.Error()
	}
	return e
}

// WithMeta 附加结构化字段
func (e *AppError) WithMeta(key string, value interface{}) *AppError {
	if e.Meta == nil {
		e.Meta = make(map[string]interface{})
	}
	e.Meta[key] = value
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, details ...string) *AppError {
	message, ok := errorMessages[code]
	if !ok {
		message = errorMessages[ErrUnknown]
	}

	err := &AppError{
		Code:    code,
		Message: message,
	}

	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}

	err.captureStack(2)

	return err
}

// Newf 创建格式化的应用错误
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap 包装错误，已是AppError时保留原始错误码
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := As(err); ok {
		if len(details) > 0 {
			appErr.Details = strings.Join(details, "; ") + "; " + appErr.Details
		}
		return appErr
	}

	appErr := New(code, details...)
	appErr.Cause = err
	if appErr.Details == "" {
		appErr.Details = err.Error()
	}

	return appErr
}

// Wrapf 包装格式化错误
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// As 从错误链中提取AppError
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is 判断错误是否为指定错误码
func Is(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// GetCode 获取错误码
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ErrUnknown
}

// captureStack 捕获调用栈
func (e *AppError) captureStack(skip int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	if n == 0 {
		return
	}

	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()

		// 跳过runtime和本包的调用
		if !strings.Contains(frame.Function, "runtime.") &&
			!strings.Contains(frame.Function, "github.com/wfunc/redvelvet/internal/errors.") {
			e.Stack = append(e.Stack, StackFrame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})
		}

		// 只保留前10个栈帧
		if !more || len(e.Stack) >= 10 {
			break
		}
	}
}

// GetStack 获取格式化的调用栈
func (e *AppError) GetStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var builder strings.Builder
	for i, frame := range e.Stack {
		builder.WriteString(fmt.Sprintf("%d. %s\n   %s:%d\n",
			i+1, frame.Function, frame.File, frame.Line))
	}

	return builder.String()
}

// HTTPStatus 返回对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrInvalidParam, ErrInvalidPackage, ErrPaymentMissing, ErrPaymentAmountMismatch,
		ErrInvalidPlan, ErrInvalidAmount, ErrFingerprintInvalid, ErrInvalidPlatform,
		ErrInvalidGender, ErrInvalidSender, ErrMessageFormat, ErrAlreadyVerified,
		ErrVerificationToken:
		return 400
	case ErrInsufficientDiamonds:
		return 402 // Payment Required
	case ErrPermissionDenied, ErrPremiumRequired, ErrCompanionLocked, ErrAuthorization:
		return 403
	case ErrNotFound, ErrGuestSessionNotFound, ErrCompanionNotFound:
		return 404
	case ErrTimeout:
		return 408
	case ErrAlreadyExists, ErrPaymentConflict:
		return 409
	case ErrAuthentication, ErrTokenExpired, ErrTokenInvalid, ErrPasswordMismatch:
		return 401
	case ErrRateLimitExceeded:
		return 429
	case ErrResponderUnavailable, ErrMailUnavailable:
		return 503
	}

	if e.Code >= 5000 && e.Code <= 5999 {
		return 503 // Service Unavailable
	}
	return 500
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case ErrTimeout,
		ErrWebSocketConnect,
		ErrResponderUnavailable,
		ErrDatabaseConnect,
		ErrDatabaseQuery,
		ErrTransaction:
		return true
	default:
		return false
	}
}

// IsCritical 判断是否为严重错误
func IsCritical(err error) bool {
	switch GetCode(err) {
	case ErrDatabaseConnect,
		ErrConfigLoad,
		ErrConfigMissing,
		ErrDataIntegrity:
		return true
	default:
		return false
	}
}

// ErrorResponse API错误响应结构
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     *AppError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(err *AppError, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     err,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}
