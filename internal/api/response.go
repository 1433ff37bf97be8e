package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/redvelvet/internal/errors"
	"github.com/wfunc/redvelvet/internal/middleware"
	"github.com/wfunc/redvelvet/internal/service"
	"go.uber.org/zap"
)

// ErrorResponse 错误响应，余额不足时附带购买引导字段
type ErrorResponse struct {
	Code              apperrors.ErrorCode `json:"code"`
	Message           string              `json:"message"`
	Details           string              `json:"details,omitempty"`
	RequiresPurchase  bool                `json:"requires_purchase,omitempty"`
	RemainingDiamonds *int64              `json:"remaining_diamonds,omitempty"`
	RequiredDiamonds  *int64              `json:"required_diamonds,omitempty"`
}

// SuccessResponse 成功响应
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// SessionOptions 访客会话ID回写方式
type SessionOptions struct {
	Header       string
	Cookie       string
	CookieMaxAge int
}

// handler 各处理器共用的依赖
type handler struct {
	services *service.Services
	session  SessionOptions
	log      *zap.Logger
}

// fail 按错误码输出错误响应
func (h *handler) fail(c *gin.Context, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Wrap(err, apperrors.ErrUnknown)
	}

	resp := ErrorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}
	if appErr.Code == apperrors.ErrInsufficientDiamonds {
		resp.RequiresPurchase = true
		resp.RemainingDiamonds = metaInt(appErr, "remaining_diamonds")
		resp.RequiredDiamonds = metaInt(appErr, "required_diamonds")
	}

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		h.log.Error("请求处理失败",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, resp)
}

// badRequest 请求体或参数绑定失败
func (h *handler) badRequest(c *gin.Context, err error) {
	h.fail(c, apperrors.Wrap(err, apperrors.ErrInvalidParam, "请求参数错误"))
}

func metaInt(e *apperrors.AppError, key string) *int64 {
	if v, ok := e.Meta[key].(int64); ok {
		return &v
	}
	return nil
}

// guestSession 解析访客会话，并在响应中回写会话ID
func (h *handler) guestSession(c *gin.Context) (*service.GuestSessionView, bool) {
	identity, ok := middleware.GetDeviceIdentity(c)
	if !ok {
		h.fail(c, apperrors.New(apperrors.ErrFingerprintInvalid, "缺少设备信息"))
		return nil, false
	}

	view, err := h.services.Guest.ResolveSession(c.Request.Context(), identity)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	h.writeSession(c, view.SessionID)
	return view, true
}

func (h *handler) writeSession(c *gin.Context, sessionID string) {
	if h.session.Header != "" {
		c.Header(h.session.Header, sessionID)
	}
	if h.session.Cookie != "" {
		c.SetCookie(h.session.Cookie, sessionID, h.session.CookieMaxAge, "/", "", false, true)
	}
}

// owner 已登录时为用户，否则为访客设备
func (h *handler) owner(c *gin.Context) (service.Owner, bool) {
	if userID, ok := middleware.GetUserID(c); ok {
		return service.UserOwner(userID), true
	}
	view, ok := h.guestSession(c)
	if !ok {
		return service.Owner{}, false
	}
	return view.Owner(), true
}

// userOwner 需要登录的路由使用
func (h *handler) userOwner(c *gin.Context) (service.Owner, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		h.fail(c, apperrors.New(apperrors.ErrAuthentication, "未登录"))
		return service.Owner{}, false
	}
	return service.UserOwner(userID), true
}

// companionParam 解析路径中的伴侣ID
func (h *handler) companionParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		h.fail(c, apperrors.New(apperrors.ErrInvalidParam, "无效的伴侣ID"))
		return 0, false
	}
	return uint(id), true
}
