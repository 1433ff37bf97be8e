package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/redvelvet/internal/middleware"
	"github.com/wfunc/redvelvet/internal/service"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	*handler
}

// RefreshTokenRequest 刷新令牌请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Register 用户注册
// @Summary 用户注册
// @Description 创建账号并赠送注册钻石，访客设备余额不会并入
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body service.RegisterRequest true "注册信息"
// @Success 200 {object} service.AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	resp, err := h.services.Auth.Register(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Login 用户登录
// @Summary 用户登录
// @Description 使用用户名或邮箱登录
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body service.LoginRequest true "登录信息"
// @Success 200 {object} service.AuthResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	resp, err := h.services.Auth.Login(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Logout 用户登出
// @Summary 用户登出
// @Tags Auth
// @Security Bearer
// @Produce json
// @Success 200 {object} SuccessResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.services.Auth.Logout(c.Request.Context(), middleware.GetToken(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "登出成功"})
}

// RefreshToken 刷新令牌
// @Summary 刷新访问令牌
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RefreshTokenRequest true "刷新令牌"
// @Success 200 {object} service.AuthResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	resp, err := h.services.Auth.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetProfile 获取用户资料
// @Summary 当前用户资料、钻石余额与会员状态
// @Tags Auth
// @Security Bearer
// @Produce json
// @Success 200 {object} service.UserProfile
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/profile [get]
func (h *AuthHandler) GetProfile(c *gin.Context) {
	owner, ok := h.userOwner(c)
	if !ok {
		return
	}

	profile, err := h.services.User.GetProfile(c.Request.Context(), owner.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// ResendVerificationRequest 重发验证邮件
type ResendVerificationRequest struct {
	Email string `json:"email" binding:"required"`
}

// VerifyEmail 邮件中的验证链接
// @Summary 验证邮箱
// @Tags Auth
// @Produce json
// @Param token query string true "验证令牌"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/auth/verify-email [get]
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	user, err := h.services.Auth.VerifyEmail(c.Request.Context(), c.Query("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "邮箱验证成功", Data: user})
}

// ResendVerification 重新发送验证邮件
// @Summary 重发验证邮件
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body ResendVerificationRequest true "邮箱"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/auth/resend-verification [post]
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req ResendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	if err := h.services.Auth.ResendVerification(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "验证邮件已发送"})
}

// ChangePassword 修改密码，其他登录会话全部失效
// @Summary 修改密码
// @Tags Auth
// @Security Bearer
// @Accept json
// @Produce json
// @Param request body service.ChangePasswordRequest true "新旧密码"
// @Success 200 {object} service.AuthResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/user/password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req service.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	owner, ok := h.userOwner(c)
	if !ok {
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	resp, err := h.services.Auth.ChangePassword(c.Request.Context(), owner.ID, &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateProfile 修改昵称、头像与简介
// @Summary 修改资料
// @Tags Auth
// @Security Bearer
// @Accept json
// @Produce json
// @Param request body service.ProfileUpdate true "资料"
// @Success 200 {object} service.UserProfile
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/user/profile [patch]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var update service.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		h.badRequest(c, err)
		return
	}
	owner, ok := h.userOwner(c)
	if !ok {
		return
	}

	profile, err := h.services.User.UpdateProfile(c.Request.Context(), owner.ID, update)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
