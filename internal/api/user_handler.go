package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/redvelvet/internal/service"
)

// UserHandler 注册用户的钻石、会员、偏好与聊天
type UserHandler struct {
	*handler
}

// PurchaseDiamonds 注册用户支付成功后入账
// @Summary 购买钻石
// @Tags User
// @Security Bearer
// @Accept json
// @Produce json
// @Param request body service.PurchaseRequest true "支付信息"
// @Success 200 {object} service.PurchaseResult
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/purchase-diamonds [post]
func (h *UserHandler) PurchaseDiamonds(c *gin.Context) {
	var req service.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	owner, ok := h.userOwner(c)
	if !ok {
		return
	}

	result, err := h.services.Purchase.PurchaseDiamonds(c.Request.Context(), owner, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// UpgradePremium 开通会员
// @Summary 开通会员
// @Tags Premium
// @Security Bearer
// @Accept json
// @Produce json
// @Param request body service.PremiumRequest true "支付信息"
// @Success 200 {object} service.PremiumStatus
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/premium/upgrade [post]
func (h *UserHandler) UpgradePremium(c *gin.Context) {
	var req service.PremiumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	owner, ok := h.userOwner(c)
	if !ok {
		return
	}

	status, err := h.services.Premium.Upgrade(c.Request.Context(), owner.ID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// RenewPremium 续费会员
// @Summary 续费会员
// @Description 有效期内从原到期时间顺延，plan 为空时沿用当前套餐
// @Tags Premium
// @Security Bearer
// @Accept json
// @Produce json
// @Param request body service.PremiumRequest true "支付信息"
// @Success 200 {object} service.PremiumStatus
// @Router /api/v1/premium/renew [post]
func (h *UserHandler) RenewPremium(c *gin.Context) {
	var req service.PremiumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	owner, ok := h.userOwner(c)
	if !ok {
		return
	}

	status, err := h.services.Premium.Renew(c.Request.Context(), owner.ID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// PremiumStatus 会员状态
// @Summary 会员状态
// @Tags Premium
// @Security Bearer
// @Produce json
// @Success 200 {object} service.PremiumStatus
// @Router /api/v1/premium/status [get]
func (h *UserHandler) PremiumStatus(c *gin.Context) {
	owner, ok := h.userOwner(c)
	if !ok {
		return
	}

	status, err := h.services.Premium.Status(c.Request.Context(), owner.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Plans 会员套餐
// @Summary 会员套餐列表
// @Tags Premium
// @Produce json
// @Success 200 {array} service.Plan
// @Router /api/v1/premium/plans [get]
func (h *UserHandler) Plans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": h.services.Premium.Plans()})
}

// GenerateImage 会员生成伴侣图片
// @Summary 生成图片
// @Tags User
// @Security Bearer
// @Accept json
// @Produce json
// @Param request body ImageRequest true "图片描述"
// @Success 200 {object} service.GenerateImageResult
// @Failure 402 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/generate-image [post]
func (h *UserHandler) GenerateImage(c *gin.Context) {
	var req ImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	owner, ok := h.userOwner(c)
	if !ok {
		return
	}

	result, err := h.services.Chat.GenerateImage(c.Request.Context(), owner, service.GenerateImageRequest{
		CompanionID: req.CompanionID,
		Prompt:      req.Prompt,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetPreferences 用户偏好
// @Summary 用户偏好
// @Tags User
// @Security Bearer
// @Produce json
// @Success 200 {object} models.UserPreferences
// @Router /api/v1/user/preferences [get]
func (h *UserHandler) GetPreferences(c *gin.Context) {
	owner, ok := h.userOwner(c)
	if !ok {
		return
	}

	prefs, err := h.services.User.GetPreferences(c.Request.Context(), owner.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// UpdatePreferences 更新用户偏好
// @Summary 更新用户偏好
// @Tags User
// @Security Bearer
// @Accept json
// @Produce json
// @Param request body service.PreferencesUpdate true "偏好"
// @Success 200 {object} models.UserPreferences
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/user/preferences [patch]
func (h *UserHandler) UpdatePreferences(c *gin.Context) {
	var req service.PreferencesUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	owner, ok := h.userOwner(c)
	if !ok {
		return
	}

	prefs, err := h.services.User.UpdatePreferences(c.Request.Context(), owner.ID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// ChatHistory 用户与伴侣的聊天记录
// @Summary 聊天记录
// @Tags User
// @Security Bearer
// @Produce json
// @Param id path int true "伴侣ID"
// @Success 200 {object} MessagesResponse
// @Router /api/v1/companions/{id}/chat [get]
func (h *UserHandler) ChatHistory(c *gin.Context) {
	companionID, ok := h.companionParam(c, "id")
	if !ok {
		return
	}
	owner, ok := h.userOwner(c)
	if !ok {
		return
	}

	messages, err := h.services.Chat.History(c.Request.Context(), owner, companionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, MessagesResponse{Messages: messages})
}

// SendMessage 用户发送消息
// @Summary 发送消息
// @Tags User
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path int true "伴侣ID"
// @Param request body ChatRequest true "消息"
// @Success 200 {object} service.SendMessageResult
// @Failure 402 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/companions/{id}/chat [post]
func (h *UserHandler) SendMessage(c *gin.Context) {
	companionID, ok := h.companionParam(c, "id")
	if !ok {
		return
	}
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	owner, ok := h.userOwner(c)
	if !ok {
		return
	}

	result, err := h.services.Chat.SendMessage(c.Request.Context(), owner, service.SendMessageRequest{
		CompanionID: companionID,
		Content:     req.Content,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ClearChat 清空与伴侣的聊天记录
// @Summary 清空聊天
// @Tags User
// @Security Bearer
// @Produce json
// @Param id path int true "伴侣ID"
// @Success 200 {object} SuccessResponse
// @Router /api/v1/companions/{id}/chat [delete]
func (h *UserHandler) ClearChat(c *gin.Context) {
	companionID, ok := h.companionParam(c, "id")
	if !ok {
		return
	}
	owner, ok := h.userOwner(c)
	if !ok {
		return
	}

	deleted, err := h.services.Chat.ClearCompanion(c.Request.Context(), owner, companionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: gin.H{"deleted": deleted}})
}
