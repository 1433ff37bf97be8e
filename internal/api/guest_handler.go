package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/redvelvet/internal/middleware"
	"github.com/wfunc/redvelvet/internal/models"
	"github.com/wfunc/redvelvet/internal/service"
)

// GuestHandler 访客接口，以设备指纹识别
type GuestHandler struct {
	*handler
}

// GuestPreferencesRequest 访客偏好
type GuestPreferencesRequest struct {
	PreferredGender string `json:"preferred_gender" binding:"required"`
}

// UseDiamondsRequest 消耗钻石
type UseDiamondsRequest struct {
	Count int64 `json:"count" binding:"omitempty,min=1,max=1000"`
}

// DiamondsResponse 余额
type DiamondsResponse struct {
	Success           bool   `json:"success"`
	SessionID         string `json:"session_id,omitempty"`
	RemainingDiamonds int64  `json:"remaining_diamonds"`
}

// ChatRequest 发送消息
type ChatRequest struct {
	Content string `json:"content" binding:"required"`
}

// ImageRequest 生成图片
type ImageRequest struct {
	CompanionID uint   `json:"companion_id" binding:"required"`
	Prompt      string `json:"prompt" binding:"required"`
}

// MessagesResponse 聊天记录
type MessagesResponse struct {
	Messages []*models.ChatMessage `json:"messages"`
}

// Session 解析或创建访客会话
// @Summary 访客会话
// @Description 按设备指纹获取或创建会话，新设备只发放一次欢迎钻石
// @Tags Guest
// @Produce json
// @Param X-Device-Fingerprint header string false "设备指纹"
// @Param X-Platform header string false "web/android/ios"
// @Success 200 {object} service.GuestSessionView
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/guest/session [get]
func (h *GuestHandler) Session(c *gin.Context) {
	view, ok := h.guestSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, view)
}

// Refresh 清空访客聊天记录，钻石保留
// @Summary 刷新访客会话
// @Tags Guest
// @Produce json
// @Success 200 {object} service.GuestSessionView
// @Router /api/v1/guest/refresh [post]
func (h *GuestHandler) Refresh(c *gin.Context) {
	identity, _ := middleware.GetDeviceIdentity(c)
	view, err := h.services.Guest.Refresh(c.Request.Context(), identity)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.writeSession(c, view.SessionID)
	c.JSON(http.StatusOK, view)
}

// UpdatePreferences 更新性别偏好并重算可访问伴侣
// @Summary 更新访客偏好
// @Tags Guest
// @Accept json
// @Produce json
// @Param request body GuestPreferencesRequest true "偏好"
// @Success 200 {object} service.GuestSessionView
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/guest/preferences [patch]
func (h *GuestHandler) UpdatePreferences(c *gin.Context) {
	var req GuestPreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	identity, _ := middleware.GetDeviceIdentity(c)
	view, err := h.services.Guest.UpdatePreferences(c.Request.Context(), identity, req.PreferredGender)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.writeSession(c, view.SessionID)
	c.JSON(http.StatusOK, view)
}

// Diamonds 访客余额
// @Summary 访客钻石余额
// @Tags Guest
// @Produce json
// @Success 200 {object} DiamondsResponse
// @Router /api/v1/guest/diamonds [get]
func (h *GuestHandler) Diamonds(c *gin.Context) {
	view, ok := h.guestSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, DiamondsResponse{
		Success:           true,
		SessionID:         view.SessionID,
		RemainingDiamonds: view.MessageDiamonds,
	})
}

// UseDiamonds 扣除指定数量的钻石
// @Summary 消耗访客钻石
// @Description 余额不足时返回 402 且余额不变
// @Tags Guest
// @Accept json
// @Produce json
// @Param request body UseDiamondsRequest false "数量，默认1"
// @Success 200 {object} DiamondsResponse
// @Failure 402 {object} ErrorResponse
// @Router /api/v1/guest/diamonds/use [post]
func (h *GuestHandler) UseDiamonds(c *gin.Context) {
	var req UseDiamondsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, err)
			return
		}
	}
	if req.Count == 0 {
		req.Count = 1
	}

	view, ok := h.guestSession(c)
	if !ok {
		return
	}

	remaining, err := h.services.Diamond.Deduct(c.Request.Context(), view.Owner(), service.Action{
		Type:    models.TxTypeMessage,
		Cost:    req.Count,
		RefType: "guest_session",
		RefID:   view.SessionID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, DiamondsResponse{Success: true, SessionID: view.SessionID, RemainingDiamonds: remaining})
}

// CanAccess 访客能否访问伴侣
// @Summary 访客伴侣访问权限
// @Tags Guest
// @Produce json
// @Param companionId path int true "伴侣ID"
// @Success 200 {object} map[string]bool
// @Router /api/v1/guest/can-access/{companionId} [get]
func (h *GuestHandler) CanAccess(c *gin.Context) {
	companionID, ok := h.companionParam(c, "companionId")
	if !ok {
		return
	}

	identity, _ := middleware.GetDeviceIdentity(c)
	allowed, err := h.services.Guest.CanAccessCompanion(c.Request.Context(), identity, companionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"can_access": allowed})
}

// PurchaseDiamonds 访客支付成功后入账
// @Summary 访客购买钻石
// @Description 同一 payment_id 只入账一次
// @Tags Guest
// @Accept json
// @Produce json
// @Param request body service.PurchaseRequest true "支付信息"
// @Success 200 {object} service.PurchaseResult
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/guest/purchase-diamonds [post]
func (h *GuestHandler) PurchaseDiamonds(c *gin.Context) {
	var req service.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	view, ok := h.guestSession(c)
	if !ok {
		return
	}

	result, err := h.services.Purchase.PurchaseDiamonds(c.Request.Context(), view.Owner(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GenerateImage 访客生成伴侣图片
// @Summary 访客生成图片
// @Tags Guest
// @Accept json
// @Produce json
// @Param request body ImageRequest true "图片描述"
// @Success 200 {object} service.GenerateImageResult
// @Failure 402 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/guest/generate-image [post]
func (h *GuestHandler) GenerateImage(c *gin.Context) {
	var req ImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	view, ok := h.guestSession(c)
	if !ok {
		return
	}

	result, err := h.services.Chat.GenerateImage(c.Request.Context(), view.Owner(), service.GenerateImageRequest{
		CompanionID:   req.CompanionID,
		Prompt:        req.Prompt,
		EnforceAccess: true,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ChatHistory 访客与伴侣的聊天记录
// @Summary 访客聊天记录
// @Tags Guest
// @Produce json
// @Param companionId path int true "伴侣ID"
// @Success 200 {object} MessagesResponse
// @Router /api/v1/guest/chat/{companionId} [get]
func (h *GuestHandler) ChatHistory(c *gin.Context) {
	companionID, ok := h.companionParam(c, "companionId")
	if !ok {
		return
	}
	view, ok := h.guestSession(c)
	if !ok {
		return
	}

	messages, err := h.services.Chat.History(c.Request.Context(), view.Owner(), companionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, MessagesResponse{Messages: messages})
}

// SendMessage 访客发送消息
// @Summary 访客发送消息
// @Description 每条消息扣除 message_cost，余额不足返回 402
// @Tags Guest
// @Accept json
// @Produce json
// @Param companionId path int true "伴侣ID"
// @Param request body ChatRequest true "消息"
// @Success 200 {object} service.SendMessageResult
// @Failure 402 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/guest/chat/{companionId} [post]
func (h *GuestHandler) SendMessage(c *gin.Context) {
	companionID, ok := h.companionParam(c, "companionId")
	if !ok {
		return
	}
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	view, ok := h.guestSession(c)
	if !ok {
		return
	}

	result, err := h.services.Chat.SendMessage(c.Request.Context(), view.Owner(), service.SendMessageRequest{
		CompanionID:   companionID,
		Content:       req.Content,
		EnforceAccess: true,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ClearChat 清空访客全部聊天记录
// @Summary 清空访客聊天
// @Tags Guest
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /api/v1/guest/chat [delete]
func (h *GuestHandler) ClearChat(c *gin.Context) {
	view, ok := h.guestSession(c)
	if !ok {
		return
	}

	deleted, err := h.services.Chat.Clear(c.Request.Context(), view.Owner())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: gin.H{"deleted": deleted}})
}
