package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/redvelvet/internal/fingerprint"
	"github.com/wfunc/redvelvet/internal/service"
)

// MobileHandler 移动端接口，设备指纹来自 X-Device-Fingerprint
type MobileHandler struct {
	*handler
	now func() time.Time
}

// DeviceSessionResponse 移动端设备会话
type DeviceSessionResponse struct {
	*service.GuestSessionView
	DeviceID string `json:"device_id"`
}

// DeductRequest 发送消息并扣费
type DeductRequest struct {
	CompanionID uint   `json:"companion_id" binding:"required"`
	Message     string `json:"message" binding:"required"`
}

// DeductResponse 扣费结果与伴侣回复
type DeductResponse struct {
	Success           bool   `json:"success"`
	Response          string `json:"response"`
	RemainingDiamonds int64  `json:"remaining_diamonds"`
}

// SaveChatRequest 保存消息
type SaveChatRequest struct {
	CompanionID      uint   `json:"companion_id" binding:"required"`
	MessageContent   string `json:"message_content" binding:"required"`
	Sender           string `json:"sender" binding:"required"`
	EmotionType      string `json:"emotion_type"`
	EmotionIntensity string `json:"emotion_intensity"`
	ImageURL         string `json:"image_url"`
}

// DeviceSession 获取或创建设备会话
// @Summary 移动端设备会话
// @Tags Mobile
// @Produce json
// @Param X-Device-Fingerprint header string false "设备指纹"
// @Param X-Platform header string false "web/android/ios"
// @Success 200 {object} DeviceSessionResponse
// @Router /api/v1/mobile/device-session [get]
func (h *MobileHandler) DeviceSession(c *gin.Context) {
	view, ok := h.guestSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, DeviceSessionResponse{
		GuestSessionView: view,
		DeviceID:         fingerprint.DeviceID(view.Platform, view.DeviceFingerprint, h.now()),
	})
}

// Diamonds 设备余额
// @Summary 移动端钻石余额
// @Tags Mobile
// @Produce json
// @Success 200 {object} map[string]int64
// @Router /api/v1/mobile/diamonds [get]
func (h *MobileHandler) Diamonds(c *gin.Context) {
	view, ok := h.guestSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"diamonds": view.MessageDiamonds})
}

// Deduct 扣除消息费用并返回伴侣回复，回复失败时退还
// @Summary 移动端发送消息
// @Tags Mobile
// @Accept json
// @Produce json
// @Param request body DeductRequest true "消息"
// @Success 200 {object} DeductResponse
// @Failure 402 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/mobile/diamonds/deduct [post]
func (h *MobileHandler) Deduct(c *gin.Context) {
	var req DeductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	view, ok := h.guestSession(c)
	if !ok {
		return
	}

	result, err := h.services.Chat.SendMessage(c.Request.Context(), view.Owner(), service.SendMessageRequest{
		CompanionID: req.CompanionID,
		Content:     req.Message,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, DeductResponse{
		Success:           true,
		Response:          result.Reply.Content,
		RemainingDiamonds: result.RemainingDiamonds,
	})
}

// SaveChat 保存一条消息，不扣费
// @Summary 移动端保存消息
// @Tags Mobile
// @Accept json
// @Produce json
// @Param request body SaveChatRequest true "消息"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/mobile/chat/save [post]
func (h *MobileHandler) SaveChat(c *gin.Context) {
	var req SaveChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	view, ok := h.guestSession(c)
	if !ok {
		return
	}

	message, err := h.services.Chat.SaveMessage(c.Request.Context(), view.Owner(), service.SaveMessageRequest{
		CompanionID:      req.CompanionID,
		Content:          req.MessageContent,
		Sender:           req.Sender,
		EmotionType:      req.EmotionType,
		EmotionIntensity: req.EmotionIntensity,
		ImageURL:         req.ImageURL,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message_id": message.ID})
}

// ChatHistory 设备与伴侣的聊天记录
// @Summary 移动端聊天记录
// @Tags Mobile
// @Produce json
// @Param companionId path int true "伴侣ID"
// @Success 200 {object} MessagesResponse
// @Router /api/v1/mobile/chat/history/{companionId} [get]
func (h *MobileHandler) ChatHistory(c *gin.Context) {
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

// ClearChat 清空设备聊天记录
// @Summary 移动端清空聊天
// @Tags Mobile
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /api/v1/mobile/chat/clear [delete]
func (h *MobileHandler) ClearChat(c *gin.Context) {
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

