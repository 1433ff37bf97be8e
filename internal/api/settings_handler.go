package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/redvelvet/internal/service"
)

// HeatmapQuery 热力图日期范围，格式 YYYY-MM-DD
type HeatmapQuery struct {
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

// GetSettings 当前身份对伴侣的个性化设置，未保存过时返回默认值
// @Summary 伴侣设置
// @Tags Companions
// @Security Bearer
// @Produce json
// @Param id path int true "伴侣ID"
// @Success 200 {object} models.CompanionSettings
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/companions/{id}/settings [get]
func (h *CompanionHandler) GetSettings(c *gin.Context) {
	id, ok := h.companionParam(c, "id")
	if !ok {
		return
	}
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	settings, err := h.services.Settings.Get(c.Request.Context(), owner, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// SaveSettings 整体保存伴侣设置
// @Summary 保存伴侣设置
// @Tags Companions
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path int true "伴侣ID"
// @Param request body service.CompanionSettingsInput true "设置"
// @Success 200 {object} models.CompanionSettings
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/companions/{id}/settings [post]
func (h *CompanionHandler) SaveSettings(c *gin.Context) {
	id, ok := h.companionParam(c, "id")
	if !ok {
		return
	}
	var input service.CompanionSettingsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, err)
		return
	}
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	settings, err := h.services.Settings.Save(c.Request.Context(), owner, id, input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// PatchSettings 部分更新伴侣设置
// @Summary 修改伴侣设置
// @Tags Companions
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path int true "伴侣ID"
// @Param request body service.CompanionSettingsPatch true "要修改的字段"
// @Success 200 {object} models.CompanionSettings
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/companions/{id}/settings [patch]
func (h *CompanionHandler) PatchSettings(c *gin.Context) {
	id, ok := h.companionParam(c, "id")
	if !ok {
		return
	}
	var patch service.CompanionSettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.badRequest(c, err)
		return
	}
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	settings, err := h.services.Settings.Patch(c.Request.Context(), owner, id, patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// Memories 伴侣记住的最近对话，条数由设置中的记忆保留数决定
// @Summary 伴侣记忆
// @Tags Companions
// @Security Bearer
// @Produce json
// @Param id path int true "伴侣ID"
// @Success 200 {object} service.MemoryList
// @Router /api/v1/companions/{id}/memories [get]
func (h *CompanionHandler) Memories(c *gin.Context) {
	id, ok := h.companionParam(c, "id")
	if !ok {
		return
	}
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	memories, err := h.services.Chat.Memories(c.Request.Context(), owner, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, memories)
}

// ClearMemories 清空与伴侣的对话记忆
// @Summary 清空伴侣记忆
// @Tags Companions
// @Security Bearer
// @Produce json
// @Param id path int true "伴侣ID"
// @Success 200 {object} SuccessResponse
// @Router /api/v1/companions/{id}/memories [delete]
func (h *CompanionHandler) ClearMemories(c *gin.Context) {
	id, ok := h.companionParam(c, "id")
	if !ok {
		return
	}
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	deleted, err := h.services.Chat.ClearCompanion(c.Request.Context(), owner, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: gin.H{"deleted": deleted}})
}

// RecordInteraction 上报一次互动
// @Summary 记录互动
// @Tags Companions
// @Security Bearer
// @Accept json
// @Produce json
// @Param request body service.InteractionRequest true "互动"
// @Success 201 {object} models.Interaction
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/interactions [post]
func (h *CompanionHandler) RecordInteraction(c *gin.Context) {
	var req service.InteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	interaction, err := h.services.Interaction.Record(c.Request.Context(), &owner, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, interaction)
}

// Heatmap 伴侣按日期和小时统计的消息数
// @Summary 互动热力图
// @Description 默认最近7天，每个日期对应24个小时槽位
// @Tags Companions
// @Produce json
// @Param id path int true "伴侣ID"
// @Param start_date query string false "开始日期 YYYY-MM-DD"
// @Param end_date query string false "结束日期 YYYY-MM-DD"
// @Success 200 {object} service.Heatmap
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/companions/{id}/interactions/heatmap [get]
func (h *CompanionHandler) Heatmap(c *gin.Context) {
	id, ok := h.companionParam(c, "id")
	if !ok {
		return
	}
	var q HeatmapQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, err)
		return
	}

	heatmap, err := h.services.Interaction.Heatmap(c.Request.Context(), id, q.StartDate, q.EndDate)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, heatmap)
}
