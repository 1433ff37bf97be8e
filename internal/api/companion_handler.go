package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/redvelvet/internal/service"
)

// CompanionHandler 伴侣目录
type CompanionHandler struct {
	*handler
}

// List 伴侣列表
// @Summary 伴侣列表
// @Tags Companions
// @Produce json
// @Param gender query string false "male/female"
// @Param premium query bool false "是否会员伴侣"
// @Param tier query string false "free/premium"
// @Param search query string false "名称或特征关键字"
// @Param sort query string false "name/newest/popular"
// @Success 200 {array} models.Companion
// @Router /api/v1/companions [get]
func (h *CompanionHandler) List(c *gin.Context) {
	var query service.CompanionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.badRequest(c, err)
		return
	}

	companions, err := h.services.Companion.List(c.Request.Context(), query)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, companions)
}

// Get 伴侣详情
// @Summary 伴侣详情
// @Tags Companions
// @Produce json
// @Param id path int true "伴侣ID"
// @Success 200 {object} models.Companion
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/companions/{id} [get]
func (h *CompanionHandler) Get(c *gin.Context) {
	id, ok := h.companionParam(c, "id")
	if !ok {
		return
	}

	companion, err := h.services.Companion.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, companion)
}
