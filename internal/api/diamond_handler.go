package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DiamondHandler 余额查询，登录用户查用户余额，否则查设备余额
type DiamondHandler struct {
	*handler
}

// BalanceResponse 余额与单价
type BalanceResponse struct {
	OwnerType       string `json:"owner_type"`
	MessageDiamonds int64  `json:"message_diamonds"`
	MessageCost     int64  `json:"message_cost"`
	ImageCost       int64  `json:"image_cost"`
}

// HistoryQuery 流水分页
type HistoryQuery struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}

// Balance 当前余额
// @Summary 钻石余额
// @Tags Diamonds
// @Security Bearer
// @Produce json
// @Success 200 {object} BalanceResponse
// @Router /api/v1/diamonds/balance [get]
func (h *DiamondHandler) Balance(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	balance, err := h.services.Diamond.Balance(c.Request.Context(), owner)
	if err != nil {
		h.fail(c, err)
		return
	}
	costs := h.services.Diamond.Costs(c.Request.Context())
	c.JSON(http.StatusOK, BalanceResponse{
		OwnerType:       owner.Kind,
		MessageDiamonds: balance,
		MessageCost:     costs.MessageCost,
		ImageCost:       costs.ImageCost,
	})
}

// Packages 钻石套餐
// @Summary 钻石套餐列表
// @Tags Diamonds
// @Produce json
// @Success 200 {array} service.Package
// @Router /api/v1/diamonds/packages [get]
func (h *DiamondHandler) Packages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"packages": h.services.Purchase.Packages()})
}

// History 余额流水，按时间倒序
// @Summary 钻石流水
// @Tags Diamonds
// @Security Bearer
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页条数"
// @Success 200 {object} service.HistoryPage
// @Router /api/v1/diamonds/history [get]
func (h *DiamondHandler) History(c *gin.Context) {
	var q HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, err)
		return
	}

	owner, ok := h.owner(c)
	if !ok {
		return
	}

	page, err := h.services.Diamond.History(c.Request.Context(), owner, q.Page, q.PageSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}


// StatsQuery 统计天数
type StatsQuery struct {
	Days int `form:"days"`
}

// Stats 最近若干天的收支汇总
// @Summary 钻石收支统计
// @Tags Diamonds
// @Security Bearer
// @Produce json
// @Param days query int false "天数，默认30，最多365"
// @Success 200 {object} service.LedgerStats
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/diamonds/stats [get]
func (h *DiamondHandler) Stats(c *gin.Context) {
	var q StatsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, err)
		return
	}
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	stats, err := h.services.Diamond.Stats(c.Request.Context(), owner, q.Days)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Transaction 按流水号查询单条流水，只能查自己的
// @Summary 钻石流水详情
// @Tags Diamonds
// @Security Bearer
// @Produce json
// @Param orderNo path string true "流水号"
// @Success 200 {object} models.DiamondTransaction
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/diamonds/transactions/{orderNo} [get]
func (h *DiamondHandler) Transaction(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	tx, err := h.services.Diamond.Transaction(c.Request.Context(), owner, c.Param("orderNo"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

// Payments 支付记录，按时间倒序
// @Summary 支付记录
// @Tags Diamonds
// @Security Bearer
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页条数"
// @Success 200 {object} service.PaymentPage
// @Router /api/v1/diamonds/payments [get]
func (h *DiamondHandler) Payments(c *gin.Context) {
	var q HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, err)
		return
	}
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	page, err := h.services.Purchase.Payments(c.Request.Context(), owner, q.Page, q.PageSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
