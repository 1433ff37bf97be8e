package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/wfunc/redvelvet/internal/config"
	ws "github.com/wfunc/redvelvet/internal/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler 余额推送连接
type WebSocketHandler struct {
	*handler
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// newWebSocketHandler 创建WebSocket处理器
func newWebSocketHandler(base *handler, hub *ws.Hub, cfg config.WebSocketConfig) *WebSocketHandler {
	return &WebSocketHandler{
		handler: base,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    cfg.ReadBufferSize,
			WriteBufferSize:   cfg.WriteBufferSize,
			EnableCompression: cfg.EnableCompression,
			// 客户端为 App 与同源页面
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Balance 建立余额推送连接
// @Summary 余额推送
// @Description 已登录时订阅用户余额，否则订阅当前设备余额
// @Tags WebSocket
// @Param token query string false "访问令牌"
// @Router /api/v1/ws/balance [get]
func (h *WebSocketHandler) Balance(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("WebSocket升级失败",
			zap.String("owner", owner.Key()),
			zap.Error(err))
		return
	}

	client := h.hub.Serve(conn, owner)
	h.log.Info("WebSocket连接建立",
		zap.String("client_id", client.ID),
		zap.String("owner", owner.Key()),
		zap.String("ip", c.ClientIP()))
}
