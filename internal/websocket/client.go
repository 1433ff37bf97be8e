package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/redvelvet/internal/logger"
	"github.com/wfunc/redvelvet/internal/service"
	"go.uber.org/zap"
)

// Client 一条余额推送连接
type Client struct {
	ID    string
	Owner service.Owner

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn, owner service.Owner) *Client {
	return &Client{
		ID:    uuid.NewString(),
		Owner: owner,
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, hub.opts.SendBuffer),
	}
}

// trySend 非阻塞写入发送队列，调用方需持有 hub.clientsMu 或处于 Run 协程
func (c *Client) trySend(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// readPump 读取入站消息，退出时只注销，连接由 writePump 写完队列后关闭
func (c *Client) readPump() {
	defer c.hub.remove(c)

	opts := c.hub.opts
	c.conn.SetReadLimit(opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(opts.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(opts.PongTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("WebSocket读取错误",
					zap.String("client_id", c.ID),
					zap.Error(err))
			}
			return
		}
		if !c.handleMessage(data) {
			return
		}
	}
}

// writePump 发送队列关闭后先写完剩余消息，再发送关闭帧
func (c *Client) writePump() {
	opts := c.hub.opts
	ticker := time.NewTicker(opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 只接受 ping 与 balance，返回 false 时断开连接
func (c *Client) handleMessage(data []byte) bool {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		logger.LogWebSocketMessage("receive", "invalid", string(data))
		c.reply(MessageTypeError, map[string]string{"error": "消息格式错误"})
		return false
	}

	logger.LogWebSocketMessage("receive", msg.Type, string(msg.Data))

	switch msg.Type {
	case MessageTypePing:
		c.reply(MessageTypePong, nil)

	case MessageTypeBalance:
		if c.hub.balances == nil {
			c.reply(MessageTypeError, map[string]string{"error": "余额查询不可用"})
			return true
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.hub.opts.WriteTimeout)
		balance, err := c.hub.balances.Balance(ctx, c.Owner)
		cancel()
		if err != nil {
			c.hub.logger.Warn("查询余额失败", zap.String("owner", c.Owner.Key()), zap.Error(err))
			c.reply(MessageTypeError, map[string]string{"error": "查询余额失败"})
			return true
		}
		c.reply(MessageTypeBalanceUpdate, BalancePayload{Owner: c.Owner.Key(), Balance: balance, Reason: "query"})

	default:
		c.reply(MessageTypeError, map[string]string{"error": "不支持的消息类型: " + msg.Type})
		return false
	}
	return true
}

// reply 经 hub 加锁后写入自己的发送队列
func (c *Client) reply(msgType string, payload interface{}) {
	data := newMessage(msgType, payload)
	logger.LogWebSocketMessage("send", msgType, payload)

	c.hub.clientsMu.RLock()
	defer c.hub.clientsMu.RUnlock()
	if _, ok := c.hub.clients[c.ID]; ok {
		c.trySend(data)
	}
}
