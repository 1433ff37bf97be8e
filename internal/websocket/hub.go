package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wfunc/redvelvet/internal/service"
	"go.uber.org/zap"
)

// Message WebSocket消息
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// 消息类型
const (
	MessageTypeConnected     = "connected"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
	MessageTypeBalance       = "balance"
	MessageTypeBalanceUpdate = "balance_update"
	MessageTypeError         = "error"
)

// BalancePayload balance_update 消息体
type BalancePayload struct {
	Owner   string `json:"owner"`
	Balance int64  `json:"message_diamonds"`
	Reason  string `json:"reason"`
}

// BalanceReader 查询余额，客户端主动拉取时使用
type BalanceReader interface {
	Balance(ctx context.Context, owner service.Owner) (int64, error)
}

// Options 连接参数
type Options struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

// DefaultOptions 默认连接参数
func DefaultOptions() Options {
	return Options{
		PingInterval:   54 * time.Second,
		PongTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 4 * 1024,
		SendBuffer:     64,
	}
}

// Hub 按归属(device:<id> / user:<id>)管理连接并推送余额变动
type Hub struct {
	clients   map[string]*Client
	owners    map[string][]*Client
	clientsMu sync.RWMutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	balances BalanceReader
	opts     Options
	logger   *zap.Logger
}

// NewHub 创建Hub
func NewHub(opts Options, logger *zap.Logger) *Hub {
	def := DefaultOptions()
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = def.PongTimeout
	}
	if opts.PingInterval <= 0 || opts.PingInterval >= opts.PongTimeout {
		opts.PingInterval = opts.PongTimeout * 9 / 10
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = def.WriteTimeout
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = def.MaxMessageSize
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = def.SendBuffer
	}

	return &Hub{
		clients:    make(map[string]*Client),
		owners:     make(map[string][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		opts:       opts,
		logger:     logger,
	}
}

// SetBalanceReader 设置余额来源，须在 Run 之前调用
func (h *Hub) SetBalanceReader(r BalanceReader) {
	h.balances = r
}

// Run 运行Hub，ctx 取消后关闭所有连接
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ticker.C:
			h.heartbeat()

		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	key := client.Owner.Key()

	h.clientsMu.Lock()
	h.clients[client.ID] = client
	h.owners[key] = append(h.owners[key], client)
	h.clientsMu.Unlock()

	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", client.ID),
		zap.String("owner", key))

	client.trySend(newMessage(MessageTypeConnected, BalancePayload{Owner: key}))
}

func (h *Hub) unregisterClient(client *Client) {
	key := client.Owner.Key()

	h.clientsMu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.send)

		clients := h.owners[key]
		for i, c := range clients {
			if c.ID == client.ID {
				h.owners[key] = append(clients[:i], clients[i+1:]...)
				break
			}
		}
		if len(h.owners[key]) == 0 {
			delete(h.owners, key)
		}
	}
	h.clientsMu.Unlock()

	h.logger.Info("WebSocket客户端断开",
		zap.String("client_id", client.ID),
		zap.String("owner", key))
}

func (h *Hub) closeAll() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for id, client := range h.clients {
		close(client.send)
		delete(h.clients, id)
	}
	h.owners = make(map[string][]*Client)
}

// heartbeat 应用层心跳，连接层的 ping 帧由 writePump 负责
func (h *Hub) heartbeat() {
	data := newMessage(MessageTypePing, nil)

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for _, client := range h.clients {
		client.trySend(data)
	}
}

// NotifyBalance 实现 service.BalanceNotifier，推送给该归属的所有连接
func (h *Hub) NotifyBalance(owner service.Owner, balance int64, reason string) {
	key := owner.Key()
	data := newMessage(MessageTypeBalanceUpdate, BalancePayload{Owner: key, Balance: balance, Reason: reason})

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for _, client := range h.owners[key] {
		if !client.trySend(data) {
			h.logger.Warn("客户端发送缓冲区满，丢弃余额推送",
				zap.String("client_id", client.ID),
				zap.String("owner", key))
		}
	}
}

// OnlineCount 在线连接数
func (h *Hub) OnlineCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// OwnerConnections 某归属的在线连接数
func (h *Hub) OwnerConnections(owner service.Owner) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.owners[owner.Key()])
}

// Serve 接管一个已升级的连接，启动读写协程
func (h *Hub) Serve(conn *websocket.Conn, owner service.Owner) *Client {
	client := newClient(h, conn, owner)
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return client
	}
	go client.writePump()
	go client.readPump()
	return client
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func newMessage(msgType string, payload interface{}) []byte {
	msg := Message{Type: msgType, Timestamp: time.Now().Unix()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err == nil {
			msg.Data = data
		}
	}
	out, _ := json.Marshal(msg)
	return out
}
