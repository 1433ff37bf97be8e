package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/redvelvet/internal/service"
	"go.uber.org/zap"
)

// fixedBalances 固定余额来源
type fixedBalances map[string]int64

func (f fixedBalances) Balance(_ context.Context, owner service.Owner) (int64, error) {
	balance, ok := f[owner.Key()]
	if !ok {
		return 0, errors.New("归属不存在")
	}
	return balance, nil
}

type testServer struct {
	hub    *Hub
	server *httptest.Server
}

func newTestServer(t *testing.T, balances BalanceReader) *testServer {
	t.Helper()
	hub := NewHub(Options{PongTimeout: 5 * time.Second, WriteTimeout: time.Second}, zap.NewNop())
	hub.SetBalanceReader(balances)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		owner := service.DeviceOwner(1)
		if r.URL.Query().Get("owner") == "user" {
			owner = service.UserOwner(1)
		}
		hub.Serve(conn, owner)
	}))

	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return &testServer{hub: hub, server: server}
}

func (s *testServer) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	msg := readMessage(t, conn)
	require.Equal(t, MessageTypeConnected, msg.Type)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	assert.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func TestNotifyBalanceRoutesByOwner(t *testing.T) {
	s := newTestServer(t, fixedBalances{})
	device := s.dial(t, "owner=device")
	user := s.dial(t, "owner=user")
	waitFor(t, func() bool { return s.hub.OnlineCount() == 2 })

	s.hub.NotifyBalance(service.DeviceOwner(1), 24, "message")

	msg := readMessage(t, device)
	assert.Equal(t, MessageTypeBalanceUpdate, msg.Type)
	var payload BalancePayload
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	assert.Equal(t, "device:1", payload.Owner)
	assert.Equal(t, int64(24), payload.Balance)
	assert.Equal(t, "message", payload.Reason)

	// 用户连接不应收到设备的余额推送
	require.NoError(t, user.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := user.ReadMessage()
	assert.Error(t, err)
}

func TestInboundMessages(t *testing.T) {
	s := newTestServer(t, fixedBalances{"device:1": 25})
	conn := s.dial(t, "owner=device")

	t.Run("ping回复pong", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(Message{Type: MessageTypePing}))
		assert.Equal(t, MessageTypePong, readMessage(t, conn).Type)
	})

	t.Run("balance回复当前余额", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(Message{Type: MessageTypeBalance}))
		msg := readMessage(t, conn)
		require.Equal(t, MessageTypeBalanceUpdate, msg.Type)

		var payload BalancePayload
		require.NoError(t, json.Unmarshal(msg.Data, &payload))
		assert.Equal(t, int64(25), payload.Balance)
		assert.Equal(t, "query", payload.Reason)
	})

	t.Run("未知类型断开连接", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(Message{Type: "spin"}))
		assert.Equal(t, MessageTypeError, readMessage(t, conn).Type)
		waitFor(t, func() bool { return s.hub.OnlineCount() == 0 })
	})
}

func TestMalformedMessageRepliesBeforeClose(t *testing.T) {
	s := newTestServer(t, fixedBalances{})
	conn := s.dial(t, "owner=device")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Contains(t, string(msg.Data), "消息格式错误")

	// 错误消息之后收到正常的关闭帧，而不是异常断开
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived), err.Error())
	waitFor(t, func() bool { return s.hub.OnlineCount() == 0 })
}

func TestDisconnectUnregisters(t *testing.T) {
	s := newTestServer(t, fixedBalances{})
	conn := s.dial(t, "owner=user")
	waitFor(t, func() bool { return s.hub.OwnerConnections(service.UserOwner(1)) == 1 })

	conn.Close()
	waitFor(t, func() bool { return s.hub.OwnerConnections(service.UserOwner(1)) == 0 })

	// 无连接时推送不阻塞
	s.hub.NotifyBalance(service.UserOwner(1), 10, "purchase")
}
