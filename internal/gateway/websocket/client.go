package websocket

import (
	"sync"
	"time"

	"realtime_chat_server/pkg/constants"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client 一条 WebSocket 连接
// 读循环在 ServeWS 所在的 goroutine 中运行，写循环独占一个 goroutine
// send 从不关闭，写循环通过 done 退出，避免向已关闭通道写入
type Client struct {
	Id       string
	UserId   string
	UserName string

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, userId, userName string) *Client {
	return &Client{
		Id:       uuid.NewString(),
		UserId:   userId,
		UserName: userName,
		conn:     conn,
		send:     make(chan []byte, constants.SEND_BUFFER),
		done:     make(chan struct{}),
	}
}

// Enqueue 非阻塞地投递一帧
// 缓冲已满说明对端消费太慢，直接断开，返回 false
func (c *Client) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		zap.L().Warn("ws send buffer full, dropping connection",
			zap.String("user_id", c.UserId),
			zap.String("connection_id", c.Id))
		c.Close()
		return false
	}
}

// Close 关闭连接，可重复调用
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// Done 连接关闭后可读
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// writePump 把 send 中的帧写到连接上，并定期发送 ping
func (c *Client) writePump() {
	ticker := time.NewTicker(constants.WS_PING_PERIOD)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(constants.WS_WRITE_WAIT))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				zap.L().Debug("ws write failed", zap.String("connection_id", c.Id), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(constants.WS_WRITE_WAIT))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 逐帧读取并交给 handle，连接出错或关闭时返回
// onPong 在收到 pong 时调用，用于刷新活跃时间
func (c *Client) readPump(handle func(raw []byte), onPong func()) {
	c.conn.SetReadLimit(constants.WS_MAX_FRAME)
	_ = c.conn.SetReadDeadline(time.Now().Add(constants.WS_PONG_WAIT))
	c.conn.SetPongHandler(func(string) error {
		if onPong != nil {
			onPong()
		}
		return c.conn.SetReadDeadline(time.Now().Add(constants.WS_PONG_WAIT))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Info("ws closed unexpectedly", zap.String("connection_id", c.Id), zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(constants.WS_PONG_WAIT))
		handle(raw)
	}
}
