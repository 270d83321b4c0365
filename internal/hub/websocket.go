package hub

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"landing/internal/api"
	"landing/internal/logging"
	"landing/internal/services"
)

// WSOptions configures the WebSocket endpoint.
type WSOptions struct {
	WriteTimeout    time.Duration
	MaxMessageBytes int64
	// Authorize may refuse a subscription, for example to a landing channel
	// owned by someone else. A nil Authorize accepts every valid channel.
	Authorize func(r *http.Request, channelID string) error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Callers are authenticated by bearer token before the upgrade.
	CheckOrigin: func(*http.Request) bool { return true },
}

type wsConn struct {
	id           string
	ws           *websocket.Conn
	writeTimeout time.Duration
	open         atomic.Bool
	closeOnce    sync.Once
}

func newWSConn(ws *websocket.Conn, writeTimeout time.Duration) *wsConn {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	c := &wsConn{id: uuid.NewString(), ws: ws, writeTimeout: writeTimeout}
	c.open.Store(true)
	return c
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Open() bool { return c.open.Load() }

func (c *wsConn) Send(data []byte) error {
	if !c.open.Load() {
		return ErrClosed
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		_ = c.Close()
		return err
	}
	return nil
}

func (c *wsConn) Ping() error {
	if !c.open.Load() {
		return ErrClosed
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.open.Store(false)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}

// ServeWS upgrades the request and pumps client frames until the socket
// closes. Subscribe and unsubscribe frames drive hub membership; pongs and
// application pings mark the connection alive.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, opts WSOptions) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		h.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	conn := newWSConn(ws, opts.WriteTimeout)
	if opts.MaxMessageBytes > 0 {
		ws.SetReadLimit(opts.MaxMessageBytes)
	}
	ws.SetPongHandler(func(string) error {
		h.MarkAlive(conn)
		return nil
	})
	h.Register(conn)
	logger := h.logger.With(logging.String(logging.FieldConnID, conn.ID()))
	logger.Debug("websocket connected", logging.String("remote", r.RemoteAddr))

	defer func() {
		h.Remove(conn)
		_ = conn.Close()
		logger.Debug("websocket disconnected")
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		h.MarkAlive(conn)

		var frame api.ClientFrame
		if err := sonic.Unmarshal(data, &frame); err != nil {
			_ = h.SendError(conn, "malformed frame", services.ReasonInvalidInput)
			continue
		}
		frame = frame.Normalize()
		switch frame.Type {
		case api.FrameSubscribe:
			if opts.Authorize != nil {
				if err := opts.Authorize(r, frame.ChannelID); err != nil {
					logger.Info("subscription refused",
						logging.String(logging.FieldChannelID, truncate(frame.ChannelID, 80)),
						logging.Error(err),
						logging.String(logging.FieldEventType, "subscribe_refused"),
					)
					_ = h.SendError(conn, err.Error(), services.ReasonCode(err))
					continue
				}
			}
			if err := h.Subscribe(conn, frame.ChannelID); err != nil {
				_ = h.SendError(conn, err.Error(), services.ReasonInvalidInput)
			}
		case api.FrameUnsubscribe:
			h.Unsubscribe(conn, frame.ChannelID)
		case api.FramePing:
		default:
			_ = h.SendError(conn, "unknown frame type", services.ReasonInvalidInput)
		}
	}
}
