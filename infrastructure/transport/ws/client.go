package ws

import (
	"context"
	"encoding/json"
	"net/http"
	stdsync "sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"starmap/application/commands/bus"
	"starmap/pkg/auth"
	pkgerrors "starmap/pkg/errors"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024 // 512KB

	// Send buffer size
	sendBufferSize = 256

	// Upper bound for reconnect backoff
	maxBackoff = 30 * time.Second
)

// inboundFrame distinguishes command responses (correlated by request
// id) from push events on the same socket
type inboundFrame struct {
	RequestID string `json:"request_id,omitempty"`
}

// Client is the outbound WebSocket connection to the map server. Push
// frames fan to onFrame in receipt order; command requests correlate
// with their responses by request id. Run keeps the connection alive
// with capped backoff and invokes onReconnect after every re-dial so
// the session can resynchronize.
type Client struct {
	url         string
	token       string
	backoff     time.Duration
	onFrame     func([]byte)
	onReconnect func()
	logger      *zap.Logger

	mu    stdsync.Mutex
	conn  *websocket.Conn
	send  chan []byte
	calls map[string]chan json.RawMessage
}

// NewClient creates a client for the given server URL
func NewClient(url, token string, backoff time.Duration, onFrame func([]byte), onReconnect func(), logger *zap.Logger) *Client {
	if backoff <= 0 {
		backoff = time.Second
	}
	return &Client{
		url:         url,
		token:       token,
		backoff:     backoff,
		onFrame:     onFrame,
		onReconnect: onReconnect,
		logger:      logger,
		calls:       make(map[string]chan json.RawMessage),
	}
}

// Run dials and pumps until ctx is cancelled, redialing with capped
// exponential backoff after every drop
func (c *Client) Run(ctx context.Context) error {
	backoff := c.backoff
	first := true

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.Warn("dial failed, backing off",
				zap.String("url", c.url),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = c.backoff

		c.attach(conn)
		if !first && c.onReconnect != nil {
			c.onReconnect()
		}
		first = false

		done := make(chan struct{})
		go c.writePump(conn, done)
		c.readPump(ctx, conn)
		close(done)
		c.detach()
	}
}

// Call implements bus.Caller: it sends the request and blocks until the
// correlated response arrives, the context ends, or the connection drops
func (c *Client) Call(ctx context.Context, req bus.Request) (json.RawMessage, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.NewTransportError("encode request", err)
	}

	reply := make(chan json.RawMessage, 1)
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return nil, pkgerrors.NewUnavailableError("map server connection")
	}
	c.calls[req.RequestID] = reply
	send := c.send
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.calls, req.RequestID)
		c.mu.Unlock()
	}()

	select {
	case send <- raw:
	case <-ctx.Done():
		return nil, pkgerrors.NewTimeoutError(req.Type).WithCause(ctx.Err())
	}

	select {
	case payload, ok := <-reply:
		if !ok {
			// Connection dropped with the call outstanding
			return nil, pkgerrors.NewUnavailableError("map server connection")
		}
		return payload, nil
	case <-ctx.Done():
		return nil, pkgerrors.NewTimeoutError(req.Type).WithCause(ctx.Err())
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.token != "" {
		if auth.Expired(c.token, time.Minute) {
			c.logger.Warn("bearer token expired or expiring, server will likely reject the dial")
		}
		header.Set("Authorization", "Bearer "+c.token)
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, header)
	return conn, err
}

func (c *Client) attach(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.send = make(chan []byte, sendBufferSize)
	c.mu.Unlock()

	c.logger.Info("connected", zap.String("url", c.url))
}

// detach drops the connection and fails every outstanding call
func (c *Client) detach() {
	c.mu.Lock()
	c.conn = nil
	for id, reply := range c.calls {
		close(reply)
		delete(c.calls, id)
	}
	c.mu.Unlock()
}

// readPump pumps frames off the socket: correlated responses resolve
// their waiting calls, everything else forwards as a push frame in
// receipt order
func (c *Client) readPump(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("read error", zap.Error(err))
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.logger.Warn("dropping unparseable frame", zap.Error(err))
			continue
		}

		if frame.RequestID != "" {
			c.resolve(frame.RequestID, message)
			continue
		}
		c.onFrame(message)
	}
}

// writePump pumps outbound messages and keeps the connection alive with
// pings
func (c *Client) writePump(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	c.mu.Lock()
	send := c.send
	c.mu.Unlock()

	for {
		select {
		case <-done:
			return

		case message := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Error("ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) resolve(requestID string, payload json.RawMessage) {
	c.mu.Lock()
	reply, ok := c.calls[requestID]
	if ok {
		delete(c.calls, requestID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("response for unknown request", zap.String("requestID", requestID))
		return
	}
	reply <- payload
}
