package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fathima-sithara/presence-service/internal/domain"
)

type State int32

const (
	Connecting State = iota
	Live
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Live:
		return "live"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// wsConn is the subset of *websocket.Conn a Connection drives.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

type Options struct {
	PingInterval   time.Duration
	WriteDeadline  time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	SendBuffer     int
	InboundRPS     int
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.WriteDeadline <= 0 {
		o.WriteDeadline = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 64 * 1024
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.InboundRPS <= 0 {
		o.InboundRPS = 20
	}
	return o
}

// Connection is one live connection. It moves Connecting -> Live -> Closed
// and never back.
type Connection struct {
	id      string
	userID  string
	ws      wsConn
	opts    Options
	send    chan []byte
	done    chan struct{}
	state   atomic.Int32
	once    sync.Once
	limiter *rate.Limiter
	log     *zap.Logger
}

func NewConnection(conn wsConn, userID string, opts Options, log *zap.Logger) *Connection {
	opts = opts.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.NewString()
	return &Connection{
		id:      id,
		userID:  userID,
		ws:      conn,
		opts:    opts,
		send:    make(chan []byte, opts.SendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(opts.InboundRPS), opts.InboundRPS),
		log:     log.With(zap.String("user_id", userID), zap.String("conn_id", id)),
	}
}

func (c *Connection) ID() string     { return c.id }
func (c *Connection) UserID() string { return c.userID }
func (c *Connection) State() State   { return State(c.state.Load()) }

// open moves Connecting -> Live.
func (c *Connection) open() bool {
	return c.state.CompareAndSwap(int32(Connecting), int32(Live))
}

// close moves the connection to Closed and reports whether this call did it.
// The writer owns the socket: it sends the close frame and then closes it.
func (c *Connection) close() bool {
	closed := false
	c.once.Do(func() {
		c.state.Store(int32(Closed))
		close(c.done)
		closed = true
	})
	return closed
}

// Send queues ev for the writer. It never blocks; a closed connection or a
// full buffer yields domain.ErrPushUnavailable.
func (c *Connection) Send(ev domain.Event) error {
	if c.State() != Live {
		return domain.ErrPushUnavailable
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return domain.ErrPushUnavailable
	default:
	}
	select {
	case c.send <- b:
		return nil
	default:
		return domain.ErrPushUnavailable
	}
}

func (c *Connection) readPump() {
	c.ws.SetReadLimit(c.opts.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		if mt != websocket.TextMessage {
			continue
		}
		if !c.limiter.Allow() {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if env.Type == inboundPing {
			_ = c.Send(domain.Event{Type: domain.EventPong})
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(time.Second))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case b := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteDeadline))
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteDeadline))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}
