package ws

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/presence-service/internal/domain"
	"github.com/fathima-sithara/presence-service/internal/registry"
)

const localUserID = "user_id"

type Registrar interface {
	Register(userID string, h registry.Handle)
	Unregister(userID string, h registry.Handle) bool
}

type Authenticator interface {
	Validate(token string) (string, error)
}

type ConnMetrics interface {
	ConnOpened()
	ConnClosed()
}

type nopConnMetrics struct{}

func (nopConnMetrics) ConnOpened() {}
func (nopConnMetrics) ConnClosed() {}

// Server upgrades HTTP requests into registered live connections.
type Server struct {
	reg     Registrar
	auth    Authenticator
	trust   bool
	opts    Options
	metrics ConnMetrics
	log     *zap.Logger
}

func NewServer(reg Registrar, auth Authenticator, trustUserParam bool, opts Options, m ConnMetrics, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = nopConnMetrics{}
	}
	return &Server{reg: reg, auth: auth, trust: trustUserParam, opts: opts.withDefaults(), metrics: m, log: log}
}

// Upgrade rejects non-websocket requests and resolves the connecting user
// from the token query parameter, or userId when trusted.
func (s *Server) Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		userID, err := s.identify(c)
		if err != nil {
			s.log.Debug("ws auth rejected", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"status": "error", "message": "unauthorized"})
		}
		c.Locals(localUserID, userID)
		return c.Next()
	}
}

func (s *Server) identify(c *fiber.Ctx) (string, error) {
	if tok := c.Query("token"); tok != "" && s.auth != nil {
		return s.auth.Validate(tok)
	}
	if s.trust {
		if id := c.Query("userId"); id != "" {
			return id, nil
		}
	}
	return "", domain.ErrUnauthorized
}

func (s *Server) Handler() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		userID, _ := c.Locals(localUserID).(string)
		if userID == "" {
			_ = c.Close()
			return
		}
		s.Serve(NewConnection(c, userID, s.opts, s.log))
	})
}

// Serve runs conn until its socket ends: register on open, pump frames,
// then hand the disconnect to the registry.
func (s *Server) Serve(conn *Connection) {
	if !conn.open() {
		return
	}
	s.metrics.ConnOpened()
	s.reg.Register(conn.UserID(), conn)
	conn.log.Info("connection live")

	writerDone := make(chan struct{})
	go func() {
		conn.writePump()
		close(writerDone)
	}()
	conn.readPump()

	conn.close()
	// the socket goes back to the upgrader's pool when Serve returns
	<-writerDone
	s.reg.Unregister(conn.UserID(), conn)
	s.metrics.ConnClosed()
	conn.log.Info("connection closed")
}
