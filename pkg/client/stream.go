package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fasthttp/websocket"
	"go.uber.org/zap"

	"github.com/fathima-sithara/presence-service/internal/domain"
)

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Dispatch applies one server event to st.
func Dispatch(st *State, raw []byte) error {
	var ev inbound
	if err := json.Unmarshal(raw, &ev); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	switch ev.Type {
	case domain.EventPresenceSnapshot:
		var snap domain.PresenceSnapshot
		if err := json.Unmarshal(ev.Payload, &snap); err != nil {
			return fmt.Errorf("decode presence: %w", err)
		}
		st.MergePresence(snap)
	case domain.EventMessageDelivered:
		var m domain.Message
		if err := json.Unmarshal(ev.Payload, &m); err != nil {
			return fmt.Errorf("decode message: %w", err)
		}
		st.HandleMessage(&m)
	}
	return nil
}

// Stream keeps a live connection open and feeds its events into a State,
// redialing with backoff when the socket drops.
type Stream struct {
	url    string
	state  *State
	dialer *websocket.Dialer
	log    *zap.Logger
}

// NewStream builds the listener for baseURL (ws:// or wss://). token is
// sent as the handshake query parameter.
func NewStream(baseURL, token string, st *State, log *zap.Logger) (*Stream, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	u.Path = "/ws"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	if log == nil {
		log = zap.NewNop()
	}
	d := *websocket.DefaultDialer
	d.HandshakeTimeout = 10 * time.Second
	return &Stream{url: u.String(), state: st, dialer: &d, log: log}, nil
}

func (s *Stream) dial(ctx context.Context) (*websocket.Conn, error) {
	var conn *websocket.Conn
	op := func() error {
		c, _, err := s.dialer.DialContext(ctx, s.url, nil)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	notify := func(err error, d time.Duration) {
		s.log.Warn("stream dial failed", zap.Error(err), zap.Duration("retry_in", d))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	return conn, nil
}

// Run blocks until ctx is cancelled.
func (s *Stream) Run(ctx context.Context) error {
	for {
		conn, err := s.dial(ctx)
		if err != nil {
			return err
		}
		s.read(ctx, conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (s *Stream) read(ctx context.Context, conn *websocket.Conn) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-stop:
		}
	}()
	defer conn.Close()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.log.Info("stream closed", zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		if err := Dispatch(s.state, data); err != nil {
			s.log.Debug("stream event skipped", zap.Error(err))
		}
	}
}
