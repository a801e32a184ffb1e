package events

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/fathima-sithara/presence-service/internal/domain"
)

const (
	subjectMessageSent     = "message.sent"
	subjectPresenceChanged = "presence.changed"
)

type NATSPublisher struct {
	nc *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("presence-service"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{nc: nc}, nil
}

func (p *NATSPublisher) publish(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.nc.Publish(subject, b)
}

func (p *NATSPublisher) MessageSent(_ context.Context, m *domain.Message) error {
	return p.publish(subjectMessageSent, newMessageSent(m))
}

func (p *NATSPublisher) PresenceChanged(_ context.Context, ids []string) error {
	return p.publish(subjectPresenceChanged, newPresenceChanged(ids))
}

func (p *NATSPublisher) Close() error {
	if p == nil || p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
