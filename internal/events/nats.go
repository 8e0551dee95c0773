package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/scp-platform/supplier-console/pkg/model"
)

// jetStream is the part of nats.JetStreamContext the publisher uses.
type jetStream interface {
	PublishMsg(msg *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSPublisher publishes session events to a JetStream subject.
type NATSPublisher struct {
	nc      *nats.Conn
	js      jetStream
	subject string
	service string
	logger  *zap.Logger
}

// NewNATSPublisher opens JetStream on nc and makes sure stream captures
// subject. An empty stream name skips the stream check.
func NewNATSPublisher(nc *nats.Conn, subject, stream, service string, logger *zap.Logger) (*NATSPublisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if stream != "" {
		if _, err := js.StreamInfo(stream); errors.Is(err, nats.ErrStreamNotFound) {
			_, err = js.AddStream(&nats.StreamConfig{Name: stream, Subjects: []string{subject}})
			if err != nil {
				return nil, fmt.Errorf("add stream %q: %w", stream, err)
			}
		} else if err != nil {
			return nil, fmt.Errorf("stream info %q: %w", stream, err)
		}
	}
	p := newNATSPublisher(js, subject, service, logger)
	p.nc = nc
	return p, nil
}

func newNATSPublisher(js jetStream, subject, service string, logger *zap.Logger) *NATSPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{js: js, subject: subject, service: service, logger: logger}
}

func (p *NATSPublisher) Name() string { return "nats" }

// Publish serializes evt and publishes it with routing headers.
func (p *NATSPublisher) Publish(ctx context.Context, evt model.SessionEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal session event: %w", err)
	}

	msg := &nats.Msg{
		Subject: p.subject,
		Data:    data,
		Header: nats.Header{
			"event_type":   []string{string(evt.Type)},
			"event_id":     []string{evt.ID.String()},
			"workspace":    []string{evt.Workspace},
			"service":      []string{p.service},
			"content_type": []string{"application/json"},
		},
	}
	// Dedup on the stream side.
	msg.Header.Set(nats.MsgIdHdr, evt.ID.String())

	if _, err := p.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	p.logger.Debug("events.nats_published",
		zap.String("subject", p.subject),
		zap.String("type", string(evt.Type)))
	return nil
}

func (p *NATSPublisher) Close() error {
	if p.nc != nil && !p.nc.IsClosed() {
		return p.nc.Drain()
	}
	return nil
}
