// Package events publishes domain notifications.
package events

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"safetyportal/internal/bootstrap/logging"
	"safetyportal/internal/errs"
	"safetyportal/internal/ports"
)

// natsConn is the part of *nats.Conn the publisher uses.
type natsConn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// NATSPublisher sends events to "<prefix>.<subject>".
type NATSPublisher struct {
	conn   natsConn
	prefix string
}

var _ ports.EventPublisher = (*NATSPublisher)(nil)

func NewNATSPublisher(conn natsConn, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: strings.Trim(strings.TrimSpace(prefix), ".")}
}

func DialNATS(ctx context.Context, url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("safetyportal"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn(ctx, "nats disconnected", slog.Any("err", errs.Loggable(err)))
			}
		}),
	)
	if err != nil {
		return nil, errs.Wrapf(err, "connect nats %s", url)
	}
	return conn, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload []byte) error {
	full := subject
	if p.prefix != "" {
		full = p.prefix + "." + subject
	}
	if err := p.conn.Publish(full, payload); err != nil {
		return errs.Wrapf(err, "publish %s", full)
	}
	flushCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.conn.FlushWithContext(flushCtx); err != nil {
		return errs.Wrapf(err, "flush %s", full)
	}
	return nil
}
