package bus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"veriscan/internal/bootstrap/logging"
	"veriscan/internal/errs"
	"veriscan/internal/ports"
)

const defaultSubjectPrefix = "veriscan"

// NATSBus carries change events over NATS so viewers in other processes see
// the same feed as in-process subscribers. Events go to
// <prefix>.scans.<insert|update>; subscribers listen on <prefix>.scans.*.
type NATSBus struct {
	conn   *nats.Conn
	prefix string
}

var _ ports.EventBus = (*NATSBus)(nil)

func NewNATSBus(url, prefix string) (*NATSBus, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}

	conn, err := nats.Connect(url, nats.Name(prefix+"-bus"))
	if err != nil {
		return nil, errs.Wrapf(err, "connect nats %q", url)
	}

	return &NATSBus{conn: conn, prefix: prefix}, nil
}

func (b *NATSBus) Publish(ctx context.Context, event ports.ChangeEvent) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errs.Wrap(err, "encode change event")
	}

	subject := b.subject(event.Type)
	if err := b.conn.Publish(subject, payload); err != nil {
		return errs.Wrapf(err, "publish %s", subject)
	}
	return nil
}

func (b *NATSBus) Subscribe(ctx context.Context, handler ports.Handler) (func(), error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}

	subject := b.prefix + ".scans.*"
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		var event ports.ChangeEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logging.Warn(ctx, "dropping undecodable change event",
				slog.String("subject", msg.Subject),
				slog.Any("err", errs.Loggable(err)),
			)
			return
		}
		handler(event)
	})
	if err != nil {
		return nil, errs.Wrapf(err, "subscribe %s", subject)
	}

	return func() {
		if err := sub.Unsubscribe(); err != nil {
			logging.Warn(ctx, "unsubscribe failed", slog.Any("err", errs.Loggable(err)))
		}
	}, nil
}

func (b *NATSBus) Close() {
	b.conn.Close()
}

func (b *NATSBus) subject(eventType ports.EventType) string {
	return b.prefix + ".scans." + string(eventType)
}
