// Package notify publishes pipeline run summaries to NATS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/telhawk-systems/honeynet/internal/config"
)

// Publisher sends a JSON document to a fixed subject.
type Publisher interface {
	PublishJSON(ctx context.Context, v any) error
	Close() error
}

// NATSPublisher implements Publisher using a NATS connection.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	timeout time.Duration
}

// Connect opens a NATS connection for cfg. Reconnects are disabled; a run
// publishes once and exits.
func Connect(cfg config.NATSConfig) (*NATSPublisher, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("honeynet"),
		nats.Timeout(timeout),
		nats.MaxReconnects(0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{conn: conn, subject: cfg.Subject, timeout: timeout}, nil
}

// PublishJSON marshals v and publishes it, then flushes so the message has
// reached the server before returning.
func (p *NATSPublisher) PublishJSON(ctx context.Context, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}

	// FlushWithContext requires a deadline
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.conn.FlushWithContext(ctx)
}

// Close closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
