package sink

import (
	"context"
	"fmt"
	"sync"

	"github.com/FrancoRivero2025/quote-average/internal/domain"
	"github.com/nats-io/nats.go"
)

const DefaultSubjectPrefix = "quotes"

// NATS publishes each snapshot as JSON on <prefix>.<exchange>.
type NATS struct {
	conn   *nats.Conn
	prefix string
	mu     sync.RWMutex
	closed bool
}

func NewNATS(url, subjectPrefix string) (*NATS, error) {
	conn, err := nats.Connect(url, nats.Name("quote-average"))
	if err != nil {
		return nil, fmt.Errorf("nats sink: connect %s: %w", url, err)
	}
	return newNATS(conn, subjectPrefix), nil
}

func newNATS(conn *nats.Conn, subjectPrefix string) *NATS {
	if subjectPrefix == "" {
		subjectPrefix = DefaultSubjectPrefix
	}
	return &NATS{conn: conn, prefix: subjectPrefix}
}

func (n *NATS) Name() string { return "nats" }

func (n *NATS) Subject(exchange string) string { return n.prefix + "." + exchange }

func (n *NATS) Publish(_ context.Context, qs domain.QuoteSet) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return fmt.Errorf("nats sink: %w", nats.ErrConnectionClosed)
	}
	data, err := encode(qs)
	if err != nil {
		return fmt.Errorf("nats sink: encode %s: %w", qs.Exchange, err)
	}
	if err := n.conn.Publish(n.Subject(qs.Exchange), data); err != nil {
		return fmt.Errorf("nats sink: publish %s: %w", n.Subject(qs.Exchange), err)
	}
	return nil
}

func (n *NATS) IsConnected() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return !n.closed && n.conn != nil && n.conn.IsConnected()
}

func (n *NATS) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	if n.conn != nil {
		return n.conn.Drain()
	}
	return nil
}
