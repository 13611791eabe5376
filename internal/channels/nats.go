package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store"
)

// DefaultSubjectPrefix is prepended to every published subject.
const DefaultSubjectPrefix = "switchboard"

// NATS publishes events to subjects of the form <prefix>.<instance>.<event>.
// The broker connection is shared by all instances. It is dialled once in
// the background; while the broker is unreachable the client keeps
// reconnecting and publishes are buffered.
type NATS struct {
	base
	url    string
	prefix string

	mu      sync.Mutex
	conn    *nats.Conn
	dialing chan struct{}
	dialErr error
	closed  bool
}

var _ Channel = (*NATS)(nil)

// NewNATS creates the NATS channel for the broker at url. An empty prefix
// uses DefaultSubjectPrefix.
func NewNATS(s store.ConfigStore, url, prefix string, opts Options) *NATS {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATS{
		base:   newBase(model.ChannelNATS, s, opts, true),
		url:    url,
		prefix: prefix,
	}
}

// Init starts the broker connection. An unreachable broker is logged and
// retried in the background.
func (n *NATS) Init(ctx context.Context) error {
	nc, err := n.connection(ctx)
	switch {
	case err != nil:
		n.logger.Warn("channels: nats connection failed at init", "url", n.url, "err", err)
	case !nc.IsConnected():
		n.logger.Warn("channels: nats unreachable at init, reconnecting in background", "url", n.url)
	}
	return nil
}

func (n *NATS) Deliver(ctx context.Context, env model.Envelope) {
	n.deliver(ctx, env, n.send)
}

func (n *NATS) Set(ctx context.Context, instanceName string, cfg model.ChannelConfig) (*model.ChannelRecord, error) {
	return n.set(ctx, instanceName, cfg)
}

func (n *NATS) Get(ctx context.Context, instanceName string) (*model.ChannelRecord, error) {
	return n.get(ctx, instanceName)
}

// Release is a no-op: the broker connection is shared by every instance.
func (n *NATS) Release(string) {}

func (n *NATS) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}
	return nil
}

// connection returns the shared connection. When there is none a single
// dial is started and every caller waits for it until its ctx is done.
// The mutex is never held across the dial.
func (n *NATS) connection(ctx context.Context) (*nats.Conn, error) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil, errClosed
	}
	if n.conn != nil && !n.conn.IsClosed() {
		nc := n.conn
		n.mu.Unlock()
		return nc, nil
	}
	if n.dialing == nil {
		n.dialing = make(chan struct{})
		go n.dial(n.dialing)
	}
	done := n.dialing
	n.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for NATS connection: %w", ctx.Err())
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn == nil {
		if n.dialErr == nil {
			return nil, errClosed
		}
		return nil, n.dialErr
	}
	return n.conn, nil
}

// dial connects with RetryOnFailedConnect so a broker that is down or
// hung costs one connect timeout, after which the client reconnects in
// the background.
func (n *NATS) dial(done chan struct{}) {
	nc, err := nats.Connect(n.url,
		nats.Name("switchboard"),
		nats.Timeout(n.timeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)

	n.mu.Lock()
	n.dialing = nil
	n.dialErr = nil
	switch {
	case err != nil:
		n.dialErr = fmt.Errorf("connecting to NATS at %s: %w", n.url, err)
	case n.closed:
		nc.Close()
	default:
		n.conn = nc
	}
	n.mu.Unlock()
	close(done)
}

// Subject returns the subject an event for instanceName is published on.
func (n *NATS) Subject(instanceName, event string) string {
	return n.prefix + "." + subjectToken(instanceName) + "." + model.NormalizeEvent(event)
}

func (n *NATS) send(ctx context.Context, _ *model.ChannelRecord, env model.Envelope) error {
	nc, err := n.connection(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(newMessage(env))
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if err := nc.Publish(n.Subject(env.InstanceName, env.Event), data); err != nil {
		return fmt.Errorf("publishing: %w", err)
	}
	if !nc.IsConnected() {
		return fmt.Errorf("NATS %s, message buffered until reconnect", nc.Status())
	}
	// Flush surfaces a dead connection within the send timeout instead of
	// leaving the message in the client buffer.
	if err := nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flushing: %w", err)
	}
	return nil
}

// subjectToken makes an instance name safe to use as one subject token.
var subjectToken = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_", "\t", "_").Replace
