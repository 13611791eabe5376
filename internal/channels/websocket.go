package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/idgen"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/metrics"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store"
)

const (
	// WebsocketPath is the route pattern mounted by Attach.
	WebsocketPath = "GET /ws/{instance}"

	wsWriteWait   = 10 * time.Second
	wsPongWait    = 60 * time.Second
	wsPingPeriod  = (wsPongWait * 9) / 10
	wsReadLimit   = 512
	wsSendBufSize = 64
)

// Presence reports whether an instance's upstream session is live.
type Presence interface {
	IsConnected(instanceName string) bool
}

// Websocket broadcasts events to sockets attached at /ws/{instance}. It is
// the only in-process channel, so it still delivers envelopes marked Local.
type Websocket struct {
	base
	upgrader websocket.Upgrader
	presence Presence

	mu      sync.RWMutex
	sockets map[string]map[*wsSocket]struct{}
	closed  bool
}

var _ Channel = (*Websocket)(nil)

// wsSocket is one attached client. Only writeLoop writes data frames.
type wsSocket struct {
	id       string
	instance string
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	once     sync.Once
}

// NewWebsocket creates the broadcast channel. A nil presence delivers
// regardless of the instance's connection state. Cross-origin upgrades are
// refused until AllowOrigins is called.
func NewWebsocket(s store.ConfigStore, presence Presence, opts Options) *Websocket {
	return &Websocket{
		base: newBase(model.ChannelWebsocket, s, opts, false),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		presence: presence,
		sockets:  make(map[string]map[*wsSocket]struct{}),
	}
}

// AllowOrigins permits upgrades from browser pages on the given origins,
// such as "https://app.example.com". "*" allows any origin. Requests without
// an Origin header, or from the server's own host, are always allowed. Call
// before the server starts.
func (w *Websocket) AllowOrigins(origins ...string) {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(strings.ToLower(o), "/")] = true
	}
	w.upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowed["*"] || allowed[strings.ToLower(origin)] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// Attach mounts the upgrade endpoint on the shared mux.
func (w *Websocket) Attach(mux *http.ServeMux) {
	mux.HandleFunc(WebsocketPath, w.handleUpgrade)
}

func (w *Websocket) Init(context.Context) error { return nil }

func (w *Websocket) Deliver(ctx context.Context, env model.Envelope) {
	w.deliver(ctx, env, w.send)
}

func (w *Websocket) Set(ctx context.Context, instanceName string, cfg model.ChannelConfig) (*model.ChannelRecord, error) {
	return w.set(ctx, instanceName, cfg)
}

func (w *Websocket) Get(ctx context.Context, instanceName string) (*model.ChannelRecord, error) {
	return w.get(ctx, instanceName)
}

// Release disconnects every socket attached to instanceName.
func (w *Websocket) Release(instanceName string) {
	w.mu.Lock()
	set := w.sockets[instanceName]
	delete(w.sockets, instanceName)
	w.mu.Unlock()

	for s := range set {
		metrics.WebsocketClients.Dec()
		s.close(websocket.CloseGoingAway, "instance released")
	}
	if len(set) > 0 {
		w.logger.Info("channels: released websocket clients", "instance", instanceName, "count", len(set))
	}
}

// Close disconnects all sockets and refuses new ones.
func (w *Websocket) Close() error {
	w.mu.Lock()
	w.closed = true
	all := w.sockets
	w.sockets = make(map[string]map[*wsSocket]struct{})
	w.mu.Unlock()

	for _, set := range all {
		for s := range set {
			metrics.WebsocketClients.Dec()
			s.close(websocket.CloseGoingAway, "server shutting down")
		}
	}
	return nil
}

// Clients returns the number of sockets attached to instanceName.
func (w *Websocket) Clients(instanceName string) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.sockets[instanceName])
}

func (w *Websocket) send(_ context.Context, _ *model.ChannelRecord, env model.Envelope) error {
	if w.presence != nil && !w.presence.IsConnected(env.InstanceName) {
		return fmt.Errorf("instance not connected: %w", errSkipped)
	}

	data, err := json.Marshal(newClientMessage(env))
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	set := w.sockets[env.InstanceName]
	if len(set) == 0 {
		return fmt.Errorf("no sockets attached: %w", errSkipped)
	}
	for s := range set {
		select {
		case s.send <- data:
		default:
			// Slow reader: drop the frame rather than block the fan-out.
			w.logger.Warn("channels: websocket buffer full, dropping frame",
				"instance", env.InstanceName, "socket", s.id, "event", env.Event)
		}
	}
	return nil
}

func (w *Websocket) handleUpgrade(rw http.ResponseWriter, r *http.Request) {
	instance := r.PathValue("instance")
	if instance == "" {
		http.Error(rw, "instance is required", http.StatusBadRequest)
		return
	}

	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		w.logger.Debug("channels: websocket upgrade failed", "instance", instance, "err", err)
		return
	}

	s := &wsSocket{
		id:       idgen.SocketID(),
		instance: instance,
		conn:     conn,
		send:     make(chan []byte, wsSendBufSize),
		done:     make(chan struct{}),
	}
	if !w.register(s) {
		s.close(websocket.CloseGoingAway, "server shutting down")
		return
	}
	w.logger.Info("channels: websocket client attached", "instance", instance, "socket", s.id)

	go s.writeLoop()
	s.readLoop()

	if w.unregister(s) {
		w.logger.Info("channels: websocket client detached", "instance", instance, "socket", s.id)
	}
	s.close(websocket.CloseNormalClosure, "")
}

func (w *Websocket) register(s *wsSocket) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	set, ok := w.sockets[s.instance]
	if !ok {
		set = make(map[*wsSocket]struct{})
		w.sockets[s.instance] = set
	}
	set[s] = struct{}{}
	metrics.WebsocketClients.Inc()
	return true
}

// unregister reports whether s was still registered. Release and Close
// remove sockets themselves.
func (w *Websocket) unregister(s *wsSocket) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	set, ok := w.sockets[s.instance]
	if !ok {
		return false
	}
	if _, ok := set[s]; !ok {
		return false
	}
	delete(set, s)
	if len(set) == 0 {
		delete(w.sockets, s.instance)
	}
	metrics.WebsocketClients.Dec()
	return true
}

// readLoop consumes control frames until the peer goes away. Clients are
// not expected to send data; anything they send is discarded.
func (s *wsSocket) readLoop() {
	s.conn.SetReadLimit(wsReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *wsSocket) writeLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close(websocket.CloseAbnormalClosure, "")
				return
			}
		}
	}
}

// close is idempotent. WriteControl and Close may run concurrently with
// writeLoop.
func (s *wsSocket) close(code int, reason string) {
	s.once.Do(func() {
		close(s.done)
		if code != websocket.CloseAbnormalClosure {
			msg := websocket.FormatCloseMessage(code, reason)
			_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		}
		_ = s.conn.Close()
	})
}
