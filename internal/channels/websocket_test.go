package channels

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store/memory"
)

type staticPresence map[string]bool

func (p staticPresence) IsConnected(name string) bool { return p[name] }

// newWebsocketServer mounts ws on a fresh mux behind an httptest server.
func newWebsocketServer(t *testing.T, st store.ConfigStore, presence Presence) (*Websocket, *httptest.Server) {
	t.Helper()
	ws := NewWebsocket(st, presence, Options{})
	mux := http.NewServeMux()
	ws.Attach(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		_ = ws.Close()
		srv.Close()
	})
	return ws, srv
}

func dialInstance(t *testing.T, ws *Websocket, srv *httptest.Server, instance string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + instance
	before := ws.Clients(instance)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for ws.Clients(instance) <= before {
		if time.Now().After(deadline) {
			t.Fatal("socket never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading frame: %v", err)
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decoding frame: %v", err)
	}
	return m
}

func TestWebsocket_BroadcastToInstanceSockets(t *testing.T) {
	st := memory.New()
	putConfig(t, st, "shop-42", model.ChannelWebsocket, model.ChannelConfig{Enabled: true})
	ws, srv := newWebsocketServer(t, st, nil)

	a := dialInstance(t, ws, srv, "shop-42")
	b := dialInstance(t, ws, srv, "shop-42")
	other := dialInstance(t, ws, srv, "shop-7")

	env := testEnvelope("shop-42", "messages.upsert")
	env.APIKey = "tenant-key"
	ws.Deliver(context.Background(), env)

	for _, conn := range []*websocket.Conn{a, b} {
		m := readMessage(t, conn)
		if m.Event != "messages.upsert" || m.Instance != "shop-42" {
			t.Errorf("unexpected frame: %+v", m)
		}
		if m.APIKey != "" {
			t.Errorf("broadcast frame carries apikey %q", m.APIKey)
		}
	}

	_ = other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Fatal("socket of another instance received a frame")
	}
}

func TestWebsocket_LocalEnvelopeDelivered(t *testing.T) {
	st := memory.New()
	putConfig(t, st, "shop-42", model.ChannelWebsocket, model.ChannelConfig{Enabled: true})
	ws, srv := newWebsocketServer(t, st, nil)
	conn := dialInstance(t, ws, srv, "shop-42")

	env := testEnvelope("shop-42", "qrcode.updated")
	env.Local = true
	ws.Deliver(context.Background(), env)

	if m := readMessage(t, conn); m.Event != "qrcode.updated" {
		t.Fatalf("event = %q", m.Event)
	}
}

func TestWebsocket_PresenceGate(t *testing.T) {
	st := memory.New()
	putConfig(t, st, "shop-42", model.ChannelWebsocket, model.ChannelConfig{Enabled: true})
	ws, srv := newWebsocketServer(t, st, staticPresence{"shop-42": false})
	conn := dialInstance(t, ws, srv, "shop-42")

	ws.Deliver(context.Background(), testEnvelope("shop-42", "messages.upsert"))

	_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("frame delivered for disconnected instance")
	}
}

func TestWebsocket_SendWithoutSocketsSkips(t *testing.T) {
	ws := NewWebsocket(memory.New(), nil, Options{})
	err := ws.send(context.Background(), nil, testEnvelope("shop-42", "messages.upsert"))
	if !errors.Is(err, errSkipped) {
		t.Fatalf("send = %v, want skipped", err)
	}
}

func TestWebsocket_Release(t *testing.T) {
	ws, srv := newWebsocketServer(t, memory.New(), nil)
	conn := dialInstance(t, ws, srv, "shop-42")

	ws.Release("shop-42")
	if n := ws.Clients("shop-42"); n != 0 {
		t.Fatalf("clients after release = %d", n)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("expected going-away close, got %v", err)
	}
}

func TestWebsocket_ClientDisconnectUnregisters(t *testing.T) {
	ws, srv := newWebsocketServer(t, memory.New(), nil)
	conn := dialInstance(t, ws, srv, "shop-42")
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for ws.Clients("shop-42") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("socket still registered after client close")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebsocket_OriginCheck(t *testing.T) {
	dial := func(srv *httptest.Server, origin string) (int, error) {
		hdr := http.Header{}
		if origin != "" {
			hdr.Set("Origin", origin)
		}
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/shop-42"
		conn, resp, err := websocket.DefaultDialer.Dial(url, hdr)
		if conn != nil {
			conn.Close()
		}
		if resp == nil {
			return 0, err
		}
		return resp.StatusCode, err
	}

	_, strict := newWebsocketServer(t, memory.New(), nil)
	if code, err := dial(strict, "https://evil.example.com"); err == nil || code != http.StatusForbidden {
		t.Fatalf("foreign origin: code=%d err=%v, want 403", code, err)
	}
	if _, err := dial(strict, ""); err != nil {
		t.Fatalf("no origin: %v", err)
	}

	ws := NewWebsocket(memory.New(), nil, Options{})
	ws.AllowOrigins("https://App.example.com/")
	mux := http.NewServeMux()
	ws.Attach(mux)
	open := httptest.NewServer(mux)
	t.Cleanup(func() {
		_ = ws.Close()
		open.Close()
	})
	if _, err := dial(open, "https://app.example.com"); err != nil {
		t.Fatalf("allowed origin: %v", err)
	}
	if code, _ := dial(open, "https://evil.example.com"); code != http.StatusForbidden {
		t.Fatalf("foreign origin with allow-list: code=%d, want 403", code)
	}
}
