package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deepfinance/chat-client/internal/models"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// wsBackend is an in-process websocket server standing in for the real
// backend. Every frame received from the client lands on frames; every
// accepted connection lands on conns so tests can write or close from the
// server side.
type wsBackend struct {
	upgrades int32
	frames   chan []byte
	conns    chan *websocket.Conn
}

func newBackend(t *testing.T) (*wsBackend, string) {
	t.Helper()
	b := &wsBackend{
		frames: make(chan []byte, 16),
		conns:  make(chan *websocket.Conn, 4),
	}
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		atomic.AddInt32(&b.upgrades, 1)
		b.conns <- conn
		go func() {
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				b.frames <- data
			}
		}()
	}))
	t.Cleanup(ts.Close)
	return b, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func (b *wsBackend) nextFrame(t *testing.T) []byte {
	t.Helper()
	select {
	case data := <-b.frames:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return nil
	}
}

func (b *wsBackend) nextConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-b.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a connection")
		return nil
	}
}

type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func decodeEnvelope(t *testing.T, data []byte) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestConnectSendsAuthenticateFirst(t *testing.T) {
	backend, url := newBackend(t)
	m := NewManager(url, zap.NewNop())

	require.NoError(t, m.Connect(context.Background(), "secret-token"))
	assert.Equal(t, Open, m.State())

	env := decodeEnvelope(t, backend.nextFrame(t))
	assert.Equal(t, models.EventAuthenticate, env.Event)

	var payload models.AuthPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "secret-token", payload.Token)
}

func TestSendRequiresOpenChannel(t *testing.T) {
	m := NewManager("ws://unused", zap.NewNop())

	err := m.Send(models.EventMessageSend, models.SendPayload{ThreadID: "t1", Content: "hi"})
	assert.ErrorIs(t, err, ErrChannelNotOpen)
	assert.Equal(t, Disconnected, m.State())
}

func TestSendWritesEnvelope(t *testing.T) {
	backend, url := newBackend(t)
	m := NewManager(url, zap.NewNop())
	require.NoError(t, m.Connect(context.Background(), "tok"))
	backend.nextFrame(t) // authenticate

	require.NoError(t, m.Send(models.EventMessageSend, models.SendPayload{ThreadID: "t2", Content: "What is EBITDA?"}))

	env := decodeEnvelope(t, backend.nextFrame(t))
	assert.Equal(t, models.EventMessageSend, env.Event)

	var payload models.SendPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, models.SendPayload{ThreadID: "t2", Content: "What is EBITDA?"}, payload)
}

func TestInboundFramesDeliveredUnparsed(t *testing.T) {
	backend, url := newBackend(t)
	m := NewManager(url, zap.NewNop())

	received := make(chan []byte, 1)
	m.OnFrame(func(frame []byte) { received <- frame })

	require.NoError(t, m.Connect(context.Background(), "tok"))
	backend.nextFrame(t) // authenticate

	server := backend.nextConn(t)
	require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte("raw assistant text")))

	select {
	case frame := <-received:
		assert.Equal(t, "raw assistant text", string(frame))
	case <-time.After(2 * time.Second):
		t.Fatal("frame not delivered")
	}
}

func TestServerCloseParksDisconnected(t *testing.T) {
	backend, url := newBackend(t)
	m := NewManager(url, zap.NewNop())

	closed := make(chan error, 1)
	m.OnClose(func(err error) { closed <- err })

	require.NoError(t, m.Connect(context.Background(), "tok"))
	backend.nextFrame(t) // authenticate

	require.NoError(t, backend.nextConn(t).Close())

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("close handler not invoked")
	}
	require.Eventually(t, func() bool {
		return m.State() == Disconnected
	}, 2*time.Second, 10*time.Millisecond)

	// No automatic reconnect: the send fails locally and no new socket is
	// dialed.
	err := m.Send(models.EventMessageSend, models.SendPayload{ThreadID: "t1", Content: "hi"})
	assert.ErrorIs(t, err, ErrChannelNotOpen)
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.upgrades))
}

func TestReconnectClosesPreviousSocket(t *testing.T) {
	backend, url := newBackend(t)
	m := NewManager(url, zap.NewNop())

	require.NoError(t, m.Connect(context.Background(), "tok-1"))
	backend.nextFrame(t) // authenticate on first socket
	first := backend.nextConn(t)

	require.NoError(t, m.Connect(context.Background(), "tok-2"))
	assert.Equal(t, Open, m.State())
	assert.Equal(t, int32(2), atomic.LoadInt32(&backend.upgrades))

	env := decodeEnvelope(t, backend.nextFrame(t))
	assert.Equal(t, models.EventAuthenticate, env.Event)

	// The first socket was torn down: a server-side read on it errors out.
	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := first.ReadMessage()
	assert.Error(t, err)

	require.NoError(t, m.Send(models.EventMessageSend, models.SendPayload{ThreadID: "t1", Content: "still works"}))
	env = decodeEnvelope(t, backend.nextFrame(t))
	assert.Equal(t, models.EventMessageSend, env.Event)
}

func TestExplicitClose(t *testing.T) {
	backend, url := newBackend(t)
	m := NewManager(url, zap.NewNop())

	closeCalls := make(chan error, 1)
	m.OnClose(func(err error) { closeCalls <- err })

	require.NoError(t, m.Connect(context.Background(), "tok"))
	backend.nextFrame(t) // authenticate

	require.NoError(t, m.Close())
	assert.Equal(t, Disconnected, m.State())

	select {
	case <-closeCalls:
		t.Fatal("explicit Close must not trigger the close handler")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConnectFailure(t *testing.T) {
	m := NewManager("ws://127.0.0.1:1", zap.NewNop())

	err := m.Connect(context.Background(), "tok")
	require.Error(t, err)
	assert.Equal(t, Disconnected, m.State())
}
