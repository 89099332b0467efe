package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/deepfinance/chat-client/internal/models"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// State is the lifecycle state of the duplex channel.
type State int

const (
	Disconnected State = iota
	Connecting
	Open
	Closing
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

// ErrChannelNotOpen is returned by Send when the channel is not in the Open
// state. The failure is local and never retried here; the caller decides
// whether to drop or hold the request.
var ErrChannelNotOpen = errors.New("channel is not open")

// FrameHandler receives every inbound frame, unparsed.
type FrameHandler func(frame []byte)

// Manager owns the websocket connection and its lifecycle. At most one
// socket is alive at a time; Connect closes any previous one first. A
// transport error or server close parks the state in Disconnected. There is
// no automatic reconnect; the caller must call Connect again.
type Manager struct {
	url     string
	logger  *zap.Logger
	onFrame FrameHandler
	onClose func(err error)

	mu    sync.Mutex
	state State
	conn  *websocket.Conn
	gen   uint64
}

func NewManager(url string, logger *zap.Logger) *Manager {
	return &Manager{
		url:    url,
		logger: logger,
		state:  Disconnected,
	}
}

// OnFrame registers the inbound-frame handler. Must be set before Connect.
func (m *Manager) OnFrame(h FrameHandler) {
	m.onFrame = h
}

// OnClose registers a handler invoked when the transport closes or errors
// out from the server side. Explicit Close does not trigger it.
func (m *Manager) OnClose(f func(err error)) {
	m.onClose = f
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect dials the backend, sends the authenticate envelope and starts
// reading frames. Authentication is fire-and-forget: no acknowledgement is
// awaited before further sends are allowed.
func (m *Manager) Connect(ctx context.Context, token string) error {
	m.mu.Lock()
	if m.conn != nil {
		// Close the previous socket so we never leak one per Connect.
		m.gen++
		_ = m.conn.Close()
		m.conn = nil
	}
	m.state = Connecting
	m.mu.Unlock()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, m.url, nil)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		m.mu.Lock()
		m.state = Disconnected
		m.mu.Unlock()
		m.logger.Error("Failed to open channel",
			zap.Error(err),
			zap.String("url", m.url))
		return fmt.Errorf("dial %s: %w", m.url, err)
	}
	if resp != nil {
		_ = resp.Body.Close()
	}

	m.mu.Lock()
	m.conn = conn
	m.state = Open
	m.gen++
	gen := m.gen

	auth := models.Envelope{
		Event:   models.EventAuthenticate,
		Payload: models.AuthPayload{Token: token},
	}
	if err := m.writeLocked(auth); err != nil {
		m.state = Disconnected
		m.conn = nil
		m.mu.Unlock()
		_ = conn.Close()
		m.logger.Error("Failed to send authenticate frame", zap.Error(err))
		return fmt.Errorf("authenticate: %w", err)
	}
	m.mu.Unlock()

	m.logger.Info("Channel open", zap.String("url", m.url))
	go m.readPump(conn, gen)
	return nil
}

// Send transmits a JSON-encoded {event, payload} envelope if and only if the
// channel is Open.
func (m *Manager) Send(event string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Open || m.conn == nil {
		return ErrChannelNotOpen
	}
	if err := m.writeLocked(models.Envelope{Event: event, Payload: payload}); err != nil {
		m.logger.Error("Channel write failed", zap.String("event", event), zap.Error(err))
		m.gen++
		_ = m.conn.Close()
		m.conn = nil
		m.state = Disconnected
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

// Close tears the channel down. Safe to call in any state.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		m.state = Disconnected
		return nil
	}
	m.state = Closing
	m.gen++
	err := m.conn.Close()
	m.conn = nil
	m.state = Disconnected
	if err != nil {
		return fmt.Errorf("closing channel: %w", err)
	}
	return nil
}

func (m *Manager) writeLocked(env models.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}
	return m.conn.WriteMessage(websocket.TextMessage, data)
}

func (m *Manager) readPump(conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.pumpClosed(gen, err)
			return
		}
		if m.onFrame != nil {
			m.onFrame(data)
		}
	}
}

// pumpClosed handles a transport-level close or error observed by the read
// pump. A pump whose generation was superseded by a later Connect or an
// explicit Close stays silent.
func (m *Manager) pumpClosed(gen uint64, err error) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.state = Disconnected
	m.mu.Unlock()

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		m.logger.Info("Channel closed by server")
	} else {
		m.logger.Error("Channel transport error", zap.Error(err))
	}
	if m.onClose != nil {
		m.onClose(err)
	}
}
