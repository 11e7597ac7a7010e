// Package phoenix implements realtime.Transport over the Phoenix channel
// protocol spoken by Supabase Realtime.
package phoenix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"budgetapp/chatsync/internal/realtime"
)

const (
	// Time allowed to write a frame to the server
	writeWait = 10 * time.Second

	// Maximum frame size accepted from the server
	maxMessageSize = 1024 * 1024

	defaultHeartbeat   = 30 * time.Second
	defaultDialTimeout = 10 * time.Second
	defaultBufferSize  = 64

	protocolVersion = "1.0.0"
	topicPrefix     = "realtime:"
)

var (
	ErrNotConnected  = errors.New("phoenix: not connected")
	ErrChannelExists = errors.New("phoenix: channel already open")
)

type Config struct {
	// URL is the websocket endpoint, e.g. wss://<ref>.supabase.co/realtime/v1/websocket
	URL               string
	APIKey            string
	HeartbeatInterval time.Duration
	DialTimeout       time.Duration
	// BufferSize bounds the per-channel event queue. A full queue blocks the
	// read loop.
	BufferSize int
	Logger     *zap.Logger
}

// Transport is a single websocket connection multiplexing channels.
type Transport struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *zap.Logger
	ref    atomic.Uint64

	mu       sync.Mutex
	state    realtime.ConnectionState
	conn     *websocket.Conn
	done     chan struct{}
	channels map[string]*channel
	// attempt identifies the current dial; Close and Connect bump it so a
	// dial that finishes late can tell it was superseded.
	attempt uint64

	writeMu sync.Mutex
}

var _ realtime.Transport = (*Transport)(nil)

func New(cfg Config) *Transport {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeat
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Transport{
		cfg:      cfg,
		dialer:   &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout},
		logger:   cfg.Logger.Named("phoenix"),
		state:    realtime.StateDisconnected(),
		channels: make(map[string]*channel),
	}
}

// Connect starts dialing in the background and returns at once with the
// state set to Connecting. Callers observe the outcome through State.
func (t *Transport) Connect(_ context.Context) error {
	endpoint, err := t.endpoint()
	if err != nil {
		t.setState(realtime.StateError(err.Error()))
		return err
	}

	t.mu.Lock()
	switch t.state.Status {
	case realtime.Connecting, realtime.Connected:
		t.mu.Unlock()
		return nil
	}
	t.state = realtime.StateConnecting()
	t.attempt++
	attempt := t.attempt
	t.mu.Unlock()

	go t.dial(endpoint, attempt)
	return nil
}

func (t *Transport) State() realtime.ConnectionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Channel registers a channel for name. Nothing is sent until Subscribe.
func (t *Transport) Channel(name string, filter realtime.ChangeFilter) (realtime.Channel, error) {
	topic := topicPrefix + name

	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.channels[topic]; ok && !existing.isClosed() {
		return nil, fmt.Errorf("%w: %s", ErrChannelExists, topic)
	}
	ch := newChannel(t, topic, filter, t.cfg.BufferSize)
	t.channels[topic] = ch
	return ch, nil
}

// Close drops the connection and closes every channel.
func (t *Transport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.state = realtime.StateDisconnected()
	t.attempt++
	t.stopLocked()
	channels := t.takeChannelsLocked()
	t.mu.Unlock()

	for _, ch := range channels {
		ch.close(realtime.ChannelClosed)
	}
	if conn == nil {
		return nil
	}
	t.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	t.writeMu.Unlock()
	return conn.Close()
}

func (t *Transport) endpoint() (string, error) {
	u, err := url.Parse(t.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	q := u.Query()
	if t.cfg.APIKey != "" {
		q.Set("apikey", t.cfg.APIKey)
	}
	q.Set("vsn", protocolVersion)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (t *Transport) dial(endpoint string, attempt uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.DialTimeout)
	defer cancel()

	conn, _, err := t.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		t.logger.Warn("realtime dial failed", zap.Error(err))
		t.mu.Lock()
		if t.attempt == attempt {
			t.state = realtime.StateError(err.Error())
		}
		t.mu.Unlock()
		return
	}
	conn.SetReadLimit(maxMessageSize)

	t.mu.Lock()
	if t.attempt != attempt || t.state.Status != realtime.Connecting {
		// closed or redialed while this dial was in flight
		t.mu.Unlock()
		t.logger.Debug("dropping superseded realtime connection")
		_ = conn.Close()
		return
	}
	done := make(chan struct{})
	t.conn = conn
	t.done = done
	t.state = realtime.StateConnected()
	t.mu.Unlock()

	t.logger.Info("realtime connected")
	go t.readPump(conn)
	go t.heartbeat(done)
}

func (t *Transport) readPump(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Warn("realtime read failed", zap.Error(err))
			}
			t.fail(conn, err)
			return
		}

		var msg frame
		if err := json.Unmarshal(data, &msg); err != nil {
			t.logger.Warn("malformed realtime frame", zap.Error(err))
			continue
		}
		t.dispatch(msg)
	}
}

func (t *Transport) heartbeat(done <-chan struct{}) {
	ticker := time.NewTicker(t.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := t.send(phoenixTopic, eventHeartbeat, struct{}{}, t.nextRef()); err != nil {
				t.logger.Warn("heartbeat failed", zap.Error(err))
				return
			}
		}
	}
}

// fail tears down conn after a read error. Errors from a connection that
// was already replaced or closed are ignored.
func (t *Transport) fail(conn *websocket.Conn, err error) {
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.state = realtime.StateError(err.Error())
	t.stopLocked()
	channels := t.takeChannelsLocked()
	t.mu.Unlock()

	for _, ch := range channels {
		ch.close(realtime.ChannelErrored)
	}
	_ = conn.Close()
}

func (t *Transport) dispatch(msg frame) {
	if msg.Topic == phoenixTopic {
		return
	}

	t.mu.Lock()
	ch := t.channels[msg.Topic]
	t.mu.Unlock()
	if ch == nil {
		t.logger.Debug("frame for unknown topic", zap.String("topic", msg.Topic), zap.String("event", msg.Event))
		return
	}

	switch msg.Event {
	case eventReply:
		var reply replyPayload
		if err := json.Unmarshal(msg.Payload, &reply); err != nil {
			t.logger.Warn("malformed reply", zap.String("topic", msg.Topic), zap.Error(err))
			return
		}
		ch.handleReply(msg.Ref, reply)
	case eventPostgresChanges:
		var payload changesPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			t.logger.Warn("malformed change payload", zap.String("topic", msg.Topic), zap.Error(err))
			return
		}
		ch.deliver(payload.Data.toRaw())
	case eventError:
		t.logger.Warn("channel error from server", zap.String("topic", msg.Topic))
		t.removeChannel(ch)
		ch.close(realtime.ChannelErrored)
	case eventClose:
		t.removeChannel(ch)
		ch.close(realtime.ChannelClosed)
	default:
		t.logger.Debug("ignored realtime event", zap.String("topic", msg.Topic), zap.String("event", msg.Event))
	}
}

func (t *Transport) send(topic, event string, payload any, ref string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(frame{Topic: topic, Event: event, Payload: body, Ref: &ref})
	if err != nil {
		return err
	}

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (t *Transport) nextRef() string {
	return strconv.FormatUint(t.ref.Add(1), 10)
}

func (t *Transport) setState(s realtime.ConnectionState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

func (t *Transport) removeChannel(ch *channel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.channels[ch.topic] == ch {
		delete(t.channels, ch.topic)
	}
}

func (t *Transport) stopLocked() {
	if t.done != nil {
		close(t.done)
		t.done = nil
	}
}

func (t *Transport) takeChannelsLocked() []*channel {
	out := make([]*channel, 0, len(t.channels))
	for _, ch := range t.channels {
		out = append(out, ch)
	}
	t.channels = make(map[string]*channel)
	return out
}
